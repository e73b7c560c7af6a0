// internal/services/writer_service.go
package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/Corphon/NovelForgeMCP/internal/models"
)

// 写作上下文的截取长度（按rune计）
const (
	prevChapterTailRunes = 800 // 上一章结尾
	currentTailRunes     = 300 // 续写时当前正文结尾
)

// WriteMode 写作模式
type WriteMode string

const (
	// WriteModeAuto 整章重写：以大纲为准生成全新正文
	WriteModeAuto WriteMode = "auto"
	// WriteModeContinue 续写：紧接现有正文追加
	WriteModeContinue WriteMode = "continue"
)

// Mimicry 作家拟态设置
type Mimicry struct {
	Active bool   `json:"active"`
	Name   string `json:"name"`
}

// WriterService 第三阶段：章节正文写作
type WriterService struct {
	projects *ProjectService
	gateway  *GatewayService
	guard    *GenerationGuard
	logger   zerolog.Logger
}

// NewWriterService 创建写作服务
func NewWriterService(projects *ProjectService, gateway *GatewayService, guard *GenerationGuard, logger zerolog.Logger) *WriterService {
	return &WriterService{
		projects: projects,
		gateway:  gateway,
		guard:    guard,
		logger:   logger.With().Str("service", "writer").Logger(),
	}
}

func writingKey(projectID string) string {
	return projectID + ":writing"
}

// WriteRequest 一次正文写作请求
type WriteRequest struct {
	ProjectID    string    `json:"project_id"`
	ChapterIndex int       `json:"chapter_index"`
	Mode         WriteMode `json:"mode"`
	Mimicry      Mimicry   `json:"mimicry"`
}

// WriteResult 写作结果
type WriteResult struct {
	ChapterID int64  `json:"chapter_id"`
	Content   string `json:"content"`    // 写作后的完整正文
	WordCount int    `json:"word_count"` // 按中文习惯统计的字数
}

// WriteChapter 为指定章节生成正文
// auto模式整章替换，continue模式在现有正文后追加；
// 上一章结尾与当前正文结尾各截取固定长度作为衔接上下文。
func (s *WriterService) WriteChapter(ctx context.Context, req WriteRequest) (*WriteResult, error) {
	project, err := s.projects.Get(req.ProjectID)
	if err != nil {
		return nil, err
	}

	chapter := project.ChapterAt(req.ChapterIndex)
	if chapter == nil {
		return nil, fmt.Errorf("章节位置越界: %d", req.ChapterIndex)
	}
	currentContent := project.Content[chapter.ID]

	prevContext := "（这是第一章，无上文）"
	if prev := project.ChapterAt(req.ChapterIndex - 1); prev != nil {
		if prevContent := project.Content[prev.ID]; prevContent != "" {
			prevContext = "..." + tailRunes(prevContent, prevChapterTailRunes)
		}
	}

	styles := joinPlus(project.Settings.Styles, "常规")
	tones := joinPlus(project.Settings.Tones, "正常")

	mimicInstruction := fmt.Sprintf("【风格】请遵循【%s】行文风格，体现【%s】情感基调。", styles, tones)
	if req.Mimicry.Active && req.Mimicry.Name != "" {
		mimicInstruction = fmt.Sprintf("【模仿指令】请完全沉浸式地模仿作家【%s】的语感、修辞和叙事节奏。", req.Mimicry.Name)
	}

	continueInstruction := ""
	if req.Mode == WriteModeContinue {
		continueInstruction = fmt.Sprintf("【续写指令】紧接当前文本：%s，保持文风一致。\n", tailRunes(currentContent, currentTailRunes))
	}

	key := writingKey(req.ProjectID)
	tag, err := s.guard.Acquire(key)
	if err != nil {
		return nil, err
	}
	defer s.guard.Release(key, tag)

	prompt := fmt.Sprintf(`【任务】撰写/续写小说章节：%s
【本章大纲】%s
【上下文衔接】上一章结尾："""%s"""
【写作要求】
1. 紧接上文，场景转换自然，逻辑严密。
2. %s
%s请输出约 1000 字正文。`,
		chapter.Title, chapter.Summary, prevContext, mimicInstruction, continueInstruction)

	text, err := s.gateway.Generate(ctx, GenerationRequest{
		Prompt:       prompt,
		SystemPrompt: "Ghostwriter",
		Tier:         TierLow,
	})
	if err != nil {
		return nil, err
	}

	if !s.guard.IsCurrent(key, tag) {
		return nil, ErrStaleResponse
	}

	text = models.CleanText(text)

	var result WriteResult
	err = s.projects.Mutate(req.ProjectID, func(p *models.Project) error {
		ch := p.ChapterAt(req.ChapterIndex)
		if ch == nil {
			return fmt.Errorf("章节位置越界: %d", req.ChapterIndex)
		}
		if req.Mode == WriteModeContinue && p.Content[ch.ID] != "" {
			p.Content[ch.ID] = p.Content[ch.ID] + "\n" + text
		} else {
			p.Content[ch.ID] = text
		}
		result = WriteResult{
			ChapterID: ch.ID,
			Content:   p.Content[ch.ID],
			WordCount: CountWords(p.Content[ch.ID]),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// SaveContent 保存手动编辑的章节正文
func (s *WriterService) SaveContent(projectID string, chapterIndex int, content string) error {
	return s.projects.Mutate(projectID, func(p *models.Project) error {
		ch := p.ChapterAt(chapterIndex)
		if ch == nil {
			return fmt.Errorf("章节位置越界: %d", chapterIndex)
		}
		p.Content[ch.ID] = content
		return nil
	})
}

var cjkPattern = regexp.MustCompile(`[\x{4e00}-\x{9fa5}]`)
var whitespacePattern = regexp.MustCompile(`\s`)

// CountWords 统计字数
// 含中文的文本按去空白后的字符数计，纯西文按空白分词计。
func CountWords(content string) int {
	if content == "" {
		return 0
	}
	if cjkPattern.MatchString(content) {
		stripped := whitespacePattern.ReplaceAllString(content, "")
		return len([]rune(stripped))
	}
	return len(strings.Fields(content))
}

// tailRunes 按rune截取字符串结尾
func tailRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[len(runes)-n:])
}

func joinPlus(items []string, fallback string) string {
	if len(items) == 0 {
		return fallback
	}
	return strings.Join(items, " + ")
}
