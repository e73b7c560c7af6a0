// internal/services/logic_service.go
package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/Corphon/NovelForgeMCP/internal/models"
)

// LogicService 逻辑纠正引擎
// 扫描全书章节大纲，找出前后矛盾、战力崩坏与主线偏离，
// 产出的报告由调用方持有，应用修复时按在线章节列表逐条重新校验。
type LogicService struct {
	projects *ProjectService
	gateway  *GatewayService
	guard    *GenerationGuard
	logger   zerolog.Logger
}

// NewLogicService 创建逻辑纠正服务
func NewLogicService(projects *ProjectService, gateway *GatewayService, guard *GenerationGuard, logger zerolog.Logger) *LogicService {
	return &LogicService{
		projects: projects,
		gateway:  gateway,
		guard:    guard,
		logger:   logger.With().Str("service", "logic").Logger(),
	}
}

// logicKey 逻辑扫描的生成守卫键
func logicKey(projectID string) string {
	return projectID + ":logic"
}

// Scan 扫描项目全部章节，返回待处理的问题报告
// 空报告是正常的"全书干净"结果；章节为空时在调用网关前同步拒绝。
func (s *LogicService) Scan(ctx context.Context, projectID string) (*models.LogicReport, error) {
	project, err := s.projects.Get(projectID)
	if err != nil {
		return nil, err
	}

	if len(project.Chapters) == 0 {
		return nil, fmt.Errorf("暂无章节可检查")
	}

	structure := project.Architecture.PlotStructure
	if structure == "" {
		structure = project.Architecture.MainPlot
	}

	var list strings.Builder
	for i, c := range project.Chapters {
		fmt.Fprintf(&list, "[Ch%d] %s: %s\n", i+1, c.Title, c.Summary)
	}

	key := logicKey(projectID)
	tag, err := s.guard.Acquire(key)
	if err != nil {
		return nil, err
	}
	defer s.guard.Release(key, tag)

	prompt := fmt.Sprintf(`【逻辑纠正任务】
参考主线构架：
"""%s"""

当前章节列表：
"""%s"""

请扫描所有章节，找出前后矛盾、战力崩坏、或严重偏离主线的地方。

返回 JSON 对象:
{
  "issues": [
    {
      "chapterIndex": 0,  // 对应章节在数组中的下标 (第1章是0)
      "title": "章节标题",
      "reason": "具体的修改理由（例如：此处主角尚未获得该道具，产生矛盾）",
      "newSummary": "修正后的完整章节细纲"
    }
  ]
}

注意：只返回【确实需要修改】的章节。如果没有问题，返回空数组。`,
		structure, list.String())

	var out struct {
		Issues []struct {
			ChapterIndex int             `json:"chapterIndex"`
			Title        models.FlexText `json:"title"`
			Reason       models.FlexText `json:"reason"`
			NewSummary   models.FlexText `json:"newSummary"`
		} `json:"issues"`
	}

	if err := s.gateway.GenerateStructured(ctx, GenerationRequest{
		Prompt:       prompt,
		SystemPrompt: "Logic Doctor",
		Tier:         TierHigh,
	}, &out); err != nil {
		return nil, err
	}

	if !s.guard.IsCurrent(key, tag) {
		return nil, ErrStaleResponse
	}

	// 校验下标并从在线项目状态补oldSummary，保证用户看到真实的修改前文本
	report := &models.LogicReport{ProjectID: projectID}
	live, err := s.projects.Get(projectID)
	if err != nil {
		return nil, err
	}
	for _, issue := range out.Issues {
		chapter := live.ChapterAt(issue.ChapterIndex)
		if chapter == nil {
			continue
		}
		report.Issues = append(report.Issues, models.LogicIssue{
			ChapterIndex: issue.ChapterIndex,
			Title:        issue.Title.String(),
			Reason:       issue.Reason.String(),
			NewSummary:   issue.NewSummary.String(),
			OldSummary:   chapter.Summary,
		})
	}

	s.logger.Info().Str("project_id", projectID).Int("issues", len(report.Issues)).Msg("逻辑扫描完成")
	return report, nil
}

// ApplyOne 将报告中第issueIndex个问题的修正写入项目，并从报告中移除
// 目标章节在扫描后被删除时跳过写入，只移除问题。
func (s *LogicService) ApplyOne(report *models.LogicReport, issueIndex int) error {
	if report == nil || issueIndex < 0 || issueIndex >= len(report.Issues) {
		return fmt.Errorf("问题下标越界: %d", issueIndex)
	}

	issue := report.Issues[issueIndex]
	err := s.projects.Mutate(report.ProjectID, func(p *models.Project) error {
		if ch := p.ChapterAt(issue.ChapterIndex); ch != nil {
			ch.Summary = issue.NewSummary
		}
		return nil
	})
	if err != nil {
		return err
	}

	report.Remove(issueIndex)
	return nil
}

// Edit 修改报告中某个问题的建议细纲，只影响未应用的缓冲，不触碰项目
func (s *LogicService) Edit(report *models.LogicReport, issueIndex int, newText string) error {
	if report == nil || issueIndex < 0 || issueIndex >= len(report.Issues) {
		return fmt.Errorf("问题下标越界: %d", issueIndex)
	}
	report.Issues[issueIndex].NewSummary = models.CleanText(newText)
	return nil
}

// ApplyAll 一次性应用报告中所有仍待处理的问题
// 写入前逐条按在线章节列表重新校验下标，目标已被删除的问题跳过不报错。
func (s *LogicService) ApplyAll(report *models.LogicReport) (applied int, err error) {
	if report == nil || report.Clean() {
		return 0, nil
	}

	err = s.projects.Mutate(report.ProjectID, func(p *models.Project) error {
		for _, issue := range report.Issues {
			if ch := p.ChapterAt(issue.ChapterIndex); ch != nil {
				ch.Summary = issue.NewSummary
				applied++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	report.Issues = nil
	return applied, nil
}
