// internal/services/planner_service.go
package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/Corphon/NovelForgeMCP/internal/models"
)

// 章节列表边界处的衔接占位语
const (
	storyBeginsSentinel    = "故事开始"
	storyContinuesSentinel = "故事继续"
)

// 未标记主角时的兜底称呼
const protagonistFallback = "主角"

// protagonistMarker 角色role字段中标识主角的约定字样
// 子串匹配是沿用的历史行为：任何role含该字样的角色都被视为主角。
const protagonistMarker = "主角"

// PlannerService 第二阶段：进度驱动的批量章节编排
type PlannerService struct {
	projects *ProjectService
	gateway  *GatewayService
	guard    *GenerationGuard
	progress *ProgressService
	logger   zerolog.Logger
}

// NewPlannerService 创建编排服务
func NewPlannerService(projects *ProjectService, gateway *GatewayService, guard *GenerationGuard, progress *ProgressService, logger zerolog.Logger) *PlannerService {
	return &PlannerService{
		projects: projects,
		gateway:  gateway,
		guard:    guard,
		progress: progress,
		logger:   logger.With().Str("service", "planner").Logger(),
	}
}

// BatchRequest 一次批量大纲生成请求
type BatchRequest struct {
	ProjectID     string `json:"project_id"`
	BatchSize     int    `json:"batch_size"`     // 本批生成的章节数，常用20/50/100
	Increment     int    `json:"increment"`      // 期望推进的剧情进度百分比 (1-100)
	AllowEpilogue bool   `json:"allow_epilogue"` // 进度已满时是否确认生成番外/续集
}

// BatchResult 批量生成的结果
type BatchResult struct {
	Added        int              `json:"added"`         // 实际追加的章节数
	PlotProgress int              `json:"plot_progress"` // 提交后的剧情进度
	Chapters     []models.Chapter `json:"chapters"`      // 追加的章节
}

// planningKey 编排阶段的生成守卫键，同一项目的编排类生成互斥
func planningKey(projectID string) string {
	return projectID + ":planning"
}

// GenerateBatch 生成一批新章节大纲并原子提交
// 章节追加与进度推进在一次Mutate中完成，网关失败时项目状态不变。
func (s *PlannerService) GenerateBatch(ctx context.Context, req BatchRequest) (*BatchResult, error) {
	project, err := s.projects.Get(req.ProjectID)
	if err != nil {
		return nil, err
	}

	if req.BatchSize <= 0 {
		req.BatchSize = 20
	}

	// 素材来源：优先细化后的剧情结构，其次主线梗概，两者都缺失时拒绝生成
	sourceMaterial := project.Architecture.PlotStructure
	if sourceMaterial == "" {
		sourceMaterial = project.Architecture.MainPlot
	}
	if strings.TrimSpace(sourceMaterial) == "" {
		return nil, ErrNoSourceMaterial
	}

	currentProgress := project.PlotProgress
	plan := PlanIncrement(currentProgress, req.Increment)
	if plan.Epilogue && !req.AllowEpilogue {
		return nil, ErrEpilogueUnconfirmed
	}

	protagonist, others := resolveCast(project.CharacterList)
	styles := joinOrDefault(project.Settings.Styles, "标准")
	tones := joinOrDefault(project.Settings.Tones, "正常")
	existingCount := len(project.Chapters)

	key := planningKey(req.ProjectID)
	tag, err := s.guard.Acquire(key)
	if err != nil {
		return nil, err
	}
	defer s.guard.Release(key, tag)

	tracker := s.progress.CreateTracker(key)
	tracker.Update(10, fmt.Sprintf("正在规划 %d 章 (进度 %d%% -> %d%%)...", req.BatchSize, currentProgress, plan.TargetProgress))

	prompt := fmt.Sprintf(`基于小说构架/大纲：
"""%s"""

【角色信息】主角：%s，配角：%s。
【当前状态】已有章节数：%d。已完成剧情进度：%d%%。
【本次任务】生成接下来的 %d 章大纲（从第 %d 章开始）。

【核心控制参数】
1. **剧情推进目标**：这批章节写完后，全书的总剧情进度应达到 【%d%%】。
   - 当前进度 %d%% -> 目标进度 %d%%。
   - 这意味着本次需要推进大约 %d%% 的核心剧情。

【格式要求】
1. 严格遵循 7:3 黄金比例（70%%主角视角，30%%配角/群像）。
2. 风格：%s，基调：%s。
3. 返回 JSON: { "chapters": [ { "title": "标题", "summary": "纯文本细纲" } ] }
4. 确保 chapters 数组长度正好为 %d。`,
		sourceMaterial, protagonist, others,
		existingCount, currentProgress,
		req.BatchSize, existingCount+1,
		plan.TargetProgress, currentProgress, plan.TargetProgress, plan.ActualIncrement,
		styles, tones, req.BatchSize)

	var out struct {
		Chapters []struct {
			Title   models.FlexText `json:"title"`
			Summary models.FlexText `json:"summary"`
		} `json:"chapters"`
	}

	if err := s.gateway.GenerateStructured(ctx, GenerationRequest{
		Prompt:       prompt,
		SystemPrompt: "Master Planner",
		Tier:         TierHigh,
	}, &out); err != nil {
		tracker.Fail(err.Error())
		return nil, err
	}

	// 导航离开或重新发起后到达的响应直接丢弃
	if !s.guard.IsCurrent(key, tag) {
		tracker.Fail(ErrStaleResponse.Error())
		return nil, ErrStaleResponse
	}

	// 空数组是合法返回：进度照常推进，只是没有新章节可追加；
	// 缺失chapters字段才视为无有效产出
	if out.Chapters == nil {
		tracker.Fail(ErrNoChapters.Error())
		return nil, ErrNoChapters
	}

	// 返回数量与请求数量不符时照单全收：
	// 章节数是提示词层面的要求，不作为校验后置条件
	newChapters := make([]models.Chapter, 0, len(out.Chapters))
	for _, c := range out.Chapters {
		newChapters = append(newChapters, models.Chapter{
			ID:      models.NextLocalID(),
			Title:   c.Title.String(),
			Summary: c.Summary.String(),
		})
	}

	tracker.Update(90, "正在提交章节...")

	err = s.projects.Mutate(req.ProjectID, func(p *models.Project) error {
		p.Chapters = append(p.Chapters, newChapters...)
		p.PlotProgress = plan.TargetProgress
		p.AdvanceStep(3)
		return nil
	})
	if err != nil {
		tracker.Fail(err.Error())
		return nil, err
	}

	tracker.Complete(fmt.Sprintf("已生成 %d 章，进度推进至 %d%%", len(newChapters), plan.TargetProgress))
	s.logger.Info().Str("project_id", req.ProjectID).Int("added", len(newChapters)).Int("progress", plan.TargetProgress).Msg("批量大纲已提交")

	return &BatchResult{
		Added:        len(newChapters),
		PlotProgress: plan.TargetProgress,
		Chapters:     newChapters,
	}, nil
}

// Insert 在index之后插入占位章节，不调用网关，不改变进度
func (s *PlannerService) Insert(projectID string, index int) (*models.Chapter, error) {
	placeholder := models.Chapter{
		ID:      models.NextLocalID(),
		Title:   "新插入章节",
		Summary: "点击重写以自动生成过渡内容...",
	}

	err := s.projects.Mutate(projectID, func(p *models.Project) error {
		if index < -1 || index >= len(p.Chapters) {
			return fmt.Errorf("章节位置越界: %d", index)
		}
		pos := index + 1
		p.Chapters = append(p.Chapters, models.Chapter{})
		copy(p.Chapters[pos+1:], p.Chapters[pos:])
		p.Chapters[pos] = placeholder
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &placeholder, nil
}

// Delete 删除index处的章节
// 对应的正文content[id]保留为孤儿数据，不做清理。
func (s *PlannerService) Delete(projectID string, index int) error {
	return s.projects.Mutate(projectID, func(p *models.Project) error {
		if p.ChapterAt(index) == nil {
			return fmt.Errorf("章节位置越界: %d", index)
		}
		p.Chapters = append(p.Chapters[:index], p.Chapters[index+1:]...)
		return nil
	})
}

// Rewrite 重写index处章节的大纲，使其衔接前后章节
// 只替换title和summary，不触碰正文，不移动位置，不改变进度。
func (s *PlannerService) Rewrite(ctx context.Context, projectID string, index int) (*models.Chapter, error) {
	project, err := s.projects.Get(projectID)
	if err != nil {
		return nil, err
	}

	current := project.ChapterAt(index)
	if current == nil {
		return nil, fmt.Errorf("章节位置越界: %d", index)
	}

	prevSummary := storyBeginsSentinel
	if prev := project.ChapterAt(index - 1); prev != nil {
		prevSummary = prev.Summary
	}
	nextSummary := storyContinuesSentinel
	if next := project.ChapterAt(index + 1); next != nil {
		nextSummary = next.Summary
	}

	structure := project.Architecture.PlotStructure
	if structure == "" {
		structure = project.Architecture.MainPlot
	}

	key := planningKey(projectID)
	tag, err := s.guard.Acquire(key)
	if err != nil {
		return nil, err
	}
	defer s.guard.Release(key, tag)

	prompt := fmt.Sprintf(`任务：重写第 %d 章的大纲。
上下文：上章[%s]，下章[%s]。主线构架：%s。
当前标题：%s。
要求：生成承上启下的精彩大纲，纯文本字符串。
返回 JSON: { "title": "建议标题", "summary": "纯文本细纲" }`,
		index+1, prevSummary, nextSummary, structure, current.Title)

	var out struct {
		Title   models.FlexText `json:"title"`
		Summary models.FlexText `json:"summary"`
	}

	if err := s.gateway.GenerateStructured(ctx, GenerationRequest{
		Prompt:       prompt,
		SystemPrompt: "Plot Fixer",
		Tier:         TierHigh,
	}, &out); err != nil {
		return nil, err
	}

	if !s.guard.IsCurrent(key, tag) {
		return nil, ErrStaleResponse
	}

	var rewritten models.Chapter
	err = s.projects.Mutate(projectID, func(p *models.Project) error {
		ch := p.ChapterAt(index)
		if ch == nil {
			return fmt.Errorf("章节位置越界: %d", index)
		}
		ch.Title = out.Title.String()
		ch.Summary = out.Summary.String()
		rewritten = *ch
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &rewritten, nil
}

// UpdateSettings 更新行文风格与情感基调，超出上限的选择截断
func (s *PlannerService) UpdateSettings(projectID string, styles, tones []string) error {
	if len(styles) > models.MaxSettingSelections {
		styles = styles[:models.MaxSettingSelections]
	}
	if len(tones) > models.MaxSettingSelections {
		tones = tones[:models.MaxSettingSelections]
	}
	return s.projects.Mutate(projectID, func(p *models.Project) error {
		p.Settings.Styles = styles
		p.Settings.Tones = tones
		return nil
	})
}

// resolveCast 解析主角与配角名单
// 第一个role含主角标记的角色为主角，缺失时使用兜底称呼；其余角色并入配角串。
func resolveCast(characters []models.Character) (protagonist string, others string) {
	protagonist = protagonistFallback
	names := make([]string, 0, len(characters))
	found := false
	for _, c := range characters {
		if strings.Contains(c.Role, protagonistMarker) {
			if !found {
				protagonist = c.Name
				found = true
			}
			continue
		}
		names = append(names, c.Name)
	}
	others = strings.Join(names, "、")
	return protagonist, others
}

func joinOrDefault(items []string, fallback string) string {
	if len(items) == 0 {
		return fallback
	}
	return strings.Join(items, "、")
}
