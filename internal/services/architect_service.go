// internal/services/architect_service.go
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/Corphon/NovelForgeMCP/internal/models"
)

// ArchitectService 第一阶段：世界观、主线与角色的架构生成
type ArchitectService struct {
	projects *ProjectService
	gateway  *GatewayService
	images   *ImageService
	guard    *GenerationGuard
	logger   zerolog.Logger
}

// NewArchitectService 创建架构服务
func NewArchitectService(projects *ProjectService, gateway *GatewayService, images *ImageService, guard *GenerationGuard, logger zerolog.Logger) *ArchitectService {
	return &ArchitectService{
		projects: projects,
		gateway:  gateway,
		images:   images,
		guard:    guard,
		logger:   logger.With().Str("service", "architect").Logger(),
	}
}

func architectKey(projectID string) string {
	return projectID + ":architect"
}

// BlendIdea 灵感搅拌机：基于题材标签组合生成核心创意
func (s *ArchitectService) BlendIdea(ctx context.Context, projectID string, tags []string) (string, error) {
	if len(tags) == 0 {
		return "", fmt.Errorf("请至少选一个标签")
	}

	key := architectKey(projectID)
	tag, err := s.guard.Acquire(key)
	if err != nil {
		return "", err
	}
	defer s.guard.Release(key, tag)

	prompt := fmt.Sprintf("作为网文策划，基于标签：【%s】。构思一个新颖的小说核心创意。包含一句话简介、核心爽点。", strings.Join(tags, "+"))

	idea, err := s.gateway.Generate(ctx, GenerationRequest{
		Prompt:       prompt,
		SystemPrompt: "Creative Director",
		Tier:         TierHigh,
	})
	if err != nil {
		return "", err
	}

	if !s.guard.IsCurrent(key, tag) {
		return "", ErrStaleResponse
	}

	err = s.projects.Mutate(projectID, func(p *models.Project) error {
		p.Idea = idea
		return nil
	})
	if err != nil {
		return "", err
	}
	return idea, nil
}

// GenerateArchitecture 基于核心创意生成书名、世界观、主线与初始角色
func (s *ArchitectService) GenerateArchitecture(ctx context.Context, projectID string) (*models.Project, error) {
	project, err := s.projects.Get(projectID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(project.Idea) == "" {
		return nil, fmt.Errorf("请先输入核心灵感")
	}

	key := architectKey(projectID)
	tag, err := s.guard.Acquire(key)
	if err != nil {
		return nil, err
	}
	defer s.guard.Release(key, tag)

	prompt := fmt.Sprintf(`基于创意：%s。构建小说架构，返回 JSON: { "title": "书名", "worldBible": { "time": "", "location": "", "rules": "" }, "mainPlot": "主线梗概", "characterList": [ { "name": "主角名", "role": "主角", "plotFunction": "剧情功能(如：金手指提供者/宿敌)", "traits": "", "bio": "" } ], "timeline": "" }`, project.Idea)

	var out struct {
		Title      models.FlexText `json:"title"`
		WorldBible struct {
			Time     models.FlexText `json:"time"`
			Location models.FlexText `json:"location"`
			Rules    models.FlexText `json:"rules"`
		} `json:"worldBible"`
		MainPlot      models.FlexText `json:"mainPlot"`
		Timeline      models.FlexText `json:"timeline"`
		CharacterList []struct {
			Name         models.FlexText `json:"name"`
			Role         models.FlexText `json:"role"`
			PlotFunction models.FlexText `json:"plotFunction"`
			Traits       models.FlexText `json:"traits"`
			Bio          models.FlexText `json:"bio"`
		} `json:"characterList"`
	}

	if err := s.gateway.GenerateStructured(ctx, GenerationRequest{
		Prompt:       prompt,
		SystemPrompt: "Architect",
		Tier:         TierHigh,
	}, &out); err != nil {
		return nil, err
	}

	if !s.guard.IsCurrent(key, tag) {
		return nil, ErrStaleResponse
	}

	title := out.Title.String()
	if title == "" {
		title = "未命名"
	}

	characters := make([]models.Character, 0, len(out.CharacterList))
	for _, c := range out.CharacterList {
		characters = append(characters, models.Character{
			ID:           models.NextLocalID(),
			Name:         c.Name.String(),
			Role:         c.Role.String(),
			PlotFunction: c.PlotFunction.String(),
			Traits:       c.Traits.String(),
			Bio:          c.Bio.String(),
		})
	}

	var updated *models.Project
	err = s.projects.Mutate(projectID, func(p *models.Project) error {
		p.Title = title
		p.Architecture.WorldBible = &models.WorldBible{
			Time:     out.WorldBible.Time.String(),
			Location: out.WorldBible.Location.String(),
			Rules:    out.WorldBible.Rules.String(),
		}
		p.Architecture.MainPlot = out.MainPlot.String()
		p.Architecture.Timeline = out.Timeline.String()
		p.CharacterList = characters
		p.AdvanceStep(2)
		updated = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeepenPlotStructure 将主线梗概扩展为详细主线构架（纯文本）
func (s *ArchitectService) DeepenPlotStructure(ctx context.Context, projectID string) (string, error) {
	project, err := s.projects.Get(projectID)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(project.Architecture.MainPlot) == "" {
		return "", fmt.Errorf("请先生成或输入主线剧情大纲")
	}

	key := architectKey(projectID)
	tag, err := s.guard.Acquire(key)
	if err != nil {
		return "", err
	}
	defer s.guard.Release(key, tag)

	prompt := fmt.Sprintf(`基于以下主线梗概：
"""%s"""

请扩展生成一份【详细主线构架】。
要求：
1. 比梗概更加细节，包含具体的关键事件、伏笔线索、冲突转折点。
2. 完整的阐述剧情过渡，概括出小说从起因到结局的完整构成。
3. 清晰梳理出明线（主角行动）和暗线（阴谋/背景）。
4. 纯文本输出，条理清晰，分阶段描述（如：起、承、转、合）。`, project.Architecture.MainPlot)

	structure, err := s.gateway.Generate(ctx, GenerationRequest{
		Prompt:       prompt,
		SystemPrompt: "Structure Master",
		Tier:         TierHigh,
	})
	if err != nil {
		return "", err
	}

	if !s.guard.IsCurrent(key, tag) {
		return "", ErrStaleResponse
	}

	err = s.projects.Mutate(projectID, func(p *models.Project) error {
		p.Architecture.PlotStructure = structure
		return nil
	})
	if err != nil {
		return "", err
	}
	return structure, nil
}

// DeduceCharacters 基于主线与世界观推导3-5个核心角色并追加到角色表
func (s *ArchitectService) DeduceCharacters(ctx context.Context, projectID string) ([]models.Character, error) {
	project, err := s.projects.Get(projectID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(project.Architecture.MainPlot) == "" {
		return nil, fmt.Errorf("请先生成主线剧情")
	}

	worldBible, _ := json.Marshal(project.Architecture.WorldBible)

	key := architectKey(projectID)
	tag, err := s.guard.Acquire(key)
	if err != nil {
		return nil, err
	}
	defer s.guard.Release(key, tag)

	prompt := fmt.Sprintf(`基于主线：%s。世界观：%s。
请深度思考并推导出 3-5 个最能推动此剧情发展的核心角色（含主角、反派、关键配角）。
返回 JSON 数组: [ { "name": "", "role": "身份", "plotFunction": "剧情功能(如: 引导者/阻碍者/情感寄托)", "traits": "", "bio": "" } ]`,
		project.Architecture.MainPlot, string(worldBible))

	var out []struct {
		Name         models.FlexText `json:"name"`
		Role         models.FlexText `json:"role"`
		PlotFunction models.FlexText `json:"plotFunction"`
		Traits       models.FlexText `json:"traits"`
		Bio          models.FlexText `json:"bio"`
	}

	if err := s.gateway.GenerateStructured(ctx, GenerationRequest{
		Prompt:       prompt,
		SystemPrompt: "Character Expert",
		Tier:         TierHigh,
	}, &out); err != nil {
		return nil, err
	}

	if !s.guard.IsCurrent(key, tag) {
		return nil, ErrStaleResponse
	}

	newChars := make([]models.Character, 0, len(out))
	for _, c := range out {
		newChars = append(newChars, models.Character{
			ID:           models.NextLocalID(),
			Name:         c.Name.String(),
			Role:         c.Role.String(),
			PlotFunction: c.PlotFunction.String(),
			Traits:       c.Traits.String(),
			Bio:          c.Bio.String(),
		})
	}

	err = s.projects.Mutate(projectID, func(p *models.Project) error {
		p.CharacterList = append(p.CharacterList, newChars...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return newChars, nil
}

// RefineCharacter 为单个角色完善详细人设
func (s *ArchitectService) RefineCharacter(ctx context.Context, projectID string, characterID int64) (*models.Character, error) {
	project, err := s.projects.Get(projectID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(project.Architecture.MainPlot) == "" {
		return nil, fmt.Errorf("请先生成主线剧情")
	}

	idx := project.FindCharacter(characterID)
	if idx < 0 {
		return nil, fmt.Errorf("角色不存在: %d", characterID)
	}
	char := project.CharacterList[idx]

	name := char.Name
	if name == "" {
		name = "未命名"
	}
	role := char.Role
	if role == "" {
		role = "未定"
	}
	worldBible, _ := json.Marshal(project.Architecture.WorldBible)

	key := architectKey(projectID)
	tag, err := s.guard.Acquire(key)
	if err != nil {
		return nil, err
	}
	defer s.guard.Release(key, tag)

	prompt := fmt.Sprintf(`基于主线剧情：%s 和世界观：%s。
请为角色【%s】（定位：%s）完善详细人设。
返回 JSON: { "name": "姓名", "role": "身份", "plotFunction": "剧情功能", "traits": "性格", "bio": "小传" }`,
		project.Architecture.MainPlot, string(worldBible), name, role)

	var out struct {
		Name         models.FlexText `json:"name"`
		Role         models.FlexText `json:"role"`
		PlotFunction models.FlexText `json:"plotFunction"`
		Traits       models.FlexText `json:"traits"`
		Bio          models.FlexText `json:"bio"`
	}

	if err := s.gateway.GenerateStructured(ctx, GenerationRequest{
		Prompt:       prompt,
		SystemPrompt: "Character Designer",
		Tier:         TierHigh,
	}, &out); err != nil {
		return nil, err
	}

	if !s.guard.IsCurrent(key, tag) {
		return nil, ErrStaleResponse
	}

	var refined models.Character
	err = s.projects.Mutate(projectID, func(p *models.Project) error {
		i := p.FindCharacter(characterID)
		if i < 0 {
			return fmt.Errorf("角色不存在: %d", characterID)
		}
		c := &p.CharacterList[i]
		c.Name = out.Name.String()
		c.Role = out.Role.String()
		c.PlotFunction = out.PlotFunction.String()
		c.Traits = out.Traits.String()
		c.Bio = out.Bio.String()
		refined = *c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &refined, nil
}

// PaintPortrait 为角色生成立绘
// 图像网关失败时返回确定性的占位图URL，因此本操作总会得到可用的图片地址。
func (s *ArchitectService) PaintPortrait(ctx context.Context, projectID string, characterID int64) (string, error) {
	project, err := s.projects.Get(projectID)
	if err != nil {
		return "", err
	}

	idx := project.FindCharacter(characterID)
	if idx < 0 {
		return "", fmt.Errorf("角色不存在: %d", characterID)
	}
	char := project.CharacterList[idx]
	if char.Name == "" {
		return "", fmt.Errorf("角色尚未命名")
	}

	prompt := fmt.Sprintf("Portrait of %s, %s, %s. Digital art, anime style, high quality.", char.Name, char.Role, char.Traits)
	url := s.images.PaintImage(ctx, prompt)

	err = s.projects.Mutate(projectID, func(p *models.Project) error {
		i := p.FindCharacter(characterID)
		if i < 0 {
			return fmt.Errorf("角色不存在: %d", characterID)
		}
		p.CharacterList[i].ImageURL = url
		return nil
	})
	if err != nil {
		return "", err
	}
	return url, nil
}
