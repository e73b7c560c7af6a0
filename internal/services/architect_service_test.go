// internal/services/architect_service_test.go
package services

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Corphon/NovelForgeMCP/internal/models"
)

func TestBlendIdeaPersistsResult(t *testing.T) {
	stack := newTestStack(t)
	p := stack.projects.Create("新书")

	stack.provider.respond = respondText("一句话简介：当反派觉醒了读者视角。")

	idea, err := stack.architect.BlendIdea(context.Background(), p.ID, []string{"玄幻", "无敌流", "反套路"})
	require.NoError(t, err)
	assert.Equal(t, "一句话简介：当反派觉醒了读者视角。", idea)

	prompt := stack.provider.lastCall(t).Prompt
	assert.Contains(t, prompt, "【玄幻+无敌流+反套路】")
	assert.Equal(t, "fake-high", stack.provider.lastCall(t).Model)

	saved, _ := stack.projects.Get(p.ID)
	assert.Equal(t, idea, saved.Idea)
}

func TestBlendIdeaRequiresTags(t *testing.T) {
	stack := newTestStack(t)
	p := stack.projects.Create("新书")

	_, err := stack.architect.BlendIdea(context.Background(), p.ID, nil)
	require.Error(t, err)
	assert.Equal(t, 0, stack.provider.callCount())
}

func TestGenerateArchitectureReplacesBlueprint(t *testing.T) {
	stack := newTestStack(t)
	p := stack.projects.Create("草稿")
	require.NoError(t, stack.projects.Mutate(p.ID, func(p *models.Project) error {
		p.Idea = "反派觉醒读者视角"
		return nil
	}))

	stack.provider.respond = respondText(`{
		"title": "我能看见剧情线",
		"worldBible": {"time": "近未来", "location": "东海市", "rules": "剧情即法则"},
		"mainPlot": "反派按剧本反杀主角团。",
		"timeline": "第一卷：觉醒。",
		"characterList": [
			{"name": "顾青", "role": "主角", "plotFunction": "剧透者", "traits": "冷静", "bio": "原书反派"}
		]
	}`)

	updated, err := stack.architect.GenerateArchitecture(context.Background(), p.ID)
	require.NoError(t, err)

	assert.Equal(t, "我能看见剧情线", updated.Title)
	assert.Equal(t, "剧情即法则", updated.Architecture.WorldBible.Rules)
	assert.Equal(t, "反派按剧本反杀主角团。", updated.Architecture.MainPlot)
	require.Len(t, updated.CharacterList, 1)
	assert.Equal(t, "顾青", updated.CharacterList[0].Name)
	assert.NotZero(t, updated.CharacterList[0].ID, "角色在本地分配ID")
	assert.Equal(t, 2, updated.CurrentStep, "架构完成后进入编排阶段")
}

func TestGenerateArchitectureRequiresIdea(t *testing.T) {
	stack := newTestStack(t)
	p := stack.projects.Create("空想")

	_, err := stack.architect.GenerateArchitecture(context.Background(), p.ID)
	require.Error(t, err)
	assert.Equal(t, 0, stack.provider.callCount())
}

// 模型未给书名时使用兜底标题
func TestGenerateArchitectureTitleFallback(t *testing.T) {
	stack := newTestStack(t)
	p := stack.projects.Create("草稿")
	require.NoError(t, stack.projects.Mutate(p.ID, func(p *models.Project) error {
		p.Idea = "某个创意"
		return nil
	}))

	stack.provider.respond = respondText(`{"mainPlot": "主线", "characterList": []}`)

	updated, err := stack.architect.GenerateArchitecture(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, "未命名", updated.Title)
}

func TestDeepenPlotStructureSavesResult(t *testing.T) {
	stack := newTestStack(t)
	p := stack.newPlannedProject(t)

	stack.provider.respond = respondText("起：……承：……转：……合：……")

	structure, err := stack.architect.DeepenPlotStructure(context.Background(), p.ID)
	require.NoError(t, err)

	saved, _ := stack.projects.Get(p.ID)
	assert.Equal(t, structure, saved.Architecture.PlotStructure)
}

// 推导的角色追加到已有角色表之后
func TestDeduceCharactersAppends(t *testing.T) {
	stack := newTestStack(t)
	p := stack.newPlannedProject(t)
	before, _ := stack.projects.Get(p.ID)
	existing := len(before.CharacterList)

	stack.provider.respond = respondText(`[
		{"name": "白发老祖", "role": "导师", "plotFunction": "引导者", "traits": "神秘", "bio": ""},
		{"name": "小胖", "role": "挚友", "plotFunction": "情感寄托", "traits": "憨厚", "bio": ""}
	]`)

	added, err := stack.architect.DeduceCharacters(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Len(t, added, 2)

	saved, _ := stack.projects.Get(p.ID)
	assert.Len(t, saved.CharacterList, existing+2)
	assert.Equal(t, "白发老祖", saved.CharacterList[existing].Name)
}

func TestRefineCharacterUpdatesInPlace(t *testing.T) {
	stack := newTestStack(t)
	p := stack.newPlannedProject(t)
	project, _ := stack.projects.Get(p.ID)
	target := project.CharacterList[1] // 苏婉

	stack.provider.respond = respondText(`{"name": "苏婉", "role": "女主角", "plotFunction": "情感寄托", "traits": "外柔内刚", "bio": "药王谷传人"}`)

	refined, err := stack.architect.RefineCharacter(context.Background(), p.ID, target.ID)
	require.NoError(t, err)
	assert.Equal(t, "外柔内刚", refined.Traits)

	prompt := stack.provider.lastCall(t).Prompt
	assert.Contains(t, prompt, "【苏婉】")

	saved, _ := stack.projects.Get(p.ID)
	assert.Equal(t, "药王谷传人", saved.CharacterList[1].Bio)
	assert.Equal(t, target.ID, saved.CharacterList[1].ID, "ID保持不变")
}

func TestRefineCharacterUnknownID(t *testing.T) {
	stack := newTestStack(t)
	p := stack.newPlannedProject(t)

	_, err := stack.architect.RefineCharacter(context.Background(), p.ID, 999999)
	require.Error(t, err)
	assert.Equal(t, 0, stack.provider.callCount())
}

// fake提供者不支持画图，立绘退化为确定性占位图
func TestPaintPortraitFallsBackToPlaceholder(t *testing.T) {
	stack := newTestStack(t)
	p := stack.newPlannedProject(t)
	project, _ := stack.projects.Get(p.ID)
	target := project.CharacterList[0]

	url, err := stack.architect.PaintPortrait(context.Background(), p.ID, target.ID)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "https://picsum.photos/seed/"))
	assert.True(t, strings.HasSuffix(url, "/512/512"))

	saved, _ := stack.projects.Get(p.ID)
	assert.Equal(t, url, saved.CharacterList[0].ImageURL)
}

func TestPlaceholderImageURLDeterministic(t *testing.T) {
	a := PlaceholderImageURL("林寒 portrait")
	b := PlaceholderImageURL("林寒 portrait")
	assert.Equal(t, a, b)
	// 种子只取转义后的前10个字符，开头不同的提示词得到不同占位图
	assert.NotEqual(t, a, PlaceholderImageURL("苏婉 portrait"))
}

// 同一项目的架构类生成互斥
func TestArchitectOperationsShareGuardKey(t *testing.T) {
	stack := newTestStack(t)
	p := stack.newPlannedProject(t)

	tag, err := stack.guard.Acquire(architectKey(p.ID))
	require.NoError(t, err)
	defer stack.guard.Release(architectKey(p.ID), tag)

	_, err = stack.architect.DeepenPlotStructure(context.Background(), p.ID)
	assert.ErrorIs(t, err, ErrGenerationBusy)
}
