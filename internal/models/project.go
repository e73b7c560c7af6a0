// internal/models/project.go
package models

import "time"

// WorldBible 世界观设定
type WorldBible struct {
	Time     string `json:"time"`     // 时代背景
	Location string `json:"location"` // 主要地点
	Rules    string `json:"rules"`    // 核心法则/设定
}

// Architecture 小说架构（第一阶段的产出）
// PlotStructure 是 MainPlot 的细化版本，存在时优先作为章节生成的素材来源
type Architecture struct {
	WorldBible    *WorldBible `json:"worldBible,omitempty"`
	MainPlot      string      `json:"mainPlot,omitempty"`
	PlotStructure string      `json:"plotStructure,omitempty"`
	Timeline      string      `json:"timeline,omitempty"`
}

// Character 核心角色
type Character struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Role         string `json:"role"`         // 身份定位，约定含"主角"字样者视为主角
	PlotFunction string `json:"plotFunction"` // 剧情功能，如：宿敌/导师/情感寄托
	Traits       string `json:"traits"`
	Bio          string `json:"bio"`
	ImageURL     string `json:"imageUrl"`
}

// Chapter 章节大纲，顺序即叙事顺序
type Chapter struct {
	ID      int64  `json:"id"`
	Title   string `json:"title"`
	Summary string `json:"summary"`
}

// ProjectSettings 行文风格与情感基调（各最多3项）
type ProjectSettings struct {
	Styles []string `json:"styles"`
	Tones  []string `json:"tones"`
}

// Project 持久化的基本单元：一本书的全部状态
type Project struct {
	ID            string           `json:"id"`
	Title         string           `json:"title"`
	LastModified  int64            `json:"lastModified"` // Unix 毫秒
	Idea          string           `json:"idea"`
	CurrentStep   int              `json:"currentStep"`  // 1=架构 2=编排 3=写作，只升不降
	PlotProgress  int              `json:"plotProgress"` // 0-100，正常生成流程下单调不减
	Architecture  Architecture     `json:"architecture"`
	CharacterList []Character      `json:"characterList"`
	Chapters      []Chapter        `json:"chapters"`
	Content       map[int64]string `json:"content"` // 章节ID -> 正文
	Settings      ProjectSettings  `json:"settings"`
}

// NewProject 创建一个空项目
func NewProject(id, title string) *Project {
	return &Project{
		ID:            id,
		Title:         title,
		LastModified:  time.Now().UnixMilli(),
		CurrentStep:   1,
		PlotProgress:  0,
		CharacterList: []Character{},
		Chapters:      []Chapter{},
		Content:       map[int64]string{},
		Settings:      ProjectSettings{Styles: []string{}, Tones: []string{}},
	}
}

// Touch 更新最后修改时间
func (p *Project) Touch() {
	p.LastModified = time.Now().UnixMilli()
}

// Normalize 为旧版本存档补齐缺失字段（导入/加载时调用）
// 旧数据可能没有 plotProgress、plotFunction、content 映射等字段
func (p *Project) Normalize() {
	if p.PlotProgress < 0 {
		p.PlotProgress = 0
	}
	if p.PlotProgress > 100 {
		p.PlotProgress = 100
	}
	if p.CurrentStep < 1 {
		p.CurrentStep = 1
	}
	if p.CurrentStep > 3 {
		p.CurrentStep = 3
	}
	if p.CharacterList == nil {
		p.CharacterList = []Character{}
	}
	if p.Chapters == nil {
		p.Chapters = []Chapter{}
	}
	if p.Content == nil {
		p.Content = map[int64]string{}
	}
	if p.Settings.Styles == nil {
		p.Settings.Styles = []string{}
	}
	if p.Settings.Tones == nil {
		p.Settings.Tones = []string{}
	}
}

// AdvanceStep 推进创作阶段，只升不降
func (p *Project) AdvanceStep(step int) {
	if step > p.CurrentStep && step <= 3 {
		p.CurrentStep = step
	}
}

// FindCharacter 按ID查找角色，未找到返回-1
func (p *Project) FindCharacter(id int64) int {
	for i := range p.CharacterList {
		if p.CharacterList[i].ID == id {
			return i
		}
	}
	return -1
}

// ChapterAt 安全地取章节，越界返回nil
func (p *Project) ChapterAt(index int) *Chapter {
	if index < 0 || index >= len(p.Chapters) {
		return nil
	}
	return &p.Chapters[index]
}
