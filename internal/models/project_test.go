// internal/models/project_test.go
package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAdvanceStepNeverLowers(t *testing.T) {
	p := NewProject("id", "书")
	assert.Equal(t, 1, p.CurrentStep)

	p.AdvanceStep(3)
	assert.Equal(t, 3, p.CurrentStep)

	p.AdvanceStep(2)
	assert.Equal(t, 3, p.CurrentStep, "阶段只升不降")

	p.AdvanceStep(9)
	assert.Equal(t, 3, p.CurrentStep, "越界阶段被忽略")
}

func TestNormalizeFillsLegacyDefaults(t *testing.T) {
	p := &Project{ID: "x", Title: "旧档", PlotProgress: 150}
	p.Normalize()

	assert.Equal(t, 100, p.PlotProgress)
	assert.Equal(t, 1, p.CurrentStep)
	assert.NotNil(t, p.Chapters)
	assert.NotNil(t, p.CharacterList)
	assert.NotNil(t, p.Content)
	assert.NotNil(t, p.Settings.Styles)
}

func TestChapterAtBounds(t *testing.T) {
	p := NewProject("id", "书")
	p.Chapters = []Chapter{{ID: 1, Title: "独章"}}

	assert.Nil(t, p.ChapterAt(-1))
	assert.Nil(t, p.ChapterAt(1))
	if ch := p.ChapterAt(0); assert.NotNil(t, ch) {
		assert.Equal(t, "独章", ch.Title)
	}
}

func TestFindCharacter(t *testing.T) {
	p := NewProject("id", "书")
	p.CharacterList = []Character{{ID: 7, Name: "甲"}, {ID: 8, Name: "乙"}}

	assert.Equal(t, 1, p.FindCharacter(8))
	assert.Equal(t, -1, p.FindCharacter(99))
}
