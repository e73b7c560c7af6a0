// internal/services/export_service_test.go
package services

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Corphon/NovelForgeMCP/internal/logger"
	"github.com/Corphon/NovelForgeMCP/internal/models"
)

func newExportFixture(t *testing.T) (*ExportService, *ProjectService, *models.Project) {
	t.Helper()
	dir := t.TempDir()
	projects := newProjectService(t, dir)
	export := NewExportService(projects, dir, logger.Nop())

	p := projects.Create("斩龙")
	require.NoError(t, projects.Mutate(p.ID, func(p *models.Project) error {
		p.Architecture.MainPlot = "少年屠龙，终成恶龙。"
		p.Chapters = []models.Chapter{
			{ID: 1, Title: "山村", Summary: "s1"},
			{ID: 2, Title: "出山", Summary: "s2"},
		}
		p.Content[1] = "第一行\n第二行"
		p.Content[2] = "雪夜<独行>"
		return nil
	}))
	return export, projects, p
}

func TestExportProjectTXT(t *testing.T) {
	export, _, p := newExportFixture(t)

	result, err := export.ExportProject(p.ID, models.ExportFormatTXT)
	require.NoError(t, err)

	want := "《斩龙》\n简介：少年屠龙，终成恶龙。\n" +
		"\n第1章 山村\n第一行\n第二行\n" +
		"\n第2章 出山\n雪夜<独行>\n"
	assert.Equal(t, want, result.Content)
	assert.Equal(t, "text/plain; charset=utf-8", result.ContentType)
	assert.Equal(t, "斩龙.txt", result.FileName)
}

func TestExportProjectHTML(t *testing.T) {
	export, _, p := newExportFixture(t)

	result, err := export.ExportProject(p.ID, models.ExportFormatHTML)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(result.Content, "<html><head><meta charset='utf-8'></head><body><h1>斩龙</h1>"))
	assert.Contains(t, result.Content, "<h2>山村</h2><p>第一行<br/>第二行</p>")
	assert.Contains(t, result.Content, "雪夜&lt;独行&gt;", "正文需要HTML转义")
	assert.True(t, strings.HasSuffix(result.Content, "</body></html>"))
}

// JSON导出可以原样导入为新项目
func TestExportProjectJSONRoundTrip(t *testing.T) {
	export, projects, p := newExportFixture(t)

	result, err := export.ExportProject(p.ID, models.ExportFormatJSON)
	require.NoError(t, err)
	assert.Equal(t, "application/json", result.ContentType)

	imported, err := projects.Import([]byte(result.Content))
	require.NoError(t, err)
	assert.NotEqual(t, p.ID, imported.ID)
	assert.Equal(t, "斩龙", imported.Title)
	assert.Equal(t, "少年屠龙，终成恶龙。", imported.Architecture.MainPlot)
	require.Len(t, imported.Chapters, 2)
	assert.Equal(t, "第一行\n第二行", imported.Content[1])
}

func TestExportProjectUnknownFormat(t *testing.T) {
	export, _, p := newExportFixture(t)
	_, err := export.ExportProject(p.ID, "pdf")
	require.Error(t, err)
}

func TestExportProjectToFile(t *testing.T) {
	export, _, p := newExportFixture(t)

	result, err := export.ExportProjectToFile(p.ID, models.ExportFormatTXT)
	require.NoError(t, err)
	require.NotEmpty(t, result.FilePath)

	data, err := os.ReadFile(result.FilePath)
	require.NoError(t, err)
	assert.Equal(t, result.Content, string(data))
	assert.Equal(t, int64(len(data)), result.FileSize)
	assert.Contains(t, result.FilePath, "exports")
}

func TestSanitizeFileName(t *testing.T) {
	assert.Equal(t, "a_b_c", sanitizeFileName(`a/b:c`))
	assert.Equal(t, "untitled", sanitizeFileName("   "))
	assert.Equal(t, "斩龙", sanitizeFileName("斩龙"))
}
