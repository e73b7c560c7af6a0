// internal/services/export_service.go
package services

import (
	"encoding/json"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Corphon/NovelForgeMCP/internal/models"
)

// ExportService 项目导出
// 三种格式都是数据模型的纯序列化：JSON全量备份、TXT稿件、最简HTML稿件。
type ExportService struct {
	projects *ProjectService
	dataDir  string
	logger   zerolog.Logger
}

// NewExportService 创建导出服务
func NewExportService(projects *ProjectService, dataDir string, logger zerolog.Logger) *ExportService {
	return &ExportService{
		projects: projects,
		dataDir:  dataDir,
		logger:   logger.With().Str("service", "export").Logger(),
	}
}

// ExportProject 按指定格式导出项目
func (s *ExportService) ExportProject(projectID, format string) (*models.ExportResult, error) {
	project, err := s.projects.Get(projectID)
	if err != nil {
		return nil, err
	}

	result := &models.ExportResult{
		ProjectID:   projectID,
		Title:       project.Title,
		Format:      format,
		GeneratedAt: time.Now(),
	}

	switch format {
	case models.ExportFormatJSON:
		data, err := json.MarshalIndent(project, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("序列化项目失败: %w", err)
		}
		result.Content = string(data)
		result.ContentType = "application/json"
		result.FileName = project.Title + ".json"

	case models.ExportFormatTXT:
		result.Content = s.formatAsText(project)
		result.ContentType = "text/plain; charset=utf-8"
		result.FileName = project.Title + ".txt"

	case models.ExportFormatHTML:
		result.Content = s.formatAsHTML(project)
		result.ContentType = "text/html; charset=utf-8"
		result.FileName = project.Title + ".html"

	default:
		return nil, fmt.Errorf("不支持的导出格式: %s", format)
	}

	return result, nil
}

// ExportProjectToFile 导出项目并保存到数据目录
func (s *ExportService) ExportProjectToFile(projectID, format string) (*models.ExportResult, error) {
	result, err := s.ExportProject(projectID, format)
	if err != nil {
		return nil, err
	}

	exportDir := filepath.Join(s.dataDir, "exports")
	if err := os.MkdirAll(exportDir, 0755); err != nil {
		return nil, fmt.Errorf("创建导出目录失败: %w", err)
	}

	timestamp := result.GeneratedAt.Format("20060102_150405")
	fileName := fmt.Sprintf("%s_%s.%s", sanitizeFileName(result.Title), timestamp, result.Format)
	filePath := filepath.Join(exportDir, fileName)

	if err := os.WriteFile(filePath, []byte(result.Content), 0644); err != nil {
		return nil, fmt.Errorf("写入导出文件失败: %w", err)
	}

	info, err := os.Stat(filePath)
	if err != nil {
		return nil, fmt.Errorf("获取文件信息失败: %w", err)
	}

	result.FilePath = filePath
	result.FileSize = info.Size()
	s.logger.Info().Str("project_id", projectID).Str("path", filePath).Msg("项目已导出")
	return result, nil
}

// formatAsText 纯文本稿件：书名 + 简介 + 逐章标题与正文
func (s *ExportService) formatAsText(p *models.Project) string {
	var b strings.Builder
	fmt.Fprintf(&b, "《%s》\n简介：%s\n", p.Title, p.Architecture.MainPlot)
	for i, ch := range p.Chapters {
		fmt.Fprintf(&b, "\n第%d章 %s\n%s\n", i+1, ch.Title, p.Content[ch.ID])
	}
	return b.String()
}

// formatAsHTML 最简HTML包装，Word可直接打开
func (s *ExportService) formatAsHTML(p *models.Project) string {
	var b strings.Builder
	b.WriteString("<html><head><meta charset='utf-8'></head><body>")
	fmt.Fprintf(&b, "<h1>%s</h1>", html.EscapeString(p.Title))
	for _, ch := range p.Chapters {
		content := html.EscapeString(p.Content[ch.ID])
		content = strings.ReplaceAll(content, "\n", "<br/>")
		fmt.Fprintf(&b, "<h2>%s</h2><p>%s</p>", html.EscapeString(ch.Title), content)
	}
	b.WriteString("</body></html>")
	return b.String()
}

// sanitizeFileName 去除文件名中的路径分隔符与非法字符
func sanitizeFileName(name string) string {
	replacer := strings.NewReplacer(
		"/", "_", "\\", "_", ":", "_", "*", "_",
		"?", "_", "\"", "_", "<", "_", ">", "_", "|", "_",
	)
	name = replacer.Replace(strings.TrimSpace(name))
	if name == "" {
		name = "untitled"
	}
	return name
}
