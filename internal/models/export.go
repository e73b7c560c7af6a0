// internal/models/export.go
package models

import (
	"time"
)

// 支持的导出格式
const (
	ExportFormatJSON = "json" // 全量备份，可重新导入
	ExportFormatTXT  = "txt"  // 纯文本稿件
	ExportFormatHTML = "html" // 最简HTML稿件（Word可打开）
)

// ExportResult 导出结果
type ExportResult struct {
	ProjectID   string    `json:"project_id"`
	Title       string    `json:"title"`
	Format      string    `json:"format"`
	FileName    string    `json:"file_name"`
	ContentType string    `json:"content_type"`
	Content     string    `json:"content"`
	GeneratedAt time.Time `json:"generated_at"`
	FilePath    string    `json:"file_path,omitempty"` // 落盘路径（若已保存）
	FileSize    int64     `json:"file_size,omitempty"`
}
