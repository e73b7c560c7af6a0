// internal/models/logic.go
package models

// LogicIssue 逻辑纠正器发现的单处剧情问题。
// ChapterIndex 指向扫描时刻 chapters 序列中的下标；章节被增删后即可能失效，
// 应用修复前必须按当前章节列表重新校验。
type LogicIssue struct {
	ChapterIndex int    `json:"chapterIndex"`
	Title        string `json:"title"`
	Reason       string `json:"reason"`
	OldSummary   string `json:"oldSummary"`
	NewSummary   string `json:"newSummary"`
}

// LogicReport 一次扫描产出的待处理问题集合。
// 只存在于调用方手中，不写入项目存档；对话框关闭未应用即作废。
type LogicReport struct {
	ProjectID string       `json:"projectId"`
	Issues    []LogicIssue `json:"issues"`
}

// Clean 表示扫描未发现任何问题
func (r *LogicReport) Clean() bool {
	return len(r.Issues) == 0
}

// Remove 从待处理列表中移除指定下标的问题
func (r *LogicReport) Remove(index int) {
	if index < 0 || index >= len(r.Issues) {
		return
	}
	r.Issues = append(r.Issues[:index], r.Issues[index+1:]...)
}
