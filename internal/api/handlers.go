// internal/api/handlers.go
package api

import (
	"io"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Corphon/NovelForgeMCP/internal/models"
	"github.com/Corphon/NovelForgeMCP/internal/services"
)

// Handler API处理器，持有所有业务服务
type Handler struct {
	Projects  *services.ProjectService
	Architect *services.ArchitectService
	Planner   *services.PlannerService
	Logic     *services.LogicService
	Writer    *services.WriterService
	Export    *services.ExportService
	Config    *services.ConfigService
	Progress  *services.ProgressService
	Guard     *services.GenerationGuard
}

// NewHandler 创建API处理器
func NewHandler(
	projects *services.ProjectService,
	architect *services.ArchitectService,
	planner *services.PlannerService,
	logic *services.LogicService,
	writer *services.WriterService,
	export *services.ExportService,
	config *services.ConfigService,
	progress *services.ProgressService,
	guard *services.GenerationGuard,
) *Handler {
	return &Handler{
		Projects:  projects,
		Architect: architect,
		Planner:   planner,
		Logic:     logic,
		Writer:    writer,
		Export:    export,
		Config:    config,
		Progress:  progress,
		Guard:     guard,
	}
}

// ---- 项目管理 ----

// ListProjects 列出全部项目
func (h *Handler) ListProjects(c *gin.Context) {
	respondSuccess(c, h.Projects.List())
}

// CreateProject 创建项目
func (h *Handler) CreateProject(c *gin.Context) {
	var req struct {
		Title string `json:"title"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, "请求格式错误")
		return
	}
	respondCreated(c, h.Projects.Create(req.Title))
}

// GetProject 获取单个项目
func (h *Handler) GetProject(c *gin.Context) {
	project, err := h.Projects.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, project)
}

// DeleteProject 删除项目，并废弃其在途生成
func (h *Handler) DeleteProject(c *gin.Context) {
	id := c.Param("id")
	if err := h.Projects.Delete(id); err != nil {
		respondError(c, err)
		return
	}
	h.Guard.CancelProject(id)
	respondSuccess(c, nil, "项目已删除")
}

// CancelGeneration 废弃项目的在途生成
// 客户端离开项目或放弃等待时调用，晚到的响应会被丢弃。
func (h *Handler) CancelGeneration(c *gin.Context) {
	h.Guard.CancelProject(c.Param("id"))
	respondSuccess(c, nil, "已取消在途生成")
}

// ImportProject 导入完整项目JSON
func (h *Handler) ImportProject(c *gin.Context) {
	data, err := io.ReadAll(io.LimitReader(c.Request.Body, 32<<20))
	if err != nil {
		respondValidation(c, "读取请求体失败")
		return
	}
	project, err := h.Projects.Import(data)
	if err != nil {
		respondValidation(c, err.Error())
		return
	}
	respondCreated(c, project)
}

// ExportProject 导出项目，format取json/txt/html
func (h *Handler) ExportProject(c *gin.Context) {
	format := c.DefaultQuery("format", models.ExportFormatJSON)
	result, err := h.Export.ExportProject(c.Param("id"), format)
	if err != nil {
		respondError(c, err)
		return
	}

	if c.Query("download") == "true" {
		c.Header("Content-Disposition", "attachment; filename=\""+result.FileName+"\"")
		c.Data(200, result.ContentType, []byte(result.Content))
		return
	}
	respondSuccess(c, result)
}

// ExportProjectToFile 导出项目并保存到服务器数据目录
func (h *Handler) ExportProjectToFile(c *gin.Context) {
	format := c.DefaultQuery("format", models.ExportFormatJSON)
	result, err := h.Export.ExportProjectToFile(c.Param("id"), format)
	if err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, result)
}

// SaveProjects 立即落盘（用于页面离开信号）
func (h *Handler) SaveProjects(c *gin.Context) {
	if err := h.Projects.Save(); err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, nil, "已保存")
}

// ---- 第一阶段：架构 ----

// BlendIdea 灵感搅拌机
func (h *Handler) BlendIdea(c *gin.Context) {
	var req struct {
		Tags []string `json:"tags"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, "请求格式错误")
		return
	}
	idea, err := h.Architect.BlendIdea(c.Request.Context(), c.Param("id"), req.Tags)
	if err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, gin.H{"idea": idea})
}

// UpdateIdea 手动更新核心灵感
func (h *Handler) UpdateIdea(c *gin.Context) {
	var req struct {
		Idea string `json:"idea"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, "请求格式错误")
		return
	}
	err := h.Projects.Mutate(c.Param("id"), func(p *models.Project) error {
		p.Idea = req.Idea
		return nil
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, nil)
}

// GenerateArchitecture 生成小说架构
func (h *Handler) GenerateArchitecture(c *gin.Context) {
	project, err := h.Architect.GenerateArchitecture(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, project)
}

// DeepenPlotStructure 深化详细主线构架
func (h *Handler) DeepenPlotStructure(c *gin.Context) {
	structure, err := h.Architect.DeepenPlotStructure(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, gin.H{"plot_structure": structure})
}

// DeduceCharacters 推导核心角色
func (h *Handler) DeduceCharacters(c *gin.Context) {
	chars, err := h.Architect.DeduceCharacters(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, chars)
}

// RefineCharacter 完善单个角色人设
func (h *Handler) RefineCharacter(c *gin.Context) {
	charID, ok := paramInt64(c, "charId")
	if !ok {
		return
	}
	char, err := h.Architect.RefineCharacter(c.Request.Context(), c.Param("id"), charID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, char)
}

// PaintPortrait 生成角色立绘
func (h *Handler) PaintPortrait(c *gin.Context) {
	charID, ok := paramInt64(c, "charId")
	if !ok {
		return
	}
	url, err := h.Architect.PaintPortrait(c.Request.Context(), c.Param("id"), charID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, gin.H{"image_url": url})
}

// ---- 第二阶段：编排 ----

// UpdateSettings 更新风格与基调
func (h *Handler) UpdateSettings(c *gin.Context) {
	var req struct {
		Styles []string `json:"styles"`
		Tones  []string `json:"tones"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, "请求格式错误")
		return
	}
	if err := h.Planner.UpdateSettings(c.Param("id"), req.Styles, req.Tones); err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, nil)
}

// GenerateBatch 批量生成章节大纲
func (h *Handler) GenerateBatch(c *gin.Context) {
	var req services.BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, "请求格式错误")
		return
	}
	req.ProjectID = c.Param("id")

	result, err := h.Planner.GenerateBatch(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, result)
}

// InsertChapter 插入占位章节
func (h *Handler) InsertChapter(c *gin.Context) {
	index, ok := paramInt(c, "index")
	if !ok {
		return
	}
	chapter, err := h.Planner.Insert(c.Param("id"), index)
	if err != nil {
		respondError(c, err)
		return
	}
	respondCreated(c, chapter)
}

// DeleteChapter 删除章节
func (h *Handler) DeleteChapter(c *gin.Context) {
	index, ok := paramInt(c, "index")
	if !ok {
		return
	}
	if err := h.Planner.Delete(c.Param("id"), index); err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, nil, "章节已删除")
}

// RewriteChapter 重写章节大纲
func (h *Handler) RewriteChapter(c *gin.Context) {
	index, ok := paramInt(c, "index")
	if !ok {
		return
	}
	chapter, err := h.Planner.Rewrite(c.Request.Context(), c.Param("id"), index)
	if err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, chapter)
}

// ---- 逻辑纠正 ----

// ScanLogic 扫描全书逻辑问题
// 返回的报告由客户端持有，应用时原样带回；不落盘。
func (h *Handler) ScanLogic(c *gin.Context) {
	report, err := h.Logic.Scan(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if report.Clean() {
		respondSuccess(c, report, "完美！逻辑检测器未发现明显的前后矛盾或主线偏离。")
		return
	}
	respondSuccess(c, report)
}

// ApplyLogicFix 应用单个逻辑修复
func (h *Handler) ApplyLogicFix(c *gin.Context) {
	var req struct {
		Report     models.LogicReport `json:"report"`
		IssueIndex int                `json:"issue_index"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, "请求格式错误")
		return
	}
	req.Report.ProjectID = c.Param("id")

	if err := h.Logic.ApplyOne(&req.Report, req.IssueIndex); err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, req.Report)
}

// EditLogicFix 修改待应用的修复建议
func (h *Handler) EditLogicFix(c *gin.Context) {
	var req struct {
		Report     models.LogicReport `json:"report"`
		IssueIndex int                `json:"issue_index"`
		NewText    string             `json:"new_text"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, "请求格式错误")
		return
	}
	req.Report.ProjectID = c.Param("id")

	if err := h.Logic.Edit(&req.Report, req.IssueIndex, req.NewText); err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, req.Report)
}

// ApplyAllLogicFixes 一次性应用全部修复
func (h *Handler) ApplyAllLogicFixes(c *gin.Context) {
	var req struct {
		Report models.LogicReport `json:"report"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, "请求格式错误")
		return
	}
	req.Report.ProjectID = c.Param("id")

	applied, err := h.Logic.ApplyAll(&req.Report)
	if err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, gin.H{"applied": applied})
}

// ---- 第三阶段：写作 ----

// WriteChapter 撰写/续写章节正文
func (h *Handler) WriteChapter(c *gin.Context) {
	index, ok := paramInt(c, "index")
	if !ok {
		return
	}

	var req services.WriteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, "请求格式错误")
		return
	}
	req.ProjectID = c.Param("id")
	req.ChapterIndex = index
	if req.Mode == "" {
		req.Mode = services.WriteModeAuto
	}

	result, err := h.Writer.WriteChapter(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, result)
}

// SaveChapterContent 保存手动编辑的正文
func (h *Handler) SaveChapterContent(c *gin.Context) {
	index, ok := paramInt(c, "index")
	if !ok {
		return
	}

	var req struct {
		Content string `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, "请求格式错误")
		return
	}
	if err := h.Writer.SaveContent(c.Param("id"), index, req.Content); err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, gin.H{"word_count": services.CountWords(req.Content)})
}

// ---- 设置与预置数据 ----

// GetLLMSettings 读取LLM设置（凭据掩码）
func (h *Handler) GetLLMSettings(c *gin.Context) {
	respondSuccess(c, h.Config.GetSettings())
}

// UpdateLLMSettings 更新LLM设置
func (h *Handler) UpdateLLMSettings(c *gin.Context) {
	var req services.UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, "请求格式错误")
		return
	}
	if err := h.Config.UpdateSettings(req); err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, h.Config.GetSettings(), "设置已更新")
}

// GetPresets 返回题材/风格/基调/预置作家
func (h *Handler) GetPresets(c *gin.Context) {
	respondSuccess(c, gin.H{
		"genres":         models.Genres,
		"writing_styles": models.WritingStyles,
		"story_tones":    models.StoryTones,
		"preset_writers": models.PresetWriters,
		"max_selections": models.MaxSettingSelections,
	})
}

// GetTaskProgress 轮询任务进度
func (h *Handler) GetTaskProgress(c *gin.Context) {
	tracker, ok := h.Progress.GetTracker(c.Param("taskId"))
	if !ok {
		respondValidation(c, "任务不存在")
		return
	}
	respondSuccess(c, gin.H{
		"task_id":  tracker.TaskID,
		"progress": tracker.Progress,
		"message":  tracker.Message,
		"status":   tracker.Status,
	})
}

// ---- 辅助 ----

func paramInt(c *gin.Context, name string) (int, bool) {
	v, err := strconv.Atoi(c.Param(name))
	if err != nil {
		respondValidation(c, "参数 "+name+" 必须是整数")
		return 0, false
	}
	return v, true
}

func paramInt64(c *gin.Context, name string) (int64, bool) {
	v, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		respondValidation(c, "参数 "+name+" 必须是整数")
		return 0, false
	}
	return v, true
}
