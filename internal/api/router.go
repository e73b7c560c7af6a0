// internal/api/router.go
package api

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/Corphon/NovelForgeMCP/internal/config"
	"github.com/Corphon/NovelForgeMCP/internal/di"
	"github.com/Corphon/NovelForgeMCP/internal/services"
)

// SetupRouter 配置HTTP路由
// 只从容器获取服务，不创建新实例。
func SetupRouter() (*gin.Engine, error) {
	cfg := config.GetCurrentConfig()
	container := di.GetContainer()

	projects, ok := container.Get("project").(*services.ProjectService)
	if !ok {
		return nil, fmt.Errorf("项目服务未正确初始化")
	}
	architect, ok := container.Get("architect").(*services.ArchitectService)
	if !ok {
		return nil, fmt.Errorf("架构服务未正确初始化")
	}
	planner, ok := container.Get("planner").(*services.PlannerService)
	if !ok {
		return nil, fmt.Errorf("编排服务未正确初始化")
	}
	logic, ok := container.Get("logic").(*services.LogicService)
	if !ok {
		return nil, fmt.Errorf("逻辑纠正服务未正确初始化")
	}
	writer, ok := container.Get("writer").(*services.WriterService)
	if !ok {
		return nil, fmt.Errorf("写作服务未正确初始化")
	}
	export, ok := container.Get("export").(*services.ExportService)
	if !ok {
		return nil, fmt.Errorf("导出服务未正确初始化")
	}
	configService, ok := container.Get("config").(*services.ConfigService)
	if !ok {
		return nil, fmt.Errorf("配置服务未正确初始化")
	}
	progress, ok := container.Get("progress").(*services.ProgressService)
	if !ok {
		return nil, fmt.Errorf("进度服务未正确初始化")
	}
	guard, ok := container.Get("guard").(*services.GenerationGuard)
	if !ok {
		return nil, fmt.Errorf("生成守卫未正确初始化")
	}

	handler := NewHandler(projects, architect, planner, logic, writer, export, configService, progress, guard)

	if cfg != nil && !cfg.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()
	r.Use(corsMiddleware())

	api := r.Group("/api")
	api.Use(defaultRateLimit())
	{
		// 项目管理
		api.GET("/projects", handler.ListProjects)
		api.POST("/projects", handler.CreateProject)
		api.POST("/projects/import", handler.ImportProject)
		api.POST("/projects/save", handler.SaveProjects)
		api.GET("/projects/:id", handler.GetProject)
		api.DELETE("/projects/:id", handler.DeleteProject)
		api.GET("/projects/:id/export", handler.ExportProject)
		api.POST("/projects/:id/export/file", handler.ExportProjectToFile)
		api.PUT("/projects/:id/idea", handler.UpdateIdea)
		api.PUT("/projects/:id/settings", handler.UpdateSettings)
		api.POST("/projects/:id/generation/cancel", handler.CancelGeneration)

		// 逻辑纠正的应用与编辑不经过生成网关
		api.POST("/projects/:id/logic/apply", handler.ApplyLogicFix)
		api.POST("/projects/:id/logic/edit", handler.EditLogicFix)
		api.POST("/projects/:id/logic/apply-all", handler.ApplyAllLogicFixes)

		// 章节编辑
		api.POST("/projects/:id/chapters/:index/insert", handler.InsertChapter)
		api.DELETE("/projects/:id/chapters/:index", handler.DeleteChapter)
		api.PUT("/projects/:id/chapters/:index/content", handler.SaveChapterContent)

		// 设置与预置数据
		api.GET("/settings/llm", handler.GetLLMSettings)
		api.PUT("/settings/llm", handler.UpdateLLMSettings)
		api.GET("/presets", handler.GetPresets)
		api.GET("/progress/:taskId", handler.GetTaskProgress)
	}

	// 生成类接口单独限流
	generate := r.Group("/api")
	generate.Use(generationRateLimit())
	{
		generate.POST("/projects/:id/idea/blend", handler.BlendIdea)
		generate.POST("/projects/:id/architecture", handler.GenerateArchitecture)
		generate.POST("/projects/:id/architecture/structure", handler.DeepenPlotStructure)
		generate.POST("/projects/:id/characters/deduce", handler.DeduceCharacters)
		generate.POST("/projects/:id/characters/:charId/refine", handler.RefineCharacter)
		generate.POST("/projects/:id/characters/:charId/portrait", handler.PaintPortrait)
		generate.POST("/projects/:id/chapters/batch", handler.GenerateBatch)
		generate.POST("/projects/:id/chapters/:index/rewrite", handler.RewriteChapter)
		generate.POST("/projects/:id/chapters/:index/write", handler.WriteChapter)
		generate.POST("/projects/:id/logic/scan", handler.ScanLogic)
	}

	// 进度的WebSocket推送
	r.GET("/ws/progress/:taskId", handler.StreamTaskProgress)

	return r, nil
}
