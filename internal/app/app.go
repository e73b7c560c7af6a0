// internal/app/app.go
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Corphon/NovelForgeMCP/internal/config"
	"github.com/Corphon/NovelForgeMCP/internal/di"
	"github.com/Corphon/NovelForgeMCP/internal/logger"
	"github.com/Corphon/NovelForgeMCP/internal/services"
	"github.com/Corphon/NovelForgeMCP/internal/storage"

	// 注册可用的LLM提供商
	_ "github.com/Corphon/NovelForgeMCP/internal/llm/providers/google"
	_ "github.com/Corphon/NovelForgeMCP/internal/llm/providers/openai"
)

// App 应用实例，持有运行期的全局资源
type App struct {
	Logger    zerolog.Logger
	stopChan  chan struct{}
	cancelCtx context.CancelFunc
}

var (
	instance *App
	appOnce  sync.Once
)

// GetApp 获取应用单例
func GetApp() *App {
	appOnce.Do(func() {
		instance = &App{
			stopChan: make(chan struct{}),
		}
	})
	return instance
}

// InitServices 按依赖顺序初始化所有服务并注册到DI容器
// 顺序：存储 -> 网关 -> 项目 -> 各业务服务。
func InitServices(env *config.Env) error {
	appLogger := logger.New(env.LogDir, env.DebugMode)
	a := GetApp()
	a.Logger = appLogger

	cfg := config.GetCurrentConfig()
	if cfg == nil {
		return fmt.Errorf("配置系统未初始化")
	}

	fileStorage, err := storage.NewFileStorage(env.DataDir)
	if err != nil {
		return fmt.Errorf("初始化文件存储失败: %w", err)
	}

	gateway := services.NewGatewayService(cfg, appLogger)
	guard := services.NewGenerationGuard()
	progress := services.NewProgressService()

	projects, err := services.NewProjectService(fileStorage, appLogger)
	if err != nil {
		return fmt.Errorf("初始化项目服务失败: %w", err)
	}

	images := services.NewImageService(gateway, appLogger)
	architect := services.NewArchitectService(projects, gateway, images, guard, appLogger)
	planner := services.NewPlannerService(projects, gateway, guard, progress, appLogger)
	logic := services.NewLogicService(projects, gateway, guard, appLogger)
	writer := services.NewWriterService(projects, gateway, guard, appLogger)
	export := services.NewExportService(projects, env.DataDir, appLogger)
	configService := services.NewConfigService(gateway, appLogger)

	container := di.GetContainer()
	container.Register("storage", fileStorage)
	container.Register("gateway", gateway)
	container.Register("guard", guard)
	container.Register("progress", progress)
	container.Register("project", projects)
	container.Register("image", images)
	container.Register("architect", architect)
	container.Register("planner", planner)
	container.Register("logic", logic)
	container.Register("writer", writer)
	container.Register("export", export)
	container.Register("config", configService)

	// 自动保存：定期落盘，进程退出时由Cleanup触发最后一次保存
	ctx, cancel := context.WithCancel(context.Background())
	a.cancelCtx = cancel
	projects.StartAutosave(ctx, env.AutosaveInterval)

	// 定期清理已结束且过保留期的进度跟踪器
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				progress.CleanupCompletedTasks(30 * time.Minute)
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Cleanup 停止后台任务并做退出前的最后一次保存
func (a *App) Cleanup() {
	if a.cancelCtx != nil {
		a.cancelCtx()
	}

	if projects, ok := di.GetContainer().Get("project").(*services.ProjectService); ok && projects != nil {
		if err := projects.Save(); err != nil {
			a.Logger.Error().Err(err).Msg("退出前保存项目失败")
		}
	}

	close(a.stopChan)
}
