// cmd/server/main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Corphon/NovelForgeMCP/internal/api"
	"github.com/Corphon/NovelForgeMCP/internal/app"
	"github.com/Corphon/NovelForgeMCP/internal/config"
	"github.com/Corphon/NovelForgeMCP/internal/di"
)

func main() {
	log.Println("🚀 启动 NovelForgeMCP 服务器...")

	// 1. 加载基础配置
	env, err := config.Load()
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	log.Printf("✅ 基础配置加载完成，端口: %s", env.Port)

	// 2. 初始化配置系统
	if err := config.InitConfig(env); err != nil {
		log.Fatalf("初始化配置系统失败: %v", err)
	}
	log.Println("✅ 配置系统初始化完成")

	// 3. 初始化所有服务（按依赖顺序）
	if err := app.InitServices(env); err != nil {
		log.Fatalf("初始化服务失败: %v", err)
	}
	log.Println("✅ 所有服务初始化完成")

	// 4. 服务健康检查
	performHealthCheck()

	// 5. 设置路由
	router, err := api.SetupRouter()
	if err != nil {
		log.Fatalf("❌ 设置路由失败: %v", err)
	}
	log.Println("✅ 路由设置完成")

	// 6. 启动服务器
	log.Printf("🌐 服务器启动在端口 %s", env.Port)
	log.Printf("🔗 访问地址: http://localhost:%s", env.Port)

	setupGracefulShutdown(router, env.Port)
}

// performHealthCheck 检查关键服务是否已注册
func performHealthCheck() {
	container := di.GetContainer()

	criticalServices := []string{"gateway", "project", "planner", "logic", "config"}
	for _, name := range criticalServices {
		if !container.Has(name) {
			log.Printf("⚠️ 关键服务未注册: %s", name)
		}
	}

	log.Println("✅ 服务健康检查通过")
}

// setupGracefulShutdown 启动服务器并处理优雅关闭
func setupGracefulShutdown(router *gin.Engine, port string) {
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ 启动服务器失败: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 正在关闭服务器...")

	// 停止后台任务并做退出前的最后一次保存
	app.GetApp().Cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("❌ 服务器强制关闭: %v", err)
	}

	log.Println("✅ 服务器优雅关闭完成")
}
