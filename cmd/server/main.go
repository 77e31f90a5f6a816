// cmd/server/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Corphon/CineWeaverMCP/internal/api"
	"github.com/Corphon/CineWeaverMCP/internal/config"
	"github.com/Corphon/CineWeaverMCP/internal/di"
	"github.com/Corphon/CineWeaverMCP/internal/llm"
	"github.com/Corphon/CineWeaverMCP/internal/services"
	"github.com/Corphon/CineWeaverMCP/internal/storage"
	"github.com/Corphon/CineWeaverMCP/internal/utils"

	// 注册内置LLM提供商
	_ "github.com/Corphon/CineWeaverMCP/internal/llm/providers/ollama"
	_ "github.com/Corphon/CineWeaverMCP/internal/llm/providers/openai"
)

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("配置加载失败: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	if err := utils.InitLogger(cfg.LogDir, cfg.DebugMode); err != nil {
		fmt.Printf("日志初始化失败: %v\n", err)
		os.Exit(1)
	}
	logger := utils.GetLogger()
	logger.Info("CineWeaver server starting (provider=%s model=%s)", cfg.AIProvider, cfg.AIModel)

	// 初始化LLM提供商
	provider, err := llm.GetProvider(cfg.AIProvider, cfg.LLMConfig())
	if err != nil {
		logger.Fatal("LLM提供商初始化失败: %v", err)
	}

	// 初始化会话存储
	sessionStore, err := buildSessionStore(cfg)
	if err != nil {
		logger.Fatal("会话存储初始化失败: %v", err)
	}
	defer sessionStore.Close()

	// 初始化服务
	progressService := services.NewProgressService()
	generationService := services.NewGenerationService(provider, cfg, progressService)
	exportService := services.NewExportService()

	// 定期清理已完成任务的进度跟踪器
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			if removed := progressService.CleanupCompletedTasks(30 * time.Minute); removed > 0 {
				logger.Debug("cleaned up %d finished progress trackers", removed)
			}
		}
	}()

	// 注册服务到容器
	container := di.GetContainer()
	container.Register("config", cfg)
	container.Register("llm_provider", provider)
	container.Register("session_store", sessionStore)
	container.Register("progress_service", progressService)
	container.Register("generation_service", generationService)
	container.Register("export_service", exportService)

	router := api.SetupRouter(container)

	server := &http.Server{
		Addr:    cfg.Host + ":" + cfg.Port,
		Handler: router,
	}

	// 启动服务器
	go func() {
		logger.Info("listening on http://%s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("服务器启动失败: %v", err)
		}
	}()

	// 等待退出信号，优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("强制关闭服务器: %v", err)
	}
	logger.Info("server stopped")
}

// buildSessionStore 按配置选择会话存储后端
func buildSessionStore(cfg *config.Config) (storage.SessionStore, error) {
	switch cfg.SessionBackend {
	case "redis":
		return storage.NewRedisStore(context.Background(), storage.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      cfg.SessionTTL,
		})
	default:
		return storage.NewMemoryStore(cfg.SessionTTL), nil
	}
}
