// internal/api/router.go
package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/Corphon/CineWeaverMCP/internal/config"
	"github.com/Corphon/CineWeaverMCP/internal/di"
	"github.com/Corphon/CineWeaverMCP/internal/services"
	"github.com/Corphon/CineWeaverMCP/internal/storage"
)

// SetupRouter 构建gin路由
func SetupRouter(container *di.Container) *gin.Engine {
	cfg := container.MustGet("config").(*config.Config)

	if !cfg.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()

	// CORS仅在配置了来源时启用（同源部署无需）
	if len(cfg.CORSOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	handler := NewHandler(
		container.MustGet("generation_service").(*services.GenerationService),
		container.MustGet("export_service").(*services.ExportService),
		container.MustGet("progress_service").(*services.ProgressService),
		container.MustGet("session_store").(storage.SessionStore),
		cfg,
	)

	router.Use(SessionMiddleware(cfg))

	// 常规接口限流；生成接口单独更严格的配额
	generalLimiter := NewRateLimiter(120, time.Minute)
	generateLimiter := NewRateLimiter(10, time.Minute)
	router.Use(RateLimitMiddleware(generalLimiter))

	router.GET("/api/health", handler.HealthCheck)
	router.GET("/api/stats", handler.GetStats)
	router.GET("/api/llm/status", handler.GetLLMStatus)

	router.POST("/set_username", handler.SetUsername)
	router.POST("/generate_content", RateLimitMiddleware(generateLimiter), handler.GenerateContent)
	router.POST("/download/:format_type", handler.DownloadFile)

	router.GET("/ws/progress/:task_id", handler.ProgressWebSocket)

	return router
}
