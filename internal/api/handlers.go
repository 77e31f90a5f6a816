// internal/api/handlers.go
package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Corphon/CineWeaverMCP/internal/config"
	"github.com/Corphon/CineWeaverMCP/internal/llm"
	"github.com/Corphon/CineWeaverMCP/internal/models"
	"github.com/Corphon/CineWeaverMCP/internal/services"
	"github.com/Corphon/CineWeaverMCP/internal/storage"
	"github.com/Corphon/CineWeaverMCP/internal/utils"
)

// Handler API处理器集合
type Handler struct {
	Generation *services.GenerationService
	Export     *services.ExportService
	Progress   *services.ProgressService
	Sessions   storage.SessionStore
	Config     *config.Config
	Response   *ResponseHelper
	logger     *utils.Logger
}

// NewHandler 创建API处理器
func NewHandler(
	generation *services.GenerationService,
	export *services.ExportService,
	progress *services.ProgressService,
	sessions storage.SessionStore,
	cfg *config.Config,
) *Handler {
	return &Handler{
		Generation: generation,
		Export:     export,
		Progress:   progress,
		Sessions:   sessions,
		Config:     cfg,
		Response:   NewResponseHelper(),
		logger:     utils.GetLogger(),
	}
}

// HealthCheck 健康检查
func (h *Handler) HealthCheck(c *gin.Context) {
	h.Response.Success(c, gin.H{"ok": true, "status": "healthy"})
}

// generateContentBody /generate_content 请求体
type generateContentBody struct {
	Story     string `json:"story"`
	StoryIdea string `json:"story_idea"`
	Prompt    string `json:"prompt"`

	Language      string   `json:"language"`
	Temperature   *float64 `json:"temperature"`
	MinStoryChars *int     `json:"min_story_chars"`
	SingleCall    bool     `json:"single_call"`
	TaskID        string   `json:"task_id"`

	// 存储模式：调用方直接提交已生成的产物
	Screenplay  string `json:"screenplay"`
	Characters  string `json:"characters"`
	SoundDesign string `json:"sound_design"`
}

// storyText 按别名优先级取故事前提
func (b *generateContentBody) storyText() string {
	for _, candidate := range []string{b.Story, b.StoryIdea, b.Prompt} {
		if trimmed := strings.TrimSpace(candidate); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

// GenerateContent 生成或存储剧本产物
//
// 提供story时执行生成管线；未提供story时作为存储端点接收已
// 生成的三项产物，供后续下载。
func (h *Handler) GenerateContent(c *gin.Context) {
	var body generateContentBody
	if err := c.ShouldBindJSON(&body); err != nil {
		h.Response.Error(c, http.StatusBadRequest, "Request body must be JSON object.", ErrCodeBadRequest)
		return
	}

	story := body.storyText()
	if story == "" {
		h.storeProvidedContent(c, &body)
		return
	}

	request := models.GenerationRequest{
		Story:       story,
		Language:    body.Language,
		Temperature: body.Temperature,
		SingleCall:  body.SingleCall,
		TaskID:      strings.TrimSpace(body.TaskID),
	}
	if body.MinStoryChars != nil {
		request.MinStoryChars = *body.MinStoryChars
	}

	result, err := h.Generation.Generate(c.Request.Context(), request)
	if err != nil {
		h.Response.FromError(c, err)
		return
	}

	h.saveGenerationResult(c, result, body.Language)
	h.Response.Success(c, result)
}

// saveGenerationResult 将生成产物写入会话，保留已有用户名
func (h *Handler) saveGenerationResult(c *gin.Context, result *models.GenerationResult, language string) {
	sessionID := SessionID(c)
	if sessionID == "" {
		return
	}

	record := h.loadOrNewRecord(c, sessionID)
	record.Screenplay = result.Screenplay
	record.Characters = result.CharactersText()
	record.SoundDesign = result.SoundDesignText()
	record.GenreAnalysis = result.GenreAnalysis
	record.Language = language
	record.UpdatedAt = time.Now()

	if err := h.Sessions.Set(c.Request.Context(), sessionID, record); err != nil {
		// 存储失败不阻断响应，但后续下载会404
		h.logger.Error("failed to save session %s: %v", sessionID, err)
	}
}

// storeProvidedContent 存储模式：校验并保存调用方提交的产物
func (h *Handler) storeProvidedContent(c *gin.Context, body *generateContentBody) {
	screenplay := strings.TrimSpace(body.Screenplay)
	characters := strings.TrimSpace(body.Characters)
	soundDesign := strings.TrimSpace(body.SoundDesign)

	for _, field := range []struct {
		name  string
		value string
	}{
		{"screenplay", screenplay},
		{"characters", characters},
		{"sound_design", soundDesign},
	} {
		if field.value == "" {
			h.Response.Error(c, http.StatusBadRequest, "Missing '"+field.name+"'.", ErrCodeBadRequest)
			return
		}
	}

	sessionID := SessionID(c)
	record := h.loadOrNewRecord(c, sessionID)
	record.Screenplay = screenplay
	record.Characters = characters
	record.SoundDesign = soundDesign
	record.UpdatedAt = time.Now()

	if err := h.Sessions.Set(c.Request.Context(), sessionID, record); err != nil {
		h.Response.Error(c, http.StatusInternalServerError, "Failed to store content.", ErrCodeInternal)
		return
	}

	h.Response.Success(c, gin.H{
		"ok":           true,
		"screenplay":   screenplay,
		"characters":   characters,
		"sound_design": soundDesign,
	})
}

// loadOrNewRecord 读取会话记录，不存在时创建空记录
func (h *Handler) loadOrNewRecord(c *gin.Context, sessionID string) *models.SessionRecord {
	record, err := h.Sessions.Get(c.Request.Context(), sessionID)
	if err != nil {
		if !errors.Is(err, storage.ErrSessionNotFound) {
			h.logger.Warn("session lookup failed for %s: %v", sessionID, err)
		}
		return &models.SessionRecord{CreatedAt: time.Now()}
	}
	return record
}

// setUsernameBody /set_username 请求体
type setUsernameBody struct {
	Username string `json:"username"`
}

// SetUsername 保存会话的显示名称
func (h *Handler) SetUsername(c *gin.Context) {
	var body setUsernameBody
	if err := c.ShouldBindJSON(&body); err != nil {
		h.Response.Error(c, http.StatusBadRequest, "Request body must be JSON object.", ErrCodeBadRequest)
		return
	}

	username := strings.TrimSpace(body.Username)
	if username == "" {
		h.Response.Error(c, http.StatusBadRequest, "'username' cannot be empty.", ErrCodeBadRequest)
		return
	}

	sessionID := SessionID(c)
	record := h.loadOrNewRecord(c, sessionID)
	record.Username = username
	record.UpdatedAt = time.Now()

	if err := h.Sessions.Set(c.Request.Context(), sessionID, record); err != nil {
		h.Response.Error(c, http.StatusInternalServerError, "Failed to store username.", ErrCodeInternal)
		return
	}

	h.Response.Success(c, gin.H{"ok": true, "username": username})
}

// downloadBody /download/:format_type 请求体
type downloadBody struct {
	Type string `json:"type"`
}

// DownloadFile 以指定格式下载会话中的产物
func (h *Handler) DownloadFile(c *gin.Context) {
	format := strings.ToLower(strings.TrimSpace(c.Param("format_type")))
	switch format {
	case services.FormatTXT, services.FormatPDF, services.FormatDOCX:
	default:
		h.Response.Error(c, http.StatusBadRequest,
			"Invalid format_type. Must be one of: txt, pdf, docx.", ErrCodeUnsupportedFormat)
		return
	}

	// 前端兼容：请求体可省略，默认下载剧本
	artifactType := "screenplay"
	var body downloadBody
	if err := c.ShouldBindJSON(&body); err == nil {
		if trimmed := strings.ToLower(strings.TrimSpace(body.Type)); trimmed != "" {
			artifactType = trimmed
		}
	}

	title, err := services.ArtifactTitle(artifactType)
	if err != nil {
		h.Response.Error(c, http.StatusBadRequest,
			"Invalid download type. Must be one of: screenplay, characters, sound_design.", ErrCodeUnknownType)
		return
	}

	sessionID := SessionID(c)
	record, err := h.Sessions.Get(c.Request.Context(), sessionID)
	if err != nil {
		h.Response.Error(c, http.StatusNotFound,
			"No generated content found in session. Generate content first.", ErrCodeNotFound)
		return
	}

	var content string
	switch artifactType {
	case "screenplay":
		content = record.Screenplay
	case "characters":
		content = record.Characters
	case "sound_design":
		content = record.SoundDesign
	}
	if strings.TrimSpace(content) == "" {
		h.Response.Error(c, http.StatusNotFound,
			"No generated content found in session. Generate content first.", ErrCodeNotFound)
		return
	}

	result, err := h.Export.Render(artifactType, title, content, format)
	if err != nil {
		h.Response.FromError(c, err)
		return
	}

	h.Response.DownloadResponse(c, result.FileName, result.ContentType, result.Data)
}

// GetStats 运行指标快照
func (h *Handler) GetStats(c *gin.Context) {
	h.Response.Success(c, utils.GetMetrics().Snapshot())
}

// GetLLMStatus 当前提供商与可用提供商列表
func (h *Handler) GetLLMStatus(c *gin.Context) {
	h.Response.Success(c, gin.H{
		"ok":          true,
		"provider":    h.Config.AIProvider,
		"model":       h.Config.AIModel,
		"base_url":    h.Config.AIBaseURL,
		"single_call": h.Config.AISingleCall,
		"available":   llm.ListProviders(),
	})
}
