// internal/api/response_helpers.go
package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "github.com/Corphon/CineWeaverMCP/internal/errors"
	"github.com/Corphon/CineWeaverMCP/internal/utils"
)

// ResponseHelper 统一响应构造器
type ResponseHelper struct {
	logger  *utils.Logger
	metrics *utils.MetricsCollector
}

// NewResponseHelper 创建响应构造器
func NewResponseHelper() *ResponseHelper {
	return &ResponseHelper{
		logger:  utils.GetLogger(),
		metrics: utils.GetMetrics(),
	}
}

// Success 返回成功JSON
func (h *ResponseHelper) Success(c *gin.Context, payload interface{}) {
	h.metrics.RecordRequest(false)
	c.JSON(http.StatusOK, payload)
}

// Error 返回扁平错误JSON：{"ok": false, "error": ..., "code": ...}
func (h *ResponseHelper) Error(c *gin.Context, status int, message, code string) {
	h.metrics.RecordRequest(true)
	h.logger.Warn("request failed: %s %s -> %d %s: %s",
		c.Request.Method, c.Request.URL.Path, status, code, message)
	c.JSON(status, gin.H{
		"ok":    false,
		"error": message,
		"code":  code,
	})
}

// FromError 将错误映射为HTTP响应
func (h *ResponseHelper) FromError(c *gin.Context, err error) {
	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		h.Error(c, http.StatusInternalServerError, err.Error(), ErrCodeInternal)
		return
	}

	// 提供商限流/配额类消息统一映射为429
	if isRateLimitMessage(appErr.Message) {
		h.Error(c, http.StatusTooManyRequests, appErr.Message, ErrCodeRateLimited)
		return
	}

	status := appErr.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}
	h.Error(c, status, appErr.Message, errorCodeFor(appErr.Type))
}

// DownloadResponse 以附件形式返回文件内容
func (h *ResponseHelper) DownloadResponse(c *gin.Context, fileName, contentType string, data []byte) {
	h.metrics.RecordRequest(false)
	c.Header("Content-Disposition", `attachment; filename="`+fileName+`"`)
	c.Data(http.StatusOK, contentType, data)
}

// errorCodeFor 错误类型到稳定错误码的映射
func errorCodeFor(errorType apperrors.ErrorType) string {
	switch errorType {
	case apperrors.ErrorTypePremiseTooShort:
		return ErrCodePremiseTooShort
	case apperrors.ErrorTypeValidation:
		return ErrCodeBadRequest
	case apperrors.ErrorTypeNotFound:
		return ErrCodeNotFound
	case apperrors.ErrorTypeUnknownArtifactType:
		return ErrCodeUnknownType
	case apperrors.ErrorTypeUnsupportedFormat:
		return ErrCodeUnsupportedFormat
	case apperrors.ErrorTypeProviderUnreachable:
		return ErrCodeProviderDown
	case apperrors.ErrorTypeProviderTimeout:
		return ErrCodeProviderTimeout
	case apperrors.ErrorTypeProviderHTTP, apperrors.ErrorTypeProviderProtocol,
		apperrors.ErrorTypeParseFailure:
		return ErrCodeProviderFailed
	default:
		return ErrCodeInternal
	}
}

// isRateLimitMessage 识别提供商返回的限流/配额类错误文本
func isRateLimitMessage(message string) bool {
	upper := strings.ToUpper(message)
	for _, marker := range []string{"RESOURCE_EXHAUSTED", "429", "RATE", "QUOTA"} {
		if strings.Contains(upper, marker) {
			return true
		}
	}
	return false
}
