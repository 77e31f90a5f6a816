// internal/errors/errors.go
package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorType 定义错误类型
type ErrorType string

const (
	// 请求侧错误
	ErrorTypeValidation      ErrorType = "validation_error"
	ErrorTypePremiseTooShort ErrorType = "premise_too_short"
	ErrorTypeNotFound        ErrorType = "not_found"

	// 提供商错误
	ErrorTypeProviderUnreachable ErrorType = "provider_unreachable"
	ErrorTypeProviderTimeout     ErrorType = "provider_timeout"
	ErrorTypeProviderHTTP        ErrorType = "provider_http_error"
	ErrorTypeProviderProtocol    ErrorType = "provider_protocol_error"

	// 解析与导出错误
	ErrorTypeParseFailure        ErrorType = "parse_failure"
	ErrorTypeUnknownArtifactType ErrorType = "unknown_artifact_type"
	ErrorTypeUnsupportedFormat   ErrorType = "unsupported_format"

	// 内部错误
	ErrorTypeProcessing ErrorType = "processing_error"
)

// AppError 应用统一错误结构
type AppError struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
	Code    string    `json:"code,omitempty"`
	Status  int       `json:"-"`
	Err     error     `json:"-"`
}

// Error 实现error接口
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap 支持errors.Is/As链
func (e *AppError) Unwrap() error {
	return e.Err
}

// generateErrorCode 生成带时间戳的错误码
func generateErrorCode(errorType ErrorType) string {
	return fmt.Sprintf("%s_%d", errorType, time.Now().UnixNano()%100000)
}

// NewValidationError 创建请求校验错误
func NewValidationError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeValidation,
		Message: message,
		Code:    generateErrorCode(ErrorTypeValidation),
		Status:  400,
		Err:     err,
	}
}

// NewPremiseTooShort 创建故事前提过短错误
func NewPremiseTooShort(minChars int) *AppError {
	return &AppError{
		Type:    ErrorTypePremiseTooShort,
		Message: fmt.Sprintf("Story premise must contain at least %d non-whitespace characters", minChars),
		Code:    generateErrorCode(ErrorTypePremiseTooShort),
		Status:  400,
	}
}

// NewNotFoundError 创建资源不存在错误
func NewNotFoundError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeNotFound,
		Message: message,
		Code:    generateErrorCode(ErrorTypeNotFound),
		Status:  404,
		Err:     err,
	}
}

// NewProviderUnreachable 创建提供商不可达错误
func NewProviderUnreachable(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeProviderUnreachable,
		Message: message,
		Code:    generateErrorCode(ErrorTypeProviderUnreachable),
		Status:  503,
		Err:     err,
	}
}

// NewProviderTimeout 创建提供商超时错误
func NewProviderTimeout(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeProviderTimeout,
		Message: message,
		Code:    generateErrorCode(ErrorTypeProviderTimeout),
		Status:  504,
		Err:     err,
	}
}

// NewProviderHTTPError 创建提供商HTTP状态错误
func NewProviderHTTPError(statusCode int, message string) *AppError {
	return &AppError{
		Type:    ErrorTypeProviderHTTP,
		Message: fmt.Sprintf("Provider returned HTTP %d: %s", statusCode, message),
		Code:    generateErrorCode(ErrorTypeProviderHTTP),
		Status:  502,
	}
}

// NewProviderProtocolError 创建提供商响应格式错误
func NewProviderProtocolError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeProviderProtocol,
		Message: message,
		Code:    generateErrorCode(ErrorTypeProviderProtocol),
		Status:  502,
		Err:     err,
	}
}

// NewParseFailure 创建模型输出解析错误
func NewParseFailure(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeParseFailure,
		Message: message,
		Code:    generateErrorCode(ErrorTypeParseFailure),
		Status:  502,
		Err:     err,
	}
}

// NewUnknownArtifactType 创建未知产物类型错误
func NewUnknownArtifactType(artifactType string) *AppError {
	return &AppError{
		Type:    ErrorTypeUnknownArtifactType,
		Message: fmt.Sprintf("Unknown document type: %s", artifactType),
		Code:    generateErrorCode(ErrorTypeUnknownArtifactType),
		Status:  400,
	}
}

// NewUnsupportedFormat 创建不支持的导出格式错误
func NewUnsupportedFormat(format string) *AppError {
	return &AppError{
		Type:    ErrorTypeUnsupportedFormat,
		Message: fmt.Sprintf("Unsupported export format: %s", format),
		Code:    generateErrorCode(ErrorTypeUnsupportedFormat),
		Status:  400,
	}
}

// NewProcessingError 创建内部处理错误
func NewProcessingError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeProcessing,
		Message: message,
		Code:    generateErrorCode(ErrorTypeProcessing),
		Status:  500,
		Err:     err,
	}
}

// AsAppError 提取错误链中的AppError
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// isType 判断错误链中是否存在指定类型的AppError
func isType(err error, t ErrorType) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Type == t
}

// IsPremiseTooShort 判断是否为前提过短错误
func IsPremiseTooShort(err error) bool {
	return isType(err, ErrorTypePremiseTooShort)
}

// IsNotFound 判断是否为资源不存在错误
func IsNotFound(err error) bool {
	return isType(err, ErrorTypeNotFound)
}

// IsProviderUnreachable 判断是否为提供商不可达错误
func IsProviderUnreachable(err error) bool {
	return isType(err, ErrorTypeProviderUnreachable)
}

// IsProviderTimeout 判断是否为提供商超时错误
func IsProviderTimeout(err error) bool {
	return isType(err, ErrorTypeProviderTimeout)
}

// IsParseFailure 判断是否为解析失败错误
func IsParseFailure(err error) bool {
	return isType(err, ErrorTypeParseFailure)
}

// IsProviderError 判断是否为任一提供商侧错误
func IsProviderError(err error) bool {
	appErr, ok := AsAppError(err)
	if !ok {
		return false
	}
	switch appErr.Type {
	case ErrorTypeProviderUnreachable, ErrorTypeProviderTimeout,
		ErrorTypeProviderHTTP, ErrorTypeProviderProtocol:
		return true
	}
	return false
}
