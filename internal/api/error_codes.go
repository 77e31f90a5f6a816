// internal/api/error_codes.go
package api

// API层稳定错误码（响应体code字段）
const (
	ErrCodeBadRequest        = "BAD_REQUEST"
	ErrCodePremiseTooShort   = "PREMISE_TOO_SHORT"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeUnknownType       = "UNKNOWN_ARTIFACT_TYPE"
	ErrCodeUnsupportedFormat = "UNSUPPORTED_FORMAT"
	ErrCodeProviderDown      = "PROVIDER_UNREACHABLE"
	ErrCodeProviderTimeout   = "PROVIDER_TIMEOUT"
	ErrCodeProviderFailed    = "PROVIDER_ERROR"
	ErrCodeRateLimited       = "RATE_LIMITED"
	ErrCodeInternal          = "INTERNAL_ERROR"
)
