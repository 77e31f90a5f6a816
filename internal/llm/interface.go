// internal/llm/interface.go
package llm

import (
	"context"
	"fmt"
	"sync"
)

// CompletionRequest 文本生成请求
type CompletionRequest struct {
	Prompt      string  `json:"prompt"`
	Model       string  `json:"model,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
}

// CompletionResponse 文本生成响应
type CompletionResponse struct {
	Text         string `json:"text"`
	ModelName    string `json:"model_name"`
	ProviderName string `json:"provider_name"`
	TokensUsed   int    `json:"tokens_used,omitempty"`
}

// Provider LLM提供商接口
type Provider interface {
	// Initialize 使用配置表初始化提供商
	Initialize(config map[string]string) error

	// GetName 返回提供商名称
	GetName() string

	// GetDefaultModel 返回默认模型名称
	GetDefaultModel() string

	// CompleteText 执行一次文本补全
	CompleteText(ctx context.Context, request CompletionRequest) (*CompletionResponse, error)
}

// ProviderFactory 提供商工厂函数
type ProviderFactory func() Provider

var (
	providersMu sync.RWMutex
	providers   = make(map[string]ProviderFactory)
)

// Register 注册提供商工厂（在各提供商包的init中调用）
func Register(name string, factory ProviderFactory) {
	providersMu.Lock()
	defer providersMu.Unlock()
	providers[name] = factory
}

// GetProvider 创建并初始化指定名称的提供商
func GetProvider(name string, config map[string]string) (Provider, error) {
	providersMu.RLock()
	factory, exists := providers[name]
	providersMu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("未知的LLM提供商: %s", name)
	}

	provider := factory()
	if err := provider.Initialize(config); err != nil {
		return nil, fmt.Errorf("初始化提供商 %s 失败: %w", name, err)
	}
	return provider, nil
}

// ListProviders 返回所有已注册的提供商名称
func ListProviders() []string {
	providersMu.RLock()
	defer providersMu.RUnlock()

	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	return names
}
