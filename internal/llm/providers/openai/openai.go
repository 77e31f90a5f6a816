// internal/llm/providers/openai/openai.go
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	apperrors "github.com/Corphon/CineWeaverMCP/internal/errors"
	"github.com/Corphon/CineWeaverMCP/internal/llm"
	"github.com/Corphon/CineWeaverMCP/internal/parser"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "gpt-4o-mini"
	defaultTimeout = 120 * time.Second
)

// Provider OpenAI兼容（chat/completions）提供商
type Provider struct {
	baseURL   string
	model     string
	apiKeys   []string
	keyCursor uint64
	maxTokens int
	client    *http.Client
}

func init() {
	llm.Register("openai", func() llm.Provider {
		return &Provider{}
	})
}

// Initialize 初始化提供商配置
func (p *Provider) Initialize(config map[string]string) error {
	p.baseURL = strings.TrimRight(config["base_url"], "/")
	if p.baseURL == "" {
		p.baseURL = defaultBaseURL
	}

	p.model = config["model"]
	if p.model == "" {
		p.model = defaultModel
	}

	if raw := strings.TrimSpace(config["api_keys"]); raw != "" {
		for _, key := range strings.Split(raw, ",") {
			if trimmed := strings.TrimSpace(key); trimmed != "" {
				p.apiKeys = append(p.apiKeys, trimmed)
			}
		}
	}
	if len(p.apiKeys) == 0 {
		return errors.New("openai提供商需要至少一个API密钥")
	}

	if raw := config["num_predict"]; raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			p.maxTokens = n
		}
	}

	timeout := defaultTimeout
	if raw := config["timeout_seconds"]; raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			timeout = time.Duration(n) * time.Second
		}
	}
	p.client = &http.Client{Timeout: timeout}

	return nil
}

// GetName 返回提供商名称
func (p *Provider) GetName() string {
	return "openai"
}

// GetDefaultModel 返回默认模型
func (p *Provider) GetDefaultModel() string {
	return p.model
}

// nextKey 轮换选取下一个API密钥
func (p *Provider) nextKey() string {
	cursor := atomic.AddUint64(&p.keyCursor, 1) - 1
	return p.apiKeys[cursor%uint64(len(p.apiKeys))]
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatPayload struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// CompleteText 执行文本补全
func (p *Provider) CompleteText(ctx context.Context, request llm.CompletionRequest) (*llm.CompletionResponse, error) {
	model := request.Model
	if model == "" {
		model = p.model
	}

	maxTokens := p.maxTokens
	if request.MaxTokens > 0 {
		maxTokens = request.MaxTokens
	}

	payload := chatPayload{
		Model:       model,
		Messages:    []chatMessage{{Role: "user", Content: request.Prompt}},
		Temperature: request.Temperature,
		MaxTokens:   maxTokens,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, apperrors.NewProcessingError("failed to encode generation request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, apperrors.NewProcessingError("failed to build generation request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.nextKey())

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.NewProviderProtocolError("failed to read model response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		message := strings.TrimSpace(string(respBody))
		var parsed chatResponse
		if json.Unmarshal(respBody, &parsed) == nil && parsed.Error != nil && parsed.Error.Message != "" {
			message = parsed.Error.Message
		}
		return nil, apperrors.NewProviderHTTPError(resp.StatusCode, message)
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, apperrors.NewProviderProtocolError("model response is not valid JSON", err)
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
		return nil, apperrors.NewProviderProtocolError("model response contains no choices", nil)
	}

	return &llm.CompletionResponse{
		Text:         strings.TrimSpace(parser.NormalizeNewlines(parsed.Choices[0].Message.Content)),
		ModelName:    model,
		ProviderName: p.GetName(),
		TokensUsed:   parsed.Usage.TotalTokens,
	}, nil
}

// classifyTransportError 将传输层错误归一为超时或不可达
func classifyTransportError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return apperrors.NewProviderTimeout("Model request timed out.", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.NewProviderTimeout("Model request timed out.", err)
	}
	return apperrors.NewProviderUnreachable("Could not reach the model API endpoint.", err)
}
