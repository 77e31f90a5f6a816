// internal/llm/providers/ollama/ollama.go
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
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
	defaultBaseURL    = "http://localhost:11434"
	defaultModel      = "granite4:micro"
	defaultNumPredict = 2500
	defaultTimeout    = 120 * time.Second
)

// Provider Ollama本地推理提供商
type Provider struct {
	baseURL    string
	model      string
	apiKeys    []string
	keyCursor  uint64
	numPredict int
	client     *http.Client
}

func init() {
	llm.Register("ollama", func() llm.Provider {
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

	// api_keys 可选：本地Ollama通常无需认证
	if raw := strings.TrimSpace(config["api_keys"]); raw != "" {
		for _, key := range strings.Split(raw, ",") {
			if trimmed := strings.TrimSpace(key); trimmed != "" {
				p.apiKeys = append(p.apiKeys, trimmed)
			}
		}
	}

	p.numPredict = defaultNumPredict
	if raw := config["num_predict"]; raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			p.numPredict = n
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
	return "ollama"
}

// GetDefaultModel 返回默认模型
func (p *Provider) GetDefaultModel() string {
	return p.model
}

// nextKey 轮换选取下一个API密钥，未配置密钥时返回空串
func (p *Provider) nextKey() string {
	if len(p.apiKeys) == 0 {
		return ""
	}
	cursor := atomic.AddUint64(&p.keyCursor, 1) - 1
	return p.apiKeys[cursor%uint64(len(p.apiKeys))]
}

// generatePayload /api/generate 请求体
type generatePayload struct {
	Model   string                 `json:"model"`
	Prompt  string                 `json:"prompt"`
	Stream  bool                   `json:"stream"`
	Options map[string]interface{} `json:"options"`
}

// CompleteText 执行文本补全
func (p *Provider) CompleteText(ctx context.Context, request llm.CompletionRequest) (*llm.CompletionResponse, error) {
	model := request.Model
	if model == "" {
		model = p.model
	}

	numPredict := p.numPredict
	if request.MaxTokens > 0 {
		numPredict = request.MaxTokens
	}

	payload := generatePayload{
		Model:  model,
		Prompt: request.Prompt,
		Stream: false,
		Options: map[string]interface{}{
			"temperature": request.Temperature,
			"num_predict": numPredict,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, apperrors.NewProcessingError("failed to encode generation request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, apperrors.NewProcessingError("failed to build generation request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if key := p.nextKey(); key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}

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
		return nil, p.httpError(resp.StatusCode, respBody, model)
	}

	var envelope map[string]interface{}
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return nil, apperrors.NewProviderProtocolError("model response is not valid JSON", err)
	}

	text, ok := parser.ExtractResponseText(envelope)
	if !ok {
		return nil, apperrors.NewProviderProtocolError("model response contains no text field", nil)
	}

	tokensUsed := 0
	if n, ok := envelope["eval_count"].(float64); ok {
		tokensUsed = int(n)
	}

	return &llm.CompletionResponse{
		Text:         strings.TrimSpace(parser.NormalizeNewlines(text)),
		ModelName:    model,
		ProviderName: p.GetName(),
		TokensUsed:   tokensUsed,
	}, nil
}

// classifyTransportError 将传输层错误归一为超时或不可达
func classifyTransportError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return apperrors.NewProviderTimeout("Model request timed out. The model may be loading or the prompt is too large.", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.NewProviderTimeout("Model request timed out. The model may be loading or the prompt is too large.", err)
	}
	return apperrors.NewProviderUnreachable("Could not reach the model server. Is Ollama running?", err)
}

// httpError 将非2xx响应转为带状态的提供商错误
func (p *Provider) httpError(statusCode int, body []byte, model string) error {
	message := strings.TrimSpace(string(body))
	var envelope map[string]interface{}
	if err := json.Unmarshal(body, &envelope); err == nil {
		if detail, ok := envelope["error"].(string); ok && detail != "" {
			message = detail
		}
	}

	// 模型未拉取时给出可操作的提示
	if statusCode == http.StatusNotFound && strings.Contains(strings.ToLower(message), "not found") {
		message = fmt.Sprintf("%s (run: ollama pull %s)", message, model)
	}

	return apperrors.NewProviderHTTPError(statusCode, message)
}
