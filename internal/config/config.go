// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// 默认值与 AI 管线保持一致
const (
	DefaultModel           = "granite4:micro"
	DefaultTemperature     = 0.7
	DefaultMinStoryChars   = 120
	DefaultMaxOutputTokens = 2500
	DefaultTimeoutSeconds  = 120
)

// Config 存储应用配置
type Config struct {
	// 服务器配置
	Host         string
	Port         string
	DebugMode    bool
	LogDir       string
	CookieSecure bool
	CORSOrigins  []string

	// LLM提供商配置
	AIProvider        string
	AIBaseURL         string
	AIModel           string
	AIAPIKeys         []string
	AITimeoutSeconds  int
	AIMaxOutputTokens int
	AISingleCall      bool
	MinStoryChars     int

	// 会话存储配置
	SessionBackend string // memory 或 redis
	SessionTTL     time.Duration
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
}

// Load 从环境变量加载配置
func Load() (*Config, error) {
	// 尝试加载.env文件（可选）
	godotenv.Load()

	config := &Config{
		Host:         getEnv("HOST", "127.0.0.1"),
		Port:         getEnv("PORT", "8080"),
		DebugMode:    getEnvBool("DEBUG_MODE", false),
		LogDir:       getEnvPath("LOG_DIR", "logs"),
		CookieSecure: getEnvBool("COOKIE_SECURE", false),
		CORSOrigins:  getEnvList("CORS_ORIGINS"),

		AIProvider:        getEnv("AI_PROVIDER", "ollama"),
		AIBaseURL:         getEnv("AI_BASE_URL", getEnv("OLLAMA_BASE_URL", "http://localhost:11434")),
		AIModel:           getEnv("AI_MODEL", DefaultModel),
		AIAPIKeys:         getEnvList("AI_API_KEYS"),
		AITimeoutSeconds:  getEnvInt("AI_TIMEOUT_SECONDS", DefaultTimeoutSeconds),
		AIMaxOutputTokens: getEnvInt("AI_MAX_OUTPUT_TOKENS", DefaultMaxOutputTokens),
		AISingleCall:      getEnvBool("AI_SINGLE_CALL", false),
		MinStoryChars:     getEnvInt("MIN_STORY_CHARS", DefaultMinStoryChars),

		SessionBackend: getEnv("SESSION_BACKEND", "memory"),
		SessionTTL:     time.Duration(getEnvInt("SESSION_TTL_MINUTES", 120)) * time.Minute,
		RedisAddr:      getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		RedisDB:        getEnvInt("REDIS_DB", 0),
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// validate 检查配置的基础一致性
func (c *Config) validate() error {
	if c.MinStoryChars < 1 {
		return fmt.Errorf("MIN_STORY_CHARS must be positive, got %d", c.MinStoryChars)
	}
	if c.AITimeoutSeconds < 1 {
		return fmt.Errorf("AI_TIMEOUT_SECONDS must be positive, got %d", c.AITimeoutSeconds)
	}
	switch c.SessionBackend {
	case "memory", "redis":
	default:
		return fmt.Errorf("SESSION_BACKEND must be memory or redis, got %q", c.SessionBackend)
	}
	return nil
}

// LLMConfig 构建传递给提供商的配置表
func (c *Config) LLMConfig() map[string]string {
	return map[string]string{
		"base_url":        c.AIBaseURL,
		"model":           c.AIModel,
		"api_keys":        strings.Join(c.AIAPIKeys, ","),
		"timeout_seconds": strconv.Itoa(c.AITimeoutSeconds),
		"num_predict":     strconv.Itoa(c.AIMaxOutputTokens),
	}
}

// getEnv 获取环境变量，如果不存在则返回默认值
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvPath 获取环境变量表示的路径，如果不存在则返回默认值
func getEnvPath(key, defaultValue string) string {
	path := getEnv(key, defaultValue)

	// 确保目录存在
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.MkdirAll(path, 0755); err != nil {
			fmt.Printf("警告: 创建目录失败 %s: %v\n", path, err)
		}
	}

	return path
}

// getEnvBool 获取布尔类型环境变量
func getEnvBool(key string, defaultValue bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return defaultValue
	}

	return value == "true" || value == "1" || value == "yes" || value == "on"
}

// getEnvInt 获取整数类型环境变量
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return defaultValue
	}
	return n
}

// getEnvList 获取逗号分隔的环境变量列表
func getEnvList(key string) []string {
	raw := os.Getenv(key)
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	var items []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}
