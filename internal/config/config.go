package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"

	speechmodel "github.com/zhouzirui/interview-pilot/backend/internal/model/speech"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server    ServerConfig
	AI        AIConfig
	Speech    SpeechConfig
	Interview InterviewConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	speech, err := loadSpeechConfig()
	if err != nil {
		return nil, err
	}

	interview, err := loadInterviewConfig()
	if err != nil {
		return nil, err
	}

	return &Config{Server: server, AI: ai, Speech: speech, Interview: interview}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr string
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// AI providers.
const (
	ProviderArk    = "ark"
	ProviderOpenAI = "openai"
)

// AIConfig 描述大模型相关配置。
type AIConfig struct {
	Provider string

	// Ark
	APIKey      string
	AccessKey   string
	SecretKey   string
	Model       string
	BaseURL     string
	Region      string
	Temperature *float64
	TopP        *float64
	MaxTokens   *int

	// OpenAI 兼容接口
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string
}

// Enabled 表示所选 provider 是否提供了必需的密钥。
func (c AIConfig) Enabled() bool {
	switch c.Provider {
	case ProviderOpenAI:
		return c.OpenAIAPIKey != "" && c.OpenAIModel != ""
	default:
		return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
	}
}

// NewChatModel 使用 Ark 配置创建一个模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if c.Model == "" || (c.APIKey == "" && (c.AccessKey == "" || c.SecretKey == "")) {
		return nil, fmt.Errorf("Ark 凭证或模型配置缺失，至少提供 ARK_API_KEY + Model 或 AK/SK 组合")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		Temperature: temperature,
		TopP:        topP,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig() (AIConfig, error) {
	provider := strings.ToLower(getEnvOrDefault("AI_PROVIDER", ProviderArk))
	if provider != ProviderArk && provider != ProviderOpenAI {
		return AIConfig{}, fmt.Errorf("invalid AI_PROVIDER value %q", provider)
	}

	temperature, err := parseOptionalFloatEnv("ARK_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}

	topP, err := parseOptionalFloatEnv("ARK_TOP_P")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("ARK_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	return AIConfig{
		Provider:      provider,
		APIKey:        strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:     strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:     strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:         strings.TrimSpace(os.Getenv("Model")),
		BaseURL:       getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:        getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature:   temperature,
		TopP:          topP,
		MaxTokens:     maxTokens,
		OpenAIAPIKey:  strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		OpenAIBaseURL: getEnvOrDefault("OPENAI_BASE_URL", ""),
		OpenAIModel:   getEnvOrDefault("OPENAI_MODEL", "gpt-4o-mini"),
	}, nil
}

// SpeechConfig 描述语音识别相关配置
type SpeechConfig struct {
	Provider      speechmodel.Provider
	AppID         string
	AccessToken   string
	APIKey        string
	Region        string
	ASRModel      string
	ASRLanguage   string
	OpenAIAPIKey  string
	OpenAIBaseURL string
	WhisperModel  string
	Timeout       int
	Enabled       bool
}

// ToModel 转换为语音服务使用的配置结构。
func (c SpeechConfig) ToModel() *speechmodel.SpeechConfig {
	return &speechmodel.SpeechConfig{
		Provider:      c.Provider,
		AppID:         c.AppID,
		AccessToken:   c.AccessToken,
		APIKey:        c.APIKey,
		Region:        c.Region,
		ASRModel:      c.ASRModel,
		ASRLanguage:   c.ASRLanguage,
		OpenAIAPIKey:  c.OpenAIAPIKey,
		OpenAIBaseURL: c.OpenAIBaseURL,
		WhisperModel:  c.WhisperModel,
		Timeout:       c.Timeout,
	}
}

func loadSpeechConfig() (SpeechConfig, error) {
	provider := speechmodel.Provider(strings.ToLower(getEnvOrDefault("SPEECH_PROVIDER", string(speechmodel.ProviderVolcengine))))
	if provider != speechmodel.ProviderVolcengine && provider != speechmodel.ProviderWhisper {
		return SpeechConfig{}, fmt.Errorf("invalid SPEECH_PROVIDER value %q", provider)
	}

	// 解析超时设置
	timeout, err := parseOptionalIntEnv("SPEECH_TIMEOUT")
	if err != nil {
		return SpeechConfig{}, err
	}
	timeoutSeconds := 30 // 默认30秒
	if timeout != nil {
		timeoutSeconds = *timeout
	}

	appID := strings.TrimSpace(os.Getenv("SPEECH_APP_ID"))

	accessToken := strings.TrimSpace(os.Getenv("SPEECH_ACCESS_TOKEN"))
	apiKey := strings.TrimSpace(os.Getenv("SPEECH_API_KEY"))
	if accessToken == "" {
		accessToken = apiKey
	}

	// 如果没有专门的语音配置，尝试使用AI配置
	if accessToken == "" {
		accessToken = strings.TrimSpace(os.Getenv("ARK_API_KEY"))
		apiKey = accessToken
	}

	openAIKey := strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))

	var enabled bool
	switch provider {
	case speechmodel.ProviderWhisper:
		enabled = openAIKey != ""
	default:
		enabled = appID != "" && accessToken != ""
	}

	// SPEECH_ENABLED 可以强制关闭语音识别
	enabled, err = parseBoolEnv("SPEECH_ENABLED", enabled)
	if err != nil {
		return SpeechConfig{}, err
	}

	return SpeechConfig{
		Provider:      provider,
		AppID:         appID,
		AccessToken:   accessToken,
		APIKey:        apiKey,
		Region:        getEnvOrDefault("SPEECH_REGION", "cn-beijing"),
		ASRModel:      getEnvOrDefault("SPEECH_ASR_MODEL", "bigmodel"),
		ASRLanguage:   getEnvOrDefault("SPEECH_ASR_LANGUAGE", "en-US"),
		OpenAIAPIKey:  openAIKey,
		OpenAIBaseURL: getEnvOrDefault("OPENAI_BASE_URL", ""),
		WhisperModel:  getEnvOrDefault("WHISPER_MODEL", "whisper-1"),
		Timeout:       timeoutSeconds,
		Enabled:       enabled,
	}, nil
}

// InterviewConfig 面试引擎的策略与资源参数。
type InterviewConfig struct {
	// MaxDurationMinutes 0 表示不限制面试时长
	MaxDurationMinutes    int
	WrapUpThreshold       time.Duration
	MaxTopicDwell         int
	HistoryWindow         int
	// CapabilityConcurrency 单个会话同时进行的外部能力调用数
	CapabilityConcurrency int
	Retention             time.Duration
	PersonasFile          string
	RateLimitRPS          float64
	RateLimitBurst        int
}

func loadInterviewConfig() (InterviewConfig, error) {
	cfg := InterviewConfig{
		WrapUpThreshold:       120 * time.Second,
		MaxTopicDwell:         3,
		HistoryWindow:         3,
		CapabilityConcurrency: 2,
		PersonasFile:          strings.TrimSpace(os.Getenv("INTERVIEW_PERSONAS_FILE")),
		RateLimitRPS:          5,
		RateLimitBurst:        10,
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"INTERVIEW_MAX_DURATION_MINUTES", &cfg.MaxDurationMinutes},
		{"INTERVIEW_MAX_TOPIC_DWELL", &cfg.MaxTopicDwell},
		{"INTERVIEW_HISTORY_WINDOW", &cfg.HistoryWindow},
		{"CAPABILITY_CONCURRENCY", &cfg.CapabilityConcurrency},
		{"RATE_LIMIT_BURST", &cfg.RateLimitBurst},
	}
	for _, item := range ints {
		val, err := parseOptionalIntEnv(item.key)
		if err != nil {
			return InterviewConfig{}, err
		}
		if val == nil {
			continue
		}
		if *val < 1 {
			return InterviewConfig{}, fmt.Errorf("invalid %s value %d: must be positive", item.key, *val)
		}
		*item.dst = *val
	}

	wrapUp, err := parseOptionalIntEnv("INTERVIEW_WRAPUP_SECONDS")
	if err != nil {
		return InterviewConfig{}, err
	}
	if wrapUp != nil {
		if *wrapUp < 0 {
			return InterviewConfig{}, fmt.Errorf("invalid INTERVIEW_WRAPUP_SECONDS value %d", *wrapUp)
		}
		cfg.WrapUpThreshold = time.Duration(*wrapUp) * time.Second
	}

	retention, err := parseDurationEnv("INTERVIEW_RETENTION", 0)
	if err != nil {
		return InterviewConfig{}, err
	}
	cfg.Retention = retention

	rps, err := parseOptionalFloatEnv("RATE_LIMIT_RPS")
	if err != nil {
		return InterviewConfig{}, err
	}
	if rps != nil {
		cfg.RateLimitRPS = *rps
	}

	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	if val < 0 {
		return 0, fmt.Errorf("invalid %s value %q: must not be negative", key, raw)
	}
	return val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
