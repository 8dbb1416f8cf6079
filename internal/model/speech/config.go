package speech

// Provider 语音识别服务提供方
type Provider string

const (
	ProviderVolcengine Provider = "volcengine"
	ProviderWhisper    Provider = "whisper"
)

// SpeechConfig 语音识别配置
type SpeechConfig struct {
	Provider Provider `json:"provider"`

	// Volcengine 配置
	AppID          string `json:"appId"`            // 火山引擎 APP ID
	AccessToken    string `json:"accessToken"`      // 火山引擎 Access Token
	APIKey         string `json:"apiKey,omitempty"` // 兼容旧配置的 API Key
	Region         string `json:"region"`
	ConcurrentMode bool   `json:"concurrentMode"` // ASR并发模式（false为小时版）
	ASRModel       string `json:"asrModel"`
	ASRLanguage    string `json:"asrLanguage"`

	// Whisper (OpenAI 兼容接口) 配置
	OpenAIAPIKey  string `json:"-"`
	OpenAIBaseURL string `json:"openaiBaseUrl,omitempty"`
	WhisperModel  string `json:"whisperModel"`

	Timeout int `json:"timeout"` // seconds, dial/handshake only
}
