package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// LLM provider identifiers.
const (
	ProviderOllama    = "ollama"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Config holds all configuration values.
type Config struct {
	// Home Assistant hub connection
	HubAddress string
	HubPort    string
	HubToken   string

	// SurrealDB catalog cache
	SurrealDBURL       string
	SurrealDBNamespace string
	SurrealDBDatabase  string
	SurrealDBUser      string
	SurrealDBPass      string
	SurrealDBAuthLevel string

	// Classification oracle
	LLMProvider     string
	LLMModel        string
	OllamaHost      string
	OpenAIAPIKey    string
	AnthropicAPIKey string

	// Spoken feedback
	TTSService     string // hub tts service, e.g. tts.speak or tts.google_translate_say
	TTSSpeaker     string // media_player entity the reply plays on
	TTSVoiceEntity string // tts engine entity, required by tts.speak

	// Media playback
	MediaService string // hub playback service, e.g. music_assistant.play_media
	MediaPlayer  string // media_player entity playback requests go to

	// Web search
	SearchURL string

	// Pipeline tuning
	BulkReadThreshold  int           // above this entity count a single bulk state fetch is used
	AutomationLogGrace time.Duration // trailing window for correlating hub errors to a published draft
	HubRetries         int           // bounded retry count per external hub call
	MaxTurnLoops       int           // evaluator loop ceiling before giving up

	// Logging
	LogFile  string
	LogLevel slog.Level
}

// Load reads configuration from environment variables.
func Load() Config {
	return Config{
		HubAddress: getEnv("HEARTH_HUB_ADDRESS", "localhost"),
		HubPort:    getEnv("HEARTH_HUB_PORT", "8123"),
		HubToken:   getEnv("HEARTH_HUB_TOKEN", ""),

		SurrealDBURL:       getEnv("SURREALDB_URL", "ws://localhost:8000/rpc"),
		SurrealDBNamespace: getEnv("SURREALDB_NAMESPACE", "hearth"),
		SurrealDBDatabase:  getEnv("SURREALDB_DATABASE", "catalog"),
		SurrealDBUser:      getEnv("SURREALDB_USER", "root"),
		SurrealDBPass:      getEnv("SURREALDB_PASS", "root"),
		SurrealDBAuthLevel: getEnv("SURREALDB_AUTH_LEVEL", "root"),

		LLMProvider:     getEnv("HEARTH_LLM_PROVIDER", ProviderOllama),
		LLMModel:        getEnv("HEARTH_LLM_MODEL", "qwen2.5:14b"),
		OllamaHost:      getEnv("OLLAMA_HOST", "http://localhost:11434"),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),

		TTSService:     getEnv("HEARTH_TTS_SERVICE", "tts.speak"),
		TTSSpeaker:     getEnv("HEARTH_TTS_SPEAKER", ""),
		TTSVoiceEntity: getEnv("HEARTH_TTS_VOICE_ENTITY", ""),

		MediaService: getEnv("HEARTH_MEDIA_SERVICE", "music_assistant.play_media"),
		MediaPlayer:  getEnv("HEARTH_MEDIA_PLAYER", ""),

		SearchURL: getEnv("HEARTH_SEARCH_URL", "https://api.duckduckgo.com"),

		BulkReadThreshold:  getEnvInt("HEARTH_BULK_READ_THRESHOLD", 30),
		AutomationLogGrace: getEnvDuration("HEARTH_AUTOMATION_LOG_GRACE", 10*time.Second),
		HubRetries:         getEnvInt("HEARTH_HUB_RETRIES", 2),
		MaxTurnLoops:       getEnvInt("HEARTH_MAX_TURN_LOOPS", 8),

		LogFile:  getEnv("HEARTH_LOG_FILE", "/tmp/hearth.log"),
		LogLevel: parseLogLevel(getEnv("HEARTH_LOG_LEVEL", "INFO")),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
