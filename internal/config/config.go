package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/samber/oops"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

type MQTTConfig struct {
	BrokerURL   string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string `validate:"required"`
}

// Enabled reports whether a broker is configured. An empty MQTT_BROKER_URL
// turns the event bridge off.
func (c MQTTConfig) Enabled() bool {
	return c.BrokerURL != ""
}

type LLMConfig struct {
	Provider         string `validate:"omitempty,oneof=openai claude"`
	Model            string
	EmbeddingModel   string
	OpenAIBaseURL    string `validate:"omitempty,url"`
	OpenAIAPIKey     string
	AnthropicBaseURL string `validate:"omitempty,url"`
	AnthropicAPIKey  string
	Timeout          time.Duration
}

type LogConfig struct {
	Format         string `validate:"oneof=console json"`
	TelegramToken  string
	TelegramChatID string `validate:"required_with=TelegramToken"`
}

type ServerConfig struct {
	HTTPAddr string `validate:"required"`

	Store    string `validate:"oneof=memory postgres redis"`
	DBDSN    string `validate:"required_if=Store postgres"`
	RedisURL string `validate:"required_if=Store redis"`
	StateTTL time.Duration

	MQTT MQTTConfig

	GrammarURL string `validate:"omitempty,url"`
	EmbedURL   string `validate:"omitempty,url"`
	ParseURL   string `validate:"required,url"`
	QAURL      string `validate:"required,url"`
	SpellURL   string `validate:"omitempty,url"`
	NLPAPIKey  string
	NLPTimeout time.Duration `validate:"gt=0"`

	LLM LLMConfig

	CatalogPath        string  `validate:"required"`
	DecisionThreshold  float64 `validate:"gte=0,lte=1"`
	DefaultPollTime    string  `validate:"required"`
	NegativeContext    string
	AffirmativeContext string
	Retries            int `validate:"gte=0,lte=5"`

	PollTTL            time.Duration `validate:"gt=0"`
	PollExpiryInterval time.Duration `validate:"gt=0"`

	Log LogConfig
}

type SpellServerConfig struct {
	HTTPAddr     string `validate:"required"`
	MaxBodyBytes int64  `validate:"gt=0"`
	MaxWords     int    `validate:"gt=0"`
	Log          LogConfig
}

type CatalogBuilderConfig struct {
	EmbedURL   string `validate:"omitempty,url"`
	NLPAPIKey  string
	NLPTimeout time.Duration `validate:"gt=0"`
	LLM        LLMConfig
}

type ChatSimConfig struct {
	ServerURL string `validate:"required,url"`
	UserID    string `validate:"required"`
	MQTT      MQTTConfig
}

// LoadDotEnv reads .env from the working directory if present. Variables
// already set in the environment win.
func LoadDotEnv() {
	_ = godotenv.Load()
}

func LoadServerConfig() (ServerConfig, error) {
	cfg := ServerConfig{
		HTTPAddr: getenvDefault("SCHEDBOT_HTTP_ADDR", ":9010"),

		Store:    strings.ToLower(getenvDefault("STORE_BACKEND", StoreMemory)),
		DBDSN:    os.Getenv("DB_DSN"),
		RedisURL: os.Getenv("REDIS_URL"),
		StateTTL: getenvDurationDefault("STATE_TTL", 7*24*time.Hour),

		MQTT: loadMQTT("SCHEDBOT_MQTT_CLIENT_ID", "schedbot-server"),

		GrammarURL: trimURL(os.Getenv("GRAMMAR_URL")),
		EmbedURL:   trimURL(os.Getenv("EMBED_URL")),
		ParseURL:   trimURL(getenvDefault("PARSE_URL", "http://localhost:8001")),
		QAURL:      trimURL(getenvDefault("QA_URL", "http://localhost:8001")),
		SpellURL:   trimURL(os.Getenv("SPELL_URL")),
		NLPAPIKey:  os.Getenv("NLP_API_KEY"),
		NLPTimeout: time.Duration(getenvIntDefault("NLP_TIMEOUT_SECONDS", 8)) * time.Second,

		LLM: loadLLM(),

		CatalogPath:        getenvDefault("CATALOG_PATH", "catalog.yaml"),
		DecisionThreshold:  getenvFloatDefault("DECISION_THRESHOLD", 0.10),
		DefaultPollTime:    getenvDefault("DEFAULT_POLL_TIME", "10pm"),
		NegativeContext:    os.Getenv("NEGATIVE_CONTEXT"),
		AffirmativeContext: os.Getenv("AFFIRMATIVE_CONTEXT"),
		Retries:            getenvIntDefault("COLLABORATOR_RETRIES", 1),

		PollTTL:            getenvDurationDefault("POLL_TTL", 24*time.Hour),
		PollExpiryInterval: getenvDurationDefault("POLL_EXPIRY_INTERVAL", time.Minute),

		Log: loadLog(),
	}

	if err := validate(cfg); err != nil {
		return ServerConfig{}, err
	}
	if cfg.EmbedURL == "" && cfg.LLM.OpenAIAPIKey == "" {
		return ServerConfig{}, oops.In("config").Errorf("EMBED_URL or OPENAI_API_KEY is required")
	}
	if cfg.LLM.Provider == "openai" && cfg.GrammarURL == "" && cfg.LLM.OpenAIAPIKey == "" {
		return ServerConfig{}, oops.In("config").Errorf("OPENAI_API_KEY is required when LLM_PROVIDER=openai")
	}
	if cfg.LLM.Provider == "claude" && cfg.GrammarURL == "" && cfg.LLM.AnthropicAPIKey == "" {
		return ServerConfig{}, oops.In("config").Errorf("ANTHROPIC_API_KEY is required when LLM_PROVIDER=claude")
	}
	return cfg, nil
}

func LoadSpellServerConfig() (SpellServerConfig, error) {
	cfg := SpellServerConfig{
		HTTPAddr:     getenvDefault("SPELL_HTTP_ADDR", ":9012"),
		MaxBodyBytes: int64(getenvIntDefault("SPELL_MAX_BODY_BYTES", 65536)),
		MaxWords:     getenvIntDefault("SPELL_MAX_WORDS", 512),
		Log:          loadLog(),
	}
	if err := validate(cfg); err != nil {
		return SpellServerConfig{}, err
	}
	return cfg, nil
}

func LoadCatalogBuilderConfig() (CatalogBuilderConfig, error) {
	cfg := CatalogBuilderConfig{
		EmbedURL:   trimURL(os.Getenv("EMBED_URL")),
		NLPAPIKey:  os.Getenv("NLP_API_KEY"),
		NLPTimeout: time.Duration(getenvIntDefault("NLP_TIMEOUT_SECONDS", 30)) * time.Second,
		LLM:        loadLLM(),
	}
	if err := validate(cfg); err != nil {
		return CatalogBuilderConfig{}, err
	}
	if cfg.EmbedURL == "" && cfg.LLM.OpenAIAPIKey == "" {
		return CatalogBuilderConfig{}, oops.In("config").Errorf("EMBED_URL or OPENAI_API_KEY is required")
	}
	return cfg, nil
}

func LoadChatSimConfig() (ChatSimConfig, error) {
	cfg := ChatSimConfig{
		ServerURL: trimURL(getenvDefault("SCHEDBOT_API_BASE_URL", "http://localhost:9010")),
		UserID:    getenvDefault("USER_ID", "demo-user"),
		MQTT:      loadMQTT("CHAT_SIM_MQTT_CLIENT_ID", "schedbot-chat-sim"),
	}
	if err := validate(cfg); err != nil {
		return ChatSimConfig{}, err
	}
	return cfg, nil
}

func loadMQTT(clientIDKey, clientID string) MQTTConfig {
	return MQTTConfig{
		BrokerURL:   os.Getenv("MQTT_BROKER_URL"),
		ClientID:    getenvDefault(clientIDKey, clientID),
		Username:    os.Getenv("MQTT_USERNAME"),
		Password:    os.Getenv("MQTT_PASSWORD"),
		TopicPrefix: getenvDefault("MQTT_TOPIC_PREFIX", "schedbot"),
	}
}

func loadLLM() LLMConfig {
	return LLMConfig{
		Provider:         strings.ToLower(os.Getenv("LLM_PROVIDER")),
		Model:            getenvDefault("LLM_MODEL", "gpt-4o-mini"),
		EmbeddingModel:   os.Getenv("EMBEDDING_MODEL"),
		OpenAIBaseURL:    trimURL(getenvDefault("OPENAI_BASE_URL", "https://api.openai.com/v1")),
		OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
		AnthropicBaseURL: trimURL(getenvDefault("ANTHROPIC_BASE_URL", "https://api.anthropic.com")),
		AnthropicAPIKey:  os.Getenv("ANTHROPIC_API_KEY"),
		Timeout:          time.Duration(getenvIntDefault("LLM_TIMEOUT_SECONDS", 15)) * time.Second,
	}
}

func loadLog() LogConfig {
	return LogConfig{
		Format:         strings.ToLower(getenvDefault("LOG_FORMAT", "console")),
		TelegramToken:  os.Getenv("LOG_TELEGRAM_TOKEN"),
		TelegramChatID: os.Getenv("LOG_TELEGRAM_CHAT_ID"),
	}
}

func validate(cfg any) error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(cfg); err != nil {
		return oops.In("config").Errorf("failed to validate config: %w", err)
	}
	return nil
}

func trimURL(v string) string {
	return strings.TrimRight(strings.TrimSpace(v), "/")
}

func getenvDefault(key, val string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return val
}

func getenvIntDefault(key string, val int) int {
	v := os.Getenv(key)
	if v == "" {
		return val
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return val
	}
	return n
}

func getenvFloatDefault(key string, val float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return val
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return val
	}
	return f
}

// getenvDurationDefault accepts Go durations ("90s", "24h") or bare seconds.
func getenvDurationDefault(key string, val time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return val
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return val
}
