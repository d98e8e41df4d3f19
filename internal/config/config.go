package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Env  string
	Port string

	DBDSN string

	// admin identity + token signing
	AdminUsername string
	AdminPassword string
	JWTSecret     string
	TokenTTL      time.Duration

	// AI providers
	OpenAIBaseURL   string
	OpenAIAPIKey    string
	DeepSeekBaseURL string
	DeepSeekAPIKey  string
	DeepSeekModel   string
	OllamaBaseURL   string
	OllamaModel     string
	SystemPrompt    string

	ProviderTimeout     time.Duration
	ProviderMaxAttempts int
	ProviderRetryDelay  time.Duration

	// rate limiting
	RateLimitMax    int
	RateLimitWindow time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	// redis list the worker mirrors activity into
	ActivityFeedKey string

	// rabbitMQ (optional activity fan-out)
	RabbitURL   string
	RabbitQueue string

	// "apply" mutates content from the chat endpoint, "delegate" returns the parsed command
	CommandMode string
	CORSOrigins []string
}

const (
	CommandModeApply    = "apply"
	CommandModeDelegate = "delegate"

	// bcrypt cannot hash longer passwords
	MaxAdminPasswordBytes = 72
)

func getenv(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func getInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return n
}

func getDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return d
}

func Load() Config {
	var origins []string
	for _, o := range strings.Split(os.Getenv("CORS_ORIGINS"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}

	return Config{
		Env:   getenv("APP_ENV", "dev"),
		Port:  getenv("APP_PORT", "8080"),
		DBDSN: getenv("DB_DSN", "file:folio.db?_pragma=busy_timeout(5000)"),

		// no defaults: Validate rejects empty values
		AdminUsername: os.Getenv("ADMIN_USERNAME"),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),
		JWTSecret:     os.Getenv("JWT_SECRET"),
		TokenTTL:      getDuration("TOKEN_TTL", 24*time.Hour),

		OpenAIBaseURL:   getenv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
		DeepSeekBaseURL: getenv("DEEPSEEK_BASE_URL", "https://api.deepseek.com/v1"),
		DeepSeekAPIKey:  os.Getenv("DEEPSEEK_API_KEY"),
		DeepSeekModel:   getenv("DEEPSEEK_MODEL", "deepseek-chat"),
		OllamaBaseURL:   os.Getenv("OLLAMA_BASE_URL"),
		OllamaModel:     getenv("OLLAMA_MODEL", "llama3:latest"),
		SystemPrompt:    os.Getenv("SYSTEM_PROMPT"),

		ProviderTimeout:     getDuration("PROVIDER_TIMEOUT", 30*time.Second),
		ProviderMaxAttempts: getInt("PROVIDER_MAX_ATTEMPTS", 3),
		ProviderRetryDelay:  getDuration("PROVIDER_RETRY_DELAY", time.Second),

		RateLimitMax:    getInt("RATE_LIMIT_MAX", 5),
		RateLimitWindow: getDuration("RATE_LIMIT_WINDOW", 60*time.Second),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getInt("REDIS_DB", 0),

		ActivityFeedKey: getenv("ACTIVITY_FEED_KEY", "activity:recent"),

		RabbitURL:   os.Getenv("RABBIT_URL"),
		RabbitQueue: getenv("RABBIT_QUEUE", "admin_activity"),

		CommandMode: strings.ToLower(getenv("COMMAND_MODE", CommandModeApply)),
		CORSOrigins: origins,
	}
}

// Validate reports every missing or out-of-range setting at once.
func Validate(cfg Config) error {
	var errs []error
	if cfg.AdminUsername == "" {
		errs = append(errs, errors.New("ADMIN_USERNAME is required"))
	}
	if cfg.AdminPassword == "" {
		errs = append(errs, errors.New("ADMIN_PASSWORD is required"))
	} else if len(cfg.AdminPassword) > MaxAdminPasswordBytes {
		errs = append(errs, fmt.Errorf("ADMIN_PASSWORD must be at most %d bytes, got %d", MaxAdminPasswordBytes, len(cfg.AdminPassword)))
	}
	if cfg.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if cfg.OpenAIAPIKey == "" {
		errs = append(errs, errors.New("OPENAI_API_KEY is required"))
	}
	if cfg.DeepSeekAPIKey == "" {
		errs = append(errs, errors.New("DEEPSEEK_API_KEY is required"))
	}
	if cfg.Port == "" {
		errs = append(errs, errors.New("APP_PORT must not be empty"))
	}
	if cfg.DBDSN == "" {
		errs = append(errs, errors.New("DB_DSN must not be empty"))
	}
	if cfg.TokenTTL <= 0 {
		errs = append(errs, fmt.Errorf("TOKEN_TTL must be positive, got %s", cfg.TokenTTL))
	}
	if cfg.ProviderTimeout <= 0 {
		errs = append(errs, fmt.Errorf("PROVIDER_TIMEOUT must be positive, got %s", cfg.ProviderTimeout))
	}
	if cfg.ProviderMaxAttempts < 1 || cfg.ProviderMaxAttempts > 10 {
		errs = append(errs, fmt.Errorf("PROVIDER_MAX_ATTEMPTS must be in [1,10], got %d", cfg.ProviderMaxAttempts))
	}
	if cfg.ProviderRetryDelay < 0 {
		errs = append(errs, fmt.Errorf("PROVIDER_RETRY_DELAY must not be negative, got %s", cfg.ProviderRetryDelay))
	}
	if cfg.RateLimitMax < 1 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_MAX must be positive, got %d", cfg.RateLimitMax))
	}
	if cfg.RateLimitWindow <= 0 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_WINDOW must be positive, got %s", cfg.RateLimitWindow))
	}
	switch cfg.CommandMode {
	case CommandModeApply, CommandModeDelegate:
	default:
		errs = append(errs, fmt.Errorf("COMMAND_MODE must be %q or %q, got %q", CommandModeApply, CommandModeDelegate, cfg.CommandMode))
	}
	return errors.Join(errs...)
}
