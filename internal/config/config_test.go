package config

import (
	"strings"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"APP_ENV", "APP_PORT", "DB_DSN", "ADMIN_USERNAME", "ADMIN_PASSWORD", "JWT_SECRET",
		"OPENAI_API_KEY", "DEEPSEEK_API_KEY",
		"TOKEN_TTL", "PROVIDER_TIMEOUT", "PROVIDER_MAX_ATTEMPTS", "PROVIDER_RETRY_DELAY",
		"RATE_LIMIT_MAX", "RATE_LIMIT_WINDOW", "COMMAND_MODE", "CORS_ORIGINS",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg := Load()

	if cfg.Port != "8080" {
		t.Errorf("Load() Port = %v, want 8080", cfg.Port)
	}
	if cfg.TokenTTL != 24*time.Hour {
		t.Errorf("Load() TokenTTL = %v, want 24h", cfg.TokenTTL)
	}
	if cfg.RateLimitMax != 5 || cfg.RateLimitWindow != time.Minute {
		t.Errorf("Load() rate limit = %d/%s, want 5/1m", cfg.RateLimitMax, cfg.RateLimitWindow)
	}
	if cfg.ProviderMaxAttempts != 3 || cfg.ProviderRetryDelay != time.Second {
		t.Errorf("Load() retry = %d/%s, want 3/1s", cfg.ProviderMaxAttempts, cfg.ProviderRetryDelay)
	}
	if cfg.ProviderTimeout != 30*time.Second {
		t.Errorf("Load() ProviderTimeout = %v, want 30s", cfg.ProviderTimeout)
	}
	if cfg.CommandMode != CommandModeApply {
		t.Errorf("Load() CommandMode = %q, want %q", cfg.CommandMode, CommandModeApply)
	}
}

func TestLoad_FromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("ADMIN_USERNAME", "aman")
	t.Setenv("ADMIN_PASSWORD", "s3cret")
	t.Setenv("JWT_SECRET", "signing-key")
	t.Setenv("RATE_LIMIT_MAX", "10")
	t.Setenv("RATE_LIMIT_WINDOW", "2m")
	t.Setenv("COMMAND_MODE", "Delegate")
	t.Setenv("CORS_ORIGINS", "https://a.example, ,https://b.example")

	cfg := Load()

	if cfg.AdminUsername != "aman" || cfg.AdminPassword != "s3cret" || cfg.JWTSecret != "signing-key" {
		t.Errorf("Load() admin identity not read from env: %+v", cfg)
	}
	if cfg.RateLimitMax != 10 || cfg.RateLimitWindow != 2*time.Minute {
		t.Errorf("Load() rate limit = %d/%s, want 10/2m", cfg.RateLimitMax, cfg.RateLimitWindow)
	}
	if cfg.CommandMode != CommandModeDelegate {
		t.Errorf("Load() CommandMode = %q, want delegate", cfg.CommandMode)
	}
	if len(cfg.CORSOrigins) != 2 {
		t.Errorf("Load() CORSOrigins = %v, want 2 entries", cfg.CORSOrigins)
	}
}

func TestLoad_InvalidNumbersFallBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("RATE_LIMIT_MAX", "many")
	t.Setenv("PROVIDER_TIMEOUT", "soon")

	cfg := Load()

	if cfg.RateLimitMax != 5 {
		t.Errorf("Load() RateLimitMax = %d, want 5 (default)", cfg.RateLimitMax)
	}
	if cfg.ProviderTimeout != 30*time.Second {
		t.Errorf("Load() ProviderTimeout = %s, want 30s (default)", cfg.ProviderTimeout)
	}
}

func TestValidate(t *testing.T) {
	clearEnv(t)
	valid := func() Config {
		c := Load()
		c.AdminUsername = "admin"
		c.AdminPassword = "pw"
		c.JWTSecret = "secret"
		c.OpenAIAPIKey = "sk-test"
		c.DeepSeekAPIKey = "sk-test"
		return c
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing username", func(c *Config) { c.AdminUsername = "" }, "ADMIN_USERNAME"},
		{"missing password", func(c *Config) { c.AdminPassword = "" }, "ADMIN_PASSWORD"},
		{"password too long", func(c *Config) { c.AdminPassword = strings.Repeat("p", MaxAdminPasswordBytes+1) }, "at most 72 bytes"},
		{"password at limit", func(c *Config) { c.AdminPassword = strings.Repeat("p", MaxAdminPasswordBytes) }, ""},
		{"missing secret", func(c *Config) { c.JWTSecret = "" }, "JWT_SECRET"},
		{"missing openai key", func(c *Config) { c.OpenAIAPIKey = "" }, "OPENAI_API_KEY"},
		{"missing deepseek key", func(c *Config) { c.DeepSeekAPIKey = "" }, "DEEPSEEK_API_KEY"},
		{"zero rate limit", func(c *Config) { c.RateLimitMax = 0 }, "RATE_LIMIT_MAX"},
		{"too many attempts", func(c *Config) { c.ProviderMaxAttempts = 11 }, "PROVIDER_MAX_ATTEMPTS"},
		{"unknown command mode", func(c *Config) { c.CommandMode = "maybe" }, "COMMAND_MODE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			err := Validate(c)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() error = %v, want mention of %s", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_ReportsAllMissingCredentials(t *testing.T) {
	clearEnv(t)
	err := Validate(Load())
	if err == nil {
		t.Fatal("Validate() should fail without admin identity")
	}
	for _, k := range []string{"ADMIN_USERNAME", "ADMIN_PASSWORD", "JWT_SECRET", "OPENAI_API_KEY", "DEEPSEEK_API_KEY"} {
		if !strings.Contains(err.Error(), k) {
			t.Errorf("Validate() error %q does not mention %s", err, k)
		}
	}
}
