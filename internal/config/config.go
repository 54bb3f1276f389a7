package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type APIConfig struct {
	Addr            string        `env:"ODYSSEY_API_ADDR" envDefault:":8080"`
	DatabaseURL     string        `env:"DATABASE_URL"`
	SupabaseURL     string        `env:"SUPABASE_URL"`
	SupabaseAnonKey string        `env:"SUPABASE_ANON_KEY"`
	DisableLogin    bool          `env:"ODYSSEY_DISABLE_LOGIN" envDefault:"false"`
	AdminEmails     []string      `env:"ODYSSEY_ADMIN_EMAILS" envSeparator:","`
	LockTimeout     time.Duration `env:"ODYSSEY_LOCK_TIMEOUT" envDefault:"3s"`
	StartupSeed     bool          `env:"ODYSSEY_STARTUP_SEED" envDefault:"true"`
}

type WorkerConfig struct {
	DatabaseURL string        `env:"DATABASE_URL"`
	SweepEvery  time.Duration `env:"ODYSSEY_SWEEP_EVERY" envDefault:"1m"`
}

type CLIConfig struct {
	APIBaseURL string `env:"ODY_API_BASE_URL" envDefault:"http://localhost:8080"`
}

func LoadAPIFromEnv() (APIConfig, error) {
	var cfg APIConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, err
	}
	// Platform-assigned port wins over the configured address.
	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		cfg.Addr = ":" + strings.TrimPrefix(port, ":")
	}
	cfg.DatabaseURL = strings.TrimSpace(cfg.DatabaseURL)
	cfg.SupabaseURL = strings.TrimRight(strings.TrimSpace(cfg.SupabaseURL), "/")
	cfg.SupabaseAnonKey = strings.TrimSpace(cfg.SupabaseAnonKey)

	if cfg.DatabaseURL == "" {
		return cfg, fmt.Errorf("DATABASE_URL is required")
	}
	if !cfg.DisableLogin {
		if cfg.SupabaseURL == "" {
			return cfg, fmt.Errorf("SUPABASE_URL is required unless ODYSSEY_DISABLE_LOGIN is set")
		}
		if cfg.SupabaseAnonKey == "" {
			return cfg, fmt.Errorf("SUPABASE_ANON_KEY is required unless ODYSSEY_DISABLE_LOGIN is set")
		}
	}
	for i := range cfg.AdminEmails {
		cfg.AdminEmails[i] = strings.ToLower(strings.TrimSpace(cfg.AdminEmails[i]))
	}
	return cfg, nil
}

func (c APIConfig) IsAdminEmail(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	for _, admin := range c.AdminEmails {
		if admin != "" && admin == email {
			return true
		}
	}
	return false
}

func LoadWorkerFromEnv() (WorkerConfig, error) {
	var cfg WorkerConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, err
	}
	cfg.DatabaseURL = strings.TrimSpace(cfg.DatabaseURL)
	if cfg.DatabaseURL == "" {
		return cfg, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.SweepEvery < time.Second {
		return cfg, fmt.Errorf("ODYSSEY_SWEEP_EVERY must be at least 1s")
	}
	return cfg, nil
}

func LoadCLIFromEnv() CLIConfig {
	var cfg CLIConfig
	_ = env.Parse(&cfg)
	cfg.APIBaseURL = strings.TrimRight(cfg.APIBaseURL, "/")
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = "http://localhost:8080"
	}
	return cfg
}
