package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Addr                string        `yaml:"addr"`
	DatabaseURL         string        `yaml:"databaseUrl"`
	JWTSecret           string        `yaml:"jwtSecret"`
	Environment         string        `yaml:"environment"`
	AllowedOrigins      []string      `yaml:"allowedOrigins"`
	EmailFrom           string        `yaml:"emailFrom"`
	EmailEnabled        bool          `yaml:"emailEnabled"`
	SMTPHost            string        `yaml:"smtpHost"`
	SMTPPort            int           `yaml:"smtpPort"`
	SMTPUser            string        `yaml:"smtpUser"`
	SMTPPassword        string        `yaml:"smtpPassword"`
	SMTPUseTLS          bool          `yaml:"smtpUseTls"`
	SalaryComputeURL    string        `yaml:"salaryComputeUrl"`
	RunMigrations       bool          `yaml:"runMigrations"`
	MaxBodyBytes        int64         `yaml:"maxBodyBytes"`
	RateLimitPerMinute  int           `yaml:"rateLimitPerMinute"`
	PeriodGenerateCount int           `yaml:"periodGenerateCount"`
	PeriodSweepInterval time.Duration `yaml:"periodSweepInterval"`
	MetricsEnabled      bool          `yaml:"metricsEnabled"`
}

// Load reads configuration from the environment. When PAYROLLD_CONFIG points
// at a YAML file, values set there override the environment.
func Load() (Config, error) {
	cfg := Config{
		Addr:                getEnv("APP_ADDR", ":8080"),
		DatabaseURL:         getEnv("DATABASE_URL", ""),
		JWTSecret:           getEnv("JWT_SECRET", ""),
		Environment:         getEnv("APP_ENV", "development"),
		AllowedOrigins:      splitEnv("ALLOWED_ORIGINS", "*"),
		EmailFrom:           getEnv("EMAIL_FROM", "no-reply@example.com"),
		EmailEnabled:        getEnvBool("EMAIL_ENABLED", false),
		SMTPHost:            getEnv("SMTP_HOST", ""),
		SMTPPort:            getEnvInt("SMTP_PORT", 587),
		SMTPUser:            getEnv("SMTP_USER", ""),
		SMTPPassword:        getEnv("SMTP_PASSWORD", ""),
		SMTPUseTLS:          getEnvBool("SMTP_USE_TLS", true),
		SalaryComputeURL:    getEnv("SALARY_COMPUTE_URL", ""),
		RunMigrations:       getEnvBool("RUN_MIGRATIONS", true),
		MaxBodyBytes:        int64(getEnvInt("MAX_BODY_BYTES", 1048576)),
		RateLimitPerMinute:  getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
		PeriodGenerateCount: getEnvInt("PERIOD_GENERATE_COUNT", 10),
		PeriodSweepInterval: getEnvDuration("PERIOD_SWEEP_INTERVAL", 0),
		MetricsEnabled:      getEnvBool("METRICS_ENABLED", true),
	}

	if path := os.Getenv("PAYROLLD_CONFIG"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("config file %s: %w", path, err)
		}
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func splitEnv(key, fallback string) []string {
	raw := getEnv(key, fallback)
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.Environment == "production" && strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("JWT_SECRET must be set to a strong value in production")
	}
	if c.MaxBodyBytes < 1024 {
		return fmt.Errorf("MAX_BODY_BYTES must be at least 1024")
	}
	if c.RateLimitPerMinute <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must be positive")
	}
	if c.PeriodGenerateCount <= 0 {
		return fmt.Errorf("PERIOD_GENERATE_COUNT must be positive")
	}
	if c.EmailEnabled && c.SMTPHost == "" {
		return fmt.Errorf("SMTP_HOST must be set when EMAIL_ENABLED is true")
	}
	return nil
}
