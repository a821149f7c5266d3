package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/vladimiradmaev/diabetes-companion/internal/logger"
)

type Config struct {
	HTTP   HTTPConfig
	DB     DBConfig
	AI     AIConfig
	Auth   AuthConfig
	Stripe StripeConfig
	Logger LoggerConfig
}

type HTTPConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DSN renders the libpq-style connection string used by the postgres driver.
func (c DBConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

type AIConfig struct {
	OpenAIAPIKey   string
	GeminiAPIKey   string
	ChatModel      string
	VisionModel    string
	VisionProvider string // "openai" or "gemini"
	GeminiModel    string
}

type AuthConfig struct {
	JWTSecret string
	Issuer    string
}

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
}

type LoggerConfig struct {
	Level      slog.Level
	OutputPath string
	Format     string
}

// envBindings maps viper keys to the environment variables that override them.
var envBindings = map[string]string{
	"http.port":             "HTTP_PORT",
	"http.read_timeout":     "HTTP_READ_TIMEOUT",
	"http.write_timeout":    "HTTP_WRITE_TIMEOUT",
	"http.shutdown_timeout": "HTTP_SHUTDOWN_TIMEOUT",
	"http.allowed_origins":  "CORS_ORIGINS",
	"db.host":               "DB_HOST",
	"db.port":               "DB_PORT",
	"db.user":               "DB_USER",
	"db.password":           "DB_PASSWORD",
	"db.name":               "DB_NAME",
	"db.sslmode":            "DB_SSL_MODE",
	"ai.openai_api_key":     "OPENAI_API_KEY",
	"ai.gemini_api_key":     "GEMINI_API_KEY",
	"ai.chat_model":         "AI_CHAT_MODEL",
	"ai.vision_model":       "AI_VISION_MODEL",
	"ai.vision_provider":    "AI_VISION_PROVIDER",
	"ai.gemini_model":       "AI_GEMINI_MODEL",
	"auth.jwt_secret":       "AUTH_JWT_SECRET",
	"auth.issuer":           "AUTH_ISSUER",
	"stripe.secret_key":     "STRIPE_SECRET_KEY",
	"stripe.webhook_secret": "STRIPE_WEBHOOK_SECRET",
	"log.level":             "LOG_LEVEL",
	"log.output":            "LOG_OUTPUT",
	"log.format":            "LOG_FORMAT",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.port", "8080")
	v.SetDefault("http.read_timeout", 10*time.Second)
	v.SetDefault("http.write_timeout", 60*time.Second)
	v.SetDefault("http.shutdown_timeout", 10*time.Second)
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", "5432")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "postgres")
	v.SetDefault("db.name", "diabetes_companion")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("ai.chat_model", "gpt-4o-mini")
	v.SetDefault("ai.vision_model", "gpt-4o")
	v.SetDefault("ai.vision_provider", "openai")
	v.SetDefault("ai.gemini_model", "gemini-1.5-flash")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("log.format", "json")
}

// Load reads .env (if present), an optional config.yaml and the environment.
// Environment variables win over the file, the file wins over defaults.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	setDefaults(v)
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		HTTP: HTTPConfig{
			Port:            v.GetString("http.port"),
			ReadTimeout:     v.GetDuration("http.read_timeout"),
			WriteTimeout:    v.GetDuration("http.write_timeout"),
			ShutdownTimeout: v.GetDuration("http.shutdown_timeout"),
			AllowedOrigins:  splitList(v.GetString("http.allowed_origins")),
		},
		DB: DBConfig{
			Host:     v.GetString("db.host"),
			Port:     v.GetString("db.port"),
			User:     v.GetString("db.user"),
			Password: v.GetString("db.password"),
			DBName:   v.GetString("db.name"),
			SSLMode:  v.GetString("db.sslmode"),
		},
		AI: AIConfig{
			OpenAIAPIKey:   v.GetString("ai.openai_api_key"),
			GeminiAPIKey:   v.GetString("ai.gemini_api_key"),
			ChatModel:      v.GetString("ai.chat_model"),
			VisionModel:    v.GetString("ai.vision_model"),
			VisionProvider: strings.ToLower(v.GetString("ai.vision_provider")),
			GeminiModel:    v.GetString("ai.gemini_model"),
		},
		Auth: AuthConfig{
			JWTSecret: v.GetString("auth.jwt_secret"),
			Issuer:    v.GetString("auth.issuer"),
		},
		Stripe: StripeConfig{
			SecretKey:     v.GetString("stripe.secret_key"),
			WebhookSecret: v.GetString("stripe.webhook_secret"),
		},
		Logger: LoggerConfig{
			Level:      logger.ParseLevel(v.GetString("log.level")),
			OutputPath: v.GetString("log.output"),
			Format:     v.GetString("log.format"),
		},
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate reports settings the API server cannot start without. Missing AI
// keys are not fatal: the handlers answer config_error instead.
func (c *Config) Validate() error {
	var errs []error
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("AUTH_JWT_SECRET is required"))
	}
	if c.DB.Host == "" || c.DB.DBName == "" {
		errs = append(errs, errors.New("DB_HOST and DB_NAME are required"))
	}
	switch c.AI.VisionProvider {
	case "openai", "gemini":
	default:
		errs = append(errs, fmt.Errorf("AI_VISION_PROVIDER must be openai or gemini, got %q", c.AI.VisionProvider))
	}
	if c.HTTP.Port == "" {
		errs = append(errs, errors.New("HTTP_PORT must not be empty"))
	}
	return errors.Join(errs...)
}
