package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds runtime configuration parsed from environment variables.
type Config struct {
	HTTPAddr        string
	DBConnString    string
	ShutdownTimeout time.Duration
	Env             string
	CORSOrigins     []string
	DevLogin        bool

	Log    LogConfig
	JWT    JWTConfig
	Client ClientConfig
	Redis  RedisConfig
}

type LogConfig struct {
	Level  string
	Format string
}

type JWTConfig struct {
	Secret string
	TTL    time.Duration
}

// ClientConfig configures the cart client binary.
type ClientConfig struct {
	BaseURL        string
	CartRoot       string
	Timeout        time.Duration
	RateLimit      float64
	SessionBackend string
	Token          string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// FromEnv builds Config with defaults, overridden by environment variables.
func FromEnv() Config {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	return Config{
		HTTPAddr:        v.GetString("HTTP_ADDR"),
		DBConnString:    v.GetString("DB_DSN"),
		ShutdownTimeout: envDuration(v, "SHUTDOWN_TIMEOUT_SECONDS", 10*time.Second),
		Env:             v.GetString("APP_ENV"),
		CORSOrigins:     splitList(v.GetString("CORS_ORIGINS")),
		DevLogin:        v.GetBool("DEV_LOGIN"),
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
		JWT: JWTConfig{
			Secret: v.GetString("JWT_SECRET"),
			TTL:    envHours(v, "JWT_TTL_HOURS", 24*time.Hour),
		},
		Client: ClientConfig{
			BaseURL:        v.GetString("CART_API_BASE_URL"),
			CartRoot:       v.GetString("CART_ROOT"),
			Timeout:        envDuration(v, "CART_HTTP_TIMEOUT_SECONDS", 15*time.Second),
			RateLimit:      v.GetFloat64("CART_RATE_LIMIT_RPS"),
			SessionBackend: v.GetString("SESSION_BACKEND"),
			Token:          v.GetString("CART_TOKEN"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("DB_DSN", "")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("CORS_ORIGINS", "*")
	v.SetDefault("DEV_LOGIN", false)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")
	v.SetDefault("JWT_SECRET", "change-me")

	v.SetDefault("CART_API_BASE_URL", "http://localhost:8080/api")
	v.SetDefault("CART_ROOT", "/user/cart")
	v.SetDefault("CART_RATE_LIMIT_RPS", 0)
	v.SetDefault("SESSION_BACKEND", "memory")
	v.SetDefault("CART_TOKEN", "")

	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
}

// envDuration reads an integer number of seconds. Non-positive or unparsable
// values fall back to def.
func envDuration(v *viper.Viper, key string, def time.Duration) time.Duration {
	if n := v.GetInt(key); n > 0 {
		return time.Duration(n) * time.Second
	}
	return def
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func envHours(v *viper.Viper, key string, def time.Duration) time.Duration {
	if n := v.GetInt(key); n > 0 {
		return time.Duration(n) * time.Hour
	}
	return def
}
