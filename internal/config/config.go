package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App      App      `mapstructure:"app"`
	Server   Server   `mapstructure:"server"`
	Database Database `mapstructure:"database"`
	Redis    Redis    `mapstructure:"redis"`
	Admin    Admin    `mapstructure:"admin"`
	Search   Search   `mapstructure:"search"`
	LLM      LLM      `mapstructure:"llm"`
	Cache    Cache    `mapstructure:"cache"`
}

// App holds general application configuration
type App struct {
	Name     string `mapstructure:"name"`
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
}

// Server holds HTTP server configuration
type Server struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	CORS         CORS          `mapstructure:"cors"`
}

// CORS holds cross-origin configuration for the HTTP server
type CORS struct {
	Enabled        bool     `mapstructure:"enabled"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Database holds the Postgres connection configuration
type Database struct {
	URL string `mapstructure:"url"`
}

// Redis holds cache backend configuration
type Redis struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// Admin holds administrator credential and token configuration
type Admin struct {
	Username  string        `mapstructure:"username"`
	Password  string        `mapstructure:"password"`
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

// Search holds search provider configuration
type Search struct {
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxResults int           `mapstructure:"max_results"`
	Language   string        `mapstructure:"language"`
	Region     string        `mapstructure:"region"`
}

// LLM holds analysis provider configuration
type LLM struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// Cache holds TTLs for the two cached payload kinds
type Cache struct {
	ResponseTTL time.Duration `mapstructure:"response_ttl"`
	ConfigTTL   time.Duration `mapstructure:"config_ttl"`
}

// Load reads configuration from an optional YAML file, .env, and environment
// variables (TOP3_ prefix, e.g. TOP3_DATABASE_URL).
func Load(cfgFile string) (*Config, error) {
	// Load .env if present; real env vars win over file values
	_ = godotenv.Load()

	setDefaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName(".top3hunter")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(home)
		}
	}

	viper.SetEnvPrefix("TOP3")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("app.name", "top3hunter")
	viper.SetDefault("app.debug", false)
	viper.SetDefault("app.log_level", "info")

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8000)
	viper.SetDefault("server.read_timeout", "15s")
	viper.SetDefault("server.write_timeout", "90s")
	viper.SetDefault("server.cors.enabled", true)
	viper.SetDefault("server.cors.allowed_origins", []string{"*"})

	viper.SetDefault("database.url", "postgres://localhost:5432/top3hunter?sslmode=disable")

	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.prefix", "top3_hunter")

	viper.SetDefault("admin.username", "admin")
	viper.SetDefault("admin.password", "")
	viper.SetDefault("admin.jwt_secret", "")
	viper.SetDefault("admin.token_ttl", "24h")

	viper.SetDefault("search.timeout", "30s")
	viper.SetDefault("search.max_results", 10)
	viper.SetDefault("search.language", "en")
	viper.SetDefault("search.region", "us")

	viper.SetDefault("llm.timeout", "60s")

	viper.SetDefault("cache.response_ttl", "6h")
	viper.SetDefault("cache.config_ttl", "60s")
}

// validate ensures required configuration is present
func validate(cfg *Config) error {
	var errs []string

	if cfg.Database.URL == "" {
		errs = append(errs, "database URL is required. Set TOP3_DATABASE_URL or database.url in the config file")
	}
	if cfg.Redis.Addr == "" {
		errs = append(errs, "redis address is required. Set TOP3_REDIS_ADDR or redis.addr in the config file")
	}
	if cfg.Admin.Password == "" {
		errs = append(errs, "admin password is required. Set TOP3_ADMIN_PASSWORD")
	}
	if cfg.Admin.JWTSecret == "" {
		errs = append(errs, "JWT secret is required. Set TOP3_ADMIN_JWT_SECRET")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}

// Reset clears viper state (useful for testing)
func Reset() {
	viper.Reset()
}
