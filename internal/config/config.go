package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App      AppConfig
	WebChain WebChainConfig
	Tables   TablesConfig
	Queue    QueueConfig
	Mail     MailConfig
	Auth     AuthConfig
	Redis    RedisConfig
	Log      LogConfig
}

// AppConfig holds application-specific settings.
type AppConfig struct {
	Name     string
	Env      string
	Port     string
	SiteName string
}

// WebChainConfig holds settings for the remote WebChain API.
type WebChainConfig struct {
	APIBaseURL      string
	ExplorerBaseURL string
	Timeout         time.Duration
}

// TablesConfig names the DynamoDB tables this service uses.
type TablesConfig struct {
	Orders           string
	BroadcastRecords string
	Settings         string
}

// QueueConfig holds the completed-order queue settings.
type QueueConfig struct {
	CompletedOrdersURL string
}

// MailConfig holds notification mail settings.
type MailConfig struct {
	AdminEmail  string
	SenderEmail string
}

// AuthConfig holds trigger authorization settings.
type AuthConfig struct {
	JWTSecret string
	Issuer    string
}

// RedisConfig holds Redis connection settings for the nonce store.
// Leave Addr empty to use the in-memory store instead.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string
	Format string
	Output string
}

// Load reads configuration from an optional config file, falling back to
// defaults, with WEBCHAIN_-prefixed environment variable overrides.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// no config file is fine, defaults + env vars apply
	}

	v.SetEnvPrefix("WEBCHAIN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	cfg := &Config{
		App: AppConfig{
			Name:     v.GetString("app.name"),
			Env:      v.GetString("app.env"),
			Port:     v.GetString("app.port"),
			SiteName: v.GetString("app.site_name"),
		},
		WebChain: WebChainConfig{
			APIBaseURL:      v.GetString("webchain.api_base_url"),
			ExplorerBaseURL: v.GetString("webchain.explorer_base_url"),
			Timeout:         v.GetDuration("webchain.timeout"),
		},
		Tables: TablesConfig{
			Orders:           v.GetString("tables.orders"),
			BroadcastRecords: v.GetString("tables.broadcast_records"),
			Settings:         v.GetString("tables.settings"),
		},
		Queue: QueueConfig{
			CompletedOrdersURL: v.GetString("queue.completed_orders_url"),
		},
		Mail: MailConfig{
			AdminEmail:  v.GetString("mail.admin_email"),
			SenderEmail: v.GetString("mail.sender_email"),
		},
		Auth: AuthConfig{
			JWTSecret: v.GetString("auth.jwt_secret"),
			Issuer:    v.GetString("auth.issuer"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "webchain-order-sync")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("app.site_name", "E-Talk Store")
	v.SetDefault("webchain.api_base_url", "https://e-talk.xyz/wp-json/webchain/v1")
	v.SetDefault("webchain.explorer_base_url", "https://e-talk.xyz")
	v.SetDefault("webchain.timeout", 30*time.Second)
	v.SetDefault("tables.orders", "orders")
	v.SetDefault("tables.broadcast_records", "webchain-broadcast-records")
	v.SetDefault("tables.settings", "webchain-settings")
	v.SetDefault("auth.issuer", "webchain-order-sync")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output", "stdout")
}

func (c *Config) validate() error {
	if c.WebChain.APIBaseURL == "" {
		return fmt.Errorf("webchain.api_base_url must not be empty")
	}
	if c.WebChain.Timeout <= 0 {
		return fmt.Errorf("webchain.timeout must be positive, got %s", c.WebChain.Timeout)
	}
	return nil
}
