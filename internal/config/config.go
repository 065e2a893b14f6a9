package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is process configuration. The user-editable forwarding settings
// live in the record store, not here.
type Config struct {
	Server struct {
		Port               int           `mapstructure:"port"`
		CorsAllowedOrigins []string      `mapstructure:"cors_allowed_origins"`
		CorsAllowedMethods []string      `mapstructure:"cors_allowed_methods"`
		CorsAllowedHeaders []string      `mapstructure:"cors_allowed_headers"`
		ShutdownTimeout    time.Duration `mapstructure:"shutdown_timeout"`
	} `mapstructure:"server"`

	Log struct {
		Development bool `mapstructure:"development"`
	} `mapstructure:"log"`

	Storage struct {
		Driver   string `mapstructure:"driver"` // "bolt" or "postgres"
		BoltPath string `mapstructure:"bolt_path"`
	} `mapstructure:"storage"`

	Database struct {
		Host     string `mapstructure:"host"`
		Port     int    `mapstructure:"port"`
		User     string `mapstructure:"user"`
		Password string `mapstructure:"password"`
		Name     string `mapstructure:"name"`
		SSLMode  string `mapstructure:"sslmode"`
	} `mapstructure:"database"`

	Redis struct {
		Enabled  bool   `mapstructure:"enabled"`
		Addr     string `mapstructure:"addr"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	} `mapstructure:"redis"`

	SMS struct {
		Source            string        `mapstructure:"source"` // "inbox" or "gateway"
		GatewayURL        string        `mapstructure:"gateway_url"`
		GatewayToken      string        `mapstructure:"gateway_token"`
		PollInterval      time.Duration `mapstructure:"poll_interval"`
		HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
		InboxCapacity     int           `mapstructure:"inbox_capacity"`
		AutoStart         bool          `mapstructure:"auto_start"`
	} `mapstructure:"sms"`

	Forwarding struct {
		Timeout       time.Duration `mapstructure:"timeout"`
		SweepInterval time.Duration `mapstructure:"sweep_interval"`
	} `mapstructure:"forwarding"`

	// Secrets keys the sealing of stored credentials (the SMTP password).
	// Key wins over KeyFile; a missing KeyFile is generated on first start.
	Secrets struct {
		Key     string `mapstructure:"key"`
		KeyFile string `mapstructure:"key_file"`
	} `mapstructure:"secrets"`

	JWT struct {
		Enabled         bool   `mapstructure:"enabled"`
		Secret          string `mapstructure:"secret"`
		ExpirationHours int    `mapstructure:"expiration_hours"`
		Issuer          string `mapstructure:"issuer"`
	} `mapstructure:"jwt"`
}

// Load reads configs/config.yaml (optional), .env (optional) and the
// environment. Nested keys map to env vars with "_" (SERVER_PORT, SMS_SOURCE).
func Load() (*Config, error) {
	// Load .env file if exists (ignore error in production)
	godotenv.Load()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(configPath())
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Config file is optional
	if err := v.ReadInConfig(); err != nil {
		if _, statErr := os.Stat(v.ConfigFileUsed()); statErr == nil {
			return nil, fmt.Errorf("read config %s: %w", v.ConfigFileUsed(), err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config unmarshal error: %w", err)
	}

	// DB_* variables take precedence, matching common container setups
	if host := os.Getenv("DB_HOST"); host != "" {
		cfg.Database.Host = host
	}
	if port := os.Getenv("DB_PORT"); port != "" {
		if n, err := strconv.Atoi(port); err == nil && n > 0 {
			cfg.Database.Port = n
		}
	}
	if user := os.Getenv("DB_USER"); user != "" {
		cfg.Database.User = user
	}
	if pass := os.Getenv("DB_PASSWORD"); pass != "" {
		cfg.Database.Password = pass
	}
	if name := os.Getenv("DB_NAME"); name != "" {
		cfg.Database.Name = name
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		cfg.JWT.Secret = secret
	}
	if key := os.Getenv("OTPLINK_SECRET_KEY"); key != "" {
		cfg.Secrets.Key = key
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func configPath() string {
	if p := os.Getenv("OTPLINK_CONFIG"); p != "" {
		return p
	}
	return "configs/config.yaml"
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_allowed_origins", []string{"*"})
	v.SetDefault("server.cors_allowed_methods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	v.SetDefault("server.cors_allowed_headers", []string{"Authorization", "Content-Type"})
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("log.development", false)

	v.SetDefault("storage.driver", "bolt")
	v.SetDefault("storage.bolt_path", "otplink.db")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.name", "otplink")
	v.SetDefault("database.sslmode", "disable")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("sms.source", "inbox")
	v.SetDefault("sms.poll_interval", 2*time.Second)
	v.SetDefault("sms.heartbeat_interval", 10*time.Second)
	v.SetDefault("sms.inbox_capacity", 500)
	v.SetDefault("sms.auto_start", true)

	v.SetDefault("forwarding.timeout", 10*time.Second)
	v.SetDefault("forwarding.sweep_interval", time.Minute)

	v.SetDefault("secrets.key", "")
	v.SetDefault("secrets.key_file", "otplink.key")

	v.SetDefault("jwt.enabled", false)
	v.SetDefault("jwt.expiration_hours", 24)
	v.SetDefault("jwt.issuer", "otplink")
}

func (c *Config) validate() error {
	switch c.Storage.Driver {
	case "bolt", "postgres":
	default:
		return fmt.Errorf("storage.driver must be bolt or postgres, got %q", c.Storage.Driver)
	}
	switch c.SMS.Source {
	case "inbox":
	case "gateway":
		if c.SMS.GatewayURL == "" {
			return fmt.Errorf("sms.gateway_url is required for the gateway source")
		}
	default:
		return fmt.Errorf("sms.source must be inbox or gateway, got %q", c.SMS.Source)
	}
	if c.SMS.PollInterval <= 0 || c.SMS.HeartbeatInterval <= 0 {
		return fmt.Errorf("sms poll and heartbeat intervals must be positive")
	}
	if c.Forwarding.Timeout <= 0 || c.Forwarding.SweepInterval <= 0 {
		return fmt.Errorf("forwarding timeout and sweep interval must be positive")
	}
	if c.Secrets.Key == "" && c.Secrets.KeyFile == "" {
		return fmt.Errorf("secrets.key or secrets.key_file is required")
	}
	if c.JWT.Enabled && c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required when jwt.enabled is set")
	}
	return nil
}

// DatabaseURL builds the pgx connection string.
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}
