package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"fieldbook/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Logging    LoggingConfig    `yaml:"logging"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Booking    BookingConfig    `yaml:"booking"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	Google     GoogleConfig     `yaml:"google"`
	Exports    ExportConfig     `yaml:"exports"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	API        APIConfig        `yaml:"api"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

// BookingConfig is the scheduling policy: the default hourly rate, the
// timezone that defines day boundaries, and how far ahead renters may book.
type BookingConfig struct {
	DefaultPricePerHour float64 `yaml:"default_price_per_hour"`
	Timezone            string  `yaml:"timezone"`
	MaxAdvanceDays      int     `yaml:"max_advance_days"`
}

// Location resolves the configured timezone. Empty or "Local" means the
// server's local zone.
func (b BookingConfig) Location() (*time.Location, error) {
	if b.Timezone == "" || b.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(b.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid booking.timezone %q: %w", b.Timezone, err)
	}
	return loc, nil
}

type TelegramConfig struct {
	BotToken     string  `yaml:"bot_token"`
	AdminChatIDs []int64 `yaml:"admin_chat_ids"`
	Debug        bool    `yaml:"debug"`
}

type GoogleConfig struct {
	CredentialsFile      string `yaml:"credentials_file"`
	BookingSpreadsheetID string `yaml:"bookings_spreadsheet_id"`
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type APIConfig struct {
	Port                  int                `yaml:"port"`
	RequestTimeoutSeconds int                `yaml:"request_timeout_seconds"`
	Auth                  APIAuthConfig      `yaml:"auth"`
	RateLimit             APIRateLimitConfig `yaml:"rate_limit"`
}

type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	Keys         []APIClientKey `yaml:"keys"`
	KeysFile     string         `yaml:"keys_file"`
}

// APIClientKey binds an API key to the identity the core consumes: a user id
// and a privileged flag. Authentication itself happens outside the core.
type APIClientKey struct {
	Key        string `yaml:"key"`
	Name       string `yaml:"name"`
	UserID     int64  `yaml:"user_id"`
	Privileged bool   `yaml:"privileged"`
	ChatID     int64  `yaml:"chat_id"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

func Load(configPath string) (*Config, error) {
	// .env отсутствует в большинстве окружений, это не ошибка
	_ = godotenv.Load()

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	// Предварительная замена переменных окружения в YAML
	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}
	if _, err := c.Booking.Location(); err != nil {
		return err
	}
	if c.Booking.DefaultPricePerHour < 0 {
		return errors.New("booking.default_price_per_hour cannot be negative")
	}

	seen := make(map[string]bool, len(c.API.Auth.Keys))
	for _, k := range c.API.Auth.Keys {
		if k.Key == "" {
			return fmt.Errorf("api key for client %q is empty", k.Name)
		}
		if seen[k.Key] {
			return fmt.Errorf("duplicate api key for client %q", k.Name)
		}
		seen[k.Key] = true
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.API.Port == 0 {
		c.API.Port = 8080
	}
	if c.API.RequestTimeoutSeconds == 0 {
		c.API.RequestTimeoutSeconds = 15
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.API.RateLimit.RPS == 0 {
		c.API.RateLimit.RPS = 5
	}
	if c.API.RateLimit.Burst == 0 {
		c.API.RateLimit.Burst = 10
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.Booking.DefaultPricePerHour == 0 {
		c.Booking.DefaultPricePerHour = models.DefaultPricePerHour
	}
	if c.Booking.MaxAdvanceDays == 0 {
		c.Booking.MaxAdvanceDays = models.MaxBookingAdvanceDays
	}
	if c.Exports.Path == "" {
		c.Exports.Path = "exports"
	}
}
