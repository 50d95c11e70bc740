package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"restocrm/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Session    SessionConfig    `yaml:"session"`
	Legacy     LegacyConfig     `yaml:"legacy"`
	Pagination PaginationConfig `yaml:"pagination"`
	API        APIConfig        `yaml:"api"`
	Backup     BackupConfig     `yaml:"backup"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	Google     GoogleConfig     `yaml:"google"`
	Exports    ExportConfig     `yaml:"exports"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type SessionConfig struct {
	TTL       time.Duration `yaml:"ttl"`
	KeyPrefix string        `yaml:"key_prefix"`
}

// LegacyConfig controls mirroring into the shared flat forms collection.
// The forms collection carries no tenant marker, so it belongs to exactly
// one tenant: Owner.
type LegacyConfig struct {
	Enabled      bool          `yaml:"enabled"`
	SharedTenant string        `yaml:"shared_tenant"`
	Owner        string        `yaml:"owner"`
	RetryCount   int           `yaml:"retry_count"`
	RetryBackoff time.Duration `yaml:"retry_backoff"`
}

// Mirrors reports whether the tenant segment reads and writes the legacy path.
// Only the owning tenant does; no owner means no tenant.
func (c LegacyConfig) Mirrors(segment string) bool {
	if !c.Enabled {
		return false
	}
	owner := strings.TrimSpace(c.Owner)
	return owner != "" && strings.EqualFold(owner, strings.TrimSpace(segment))
}

type PaginationConfig struct {
	PageSize int `yaml:"page_size"`
}

type APIConfig struct {
	Enabled   bool               `yaml:"enabled"`
	HTTP      APIHTTPConfig      `yaml:"http"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Port int `yaml:"port"`
}

// APIAuthConfig protects the admin panel routes.
type APIAuthConfig struct {
	Enabled       bool           `yaml:"enabled"`
	HeaderAPIKey  string         `yaml:"header_api_key"`
	HeaderSession string         `yaml:"header_session"`
	APIKeys       []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key         string   `yaml:"key"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type TelegramConfig struct {
	Enabled      bool    `yaml:"enabled"`
	BotToken     string  `yaml:"bot_token"`
	AdminChatIDs []int64 `yaml:"admin_chat_ids"`
	Debug        bool    `yaml:"debug"`
}

type GoogleConfig struct {
	CredentialsFile      string `yaml:"credentials_file"`
	ClientsSpreadsheetID string `yaml:"clients_spreadsheet_id"`
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

func Load(configPath string) (*Config, error) {
	// .env необязателен
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

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

	if c.Legacy.Enabled && strings.TrimSpace(c.Legacy.SharedTenant) == "" {
		return errors.New("legacy.shared_tenant is required when legacy mirroring is enabled")
	}

	if c.Legacy.Enabled && strings.TrimSpace(c.Legacy.Owner) == "" {
		return errors.New("legacy.owner is required when legacy mirroring is enabled")
	}

	if c.Pagination.PageSize > models.MaxPageSize {
		return fmt.Errorf("pagination.page_size must be at most %d", models.MaxPageSize)
	}

	if c.Telegram.Enabled && (c.Telegram.BotToken == "" || c.Telegram.BotToken == "YOUR_BOT_TOKEN_HERE") {
		return errors.New("telegram bot token is required when telegram is enabled")
	}

	return ValidateAPIKeys(c.API.Auth.APIKeys)
}

func ValidateAPIKeys(keys []APIClientKey) error {
	seen := make(map[string]bool)
	for _, k := range keys {
		if strings.TrimSpace(k.Key) == "" {
			return fmt.Errorf("api key '%s' is empty", k.Name)
		}
		if seen[k.Key] {
			return fmt.Errorf("duplicate api key for '%s'", k.Name)
		}
		seen[k.Key] = true
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "restocrm"
	}
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.API.Auth.HeaderSession == "" {
		c.API.Auth.HeaderSession = "x-session-id"
	}
	if c.API.RateLimit.RPS == 0 {
		c.API.RateLimit.RPS = 5
	}
	if c.API.RateLimit.Burst == 0 {
		c.API.RateLimit.Burst = 10
	}

	if c.Session.TTL == 0 {
		c.Session.TTL = models.DefaultSessionTTL
	}
	if c.Session.KeyPrefix == "" {
		c.Session.KeyPrefix = "session:"
	}

	if c.Legacy.SharedTenant == "" {
		c.Legacy.SharedTenant = "shared"
	}
	if c.Legacy.RetryCount == 0 {
		c.Legacy.RetryCount = 3
	}
	if c.Legacy.RetryBackoff == 0 {
		c.Legacy.RetryBackoff = 100 * time.Millisecond
	}

	if c.Pagination.PageSize <= 0 {
		c.Pagination.PageSize = models.DefaultPageSize
	}

	if c.Exports.Path == "" {
		c.Exports.Path = "./exports"
	}
}
