package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "TCG"

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Scraper  ScraperConfig  `mapstructure:"scraper"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Browser  BrowserConfig  `mapstructure:"browser"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Database DatabaseConfig `mapstructure:"database"`
	Monitor  MonitorConfig  `mapstructure:"monitor"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	Host            string        `mapstructure:"host"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
}

// ScraperConfig holds the site endpoints and every timing knob of a fetch.
type ScraperConfig struct {
	BaseURL            string        `mapstructure:"base_url"`
	LoginURL           string        `mapstructure:"login_url"`
	ProductURLTemplate string        `mapstructure:"product_url_template"`
	NavTimeout         time.Duration `mapstructure:"nav_timeout"`
	NetworkIdleTimeout time.Duration `mapstructure:"network_idle_timeout"`
	DialogWait         time.Duration `mapstructure:"dialog_wait"`
	RetryTimes         int           `mapstructure:"retry_times"`
	RetryBaseDelay     time.Duration `mapstructure:"retry_base_delay"`
	MaxListingPages    int           `mapstructure:"max_listing_pages"`
	PageWaitTimeout    time.Duration `mapstructure:"page_wait_timeout"`
	ConsentTimeout     time.Duration `mapstructure:"consent_timeout"`
	DebugDir           string        `mapstructure:"debug_dir"`
	GraphDir           string        `mapstructure:"graph_dir"`
	ChartWait          time.Duration `mapstructure:"chart_wait"`
	AccountURL         string        `mapstructure:"account_url"`
	IPEchoURL          string        `mapstructure:"ip_echo_url"`
}

type AuthConfig struct {
	DisableLogin  bool          `mapstructure:"disable_login"`
	Email         string        `mapstructure:"email"`
	Password      string        `mapstructure:"password"`
	StateBackend  string        `mapstructure:"state_backend"`
	StatePath     string        `mapstructure:"state_path"`
	StateKey      string        `mapstructure:"state_key"`
	StateBlob     string        `mapstructure:"state_blob"`
	VerifyPolls   int           `mapstructure:"verify_polls"`
	VerifyPoll    time.Duration `mapstructure:"verify_poll_interval"`
	SelectorWait  time.Duration `mapstructure:"selector_wait"`
	SeedWaitInput bool          `mapstructure:"seed_wait_input"`
}

// HasCredentials reports whether both credentials are configured.
func (a AuthConfig) HasCredentials() bool {
	return a.Email != "" && a.Password != ""
}

type BrowserConfig struct {
	Headless       bool   `mapstructure:"headless"`
	UserAgent      string `mapstructure:"user_agent"`
	ViewportWidth  int    `mapstructure:"viewport_width"`
	ViewportHeight int    `mapstructure:"viewport_height"`
	AcceptLanguage string `mapstructure:"accept_language"`
	TimezoneID     string `mapstructure:"timezone"`
	Locale         string `mapstructure:"locale"`
	ProxyServer    string `mapstructure:"proxy_server"`
	ProxyUsername  string `mapstructure:"proxy_username"`
	ProxyPassword  string `mapstructure:"proxy_password"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Stream   string `mapstructure:"stream"`
}

// Enabled reports whether a redis address is configured.
func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"name"`
	SSLMode  string `mapstructure:"ssl_mode"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// Enabled reports whether the history database is configured.
func (d DatabaseConfig) Enabled() bool {
	return d.Host != "" && d.DBName != ""
}

type MonitorConfig struct {
	URLs          []string      `mapstructure:"urls"`
	Interval      time.Duration `mapstructure:"interval"`
	RateLimitMin  time.Duration `mapstructure:"rate_limit_min"`
	RateLimitMax  time.Duration `mapstructure:"rate_limit_max"`
	Startup       bool          `mapstructure:"startup_notification"`
	GraphInterval time.Duration `mapstructure:"graph_interval"` // zero disables the graph reporter
}

type NotifyConfig struct {
	WebhookURL string        `mapstructure:"webhook_url"`
	Username   string        `mapstructure:"username"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// SetDefaults registers every known key so that environment overrides work
// even when no config file is present.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 180*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.request_timeout", 170*time.Second)
	v.SetDefault("server.allowed_origins", []string{"*"})

	v.SetDefault("scraper.base_url", "https://www.tcgplayer.com/")
	v.SetDefault("scraper.login_url", "https://www.tcgplayer.com/login?returnUrl=https://www.tcgplayer.com/")
	v.SetDefault("scraper.product_url_template", "https://www.tcgplayer.com/product/%s?Language=English")
	v.SetDefault("scraper.nav_timeout", 35*time.Second)
	v.SetDefault("scraper.network_idle_timeout", 15*time.Second)
	v.SetDefault("scraper.dialog_wait", 6*time.Second)
	v.SetDefault("scraper.retry_times", 2)
	v.SetDefault("scraper.retry_base_delay", 2*time.Second)
	v.SetDefault("scraper.max_listing_pages", 10)
	v.SetDefault("scraper.page_wait_timeout", 10*time.Second)
	v.SetDefault("scraper.consent_timeout", 1500*time.Millisecond)
	v.SetDefault("scraper.debug_dir", "debug")
	v.SetDefault("scraper.graph_dir", "captured_graphs")
	v.SetDefault("scraper.chart_wait", 8*time.Second)
	v.SetDefault("scraper.account_url", "https://www.tcgplayer.com/myaccount/")
	v.SetDefault("scraper.ip_echo_url", "https://api.ipify.org?format=json")

	v.SetDefault("auth.disable_login", false)
	v.SetDefault("auth.email", "")
	v.SetDefault("auth.password", "")
	v.SetDefault("auth.state_backend", "file")
	v.SetDefault("auth.state_path", "state.json")
	v.SetDefault("auth.state_key", "tcg:session-state")
	v.SetDefault("auth.state_blob", "")
	v.SetDefault("auth.verify_polls", 10)
	v.SetDefault("auth.verify_poll_interval", 1*time.Second)
	v.SetDefault("auth.selector_wait", 4*time.Second)
	v.SetDefault("auth.seed_wait_input", true)

	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.user_agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	v.SetDefault("browser.viewport_width", 1366)
	v.SetDefault("browser.viewport_height", 900)
	v.SetDefault("browser.accept_language", "en-US,en;q=0.9")
	v.SetDefault("browser.timezone", "America/New_York")
	v.SetDefault("browser.locale", "en-US")
	v.SetDefault("browser.proxy_server", "")
	v.SetDefault("browser.proxy_username", "")
	v.SetDefault("browser.proxy_password", "")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.stream", "tcg:sales")

	v.SetDefault("database.host", "")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "tcg_prices")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_conns", 4)

	v.SetDefault("monitor.urls", []string{})
	v.SetDefault("monitor.interval", 60*time.Second)
	v.SetDefault("monitor.rate_limit_min", 3*time.Second)
	v.SetDefault("monitor.rate_limit_max", 10*time.Second)
	v.SetDefault("monitor.startup_notification", true)
	v.SetDefault("monitor.graph_interval", 0)

	v.SetDefault("notify.webhook_url", "")
	v.SetDefault("notify.username", "TCGPlayer Last Sold Monitor")
	v.SetDefault("notify.timeout", 10*time.Second)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size_mb", 50)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age_days", 14)
	v.SetDefault("logging.compress", true)
}

// NewViper returns a viper instance with defaults, env binding and the optional
// config file wired in. An empty path searches for config.yaml in the working dir.
func NewViper(path string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	return v, nil
}

// Load reads configuration from file and environment and validates it.
func Load(path string) (*Config, error) {
	v, err := NewViper(path)
	if err != nil {
		return nil, err
	}
	return FromViper(v)
}

func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Scraper.RetryTimes < 0 {
		return fmt.Errorf("scraper.retry_times must not be negative")
	}

	if c.Scraper.NavTimeout <= 0 {
		return fmt.Errorf("scraper.nav_timeout must be positive")
	}

	if c.Scraper.MaxListingPages < 1 {
		return fmt.Errorf("scraper.max_listing_pages must be at least 1")
	}

	if !strings.Contains(c.Scraper.ProductURLTemplate, "%s") {
		return fmt.Errorf("scraper.product_url_template must contain %%s")
	}

	switch c.Auth.StateBackend {
	case "file":
		if c.Auth.StatePath == "" {
			return fmt.Errorf("auth.state_path is required for the file backend")
		}
	case "redis":
		if !c.Redis.Enabled() {
			return fmt.Errorf("redis.addr is required for the redis state backend")
		}
	default:
		return fmt.Errorf("auth.state_backend must be file or redis, got %q", c.Auth.StateBackend)
	}

	if c.Monitor.RateLimitMin > c.Monitor.RateLimitMax {
		return fmt.Errorf("monitor.rate_limit_min cannot be greater than monitor.rate_limit_max")
	}

	return nil
}

// ProductURL builds the product page URL for a product id.
func (c *Config) ProductURL(productID string) string {
	return fmt.Sprintf(c.Scraper.ProductURLTemplate, productID)
}

// DSN returns the postgres connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode)
}
