package config

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Scrape   ScrapeConfig   `yaml:"scrape" mapstructure:"scrape"`
	Browser  BrowserConfig  `yaml:"browser" mapstructure:"browser"`
	Social   SocialConfig   `yaml:"social" mapstructure:"social"`
	Prices   PricesConfig   `yaml:"prices" mapstructure:"prices"`
	Data     DataConfig     `yaml:"data" mapstructure:"data"`
	Supabase SupabaseConfig `yaml:"supabase" mapstructure:"supabase"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// ScrapeConfig configures the listing collection pipeline.
type ScrapeConfig struct {
	BaseURL          string `yaml:"base_url" mapstructure:"base_url"`
	Count            int    `yaml:"count" mapstructure:"count"`
	CoinsPerPage     int    `yaml:"coins_per_page" mapstructure:"coins_per_page"`
	MaxPages         int    `yaml:"max_pages" mapstructure:"max_pages"`
	BatchSize        int    `yaml:"batch_size" mapstructure:"batch_size"`
	TableTimeoutSecs int    `yaml:"table_timeout_secs" mapstructure:"table_timeout_secs"`
	SettleSecs       int    `yaml:"settle_secs" mapstructure:"settle_secs"`
}

// BrowserConfig configures the headless browser session.
type BrowserConfig struct {
	Headless   bool   `yaml:"headless" mapstructure:"headless"`
	UserAgent  string `yaml:"user_agent" mapstructure:"user_agent"`
	CookiePath string `yaml:"cookie_path" mapstructure:"cookie_path"`
}

// SocialConfig holds credentials for the social site login flow.
// Credentials come from the environment, never the config file.
type SocialConfig struct {
	Username string `yaml:"-" mapstructure:"username"`
	Password string `yaml:"-" mapstructure:"password"`
}

// PricesConfig configures the price reconciliation loop.
type PricesConfig struct {
	BaseURL      string `yaml:"base_url" mapstructure:"base_url"`
	APIKey       string `yaml:"api_key" mapstructure:"api_key"`
	IntervalMins int    `yaml:"interval_mins" mapstructure:"interval_mins"`
	CooldownSecs int    `yaml:"cooldown_secs" mapstructure:"cooldown_secs"`
}

// DataConfig locates the local data directories.
type DataConfig struct {
	Dir      string `yaml:"dir" mapstructure:"dir"`
	DebugDir string `yaml:"debug_dir" mapstructure:"debug_dir"`
	LogoDir  string `yaml:"logo_dir" mapstructure:"logo_dir"`
	RunDB    string `yaml:"run_db" mapstructure:"run_db"`
}

// SupabaseConfig holds remote sync settings.
type SupabaseConfig struct {
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	ProjectURL  string `yaml:"project_url" mapstructure:"project_url"`
	ServiceKey  string `yaml:"service_key" mapstructure:"service_key"`
	LogoBucket  string `yaml:"logo_bucket" mapstructure:"logo_bucket"`
}

// ServerConfig configures the snapshot API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("COINWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("scrape.base_url", "https://www.coingecko.com")
	v.SetDefault("scrape.count", 150)
	v.SetDefault("scrape.coins_per_page", 100)
	v.SetDefault("scrape.max_pages", 10)
	v.SetDefault("scrape.batch_size", 5)
	v.SetDefault("scrape.table_timeout_secs", 20)
	v.SetDefault("scrape.settle_secs", 2)
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.cookie_path", "Data/cookies.json")
	v.SetDefault("prices.base_url", "https://api.coingecko.com/api/v3")
	v.SetDefault("prices.interval_mins", 10)
	v.SetDefault("prices.cooldown_secs", 60)
	v.SetDefault("data.dir", "Data")
	v.SetDefault("data.debug_dir", "Data/Debug")
	v.SetDefault("data.logo_dir", "Data/Logo")
	v.SetDefault("data.run_db", "Data/runs.db")
	v.SetDefault("supabase.logo_bucket", "logos")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	// Login credentials are environment-only.
	if cfg.Social.Username == "" {
		cfg.Social.Username = os.Getenv("COINWATCH_SOCIAL_USERNAME")
	}
	if cfg.Social.Password == "" {
		cfg.Social.Password = os.Getenv("COINWATCH_SOCIAL_PASSWORD")
	}

	return &cfg, nil
}

// Validate checks the fields a command mode actually requires.
func (c *Config) Validate(mode string) error {
	var missing []string

	check := func(field, value string) {
		if value == "" {
			missing = append(missing, field+" is required")
		}
	}

	switch mode {
	case "scrape":
		check("scrape.base_url", c.Scrape.BaseURL)
		if c.Scrape.Count <= 0 {
			missing = append(missing, "scrape.count must be > 0")
		}
		if c.Scrape.BatchSize < 1 || c.Scrape.BatchSize > 20 {
			missing = append(missing, "scrape.batch_size must be between 1 and 20")
		}
	case "prices":
		check("prices.base_url", c.Prices.BaseURL)
		if c.Prices.IntervalMins <= 0 {
			missing = append(missing, "prices.interval_mins must be > 0")
		}
	case "sync":
		check("supabase.database_url", c.Supabase.DatabaseURL)
		check("supabase.project_url", c.Supabase.ProjectURL)
		check("supabase.service_key", c.Supabase.ServiceKey)
	case "serve":
		if c.Server.Port <= 0 {
			missing = append(missing, "server.port must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(missing) > 0 {
		return eris.New("config: " + strings.Join(missing, "; "))
	}
	return nil
}

// EnsureDirs creates the configured data directories idempotently. Called
// once at command start so packages never create directories at import time.
func EnsureDirs(cfg *Config) error {
	for _, dir := range []string{cfg.Data.Dir, cfg.Data.DebugDir, cfg.Data.LogoDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrapf(err, "config: create dir %s", dir)
		}
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
