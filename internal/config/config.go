package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/framefrok/bsma/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Logging  logging.Config `mapstructure:"logging"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Market   MarketConfig   `mapstructure:"market"`
	Alerts   AlertsConfig   `mapstructure:"alerts"`
	Export   ExportConfig   `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// RedisConfig covers the optional latest-sample cache. An empty address
// disables caching entirely.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// MetricsConfig controls the Prometheus listener.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
}

// TelegramConfig describes notification delivery.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	APIBase  string `mapstructure:"api_base"`
}

// MarketConfig names the tracked resources and the estimation window.
type MarketConfig struct {
	Resources    []string      `mapstructure:"resources"`
	SampleWindow time.Duration `mapstructure:"sample_window"`
}

// AlertsConfig tunes the alert loops.
type AlertsConfig struct {
	ReconcileInterval time.Duration `mapstructure:"reconcile_interval"`
	RescheduleNotice  time.Duration `mapstructure:"reschedule_notice"`
	ExpiryInterval    time.Duration `mapstructure:"expiry_interval"`
	ExpiryMargin      time.Duration `mapstructure:"expiry_margin"`
	StalenessInterval time.Duration `mapstructure:"staleness_interval"`
	StalenessAfter    time.Duration `mapstructure:"staleness_after"`
	BuyRuleInterval   time.Duration `mapstructure:"buy_rule_interval"`
	AdvisoryLockKey   int64         `mapstructure:"advisory_lock_key"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int    `mapstructure:"max_data_points"`
	OutputDir     string `mapstructure:"output_dir"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("BSMA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "bsma")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.migrations_path", "migrations")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", "30s")

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.listen", ":9090")

	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.api_base", "https://api.telegram.org")

	v.SetDefault("market.resources", []string{"wood", "stone", "food", "ore"})
	v.SetDefault("market.sample_window", "15m")

	v.SetDefault("alerts.reconcile_interval", "1m")
	v.SetDefault("alerts.reschedule_notice", "5m")
	v.SetDefault("alerts.expiry_interval", "10m")
	v.SetDefault("alerts.expiry_margin", "1h")
	v.SetDefault("alerts.staleness_interval", "1m")
	v.SetDefault("alerts.staleness_after", "15m")
	v.SetDefault("alerts.buy_rule_interval", "5m")
	v.SetDefault("alerts.advisory_lock_key", int64(0x62736d61))

	v.SetDefault("export.max_data_points", 100000)
	v.SetDefault("export.output_dir", ".")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if len(c.Market.Resources) == 0 {
		return fmt.Errorf("market.resources must name at least one resource")
	}
	if c.Market.SampleWindow <= 0 {
		return fmt.Errorf("market.sample_window must be greater than zero")
	}
	if c.Alerts.ReconcileInterval <= 0 {
		return fmt.Errorf("alerts.reconcile_interval must be greater than zero")
	}
	if c.Alerts.ExpiryMargin <= 0 {
		return fmt.Errorf("alerts.expiry_margin must be greater than zero")
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Telegram.Enabled && c.Telegram.BotToken == "" {
		return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
	}
	return nil
}
