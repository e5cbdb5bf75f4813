package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Portal    PortalConfig    `yaml:"portal" mapstructure:"portal"`
	Metatable MetatableConfig `yaml:"metatable" mapstructure:"metatable"`
	Audit     AuditConfig     `yaml:"audit" mapstructure:"audit"`
	Retry     RetryConfig     `yaml:"retry" mapstructure:"retry"`
	Report    ReportConfig    `yaml:"report" mapstructure:"report"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Notify    NotifyConfig    `yaml:"notify" mapstructure:"notify"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// PortalConfig holds the hosting platform credentials.
type PortalConfig struct {
	URL                 string  `yaml:"url" mapstructure:"url"`
	Username            string  `yaml:"username" mapstructure:"username"`
	Password            string  `yaml:"password" mapstructure:"password"`
	TokenExpirationMins int     `yaml:"token_expiration_mins" mapstructure:"token_expiration_mins"`
	RateLimit           float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// MetatableConfig names the reference tables. The SGID table is read from
// the database when a URL is set and from the file export otherwise; the
// AGOL table is read from the hosted table URL or from its file export.
type MetatableConfig struct {
	SGIDDatabaseURL string `yaml:"sgid_database_url" mapstructure:"sgid_database_url"`
	SGIDTable       string `yaml:"sgid_table" mapstructure:"sgid_table"`
	AGOLTableURL    string `yaml:"agol_table_url" mapstructure:"agol_table_url"`
	SGIDFile        string `yaml:"sgid_file" mapstructure:"sgid_file"`
	AGOLFile        string `yaml:"agol_file" mapstructure:"agol_file"`
}

// AuditConfig configures the checks.
type AuditConfig struct {
	CacheMaxAge   int    `yaml:"cache_max_age" mapstructure:"cache_max_age"`
	ThumbnailDir  string `yaml:"thumbnail_dir" mapstructure:"thumbnail_dir"`
	MetadataDir   string `yaml:"metadata_dir" mapstructure:"metadata_dir"`
	MonitoredType string `yaml:"monitored_type" mapstructure:"monitored_type"`
	TagRulesFile  string `yaml:"tag_rules_file" mapstructure:"tag_rules_file"`
}

// RetryConfig configures retries of platform calls.
type RetryConfig struct {
	MaxRetries int `yaml:"max_retries" mapstructure:"max_retries"`
	DelaySecs  int `yaml:"delay_secs" mapstructure:"delay_secs"`
}

// ReportConfig configures the report file.
type ReportConfig struct {
	Path        string `yaml:"path" mapstructure:"path"`
	RotateCount int    `yaml:"rotate_count" mapstructure:"rotate_count"`
	Separator   string `yaml:"separator" mapstructure:"separator"`
	Format      string `yaml:"format" mapstructure:"format"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
}

// NotifyConfig holds the summary webhook.
type NotifyConfig struct {
	WebhookURL string `yaml:"webhook_url" mapstructure:"webhook_url"`
}

// ServerConfig configures the runs API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Validate checks that the settings a command depends on are present.
// Mode is one of "audit", "orgcheck", "runs" or "serve".
func (c *Config) Validate(mode string) error {
	var errs []string

	requirePortal := func() {
		if c.Portal.URL == "" {
			errs = append(errs, "portal.url is required")
		}
		if c.Portal.Username == "" {
			errs = append(errs, "portal.username is required")
		}
	}
	requireStore := func() {
		switch c.Store.Driver {
		case "sqlite", "postgres":
		default:
			errs = append(errs, fmt.Sprintf("store.driver %q is not sqlite or postgres", c.Store.Driver))
		}
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required")
		}
	}

	switch mode {
	case "audit":
		requirePortal()
		requireStore()
		m := c.Metatable
		if m.SGIDDatabaseURL == "" && m.SGIDFile == "" && m.AGOLTableURL == "" && m.AGOLFile == "" {
			errs = append(errs, "at least one metatable source is required")
		}
		if c.Retry.MaxRetries < 0 || c.Retry.DelaySecs < 0 {
			errs = append(errs, "retry values must be >= 0")
		}
		switch c.Report.Format {
		case "delimited", "xlsx":
		default:
			errs = append(errs, fmt.Sprintf("report.format %q is not delimited or xlsx", c.Report.Format))
		}
	case "orgcheck":
		requirePortal()
	case "runs":
		requireStore()
	case "serve":
		requireStore()
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("AUDITOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("portal.url", "https://utah.maps.arcgis.com")
	v.SetDefault("portal.username", "")
	v.SetDefault("portal.password", "")
	v.SetDefault("portal.token_expiration_mins", 60)
	v.SetDefault("portal.rate_limit", 5.0)
	v.SetDefault("metatable.sgid_database_url", "")
	v.SetDefault("metatable.sgid_table", "meta.agolitems")
	v.SetDefault("metatable.agol_table_url", "")
	v.SetDefault("metatable.sgid_file", "")
	v.SetDefault("metatable.agol_file", "")
	v.SetDefault("audit.cache_max_age", 5)
	v.SetDefault("audit.thumbnail_dir", "thumbnails")
	v.SetDefault("audit.metadata_dir", "")
	v.SetDefault("audit.monitored_type", "Feature Service")
	v.SetDefault("audit.tag_rules_file", "")
	v.SetDefault("retry.max_retries", 3)
	v.SetDefault("retry.delay_secs", 2)
	v.SetDefault("report.path", "reports/checks.txt")
	v.SetDefault("report.rotate_count", 18)
	v.SetDefault("report.separator", "|")
	v.SetDefault("report.format", "delimited")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "auditor.db")
	v.SetDefault("store.max_conns", 4)
	v.SetDefault("notify.webhook_url", "")
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

	return &cfg, nil
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
