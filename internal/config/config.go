package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the md2pdf server configuration loaded from YAML.
type Config struct {
	Server struct {
		Host        string `yaml:"host"`
		Port        string `yaml:"port"`
		Prefork     bool   `yaml:"prefork"`
		BodyLimitMB int    `yaml:"body_limit_mb"`
		WebRoot     string `yaml:"web_root"`
	} `yaml:"server"`

	Logger struct {
		File       string `yaml:"file"`
		Level      string `yaml:"level"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
		Compress   bool   `yaml:"compress"`
	} `yaml:"logger"`

	Cache struct {
		RedisHost       string        `yaml:"redis_host"`
		RateLimitDB     int           `yaml:"redis_rate_db"`
		PDFCacheDB      int           `yaml:"redis_pdf_db"`
		PDFCacheEnabled bool          `yaml:"pdf_cache_enabled"`
		PDFCacheTTL     time.Duration `yaml:"pdf_cache_ttl"`
	} `yaml:"cache"`

	RateLimiter struct {
		Interval               time.Duration `yaml:"interval"`
		EnableUserLimiter      bool          `yaml:"enable_user_limiter"`
		UserLimit              int           `yaml:"user_limit"`
		EnableTokenRateLimiter bool          `yaml:"enable_token_rate_limiter"`
	} `yaml:"rate_limiter"`

	Auth struct {
		Enabled        bool           `yaml:"enabled"`
		Required       bool           `yaml:"required"`
		ReloadInterval time.Duration  `yaml:"reload_interval"`
		Postgres       PostgresConfig `yaml:"postgres"`
	} `yaml:"auth"`

	Converter ConverterConfig `yaml:"converter"`
	Resources Resources       `yaml:"resources"`
}

// PostgresConfig describes the token database. Host may also carry a full
// postgres:// URL, in which case the other fields are ignored.
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

// ConverterConfig controls how the external converter is invoked.
type ConverterConfig struct {
	Binary         string        `yaml:"binary"`
	From           string        `yaml:"from"`
	PDFEngine      string        `yaml:"pdf_engine"`
	Timeout        time.Duration `yaml:"timeout"`
	MaxLogChars    int           `yaml:"max_log_chars"`
	MaxConcurrent  int           `yaml:"max_concurrent"`
	AcquireTimeout time.Duration `yaml:"acquire_timeout"`
	WorkDir        string        `yaml:"work_dir"`
	DeriveTitle    bool          `yaml:"derive_title"`
	Metadata       []MetaEntry   `yaml:"metadata"`
}

// MetaEntry is a default metadata pair passed to every conversion.
type MetaEntry struct {
	Key   string `yaml:"key"`
	Value string `yaml:"value"`
}

// Resources locates the read-only, server-side conversion resources. Relative
// file names are resolved against Root.
type Resources struct {
	Root           string `yaml:"root"`
	Assets         string `yaml:"assets"`
	MetadataFile   string `yaml:"metadata_file"`
	Template       string `yaml:"template"`
	LuaFilter      string `yaml:"lua_filter"`
	HeaderIncludes string `yaml:"header_includes"`
}

const (
	DefaultFrom        = "markdown+raw_tex+link_attributes-implicit_figures"
	DefaultPDFEngine   = "lualatex"
	DefaultTimeout     = 180 * time.Second
	DefaultMaxLogChars = 8000
)

// Path resolves name against the resources root. Empty names stay empty.
func (r Resources) Path(name string) string {
	if name == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(r.Root, name)
}

// Default returns a configuration with every optional value filled in.
func Default() Config {
	var cfg Config
	cfg.Server.Host = "0.0.0.0"
	cfg.Server.Port = ":8000"
	cfg.Server.BodyLimitMB = 64
	cfg.Server.WebRoot = "web"
	cfg.Logger.Level = "info"
	cfg.Logger.MaxSizeMB = 10
	cfg.Logger.MaxBackups = 3
	cfg.Logger.MaxAgeDays = 7
	cfg.Cache.PDFCacheTTL = 10 * time.Minute
	cfg.RateLimiter.Interval = time.Minute
	cfg.Auth.ReloadInterval = time.Minute
	cfg.Converter = ConverterConfig{
		Binary:         "pandoc",
		From:           DefaultFrom,
		PDFEngine:      DefaultPDFEngine,
		Timeout:        DefaultTimeout,
		MaxLogChars:    DefaultMaxLogChars,
		MaxConcurrent:  4,
		AcquireTimeout: 5 * time.Second,
	}
	cfg.Resources = Resources{
		Root:           "/srv/resources",
		Assets:         "/srv/assets",
		MetadataFile:   "meta.yaml",
		Template:       "templates/eisvogel.tex",
		LuaFilter:      "filters/env.lua",
		HeaderIncludes: "templates/vuln_macros.tex",
	}
	return cfg
}

// Load reads the file named by CONFIG_PATH, or config.yaml when unset.
func Load() Config {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	return LoadFrom(path)
}

// LoadFrom reads and validates the configuration at path. It panics on a
// missing file or invalid values so a misconfigured server never starts.
func LoadFrom(path string) Config {
	data, err := os.ReadFile(path)
	if err != nil {
		panic(fmt.Sprintf("config: read %s: %v", path, err))
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		panic(fmt.Sprintf("config: parse %s: %v", path, err))
	}
	if v := os.Getenv("PANDOC_BIN"); v != "" {
		cfg.Converter.Binary = v
	}
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("config: %s: %v", path, err))
	}
	return cfg
}

// Validate reports the first invalid value.
func (c Config) Validate() error {
	switch {
	case c.Converter.Binary == "":
		return fmt.Errorf("converter.binary is empty")
	case c.Converter.Timeout <= 0:
		return fmt.Errorf("converter.timeout must be positive")
	case c.Converter.MaxLogChars <= 0:
		return fmt.Errorf("converter.max_log_chars must be positive")
	case c.Converter.MaxConcurrent < 0:
		return fmt.Errorf("converter.max_concurrent must not be negative")
	case c.Server.BodyLimitMB <= 0:
		return fmt.Errorf("server.body_limit_mb must be positive")
	case c.RateLimiter.UserLimit < 0:
		return fmt.Errorf("rate_limiter.user_limit must not be negative")
	case (c.RateLimiter.EnableUserLimiter || c.RateLimiter.EnableTokenRateLimiter) && c.RateLimiter.Interval <= 0:
		return fmt.Errorf("rate_limiter.interval must be positive")
	case c.Auth.Enabled && c.Auth.Postgres.Host == "":
		return fmt.Errorf("auth.postgres.host is required when auth is enabled")
	case c.Auth.Enabled && c.Auth.ReloadInterval <= 0:
		return fmt.Errorf("auth.reload_interval must be positive")
	}
	for i, m := range c.Converter.Metadata {
		if m.Key == "" {
			return fmt.Errorf("converter.metadata[%d].key is empty", i)
		}
	}
	return nil
}
