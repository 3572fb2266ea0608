package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"gopkg.in/yaml.v3"
)

// AppConfig holds runtime startup configuration loaded from YAML.
type AppConfig struct {
	Port           int                   `yaml:"port"`
	DSN            string                `yaml:"dsn"` // MySQL DSN
	RedisURL       string                `yaml:"redis_url"`
	Database       DatabaseRuntimeConfig `yaml:"database"`
	Redis          RedisRuntimeConfig    `yaml:"redis"`
	Env            string                `yaml:"env"` // "development" | "production"
	Paths          RuntimePathsConfig    `yaml:"paths"`
	AllowedOrigins []string              `yaml:"allowed_origins"`
	JWTSecret      string                `yaml:"jwt_secret"`
	NonceSecret    string                `yaml:"nonce_secret"`
	AdminURL       string                `yaml:"admin_url"`
	Preview        PreviewConfig         `yaml:"preview"`
}

type DatabaseRuntimeConfig struct {
	DSN       string            `yaml:"dsn"`
	Host      string            `yaml:"host"`
	Port      int               `yaml:"port"`
	User      string            `yaml:"user"`
	Password  string            `yaml:"password"`
	Name      string            `yaml:"name"`
	Charset   string            `yaml:"charset"`
	ParseTime bool              `yaml:"parse_time"`
	Loc       string            `yaml:"loc"`
	Params    map[string]string `yaml:"params"`
}

type RedisRuntimeConfig struct {
	URL      string `yaml:"url"`
	Enable   bool   `yaml:"enable"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	TLS      bool   `yaml:"tls"`
}

type RuntimePathsConfig struct {
	Logs string `yaml:"logs"`
}

// PreviewConfig tunes the view block preview.
type PreviewConfig struct {
	DebounceMS         int    `yaml:"debounce_ms"`
	LimitClamp         int    `yaml:"limit_clamp"`
	CacheTTLSeconds    int    `yaml:"cache_ttl_seconds"`
	RatePerMinute      int    `yaml:"rate_per_minute"`
	RateBurst          int    `yaml:"rate_burst"`
	NonceLifetimeHours int    `yaml:"nonce_lifetime_hours"`
	ExtraCSS           string `yaml:"extra_css"`
}

type rawAppConfig struct {
	Port               int               `yaml:"port"`
	DSN                string            `yaml:"dsn"`
	DatabaseURL        string            `yaml:"database_url"`
	RedisURL           string            `yaml:"redis_url"`
	Database           rawDatabaseConfig `yaml:"database"`
	Redis              rawRedisConfig    `yaml:"redis"`
	Env                string            `yaml:"env"`
	Paths              rawPathsConfig    `yaml:"paths"`
	LogDir             string            `yaml:"log_dir"`
	AllowedOrigins     []string          `yaml:"allowed_origins"`
	CORSAllowedOrigins []string          `yaml:"cors_allowed_origins"`
	JWTSecret          string            `yaml:"jwt_secret"`
	NonceSecret        string            `yaml:"nonce_secret"`
	AdminURL           string            `yaml:"admin_url"`
	Preview            rawPreviewConfig  `yaml:"preview"`
}

type rawDatabaseConfig struct {
	DSN       string            `yaml:"dsn"`
	Host      string            `yaml:"host"`
	Port      int               `yaml:"port"`
	User      string            `yaml:"user"`
	Username  string            `yaml:"username"`
	Password  string            `yaml:"password"`
	Name      string            `yaml:"name"`
	DBName    string            `yaml:"db_name"`
	Charset   string            `yaml:"charset"`
	ParseTime *bool             `yaml:"parse_time"`
	Loc       string            `yaml:"loc"`
	Params    map[string]string `yaml:"params"`
}

type rawRedisConfig struct {
	URL      string `yaml:"url"`
	Enable   *bool  `yaml:"enable"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DB       *int   `yaml:"db"`
	TLS      *bool  `yaml:"tls"`
}

type rawPathsConfig struct {
	Logs string `yaml:"logs"`
}

type rawPreviewConfig struct {
	DebounceMS         *int   `yaml:"debounce_ms"`
	LimitClamp         *int   `yaml:"limit_clamp"`
	CacheTTLSeconds    *int   `yaml:"cache_ttl_seconds"`
	RatePerMinute      *int   `yaml:"rate_per_minute"`
	RateBurst          *int   `yaml:"rate_burst"`
	NonceLifetimeHours *int   `yaml:"nonce_lifetime_hours"`
	ExtraCSS           string `yaml:"extra_css"`
}

// Load reads and validates the YAML config file at configPath.
func Load(configPath string) (*AppConfig, error) {
	path := strings.TrimSpace(configPath)
	if path == "" {
		path = DefaultConfigPath
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %q: %w", path, err)
	}
	cfg, err := Parse(content)
	if err != nil {
		return nil, fmt.Errorf("config file %q: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML config content on top of the defaults.
func Parse(content []byte) (*AppConfig, error) {
	cfg := defaultAppConfig()
	raw := rawAppConfig{}
	if len(bytes.TrimSpace(content)) > 0 {
		decoder := yaml.NewDecoder(bytes.NewReader(content))
		decoder.KnownFields(true)
		if err := decoder.Decode(&raw); err != nil {
			return nil, fmt.Errorf("parse: %w", err)
		}
	}

	applyRawAppConfig(&cfg, raw)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *AppConfig) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d, expected 1-65535", c.Port)
	}
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("invalid database.port %d, expected 1-65535", c.Database.Port)
	}
	if c.Redis.Port < 1 || c.Redis.Port > 65535 {
		return fmt.Errorf("invalid redis.port %d, expected 1-65535", c.Redis.Port)
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("invalid redis.db %d, expected >= 0", c.Redis.DB)
	}
	if _, err := mysql.ParseDSN(c.DSN); err != nil {
		return fmt.Errorf("invalid database dsn: %w", err)
	}
	if c.Preview.LimitClamp < 1 {
		return fmt.Errorf("invalid preview.limit_clamp %d, expected >= 1", c.Preview.LimitClamp)
	}
	if c.Preview.DebounceMS < 0 {
		return fmt.Errorf("invalid preview.debounce_ms %d, expected >= 0", c.Preview.DebounceMS)
	}
	return nil
}

func defaultAppConfig() AppConfig {
	cfg := AppConfig{
		Port:     defaultPort,
		Env:      defaultEnv,
		AdminURL: defaultAdminURL,
		Database: DatabaseRuntimeConfig{
			Host:      defaultDBHost,
			Port:      defaultDBPort,
			User:      defaultDBUser,
			Password:  defaultDBPassword,
			Name:      defaultDBName,
			Charset:   defaultDBCharset,
			ParseTime: true,
			Loc:       defaultDBLoc,
		},
		Redis: RedisRuntimeConfig{
			Host: defaultRedisHost,
			Port: defaultRedisPort,
			DB:   defaultRedisDB,
		},
		Preview: PreviewConfig{
			DebounceMS:         defaultPreviewDebounceMS,
			LimitClamp:         defaultPreviewLimitClamp,
			CacheTTLSeconds:    defaultPreviewCacheTTL,
			RatePerMinute:      defaultPreviewRatePerMin,
			RateBurst:          defaultPreviewRateBurst,
			NonceLifetimeHours: defaultNonceLifetimeHours,
		},
	}
	cfg.DSN = cfg.Database.DSNValue()
	cfg.RedisURL = cfg.Redis.URLValue()
	return cfg
}

func applyRawAppConfig(cfg *AppConfig, raw rawAppConfig) {
	if raw.Port != 0 {
		cfg.Port = raw.Port
	}
	cfg.Database = applyRawDatabaseConfig(cfg.Database, raw)
	cfg.Redis = applyRawRedisConfig(cfg.Redis, raw.Redis)
	if v := strings.TrimSpace(raw.Env); v != "" {
		cfg.Env = v
	}
	cfg.Env = normalizeEnv(cfg.Env)
	if v := strings.TrimSpace(raw.Paths.Logs); v != "" {
		cfg.Paths.Logs = v
	}
	if v := strings.TrimSpace(raw.LogDir); v != "" {
		cfg.Paths.Logs = v
	}
	if len(raw.AllowedOrigins) > 0 {
		cfg.AllowedOrigins = normalizeOrigins(raw.AllowedOrigins)
	}
	if len(raw.CORSAllowedOrigins) > 0 {
		cfg.AllowedOrigins = normalizeOrigins(raw.CORSAllowedOrigins)
	}
	if v := strings.TrimSpace(raw.JWTSecret); v != "" {
		cfg.JWTSecret = v
	}
	if v := strings.TrimSpace(raw.NonceSecret); v != "" {
		cfg.NonceSecret = v
	}
	if v := strings.TrimSpace(raw.AdminURL); v != "" {
		cfg.AdminURL = strings.TrimRight(v, "/")
	}
	cfg.Preview = applyRawPreviewConfig(cfg.Preview, raw.Preview)

	cfg.DSN = cfg.Database.DSNValue()
	if v := strings.TrimSpace(raw.DSN); v != "" {
		cfg.DSN = v
	}
	if v := strings.TrimSpace(raw.DatabaseURL); v != "" {
		cfg.DSN = v
	}
	cfg.RedisURL = cfg.Redis.URLValue()
	if v := normalizeRedisRawURL(raw.RedisURL); v != "" {
		cfg.RedisURL = v
		cfg.Redis.Enable = true
	}
}

func applyRawDatabaseConfig(current DatabaseRuntimeConfig, raw rawAppConfig) DatabaseRuntimeConfig {
	db := raw.Database
	if v := strings.TrimSpace(db.DSN); v != "" {
		current.DSN = v
	}
	if v := strings.TrimSpace(db.Host); v != "" {
		current.Host = v
	}
	if db.Port != 0 {
		current.Port = db.Port
	}
	if v := strings.TrimSpace(db.User); v != "" {
		current.User = v
	} else if v := strings.TrimSpace(db.Username); v != "" {
		current.User = v
	}
	if v := strings.TrimSpace(db.Password); v != "" {
		current.Password = v
	}
	if v := strings.TrimSpace(db.Name); v != "" {
		current.Name = v
	} else if v := strings.TrimSpace(db.DBName); v != "" {
		current.Name = v
	}
	if v := strings.TrimSpace(db.Charset); v != "" {
		current.Charset = v
	}
	if db.ParseTime != nil {
		current.ParseTime = *db.ParseTime
	}
	if v := strings.TrimSpace(db.Loc); v != "" {
		current.Loc = v
	}
	if len(db.Params) > 0 {
		current.Params = copyStringMap(db.Params)
	}
	return normalizeDatabaseConfig(current)
}

func applyRawRedisConfig(current RedisRuntimeConfig, raw rawRedisConfig) RedisRuntimeConfig {
	if v := strings.TrimSpace(raw.URL); v != "" {
		current.URL = v
		current.Enable = true
	}
	if raw.Enable != nil {
		current.Enable = *raw.Enable
	}
	if v := strings.TrimSpace(raw.Host); v != "" {
		current.Host = v
	}
	if raw.Port != 0 {
		current.Port = raw.Port
	}
	if v := strings.TrimSpace(raw.Username); v != "" {
		current.Username = v
	}
	if v := strings.TrimSpace(raw.Password); v != "" {
		current.Password = v
	}
	if raw.DB != nil {
		current.DB = *raw.DB
	}
	if raw.TLS != nil {
		current.TLS = *raw.TLS
	}
	return normalizeRedisConfig(current)
}

func applyRawPreviewConfig(current PreviewConfig, raw rawPreviewConfig) PreviewConfig {
	if raw.DebounceMS != nil {
		current.DebounceMS = *raw.DebounceMS
	}
	if raw.LimitClamp != nil {
		current.LimitClamp = *raw.LimitClamp
	}
	if raw.CacheTTLSeconds != nil {
		current.CacheTTLSeconds = *raw.CacheTTLSeconds
	}
	if raw.RatePerMinute != nil {
		current.RatePerMinute = *raw.RatePerMinute
	}
	if raw.RateBurst != nil {
		current.RateBurst = *raw.RateBurst
	}
	if raw.NonceLifetimeHours != nil {
		current.NonceLifetimeHours = *raw.NonceLifetimeHours
	}
	if v := strings.TrimSpace(raw.ExtraCSS); v != "" {
		current.ExtraCSS = v
	}
	return current
}

// IsDev reports whether the server runs in development mode.
func (c *AppConfig) IsDev() bool {
	return strings.EqualFold(c.Env, defaultEnv)
}

// LogDir returns the resolved native log directory.
func (c *AppConfig) LogDir() string {
	return ResolveRuntimePath(c.Paths.Logs, "logs")
}

func (c PreviewConfig) Debounce() time.Duration {
	return time.Duration(c.DebounceMS) * time.Millisecond
}

func (c PreviewConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

func (c PreviewConfig) NonceLifetime() time.Duration {
	if c.NonceLifetimeHours <= 0 {
		return defaultNonceLifetimeHours * time.Hour
	}
	return time.Duration(c.NonceLifetimeHours) * time.Hour
}
