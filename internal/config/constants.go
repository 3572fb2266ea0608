package config

const (
	// DefaultConfigPath is used when --config is not provided.
	DefaultConfigPath = "config.yml"
	defaultPort       = 2333
	defaultEnv        = "development"
	defaultDBHost     = "127.0.0.1"
	defaultDBPort     = 3306
	defaultDBUser     = "root"
	defaultDBPassword = "password"
	defaultDBName     = "mx_views"
	defaultDBCharset  = "utf8mb4"
	defaultDBLoc      = "Local"
	defaultRedisHost  = "localhost"
	defaultRedisPort  = 6379
	defaultRedisDB    = 0
	defaultAdminURL   = "/admin"

	defaultPreviewDebounceMS  = 1500
	defaultPreviewLimitClamp  = 10
	defaultPreviewCacheTTL    = 300
	defaultPreviewRatePerMin  = 120
	defaultPreviewRateBurst   = 20
	defaultNonceLifetimeHours = 24
)
