package config

import (
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"time"
)

// Config represents the global configuration
type Config struct {
	Server       ServerConfig              `mapstructure:"server"`
	Database     DatabaseConfig            `mapstructure:"database"`
	Redis        RedisConfig               `mapstructure:"redis"`
	Log          LogConfig                 `mapstructure:"log"`
	Metrics      MetricsConfig             `mapstructure:"metrics"`
	Tracing      TracingConfig             `mapstructure:"tracing"`
	RateLimit    RateLimitConfig           `mapstructure:"rate_limit"`
	CircuitBreak CircuitBreakConfig        `mapstructure:"circuit_break"`
	Security     SecurityConfig            `mapstructure:"security"`
	Platforms    map[string]PlatformConfig `mapstructure:"platforms"`
	Sharing      SharingConfig             `mapstructure:"sharing"`
	Sync         SyncConfig                `mapstructure:"sync"`
	Engagement   EngagementConfig          `mapstructure:"engagement"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	Mode           string        `mapstructure:"mode"` // debug, release, test
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MaxHeaderMB    int           `mapstructure:"max_header_mb"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // mysql, sqlite
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	Charset         string        `mapstructure:"charset"`
	ParseTime       bool          `mapstructure:"parse_time"`
	Loc             string        `mapstructure:"loc"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	LogLevel        string        `mapstructure:"log_level"` // silent, error, warn, info
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// RedisConfig represents Redis configuration
type RedisConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	MaxRetries   int           `mapstructure:"max_retries"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	PoolTimeout  time.Duration `mapstructure:"pool_timeout"`
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxAge     int    `mapstructure:"max_age"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
}

// MetricsConfig represents metrics configuration
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Path      string `mapstructure:"path"`
	Namespace string `mapstructure:"namespace"`
}

// TracingConfig represents tracing configuration
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	ServiceName string  `mapstructure:"service_name"`
	Endpoint    string  `mapstructure:"endpoint"`
	SampleRate  float64 `mapstructure:"sample_rate"`
}

// RateLimitConfig inbound HTTP limits
type RateLimitConfig struct {
	Enabled bool `mapstructure:"enabled"`
	PerIP   struct {
		RPS   float64 `mapstructure:"rps"`
		Burst int     `mapstructure:"burst"`
	} `mapstructure:"per_ip"`
	// ShareQuota caps shares per user over Window, enforced through Redis
	ShareQuota struct {
		Limit  int           `mapstructure:"limit"`
		Window time.Duration `mapstructure:"window"`
	} `mapstructure:"share_quota"`
}

// CircuitBreakConfig per-platform circuit breaker settings
type CircuitBreakConfig struct {
	Enabled             bool          `mapstructure:"enabled"`
	MaxRequests         uint32        `mapstructure:"max_requests"`
	Interval            time.Duration `mapstructure:"interval"`
	Timeout             time.Duration `mapstructure:"timeout"`
	ConsecutiveFailures uint32        `mapstructure:"consecutive_failures"`
}

// SecurityConfig represents security configuration
type SecurityConfig struct {
	JWT struct {
		Secret string        `mapstructure:"secret"`
		Expire time.Duration `mapstructure:"expire"`
		Issuer string        `mapstructure:"issuer"`
	} `mapstructure:"jwt"`
	CORS struct {
		Enabled          bool     `mapstructure:"enabled"`
		AllowOrigins     []string `mapstructure:"allow_origins"`
		AllowCredentials bool     `mapstructure:"allow_credentials"`
		MaxAge           int      `mapstructure:"max_age"`
	} `mapstructure:"cors"`
	// TokenKey hex-encoded 32-byte key sealing stored OAuth tokens
	TokenKey string `mapstructure:"token_key"`
}

// PlatformConfig credentials and client settings for one social platform
type PlatformConfig struct {
	Enabled            bool          `mapstructure:"enabled"`
	BaseURL            string        `mapstructure:"base_url"`
	APIVersion         string        `mapstructure:"api_version"`
	AccessToken        string        `mapstructure:"access_token"`
	PageID             string        `mapstructure:"page_id"`
	CatalogID          string        `mapstructure:"catalog_id"`
	AccountID          string        `mapstructure:"account_id"`
	AppSecret          string        `mapstructure:"app_secret"`
	WebhookVerifyToken string        `mapstructure:"webhook_verify_token"`
	Timeout            time.Duration `mapstructure:"timeout"`
	RPS                float64       `mapstructure:"rps"`
	Burst              int           `mapstructure:"burst"`
}

// SharingConfig shareable link settings
type SharingConfig struct {
	BaseURL     string `mapstructure:"base_url"`
	UTMMedium   string `mapstructure:"utm_medium"`
	UTMCampaign string `mapstructure:"utm_campaign"`

	// TrackingBaseURL public root of this service; when set, posts link through /r/<share_id>
	TrackingBaseURL string `mapstructure:"tracking_base_url"`
}

// SyncConfig catalog synchronization settings
type SyncConfig struct {
	Guard        string        `mapstructure:"guard"` // redis, memory
	LockTTL      time.Duration `mapstructure:"lock_ttl"`
	Workers      int           `mapstructure:"workers"`
	QueueBuffer  int           `mapstructure:"queue_buffer"`
	JobResultTTL time.Duration `mapstructure:"job_result_ttl"`
}

// EngagementConfig metric store settings
type EngagementConfig struct {
	NodeID        int64         `mapstructure:"node_id"`
	CacheTTL      time.Duration `mapstructure:"cache_ttl"`
	CacheMaxMB    int           `mapstructure:"cache_max_mb"`
	BloomCapacity uint          `mapstructure:"bloom_capacity"`
	BloomFPRate   float64       `mapstructure:"bloom_fp_rate"`
}

// GetAddr returns the server address
func (s *ServerConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// GetDSN returns the database DSN
func (d *DatabaseConfig) GetDSN() string {
	if d.Driver == "sqlite" {
		return d.DBName
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=%t&loc=%s",
		d.Username, d.Password, d.Host, d.Port, d.DBName, d.Charset, d.ParseTime, d.Loc)
}

// GetAddr returns the Redis address
func (r *RedisConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// EnabledPlatforms returns the names of enabled platforms, sorted
func (c *Config) EnabledPlatforms() []string {
	var names []string
	for name, p := range c.Platforms {
		if p.Enabled {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	switch c.Database.Driver {
	case "mysql":
		if c.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if c.Database.Username == "" {
			return fmt.Errorf("database username is required")
		}
		if c.Database.DBName == "" {
			return fmt.Errorf("database name is required")
		}
	case "sqlite":
		if c.Database.DBName == "" {
			return fmt.Errorf("database name is required")
		}
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}

	if c.Redis.Host == "" {
		return fmt.Errorf("redis host is required")
	}

	if c.Security.JWT.Secret == "" {
		return fmt.Errorf("JWT secret is required")
	}

	key, err := hex.DecodeString(c.Security.TokenKey)
	if err != nil || len(key) != 32 {
		return fmt.Errorf("token key must be 64 hex characters")
	}

	if _, err := url.ParseRequestURI(c.Sharing.BaseURL); err != nil {
		return fmt.Errorf("invalid sharing base url: %w", err)
	}

	if c.Sync.Guard != "redis" && c.Sync.Guard != "memory" {
		return fmt.Errorf("sync guard must be redis or memory, got %q", c.Sync.Guard)
	}

	var slowest string
	for _, name := range c.EnabledPlatforms() {
		p := c.Platforms[name]
		if p.BaseURL == "" {
			return fmt.Errorf("platform %s: base_url is required", name)
		}
		if p.Timeout <= 0 {
			return fmt.Errorf("platform %s: timeout must be positive", name)
		}
		if slowest == "" || p.Timeout > c.Platforms[slowest].Timeout {
			slowest = name
		}
	}

	// the Redis guard is never refreshed, so it must outlive every bounded platform call
	if c.Sync.Guard == "redis" && slowest != "" && c.Sync.LockTTL <= c.Platforms[slowest].Timeout {
		return fmt.Errorf("sync lock_ttl %s must exceed platform %s timeout %s",
			c.Sync.LockTTL, slowest, c.Platforms[slowest].Timeout)
	}

	if c.Engagement.BloomFPRate <= 0 || c.Engagement.BloomFPRate >= 1 {
		return fmt.Errorf("bloom false-positive rate must be in (0, 1)")
	}

	return nil
}

var defaultBaseURLs = map[string]string{
	"facebook":  "https://graph.facebook.com",
	"instagram": "https://graph.facebook.com",
	"whatsapp":  "https://graph.facebook.com",
	"twitter":   "https://api.twitter.com",
	"pinterest": "https://api.pinterest.com",
	"tiktok":    "https://open.tiktokapis.com",
}

var defaultAPIVersions = map[string]string{
	"facebook":  "v18.0",
	"instagram": "v18.0",
	"whatsapp":  "v18.0",
	"twitter":   "2",
	"pinterest": "v5",
	"tiktok":    "v2",
}

// SetDefaults sets default values for configuration
func (c *Config) SetDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.Mode == "" {
		c.Server.Mode = "debug"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 30 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 60 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 60 * time.Second
	}
	if c.Server.RequestTimeout == 0 {
		c.Server.RequestTimeout = 45 * time.Second
	}
	if c.Server.MaxHeaderMB == 0 {
		c.Server.MaxHeaderMB = 1
	}

	if c.Database.Driver == "" {
		c.Database.Driver = "mysql"
	}
	if c.Database.Host == "" {
		c.Database.Host = "localhost"
	}
	if c.Database.Port == 0 {
		c.Database.Port = 3306
	}
	if c.Database.Charset == "" {
		c.Database.Charset = "utf8mb4"
	}
	if c.Database.Loc == "" {
		c.Database.Loc = "UTC"
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 50
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 10
	}
	if c.Database.ConnMaxLifetime == 0 {
		c.Database.ConnMaxLifetime = time.Hour
	}
	if c.Database.ConnMaxIdleTime == 0 {
		c.Database.ConnMaxIdleTime = 10 * time.Minute
	}
	if c.Database.LogLevel == "" {
		c.Database.LogLevel = "warn"
	}

	if c.Redis.Host == "" {
		c.Redis.Host = "localhost"
	}
	if c.Redis.Port == 0 {
		c.Redis.Port = 6379
	}
	if c.Redis.PoolSize == 0 {
		c.Redis.PoolSize = 50
	}
	if c.Redis.MinIdleConns == 0 {
		c.Redis.MinIdleConns = 5
	}
	if c.Redis.MaxRetries == 0 {
		c.Redis.MaxRetries = 3
	}
	if c.Redis.DialTimeout == 0 {
		c.Redis.DialTimeout = 5 * time.Second
	}
	if c.Redis.ReadTimeout == 0 {
		c.Redis.ReadTimeout = 3 * time.Second
	}
	if c.Redis.WriteTimeout == 0 {
		c.Redis.WriteTimeout = 3 * time.Second
	}
	if c.Redis.PoolTimeout == 0 {
		c.Redis.PoolTimeout = 4 * time.Second
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Log.Output == "" {
		c.Log.Output = "stdout"
	}

	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = "socialsync"
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "socialsync"
	}
	if c.Tracing.SampleRate == 0 {
		c.Tracing.SampleRate = 0.1
	}

	if c.RateLimit.PerIP.RPS == 0 {
		c.RateLimit.PerIP.RPS = 20
	}
	if c.RateLimit.PerIP.Burst == 0 {
		c.RateLimit.PerIP.Burst = 40
	}
	if c.RateLimit.ShareQuota.Limit == 0 {
		c.RateLimit.ShareQuota.Limit = 30
	}
	if c.RateLimit.ShareQuota.Window == 0 {
		c.RateLimit.ShareQuota.Window = time.Minute
	}

	if c.CircuitBreak.MaxRequests == 0 {
		c.CircuitBreak.MaxRequests = 1
	}
	if c.CircuitBreak.Interval == 0 {
		c.CircuitBreak.Interval = time.Minute
	}
	if c.CircuitBreak.Timeout == 0 {
		c.CircuitBreak.Timeout = 30 * time.Second
	}
	if c.CircuitBreak.ConsecutiveFailures == 0 {
		c.CircuitBreak.ConsecutiveFailures = 5
	}

	if c.Security.JWT.Expire == 0 {
		c.Security.JWT.Expire = time.Hour
	}
	if c.Security.JWT.Issuer == "" {
		c.Security.JWT.Issuer = "socialsync"
	}

	if c.Platforms == nil {
		c.Platforms = make(map[string]PlatformConfig)
	}
	for name, p := range c.Platforms {
		if p.BaseURL == "" {
			p.BaseURL = defaultBaseURLs[name]
		}
		if p.APIVersion == "" {
			p.APIVersion = defaultAPIVersions[name]
		}
		if p.Timeout == 0 {
			p.Timeout = 10 * time.Second
		}
		if p.RPS == 0 {
			p.RPS = 5
		}
		if p.Burst == 0 {
			p.Burst = 10
		}
		c.Platforms[name] = p
	}

	if c.Sharing.BaseURL == "" {
		c.Sharing.BaseURL = "https://marketplace.example.com"
	}
	if c.Sharing.UTMMedium == "" {
		c.Sharing.UTMMedium = "social"
	}
	if c.Sharing.UTMCampaign == "" {
		c.Sharing.UTMCampaign = "share"
	}

	if c.Sync.Guard == "" {
		c.Sync.Guard = "redis"
	}
	if c.Sync.LockTTL == 0 {
		c.Sync.LockTTL = 2 * time.Minute
	}
	if c.Sync.Workers == 0 {
		c.Sync.Workers = 4
	}
	if c.Sync.QueueBuffer == 0 {
		c.Sync.QueueBuffer = 1000
	}
	if c.Sync.JobResultTTL == 0 {
		c.Sync.JobResultTTL = time.Hour
	}

	if c.Engagement.CacheTTL == 0 {
		c.Engagement.CacheTTL = time.Minute
	}
	if c.Engagement.CacheMaxMB == 0 {
		c.Engagement.CacheMaxMB = 64
	}
	if c.Engagement.BloomCapacity == 0 {
		c.Engagement.BloomCapacity = 1000000
	}
	if c.Engagement.BloomFPRate == 0 {
		c.Engagement.BloomFPRate = 0.001
	}
}
