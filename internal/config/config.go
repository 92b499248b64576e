package config

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	_ "github.com/joho/godotenv/autoload"
)

const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"
)

const (
	BackendFile  = "file"
	BackendRedis = "redis"
	BackendMySQL = "mysql"
)

// Config holds application level configuration loaded from environment variables.
type Config struct {
	Env             string        `env:"APP_ENV" env-default:"local"`
	ServerPort      string        `env:"SERVER_PORT" env-default:"8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" env-default:"10s"`
	StaticDir       string        `env:"STATIC_DIR"`
	CORSOrigins     []string      `env:"CORS_ORIGINS" env-default:"*" env-separator:","`
	// TrustedProxies lists CIDRs whose X-Forwarded-For is honored. Empty
	// means the socket address identifies the client.
	TrustedProxies []string `env:"TRUSTED_PROXIES" env-separator:","`

	Storage StorageConfig
	Redis   RedisConfig
	Auth    AuthConfig
	Limits  RateLimitConfig
}

// StorageConfig selects and configures the persistence backend.
type StorageConfig struct {
	Backend  string `env:"STORAGE_BACKEND" env-default:"file"`
	DataDir  string `env:"DATA_DIR" env-default:"./data"`
	MySQLDSN string `env:"MYSQL_DSN" env-default:"user:password@tcp(localhost:3306)/todo?charset=utf8mb4&parseTime=True&loc=Local"`
}

// RedisConfig is shared by the KV backend, the rate limiter and the cache.
// An empty address disables every Redis-backed feature except the KV backend,
// which refuses to start without one.
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" env-default:"0"`
}

type AuthConfig struct {
	JWTSecret      string        `env:"JWT_SECRET"`
	TokenTTL       time.Duration `env:"TOKEN_TTL" env-default:"24h"`
	AdminSignupKey string        `env:"ADMIN_SIGNUP_KEY"`
}

type RateLimitConfig struct {
	AuthRequests    int           `env:"RATE_LIMIT_AUTH_REQUESTS" env-default:"5"`
	GeneralRequests int           `env:"RATE_LIMIT_GENERAL_REQUESTS" env-default:"100"`
	Window          time.Duration `env:"RATE_LIMIT_WINDOW" env-default:"15m"`
}

const localJWTSecret = "local-development-secret"

// Load builds Config from the environment (and a .env file when present).
func Load() (*Config, error) {
	cfg := new(Config)
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("read env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Env {
	case EnvLocal, EnvDev, EnvProd:
	default:
		return fmt.Errorf("unknown APP_ENV %q", c.Env)
	}

	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	if c.Storage.Backend == "" {
		c.Storage.Backend = BackendFile
	}
	switch c.Storage.Backend {
	case BackendFile, BackendMySQL:
	case BackendRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("STORAGE_BACKEND=redis requires REDIS_ADDR")
		}
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.Storage.Backend)
	}

	if c.Auth.JWTSecret == "" {
		if c.Env != EnvLocal {
			return fmt.Errorf("JWT_SECRET is required when APP_ENV=%s", c.Env)
		}
		c.Auth.JWTSecret = localJWTSecret
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be positive")
	}
	if _, err := c.TrustedProxyRanges(); err != nil {
		return err
	}
	if c.Limits.Window <= 0 || c.Limits.AuthRequests <= 0 || c.Limits.GeneralRequests <= 0 {
		return fmt.Errorf("rate limits must be positive")
	}
	return nil
}

// TrustedProxyRanges parses TrustedProxies. A bare IP is taken as a single
// host range.
func (c *Config) TrustedProxyRanges() ([]*net.IPNet, error) {
	var ranges []*net.IPNet
	for _, raw := range c.TrustedProxies {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if !strings.Contains(raw, "/") {
			ip := net.ParseIP(raw)
			if ip == nil {
				return nil, fmt.Errorf("invalid TRUSTED_PROXIES entry %q", raw)
			}
			bits := 32
			if ip.To4() == nil {
				bits = 128
			}
			raw = fmt.Sprintf("%s/%d", raw, bits)
		}
		_, ipNet, err := net.ParseCIDR(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid TRUSTED_PROXIES entry %q: %w", raw, err)
		}
		ranges = append(ranges, ipNet)
	}
	return ranges, nil
}

// RedisEnabled reports whether a Redis server is configured.
func (c *Config) RedisEnabled() bool {
	return c.Redis.Addr != ""
}
