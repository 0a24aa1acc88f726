// Package config loads runtime settings from the environment.
package config

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// ClientSidePaging names lists whose backend endpoint ignores $top/$skip.
var clientSidePagingLists = []string{"authors", "editions"}

type Config struct {
	AppEnv string `envconfig:"APP_ENV" default:"development"`
	APIURL string `envconfig:"API_URL" required:"true"`
	Port   string `envconfig:"PORT" default:"3000"`

	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"10s"`
	PageSize       int           `envconfig:"PAGE_SIZE" default:"20"`
	SearchDebounce time.Duration `envconfig:"SEARCH_DEBOUNCE" default:"400ms"`
	RedirectDelay  time.Duration `envconfig:"REDIRECT_DELAY" default:"3s"`
	SessionTTL     time.Duration `envconfig:"SESSION_TTL" default:"8h"`
	ListCacheSize  int           `envconfig:"LIST_CACHE_SIZE" default:"1024"`
	SessionSweepAt string        `envconfig:"SESSION_SWEEP_AT" default:"03:00"`
	SessionSweepTZ string        `envconfig:"SESSION_SWEEP_TZ" default:"UTC"`

	ClientSidePaging []string `envconfig:"CLIENT_SIDE_PAGING"`

	CookieSecure   bool     `envconfig:"COOKIE_SECURE" default:"false"`
	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:5173"`
	MaxBodySize    int64    `envconfig:"MAX_BODY_SIZE" default:"1048576"`

	RedisURL         string        `envconfig:"REDIS_URL"`
	LoginMaxAttempts int           `envconfig:"LOGIN_MAX_ATTEMPTS" default:"10"`
	LoginWindow      time.Duration `envconfig:"LOGIN_WINDOW" default:"5m"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`

	AWSRegion          string        `envconfig:"AWS_REGION" default:"auto"`
	AWSEndpoint        string        `envconfig:"AWS_ENDPOINT"`
	AWSAccessKeyID     string        `envconfig:"AWS_ACCESS_KEY_ID"`
	AWSSecretAccessKey string        `envconfig:"AWS_SECRET_ACCESS_KEY"`
	AWSBucket          string        `envconfig:"AWS_BUCKET"`
	AWSPresignTTL      time.Duration `envconfig:"AWS_PRESIGN_TTL" default:"15m"`
}

// Load reads .env files (missing files are ignored), then the environment.
func Load(envFiles ...string) (Config, error) {
	_ = godotenv.Load(envFiles...)

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate fails fast on settings the app cannot run with.
func (c *Config) Validate() error {
	c.APIURL = strings.TrimRight(strings.TrimSpace(c.APIURL), "/")
	u, err := url.Parse(c.APIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("API_URL must be an absolute http(s) URL, got %q", c.APIURL)
	}
	if c.RequestTimeout <= 0 {
		return errors.New("REQUEST_TIMEOUT must be > 0")
	}
	if c.PageSize < 1 || c.PageSize > 200 {
		return fmt.Errorf("PAGE_SIZE must be between 1 and 200, got %d", c.PageSize)
	}
	if c.SearchDebounce < 0 || c.RedirectDelay < 0 {
		return errors.New("SEARCH_DEBOUNCE and REDIRECT_DELAY must not be negative")
	}
	if c.SessionTTL <= 0 {
		return errors.New("SESSION_TTL must be > 0")
	}
	if c.ListCacheSize < 1 {
		return errors.New("LIST_CACHE_SIZE must be >= 1")
	}
	if _, err := time.Parse("15:04", c.SessionSweepAt); err != nil {
		return fmt.Errorf("SESSION_SWEEP_AT must be HH:MM, got %q", c.SessionSweepAt)
	}
	if _, err := time.LoadLocation(c.SessionSweepTZ); err != nil {
		return fmt.Errorf("SESSION_SWEEP_TZ: %w", err)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}
	if f := strings.ToLower(c.LogFormat); f != "text" && f != "json" {
		return fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.LogFormat)
	}
	for i, name := range c.ClientSidePaging {
		name = strings.ToLower(strings.TrimSpace(name))
		if !contains(clientSidePagingLists, name) {
			return fmt.Errorf("CLIENT_SIDE_PAGING: unknown list %q (allowed: %s)", name, strings.Join(clientSidePagingLists, ", "))
		}
		c.ClientSidePaging[i] = name
	}
	if c.RedisURL != "" {
		if _, err := redis.ParseURL(c.RedisURL); err != nil {
			return fmt.Errorf("REDIS_URL: %w", err)
		}
	}
	if c.LoginMaxAttempts < 1 || c.LoginWindow <= 0 {
		return errors.New("LOGIN_MAX_ATTEMPTS must be >= 1 and LOGIN_WINDOW > 0")
	}
	return nil
}

func (c Config) Production() bool { return strings.EqualFold(c.AppEnv, "production") }

// SlicesLocally reports whether list is paged client-side.
func (c Config) SlicesLocally(list string) bool { return contains(c.ClientSidePaging, list) }

// ObjectStorage reports whether cover uploads are configured.
func (c Config) ObjectStorage() bool {
	return c.AWSBucket != "" && c.AWSAccessKeyID != "" && c.AWSSecretAccessKey != ""
}

// HardeningWarnings returns non-fatal warnings worth logging on startup.
func (c Config) HardeningWarnings() []string {
	var warns []string
	if c.RequestTimeout > 30*time.Second {
		warns = append(warns, fmt.Sprintf("REQUEST_TIMEOUT=%s is > 30s; users will wait long on a stuck backend", c.RequestTimeout))
	}
	if c.RedisURL == "" {
		warns = append(warns, "REDIS_URL not set; sessions and login limits are kept in process memory")
	}
	if c.Production() {
		if !c.CookieSecure {
			warns = append(warns, "COOKIE_SECURE=false in production; session cookies will be sent over plain HTTP")
		}
		if strings.HasPrefix(c.RedisURL, "redis://") {
			warns = append(warns, "REDIS_URL uses redis:// (no TLS). Prefer rediss:// for TLS")
		}
		if strings.HasPrefix(c.APIURL, "http://") {
			warns = append(warns, "API_URL uses plain http in production")
		}
		for _, o := range c.AllowedOrigins {
			if o == "*" {
				warns = append(warns, "ALLOWED_ORIGINS contains *; credentials will be refused by browsers")
			}
		}
	}
	return warns
}

// PingRedis checks connectivity with a short timeout.
func PingRedis(rdb *redis.Client, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return rdb.Ping(ctx).Err()
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
