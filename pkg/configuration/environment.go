package configuration

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/varda/pkg/logging"
)

const Production = "production"

var singleton = sync.OnceValue(func() *Configuration {
	c := &Configuration{}
	if err := c.load([]string{".env", ".env.local"}); err != nil {
		panic(err)
	}
	return c
})

// Use returns the process-wide configuration loaded from the environment.
func Use() *Configuration {
	return singleton()
}

func LoadEnv(envFiles []string) (int, error) {
	existing := make([]string, 0, len(envFiles))
	for _, file := range envFiles {
		if _, err := os.Stat(file); err == nil {
			existing = append(existing, file)
		}
	}
	if len(existing) == 0 {
		return 0, nil
	}
	return len(existing), godotenv.Load(existing...)
}

type DatabaseOptions struct {
	Opts     string `env:"-"`
	Name     string `env:"DB_NAME" envDefault:"varda"`
	Host     string `env:"DB_HOST" envDefault:"localhost"`
	Port     string `env:"DB_PORT" envDefault:"5432"`
	User     string `env:"DB_USER" envDefault:"postgres"`
	Password string `env:"DB_PASSWORD" envDefault:"postgres"`
}

func (d *DatabaseOptions) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s dbname=%s password=%s sslmode=disable",
		d.Host, d.Port, d.User, d.Name, d.Password,
	)
}

// UpstreamOptions name the registries the core calls out to: the person
// registry (ONR) and the operator registry (organisaatiopalvelu), plus the
// identity provider used for role synchronization.
type UpstreamOptions struct {
	PersonRegistryURL   string        `env:"UPSTREAM_PERSON_URL" envDefault:"http://localhost:8300"`
	OperatorRegistryURL string        `env:"UPSTREAM_OPERATOR_URL" envDefault:"http://localhost:8301"`
	IdentityProviderURL string        `env:"UPSTREAM_KAYTTOOIKEUS_URL" envDefault:"http://localhost:8302"`
	Timeout             time.Duration `env:"UPSTREAM_TIMEOUT" envDefault:"10s"`
	MaxAttempts         int           `env:"UPSTREAM_MAX_ATTEMPTS" envDefault:"3"`
}

func (u *UpstreamOptions) Validate() error {
	if u.MaxAttempts < 1 {
		return fmt.Errorf("upstream MaxAttempts must be positive, got %d", u.MaxAttempts)
	}
	return nil
}

type RateLimitOptions struct {
	Enabled       bool   `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	LoginAttempts int64  `env:"RATE_LIMIT_LOGIN_ATTEMPTS" envDefault:"5"`
	LoginPeriod   string `env:"RATE_LIMIT_LOGIN_PERIOD" envDefault:"1h"`
	Storage       string `env:"RATE_LIMIT_STORAGE" envDefault:"memory"` // memory or redis
	RedisURL      string `env:"RATE_LIMIT_REDIS_URL"`
}

func (r *RateLimitOptions) Validate() error {
	if r.LoginAttempts < 1 {
		return fmt.Errorf("rate limit LoginAttempts must be positive, got %d", r.LoginAttempts)
	}
	if _, err := time.ParseDuration(r.LoginPeriod); err != nil {
		return fmt.Errorf("rate limit LoginPeriod invalid: %w", err)
	}
	if r.Storage != "memory" && r.Storage != "redis" {
		return fmt.Errorf("rate limit Storage must be 'memory' or 'redis', got '%s'", r.Storage)
	}
	if r.Storage == "redis" && r.RedisURL == "" {
		return fmt.Errorf("rate limit RedisURL is required when Storage is 'redis'")
	}
	return nil
}

type CacheOptions struct {
	TTL      time.Duration `env:"VISIBLE_CACHE_TTL" envDefault:"60s"`
	Storage  string        `env:"VISIBLE_CACHE_STORAGE" envDefault:"memory"` // memory or redis
	RedisURL string        `env:"VISIBLE_CACHE_REDIS_URL"`
}

func (c *CacheOptions) Validate() error {
	if c.TTL <= 0 {
		return fmt.Errorf("cache TTL must be positive, got %s", c.TTL)
	}
	if c.Storage != "memory" && c.Storage != "redis" {
		return fmt.Errorf("cache Storage must be 'memory' or 'redis', got '%s'", c.Storage)
	}
	if c.Storage == "redis" && c.RedisURL == "" {
		return fmt.Errorf("cache RedisURL is required when Storage is 'redis'")
	}
	return nil
}

type AuthzOptions struct {
	ModelPath  string `env:"AUTHZ_MODEL_PATH" envDefault:"config/access/model.conf"`
	PolicyPath string `env:"AUTHZ_POLICY_PATH" envDefault:"config/access/policy.csv"`
}

type PrometheusOptions struct {
	Enabled bool   `env:"PROMETHEUS_METRICS_ENABLED" envDefault:"true"`
	Path    string `env:"PROMETHEUS_METRICS_PATH" envDefault:"/debug/prometheus"`
}

type Configuration struct {
	Database   DatabaseOptions
	Upstream   UpstreamOptions
	RateLimit  RateLimitOptions
	Cache      CacheOptions
	Authz      AuthzOptions
	Prometheus PrometheusOptions

	Environment string `env:"GO_APP_ENV" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	ServerPort  int    `env:"PORT" envDefault:"3200"`
	// OpintopolkuOID is the umbrella operator under which administrators
	// and data-handover service accounts are scoped.
	OpintopolkuOID string `env:"OPINTOPOLKU_ORGANISAATIO_OID" envDefault:"1.2.246.562.10.00000000001"`
	// HetuCipherKey is the hex-encoded AES-256 key sealing national
	// identifiers at rest.
	HetuCipherKey string `env:"HETU_CIPHER_KEY"`

	logger *logrus.Logger
}

func (c *Configuration) load(envFiles []string) error {
	if _, err := LoadEnv(envFiles); err != nil {
		return err
	}
	if err := env.Parse(c); err != nil {
		return err
	}
	for _, v := range []interface{ Validate() error }{
		&c.Upstream, &c.RateLimit, &c.Cache,
	} {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	c.logger = logging.ConsoleLogger(level)
	return nil
}

func (c *Configuration) Logger() *logrus.Logger {
	return c.logger
}
