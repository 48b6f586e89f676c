package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"task-manager/internal/ratelimit"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTesting     = "testing"

	DriverMongo  = "mongo"
	DriverSQLite = "sqlite"

	// devSecret is only acceptable outside production.
	devSecret = "fallback-secret-key"
)

// Config holds application level configuration aggregated from env/config files.
type Config struct {
	Env    string
	Server struct {
		Addr string
		// TrustedProxies lists proxy addresses or CIDRs allowed to set
		// X-Forwarded-For. Empty means the socket peer is the client.
		TrustedProxies []string
	}
	Database struct {
		Driver string
		URI    string
		Name   string
		Path   string
	}
	Auth struct {
		JWTSecret  string
		TokenTTL   time.Duration
		Issuer     string
		BcryptCost int
	}
	RateLimit struct {
		Enabled  bool
		Default  string
		Register string
		Login    string
	}
	Log struct {
		Level  string
		Format string
	}
	Export struct {
		Bucket   string
		Prefix   string
		Region   string
		Endpoint string
		URLTTL   time.Duration
	}
	AWS struct {
		Profile string
	}
}

func (c Config) IsProd() bool { return c.Env == EnvProduction }

// Load reads configuration from environment variables (TASKAPI_*), an optional
// .env file and an optional config file. env, when non-empty, overrides TASKAPI_ENV.
func Load(env, file string) (Config, error) {
	loadDotEnv(".env")

	v := viper.New()
	v.SetEnvPrefix("TASKAPI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("env", EnvDevelopment)
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config file: %w", err)
			}
		}
	}
	if env != "" {
		v.Set("env", env)
	}

	setDefaults(v, strings.ToLower(strings.TrimSpace(v.GetString("env"))))

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Env = strings.ToLower(strings.TrimSpace(cfg.Env))

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, env string) {
	v.SetDefault("server.addr", "0.0.0.0:5000")
	v.SetDefault("server.trustedproxies", []string{})
	v.SetDefault("database.driver", DriverMongo)
	v.SetDefault("database.uri", "mongodb://localhost:27017")
	v.SetDefault("database.name", "taskmanager")
	v.SetDefault("database.path", "data/taskmanager.db")
	v.SetDefault("auth.jwtsecret", devSecret)
	v.SetDefault("auth.tokenttl", 15*time.Minute)
	v.SetDefault("auth.issuer", "task-manager")
	v.SetDefault("auth.bcryptcost", 12)
	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.default", "200 per day;50 per hour")
	v.SetDefault("ratelimit.register", "5 per minute")
	v.SetDefault("ratelimit.login", "10 per minute")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("export.bucket", "")
	v.SetDefault("export.prefix", "task-exports")
	v.SetDefault("export.region", "us-east-1")
	v.SetDefault("export.endpoint", "")
	v.SetDefault("export.urlttl", 15*time.Minute)
	v.SetDefault("aws.profile", "")

	switch env {
	case EnvDevelopment:
		v.SetDefault("database.name", "taskmanager_dev")
		v.SetDefault("database.path", "data/taskmanager_dev.db")
		v.SetDefault("ratelimit.enabled", false)
		v.SetDefault("log.level", "debug")
		v.SetDefault("log.format", "text")
	case EnvTesting:
		v.SetDefault("database.name", "taskmanager_test")
		v.SetDefault("database.path", "data/taskmanager_test.db")
		v.SetDefault("auth.bcryptcost", 4)
		v.SetDefault("log.format", "text")
	case EnvProduction:
		// production must name its database and secret explicitly
		v.SetDefault("database.uri", "")
		v.SetDefault("auth.jwtsecret", "")
	}
}

// Validate rejects configurations the server cannot start with.
func (c Config) Validate() error {
	switch c.Env {
	case EnvDevelopment, EnvProduction, EnvTesting:
	default:
		return fmt.Errorf("unknown environment %q", c.Env)
	}

	switch c.Database.Driver {
	case DriverMongo:
		if strings.TrimSpace(c.Database.URI) == "" {
			return fmt.Errorf("database uri is required")
		}
		if strings.TrimSpace(c.Database.Name) == "" {
			return fmt.Errorf("database name is required")
		}
	case DriverSQLite:
		if strings.TrimSpace(c.Database.Path) == "" {
			return fmt.Errorf("database path is required")
		}
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}

	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return fmt.Errorf("auth jwt secret is required")
	}
	if c.IsProd() && c.Auth.JWTSecret == devSecret {
		return fmt.Errorf("auth jwt secret must be set in production")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("auth token ttl must be positive")
	}

	for name, budget := range map[string]string{
		"default":  c.RateLimit.Default,
		"register": c.RateLimit.Register,
		"login":    c.RateLimit.Login,
	} {
		if _, err := ratelimit.ParseRules(budget); err != nil {
			return fmt.Errorf("ratelimit %s: %w", name, err)
		}
	}
	return nil
}

func loadDotEnv(path string) {
	file, err := os.Open(path)
	if err != nil {
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")

		partsIndex := strings.Index(line, "=")
		if partsIndex <= 0 {
			continue
		}

		key := strings.TrimSpace(line[:partsIndex])
		value := strings.TrimSpace(line[partsIndex+1:])
		value = strings.Trim(value, `"'`)
		if key == "" {
			continue
		}

		if _, exists := os.LookupEnv(key); !exists {
			_ = os.Setenv(key, value)
		}
	}
}
