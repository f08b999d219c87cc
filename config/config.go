package config

import (
	"log/slog"
	"net"
	"net/url"
	"regexp"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/spf13/viper"
)

const (
	EnvDev     = "dev"
	EnvStaging = "staging"
	EnvProd    = "prod"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

var languageCodePattern = regexp.MustCompile(`^[a-z]{2,12}(-[a-z0-9]{2,12})*$`)

type ServerConfig struct {
	Address         string `mapstructure:"address"`
	Environment     string `mapstructure:"environment"`
	ReadTimeout     string `mapstructure:"read_timeout"`
	WriteTimeout    string `mapstructure:"write_timeout"`
	IdleTimeout     string `mapstructure:"idle_timeout"`
	ShutdownTimeout string `mapstructure:"shutdown_timeout"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// LanguageConfig lists the mirror endpoints of one language edition, in
// preference order.
type LanguageConfig struct {
	Code      string   `mapstructure:"code"`
	Endpoints []string `mapstructure:"endpoints"`
}

type RetryConfig struct {
	MaxRetries int     `mapstructure:"max_retries"`
	BaseDelay  string  `mapstructure:"base_delay"`
	MaxDelay   string  `mapstructure:"max_delay"`
	Multiplier float64 `mapstructure:"multiplier"`
}

type BreakerConfig struct {
	FailureThreshold int    `mapstructure:"failure_threshold"`
	ResetTimeout     string `mapstructure:"reset_timeout"`
}

type UpstreamConfig struct {
	UserAgent string           `mapstructure:"user_agent"`
	Timeout   string           `mapstructure:"timeout"`
	Languages []LanguageConfig `mapstructure:"languages"`
	Retry     RetryConfig      `mapstructure:"retry"`
	Breaker   BreakerConfig    `mapstructure:"breaker"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// TTLConfig sets how long each operation's responses stay cached.
type TTLConfig struct {
	Search   string `mapstructure:"search"`
	Page     string `mapstructure:"page"`
	Summary  string `mapstructure:"summary"`
	Category string `mapstructure:"category"`
}

type CacheConfig struct {
	MemoryCapacity int         `mapstructure:"memory_capacity"`
	Redis          RedisConfig `mapstructure:"redis"`
	TTL            TTLConfig   `mapstructure:"ttl"`
}

type MetricsConfig struct {
	BufferSize int `mapstructure:"buffer_size"`
}

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Upstream UpstreamConfig `mapstructure:"upstream"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.environment", EnvDev)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "5s")
	v.SetDefault("logging.level", LogLevelInfo)
	v.SetDefault("upstream.user_agent", "wikigate/1.0 (https://github.com/wikigate/wikigate)")
	v.SetDefault("upstream.timeout", "10s")
	v.SetDefault("upstream.languages", []map[string]any{
		{"code": "en", "endpoints": []string{
			"https://en.wikipedia.org",
			"https://en.m.wikipedia.org",
		}},
	})
	v.SetDefault("upstream.retry.max_retries", 3)
	v.SetDefault("upstream.retry.base_delay", "1s")
	v.SetDefault("upstream.retry.max_delay", "8s")
	v.SetDefault("upstream.retry.multiplier", 2.0)
	v.SetDefault("upstream.breaker.failure_threshold", 5)
	v.SetDefault("upstream.breaker.reset_timeout", "30s")
	v.SetDefault("cache.memory_capacity", 10000)
	v.SetDefault("cache.redis.enabled", false)
	v.SetDefault("cache.redis.addr", "localhost:6379")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.ttl.search", "5m")
	v.SetDefault("cache.ttl.page", "10m")
	v.SetDefault("cache.ttl.summary", "30m")
	v.SetDefault("cache.ttl.category", "15m")
	v.SetDefault("metrics.buffer_size", 1024)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	v.SetEnvPrefix("wikigate")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Error("failed to read config file", slog.String("error", err.Error()))
			return nil, err
		}
		slog.Info("config file not found, using defaults and environment variables")
	} else {
		slog.Info("loaded config file", slog.String("file", v.ConfigFileUsed()))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		slog.Error("failed to unmarshal config", slog.String("error", err.Error()))
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Server,
			validation.Required,
			validation.By(func(value interface{}) error {
				sc, ok := value.(ServerConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a ServerConfig")
				}
				return validation.ValidateStruct(&sc,
					validation.Field(&sc.Environment,
						validation.Required,
						validation.In(EnvDev, EnvStaging, EnvProd),
					),
					validation.Field(&sc.Address,
						validation.Required,
						validation.By(validateHostPort),
					),
					validation.Field(&sc.ReadTimeout, validation.Required, validation.By(validateDuration)),
					validation.Field(&sc.WriteTimeout, validation.Required, validation.By(validateDuration)),
					validation.Field(&sc.IdleTimeout, validation.Required, validation.By(validateDuration)),
					validation.Field(&sc.ShutdownTimeout, validation.Required, validation.By(validateDuration)),
				)
			}),
		),
		validation.Field(&c.Logging,
			validation.Required,
			validation.By(func(value interface{}) error {
				lc, ok := value.(LoggingConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a LoggingConfig")
				}
				return validation.ValidateStruct(&lc,
					validation.Field(&lc.Level,
						validation.Required,
						validation.In(LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError),
					),
				)
			}),
		),
		validation.Field(&c.Upstream,
			validation.Required,
			validation.By(validateUpstreamConfig),
		),
		validation.Field(&c.Cache,
			validation.Required,
			validation.By(validateCacheConfig),
		),
		validation.Field(&c.Metrics,
			validation.Required,
			validation.By(func(value interface{}) error {
				mc, ok := value.(MetricsConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a MetricsConfig")
				}
				return validation.ValidateStruct(&mc,
					validation.Field(&mc.BufferSize, validation.Required, validation.Min(1)),
				)
			}),
		),
	)
}

func validateUpstreamConfig(value interface{}) error {
	uc, ok := value.(UpstreamConfig)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be an UpstreamConfig")
	}
	return validation.ValidateStruct(&uc,
		validation.Field(&uc.UserAgent, validation.Required),
		validation.Field(&uc.Timeout, validation.Required, validation.By(validateDuration)),
		validation.Field(&uc.Languages,
			validation.Required,
			validation.Length(1, 0),
			validation.Each(validation.By(validateLanguageConfig)),
		),
		validation.Field(&uc.Retry,
			validation.Required,
			validation.By(func(value interface{}) error {
				rc, ok := value.(RetryConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a RetryConfig")
				}
				return validation.ValidateStruct(&rc,
					validation.Field(&rc.MaxRetries, validation.Min(0)),
					validation.Field(&rc.BaseDelay, validation.Required, validation.By(validateDuration)),
					validation.Field(&rc.MaxDelay, validation.Required, validation.By(validateDuration)),
					validation.Field(&rc.Multiplier, validation.Required, validation.Min(1.0)),
				)
			}),
		),
		validation.Field(&uc.Breaker,
			validation.Required,
			validation.By(func(value interface{}) error {
				bc, ok := value.(BreakerConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a BreakerConfig")
				}
				return validation.ValidateStruct(&bc,
					validation.Field(&bc.FailureThreshold, validation.Required, validation.Min(1)),
					validation.Field(&bc.ResetTimeout, validation.Required, validation.By(validateDuration)),
				)
			}),
		),
	)
}

func validateLanguageConfig(value interface{}) error {
	lang, ok := value.(LanguageConfig)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a LanguageConfig")
	}

	if !languageCodePattern.MatchString(lang.Code) {
		return validation.NewError("validation_invalid_language", "language code must look like en, de or zh-min-nan")
	}

	if len(lang.Endpoints) == 0 {
		return validation.NewError("validation_no_endpoints", "each language needs at least one endpoint")
	}

	for _, endpoint := range lang.Endpoints {
		if err := validateServerURL(endpoint); err != nil {
			return err
		}
	}

	return nil
}

func validateCacheConfig(value interface{}) error {
	cc, ok := value.(CacheConfig)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a CacheConfig")
	}
	return validation.ValidateStruct(&cc,
		validation.Field(&cc.MemoryCapacity, validation.Required, validation.Min(1)),
		validation.Field(&cc.Redis,
			validation.By(func(value interface{}) error {
				rc, ok := value.(RedisConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a RedisConfig")
				}
				if !rc.Enabled {
					return nil
				}
				return validation.ValidateStruct(&rc,
					validation.Field(&rc.Addr, validation.Required, validation.By(validateHostPort)),
					validation.Field(&rc.DB, validation.Min(0)),
				)
			}),
		),
		validation.Field(&cc.TTL,
			validation.Required,
			validation.By(func(value interface{}) error {
				tc, ok := value.(TTLConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a TTLConfig")
				}
				return validation.ValidateStruct(&tc,
					validation.Field(&tc.Search, validation.Required, validation.By(validateDuration)),
					validation.Field(&tc.Page, validation.Required, validation.By(validateDuration)),
					validation.Field(&tc.Summary, validation.Required, validation.By(validateDuration)),
					validation.Field(&tc.Category, validation.Required, validation.By(validateDuration)),
				)
			}),
		),
	)
}

func validateHostPort(value interface{}) error {
	addr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return validation.NewError("validation_invalid_hostport", "must be in host:port format")
	}

	if port == "" {
		return validation.NewError("validation_invalid_port", "port cannot be empty")
	}

	if host != "" {
		if err := is.Host.Validate(host); err != nil {
			return validation.NewError("validation_invalid_host", "invalid host")
		}
	}

	return nil
}

func validateDuration(value interface{}) error {
	durationStr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	d, err := time.ParseDuration(durationStr)
	if err != nil {
		return validation.NewError("validation_invalid_duration", "must be a valid duration (e.g., 2s, 5m, 1h)")
	}
	if d <= 0 {
		return validation.NewError("validation_invalid_duration", "must be a positive duration")
	}

	return nil
}

func validateServerURL(value interface{}) error {
	serverURL, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	if serverURL == "" {
		return validation.NewError("validation_empty_url", "endpoint URL cannot be empty")
	}

	parsedURL, err := url.Parse(serverURL)
	if err != nil {
		return validation.NewError("validation_invalid_url", "must be a valid URL")
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return validation.NewError("validation_invalid_scheme", "URL must use http or https scheme")
	}

	if parsedURL.Host == "" {
		return validation.NewError("validation_missing_host", "URL must have a host")
	}

	return nil
}

// Duration parses a duration field that has already passed Validate.
// Malformed input returns zero; callers treat zero as "use default".
func Duration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}
