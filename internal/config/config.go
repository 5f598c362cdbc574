package config

import (
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type Config interface {
	EnvConfig
	APIConfig
	SessionConfig
	NotificationConfig
}

type mainConfig struct {
	EnvVars      `mapstructure:",squash"`
	API          `mapstructure:",squash"`
	Session      `mapstructure:",squash"`
	Notification `mapstructure:",squash"`
}

type loadOptions struct {
	envFile string
}

type Option func(*loadOptions)

// WithEnvFile reads defaults from a dotenv file other than ./.env.
func WithEnvFile(path string) Option {
	return func(o *loadOptions) {
		o.envFile = path
	}
}

// Load reads .env (if present), then the process environment, on top of the
// defaults below. Env vars override the file.
func Load(opts ...Option) (Config, error) {
	o := loadOptions{envFile: ".env"}
	for _, opt := range opts {
		opt(&o)
	}

	v := viper.New()
	v.SetConfigFile(o.envFile)
	v.SetConfigType("env")
	_ = v.ReadInConfig() // a missing .env is fine

	v.AutomaticEnv()
	setDefaults(v)

	var cfg mainConfig
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}); err != nil {
		return nil, fmt.Errorf("[config Load] unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("[config Load] %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(portEnvVar, "8090")
	v.SetDefault(appNameVar, "Customs Console")
	v.SetDefault(envVar, "DEV")
	v.SetDefault(logLevelVar, "")

	v.SetDefault(apiBaseURLVar, "http://localhost:8000")
	v.SetDefault(apiTimeoutVar, "30s")

	v.SetDefault(sessionStoreVar, string(StoreFile))
	v.SetDefault(sessionFileVar, "./data/session.json")
	v.SetDefault(sessionKeyVar, "")
	v.SetDefault(redisAddrVar, "127.0.0.1:6379")
	v.SetDefault(redisPasswordVar, "")
	v.SetDefault(redisDBVar, 0)
	v.SetDefault(redisKeyPrefixVar, "customs-console:")

	v.SetDefault(notificationPollVar, "30s")
	v.SetDefault(notificationPageSizeVar, 50)
}

func (c mainConfig) validate() error {
	if c.APIBaseURL == "" {
		return fmt.Errorf("%s is required", apiBaseURLVar)
	}
	if c.APITimeout <= 0 {
		return fmt.Errorf("%s must be positive", apiTimeoutVar)
	}
	switch c.StoreKind {
	case StoreFile, StoreRedis, StoreMemory:
	default:
		return fmt.Errorf("%s %q is not one of file, redis, memory", sessionStoreVar, c.StoreKind)
	}
	if _, err := c.GetSessionKey(); err != nil {
		return err
	}
	if c.PollInterval < time.Second {
		return fmt.Errorf("%s must be at least 1s", notificationPollVar)
	}
	if c.PageSize < 1 || c.PageSize > 200 {
		return fmt.Errorf("%s must be between 1 and 200", notificationPageSizeVar)
	}
	return nil
}
