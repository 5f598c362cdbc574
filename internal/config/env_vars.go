package config

import (
	"fmt"
	"strings"
)

const (
	portEnvVar  = "PORT"
	appNameVar  = "APP_NAME"
	envVar      = "ENV"
	logLevelVar = "LOG_LEVEL"
)

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
}

type EnvVars struct {
	Port     string `mapstructure:"PORT"`
	AppName  string `mapstructure:"APP_NAME"`
	Env      string `mapstructure:"ENV"`
	LogLevel string `mapstructure:"LOG_LEVEL"`
}

var _ EnvConfig = EnvVars{}

// GetPort returns the listen address, always with a leading colon.
func (e EnvVars) GetPort() string {
	port := e.Port
	if port == "" {
		port = "8090"
	}
	if !strings.HasPrefix(port, ":") {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (e EnvVars) GetAppName() string {
	return e.AppName
}

func (e EnvVars) GetEnv() string {
	if e.Env == "" {
		return "DEV"
	}
	return e.Env
}

func (e EnvVars) GetLogLevel() string {
	return e.LogLevel
}
