package config

import (
	"strings"
	"time"
)

const (
	apiBaseURLVar = "API_BASE_URL"
	apiTimeoutVar = "API_TIMEOUT"
)

// APIConfig describes how the console reaches the customs REST API.
type APIConfig interface {
	GetAPIBaseURL() string
	GetAPITimeout() time.Duration
}

type API struct {
	APIBaseURL string        `mapstructure:"API_BASE_URL"`
	APITimeout time.Duration `mapstructure:"API_TIMEOUT"`
}

var _ APIConfig = API{}

func (a API) GetAPIBaseURL() string {
	return strings.TrimRight(a.APIBaseURL, "/")
}

func (a API) GetAPITimeout() time.Duration {
	return a.APITimeout
}
