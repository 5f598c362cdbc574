package config

import (
	"encoding/hex"
	"fmt"
)

const (
	sessionStoreVar   = "SESSION_STORE"
	sessionFileVar    = "SESSION_FILE"
	sessionKeyVar     = "SESSION_KEY"
	redisAddrVar      = "REDIS_ADDR"
	redisPasswordVar  = "REDIS_PASSWORD"
	redisDBVar        = "REDIS_DB"
	redisKeyPrefixVar = "REDIS_KEY_PREFIX"
)

// StoreKind selects the backend that persists the operator session.
type StoreKind string

const (
	StoreFile   StoreKind = "file"
	StoreRedis  StoreKind = "redis"
	StoreMemory StoreKind = "memory"
)

type SessionConfig interface {
	GetSessionStore() StoreKind
	GetSessionFile() string
	GetSessionKey() ([]byte, error)
	GetRedisAddr() string
	GetRedisPassword() string
	GetRedisDB() int
	GetRedisKeyPrefix() string
}

type Session struct {
	StoreKind      StoreKind `mapstructure:"SESSION_STORE"`
	File           string    `mapstructure:"SESSION_FILE"`
	Key            string    `mapstructure:"SESSION_KEY"`
	RedisAddr      string    `mapstructure:"REDIS_ADDR"`
	RedisPassword  string    `mapstructure:"REDIS_PASSWORD"`
	RedisDB        int       `mapstructure:"REDIS_DB"`
	RedisKeyPrefix string    `mapstructure:"REDIS_KEY_PREFIX"`
}

var _ SessionConfig = Session{}

func (s Session) GetSessionStore() StoreKind {
	return s.StoreKind
}

func (s Session) GetSessionFile() string {
	return s.File
}

// GetSessionKey decodes the hex encryption key for the session file. A nil key
// means the file is written in plain JSON.
func (s Session) GetSessionKey() ([]byte, error) {
	if s.Key == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(s.Key)
	if err != nil {
		return nil, fmt.Errorf("%s is not valid hex: %w", sessionKeyVar, err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("%s must decode to 32 bytes, got %d", sessionKeyVar, len(key))
	}
	return key, nil
}

func (s Session) GetRedisAddr() string {
	return s.RedisAddr
}

func (s Session) GetRedisPassword() string {
	return s.RedisPassword
}

func (s Session) GetRedisDB() int {
	return s.RedisDB
}

func (s Session) GetRedisKeyPrefix() string {
	return s.RedisKeyPrefix
}
