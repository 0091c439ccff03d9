// Package config reads the service settings from a YAML file with
// GOMAILER_ environment overrides.
package config

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

// ErrMissingKey is returned by Require.
var ErrMissingKey = errors.New("config: required key is not set")

// Config is the read side of the configuration. Getters never fail: a
// missing key reads as the zero value, and components that need a setting
// check it themselves or through Require.
type Config interface {
	io.Closer

	GetBool(key string) bool
	GetString(key string) string
	GetInt(key string) int
	GetInt32(key string) int32
	GetInt64(key string) int64

	// GetSecond, GetMinute and GetHour scale an integer to a duration.
	GetSecond(key string) time.Duration
	GetMinute(key string) time.Duration
	GetHour(key string) time.Duration

	// GetArray reads a YAML list or a comma separated string. Elements are
	// trimmed and empty ones dropped.
	GetArray(key string) []string

	IsSet(key string) bool

	// Unmarshal decodes the subtree at key into out through mapstructure
	// tags. Durations accept strings such as "15s".
	Unmarshal(key string, out any) error
}

// Require reports every key of keys that has no value.
func Require(cfg Config, keys ...string) error {
	var missing []string
	for _, k := range keys {
		if !cfg.IsSet(k) || strings.TrimSpace(cfg.GetString(k)) == "" && len(cfg.GetArray(k)) == 0 {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingKey, strings.Join(missing, ", "))
	}
	return nil
}
