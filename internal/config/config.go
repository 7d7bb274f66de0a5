package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/example/court-scheduler/internal/campusrec"
)

// Config layers an optional config file under COURTSCHED_* environment
// overrides. Everything has a workable default except the session codec
// keys, which are only demanded by commands that touch the session store.
type Config struct {
	BaseURL      string
	ScheduleFile string
	SessionFile  string
	// ReloadSignalFile is the one-shot sentinel the daemon watches for.
	ReloadSignalFile string

	SessionMaxAge time.Duration
	HTTPTimeout   time.Duration

	PrepMargin          time.Duration
	IdleSleep           time.Duration
	MaxNap              time.Duration
	CookieCheckInterval time.Duration

	Strategy string

	// Facilities extends the built-in registry: name -> product id.
	Facilities map[string]string

	sessionHashKey  string
	sessionBlockKey string
}

func Load(path string) (Config, error) {
	v := viper.New()
	v.SetDefault("base_url", campusrec.DefaultBaseURL)
	v.SetDefault("schedule_file", "bookings_schedule.json")
	v.SetDefault("session_file", ".session")
	v.SetDefault("reload_signal_file", ".reload_cookies_signal")
	v.SetDefault("session_max_age", "8h")
	v.SetDefault("http_timeout", "10s")
	v.SetDefault("prep_margin", "10s")
	v.SetDefault("idle_sleep", "60s")
	v.SetDefault("max_nap", "60s")
	v.SetDefault("cookie_check_interval", "5m")
	v.SetDefault("strategy", "random")

	v.SetEnvPrefix("COURTSCHED")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else {
		v.SetConfigName("courtsched")
		v.AddConfigPath(".")
		// a config file is optional when none was named explicitly
		if err := v.ReadInConfig(); err != nil {
			var nf viper.ConfigFileNotFoundError
			if !errors.As(err, &nf) {
				return Config{}, fmt.Errorf("config: %w", err)
			}
		}
	}

	cfg := Config{
		BaseURL:             v.GetString("base_url"),
		ScheduleFile:        v.GetString("schedule_file"),
		SessionFile:         v.GetString("session_file"),
		ReloadSignalFile:    v.GetString("reload_signal_file"),
		SessionMaxAge:       v.GetDuration("session_max_age"),
		HTTPTimeout:         v.GetDuration("http_timeout"),
		PrepMargin:          v.GetDuration("prep_margin"),
		IdleSleep:           v.GetDuration("idle_sleep"),
		MaxNap:              v.GetDuration("max_nap"),
		CookieCheckInterval: v.GetDuration("cookie_check_interval"),
		Strategy:            v.GetString("strategy"),
		Facilities:          v.GetStringMapString("facilities"),
		sessionHashKey:      v.GetString("session_hash_key"),
		sessionBlockKey:     v.GetString("session_block_key"),
	}
	return cfg, nil
}

// SessionKeys decodes the securecookie key pair. Required only by commands
// that read or write the session store; generate a pair with `courtsched
// keys`.
func (c Config) SessionKeys() (hashKey, blockKey []byte, err error) {
	if c.sessionHashKey == "" || c.sessionBlockKey == "" {
		return nil, nil, fmt.Errorf("config: COURTSCHED_SESSION_HASH_KEY and COURTSCHED_SESSION_BLOCK_KEY are required (base64; run `courtsched keys`)")
	}
	hashKey, err = decodeB64(c.sessionHashKey)
	if err != nil {
		return nil, nil, fmt.Errorf("config: session_hash_key: %w", err)
	}
	blockKey, err = decodeB64(c.sessionBlockKey)
	if err != nil {
		return nil, nil, fmt.Errorf("config: session_block_key: %w", err)
	}
	return hashKey, blockKey, nil
}

// WithSessionKeys returns a copy carrying explicit key material; used by
// tests and by callers that source keys outside the environment.
func (c Config) WithSessionKeys(hashKey, blockKey string) Config {
	c.sessionHashKey = hashKey
	c.sessionBlockKey = blockKey
	return c
}

func decodeB64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return base64.RawStdEncoding.DecodeString(s)
}
