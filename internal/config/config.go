package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Env override keys. Secrets normally arrive this way (optionally via a .env
// file loaded by the caller) rather than through the config file.
const (
	EnvToken     = "TRACKRELAY_TOKEN"
	EnvOwnerID   = "TRACKRELAY_OWNER_ID"
	EnvChannel   = "TRACKRELAY_CHANNEL"
	EnvPublicURL = "TRACKRELAY_PUBLIC_URL"
)

// Load reads the config file (JSON or YAML, strict), applies env overrides,
// and validates required settings.
//
// A missing file is not an error: an env-only deployment is supported. A
// present-but-invalid file is always an error.
func Load(path string) (*Config, error) {
	var cfg Config
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		parsed, perr := parse(path, b)
		if perr != nil {
			return nil, perr
		}
		cfg = *parsed
	case errors.Is(err, os.ErrNotExist):
		// env-only
	default:
		return nil, err
	}

	applyEnv(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func parse(path string, b []byte) (*Config, error) {
	jb, _, err := coerceToJSONBytes(path, b)
	if err != nil {
		return nil, err
	}

	var cfg Config
	dec := json.NewDecoder(bytes.NewReader(jb))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return nil, err
	}
	// reject trailing tokens (e.g. concatenated JSON)
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return nil, fmt.Errorf("invalid config: trailing data")
		}
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(EnvToken)); v != "" {
		cfg.Telegram.Token = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvOwnerID)); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Telegram.OwnerChatID = id
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvChannel)); v != "" {
		cfg.Telegram.Channel = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvPublicURL)); v != "" {
		cfg.Telegram.PublicURL = v
	}
}

// Validate checks settings the process cannot start without.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		return errors.New("telegram.token is required (or " + EnvToken + ")")
	}
	if cfg.Telegram.OwnerChatID == 0 {
		return errors.New("telegram.owner_chat_id is required (or " + EnvOwnerID + ")")
	}
	cfg.Telegram.Channel = strings.TrimPrefix(strings.TrimSpace(cfg.Telegram.Channel), "@")
	if cfg.Telegram.Channel == "" {
		return errors.New("telegram.channel is required (or " + EnvChannel + ")")
	}
	url := strings.TrimSpace(cfg.Telegram.PublicURL)
	if url == "" {
		return errors.New("telegram.public_url is required (or " + EnvPublicURL + ")")
	}
	cfg.Telegram.PublicURL = strings.TrimRight(url, "/")

	// Durations must at least parse, even if callers re-read them later.
	for _, f := range []struct{ path, raw string }{
		{"relay.quiet_interval", cfg.Relay.QuietInterval},
		{"relay.pace", cfg.Relay.Pace},
		{"server.read_timeout", cfg.Server.ReadTimeout},
		{"server.write_timeout", cfg.Server.WriteTimeout},
	} {
		if _, err := ParseDurationField(f.path, f.raw); err != nil {
			return err
		}
	}
	if cfg.Storage != nil {
		for _, f := range []struct{ path, raw string }{
			{"storage.busy_timeout", cfg.Storage.BusyTimeout},
			{"storage.retention", cfg.Storage.Retention},
		} {
			if _, err := ParseDurationField(f.path, f.raw); err != nil {
				return err
			}
		}
	}
	return nil
}
