// Package config loads configuration for the livecontrol relay.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

const (
	defaultListenAddr       = "0.0.0.0:8787"
	defaultDataDir          = "./data"
	defaultHostBaseURL      = "http://localhost:5000/desktop"
	defaultProbeIntervalMs  = 10000
	defaultMoveThrottleMs   = 50
	defaultRequestTimeoutMs = 5000
	defaultMaxInFlight      = 8
	fileName                = "livecontrol.yaml"
)

// Password modes accepted by PASSWORD_MODE.
const (
	PasswordPlain  = "plain"
	PasswordBcrypt = "bcrypt"
)

// Config holds runtime configuration values.
type Config struct {
	ListenAddr       string `yaml:"listen_addr"`
	DataDir          string `yaml:"data_dir"`
	HostBaseURL      string `yaml:"host_base_url"`
	ControlToken     string `yaml:"control_token"`
	UIPassword       string `yaml:"ui_password"`
	PasswordMode     string `yaml:"password_mode"`
	ProbeIntervalMs  int    `yaml:"probe_interval_ms"`
	MoveThrottleMs   int    `yaml:"move_throttle_ms"`
	RequestTimeoutMs int    `yaml:"request_timeout_ms"`
	MaxInFlight      int    `yaml:"max_inflight"`
	PrefsPath        string `yaml:"prefs_path"`
	Debug            bool   `yaml:"debug"`
}

// Load reads DATA_DIR/livecontrol.yaml, then DATA_DIR/.env, then environment variables. Later sources win.
func Load() (Config, error) {
	cfg := Config{
		ListenAddr:       defaultListenAddr,
		DataDir:          defaultDataDir,
		HostBaseURL:      defaultHostBaseURL,
		PasswordMode:     PasswordPlain,
		ProbeIntervalMs:  defaultProbeIntervalMs,
		MoveThrottleMs:   defaultMoveThrottleMs,
		RequestTimeoutMs: defaultRequestTimeoutMs,
		MaxInFlight:      defaultMaxInFlight,
	}

	dataDir := envString("DATA_DIR", cfg.DataDir)
	if err := loadFile(filepath.Join(dataDir, fileName), &cfg); err != nil {
		return Config{}, err
	}
	if err := loadEnvFile(filepath.Join(dataDir, ".env")); err != nil {
		return Config{}, err
	}

	cfg.ListenAddr = envString("LISTEN_ADDR", cfg.ListenAddr)
	cfg.DataDir = envString("DATA_DIR", cfg.DataDir)
	cfg.HostBaseURL = strings.TrimRight(envString("HOST_BASE_URL", cfg.HostBaseURL), "/")
	cfg.ControlToken = envString("CONTROL_TOKEN", cfg.ControlToken)
	cfg.UIPassword = envString("UI_PASSWORD", cfg.UIPassword)
	cfg.PasswordMode = strings.ToLower(envString("PASSWORD_MODE", cfg.PasswordMode))
	if cfg.PrefsPath == "" {
		cfg.PrefsPath = filepath.Join(cfg.DataDir, "stream.yaml")
	}
	cfg.PrefsPath = envString("PREFS_PATH", cfg.PrefsPath)
	cfg.Debug = envBool("DEBUG", cfg.Debug)

	probe, err := envInt("PROBE_INTERVAL_MS", cfg.ProbeIntervalMs)
	if err != nil {
		return Config{}, err
	}
	if probe < 500 {
		return Config{}, fmt.Errorf("PROBE_INTERVAL_MS must be >= 500")
	}
	cfg.ProbeIntervalMs = probe

	throttle, err := envInt("MOVE_THROTTLE_MS", cfg.MoveThrottleMs)
	if err != nil {
		return Config{}, err
	}
	if throttle <= 0 || throttle > 1000 {
		return Config{}, fmt.Errorf("MOVE_THROTTLE_MS must be 1-1000")
	}
	cfg.MoveThrottleMs = throttle

	timeout, err := envInt("REQUEST_TIMEOUT_MS", cfg.RequestTimeoutMs)
	if err != nil {
		return Config{}, err
	}
	if timeout <= 0 {
		return Config{}, fmt.Errorf("REQUEST_TIMEOUT_MS must be > 0")
	}
	cfg.RequestTimeoutMs = timeout

	inflight, err := envInt("MAX_INFLIGHT", cfg.MaxInFlight)
	if err != nil {
		return Config{}, err
	}
	if inflight < 0 {
		return Config{}, fmt.Errorf("MAX_INFLIGHT must be >= 0")
	}
	cfg.MaxInFlight = inflight

	if err := validateBaseURL(cfg.HostBaseURL); err != nil {
		return Config{}, err
	}
	switch cfg.PasswordMode {
	case PasswordPlain, PasswordBcrypt:
	default:
		return Config{}, fmt.Errorf("PASSWORD_MODE must be %s or %s", PasswordPlain, PasswordBcrypt)
	}
	if cfg.UIPassword == "" {
		return Config{}, errors.New("UI_PASSWORD is required")
	}

	return cfg, nil
}

// PasswordHash returns the bcrypt hash used to check logins.
func (c Config) PasswordHash() ([]byte, error) {
	if c.PasswordMode == PasswordBcrypt {
		hash := []byte(c.UIPassword)
		if _, err := bcrypt.Cost(hash); err != nil {
			return nil, fmt.Errorf("UI_PASSWORD is not a bcrypt hash: %w", err)
		}
		return hash, nil
	}
	return bcrypt.GenerateFromPassword([]byte(c.UIPassword), bcrypt.DefaultCost)
}

// ProbeInterval returns the host probe period.
func (c Config) ProbeInterval() time.Duration {
	return time.Duration(c.ProbeIntervalMs) * time.Millisecond
}

// MoveThrottle returns the minimum interval between move commands.
func (c Config) MoveThrottle() time.Duration {
	return time.Duration(c.MoveThrottleMs) * time.Millisecond
}

// RequestTimeout returns the per-request timeout for host calls.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMs) * time.Millisecond
}

// validateBaseURL checks that raw is an absolute http(s) URL.
func validateBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("HOST_BASE_URL: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("HOST_BASE_URL must be an absolute http(s) URL")
	}
	return nil
}

// loadFile overlays YAML settings from path onto cfg. A missing file is not an error.
func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// envString returns an env override when present, otherwise a default.
func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// envInt returns an int env override when present, otherwise a default.
func envInt(key string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return value, nil
}

// envBool returns a bool env override when present, otherwise a default.
func envBool(key string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	switch strings.ToLower(raw) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

// loadEnvFile loads KEY=VALUE pairs from a .env file.
func loadEnvFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}

	for _, line := range strings.Split(string(data), "\n") {
		key, value, ok := parseEnvLine(line)
		if !ok {
			continue
		}
		if _, exists := os.LookupEnv(key); !exists {
			if err := os.Setenv(key, value); err != nil {
				return err
			}
		}
	}

	return nil
}

// parseEnvLine parses a single .env line into key/value.
func parseEnvLine(line string) (string, string, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return "", "", false
	}
	if strings.HasPrefix(line, "export ") {
		line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
	}
	parts := strings.SplitN(line, "=", 2)
	if len(parts) != 2 {
		return "", "", false
	}
	key := strings.TrimSpace(parts[0])
	value := strings.TrimSpace(parts[1])
	if key == "" {
		return "", "", false
	}
	value = strings.Trim(value, `"'`)
	return key, value, true
}
