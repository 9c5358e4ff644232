package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the resolved service configuration.
type Config struct {
	Host      string
	Port      int
	APIPrefix string

	EngineHost    string
	EnginePort    int
	EngineTimeout time.Duration

	// FrontendURL is the origin allowed to call the JSON API with credentials.
	FrontendURL string

	// PublicBaseURL, when set, replaces the request-derived base used in
	// rewritten manifests and hlsUrl fields (e.g. behind a reverse proxy).
	PublicBaseURL string

	StatusCheckDelay     time.Duration
	StatusCheckWorkers   int
	EngineHealthSchedule string

	LogLevel  string
	LogFormat string

	ShutdownTimeout time.Duration
}

// Keys, as environment variable names.
const (
	KeyHost                 = "HOST"
	KeyPort                 = "PORT"
	KeyAPIPrefix            = "API_PREFIX"
	KeyEngineHost           = "ACESTREAM_HOST"
	KeyEnginePort           = "ACESTREAM_PORT"
	KeyEngineTimeout        = "ENGINE_TIMEOUT"
	KeyFrontendURL          = "FRONTEND_URL"
	KeyPublicBaseURL        = "PUBLIC_BASE_URL"
	KeyStatusCheckDelay     = "STATUS_CHECK_DELAY"
	KeyStatusCheckWorkers   = "STATUS_CHECK_WORKERS"
	KeyEngineHealthSchedule = "ENGINE_HEALTH_SCHEDULE"
	KeyLogLevel             = "LOG_LEVEL"
	KeyLogFormat            = "LOG_FORMAT"
	KeyShutdownTimeout      = "SHUTDOWN_TIMEOUT"
)

// Load reads the .env file from the current working directory and sets
// environment variables. If .env does not exist, Load returns an error but
// callers can ignore it and use system env or defaults. Pass one or more paths
// to load from specific files (e.g. ".env"); with no paths, ".env" is used.
func Load(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	return godotenv.Load(paths...)
}

// SetDefaults registers the built-in default for every key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyHost, "")
	v.SetDefault(KeyPort, 3001)
	v.SetDefault(KeyAPIPrefix, "/api")
	v.SetDefault(KeyEngineHost, "127.0.0.1")
	v.SetDefault(KeyEnginePort, 6878)
	v.SetDefault(KeyEngineTimeout, "10s")
	v.SetDefault(KeyFrontendURL, "http://localhost:3000")
	v.SetDefault(KeyPublicBaseURL, "")
	v.SetDefault(KeyStatusCheckDelay, "3s")
	v.SetDefault(KeyStatusCheckWorkers, 4)
	v.SetDefault(KeyEngineHealthSchedule, "@every 30s")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "json")
	v.SetDefault(KeyShutdownTimeout, "10s")
}

// BindFlags registers the command-line overrides on fs and binds them to v.
// An unset flag does not shadow the environment.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	fs.Int("port", 3001, "HTTP listen port")
	fs.String("host", "", "HTTP listen host")
	fs.String("engine-host", "127.0.0.1", "streaming engine host")
	fs.Int("engine-port", 6878, "streaming engine port")
	fs.String("log-level", "info", "log level (debug, info, warn, error)")
	fs.String("log-format", "json", "log format (json, text)")

	bindings := map[string]string{
		KeyPort:       "port",
		KeyHost:       "host",
		KeyEngineHost: "engine-host",
		KeyEnginePort: "engine-port",
		KeyLogLevel:   "log-level",
		KeyLogFormat:  "log-format",
	}
	for key, flag := range bindings {
		if err := v.BindPFlag(key, fs.Lookup(flag)); err != nil {
			return fmt.Errorf("binding flag %s: %w", flag, err)
		}
	}
	return nil
}

// New resolves a Config from v: flags, then environment, then defaults.
func New(v *viper.Viper) (*Config, error) {
	SetDefaults(v)
	v.AutomaticEnv()

	cfg := &Config{
		Host:                 v.GetString(KeyHost),
		Port:                 v.GetInt(KeyPort),
		APIPrefix:            normalizePrefix(v.GetString(KeyAPIPrefix)),
		EngineHost:           v.GetString(KeyEngineHost),
		EnginePort:           v.GetInt(KeyEnginePort),
		EngineTimeout:        v.GetDuration(KeyEngineTimeout),
		FrontendURL:          v.GetString(KeyFrontendURL),
		PublicBaseURL:        strings.TrimSuffix(v.GetString(KeyPublicBaseURL), "/"),
		StatusCheckDelay:     v.GetDuration(KeyStatusCheckDelay),
		StatusCheckWorkers:   v.GetInt(KeyStatusCheckWorkers),
		EngineHealthSchedule: v.GetString(KeyEngineHealthSchedule),
		LogLevel:             v.GetString(KeyLogLevel),
		LogFormat:            v.GetString(KeyLogFormat),
		ShutdownTimeout:      v.GetDuration(KeyShutdownTimeout),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges and enumerations.
func (c *Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("%s out of range: %d", KeyPort, c.Port))
	}
	if c.EnginePort <= 0 || c.EnginePort > 65535 {
		errs = append(errs, fmt.Errorf("%s out of range: %d", KeyEnginePort, c.EnginePort))
	}
	if c.EngineHost == "" {
		errs = append(errs, fmt.Errorf("%s must not be empty", KeyEngineHost))
	}
	if c.EngineTimeout <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive", KeyEngineTimeout))
	}
	if c.StatusCheckDelay <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive", KeyStatusCheckDelay))
	}
	if c.StatusCheckWorkers <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive", KeyStatusCheckWorkers))
	}
	switch strings.ToLower(c.LogFormat) {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("%s must be json or text, got %q", KeyLogFormat, c.LogFormat))
	}
	return errors.Join(errs...)
}

// Addr is the HTTP listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// EngineBaseURL is the engine origin, e.g. http://127.0.0.1:6878.
func (c *Config) EngineBaseURL() string {
	return "http://" + net.JoinHostPort(c.EngineHost, strconv.Itoa(c.EnginePort))
}

func normalizePrefix(p string) string {
	p = strings.TrimSpace(p)
	p = strings.TrimSuffix(p, "/")
	if p != "" && !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}
