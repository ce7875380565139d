package config

import (
	"io/fs"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"

	"github.com/wricardo/mcp-training/tictactoe/validate"
)

// DefaultFile is the configuration file read from the working directory.
const DefaultFile = "server.config"

// EnvPrefix prefixes the environment overrides (TTT_PORT, TTT_MAX_ROOMS, ...).
const EnvPrefix = "TTT"

// Defaults.
const (
	DefaultPort            = 10000
	DefaultMaxRooms        = 16
	DefaultMaxClients      = 128
	DefaultBindAddress     = "0.0.0.0"
	DefaultDisconnectGrace = 15
	DefaultProbeInterval   = 5
	DefaultAdminAddress    = "127.0.0.1:8080"
	DefaultLogLevel        = "info"
)

var logger = logrus.WithField("component", "config")

// Config holds the server settings. Durations are whole seconds.
type Config struct {
	Port            int    `envconfig:"PORT" json:"port"`
	MaxRooms        int    `envconfig:"MAX_ROOMS" json:"max_rooms"`
	MaxClients      int    `envconfig:"MAX_CLIENTS" json:"max_clients"`
	BindAddress     string `envconfig:"BIND_ADDRESS" json:"bind_address"`
	DisconnectGrace int    `envconfig:"DISCONNECT_GRACE" json:"disconnect_grace"`
	ProbeInterval   int    `envconfig:"PROBE_INTERVAL" json:"probe_interval"`
	AdminAddress    string `envconfig:"ADMIN_ADDRESS" json:"admin_address"`
	LogLevel        string `envconfig:"LOG_LEVEL" json:"log_level"`
	LogFile         string `envconfig:"LOG_FILE" json:"log_file"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Port:            DefaultPort,
		MaxRooms:        DefaultMaxRooms,
		MaxClients:      DefaultMaxClients,
		BindAddress:     DefaultBindAddress,
		DisconnectGrace: DefaultDisconnectGrace,
		ProbeInterval:   DefaultProbeInterval,
		AdminAddress:    DefaultAdminAddress,
		LogLevel:        DefaultLogLevel,
	}
}

// Load reads key=value pairs from path, applies TTT_* environment
// overrides and clamps the result. A missing file, unknown keys and
// unparsable values fall back to defaults. Only a malformed environment
// override is an error.
func Load(path string) (Config, error) {
	cfg := Default()

	values, err := godotenv.Read(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		logger.WithField("path", path).Debug("config file not found, using defaults")
	case err != nil:
		logger.WithError(err).WithField("path", path).Warn("config file unreadable, using defaults")
	default:
		cfg.apply(values)
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return Config{}, errors.Wrap(err, "environment overrides")
	}

	cfg.Clamp()
	return cfg, nil
}

func (c *Config) apply(values map[string]string) {
	ints := map[string]*int{
		"PORT":             &c.Port,
		"MAX_ROOMS":        &c.MaxRooms,
		"MAX_CLIENTS":      &c.MaxClients,
		"DISCONNECT_GRACE": &c.DisconnectGrace,
		"PROBE_INTERVAL":   &c.ProbeInterval,
	}
	strs := map[string]*string{
		"BIND_ADDRESS":  &c.BindAddress,
		"ADMIN_ADDRESS": &c.AdminAddress,
		"LOG_LEVEL":     &c.LogLevel,
		"LOG_FILE":      &c.LogFile,
	}

	for key, raw := range values {
		if dst, ok := ints[key]; ok {
			n, err := cast.ToIntE(strings.TrimSpace(raw))
			if err != nil {
				logger.WithFields(logrus.Fields{"key": key, "value": raw}).Warn("ignoring non-integer value")
				continue
			}
			*dst = n
			continue
		}
		if dst, ok := strs[key]; ok {
			*dst = strings.TrimSpace(raw)
			continue
		}
		logger.WithField("key", key).Warn("ignoring unknown config key")
	}
}

// Clamp replaces out-of-range values. PORT and BIND_ADDRESS fall back to
// their defaults; the limits are pinned to the nearest bound.
func (c *Config) Clamp() {
	if validate.Port(c.Port) != nil {
		logger.WithField("port", c.Port).Warn("invalid port, using default")
		c.Port = DefaultPort
	}
	c.MaxRooms = clamp("MAX_ROOMS", c.MaxRooms)
	c.MaxClients = clamp("MAX_CLIENTS", c.MaxClients)
	c.DisconnectGrace = clamp("DISCONNECT_GRACE", c.DisconnectGrace)
	c.ProbeInterval = clamp("PROBE_INTERVAL", c.ProbeInterval)

	if validate.BindAddress(c.BindAddress) != nil {
		logger.WithField("bind_address", c.BindAddress).Warn("invalid bind address, using default")
		c.BindAddress = DefaultBindAddress
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		c.LogLevel = DefaultLogLevel
	}
}

func clamp(key string, v int) int {
	r := validate.Ranges[key]
	if r.Contains(v) {
		return v
	}
	clamped := r.Min
	if v > r.Max {
		clamped = r.Max
	}
	logger.WithFields(logrus.Fields{"key": key, "value": v, "clamped": clamped}).Warn("config value out of range")
	return clamped
}

// Grace returns the reconnect window.
func (c Config) Grace() time.Duration {
	return time.Duration(c.DisconnectGrace) * time.Second
}

// ProbeEvery returns the monitor cadence.
func (c Config) ProbeEvery() time.Duration {
	return time.Duration(c.ProbeInterval) * time.Second
}

// ListenAddress returns the TCP listen address.
func (c Config) ListenAddress() string {
	return net.JoinHostPort(c.BindAddress, strconv.Itoa(c.Port))
}
