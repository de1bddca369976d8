// Package core wires the bridge together: it loads the YAML configuration
// and runs the Engine, which owns the mirai connection manager and the
// bridge's HTTP listener.
//
// # Example Configuration
//
//	mirai:
//	  verify_key: "${MIRAI_VERIFY_KEY}"
//	  host: "127.0.0.1"
//	  port: 8080
//	  qq: [123456789]
//	server:
//	  port: 8081
//	nickname: ["bot"]
//	superusers: ["10001"]
//	metrics:
//	  enabled: true
package core

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/keepmind9/miraibridge/internal/bot"
	"github.com/keepmind9/miraibridge/internal/logger"
	"gopkg.in/yaml.v3"
)

const (
	DefaultMiraiHost       = "127.0.0.1"
	DefaultMiraiPort       = 8080
	DefaultServerHost      = "0.0.0.0"
	DefaultServerPort      = 8081
	DefaultMetricsPath     = "/metrics"
	DefaultLogLevel        = "info"
	DefaultLogMaxSize      = 100 // MB
	DefaultLogMaxBackups   = 5
	DefaultLogMaxAge       = 30 // days
	DefaultLogEnableStdout = true

	DefaultAPITimeout        = "30s"
	DefaultReconnectInterval = "3s"
	DefaultHandshakeTimeout  = "10s"
)

// LoadConfig loads configuration from file and expands environment variables
func LoadConfig(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig expands, decodes, defaults, and validates a YAML document
func ParseConfig(data []byte) (*Config, error) {
	expanded, err := expandEnv(string(data))
	if err != nil {
		return nil, fmt.Errorf("failed to expand environment variables: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal([]byte(expanded), &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &config, nil
}

// expandEnv replaces ${VAR_NAME} patterns with environment variable values
func expandEnv(input string) (string, error) {
	var missingVars []string

	result := os.Expand(input, func(key string) string {
		if val, ok := os.LookupEnv(key); ok {
			return val
		}
		missingVars = append(missingVars, key)
		return ""
	})

	if len(missingVars) > 0 {
		return "", fmt.Errorf("missing required environment variables: %s",
			strings.Join(missingVars, ", "))
	}
	return result, nil
}

func validateConfig(config *Config) error {
	applyDefaults(config)

	m := &config.Mirai
	if m.VerifyKey == "" {
		return fmt.Errorf("mirai.verify_key is required")
	}
	if !m.Reverse {
		if len(m.QQ) == 0 {
			return fmt.Errorf("mirai.qq must list at least one account in client mode")
		}
		if m.Port <= 0 || m.Port > 65535 {
			return fmt.Errorf("mirai.port must be between 1 and 65535 (got %d)", m.Port)
		}
	}
	seen := make(map[int64]bool, len(m.QQ))
	for _, qq := range m.QQ {
		if qq <= 0 {
			return fmt.Errorf("mirai.qq contains an invalid account %d", qq)
		}
		if seen[qq] {
			return fmt.Errorf("mirai.qq lists account %d twice", qq)
		}
		seen[qq] = true
	}

	if _, err := time.ParseDuration(m.APITimeout); err != nil {
		return fmt.Errorf("invalid mirai.api_timeout: %w", err)
	}
	for name, value := range map[string]string{
		"reconnect_interval": m.ReconnectInterval,
		"handshake_timeout":  m.HandshakeTimeout,
	} {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid mirai.%s: %w", name, err)
		}
		if d <= 0 {
			return fmt.Errorf("mirai.%s must be positive (got %v)", name, d)
		}
	}

	if config.Server.Port < 0 || config.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 0 and 65535 (got %d)", config.Server.Port)
	}
	if !strings.HasPrefix(config.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with / (got %q)", config.Metrics.Path)
	}
	return nil
}

func applyDefaults(config *Config) {
	m := &config.Mirai
	if m.Host == "" {
		m.Host = DefaultMiraiHost
	}
	if m.Port == 0 {
		m.Port = DefaultMiraiPort
	}
	if m.APITimeout == "" {
		m.APITimeout = DefaultAPITimeout
	}
	if m.ReconnectInterval == "" {
		m.ReconnectInterval = DefaultReconnectInterval
	}
	if m.HandshakeTimeout == "" {
		m.HandshakeTimeout = DefaultHandshakeTimeout
	}

	if config.Server.Host == "" {
		config.Server.Host = DefaultServerHost
	}
	if config.Server.Port == 0 {
		config.Server.Port = DefaultServerPort
	}
	if config.Metrics.Path == "" {
		config.Metrics.Path = DefaultMetricsPath
	}

	if config.Logging.Level == "" {
		config.Logging.Level = DefaultLogLevel
	}
	if config.Logging.MaxSize == 0 {
		config.Logging.MaxSize = DefaultLogMaxSize
	}
	if config.Logging.MaxBackups == 0 {
		config.Logging.MaxBackups = DefaultLogMaxBackups
	}
	if config.Logging.MaxAge == 0 {
		config.Logging.MaxAge = DefaultLogMaxAge
	}
	if config.Logging.EnableStdout == nil {
		stdout := DefaultLogEnableStdout
		config.Logging.EnableStdout = &stdout
	}
}

// BotConfig converts the mirai section into the connection manager's config.
// Durations that fail to parse fall back to the manager's defaults.
func (c *Config) BotConfig() bot.Config {
	return bot.Config{
		VerifyKey:         c.Mirai.VerifyKey,
		Host:              c.Mirai.Host,
		Port:              c.Mirai.Port,
		Accounts:          c.Mirai.QQ,
		Reverse:           c.Mirai.Reverse,
		AccessToken:       c.Mirai.AccessToken,
		APITimeout:        parseDuration(c.Mirai.APITimeout),
		ReconnectInterval: parseDuration(c.Mirai.ReconnectInterval),
		HandshakeTimeout:  parseDuration(c.Mirai.HandshakeTimeout),
		Nicknames:         c.Nickname,
	}
}

// LoggerConfig converts the logging section for logger.InitLogger
func (c *Config) LoggerConfig() logger.Config {
	stdout := DefaultLogEnableStdout
	if c.Logging.EnableStdout != nil {
		stdout = *c.Logging.EnableStdout
	}
	return logger.Config{
		Level:        c.Logging.Level,
		File:         c.Logging.File,
		MaxSize:      c.Logging.MaxSize,
		MaxBackups:   c.Logging.MaxBackups,
		MaxAge:       c.Logging.MaxAge,
		Compress:     c.Logging.Compress,
		EnableStdout: stdout,
	}
}

// ListenAddr is the host:port of the bridge's HTTP listener
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Mode reports "server" for reverse websocket setups and "client" otherwise
func (c *Config) Mode() string {
	if c.Mirai.Reverse {
		return string(bot.ModeServer)
	}
	return string(bot.ModeClient)
}

// IsSuperuser checks userID against the superusers list
func (c *Config) IsSuperuser(userID string) bool {
	for _, su := range c.Superusers {
		if su == userID {
			return true
		}
	}
	return false
}

func parseDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}
