package core

// Config represents the complete miraibridge configuration structure
type Config struct {
	Mirai      MiraiConfig   `yaml:"mirai"`
	Server     ServerConfig  `yaml:"server"`
	Nickname   []string      `yaml:"nickname"`
	Superusers []string      `yaml:"superusers"`
	Metrics    MetricsConfig `yaml:"metrics"`
	Logging    LoggingConfig `yaml:"logging"`
}

// MiraiConfig describes how to reach mirai-api-http
type MiraiConfig struct {
	VerifyKey string  `yaml:"verify_key"`
	Host      string  `yaml:"host"`
	Port      int     `yaml:"port"`
	QQ        []int64 `yaml:"qq"`      // accounts to dial in client mode
	Reverse   bool    `yaml:"reverse"` // accept mirai's reverse websocket instead of dialling

	AccessToken       string `yaml:"access_token"`       // required header for reverse sockets (optional)
	APITimeout        string `yaml:"api_timeout"`        // e.g. "30s"; negative disables the deadline
	ReconnectInterval string `yaml:"reconnect_interval"` // e.g. "3s"
	HandshakeTimeout  string `yaml:"handshake_timeout"`  // e.g. "10s"
}

// ServerConfig is the bridge's own HTTP listener. It serves the reverse
// websocket endpoint, /status, and /metrics.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"` // default: /metrics
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level        string `yaml:"level"`         // debug, info, warn, error
	File         string `yaml:"file"`          // Log file path
	MaxSize      int    `yaml:"max_size"`      // Single file max size in MB (default: 100)
	MaxBackups   int    `yaml:"max_backups"`   // Number of backups to keep (default: 5)
	MaxAge       int    `yaml:"max_age"`       // Maximum days to retain (default: 30)
	Compress     bool   `yaml:"compress"`      // Whether to compress old logs
	EnableStdout *bool  `yaml:"enable_stdout"` // Also output to stdout (default: true)
}

// AccountStatus is one row of the /status report
type AccountStatus struct {
	Account int64  `json:"account"`
	State   string `json:"state"`
}

// Status is the JSON document served at /status
type Status struct {
	Mode     string          `json:"mode"`
	Accounts []AccountStatus `json:"accounts"`
}
