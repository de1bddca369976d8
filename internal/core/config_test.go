package core

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig_ValidConfig_ReturnsConfigStruct(t *testing.T) {
	t.Setenv("TEST_VERIFY_KEY", "INITKEYabcdef")
	path := writeConfig(t, `
mirai:
  verify_key: "${TEST_VERIFY_KEY}"
  host: "10.0.0.2"
  port: 8088
  qq: [123456, 654321]
  api_timeout: "5s"
server:
  port: 9000
nickname: ["bot", "小助手"]
superusers: ["10001"]
metrics:
  enabled: true
logging:
  level: debug
  enable_stdout: false
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "INITKEYabcdef", cfg.Mirai.VerifyKey)
	assert.Equal(t, "10.0.0.2", cfg.Mirai.Host)
	assert.Equal(t, 8088, cfg.Mirai.Port)
	assert.Equal(t, []int64{123456, 654321}, cfg.Mirai.QQ)
	assert.Equal(t, []string{"bot", "小助手"}, cfg.Nickname)
	assert.Equal(t, "0.0.0.0:9000", cfg.ListenAddr())
	assert.Equal(t, "client", cfg.Mode())
	assert.True(t, cfg.IsSuperuser("10001"))
	assert.False(t, cfg.IsSuperuser("10002"))

	bc := cfg.BotConfig()
	assert.Equal(t, 5*time.Second, bc.APITimeout)
	assert.Equal(t, 3*time.Second, bc.ReconnectInterval)
	assert.Equal(t, 10*time.Second, bc.HandshakeTimeout)
	assert.Equal(t, []int64{123456, 654321}, bc.Accounts)
	assert.Equal(t, cfg.Nickname, bc.Nicknames)

	lc := cfg.LoggerConfig()
	assert.Equal(t, "debug", lc.Level)
	assert.False(t, lc.EnableStdout)
}

func TestLoadConfig_AppliesDefaults(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
mirai:
  verify_key: key
  qq: [1]
`))
	require.NoError(t, err)

	assert.Equal(t, DefaultMiraiHost, cfg.Mirai.Host)
	assert.Equal(t, DefaultMiraiPort, cfg.Mirai.Port)
	assert.Equal(t, DefaultAPITimeout, cfg.Mirai.APITimeout)
	assert.Equal(t, DefaultServerPort, cfg.Server.Port)
	assert.Equal(t, DefaultMetricsPath, cfg.Metrics.Path)
	assert.Equal(t, DefaultLogLevel, cfg.Logging.Level)
	assert.Equal(t, DefaultLogMaxBackups, cfg.Logging.MaxBackups)
	require.NotNil(t, cfg.Logging.EnableStdout)
	assert.True(t, *cfg.Logging.EnableStdout)
	assert.False(t, cfg.Metrics.Enabled)
}

func TestLoadConfig_ReverseModeNeedsNoAccounts(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
mirai:
  verify_key: key
  reverse: true
  access_token: tok
`))
	require.NoError(t, err)
	assert.Equal(t, "server", cfg.Mode())
	assert.True(t, cfg.BotConfig().Reverse)
	assert.Equal(t, "tok", cfg.BotConfig().AccessToken)
}

func TestLoadConfig_NegativeAPITimeoutDisablesDeadline(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
mirai:
  verify_key: key
  qq: [1]
  api_timeout: "-1s"
`))
	require.NoError(t, err)
	assert.Negative(t, cfg.BotConfig().APITimeout)
}

func TestLoadConfig_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "missing verify key",
			content: "mirai:\n  qq: [1]\n",
			wantErr: "verify_key is required",
		},
		{
			name:    "client mode without accounts",
			content: "mirai:\n  verify_key: k\n",
			wantErr: "at least one account",
		},
		{
			name:    "duplicate account",
			content: "mirai:\n  verify_key: k\n  qq: [1, 1]\n",
			wantErr: "twice",
		},
		{
			name:    "invalid account",
			content: "mirai:\n  verify_key: k\n  qq: [-3]\n",
			wantErr: "invalid account",
		},
		{
			name:    "bad mirai port",
			content: "mirai:\n  verify_key: k\n  qq: [1]\n  port: 70000\n",
			wantErr: "mirai.port",
		},
		{
			name:    "unparseable timeout",
			content: "mirai:\n  verify_key: k\n  qq: [1]\n  api_timeout: soon\n",
			wantErr: "api_timeout",
		},
		{
			name:    "non-positive reconnect interval",
			content: "mirai:\n  verify_key: k\n  qq: [1]\n  reconnect_interval: 0s\n",
			wantErr: "reconnect_interval must be positive",
		},
		{
			name:    "metrics path",
			content: "mirai:\n  verify_key: k\n  qq: [1]\nmetrics:\n  path: metrics\n",
			wantErr: "metrics.path",
		},
		{
			name:    "bad yaml",
			content: "mirai: [",
			wantErr: "failed to parse config",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadConfig_MissingEnvVar(t *testing.T) {
	path := writeConfig(t, "mirai:\n  verify_key: ${MIRAIBRIDGE_TEST_UNSET_VAR}\n")
	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MIRAIBRIDGE_TEST_UNSET_VAR")
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}
