package config

import (
	"echonet-bridge/echonet_lite"
	"net/netip"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestNewConfig_DefaultsAreValid(t *testing.T) {
	cfg := NewConfig()
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, echonet_lite.ECHONETLitePort, cfg.Echonet.Port)
	assert.Equal(t, "224.0.23.0", cfg.Echonet.MulticastIP)
	assert.Equal(t, 3, cfg.Echonet.MaxRetries)
	assert.Equal(t, time.Second, cfg.Echonet.RetryTimeout)
	assert.Equal(t, time.Minute, cfg.Echonet.NetworkMonitorInterval)
}

func TestLoadConfig_File(t *testing.T) {
	path := writeConfig(t, `
debug = true

[echonet]
listen_ip = "192.168.0.2"
poll_interval = "30s"
retry_timeout = "1500ms"
max_retries = 5

[[devices]]
host = "192.168.0.10"
group = 0x01
class = 0x30
instance = 1
poll_interval = "10s"

[[devices]]
host = "192.168.0.11"
port = 3611
group = 0x02
class = 0x90
instance = 2

[log]
filename = "test.log"

[mqtt]
enabled = true
topic_prefix = "home/echonet"
qos = 1
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.True(t, cfg.Debug)
	assert.Equal(t, "192.168.0.2", cfg.Echonet.ListenIP)
	assert.Equal(t, 30*time.Second, cfg.Echonet.PollInterval)
	assert.Equal(t, 1500*time.Millisecond, cfg.Echonet.RetryTimeout)
	assert.Equal(t, 5, cfg.Echonet.MaxRetries)
	// 指定しなかった値はデフォルトのまま
	assert.Equal(t, 250*time.Millisecond, cfg.Echonet.TickInterval)
	assert.Equal(t, "test.log", cfg.Log.Filename)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "home/echonet", cfg.MQTT.TopicPrefix)
	assert.Equal(t, byte(1), cfg.MQTT.QoS)

	require.Len(t, cfg.Devices, 2)
	key, err := cfg.Devices[0].Key()
	require.NoError(t, err)
	assert.Equal(t, "192.168.0.10:3610", key.Addr.String())
	assert.Equal(t, echonet_lite.HomeAirConditioner_ClassCode, key.ClassCode())
	assert.Equal(t, echonet_lite.EOJInstanceCode(1), key.Instance())
	assert.Equal(t, 10*time.Second, cfg.Devices[0].PollInterval)

	key, err = cfg.Devices[1].Key()
	require.NoError(t, err)
	assert.Equal(t, netip.MustParseAddrPort("192.168.0.11:3611"), key.Addr)
	assert.Equal(t, echonet_lite.EOJInstanceCode(2), key.Instance())
}

func TestLoadConfig_MissingDefaultFile(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, NewConfig(), cfg)
}

func TestLoadConfig_DefaultFileInWorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultConfigFile), []byte("debug = true\n"), 0o600))
	t.Chdir(dir)

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.True(t, cfg.Debug)
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "syntax", content: "debug = \n"},
		{name: "unknown key", content: "[echonet]\npoll = \"1s\"\n"},
		{name: "bad duration", content: "[echonet]\npoll_interval = \"soon\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		want   string
	}{
		{"listen ip", func(c *Config) { c.Echonet.ListenIP = "nowhere" }, "echonet.listen_ip"},
		{"multicast ip", func(c *Config) { c.Echonet.MulticastIP = "192.168.0.1" }, "echonet.multicast_ip"},
		{"port", func(c *Config) { c.Echonet.Port = 0 }, "echonet.port"},
		{"controller", func(c *Config) { c.Echonet.Controller = "05FF" }, "echonet.controller"},
		{"retry timeout", func(c *Config) { c.Echonet.RetryTimeout = 0 }, "echonet.retry_timeout"},
		{"max retries", func(c *Config) { c.Echonet.MaxRetries = -1 }, "echonet.max_retries"},
		{"burst", func(c *Config) { c.Echonet.Burst = 0 }, "burst"},
		{"device host", func(c *Config) {
			c.Devices = []DeviceEntry{{Host: "x", Group: 1, Class: 0x30, Instance: 1}}
		}, "devices[0]"},
		{"device instance", func(c *Config) {
			c.Devices = []DeviceEntry{{Host: "192.168.0.10", Group: 1, Class: 0x30}}
		}, "invalid instance"},
		{"device class", func(c *Config) {
			c.Devices = []DeviceEntry{{Host: "192.168.0.10", Group: 0x100, Class: 0x30, Instance: 1}}
		}, "invalid class"},
		{"duplicate device", func(c *Config) {
			d := DeviceEntry{Host: "192.168.0.10", Group: 1, Class: 0x30, Instance: 1}
			c.Devices = []DeviceEntry{d, d}
		}, "duplicate"},
		{"mqtt broker", func(c *Config) { c.MQTT.Enabled = true; c.MQTT.Broker = "" }, "mqtt.broker"},
		{"mqtt qos", func(c *Config) { c.MQTT.QoS = 3 }, "mqtt.qos"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestApplyCommandLineArgs(t *testing.T) {
	cfg := NewConfig()
	cfg.ApplyCommandLineArgs(CommandLineArgs{
		Debug:                true,
		DebugSpecified:       true,
		LogFilename:          "other.log",
		LogFilenameSpecified: true,
		MQTTBroker:           "tcp://broker:1883",
		MQTTBrokerSpecified:  true,
		Discover:             time.Minute,
		DiscoverSpecified:    true,
		// 指定されていない値は無視される
		WebSocketAddr: "0.0.0.0:9999",
	})

	assert.True(t, cfg.Debug)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "other.log", cfg.Log.Filename)
	assert.True(t, cfg.MQTT.Enabled)
	assert.Equal(t, "tcp://broker:1883", cfg.MQTT.Broker)
	assert.Equal(t, time.Minute, cfg.Echonet.DiscoveryDuration)
	assert.Equal(t, "localhost:8080", cfg.WebSocket.Addr)
	assert.False(t, cfg.Metrics.Enabled)
}

func TestApplyCommandLineArgs_ExplicitLogLevelWins(t *testing.T) {
	cfg := NewConfig()
	cfg.ApplyCommandLineArgs(CommandLineArgs{
		Debug:             true,
		DebugSpecified:    true,
		LogLevel:          "warn",
		LogLevelSpecified: true,
	})
	assert.Equal(t, "warn", cfg.Log.Level)
}
