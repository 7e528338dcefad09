package config

import (
	"echonet-bridge/echonet_lite"
	"errors"
	"fmt"
	"net/netip"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	// DefaultConfigFile はデフォルトの設定ファイル名
	DefaultConfigFile = "config.toml"
)

// Config はアプリケーション全体の設定を表す
type Config struct {
	Debug   bool          `toml:"debug"`
	Echonet EchonetConfig `toml:"echonet"`
	Devices []DeviceEntry `toml:"devices"`
	Log     struct {
		Filename   string `toml:"filename"`
		Level      string `toml:"level"` // debug, info, warn, error
		MaxSizeMB  int    `toml:"max_size_mb"`
		MaxBackups int    `toml:"max_backups"`
		MaxAgeDays int    `toml:"max_age_days"`
		Compress   bool   `toml:"compress"`
	} `toml:"log"`
	WebSocket struct {
		Enabled bool   `toml:"enabled"`
		Addr    string `toml:"addr"`
		Path    string `toml:"path"`
	} `toml:"websocket"`
	MQTT struct {
		Enabled     bool   `toml:"enabled"`
		Broker      string `toml:"broker"` // e.g. "tcp://localhost:1883"
		ClientID    string `toml:"client_id"`
		Username    string `toml:"username"`
		Password    string `toml:"password"`
		TopicPrefix string `toml:"topic_prefix"`
		QoS         byte   `toml:"qos"`
	} `toml:"mqtt"`
	Metrics struct {
		Enabled bool   `toml:"enabled"`
		Addr    string `toml:"addr"`
		Path    string `toml:"path"`
	} `toml:"metrics"`
	Console struct {
		Enabled bool `toml:"enabled"`
	} `toml:"console"`
}

// EchonetConfig は ECHONET Lite 通信の設定
type EchonetConfig struct {
	ListenIP           string        `toml:"listen_ip"` // 空のときはすべてのインターフェース
	Port               int           `toml:"port"`
	MulticastIP        string        `toml:"multicast_ip"`
	Controller         string        `toml:"controller"` // 送信元 EOJ (例: "05FF:1")
	TickInterval       time.Duration `toml:"tick_interval"`
	PollInterval       time.Duration `toml:"poll_interval"`
	RetryTimeout       time.Duration `toml:"retry_timeout"`
	MaxRetries         int           `toml:"max_retries"`
	DiscoveryInterval  time.Duration `toml:"discovery_interval"`
	DiscoveryDuration  time.Duration `toml:"discovery_duration"` // 起動時の探索の長さ
	OldRequestCapacity int           `toml:"old_request_capacity"`
	ListenerQueueSize  int           `toml:"listener_queue_size"` // 配送待ちの通知の上限
	FramesPerSecond    float64       `toml:"frames_per_second"`
	Burst              int           `toml:"burst"`

	// 0 ならインターフェースの変化を監視しない
	NetworkMonitorInterval time.Duration `toml:"network_monitor_interval"`
}

// DeviceEntry は起動時に登録するデバイス
type DeviceEntry struct {
	Host         string        `toml:"host"`
	Port         int           `toml:"port"`
	Group        int           `toml:"group"` // クラスグループコード (例: 0x01)
	Class        int           `toml:"class"` // クラスコード (例: 0x30)
	Instance     int           `toml:"instance"`
	PollInterval time.Duration `toml:"poll_interval"`
	RetryTimeout time.Duration `toml:"retry_timeout"`
}

// Key は設定から InstanceKey を作る
func (d DeviceEntry) Key() (echonet_lite.InstanceKey, error) {
	addr, err := netip.ParseAddr(d.Host)
	if err != nil {
		return echonet_lite.InstanceKey{}, fmt.Errorf("device host %q: %w", d.Host, err)
	}
	port := d.Port
	if port == 0 {
		port = echonet_lite.ECHONETLitePort
	}
	if port < 1 || port > 65535 {
		return echonet_lite.InstanceKey{}, fmt.Errorf("device %s: invalid port %d", d.Host, port)
	}
	if d.Group < 0 || d.Group > 0xff || d.Class < 0 || d.Class > 0xff {
		return echonet_lite.InstanceKey{}, fmt.Errorf("device %s: invalid class %#x/%#x", d.Host, d.Group, d.Class)
	}
	if d.Instance < 1 || d.Instance > 0x7f {
		return echonet_lite.InstanceKey{}, fmt.Errorf("device %s: invalid instance %d", d.Host, d.Instance)
	}
	classCode := echonet_lite.MakeEOJClassCode(echonet_lite.ClassGroupCodeType(d.Group), echonet_lite.ClassCodeType(d.Class))
	return echonet_lite.NewInstanceKey(netip.AddrPortFrom(addr, uint16(port)), classCode, echonet_lite.EOJInstanceCode(d.Instance)), nil
}

// NewConfig はデフォルト設定を持つConfigを作成する
func NewConfig() *Config {
	cfg := &Config{
		Debug: false,
	}
	cfg.Echonet.Port = echonet_lite.ECHONETLitePort
	cfg.Echonet.MulticastIP = echonet_lite.ECHONETLiteMulticast.Addr().String()
	cfg.Echonet.Controller = "05FF:1"
	cfg.Echonet.TickInterval = 250 * time.Millisecond
	cfg.Echonet.PollInterval = time.Minute
	cfg.Echonet.RetryTimeout = time.Second
	cfg.Echonet.MaxRetries = 3
	cfg.Echonet.DiscoveryInterval = 10 * time.Second
	cfg.Echonet.DiscoveryDuration = 30 * time.Second
	cfg.Echonet.OldRequestCapacity = 16
	cfg.Echonet.ListenerQueueSize = 1024
	cfg.Echonet.FramesPerSecond = 20
	cfg.Echonet.Burst = 5
	cfg.Echonet.NetworkMonitorInterval = time.Minute
	cfg.Log.Filename = "echonet-bridge.log"
	cfg.Log.Level = "info"
	cfg.Log.MaxSizeMB = 10
	cfg.Log.MaxBackups = 3
	cfg.Log.MaxAgeDays = 28
	cfg.WebSocket.Addr = "localhost:8080"
	cfg.WebSocket.Path = "/ws"
	cfg.MQTT.Broker = "tcp://localhost:1883"
	cfg.MQTT.ClientID = "echonet-bridge"
	cfg.MQTT.TopicPrefix = "echonet"
	cfg.Metrics.Addr = "localhost:9100"
	cfg.Metrics.Path = "/metrics"
	return cfg
}

// LoadConfig は設定を読み込む
// 以下の優先順位でロードする:
// 1. 指定されたパスの設定ファイル（指定がある場合）
// 2. カレントディレクトリのデフォルト設定ファイル（存在する場合）
// 3. デフォルト設定
func LoadConfig(configPath string) (*Config, error) {
	config := NewConfig()

	// 設定ファイルパスの解決
	filePath := configPath
	if filePath == "" {
		// 指定がなければデフォルトファイルを探す
		if _, err := os.Stat(DefaultConfigFile); err == nil {
			filePath = DefaultConfigFile
		} else {
			// デフォルトファイルもなければ、デフォルト設定をそのまま返す
			return config, nil
		}
	}

	// 設定ファイルが指定または存在する場合は読み込む
	md, err := toml.DecodeFile(filePath, config)
	if err != nil {
		return nil, err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("%s: unknown keys %v", filePath, undecoded)
	}

	return config, nil
}

// Validate は値の範囲と組み合わせを検査する
func (c *Config) Validate() error {
	var errs []error
	e := c.Echonet
	if e.ListenIP != "" {
		if _, err := netip.ParseAddr(e.ListenIP); err != nil {
			errs = append(errs, fmt.Errorf("echonet.listen_ip: %w", err))
		}
	}
	if addr, err := netip.ParseAddr(e.MulticastIP); err != nil || !addr.IsMulticast() {
		errs = append(errs, fmt.Errorf("echonet.multicast_ip: %q is not a multicast address", e.MulticastIP))
	}
	if e.Port < 1 || e.Port > 65535 {
		errs = append(errs, fmt.Errorf("echonet.port: %d", e.Port))
	}
	if _, err := echonet_lite.ParseEOJString(e.Controller); err != nil {
		errs = append(errs, fmt.Errorf("echonet.controller: %w", err))
	}
	for name, d := range map[string]time.Duration{
		"tick_interval":      e.TickInterval,
		"poll_interval":      e.PollInterval,
		"retry_timeout":      e.RetryTimeout,
		"discovery_interval": e.DiscoveryInterval,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("echonet.%s must be positive", name))
		}
	}
	if e.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("echonet.max_retries: %d", e.MaxRetries))
	}
	if e.FramesPerSecond < 0 || (e.FramesPerSecond > 0 && e.Burst < 1) {
		errs = append(errs, fmt.Errorf("echonet.frames_per_second/burst: %v/%d", e.FramesPerSecond, e.Burst))
	}

	seen := make(map[echonet_lite.InstanceKey]bool)
	for i, d := range c.Devices {
		key, err := d.Key()
		if err != nil {
			errs = append(errs, fmt.Errorf("devices[%d]: %w", i, err))
			continue
		}
		if seen[key] {
			errs = append(errs, fmt.Errorf("devices[%d]: duplicate %v", i, key))
		}
		seen[key] = true
	}

	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		errs = append(errs, errors.New("mqtt.broker is required"))
	}
	if c.MQTT.QoS > 2 {
		errs = append(errs, fmt.Errorf("mqtt.qos: %d", c.MQTT.QoS))
	}
	return errors.Join(errs...)
}

// ApplyCommandLineArgs はコマンドライン引数で指定された値を設定に適用する
func (c *Config) ApplyCommandLineArgs(args CommandLineArgs) {
	// コマンドライン引数で指定された値で上書き
	if args.DebugSpecified {
		c.Debug = args.Debug
	}
	if args.LogFilenameSpecified {
		c.Log.Filename = args.LogFilename
	}
	if args.LogLevelSpecified {
		c.Log.Level = args.LogLevel
	}
	if args.ListenIPSpecified {
		c.Echonet.ListenIP = args.ListenIP
	}
	if args.ConsoleSpecified {
		c.Console.Enabled = args.Console
	}
	// websocket
	if args.WebSocketEnabledSpecified {
		c.WebSocket.Enabled = args.WebSocketEnabled
	}
	if args.WebSocketAddrSpecified {
		c.WebSocket.Addr = args.WebSocketAddr
	}
	// mqtt
	if args.MQTTBrokerSpecified {
		c.MQTT.Enabled = true
		c.MQTT.Broker = args.MQTTBroker
	}
	// metrics
	if args.MetricsAddrSpecified {
		c.Metrics.Enabled = true
		c.Metrics.Addr = args.MetricsAddr
	}
	if args.DiscoverSpecified {
		c.Echonet.DiscoveryDuration = args.Discover
	}
	if c.Debug && !args.LogLevelSpecified {
		c.Log.Level = "debug"
	}
}

// CommandLineArgs はコマンドライン引数からの値を保持する
type CommandLineArgs struct {
	// 設定ファイル (メタ設定)
	ConfigFile      string
	ConfigSpecified bool

	// 一般設定
	Debug          bool
	DebugSpecified bool

	// ログ設定
	LogFilename          string
	LogFilenameSpecified bool
	LogLevel             string
	LogLevelSpecified    bool

	// ECHONET Lite
	ListenIP          string
	ListenIPSpecified bool
	Discover          time.Duration
	DiscoverSpecified bool

	// コンソール
	Console          bool
	ConsoleSpecified bool

	// WebSocketサーバー設定
	WebSocketEnabled          bool
	WebSocketEnabledSpecified bool
	WebSocketAddr             string
	WebSocketAddrSpecified    bool

	// MQTT
	MQTTBroker          string
	MQTTBrokerSpecified bool

	// メトリクス
	MetricsAddr          string
	MetricsAddrSpecified bool
}
