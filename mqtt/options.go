package mqtt

import (
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	defaultConnectTimeout    = 10 * time.Second
	defaultPublishTimeout    = 5 * time.Second
	defaultDisconnectQuiesce = 1000 // ミリ秒
	defaultKeepAlive         = 60 * time.Second
	defaultReconnectInterval = 2 * time.Second
	defaultMaxReconnect      = time.Minute
	maxQoS                   = 2
)

// status トピックに retained で送る値
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// デバイスだけが取る状態
const (
	StatusUnreachable = "unreachable"
	StatusRemoved     = "removed"
)

// Config はブローカーへの接続設定
type Config struct {
	Broker      string // 例: "tcp://localhost:1883"
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
	QoS         byte
}

// buildClientOptions は自動再接続と LWT を設定した paho のオプションを作る
func buildClientOptions(cfg Config) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetCleanSession(true)

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(defaultReconnectInterval)
	opts.SetMaxReconnectInterval(defaultMaxReconnect)
	opts.SetConnectTimeout(defaultConnectTimeout)
	opts.SetKeepAlive(defaultKeepAlive)

	// 異常切断時はブローカーが offline を残す
	opts.SetWill(Topics{Prefix: cfg.TopicPrefix}.BridgeStatus(), StatusOffline, 1, true)
	return opts
}
