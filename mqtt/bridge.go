package mqtt

import (
	"echonet-bridge/echonet_lite"
	"echonet-bridge/echonet_lite/handler"
	"fmt"
	"log/slog"
)

// Controller は書き込み要求を渡す先です。handler.Messenger が満たします。
type Controller interface {
	UpdateDevice(key echonet_lite.InstanceKey, channelID string, state echonet_lite.State) error
	Devices() ([]handler.DeviceInfo, error)
}

// Bridge はデバイスの値を retained メッセージとして公開し、
// <prefix>/<device>/<channel>/set への書き込みを UpdateDevice に変換します。
type Bridge struct {
	conn   Conn
	ctrl   Controller
	topics Topics
	qos    byte
	logger *slog.Logger
}

func NewBridge(conn Conn, ctrl Controller, prefix string, qos byte, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{
		conn:   conn,
		ctrl:   ctrl,
		topics: Topics{Prefix: prefix},
		qos:    qos,
		logger: logger.With("component", "mqtt"),
	}
}

// Start は書き込み要求の購読を始めます。
func (b *Bridge) Start() error {
	return b.conn.Subscribe(b.topics.SetFilter(), b.qos, b.handleSet)
}

func (b *Bridge) handleSet(topic string, payload []byte) error {
	device, channel, ok := b.topics.ParseSet(topic)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSetCommand, topic)
	}
	infos, err := b.ctrl.Devices()
	if err != nil {
		return err
	}
	for _, info := range infos {
		if info.Identifier != device {
			continue
		}
		itemType, ok := info.Channels[channel]
		if !ok {
			return fmt.Errorf("%w: %s/%s", handler.ErrUnknownChannel, device, channel)
		}
		state, err := echonet_lite.ParseState(itemType, string(payload))
		if err != nil {
			return err
		}
		b.logger.Debug("MQTTから書き込み要求を受信しました", "device", info.Key, "channel", channel, "value", state)
		return b.ctrl.UpdateDevice(info.Key, channel, state)
	}
	return fmt.Errorf("%w: %s", handler.ErrUnknownDevice, device)
}

func (b *Bridge) publish(topic, payload string) {
	if err := b.conn.Publish(topic, []byte(payload), b.qos, true); err != nil {
		b.logger.Warn("MQTTへの送信に失敗しました", "topic", topic, "err", err)
	}
}

// ListenerFor は key のデバイスの通知を公開する DeviceListener を返します。
func (b *Bridge) ListenerFor(key echonet_lite.InstanceKey) handler.DeviceListener {
	return &deviceTopics{bridge: b, id: key.Identifier()}
}

// deviceTopics の通知は1つの goroutine から順に呼ばれる
type deviceTopics struct {
	bridge      *Bridge
	id          string
	unreachable bool
}

func (d *deviceTopics) OnInitialised(identifier string, _ echonet_lite.InstanceKey, _ map[string]string) {
	d.id = identifier
	d.unreachable = false
	d.bridge.publish(d.bridge.topics.DeviceStatus(d.id), StatusOnline)
}

func (d *deviceTopics) OnUpdated(channelID string, state echonet_lite.State) {
	if d.unreachable {
		d.unreachable = false
		d.bridge.publish(d.bridge.topics.DeviceStatus(d.id), StatusOnline)
	}
	d.bridge.publish(d.bridge.topics.State(d.id, channelID), state.String())
}

func (d *deviceTopics) OnUnavailable(channelID string) {
	d.bridge.publish(d.bridge.topics.State(d.id, channelID), echonet_lite.Undef.String())
}

func (d *deviceTopics) OnUnreachable(error) {
	d.unreachable = true
	d.bridge.publish(d.bridge.topics.DeviceStatus(d.id), StatusUnreachable)
}

func (d *deviceTopics) OnRemoved() {
	d.bridge.publish(d.bridge.topics.DeviceStatus(d.id), StatusRemoved)
}
