package handler

import (
	"echonet-bridge/echonet_lite"
	"log/slog"
)

// DeviceListener はデバイス1台分のライフサイクル通知を受け取ります。
// 通知は Messenger のイベントループとは別の goroutine から順番に呼ばれるため、
// コールバックの中から Messenger の API を呼び出しても構いません。
type DeviceListener interface {
	// OnInitialised はプロパティマップの取得が終わり、最初の値が揃ったときに1度だけ呼ばれます。
	// channels はチャンネルIDから型名 (Switch, Number, String) への対応です。
	OnInitialised(identifier string, key echonet_lite.InstanceKey, channels map[string]string)
	OnUpdated(channelID string, state echonet_lite.State)
	// OnUnavailable はデバイスがプロパティの読み書きを拒否したときに呼ばれます。
	OnUnavailable(channelID string)
	// OnUnreachable は再送回数を使い切ったときに呼ばれます。err は ErrRetriesExhausted です。
	OnUnreachable(err error)
	OnRemoved()
}

// DiscoveryListener は探索で見つかったデバイスの通知を受け取ります。
type DiscoveryListener interface {
	OnDeviceFound(identifier string, key echonet_lite.InstanceKey)
}

// DiscoveryListenerFunc は関数を DiscoveryListener として使うためのアダプタです。
type DiscoveryListenerFunc func(identifier string, key echonet_lite.InstanceKey)

func (f DiscoveryListenerFunc) OnDeviceFound(identifier string, key echonet_lite.InstanceKey) {
	f(identifier, key)
}

// NopDeviceListener は何もしない DeviceListener です。
type NopDeviceListener struct{}

func (NopDeviceListener) OnInitialised(string, echonet_lite.InstanceKey, map[string]string) {}
func (NopDeviceListener) OnUpdated(string, echonet_lite.State)                              {}
func (NopDeviceListener) OnUnavailable(string)                                              {}
func (NopDeviceListener) OnUnreachable(error)                                               {}
func (NopDeviceListener) OnRemoved()                                                        {}

// MultiListener は通知を順番にすべての listener に配ります。
type MultiListener []DeviceListener

func (ml MultiListener) OnInitialised(identifier string, key echonet_lite.InstanceKey, channels map[string]string) {
	for _, l := range ml {
		l.OnInitialised(identifier, key, copyChannels(channels))
	}
}

func (ml MultiListener) OnUpdated(channelID string, state echonet_lite.State) {
	for _, l := range ml {
		l.OnUpdated(channelID, state)
	}
}

func (ml MultiListener) OnUnavailable(channelID string) {
	for _, l := range ml {
		l.OnUnavailable(channelID)
	}
}

func (ml MultiListener) OnUnreachable(err error) {
	for _, l := range ml {
		l.OnUnreachable(err)
	}
}

func (ml MultiListener) OnRemoved() {
	for _, l := range ml {
		l.OnRemoved()
	}
}

// LogListener は通知をログに書き出します。値の更新は debug レベルです。
type LogListener struct {
	Logger *slog.Logger
	Key    echonet_lite.InstanceKey
}

func (l LogListener) logger() *slog.Logger {
	if l.Logger == nil {
		return slog.Default()
	}
	return l.Logger
}

func (l LogListener) OnInitialised(identifier string, _ echonet_lite.InstanceKey, channels map[string]string) {
	l.logger().Info("デバイスの初期化が完了しました", "device", l.Key, "id", identifier, "channels", len(channels))
}

func (l LogListener) OnUpdated(channelID string, state echonet_lite.State) {
	l.logger().Debug("値を受信しました", "device", l.Key, "channel", channelID, "value", state)
}

func (l LogListener) OnUnavailable(channelID string) {
	l.logger().Warn("プロパティが利用できません", "device", l.Key, "channel", channelID)
}

func (l LogListener) OnUnreachable(err error) {
	l.logger().Warn("デバイスが応答しません", "device", l.Key, "err", err)
}

func (l LogListener) OnRemoved() {
	l.logger().Info("デバイスの登録が解除されました", "device", l.Key)
}

func copyChannels(channels map[string]string) map[string]string {
	c := make(map[string]string, len(channels))
	for k, v := range channels {
		c[k] = v
	}
	return c
}

// asyncDeviceListener は通知を dispatcher 経由で配送します。
type asyncDeviceListener struct {
	d *dispatcher
	l DeviceListener
}

func (a asyncDeviceListener) OnInitialised(identifier string, key echonet_lite.InstanceKey, channels map[string]string) {
	channels = copyChannels(channels)
	a.d.post(func() { a.l.OnInitialised(identifier, key, channels) })
}

func (a asyncDeviceListener) OnUpdated(channelID string, state echonet_lite.State) {
	a.d.postDroppable(func() { a.l.OnUpdated(channelID, state) })
}

func (a asyncDeviceListener) OnUnavailable(channelID string) {
	a.d.post(func() { a.l.OnUnavailable(channelID) })
}

func (a asyncDeviceListener) OnUnreachable(err error) {
	a.d.post(func() { a.l.OnUnreachable(err) })
}

func (a asyncDeviceListener) OnRemoved() {
	a.d.post(func() { a.l.OnRemoved() })
}
