package handler

import (
	"echonet-bridge/echonet_lite"
	"time"
)

// discovery は実行中の探索の状態です。メソッドは nil でも呼べます。
type discovery struct {
	node     *EchonetProfileNode
	listener DiscoveryListener
	seen     map[echonet_lite.InstanceKey]struct{}
	devices  map[echonet_lite.InstanceKey]*EchonetDevice // 探索のために作成し、まだ登録されていないデバイス
	timer    *time.Timer
}

// adopt は探索で作成したデバイスを探索の管理から外して返します。
func (d *discovery) adopt(key echonet_lite.InstanceKey) (*EchonetDevice, bool) {
	if d == nil {
		return nil, false
	}
	dev, ok := d.devices[key]
	if ok {
		delete(d.devices, key)
	}
	return dev, ok
}

func (d *discovery) forget(key echonet_lite.InstanceKey) {
	if d != nil {
		delete(d.devices, key)
	}
}

func (d *discovery) owns(key echonet_lite.InstanceKey) bool {
	if d == nil {
		return false
	}
	_, ok := d.devices[key]
	return ok
}

// foundListener は探索用デバイスの初期化完了を OnDeviceFound に変換します。
type foundListener struct {
	NopDeviceListener
	l DiscoveryListener
}

func (f foundListener) OnInitialised(identifier string, key echonet_lite.InstanceKey, _ map[string]string) {
	f.l.OnDeviceFound(identifier, key)
}

// StartDiscovery はマルチキャストでインスタンスリストを要求し、見つかったデバイスを listener に通知します。
// duration が経過するか StopDiscovery を呼ぶと探索を終了します。duration が 0 以下なら自動では終了しません。
// 実行中の探索があれば終了してからやり直します。
func (m *Messenger) StartDiscovery(listener DiscoveryListener, duration time.Duration) error {
	return m.do(func() error {
		m.startDiscovery(listener, duration)
		return nil
	})
}

// StopDiscovery は探索を終了し、登録されなかったデバイスを破棄します。
func (m *Messenger) StopDiscovery() error {
	return m.do(func() error {
		if m.discovery != nil {
			m.stopDiscovery()
		}
		return nil
	})
}

func (m *Messenger) startDiscovery(listener DiscoveryListener, duration time.Duration) {
	if m.discovery != nil {
		m.stopDiscovery()
	}
	key := echonet_lite.InstanceKey{
		Addr: m.opts.MulticastAddr,
		EOJ:  echonet_lite.MakeEOJ(echonet_lite.NodeProfile_ClassCode, 1),
	}
	d := &discovery{
		listener: listener,
		seen:     make(map[echonet_lite.InstanceKey]struct{}),
		devices:  make(map[echonet_lite.InstanceKey]*EchonetDevice),
	}
	cfg := m.objectConfig(DeviceConfig{})
	d.node = newEchonetProfileNode(key, cfg, m.opts.DiscoveryInterval, m.instanceFound)
	m.devices[key] = d.node
	m.discovery = d

	if duration > 0 {
		d.timer = time.AfterFunc(duration, func() {
			_ = m.do(func() error {
				if m.discovery == d {
					m.stopDiscovery()
				}
				return nil
			})
		})
	}
	m.metrics.setDevices(len(m.devices))
	m.logger.Info("探索を開始しました", "to", key.Addr, "duration", duration)
}

func (m *Messenger) stopDiscovery() {
	d := m.discovery
	m.discovery = nil
	if d.timer != nil {
		d.timer.Stop()
	}
	delete(m.devices, d.node.Key())
	d.node.removed()
	for key, dev := range d.devices {
		delete(m.devices, key)
		dev.removed()
	}
	m.metrics.setDevices(len(m.devices))
	m.logger.Info("探索を終了しました", "found", len(d.seen))
}

// instanceFound はインスタンスリストに載っていたオブジェクトを処理します。
// 登録済みのデバイスはそのまま通知し、それ以外は初期化が終わるまで探索用デバイスとしてポーリングします。
func (m *Messenger) instanceFound(key echonet_lite.InstanceKey) {
	d := m.discovery
	if d == nil || key.ClassCode() == echonet_lite.NodeProfile_ClassCode {
		return
	}
	if _, ok := d.seen[key]; ok {
		return
	}
	d.seen[key] = struct{}{}
	m.logger.Info("インスタンスを発見しました", "device", key, "class", m.catalog.Classes().Lookup(key.ClassCode()))

	if _, ok := m.devices[key]; ok {
		listener := d.listener
		m.dispatcher.post(func() { listener.OnDeviceFound(key.Identifier(), key) })
		return
	}
	listener := asyncDeviceListener{d: m.dispatcher, l: foundListener{l: d.listener}}
	dev := newEchonetDevice(key, m.objectConfig(DeviceConfig{}), listener)
	d.devices[key] = dev
	m.devices[key] = dev
	m.metrics.setDevices(len(m.devices))
}

// Discovering は探索中かどうかを返します。
func (m *Messenger) Discovering() bool {
	var active bool
	if err := m.do(func() error {
		active = m.discovery != nil
		return nil
	}); err != nil {
		return false
	}
	return active
}
