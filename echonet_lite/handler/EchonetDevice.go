package handler

import (
	"echonet-bridge/echonet_lite"
	"fmt"
	"time"

	"golang.org/x/exp/slices"
)

// EchonetDevice は機器オブジェクト1つ分の状態です。
// 最初に Get/Set プロパティマップを取得し、カタログに載っている読み出し可能なプロパティを
// ポーリング対象にします。最初の値が揃った時点で listener に OnInitialised を通知します。
type EchonetDevice struct {
	baseObject
	listener DeviceListener

	readable    echonet_lite.PropertyMap // Get プロパティマップのうちチャンネルを持つもの
	settable    echonet_lite.PropertyMap // nil のときはすべて書き込み可とみなす
	awaiting    echonet_lite.PropertyMap // 初期化前に最初の値を待っているプロパティ
	initialised bool
	states      map[string]echonet_lite.State

	pendingSets map[echonet_lite.EPCType][]byte
	sentSets    map[echonet_lite.EPCType][]byte
}

func newEchonetDevice(key echonet_lite.InstanceKey, cfg objectConfig, listener DeviceListener) *EchonetDevice {
	d := &EchonetDevice{
		baseObject: newBaseObject(key, cfg,
			echonet_lite.EPCSetPropertyMap, echonet_lite.EPCGetPropertyMap),
		listener:    listener,
		states:      make(map[string]echonet_lite.State),
		pendingSets: make(map[echonet_lite.EPCType][]byte),
	}
	d.onUnreachable = func(err error) { d.listener.OnUnreachable(err) }
	return d
}

// Initialised はプロパティマップの取得と最初の値の取得が終わっているかどうかを返します。
func (d *EchonetDevice) Initialised() bool {
	return d.initialised
}

// Channels は公開しているチャンネルと型名の対応を返します。初期化前は空です。
func (d *EchonetDevice) Channels() map[string]string {
	channels := make(map[string]string, len(d.readable))
	if !d.initialised {
		return channels
	}
	for _, code := range d.readable.EPCs() {
		epc := d.catalog.Lookup(d.key.ClassCode(), code)
		channels[epc.ChannelID] = epc.ItemType()
	}
	return channels
}

func (d *EchonetDevice) buildPollMessage(b *echonet_lite.MessageBuilder, tids func() echonet_lite.TIDType, now time.Time, controller echonet_lite.InstanceKey) bool {
	return d.pollGets(b, tids, now, controller)
}

// buildUpdateMessage はキューに溜まった書き込みを1つの SetC フレームにまとめます。
// タイムアウトした書き込みは再送回数が残っていればキューに戻します。
func (d *EchonetDevice) buildUpdateMessage(b *echonet_lite.MessageBuilder, tids func() echonet_lite.TIDType, now time.Time, controller echonet_lite.InstanceKey) bool {
	busy, retry, exhausted := d.checkInflight(d.setInflight, now)
	if busy {
		return false
	}
	if exhausted {
		d.logger.Warn("書き込みを破棄しました", "epcs", mapKeys(d.sentSets))
		d.sentSets = nil
	}
	if retry {
		// 再送待ちの間に新しい値が書き込まれていればそちらを優先する
		for epc, edt := range d.sentSets {
			if _, ok := d.pendingSets[epc]; !ok {
				d.pendingSets[epc] = edt
			}
		}
		d.sentSets = nil
	}
	if len(d.pendingSets) == 0 {
		return false
	}

	tid := tids()
	b.Start(tid, controller, d.key, echonet_lite.ESVSetC)
	d.sentSets = make(map[echonet_lite.EPCType][]byte, len(d.pendingSets))
	for _, epc := range mapKeys(d.pendingSets) {
		edt := d.pendingSets[epc]
		if err := b.AppendEPCUpdate(epc, edt); err != nil {
			d.logger.Warn("SetC に含められないプロパティがあります", "epc", epc, "err", err)
			break
		}
		d.sentSets[epc] = edt
		delete(d.pendingSets, epc)
	}
	d.setInflight.RequestSent(tid, now)
	return true
}

func (d *EchonetDevice) applyHeader(esv echonet_lite.ESVType, tid echonet_lite.TIDType, now time.Time) {
	if d.matchHeader(esv, tid, now) && (esv == echonet_lite.ESVSet_Res || esv == echonet_lite.ESVSetC_SNA) {
		d.sentSets = nil
	}
}

func (d *EchonetDevice) applyProperty(source echonet_lite.InstanceKey, esv echonet_lite.ESVType, code echonet_lite.EPCType, edt []byte) {
	switch esv {
	case echonet_lite.ESVGet_Res, echonet_lite.ESVINF, echonet_lite.ESVINFC:
		d.applyValue(code, edt)
	case echonet_lite.ESVGet_SNA:
		if len(edt) == 0 {
			d.applyRefused(code)
		} else {
			d.applyValue(code, edt)
		}
	case echonet_lite.ESVSet_Res:
		d.requestRefresh(code)
	case echonet_lite.ESVSetC_SNA:
		// 受理されたプロパティは PDC=0、拒否されたプロパティは要求した EDT がそのまま返る
		if len(edt) > 0 {
			d.logger.Warn("書き込みが拒否されました", "epc", code, "edt", edt)
			if epc := d.catalog.Lookup(d.key.ClassCode(), code); epc.Known() {
				d.listener.OnUnavailable(epc.ChannelID)
			}
		}
		d.requestRefresh(code)
	default:
		d.logger.Debug("未対応のESVを無視します", "esv", esv, "epc", code)
	}
}

func (d *EchonetDevice) applyValue(code echonet_lite.EPCType, edt []byte) {
	switch code {
	case echonet_lite.EPCGetPropertyMap:
		m, err := echonet_lite.DecodePropertyMap(edt)
		if err != nil {
			d.logger.Warn("Getプロパティマップを解析できません", "err", err)
			return
		}
		d.setReadable(d.knownIn(m))
		return
	case echonet_lite.EPCSetPropertyMap:
		m, err := echonet_lite.DecodePropertyMap(edt)
		if err != nil {
			d.logger.Warn("Setプロパティマップを解析できません", "err", err)
			m = nil
		}
		d.settable = m
		d.pendingGets.Delete(code)
		return
	}

	epc := d.catalog.Lookup(d.key.ClassCode(), code)
	if !epc.Known() {
		d.logger.Debug("未知のプロパティを無視します", "epc", code, "edt", edt)
		return
	}
	state := epc.Decode(edt)
	d.states[epc.ChannelID] = state
	if d.initialised {
		d.listener.OnUpdated(epc.ChannelID, state)
		return
	}
	d.awaiting.Delete(code)
	d.maybeInitialise()
}

// applyRefused は Get_SNA で値が返らなかったプロパティを処理します。
// 拒否されたプロパティはポーリング対象から外し、refresh で再び要求されるまで取得しません。
func (d *EchonetDevice) applyRefused(code echonet_lite.EPCType) {
	switch code {
	case echonet_lite.EPCGetPropertyMap:
		d.logger.Info("Getプロパティマップが取得できないため、カタログのプロパティを使用します")
		codes := make([]echonet_lite.EPCType, 0)
		for _, epc := range d.catalog.Properties(d.key.ClassCode()) {
			codes = append(codes, epc.Code)
		}
		d.setReadable(echonet_lite.NewPropertyMap(codes...))
		return
	case echonet_lite.EPCSetPropertyMap:
		d.settable = nil
		d.pendingGets.Delete(code)
		return
	}

	d.pendingGets.Delete(code)
	epc := d.catalog.Lookup(d.key.ClassCode(), code)
	if !epc.Known() {
		return
	}
	d.listener.OnUnavailable(epc.ChannelID)
	if d.awaiting != nil && d.awaiting.Has(code) {
		d.awaiting.Delete(code)
		d.maybeInitialise()
	}
}

// knownIn は m のうちカタログにチャンネルがあるプロパティを返します。
func (d *EchonetDevice) knownIn(m echonet_lite.PropertyMap) echonet_lite.PropertyMap {
	known := echonet_lite.NewPropertyMap()
	for code := range m {
		if d.catalog.Lookup(d.key.ClassCode(), code).Known() {
			known.Set(code)
		}
	}
	return known
}

func (d *EchonetDevice) setReadable(readable echonet_lite.PropertyMap) {
	d.readable = readable
	pending := echonet_lite.NewPropertyMap(readable.EPCs()...)
	if d.pendingGets.Has(echonet_lite.EPCSetPropertyMap) {
		pending.Set(echonet_lite.EPCSetPropertyMap)
	}
	d.pendingGets = pending
	if !d.initialised {
		d.awaiting = echonet_lite.NewPropertyMap(readable.EPCs()...)
		d.refreshDue = true
		d.maybeInitialise()
	}
	d.logger.Debug("ポーリング対象を更新しました", "epcs", readable)
}

func (d *EchonetDevice) maybeInitialise() {
	if d.initialised || d.awaiting == nil || len(d.awaiting) > 0 {
		return
	}
	d.initialised = true
	d.awaiting = nil
	d.listener.OnInitialised(d.key.Identifier(), d.key, d.Channels())
	for _, code := range d.readable.EPCs() {
		channelID := d.catalog.Lookup(d.key.ClassCode(), code).ChannelID
		if state, ok := d.states[channelID]; ok {
			d.listener.OnUpdated(channelID, state)
		}
	}
	d.logger.Info("デバイスを初期化しました", "channels", len(d.readable))
}

func (d *EchonetDevice) requestRefresh(code echonet_lite.EPCType) {
	if d.initialised && !d.readable.Has(code) {
		return
	}
	d.pendingGets.Set(code)
	d.refreshDue = true
}

// refresh はチャンネルの値を次のティックで取得し直します。channelID が空のときはすべてのチャンネルが対象です。
func (d *EchonetDevice) refresh(channelID string) error {
	if channelID == "" {
		if d.readable != nil {
			for code := range d.readable {
				d.pendingGets.Set(code)
			}
		}
		d.refreshDue = true
		return nil
	}
	epc, ok := d.catalog.LookupChannel(d.key.ClassCode(), channelID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownChannel, channelID)
	}
	d.pendingGets.Set(epc.Code)
	d.refreshDue = true
	return nil
}

// update は値をエンコードして書き込みキューに入れます。エンコードできない値はエラーです。
func (d *EchonetDevice) update(channelID string, state echonet_lite.State) error {
	epc, ok := d.catalog.LookupChannel(d.key.ClassCode(), channelID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownChannel, channelID)
	}
	if d.settable != nil && !d.settable.Has(epc.Code) {
		return fmt.Errorf("%w: %s is not in the set property map", echonet_lite.ErrReadOnlyProperty, epc)
	}
	edt, err := epc.Encode(state)
	if err != nil {
		return err
	}
	d.pendingSets[epc.Code] = edt
	return nil
}

// adopt は探索で作成したデバイスを新しい設定と listener で引き継ぎます。
// 初期化済みであれば新しい listener に現在の状態を通知し直します。
func (d *EchonetDevice) adopt(pollInterval, retryTimeout time.Duration, listener DeviceListener) {
	d.setTimeouts(pollInterval, retryTimeout)
	d.listener = listener
	if !d.initialised {
		return
	}
	listener.OnInitialised(d.key.Identifier(), d.key, d.Channels())
	for _, code := range d.readable.EPCs() {
		channelID := d.catalog.Lookup(d.key.ClassCode(), code).ChannelID
		if state, ok := d.states[channelID]; ok {
			listener.OnUpdated(channelID, state)
		}
	}
}

func (d *EchonetDevice) removed() {
	d.pendingGets = echonet_lite.NewPropertyMap()
	d.pendingSets = make(map[echonet_lite.EPCType][]byte)
	d.sentSets = nil
	d.listener.OnRemoved()
}

// Snapshot は現在の状態のコピーを返します。
func (d *EchonetDevice) Snapshot() DeviceInfo {
	states := make(map[string]echonet_lite.State, len(d.states))
	for k, v := range d.states {
		states[k] = v
	}
	return DeviceInfo{
		Key:         d.key,
		Identifier:  d.key.Identifier(),
		Class:       d.catalog.Classes().Lookup(d.key.ClassCode()),
		Initialised: d.initialised,
		Unreachable: d.unreachable,
		Channels:    d.Channels(),
		States:      states,
	}
}

// DeviceInfo は Messenger.Devices が返すデバイスの状態です。
type DeviceInfo struct {
	Key         echonet_lite.InstanceKey
	Identifier  string
	Class       *echonet_lite.EchonetClass
	Initialised bool
	Unreachable bool
	Discovered  bool // 探索で見つかり、まだ登録されていない
	Channels    map[string]string
	States      map[string]echonet_lite.State
}

func mapKeys(m map[echonet_lite.EPCType][]byte) []echonet_lite.EPCType {
	keys := make([]echonet_lite.EPCType, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
