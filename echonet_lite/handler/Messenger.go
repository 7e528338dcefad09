package handler

import (
	"context"
	"echonet-bridge/echonet_lite"
	"echonet-bridge/echonet_lite/utils"
	"errors"
	"log/slog"
	"net"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/exp/slices"
	"golang.org/x/time/rate"
)

// PacketConn は Messenger が使うデータグラムの送受信です。
// network.UDPConnection が実装します。
type PacketConn interface {
	Receive(ctx context.Context) ([]byte, netip.AddrPort, error)
	SendTo(dst netip.AddrPort, data []byte) (int, error)
	LocalAddr() netip.AddrPort
}

// Options は Messenger の設定です。ゼロ値の項目には既定値が使われます。
type Options struct {
	Controller          echonet_lite.EOJ // 送信元オブジェクト。既定は 05FF01
	Catalog             *echonet_lite.Catalog
	TickInterval        time.Duration // 既定 250ms
	DefaultPollInterval time.Duration // DeviceConfig.PollInterval が 0 のとき。既定 60s
	DefaultRetryTimeout time.Duration // 既定 1s
	DiscoveryInterval   time.Duration // インスタンスリストを要求する間隔。既定 10s
	MaxRetries          int           // 既定 3。負の値は再送しない
	OldRequestCapacity  int           // 既定 DefaultOldRequestCapacity
	ListenerQueueSize   int           // 既定 DefaultListenerQueueSize
	FramesPerSecond     float64       // 0 のときは送信間隔を制限しない
	Burst               int
	MulticastAddr       netip.AddrPort // 既定 224.0.23.0:3610
	Logger              *slog.Logger
	Metrics             *Metrics
	Now                 func() time.Time
}

func (o *Options) setDefaults() {
	if o.Controller == 0 {
		o.Controller = echonet_lite.MakeEOJ(echonet_lite.Controller_ClassCode, 1)
	}
	if o.Catalog == nil {
		o.Catalog = echonet_lite.DefaultCatalog()
	}
	if o.TickInterval <= 0 {
		o.TickInterval = 250 * time.Millisecond
	}
	if o.DefaultPollInterval <= 0 {
		o.DefaultPollInterval = 60 * time.Second
	}
	if o.DefaultRetryTimeout <= 0 {
		o.DefaultRetryTimeout = time.Second
	}
	if o.DiscoveryInterval <= 0 {
		o.DiscoveryInterval = 10 * time.Second
	}
	if o.MaxRetries == 0 {
		o.MaxRetries = 3
	} else if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.OldRequestCapacity <= 0 {
		o.OldRequestCapacity = DefaultOldRequestCapacity
	}
	if !o.MulticastAddr.IsValid() {
		o.MulticastAddr = echonet_lite.ECHONETLiteMulticast
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// DeviceConfig はデバイスごとのポーリング設定です。0 の項目は Options の既定値になります。
type DeviceConfig struct {
	PollInterval time.Duration
	RetryTimeout time.Duration
}

type command struct {
	fn    func() error
	reply chan error
}

type packet struct {
	data []byte
	addr netip.AddrPort
}

// Messenger はソケット、デバイスの登録、TID の払い出し、定期的なティックを受け持ちます。
// デバイスの状態は Run のイベントループだけが触り、公開メソッドはループに処理を渡して結果を待ちます。
type Messenger struct {
	conn       PacketConn
	opts       Options
	logger     *slog.Logger
	metrics    *Metrics
	catalog    *echonet_lite.Catalog
	controller echonet_lite.InstanceKey
	builder    *echonet_lite.MessageBuilder
	limiter    *rate.Limiter
	dispatcher *dispatcher

	// 以下はイベントループからのみ触る
	tid       echonet_lite.TIDType
	devices   map[echonet_lite.InstanceKey]EchonetObject
	discovery *discovery
	tickStart int

	cmds      chan command
	quit      chan struct{}
	done      chan struct{}
	started   atomic.Bool
	closeOnce sync.Once
	doneOnce  sync.Once
}

func NewMessenger(conn PacketConn, opts Options) *Messenger {
	opts.setDefaults()
	m := &Messenger{
		conn:       conn,
		opts:       opts,
		logger:     opts.Logger,
		metrics:    opts.Metrics,
		catalog:    opts.Catalog,
		controller: echonet_lite.InstanceKey{Addr: conn.LocalAddr(), EOJ: opts.Controller},
		builder:    echonet_lite.NewMessageBuilder(),
		dispatcher: newDispatcher(opts.Logger, opts.ListenerQueueSize, opts.Metrics),
		devices:    make(map[echonet_lite.InstanceKey]EchonetObject),
		cmds:       make(chan command),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	if opts.FramesPerSecond > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		m.limiter = rate.NewLimiter(rate.Limit(opts.FramesPerSecond), burst)
	}
	return m
}

// Run はイベントループを実行します。ctx がキャンセルされるか Close が呼ばれると、
// 登録済みのデバイスに OnRemoved を通知してから戻ります。Run は1度だけ呼べます。
func (m *Messenger) Run(ctx context.Context) error {
	if !m.started.CompareAndSwap(false, true) {
		return ErrMessengerClosed
	}
	defer m.shutdown()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	packets := make(chan packet, 64)
	go m.receiveLoop(ctx, packets)

	ticker := time.NewTicker(m.opts.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-m.quit:
			return nil
		case <-ticker.C:
			m.tick(m.opts.Now())
		case p := <-packets:
			m.handleDatagram(p.data, p.addr, m.opts.Now())
		case c := <-m.cmds:
			c.reply <- c.fn()
		}
	}
}

func (m *Messenger) receiveLoop(ctx context.Context, packets chan<- packet) {
	for {
		data, addr, err := m.conn.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				m.logger.Info("受信終了: 接続が閉じられました")
				return
			}
			m.logger.Error("データ受信中にエラーが発生", "err", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(100 * time.Millisecond):
			}
			continue
		}
		if len(data) == 0 {
			continue
		}
		select {
		case packets <- packet{data: data, addr: addr}:
		case <-ctx.Done():
			return
		}
	}
}

// Close はイベントループを止め、ループが終わるまで待ちます。Run が動いていなければその場で後始末をします。
// listener の通知の中から呼んでもかまいません。残っている通知は Run が戻るまでに配送されます。
func (m *Messenger) Close() error {
	m.closeOnce.Do(func() { close(m.quit) })
	if m.started.CompareAndSwap(false, true) {
		m.shutdown()
		return nil
	}
	<-m.done
	return nil
}

func (m *Messenger) shutdown() {
	m.doneOnce.Do(func() {
		if m.discovery != nil {
			m.stopDiscovery()
		}
		for _, key := range m.sortedKeys() {
			obj := m.devices[key]
			delete(m.devices, key)
			obj.removed()
		}
		m.metrics.setDevices(0)
		// 通知の中で Close を待っている listener がいても進めるよう、先に done を閉じる
		m.dispatcher.stop()
		close(m.done)
		m.dispatcher.wait()
	})
}

// do は fn をイベントループで実行し、その結果を返します。
func (m *Messenger) do(fn func() error) error {
	reply := make(chan error, 1)
	select {
	case m.cmds <- command{fn: fn, reply: reply}:
	case <-m.quit:
		return ErrMessengerClosed
	case <-m.done:
		return ErrMessengerClosed
	}
	return <-reply
}

func (m *Messenger) nextTID() echonet_lite.TIDType {
	m.tid++
	return m.tid
}

func (m *Messenger) objectConfig(cfg DeviceConfig) objectConfig {
	oc := objectConfig{
		catalog:            m.catalog,
		pollInterval:       cfg.PollInterval,
		retryTimeout:       cfg.RetryTimeout,
		maxRetries:         m.opts.MaxRetries,
		oldRequestCapacity: m.opts.OldRequestCapacity,
		logger:             m.logger,
		metrics:            m.metrics,
	}
	if oc.pollInterval <= 0 {
		oc.pollInterval = m.opts.DefaultPollInterval
	}
	if oc.retryTimeout <= 0 {
		oc.retryTimeout = m.opts.DefaultRetryTimeout
	}
	return oc
}

func (m *Messenger) sortedKeys() []echonet_lite.InstanceKey {
	keys := make([]echonet_lite.InstanceKey, 0, len(m.devices))
	for key := range m.devices {
		keys = append(keys, key)
	}
	slices.SortFunc(keys, func(a, b echonet_lite.InstanceKey) int { return a.Compare(b) })
	return keys
}

// tick はすべてのオブジェクトに Get と SetC の送信機会を与えます。
// 送信レートの上限に達したら残りは次のティックに回し、次回は続きのオブジェクトから始めます。
func (m *Messenger) tick(now time.Time) {
	keys := m.sortedKeys()
	if len(keys) == 0 {
		return
	}
	start := m.tickStart % len(keys)
	for i := 0; i < len(keys); i++ {
		key := keys[(start+i)%len(keys)]
		obj := m.devices[key]
		if !m.ready(now) {
			m.tickStart = start + i
			return
		}
		if obj.buildPollMessage(m.builder, m.nextTID, now, m.controller) {
			m.consume(now)
			m.send(key.Addr, echonet_lite.ESVGet)
		}
		if !m.ready(now) {
			m.tickStart = start + i + 1
			return
		}
		if obj.buildUpdateMessage(m.builder, m.nextTID, now, m.controller) {
			m.consume(now)
			m.send(key.Addr, echonet_lite.ESVSetC)
		}
	}
	m.tickStart = 0
}

func (m *Messenger) ready(now time.Time) bool {
	return m.limiter == nil || m.limiter.TokensAt(now) >= 1
}

func (m *Messenger) consume(now time.Time) {
	if m.limiter != nil {
		m.limiter.AllowN(now, 1)
	}
}

// send は builder の内容を dst に送信します。送信エラーは記録だけして、タイムアウトと再送に任せます。
func (m *Messenger) send(dst netip.AddrPort, esv echonet_lite.ESVType) {
	data := m.builder.Bytes()
	if m.logger.Enabled(context.Background(), slog.LevelDebug) {
		m.logger.Debug("送信", "to", dst, "esv", esv, "data", utils.HexDump(data))
	}
	if _, err := m.conn.SendTo(dst, data); err != nil {
		m.logger.Warn("パケット送信エラー", "to", dst, "err", err)
		return
	}
	m.metrics.frameSent(esv)
}

// handleDatagram は受信したフレームを送信元のオブジェクトに渡します。
// 解析できないフレームや宛先の無いフレームは記録して捨てます。
func (m *Messenger) handleDatagram(data []byte, addr netip.AddrPort, now time.Time) {
	frame, err := echonet_lite.ParseFrame(data)
	if err != nil {
		m.logger.Warn("パケット解析エラー", "from", addr, "err", err, "data", utils.HexDump(data))
		m.metrics.frameDropped("malformed")
		return
	}
	m.metrics.frameReceived(frame.ESV)
	if m.logger.Enabled(context.Background(), slog.LevelDebug) {
		m.logger.Debug("受信", "from", addr, "frame", frame)
	}

	if frame.ESV.IsSNA() {
		m.logger.Info("不可応答を受信しました", "from", addr, "esv", frame.ESV, "epcs", frame.Properties.EPCs())
	}
	if frame.ESV.IsRequest() {
		// コントローラとしてのみ動作するので他ノードからの要求には応答しない
		m.metrics.frameDropped("request")
		return
	}
	source := echonet_lite.InstanceKey{Addr: addr, EOJ: frame.SEOJ}
	if frame.ESV == echonet_lite.ESVINFC {
		m.replyINFC(frame, source)
	}

	obj := m.route(source)
	if obj == nil {
		m.logger.Debug("未登録のオブジェクトからのフレームを無視します", "from", source, "esv", frame.ESV)
		m.metrics.frameDropped("unknown_source")
		return
	}
	obj.applyHeader(frame.ESV, frame.TID, now)
	for _, p := range frame.Properties {
		obj.applyProperty(source, frame.ESV, p.EPC, p.EDT)
	}
}

func (m *Messenger) route(source echonet_lite.InstanceKey) EchonetObject {
	if obj, ok := m.devices[source]; ok {
		return obj
	}
	if m.discovery != nil && source.ClassCode() == echonet_lite.NodeProfile_ClassCode {
		return m.discovery.node
	}
	return nil
}

// replyINFC は INFC に対して同じ EPC を PDC=0 で並べた INFC_Res を返します。
func (m *Messenger) replyINFC(frame *echonet_lite.Frame, source echonet_lite.InstanceKey) {
	m.builder.Start(frame.TID, m.controller, source, echonet_lite.ESVINFC_Res)
	for _, epc := range frame.Properties.EPCs() {
		if err := m.builder.AppendEPCRequest(epc); err != nil {
			break
		}
	}
	m.send(source.Addr, echonet_lite.ESVINFC_Res)
}

func (m *Messenger) lookup(key echonet_lite.InstanceKey) (EchonetObject, error) {
	if m.discovery != nil && key == m.discovery.node.Key() {
		return nil, ErrUnknownDevice
	}
	obj, ok := m.devices[key]
	if !ok {
		return nil, ErrUnknownDevice
	}
	return obj, nil
}

func (m *Messenger) newDevice(key echonet_lite.InstanceKey, cfg DeviceConfig, listener DeviceListener) error {
	async := asyncDeviceListener{d: m.dispatcher, l: listener}
	oc := m.objectConfig(cfg)
	if obj, ok := m.devices[key]; ok {
		dev, discovered := m.discovery.adopt(key)
		if !discovered {
			return ErrDeviceExists
		}
		dev.adopt(oc.pollInterval, oc.retryTimeout, async)
		m.logger.Info("探索で見つけたデバイスを登録しました", "device", obj.Key())
		return nil
	}
	m.devices[key] = newEchonetDevice(key, oc, async)
	m.metrics.setDevices(len(m.devices))
	m.logger.Info("デバイスを登録しました", "device", key, "poll", oc.pollInterval, "timeout", oc.retryTimeout)
	return nil
}

func (m *Messenger) removeDevice(key echonet_lite.InstanceKey) error {
	obj, err := m.lookup(key)
	if err != nil {
		return err
	}
	delete(m.devices, key)
	m.discovery.forget(key)
	obj.removed()
	m.metrics.setDevices(len(m.devices))
	m.logger.Info("デバイスを削除しました", "device", key)
	return nil
}

// NewDevice はデバイスを登録します。探索で見つかったデバイスは状態を引き継いで登録されます。
func (m *Messenger) NewDevice(key echonet_lite.InstanceKey, cfg DeviceConfig, listener DeviceListener) error {
	return m.do(func() error { return m.newDevice(key, cfg, listener) })
}

// RemoveDevice は登録を取り消し、listener に OnRemoved を通知します。
func (m *Messenger) RemoveDevice(key echonet_lite.InstanceKey) error {
	return m.do(func() error { return m.removeDevice(key) })
}

// RefreshDevice は次のティックでチャンネルの値を取得し直します。channelID が空ならすべてです。
func (m *Messenger) RefreshDevice(key echonet_lite.InstanceKey, channelID string) error {
	return m.do(func() error {
		obj, err := m.lookup(key)
		if err != nil {
			return err
		}
		return obj.refresh(channelID)
	})
}

// UpdateDevice は値を書き込みキューに入れます。送信は次のティックで行われます。
func (m *Messenger) UpdateDevice(key echonet_lite.InstanceKey, channelID string, state echonet_lite.State) error {
	return m.do(func() error {
		obj, err := m.lookup(key)
		if err != nil {
			return err
		}
		return obj.update(channelID, state)
	})
}

// Devices は登録済みと探索中に見つかったデバイスの状態を InstanceKey 順に返します。
func (m *Messenger) Devices() ([]DeviceInfo, error) {
	var infos []DeviceInfo
	err := m.do(func() error {
		infos = m.snapshot()
		return nil
	})
	return infos, err
}

func (m *Messenger) snapshot() []DeviceInfo {
	infos := make([]DeviceInfo, 0, len(m.devices))
	for _, key := range m.sortedKeys() {
		dev, ok := m.devices[key].(*EchonetDevice)
		if !ok {
			continue
		}
		info := dev.Snapshot()
		info.Discovered = m.discovery.owns(key)
		infos = append(infos, info)
	}
	return infos
}
