package handler

import (
	"bytes"
	"context"
	"echonet-bridge/echonet_lite"
	"log/slog"
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC)

var (
	deviceAddr = netip.MustParseAddrPort("192.168.0.10:3610")
	localAddr  = netip.MustParseAddrPort("192.168.0.2:3610")
	controller = echonet_lite.InstanceKey{Addr: localAddr, EOJ: echonet_lite.MakeEOJ(echonet_lite.Controller_ClassCode, 1)}
	aircon     = echonet_lite.NewInstanceKey(deviceAddr, echonet_lite.HomeAirConditioner_ClassCode, 1)
)

// listenerEvent は recordingListener が受け取った通知1件です。
type listenerEvent struct {
	Kind     string
	Channel  string
	State    echonet_lite.State
	Channels map[string]string
	Err      error
}

type recordingListener struct {
	mu     sync.Mutex
	events []listenerEvent
}

func (r *recordingListener) add(e listenerEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingListener) OnInitialised(_ string, _ echonet_lite.InstanceKey, channels map[string]string) {
	r.add(listenerEvent{Kind: "initialised", Channels: channels})
}

func (r *recordingListener) OnUpdated(channelID string, state echonet_lite.State) {
	r.add(listenerEvent{Kind: "updated", Channel: channelID, State: state})
}

func (r *recordingListener) OnUnavailable(channelID string) {
	r.add(listenerEvent{Kind: "unavailable", Channel: channelID})
}

func (r *recordingListener) OnUnreachable(err error) {
	r.add(listenerEvent{Kind: "unreachable", Err: err})
}

func (r *recordingListener) OnRemoved() {
	r.add(listenerEvent{Kind: "removed"})
}

func (r *recordingListener) Events() []listenerEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]listenerEvent(nil), r.events...)
}

func (r *recordingListener) Kinds() []string {
	var kinds []string
	for _, e := range r.Events() {
		kinds = append(kinds, e.Kind)
	}
	return kinds
}

// sentFrame は fakeConn が送信したフレームです。
type sentFrame struct {
	dst   netip.AddrPort
	frame *echonet_lite.Frame
}

// fakeConn はソケットの代わりに送信内容を記録し、inbox に入れたデータグラムを受信します。
type fakeConn struct {
	mu    sync.Mutex
	sent  []sentFrame
	inbox chan packet
	err   error
}

func newFakeConn() *fakeConn {
	return &fakeConn{inbox: make(chan packet, 16)}
}

func (c *fakeConn) Receive(ctx context.Context) ([]byte, netip.AddrPort, error) {
	select {
	case p := <-c.inbox:
		return p.data, p.addr, nil
	case <-ctx.Done():
		return nil, netip.AddrPort{}, ctx.Err()
	}
}

func (c *fakeConn) SendTo(dst netip.AddrPort, data []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return 0, c.err
	}
	frame, err := echonet_lite.ParseFrame(data)
	if err != nil {
		panic(err)
	}
	c.sent = append(c.sent, sentFrame{dst: dst, frame: frame})
	return len(data), nil
}

func (c *fakeConn) LocalAddr() netip.AddrPort {
	return localAddr
}

func (c *fakeConn) Sent() []sentFrame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]sentFrame(nil), c.sent...)
}

func (c *fakeConn) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = nil
}

// tidCounter は 1 から順に TID を返します。
type tidCounter struct {
	next echonet_lite.TIDType
}

func (c *tidCounter) tid() echonet_lite.TIDType {
	c.next++
	return c.next
}

func testObjectConfig(logger *slog.Logger) objectConfig {
	return objectConfig{
		catalog:            echonet_lite.DefaultCatalog(),
		pollInterval:       10 * time.Second,
		retryTimeout:       time.Second,
		maxRetries:         2,
		oldRequestCapacity: 4,
		logger:             logger,
	}
}

// bufferLogger はテキスト形式のログを buf に書き込むロガーです。
func bufferLogger() (*slog.Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})), buf
}

// buildFrame は受信フレームのバイト列を組み立てます。
func buildFrame(t *testing.T, tid echonet_lite.TIDType, source, dest echonet_lite.InstanceKey, esv echonet_lite.ESVType, props ...echonet_lite.Property) []byte {
	t.Helper()
	b := echonet_lite.NewMessageBuilder()
	b.Start(tid, source, dest, esv)
	for _, p := range props {
		require.NoError(t, b.AppendEPCUpdate(p.EPC, p.EDT))
	}
	return b.Bytes()
}

func prop(epc echonet_lite.EPCType, edt ...byte) echonet_lite.Property {
	return echonet_lite.Property{EPC: epc, EDT: edt}
}
