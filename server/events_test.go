package server

import (
	"echonet-bridge/echonet_lite"
	"echonet-bridge/echonet_lite/handler"
	"encoding/json"
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	testTime = time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC)
	aircon   = echonet_lite.NewInstanceKey(netip.MustParseAddrPort("192.168.0.10:3610"), echonet_lite.HomeAirConditioner_ClassCode, 1)
)

// fakeTransport は送信内容を記録する WebSocketTransport
type fakeTransport struct {
	mu           sync.Mutex
	broadcasts   [][]byte
	sent         map[string][][]byte
	onMessage    func(string, []byte) error
	onConnect    func(string) error
	onDisconnect func(string)
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{sent: make(map[string][][]byte)}
}

func (f *fakeTransport) SetMessageHandler(h func(string, []byte) error) { f.onMessage = h }
func (f *fakeTransport) SetConnectHandler(h func(string) error)         { f.onConnect = h }
func (f *fakeTransport) SetDisconnectHandler(h func(string))            { f.onDisconnect = h }

func (f *fakeTransport) SendMessage(connID string, message []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent[connID] = append(f.sent[connID], message)
	return nil
}

func (f *fakeTransport) BroadcastMessage(message []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.broadcasts = append(f.broadcasts, message)
	return nil
}

func (f *fakeTransport) lastBroadcast(t *testing.T) Event {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.broadcasts)
	var ev Event
	require.NoError(t, json.Unmarshal(f.broadcasts[len(f.broadcasts)-1], &ev))
	return ev
}

func (f *fakeTransport) lastSent(t *testing.T, connID string) Event {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	msgs := f.sent[connID]
	require.NotEmpty(t, msgs)
	var ev Event
	require.NoError(t, json.Unmarshal(msgs[len(msgs)-1], &ev))
	return ev
}

type mockController struct {
	mock.Mock
}

func (m *mockController) RefreshDevice(key echonet_lite.InstanceKey, channelID string) error {
	return m.Called(key, channelID).Error(0)
}

func (m *mockController) UpdateDevice(key echonet_lite.InstanceKey, channelID string, state echonet_lite.State) error {
	return m.Called(key, channelID, state).Error(0)
}

func (m *mockController) Devices() ([]handler.DeviceInfo, error) {
	args := m.Called()
	return args.Get(0).([]handler.DeviceInfo), args.Error(1)
}

func airconInfo() handler.DeviceInfo {
	return handler.DeviceInfo{
		Key:         aircon,
		Identifier:  aircon.Identifier(),
		Class:       &echonet_lite.EchonetClass{Code: echonet_lite.HomeAirConditioner_ClassCode, Description: "Home air conditioner"},
		Initialised: true,
		Channels: map[string]string{
			"operationStatus":    echonet_lite.ItemTypeSwitch,
			"temperatureSetting": echonet_lite.ItemTypeNumber,
		},
		States: map[string]echonet_lite.State{
			"operationStatus":    echonet_lite.On,
			"temperatureSetting": echonet_lite.Decimal(26),
		},
	}
}

func newTestHub(t *testing.T) (*EventHub, *fakeTransport, *mockController) {
	t.Helper()
	tr := newFakeTransport()
	ctrl := &mockController{}
	hub := NewEventHub(tr, ctrl, nil)
	hub.now = func() time.Time { return testTime }
	return hub, tr, ctrl
}

func TestEventHub_DeviceEvents(t *testing.T) {
	hub, tr, _ := newTestHub(t)
	l := hub.ListenerFor(aircon)

	l.OnInitialised(aircon.Identifier(), aircon, map[string]string{"operationStatus": "Switch"})
	ev := tr.lastBroadcast(t)
	assert.Equal(t, EventInitialised, ev.Type)
	assert.Equal(t, "192_168_0_10_013001", ev.Device)
	assert.Equal(t, "192.168.0.10:3610", ev.Address)
	assert.Equal(t, "0130:1", ev.EOJ)
	assert.Equal(t, map[string]string{"operationStatus": "Switch"}, ev.Channels)

	l.OnUpdated("operationStatus", echonet_lite.On)
	ev = tr.lastBroadcast(t)
	assert.Equal(t, EventUpdated, ev.Type)
	assert.Equal(t, "operationStatus", ev.Channel)
	assert.Equal(t, true, ev.Value)
	assert.True(t, ev.Time.Equal(testTime))

	l.OnUpdated("temperatureSetting", echonet_lite.Decimal(-3))
	assert.Equal(t, float64(-3), tr.lastBroadcast(t).Value)

	l.OnUpdated("temperatureSetting", echonet_lite.Undef)
	assert.Nil(t, tr.lastBroadcast(t).Value)

	l.OnUnavailable("temperatureSetting")
	ev = tr.lastBroadcast(t)
	assert.Equal(t, EventUnavailable, ev.Type)
	assert.Equal(t, "temperatureSetting", ev.Channel)

	l.OnUnreachable(handler.ErrRetriesExhausted{Key: aircon, Kind: handler.KindGet, Retries: 3})
	ev = tr.lastBroadcast(t)
	assert.Equal(t, EventUnreachable, ev.Type)
	assert.Contains(t, ev.Error, "after 3 retries")

	l.OnRemoved()
	assert.Equal(t, EventRemoved, tr.lastBroadcast(t).Type)

	hub.OnDeviceFound(aircon.Identifier(), aircon)
	ev = tr.lastBroadcast(t)
	assert.Equal(t, EventFound, ev.Type)
	assert.Equal(t, aircon.Identifier(), ev.Device)
}

func TestEventHub_SnapshotOnConnect(t *testing.T) {
	_, tr, ctrl := newTestHub(t)
	ctrl.On("Devices").Return([]handler.DeviceInfo{airconInfo()}, nil)

	require.NoError(t, tr.onConnect("c1"))
	ev := tr.lastSent(t, "c1")
	assert.Equal(t, EventSnapshot, ev.Type)

	want := []DeviceSummary{{
		Device:      "192_168_0_10_013001",
		Address:     "192.168.0.10:3610",
		EOJ:         "0130:1",
		Class:       "Home air conditioner",
		Initialised: true,
		Channels: map[string]string{
			"operationStatus":    "Switch",
			"temperatureSetting": "Number",
		},
		States: map[string]any{
			"operationStatus":    true,
			"temperatureSetting": float64(26),
		},
	}}
	if diff := cmp.Diff(want, ev.Devices); diff != "" {
		t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
	}
}

func TestEventHub_Commands(t *testing.T) {
	tests := []struct {
		name    string
		message string
		setup   func(*mockController)
		wantErr string
	}{
		{
			name:    "update switch",
			message: `{"type":"update","request_id":"1","device":"192_168_0_10_013001","channel":"operationStatus","value":"OFF"}`,
			setup: func(c *mockController) {
				c.On("UpdateDevice", aircon, "operationStatus", echonet_lite.Off).Return(nil)
			},
		},
		{
			name:    "update number",
			message: `{"type":"update","request_id":"2","device":"192_168_0_10_013001","channel":"temperatureSetting","value":24}`,
			setup: func(c *mockController) {
				c.On("UpdateDevice", aircon, "temperatureSetting", echonet_lite.Decimal(24)).Return(nil)
			},
		},
		{
			name:    "refresh by address and eoj",
			message: `{"type":"refresh","request_id":"3","device":"192.168.0.10 0130:1"}`,
			setup: func(c *mockController) {
				c.On("RefreshDevice", aircon, "").Return(nil)
			},
		},
		{
			name:    "controller error",
			message: `{"type":"update","request_id":"4","device":"192_168_0_10_013001","channel":"operationStatus","value":true}`,
			setup: func(c *mockController) {
				c.On("UpdateDevice", aircon, "operationStatus", echonet_lite.On).Return(echonet_lite.ErrReadOnlyProperty)
			},
			wantErr: echonet_lite.ErrReadOnlyProperty.Error(),
		},
		{
			name:    "unknown device",
			message: `{"type":"refresh","request_id":"5","device":"nope"}`,
			wantErr: "unknown device",
		},
		{
			name:    "unknown channel",
			message: `{"type":"update","request_id":"6","device":"192_168_0_10_013001","channel":"fanSpeed","value":1}`,
			wantErr: "unknown channel",
		},
		{
			name:    "bad value",
			message: `{"type":"update","request_id":"7","device":"192_168_0_10_013001","channel":"temperatureSetting","value":"warm"}`,
			wantErr: "not a number",
		},
		{
			name:    "unknown type",
			message: `{"type":"reboot","request_id":"8","device":"192_168_0_10_013001"}`,
			wantErr: "unknown command type",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, tr, ctrl := newTestHub(t)
			ctrl.On("Devices").Return([]handler.DeviceInfo{airconInfo()}, nil).Maybe()
			if tt.setup != nil {
				tt.setup(ctrl)
			}

			require.NoError(t, tr.onMessage("c1", []byte(tt.message)))
			ev := tr.lastSent(t, "c1")
			assert.Equal(t, EventResult, ev.Type)
			assert.NotEmpty(t, ev.RequestID)
			if tt.wantErr == "" {
				assert.Empty(t, ev.Error)
			} else {
				assert.Contains(t, ev.Error, tt.wantErr)
			}
			ctrl.AssertExpectations(t)
		})
	}
}

func TestEventHub_InvalidJSON(t *testing.T) {
	_, tr, ctrl := newTestHub(t)
	require.NoError(t, tr.onMessage("c1", []byte("{")))
	ev := tr.lastSent(t, "c1")
	assert.Equal(t, EventResult, ev.Type)
	assert.Contains(t, ev.Error, "invalid message")
	ctrl.AssertNotCalled(t, "Devices")
}

func TestEventHub_DevicesCommand(t *testing.T) {
	_, tr, ctrl := newTestHub(t)
	ctrl.On("Devices").Return([]handler.DeviceInfo{airconInfo()}, nil).Once()
	ctrl.On("Devices").Return([]handler.DeviceInfo(nil), handler.ErrMessengerClosed).Once()

	require.NoError(t, tr.onMessage("c1", []byte(`{"type":"devices","request_id":"42"}`)))
	ev := tr.lastSent(t, "c1")
	assert.Equal(t, EventSnapshot, ev.Type)
	assert.Equal(t, "42", ev.RequestID)
	assert.Len(t, ev.Devices, 1)

	require.NoError(t, tr.onMessage("c1", []byte(`{"type":"devices","request_id":"43"}`)))
	ev = tr.lastSent(t, "c1")
	assert.Equal(t, EventResult, ev.Type)
	assert.Equal(t, handler.ErrMessengerClosed.Error(), ev.Error)
}
