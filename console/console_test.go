package console

import (
	"bytes"
	"echonet-bridge/echonet_lite"
	"echonet-bridge/echonet_lite/handler"
	"fmt"
	"net/netip"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/c-bata/go-prompt"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var aircon = echonet_lite.NewInstanceKey(netip.MustParseAddrPort("192.168.0.10:3610"), echonet_lite.HomeAirConditioner_ClassCode, 1)

type mockController struct {
	mock.Mock
}

func (m *mockController) NewDevice(key echonet_lite.InstanceKey, cfg handler.DeviceConfig, listener handler.DeviceListener) error {
	return m.Called(key, cfg, listener).Error(0)
}

func (m *mockController) RemoveDevice(key echonet_lite.InstanceKey) error {
	return m.Called(key).Error(0)
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

func (m *mockController) StartDiscovery(listener handler.DiscoveryListener, duration time.Duration) error {
	return m.Called(listener, duration).Error(0)
}

func (m *mockController) StopDiscovery() error {
	return m.Called().Error(0)
}

func airconInfo() handler.DeviceInfo {
	catalog := echonet_lite.DefaultCatalog()
	return handler.DeviceInfo{
		Key:         aircon,
		Identifier:  aircon.Identifier(),
		Class:       catalog.Classes().Lookup(aircon.ClassCode()),
		Initialised: true,
		Channels: map[string]string{
			"operation_status": echonet_lite.ItemTypeSwitch,
			"operation_mode":   echonet_lite.ItemTypeString,
			"set_temperature":  echonet_lite.ItemTypeNumber,
		},
		States: map[string]echonet_lite.State{
			"operation_status": echonet_lite.On,
			"set_temperature":  echonet_lite.Decimal(26),
		},
	}
}

func newTestConsole(ctrl *mockController) (*Console, *bytes.Buffer) {
	out := &bytes.Buffer{}
	return NewConsole(ctrl, echonet_lite.DefaultCatalog(), nil, out), out
}

func TestSplitWords(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"", []string{}},
		{"devices", []string{"devices"}},
		{"set dev  ch 1", []string{"set", "dev", "ch", "1"}},
		{"set ", []string{"set", ""}},
		{`set dev ch "a b"`, []string{"set", "dev", "ch", "a b"}},
		{"\tquit", []string{"quit"}},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, splitWords(tt.input)); diff != "" {
				t.Errorf("splitWords(%q) mismatch (-want +got):\n%s", tt.input, diff)
			}
		})
	}
}

func TestConsole_Execute(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		setup    func(*mockController)
		contains []string
	}{
		{
			name: "devices",
			line: "devices",
			contains: []string{
				"192_168_0_10_013001",
				"Home Air Conditioner",
				"operation_status = ON",
				"set_temperature = 26",
				"operation_mode = -",
			},
		},
		{
			name: "add",
			line: "add 192.168.0.20 0130:2 30s",
			setup: func(c *mockController) {
				key := echonet_lite.NewInstanceKey(netip.MustParseAddrPort("192.168.0.20:3610"), echonet_lite.HomeAirConditioner_ClassCode, 2)
				c.On("NewDevice", key, handler.DeviceConfig{PollInterval: 30 * time.Second}, handler.NopDeviceListener{}).Return(nil)
			},
			contains: []string{"登録しました: 192_168_0_20_013002"},
		},
		{
			name:     "add bad address",
			line:     "add nowhere 0130:1",
			contains: []string{"エラー:"},
		},
		{
			name: "remove",
			line: "remove 192_168_0_10_013001",
			setup: func(c *mockController) {
				c.On("RemoveDevice", aircon).Return(nil)
			},
		},
		{
			name: "refresh all",
			line: "refresh 192_168_0_10_013001",
			setup: func(c *mockController) {
				c.On("RefreshDevice", aircon, "").Return(nil)
			},
		},
		{
			name: "get alias",
			line: "get 192_168_0_10_013001 set_temperature",
			setup: func(c *mockController) {
				c.On("RefreshDevice", aircon, "set_temperature").Return(nil)
			},
		},
		{
			name: "set switch",
			line: "set 192_168_0_10_013001 operation_status off",
			setup: func(c *mockController) {
				c.On("UpdateDevice", aircon, "operation_status", echonet_lite.Off).Return(nil)
			},
		},
		{
			name: "set rejected",
			line: "set 192_168_0_10_013001 set_temperature 22",
			setup: func(c *mockController) {
				c.On("UpdateDevice", aircon, "set_temperature", echonet_lite.Decimal(22)).Return(echonet_lite.ErrReadOnlyProperty)
			},
			contains: []string{"エラー:"},
		},
		{
			name:     "set unknown channel",
			line:     "set 192_168_0_10_013001 fan 1",
			contains: []string{"エラー:", "fan"},
		},
		{
			name:     "set usage",
			line:     "set 192_168_0_10_013001",
			contains: []string{"使い方: set <device> <channel> <value>"},
		},
		{
			name:     "unknown device",
			line:     "refresh nothing",
			contains: []string{"エラー:", "nothing"},
		},
		{
			name:     "channels",
			line:     "channels 192_168_0_10_013001",
			contains: []string{"operation_mode", "String", "set_temperature", "Number"},
		},
		{
			name: "discover",
			line: "discover 5",
			setup: func(c *mockController) {
				c.On("StartDiscovery", mock.Anything, 5*time.Second).Return(nil)
			},
			contains: []string{"探索を開始しました (5s)"},
		},
		{
			name: "discover stop",
			line: "discover stop",
			setup: func(c *mockController) {
				c.On("StopDiscovery").Return(nil)
			},
		},
		{
			name:     "discover bad duration",
			line:     "discover soon",
			contains: []string{"秒数が無効です"},
		},
		{
			name:     "help",
			line:     "help set",
			contains: []string{"set <device> <channel> <value>"},
		},
		{
			name:     "unknown command",
			line:     "frobnicate",
			contains: []string{"不明なコマンド: frobnicate"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := &mockController{}
			ctrl.On("Devices").Return([]handler.DeviceInfo{airconInfo()}, nil).Maybe()
			if tt.setup != nil {
				tt.setup(ctrl)
			}
			c, out := newTestConsole(ctrl)

			c.Execute(tt.line)

			for _, s := range tt.contains {
				assert.Contains(t, out.String(), s)
			}
			if len(tt.contains) == 0 {
				assert.NotContains(t, out.String(), "エラー:")
			}
			assert.False(t, c.Quit())
			ctrl.AssertExpectations(t)
		})
	}
}

func TestConsole_DiscoverPrintsFoundDevices(t *testing.T) {
	ctrl := &mockController{}
	var listener handler.DiscoveryListener
	ctrl.On("StartDiscovery", mock.Anything, defaultDiscoverDuration).
		Run(func(args mock.Arguments) { listener = args.Get(0).(handler.DiscoveryListener) }).
		Return(nil)
	c, out := newTestConsole(ctrl)

	c.Execute("discover")
	require.NotNil(t, listener)
	listener.OnDeviceFound(aircon.Identifier(), aircon)

	assert.Contains(t, out.String(), "発見: 192_168_0_10_013001")
}

func TestConsole_DevicesError(t *testing.T) {
	ctrl := &mockController{}
	ctrl.On("Devices").Return([]handler.DeviceInfo(nil), handler.ErrMessengerClosed)
	c, out := newTestConsole(ctrl)

	c.Execute("devices")

	assert.Contains(t, out.String(), "エラー: "+handler.ErrMessengerClosed.Error())
}

func TestConsole_Quit(t *testing.T) {
	c, out := newTestConsole(&mockController{})
	c.Execute("  ")
	assert.False(t, c.Quit())
	c.Execute("exit")
	assert.True(t, c.Quit())
	assert.Empty(t, out.String())
	assert.Equal(t, []string{"exit"}, c.history)
}

func TestConsole_AddUsesListenerFor(t *testing.T) {
	ctrl := &mockController{}
	listener := &handler.MultiListener{}
	var requested echonet_lite.InstanceKey
	c := NewConsole(ctrl, nil, func(key echonet_lite.InstanceKey) handler.DeviceListener {
		requested = key
		return listener
	}, &bytes.Buffer{})
	ctrl.On("NewDevice", aircon, handler.DeviceConfig{}, listener).Return(handler.ErrDeviceExists)

	c.Execute("add 192.168.0.10:3610 0130:1")

	assert.Equal(t, aircon, requested)
	ctrl.AssertExpectations(t)
}

func complete(c *Console, text string) []string {
	b := prompt.NewBuffer()
	b.InsertText(text, false, true)
	var got []string
	for _, s := range c.Complete(*b.Document()) {
		got = append(got, s.Text)
	}
	return got
}

func TestConsole_Complete(t *testing.T) {
	ctrl := &mockController{}
	ctrl.On("Devices").Return([]handler.DeviceInfo{airconInfo()}, nil).Maybe()
	c, _ := newTestConsole(ctrl)

	assert.Empty(t, complete(c, ""))
	assert.ElementsMatch(t, []string{"refresh", "remove"}, complete(c, "re"))
	assert.ElementsMatch(t, []string{"devices", "discover"}, complete(c, "d"))
	assert.Equal(t, []string{"192_168_0_10_013001"}, complete(c, "set 192"))
	assert.Equal(t, []string{"operation_mode", "operation_status"}, complete(c, "set 192_168_0_10_013001 op"))
	assert.Equal(t, []string{"ON", "OFF"}, complete(c, "set 192_168_0_10_013001 operation_status "))
	assert.Equal(t, []string{"cooling"}, complete(c, "set 192_168_0_10_013001 operation_mode co"))
	assert.Empty(t, complete(c, "set 192_168_0_10_013001 set_temperature "))
	assert.Empty(t, complete(c, "remove 192_168_0_10_013001 "))
	assert.Empty(t, complete(c, "quit "))
	assert.Contains(t, complete(c, "add 192.168.0.10 01"), "0130:1")
	assert.NotContains(t, complete(c, "add 192.168.0.10 0"), "0EF0:1")
}

func TestHistory_SaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history")
	saveHistory(path, []string{"devices", "", "set a b 1", "devices", "help"})

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "set a b 1\ndevices\nhelp\n", string(data))
	assert.Equal(t, []string{"set a b 1", "devices", "help"}, loadHistory(path))
}

func TestHistory_Missing(t *testing.T) {
	assert.Empty(t, loadHistory(filepath.Join(t.TempDir(), "none")))
}

func TestCleanHistory_Limit(t *testing.T) {
	var history []string
	for i := 0; i < maxHistorySize+10; i++ {
		history = append(history, fmt.Sprintf("refresh dev%d", i))
	}
	cleaned := cleanHistory(history)
	assert.Len(t, cleaned, maxHistorySize)
	assert.Equal(t, history[len(history)-1], cleaned[len(cleaned)-1])
}
