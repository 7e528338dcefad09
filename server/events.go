package server

import (
	"echonet-bridge/echonet_lite"
	"echonet-bridge/echonet_lite/handler"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// イベント種別
const (
	EventInitialised = "initialised"
	EventUpdated     = "updated"
	EventUnavailable = "unavailable"
	EventUnreachable = "unreachable"
	EventRemoved     = "removed"
	EventFound       = "found"
	EventSnapshot    = "snapshot"
	EventResult      = "result"
	EventLog         = "log"
)

// コマンド種別
const (
	CommandRefresh = "refresh"
	CommandUpdate  = "update"
	CommandDevices = "devices"
)

// Controller は EventHub がクライアントからのコマンドを渡す先です。handler.Messenger が満たします。
type Controller interface {
	RefreshDevice(key echonet_lite.InstanceKey, channelID string) error
	UpdateDevice(key echonet_lite.InstanceKey, channelID string, state echonet_lite.State) error
	Devices() ([]handler.DeviceInfo, error)
}

// Event はクライアントに送る JSON メッセージ
type Event struct {
	Type      string            `json:"type"`
	RequestID string            `json:"request_id,omitempty"`
	Device    string            `json:"device,omitempty"`
	Address   string            `json:"address,omitempty"`
	EOJ       string            `json:"eoj,omitempty"`
	Channel   string            `json:"channel,omitempty"`
	Value     any               `json:"value,omitempty"`
	Channels  map[string]string `json:"channels,omitempty"`
	Devices   []DeviceSummary   `json:"devices,omitempty"`
	Error     string            `json:"error,omitempty"`
	Time      time.Time         `json:"time"`
}

// DeviceSummary は snapshot イベントに載せるデバイスの状態
type DeviceSummary struct {
	Device      string            `json:"device"`
	Address     string            `json:"address"`
	EOJ         string            `json:"eoj"`
	Class       string            `json:"class"`
	Initialised bool              `json:"initialised"`
	Unreachable bool              `json:"unreachable"`
	Discovered  bool              `json:"discovered"`
	Channels    map[string]string `json:"channels"`
	States      map[string]any    `json:"states"`
}

// Command はクライアントから受け取る JSON メッセージ
type Command struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id,omitempty"`
	Device    string `json:"device,omitempty"`
	Channel   string `json:"channel,omitempty"`
	Value     any    `json:"value,omitempty"`
}

// EventHub はデバイスの通知を接続中の全クライアントへ配信し、
// クライアントからの refresh/update を Controller に渡す
type EventHub struct {
	transport WebSocketTransport
	ctrl      Controller
	logger    *slog.Logger
	now       func() time.Time
}

func NewEventHub(transport WebSocketTransport, ctrl Controller, logger *slog.Logger) *EventHub {
	if logger == nil {
		logger = slog.Default()
	}
	h := &EventHub{
		transport: transport,
		ctrl:      ctrl,
		logger:    logger.With("component", "websocket"),
		now:       time.Now,
	}
	transport.SetConnectHandler(h.handleConnect)
	transport.SetMessageHandler(h.handleMessage)
	transport.SetDisconnectHandler(func(connID string) {
		h.logger.Debug("Client disconnected", "connID", connID)
	})
	return h
}

// ListenerFor は key のデバイスの通知をイベントとして配信する DeviceListener を返す
func (h *EventHub) ListenerFor(key echonet_lite.InstanceKey) handler.DeviceListener {
	return &deviceEvents{hub: h, key: key}
}

// OnDeviceFound は探索で見つかったデバイスを found イベントとして配信する
func (h *EventHub) OnDeviceFound(identifier string, key echonet_lite.InstanceKey) {
	h.broadcast(h.event(EventFound, key))
}

func (h *EventHub) event(eventType string, key echonet_lite.InstanceKey) Event {
	return Event{
		Type:    eventType,
		Device:  key.Identifier(),
		Address: key.Addr.String(),
		EOJ:     key.EOJ.String(),
		Time:    h.now(),
	}
}

func (h *EventHub) broadcast(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("Failed to marshal event", "type", ev.Type, "err", err)
		return
	}
	if err := h.transport.BroadcastMessage(data); err != nil {
		h.logger.Warn("Failed to broadcast event", "type", ev.Type, "err", err)
	}
}

func (h *EventHub) send(connID string, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return h.transport.SendMessage(connID, data)
}

// handleConnect は接続直後のクライアントに現在のデバイス一覧を送る
func (h *EventHub) handleConnect(connID string) error {
	h.logger.Debug("Client connected", "connID", connID)
	ev, err := h.snapshot()
	if err != nil {
		return err
	}
	return h.send(connID, ev)
}

func (h *EventHub) snapshot() (Event, error) {
	infos, err := h.ctrl.Devices()
	if err != nil {
		return Event{}, err
	}
	devices := make([]DeviceSummary, 0, len(infos))
	for _, info := range infos {
		states := make(map[string]any, len(info.States))
		for ch, st := range info.States {
			states[ch] = st.Value()
		}
		devices = append(devices, DeviceSummary{
			Device:      info.Identifier,
			Address:     info.Key.Addr.String(),
			EOJ:         info.Key.EOJ.String(),
			Class:       info.Class.Description,
			Initialised: info.Initialised,
			Unreachable: info.Unreachable,
			Discovered:  info.Discovered,
			Channels:    info.Channels,
			States:      states,
		})
	}
	return Event{Type: EventSnapshot, Devices: devices, Time: h.now()}, nil
}

func (h *EventHub) handleMessage(connID string, message []byte) error {
	var cmd Command
	if err := json.Unmarshal(message, &cmd); err != nil {
		return h.send(connID, Event{Type: EventResult, Error: "invalid message: " + err.Error(), Time: h.now()})
	}

	if cmd.Type == CommandDevices {
		ev, err := h.snapshot()
		if err != nil {
			return h.send(connID, h.result(cmd, err))
		}
		ev.RequestID = cmd.RequestID
		return h.send(connID, ev)
	}

	err := h.execute(cmd)
	if err != nil {
		h.logger.Info("Command failed", "type", cmd.Type, "device", cmd.Device, "channel", cmd.Channel, "err", err)
	}
	return h.send(connID, h.result(cmd, err))
}

func (h *EventHub) result(cmd Command, err error) Event {
	ev := Event{Type: EventResult, RequestID: cmd.RequestID, Device: cmd.Device, Channel: cmd.Channel, Time: h.now()}
	if err != nil {
		ev.Error = err.Error()
	}
	return ev
}

func (h *EventHub) execute(cmd Command) error {
	switch cmd.Type {
	case CommandRefresh:
		info, err := h.resolve(cmd.Device)
		if err != nil {
			return err
		}
		return h.ctrl.RefreshDevice(info.Key, cmd.Channel)
	case CommandUpdate:
		info, err := h.resolve(cmd.Device)
		if err != nil {
			return err
		}
		itemType, ok := info.Channels[cmd.Channel]
		if !ok {
			return fmt.Errorf("%w: %s", handler.ErrUnknownChannel, cmd.Channel)
		}
		state, err := echonet_lite.StateFromValue(itemType, cmd.Value)
		if err != nil {
			return err
		}
		return h.ctrl.UpdateDevice(info.Key, cmd.Channel, state)
	case "":
		return errors.New("missing command type")
	}
	return fmt.Errorf("unknown command type: %s", cmd.Type)
}

// resolve は識別子 (または "IP EOJ" 形式) からデバイスを探す
func (h *EventHub) resolve(device string) (handler.DeviceInfo, error) {
	infos, err := h.ctrl.Devices()
	if err != nil {
		return handler.DeviceInfo{}, err
	}
	key, keyErr := echonet_lite.ParseInstanceKey(device)
	for _, info := range infos {
		if info.Identifier == device || (keyErr == nil && info.Key == key) {
			return info, nil
		}
	}
	return handler.DeviceInfo{}, fmt.Errorf("%w: %s", handler.ErrUnknownDevice, device)
}

// deviceEvents は1台分の通知をイベントに変換する
type deviceEvents struct {
	hub *EventHub
	key echonet_lite.InstanceKey
}

func (d *deviceEvents) OnInitialised(identifier string, key echonet_lite.InstanceKey, channels map[string]string) {
	ev := d.hub.event(EventInitialised, key)
	ev.Channels = channels
	d.hub.broadcast(ev)
}

func (d *deviceEvents) OnUpdated(channelID string, state echonet_lite.State) {
	ev := d.hub.event(EventUpdated, d.key)
	ev.Channel = channelID
	ev.Value = state.Value()
	d.hub.broadcast(ev)
}

func (d *deviceEvents) OnUnavailable(channelID string) {
	ev := d.hub.event(EventUnavailable, d.key)
	ev.Channel = channelID
	d.hub.broadcast(ev)
}

func (d *deviceEvents) OnUnreachable(err error) {
	ev := d.hub.event(EventUnreachable, d.key)
	if err != nil {
		ev.Error = err.Error()
	}
	d.hub.broadcast(ev)
}

func (d *deviceEvents) OnRemoved() {
	d.hub.broadcast(d.hub.event(EventRemoved, d.key))
}
