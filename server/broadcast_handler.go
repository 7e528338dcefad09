package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// BroadcastHandler は minLevel 以上のログを WebSocket クライアントにも配信する slog.Handler
type BroadcastHandler struct {
	inner     slog.Handler
	transport WebSocketTransport
	minLevel  slog.Level
	attrs     []slog.Attr
}

func NewBroadcastHandler(inner slog.Handler, transport WebSocketTransport, minLevel slog.Level) *BroadcastHandler {
	return &BroadcastHandler{
		inner:     inner,
		transport: transport,
		minLevel:  minLevel,
	}
}

func (h *BroadcastHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *BroadcastHandler) Handle(ctx context.Context, r slog.Record) error {
	if err := h.inner.Handle(ctx, r); err != nil {
		return err
	}
	if r.Level >= h.minLevel && h.transport != nil {
		h.broadcastLog(r)
	}
	return nil
}

func (h *BroadcastHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &BroadcastHandler{
		inner:     h.inner.WithAttrs(attrs),
		transport: h.transport,
		minLevel:  h.minLevel,
		attrs:     append(append([]slog.Attr(nil), h.attrs...), attrs...),
	}
}

// WithGroup のグループは配信するイベントには反映しない
func (h *BroadcastHandler) WithGroup(name string) slog.Handler {
	return &BroadcastHandler{
		inner:     h.inner.WithGroup(name),
		transport: h.transport,
		minLevel:  h.minLevel,
		attrs:     h.attrs,
	}
}

// formatAttributeValue は slog.Value を JSON に載せられる値にする
func formatAttributeValue(v slog.Value) any {
	v = v.Resolve()
	switch v.Kind() {
	case slog.KindString:
		return v.String()
	case slog.KindInt64:
		return v.Int64()
	case slog.KindUint64:
		return v.Uint64()
	case slog.KindFloat64:
		return v.Float64()
	case slog.KindBool:
		return v.Bool()
	case slog.KindTime:
		return v.Time().Format(time.RFC3339)
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindAny:
		anyValue := v.Any()
		if anyValue == nil {
			return nil
		}
		if err, ok := anyValue.(error); ok {
			return err.Error()
		}
		if stringer, ok := anyValue.(fmt.Stringer); ok {
			return stringer.String()
		}
		return fmt.Sprintf("%+v", anyValue)
	default:
		return v.String()
	}
}

func (h *BroadcastHandler) broadcastLog(r slog.Record) {
	attrs := make(map[string]any, len(h.attrs)+r.NumAttrs())
	for _, a := range h.attrs {
		attrs[a.Key] = formatAttributeValue(a.Value)
	}
	r.Attrs(func(a slog.Attr) bool {
		attrs[a.Key] = formatAttributeValue(a.Value)
		return true
	})

	payload := map[string]any{
		"type":       EventLog,
		"level":      r.Level.String(),
		"message":    r.Message,
		"time":       r.Time.Format(time.RFC3339),
		"attributes": attrs,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		// ここでログを出すと再帰する
		return
	}
	_ = h.transport.BroadcastMessage(data)
}
