package handler

import (
	"echonet-bridge/echonet_lite"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRegistry はプロセスの標準コレクタを登録したレジストリを返します。
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// MetricsHandler は /metrics 用の HTTP ハンドラを返します。
func MetricsHandler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// Metrics は Messenger とデバイスの状態遷移を数えます。nil のままでも使えます。
type Metrics struct {
	FramesSent      *prometheus.CounterVec   // labels: esv
	FramesReceived  *prometheus.CounterVec   // labels: esv
	FramesDropped   *prometheus.CounterVec   // labels: reason
	Timeouts        *prometheus.CounterVec   // labels: kind
	LateResponses   *prometheus.CounterVec   // labels: kind
	ResponseLatency *prometheus.HistogramVec // labels: kind
	Unreachable     prometheus.Counter
	Devices         prometheus.Gauge
	ListenerQueue   prometheus.Gauge
	ListenerDropped prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		FramesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "echonet_frames_sent_total",
			Help: "ECHONET Lite frames sent by service code.",
		}, []string{"esv"}),
		FramesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "echonet_frames_received_total",
			Help: "ECHONET Lite frames received by service code.",
		}, []string{"esv"}),
		FramesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "echonet_frames_dropped_total",
			Help: "Frames dropped before reaching a device.",
		}, []string{"reason"}),
		Timeouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "echonet_request_timeouts_total",
			Help: "Requests that timed out.",
		}, []string{"kind"}),
		LateResponses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "echonet_late_responses_total",
			Help: "Responses that arrived after their request timed out.",
		}, []string{"kind"}),
		ResponseLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "echonet_response_latency_seconds",
			Help:    "Round trip time of matched responses.",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"kind"}),
		Unreachable: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "echonet_device_unreachable_total",
			Help: "Times a device exhausted its retry budget.",
		}),
		Devices: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "echonet_devices",
			Help: "Objects currently registered with the messenger.",
		}),
		ListenerQueue: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "echonet_listener_queue_length",
			Help: "Notifications waiting for delivery to listeners.",
		}),
		ListenerDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "echonet_listener_dropped_total",
			Help: "Value updates dropped because listeners fell behind.",
		}),
	}
	reg.MustRegister(m.FramesSent, m.FramesReceived, m.FramesDropped, m.Timeouts, m.LateResponses,
		m.ResponseLatency, m.Unreachable, m.Devices, m.ListenerQueue, m.ListenerDropped)
	return m
}

func (m *Metrics) frameSent(esv echonet_lite.ESVType) {
	if m != nil {
		m.FramesSent.WithLabelValues(esv.String()).Inc()
	}
}

func (m *Metrics) frameReceived(esv echonet_lite.ESVType) {
	if m != nil {
		m.FramesReceived.WithLabelValues(esv.String()).Inc()
	}
}

func (m *Metrics) frameDropped(reason string) {
	if m != nil {
		m.FramesDropped.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) timeout(kind RequestKind) {
	if m != nil {
		m.Timeouts.WithLabelValues(kind.String()).Inc()
	}
}

func (m *Metrics) lateResponse(kind RequestKind) {
	if m != nil {
		m.LateResponses.WithLabelValues(kind.String()).Inc()
	}
}

func (m *Metrics) latency(kind RequestKind, d time.Duration) {
	if m != nil {
		m.ResponseLatency.WithLabelValues(kind.String()).Observe(d.Seconds())
	}
}

func (m *Metrics) unreachable() {
	if m != nil {
		m.Unreachable.Inc()
	}
}

func (m *Metrics) setDevices(n int) {
	if m != nil {
		m.Devices.Set(float64(n))
	}
}

func (m *Metrics) setListenerQueue(n int) {
	if m != nil {
		m.ListenerQueue.Set(float64(n))
	}
}

func (m *Metrics) listenerDropped() {
	if m != nil {
		m.ListenerDropped.Inc()
	}
}
