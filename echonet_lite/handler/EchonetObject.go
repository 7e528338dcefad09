package handler

import (
	"echonet-bridge/echonet_lite"
	"log/slog"
	"time"
)

// EchonetObject は Messenger が扱うオブジェクトの共通の振る舞いです。
// 実装はこのパッケージの EchonetDevice と EchonetProfileNode で、
// メソッドはすべて Messenger のイベントループから呼ばれます。
type EchonetObject interface {
	Key() echonet_lite.InstanceKey
	// buildPollMessage は Get フレームを b に組み立てたときに true を返します。
	buildPollMessage(b *echonet_lite.MessageBuilder, tids func() echonet_lite.TIDType, now time.Time, controller echonet_lite.InstanceKey) bool
	// buildUpdateMessage は SetC フレームを b に組み立てたときに true を返します。
	buildUpdateMessage(b *echonet_lite.MessageBuilder, tids func() echonet_lite.TIDType, now time.Time, controller echonet_lite.InstanceKey) bool
	applyHeader(esv echonet_lite.ESVType, tid echonet_lite.TIDType, now time.Time)
	applyProperty(source echonet_lite.InstanceKey, esv echonet_lite.ESVType, epc echonet_lite.EPCType, edt []byte)
	refresh(channelID string) error
	update(channelID string, state echonet_lite.State) error
	removed()
}

// objectConfig はオブジェクトを作るときの共通設定です。
type objectConfig struct {
	catalog            *echonet_lite.Catalog
	pollInterval       time.Duration
	retryTimeout       time.Duration
	maxRetries         int
	oldRequestCapacity int
	logger             *slog.Logger
	metrics            *Metrics
}

// baseObject は Get/Set の送信中リクエストと取得待ちプロパティを管理します。
type baseObject struct {
	key     echonet_lite.InstanceKey
	catalog *echonet_lite.Catalog
	logger  *slog.Logger
	metrics *Metrics

	pendingGets echonet_lite.PropertyMap
	getInflight *InflightRequest
	setInflight *InflightRequest

	pollInterval time.Duration
	maxRetries   int
	lastPoll     time.Time
	refreshDue   bool // 次のティックで間隔に関係なく Get を送る
	unreachable  bool

	// onUnreachable が nil のときは到達不能を通知しない
	onUnreachable func(err error)
}

func newBaseObject(key echonet_lite.InstanceKey, cfg objectConfig, initial ...echonet_lite.EPCType) baseObject {
	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}
	return baseObject{
		key:          key,
		catalog:      cfg.catalog,
		logger:       logger.With("device", key.String()),
		metrics:      cfg.metrics,
		pendingGets:  echonet_lite.NewPropertyMap(initial...),
		getInflight:  NewInflightRequest(KindGet, cfg.retryTimeout, cfg.oldRequestCapacity),
		setInflight:  NewInflightRequest(KindSet, cfg.retryTimeout, cfg.oldRequestCapacity),
		pollInterval: cfg.pollInterval,
		maxRetries:   cfg.maxRetries,
		refreshDue:   true,
	}
}

func (o *baseObject) Key() echonet_lite.InstanceKey {
	return o.key
}

// setTimeouts は間隔とタイムアウトを変更します。送信中の状態と履歴はそのまま残ります。
func (o *baseObject) setTimeouts(pollInterval, retryTimeout time.Duration) {
	o.pollInterval = pollInterval
	o.getInflight.SetTimeout(retryTimeout)
	o.setInflight.SetTimeout(retryTimeout)
}

// checkInflight は r が送信中かどうかを調べ、タイムアウトしていれば記録します。
// busy は応答待ちで送信できないこと、retry は今回の送信が再送であること、
// exhausted は再送回数を使い切ったことを表します。
func (o *baseObject) checkInflight(r *InflightRequest, now time.Time) (busy, retry, exhausted bool) {
	if !r.IsInflight() {
		return false, false, false
	}
	if !r.HasTimedOut(now) {
		return true, false, false
	}

	o.logger.Warn("リクエストがタイムアウトしました",
		"kind", r.Kind(), "tid", r.TID(), "timeout", r.Timeout(), "count", r.TimeoutCount()+1)
	r.MarkTimedOut()
	o.metrics.timeout(r.Kind())

	if r.TimeoutCount() <= o.maxRetries {
		return false, true, false
	}
	retries := r.TimeoutCount() - 1
	r.ResetTimeoutCount()
	o.reportUnreachable(r.Kind(), retries)
	return false, false, true
}

func (o *baseObject) reportUnreachable(kind RequestKind, retries int) {
	if o.onUnreachable == nil {
		return
	}
	o.metrics.unreachable()
	if o.unreachable {
		return
	}
	o.unreachable = true
	err := ErrRetriesExhausted{Key: o.key, Kind: kind, Retries: retries}
	o.logger.Warn("デバイスに到達できません", "err", err)
	o.onUnreachable(err)
}

// pollGets は取得待ちのプロパティをまとめて1つの Get フレームにします。
// 応答待ちの間は送らず、それ以外は再送・リフレッシュ要求・ポーリング間隔のいずれかで送ります。
func (o *baseObject) pollGets(b *echonet_lite.MessageBuilder, tids func() echonet_lite.TIDType, now time.Time, controller echonet_lite.InstanceKey) bool {
	if len(o.pendingGets) == 0 {
		return false
	}
	busy, retry, exhausted := o.checkInflight(o.getInflight, now)
	if busy {
		return false
	}
	if exhausted {
		// 次のポーリング間隔まで待つ
		o.lastPoll = now
		return false
	}
	if !retry && !o.refreshDue && now.Sub(o.lastPoll) < o.pollInterval {
		return false
	}

	tid := tids()
	b.Start(tid, controller, o.key, echonet_lite.ESVGet)
	for _, epc := range o.pendingGets.EPCs() {
		if err := b.AppendEPCRequest(epc); err != nil {
			o.logger.Warn("Get に含められないプロパティがあります", "epc", epc, "err", err)
			break
		}
	}
	o.getInflight.RequestSent(tid, now)
	o.lastPoll = now
	o.refreshDue = false
	return true
}

// matchHeader は応答の tid を送信中のリクエストと照合し、一致したときに true を返します。
// 一致しない応答は、タイムアウト済みのリクエストへの遅れた応答かどうかを調べて記録します。
func (o *baseObject) matchHeader(esv echonet_lite.ESVType, tid echonet_lite.TIDType, now time.Time) bool {
	var r *InflightRequest
	switch esv {
	case echonet_lite.ESVGet_Res, echonet_lite.ESVGet_SNA:
		r = o.getInflight
	case echonet_lite.ESVSet_Res, echonet_lite.ESVSetC_SNA:
		r = o.setInflight
	default:
		return false
	}

	if latency, ok := r.ResponseReceived(tid, now); ok {
		o.logger.Debug("response time", "esv", esv, "tid", tid, "latency", latency)
		o.metrics.latency(r.Kind(), latency)
		if o.unreachable {
			o.unreachable = false
			o.logger.Info("デバイスが応答しました")
		}
		return true
	}
	if latency, ok := r.CheckOldResponse(tid, now); ok {
		o.logger.Warn("Timed out request answered late", "esv", esv, "tid", tid, "latency", latency)
		o.metrics.lateResponse(r.Kind())
		return false
	}
	o.logger.Warn("Unexpected response", "esv", esv, "tid", tid)
	return false
}
