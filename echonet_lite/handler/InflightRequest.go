package handler

import (
	"echonet-bridge/echonet_lite"
	"time"
)

// RequestKind は追跡するリクエストの種類 (Get/Set) です。
type RequestKind int

const (
	KindGet RequestKind = iota
	KindSet
)

func (k RequestKind) String() string {
	switch k {
	case KindGet:
		return "get"
	case KindSet:
		return "set"
	default:
		return "unknown"
	}
}

// DefaultOldRequestCapacity はタイムアウト済みリクエストを覚えておく件数の既定値です。
const DefaultOldRequestCapacity = 16

// InflightRequest はデバイスごと・種類ごとに1つだけ存在する送信中リクエストの記録です。
// 再送のたびに作り直さず、同じ値を更新して使います。
// sent がゼロ値のときは送信中ではなく、tid は意味を持ちません。
type InflightRequest struct {
	kind         RequestKind
	tid          echonet_lite.TIDType
	sent         time.Time
	timeout      time.Duration
	timeoutCount int
	answered     bool // 最後に送った tid に一致する応答を受け取った

	// タイムアウトした tid と送信時刻。capacity を超えたら古いものから捨てる。
	oldRequests map[echonet_lite.TIDType]time.Time
	oldOrder    []echonet_lite.TIDType
	capacity    int
}

func NewInflightRequest(kind RequestKind, timeout time.Duration, capacity int) *InflightRequest {
	if capacity <= 0 {
		capacity = DefaultOldRequestCapacity
	}
	return &InflightRequest{
		kind:        kind,
		timeout:     timeout,
		oldRequests: make(map[echonet_lite.TIDType]time.Time, capacity),
		capacity:    capacity,
	}
}

func (r *InflightRequest) Kind() RequestKind {
	return r.kind
}

// TID は最後に送信したリクエストの tid です。
func (r *InflightRequest) TID() echonet_lite.TIDType {
	return r.tid
}

func (r *InflightRequest) Timeout() time.Duration {
	return r.timeout
}

// SetTimeout は以降の判定に使うタイムアウトを変更します。送信中の状態は保持されます。
func (r *InflightRequest) SetTimeout(timeout time.Duration) {
	r.timeout = timeout
}

func (r *InflightRequest) IsInflight() bool {
	return !r.sent.IsZero()
}

func (r *InflightRequest) TimeoutCount() int {
	return r.timeoutCount
}

func (r *InflightRequest) ResetTimeoutCount() {
	r.timeoutCount = 0
}

// RequestSent は tid のリクエストを now に送信したことを記録します。
func (r *InflightRequest) RequestSent(tid echonet_lite.TIDType, now time.Time) {
	r.tid = tid
	r.sent = now
	r.answered = false
}

// HasTimedOut は送信中かつ now >= 送信時刻 + timeout のときに true を返します。状態は変えません。
func (r *InflightRequest) HasTimedOut(now time.Time) bool {
	return r.IsInflight() && !now.Before(r.sent.Add(r.timeout))
}

// MarkTimedOut は送信中のリクエストをタイムアウト済みとして記録し、送信中でない状態に戻します。
// tid は遅れて届いた応答を判別するために oldRequests に残ります。
func (r *InflightRequest) MarkTimedOut() {
	if !r.IsInflight() {
		return
	}
	r.timeoutCount++
	r.remember(r.tid, r.sent)
	r.sent = time.Time{}
}

func (r *InflightRequest) remember(tid echonet_lite.TIDType, sent time.Time) {
	if _, ok := r.oldRequests[tid]; ok {
		r.forget(tid)
	}
	for len(r.oldOrder) >= r.capacity {
		delete(r.oldRequests, r.oldOrder[0])
		r.oldOrder = r.oldOrder[1:]
	}
	r.oldRequests[tid] = sent
	r.oldOrder = append(r.oldOrder, tid)
}

func (r *InflightRequest) forget(tid echonet_lite.TIDType) {
	delete(r.oldRequests, tid)
	for i, t := range r.oldOrder {
		if t == tid {
			r.oldOrder = append(r.oldOrder[:i], r.oldOrder[i+1:]...)
			break
		}
	}
}

// ResponseReceived は tid が送信中のリクエストと一致すれば送信中の状態を解除し、
// 応答時間を返します。一致しなければ何も変更しません。
func (r *InflightRequest) ResponseReceived(tid echonet_lite.TIDType, now time.Time) (time.Duration, bool) {
	if !r.IsInflight() || r.tid != tid {
		return 0, false
	}
	latency := now.Sub(r.sent)
	r.sent = time.Time{}
	r.timeoutCount = 0
	r.answered = true
	return latency, true
}

// Answered は tid が最後に送ったリクエストで、すでに応答を受け取っていれば true を返します。
// タイムアウトしたリクエストや送信前の tid には false を返します。
func (r *InflightRequest) Answered(tid echonet_lite.TIDType) bool {
	return !r.IsInflight() && r.answered && r.tid == tid
}

// CheckOldResponse はタイムアウト済みリクエストへの応答であれば記録から取り除き、
// 実際にかかった時間を返します。
func (r *InflightRequest) CheckOldResponse(tid echonet_lite.TIDType, now time.Time) (time.Duration, bool) {
	sent, ok := r.oldRequests[tid]
	if !ok {
		return 0, false
	}
	r.forget(tid)
	return now.Sub(sent), true
}

// OldRequests は記録しているタイムアウト済みリクエストの件数です。
func (r *InflightRequest) OldRequests() int {
	return len(r.oldRequests)
}
