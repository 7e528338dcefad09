package handler

import (
	"log/slog"
	"sync"
)

// DefaultListenerQueueSize は配送待ちの通知の上限の既定値です。
const DefaultListenerQueueSize = 1024

// dispatcher は listener への通知を1つの goroutine で順番に実行します。
// post はブロックしません。キューが limit に達すると、値の更新通知を古いものから捨てます。
// 初期化・削除などの通知は捨てません。
type dispatcher struct {
	logger  *slog.Logger
	metrics *Metrics
	limit   int

	mu      sync.Mutex
	cond    *sync.Cond
	queue   []queued
	running bool
	closed  bool
	done    chan struct{}

	overflowing bool // キューが空になるまで警告を繰り返さない
}

type queued struct {
	fn        func()
	droppable bool
}

func newDispatcher(logger *slog.Logger, limit int, metrics *Metrics) *dispatcher {
	if limit <= 0 {
		limit = DefaultListenerQueueSize
	}
	d := &dispatcher{logger: logger, metrics: metrics, limit: limit, done: make(chan struct{})}
	d.cond = sync.NewCond(&d.mu)
	go d.loop()
	return d
}

// post は必ず配送する通知を積みます。
func (d *dispatcher) post(fn func()) {
	d.enqueue(queued{fn: fn})
}

// postDroppable はキューがあふれたときに捨ててよい通知を積みます。
func (d *dispatcher) postDroppable(fn func()) {
	d.enqueue(queued{fn: fn, droppable: true})
}

func (d *dispatcher) enqueue(q queued) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	// 捨てられる古い通知が無いときは、新しい更新通知のほうを捨てる
	if len(d.queue) >= d.limit && !d.dropOldest() && q.droppable {
		d.dropped()
		return
	}
	d.queue = append(d.queue, q)
	d.metrics.setListenerQueue(len(d.queue))
	d.cond.Broadcast()
}

// dropOldest は最も古い捨ててよい通知をキューから取り除きます。d.mu を持って呼びます。
func (d *dispatcher) dropOldest() bool {
	for i, q := range d.queue {
		if q.droppable {
			d.queue = append(d.queue[:i], d.queue[i+1:]...)
			d.dropped()
			return true
		}
	}
	return false
}

func (d *dispatcher) dropped() {
	d.metrics.listenerDropped()
	if !d.overflowing {
		d.overflowing = true
		d.logger.Warn("listener の処理が追いつかないため、値の更新通知を捨てます", "limit", d.limit)
	}
}

func (d *dispatcher) loop() {
	defer close(d.done)
	for {
		d.mu.Lock()
		if len(d.queue) == 0 {
			d.overflowing = false
		}
		for len(d.queue) == 0 && !d.closed {
			d.cond.Wait()
		}
		if len(d.queue) == 0 {
			d.mu.Unlock()
			return
		}
		fn := d.queue[0].fn
		d.queue[0] = queued{}
		d.queue = d.queue[1:]
		d.running = true
		d.metrics.setListenerQueue(len(d.queue))
		d.mu.Unlock()

		d.run(fn)

		d.mu.Lock()
		d.running = false
		d.cond.Broadcast()
		d.mu.Unlock()
	}
}

func (d *dispatcher) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("listener panicked", "panic", r)
		}
	}()
	fn()
}

// drain はキューが空になり、実行中の通知が終わるまで待ちます。
func (d *dispatcher) drain() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for len(d.queue) > 0 || d.running {
		d.cond.Wait()
	}
}

// stop は新しい通知の受け付けをやめます。残っている通知は配送を続けます。
func (d *dispatcher) stop() {
	d.mu.Lock()
	d.closed = true
	d.cond.Broadcast()
	d.mu.Unlock()
}

// wait は stop の後、残りの通知がすべて配送されて goroutine が終わるまで待ちます。
// 通知の中から呼ぶと戻りません。
func (d *dispatcher) wait() {
	<-d.done
}

// close は残っている通知をすべて配送してから goroutine を終了します。
func (d *dispatcher) close() {
	d.stop()
	d.wait()
}
