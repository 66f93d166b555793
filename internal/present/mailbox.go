// Package present hands composited frames from the render thread to any
// number of consumers without ever blocking the render thread.
//
// Topology:
//
//	render thread ──Publish──▶ inbox (1 slot) ──fanout goroutine──▶ consumer slots (1 slot each)
//
// Every hop is a single-slot mailbox with overwrite semantics: a slow
// consumer only ever sees the newest frame and the frames it missed are
// counted as drops.
package present

import (
	"context"
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"time"
)

// idleThreshold marks a consumer idle when it has not read a frame for this long.
const idleThreshold = 30 * time.Second

// Frame is one presented output image.
//
// Image is owned by the mailbox once published and shared by reference
// with every consumer; nobody may modify it.
type Frame struct {
	Image     *image.RGBA
	Seq       uint64
	Timestamp time.Time
	TraceID   string
	SessionID string
}

// Stats is a snapshot of mailbox state
type Stats struct {
	// InboxDrops counts frames overwritten before the fanout loop took them
	InboxDrops uint64
	// Published counts frames accepted by Publish
	Published uint64
	// Consumers maps consumer id to its statistics
	Consumers map[string]ConsumerStats
}

// ConsumerStats tracks one consumer slot
type ConsumerStats struct {
	LastConsumedAt   time.Time
	LastConsumedSeq  uint64
	ConsecutiveDrops uint64
	TotalDrops       uint64
	IsIdle           bool
}

type slot struct {
	mu    sync.Mutex
	cond  *sync.Cond
	frame *Frame

	lastConsumedAt   time.Time
	lastConsumedSeq  uint64
	consecutiveDrops uint64
	totalDrops       uint64

	closed bool
}

// Mailbox is a latest-frame-only broadcast point.
//
// Thread-safety: all methods are safe for concurrent use. Each read func
// returned by Subscribe must be driven by a single goroutine.
type Mailbox struct {
	inboxMu    sync.Mutex
	inboxCond  *sync.Cond
	inboxFrame *Frame
	inboxDrops uint64
	published  uint64

	slots sync.Map // consumer id → *slot

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	startedMu sync.Mutex
	started   bool
	stopping  atomic.Bool
}

// New creates a stopped mailbox.
func New() *Mailbox {
	m := &Mailbox{}
	m.inboxCond = sync.NewCond(&m.inboxMu)
	return m
}

// Start launches the fanout loop. It runs until ctx is cancelled or Stop
// is called.
func (m *Mailbox) Start(ctx context.Context) error {
	m.startedMu.Lock()
	defer m.startedMu.Unlock()

	if m.started {
		return fmt.Errorf("present: mailbox already started")
	}
	if m.stopping.Load() {
		return fmt.Errorf("present: mailbox stopped")
	}

	m.ctx, m.cancel = context.WithCancel(ctx)
	m.started = true

	m.wg.Add(1)
	go m.fanoutLoop()

	// wake the loop when the parent context ends
	go func() {
		<-m.ctx.Done()
		m.inboxMu.Lock()
		m.inboxCond.Broadcast()
		m.inboxMu.Unlock()
	}()

	return nil
}

// Stop ends the fanout loop and releases every consumer: their read funcs
// return nil. A stopped mailbox cannot be restarted. Idempotent.
func (m *Mailbox) Stop() error {
	m.startedMu.Lock()
	if !m.started {
		m.startedMu.Unlock()
		return nil
	}
	m.started = false
	m.startedMu.Unlock()

	m.stopping.Store(true)
	m.cancel()

	m.inboxMu.Lock()
	m.inboxCond.Broadcast()
	m.inboxMu.Unlock()

	m.wg.Wait()

	m.slots.Range(func(key, value any) bool {
		m.Unsubscribe(key.(string))
		return true
	})

	return nil
}

// Publish hands a frame to the mailbox and returns immediately. An
// unconsumed frame still in the inbox is overwritten and counted as a drop.
func (m *Mailbox) Publish(frame *Frame) {
	if frame == nil || m.stopping.Load() {
		return
	}

	m.inboxMu.Lock()
	if m.inboxFrame != nil {
		atomic.AddUint64(&m.inboxDrops, 1)
	}
	m.inboxFrame = frame
	atomic.AddUint64(&m.published, 1)
	m.inboxCond.Signal()
	m.inboxMu.Unlock()
}

func (m *Mailbox) fanoutLoop() {
	defer m.wg.Done()

	for {
		m.inboxMu.Lock()
		for m.inboxFrame == nil {
			if m.ctx.Err() != nil {
				m.inboxMu.Unlock()
				return
			}
			m.inboxCond.Wait()
			if m.ctx.Err() != nil {
				m.inboxMu.Unlock()
				return
			}
		}
		frame := m.inboxFrame
		m.inboxFrame = nil
		m.inboxMu.Unlock()

		m.slots.Range(func(_, value any) bool {
			deliver(value.(*slot), frame)
			return true
		})
	}
}

func deliver(s *slot, frame *Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	if s.frame != nil {
		s.consecutiveDrops++
		s.totalDrops++
	}
	s.frame = frame
	s.cond.Signal()
}

// Subscribe registers a consumer and returns its blocking read func.
//
// The read func blocks until a frame is available and returns nil once the
// consumer is unsubscribed or the mailbox stops. Subscribing to a stopping
// mailbox yields a read func that returns nil immediately.
func (m *Mailbox) Subscribe(id string) func() *Frame {
	if m.stopping.Load() {
		return func() *Frame { return nil }
	}

	s := &slot{lastConsumedAt: time.Now()}
	s.cond = sync.NewCond(&s.mu)
	m.slots.Store(id, s)

	return func() *Frame {
		s.mu.Lock()
		defer s.mu.Unlock()

		for s.frame == nil && !s.closed {
			s.cond.Wait()
		}
		if s.closed {
			return nil
		}

		frame := s.frame
		s.frame = nil
		s.lastConsumedAt = time.Now()
		s.lastConsumedSeq = frame.Seq
		s.consecutiveDrops = 0
		return frame
	}
}

// Unsubscribe releases a consumer. Idempotent.
func (m *Mailbox) Unsubscribe(id string) {
	val, ok := m.slots.LoadAndDelete(id)
	if !ok {
		return
	}

	s := val.(*slot)
	s.mu.Lock()
	s.closed = true
	s.cond.Signal()
	s.mu.Unlock()
}

// Stats returns a snapshot of mailbox counters.
func (m *Mailbox) Stats() Stats {
	stats := Stats{
		InboxDrops: atomic.LoadUint64(&m.inboxDrops),
		Published:  atomic.LoadUint64(&m.published),
		Consumers:  make(map[string]ConsumerStats),
	}

	m.slots.Range(func(key, value any) bool {
		s := value.(*slot)
		s.mu.Lock()
		stats.Consumers[key.(string)] = ConsumerStats{
			LastConsumedAt:   s.lastConsumedAt,
			LastConsumedSeq:  s.lastConsumedSeq,
			ConsecutiveDrops: s.consecutiveDrops,
			TotalDrops:       s.totalDrops,
			IsIdle:           time.Since(s.lastConsumedAt) > idleThreshold,
		}
		s.mu.Unlock()
		return true
	})

	return stats
}
