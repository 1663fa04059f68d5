// Package capture photographs a batch of markers one at a time: select the
// marker, let the camera settle, grab a frame, move on.
package capture

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"trackamole/internal/utils"
)

// SettleDelay is how long the camera is given to reach a marker before the
// frame is grabbed.
const SettleDelay = 1500 * time.Millisecond

var ErrClosed = errors.New("capture: sequencer closed")

// State of the sequencer.
type State int

const (
	Idle State = iota
	Selecting
)

func (s State) String() string {
	if s == Selecting {
		return "selecting"
	}
	return "idle"
}

// Selector makes a marker the current selection so the camera flies to it.
type Selector interface {
	SelectMarker(id int64)
}

// Surface renders whatever the camera currently sees.
type Surface interface {
	RenderCurrentFrame() ([]byte, error)
}

// Progress is published after every step and when a batch finishes.
type Progress struct {
	Batch     string
	Marker    int64 // marker just processed
	Captured  bool
	Remaining int
}

// Sequencer runs capture batches. At most one capture is in flight; all
// methods are safe for concurrent use.
type Sequencer struct {
	sel    Selector
	surf   Surface
	settle time.Duration
	log    *utils.Logger

	mu      sync.Mutex
	state   State
	queue   []int64
	results map[int64][]byte
	batch   string
	timer   *time.Timer
	gen     uint64 // invalidates timers from an earlier step
	idle    chan struct{}
	closed  bool
	subs    map[int]func(Progress)
	nextSub int
}

// New returns an idle sequencer. settle <= 0 selects SettleDelay.
func New(sel Selector, surf Surface, settle time.Duration, log *utils.Logger) *Sequencer {
	if settle <= 0 {
		settle = SettleDelay
	}
	idle := make(chan struct{})
	close(idle)
	return &Sequencer{
		sel:     sel,
		surf:    surf,
		settle:  settle,
		log:     log,
		results: make(map[int64][]byte),
		idle:    idle,
		subs:    make(map[int]func(Progress)),
	}
}

// EnqueueBatch clears previous results and queues ids, starting work if the
// sequencer is idle. It returns the batch ID.
func (s *Sequencer) EnqueueBatch(ids []int64) (string, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", ErrClosed
	}
	s.results = make(map[int64][]byte)
	s.queue = append(s.queue, ids...)
	s.batch = uuid.NewString()
	batch := s.batch
	start := s.state == Idle && len(s.queue) > 0
	if start {
		s.state = Selecting
		s.idle = make(chan struct{})
	}
	s.mu.Unlock()

	s.log.Infof("capture batch %s: %d markers queued", batch, len(ids))
	if start {
		s.step()
	}
	return batch, nil
}

// step selects the head of the queue and arms the settle timer. Must be
// called without the lock while state is Selecting.
func (s *Sequencer) step() {
	s.mu.Lock()
	if s.closed || len(s.queue) == 0 {
		s.mu.Unlock()
		return
	}
	head := s.queue[0]
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	s.sel.SelectMarker(head)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || gen != s.gen {
		return
	}
	s.timer = time.AfterFunc(s.settle, func() { s.capture(gen) })
}

func (s *Sequencer) capture(gen uint64) {
	s.mu.Lock()
	if s.closed || gen != s.gen || len(s.queue) == 0 {
		s.mu.Unlock()
		return
	}
	head := s.queue[0]
	s.mu.Unlock()

	frame, err := s.surf.RenderCurrentFrame()

	s.mu.Lock()
	if s.closed || gen != s.gen {
		s.mu.Unlock()
		return
	}
	if err != nil {
		s.log.Errorf("capture marker %d: %v", head, err)
	} else {
		s.results[head] = frame
	}
	s.queue = s.queue[1:]
	s.timer = nil
	p := Progress{Batch: s.batch, Marker: head, Captured: err == nil, Remaining: len(s.queue)}
	more := len(s.queue) > 0
	if !more {
		s.state = Idle
		close(s.idle)
	}
	fns := s.listeners()
	s.mu.Unlock()

	for _, fn := range fns {
		fn(p)
	}
	if more {
		s.step()
	}
}

func (s *Sequencer) listeners() []func(Progress) {
	fns := make([]func(Progress), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	return fns
}

// Subscribe registers fn for progress updates. fn runs on the sequencer's
// timer goroutine and must not block.
func (s *Sequencer) Subscribe(fn func(Progress)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

// Wait blocks until the queue drains, ctx is done or the sequencer closes.
func (s *Sequencer) Wait(ctx context.Context) error {
	s.mu.Lock()
	idle, closed := s.idle, s.closed
	s.mu.Unlock()
	if closed {
		return ErrClosed
	}
	select {
	case <-idle:
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.closed {
			return ErrClosed
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Sequencer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Sequencer) QueueLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Results returns a copy of the frames captured for the current batch.
func (s *Sequencer) Results() map[int64][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int64][]byte, len(s.results))
	for id, b := range s.results {
		out[id] = b
	}
	return out
}

// Close cancels the pending settle timer and discards the queue. Captured
// results stay readable; nothing changes afterwards.
func (s *Sequencer) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if n := len(s.queue); n > 0 {
		s.log.Warnf("capture batch %s: closed with %d markers pending", s.batch, n)
	}
	s.queue = nil
	s.gen++
	if s.state == Selecting {
		s.state = Idle
		close(s.idle)
	}
}
