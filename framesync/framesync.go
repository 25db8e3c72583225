// Package framesync pairs two independent frame streams positionally: the
// n-th frame submitted on input 0 is matched with the n-th frame submitted
// on input 1. No temporal resampling takes place; rate matching is the
// producers' responsibility.
package framesync

import (
	"errors"
	"fmt"
	"sync"

	"github.com/GreatValueCreamSoda/govidcompare/video"
)

// ErrInputEnded is returned by Submit when the target input has already
// signalled end-of-stream.
var ErrInputEnded = errors.New("input already signalled end-of-stream")

// DefaultBound is the per-input queue bound used by New when the caller
// passes a non-positive value. A bound of 1 is already sufficient for
// correctness; 2 lets a producer stay one frame ahead of the drive loop.
const DefaultBound = 2

// State is the outcome of a Poll call.
type State int

const (
	// StateWait means at least one queue is empty and neither input has
	// signalled end-of-stream.
	StateWait State = iota

	// StatePair means a frame pair was dequeued.
	StatePair

	// StateEnd means an input signalled end-of-stream and its queue is
	// drained; no further pairs will be produced.
	StateEnd
)

func (s State) String() string {
	switch s {
	case StateWait:
		return "wait"
	case StatePair:
		return "pair"
	case StateEnd:
		return "end"
	}
	return "unknown"
}

// Pair is a positionally matched (ref, cmp) tuple. Index is the pair's
// sequence number, starting at 0 and strictly increasing. The pair's
// nominal time is Ref.PTS.
type Pair struct {
	Index    int
	Ref, Cmp *video.Frame
}

// Synchronizer holds one bounded FIFO per input behind a single coarse
// lock. Submit blocks while its queue is at the bound; Poll dequeues the
// heads of both queues when both are ready.
type Synchronizer struct {
	mu      sync.Mutex
	notFull [2]*sync.Cond
	ready   *sync.Cond

	queues [2][]*video.Frame
	ended  [2]bool
	bound  int
	next   int // index of the next pair to emit
}

// New creates a Synchronizer with the given per-input queue bound.
func New(bound int) *Synchronizer {
	if bound < 1 {
		bound = DefaultBound
	}
	s := &Synchronizer{bound: bound}
	s.notFull[0] = sync.NewCond(&s.mu)
	s.notFull[1] = sync.NewCond(&s.mu)
	s.ready = sync.NewCond(&s.mu)
	return s
}

// Submit enqueues a frame on the given input, blocking while the input's
// queue is at its bound. Frames submitted after the input signalled
// end-of-stream are refused.
func (s *Synchronizer) Submit(input int, f *video.Frame) error {
	if input < 0 || input > 1 {
		return fmt.Errorf("invalid input index %d", input)
	}
	if f == nil {
		return fmt.Errorf("nil frame submitted on input %d", input)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for len(s.queues[input]) >= s.bound && !s.ended[input] {
		s.notFull[input].Wait()
	}

	if s.ended[input] {
		return fmt.Errorf("input %d: %w", input, ErrInputEnded)
	}

	s.queues[input] = append(s.queues[input], f)
	s.ready.Broadcast()
	return nil
}

// AwaitReady blocks until a Poll could make progress: both queues hold a
// frame, or an input is terminal. Drivers use it to park between Drive
// calls instead of spinning on StateWait.
func (s *Synchronizer) AwaitReady() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		if s.ended[0] || s.ended[1] {
			return
		}
		if len(s.queues[0]) > 0 && len(s.queues[1]) > 0 {
			return
		}
		s.ready.Wait()
	}
}

// SignalEnd marks an input terminal. It is idempotent and wakes any Submit
// blocked on the input so it can fail fast.
func (s *Synchronizer) SignalEnd(input int) {
	if input < 0 || input > 1 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ended[input] {
		return
	}
	s.ended[input] = true
	s.notFull[input].Broadcast()
	s.ready.Broadcast()
}

// Poll attempts to dequeue the next pair.
//
// It returns StatePair with both queue heads dequeued when both inputs have
// a frame ready, StateEnd when an input is terminal with an empty queue,
// and StateWait otherwise.
func (s *Synchronizer) Poll() (Pair, State) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := 0; i < 2; i++ {
		if len(s.queues[i]) == 0 && s.ended[i] {
			return Pair{}, StateEnd
		}
	}

	if len(s.queues[0]) == 0 || len(s.queues[1]) == 0 {
		return Pair{}, StateWait
	}

	pair := Pair{Index: s.next, Ref: s.queues[0][0], Cmp: s.queues[1][0]}
	s.next++

	for i := 0; i < 2; i++ {
		s.queues[i][0] = nil
		s.queues[i] = s.queues[i][1:]
		s.notFull[i].Signal()
	}

	return pair, StatePair
}

// Reset drops all queued frames, clears the end-of-stream flags and rewinds
// the pair index. Space freed by the drop lets blocked Submit calls
// proceed, but producers observing an external stop signal remain
// responsible for their own shutdown.
func (s *Synchronizer) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := 0; i < 2; i++ {
		s.queues[i] = nil
		s.ended[i] = false
		s.notFull[i].Broadcast()
	}
	s.next = 0
	s.ready.Broadcast()
}

// Pending returns the number of queued frames on the given input. Intended
// for tests and introspection.
func (s *Synchronizer) Pending(input int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if input < 0 || input > 1 {
		return 0
	}
	return len(s.queues[input])
}
