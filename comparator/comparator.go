// Package comparator drives the pairwise frame comparison: it owns the
// configuration, the frame-pair synchronizer, the metric kernel and the
// stats writer, and forwards every reference frame unchanged to a
// downstream consumer.
package comparator

import (
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/GreatValueCreamSoda/govidcompare/blockingpool"
	"github.com/GreatValueCreamSoda/govidcompare/framesync"
	"github.com/GreatValueCreamSoda/govidcompare/metrics"
	"github.com/GreatValueCreamSoda/govidcompare/pixfmt"
	"github.com/GreatValueCreamSoda/govidcompare/stats"
	"github.com/GreatValueCreamSoda/govidcompare/video"
)

var (
	// ErrAlreadyConfigured is returned when configuration is mutated after
	// the engine has left the Idle state.
	ErrAlreadyConfigured = errors.New("comparator is already configured")

	// ErrNotConfigured is returned when frames are submitted or the drive
	// loop is entered before Configure.
	ErrNotConfigured = errors.New("comparator is not configured")
)

// ProgressCallback is invoked after each completed pair with the number of
// pairs processed so far.
type ProgressCallback func(done int)

// RecordCallback is invoked after each statistics record is written, with
// the record's index and scores. Used by callers that aggregate per-run
// summaries without re-reading the sink.
type RecordCallback func(index int, res metrics.Result)

// Consumer receives the forwarded reference frame of every completed pair.
//
// The pushed frame is only valid for the duration of the call; its backing
// buffers are recycled once Push returns. Consumers that retain frames must
// copy them.
type Consumer interface {
	Push(f *video.Frame) error
}

// ConsumerFunc adapts a function to the Consumer interface.
type ConsumerFunc func(f *video.Frame) error

func (fn ConsumerFunc) Push(f *video.Frame) error { return fn(f) }

// Geometry is the stream format both inputs must agree on, fixed by the
// caps notification that moves the engine out of Idle.
type Geometry struct {
	Width, Height int
	Format        pixfmt.PixelFormat
	FrameRate     video.Rational
}

// Config holds the two write-once options of the engine.
type Config struct {
	// Method selects the comparison metric. Defaults to SSIM.
	Method metrics.Method

	// StatsFile is the stats sink specification: "-" for stdout (the
	// default) or a filesystem path opened in append-create mode.
	StatsFile string
}

// State is the engine lifecycle state.
type State int

const (
	StateIdle State = iota
	StateConfigured
	StateRunning
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConfigured:
		return "configured"
	case StateRunning:
		return "running"
	case StateTerminated:
		return "terminated"
	}
	return "unknown"
}

// Comparator is the comparison engine. The zero value is not valid; use
// New.
//
// State, configuration and queue handoff sit behind a single coarse lock.
// The lock is not held while the metric kernel or the stats writer run, so
// producers can keep submitting during computation.
type Comparator struct {
	mu    sync.Mutex
	state State

	cfg Config
	geo Geometry

	sync   *framesync.Synchronizer
	metric metrics.Metric
	writer *stats.Writer

	downstream Consumer
	outPool    blockingpool.BlockingPool[*outBuffer]

	// recordIndex counts successfully written records; dropped pairs do not
	// advance it, keeping sink indices dense and strictly increasing.
	recordIndex int
	pairsDone   int

	progress ProgressCallback
	onRecord RecordCallback
}

// outBuffer holds the reusable plane storage for forwarded reference
// frames.
type outBuffer struct {
	planes [3][]byte
}

// outPoolSize bounds the number of in-flight forwarded frames. Push is
// synchronous, so one buffer is enough; a second avoids pool churn.
const outPoolSize = 2

// New creates an idle Comparator that will forward reference frames to
// downstream. A nil downstream discards forwarded frames. queueBound is the
// per-input frame queue bound; values below 1 select the default.
func New(downstream Consumer, queueBound int) *Comparator {
	if downstream == nil {
		downstream = ConsumerFunc(func(*video.Frame) error { return nil })
	}

	c := &Comparator{
		cfg:        Config{Method: metrics.MethodSSIM, StatsFile: stats.StdoutSink},
		sync:       framesync.New(queueBound),
		downstream: downstream,
		outPool:    blockingpool.NewBlockingPool[*outBuffer](outPoolSize),
	}
	for i := 0; i < outPoolSize; i++ {
		c.outPool.Put(&outBuffer{})
	}
	return c
}

// SetProgressCallback registers a callback invoked after every completed
// pair. Must be called before the first Drive. Pass nil to clear.
func (c *Comparator) SetProgressCallback(cb ProgressCallback) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.progress = cb
}

// SetRecordCallback registers a callback invoked for every written record.
// Must be called before the first Drive. Pass nil to clear.
func (c *Comparator) SetRecordCallback(cb RecordCallback) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onRecord = cb
}

// AwaitReady blocks until the synchronizer could produce a pair or has
// reached end-of-stream. Drivers call it between Drive invocations.
func (c *Comparator) AwaitReady() {
	c.sync.AwaitReady()
}

// State returns the engine's current lifecycle state.
func (c *Comparator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Config returns the active configuration.
func (c *Comparator) Config() Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg
}

// Configure fixes the stream geometry and the two write-once options and
// moves the engine from Idle to Configured.
//
// Both options are write-once: any call after the engine has left Idle is
// refused with ErrAlreadyConfigured and changes nothing. A format outside
// the supported set fails with pixfmt.ErrFormatUnsupported and is fatal for
// the session.
func (c *Comparator) Configure(geo Geometry, cfg Config) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateIdle {
		logrus.WithFields(logrus.Fields{
			"state":  c.state.String(),
			"method": cfg.Method.String(),
		}).Warn("ignoring configuration change after the engine left idle")
		return ErrAlreadyConfigured
	}

	if _, err := pixfmt.Describe(geo.Format); err != nil {
		return err
	}
	if geo.Width <= 0 || geo.Height <= 0 {
		return fmt.Errorf("invalid geometry %dx%d", geo.Width, geo.Height)
	}
	if !geo.FrameRate.IsValid() {
		return fmt.Errorf("invalid framerate %s", geo.FrameRate)
	}

	metric, err := metrics.New(cfg.Method)
	if err != nil {
		return err
	}

	if cfg.StatsFile == "" {
		cfg.StatsFile = stats.StdoutSink
	}

	c.geo = geo
	c.cfg = cfg
	c.metric = metric
	c.writer = stats.NewWriter(cfg.StatsFile)
	c.state = StateConfigured

	logrus.WithFields(logrus.Fields{
		"method":     cfg.Method.String(),
		"stats-file": cfg.StatsFile,
		"format":     geo.Format.String(),
		"geometry":   fmt.Sprintf("%dx%d", geo.Width, geo.Height),
	}).Info("comparator configured")

	return nil
}

// Submit enqueues a frame on input 0 (reference) or 1 (compare). It blocks
// while the input's queue is at its bound.
func (c *Comparator) Submit(input int, f *video.Frame) error {
	c.mu.Lock()
	if c.state == StateIdle {
		c.mu.Unlock()
		return ErrNotConfigured
	}
	c.mu.Unlock()

	return c.sync.Submit(input, f)
}

// SignalEnd marks an input terminal. Idempotent.
func (c *Comparator) SignalEnd(input int) {
	c.sync.SignalEnd(input)
}

// Drive processes pairs until the synchronizer reports Wait or End and
// returns that state. Per-pair failures are logged and never abort the
// loop; the reference frame is forwarded downstream for every pair,
// including ones whose metric computation or record emission failed.
func (c *Comparator) Drive() (framesync.State, error) {
	c.mu.Lock()
	if c.state == StateIdle {
		c.mu.Unlock()
		return framesync.StateWait, ErrNotConfigured
	}
	if c.state == StateTerminated {
		c.mu.Unlock()
		return framesync.StateEnd, nil
	}
	c.mu.Unlock()

	for {
		pair, st := c.sync.Poll()
		switch st {
		case framesync.StateWait:
			return st, nil
		case framesync.StateEnd:
			c.mu.Lock()
			c.state = StateTerminated
			c.mu.Unlock()
			return st, nil
		}

		c.mu.Lock()
		c.state = StateRunning
		c.mu.Unlock()

		c.processPair(pair)
	}
}

// processPair compares one pair, appends its record, and forwards the
// reference frame. Runs without the engine lock held.
func (c *Comparator) processPair(pair framesync.Pair) {
	if c.checkGeometry(pair) {
		if res, err := c.metric.Compute(pair.Ref, pair.Cmp); err != nil {
			logrus.WithFields(logrus.Fields{
				"pair":   pair.Index,
				"method": c.metric.Name(),
				"error":  err,
			}).Warn("metric computation failed; skipping record")
		} else {
			// The writer reports its own failures once and suppresses the
			// rest of the session.
			err := c.writer.Append(c.cfg.Method, c.recordIndex, pair.Ref.PTS,
				res)
			if err == nil && !c.writer.Failed() {
				if c.onRecord != nil {
					c.onRecord(c.recordIndex, res)
				}
				c.recordIndex++
			}
		}
	}

	c.forward(pair.Ref)

	c.mu.Lock()
	c.pairsDone++
	done := c.pairsDone
	cb := c.progress
	c.mu.Unlock()

	if cb != nil {
		cb(done)
	}
}

// checkGeometry verifies both frames of a pair against the configured
// geometry. A mismatch drops the pair's record but not its forwarding.
func (c *Comparator) checkGeometry(pair framesync.Pair) bool {
	for i, f := range [2]*video.Frame{pair.Ref, pair.Cmp} {
		if f.Width() == c.geo.Width && f.Height() == c.geo.Height &&
			f.Format() == c.geo.Format {
			continue
		}
		logrus.WithFields(logrus.Fields{
			"pair":  pair.Index,
			"input": i,
			"got": fmt.Sprintf("%dx%d %s", f.Width(), f.Height(),
				f.Format()),
			"configured": fmt.Sprintf("%dx%d %s", c.geo.Width, c.geo.Height,
				c.geo.Format),
		}).Warn("frame does not match configured geometry; dropping pair")
		return false
	}
	return true
}

// forward pushes a plane-wise copy of the reference frame downstream. The
// copy lands in a pooled buffer so the producer's frame can be released
// immediately.
func (c *Comparator) forward(ref *video.Frame) {
	buf := c.outPool.Get()
	defer c.outPool.Put(buf)

	out := video.CloneWith(ref, &buf.planes)
	if err := c.downstream.Push(out); err != nil {
		logrus.WithFields(logrus.Fields{
			"pts":   ref.PTS.String(),
			"error": err,
		}).Warn("downstream consumer rejected forwarded frame")
	}
}

// Reset drops all queued frames, discards per-run transient state, and
// returns the engine to Idle. The stats writer is flushed and closed; a
// following Configure starts a fresh sink session.
func (c *Comparator) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sync.Reset()

	var err error
	if c.writer != nil {
		err = c.writer.Close()
		c.writer = nil
	}

	c.state = StateIdle
	c.metric = nil
	c.recordIndex = 0
	c.pairsDone = 0
	return err
}

// Close flushes the stats sink and tears the engine down. The comparator
// must not be used afterwards.
func (c *Comparator) Close() error {
	return c.Reset()
}
