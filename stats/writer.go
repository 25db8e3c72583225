// Package stats appends one text record per compared frame pair to a
// configured sink: either the process's standard output (the "-" shorthand)
// or a file opened in append-create mode.
//
// Record grammar, one line per pair:
//
//	METHOD SP INDEX SP NUM "/" DEN ( SP SCORE )+ SP AGG LF
//
// Scores are printed with six fractional digits; a saturated PSNR score is
// printed as the literal "inf". Sink failures are reported once through the
// log and suppress all subsequent writes for the session.
package stats

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/GreatValueCreamSoda/govidcompare/metrics"
	"github.com/GreatValueCreamSoda/govidcompare/video"
)

// StdoutSink is the sink specification that routes records to standard
// output.
const StdoutSink = "-"

// Records written to a file sink between forced flushes.
const flushInterval = 64

var (
	// ErrSinkOpenFailed wraps a failure to open the configured sink.
	ErrSinkOpenFailed = errors.New("failed to open stats sink")

	// ErrSinkWriteFailed wraps a failure to append a record.
	ErrSinkWriteFailed = errors.New("failed to write stats record")
)

// stdoutSink is swapped out by tests; production code always writes to the
// real standard output.
var stdoutSink io.Writer = os.Stdout

// Writer owns the statistics sink exclusively. The sink is opened lazily on
// the first Append so a configured-but-idle engine never touches the
// filesystem.
type Writer struct {
	mu   sync.Mutex
	dest string

	file        *os.File
	buf         *bufio.Writer
	opened      bool
	failed      bool
	sinceFlush  int
	usingStdout bool
}

// NewWriter creates a Writer for the given sink specification: "-" for
// standard output, anything else for a filesystem path.
func NewWriter(dest string) *Writer {
	if dest == "" {
		dest = StdoutSink
	}
	return &Writer{dest: dest}
}

// Dest returns the sink specification the writer was created with.
func (w *Writer) Dest() string { return w.dest }

// Failed reports whether the sink session has failed; once true, every
// further Append is silently dropped.
func (w *Writer) Failed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.failed
}

func (w *Writer) open() error {
	if w.dest == StdoutSink {
		w.buf = bufio.NewWriter(stdoutSink)
		w.usingStdout = true
		w.opened = true
		return nil
	}

	f, err := os.OpenFile(w.dest, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSinkOpenFailed, err)
	}
	w.file = f
	w.buf = bufio.NewWriter(f)
	w.opened = true
	return nil
}

// Append formats and writes the record for one compared pair. The first
// sink failure is logged and returned; every later Append for the same
// session is silently dropped.
func (w *Writer) Append(method metrics.Method, index int, pts video.Rational,
	res metrics.Result) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.failed {
		return nil
	}

	if !w.opened {
		if err := w.open(); err != nil {
			w.failed = true
			logrus.WithFields(logrus.Fields{
				"stats-file": w.dest,
				"error":      err,
			}).Warn("stats sink could not be opened; records will be dropped")
			return err
		}
	}

	line := FormatRecord(method, index, pts, res)
	if _, err := w.buf.WriteString(line); err != nil {
		return w.writeFailed(err)
	}

	w.sinceFlush++
	if w.usingStdout || w.sinceFlush >= flushInterval {
		if err := w.buf.Flush(); err != nil {
			return w.writeFailed(err)
		}
		w.sinceFlush = 0
	}

	return nil
}

func (w *Writer) writeFailed(err error) error {
	w.failed = true
	wrapped := fmt.Errorf("%w: %v", ErrSinkWriteFailed, err)
	logrus.WithFields(logrus.Fields{
		"stats-file": w.dest,
		"error":      err,
	}).Warn("stats sink write failed; further records will be dropped")
	return wrapped
}

// Close flushes any buffered records and releases the sink. Closing a
// writer that never opened its sink is a no-op.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.opened || w.failed {
		if w.file != nil {
			w.file.Close()
			w.file = nil
		}
		return nil
	}

	err := w.buf.Flush()
	if w.file != nil {
		if cerr := w.file.Close(); err == nil {
			err = cerr
		}
		w.file = nil
	}
	w.opened = false
	return err
}

// FormatRecord renders one record line, including the trailing newline.
func FormatRecord(method metrics.Method, index int, pts video.Rational,
	res metrics.Result) string {
	var b strings.Builder
	b.WriteString(method.String())
	b.WriteByte(' ')
	b.WriteString(strconv.Itoa(index))
	b.WriteByte(' ')
	b.WriteString(pts.String())
	for _, s := range res.Scores {
		b.WriteByte(' ')
		b.WriteString(formatScore(s))
	}
	b.WriteByte(' ')
	b.WriteString(formatScore(res.Aggregate))
	b.WriteByte('\n')
	return b.String()
}

func formatScore(v float64) string {
	if math.IsInf(v, 1) {
		return "inf"
	}
	return strconv.FormatFloat(v, 'f', 6, 64)
}
