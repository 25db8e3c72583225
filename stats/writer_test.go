package stats

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GreatValueCreamSoda/govidcompare/metrics"
	"github.com/GreatValueCreamSoda/govidcompare/video"
)

func sampleResult() metrics.Result {
	return metrics.Result{
		Labels:    []string{"Y", "U", "V"},
		Scores:    []float64{0.987654321, 1, 0.5},
		Aggregate: 0.9,
	}
}

func TestFormatRecord(t *testing.T) {
	line := FormatRecord(metrics.MethodSSIM, 3, video.Rational{Num: 3, Den: 30},
		sampleResult())
	assert.Equal(t, "ssim 3 3/30 0.987654 1.000000 0.500000 0.900000\n", line)
}

func TestFormatRecordInfSentinel(t *testing.T) {
	res := metrics.Result{
		Labels:    []string{"Y"},
		Scores:    []float64{math.Inf(1)},
		Aggregate: math.Inf(1),
	}
	line := FormatRecord(metrics.MethodPSNR, 0, video.Rational{Num: 0, Den: 30},
		res)
	assert.Equal(t, "psnr 0 0/30 inf inf\n", line)
}

func TestAppendToStdout(t *testing.T) {
	var out bytes.Buffer
	orig := stdoutSink
	stdoutSink = &out
	defer func() { stdoutSink = orig }()

	w := NewWriter(StdoutSink)
	require.NoError(t, w.Append(metrics.MethodSSIM, 0,
		video.Rational{Num: 0, Den: 30}, sampleResult()))
	require.NoError(t, w.Append(metrics.MethodSSIM, 1,
		video.Rational{Num: 1, Den: 30}, sampleResult()))

	// Stdout records are flushed per line, not on Close.
	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "ssim 0 0/30 "))
	assert.True(t, strings.HasPrefix(lines[1], "ssim 1 1/30 "))

	require.NoError(t, w.Close())
}

func TestAppendToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.log")

	w := NewWriter(path)
	for i := 0; i < 3; i++ {
		require.NoError(t, w.Append(metrics.MethodPSNR, i,
			video.Rational{Num: int64(i), Den: 25}, sampleResult()))
	}
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "psnr 2 2/25 0.987654 1.000000 0.500000 0.900000", lines[2])
}

func TestEmptyDestDefaultsToStdout(t *testing.T) {
	w := NewWriter("")
	assert.Equal(t, StdoutSink, w.Dest())
}

func TestLazyOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "never-written.log")

	w := NewWriter(path)
	require.NoError(t, w.Close())

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "sink must not be created before Append")
}

func TestOpenFailureSuppressesSession(t *testing.T) {
	// A directory path cannot be opened as a stats file.
	w := NewWriter(t.TempDir())

	err := w.Append(metrics.MethodSSIM, 0, video.Rational{Num: 0, Den: 30},
		sampleResult())
	require.ErrorIs(t, err, ErrSinkOpenFailed)
	assert.True(t, w.Failed())

	// Later appends are dropped without error.
	assert.NoError(t, w.Append(metrics.MethodSSIM, 1,
		video.Rational{Num: 1, Den: 30}, sampleResult()))
	assert.NoError(t, w.Close())
}

func TestAppendToExistingFileAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.log")
	require.NoError(t, os.WriteFile(path, []byte("existing\n"), 0o644))

	w := NewWriter(path)
	require.NoError(t, w.Append(metrics.MethodSSIM, 0,
		video.Rational{Num: 0, Den: 30}, sampleResult()))
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "existing\n"))
	assert.Contains(t, string(data), "ssim 0 0/30 ")
}
