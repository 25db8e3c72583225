package comparator

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GreatValueCreamSoda/govidcompare/framesync"
	"github.com/GreatValueCreamSoda/govidcompare/metrics"
	"github.com/GreatValueCreamSoda/govidcompare/pixfmt"
	"github.com/GreatValueCreamSoda/govidcompare/video"
)

// makeFrame builds a tightly strided constant-valued frame with the PTS of
// frame number n at 30 fps.
func makeFrame(t *testing.T, format pixfmt.PixelFormat, w, h int, fill byte,
	n int) *video.Frame {
	t.Helper()

	desc, err := pixfmt.Describe(format)
	require.NoError(t, err)

	var data [3][]byte
	var lineSize [3]int
	for p := 0; p < desc.NumPlanes; p++ {
		rowBytes, rows := desc.PlaneExtent(p, w, h)
		plane := make([]byte, rowBytes*rows)
		for i := range plane {
			plane[i] = fill
		}
		data[p] = plane
		lineSize[p] = rowBytes
	}

	f, err := video.NewFrame(format, w, h, data, lineSize,
		video.Rational{Num: int64(n), Den: 30})
	require.NoError(t, err)
	return f
}

// frameCollector retains deep copies of every forwarded frame; the pushed
// frame's storage is recycled after Push returns.
type frameCollector struct {
	frames []*video.Frame
}

func (fc *frameCollector) Push(f *video.Frame) error {
	fc.frames = append(fc.frames, f.Clone())
	return nil
}

func statsLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	if len(data) == 0 {
		return nil
	}
	return strings.Split(strings.TrimRight(string(data), "\n"), "\n")
}

func geometry(format pixfmt.PixelFormat, w, h int) Geometry {
	return Geometry{
		Width:     w,
		Height:    h,
		Format:    format,
		FrameRate: video.Rational{Num: 30, Den: 1},
	}
}

// runPairs submits n identical-index pairs, drives them to completion, then
// signals end-of-stream and drives the terminal state.
func runPairs(t *testing.T, c *Comparator, ref, cmp []*video.Frame) {
	t.Helper()

	for i := range ref {
		require.NoError(t, c.Submit(0, ref[i]))
		require.NoError(t, c.Submit(1, cmp[i]))
		_, err := c.Drive()
		require.NoError(t, err)
	}
	c.SignalEnd(0)
	c.SignalEnd(1)
	st, err := c.Drive()
	require.NoError(t, err)
	require.Equal(t, framesync.StateEnd, st)
}

func TestIdenticalStreamsPSNR(t *testing.T) {
	statsPath := filepath.Join(t.TempDir(), "stats.log")
	sink := &frameCollector{}

	c := New(sink, 4)
	require.NoError(t, c.Configure(geometry(pixfmt.FormatI420, 16, 16),
		Config{Method: metrics.MethodPSNR, StatsFile: statsPath}))

	var refs, cmps []*video.Frame
	for i := 0; i < 3; i++ {
		refs = append(refs, makeFrame(t, pixfmt.FormatI420, 16, 16, 80, i))
		cmps = append(cmps, makeFrame(t, pixfmt.FormatI420, 16, 16, 80, i))
	}
	runPairs(t, c, refs, cmps)
	require.NoError(t, c.Close())

	lines := statsLines(t, statsPath)
	require.Len(t, lines, 3)
	assert.Equal(t, "psnr 0 0/30 inf inf inf inf", lines[0])
	assert.Equal(t, "psnr 1 1/30 inf inf inf inf", lines[1])
	assert.Equal(t, "psnr 2 2/30 inf inf inf inf", lines[2])

	// Every reference frame reaches the downstream consumer unchanged.
	require.Len(t, sink.frames, 3)
	for i, f := range sink.frames {
		assert.True(t, refs[i].EqualData(f), "forwarded frame %d", i)
		assert.Equal(t, refs[i].PTS, f.PTS)
	}
	assert.Equal(t, StateTerminated, c.State())
}

func TestConstantOffsetPSNRRecord(t *testing.T) {
	statsPath := filepath.Join(t.TempDir(), "stats.log")

	c := New(nil, 2)
	require.NoError(t, c.Configure(geometry(pixfmt.FormatGRAY8, 8, 8),
		Config{Method: metrics.MethodPSNR, StatsFile: statsPath}))

	runPairs(t, c,
		[]*video.Frame{makeFrame(t, pixfmt.FormatGRAY8, 8, 8, 100, 0)},
		[]*video.Frame{makeFrame(t, pixfmt.FormatGRAY8, 8, 8, 110, 0)})
	require.NoError(t, c.Close())

	lines := statsLines(t, statsPath)
	require.Len(t, lines, 1)
	assert.Equal(t, "psnr 0 0/30 28.130804 28.130804", lines[0])
}

func TestSSIMIgnoresAlpha(t *testing.T) {
	statsPath := filepath.Join(t.TempDir(), "stats.log")

	c := New(nil, 2)
	require.NoError(t, c.Configure(geometry(pixfmt.FormatRGBA, 8, 8),
		Config{Method: metrics.MethodSSIM, StatsFile: statsPath}))

	ref := makeFrame(t, pixfmt.FormatRGBA, 8, 8, 50, 0)
	cmp := makeFrame(t, pixfmt.FormatRGBA, 8, 8, 50, 0)
	data := cmp.PlaneData(0)
	for i := 3; i < len(data); i += 4 {
		data[i] = 0
	}

	runPairs(t, c, []*video.Frame{ref}, []*video.Frame{cmp})
	require.NoError(t, c.Close())

	lines := statsLines(t, statsPath)
	require.Len(t, lines, 1)
	assert.Equal(t, "ssim 0 0/30 1.000000 1.000000 1.000000 1.000000", lines[0])
}

func TestGeometryMismatchDropsRecordButForwards(t *testing.T) {
	statsPath := filepath.Join(t.TempDir(), "stats.log")
	sink := &frameCollector{}

	c := New(sink, 4)
	require.NoError(t, c.Configure(geometry(pixfmt.FormatGRAY8, 8, 8),
		Config{Method: metrics.MethodSSIM, StatsFile: statsPath}))

	refs := []*video.Frame{
		makeFrame(t, pixfmt.FormatGRAY8, 8, 8, 10, 0),
		makeFrame(t, pixfmt.FormatGRAY8, 8, 8, 11, 1),
		makeFrame(t, pixfmt.FormatGRAY8, 8, 8, 12, 2),
	}
	cmps := []*video.Frame{
		makeFrame(t, pixfmt.FormatGRAY8, 8, 8, 10, 0),
		// Off-geometry frame in the middle of the stream.
		makeFrame(t, pixfmt.FormatGRAY8, 16, 16, 11, 1),
		makeFrame(t, pixfmt.FormatGRAY8, 8, 8, 12, 2),
	}
	runPairs(t, c, refs, cmps)
	require.NoError(t, c.Close())

	// The dropped pair leaves no gap in the record indices.
	lines := statsLines(t, statsPath)
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "ssim 0 0/30 "))
	assert.True(t, strings.HasPrefix(lines[1], "ssim 1 2/30 "))

	// All three reference frames are forwarded regardless.
	require.Len(t, sink.frames, 3)
	for i, f := range sink.frames {
		assert.True(t, refs[i].EqualData(f), "forwarded frame %d", i)
	}
}

func TestEndOfStreamTerminates(t *testing.T) {
	statsPath := filepath.Join(t.TempDir(), "stats.log")

	c := New(nil, 4)
	require.NoError(t, c.Configure(geometry(pixfmt.FormatGRAY8, 8, 8),
		Config{Method: metrics.MethodSSIM, StatsFile: statsPath}))

	// Two full pairs, then input 1 ends while input 0 still has a frame.
	for i := 0; i < 3; i++ {
		require.NoError(t, c.Submit(0, makeFrame(t, pixfmt.FormatGRAY8, 8, 8,
			byte(i), i)))
	}
	for i := 0; i < 2; i++ {
		require.NoError(t, c.Submit(1, makeFrame(t, pixfmt.FormatGRAY8, 8, 8,
			byte(i), i)))
	}
	c.SignalEnd(1)

	st, err := c.Drive()
	require.NoError(t, err)
	assert.Equal(t, framesync.StateEnd, st)
	assert.Equal(t, StateTerminated, c.State())

	// A terminated engine reports End without reprocessing.
	st, err = c.Drive()
	require.NoError(t, err)
	assert.Equal(t, framesync.StateEnd, st)

	require.NoError(t, c.Close())
	lines := statsLines(t, statsPath)
	require.Len(t, lines, 2)
}

func TestConfigureIsWriteOnce(t *testing.T) {
	statsPath := filepath.Join(t.TempDir(), "stats.log")

	c := New(nil, 4)
	require.NoError(t, c.Configure(geometry(pixfmt.FormatGRAY8, 8, 8),
		Config{Method: metrics.MethodSSIM, StatsFile: statsPath}))

	require.NoError(t, c.Submit(0, makeFrame(t, pixfmt.FormatGRAY8, 8, 8, 1, 0)))
	require.NoError(t, c.Submit(1, makeFrame(t, pixfmt.FormatGRAY8, 8, 8, 1, 0)))
	_, err := c.Drive()
	require.NoError(t, err)

	// Mid-stream reconfiguration attempts are refused and change nothing.
	err = c.Configure(geometry(pixfmt.FormatGRAY8, 8, 8),
		Config{Method: metrics.MethodPSNR, StatsFile: statsPath})
	assert.ErrorIs(t, err, ErrAlreadyConfigured)
	assert.Equal(t, metrics.MethodSSIM, c.Config().Method)

	require.NoError(t, c.Submit(0, makeFrame(t, pixfmt.FormatGRAY8, 8, 8, 2, 1)))
	require.NoError(t, c.Submit(1, makeFrame(t, pixfmt.FormatGRAY8, 8, 8, 2, 1)))
	_, err = c.Drive()
	require.NoError(t, err)

	c.SignalEnd(0)
	c.SignalEnd(1)
	_, err = c.Drive()
	require.NoError(t, err)
	require.NoError(t, c.Close())

	// Every record was produced with the original method.
	for _, line := range statsLines(t, statsPath) {
		assert.True(t, strings.HasPrefix(line, "ssim "))
	}
}

func TestConfigureValidation(t *testing.T) {
	c := New(nil, 2)

	err := c.Configure(Geometry{Width: 8, Height: 8, Format: pixfmt.FormatNone,
		FrameRate: video.Rational{Num: 30, Den: 1}}, Config{})
	assert.ErrorIs(t, err, pixfmt.ErrFormatUnsupported)

	err = c.Configure(Geometry{Width: 0, Height: 8,
		Format: pixfmt.FormatGRAY8,
		FrameRate: video.Rational{Num: 30, Den: 1}}, Config{})
	assert.Error(t, err)

	err = c.Configure(Geometry{Width: 8, Height: 8,
		Format: pixfmt.FormatGRAY8, FrameRate: video.Rational{}}, Config{})
	assert.Error(t, err)

	// Failed Configure leaves the engine idle and reconfigurable.
	assert.Equal(t, StateIdle, c.State())
	assert.NoError(t, c.Configure(geometry(pixfmt.FormatGRAY8, 8, 8), Config{}))
}

func TestUseBeforeConfigure(t *testing.T) {
	c := New(nil, 2)

	err := c.Submit(0, makeFrame(t, pixfmt.FormatGRAY8, 8, 8, 1, 0))
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = c.Drive()
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestDefaultsToSSIMAndStdout(t *testing.T) {
	c := New(nil, 2)
	require.NoError(t, c.Configure(geometry(pixfmt.FormatGRAY8, 8, 8), Config{}))

	cfg := c.Config()
	assert.Equal(t, metrics.MethodSSIM, cfg.Method)
	assert.Equal(t, "-", cfg.StatsFile)
}

func TestProgressAndRecordCallbacks(t *testing.T) {
	statsPath := filepath.Join(t.TempDir(), "stats.log")

	c := New(nil, 4)
	var progress []int
	c.SetProgressCallback(func(done int) { progress = append(progress, done) })
	var records []int
	c.SetRecordCallback(func(index int, res metrics.Result) {
		records = append(records, index)
		assert.Len(t, res.Scores, 1)
	})

	require.NoError(t, c.Configure(geometry(pixfmt.FormatGRAY8, 8, 8),
		Config{Method: metrics.MethodPSNR, StatsFile: statsPath}))

	var refs, cmps []*video.Frame
	for i := 0; i < 2; i++ {
		refs = append(refs, makeFrame(t, pixfmt.FormatGRAY8, 8, 8, 5, i))
		cmps = append(cmps, makeFrame(t, pixfmt.FormatGRAY8, 8, 8, 5, i))
	}
	runPairs(t, c, refs, cmps)
	require.NoError(t, c.Close())

	assert.Equal(t, []int{1, 2}, progress)
	assert.Equal(t, []int{0, 1}, records)
}

func TestResetReturnsToIdle(t *testing.T) {
	statsPath := filepath.Join(t.TempDir(), "stats.log")

	c := New(nil, 4)
	require.NoError(t, c.Configure(geometry(pixfmt.FormatGRAY8, 8, 8),
		Config{Method: metrics.MethodPSNR, StatsFile: statsPath}))

	runPairs(t, c,
		[]*video.Frame{makeFrame(t, pixfmt.FormatGRAY8, 8, 8, 1, 0)},
		[]*video.Frame{makeFrame(t, pixfmt.FormatGRAY8, 8, 8, 1, 0)})

	require.NoError(t, c.Reset())
	assert.Equal(t, StateIdle, c.State())

	// A fresh session reconfigures and numbers records from zero again.
	statsPath2 := filepath.Join(t.TempDir(), "stats2.log")
	require.NoError(t, c.Configure(geometry(pixfmt.FormatGRAY8, 8, 8),
		Config{Method: metrics.MethodPSNR, StatsFile: statsPath2}))

	runPairs(t, c,
		[]*video.Frame{makeFrame(t, pixfmt.FormatGRAY8, 8, 8, 2, 0)},
		[]*video.Frame{makeFrame(t, pixfmt.FormatGRAY8, 8, 8, 2, 0)})
	require.NoError(t, c.Close())

	lines := statsLines(t, statsPath2)
	require.Len(t, lines, 1)
	assert.True(t, strings.HasPrefix(lines[0], "psnr 0 0/30 "))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "configured", StateConfigured.String())
	assert.Equal(t, "running", StateRunning.String())
	assert.Equal(t, "terminated", StateTerminated.String())
}
