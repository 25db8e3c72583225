// Package sources supplies frame streams to the comparison engine. The only
// production source is a raw (headerless) video file reader; geometry,
// pixel format and framerate come from the caller since raw files carry no
// metadata.
package sources

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/GreatValueCreamSoda/govidcompare/pixfmt"
	"github.com/GreatValueCreamSoda/govidcompare/video"
)

// Source yields consecutive timestamped frames of one input stream.
// NextFrame returns io.EOF once the stream is exhausted.
type Source interface {
	NextFrame() (*video.Frame, error)
	NumFrames() int
	Close() error
}

type rawReader struct {
	file *os.File

	format        pixfmt.PixelFormat
	width, height int
	frameRate     video.Rational

	desc      pixfmt.Descriptor
	frameSize int
	numFrames int
	index     int
}

// NewRawReader opens a headerless video file holding tightly packed frames
// of the given geometry. The frame count is derived from the file size; a
// trailing partial frame is an error.
func NewRawReader(path string, format pixfmt.PixelFormat, width, height int,
	frameRate video.Rational) (Source, error) {
	desc, err := pixfmt.Describe(format)
	if err != nil {
		return nil, err
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid geometry %dx%d", width, height)
	}
	if !frameRate.IsValid() || frameRate.Num <= 0 {
		return nil, fmt.Errorf("invalid framerate %s", frameRate)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open raw video: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	frameSize := desc.FrameSize(width, height)
	if info.Size()%int64(frameSize) != 0 {
		f.Close()
		return nil, fmt.Errorf("file size %d is not a multiple of the %s "+
			"%dx%d frame size %d", info.Size(), format, width, height,
			frameSize)
	}

	return &rawReader{
		file:      f,
		format:    format,
		width:     width,
		height:    height,
		frameRate: frameRate,
		desc:      desc,
		frameSize: frameSize,
		numFrames: int(info.Size() / int64(frameSize)),
	}, nil
}

func (r *rawReader) NumFrames() int { return r.numFrames }

// NextFrame reads and wraps the next frame. Each call allocates a fresh
// buffer because the synchronizer owns submitted frames until their pair is
// released.
func (r *rawReader) NextFrame() (*video.Frame, error) {
	if r.index >= r.numFrames {
		return nil, io.EOF
	}

	raw := make([]byte, r.frameSize)
	if _, err := io.ReadFull(r.file, raw); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			err = io.EOF
		}
		return nil, err
	}

	var data [3][]byte
	var lineSize [3]int
	off := 0
	for p := 0; p < r.desc.NumPlanes; p++ {
		rowBytes, rows := r.desc.PlaneExtent(p, r.width, r.height)
		data[p] = raw[off : off+rowBytes*rows]
		lineSize[p] = rowBytes
		off += rowBytes * rows
	}

	pts := video.Rational{
		Num: int64(r.index) * r.frameRate.Den,
		Den: r.frameRate.Num,
	}

	frame, err := video.NewFrame(r.format, r.width, r.height, data, lineSize,
		pts)
	if err != nil {
		return nil, err
	}
	frame.Duration = video.Rational{Num: r.frameRate.Den, Den: r.frameRate.Num}

	r.index++
	return frame, nil
}

func (r *rawReader) Close() error { return r.file.Close() }
