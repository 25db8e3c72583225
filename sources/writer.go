package sources

import (
	"bufio"
	"fmt"
	"os"

	"github.com/GreatValueCreamSoda/govidcompare/pixfmt"
	"github.com/GreatValueCreamSoda/govidcompare/video"
)

// RawWriter persists forwarded frames as a headerless video file in the
// same tight layout NewRawReader expects. It satisfies the comparator's
// Consumer interface.
type RawWriter struct {
	file *os.File
	buf  *bufio.Writer
}

// NewRawWriter creates (or truncates) the output file.
func NewRawWriter(path string) (*RawWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create raw video output: %w", err)
	}
	return &RawWriter{file: f, buf: bufio.NewWriter(f)}, nil
}

// Push appends the frame's addressed plane bytes, row by row, stripping any
// stride padding.
func (w *RawWriter) Push(f *video.Frame) error {
	desc, err := pixfmt.Describe(f.Format())
	if err != nil {
		return err
	}

	for p := 0; p < desc.NumPlanes; p++ {
		rowBytes, rows := desc.PlaneExtent(p, f.Width(), f.Height())
		stride := f.PlaneLineSize(p)
		data := f.PlaneData(p)
		for y := 0; y < rows; y++ {
			if _, err := w.buf.Write(data[y*stride : y*stride+rowBytes]); err != nil {
				return err
			}
		}
	}
	return nil
}

// Close flushes buffered frames and closes the file.
func (w *RawWriter) Close() error {
	err := w.buf.Flush()
	if cerr := w.file.Close(); err == nil {
		err = cerr
	}
	return err
}
