package video

import (
	"encoding/binary"

	"github.com/GreatValueCreamSoda/govidcompare/pixfmt"
)

// CompView is a read-only, zero-copy view of one color component of a
// frame. It hides plane selection, interleaving and subsampling behind a
// (x, y) sample accessor so metric kernels can traverse every supported
// layout with the same loop.
type CompView struct {
	data   []byte
	stride int

	offset int
	step   int
	wide   bool // 16-bit little-endian samples

	width, height int
}

// Width returns the component's sample count per row (ceil-rounded for
// subsampled components).
func (v CompView) Width() int { return v.width }

// Height returns the component's row count.
func (v CompView) Height() int { return v.height }

// Samples returns the total number of samples the view addresses.
func (v CompView) Samples() int { return v.width * v.height }

// Row returns the byte span holding row y of the component. The span covers
// the strided row of the backing plane; samples sit at Offset + x*Step
// within it. The returned slice must not be written.
func (v CompView) Row(y int) []byte {
	start := y * v.stride
	end := start + v.stride
	if end > len(v.data) {
		// The final row of a tightly sized plane may stop short of a full
		// stride.
		end = len(v.data)
	}
	return v.data[start:end]
}

// Sample returns the sample value at (x, y).
func (v CompView) Sample(x, y int) int {
	i := y*v.stride + v.offset + x*v.step
	if v.wide {
		return int(binary.LittleEndian.Uint16(v.data[i : i+2]))
	}
	return int(v.data[i])
}

// CompViews returns one view per inspected component of the frame, in the
// format's fixed component order. The views alias the frame's plane data;
// no pixel bytes are copied.
func CompViews(f *Frame) ([]CompView, error) {
	desc, err := pixfmt.Describe(f.Format())
	if err != nil {
		return nil, err
	}

	views := make([]CompView, 0, len(desc.Inspected))
	for _, c := range desc.Inspected {
		cw, ch := pixfmt.CompExtent(c, f.Width(), f.Height())

		// An odd-width packed row stores a trailing half macropixel; clamp
		// the extent to the samples that exist in memory.
		rowBytes, _ := desc.PlaneExtent(c.Plane, f.Width(), f.Height())
		if rowBytes < c.Offset+c.BytesPerSample {
			cw = 0
		} else if fit := (rowBytes-c.Offset-c.BytesPerSample)/c.Step + 1; fit < cw {
			cw = fit
		}

		views = append(views, CompView{
			data:   f.PlaneData(c.Plane),
			stride: f.PlaneLineSize(c.Plane),
			offset: c.Offset,
			step:   c.Step,
			wide:   c.BytesPerSample == 2,
			width:  cw,
			height: ch,
		})
	}
	return views, nil
}
