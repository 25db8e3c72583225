// Package video holds the frame representation shared by the comparison
// engine: plane data with strides, rational timestamps, and read-only
// component views used by the metric kernels.
package video

import (
	"errors"
	"fmt"

	"github.com/GreatValueCreamSoda/govidcompare/pixfmt"
)

// Rational is a stream-time value expressed as Num/Den.
type Rational struct {
	Num int64
	Den int64
}

func (r Rational) String() string { return fmt.Sprintf("%d/%d", r.Num, r.Den) }

// IsValid reports whether the rational has a positive denominator.
func (r Rational) IsValid() bool { return r.Den > 0 }

// Frame represents a single video frame. It holds up to three planes of
// pixel data, the line size (stride) for each plane, the frame geometry and
// format, and its presentation time.
//
// Frame data is never mutated by the engine. A Frame handed to the
// synchronizer is owned by it until the pair it belongs to is released.
type Frame struct {
	data     [3][]byte // Pixel data per plane; unused planes are nil.
	lineSize [3]int    // Line size (stride) per plane, in bytes.

	width, height int
	format        pixfmt.PixelFormat

	// PTS is the presentation timestamp in stream time units. Duration is
	// optional; a zero-denominator Duration means unset.
	PTS      Rational
	Duration Rational
}

// NewFrame constructs a Frame over the given plane buffers. The slices
// become owned by the Frame; callers must not write through retained
// references while the frame is in flight.
//
// Every plane the format requires must be present and large enough for the
// geometry at the given stride.
func NewFrame(format pixfmt.PixelFormat, width, height int, data [3][]byte,
	lineSize [3]int, pts Rational) (*Frame, error) {
	desc, err := pixfmt.Describe(format)
	if err != nil {
		return nil, err
	}

	if width <= 0 || height <= 0 {
		return nil, errors.New("frame geometry must be positive")
	}

	for p := 0; p < desc.NumPlanes; p++ {
		rowBytes, rows := desc.PlaneExtent(p, width, height)
		if lineSize[p] < rowBytes {
			return nil, fmt.Errorf("plane %d stride %d is below the minimum %d",
				p, lineSize[p], rowBytes)
		}
		need := (rows-1)*lineSize[p] + rowBytes
		if len(data[p]) < need {
			return nil, fmt.Errorf("plane %d has %d bytes, need %d",
				p, len(data[p]), need)
		}
	}

	return &Frame{
		data:     data,
		lineSize: lineSize,
		width:    width,
		height:   height,
		format:   format,
		PTS:      pts,
	}, nil
}

func (f *Frame) Width() int                 { return f.width }
func (f *Frame) Height() int                { return f.height }
func (f *Frame) Format() pixfmt.PixelFormat { return f.format }

// PlaneData returns the raw data of the requested plane. The returned slice
// must be treated as read-only.
func (f *Frame) PlaneData(plane int) []byte {
	if plane < 0 || plane > 2 {
		return nil
	}
	return f.data[plane]
}

// PlaneLineSize returns the line size (stride) in bytes for the requested
// plane.
func (f *Frame) PlaneLineSize(plane int) int {
	if plane < 0 || plane > 2 {
		return 0
	}
	return f.lineSize[plane]
}

// SameGeometry reports whether two frames agree on width, height and pixel
// format, the precondition for pairing them.
func (f *Frame) SameGeometry(other *Frame) bool {
	return f.width == other.width && f.height == other.height &&
		f.format == other.format
}

// CopyInto copies the frame's pixel data, geometry and timing into dst,
// preserving dst's underlying allocations. It is used when the forwarded
// reference frame must live in a separately allocated output buffer.
//
// Returns an error if any destination plane lacks sufficient capacity.
func (f *Frame) CopyInto(dst *Frame) error {
	if dst == nil {
		return errors.New("destination frame is nil")
	}

	for p := 0; p < 3; p++ {
		if len(dst.data[p]) < len(f.data[p]) {
			return fmt.Errorf("destination plane %d too small: need %d bytes, "+
				"have %d", p, len(f.data[p]), len(dst.data[p]))
		}
		copy(dst.data[p], f.data[p])
		dst.lineSize[p] = f.lineSize[p]
	}

	dst.width, dst.height, dst.format = f.width, f.height, f.format
	dst.PTS, dst.Duration = f.PTS, f.Duration
	return nil
}

// Clone returns a deep copy of the frame with tightly fitted plane buffers.
func (f *Frame) Clone() *Frame {
	out := &Frame{
		lineSize: f.lineSize,
		width:    f.width,
		height:   f.height,
		format:   f.format,
		PTS:      f.PTS,
		Duration: f.Duration,
	}
	for p := 0; p < 3; p++ {
		if f.data[p] == nil {
			continue
		}
		out.data[p] = make([]byte, len(f.data[p]))
		copy(out.data[p], f.data[p])
	}
	return out
}

// CloneWith copies f into a new Frame whose plane storage is drawn from
// planes, growing each backing slice only when its capacity is
// insufficient. The returned frame aliases *planes, so callers recycling
// the storage must not reuse it while the frame is still referenced.
func CloneWith(f *Frame, planes *[3][]byte) *Frame {
	out := &Frame{
		lineSize: f.lineSize,
		width:    f.width,
		height:   f.height,
		format:   f.format,
		PTS:      f.PTS,
		Duration: f.Duration,
	}
	for p := 0; p < 3; p++ {
		need := len(f.data[p])
		if need == 0 {
			continue
		}
		if cap(planes[p]) < need {
			planes[p] = make([]byte, need)
		} else {
			planes[p] = planes[p][:need]
		}
		copy(planes[p], f.data[p])
		out.data[p] = planes[p]
	}
	return out
}

// EqualData reports whether two frames carry byte-identical plane data over
// their addressed extents. Used by tests to assert pass-through forwarding.
func (f *Frame) EqualData(other *Frame) bool {
	if !f.SameGeometry(other) {
		return false
	}
	desc, err := pixfmt.Describe(f.format)
	if err != nil {
		return false
	}
	for p := 0; p < desc.NumPlanes; p++ {
		rowBytes, rows := desc.PlaneExtent(p, f.width, f.height)
		for y := 0; y < rows; y++ {
			a := f.data[p][y*f.lineSize[p] : y*f.lineSize[p]+rowBytes]
			b := other.data[p][y*other.lineSize[p] : y*other.lineSize[p]+rowBytes]
			if string(a) != string(b) {
				return false
			}
		}
	}
	return true
}
