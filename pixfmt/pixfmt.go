// Package pixfmt defines the closed set of pixel formats the comparison
// engine accepts and a small per-format descriptor that tells callers how to
// reach each color component inside a frame's plane data.
//
// The descriptor model is deliberately flat: every component, whether it
// lives on its own plane (I420 Y/U/V), shares a semi-planar plane (NV12 UV),
// or is interleaved in a packed row (YUY2, RGBA), is described by a plane
// index, a byte offset into that plane's rows, and a step between successive
// samples. Metric kernels never switch on the format itself.
package pixfmt

import "errors"

// ErrFormatUnsupported is returned when a format is outside the supported
// closed set.
var ErrFormatUnsupported = errors.New("pixel format is not supported")

// PixelFormat identifies one of the supported frame memory layouts.
type PixelFormat int

const (
	FormatNone PixelFormat = iota
	FormatARGB
	FormatBGRA
	FormatABGR
	FormatRGBA
	FormatXRGB
	FormatBGRX
	FormatXBGR
	FormatRGBX
	FormatRGB16
	FormatGRAY8
	FormatI420
	FormatNV12
	FormatNV21
	FormatYUY2
	FormatUYVY
	FormatY42B
	FormatY444
)

var formatNames = map[PixelFormat]string{
	FormatARGB:  "ARGB",
	FormatBGRA:  "BGRA",
	FormatABGR:  "ABGR",
	FormatRGBA:  "RGBA",
	FormatXRGB:  "xRGB",
	FormatBGRX:  "BGRx",
	FormatXBGR:  "xBGR",
	FormatRGBX:  "RGBx",
	FormatRGB16: "RGB16",
	FormatGRAY8: "GRAY8",
	FormatI420:  "I420",
	FormatNV12:  "NV12",
	FormatNV21:  "NV21",
	FormatYUY2:  "YUY2",
	FormatUYVY:  "UYVY",
	FormatY42B:  "Y42B",
	FormatY444:  "Y444",
}

func (f PixelFormat) String() string {
	if name, ok := formatNames[f]; ok {
		return name
	}
	return "unknown"
}

// Parse maps a format name (as used in caps strings, e.g. "I420") to its
// PixelFormat. Matching is case-sensitive.
func Parse(name string) (PixelFormat, error) {
	for f, n := range formatNames {
		if n == name {
			return f, nil
		}
	}
	return FormatNone, ErrFormatUnsupported
}

// Component describes how to reach one color component's samples.
//
// A sample (x, y) of the component lives at byte
// plane[y*stride + Offset + x*Step] of plane Plane, where the component's
// extent is ceil(W/SubW) x ceil(H/SubH) samples. BytesPerSample is 1 for all
// 8-bit formats and 2 for RGB16, whose single component is read as a
// little-endian uint16.
type Component struct {
	Label          string // "Y", "U", "V", "R", "G", "B"
	Plane          int
	Offset         int
	Step           int
	SubW, SubH     int
	BytesPerSample int
}

// Plane describes the memory footprint of one plane: its subsampling
// relative to the frame geometry and the bytes occupied per (subsampled)
// pixel unit, including alpha or padding bytes that no component inspects.
type Plane struct {
	SubW, SubH    int
	BytesPerPixel int
}

// Descriptor is the static layout description of a pixel format. Inspected
// lists only the components metric kernels look at; alpha and padding bytes
// are never part of it. Planes covers the full storage footprint.
type Descriptor struct {
	Format    PixelFormat
	NumPlanes int
	Planes    []Plane
	Inspected []Component
}

// packedRGB builds the descriptor of a 4-byte packed RGB variant from the
// byte offsets of R, G and B within each pixel. The fourth byte (alpha or
// padding) is intentionally absent.
func packedRGB(f PixelFormat, r, g, b int) Descriptor {
	comp := func(label string, off int) Component {
		return Component{Label: label, Offset: off, Step: 4, SubW: 1, SubH: 1,
			BytesPerSample: 1}
	}
	return Descriptor{
		Format:    f,
		NumPlanes: 1,
		Planes:    []Plane{{SubW: 1, SubH: 1, BytesPerPixel: 4}},
		Inspected: []Component{comp("R", r), comp("G", g), comp("B", b)},
	}
}

func planarYUV(f PixelFormat, subW, subH int) Descriptor {
	comp := func(label string, plane, sw, sh int) Component {
		return Component{Label: label, Plane: plane, Step: 1, SubW: sw,
			SubH: sh, BytesPerSample: 1}
	}
	return Descriptor{
		Format:    f,
		NumPlanes: 3,
		Planes: []Plane{
			{SubW: 1, SubH: 1, BytesPerPixel: 1},
			{SubW: subW, SubH: subH, BytesPerPixel: 1},
			{SubW: subW, SubH: subH, BytesPerPixel: 1},
		},
		Inspected: []Component{
			comp("Y", 0, 1, 1),
			comp("U", 1, subW, subH),
			comp("V", 2, subW, subH),
		},
	}
}

// semiPlanar420 describes NV12/NV21: a full luma plane followed by one
// interleaved chroma plane. uOff/vOff select the byte order within a chroma
// sample pair.
func semiPlanar420(f PixelFormat, uOff, vOff int) Descriptor {
	return Descriptor{
		Format:    f,
		NumPlanes: 2,
		Planes: []Plane{
			{SubW: 1, SubH: 1, BytesPerPixel: 1},
			{SubW: 2, SubH: 2, BytesPerPixel: 2},
		},
		Inspected: []Component{
			{Label: "Y", Plane: 0, Step: 1, SubW: 1, SubH: 1, BytesPerSample: 1},
			{Label: "U", Plane: 1, Offset: uOff, Step: 2, SubW: 2, SubH: 2,
				BytesPerSample: 1},
			{Label: "V", Plane: 1, Offset: vOff, Step: 2, SubW: 2, SubH: 2,
				BytesPerSample: 1},
		},
	}
}

// packed422 describes YUY2/UYVY: a single plane of interleaved 4:2:2 macro
// pixels, two bytes per pixel. yOff is the luma offset within a pixel,
// uOff/vOff the chroma offsets within a 4-byte macropixel.
func packed422(f PixelFormat, yOff, uOff, vOff int) Descriptor {
	return Descriptor{
		Format:    f,
		NumPlanes: 1,
		Planes:    []Plane{{SubW: 1, SubH: 1, BytesPerPixel: 2}},
		Inspected: []Component{
			{Label: "Y", Offset: yOff, Step: 2, SubW: 1, SubH: 1,
				BytesPerSample: 1},
			{Label: "U", Offset: uOff, Step: 4, SubW: 2, SubH: 1,
				BytesPerSample: 1},
			{Label: "V", Offset: vOff, Step: 4, SubW: 2, SubH: 1,
				BytesPerSample: 1},
		},
	}
}

var descriptors = map[PixelFormat]Descriptor{
	FormatARGB: packedRGB(FormatARGB, 1, 2, 3),
	FormatBGRA: packedRGB(FormatBGRA, 2, 1, 0),
	FormatABGR: packedRGB(FormatABGR, 3, 2, 1),
	FormatRGBA: packedRGB(FormatRGBA, 0, 1, 2),
	FormatXRGB: packedRGB(FormatXRGB, 1, 2, 3),
	FormatBGRX: packedRGB(FormatBGRX, 2, 1, 0),
	FormatXBGR: packedRGB(FormatXBGR, 3, 2, 1),
	FormatRGBX: packedRGB(FormatRGBX, 0, 1, 2),

	// RGB16 is compared as one 16-bit component per pixel rather than
	// unpacking the 5/6/5 fields.
	FormatRGB16: {
		Format:    FormatRGB16,
		NumPlanes: 1,
		Planes:    []Plane{{SubW: 1, SubH: 1, BytesPerPixel: 2}},
		Inspected: []Component{
			{Label: "RGB", Step: 2, SubW: 1, SubH: 1, BytesPerSample: 2},
		},
	},

	FormatGRAY8: {
		Format:    FormatGRAY8,
		NumPlanes: 1,
		Planes:    []Plane{{SubW: 1, SubH: 1, BytesPerPixel: 1}},
		Inspected: []Component{
			{Label: "Y", Step: 1, SubW: 1, SubH: 1, BytesPerSample: 1},
		},
	},

	FormatI420: planarYUV(FormatI420, 2, 2),
	FormatY42B: planarYUV(FormatY42B, 2, 1),
	FormatY444: planarYUV(FormatY444, 1, 1),

	FormatNV12: semiPlanar420(FormatNV12, 0, 1),
	FormatNV21: semiPlanar420(FormatNV21, 1, 0),

	FormatYUY2: packed422(FormatYUY2, 0, 1, 3),
	FormatUYVY: packed422(FormatUYVY, 1, 0, 2),
}

// Describe returns the layout descriptor for a pixel format, or
// ErrFormatUnsupported for anything outside the closed set.
func Describe(f PixelFormat) (Descriptor, error) {
	d, ok := descriptors[f]
	if !ok {
		return Descriptor{}, ErrFormatUnsupported
	}
	return d, nil
}

// MaxSample returns the maximum sample value of the format: 255 for 8-bit
// samples, 65535 for the 16-bit RGB16 component.
func MaxSample(f PixelFormat) int {
	if f == FormatRGB16 {
		return 65535
	}
	return 255
}

func ceilDiv(a, b int) int { return (a + b - 1) / b }

// CompExtent returns the sample extent of a component for a W x H frame,
// using ceil-rounded subsampled dimensions.
func CompExtent(c Component, width, height int) (int, int) {
	return ceilDiv(width, c.SubW), ceilDiv(height, c.SubH)
}

// PlaneExtent returns the byte width of one row and the number of rows of a
// plane for a W x H frame, covering the plane's full storage footprint
// including alpha and padding bytes.
func (d Descriptor) PlaneExtent(plane, width, height int) (rowBytes, rows int) {
	if plane < 0 || plane >= len(d.Planes) {
		return 0, 0
	}
	p := d.Planes[plane]
	return ceilDiv(width, p.SubW) * p.BytesPerPixel, ceilDiv(height, p.SubH)
}

// FrameSize returns the total number of bytes of a tightly packed W x H
// frame, i.e. with stride equal to each plane's row width.
func (d Descriptor) FrameSize(width, height int) int {
	total := 0
	for p := 0; p < d.NumPlanes; p++ {
		rowBytes, rows := d.PlaneExtent(p, width, height)
		total += rowBytes * rows
	}
	return total
}
