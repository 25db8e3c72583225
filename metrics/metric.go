// Package metrics implements the objective quality metrics the comparison
// engine can run over a frame pair: PSNR and SSIM.
//
// Both kernels operate on the read-only component views of a frame and are
// total over well-formed inputs; the only failure modes are mismatched or
// empty geometry. Scores are symmetric in (ref, cmp).
package metrics

import (
	"errors"
	"fmt"

	"github.com/GreatValueCreamSoda/govidcompare/pixfmt"
	"github.com/GreatValueCreamSoda/govidcompare/video"
)

var (
	// ErrGeometryMismatch is returned when the two frames of a pair disagree
	// on width, height or pixel format.
	ErrGeometryMismatch = errors.New("frame geometry mismatch")

	// ErrEmptyFrame is returned when a frame has a zero-sized extent.
	ErrEmptyFrame = errors.New("frame has empty geometry")
)

// Method selects the comparison metric.
type Method int

const (
	MethodSSIM Method = iota
	MethodPSNR
)

// String returns the method's canonical label as written to the stats sink.
func (m Method) String() string {
	switch m {
	case MethodSSIM:
		return "ssim"
	case MethodPSNR:
		return "psnr"
	}
	return "unknown"
}

// ParseMethod maps a canonical label to its Method. Matching is
// case-sensitive: only "ssim" and "psnr" are recognized.
func ParseMethod(label string) (Method, error) {
	switch label {
	case "ssim":
		return MethodSSIM, nil
	case "psnr":
		return MethodPSNR, nil
	}
	return 0, fmt.Errorf("unknown compare method %q", label)
}

// Result holds the scores of one frame-pair comparison: one scalar per
// inspected component, in the format's fixed component order, plus a single
// aggregate weighted by inspected sample count.
type Result struct {
	Labels    []string
	Scores    []float64
	Aggregate float64
}

// Metric is the interface every comparison metric implements.
type Metric interface {
	Name() string
	Compute(ref, cmp *video.Frame) (Result, error)
}

// New returns the kernel for the given method.
func New(m Method) (Metric, error) {
	switch m {
	case MethodSSIM:
		return ssimMetric{}, nil
	case MethodPSNR:
		return psnrMetric{}, nil
	}
	return nil, fmt.Errorf("unknown compare method %d", int(m))
}

// pairViews validates pair geometry and returns the per-component views of
// both frames together with the inspected-component labels.
func pairViews(ref, cmp *video.Frame) ([]video.CompView, []video.CompView,
	[]string, error) {
	if ref.Width() == 0 || ref.Height() == 0 {
		return nil, nil, nil, ErrEmptyFrame
	}
	if !ref.SameGeometry(cmp) {
		return nil, nil, nil, fmt.Errorf("%w: %dx%d %s vs %dx%d %s",
			ErrGeometryMismatch, ref.Width(), ref.Height(), ref.Format(),
			cmp.Width(), cmp.Height(), cmp.Format())
	}

	refViews, err := video.CompViews(ref)
	if err != nil {
		return nil, nil, nil, err
	}
	cmpViews, err := video.CompViews(cmp)
	if err != nil {
		return nil, nil, nil, err
	}

	desc, err := pixfmt.Describe(ref.Format())
	if err != nil {
		return nil, nil, nil, err
	}
	labels := make([]string, len(desc.Inspected))
	for i, c := range desc.Inspected {
		labels[i] = c.Label
	}

	return refViews, cmpViews, labels, nil
}
