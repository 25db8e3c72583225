package metrics

import (
	"math"

	"github.com/GreatValueCreamSoda/govidcompare/pixfmt"
	"github.com/GreatValueCreamSoda/govidcompare/video"
)

// psnrMetric computes the peak signal-to-noise ratio over a frame pair.
//
// Per component: MSE over every sample, then 10*log10(MAX^2/MSE). A zero
// MSE yields +Inf, which the stats writer renders as the "inf" sentinel.
// The aggregate weights each component's MSE by its sample count before
// taking the logarithm, matching the ffmpeg psnr filter's average.
type psnrMetric struct{}

func (psnrMetric) Name() string { return MethodPSNR.String() }

func (psnrMetric) Compute(ref, cmp *video.Frame) (Result, error) {
	refViews, cmpViews, labels, err := pairViews(ref, cmp)
	if err != nil {
		return Result{}, err
	}

	maxVal := float64(pixfmt.MaxSample(ref.Format()))
	peak := maxVal * maxVal

	scores := make([]float64, len(refViews))
	var totalSSE, totalSamples int64

	for i := range refViews {
		n := int64(refViews[i].Samples())
		if n == 0 {
			// A component can have no stored samples at degenerate widths
			// (e.g. packed 4:2:2 narrower than one macropixel).
			scores[i] = math.Inf(1)
			continue
		}
		sse := sumSquaredError(refViews[i], cmpViews[i])

		totalSSE += sse
		totalSamples += n

		if sse == 0 {
			scores[i] = math.Inf(1)
			continue
		}
		mse := float64(sse) / float64(n)
		scores[i] = 10 * math.Log10(peak/mse)
	}

	agg := math.Inf(1)
	if totalSSE != 0 {
		weightedMSE := float64(totalSSE) / float64(totalSamples)
		agg = 10 * math.Log10(peak/weightedMSE)
	}

	return Result{Labels: labels, Scores: scores, Aggregate: agg}, nil
}

// sumSquaredError accumulates the squared sample differences of one
// component in 64-bit integer arithmetic.
func sumSquaredError(a, b video.CompView) int64 {
	var sse int64
	for y := 0; y < a.Height(); y++ {
		for x := 0; x < a.Width(); x++ {
			d := int64(a.Sample(x, y) - b.Sample(x, y))
			sse += d * d
		}
	}
	return sse
}
