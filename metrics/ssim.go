package metrics

import (
	"github.com/GreatValueCreamSoda/govidcompare/pixfmt"
	"github.com/GreatValueCreamSoda/govidcompare/video"
)

// SSIM window geometry: non-overlapping uniform 8x8 blocks. Partial blocks
// at the right/bottom edge are clipped to the remaining area when at least
// minBlock samples survive in each dimension, otherwise skipped.
const (
	ssimBlockSize = 8
	ssimMinBlock  = 4
)

// ssimMetric computes the Wang/Bovik structural similarity index over a
// frame pair using a uniform 8x8 window advanced with stride 8.
//
// The per-component score is the arithmetic mean of the block scores; the
// aggregate is the mean across components weighted by each component's
// sample count. When a component is too small for any regular or clipped
// block (width or height below 4), a single clipped block covering the
// whole component is used so the score stays defined down to 1x1 frames.
type ssimMetric struct{}

func (ssimMetric) Name() string { return MethodSSIM.String() }

func (ssimMetric) Compute(ref, cmp *video.Frame) (Result, error) {
	refViews, cmpViews, labels, err := pairViews(ref, cmp)
	if err != nil {
		return Result{}, err
	}

	maxVal := float64(pixfmt.MaxSample(ref.Format()))
	c1 := (0.01 * maxVal) * (0.01 * maxVal)
	c2 := (0.03 * maxVal) * (0.03 * maxVal)

	scores := make([]float64, len(refViews))
	var aggSum, aggWeight float64

	for i := range refViews {
		if refViews[i].Samples() == 0 {
			scores[i] = 1
			continue
		}
		scores[i] = ssimPlane(refViews[i], cmpViews[i], c1, c2)

		w := float64(refViews[i].Samples())
		aggSum += scores[i] * w
		aggWeight += w
	}

	return Result{
		Labels:    labels,
		Scores:    scores,
		Aggregate: aggSum / aggWeight,
	}, nil
}

// ssimPlane walks one component in 8x8 steps and averages the block scores.
func ssimPlane(a, b video.CompView, c1, c2 float64) float64 {
	width, height := a.Width(), a.Height()

	var sum float64
	blocks := 0

	for y := 0; y < height; y += ssimBlockSize {
		bh := min(ssimBlockSize, height-y)
		if bh < ssimMinBlock {
			continue
		}
		for x := 0; x < width; x += ssimBlockSize {
			bw := min(ssimBlockSize, width-x)
			if bw < ssimMinBlock {
				continue
			}
			sum += ssimBlock(a, b, x, y, bw, bh, c1, c2)
			blocks++
		}
	}

	if blocks == 0 {
		// Component smaller than the minimum block in some dimension.
		return ssimBlock(a, b, 0, 0, width, height, c1, c2)
	}
	return sum / float64(blocks)
}

// ssimBlock evaluates the SSIM formula over one (possibly clipped) block.
func ssimBlock(a, b video.CompView, x0, y0, bw, bh int, c1, c2 float64) float64 {
	var sx, sy, sxx, syy, sxy float64

	for y := y0; y < y0+bh; y++ {
		for x := x0; x < x0+bw; x++ {
			va := float64(a.Sample(x, y))
			vb := float64(b.Sample(x, y))
			sx += va
			sy += vb
			sxx += va * va
			syy += vb * vb
			sxy += va * vb
		}
	}

	n := float64(bw * bh)
	muX := sx / n
	muY := sy / n
	varX := sxx/n - muX*muX
	varY := syy/n - muY*muY
	cov := sxy/n - muX*muY

	num := (2*muX*muY + c1) * (2*cov + c2)
	den := (muX*muX + muY*muY + c1) * (varX + varY + c2)
	return num / den
}
