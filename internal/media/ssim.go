package media

// Structural similarity over grayscale frames, computed as the mean SSIM of
// non-overlapping 8x8 windows. Scores range from -1 to 1; identical frames
// score 1.0.

const ssimWindow = 8

const (
	ssimC1 = (0.01 * 255) * (0.01 * 255)
	ssimC2 = (0.03 * 255) * (0.03 * 255)
)

// SSIM compares two equally sized grayscale frames. Frames with mismatched
// dimensions score 0 (treated as entirely dissimilar).
func SSIM(a, b GrayFrame) float64 {
	if a.Width != b.Width || a.Height != b.Height {
		return 0
	}
	if len(a.Pixels) != a.Width*a.Height || len(b.Pixels) != b.Width*b.Height {
		return 0
	}

	var total float64
	var windows int
	for y := 0; y+ssimWindow <= a.Height; y += ssimWindow {
		for x := 0; x+ssimWindow <= a.Width; x += ssimWindow {
			total += windowSSIM(a, b, x, y)
			windows++
		}
	}
	if windows == 0 {
		return 0
	}
	return total / float64(windows)
}

func windowSSIM(a, b GrayFrame, x0, y0 int) float64 {
	const n = float64(ssimWindow * ssimWindow)

	var sumA, sumB float64
	for y := y0; y < y0+ssimWindow; y++ {
		row := y * a.Width
		for x := x0; x < x0+ssimWindow; x++ {
			sumA += float64(a.Pixels[row+x])
			sumB += float64(b.Pixels[row+x])
		}
	}
	meanA := sumA / n
	meanB := sumB / n

	var varA, varB, cov float64
	for y := y0; y < y0+ssimWindow; y++ {
		row := y * a.Width
		for x := x0; x < x0+ssimWindow; x++ {
			da := float64(a.Pixels[row+x]) - meanA
			db := float64(b.Pixels[row+x]) - meanB
			varA += da * da
			varB += db * db
			cov += da * db
		}
	}
	varA /= n - 1
	varB /= n - 1
	cov /= n - 1

	numerator := (2*meanA*meanB + ssimC1) * (2*cov + ssimC2)
	denominator := (meanA*meanA + meanB*meanB + ssimC1) * (varA + varB + ssimC2)
	return numerator / denominator
}
