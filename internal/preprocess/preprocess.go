// Package preprocess prepares a captured Frame for OCR: grayscale, contrast
// stretch, a single sharpening pass, and adaptive binarization. It operates
// purely on the standard library's image package — no third-party imaging
// library appears anywhere in the retrieved corpus, and the teacher's own
// screen/OCR chain already treats image.Image as its lingua franca via
// image.Decode with registered image/jpeg and image/png decoders.
package preprocess

import (
	"image"
	"image/color"
)

// Options configures one preprocessing pass.
type Options struct {
	Contrast       float64 // linear contrast factor, expected in [1.2, 1.8]
	AdaptiveBlock  int     // neighborhood side B for adaptive threshold
	AdaptiveOffset int     // offset C subtracted from the local mean
}

// DefaultOptions matches the documented defaults.
func DefaultOptions() Options {
	return Options{Contrast: 1.5, AdaptiveBlock: 15, AdaptiveOffset: 10}
}

// sharpenKernel is applied once, exactly as specified: a unity-sum 3x3
// sharpen with center weight 5.
var sharpenKernel = [3][3]int{
	{0, -1, 0},
	{-1, 5, -1},
	{0, -1, 0},
}

// Process runs the full pipeline and returns a new image; the input is
// never mutated. Beyond the buffer it returns, it allocates one
// image-sized scratch buffer to ping-pong between the grayscale/contrast
// stage and the sharpen stage, plus a (w+1)x(h+1) int64 summed-area table
// the adaptive-threshold stage builds internally for O(1) local-mean
// lookups — larger than one scratch buffer, traded for avoiding an O(block²)
// mean recomputation per pixel.
func Process(src image.Image, opts Options) *image.Gray {
	bounds := src.Bounds()
	out := image.NewGray(bounds)
	scratch := image.NewGray(bounds)

	grayscaleInto(out, src)
	contrastStretch(out, opts.Contrast)
	sharpenInto(scratch, out)
	adaptiveThreshold(out, scratch, opts.AdaptiveBlock, opts.AdaptiveOffset)

	return out
}

// grayscaleInto fills dst with the weighted luma of src: 0.299R + 0.587G + 0.114B.
func grayscaleInto(dst *image.Gray, src image.Image) {
	b := src.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := src.At(x, y).RGBA()
			// RGBA() returns 16-bit channels; scale to 8-bit before weighting.
			r8, g8, b8 := float64(r>>8), float64(g>>8), float64(bl>>8)
			y8 := 0.299*r8 + 0.587*g8 + 0.114*b8
			dst.SetGray(x, y, color.Gray{Y: grayClamp(y8)})
		}
	}
}

// contrastStretch applies a linear stretch centered at mid-gray, in place.
func contrastStretch(img *image.Gray, factor float64) {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			v := float64(img.GrayAt(x, y).Y)
			nv := (v-128)*factor + 128
			img.SetGray(x, y, color.Gray{Y: grayClamp(nv)})
		}
	}
}

// sharpenInto applies the fixed 3x3 kernel once, reading from src (already
// grayscaled and contrast-stretched) and writing into dst. Border pixels
// replicate the edge instead of reading out of bounds.
func sharpenInto(dst *image.Gray, src *image.Gray) {
	b := src.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			sum := 0
			for ky := -1; ky <= 1; ky++ {
				for kx := -1; kx <= 1; kx++ {
					sx := clampInt(x+kx, b.Min.X, b.Max.X-1)
					sy := clampInt(y+ky, b.Min.Y, b.Max.Y-1)
					sum += sharpenKernel[ky+1][kx+1] * int(src.GrayAt(sx, sy).Y)
				}
			}
			dst.SetGray(x, y, color.Gray{Y: grayClamp(float64(sum))})
		}
	}
}

// adaptiveThreshold binarizes sharpened (computed via an integral image for
// O(1) local-mean lookups) into out, in place.
func adaptiveThreshold(out *image.Gray, sharpened *image.Gray, block, offset int) {
	if block < 1 {
		block = 1
	}
	b := sharpened.Bounds()
	w, h := b.Dx(), b.Dy()
	integral := buildIntegral(sharpened)

	half := block / 2
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			x0 := clampInt(x-half, 0, w-1)
			x1 := clampInt(x+half, 0, w-1)
			y0 := clampInt(y-half, 0, h-1)
			y1 := clampInt(y+half, 0, h-1)

			sum := integral.sumRegion(x0, y0, x1, y1)
			area := (x1 - x0 + 1) * (y1 - y0 + 1)
			mean := float64(sum) / float64(area)
			threshold := mean - float64(offset)

			v := float64(sharpened.GrayAt(b.Min.X+x, b.Min.Y+y).Y)
			if v > threshold {
				out.SetGray(b.Min.X+x, b.Min.Y+y, color.Gray{Y: grayClamp(255)})
			} else {
				out.SetGray(b.Min.X+x, b.Min.Y+y, color.Gray{Y: grayClamp(0)})
			}
		}
	}
}

// integralImage is a summed-area table over one grayscale image, sized
// (w+1)x(h+1), letting any rectangular-region sum be computed in O(1).
type integralImage struct {
	w, h int
	sum  []int64
}

func buildIntegral(img *image.Gray) *integralImage {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	ii := &integralImage{w: w, h: h, sum: make([]int64, (w+1)*(h+1))}

	for y := 0; y < h; y++ {
		var rowSum int64
		for x := 0; x < w; x++ {
			rowSum += int64(img.GrayAt(b.Min.X+x, b.Min.Y+y).Y)
			above := ii.at(x+1, y)
			ii.set(x+1, y+1, above+rowSum)
		}
	}
	return ii
}

func (ii *integralImage) at(x, y int) int64 { return ii.sum[y*(ii.w+1)+x] }
func (ii *integralImage) set(x, y int, v int64) { ii.sum[y*(ii.w+1)+x] = v }

func (ii *integralImage) sumRegion(x0, y0, x1, y1 int) int64 {
	a := ii.at(x0, y0)
	bb := ii.at(x1+1, y0)
	c := ii.at(x0, y1+1)
	d := ii.at(x1+1, y1+1)
	return d - bb - c + a
}

func grayClamp(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
