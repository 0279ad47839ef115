package preprocess

import (
	"image"
	"image/color"
	"testing"
)

func checkerboard(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if (x/4+y/4)%2 == 0 {
				img.Set(x, y, color.White)
			} else {
				img.Set(x, y, color.Black)
			}
		}
	}
	return img
}

func TestProcessDeterministic(t *testing.T) {
	src := checkerboard(40, 40)
	opts := DefaultOptions()

	out1 := Process(src, opts)
	out2 := Process(src, opts)

	if out1.Bounds() != out2.Bounds() {
		t.Fatalf("bounds differ between runs")
	}
	b := out1.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if out1.GrayAt(x, y) != out2.GrayAt(x, y) {
				t.Fatalf("pixel (%d,%d) differs between deterministic runs", x, y)
			}
		}
	}
}

func TestProcessDoesNotMutateSource(t *testing.T) {
	src := checkerboard(20, 20)
	before := make([]byte, len(src.Pix))
	copy(before, src.Pix)

	_ = Process(src, DefaultOptions())

	for i := range before {
		if src.Pix[i] != before[i] {
			t.Fatalf("source pixel buffer mutated at index %d", i)
		}
	}
}

func TestProcessPreservesDimensions(t *testing.T) {
	src := checkerboard(33, 17)
	out := Process(src, DefaultOptions())
	if out.Bounds().Dx() != 33 || out.Bounds().Dy() != 17 {
		t.Errorf("output dims = %dx%d, want 33x17", out.Bounds().Dx(), out.Bounds().Dy())
	}
}

func TestProcessOutputIsBinarized(t *testing.T) {
	src := checkerboard(32, 32)
	out := Process(src, DefaultOptions())
	b := out.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			v := out.GrayAt(x, y).Y
			if v != 0 && v != 255 {
				t.Fatalf("pixel (%d,%d) = %d, want 0 or 255 after adaptive threshold", x, y, v)
			}
		}
	}
}

func TestIntegralImageSumRegionMatchesBruteForce(t *testing.T) {
	src := checkerboard(16, 16)
	gray := image.NewGray(src.Bounds())
	grayscaleInto(gray, src)
	ii := buildIntegral(gray)

	x0, y0, x1, y1 := 2, 3, 10, 9
	var brute int64
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			brute += int64(gray.GrayAt(x, y).Y)
		}
	}
	got := ii.sumRegion(x0, y0, x1, y1)
	if got != brute {
		t.Errorf("sumRegion = %d, want %d", got, brute)
	}
}

func TestGrayClampBounds(t *testing.T) {
	if grayClamp(-10) != 0 {
		t.Error("negative value should clamp to 0")
	}
	if grayClamp(300) != 255 {
		t.Error("overflow value should clamp to 255")
	}
	if grayClamp(128) != 128 {
		t.Error("in-range value should pass through")
	}
}
