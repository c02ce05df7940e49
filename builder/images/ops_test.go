package images

import (
	"image"
	"testing"
)

func testImage(w, h int) image.Image {
	return image.NewRGBA(image.Rect(0, 0, w, h))
}

func TestFitNeverUpscales(t *testing.T) {
	small := testImage(100, 80)
	out := fit(small, Spec{Width: 800, Height: 600})
	if out.Bounds().Dx() != 100 || out.Bounds().Dy() != 80 {
		t.Errorf("fit upscaled a small image to %dx%d", out.Bounds().Dx(), out.Bounds().Dy())
	}
}

func TestFitDownscalesPreservingAspect(t *testing.T) {
	out := fit(testImage(1600, 1200), Spec{Width: 800, Height: 800})
	if out.Bounds().Dx() != 800 || out.Bounds().Dy() != 600 {
		t.Errorf("fit produced %dx%d, want 800x600", out.Bounds().Dx(), out.Bounds().Dy())
	}
}

func TestFillExactDimensions(t *testing.T) {
	out := fill(testImage(1600, 900), Spec{Width: 400, Height: 400, Anchor: "center"})
	if out.Bounds().Dx() != 400 || out.Bounds().Dy() != 400 {
		t.Errorf("fill produced %dx%d, want 400x400", out.Bounds().Dx(), out.Bounds().Dy())
	}
}

func TestResizeComputesMissingSide(t *testing.T) {
	out := resize(testImage(1000, 500), Spec{Width: 200})
	if out.Bounds().Dx() != 200 || out.Bounds().Dy() != 100 {
		t.Errorf("resize produced %dx%d, want 200x100", out.Bounds().Dx(), out.Bounds().Dy())
	}
}

func TestApplyWithoutDimensionsIsNoop(t *testing.T) {
	img := testImage(300, 200)
	for _, op := range []Op{OpFill, OpFit, OpResize} {
		out := apply(img, op, Spec{})
		if out != img {
			t.Errorf("%s without dimensions should return the source image", op)
		}
	}
}
