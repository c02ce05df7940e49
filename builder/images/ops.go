package images

import (
	"image"

	"github.com/disintegration/imaging"
)

var anchorMap = map[string]imaging.Anchor{
	"center":      imaging.Center,
	"top":         imaging.Top,
	"bottom":      imaging.Bottom,
	"left":        imaging.Left,
	"right":       imaging.Right,
	"topleft":     imaging.TopLeft,
	"topright":    imaging.TopRight,
	"bottomleft":  imaging.BottomLeft,
	"bottomright": imaging.BottomRight,
}

// apply runs one operation over a decoded image.
func apply(img image.Image, op Op, spec Spec) image.Image {
	switch op {
	case OpFill:
		return fill(img, spec)
	case OpFit:
		return fit(img, spec)
	case OpResize:
		return resize(img, spec)
	case OpFilter:
		return filter(img, spec)
	}
	return img
}

// fill produces exact dimensions, cropping excess per the anchor. The
// smart anchor falls back to center: no face detection is available.
func fill(img image.Image, spec Spec) image.Image {
	if spec.Width <= 0 || spec.Height <= 0 {
		return img
	}
	anchor, ok := anchorMap[spec.Anchor]
	if !ok {
		anchor = imaging.Center
	}
	return imaging.Fill(img, spec.Width, spec.Height, anchor, imaging.Lanczos)
}

// fit scales to fit inside the box preserving aspect ratio. Never
// upscales.
func fit(img image.Image, spec Spec) image.Image {
	if spec.Width <= 0 || spec.Height <= 0 {
		return img
	}
	b := img.Bounds()
	if b.Dx() <= spec.Width && b.Dy() <= spec.Height {
		return img
	}
	return imaging.Fit(img, spec.Width, spec.Height, imaging.Lanczos)
}

// resize supports width-only, height-only, and exact WxH forms. A zero
// side is computed from the aspect ratio.
func resize(img image.Image, spec Spec) image.Image {
	if spec.Width <= 0 && spec.Height <= 0 {
		return img
	}
	return imaging.Resize(img, spec.Width, spec.Height, imaging.Lanczos)
}

// filter applies the named filters in order; unknown names are no-ops.
func filter(img image.Image, spec Spec) image.Image {
	out := img
	for _, f := range spec.Filters {
		switch f.Name {
		case "grayscale":
			out = imaging.Grayscale(out)
		case "blur":
			if f.Sigma > 0 {
				out = imaging.Blur(out, f.Sigma)
			}
		}
	}
	return out
}
