package glprog

import (
	"errors"
	"image"
	"io"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// DecodeTexture decodes a PNG, JPEG, GIF, BMP, TIFF or WebP image into RGBA texels
// ordered bottom row first, ready for [NewTexture]. It returns the format name.
func DecodeTexture(r io.Reader) (*image.RGBA, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, "", err
	}
	if img.Bounds().Empty() {
		return nil, format, errors.New("empty image")
	}
	return FlipVertical(ToRGBA(img)), format, nil
}

// ToRGBA returns img as an RGBA image with bounds starting at the origin. img is
// returned as is when already in that form.
func ToRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	if rgba, ok := img.(*image.RGBA); ok && b.Min == (image.Point{}) && rgba.Stride == 4*b.Dx() {
		return rgba
	}
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// FlipVertical returns a copy of img mirrored top to bottom. OpenGL stores the
// first texel row at v=0, image formats store the top row first.
func FlipVertical(img *image.RGBA) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	rowLen := 4 * b.Dx()
	for y := 0; y < b.Dy(); y++ {
		src := img.Pix[img.PixOffset(b.Min.X, b.Min.Y+y):]
		copy(dst.Pix[(b.Dy()-1-y)*dst.Stride:], src[:rowLen])
	}
	return dst
}
