package glprog_test

import (
	"bytes"
	"image"
	"image/color"
	"testing"

	"github.com/soypat/nodemat/glprog"
	"golang.org/x/image/bmp"
)

func TestDecodeTextureBMP(t *testing.T) {
	red := color.RGBA{R: 255, A: 255}
	blue := color.RGBA{B: 255, A: 255}
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.SetRGBA(0, 0, red)
	img.SetRGBA(1, 0, red)
	img.SetRGBA(0, 1, blue)
	img.SetRGBA(1, 1, blue)
	var buf bytes.Buffer
	err := bmp.Encode(&buf, img)
	if err != nil {
		t.Fatal(err)
	}

	tex, format, err := glprog.DecodeTexture(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if format != "bmp" {
		t.Errorf("want bmp format, got %q", format)
	}
	if tex.Bounds() != img.Bounds() {
		t.Fatalf("bounds changed: %v", tex.Bounds())
	}
	// Bottom row of the image is the first texel row.
	if got := tex.RGBAAt(0, 0); got != blue {
		t.Errorf("first row: want %v, got %v", blue, got)
	}
	if got := tex.RGBAAt(1, 1); got != red {
		t.Errorf("last row: want %v, got %v", red, got)
	}
}

func TestDecodeTextureInvalid(t *testing.T) {
	_, _, err := glprog.DecodeTexture(bytes.NewReader([]byte("not an image")))
	if err == nil {
		t.Fatal("expected error decoding garbage")
	}
}

func TestToRGBAOffset(t *testing.T) {
	gray := image.NewGray(image.Rect(3, 4, 5, 7))
	gray.SetGray(3, 4, color.Gray{Y: 200})
	rgba := glprog.ToRGBA(gray)
	if rgba.Bounds() != image.Rect(0, 0, 2, 3) {
		t.Fatalf("bounds not moved to origin: %v", rgba.Bounds())
	}
	if got := rgba.RGBAAt(0, 0); got != (color.RGBA{R: 200, G: 200, B: 200, A: 255}) {
		t.Errorf("bad conversion %v", got)
	}
	flipped := glprog.FlipVertical(rgba)
	if got := flipped.RGBAAt(0, 2); got != rgba.RGBAAt(0, 0) {
		t.Errorf("flip: want %v, got %v", rgba.RGBAAt(0, 0), got)
	}
}
