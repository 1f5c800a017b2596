package texture

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/image/bmp"
)

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestLoadFrame(t *testing.T) {
	want := color.RGBA{R: 10, G: 20, B: 30, A: 255}
	dir := t.TempDir()

	var pngBuf, bmpBuf bytes.Buffer
	if err := png.Encode(&pngBuf, solid(4, 2, want)); err != nil {
		t.Fatal(err)
	}
	if err := bmp.Encode(&bmpBuf, solid(4, 2, want)); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		data []byte
	}{
		{"frame.png", pngBuf.Bytes()},
		{"frame.BMP", bmpBuf.Bytes()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name)
			if err := os.WriteFile(path, tt.data, 0o644); err != nil {
				t.Fatal(err)
			}
			img, err := LoadFrame(path)
			if err != nil {
				t.Fatalf("LoadFrame: %v", err)
			}
			if img.Bounds() != image.Rect(0, 0, 4, 2) {
				t.Errorf("bounds = %v", img.Bounds())
			}
			if got := img.RGBAAt(3, 1); got != want {
				t.Errorf("pixel = %+v, want %+v", got, want)
			}
		})
	}
}

func TestDecodeFrameErrors(t *testing.T) {
	if _, err := DecodeFrame(".gif", []byte("GIF89a")); err == nil {
		t.Error("expected error for unsupported format")
	}
	if _, err := DecodeFrame(".png", []byte("not a png")); err == nil {
		t.Error("expected error for corrupt data")
	}
	if _, err := LoadFrame(filepath.Join(t.TempDir(), "missing.png")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestToRGBA(t *testing.T) {
	src := image.NewNRGBA(image.Rect(2, 3, 5, 5))
	src.SetNRGBA(2, 3, color.NRGBA{R: 255, A: 255})
	got := ToRGBA(src)
	if got.Bounds() != image.Rect(0, 0, 3, 2) {
		t.Fatalf("bounds = %v, want origin-anchored 3x2", got.Bounds())
	}
	if c := got.RGBAAt(0, 0); c.R != 255 || c.A != 255 {
		t.Errorf("pixel = %+v", c)
	}

	rgba := image.NewRGBA(image.Rect(0, 0, 1, 1))
	if ToRGBA(rgba) != rgba {
		t.Error("origin-anchored RGBA should be returned as is")
	}
}

func TestResize(t *testing.T) {
	want := color.RGBA{R: 200, G: 100, B: 50, A: 255}
	got := Resize(solid(8, 8, want), 3, 5)
	if got.Bounds() != image.Rect(0, 0, 3, 5) {
		t.Fatalf("bounds = %v", got.Bounds())
	}
	c := got.RGBAAt(1, 2)
	for _, d := range []int{int(c.R) - int(want.R), int(c.G) - int(want.G), int(c.B) - int(want.B), int(c.A) - int(want.A)} {
		if d < -1 || d > 1 {
			t.Fatalf("resized uniform pixel = %+v, want %+v", c, want)
		}
	}
}
