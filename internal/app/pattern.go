package app

import (
	"image"
	"image/color"
)

// checkerCells is the number of cells along the longer side.
const checkerCells = 16

// TestPattern returns a checkerboard camera frame of the given size with
// a red left half and a blue right half, so each eye's plate is easy to
// tell apart.
func TestPattern(width, height int) *image.RGBA {
	if width < 1 || height < 1 {
		width, height = 1, 1
	}
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	cell := max(width, height) / checkerCells
	if cell < 1 {
		cell = 1
	}
	for y := range height {
		for x := range width {
			var c color.RGBA
			on := (x/cell+y/cell)%2 == 0
			switch {
			case x < width/2 && on:
				c = color.RGBA{R: 220, G: 60, B: 60, A: 255}
			case x < width/2:
				c = color.RGBA{R: 90, G: 20, B: 20, A: 255}
			case on:
				c = color.RGBA{R: 60, G: 60, B: 220, A: 255}
			default:
				c = color.RGBA{R: 20, G: 20, B: 90, A: 255}
			}
			img.SetRGBA(x, y, c)
		}
	}
	return img
}
