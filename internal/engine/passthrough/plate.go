package passthrough

import (
	"context"
	"image"
	"image/color"

	"github.com/chewxy/math32"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Faultbox/mmdvr/internal/engine/stereo"
	"github.com/Faultbox/mmdvr/internal/engine/texture"
	"github.com/Faultbox/mmdvr/internal/logger"
	"github.com/Faultbox/mmdvr/pkg/math"
)

// PlateRenderer draws undistorted background plates from camera frames.
type PlateRenderer struct {
	intrinsics [stereo.Eyes]Intrinsics
	raw        [stereo.Eyes]stereo.Fov
	// fov is set for camera-aligned plates described by a field of view.
	fov     *FovSpec
	workers int
	log     *zap.Logger
}

// NewPlateRenderer creates a renderer for a calibrated camera and the
// eyes' projection tangents.
func NewPlateRenderer(cal *Calibration, raw [stereo.Eyes]stereo.Fov, workers int) (*PlateRenderer, error) {
	in, err := cal.Intrinsics()
	if err != nil {
		return nil, err
	}
	if workers < 1 {
		workers = 1
	}
	return &PlateRenderer{intrinsics: in, raw: raw, workers: workers, log: logger.Named("passthrough")}, nil
}

// NewFovPlateRenderer creates a renderer whose plates span a camera-aligned
// field of view instead of the eyes' projection. Such plates do not follow
// head motion, so Render ignores the shift.
func NewFovPlateRenderer(cal *Calibration, fov FovSpec, workers int) (*PlateRenderer, error) {
	if err := fov.Validate(); err != nil {
		return nil, err
	}
	raw := fov.Raw()
	p, err := NewPlateRenderer(cal, [stereo.Eyes]stereo.Fov{raw, raw}, workers)
	if err != nil {
		return nil, err
	}
	p.fov = &fov
	return p, nil
}

// Intrinsics returns both eyes' normalized intrinsics.
func (p *PlateRenderer) Intrinsics() [stereo.Eyes]Intrinsics { return p.intrinsics }

// Block returns the std140 intrinsics block for GPU upload.
func (p *PlateRenderer) Block() []byte {
	return MarshalIntrinsics(p.raw, p.intrinsics)
}

// Render fills dst with one eye's view of frame, tinted by the draw's
// color. The eye is the hardware index when there is one, otherwise the
// draw's override. Pixels whose ray misses the camera are left transparent.
func (p *PlateRenderer) Render(ctx context.Context, eye stereo.ActiveEye, draw stereo.DrawParams, frame image.Image, shift math.Mat4, dst *image.RGBA) error {
	i := eye.Resolve(draw)
	src := texture.ToRGBA(frame)
	in, raw := p.intrinsics[i], p.raw[i]
	b := dst.Bounds()
	w, h := float32(b.Dx()), float32(b.Dy())

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			v := 1 - (float32(y-b.Min.Y)+0.5)/h
			for x := b.Min.X; x < b.Max.X; x++ {
				u := (float32(x-b.Min.X) + 0.5) / w
				var uv math.Vec2
				ok := true
				if p.fov != nil {
					uv = in.UndistortFov(*p.fov, math.Vec2{X: 2*u - 1, Y: 2*v - 1})
				} else {
					uv, ok = in.Undistort(raw, shift, math.Vec2{X: u, Y: v})
				}
				if !ok {
					dst.SetRGBA(x, y, color.RGBA{})
					continue
				}
				dst.SetRGBA(x, y, tint(Sample(src, uv), draw.Color))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	p.log.Debug("plate rendered", logger.Eye(i), zap.Int("width", b.Dx()), zap.Int("height", b.Dy()))
	return nil
}

var white = math.Vec4{1, 1, 1, 1}

// tint multiplies c by t, keeping the result premultiplied.
func tint(c color.RGBA, t math.Vec4) color.RGBA {
	if t == white {
		return c
	}
	scale := func(v uint8, f float32) uint8 {
		return uint8(math32.Round(math32.Min(math32.Max(float32(v)*f, 0), 255)))
	}
	a := scale(c.A, t[3])
	return color.RGBA{
		R: min(scale(c.R, t[0]), a),
		G: min(scale(c.G, t[1]), a),
		B: min(scale(c.B, t[2]), a),
		A: a,
	}
}

// Sample reads src at texture coordinate uv with bilinear filtering and
// clamp-to-edge addressing.
func Sample(src *image.RGBA, uv math.Vec2) color.RGBA {
	b := src.Bounds()
	if b.Empty() {
		return color.RGBA{}
	}
	fx := uv.X*float32(b.Dx()) - 0.5
	fy := uv.Y*float32(b.Dy()) - 0.5
	x0, y0 := math32.Floor(fx), math32.Floor(fy)
	tx, ty := fx-x0, fy-y0

	ix0 := clamp(int(x0), b.Dx()-1) + b.Min.X
	ix1 := clamp(int(x0)+1, b.Dx()-1) + b.Min.X
	iy0 := clamp(int(y0), b.Dy()-1) + b.Min.Y
	iy1 := clamp(int(y0)+1, b.Dy()-1) + b.Min.Y

	c00, c10 := src.RGBAAt(ix0, iy0), src.RGBAAt(ix1, iy0)
	c01, c11 := src.RGBAAt(ix0, iy1), src.RGBAAt(ix1, iy1)
	mix := func(a, b, c, d uint8) uint8 {
		top := float32(a) + (float32(b)-float32(a))*tx
		bottom := float32(c) + (float32(d)-float32(c))*tx
		return uint8(math32.Round(top + (bottom-top)*ty))
	}
	return color.RGBA{
		R: mix(c00.R, c10.R, c01.R, c11.R),
		G: mix(c00.G, c10.G, c01.G, c11.G),
		B: mix(c00.B, c10.B, c01.B, c11.B),
		A: mix(c00.A, c10.A, c01.A, c11.A),
	}
}

func clamp(i, hi int) int {
	if i < 0 {
		return 0
	}
	if i > hi {
		return hi
	}
	return i
}
