// Package pipeline runs the per-frame deformation stages (morph
// accumulation, bone palette evaluation, skinning) and the stereo frame
// setup behind a Backend, so the frame driver does not care whether the
// work happens on the CPU or on a GPU.
package pipeline

import (
	"context"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/mmdvr/internal/config"
	"github.com/Faultbox/mmdvr/internal/engine/buffer"
	"github.com/Faultbox/mmdvr/internal/engine/model"
	"github.com/Faultbox/mmdvr/internal/engine/morph"
	"github.com/Faultbox/mmdvr/internal/engine/skinning"
	"github.com/Faultbox/mmdvr/internal/engine/stereo"
	"github.com/Faultbox/mmdvr/pkg/math"
)

// Slots is the number of frames a backend keeps in flight. The output of
// frame n stays valid until frame n+Slots starts.
const Slots = 2

// Backend executes frames for one uploaded model.
type Backend interface {
	Name() string
	// Upload validates m and allocates its per-frame buffers.
	Upload(m *model.Model) error
	// Run computes one frame. Calls must not overlap.
	Run(ctx context.Context, in *FrameInput) (*FrameOutput, error)
	Close() error
}

// FrameInput is the state the frame driver writes once per frame.
type FrameInput struct {
	Index uint64
	// Weights holds morph weights by target id. Missing ids are zero.
	Weights []float32
	// Animation holds per-bone animation transforms; nil keeps the rest pose.
	Animation []math.Mat4
	// Overrides replaces the model-space transform of individual bones.
	Overrides map[int]math.Mat4
	// Head is the head-to-world transform.
	Head math.Mat4
	Draw stereo.DrawParams
}

// FrameOutput is the result of one frame. It aliases backend memory and is
// valid until frame Index+Slots starts.
type FrameOutput struct {
	Index    uint64
	Model    *model.Model
	Stereo   stereo.Frame
	Draw     stereo.DrawParams
	Palette  buffer.Store[math.Mat4]
	Vertices []skinning.Posed
	// Outlines holds per-eye outline positions for Draw when the backend
	// computes them itself. Nil entries are computed on demand.
	Outlines [stereo.Eyes][]math.Vec3
}

// Outline returns the outline-pushed view-space position of every vertex
// for the eye selected by eye and draw.
func (o *FrameOutput) Outline(eye stereo.ActiveEye, draw stereo.DrawParams) []math.Vec3 {
	i := eye.Resolve(draw)
	if o.Outlines[i] != nil && draw.Model == o.Draw.Model && draw.OutlineScale == o.Draw.OutlineScale {
		return o.Outlines[i]
	}
	mv := o.Stereo.ModelView(i, draw)
	out := make([]math.Vec3, len(o.Vertices))
	for v, p := range o.Vertices {
		out[v] = skinning.Outline(p, mv, o.Model.Vertices[v].EdgeScale, draw.OutlineScale)
	}
	return out
}

// CheckUpload validates m and checks that its skeleton fits the bone
// palette described by opts.
func CheckUpload(m *model.Model, opts Options) error {
	if err := m.Validate(); err != nil {
		return err
	}
	if opts.BoneVariant == buffer.VariantFixed && len(m.Bones) > opts.BoneCapacity {
		return &buffer.CapacityError{Name: "bone palette", Need: len(m.Bones), Cap: opts.BoneCapacity}
	}
	return nil
}

// Options configures a backend.
type Options struct {
	Morph        morph.Options
	BoneVariant  string
	BoneCapacity int
	Workers      int
	Stereo       stereo.Options
	Eyes         [stereo.Eyes]stereo.EyePose
}

// OptionsFromConfig derives backend options and the default draw
// parameters from the configuration.
func OptionsFromConfig(cfg *config.Config) (Options, stereo.DrawParams, error) {
	clip, err := stereo.ParseClip(cfg.Render.ClipConvention)
	if err != nil {
		return Options{}, stereo.DrawParams{}, err
	}
	if cfg.Morph.GroupSize != morph.GroupSize {
		return Options{}, stereo.DrawParams{}, fmt.Errorf("morph.group_size %d: only %d is supported", cfg.Morph.GroupSize, morph.GroupSize)
	}
	fovX := mgl32.DegToRad(cfg.Render.FovX)
	aspect := float32(cfg.Render.Width) / float32(cfg.Render.Height)

	opts := Options{
		Morph: morph.Options{
			Variant:  cfg.Morph.Variant,
			Capacity: cfg.Morph.FixedCapacity,
			Epsilon:  cfg.Morph.Epsilon,
			Workers:  cfg.Skinning.Workers,
		},
		BoneVariant:  cfg.Skinning.BoneVariant,
		BoneCapacity: cfg.Skinning.BoneCapacity,
		Workers:      cfg.Skinning.Workers,
		Stereo: stereo.Options{
			Near:           cfg.Render.Near,
			Far:            cfg.Render.Far,
			Clip:           clip,
			LightDirection: math.V3(cfg.Stereo.LightDirection),
			Ambient:        cfg.Stereo.Ambient,
		},
		Eyes: stereo.DesktopEyes(fovX, aspect, cfg.Stereo.IPD),
	}

	draw := stereo.DefaultDrawParams()
	draw.OutlineScale = skinning.OutlineScale(fovX, cfg.Render.PixelScale, cfg.Render.EdgeScale)
	return opts, draw, nil
}
