package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Faultbox/mmdvr/internal/engine/buffer"
	"github.com/Faultbox/mmdvr/internal/engine/model"
	"github.com/Faultbox/mmdvr/internal/engine/morph"
	"github.com/Faultbox/mmdvr/internal/engine/skeleton"
	"github.com/Faultbox/mmdvr/internal/engine/skinning"
	"github.com/Faultbox/mmdvr/internal/engine/stereo"
	"github.com/Faultbox/mmdvr/internal/logger"
	"github.com/Faultbox/mmdvr/pkg/math"
)

// frameSlot holds the per-frame buffers of one in-flight frame.
type frameSlot struct {
	acc     *morph.Accumulator
	palette buffer.Store[math.Mat4]
	posed   []skinning.Posed
}

// CPU runs every stage on goroutines.
type CPU struct {
	opts    Options
	model   *model.Model
	morphs  *morph.Stage
	skel    *skeleton.Skeleton
	pass    *skinning.Pass
	builder *stereo.Builder
	slots   [Slots]frameSlot
	log     *zap.Logger
}

// NewCPU creates a CPU backend.
func NewCPU(opts Options) *CPU {
	return &CPU{
		opts:    opts,
		pass:    skinning.NewPass(opts.Workers),
		builder: stereo.NewBuilder(opts.Stereo, opts.Eyes),
		log:     logger.Named("pipeline"),
	}
}

// Name implements Backend.
func (c *CPU) Name() string { return "cpu" }

// Builder returns the stereo frame builder, for runtimes that update the
// eye configuration.
func (c *CPU) Builder() *stereo.Builder { return c.builder }

// Upload implements Backend.
func (c *CPU) Upload(m *model.Model) error {
	if err := CheckUpload(m, c.opts); err != nil {
		return err
	}

	table := morph.BuildTable(m)
	c.model = m
	c.morphs = morph.NewStage(table, c.opts.Morph)
	c.skel = skeleton.New(m)
	for i := range c.slots {
		c.slots[i] = frameSlot{
			acc:     morph.NewAccumulator(len(m.Vertices)),
			palette: buffer.New[math.Mat4]("bone palette", c.opts.BoneVariant, c.opts.BoneCapacity),
			posed:   make([]skinning.Posed, len(m.Vertices)),
		}
	}

	c.log.Info("model uploaded",
		zap.String("model", m.Name),
		zap.Int("vertices", len(m.Vertices)),
		zap.Int("bones", len(m.Bones)),
		zap.Int("morphs", len(m.Morphs)),
		zap.Int("morph_rows", table.MaxSize()))
	return nil
}

// Run implements Backend. Morph accumulation and palette evaluation run
// concurrently; skinning starts after both finished.
func (c *CPU) Run(ctx context.Context, in *FrameInput) (*FrameOutput, error) {
	if c.model == nil {
		return nil, ErrNotUploaded
	}
	slot := &c.slots[in.Index%Slots]

	if err := c.morphs.SetWeights(in.Weights); err != nil {
		return nil, fmt.Errorf("frame %d: %w", in.Index, err)
	}
	if err := Pose(c.skel, in); err != nil {
		return nil, fmt.Errorf("frame %d: %w", in.Index, err)
	}

	var offsets morph.Offsets
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		offsets, err = c.morphs.Run(gctx, slot.acc)
		return err
	})
	g.Go(func() error {
		return c.skel.Evaluate(slot.palette)
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("frame %d: %w", in.Index, err)
	}

	if err := c.pass.Run(ctx, c.model, slot.palette, offsets, slot.posed); err != nil {
		return nil, fmt.Errorf("frame %d: %w", in.Index, err)
	}

	out := &FrameOutput{
		Index:    in.Index,
		Model:    c.model,
		Stereo:   c.builder.Build(in.Head),
		Draw:     in.Draw,
		Palette:  slot.palette,
		Vertices: slot.posed,
	}
	c.log.Debug("frame done", logger.Frame(in.Index), zap.Int("active_morphs", len(c.morphs.Active())))
	return out, nil
}

// Pose resets s and applies the frame's animation and overrides.
func Pose(s *skeleton.Skeleton, in *FrameInput) error {
	s.Reset()
	if in.Animation != nil {
		if len(in.Animation) != s.Len() {
			return fmt.Errorf("animation has %d bones, model has %d", len(in.Animation), s.Len())
		}
		for i, m := range in.Animation {
			s.SetAnimation(i, m)
		}
	}
	for i, m := range in.Overrides {
		if i < 0 || i >= s.Len() {
			return fmt.Errorf("override for bone %d of %d", i, s.Len())
		}
		s.SetOverride(i, m)
	}
	return nil
}

// Close implements Backend.
func (c *CPU) Close() error {
	c.model = nil
	c.slots = [Slots]frameSlot{}
	return nil
}
