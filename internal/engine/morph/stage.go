package morph

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Faultbox/mmdvr/internal/engine/buffer"
	"github.com/Faultbox/mmdvr/internal/logger"
)

// Options configures a Stage.
type Options struct {
	// Variant is "fixed" or "dynamic".
	Variant string
	// Capacity bounds the active set of the fixed variant.
	Capacity int
	Epsilon  float32
	Workers  int
}

// DefaultOptions returns the fixed 28-target variant.
func DefaultOptions() Options {
	return Options{Variant: buffer.VariantFixed, Capacity: 28, Epsilon: DefaultEpsilon, Workers: 4}
}

// Stage runs the accumulation pass on the CPU, one task per
// (work group, active target) pair.
type Stage struct {
	table  *Table
	active buffer.Store[Active]
	opts   Options
	log    *zap.Logger
}

// NewStage creates a stage over a built table.
func NewStage(table *Table, opts Options) *Stage {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Stage{
		table:  table,
		active: buffer.New[Active]("morph active set", opts.Variant, opts.Capacity),
		opts:   opts,
		log:    logger.Named("morph"),
	}
}

// Table returns the descriptor table.
func (s *Stage) Table() *Table { return s.table }

// Active returns the active set from the last SetWeights.
func (s *Stage) Active() []Active { return s.active.Items() }

// SetWeights selects the active targets for the next Run. weights is
// indexed by target id; ids beyond the table are an error.
func (s *Stage) SetWeights(weights []float32) error {
	if len(weights) > s.table.Targets() {
		return fmt.Errorf("morph weights: %d weights for %d targets", len(weights), s.table.Targets())
	}
	if err := s.active.Set(Activate(weights, s.opts.Epsilon)); err != nil {
		return fmt.Errorf("morph weights: %w", err)
	}
	return nil
}

// Run zeroes acc, accumulates every active target into it and returns the
// sealed offsets. With no active targets the buffer is only cleared.
func (s *Stage) Run(ctx context.Context, acc *Accumulator) (Offsets, error) {
	w := acc.Begin()
	active := s.active.Items()
	if len(active) == 0 {
		return w.Seal(), nil
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)
	for group := 0; group < s.table.Groups(); group++ {
		for _, a := range active {
			records := s.table.Row(a.ID)[group*GroupSize : (group+1)*GroupSize]
			weight := a.Weight
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				accumulateGroup(w, records, weight, acc.Len())
				return nil
			})
		}
	}
	err := g.Wait()
	offsets := w.Seal()
	if err != nil {
		return Offsets{}, err
	}

	s.log.Debug("accumulated",
		zap.Int("active", len(active)),
		zap.Int("groups", s.table.Groups()))
	return offsets, nil
}

// accumulateGroup is one work group: each lane adds its record's weighted
// offset to the vertex the record names.
func accumulateGroup(w *Writer, records []Record, weight float32, vertices int) {
	for _, r := range records {
		if r[0] == 0 && r[1] == 0 && r[2] == 0 {
			continue
		}
		if int(r.Vertex()) >= vertices {
			continue
		}
		w.Add(r.Vertex(), [3]int32{
			Contribution(r[0], weight),
			Contribution(r[1], weight),
			Contribution(r[2], weight),
		})
	}
}
