package skinning

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Faultbox/mmdvr/internal/engine/buffer"
	"github.com/Faultbox/mmdvr/internal/engine/model"
	"github.com/Faultbox/mmdvr/internal/engine/morph"
	"github.com/Faultbox/mmdvr/internal/logger"
	"github.com/Faultbox/mmdvr/pkg/math"
)

// DefaultChunk is the number of vertices one task poses.
const DefaultChunk = 256

// Pass poses every vertex of a model in parallel.
type Pass struct {
	workers int
	chunk   int
	log     *zap.Logger
}

// NewPass creates a pass running on at most workers goroutines.
func NewPass(workers int) *Pass {
	if workers < 1 {
		workers = 1
	}
	return &Pass{workers: workers, chunk: DefaultChunk, log: logger.Named("skinning")}
}

// Run writes the posed vertices of m into out. offsets must be sealed; a
// zero Offsets means no morph displacement.
func (p *Pass) Run(ctx context.Context, m *model.Model, palette buffer.Store[math.Mat4], offsets morph.Offsets, out []Posed) error {
	if len(out) < len(m.Vertices) {
		return fmt.Errorf("skinning: output holds %d of %d vertices", len(out), len(m.Vertices))
	}
	if palette.Len() < len(m.Bones) {
		return fmt.Errorf("skinning: palette holds %d of %d bones", palette.Len(), len(m.Bones))
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for start := 0; start < len(m.Vertices); start += p.chunk {
		end := min(start+p.chunk, len(m.Vertices))
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			for i := start; i < end; i++ {
				out[i] = SkinVertex(&m.Vertices[i], palette, offsets.At(i))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	p.log.Debug("skinned", zap.Int("vertices", len(m.Vertices)), zap.Int("workers", p.workers))
	return nil
}
