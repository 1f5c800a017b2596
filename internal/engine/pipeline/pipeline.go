package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/mmdvr/internal/engine/model"
	"github.com/Faultbox/mmdvr/internal/logger"
)

// Factory creates a fresh backend.
type Factory func() (Backend, error)

// Pipeline drives frames through a backend and recreates the backend when
// it reports a recoverable device error.
type Pipeline struct {
	factory   Factory
	backend   Backend
	model     *model.Model
	recreated int
	log       *zap.Logger
}

// New creates a pipeline with a backend from factory.
func New(factory Factory) (*Pipeline, error) {
	b, err := factory()
	if err != nil {
		return nil, err
	}
	return &Pipeline{factory: factory, backend: b, log: logger.Named("pipeline")}, nil
}

// Backend returns the current backend.
func (p *Pipeline) Backend() Backend { return p.backend }

// Recreated is the number of times the backend was replaced.
func (p *Pipeline) Recreated() int { return p.recreated }

// Upload hands m to the backend. Asset errors are returned unchanged.
func (p *Pipeline) Upload(m *model.Model) error {
	if err := p.backend.Upload(m); err != nil {
		return err
	}
	p.model = m
	return nil
}

// Frame runs one frame. After a recoverable device error the backend is
// recreated, the model uploaded again and the frame retried once.
func (p *Pipeline) Frame(ctx context.Context, in *FrameInput) (*FrameOutput, error) {
	out, err := p.backend.Run(ctx, in)
	if err == nil || !Recoverable(err) {
		return out, err
	}

	p.log.Warn("recreating backend", zap.String("backend", p.backend.Name()), logger.Frame(in.Index), zap.Error(err))
	if rerr := p.recreate(); rerr != nil {
		return nil, fmt.Errorf("recreating after %v: %w", err, rerr)
	}
	return p.backend.Run(ctx, in)
}

func (p *Pipeline) recreate() error {
	if err := p.backend.Close(); err != nil {
		p.log.Warn("closing failed backend", zap.Error(err))
	}
	b, err := p.factory()
	if err != nil {
		return err
	}
	p.backend = b
	p.recreated++
	if p.model == nil {
		return nil
	}
	return b.Upload(p.model)
}

// Close releases the backend.
func (p *Pipeline) Close() error {
	return p.backend.Close()
}
