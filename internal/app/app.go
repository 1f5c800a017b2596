// Package app implements the frame driver: it owns the rig, the head pose
// and the passthrough state and feeds one FrameInput per frame into the
// pipeline.
package app

import (
	"context"
	"fmt"
	"image"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/mmdvr/internal/config"
	"github.com/Faultbox/mmdvr/internal/engine/camera"
	"github.com/Faultbox/mmdvr/internal/engine/model"
	"github.com/Faultbox/mmdvr/internal/engine/passthrough"
	"github.com/Faultbox/mmdvr/internal/engine/pipeline"
	"github.com/Faultbox/mmdvr/internal/engine/skeleton"
	"github.com/Faultbox/mmdvr/internal/engine/stereo"
	"github.com/Faultbox/mmdvr/internal/logger"
	"github.com/Faultbox/mmdvr/pkg/math"
)

// orbitStep is the simulated pointer drag per frame, in pixels.
const orbitStep = 2

// App is the running frame driver.
type App struct {
	cfg      *config.Config
	pipeline *pipeline.Pipeline
	model    *model.Model
	camera   *camera.OrbitCamera
	draw     stereo.DrawParams
	anim     *Animator
	log      *zap.Logger

	// Passthrough, nil when disabled.
	rig    *passthrough.Rig
	plates *passthrough.PlateRenderer
	frame  image.Image
	plate  [stereo.Eyes]*image.RGBA

	outline [stereo.Eyes][]math.Vec3
	frames  uint64
}

// New builds the demo rig, creates the pipeline with factory and uploads
// the rig.
func New(cfg *config.Config, factory pipeline.Factory) (*App, error) {
	log := logger.Named("app")
	log.Info("initializing",
		zap.String("backend", cfg.Render.Backend),
		zap.Int("workers", cfg.Skinning.Workers),
	)

	opts, draw, err := pipeline.OptionsFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("pipeline options: %w", err)
	}

	m := model.BuildTube(model.DefaultTubeOptions())
	a := &App{
		cfg:    cfg,
		model:  m,
		camera: camera.NewOrbitCamera(),
		draw:   draw,
		anim:   NewAnimator(m),
		log:    log,
	}
	a.camera.FitToBounds(m.Bounds)

	a.pipeline, err = pipeline.New(factory)
	if err != nil {
		return nil, fmt.Errorf("failed to create backend: %w", err)
	}
	if err := a.pipeline.Upload(m); err != nil {
		a.pipeline.Close()
		return nil, fmt.Errorf("failed to upload %s: %w", m.Name, err)
	}

	if cfg.Passthrough.Enabled {
		if err := a.initPassthrough(opts.Eyes); err != nil {
			a.pipeline.Close()
			return nil, err
		}
	}

	log.Info("initialized successfully", zap.String("backend", a.pipeline.Backend().Name()))
	return a, nil
}

func (a *App) initPassthrough(eyes [stereo.Eyes]stereo.EyePose) error {
	pc := a.cfg.Passthrough
	cal, err := passthrough.LoadCalibration(pc.Calibration)
	if err != nil {
		return fmt.Errorf("passthrough calibration: %w", err)
	}
	a.rig, err = passthrough.NewRig(cal)
	if err != nil {
		return fmt.Errorf("passthrough calibration: %w", err)
	}
	raw := [stereo.Eyes]stereo.Fov{eyes[stereo.Left].Fov, eyes[stereo.Right].Fov}
	a.plates, err = passthrough.NewPlateRenderer(cal, raw, a.cfg.Skinning.Workers)
	if err != nil {
		return fmt.Errorf("passthrough calibration: %w", err)
	}
	// No capture device is attached; a test pattern stands in for the
	// camera frame.
	a.frame = TestPattern(pc.FrameWidth, pc.FrameHeight)
	for eye := range a.plate {
		a.plate[eye] = image.NewRGBA(image.Rect(0, 0, pc.PlateWidth, pc.PlateHeight))
	}
	a.log.Info("passthrough enabled",
		zap.String("serial", cal.Serial),
		zap.Ints("frame_size", cal.FrameSize[:]),
	)
	return nil
}

// Run drives frames until the configured count is reached or ctx is done.
func (a *App) Run(ctx context.Context) error {
	lastTime := time.Now()
	frameCount := 0
	fpsTimer := time.Now()

	a.log.Info("starting frame loop", zap.Int("frames", a.cfg.Render.Frames))

	for a.cfg.Render.Frames == 0 || a.frames < uint64(a.cfg.Render.Frames) {
		if err := ctx.Err(); err != nil {
			a.log.Info("frame loop interrupted", logger.Frame(a.frames))
			return nil
		}

		now := time.Now()
		dt := now.Sub(lastTime).Seconds()
		lastTime = now

		if _, err := a.Step(ctx, float32(dt)); err != nil {
			return err
		}

		frameCount++
		if time.Since(fpsTimer) >= time.Second {
			a.log.Debug("fps", zap.Int("count", frameCount), zap.Float64("dt_ms", dt*1000))
			frameCount = 0
			fpsTimer = time.Now()
		}
	}

	a.log.Info("frame loop finished", zap.Uint64("frames", a.frames), zap.Int("recreated", a.pipeline.Recreated()))
	return nil
}

// Step advances the animation by dt seconds and runs one frame.
func (a *App) Step(ctx context.Context, dt float32) (*pipeline.FrameOutput, error) {
	a.anim.Advance(dt)
	a.camera.HandleDrag(orbitStep, 0)
	head := a.camera.HeadPose()

	in := &pipeline.FrameInput{
		Index:     a.frames,
		Weights:   a.anim.Weights(),
		Animation: a.anim.Bones(),
		Head:      head,
		Draw:      a.draw,
	}
	out, err := a.pipeline.Frame(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("frame %d: %w", a.frames, err)
	}

	if err := a.drawEyes(ctx, out, head); err != nil {
		return nil, fmt.Errorf("frame %d: %w", a.frames, err)
	}
	a.frames++
	return out, nil
}

// drawEyes issues each eye's draws separately, the way a target without
// hardware multiview does: the eye travels in the draw's override.
func (a *App) drawEyes(ctx context.Context, out *pipeline.FrameOutput, head math.Mat4) error {
	var shifts [stereo.Eyes]math.Mat4
	if a.rig != nil {
		q := skeleton.Orientation(head)
		// The test pattern is "captured" every frame.
		a.rig.FrameCaptured(q)
		shifts = a.rig.Shifts(q)
	}
	for eye := range stereo.Eyes {
		draw := a.draw
		draw.EyeOverride = uint32(eye)
		a.outline[eye] = out.Outline(stereo.NoHardwareEye(), draw)
		if a.rig == nil {
			continue
		}
		if err := a.plates.Render(ctx, stereo.NoHardwareEye(), draw, a.frame, shifts[eye], a.plate[eye]); err != nil {
			return fmt.Errorf("passthrough: %w", err)
		}
	}
	return nil
}

// Outlines returns the most recent outline positions of every vertex, in
// each eye's view space.
func (a *App) Outlines() [stereo.Eyes][]math.Vec3 { return a.outline }

// Plates returns the most recent background plates, or nil when
// passthrough is disabled.
func (a *App) Plates() []*image.RGBA {
	if a.rig == nil {
		return nil
	}
	return a.plate[:]
}

// Frames is the number of completed frames.
func (a *App) Frames() uint64 { return a.frames }

// Close releases the pipeline.
func (a *App) Close() {
	a.log.Info("closing")
	if err := a.pipeline.Close(); err != nil {
		a.log.Warn("closing backend", zap.Error(err))
	}
}
