// Package config handles renderer configuration loading and management.
package config

import (
	"fmt"
	"runtime"
)

// Config holds all renderer settings.
type Config struct {
	Render      RenderConfig      `yaml:"render"`
	Morph       MorphConfig       `yaml:"morph"`
	Skinning    SkinningConfig    `yaml:"skinning"`
	Stereo      StereoConfig      `yaml:"stereo"`
	Passthrough PassthroughConfig `yaml:"passthrough"`
	GPU         GPUConfig         `yaml:"gpu"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// RenderConfig holds frame driving and projection settings.
type RenderConfig struct {
	Backend string `yaml:"backend"` // "cpu" or "gl"
	Frames  int    `yaml:"frames"`  // frames to run, 0 = until interrupted
	// ClipConvention is "opengl" or "vulkan" (y flipped, depth in [0,1]).
	ClipConvention string  `yaml:"clip_convention"`
	Near           float32 `yaml:"near"`
	Far            float32 `yaml:"far"`
	FovX           float32 `yaml:"fov_x"` // degrees, desktop (non-VR) eyes
	Width          int     `yaml:"width"`
	Height         int     `yaml:"height"`
	PixelScale     float32 `yaml:"pixel_scale"`
	EdgeScale      float32 `yaml:"edge_scale"`
}

// MorphConfig holds morph accumulation settings.
type MorphConfig struct {
	Variant       string  `yaml:"variant"` // "fixed" or "dynamic"
	FixedCapacity int     `yaml:"fixed_capacity"`
	GroupSize     int     `yaml:"group_size"`
	Epsilon       float32 `yaml:"epsilon"`
}

// SkinningConfig holds vertex blending settings.
type SkinningConfig struct {
	Workers      int    `yaml:"workers"`
	BoneVariant  string `yaml:"bone_variant"` // "fixed" or "dynamic"
	BoneCapacity int    `yaml:"bone_capacity"`
}

// StereoConfig holds per-eye shared uniform settings.
type StereoConfig struct {
	Ambient        float32    `yaml:"ambient"`
	LightDirection [3]float32 `yaml:"light_direction"`
	IPD            float32    `yaml:"ipd"` // meters, desktop stereo only
}

// PassthroughConfig holds camera passthrough settings.
type PassthroughConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Calibration string `yaml:"calibration"` // SteamVR JSON or YAML
	FrameWidth  int    `yaml:"frame_width"`
	FrameHeight int    `yaml:"frame_height"`
	PlateWidth  int    `yaml:"plate_width"`
	PlateHeight int    `yaml:"plate_height"`
}

// GPUConfig holds OpenGL compute backend settings.
type GPUConfig struct {
	Debug bool `yaml:"debug"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
	JSON    bool   `yaml:"json"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Render: RenderConfig{
			Backend:        "cpu",
			Frames:         120,
			ClipConvention: "opengl",
			Near:           0.1,
			Far:            100,
			FovX:           90,
			Width:          1280,
			Height:         720,
			PixelScale:     1.0 / 720,
			EdgeScale:      1,
		},
		Morph: MorphConfig{
			Variant:       "fixed",
			FixedCapacity: 28,
			GroupSize:     32,
			Epsilon:       1e-5,
		},
		Skinning: SkinningConfig{
			Workers:      runtime.NumCPU(),
			BoneVariant:  "fixed",
			BoneCapacity: 246,
		},
		Stereo: StereoConfig{
			Ambient:        0.25,
			LightDirection: [3]float32{0.5, -0.5, -1.5},
			IPD:            0.064,
		},
		Passthrough: PassthroughConfig{
			Enabled:     false,
			FrameWidth:  1920,
			FrameHeight: 960,
			PlateWidth:  960,
			PlateHeight: 960,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Validate reports settings the pipeline cannot run with.
func (c *Config) Validate() error {
	switch c.Render.Backend {
	case "cpu", "gl":
	default:
		return fmt.Errorf("render.backend %q: want cpu or gl", c.Render.Backend)
	}
	switch c.Render.ClipConvention {
	case "opengl", "vulkan":
	default:
		return fmt.Errorf("render.clip_convention %q: want opengl or vulkan", c.Render.ClipConvention)
	}
	if c.Render.Near <= 0 || c.Render.Far <= c.Render.Near {
		return fmt.Errorf("render near/far %v/%v: want 0 < near < far", c.Render.Near, c.Render.Far)
	}
	if c.Render.FovX <= 0 || c.Render.FovX >= 180 {
		return fmt.Errorf("render.fov_x %v: want (0, 180)", c.Render.FovX)
	}
	if c.Render.Width <= 0 || c.Render.Height <= 0 {
		return fmt.Errorf("render size %dx%d: want positive", c.Render.Width, c.Render.Height)
	}
	if err := validVariant("morph.variant", c.Morph.Variant); err != nil {
		return err
	}
	if err := validVariant("skinning.bone_variant", c.Skinning.BoneVariant); err != nil {
		return err
	}
	if c.Morph.FixedCapacity <= 0 || c.Morph.GroupSize <= 0 {
		return fmt.Errorf("morph capacity %d / group size %d: want positive", c.Morph.FixedCapacity, c.Morph.GroupSize)
	}
	if c.Skinning.BoneCapacity <= 0 {
		return fmt.Errorf("skinning.bone_capacity %d: want positive", c.Skinning.BoneCapacity)
	}
	if c.Passthrough.Enabled && c.Passthrough.Calibration == "" {
		return fmt.Errorf("passthrough enabled without calibration file")
	}
	return nil
}

func validVariant(name, v string) error {
	if v != "fixed" && v != "dynamic" {
		return fmt.Errorf("%s %q: want fixed or dynamic", name, v)
	}
	return nil
}
