// Package main is the entry point for the mmdvr renderer.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/Faultbox/mmdvr/internal/app"
	"github.com/Faultbox/mmdvr/internal/config"
	"github.com/Faultbox/mmdvr/internal/engine/pipeline"
	"github.com/Faultbox/mmdvr/internal/engine/renderer"
	"github.com/Faultbox/mmdvr/internal/logger"
)

func main() {
	// Parse CLI flags first
	config.ParseFlags()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	if path := config.WriteConfigPath(); path != "" {
		if err := cfg.SaveTo(path); err != nil {
			fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Wrote %s\n", path)
		return
	}

	fileCfg := logger.FileConfig{}
	if cfg.Logging.LogFile != "" {
		fileCfg = logger.DefaultFileConfig(cfg.Logging.LogFile)
		fileCfg.JSON = cfg.Logging.JSON
	}
	if err := logger.InitWithFileConfig(cfg.Logging.Level, fileCfg, true); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("=== mmdvr ===")
	logger.Sugar.Debugf("Config: %+v", cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(cfg, backendFactory(cfg))
	if err != nil {
		logger.Error("failed to create renderer", zap.Error(err))
		os.Exit(1)
	}
	defer a.Close()

	if err := a.Run(ctx); err != nil {
		logger.Error("render error", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("renderer closed normally")
}

// backendFactory returns a constructor for the configured backend. The
// pipeline calls it again after a device loss.
func backendFactory(cfg *config.Config) pipeline.Factory {
	return func() (pipeline.Backend, error) {
		opts, _, err := pipeline.OptionsFromConfig(cfg)
		if err != nil {
			return nil, err
		}
		switch cfg.Render.Backend {
		case "gl":
			c, err := renderer.NewCompute(opts, cfg.GPU.Debug)
			if err != nil {
				return nil, err
			}
			return c, nil
		default:
			return pipeline.NewCPU(opts), nil
		}
	}
}
