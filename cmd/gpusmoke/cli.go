package main

import (
	"fmt"
	"io"

	"github.com/fxnlabs/gpu-smoke/internal/config"
	"github.com/fxnlabs/gpu-smoke/internal/logger"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

// cliState is filled in by the app's Before hook and shared by commands.
type cliState struct {
	cfg *config.Config
	log *zap.Logger
	out io.Writer
}

func newApp(out io.Writer) (*cli.App, *cliState) {
	st := &cliState{out: out}
	var configPath string

	app := &cli.App{
		Name:      "gpusmoke",
		Usage:     "Load a matmul kernel module, run it once and print the product",
		Writer:    out,
		ErrWriter: out,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Usage:       "Path to a YAML config file",
				EnvVars:     []string{"GPUSMOKE_CONFIG"},
				Destination: &configPath,
			},
			&cli.StringFlag{
				Name:  "verbosity",
				Usage: "Log level (debug, info, warn, error)",
			},
			&cli.StringFlag{
				Name:  "backend",
				Usage: "Backend to use: auto, cuda or cpu",
			},
			&cli.StringFlag{
				Name:  "module",
				Usage: `Path to the kernel module image, or "embedded"`,
			},
			&cli.StringFlag{
				Name:  "kernel",
				Usage: "Name of the kernel entry point",
			},
			&cli.StringFlag{
				Name:  "checksum",
				Usage: "Expected xxh3 checksum of the module image (hex)",
			},
			&cli.IntFlag{
				Name:  "device",
				Usage: "Device ordinal",
			},
		},
		Before: func(c *cli.Context) error {
			cfg := config.Default()
			if configPath != "" {
				var err error
				cfg, err = config.LoadConfig(configPath)
				if err != nil {
					return err
				}
			}
			applyFlags(c, cfg)
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid settings: %w", err)
			}

			zapLogger, err := logger.New(cfg.Logger.Verbosity, cfg.Logger.Encoding)
			if err != nil {
				return err
			}
			st.cfg = cfg
			st.log = zapLogger.Named("gpusmoke")
			return nil
		},
		After: func(c *cli.Context) error {
			if st.log != nil {
				_ = st.log.Sync()
			}
			return nil
		},
		Action: func(c *cli.Context) error {
			return runSmoke(c, st)
		},
		Commands: []*cli.Command{
			runCommand(st),
			infoCommand(st),
			benchCommand(st),
			initConfigCommand(st),
		},
	}
	return app, st
}

// applyFlags overrides config values with flags given on the command line.
func applyFlags(c *cli.Context, cfg *config.Config) {
	if c.IsSet("verbosity") {
		cfg.Logger.Verbosity = c.String("verbosity")
	}
	if c.IsSet("backend") {
		cfg.Device.Backend = c.String("backend")
	}
	if c.IsSet("module") {
		cfg.Module.Path = c.String("module")
	}
	if c.IsSet("kernel") {
		cfg.Module.Kernel = c.String("kernel")
	}
	if c.IsSet("checksum") {
		cfg.Module.Checksum = c.String("checksum")
	}
	if c.IsSet("device") {
		cfg.Device.Ordinal = c.Int("device")
	}
}
