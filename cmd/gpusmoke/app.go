package main

import (
	"context"
	"errors"
	"io"

	"github.com/fxnlabs/gpu-smoke/internal/config"
	"github.com/fxnlabs/gpu-smoke/internal/cuda"
	"github.com/fxnlabs/gpu-smoke/internal/fatbin"
	"github.com/fxnlabs/gpu-smoke/internal/gpu"
	"github.com/fxnlabs/gpu-smoke/internal/metrics"
	"github.com/fxnlabs/gpu-smoke/internal/smoke"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// components are the objects commands pull out of the fx graph.
type components struct {
	Image   *fatbin.Image
	Manager *gpu.Manager
	Runner  *smoke.Runner
}

// withComponents builds the dependency graph, starts it, hands the
// components to fn and stops the graph, which releases the device.
func withComponents(ctx context.Context, st *cliState, fn func(context.Context, components) error) error {
	var comps components
	app := fx.New(
		fx.Supply(st.cfg, st.log),
		fx.Provide(
			func() io.Writer { return st.out },
			provideImage,
			provideManager,
			provideRunner,
		),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			l := &fxevent.ZapLogger{Logger: log.Named("fx")}
			l.UseLogLevel(zapcore.DebugLevel)
			return l
		}),
		fx.Populate(&comps.Image, &comps.Manager, &comps.Runner),
	)
	if err := app.Err(); err != nil {
		return err
	}

	if err := app.Start(ctx); err != nil {
		return err
	}
	runErr := fn(ctx, comps)

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), app.StopTimeout())
	defer cancel()
	return errors.Join(runErr, app.Stop(stopCtx))
}

// provideImage resolves the configured module. When the backend is not
// forced to cuda, an unreadable module falls back to the embedded kernel.
func provideImage(cfg *config.Config, log *zap.Logger) (*fatbin.Image, error) {
	img, err := fatbin.Resolve(cfg.Module.Path)
	if err != nil {
		if cfg.Device.Backend == string(gpu.BackendCUDA) {
			return nil, err
		}
		log.Warn("failed to load module image, using embedded kernel",
			zap.String("path", cfg.Module.Path), zap.Error(err))
		return fatbin.Embedded(), nil
	}
	if img.Name != fatbin.EmbeddedName {
		if err := img.Verify(cfg.ModuleChecksum()); err != nil {
			return nil, err
		}
	}
	log.Debug("module image resolved",
		zap.String("name", img.Name),
		zap.Stringer("kind", img.Kind),
		zap.Int("bytes", len(img.Data)),
		zap.String("checksum", fatbin.FormatChecksum(img.Checksum)))
	return img, nil
}

func provideManager(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger, img *fatbin.Image) (*gpu.Manager, error) {
	kind, err := gpu.ParseBackendKind(cfg.Device.Backend)
	if err != nil {
		return nil, err
	}
	manager, err := gpu.NewManager(log, gpu.Options{
		Kind:    kind,
		Driver:  cuda.Driver{},
		Image:   img,
		Kernel:  cfg.Module.Kernel,
		Ordinal: cfg.Device.Ordinal,
		Block:   cuda.Dim{X: cfg.Launch.BlockX, Y: cfg.Launch.BlockY},
	})
	if err != nil {
		return nil, err
	}
	info := manager.GetDeviceInfo()
	metrics.DeviceMemoryBytes.Set(float64(info.TotalMemory))
	log.Info("backend selected",
		zap.String("backend", manager.GetBackendType()),
		zap.String("device", info.Name))

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return manager.Cleanup()
		},
	})
	return manager, nil
}

func provideRunner(manager *gpu.Manager, log *zap.Logger, out io.Writer, cfg *config.Config) *smoke.Runner {
	return smoke.NewRunner(manager, log, out, smoke.Options{
		M:         cfg.Matrix.M,
		K:         cfg.Matrix.K,
		N:         cfg.Matrix.N,
		Tolerance: cfg.Matrix.Tolerance,
	})
}
