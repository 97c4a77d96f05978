package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/fxnlabs/gpu-smoke/fixtures"
	"github.com/fxnlabs/gpu-smoke/internal/fatbin"
	"github.com/fxnlabs/gpu-smoke/internal/metrics"
	"github.com/fxnlabs/gpu-smoke/internal/smoke"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

func runCommand(st *cliState) *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Run the smoke multiplication once and print C",
		Action: func(c *cli.Context) error {
			return runSmoke(c, st)
		},
	}
}

func runSmoke(c *cli.Context, st *cliState) error {
	return withComponents(c.Context, st, func(ctx context.Context, comps components) error {
		_, err := comps.Runner.Run(ctx)
		return err
	})
}

func infoCommand(st *cliState) *cli.Command {
	return &cli.Command{
		Name:  "info",
		Usage: "Show the selected backend, device and module",
		Action: func(c *cli.Context) error {
			return withComponents(c.Context, st, func(ctx context.Context, comps components) error {
				banner := figure.NewFigure("gpusmoke", "", true)
				fmt.Fprintln(st.out, banner.String())

				info := comps.Manager.GetDeviceInfo()
				w := st.out
				fmt.Fprintf(w, "backend:            %s\n", comps.Manager.GetBackendType())
				fmt.Fprintf(w, "device:             %s\n", info.Name)
				fmt.Fprintf(w, "compute capability: %s\n", info.ComputeCapability)
				fmt.Fprintf(w, "total memory:       %.2f GiB\n", float64(info.TotalMemory)/(1<<30))
				fmt.Fprintf(w, "driver version:     %s\n", info.DriverVersion)
				if info.CUDAVersion != "" {
					fmt.Fprintf(w, "cuda version:       %s\n", info.CUDAVersion)
				}
				if len(info.Features) > 0 {
					fmt.Fprintf(w, "features:           %s\n", strings.Join(info.Features, " "))
				}
				fmt.Fprintf(w, "module:             %s (%s, %d bytes)\n", comps.Image.Name, comps.Image.Kind, len(comps.Image.Data))
				fmt.Fprintf(w, "module checksum:    %s\n", fatbin.FormatChecksum(comps.Image.Checksum))
				fmt.Fprintf(w, "kernel:             %s\n", st.cfg.Module.Kernel)
				return nil
			})
		},
	}
}

func benchCommand(st *cliState) *cli.Command {
	return &cli.Command{
		Name:  "bench",
		Usage: "Time repeated multiplications of random square matrices",
		Flags: []cli.Flag{
			&cli.IntSliceFlag{
				Name:  "sizes",
				Usage: "Square matrix sizes to benchmark",
			},
			&cli.IntFlag{
				Name:  "iterations",
				Usage: "Timed launches per size",
			},
			&cli.StringFlag{
				Name:  "metrics-addr",
				Usage: "Serve Prometheus metrics on this address while benchmarking",
			},
		},
		Action: func(c *cli.Context) error {
			opts := smoke.BenchOptions{
				Sizes:      st.cfg.Bench.Sizes,
				Iterations: st.cfg.Bench.Iterations,
				Seed:       st.cfg.Bench.Seed,
			}
			if c.IsSet("sizes") {
				opts.Sizes = c.IntSlice("sizes")
			}
			if c.IsSet("iterations") {
				opts.Iterations = c.Int("iterations")
			}
			addr := st.cfg.Metrics.ListenAddress
			if c.IsSet("metrics-addr") {
				addr = c.String("metrics-addr")
			}

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt)
			defer stop()

			if addr != "" {
				shutdown := serveMetrics(addr, st.log)
				defer shutdown()
			}

			return withComponents(ctx, st, func(ctx context.Context, comps components) error {
				results, err := comps.Runner.Bench(ctx, opts)
				for _, r := range results {
					fmt.Fprintf(st.out, "size=%d iterations=%d elapsed=%s gflops=%.3f verified=%t\n",
						r.Size, r.Iterations, r.Elapsed, r.GFLOPS, r.Verified)
				}
				return err
			})
		},
	}
}

func serveMetrics(addr string, log *zap.Logger) func() {
	srv := &http.Server{
		Addr:              addr,
		Handler:           metrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("serving metrics", zap.String("address", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server failed", zap.Error(err))
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

func initConfigCommand(st *cliState) *cli.Command {
	return &cli.Command{
		Name:  "init-config",
		Usage: "Write a commented config file with the default settings",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "output",
				Value: "config.yaml",
				Usage: "Destination path",
			},
			&cli.BoolFlag{
				Name:  "force",
				Usage: "Overwrite an existing file",
			},
		},
		Action: func(c *cli.Context) error {
			path := c.String("output")
			flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
			if c.Bool("force") {
				flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
			}
			f, err := os.OpenFile(path, flags, 0o644)
			if err != nil {
				return fmt.Errorf("failed to create config: %w", err)
			}
			if _, err := f.Write(fixtures.ConfigTemplate); err != nil {
				f.Close()
				return fmt.Errorf("failed to write config: %w", err)
			}
			if err := f.Close(); err != nil {
				return err
			}
			st.log.Info("config written", zap.String("path", path))
			return nil
		},
	}
}
