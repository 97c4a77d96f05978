package smoke

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fxnlabs/gpu-smoke/internal/matrix"
	"github.com/fxnlabs/gpu-smoke/internal/metrics"
	"go.uber.org/zap"
)

// ErrVerification is returned when a benchmark product fails Freivalds.
var ErrVerification = errors.New("benchmark result failed verification")

const (
	freivaldsIterations = 8
	// float32 sums of up to a few thousand terms in [1,255)^2
	freivaldsTolerance = 1e-3
)

// BenchOptions configures Bench.
type BenchOptions struct {
	Sizes      []int
	Iterations int
	Seed       uint64
}

// BenchResult is the outcome for one square size.
type BenchResult struct {
	Size       int
	Iterations int
	Elapsed    time.Duration
	GFLOPS     float64
	Verified   bool
}

// Bench multiplies random size×size matrices opts.Iterations times per size
// after one untimed warm-up. The last product of each size is checked with
// Freivalds' algorithm. Bench stops between launches once ctx is done and
// returns the sizes completed so far.
func (r *Runner) Bench(ctx context.Context, opts BenchOptions) ([]BenchResult, error) {
	if opts.Iterations <= 0 {
		return nil, fmt.Errorf("iterations must be positive, got %d", opts.Iterations)
	}
	backend := r.backend.GetBackendType()
	results := make([]BenchResult, 0, len(opts.Sizes))

	for i, size := range opts.Sizes {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		seed := opts.Seed + uint64(i)*2
		a := matrix.Random(size, size, seed)
		b := matrix.Random(size, size, seed+1)

		if _, err := r.backend.MatrixMultiply(a.Data, b.Data, size, size, size); err != nil {
			metrics.Failures.WithLabelValues("launch").Inc()
			return results, fmt.Errorf("warm-up at size %d: %w", size, err)
		}

		var last []float32
		var elapsed time.Duration
		for it := 0; it < opts.Iterations; it++ {
			if err := ctx.Err(); err != nil {
				return results, err
			}
			start := time.Now()
			out, err := r.backend.MatrixMultiply(a.Data, b.Data, size, size, size)
			took := time.Since(start)
			if err != nil {
				metrics.Failures.WithLabelValues("launch").Inc()
				return results, fmt.Errorf("iteration %d at size %d: %w", it, size, err)
			}
			metrics.LaunchDuration.Observe(float64(took) / float64(time.Millisecond))
			elapsed += took
			last = out
		}

		c, err := matrix.FromSlice(size, size, last)
		if err != nil {
			return results, err
		}
		res := BenchResult{
			Size:       size,
			Iterations: opts.Iterations,
			Elapsed:    elapsed,
			GFLOPS:     gflops(size, size, size, opts.Iterations, elapsed),
			Verified:   matrix.Freivalds(a, b, c, freivaldsIterations, freivaldsTolerance, newRand(seed)),
		}
		metrics.LaunchesByBackend.WithLabelValues(backend).Add(float64(opts.Iterations))
		metrics.MatrixSize.Set(float64(size))
		metrics.GFLOPS.Set(res.GFLOPS)

		r.log.Info("benchmark size completed",
			zap.String("backend", backend),
			zap.Int("size", size),
			zap.Int("iterations", opts.Iterations),
			zap.Duration("elapsed", elapsed),
			zap.Float64("gflops", res.GFLOPS),
			zap.Bool("verified", res.Verified))

		results = append(results, res)
		if !res.Verified {
			metrics.Failures.WithLabelValues("verify").Inc()
			return results, fmt.Errorf("%w at size %d", ErrVerification, size)
		}
	}
	return results, nil
}
