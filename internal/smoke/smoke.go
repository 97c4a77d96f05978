// Package smoke runs the matrix-multiply smoke test and the repeated
// benchmark against a backend.
package smoke

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"time"

	"github.com/fxnlabs/gpu-smoke/internal/matrix"
	"github.com/fxnlabs/gpu-smoke/internal/metrics"
	"go.uber.org/zap"
)

// Multiplier is the part of gpu.Manager the runner needs.
type Multiplier interface {
	MatrixMultiply(a, b []float32, m, k, n int) ([]float32, error)
	GetBackendType() string
}

// Options sets the smoke shape and the accepted error per element.
type Options struct {
	M, K, N   int
	Tolerance float64
}

// Result describes one completed smoke run.
type Result struct {
	C       *matrix.Matrix
	Backend string
	Elapsed time.Duration
	GFLOPS  float64
}

// Runner drives a Multiplier and writes the product to out.
type Runner struct {
	backend Multiplier
	log     *zap.Logger
	out     io.Writer
	opts    Options
}

func NewRunner(backend Multiplier, log *zap.Logger, out io.Writer, opts Options) *Runner {
	return &Runner{
		backend: backend,
		log:     log.Named("smoke"),
		out:     out,
		opts:    opts,
	}
}

// Run multiplies A = 1..M*K by B = 1..K*N, prints C and checks it against
// the host reference. A wrong product yields a *matrix.MismatchError.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m, k, n := r.opts.M, r.opts.K, r.opts.N
	a := matrix.Sequence(m, k)
	b := matrix.Sequence(k, n)
	backend := r.backend.GetBackendType()

	r.log.Debug("running smoke multiply",
		zap.String("backend", backend),
		zap.String("a", a.Shape()),
		zap.String("b", b.Shape()))

	start := time.Now()
	data, err := r.backend.MatrixMultiply(a.Data, b.Data, m, k, n)
	elapsed := time.Since(start)
	if err != nil {
		metrics.Failures.WithLabelValues("launch").Inc()
		return nil, fmt.Errorf("matrix multiply on %s: %w", backend, err)
	}
	c, err := matrix.FromSlice(m, n, data)
	if err != nil {
		metrics.Failures.WithLabelValues("launch").Inc()
		return nil, err
	}

	if err := matrix.Format(r.out, c); err != nil {
		return nil, fmt.Errorf("failed to print result: %w", err)
	}

	want, err := matrix.Reference(a, b)
	if err != nil {
		return nil, err
	}
	if err := matrix.Compare(c.Data, want.Data, r.opts.Tolerance); err != nil {
		metrics.Failures.WithLabelValues("verify").Inc()
		return nil, err
	}

	res := &Result{
		C:       c,
		Backend: backend,
		Elapsed: elapsed,
		GFLOPS:  gflops(m, k, n, 1, elapsed),
	}
	record(res.Backend, m, elapsed, res.GFLOPS)

	r.log.Info("smoke test passed",
		zap.String("backend", backend),
		zap.Duration("elapsed", elapsed),
		zap.Float64("gflops", res.GFLOPS))
	return res, nil
}

func gflops(m, k, n, iterations int, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}
	return 2 * float64(m) * float64(k) * float64(n) * float64(iterations) / elapsed.Seconds() / 1e9
}

func record(backend string, rows int, elapsed time.Duration, gf float64) {
	metrics.LaunchesByBackend.WithLabelValues(backend).Inc()
	metrics.LaunchDuration.Observe(float64(elapsed) / float64(time.Millisecond))
	metrics.MatrixSize.Set(float64(rows))
	metrics.GFLOPS.Set(gf)
}

// newRand returns a deterministic generator for Freivalds vectors.
func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, ^seed))
}
