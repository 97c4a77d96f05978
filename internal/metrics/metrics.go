package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	EndpointResponses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gpusmoke_endpoint_responses_total",
		Help: "The total number of endpoint responses",
	}, []string{"endpoint", "status_code"})

	// Kernel launch metrics
	LaunchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "gpusmoke_matmul_duration_ms",
		Help:    "Duration of a matrix multiplication, including transfers, in milliseconds",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 18), // 50µs to ~6.5s
	})

	MatrixSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gpusmoke_matmul_size",
		Help: "Row count of the output of the last multiplication",
	})

	GFLOPS = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gpusmoke_matmul_gflops",
		Help: "Performance of the last matrix multiplication in GFLOPS",
	})

	LaunchesByBackend = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gpusmoke_matmul_total",
		Help: "Total number of matrix multiplications by backend",
	}, []string{"backend"})

	Failures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gpusmoke_failures_total",
		Help: "Total number of failed runs by stage",
	}, []string{"stage"})

	// Device metrics
	DeviceMemoryBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gpusmoke_device_memory_bytes",
		Help: "Total memory of the selected device in bytes",
	})
)

// Handler serves the default registry, recording its own responses.
func Handler() http.Handler {
	const path = "/metrics"
	mux := http.NewServeMux()
	mux.Handle(path, Middleware(promhttp.Handler(), path))
	return mux
}
