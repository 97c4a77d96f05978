package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/fxnlabs/gpu-smoke/internal/fatbin"
	"github.com/fxnlabs/gpu-smoke/kernels"
	"gopkg.in/yaml.v3"
)

// maxThreadsPerBlock bounds launch.blockX * launch.blockY.
const maxThreadsPerBlock = 1024

type Config struct {
	Logger struct {
		Verbosity string `yaml:"verbosity"`
		Encoding  string `yaml:"encoding"`
	} `yaml:"logger"`
	Module struct {
		Path     string `yaml:"path"`
		Kernel   string `yaml:"kernel"`
		Checksum string `yaml:"checksum"`
	} `yaml:"module"`
	Device struct {
		Ordinal int    `yaml:"ordinal"`
		Backend string `yaml:"backend"`
	} `yaml:"device"`
	Launch struct {
		BlockX uint32 `yaml:"blockX"`
		BlockY uint32 `yaml:"blockY"`
	} `yaml:"launch"`
	Matrix struct {
		M         int     `yaml:"m"`
		K         int     `yaml:"k"`
		N         int     `yaml:"n"`
		Tolerance float64 `yaml:"tolerance"`
	} `yaml:"matrix"`
	Bench struct {
		Sizes      []int  `yaml:"sizes"`
		Iterations int    `yaml:"iterations"`
		Seed       uint64 `yaml:"seed"`
	} `yaml:"bench"`
	Metrics struct {
		ListenAddress string `yaml:"listenAddress"`
	} `yaml:"metrics"`
}

// Default returns the smoke-test configuration: a 4x3 by 3x2 product on
// device 0 with the ll_matmul_gpu entry point and 16x16 blocks.
func Default() *Config {
	var c Config
	c.Logger.Verbosity = "info"
	c.Logger.Encoding = "console"
	c.Module.Path = kernels.DefaultFatbin
	c.Module.Kernel = kernels.EntryPoint
	c.Device.Backend = "auto"
	c.Launch.BlockX = 16
	c.Launch.BlockY = 16
	c.Matrix.M = 4
	c.Matrix.K = 3
	c.Matrix.N = 2
	c.Matrix.Tolerance = 1e-4
	c.Bench.Sizes = []int{64, 128, 256, 512}
	c.Bench.Iterations = 10
	c.Bench.Seed = 42
	return &c
}

// LoadConfig reads a YAML file over the defaults. Keys missing from the
// file keep their default value.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	config := Default()
	err = yaml.Unmarshal(data, config)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return config, nil
}

// Validate rejects settings that would make a launch impossible.
func (c *Config) Validate() error {
	var errs []error
	if c.Module.Kernel == "" {
		errs = append(errs, errors.New("module.kernel must not be empty"))
	}
	if _, err := fatbin.ParseChecksum(c.Module.Checksum); err != nil {
		errs = append(errs, err)
	}
	switch c.Device.Backend {
	case "auto", "cuda", "cpu":
	default:
		errs = append(errs, fmt.Errorf("device.backend %q must be one of auto, cuda, cpu", c.Device.Backend))
	}
	if c.Device.Ordinal < 0 {
		errs = append(errs, fmt.Errorf("device.ordinal %d must not be negative", c.Device.Ordinal))
	}
	if c.Launch.BlockX == 0 || c.Launch.BlockY == 0 {
		errs = append(errs, errors.New("launch.blockX and launch.blockY must be positive"))
	} else if uint64(c.Launch.BlockX)*uint64(c.Launch.BlockY) > maxThreadsPerBlock {
		errs = append(errs, fmt.Errorf("launch block %dx%d exceeds %d threads",
			c.Launch.BlockX, c.Launch.BlockY, maxThreadsPerBlock))
	}
	if c.Matrix.M <= 0 || c.Matrix.K <= 0 || c.Matrix.N <= 0 {
		errs = append(errs, fmt.Errorf("matrix dimensions must be positive (m=%d, k=%d, n=%d)",
			c.Matrix.M, c.Matrix.K, c.Matrix.N))
	}
	if c.Matrix.Tolerance < 0 {
		errs = append(errs, errors.New("matrix.tolerance must not be negative"))
	}
	for _, size := range c.Bench.Sizes {
		if size <= 0 {
			errs = append(errs, fmt.Errorf("bench size %d must be positive", size))
		}
	}
	if c.Bench.Iterations <= 0 {
		errs = append(errs, errors.New("bench.iterations must be positive"))
	}
	return errors.Join(errs...)
}

// ModuleChecksum returns the configured xxh3 checksum, or 0 when unset.
func (c *Config) ModuleChecksum() uint64 {
	sum, _ := fatbin.ParseChecksum(c.Module.Checksum)
	return sum
}
