package gpu

import (
	"fmt"
	"sync"

	"github.com/fxnlabs/gpu-smoke/internal/cuda"
	"go.uber.org/zap"
)

type shapeKey struct {
	m, n, k int
}

type kernelKey struct {
	shape shapeKey
	name  string
}

type kernelEntry struct {
	module   cuda.Module
	function cuda.Function
}

// kernelCache holds one loaded module per (shape, kernel name). Loading is
// done outside the lock; if two callers race, the first stored entry wins
// and the loser's module is unloaded.
type kernelCache struct {
	mu      sync.Mutex
	entries map[kernelKey]*kernelEntry
	log     *zap.Logger
}

func newKernelCache(log *zap.Logger) *kernelCache {
	return &kernelCache{
		entries: make(map[kernelKey]*kernelEntry),
		log:     log,
	}
}

func (kc *kernelCache) getOrLoad(drv Driver, shape shapeKey, name string, image []byte) (*kernelEntry, error) {
	key := kernelKey{shape: shape, name: name}

	kc.mu.Lock()
	if e, ok := kc.entries[key]; ok {
		kc.mu.Unlock()
		return e, nil
	}
	kc.mu.Unlock()

	mod, err := drv.ModuleLoadData(image)
	if err != nil {
		return nil, fmt.Errorf("failed to load module: %w", err)
	}
	fn, err := drv.ModuleGetFunction(mod, name)
	if err != nil {
		_ = drv.ModuleUnload(mod)
		return nil, fmt.Errorf("failed to get kernel function %q: %w", name, err)
	}
	entry := &kernelEntry{module: mod, function: fn}

	kc.mu.Lock()
	defer kc.mu.Unlock()
	if existing, ok := kc.entries[key]; ok {
		_ = drv.ModuleUnload(mod)
		return existing, nil
	}
	kc.entries[key] = entry
	kc.log.Debug("loaded kernel",
		zap.String("kernel", name),
		zap.Int("m", shape.m), zap.Int("n", shape.n), zap.Int("k", shape.k))
	return entry, nil
}

func (kc *kernelCache) len() int {
	kc.mu.Lock()
	defer kc.mu.Unlock()
	return len(kc.entries)
}

// unloadAll unloads every cached module and empties the cache. The first
// error is returned after all modules have been attempted.
func (kc *kernelCache) unloadAll(drv Driver) error {
	kc.mu.Lock()
	defer kc.mu.Unlock()

	var firstErr error
	for key, e := range kc.entries {
		if err := drv.ModuleUnload(e.module); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(kc.entries, key)
	}
	return firstErr
}
