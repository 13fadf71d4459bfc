package engine

import (
	"context"
	"sync"

	"github.com/tetratelabs/wazero"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-tsfn/errors"
)

// WazeroEngine hosts guest modules on a wazero runtime.
type WazeroEngine struct {
	runtime wazero.Runtime
	logger  *zap.Logger

	mu     sync.Mutex
	guests map[*Guest]struct{}
	closed bool
}

// Config holds configuration for engine creation
type Config struct {
	// MemoryLimitPages sets the maximum memory per instance in pages (64KB each).
	// 0 means default (65536 pages = 4GB).
	// 256 = 16MB, 1024 = 64MB, 4096 = 256MB
	MemoryLimitPages uint32

	// Logger overrides the package logger for this engine and its guests.
	Logger *zap.Logger
}

// NewWazeroEngine creates a new wazero-based engine
func NewWazeroEngine(ctx context.Context) (*WazeroEngine, error) {
	return NewWazeroEngineWithConfig(ctx, nil)
}

// NewWazeroEngineWithConfig creates a new engine with custom configuration
func NewWazeroEngineWithConfig(ctx context.Context, cfg *Config) (*WazeroEngine, error) {
	runtimeCfg := wazero.NewRuntimeConfig()
	log := Logger()

	if cfg != nil {
		if cfg.MemoryLimitPages > 0 {
			runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
		}
		if cfg.Logger != nil {
			log = cfg.Logger
		}
	}

	return &WazeroEngine{
		runtime: wazero.NewRuntimeWithConfig(ctx, runtimeCfg),
		logger:  log,
		guests:  make(map[*Guest]struct{}),
	}, nil
}

// LoadGuest compiles and instantiates a core module. Guests are anonymous,
// so the same binary may be loaded any number of times.
func (e *WazeroEngine) LoadGuest(ctx context.Context, wasmBytes []byte) (*Guest, error) {
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return nil, errors.New(errors.PhaseGuest, errors.KindGenericFailure).Detail("engine closed").Build()
	}

	compiled, err := e.runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseGuest, errors.KindInvalidArgument, err, "compile failed")
	}

	mod, err := e.runtime.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName(""))
	if err != nil {
		_ = compiled.Close(ctx)
		return nil, errors.Wrap(errors.PhaseGuest, errors.KindGenericFailure, err, "instantiate failed")
	}

	g := &Guest{
		engine:   e,
		compiled: compiled,
		mod:      mod,
		logger:   e.logger,
	}

	e.mu.Lock()
	e.guests[g] = struct{}{}
	e.mu.Unlock()

	e.logger.Debug("guest loaded", zap.Int("exports", len(compiled.ExportedFunctions())))
	return g, nil
}

func (e *WazeroEngine) forget(g *Guest) {
	e.mu.Lock()
	delete(e.guests, g)
	e.mu.Unlock()
}

// Close closes every guest and the runtime.
func (e *WazeroEngine) Close(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.guests = nil
	e.mu.Unlock()

	return e.runtime.Close(ctx)
}
