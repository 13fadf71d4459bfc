package engine

import (
	"context"
	"strings"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-tsfn/errors"
)

// Guest is an instantiated core module. Calls into one guest are
// serialized; a module instance is not safe for concurrent use.
type Guest struct {
	engine   *WazeroEngine
	compiled wazero.CompiledModule
	mod      api.Module
	logger   *zap.Logger

	mu     sync.Mutex
	closed bool
}

// Exports returns the names of the guest's exported functions.
func (g *Guest) Exports() []string {
	defs := g.compiled.ExportedFunctions()
	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}
	return names
}

func (g *Guest) export(name string) (api.Function, error) {
	fn := g.mod.ExportedFunction(name)
	if fn == nil {
		return nil, errors.NotFound(errors.PhaseGuest, "export", name)
	}
	return fn, nil
}

// Call invokes export name with raw core values.
func (g *Guest) Call(ctx context.Context, name string, params ...uint64) ([]uint64, error) {
	if g.isClosed() {
		return nil, errors.New(errors.PhaseGuest, errors.KindGenericFailure).
			Name(name).
			Detail("guest closed").
			Build()
	}
	fn, err := g.export(name)
	if err != nil {
		return nil, err
	}
	return g.call(ctx, name, fn, params)
}

func (g *Guest) call(ctx context.Context, name string, fn api.Function, params []uint64) ([]uint64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return nil, errors.New(errors.PhaseGuest, errors.KindGenericFailure).
			Name(name).
			Detail("guest closed").
			Build()
	}
	results, err := fn.Call(ctx, params...)
	if err != nil {
		return nil, errors.New(errors.PhaseGuest, errors.KindGenericFailure).
			Name(name).
			Cause(err).
			Detail("call failed").
			Build()
	}
	return results, nil
}

// Sink binds export to a WIT parameter list such as "s64" or "u32, f64".
// The export's core signature must match the flattened parameters.
func (g *Guest) Sink(export, witParams string) (*Sink, error) {
	fn, err := g.export(export)
	if err != nil {
		return nil, err
	}

	params, err := parseParams(witParams)
	if err != nil {
		return nil, err
	}

	want := make([]api.ValueType, len(params))
	for i, p := range params {
		want[i] = p.core
	}
	got := fn.Definition().ParamTypes()
	if !sameTypes(want, got) {
		return nil, errors.New(errors.PhaseGuest, errors.KindTypeMismatch).
			Name(export).
			Detail("export takes (%s), WIT parameters lower to (%s)", typeList(got), typeList(want)).
			Build()
	}

	return &Sink{
		guest:  g,
		name:   export,
		fn:     fn,
		params: params,
		logger: g.logger.With(zap.String("sink", export)),
	}, nil
}

func (g *Guest) isClosed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.closed
}

// Close closes the module instance. Later calls fail.
func (g *Guest) Close(ctx context.Context) error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil
	}
	g.closed = true
	g.mu.Unlock()

	g.engine.forget(g)
	err := g.mod.Close(ctx)
	if cerr := g.compiled.Close(ctx); err == nil {
		err = cerr
	}
	return err
}

func sameTypes(a, b []api.ValueType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func typeList(ts []api.ValueType) string {
	names := make([]string, len(ts))
	for i, t := range ts {
		names[i] = api.ValueTypeName(t)
	}
	return strings.Join(names, ", ")
}
