package engine

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-tsfn/errors"
	"github.com/wippyai/wasm-tsfn/tsfn"
)

// Sink delivers Go values to one guest export.
type Sink struct {
	guest  *Guest
	name   string
	fn     api.Function
	params []param
	logger *zap.Logger
}

// Name returns the bound export name.
func (s *Sink) Name() string {
	return s.name
}

// Deliver lowers payload and calls the export. A single-parameter sink
// takes the value itself; a multi-parameter sink takes a []any with one
// element per parameter. A zero-parameter sink ignores payload.
func (s *Sink) Deliver(ctx context.Context, payload any) error {
	args, err := s.lowerPayload(payload)
	if err != nil {
		return err
	}

	_, err = s.guest.call(ctx, s.name, s.fn, args)
	return err
}

func (s *Sink) lowerPayload(payload any) ([]uint64, error) {
	switch len(s.params) {
	case 0:
		return nil, nil
	case 1:
		v, err := lower(s.name, s.params[0], payload)
		if err != nil {
			return nil, err
		}
		return []uint64{v}, nil
	}

	values, ok := payload.([]any)
	if !ok {
		return nil, errors.TypeMismatch(errors.PhaseGuest, s.name, fmt.Sprintf("%T", payload), "[]any")
	}
	if len(values) != len(s.params) {
		return nil, errors.New(errors.PhaseGuest, errors.KindInvalidArgument).
			Name(s.name).
			Value(len(values)).
			Detail("got %d values for %d parameters", len(values), len(s.params)).
			Build()
	}

	args := make([]uint64, len(values))
	for i, v := range values {
		lowered, err := lower(s.name, s.params[i], v)
		if err != nil {
			return nil, err
		}
		args[i] = lowered
	}
	return args, nil
}

// CallFunc adapts the sink to a threadsafe function callback. Items that
// fail to deliver are logged and dropped; the queue keeps draining.
func (s *Sink) CallFunc(ctx context.Context) tsfn.CallFunc[any] {
	return func(_ any, item any) {
		if err := s.Deliver(ctx, item); err != nil {
			s.logger.Warn("guest delivery failed", zap.Error(err))
		}
	}
}
