package engine

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/tetratelabs/wazero/api"
	"go.bytecodealliance.org/wit"

	"github.com/wippyai/wasm-tsfn/errors"
)

// param is one flat WIT parameter and its core representation.
type param struct {
	typ  wit.Type
	name string
	core api.ValueType
}

// parseParams parses a comma-separated list of flat WIT types.
func parseParams(s string) ([]param, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	parts := strings.Split(s, ",")
	out := make([]param, 0, len(parts))
	for _, part := range parts {
		name := strings.TrimSpace(part)
		t, err := wit.ParseType(name)
		if err != nil {
			return nil, errors.Wrap(errors.PhaseGuest, errors.KindInvalidArgument, err, fmt.Sprintf("parse WIT type %q", name))
		}
		core, ok := coreType(t)
		if !ok {
			return nil, errors.Unsupported(errors.PhaseGuest, fmt.Sprintf("WIT type %s is not a flat primitive", name))
		}
		out = append(out, param{typ: t, name: name, core: core})
	}
	return out, nil
}

func coreType(t wit.Type) (api.ValueType, bool) {
	switch t.(type) {
	case wit.Bool, wit.U8, wit.S8, wit.U16, wit.S16, wit.U32, wit.S32, wit.Char:
		return api.ValueTypeI32, true
	case wit.U64, wit.S64:
		return api.ValueTypeI64, true
	case wit.F32:
		return api.ValueTypeF32, true
	case wit.F64:
		return api.ValueTypeF64, true
	default:
		return 0, false
	}
}

// lower converts a Go value to the core value of p. Integers outside the
// range of p's type fail with an overflow error.
func lower(sink string, p param, value any) (uint64, error) {
	mismatch := func() error {
		return errors.TypeMismatch(errors.PhaseGuest, sink, fmt.Sprintf("%T", value), p.name)
	}
	overflow := func() error {
		return errors.Overflow(errors.PhaseGuest, sink, value, p.name)
	}

	switch p.typ.(type) {
	case wit.Bool:
		b, ok := value.(bool)
		if !ok {
			return 0, mismatch()
		}
		if b {
			return 1, nil
		}
		return 0, nil

	case wit.U8, wit.U16, wit.U32:
		v, ok := asUint(value)
		if !ok {
			return 0, mismatch()
		}
		if v > maxUnsigned(p.typ) {
			return 0, overflow()
		}
		return api.EncodeU32(uint32(v)), nil

	case wit.S8, wit.S16, wit.S32, wit.S64:
		v, ok := asInt(value)
		if !ok {
			if _, big := asUint(value); big {
				return 0, overflow()
			}
			return 0, mismatch()
		}
		lo, hi := signedRange(p.typ)
		if v < lo || v > hi {
			return 0, overflow()
		}
		if _, wide := p.typ.(wit.S64); wide {
			return api.EncodeI64(v), nil
		}
		return api.EncodeI32(int32(v)), nil

	case wit.U64:
		v, ok := asUint(value)
		if !ok {
			return 0, mismatch()
		}
		return v, nil

	case wit.F32:
		f, ok := asFloat(value)
		if !ok {
			return 0, mismatch()
		}
		return api.EncodeF32(float32(f)), nil

	case wit.F64:
		f, ok := asFloat(value)
		if !ok {
			return 0, mismatch()
		}
		return api.EncodeF64(f), nil

	case wit.Char:
		var r rune
		switch v := value.(type) {
		case rune:
			r = v
		case string:
			if v == "" {
				return 0, errors.New(errors.PhaseGuest, errors.KindInvalidArgument).
					Name(sink).
					Detail("empty string cannot be converted to char").
					Build()
			}
			r, _ = utf8.DecodeRuneInString(v)
		default:
			return 0, mismatch()
		}
		if !utf8.ValidRune(r) {
			return 0, errors.New(errors.PhaseGuest, errors.KindInvalidArgument).
				Name(sink).
				Value(r).
				Detail("invalid Unicode scalar value: 0x%X", r).
				Build()
		}
		return api.EncodeU32(uint32(r)), nil
	}
	return 0, mismatch()
}

func maxUnsigned(t wit.Type) uint64 {
	switch t.(type) {
	case wit.U8:
		return math.MaxUint8
	case wit.U16:
		return math.MaxUint16
	default:
		return math.MaxUint32
	}
}

func signedRange(t wit.Type) (int64, int64) {
	switch t.(type) {
	case wit.S8:
		return math.MinInt8, math.MaxInt8
	case wit.S16:
		return math.MinInt16, math.MaxInt16
	case wit.S32:
		return math.MinInt32, math.MaxInt32
	default:
		return math.MinInt64, math.MaxInt64
	}
}

// asInt reports ok=false for unsigned values above math.MaxInt64.
func asInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint:
		if uint64(n) > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	}
	return 0, false
}

func asUint(v any) (uint64, bool) {
	switch n := v.(type) {
	case uint:
		return uint64(n), true
	case uint8:
		return uint64(n), true
	case uint16:
		return uint64(n), true
	case uint32:
		return uint64(n), true
	case uint64:
		return n, true
	}
	if i, ok := asInt(v); ok && i >= 0 {
		return uint64(i), true
	}
	return 0, false
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case uint:
		return float64(n), true
	}
	if i, ok := asInt(v); ok {
		return float64(i), true
	}
	return 0, false
}
