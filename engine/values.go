package engine

import (
	"fmt"
	"strconv"

	"github.com/tetratelabs/wazero/api"
)

// ParseValue encodes tok as a value of core type vt.
func ParseValue(vt api.ValueType, tok string) (uint64, error) {
	switch vt {
	case api.ValueTypeI32:
		if n, err := strconv.ParseInt(tok, 10, 32); err == nil {
			return api.EncodeI32(int32(n)), nil
		}
		n, err := strconv.ParseUint(tok, 10, 32)
		if err != nil {
			return 0, fmt.Errorf("%w: i32 %q", ErrBadValue, tok)
		}
		return api.EncodeU32(uint32(n)), nil
	case api.ValueTypeI64:
		if n, err := strconv.ParseInt(tok, 10, 64); err == nil {
			return api.EncodeI64(n), nil
		}
		n, err := strconv.ParseUint(tok, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: i64 %q", ErrBadValue, tok)
		}
		return n, nil
	case api.ValueTypeF32:
		f, err := strconv.ParseFloat(tok, 32)
		if err != nil {
			return 0, fmt.Errorf("%w: f32 %q", ErrBadValue, tok)
		}
		return api.EncodeF32(float32(f)), nil
	case api.ValueTypeF64:
		f, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: f64 %q", ErrBadValue, tok)
		}
		return api.EncodeF64(f), nil
	default:
		return 0, fmt.Errorf("%w: unsupported parameter type %s", ErrBadValue, api.ValueTypeName(vt))
	}
}

// FormatValue renders a value of core type vt as text.
func FormatValue(vt api.ValueType, v uint64) string {
	switch vt {
	case api.ValueTypeI32:
		return strconv.FormatInt(int64(api.DecodeI32(v)), 10)
	case api.ValueTypeI64:
		return strconv.FormatInt(int64(v), 10)
	case api.ValueTypeF32:
		return strconv.FormatFloat(float64(api.DecodeF32(v)), 'g', -1, 32)
	case api.ValueTypeF64:
		return strconv.FormatFloat(api.DecodeF64(v), 'g', -1, 64)
	default:
		return "0x" + strconv.FormatUint(v, 16)
	}
}

// typeNames renders a signature's types, e.g. [i32 i32].
func typeNames(types []api.ValueType) []string {
	names := make([]string, len(types))
	for i, vt := range types {
		names[i] = api.ValueTypeName(vt)
	}
	return names
}
