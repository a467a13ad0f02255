// bytes.go
package serialhelper

import (
	"fmt"
	"strconv"
)

// ToBytes converts an arbitrary payload into the bytes that go on the wire.
// It is total: no input fails.
//
// Numbers truncate to a single byte (value mod 256). Byte and integer
// slices map element-wise, so the output length matches the input length.
// Strings encode as-is. Everything else falls back to its string form.
// Converting the same input twice yields byte-identical buffers.
func ToBytes(v any) []byte {
	switch x := v.(type) {
	case nil:
		return nil
	case []byte:
		return x
	case string:
		return []byte(x)
	case int:
		return []byte{byte(x)}
	case int8:
		return []byte{byte(x)}
	case int16:
		return []byte{byte(x)}
	case int32:
		return []byte{byte(x)}
	case int64:
		return []byte{byte(x)}
	case uint:
		return []byte{byte(x)}
	case uint8:
		return []byte{x}
	case uint16:
		return []byte{byte(x)}
	case uint32:
		return []byte{byte(x)}
	case uint64:
		return []byte{byte(x)}
	case float32:
		return []byte{byte(int64(x))}
	case float64:
		return []byte{byte(int64(x))}
	case []int:
		out := make([]byte, len(x))
		for i, n := range x {
			out[i] = byte(n)
		}
		return out
	case []any:
		out := make([]byte, len(x))
		for i, e := range x {
			out[i] = toByte(e)
		}
		return out
	default:
		return []byte(fmt.Sprint(v))
	}
}

// toByte truncates one array element to a byte. Non-numeric elements that do
// not parse as a number become zero.
func toByte(v any) byte {
	switch x := v.(type) {
	case byte:
		return x
	case int:
		return byte(x)
	case int8:
		return byte(x)
	case int16:
		return byte(x)
	case int32:
		return byte(x)
	case int64:
		return byte(x)
	case uint:
		return byte(x)
	case uint16:
		return byte(x)
	case uint32:
		return byte(x)
	case uint64:
		return byte(x)
	case float32:
		return byte(int64(x))
	case float64:
		return byte(int64(x))
	case string:
		if f, err := strconv.ParseFloat(x, 64); err == nil {
			return byte(int64(f))
		}
		return 0
	default:
		return 0
	}
}

// stringify renders a payload for Print and Println.
func stringify(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	default:
		return fmt.Sprint(v)
	}
}
