// Package canonical produces stable fingerprints of explanation requests.
//
// Two requests that describe the same batch must hash to the same value
// regardless of JSON field ordering or float formatting in the client,
// so results can be memoized and re-fetched by ID.
package canonical

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
)

// Round9 rounds a float64 to 9 decimal places. Floats are normalized
// before hashing so that formatting drift between clients does not
// produce distinct fingerprints for the same request.
func Round9(x float64) float64 {
	const factor = 1e9
	return math.Round(x*factor) / factor
}

// F9 formats a float64 to exactly 9 decimal places.
func F9(x float64) string {
	return strconv.FormatFloat(x, 'f', 9, 64)
}

// Bytes renders v as canonical JSON: object keys sorted, floats
// normalized to 9 decimal places, no insignificant whitespace.
func Bytes(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}
	var tree any
	if err := json.Unmarshal(raw, &tree); err != nil {
		return nil, fmt.Errorf("reparse: %w", err)
	}
	var buf []byte
	return appendCanonical(buf, tree)
}

// Fingerprint returns the hex-encoded SHA-256 of the canonical form of v.
func Fingerprint(v any) (string, error) {
	b, err := Bytes(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

func appendCanonical(buf []byte, v any) ([]byte, error) {
	switch t := v.(type) {
	case nil:
		return append(buf, "null"...), nil
	case bool:
		if t {
			return append(buf, "true"...), nil
		}
		return append(buf, "false"...), nil
	case float64:
		// json.Unmarshal delivers all numbers as float64. Integral
		// values keep their integer rendering.
		if t == math.Trunc(t) && math.Abs(t) < 1e15 {
			return strconv.AppendInt(buf, int64(t), 10), nil
		}
		return append(buf, F9(Round9(t))...), nil
	case string:
		enc, err := json.Marshal(t)
		if err != nil {
			return nil, err
		}
		return append(buf, enc...), nil
	case []any:
		buf = append(buf, '[')
		for i, elem := range t {
			if i > 0 {
				buf = append(buf, ',')
			}
			var err error
			buf, err = appendCanonical(buf, elem)
			if err != nil {
				return nil, err
			}
		}
		return append(buf, ']'), nil
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf = append(buf, '{')
		for i, k := range keys {
			if i > 0 {
				buf = append(buf, ',')
			}
			enc, err := json.Marshal(k)
			if err != nil {
				return nil, err
			}
			buf = append(buf, enc...)
			buf = append(buf, ':')
			buf, err = appendCanonical(buf, t[k])
			if err != nil {
				return nil, err
			}
		}
		return append(buf, '}'), nil
	default:
		return nil, fmt.Errorf("unsupported canonical type %T", v)
	}
}
