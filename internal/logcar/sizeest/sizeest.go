// Package sizeest computes the virtual string length of a JSON-like value:
// an O(n) proxy for its serialized size, used to size chunks without
// actually serializing the value.
package sizeest

import (
	"encoding/json"
	"strconv"
	"unicode/utf8"
)

// VirtualLength returns v's virtual string length per the chunker's sizing
// rule: character count for a string; sum of element lengths for an array;
// sum of (key length + value length) over entries for a mapping; length of
// the string representation for anything else.
func VirtualLength(v any) int {
	switch t := v.(type) {
	case string:
		return utf8.RuneCountInString(t)
	case []any:
		total := 0
		for _, elem := range t {
			total += VirtualLength(elem)
		}
		return total
	case map[string]any:
		total := 0
		for k, val := range t {
			total += utf8.RuneCountInString(k) + VirtualLength(val)
		}
		return total
	default:
		return utf8.RuneCountInString(stringForm(t))
	}
}

// StringForm renders a non-string, non-container JSON scalar (number, bool,
// null) as text; a float64 uses strconv's shortest 'g' form, so very large or
// small numbers come out in exponent notation (1e+06) where encoding/json
// would write them out in full. The chunker falls back to this
// when an oversized scalar needs to be split like a leaf string.
func StringForm(v any) string {
	return stringForm(v)
}

// stringForm is StringForm's unexported implementation, used internally so
// VirtualLength doesn't pay for an extra call indirection.
func stringForm(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case bool:
		if t {
			return "true"
		}
		return "false"
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case json.Number:
		return t.String()
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
