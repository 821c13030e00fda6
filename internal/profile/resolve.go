package profile

import (
	"encoding/json"
	"strconv"
	"strings"
)

// ResolveText returns the first candidate value of sel that coerces to
// non-empty text. Strings are trimmed, scalars are stringified, and nil,
// blank strings, objects and arrays count as absent.
func ResolveText(record map[string]any, sel *FieldSelector) (string, bool) {
	for _, key := range sel.Candidates() {
		if text, ok := ToText(record[key]); ok {
			return text, true
		}
	}
	return "", false
}

// ResolveMatch returns the key that satisfied sel and its original value.
// Unlike ResolveText it accepts structured values.
func ResolveMatch(record map[string]any, sel *FieldSelector) (string, any, bool) {
	for _, key := range sel.Candidates() {
		value, ok := record[key]
		if ok && renderable(value) {
			return key, value, true
		}
	}
	return "", nil, false
}

// ToText coerces a decoded JSON value to trimmed non-empty text.
func ToText(value any) (string, bool) {
	var text string
	switch v := value.(type) {
	case nil:
		return "", false
	case string:
		text = strings.TrimSpace(v)
	case json.Number:
		text = v.String()
	case float64:
		text = strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		text = strconv.FormatFloat(float64(v), 'f', -1, 32)
	case int:
		text = strconv.Itoa(v)
	case int64:
		text = strconv.FormatInt(v, 10)
	case int32:
		text = strconv.FormatInt(int64(v), 10)
	case uint64:
		text = strconv.FormatUint(v, 10)
	case uint32:
		text = strconv.FormatUint(uint64(v), 10)
	case bool:
		text = strconv.FormatBool(v)
	default:
		return "", false
	}
	return text, text != ""
}

func renderable(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(v) != ""
	default:
		return true
	}
}
