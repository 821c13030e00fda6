package source

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/valyala/fastjson"
)

var errUnparseable = errors.New("unable to parse VictoriaLogs response")

// parsePayload turns a query response body into plain Go values. The body is
// either one JSON document or newline-delimited JSON; an empty body is an
// empty result. Numbers stay json.Number so large values keep their text.
func parsePayload(body []byte) (any, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return []any{}, nil
	}

	var p fastjson.Parser
	if v, err := p.ParseBytes(body); err == nil {
		return toValue(v), nil
	}

	out := []any{}
	for lineNo, line := range bytes.Split(body, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		v, err := p.ParseBytes(line)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", errUnparseable, lineNo+1, err)
		}
		out = append(out, toValue(v))
	}
	return out, nil
}

func toValue(v *fastjson.Value) any {
	switch v.Type() {
	case fastjson.TypeObject:
		o, _ := v.Object()
		m := make(map[string]any, o.Len())
		o.Visit(func(key []byte, item *fastjson.Value) {
			m[string(key)] = toValue(item)
		})
		return m
	case fastjson.TypeArray:
		items, _ := v.Array()
		out := make([]any, len(items))
		for i, item := range items {
			out[i] = toValue(item)
		}
		return out
	case fastjson.TypeString:
		return string(v.GetStringBytes())
	case fastjson.TypeNumber:
		return json.Number(v.String())
	case fastjson.TypeTrue:
		return true
	case fastjson.TypeFalse:
		return false
	default:
		return nil
	}
}
