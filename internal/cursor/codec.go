package cursor

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// ErrMalformed is returned for cursor input that cannot be decoded into a
// valid Cursor.
var ErrMalformed = errors.New("malformed cursor")

// Mode selects how cursors travel over the API.
type Mode string

const (
	// ModeEncoded sends cursors as opaque base64url strings.
	ModeEncoded Mode = "encoded"
	// ModeJSON sends cursors as plain JSON objects, for debugging.
	ModeJSON Mode = "json"
)

const schemaURL = "https://github.com/emertechie/vic-viewer/schemas/logs-cursor.json"

const schemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["v", "dir", "queryHash", "window", "anchor"],
  "additionalProperties": false,
  "properties": {
    "v": {"const": 1},
    "dir": {"enum": ["older", "newer"]},
    "queryHash": {"type": "string", "pattern": "^[0-9a-f]{64}$"},
    "window": {
      "type": "object",
      "required": ["start", "end"],
      "additionalProperties": false,
      "properties": {
        "start": {"type": "string", "format": "date-time"},
        "end": {"type": "string", "format": "date-time"}
      }
    },
    "anchor": {
      "type": "object",
      "required": ["time", "streamId", "tieBreaker"],
      "additionalProperties": false,
      "properties": {
        "time": {"type": "string", "format": "date-time"},
        "streamId": {"type": ["string", "null"]},
        "tieBreaker": {"type": "string"},
        "sequence": {"type": "integer", "minimum": 0}
      }
    }
  }
}`

var cursorSchema = mustCompileSchema()

func mustCompileSchema() *jsonschema.Schema {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(schemaJSON))
	if err != nil {
		panic(fmt.Sprintf("cursor schema: %v", err))
	}
	c := jsonschema.NewCompiler()
	c.AssertFormat()
	if err := c.AddResource(schemaURL, doc); err != nil {
		panic(fmt.Sprintf("cursor schema: %v", err))
	}
	return c.MustCompile(schemaURL)
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformed, fmt.Sprintf(format, args...))
}

// Encode serializes c as unpadded base64url JSON.
func Encode(c Cursor) (string, error) {
	if err := c.Validate(); err != nil {
		return "", fmt.Errorf("encode cursor: %w", err)
	}
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("encode cursor: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

// Decode reverses Encode. Padded tokens are accepted.
func Decode(token string) (Cursor, error) {
	token = strings.TrimRight(strings.TrimSpace(token), "=")
	if token == "" {
		return Cursor{}, malformed("empty token")
	}
	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, malformed("invalid base64url: %v", err)
	}
	return decodeJSON(data)
}

func decodeJSON(data []byte) (Cursor, error) {
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return Cursor{}, malformed("invalid JSON: %v", err)
	}
	if err := cursorSchema.Validate(inst); err != nil {
		return Cursor{}, malformed("schema violation: %v", err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var c Cursor
	if err := dec.Decode(&c); err != nil {
		return Cursor{}, malformed("decode: %v", err)
	}
	if err := c.Validate(); err != nil {
		return Cursor{}, malformed("%v", err)
	}
	return c, nil
}

// ParseInput decodes a cursor as received in a request body. In ModeEncoded
// the input must be a JSON string token; in ModeJSON it must be an object.
func ParseInput(raw json.RawMessage, mode Mode) (Cursor, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return Cursor{}, malformed("cursor is empty")
	}

	switch mode {
	case ModeJSON:
		if raw[0] != '{' {
			return Cursor{}, malformed("expected a cursor object")
		}
		return decodeJSON(raw)
	default:
		var token string
		if err := json.Unmarshal(raw, &token); err != nil {
			return Cursor{}, malformed("expected an encoded cursor string")
		}
		return Decode(token)
	}
}

// Serialize renders c for a response in the given mode.
func Serialize(c Cursor, mode Mode) (json.RawMessage, error) {
	if mode == ModeJSON {
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("serialize cursor: %w", err)
		}
		return json.Marshal(c)
	}
	token, err := Encode(c)
	if err != nil {
		return nil, err
	}
	return json.Marshal(token)
}

// ParseMode maps a config value onto a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeEncoded:
		return ModeEncoded, nil
	case ModeJSON:
		return ModeJSON, nil
	default:
		return "", fmt.Errorf("unknown cursor mode %q", s)
	}
}
