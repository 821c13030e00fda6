package cursor

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"
)

func sampleCursor() Cursor {
	stream := "stream-api-3"
	seq := int64(1234)
	return Cursor{
		V:         Version,
		Dir:       Older,
		QueryHash: QueryHash("service.name:api", Window{Start: "2026-02-14T18:00:00.000Z", End: "2026-02-14T19:00:00.000Z"}, ProfileRef{ID: "fallback", Version: 1}),
		Window:    Window{Start: "2026-02-14T18:00:00.000Z", End: "2026-02-14T19:00:00.000Z"},
		Anchor: Anchor{
			Time:       "2026-02-14T18:25:34.660Z",
			StreamID:   &stream,
			TieBreaker: "3f786850e387550fdab836ed7e6dc881de23001b",
			Sequence:   &seq,
		},
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	noStream := sampleCursor()
	noStream.Anchor.StreamID = nil
	noStream.Anchor.Sequence = nil
	noStream.Dir = Newer

	for name, c := range map[string]Cursor{"full": sampleCursor(), "minimal": noStream} {
		t.Run(name, func(t *testing.T) {
			token, err := Encode(c)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			if strings.ContainsAny(token, "+/=") {
				t.Errorf("token %q is not unpadded base64url", token)
			}
			got, err := Decode(token)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if !reflect.DeepEqual(got, c) {
				t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, c)
			}
		})
	}
}

func TestDecodeAcceptsPadding(t *testing.T) {
	c := sampleCursor()
	data, _ := json.Marshal(c)
	padded := base64.URLEncoding.EncodeToString(data)
	if _, err := Decode(padded); err != nil {
		t.Fatalf("Decode padded: %v", err)
	}
}

func TestDecodeMalformed(t *testing.T) {
	enc := func(s string) string { return base64.RawURLEncoding.EncodeToString([]byte(s)) }
	valid, _ := json.Marshal(sampleCursor())

	tests := map[string]string{
		"empty":           "",
		"not base64":      "!!!not-base64!!!",
		"not json":        enc("hello"),
		"array":           enc("[]"),
		"wrong version":   enc(strings.Replace(string(valid), `"v":1`, `"v":2`, 1)),
		"bad direction":   enc(strings.Replace(string(valid), `"dir":"older"`, `"dir":"sideways"`, 1)),
		"short hash":      enc(strings.Replace(string(valid), `"queryHash":"`, `"queryHash":"ab`, 1)),
		"bad anchor time": enc(strings.Replace(string(valid), `"time":"2026-02-14T18:25:34.660Z"`, `"time":"yesterday"`, 1)),
		"negative seq":    enc(strings.Replace(string(valid), `"sequence":1234`, `"sequence":-1`, 1)),
		"extra field":     enc(strings.Replace(string(valid), `"v":1`, `"v":1,"extra":true`, 1)),
		"missing anchor":  enc(`{"v":1,"dir":"older","queryHash":"` + strings.Repeat("a", 64) + `","window":{"start":"2026-02-14T18:00:00Z","end":"2026-02-14T19:00:00Z"}}`),
	}

	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(token)
			if !errors.Is(err, ErrMalformed) {
				t.Fatalf("Decode(%q) error = %v, want ErrMalformed", token, err)
			}
		})
	}
}

func TestParseInputModesAgree(t *testing.T) {
	c := sampleCursor()

	encoded, err := Serialize(c, ModeEncoded)
	if err != nil {
		t.Fatalf("Serialize encoded: %v", err)
	}
	if encoded[0] != '"' {
		t.Fatalf("encoded mode should produce a JSON string, got %s", encoded)
	}
	structured, err := Serialize(c, ModeJSON)
	if err != nil {
		t.Fatalf("Serialize json: %v", err)
	}
	if structured[0] != '{' {
		t.Fatalf("json mode should produce an object, got %s", structured)
	}

	fromEncoded, err := ParseInput(encoded, ModeEncoded)
	if err != nil {
		t.Fatalf("ParseInput encoded: %v", err)
	}
	fromJSON, err := ParseInput(structured, ModeJSON)
	if err != nil {
		t.Fatalf("ParseInput json: %v", err)
	}
	if !reflect.DeepEqual(fromEncoded, fromJSON) || !reflect.DeepEqual(fromEncoded, c) {
		t.Errorf("modes disagree:\nencoded %+v\njson    %+v", fromEncoded, fromJSON)
	}

	if _, err := ParseInput(structured, ModeEncoded); !errors.Is(err, ErrMalformed) {
		t.Errorf("object in encoded mode: err = %v", err)
	}
	if _, err := ParseInput(encoded, ModeJSON); !errors.Is(err, ErrMalformed) {
		t.Errorf("string in json mode: err = %v", err)
	}
	if _, err := ParseInput(json.RawMessage("null"), ModeEncoded); !errors.Is(err, ErrMalformed) {
		t.Errorf("null cursor: err = %v", err)
	}
}

func TestQueryHashSensitivity(t *testing.T) {
	w := Window{Start: "2026-02-14T18:00:00Z", End: "2026-02-14T19:00:00Z"}
	p := ProfileRef{ID: "fallback", Version: 1}
	base := QueryHash("*", w, p)

	if len(base) != 64 {
		t.Fatalf("hash length = %d", len(base))
	}
	if QueryHash("*", w, p) != base {
		t.Fatal("hash must be deterministic")
	}

	variants := map[string]string{
		"query":   QueryHash("error", w, p),
		"start":   QueryHash("*", Window{Start: "2026-02-14T18:00:01Z", End: w.End}, p),
		"end":     QueryHash("*", Window{Start: w.Start, End: "2026-02-14T19:00:01Z"}, p),
		"id":      QueryHash("*", w, ProfileRef{ID: "otel", Version: 1}),
		"version": QueryHash("*", w, ProfileRef{ID: "fallback", Version: 2}),
	}
	for name, h := range variants {
		if h == base {
			t.Errorf("changing %s did not change the hash", name)
		}
	}
}

func TestParseMode(t *testing.T) {
	if m, _ := ParseMode(""); m != ModeEncoded {
		t.Errorf("default mode = %q", m)
	}
	if m, _ := ParseMode("JSON"); m != ModeJSON {
		t.Errorf("JSON mode = %q", m)
	}
	if _, err := ParseMode("xml"); err == nil {
		t.Error("expected error for unknown mode")
	}
}
