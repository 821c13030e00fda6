package source

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/emertechie/vic-viewer/internal/cursor"
)

func newTestVictoria(t *testing.T, handler http.HandlerFunc) *Victoria {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	v, err := NewVictoria(VictoriaConfig{BaseURL: srv.URL, Timeout: time.Second})
	if err != nil {
		t.Fatalf("NewVictoria: %v", err)
	}
	return v
}

func testQuery(dir cursor.Direction) Query {
	return Query{
		Query:     "service.name:api",
		Start:     "2026-02-14T19:00:00Z",
		End:       "2026-02-14T20:00:00Z",
		Limit:     51,
		Direction: dir,
	}
}

func TestVictoriaRequestShape(t *testing.T) {
	tests := []struct {
		dir       cursor.Direction
		wantQuery string
	}{
		{"", "service.name:api"},
		{cursor.Older, "service.name:api | sort by (_time desc) | limit 51"},
		{cursor.Newer, "service.name:api | sort by (_time) | limit 51"},
	}
	for _, tt := range tests {
		t.Run(string(tt.dir), func(t *testing.T) {
			var got *http.Request
			v := newTestVictoria(t, func(w http.ResponseWriter, r *http.Request) {
				got = r
				w.WriteHeader(http.StatusOK)
			})
			if _, err := v.QueryRaw(context.Background(), testQuery(tt.dir)); err != nil {
				t.Fatalf("QueryRaw: %v", err)
			}

			if got.Method != http.MethodGet || got.URL.Path != "/select/logsql/query" {
				t.Errorf("request = %s %s", got.Method, got.URL.Path)
			}
			params := got.URL.Query()
			if params.Get("query") != tt.wantQuery {
				t.Errorf("query = %q, want %q", params.Get("query"), tt.wantQuery)
			}
			if params.Get("start") != "2026-02-14T19:00:00Z" || params.Get("end") != "2026-02-14T20:00:00Z" || params.Get("limit") != "51" {
				t.Errorf("params = %v", params)
			}
			if got.Header.Get("Accept-Encoding") != "zstd, gzip" {
				t.Errorf("Accept-Encoding = %q", got.Header.Get("Accept-Encoding"))
			}
		})
	}
}

func TestVictoriaBodies(t *testing.T) {
	tests := []struct {
		name string
		body string
		want any
	}{
		{"empty", "", []any{}},
		{"whitespace", " \n ", []any{}},
		{"array", `[{"_msg":"a","n":12345678901234567890}]`, []any{map[string]any{"_msg": "a", "n": json.Number("12345678901234567890")}}},
		{"object", `{"_msg":"a","ok":true,"x":null}`, map[string]any{"_msg": "a", "ok": true, "x": nil}},
		{"ndjson", "{\"_msg\":\"a\"}\n\n{\"_msg\":\"b\",\"tags\":[\"x\",1.5]}\n", []any{
			map[string]any{"_msg": "a"},
			map[string]any{"_msg": "b", "tags": []any{"x", json.Number("1.5")}},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newTestVictoria(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			})
			got, err := v.QueryRaw(context.Background(), testQuery(""))
			if err != nil {
				t.Fatalf("QueryRaw: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestVictoriaInvalidBody(t *testing.T) {
	v := newTestVictoria(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("{\"_msg\":\"a\"}\nnot json\n"))
	})
	_, err := v.QueryRaw(context.Background(), testQuery(""))
	var upstream *UpstreamError
	if !errors.As(err, &upstream) || upstream.StatusCode != http.StatusBadGateway {
		t.Fatalf("err = %v, want 502 upstream error", err)
	}
	if upstream.Message != "unable to parse VictoriaLogs response" {
		t.Errorf("message = %q", upstream.Message)
	}
}

func TestVictoriaCompressedBodies(t *testing.T) {
	const body = `[{"_msg":"compressed"}]`
	want := []any{map[string]any{"_msg": "compressed"}}

	var gz bytes.Buffer
	zw := gzip.NewWriter(&gz)
	_, _ = zw.Write([]byte(body))
	_ = zw.Close()

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		t.Fatal(err)
	}
	zst := enc.EncodeAll([]byte(body), nil)
	_ = enc.Close()

	tests := []struct {
		encoding string
		data     []byte
	}{
		{"gzip", gz.Bytes()},
		{"zstd", zst},
	}
	for _, tt := range tests {
		t.Run(tt.encoding, func(t *testing.T) {
			v := newTestVictoria(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Encoding", tt.encoding)
				_, _ = w.Write(tt.data)
			})
			got, err := v.QueryRaw(context.Background(), testQuery(""))
			if err != nil {
				t.Fatalf("QueryRaw: %v", err)
			}
			if !reflect.DeepEqual(got, want) {
				t.Errorf("got %#v", got)
			}
		})
	}
}

func TestVictoriaStatusMapping(t *testing.T) {
	v := newTestVictoria(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad logsql", http.StatusBadRequest)
	})
	_, err := v.QueryRaw(context.Background(), testQuery(""))
	var upstream *UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("err = %v, want *UpstreamError", err)
	}
	if upstream.StatusCode != http.StatusBadRequest || upstream.Source != NameVictoriaLogs {
		t.Errorf("got %d from %s", upstream.StatusCode, upstream.Source)
	}
	if !bytes.Contains([]byte(upstream.Body), []byte("bad logsql")) {
		t.Errorf("body = %q", upstream.Body)
	}
}

func TestVictoriaTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	v, err := NewVictoria(VictoriaConfig{BaseURL: srv.URL, Timeout: 50 * time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}
	_, err = v.QueryRaw(context.Background(), testQuery(""))
	var upstream *UpstreamError
	if !errors.As(err, &upstream) || upstream.StatusCode != http.StatusGatewayTimeout {
		t.Fatalf("err = %v, want 504", err)
	}
}

func TestVictoriaConnectionFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	v, err := NewVictoria(VictoriaConfig{BaseURL: url, Timeout: time.Second})
	if err != nil {
		t.Fatal(err)
	}
	_, err = v.QueryRaw(context.Background(), testQuery(""))
	var upstream *UpstreamError
	if !errors.As(err, &upstream) || upstream.StatusCode != http.StatusBadGateway {
		t.Fatalf("err = %v, want 502", err)
	}
}

func TestNewVictoriaRejectsBadURL(t *testing.T) {
	for _, raw := range []string{"", "localhost:9428", "://nope"} {
		if _, err := NewVictoria(VictoriaConfig{BaseURL: raw}); err == nil {
			t.Errorf("NewVictoria(%q) should fail", raw)
		}
	}
}
