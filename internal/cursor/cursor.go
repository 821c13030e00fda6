// Package cursor implements the opaque pagination token: its shape, the query
// fingerprint it is bound to, and its transport encodings.
package cursor

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"
)

// Version is bumped on any incompatible change to the anchor or window shape.
const Version = 1

// SortAlgorithm is folded into every query hash so cursors minted under a
// different ordering rule are rejected.
const SortAlgorithm = "time-asc-seq-asc-key-asc"

// Direction is the paging direction relative to the anchor row.
type Direction string

const (
	Older Direction = "older"
	Newer Direction = "newer"
)

func (d Direction) Valid() bool {
	return d == Older || d == Newer
}

// Window is the request's time span, kept verbatim as the client sent it.
type Window struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Anchor is the sort position of the boundary row a cursor resumes from.
type Anchor struct {
	Time       string  `json:"time"`
	StreamID   *string `json:"streamId"`
	TieBreaker string  `json:"tieBreaker"`
	Sequence   *int64  `json:"sequence,omitempty"`
}

// Cursor is a self-describing resume position.
type Cursor struct {
	V         int       `json:"v"`
	Dir       Direction `json:"dir"`
	QueryHash string    `json:"queryHash"`
	Window    Window    `json:"window"`
	Anchor    Anchor    `json:"anchor"`
}

// ProfileRef is the profile identity folded into the query hash.
type ProfileRef struct {
	ID      string `json:"id"`
	Version int    `json:"version"`
}

var hashPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

// Validate checks the cursor value against the wire contract.
func (c Cursor) Validate() error {
	if c.V != Version {
		return fmt.Errorf("unsupported cursor version %d", c.V)
	}
	if !c.Dir.Valid() {
		return fmt.Errorf("invalid cursor direction %q", c.Dir)
	}
	if !hashPattern.MatchString(c.QueryHash) {
		return errors.New("queryHash must be 64 lowercase hex characters")
	}
	for name, v := range map[string]string{
		"window.start": c.Window.Start,
		"window.end":   c.Window.End,
		"anchor.time":  c.Anchor.Time,
	} {
		if _, err := time.Parse(time.RFC3339Nano, v); err != nil {
			return fmt.Errorf("%s is not an RFC 3339 timestamp: %q", name, v)
		}
	}
	if c.Anchor.Sequence != nil && *c.Anchor.Sequence < 0 {
		return fmt.Errorf("anchor.sequence must not be negative, got %d", *c.Anchor.Sequence)
	}
	return nil
}

type hashInput struct {
	Query   string     `json:"query"`
	Window  Window     `json:"window"`
	Profile ProfileRef `json:"profile"`
	Sort    string     `json:"sort"`
}

// QueryHash fingerprints the context a cursor is valid for. Any change to the
// query text, window bounds or profile identity yields a different hash.
func QueryHash(query string, w Window, p ProfileRef) string {
	// Struct field order makes the encoding canonical.
	payload, _ := json.Marshal(hashInput{
		Query:   query,
		Window:  w,
		Profile: p,
		Sort:    SortAlgorithm,
	})
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
