// Package source provides the record sources the paginator fetches from: a
// VictoriaLogs HTTP client and a deterministic synthetic timeline.
package source

import (
	"fmt"

	"github.com/emertechie/vic-viewer/internal/cursor"
)

// Source identifiers reported in upstream errors and health output.
const (
	NameVictoriaLogs = "victoria-logs"
	NameSynthetic    = "synthetic"
)

// Query is one fetch against a record source. Start and End are RFC 3339
// timestamps and both bounds are inclusive. Direction is empty for a first
// page and otherwise tells the source which end of the window the caller is
// paging toward.
type Query struct {
	Query     string
	Start     string
	End       string
	Limit     int
	Direction cursor.Direction
}

// UpstreamError is a failed upstream call. StatusCode is the HTTP status to
// surface: the upstream's own for non-2xx replies, 504 for timeouts and 502
// for transport or protocol failures.
type UpstreamError struct {
	Source     string
	StatusCode int
	Message    string
	Body       string
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Source, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Source, e.Message)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}
