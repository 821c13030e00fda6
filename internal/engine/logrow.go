package engine

import "encoding/json"

// RawRecord is a schema-less record as returned by the upstream source.
type RawRecord = map[string]any

// LogRow is the canonical normalized view of one raw record.
// Key, Time and TieBreaker are pure functions of the raw record and the
// profile it was normalized with.
type LogRow struct {
	Key        string `json:"key"`
	Time       string `json:"time"`
	TieBreaker string `json:"tieBreaker"`

	// Display projections resolved through the profile's core fields.
	Message     string  `json:"message"`
	StreamID    *string `json:"streamId"`
	Stream      *string `json:"stream"`
	Severity    *string `json:"severity"`
	ServiceName *string `json:"serviceName"`
	TraceID     *string `json:"traceId"`
	SpanID      *string `json:"spanId"`

	Raw RawRecord `json:"raw"`
}

// PageInfo tells the caller whether the requested window has unseen rows on
// either side of the page, and how to fetch them.
type PageInfo struct {
	HasOlder    bool            `json:"hasOlder"`
	HasNewer    bool            `json:"hasNewer"`
	OlderCursor json.RawMessage `json:"olderCursor,omitempty"`
	NewerCursor json.RawMessage `json:"newerCursor,omitempty"`
}

// Page is one response of the pagination protocol. Rows are in ascending order.
type Page struct {
	Rows     []LogRow `json:"rows"`
	PageInfo PageInfo `json:"pageInfo"`
}
