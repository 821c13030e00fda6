package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/emertechie/vic-viewer/internal/cursor"
	"github.com/emertechie/vic-viewer/internal/metrics"
	"github.com/emertechie/vic-viewer/internal/profile"
	"github.com/emertechie/vic-viewer/internal/source"
)

const (
	DefaultLimit = 200
	MaxLimit     = 500
	// WildcardQuery is the canonical form of "no filter".
	WildcardQuery = "*"

	maxFetchLimit = 4000
)

// RecordSource answers raw queries. The payload is a record, a list of
// records, or anything else (which is a protocol violation).
type RecordSource interface {
	QueryRaw(ctx context.Context, q source.Query) (any, error)
}

// ProfileProvider hands out the active profile snapshot.
type ProfileProvider interface {
	Active() *profile.LogProfile
}

// Request is one page request as received from a client.
type Request struct {
	Query  string
	Start  string
	End    string
	Limit  int
	Cursor json.RawMessage
}

type Options struct {
	CursorMode cursor.Mode
	Logger     *slog.Logger
	Metrics    *metrics.Recorder
}

// Paginator serves keyset pages over a record source that only knows
// start/end/limit. It keeps no state between requests.
type Paginator struct {
	source   RecordSource
	profiles ProfileProvider
	mode     cursor.Mode
	logger   *slog.Logger
	metrics  *metrics.Recorder
}

func NewPaginator(src RecordSource, profiles ProfileProvider, opts Options) *Paginator {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.CursorMode == "" {
		opts.CursorMode = cursor.ModeEncoded
	}
	return &Paginator{
		source:   src,
		profiles: profiles,
		mode:     opts.CursorMode,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
	}
}

// NormalizeQuery trims q and maps an empty query to WildcardQuery.
func NormalizeQuery(q string) string {
	q = strings.TrimSpace(q)
	if q == "" {
		return WildcardQuery
	}
	return q
}

// ClampLimit maps a requested limit into 1..MaxLimit. Zero means DefaultLimit.
func ClampLimit(n int) int {
	switch {
	case n == 0:
		return DefaultLimit
	case n < 1:
		return 1
	case n > MaxLimit:
		return MaxLimit
	default:
		return n
	}
}

// Paginate returns one page of rows for req.
func (pg *Paginator) Paginate(ctx context.Context, req Request) (*Page, error) {
	page, err := pg.paginate(ctx, req)
	rows := 0
	if page != nil {
		rows = len(page.Rows)
	}
	pg.metrics.ObservePage(outcomeOf(err), rows)
	return page, err
}

func (pg *Paginator) paginate(ctx context.Context, req Request) (*Page, error) {
	start, end, err := validateWindow(req.Start, req.End)
	if err != nil {
		return nil, err
	}

	// 1. Canonical request and one profile snapshot for the whole request
	query := NormalizeQuery(req.Query)
	limit := ClampLimit(req.Limit)
	prof := pg.profiles.Active()
	window := cursor.Window{Start: req.Start, End: req.End}
	queryHash := cursor.QueryHash(query, window, cursor.ProfileRef{ID: prof.ID, Version: prof.Version})

	// 2. Cursor must belong to exactly this query context
	var cur *cursor.Cursor
	if hasCursor(req.Cursor) {
		c, err := pg.resolveCursor(req.Cursor, queryHash, window)
		if err != nil {
			return nil, err
		}
		cur = &c
	}

	// 3. Narrow the fetch window to the side of the anchor being paged into
	fetch := source.Query{Query: query, Start: req.Start, End: req.End, Limit: limit}
	if cur != nil {
		fetch.Direction = cur.Dir
		if cur.Dir == cursor.Older {
			fetch.End = cur.Anchor.Time
		} else {
			fetch.Start = cur.Anchor.Time
		}
		// The window is inclusive, so the anchor row itself comes back too.
		fetch.Limit = limit + 1
	}

	rows, err := pg.fetchRows(ctx, fetch, cur, limit, prof)
	if err != nil {
		return nil, err
	}

	// 4. Ascending order; keep the rows nearest the anchor
	SortRows(rows, prof)
	if len(rows) > limit {
		if cur != nil && cur.Dir == cursor.Older {
			rows = rows[len(rows)-limit:]
		} else {
			rows = rows[:limit]
		}
	}

	// 5. Page info against the original request window
	page := &Page{Rows: rows}
	if len(rows) == 0 {
		return page, nil
	}
	oldest, newest := rows[0], rows[len(rows)-1]
	page.PageInfo.HasOlder = rowInstant(oldest).After(start)
	page.PageInfo.HasNewer = rowInstant(newest).Before(end)

	if page.PageInfo.HasOlder {
		c := BuildCursorFromRow(cursor.Older, oldest, prof, queryHash, window)
		if page.PageInfo.OlderCursor, err = cursor.Serialize(c, pg.mode); err != nil {
			return nil, fmt.Errorf("build older cursor: %w", err)
		}
	}
	if page.PageInfo.HasNewer {
		c := BuildCursorFromRow(cursor.Newer, newest, prof, queryHash, window)
		if page.PageInfo.NewerCursor, err = cursor.Serialize(c, pg.mode); err != nil {
			return nil, fmt.Errorf("build newer cursor: %w", err)
		}
	}
	return page, nil
}

// fetchRows fetches, normalizes and anchor-filters rows. When anchor
// filtering leaves a short page while the source returned a full batch, rows
// sharing the anchor's timestamp may have crowded out the next rows, so the
// same window is fetched again with a larger limit.
func (pg *Paginator) fetchRows(ctx context.Context, q source.Query, cur *cursor.Cursor, limit int, prof *profile.LogProfile) ([]LogRow, error) {
	for {
		began := time.Now()
		payload, err := pg.source.QueryRaw(ctx, q)
		pg.metrics.ObserveFetch(string(q.Direction), time.Since(began), err)
		if err != nil {
			return nil, err
		}

		records, nonObjects, err := ExtractRawRecords(payload)
		if err != nil {
			pg.logger.Warn("record source returned an invalid payload", "error", err)
			return nil, err
		}
		if nonObjects > 0 {
			pg.logger.Warn("dropped non-object entries from record source payload", "count", nonObjects)
			pg.metrics.AddDropped(metrics.DropNonObject, nonObjects)
		}

		rows, unparseable := NormalizeAll(records, prof)
		pg.metrics.AddDropped(metrics.DropUnparseableTime, unparseable)
		rows = filterByAnchor(rows, cur, prof)

		returned := len(records) + nonObjects
		if cur == nil || len(rows) >= limit || returned < q.Limit || q.Limit >= maxFetchLimit {
			return rows, nil
		}
		q.Limit = min(q.Limit*2, maxFetchLimit)
		pg.metrics.IncRefetch()
		pg.logger.Debug("short page after anchor filter, fetching again",
			"direction", q.Direction,
			"rows", len(rows),
			"fetchLimit", q.Limit,
		)
	}
}

func (pg *Paginator) resolveCursor(raw json.RawMessage, queryHash string, w cursor.Window) (cursor.Cursor, error) {
	c, err := cursor.ParseInput(raw, pg.mode)
	if err != nil {
		pg.logger.Warn("rejected cursor", "reason", "decode", "error", err)
		return cursor.Cursor{}, fmt.Errorf("%w: %w", ErrInvalidCursor, err)
	}
	if c.QueryHash != queryHash || c.Window != w {
		pg.logger.Warn("rejected cursor", "reason", "context mismatch",
			"cursorHash", c.QueryHash,
			"requestHash", queryHash,
		)
		return cursor.Cursor{}, fmt.Errorf("%w: cursor does not match the current query context", ErrInvalidCursor)
	}
	return c, nil
}

func filterByAnchor(rows []LogRow, cur *cursor.Cursor, p *profile.LogProfile) []LogRow {
	if cur == nil {
		return rows
	}
	kept := rows[:0]
	for _, row := range rows {
		if cur.Dir == cursor.Older && IsBeforeAnchor(row, cur.Anchor, p) ||
			cur.Dir == cursor.Newer && IsAfterAnchor(row, cur.Anchor, p) {
			kept = append(kept, row)
		}
	}
	return kept
}

func hasCursor(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && !bytes.Equal(raw, []byte("null"))
}

func validateWindow(startText, endText string) (time.Time, time.Time, error) {
	start, err := time.Parse(time.RFC3339Nano, startText)
	if err != nil {
		return time.Time{}, time.Time{}, &ValidationError{Field: "start", Message: "must be an RFC 3339 timestamp with offset"}
	}
	end, err := time.Parse(time.RFC3339Nano, endText)
	if err != nil {
		return time.Time{}, time.Time{}, &ValidationError{Field: "end", Message: "must be an RFC 3339 timestamp with offset"}
	}
	if start.After(end) {
		return time.Time{}, time.Time{}, &ValidationError{Field: "start", Message: "must not be after end"}
	}
	return start, end, nil
}

func rowInstant(row LogRow) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, row.Time)
	return t
}

func outcomeOf(err error) string {
	var validation *ValidationError
	var upstream *source.UpstreamError
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.As(err, &validation):
		return metrics.OutcomeValidation
	case errors.Is(err, ErrInvalidCursor):
		return metrics.OutcomeInvalidCursor
	case errors.Is(err, ErrInvalidPayload):
		return metrics.OutcomeUpstreamInvalid
	case errors.As(err, &upstream):
		return metrics.OutcomeUpstreamFailed
	default:
		return metrics.OutcomeInternal
	}
}
