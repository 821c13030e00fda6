package engine

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/emertechie/vic-viewer/internal/profile"
)

// unknownStream stands in for a missing stream id in row keys.
const unknownStream = "unknown"

// ErrInvalidPayload marks an upstream response that is not a record or a list
// of records.
var ErrInvalidPayload = errors.New("invalid upstream payload")

// Normalize converts a raw record into a LogRow using p. Records whose time
// cannot be resolved or parsed are rejected.
func Normalize(rec RawRecord, p *profile.LogProfile) (LogRow, bool) {
	timeText, ok := profile.ResolveText(rec, &p.CoreFields.Time)
	if !ok {
		return LogRow{}, false
	}
	ts, err := ParseTime(timeText)
	if err != nil {
		return LogRow{}, false
	}
	rowTime := FormatTime(ts)

	streamID := resolveOptional(rec, p.CoreFields.StreamID)
	tieBreaker := TieBreakerHash(rec, p)
	message, _ := profile.ResolveText(rec, &p.CoreFields.Message)

	return LogRow{
		Key:         sortKey(streamID, rowTime, tieBreaker),
		Time:        rowTime,
		TieBreaker:  tieBreaker,
		Message:     message,
		StreamID:    streamID,
		Stream:      resolveOptional(rec, p.CoreFields.Stream),
		Severity:    resolveOptional(rec, p.CoreFields.Severity),
		ServiceName: resolveOptional(rec, p.CoreFields.ServiceName),
		TraceID:     resolveOptional(rec, p.CoreFields.TraceID),
		SpanID:      resolveOptional(rec, p.CoreFields.SpanID),
		Raw:         rec,
	}, true
}

// NormalizeAll normalizes records in order and reports how many were dropped.
func NormalizeAll(records []RawRecord, p *profile.LogProfile) ([]LogRow, int) {
	rows := make([]LogRow, 0, len(records))
	dropped := 0
	for _, rec := range records {
		row, ok := Normalize(rec, p)
		if !ok {
			dropped++
			continue
		}
		rows = append(rows, row)
	}
	return rows, dropped
}

// TieBreakerHash hashes the profile's tie-break fields, each resolved on its
// own with missing values as empty strings.
func TieBreakerHash(rec RawRecord, p *profile.LogProfile) string {
	parts := make([]string, len(p.TieBreaker.Fields))
	for i, field := range p.TieBreaker.Fields {
		sel := profile.Single(field)
		parts[i], _ = profile.ResolveText(rec, &sel)
	}
	sum := sha1.Sum([]byte(strings.Join(parts, ":")))
	return hex.EncodeToString(sum[:])
}

func resolveOptional(rec RawRecord, sel *profile.FieldSelector) *string {
	if sel == nil {
		return nil
	}
	text, ok := profile.ResolveText(rec, sel)
	if !ok {
		return nil
	}
	return &text
}

func sortKey(streamID *string, rowTime, tieBreaker string) string {
	stream := unknownStream
	if streamID != nil {
		stream = *streamID
	}
	return stream + ":" + rowTime + ":" + tieBreaker
}

// ExtractRawRecords accepts a single record or a list of records. Non-object
// list entries are dropped and counted. Any other shape is ErrInvalidPayload.
func ExtractRawRecords(payload any) ([]RawRecord, int, error) {
	switch v := payload.(type) {
	case map[string]any:
		return []RawRecord{v}, 0, nil
	case []map[string]any:
		records := make([]RawRecord, 0, len(v))
		dropped := 0
		for _, rec := range v {
			if rec == nil {
				dropped++
				continue
			}
			records = append(records, rec)
		}
		return records, dropped, nil
	case []any:
		records := make([]RawRecord, 0, len(v))
		dropped := 0
		for _, item := range v {
			rec, ok := item.(map[string]any)
			if !ok || rec == nil {
				dropped++
				continue
			}
			records = append(records, rec)
		}
		return records, dropped, nil
	default:
		return nil, 0, fmt.Errorf("%w: %s", ErrInvalidPayload, describePayload(payload))
	}
}

// describePayload summarizes an unexpected payload for logs and error details.
func describePayload(payload any) string {
	switch v := payload.(type) {
	case nil:
		return "payloadType=null"
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		if len(keys) > 20 {
			keys = keys[:20]
		}
		return fmt.Sprintf("payloadType=object payloadKeys=%v", keys)
	case string:
		return fmt.Sprintf("payloadType=string payloadLength=%d", len(v))
	default:
		return fmt.Sprintf("payloadType=%T", payload)
	}
}
