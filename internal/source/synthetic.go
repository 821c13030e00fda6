package source

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/emertechie/vic-viewer/internal/cursor"
	"github.com/emertechie/vic-viewer/internal/pkg/nanoql"
)

// SyntheticProfile shapes the volume of the synthetic timeline.
type SyntheticProfile string

const (
	Steady SyntheticProfile = "steady"
	Bursty SyntheticProfile = "bursty"
	Noisy  SyntheticProfile = "noisy"
)

// DefaultSyntheticSeed seeds the timeline when none is configured.
const DefaultSyntheticSeed = "vic-viewer-fake-seed"

// DefaultLookback bounds how far back the synthetic timeline reaches.
const DefaultLookback = 30 * 24 * time.Hour

var (
	severities = []string{"TRACE", "DEBUG", "INFO", "WARN", "ERROR"}
	services   = []string{"api", "worker", "scheduler", "frontend", "billing", "search"}

	// Sequence numbers count 2s slots from this instant, four per slot.
	sequenceEpochMs = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
)

const (
	maxRecordsPerTick = 4
	sequenceSlotMs    = 2000
	maxJitterMs       = 200
	checkpointEvery   = 250
	historicalAfter   = 60 * time.Second
	rowTimeLayout     = "2006-01-02T15:04:05.000Z"
)

// ParseSyntheticProfile maps a config value onto a profile, defaulting to Steady.
func ParseSyntheticProfile(s string) (SyntheticProfile, error) {
	switch p := SyntheticProfile(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return Steady, nil
	case Steady, Bursty, Noisy:
		return p, nil
	default:
		return "", fmt.Errorf("unknown synthetic profile %q", s)
	}
}

type SyntheticConfig struct {
	Profile  SyntheticProfile
	Seed     string
	Lookback time.Duration
	Now      func() time.Time
}

// Synthetic is a deterministic stand-in for the log backend. Every record is
// a pure function of (profile, seed, tick, index), and ticks sit on an
// absolute grid, so overlapping windows return identical records.
type Synthetic struct {
	profile  SyntheticProfile
	seed     string
	lookback time.Duration
	now      func() time.Time
}

func NewSynthetic(cfg SyntheticConfig) (*Synthetic, error) {
	if cfg.Profile == "" {
		cfg.Profile = Steady
	}
	if _, err := ParseSyntheticProfile(string(cfg.Profile)); err != nil {
		return nil, err
	}
	if cfg.Seed == "" {
		cfg.Seed = DefaultSyntheticSeed
	}
	if cfg.Lookback <= 0 {
		cfg.Lookback = DefaultLookback
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Synthetic{profile: cfg.Profile, seed: cfg.Seed, lookback: cfg.Lookback, now: cfg.Now}, nil
}

// syntheticRecord is one generated log line.
type syntheticRecord struct {
	timestampMs int64
	sequence    int64
	message     string
	fields      map[string]string
}

func (r *syntheticRecord) Field(name string) (string, bool) {
	v, ok := r.fields[name]
	return v, ok
}

func (r *syntheticRecord) Text() string { return r.message }

func (r *syntheticRecord) raw() map[string]any {
	out := make(map[string]any, len(r.fields))
	for k, v := range r.fields {
		out[k] = v
	}
	return out
}

// QueryRaw generates the timeline inside [q.Start, q.End], applies the query
// and returns at most q.Limit records as a []any of objects.
func (s *Synthetic) QueryRaw(ctx context.Context, q Query) (any, error) {
	start, err := time.Parse(time.RFC3339Nano, q.Start)
	if err != nil {
		return nil, s.badRequest("invalid start", err)
	}
	end, err := time.Parse(time.RFC3339Nano, q.End)
	if err != nil {
		return nil, s.badRequest("invalid end", err)
	}
	filter, err := nanoql.Parse(q.Query)
	if err != nil {
		return nil, s.badRequest("invalid query", err)
	}

	now := s.now()
	startMs, endMs := start.UnixMilli(), end.UnixMilli()

	var matches []*syntheticRecord
	err = s.eachTick(ctx, startMs-maxJitterMs, endMs+maxJitterMs, now.UnixMilli(), func(tickMs int64) {
		for _, rec := range s.recordsAt(tickMs) {
			if rec.timestampMs < startMs || rec.timestampMs > endMs {
				continue
			}
			if nanoql.Match(filter, rec) {
				matches = append(matches, rec)
			}
		}
	})
	if err != nil {
		return nil, s.interrupted(err)
	}

	// Newest first, like the backend.
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].timestampMs != matches[j].timestampMs {
			return matches[i].timestampMs > matches[j].timestampMs
		}
		return matches[i].sequence > matches[j].sequence
	})

	historical := end.Before(now.Add(-historicalAfter))
	matches = sliceMatches(matches, q.Limit, q.Direction, historical)

	out := make([]any, len(matches))
	for i, rec := range matches {
		out[i] = rec.raw()
	}
	return out, nil
}

// sliceMatches picks the records nearest the side being paged toward.
// matches is sorted newest first.
func sliceMatches(matches []*syntheticRecord, limit int, dir cursor.Direction, historical bool) []*syntheticRecord {
	if limit <= 0 || len(matches) <= limit {
		return matches
	}
	switch {
	case dir == cursor.Older:
		return matches[:limit]
	case dir == cursor.Newer:
		return matches[len(matches)-limit:]
	case historical:
		// A first page over a past window samples from the middle.
		mid := (len(matches) - limit) / 2
		return matches[mid : mid+limit]
	default:
		return matches[:limit]
	}
}

func (s *Synthetic) badRequest(msg string, err error) error {
	return &UpstreamError{Source: NameSynthetic, StatusCode: 400, Message: msg, Err: err}
}

func (s *Synthetic) interrupted(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &UpstreamError{Source: NameSynthetic, StatusCode: http.StatusGatewayTimeout, Message: "Synthetic query deadline exceeded", Err: err}
	}
	return &UpstreamError{Source: NameSynthetic, StatusCode: http.StatusBadGateway, Message: "Synthetic query interrupted", Err: err}
}

// cadence returns the tick spacing for a tick of the given age.
func (s *Synthetic) cadence(age time.Duration) int64 {
	var d time.Duration
	switch {
	case age <= time.Hour:
		d = map[SyntheticProfile]time.Duration{Steady: 5 * time.Second, Bursty: 3 * time.Second, Noisy: 2 * time.Second}[s.profile]
	case age <= 24*time.Hour:
		d = map[SyntheticProfile]time.Duration{Steady: 60 * time.Second, Bursty: 30 * time.Second, Noisy: 20 * time.Second}[s.profile]
	default:
		d = map[SyntheticProfile]time.Duration{Steady: 15 * time.Minute, Bursty: 10 * time.Minute, Noisy: 5 * time.Minute}[s.profile]
	}
	return d.Milliseconds()
}

// eachTick calls fn for every tick in [fromMs, toMs] in ascending order.
// Ticks are multiples of the cadence for their age band, and the timeline
// covers [now-lookback, now].
func (s *Synthetic) eachTick(ctx context.Context, fromMs, toMs, nowMs int64, fn func(int64)) error {
	fromMs = max(fromMs, nowMs-s.lookback.Milliseconds(), sequenceEpochMs)
	toMs = min(toMs, nowMs)

	dayAgo := nowMs - (24 * time.Hour).Milliseconds()
	hourAgo := nowMs - time.Hour.Milliseconds()
	bands := []struct {
		lo, hi int64 // inclusive
		age    time.Duration
	}{
		{fromMs, min(toMs, dayAgo-1), 25 * time.Hour},
		{max(fromMs, dayAgo), min(toMs, hourAgo-1), 2 * time.Hour},
		{max(fromMs, hourAgo), toMs, 0},
	}

	n := 0
	for _, b := range bands {
		step := s.cadence(b.age)
		for t := alignUp(b.lo, step); t <= b.hi; t += step {
			if n++; n%1024 == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			fn(t)
		}
	}
	return ctx.Err()
}

func alignUp(ms, step int64) int64 {
	if r := ms % step; r != 0 {
		if ms < 0 {
			return ms - r
		}
		return ms + step - r
	}
	return ms
}

func (s *Synthetic) countAt(tickMs int64) int {
	u := unitInterval(fmt.Sprintf("%s:count:%d", s.seed, tickMs))
	switch s.profile {
	case Bursty:
		switch {
		case u < 0.15:
			return 3
		case u < 0.4:
			return 2
		}
	case Noisy:
		switch {
		case u < 0.1:
			return 4
		case u < 0.45:
			return 2
		}
	default:
		if u < 0.08 {
			return 2
		}
	}
	return 1
}

// recordsAt derives the records of one tick. Sequence numbers follow the
// records' timestamps, so they increase with row order.
func (s *Synthetic) recordsAt(tickMs int64) []*syntheticRecord {
	count := s.countAt(tickMs)
	recs := make([]*syntheticRecord, count)
	for i := 0; i < count; i++ {
		streamSeed := fmt.Sprintf("%s:stream:%d:%d", s.seed, tickMs, i)
		service := pick(services, streamSeed+":service")
		severity := pick(severities, streamSeed+":severity")
		streamIndex := min(int(unitInterval(streamSeed+":id")*20), 19)

		ts := tickMs
		if s.profile == Noisy {
			ts += int64(unitInterval(streamSeed+":jitter")*2*maxJitterMs) - maxJitterMs
		}

		recs[i] = &syntheticRecord{
			timestampMs: ts,
			fields: map[string]string{
				"_time":        time.UnixMilli(ts).UTC().Format(rowTimeLayout),
				"_stream_id":   fmt.Sprintf("stream-%s-%d", service, streamIndex),
				"_stream":      fmt.Sprintf(`{service.name="%s",severity="%s"}`, service, severity),
				"severity":     severity,
				"service.name": service,
				"trace_id":     digestHex(streamSeed + ":trace")[:32],
				"span_id":      digestHex(streamSeed + ":span")[:16],
			},
		}
	}

	sort.SliceStable(recs, func(i, j int) bool { return recs[i].timestampMs < recs[j].timestampMs })

	base := (tickMs - sequenceEpochMs) / sequenceSlotMs * maxRecordsPerTick
	for rank, rec := range recs {
		rec.sequence = base + int64(rank) + 1
		checkpoint := ""
		if rec.sequence%checkpointEvery == 0 {
			checkpoint = fmt.Sprintf(" | CHECKPOINT:%d", rec.sequence/checkpointEvery)
		}
		rec.message = fmt.Sprintf("SEQ:%09d%s | svc=%s | level=%s | profile=%s",
			rec.sequence, checkpoint, rec.fields["service.name"], rec.fields["severity"], s.profile)
		rec.fields["_msg"] = rec.message
	}
	return recs
}

// unitInterval maps a seed string onto [0, 1].
func unitInterval(seed string) float64 {
	sum := blake2b.Sum256([]byte(seed))
	return float64(binary.BigEndian.Uint32(sum[:4])) / 0xffffffff
}

func digestHex(seed string) string {
	sum := blake2b.Sum256([]byte(seed))
	return hex.EncodeToString(sum[:])
}

func pick(items []string, seed string) string {
	i := int(unitInterval(seed) * float64(len(items)))
	return items[min(i, len(items)-1)]
}
