package engine

import (
	"fmt"
	"math/rand"
	"reflect"
	"strings"
	"testing"

	"github.com/emertechie/vic-viewer/internal/cursor"
	"github.com/emertechie/vic-viewer/internal/profile"
)

func mustNormalize(t *testing.T, p *profile.LogProfile, rec RawRecord) LogRow {
	t.Helper()
	row, ok := Normalize(rec, p)
	if !ok {
		t.Fatalf("record dropped: %v", rec)
	}
	return row
}

func TestCompareSharedTimestampBySpanID(t *testing.T) {
	p := profile.Fallback()
	a := mustNormalize(t, p, RawRecord{"_time": "2026-02-14T19:25:34.660Z", "_stream_id": "s1", "_msg": "same", "span_id": "aaaa"})
	b := mustNormalize(t, p, RawRecord{"_time": "2026-02-14T19:25:34.660Z", "_stream_id": "s1", "_msg": "same", "span_id": "bbbb"})

	if a.Time != b.Time {
		t.Fatalf("times differ: %s vs %s", a.Time, b.Time)
	}
	if a.TieBreaker == b.TieBreaker || a.Key == b.Key {
		t.Fatal("rows differing in span_id must have distinct tie-breakers and keys")
	}

	want := strings.Compare(a.TieBreaker, b.TieBreaker)
	if got := Compare(a, b, p); got != want {
		t.Errorf("Compare(a, b) = %d, want %d", got, want)
	}
	if Compare(a, b, p) != -Compare(b, a, p) {
		t.Error("Compare is not antisymmetric")
	}
}

func TestCompareSequenceBeatsKey(t *testing.T) {
	p := profile.Fallback()
	// "zzz" sorts after "aaa" by key, but the sequence says otherwise.
	first := mustNormalize(t, p, RawRecord{"_time": "2026-02-14T19:25:34Z", "_stream_id": "zzz", "_msg": "SEQ:000000001"})
	second := mustNormalize(t, p, RawRecord{"_time": "2026-02-14T19:25:34Z", "_stream_id": "aaa", "_msg": "SEQ:000000002"})

	if Compare(first, second, p) != -1 {
		t.Error("lower sequence must sort first")
	}

	// Time still wins over sequence.
	earlier := mustNormalize(t, p, RawRecord{"_time": "2026-02-14T19:25:33Z", "_msg": "SEQ:000000009"})
	if Compare(earlier, first, p) != -1 {
		t.Error("earlier time must sort first regardless of sequence")
	}
}

func TestCompareReResolvesStreamID(t *testing.T) {
	p := profile.Fallback()
	row := mustNormalize(t, p, RawRecord{"_time": "2026-02-14T19:25:34Z", "_stream_id": "s1", "alt": "zz", "_msg": "m"})
	other := mustNormalize(t, p, RawRecord{"_time": "2026-02-14T19:25:34Z", "_stream_id": "s2", "alt": "aa", "_msg": "m"})

	if Compare(row, other, p) != -1 {
		t.Fatal("s1 should sort before s2 under the fallback profile")
	}

	alt := profile.Fallback()
	sel := profile.Single("alt")
	alt.CoreFields.StreamID = &sel
	if Compare(row, other, alt) != 1 {
		t.Error("ordering must follow the stream id of the profile passed in")
	}
}

// orderFixture builds rows with heavy timestamp collisions.
func orderFixture(t *testing.T, p *profile.LogProfile, withSeq bool) []LogRow {
	t.Helper()
	r := rand.New(rand.NewSource(7))
	var rows []LogRow
	for i := 0; i < 60; i++ {
		msg := fmt.Sprintf("message %d", i)
		if withSeq {
			msg = fmt.Sprintf("SEQ:%09d | message", r.Intn(20))
		}
		rows = append(rows, mustNormalize(t, p, RawRecord{
			"_time":      fmt.Sprintf("2026-02-14T19:25:%02d.%03dZ", r.Intn(3), r.Intn(2)),
			"_stream_id": fmt.Sprintf("stream-%d", r.Intn(3)),
			"span_id":    fmt.Sprintf("span-%d", i),
			"_msg":       msg,
		}))
	}
	return rows
}

func TestCompareTotalOrder(t *testing.T) {
	p := profile.Fallback()
	for _, withSeq := range []bool{false, true} {
		t.Run(fmt.Sprintf("seq=%v", withSeq), func(t *testing.T) {
			rows := orderFixture(t, p, withSeq)

			for i := range rows {
				for j := range rows {
					if Compare(rows[i], rows[j], p) != -Compare(rows[j], rows[i], p) {
						t.Fatalf("antisymmetry broken for %s / %s", rows[i].Key, rows[j].Key)
					}
				}
			}

			sorted := append([]LogRow(nil), rows...)
			SortRows(sorted, p)
			for i := 1; i < len(sorted); i++ {
				if Compare(sorted[i-1], sorted[i], p) > 0 {
					t.Fatalf("rows %d and %d out of order", i-1, i)
				}
			}

			shuffled := append([]LogRow(nil), rows...)
			rand.New(rand.NewSource(99)).Shuffle(len(shuffled), func(i, j int) {
				shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
			})
			SortRows(shuffled, p)
			if !reflect.DeepEqual(keys(sorted), keys(shuffled)) {
				t.Error("sorting a shuffled copy produced a different order")
			}
		})
	}
}

func TestAnchorPartition(t *testing.T) {
	p := profile.Fallback()
	for _, withSeq := range []bool{false, true} {
		t.Run(fmt.Sprintf("seq=%v", withSeq), func(t *testing.T) {
			rows := orderFixture(t, p, withSeq)
			SortRows(rows, p)
			w := cursor.Window{Start: "2026-02-14T19:00:00Z", End: "2026-02-14T20:00:00Z"}
			hash := cursor.QueryHash("*", w, cursor.ProfileRef{ID: p.ID, Version: p.Version})

			for i, anchorRow := range rows {
				older := BuildCursorFromRow(cursor.Older, anchorRow, p, hash, w)
				newer := BuildCursorFromRow(cursor.Newer, anchorRow, p, hash, w)

				before := filterByAnchor(append([]LogRow(nil), rows...), &older, p)
				after := filterByAnchor(append([]LogRow(nil), rows...), &newer, p)

				if !reflect.DeepEqual(keys(before), keys(rows[:i])) {
					t.Fatalf("older partition at %d: got %d rows, want %d", i, len(before), i)
				}
				if !reflect.DeepEqual(keys(after), keys(rows[i+1:])) {
					t.Fatalf("newer partition at %d: got %d rows, want %d", i, len(after), len(rows)-i-1)
				}
			}
		})
	}
}

func TestBuildCursorFromRow(t *testing.T) {
	p := profile.Fallback()
	row := mustNormalize(t, p, RawRecord{"_time": "2026-02-14T19:25:34Z", "_stream_id": "s9", "_msg": "SEQ:000000321 | hi"})
	w := cursor.Window{Start: "2026-02-14T19:00:00Z", End: "2026-02-14T20:00:00Z"}
	c := BuildCursorFromRow(cursor.Newer, row, p, strings.Repeat("0", 64), w)

	if c.Anchor.StreamID == nil || *c.Anchor.StreamID != "s9" {
		t.Errorf("anchor stream = %v", c.Anchor.StreamID)
	}
	if c.Anchor.Sequence == nil || *c.Anchor.Sequence != 321 {
		t.Errorf("anchor sequence = %v", c.Anchor.Sequence)
	}
	if c.Anchor.Time != row.Time || c.Anchor.TieBreaker != row.TieBreaker {
		t.Error("anchor must carry the row's time and tie-breaker")
	}
	if err := c.Validate(); err != nil {
		t.Errorf("built cursor invalid: %v", err)
	}
}

func keys(rows []LogRow) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Key
	}
	return out
}
