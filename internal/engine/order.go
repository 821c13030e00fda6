package engine

import (
	"cmp"
	"sort"
	"strings"

	"github.com/emertechie/vic-viewer/internal/cursor"
	"github.com/emertechie/vic-viewer/internal/profile"
)

// sortTarget is the tuple rows and anchors are ordered by.
type sortTarget struct {
	time     string
	key      string
	sequence int64
	hasSeq   bool
}

func targetFromRow(row LogRow, p *profile.LogProfile) sortTarget {
	// The stream id is re-resolved so ordering follows the active profile.
	streamID := resolveOptional(row.Raw, p.CoreFields.StreamID)
	seq, ok := ExtractSequenceHint(row.Raw, p)
	return sortTarget{
		time:     row.Time,
		key:      sortKey(streamID, row.Time, row.TieBreaker),
		sequence: seq,
		hasSeq:   ok,
	}
}

func targetFromAnchor(a cursor.Anchor) sortTarget {
	t := sortTarget{
		time: a.Time,
		key:  sortKey(a.StreamID, a.Time, a.TieBreaker),
	}
	if a.Sequence != nil {
		t.sequence, t.hasSeq = *a.Sequence, true
	}
	return t
}

func compareTargets(a, b sortTarget) int {
	if c := strings.Compare(a.time, b.time); c != 0 {
		return c
	}
	if a.hasSeq && b.hasSeq && a.sequence != b.sequence {
		return cmp.Compare(a.sequence, b.sequence)
	}
	return strings.Compare(a.key, b.key)
}

// Compare orders rows by time, then by sequence hint when both rows carry
// one, then by stream id and tie-breaker. It returns -1, 0 or 1.
func Compare(a, b LogRow, p *profile.LogProfile) int {
	return compareTargets(targetFromRow(a, p), targetFromRow(b, p))
}

// SortRows sorts rows ascending by Compare.
func SortRows(rows []LogRow, p *profile.LogProfile) {
	targets := make([]sortTarget, len(rows))
	for i := range rows {
		targets[i] = targetFromRow(rows[i], p)
	}
	sort.Stable(rowSorter{rows: rows, targets: targets})
}

type rowSorter struct {
	rows    []LogRow
	targets []sortTarget
}

func (s rowSorter) Len() int           { return len(s.rows) }
func (s rowSorter) Less(i, j int) bool { return compareTargets(s.targets[i], s.targets[j]) < 0 }
func (s rowSorter) Swap(i, j int) {
	s.rows[i], s.rows[j] = s.rows[j], s.rows[i]
	s.targets[i], s.targets[j] = s.targets[j], s.targets[i]
}

// IsBeforeAnchor reports whether row sorts strictly before the anchor.
func IsBeforeAnchor(row LogRow, a cursor.Anchor, p *profile.LogProfile) bool {
	return compareTargets(targetFromRow(row, p), targetFromAnchor(a)) < 0
}

// IsAfterAnchor reports whether row sorts strictly after the anchor.
func IsAfterAnchor(row LogRow, a cursor.Anchor, p *profile.LogProfile) bool {
	return compareTargets(targetFromRow(row, p), targetFromAnchor(a)) > 0
}
