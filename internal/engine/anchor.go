package engine

import (
	"github.com/emertechie/vic-viewer/internal/cursor"
	"github.com/emertechie/vic-viewer/internal/profile"
)

// BuildCursorFromRow anchors a cursor at row. The anchor carries everything
// the ordering needs, so a later request can partition rows around it without
// the row itself.
func BuildCursorFromRow(dir cursor.Direction, row LogRow, p *profile.LogProfile, queryHash string, w cursor.Window) cursor.Cursor {
	anchor := cursor.Anchor{
		Time:       row.Time,
		StreamID:   resolveOptional(row.Raw, p.CoreFields.StreamID),
		TieBreaker: row.TieBreaker,
	}
	if seq, ok := ExtractSequenceHint(row.Raw, p); ok {
		anchor.Sequence = &seq
	}
	return cursor.Cursor{
		V:         cursor.Version,
		Dir:       dir,
		QueryHash: queryHash,
		Window:    w,
		Anchor:    anchor,
	}
}
