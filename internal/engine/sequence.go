package engine

import (
	"regexp"
	"strconv"

	"github.com/emertechie/vic-viewer/internal/profile"
)

var sequencePattern = regexp.MustCompile(`^SEQ:(\d+)`)

// ExtractSequenceHint reads a leading "SEQ:<digits>" marker from the record's
// message. Messages without one, or with an out-of-range number, have no hint.
func ExtractSequenceHint(rec RawRecord, p *profile.LogProfile) (int64, bool) {
	message, ok := profile.ResolveText(rec, &p.CoreFields.Message)
	if !ok {
		return 0, false
	}
	m := sequencePattern.FindStringSubmatch(message)
	if m == nil {
		return 0, false
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
