package pgn

import (
	"fmt"
	"strings"

	"github.com/pgnlab/insight/internal/domain"
)

// WriteMovetext renders the game's move sequence with regenerated
// numbering and the terminating result token. Comments and annotations are
// not emitted; the round-trip guarantee covers move order, not formatting.
func WriteMovetext(rec *domain.GameRecord) string {
	if rec == nil {
		return ""
	}
	var b strings.Builder
	for _, mv := range rec.Moves {
		if mv.Color == domain.White {
			fmt.Fprintf(&b, "%d. ", (mv.Ply+1)/2)
		}
		b.WriteString(mv.SAN)
		b.WriteByte(' ')
	}
	result := rec.Result
	if result == "" {
		result = domain.ResultUnknown
	}
	b.WriteString(string(result))
	return b.String()
}

// WritePGN renders a complete game: the tag section in original order,
// a separating blank line, and the movetext.
func WritePGN(rec *domain.GameRecord) string {
	if rec == nil {
		return ""
	}
	var b strings.Builder
	for _, key := range rec.TagOrder {
		fmt.Fprintf(&b, "[%s \"%s\"]\n", key, escapeTagValue(rec.Tags[key]))
	}
	if len(rec.TagOrder) > 0 {
		b.WriteByte('\n')
	}
	b.WriteString(WriteMovetext(rec))
	b.WriteByte('\n')
	return b.String()
}

func escapeTagValue(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	return strings.ReplaceAll(v, `"`, `\"`)
}
