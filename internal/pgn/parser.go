package pgn

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pgnlab/insight/internal/domain"
)

// ParseError reports a malformed game. It is scoped to a single game: the
// stream resynchronizes at the next game boundary and keeps going.
type ParseError struct {
	Line   int
	Token  string
	Reason string
}

func (e *ParseError) Error() string {
	if strings.TrimSpace(e.Token) != "" {
		return fmt.Sprintf("pgn: line %d: %s: %q", e.Line, e.Reason, e.Token)
	}
	return fmt.Sprintf("pgn: line %d: %s", e.Line, e.Reason)
}

var (
	tagRe = regexp.MustCompile(`^\[\s*([A-Za-z0-9_]+)\s+"((?:[^"\\]|\\.)*)"\s*\]\s*$`)
	// sanRe matches the token after suffix annotations were stripped.
	sanRe = regexp.MustCompile(`^(?:O-O(?:-O)?|[KQRBN][a-h]?[1-8]?x?[a-h][1-8]|[a-h](?:x[a-h])?[1-8](?:=?[QRBN])?)[+#]?$`)
)

// Stream is a lazy, single-pass sequence of games over one PGN input.
// It is finite and not restartable once consumed.
type Stream struct {
	r    *lineReader
	done bool
}

func Parse(r io.Reader) *Stream {
	return &Stream{r: newLineReader(r)}
}

func ParseString(s string) *Stream {
	return Parse(strings.NewReader(s))
}

// ParseAll drains the stream. Per-game ParseErrors are collected and do not
// stop parsing; an underlying read error aborts.
func ParseAll(r io.Reader) ([]*domain.GameRecord, []error) {
	s := Parse(r)
	var games []*domain.GameRecord
	var errs []error
	for {
		g, err := s.Next()
		if errors.Is(err, io.EOF) {
			return games, errs
		}
		if err != nil {
			errs = append(errs, err)
			var pe *ParseError
			if !errors.As(err, &pe) {
				return games, errs
			}
			continue
		}
		games = append(games, g)
	}
}

// Next returns the next game in file order. It returns (nil, io.EOF) once
// the input is exhausted. A malformed game yields (nil, *ParseError); the
// caller keeps calling Next to get the remaining games.
func (s *Stream) Next() (*domain.GameRecord, error) {
	if s.done {
		return nil, io.EOF
	}

	line, no, ok := s.skipBlank()
	if !ok {
		return nil, s.finish()
	}

	rec := &domain.GameRecord{
		Tags:      map[string]string{},
		Result:    domain.ResultUnknown,
		StartLine: no,
	}

	// Tag-pair section.
	for strings.HasPrefix(strings.TrimSpace(line), "[") {
		trimmed := strings.TrimSpace(line)
		m := tagRe.FindStringSubmatch(trimmed)
		if m == nil {
			s.resync()
			return nil, &ParseError{Line: no, Token: trimmed, Reason: "malformed tag pair"}
		}
		key := m[1]
		if _, dup := rec.Tags[key]; !dup {
			rec.TagOrder = append(rec.TagOrder, key)
		}
		rec.Tags[key] = unescapeTagValue(m[2])

		var crossedBlank bool
		line, no, crossedBlank, ok = s.nextAfterTag()
		if !ok {
			return rec, nil
		}
		// a blank line followed by a tag section starts the next game;
		// this one simply had no movetext
		if crossedBlank && strings.HasPrefix(strings.TrimSpace(line), "[") {
			s.r.unread(line, no)
			return rec, nil
		}
	}

	if err := s.parseMovetext(rec, line, no); err != nil {
		s.resync()
		return nil, err
	}
	return rec, nil
}

func (s *Stream) skipBlank() (string, int, bool) {
	for {
		line, no, ok := s.r.next()
		if !ok {
			return "", 0, false
		}
		if strings.TrimSpace(line) != "" {
			return line, no, true
		}
	}
}

// nextAfterTag reads the next non-blank line and reports whether a blank
// line was crossed to reach it, which marks a game boundary after tags.
func (s *Stream) nextAfterTag() (string, int, bool, bool) {
	crossed := false
	for {
		line, no, ok := s.r.next()
		if !ok {
			return "", 0, false, false
		}
		if strings.TrimSpace(line) == "" {
			crossed = true
			continue
		}
		return line, no, crossed, true
	}
}

func (s *Stream) finish() error {
	s.done = true
	if err := s.r.readErr(); err != nil {
		return err
	}
	return io.EOF
}

// parseMovetext tokenizes the movetext section into rec.Moves, stripping
// comments, NAGs and variations into side channels. It stops at the result
// token or at the next game's tag section.
func (s *Stream) parseMovetext(rec *domain.GameRecord, line string, no int) error {
	var (
		inComment  bool
		ravDepth   int
		commentBuf strings.Builder
		ply        int
	)

	flushComment := func() {
		text := strings.TrimSpace(commentBuf.String())
		commentBuf.Reset()
		if text == "" || ravDepth > 0 {
			return
		}
		clk, hasClk, cleaned := extractClock(text)
		if len(rec.Moves) == 0 {
			return // comment ahead of the first move has no move to attach to
		}
		m := &rec.Moves[len(rec.Moves)-1]
		if hasClk {
			m.Clock = clk
			m.HasClock = true
		}
		if cleaned != "" {
			if m.Comment != "" {
				m.Comment += " "
			}
			m.Comment += cleaned
		}
	}

	annotate := func(a string) {
		if ravDepth > 0 || len(rec.Moves) == 0 {
			return
		}
		m := &rec.Moves[len(rec.Moves)-1]
		if m.Annotation != "" {
			m.Annotation += " "
		}
		m.Annotation += a
	}

	for {
		i := 0
		for i < len(line) {
			if inComment {
				j := strings.IndexByte(line[i:], '}')
				if j < 0 {
					commentBuf.WriteString(line[i:])
					commentBuf.WriteByte(' ')
					i = len(line)
					continue
				}
				commentBuf.WriteString(line[i : i+j])
				i += j + 1
				inComment = false
				flushComment()
				continue
			}

			c := line[i]
			switch {
			case c == ' ' || c == '\t':
				i++
			case c == '{':
				inComment = true
				i++
			case c == ';':
				commentBuf.WriteString(strings.TrimSpace(line[i+1:]))
				flushComment()
				i = len(line)
			case c == '(':
				ravDepth++
				i++
			case c == ')':
				if ravDepth == 0 {
					return &ParseError{Line: no, Token: ")", Reason: "unbalanced variation"}
				}
				ravDepth--
				i++
			case c == '[':
				// A tag pair here means the previous game ended without a
				// result token; hand the line to the next game.
				if i == 0 {
					s.r.unread(line, no)
					return nil
				}
				return &ParseError{Line: no, Token: "[", Reason: "unexpected '[' in movetext"}
			case c == '$':
				j := i + 1
				for j < len(line) && isDigit(line[j]) {
					j++
				}
				if j == i+1 {
					return &ParseError{Line: no, Token: "$", Reason: "malformed NAG"}
				}
				annotate(line[i:j])
				i = j
			default:
				j := i
				for j < len(line) && !isTokenBreak(line[j]) {
					j++
				}
				tok := line[i:j]
				i = j
				if ravDepth > 0 {
					continue // variations are skipped, not analyzed
				}
				switch {
				case tok == "1-0" || tok == "0-1" || tok == "1/2-1/2" || tok == "*":
					rec.Result = domain.Result(tok)
					return nil
				case isMoveNumber(tok):
					// numbering is regenerated on output; ignore
				default:
					san, suffix, err := normalizeSAN(trimMoveNumber(tok))
					if err != nil {
						return &ParseError{Line: no, Token: tok, Reason: "invalid move token"}
					}
					ply++
					rec.Moves = append(rec.Moves, domain.MoveRecord{
						Ply:   ply,
						Color: domain.ColorAt(ply),
						SAN:   san,
					})
					if suffix != "" {
						annotate(suffix)
					}
				}
			}
		}

		nline, nno, ok := s.r.next()
		if !ok {
			if inComment {
				return &ParseError{Line: no, Reason: "unterminated comment"}
			}
			return nil
		}
		if !inComment && strings.HasPrefix(strings.TrimSpace(nline), "[") {
			s.r.unread(nline, nno)
			return nil
		}
		line, no = nline, nno
	}
}

// resync skips to the next game boundary: a blank line followed by a tag
// section. Everything in between belongs to the failed game.
func (s *Stream) resync() {
	seenBlank := false
	for {
		line, no, ok := s.r.next()
		if !ok {
			return
		}
		t := strings.TrimSpace(line)
		if t == "" {
			seenBlank = true
			continue
		}
		if seenBlank && strings.HasPrefix(t, "[") {
			s.r.unread(line, no)
			return
		}
		seenBlank = false
	}
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

func isTokenBreak(b byte) bool {
	switch b {
	case ' ', '\t', '{', '}', ';', '(', ')':
		return true
	}
	return false
}

// trimMoveNumber strips a move-number indicator glued to its move, the
// import-format "1.e4" / "2...Nc6" style. Tokens without such a prefix are
// returned unchanged.
func trimMoveNumber(tok string) string {
	k := 0
	for k < len(tok) && isDigit(tok[k]) {
		k++
	}
	if k == 0 || k == len(tok) || tok[k] != '.' {
		return tok
	}
	for k < len(tok) && tok[k] == '.' {
		k++
	}
	return tok[k:]
}

// isMoveNumber matches "1.", "1...", "12." and a bare "12".
func isMoveNumber(tok string) bool {
	tok = strings.TrimRight(tok, ".")
	if tok == "" {
		return false
	}
	for k := 0; k < len(tok); k++ {
		if !isDigit(tok[k]) {
			return false
		}
	}
	return true
}

// normalizeSAN splits suffix annotations ("!", "??", "!?") off the move
// token and validates the remaining SAN shape. Zero-style castling is
// normalized to letter O.
func normalizeSAN(tok string) (san, suffix string, err error) {
	core := tok
	for len(core) > 0 {
		last := core[len(core)-1]
		if last != '!' && last != '?' {
			break
		}
		core = core[:len(core)-1]
	}
	suffix = tok[len(core):]
	if core == "0-0" {
		core = "O-O"
	} else if core == "0-0-0" {
		core = "O-O-O"
	}
	if !sanRe.MatchString(core) {
		return "", "", fmt.Errorf("not a SAN move: %q", tok)
	}
	return core, suffix, nil
}

func unescapeTagValue(v string) string {
	if !strings.ContainsRune(v, '\\') {
		return v
	}
	var b strings.Builder
	for k := 0; k < len(v); k++ {
		if v[k] == '\\' && k+1 < len(v) {
			k++
			b.WriteByte(v[k])
			continue
		}
		b.WriteByte(v[k])
	}
	return b.String()
}

// extractClock pulls a [%clk h:mm:ss] command out of a comment, returning
// the remaining human text. Other %-commands are stripped and discarded.
func extractClock(text string) (time.Duration, bool, string) {
	var (
		clk    time.Duration
		hasClk bool
	)
	for {
		start := strings.Index(text, "[%")
		if start < 0 {
			break
		}
		end := strings.IndexByte(text[start:], ']')
		if end < 0 {
			// malformed command; keep the text as-is
			break
		}
		cmd := text[start+2 : start+end]
		text = strings.TrimSpace(text[:start] + " " + text[start+end+1:])
		fields := strings.Fields(cmd)
		if len(fields) == 2 && fields[0] == "clk" {
			if d, ok := parseClock(fields[1]); ok {
				clk = d
				hasClk = true
			}
		}
	}
	return clk, hasClk, strings.TrimSpace(text)
}

// parseClock parses h:mm:ss, mm:ss and fractional-second forms.
func parseClock(s string) (time.Duration, bool) {
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, false
	}
	sec, err := strconv.ParseFloat(parts[len(parts)-1], 64)
	if err != nil || sec < 0 {
		return 0, false
	}
	d := time.Duration(sec * float64(time.Second))
	min, err := strconv.Atoi(parts[len(parts)-2])
	if err != nil || min < 0 {
		return 0, false
	}
	d += time.Duration(min) * time.Minute
	if len(parts) == 3 {
		hour, err := strconv.Atoi(parts[0])
		if err != nil || hour < 0 {
			return 0, false
		}
		d += time.Duration(hour) * time.Hour
	}
	return d, true
}

type lineReader struct {
	sc      *bufio.Scanner
	n       int
	held    string
	heldNo  int
	hasHeld bool
}

func newLineReader(r io.Reader) *lineReader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	return &lineReader{sc: sc}
}

func (r *lineReader) next() (string, int, bool) {
	if r.hasHeld {
		r.hasHeld = false
		return r.held, r.heldNo, true
	}
	if !r.sc.Scan() {
		return "", r.n + 1, false
	}
	r.n++
	return r.sc.Text(), r.n, true
}

func (r *lineReader) unread(line string, no int) {
	r.held, r.heldNo, r.hasHeld = line, no, true
}

func (r *lineReader) readErr() error {
	return r.sc.Err()
}
