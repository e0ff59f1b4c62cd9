package analysis

import (
	"fmt"

	nchess "github.com/corentings/chess/v2"

	"github.com/pgnlab/insight/internal/domain"
)

// IllegalMoveError marks the ply at which a game's move sequence stopped
// being legally applicable. Features before that ply are still valid.
type IllegalMoveError struct {
	Ply    int
	SAN    string
	Reason string
}

func (e *IllegalMoveError) Error() string {
	return fmt.Sprintf("illegal move at ply %d (%s): %s", e.Ply, e.SAN, e.Reason)
}

var pieceValues = map[nchess.PieceType]int{
	nchess.Pawn:   1,
	nchess.Knight: 3,
	nchess.Bishop: 3,
	nchess.Rook:   5,
	nchess.Queen:  9,
}

// Evaluate replays the game's moves from the standard starting position
// and produces one feature record per ply. When a move cannot be applied
// legally the returned slice is truncated at the failing ply and the error
// is an *IllegalMoveError carrying that ply index.
func Evaluate(rec *domain.GameRecord) ([]domain.MoveFeatures, error) {
	_, feats, err := Replay(rec)
	return feats, err
}

// Replay is Evaluate plus the replayed board model, so callers that need
// the final position (opening classification, outcome checks) avoid a
// second pass over the moves.
func Replay(rec *domain.GameRecord) (*nchess.Game, []domain.MoveFeatures, error) {
	game := nchess.NewGame()
	if rec == nil {
		return game, nil, nil
	}

	feats := make([]domain.MoveFeatures, 0, len(rec.Moves))
	for _, mr := range rec.Moves {
		pos := game.Position()
		if colorFrom(pos.Turn()) != mr.Color {
			return game, feats, &IllegalMoveError{
				Ply:    mr.Ply,
				SAN:    mr.SAN,
				Reason: fmt.Sprintf("expected %s to move", pos.Turn()),
			}
		}
		if err := game.PushNotationMove(mr.SAN, nchess.AlgebraicNotation{}, nil); err != nil {
			return game, feats, &IllegalMoveError{Ply: mr.Ply, SAN: mr.SAN, Reason: err.Error()}
		}

		moves := game.Moves()
		mv := moves[len(moves)-1]
		white, black := materialCount(game.Position().Board())

		feats = append(feats, domain.MoveFeatures{
			Ply:           mr.Ply,
			Color:         mr.Color,
			SAN:           mr.SAN,
			UCI:           mv.String(),
			Capture:       mv.HasTag(nchess.Capture) || mv.HasTag(nchess.EnPassant),
			Check:         mv.HasTag(nchess.Check),
			Castle:        mv.HasTag(nchess.KingSideCastle) || mv.HasTag(nchess.QueenSideCastle),
			Promotion:     mv.Promo() != nchess.NoPieceType,
			EnPassant:     mv.HasTag(nchess.EnPassant),
			MaterialWhite: white,
			MaterialBlack: black,
			MaterialDiff:  white - black,
			Clock:         mr.Clock,
			HasClock:      mr.HasClock,
		})
	}
	return game, feats, nil
}

// OutcomeResult maps the replayed outcome to a PGN result token, or
// ResultUnknown while the game is undecided on the board.
func OutcomeResult(game *nchess.Game) domain.Result {
	if game == nil {
		return domain.ResultUnknown
	}
	switch game.Outcome() {
	case nchess.WhiteWon:
		return domain.ResultWhiteWin
	case nchess.BlackWon:
		return domain.ResultBlackWin
	case nchess.Draw:
		return domain.ResultDraw
	default:
		return domain.ResultUnknown
	}
}

func materialCount(board *nchess.Board) (white, black int) {
	if board == nil {
		return 0, 0
	}
	for file := nchess.FileA; file <= nchess.FileH; file++ {
		for rank := nchess.Rank1; rank <= nchess.Rank8; rank++ {
			piece := board.Piece(nchess.NewSquare(file, rank))
			if piece == nchess.NoPiece {
				continue
			}
			value := pieceValues[piece.Type()]
			if value == 0 {
				continue
			}
			if piece.Color() == nchess.White {
				white += value
			} else {
				black += value
			}
		}
	}
	return white, black
}

func colorFrom(c nchess.Color) domain.Color {
	if c == nchess.White {
		return domain.White
	}
	return domain.Black
}
