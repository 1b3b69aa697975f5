// Package game keeps the rules side of a watched game: legal moves, the
// current position and its notation.
package game

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/notnil/chess"
	"github.com/thyrook/boardwatch/internal/vision"
)

// ErrIllegalMove is returned when a move is not legal in the current position
var ErrIllegalMove = errors.New("illegal move")

// Tracker follows a game move by move and supplies its legal moves to the vision pipeline
type Tracker struct {
	game *chess.Game
}

// NewTracker starts from the standard initial position
func NewTracker() *Tracker {
	return &Tracker{game: chess.NewGame()}
}

// FromFEN starts from an arbitrary position
func FromFEN(fen string) (*Tracker, error) {
	opt, err := chess.FEN(strings.TrimSpace(fen))
	if err != nil {
		return nil, fmt.Errorf("invalid FEN: %w", err)
	}
	return &Tracker{game: chess.NewGame(opt)}, nil
}

// FromPGN resumes a game from its PGN record
func FromPGN(r io.Reader) (*Tracker, error) {
	opt, err := chess.PGN(r)
	if err != nil {
		return nil, fmt.Errorf("invalid PGN: %w", err)
	}
	return &Tracker{game: chess.NewGame(opt)}, nil
}

// LegalMoves returns the legal moves of the side to move.
// Underpromotions are listed last so an ambiguous promotion resolves to a queen.
func (t *Tracker) LegalMoves() []vision.Move {
	valid := t.game.ValidMoves()
	moves := make([]vision.Move, 0, len(valid))
	for _, m := range valid {
		moves = append(moves, vision.Move{
			From: int(m.S1()),
			To:   int(m.S2()),
			UCI:  m.String(),
		})
	}
	sort.SliceStable(moves, func(i, j int) bool {
		return !isUnderpromotion(moves[i]) && isUnderpromotion(moves[j])
	})
	return moves
}

func isUnderpromotion(m vision.Move) bool {
	return len(m.UCI) == 5 && m.UCI[4] != 'q'
}

// Apply plays a move. It is matched by UCI string, or by squares when UCI is empty.
func (t *Tracker) Apply(move vision.Move) error {
	for _, m := range t.game.ValidMoves() {
		if move.UCI != "" {
			if m.String() != move.UCI {
				continue
			}
		} else if int(m.S1()) != move.From || int(m.S2()) != move.To {
			continue
		}
		if err := t.game.Move(m); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrIllegalMove, move, err)
		}
		return nil
	}
	return fmt.Errorf("%w: %s in %s", ErrIllegalMove, move, t.FEN())
}

// ApplyUCI plays a move given in UCI notation (e.g., "e2e4", "e7e8q")
func (t *Tracker) ApplyUCI(uci string) error {
	return t.Apply(vision.Move{UCI: strings.ToLower(strings.TrimSpace(uci))})
}

// FEN returns the current position
func (t *Tracker) FEN() string {
	return t.game.Position().String()
}

// PGN returns the game record
func (t *Tracker) PGN() string {
	return t.game.String()
}

// Ply returns the number of half-moves played
func (t *Tracker) Ply() int {
	return len(t.game.Moves())
}

// Turn returns the color to move
func (t *Tracker) Turn() vision.SquareStatus {
	if t.game.Position().Turn() == chess.Black {
		return vision.Black
	}
	return vision.White
}

// Outcome returns the result ("*" while in progress) and how it was decided
func (t *Tracker) Outcome() (string, string) {
	return string(t.game.Outcome()), t.game.Method().String()
}

// Over reports whether the game has ended
func (t *Tracker) Over() bool {
	return t.game.Outcome() != chess.NoOutcome
}

// Occupancy returns the expected status of every square in the current position
func (t *Tracker) Occupancy() [64]vision.SquareStatus {
	var occ [64]vision.SquareStatus
	board := t.game.Position().Board()
	for index := 0; index < 64; index++ {
		switch board.Piece(chess.Square(index)).Color() {
		case chess.White:
			occ[index] = vision.White
		case chess.Black:
			occ[index] = vision.Black
		}
	}
	return occ
}

// Mismatches lists the squares where an observed scan disagrees with the position
func (t *Tracker) Mismatches(observed [64]vision.SquareStatus) []int {
	expected := t.Occupancy()
	var diff []int
	for index := range expected {
		if expected[index] != observed[index] {
			diff = append(diff, index)
		}
	}
	return diff
}
