package vision

import (
	"errors"
	"fmt"
	"image"
	"strings"
)

// BoardSize is the number of squares along each side
const BoardSize = 8

var (
	// ErrBoardNotLocated is returned by queries made before the board geometry is known
	ErrBoardNotLocated = errors.New("board not located")

	// ErrSquareOutOfFrame means a square's sample region does not fit in the frame.
	// The geometry is stale and the board must be located again.
	ErrSquareOutOfFrame = errors.New("square region outside frame")
)

// Perspective is the side of the board rendered at the bottom of the screen
type Perspective int

const (
	WhiteBottom Perspective = iota
	BlackBottom
)

// String returns "white" or "black"
func (p Perspective) String() string {
	if p == BlackBottom {
		return "black"
	}
	return "white"
}

// ParsePerspective parses "white", "black" or "auto".
// auto is true when the perspective should be detected from the frame.
func ParsePerspective(s string) (p Perspective, auto bool, err error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return WhiteBottom, true, nil
	case "white", "w":
		return WhiteBottom, false, nil
	case "black", "b":
		return BlackBottom, false, nil
	default:
		return WhiteBottom, false, fmt.Errorf("invalid perspective: %q (must be auto, white or black)", s)
	}
}

// Geometry locates the board on screen
type Geometry struct {
	TopLeft    image.Point
	SquareSize float64
}

// GeometryFromRect derives geometry from a board bounding box
func GeometryFromRect(r image.Rectangle) Geometry {
	return Geometry{
		TopLeft:    r.Min,
		SquareSize: float64(r.Dx()) / BoardSize,
	}
}

// Bounds returns the board bounding box
func (g Geometry) Bounds() image.Rectangle {
	side := int(g.SquareSize * BoardSize)
	return image.Rectangle{Min: g.TopLeft, Max: g.TopLeft.Add(image.Pt(side, side))}
}

// Valid reports whether the geometry can be used for queries
func (g Geometry) Valid() bool {
	return g.SquareSize > 0
}

// center returns the pixel center of the square at a screen row and column
func (g Geometry) center(row, col int) image.Point {
	return image.Pt(
		int(float64(g.TopLeft.X)+(float64(col)+0.5)*g.SquareSize),
		int(float64(g.TopLeft.Y)+(float64(row)+0.5)*g.SquareSize),
	)
}

// cropRect returns the central fraction of the square at a screen row and column
func (g Geometry) cropRect(row, col int, fraction float64) image.Rectangle {
	s := g.SquareSize
	x := int(float64(g.TopLeft.X) + float64(col)*s)
	y := int(float64(g.TopLeft.Y) + float64(row)*s)
	inset := (1 - fraction) / 2
	return image.Rect(
		x+int(s*inset), y+int(s*inset),
		x+int(s*(1-inset)), y+int(s*(1-inset)),
	)
}

// RowCol maps a square index to its screen row and column.
// Row 0 is the top of the screen.
func RowCol(index int, p Perspective) (row, col int) {
	if p == BlackBottom {
		return index / 8, 7 - index%8
	}
	return 7 - index/8, index % 8
}

// IndexAt is the inverse of RowCol
func IndexAt(row, col int, p Perspective) int {
	if p == BlackBottom {
		return row*8 + (7 - col)
	}
	return (7-row)*8 + col
}

// SquareName returns algebraic notation for a square index (e.g., "e4")
func SquareName(index int) string {
	if !validIndex(index) {
		return "??"
	}
	return fmt.Sprintf("%c%d", 'a'+index%8, index/8+1)
}

func validIndex(index int) bool {
	return index >= 0 && index < 64
}

func checkIndex(index int) error {
	if !validIndex(index) {
		return fmt.Errorf("square index %d out of range (must be 0-63)", index)
	}
	return nil
}
