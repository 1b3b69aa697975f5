package vision

import (
	"errors"
	"fmt"
	"image"

	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

// Board owns the located board geometry and answers coordinate, occupancy and
// move queries against it. It is meant to be driven by a single control loop.
type Board struct {
	geometry   Geometry
	thresholds Thresholds
	logger     *zap.Logger
}

// NewBoard creates a board with no geometry
func NewBoard(thresholds Thresholds, logger *zap.Logger) *Board {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Board{
		thresholds: thresholds,
		logger:     logger,
	}
}

// Thresholds returns the heuristic thresholds in use
func (b *Board) Thresholds() Thresholds {
	return b.thresholds
}

// Located reports whether geometry has been set
func (b *Board) Located() bool {
	return b.geometry.Valid()
}

// Geometry returns the current geometry, or ErrBoardNotLocated
func (b *Board) Geometry() (Geometry, error) {
	if !b.geometry.Valid() {
		return Geometry{}, ErrBoardNotLocated
	}
	return b.geometry, nil
}

// SetGeometry installs a known geometry, for example from a saved calibration
func (b *Board) SetGeometry(g Geometry) error {
	if !g.Valid() {
		return fmt.Errorf("invalid geometry: square size %f", g.SquareSize)
	}
	b.geometry = g
	return nil
}

// Reset forgets the geometry so the board must be located again
func (b *Board) Reset() {
	b.geometry = Geometry{}
}

// Locate finds the board in a frame and updates the geometry.
// When no board is visible it returns false and leaves the geometry untouched.
func (b *Board) Locate(frame gocv.Mat) (image.Rectangle, bool, error) {
	rect, ok, err := LocateBoard(frame, b.thresholds)
	if err != nil {
		return image.Rectangle{}, false, err
	}
	if !ok {
		b.logger.Debug("No board candidates found",
			zap.Int("frame_width", frame.Cols()),
			zap.Int("frame_height", frame.Rows()),
		)
		return image.Rectangle{}, false, nil
	}

	b.geometry = GeometryFromRect(rect)
	b.logger.Info("Board located",
		zap.Int("x", rect.Min.X),
		zap.Int("y", rect.Min.Y),
		zap.Int("width", rect.Dx()),
		zap.Int("height", rect.Dy()),
		zap.Float64("square_size", b.geometry.SquareSize),
	)
	return rect, true, nil
}

// SquareCenter returns the pixel center of a square in frame coordinates
func (b *Board) SquareCenter(index int, p Perspective) (image.Point, error) {
	if !b.geometry.Valid() {
		return image.Point{}, ErrBoardNotLocated
	}
	if err := checkIndex(index); err != nil {
		return image.Point{}, err
	}
	row, col := RowCol(index, p)
	return b.geometry.center(row, col), nil
}

// SquareAt returns the square index under a pixel, if it lies on the board
func (b *Board) SquareAt(pt image.Point, p Perspective) (int, bool) {
	if !b.geometry.Valid() {
		return 0, false
	}
	if !pt.In(b.geometry.Bounds()) {
		return 0, false
	}
	col := int(float64(pt.X-b.geometry.TopLeft.X) / b.geometry.SquareSize)
	row := int(float64(pt.Y-b.geometry.TopLeft.Y) / b.geometry.SquareSize)
	if col < 0 || col >= BoardSize || row < 0 || row >= BoardSize {
		return 0, false
	}
	return IndexAt(row, col, p), true
}

// SquareRegion returns the full pixel rectangle of a square
func (b *Board) SquareRegion(index int, p Perspective) (image.Rectangle, error) {
	if !b.geometry.Valid() {
		return image.Rectangle{}, ErrBoardNotLocated
	}
	if err := checkIndex(index); err != nil {
		return image.Rectangle{}, err
	}
	row, col := RowCol(index, p)
	return b.geometry.cropRect(row, col, 1), nil
}

// region returns a view of rect within frame. The caller must close it.
func region(frame gocv.Mat, rect image.Rectangle) (gocv.Mat, error) {
	bounds := image.Rect(0, 0, frame.Cols(), frame.Rows())
	if rect.Empty() || !rect.In(bounds) {
		return gocv.Mat{}, fmt.Errorf("%w: %v not within %v", ErrSquareOutOfFrame, rect, bounds)
	}
	return frame.Region(rect), nil
}

// toGray converts a BGR, BGRA or already gray frame to a single channel
func toGray(src gocv.Mat, dst *gocv.Mat) {
	switch src.Channels() {
	case 1:
		src.CopyTo(dst)
	case 4:
		gocv.CvtColor(src, dst, gocv.ColorBGRAToGray)
	default:
		gocv.CvtColor(src, dst, gocv.ColorBGRToGray)
	}
}

var errEmptyFrame = errors.New("empty frame")
