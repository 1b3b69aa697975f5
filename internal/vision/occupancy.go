package vision

import (
	"fmt"

	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

// SquareStatus is the observed content of a square
type SquareStatus int

const (
	Empty SquareStatus = iota
	White
	Black
)

// String returns "empty", "white" or "black"
func (s SquareStatus) String() string {
	switch s {
	case White:
		return "white"
	case Black:
		return "black"
	default:
		return "empty"
	}
}

// SquareStats are the grayscale statistics of a square's sample region
type SquareStats struct {
	Mean   float64
	StdDev float64
}

// classifyStats applies the texture and brightness heuristic.
// A bare square is nearly uniform; a piece adds outlines and shading.
func classifyStats(st SquareStats, th Thresholds) SquareStatus {
	if st.StdDev < th.EmptyStdDev {
		return Empty
	}
	if st.Mean > th.WhiteBrightness {
		return White
	}
	return Black
}

// Classify samples the center of a square and returns its status with the raw statistics
func (b *Board) Classify(frame gocv.Mat, index int, p Perspective) (SquareStatus, SquareStats, error) {
	if !b.geometry.Valid() {
		return Empty, SquareStats{}, ErrBoardNotLocated
	}
	if err := checkIndex(index); err != nil {
		return Empty, SquareStats{}, err
	}
	if frame.Empty() {
		return Empty, SquareStats{}, errEmptyFrame
	}

	row, col := RowCol(index, p)
	roi, err := region(frame, b.geometry.cropRect(row, col, b.thresholds.OccupancyCrop))
	if err != nil {
		return Empty, SquareStats{}, fmt.Errorf("square %s: %w", SquareName(index), err)
	}
	defer roi.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	toGray(roi, &gray)

	stats := meanStdDev(gray)
	return classifyStats(stats, b.thresholds), stats, nil
}

// SquareStatus returns whether a square is empty or holds a white or black piece
func (b *Board) SquareStatus(frame gocv.Mat, index int, p Perspective) (SquareStatus, error) {
	status, _, err := b.Classify(frame, index, p)
	return status, err
}

// IsOccupiedBy reports whether a square holds a piece of the given color
func (b *Board) IsOccupiedBy(frame gocv.Mat, index int, p Perspective, color SquareStatus) (bool, error) {
	status, stats, err := b.Classify(frame, index, p)
	if err != nil {
		return false, err
	}
	b.logger.Debug("Square occupancy",
		zap.String("square", SquareName(index)),
		zap.Stringer("status", status),
		zap.Float64("brightness", stats.Mean),
		zap.Float64("std_dev", stats.StdDev),
	)
	return status != Empty && status == color, nil
}

// Scan classifies every square, indexed by square
func (b *Board) Scan(frame gocv.Mat, p Perspective) ([64]SquareStatus, error) {
	var statuses [64]SquareStatus
	for index := 0; index < 64; index++ {
		status, err := b.SquareStatus(frame, index, p)
		if err != nil {
			return statuses, err
		}
		statuses[index] = status
	}
	return statuses, nil
}

// DetectPerspective decides which side sits at the bottom by counting bright and
// dark pixels on the king and queen squares of the bottom row.
func (b *Board) DetectPerspective(frame gocv.Mat) (Perspective, error) {
	if !b.geometry.Valid() {
		return WhiteBottom, ErrBoardNotLocated
	}
	if frame.Empty() {
		return WhiteBottom, errEmptyFrame
	}

	bright, dark := 0, 0
	for _, col := range []int{3, 4} {
		roi, err := region(frame, b.geometry.cropRect(BoardSize-1, col, b.thresholds.SideCrop))
		if err != nil {
			return WhiteBottom, err
		}

		gray := gocv.NewMat()
		toGray(roi, &gray)
		roi.Close()

		mask := gocv.NewMat()
		gocv.Threshold(gray, &mask, float32(b.thresholds.SideBright), 255, gocv.ThresholdBinary)
		bright += gocv.CountNonZero(mask)
		// BinaryInv keeps pixels <= thresh, so step below the dark bound
		gocv.Threshold(gray, &mask, float32(b.thresholds.SideDark-1), 255, gocv.ThresholdBinaryInv)
		dark += gocv.CountNonZero(mask)

		mask.Close()
		gray.Close()
	}

	p := BlackBottom
	if bright > dark {
		p = WhiteBottom
	}
	b.logger.Info("Side detected",
		zap.Int("bright_pixels", bright),
		zap.Int("dark_pixels", dark),
		zap.Stringer("perspective", p),
	)
	return p, nil
}

// ValidateOccupancy checks that a scan looks like a chess position
func ValidateOccupancy(statuses [64]SquareStatus) error {
	white, black := 0, 0
	for _, s := range statuses {
		switch s {
		case White:
			white++
		case Black:
			black++
		}
	}

	total := white + black
	if total < 2 {
		return fmt.Errorf("too few pieces detected: %d", total)
	}
	if total > 32 {
		return fmt.Errorf("too many pieces detected: %d", total)
	}
	if white > 16 || black > 16 {
		return fmt.Errorf("too many pieces of one color: white=%d, black=%d", white, black)
	}
	return nil
}

func meanStdDev(gray gocv.Mat) SquareStats {
	mean := gocv.NewMat()
	defer mean.Close()
	stdDev := gocv.NewMat()
	defer stdDev.Close()

	gocv.MeanStdDev(gray, &mean, &stdDev)
	return SquareStats{
		Mean:   mean.GetDoubleAt(0, 0),
		StdDev: stdDev.GetDoubleAt(0, 0),
	}
}
