package vision

import (
	"fmt"

	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

// Move is a legal move expressed as square indices. UCI is optional and
// only used to identify the move for the caller.
type Move struct {
	From int
	To   int
	UCI  string
}

// String returns the UCI form of the move
func (m Move) String() string {
	if m.UCI != "" {
		return m.UCI
	}
	return SquareName(m.From) + SquareName(m.To)
}

// DiffReport holds per-square change scores between two frames, indexed by square
type DiffReport struct {
	Scores    [64]float64
	MaxScores [64]float64
	Changed   []int
}

// ChangedNames returns the changed squares in algebraic notation
func (r DiffReport) ChangedNames() []string {
	names := make([]string, len(r.Changed))
	for i, c := range r.Changed {
		names[i] = SquareName(c)
	}
	return names
}

// Detection is the result of matching a frame difference against legal moves
type Detection struct {
	Move       Move
	Score      float64
	Candidates int
	Report     DiffReport
}

// ChangeScores thresholds the gray difference of two frames and scores each square
func (b *Board) ChangeScores(before, after gocv.Mat, p Perspective) (DiffReport, error) {
	var report DiffReport

	if !b.geometry.Valid() {
		return report, ErrBoardNotLocated
	}
	if before.Empty() || after.Empty() {
		return report, errEmptyFrame
	}
	if before.Rows() != after.Rows() || before.Cols() != after.Cols() {
		return report, fmt.Errorf("%w: frame sizes differ: %dx%d vs %dx%d",
			ErrSquareOutOfFrame, before.Cols(), before.Rows(), after.Cols(), after.Rows())
	}

	grayBefore := gocv.NewMat()
	defer grayBefore.Close()
	grayAfter := gocv.NewMat()
	defer grayAfter.Close()
	toGray(before, &grayBefore)
	toGray(after, &grayAfter)

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(grayBefore, grayAfter, &diff)

	thresh := gocv.NewMat()
	defer thresh.Close()
	gocv.Threshold(diff, &thresh, float32(b.thresholds.DiffPixelThreshold), 255, gocv.ThresholdBinary)

	for index := 0; index < 64; index++ {
		row, col := RowCol(index, p)
		rect := b.geometry.cropRect(row, col, b.thresholds.DiffCrop)
		roi, err := region(thresh, rect)
		if err != nil {
			return report, fmt.Errorf("square %s: %w", SquareName(index), err)
		}
		score := float64(gocv.CountNonZero(roi)) * 255
		roi.Close()

		maxScore := float64(rect.Dx()*rect.Dy()) * 255
		report.Scores[index] = score
		report.MaxScores[index] = maxScore
		if score > maxScore*b.thresholds.ChangedFraction {
			report.Changed = append(report.Changed, index)
		}
	}

	return report, nil
}

// DetectMove returns the legal move that best explains the change between two frames.
// It returns false when nothing conclusive changed; the caller should retry.
func (b *Board) DetectMove(before, after gocv.Mat, legal []Move, p Perspective) (Move, bool, error) {
	det, ok, err := b.DetectMoveWithScores(before, after, legal, p)
	return det.Move, ok, err
}

// DetectMoveWithScores is DetectMove with the diff report and winning score attached.
// Ambiguous diffs are settled by the highest combined score of the two squares;
// exact ties keep the earliest move in legal order.
func (b *Board) DetectMoveWithScores(before, after gocv.Mat, legal []Move, p Perspective) (Detection, bool, error) {
	report, err := b.ChangeScores(before, after, p)
	if err != nil {
		return Detection{}, false, err
	}
	det := Detection{Report: report}

	if len(report.Changed) < 2 {
		return det, false, nil
	}

	changed := make(map[int]bool, len(report.Changed))
	for _, index := range report.Changed {
		changed[index] = true
	}

	var candidates []Move
	for _, m := range legal {
		if !validIndex(m.From) || !validIndex(m.To) {
			return det, false, fmt.Errorf("legal move %v has square out of range", m)
		}
		if changed[m.From] && changed[m.To] {
			candidates = append(candidates, m)
		}
	}
	det.Candidates = len(candidates)

	b.logger.Debug("Diff evaluated",
		zap.Strings("changed", report.ChangedNames()),
		zap.Int("candidates", len(candidates)),
	)

	if len(candidates) == 0 {
		return det, false, nil
	}

	best := candidates[0]
	bestScore := report.Scores[best.From] + report.Scores[best.To]
	for _, m := range candidates[1:] {
		score := report.Scores[m.From] + report.Scores[m.To]
		if score > bestScore {
			best = m
			bestScore = score
		}
	}

	det.Move = best
	det.Score = bestScore
	return det, true, nil
}
