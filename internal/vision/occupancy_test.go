package vision

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"gocv.io/x/gocv"
)

func TestClassifyStats(t *testing.T) {
	th := DefaultThresholds()

	tests := []struct {
		name  string
		stats SquareStats
		want  SquareStatus
	}{
		{"Flat light square", SquareStats{Mean: 220, StdDev: 0}, Empty},
		{"Just under texture threshold", SquareStats{Mean: 200, StdDev: 24.9}, Empty},
		{"Bright piece", SquareStats{Mean: 180, StdDev: 70}, White},
		{"At brightness threshold", SquareStats{Mean: 120, StdDev: 40}, Black},
		{"Just over brightness threshold", SquareStats{Mean: 120.5, StdDev: 40}, White},
		{"Dark piece", SquareStats{Mean: 70, StdDev: 45}, Black},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyStats(tt.stats, th); got != tt.want {
				t.Errorf("classifyStats(%+v) = %v, want %v", tt.stats, got, tt.want)
			}
		})
	}
}

// squareFrame draws one 100px square at (0,0) with a striped pattern so the
// sample region has a known mean and spread
func squareFrame(base, stripe uint8) gocv.Mat {
	frame := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(float64(base), float64(base), float64(base), 0), 800, 800, gocv.MatTypeCV8UC3)
	if stripe != base {
		c := color.RGBA{stripe, stripe, stripe, 255}
		for x := 0; x < 100; x += 10 {
			gocv.Rectangle(&frame, image.Rect(x, 0, x+5, 800), c, -1)
		}
	}
	return frame
}

func TestSquareStatus(t *testing.T) {
	tests := []struct {
		name   string
		base   uint8
		stripe uint8
		want   SquareStatus
	}{
		{"Uniform", 180, 180, Empty},
		{"Light pattern", 250, 60, White},
		{"Dark pattern", 20, 160, Black},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame := squareFrame(tt.base, tt.stripe)
			defer frame.Close()

			board := NewBoard(DefaultThresholds(), nil)
			if err := board.SetGeometry(Geometry{SquareSize: 100}); err != nil {
				t.Fatal(err)
			}

			// a8 is the top-left square with white at the bottom
			status, stats, err := board.Classify(frame, 56, WhiteBottom)
			if err != nil {
				t.Fatalf("Classify failed: %v", err)
			}
			if status != tt.want {
				t.Errorf("Expected %v, got %v (%+v)", tt.want, status, stats)
			}

			occupied, err := board.IsOccupiedBy(frame, 56, WhiteBottom, tt.want)
			if err != nil {
				t.Fatal(err)
			}
			if occupied != (tt.want != Empty) {
				t.Errorf("IsOccupiedBy(%v) = %v", tt.want, occupied)
			}
		})
	}
}

func TestSquareOutOfFrame(t *testing.T) {
	frame := gocv.NewMatWithSize(200, 200, gocv.MatTypeCV8UC3)
	defer frame.Close()

	board := NewBoard(DefaultThresholds(), nil)
	if err := board.SetGeometry(Geometry{TopLeft: image.Pt(0, 0), SquareSize: 50}); err != nil {
		t.Fatal(err)
	}

	// a1 is at the bottom of a 400px board, outside the 200px frame
	if _, err := board.SquareStatus(frame, 0, WhiteBottom); !errors.Is(err, ErrSquareOutOfFrame) {
		t.Errorf("Expected ErrSquareOutOfFrame, got %v", err)
	}
	// a8 fits
	if _, err := board.SquareStatus(frame, 56, WhiteBottom); err != nil {
		t.Errorf("Unexpected error for a8: %v", err)
	}
}

func TestValidateOccupancy(t *testing.T) {
	var start [64]SquareStatus
	for i := 0; i < 16; i++ {
		start[i] = White
		start[63-i] = Black
	}
	if err := ValidateOccupancy(start); err != nil {
		t.Errorf("Starting position rejected: %v", err)
	}

	var lone [64]SquareStatus
	lone[4] = White
	if err := ValidateOccupancy(lone); err == nil {
		t.Error("Expected error for a single piece")
	}

	var crowded [64]SquareStatus
	for i := 0; i < 20; i++ {
		crowded[i] = White
	}
	if err := ValidateOccupancy(crowded); err == nil {
		t.Error("Expected error for 20 white pieces")
	}
}

func TestStatusString(t *testing.T) {
	if Empty.String() != "empty" || White.String() != "white" || Black.String() != "black" {
		t.Error("Unexpected status names")
	}
	if WhiteBottom.String() != "white" || BlackBottom.String() != "black" {
		t.Error("Unexpected perspective names")
	}
}
