package vision

import (
	"image"
	"math"

	"gocv.io/x/gocv"
)

// LocateBoard looks for the largest near-square four-sided contour in a frame.
// It returns false when no contour qualifies; the caller should retry on a new frame.
func LocateBoard(frame gocv.Mat, th Thresholds) (image.Rectangle, bool, error) {
	if frame.Empty() {
		return image.Rectangle{}, false, errEmptyFrame
	}

	gray := gocv.NewMat()
	defer gray.Close()
	toGray(frame, &gray)

	blurred := gocv.NewMat()
	defer blurred.Close()
	k := th.BlurKernel
	gocv.GaussianBlur(gray, &blurred, image.Pt(k, k), 0, 0, gocv.BorderDefault)

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(blurred, &edges, th.CannyLow, th.CannyHigh)

	contours := gocv.FindContours(edges, gocv.RetrievalTree, gocv.ChainApproxSimple)
	defer contours.Close()

	// Board side is assumed to be at least a fraction of the frame height
	side := int(float64(frame.Rows()) * th.MinBoardFraction)
	minArea := float64(side * side)

	var best image.Rectangle
	bestArea := 0.0
	found := false

	for i := 0; i < contours.Size(); i++ {
		contour := contours.At(i)

		area := gocv.ContourArea(contour)
		if area <= minArea {
			continue
		}

		perimeter := gocv.ArcLength(contour, true)
		approx := gocv.ApproxPolyDP(contour, th.ApproxEpsilon*perimeter, true)
		corners := approx.Size()
		rect := gocv.BoundingRect(approx)
		approx.Close()

		if corners != 4 || rect.Dy() == 0 {
			continue
		}

		aspect := float64(rect.Dx()) / float64(rect.Dy())
		if math.Abs(aspect-1) > th.AspectTolerance {
			continue
		}

		// The board is the largest square region on screen
		if area > bestArea {
			best = rect
			bestArea = area
			found = true
		}
	}

	return best, found, nil
}
