package vision

import (
	"fmt"
	"image"
	"sync"

	"github.com/kbinani/screenshot"
	"gocv.io/x/gocv"
)

// Capturer grabs a region of a display as BGR frames
type Capturer struct {
	region  image.Rectangle
	display int
	mu      sync.Mutex
}

// NewCapturer creates a capturer for a screen region.
// An empty region captures the whole display.
func NewCapturer(region image.Rectangle, display int) (*Capturer, error) {
	if region.Empty() {
		n := screenshot.NumActiveDisplays()
		if display < 0 || display >= n {
			return nil, fmt.Errorf("display %d not available (%d active)", display, n)
		}
		region = screenshot.GetDisplayBounds(display)
	}
	return &Capturer{
		region:  region,
		display: display,
	}, nil
}

// Region returns the captured screen rectangle
func (c *Capturer) Region() image.Rectangle {
	return c.region
}

// Origin returns the screen position of frame pixel (0,0)
func (c *Capturer) Origin() image.Point {
	return c.region.Min
}

// ToScreen converts a frame coordinate to a screen coordinate
func (c *Capturer) ToScreen(pt image.Point) image.Point {
	return pt.Add(c.region.Min)
}

// CaptureFrame captures the current screen region. The caller must close the frame.
func (c *Capturer) CaptureFrame() (gocv.Mat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	img, err := screenshot.CaptureRect(c.region)
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("failed to capture screen: %w", err)
	}

	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("failed to convert image to mat: %w", err)
	}

	return mat, nil
}

// SaveScreenshot captures the region and writes it to path
func (c *Capturer) SaveScreenshot(path string) error {
	frame, err := c.CaptureFrame()
	if err != nil {
		return err
	}
	defer frame.Close()

	if !gocv.IMWrite(path, frame) {
		return fmt.Errorf("failed to write screenshot: %s", path)
	}
	return nil
}

// MeanDifference returns the mean absolute gray difference between two frames
func MeanDifference(a, b gocv.Mat) (float64, error) {
	if a.Empty() || b.Empty() {
		return 0, errEmptyFrame
	}
	if a.Rows() != b.Rows() || a.Cols() != b.Cols() {
		return 0, fmt.Errorf("%w: frame sizes differ: %dx%d vs %dx%d",
			ErrSquareOutOfFrame, a.Cols(), a.Rows(), b.Cols(), b.Rows())
	}

	gray1 := gocv.NewMat()
	defer gray1.Close()
	gray2 := gocv.NewMat()
	defer gray2.Close()
	toGray(a, &gray1)
	toGray(b, &gray2)

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(gray1, gray2, &diff)

	return diff.Mean().Val1, nil
}
