package vision

import (
	"fmt"
	"image"
	"strings"
)

// Thresholds holds every heuristic constant used by the vision routines.
// They depend on the board theme, so callers and tests may override any of them.
type Thresholds struct {
	// Board location
	MinBoardFraction float64 `json:"min_board_fraction" yaml:"min_board_fraction"` // minimum board side as a fraction of frame height
	AspectTolerance  float64 `json:"aspect_tolerance" yaml:"aspect_tolerance"`     // allowed deviation of w/h from 1
	ApproxEpsilon    float64 `json:"approx_epsilon" yaml:"approx_epsilon"`         // polygon approximation, fraction of arc length
	BlurKernel       int     `json:"blur_kernel" yaml:"blur_kernel"`
	CannyLow         float32 `json:"canny_low" yaml:"canny_low"`
	CannyHigh        float32 `json:"canny_high" yaml:"canny_high"`

	// Occupancy
	OccupancyCrop   float64 `json:"occupancy_crop" yaml:"occupancy_crop"`     // central fraction of a square that is sampled
	EmptyStdDev     float64 `json:"empty_std_dev" yaml:"empty_std_dev"`       // below this the square is bare
	WhiteBrightness float64 `json:"white_brightness" yaml:"white_brightness"` // mean above this is a white piece

	// Move detection
	DiffCrop           float64 `json:"diff_crop" yaml:"diff_crop"`
	DiffPixelThreshold float64 `json:"diff_pixel_threshold" yaml:"diff_pixel_threshold"` // per-pixel gray difference that counts as change
	ChangedFraction    float64 `json:"changed_fraction" yaml:"changed_fraction"`         // fraction of the maximum region score

	// Side detection
	SideCrop   float64 `json:"side_crop" yaml:"side_crop"`
	SideBright float64 `json:"side_bright" yaml:"side_bright"`
	SideDark   float64 `json:"side_dark" yaml:"side_dark"`
}

// DefaultThresholds returns values tuned for the common green and brown web themes
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinBoardFraction: 0.25,
		AspectTolerance:  0.05,
		ApproxEpsilon:    0.02,
		BlurKernel:       5,
		CannyLow:         50,
		CannyHigh:        150,

		OccupancyCrop:   0.5,
		EmptyStdDev:     25,
		WhiteBrightness: 120,

		DiffCrop:           0.6,
		DiffPixelThreshold: 30,
		ChangedFraction:    0.05,

		SideCrop:   0.4,
		SideBright: 200,
		SideDark:   80,
	}
}

// Validate checks that thresholds are usable
func (t Thresholds) Validate() error {
	if t.MinBoardFraction <= 0 || t.MinBoardFraction > 1 {
		return fmt.Errorf("invalid min board fraction: %f (must be 0-1)", t.MinBoardFraction)
	}
	if t.AspectTolerance < 0 || t.AspectTolerance >= 1 {
		return fmt.Errorf("invalid aspect tolerance: %f", t.AspectTolerance)
	}
	if t.ApproxEpsilon <= 0 || t.ApproxEpsilon >= 1 {
		return fmt.Errorf("invalid approximation epsilon: %f", t.ApproxEpsilon)
	}
	if t.BlurKernel < 1 || t.BlurKernel%2 == 0 {
		return fmt.Errorf("invalid blur kernel: %d (must be odd and positive)", t.BlurKernel)
	}
	if t.CannyLow < 0 || t.CannyHigh <= t.CannyLow {
		return fmt.Errorf("invalid canny thresholds: %.0f/%.0f", t.CannyLow, t.CannyHigh)
	}
	for name, crop := range map[string]float64{
		"occupancy": t.OccupancyCrop,
		"diff":      t.DiffCrop,
		"side":      t.SideCrop,
	} {
		if crop <= 0 || crop > 1 {
			return fmt.Errorf("invalid %s crop: %f (must be 0-1)", name, crop)
		}
	}
	if t.EmptyStdDev < 0 || t.WhiteBrightness < 0 || t.WhiteBrightness > 255 {
		return fmt.Errorf("invalid occupancy thresholds: stddev=%f brightness=%f", t.EmptyStdDev, t.WhiteBrightness)
	}
	if t.DiffPixelThreshold < 0 || t.DiffPixelThreshold > 255 {
		return fmt.Errorf("invalid diff pixel threshold: %f (must be 0-255)", t.DiffPixelThreshold)
	}
	if t.ChangedFraction <= 0 || t.ChangedFraction >= 1 {
		return fmt.Errorf("invalid changed fraction: %f", t.ChangedFraction)
	}
	if t.SideDark >= t.SideBright {
		return fmt.Errorf("invalid side thresholds: dark=%f bright=%f", t.SideDark, t.SideBright)
	}
	return nil
}

// Config holds vision system configuration
type Config struct {
	// Screen capture settings. A zero-sized region captures the whole display.
	CaptureRegion CaptureRegion `json:"capture_region" yaml:"capture_region"`
	Display       int           `json:"display" yaml:"display"`

	// "auto", "white" or "black"
	Perspective string `json:"perspective" yaml:"perspective"`

	// Change detection settings
	DiffThreshold   float64 `json:"diff_threshold" yaml:"diff_threshold"` // mean gray difference below which a frame is ignored
	FPS             int     `json:"fps" yaml:"fps"`
	MaxMissedFrames int     `json:"max_missed_frames" yaml:"max_missed_frames"` // changed frames without a move before relocating

	Thresholds Thresholds `json:"thresholds" yaml:"thresholds"`
}

// CaptureRegion defines the screen area to capture
type CaptureRegion struct {
	X      int `json:"x" yaml:"x"`
	Y      int `json:"y" yaml:"y"`
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// ToRectangle converts CaptureRegion to image.Rectangle
func (cr CaptureRegion) ToRectangle() image.Rectangle {
	return image.Rect(cr.X, cr.Y, cr.X+cr.Width, cr.Y+cr.Height)
}

// IsFullScreen reports whether the region is unset
func (cr CaptureRegion) IsFullScreen() bool {
	return cr.Width == 0 && cr.Height == 0
}

// DefaultConfig returns default vision configuration
func DefaultConfig() *Config {
	return &Config{
		Perspective:     "auto",
		DiffThreshold:   0,
		FPS:             4,
		MaxMissedFrames: 10,
		Thresholds:      DefaultThresholds(),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if !c.CaptureRegion.IsFullScreen() && (c.CaptureRegion.Width <= 0 || c.CaptureRegion.Height <= 0) {
		return fmt.Errorf("invalid capture region dimensions")
	}

	if c.Display < 0 {
		return fmt.Errorf("invalid display index: %d", c.Display)
	}

	if _, _, err := ParsePerspective(c.Perspective); err != nil {
		return err
	}

	if c.DiffThreshold < 0 || c.DiffThreshold > 255 {
		return fmt.Errorf("invalid diff threshold: %f (must be 0-255)", c.DiffThreshold)
	}

	if c.FPS < 1 || c.FPS > 60 {
		return fmt.Errorf("invalid FPS: %d (must be 1-60)", c.FPS)
	}

	if c.MaxMissedFrames < 1 {
		return fmt.Errorf("invalid max missed frames: %d", c.MaxMissedFrames)
	}

	if err := c.Thresholds.Validate(); err != nil {
		return fmt.Errorf("invalid thresholds: %w", err)
	}

	return nil
}

// String returns a string representation of the config
func (c *Config) String() string {
	region := "full display"
	if !c.CaptureRegion.IsFullScreen() {
		region = fmt.Sprintf("(%d,%d) %dx%d",
			c.CaptureRegion.X, c.CaptureRegion.Y,
			c.CaptureRegion.Width, c.CaptureRegion.Height)
	}
	return fmt.Sprintf(
		"Vision Config:\n"+
			"  Capture Region: %s (display %d)\n"+
			"  Perspective: %s\n"+
			"  FPS: %d\n"+
			"  Diff Threshold: %.1f\n"+
			"  Max Missed Frames: %d\n"+
			"  Empty StdDev: %.1f\n"+
			"  White Brightness: %.1f\n",
		region, c.Display,
		strings.ToLower(c.Perspective),
		c.FPS,
		c.DiffThreshold,
		c.MaxMissedFrames,
		c.Thresholds.EmptyStdDev,
		c.Thresholds.WhiteBrightness,
	)
}
