// Package testboard renders synthetic board screenshots with known geometry.
package testboard

import (
	"image"
	"image/color"

	"github.com/thyrook/boardwatch/internal/vision"
	"gocv.io/x/gocv"
)

// Theme colors, close to the common brown web theme
var (
	Background = color.RGBA{30, 30, 30, 255}
	LightSq    = color.RGBA{240, 217, 181, 255}
	DarkSq     = color.RGBA{181, 136, 99, 255}
	PieceDark  = color.RGBA{40, 40, 40, 255}
	PieceLight = color.RGBA{245, 245, 245, 255}
)

// Options controls the layout of a rendered frame
type Options struct {
	SquareSize  int
	MarginX     int
	MarginY     int
	Perspective vision.Perspective
}

// DefaultOptions renders a 480px board centered in a 640x560 frame
func DefaultOptions() Options {
	return Options{
		SquareSize: 60,
		MarginX:    80,
		MarginY:    40,
	}
}

// FrameSize returns the rendered frame dimensions
func (o Options) FrameSize() image.Point {
	side := o.SquareSize * vision.BoardSize
	return image.Pt(side+2*o.MarginX, side+2*o.MarginY)
}

// BoardRect returns where the board is drawn in the frame
func (o Options) BoardRect() image.Rectangle {
	side := o.SquareSize * vision.BoardSize
	return image.Rect(o.MarginX, o.MarginY, o.MarginX+side, o.MarginY+side)
}

// Geometry returns the exact geometry of the rendered board
func (o Options) Geometry() vision.Geometry {
	return vision.GeometryFromRect(o.BoardRect())
}

// Render draws a board with the given occupancy as a BGR frame. The caller must close it.
func Render(occ [64]vision.SquareStatus, opts Options) gocv.Mat {
	size := opts.FrameSize()
	frame := gocv.NewMatWithSize(size.Y, size.X, gocv.MatTypeCV8UC3)
	gocv.Rectangle(&frame, image.Rect(0, 0, size.X, size.Y), Background, -1)

	s := opts.SquareSize
	for index := 0; index < 64; index++ {
		row, col := vision.RowCol(index, opts.Perspective)
		sq := image.Rect(
			opts.MarginX+col*s, opts.MarginY+row*s,
			opts.MarginX+(col+1)*s, opts.MarginY+(row+1)*s,
		)

		file, rank := index%8, index/8
		fill := LightSq
		if (file+rank)%2 == 0 {
			fill = DarkSq
		}
		gocv.Rectangle(&frame, sq, fill, -1)

		center := image.Pt(sq.Min.X+s/2, sq.Min.Y+s/2)
		outer := int(float64(s) * 0.24)
		switch occ[index] {
		case vision.White:
			// light body with a dark outline, like a rendered piece sprite
			gocv.Circle(&frame, center, outer, PieceDark, -1)
			gocv.Circle(&frame, center, int(float64(s)*0.19), PieceLight, -1)
		case vision.Black:
			gocv.Circle(&frame, center, outer, PieceDark, -1)
		}
	}

	return frame
}
