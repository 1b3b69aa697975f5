package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gocv.io/x/gocv"

	"github.com/thyrook/boardwatch/internal/game"
	"github.com/thyrook/boardwatch/internal/testboard"
	"github.com/thyrook/boardwatch/internal/vision"
)

func main() {
	fen := flag.String("fen", "", "Position to render (default: standard start)")
	moves := flag.String("moves", "", "Space-separated UCI moves; one extra image is written after each")
	side := flag.String("perspective", "white", "Side at the bottom: white or black")
	square := flag.Int("square", 60, "Square size in pixels")
	outDir := flag.String("out", "testdata", "Output directory")
	flag.Parse()

	p, _, err := vision.ParsePerspective(*side)
	if err != nil {
		fail(err)
	}

	tracker := game.NewTracker()
	if *fen != "" {
		if tracker, err = game.FromFEN(*fen); err != nil {
			fail(err)
		}
	}

	opts := testboard.DefaultOptions()
	opts.SquareSize = *square
	opts.MarginX = *square * 4 / 3
	opts.MarginY = *square * 2 / 3
	opts.Perspective = p

	if err := os.MkdirAll(*outDir, 0755); err != nil {
		fail(err)
	}

	written := []string{write(*outDir, 0, tracker, opts)}
	for i, uci := range strings.Fields(*moves) {
		if err := tracker.ApplyUCI(uci); err != nil {
			fail(err)
		}
		written = append(written, write(*outDir, i+1, tracker, opts))
	}

	fmt.Printf("Board drawn at %v (%dpx squares, %s at the bottom)\n", opts.BoardRect(), opts.SquareSize, p)
	for _, path := range written {
		fmt.Printf("✓ %s\n", path)
	}
	fmt.Printf("Final position: %s\n", tracker.FEN())
}

func write(dir string, ply int, tracker *game.Tracker, opts testboard.Options) string {
	img := testboard.Render(tracker.Occupancy(), opts)
	defer img.Close()

	path := filepath.Join(dir, fmt.Sprintf("board_%03d.png", ply))
	if !gocv.IMWrite(path, img) {
		fail(fmt.Errorf("failed to write %s", path))
	}
	return path
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
