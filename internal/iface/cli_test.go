package iface

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/thyrook/boardwatch/internal/config"
	"github.com/thyrook/boardwatch/internal/vision"
	"go.uber.org/zap/zapcore"
)

func startingScan() [64]vision.SquareStatus {
	var occ [64]vision.SquareStatus
	for i := 0; i < 16; i++ {
		occ[i] = vision.White
		occ[63-i] = vision.Black
	}
	return occ
}

func TestCLICreation(t *testing.T) {
	cfg := config.DefaultConfig()
	cli := NewCLI(cfg, false)

	if cli == nil {
		t.Fatal("Failed to create CLI")
	}

	if cli.config != cfg {
		t.Error("Config not set correctly")
	}
}

func TestPrintMove(t *testing.T) {
	cli := NewCLI(config.DefaultConfig(), false)
	var buf bytes.Buffer
	cli.SetOutput(&buf)

	cli.PrintMove(vision.MoveEvent{
		Move:      vision.Move{From: 12, To: 28, UCI: "e2e4"},
		Ply:       1,
		Score:     1530,
		Timestamp: time.Date(2024, 1, 1, 10, 30, 0, 0, time.UTC),
	})

	out := buf.String()
	if !strings.Contains(out, "e2 to e4") {
		t.Errorf("Expected move description, got %q", out)
	}
	if !strings.Contains(out, "Notation: e2e4") {
		t.Errorf("Expected notation, got %q", out)
	}
}

func TestPrintMoveQuiet(t *testing.T) {
	cli := NewCLI(config.DefaultConfig(), true)
	var buf bytes.Buffer
	cli.SetOutput(&buf)

	cli.PrintMove(vision.MoveEvent{Move: vision.Move{UCI: "g8f6"}, Ply: 2})

	if got := buf.String(); got != "2. g8f6\n" {
		t.Errorf("Expected quiet move line, got %q", got)
	}
}

func TestQuietMode(t *testing.T) {
	cli := NewCLI(config.DefaultConfig(), true)
	var buf bytes.Buffer
	cli.SetOutput(&buf)

	cli.PrintBanner()
	cli.PrintModeHeader("watch")
	cli.PrintStatus("test", "info")
	cli.PrintBoard(startingScan(), vision.WhiteBottom)
	cli.PrintPipelineStats(vision.PipelineStats{FramesProcessed: 3})
	cli.PrintSeparator()

	if buf.Len() != 0 {
		t.Errorf("Quiet mode wrote output: %q", buf.String())
	}
}

func TestPrintPipelineStats(t *testing.T) {
	cli := NewCLI(config.DefaultConfig(), false)
	var buf bytes.Buffer
	cli.SetOutput(&buf)

	cli.PrintPipelineStats(vision.PipelineStats{FramesProcessed: 120, MovesDetected: 7})

	out := buf.String()
	if !strings.Contains(out, "Frames processed") || !strings.Contains(out, "120") {
		t.Errorf("Missing frame count in %q", out)
	}
	if !strings.Contains(out, "Moves detected") {
		t.Errorf("Missing move count in %q", out)
	}
}

func TestRenderBoard(t *testing.T) {
	white := RenderBoard(startingScan(), vision.WhiteBottom)
	lines := strings.Split(strings.TrimRight(white, "\n"), "\n")
	if len(lines) != 9 {
		t.Fatalf("Expected 9 lines, got %d:\n%s", len(lines), white)
	}
	if lines[0] != "  a b c d e f g h" {
		t.Errorf("Unexpected file header %q", lines[0])
	}
	if lines[1] != "8 ● ● ● ● ● ● ● ●" {
		t.Errorf("Unexpected top rank %q", lines[1])
	}
	if lines[8] != "1 ○ ○ ○ ○ ○ ○ ○ ○" {
		t.Errorf("Unexpected bottom rank %q", lines[8])
	}
	// a4 is light, h4 is dark
	if lines[5] != "4 □ ■ □ ■ □ ■ □ ■" {
		t.Errorf("Unexpected empty rank %q", lines[5])
	}

	black := RenderBoard(startingScan(), vision.BlackBottom)
	lines = strings.Split(strings.TrimRight(black, "\n"), "\n")
	if lines[0] != "  h g f e d c b a" {
		t.Errorf("Unexpected flipped header %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "1 ○") || !strings.HasPrefix(lines[8], "8 ●") {
		t.Errorf("Board not flipped:\n%s", black)
	}
}

func TestDescribeMove(t *testing.T) {
	tests := []struct {
		move     vision.Move
		expected string
	}{
		{vision.Move{UCI: "e2e4"}, "e2 to e4"},
		{vision.Move{From: 6, To: 21}, "g1 to f3"},
		{vision.Move{UCI: "e7e8q"}, "e7 to e8, promoting to queen"},
		{vision.Move{UCI: "a2a1n"}, "a2 to a1, promoting to knight"},
	}

	for _, tt := range tests {
		if got := DescribeMove(tt.move); got != tt.expected {
			t.Errorf("DescribeMove(%v) = %q, want %q", tt.move, got, tt.expected)
		}
	}
}

func TestParseLevel(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "warning", "error", ""} {
		if _, err := ParseLevel(level); err != nil {
			t.Errorf("ParseLevel(%q) failed: %v", level, err)
		}
	}
	if _, err := ParseLevel("verbose"); err == nil {
		t.Error("Expected error for unknown level")
	}
}

func TestPrintBoardCheck(t *testing.T) {
	cli := NewCLI(config.DefaultConfig(), false)
	var buf bytes.Buffer
	cli.SetOutput(&buf)

	cli.PrintBoardCheck(startingScan(), vision.WhiteBottom, nil)
	if strings.Contains(buf.String(), "Warning") {
		t.Errorf("Unexpected warning for a matching board: %q", buf.String())
	}
	if !strings.Contains(buf.String(), "1 ○ ○ ○ ○ ○ ○ ○ ○") {
		t.Errorf("Board not printed: %q", buf.String())
	}

	buf.Reset()
	cli.PrintBoardCheck(startingScan(), vision.WhiteBottom, []int{12, 28})
	if !strings.Contains(buf.String(), "disagrees with the position on e2, e4") {
		t.Errorf("Expected mismatch warning, got %q", buf.String())
	}
}

func TestPrintProgressBar(t *testing.T) {
	cli := NewCLI(config.DefaultConfig(), false)
	var buf bytes.Buffer
	cli.SetOutput(&buf)

	cli.PrintProgressBar(2, 4, "Replay")
	out := buf.String()
	if !strings.Contains(out, "Replay") || !strings.Contains(out, "2/4 (50.0%)") {
		t.Errorf("Unexpected progress line %q", out)
	}
	if strings.HasSuffix(out, "\n") {
		t.Error("Progress line should stay open until complete")
	}

	buf.Reset()
	cli.PrintProgressBar(4, 4, "Replay")
	if !strings.HasSuffix(buf.String(), "\n") {
		t.Errorf("Completed progress should end the line, got %q", buf.String())
	}

	buf.Reset()
	cli.PrintProgressBar(1, 0, "Replay")
	if buf.Len() != 0 {
		t.Errorf("Unknown total should print nothing, got %q", buf.String())
	}
}

func TestNewLoggerFileOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "watch.log")
	logger, err := NewLogger(path, "info", false)
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	logger.Debug("hidden")
	logger.Info("board located")
	logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Log file not written: %v", err)
	}
	if !strings.Contains(string(data), "board located") {
		t.Errorf("Expected info line in log file, got %q", data)
	}
	if strings.Contains(string(data), "hidden") {
		t.Errorf("Debug line written at info level: %q", data)
	}
}

func TestNewLoggerNoSinks(t *testing.T) {
	logger, err := NewLogger("", "debug", false)
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	if logger.Core().Enabled(zapcore.InfoLevel) {
		t.Error("Logger without sinks should discard everything")
	}
}
