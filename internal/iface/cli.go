package iface

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/thyrook/boardwatch/internal/config"
	"github.com/thyrook/boardwatch/internal/vision"
)

// CLI provides command-line interface utilities
type CLI struct {
	config *config.Config
	quiet  bool
	out    io.Writer
}

// NewCLI creates a new CLI interface writing to stdout
func NewCLI(cfg *config.Config, quiet bool) *CLI {
	return &CLI{
		config: cfg,
		quiet:  quiet,
		out:    os.Stdout,
	}
}

// SetOutput redirects everything except errors
func (c *CLI) SetOutput(w io.Writer) {
	c.out = w
}

// PrintBanner displays the application banner
func (c *CLI) PrintBanner() {
	if c.quiet {
		return
	}

	title := "boardwatch"
	if c.config != nil {
		title = fmt.Sprintf("%s %s", c.config.AppName, c.config.Version)
	}
	c.PrintBox(title, []string{
		"Reads chess moves off a screen, a recording or screenshots",
	})
	fmt.Fprintln(c.out)
}

// PrintModeHeader displays the mode-specific header
func (c *CLI) PrintModeHeader(mode string) {
	if c.quiet {
		return
	}

	var header string
	switch mode {
	case "watch":
		header = `
WATCH MODE
━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━
Watching the board for moves. Press Ctrl+C to stop.
`
	case "scan":
		header = `
SCAN MODE
━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━
Locating the board and classifying every square.
`
	case "detect":
		header = `
DETECT MODE
━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━
Comparing two frames against the legal moves of a position.
`
	default:
		header = fmt.Sprintf("\n%s MODE\n", strings.ToUpper(mode))
	}

	fmt.Fprintln(c.out, header)
}

// PrintMove prints a detected move
func (c *CLI) PrintMove(event vision.MoveEvent) {
	notation := event.Move.String()

	if c.quiet {
		fmt.Fprintf(c.out, "%d. %s\n", event.Ply, notation)
		return
	}

	fmt.Fprintf(c.out, "%s %s\n", c.Colorize(fmt.Sprintf("%3d.", event.Ply), ColorBold), DescribeMove(event.Move))
	fmt.Fprintf(c.out, "     Notation: %s | Score: %.0f | %s\n", notation, event.Score, event.Timestamp.Format("15:04:05"))
}

// PrintBoard prints a scan of the board
func (c *CLI) PrintBoard(statuses [64]vision.SquareStatus, p vision.Perspective) {
	if c.quiet {
		return
	}
	fmt.Fprintln(c.out)
	fmt.Fprint(c.out, RenderBoard(statuses, p))
	fmt.Fprintln(c.out)
}

// PrintBoardCheck prints the board as seen after a move and flags squares that
// disagree with the tracked position
func (c *CLI) PrintBoardCheck(observed [64]vision.SquareStatus, p vision.Perspective, mismatches []int) {
	c.PrintBoard(observed, p)
	if len(mismatches) == 0 {
		return
	}
	names := make([]string, len(mismatches))
	for i, index := range mismatches {
		names[i] = vision.SquareName(index)
	}
	c.PrintWarning("Screen disagrees with the position on " + strings.Join(names, ", "))
}

// PrintStatus prints a status message
func (c *CLI) PrintStatus(message string, level string) {
	if c.quiet && level != "error" {
		return
	}

	var prefix string
	switch level {
	case "info":
		prefix = "ℹ"
	case "success":
		prefix = "✓"
	case "warning":
		prefix = "⚠"
	case "error":
		prefix = "✗"
	default:
		prefix = "•"
	}

	fmt.Fprintf(c.out, "%s %s\n", prefix, message)
}

// PrintError prints an error message
func (c *CLI) PrintError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
}

// PrintWarning prints a warning message
func (c *CLI) PrintWarning(message string) {
	if !c.quiet {
		fmt.Fprintf(c.out, "⚠  Warning: %s\n", message)
	}
}

// Color codes for terminal output
const (
	ColorReset  = "\033[0m"
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorBlue   = "\033[34m"
	ColorCyan   = "\033[36m"
	ColorBold   = "\033[1m"
)

// Colorize applies color to text if terminal supports it
func (c *CLI) Colorize(text string, color string) string {
	if c.quiet || os.Getenv("NO_COLOR") != "" || c.out != os.Stdout {
		return text
	}
	return color + text + ColorReset
}

// PrintSuccess prints a success message in green
func (c *CLI) PrintSuccess(message string) {
	if !c.quiet {
		fmt.Fprintln(c.out, c.Colorize("✓ "+message, ColorGreen))
	}
}

// PrintInfo prints an info message in blue
func (c *CLI) PrintInfo(message string) {
	if !c.quiet {
		fmt.Fprintln(c.out, c.Colorize("ℹ "+message, ColorBlue))
	}
}

// PrintProgressBar displays a progress bar
func (c *CLI) PrintProgressBar(current, total int, label string) {
	if c.quiet || total == 0 {
		return
	}

	width := 40
	percentage := float64(current) / float64(total)
	if percentage > 1 {
		percentage = 1
	}
	filled := int(percentage * float64(width))

	bar := "[" + strings.Repeat("█", filled) + strings.Repeat("░", width-filled) + "]"
	fmt.Fprintf(c.out, "\r%s %s %d/%d (%.1f%%) ", label, bar, current, total, percentage*100)
	if current >= total {
		fmt.Fprintln(c.out)
	}
}

// PrintTable prints data in a formatted table
func (c *CLI) PrintTable(headers []string, rows [][]string) {
	if c.quiet {
		return
	}

	colWidths := make([]int, len(headers))
	for i, h := range headers {
		colWidths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(colWidths) && len(cell) > colWidths[i] {
				colWidths[i] = len(cell)
			}
		}
	}

	fmt.Fprintln(c.out)
	for i, h := range headers {
		fmt.Fprintf(c.out, "%-*s  ", colWidths[i], h)
	}
	fmt.Fprintln(c.out)

	for _, w := range colWidths {
		fmt.Fprint(c.out, strings.Repeat("─", w+2))
	}
	fmt.Fprintln(c.out)

	for _, row := range rows {
		for i, cell := range row {
			if i < len(colWidths) {
				fmt.Fprintf(c.out, "%-*s  ", colWidths[i], cell)
			}
		}
		fmt.Fprintln(c.out)
	}
	fmt.Fprintln(c.out)
}

// PrintBox prints text in a box
func (c *CLI) PrintBox(title string, lines []string) {
	if c.quiet {
		return
	}

	maxWidth := len(title)
	for _, line := range lines {
		if len(line) > maxWidth {
			maxWidth = len(line)
		}
	}

	width := maxWidth + 4

	fmt.Fprintln(c.out, "┌"+strings.Repeat("─", width)+"┐")

	padding := (width - len(title)) / 2
	fmt.Fprintf(c.out, "│%s%s%s│\n",
		strings.Repeat(" ", padding),
		c.Colorize(title, ColorBold),
		strings.Repeat(" ", width-padding-len(title)))

	fmt.Fprintln(c.out, "├"+strings.Repeat("─", width)+"┤")

	for _, line := range lines {
		fmt.Fprintf(c.out, "│ %-*s │\n", width-2, line)
	}

	fmt.Fprintln(c.out, "└"+strings.Repeat("─", width)+"┘")
}

// PrintPipelineStats prints the counters of a finished watch session
func (c *CLI) PrintPipelineStats(stats vision.PipelineStats) {
	if c.quiet {
		return
	}

	c.PrintTable([]string{"Metric", "Value"}, [][]string{
		{"Frames processed", fmt.Sprint(stats.FramesProcessed)},
		{"Frames skipped", fmt.Sprint(stats.FramesSkipped)},
		{"Moves detected", fmt.Sprint(stats.MovesDetected)},
		{"Missed frames", fmt.Sprint(stats.MissedFrames)},
		{"Relocations", fmt.Sprint(stats.Relocations)},
		{"Errors", fmt.Sprint(stats.Errors)},
		{"Avg frame time", stats.AverageFrameTime.String()},
	})
}

// PrintSeparator prints a visual separator
func (c *CLI) PrintSeparator() {
	if !c.quiet {
		fmt.Fprintln(c.out, strings.Repeat("━", 70))
	}
}
