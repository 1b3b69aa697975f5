package main

import (
	"flag"
	"fmt"
	"image/color"
	"math"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/thyrook/boardwatch/internal/config"
	"github.com/thyrook/boardwatch/internal/game"
	"github.com/thyrook/boardwatch/internal/iface"
	"github.com/thyrook/boardwatch/internal/storage"
	"github.com/thyrook/boardwatch/internal/vision"
)

type options struct {
	configPath  string
	imagePath   string
	markPath    string
	beforePath  string
	afterPath   string
	images      string
	videoPath   string
	startFrame  int
	realtime    bool
	live        bool
	snapshot    string
	fen         string
	pgnPath     string
	perspective string
	listGames   bool
	exportGame  string
	initConfig  string
	quiet       bool
	verbose     bool
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "boardwatch.yaml", "Path to configuration file (JSON or YAML)")
	flag.StringVar(&opts.imagePath, "image", "", "Locate the board in a screenshot and classify every square")
	flag.StringVar(&opts.markPath, "mark", "", "With -image, write an annotated copy to this path")
	flag.StringVar(&opts.beforePath, "before", "", "Screenshot before a move (use with -after)")
	flag.StringVar(&opts.afterPath, "after", "", "Screenshot after a move (use with -before)")
	flag.StringVar(&opts.images, "images", "", "Comma-separated screenshots to replay as a game")
	flag.StringVar(&opts.videoPath, "video", "", "Replay a screen recording")
	flag.IntVar(&opts.startFrame, "start", 0, "With -video, start from this frame")
	flag.BoolVar(&opts.realtime, "realtime", false, "With -video, poll at the recording's frame rate")
	flag.BoolVar(&opts.live, "live", false, "Watch the screen")
	flag.StringVar(&opts.snapshot, "snapshot", "", "Save one capture of the configured region and exit")
	flag.StringVar(&opts.fen, "fen", "", "Starting position (default: standard start)")
	flag.StringVar(&opts.pgnPath, "pgn", "", "Resume the last game of a PGN file (- reads one game from stdin)")
	flag.StringVar(&opts.perspective, "perspective", "", "Override perspective: auto, white or black")
	flag.BoolVar(&opts.listGames, "games", false, "List games recorded in the journal")
	flag.StringVar(&opts.exportGame, "export", "", "Print the journal records of a game as JSON")
	flag.StringVar(&opts.initConfig, "init-config", "", "Write the default configuration to this path and exit")
	flag.BoolVar(&opts.quiet, "q", false, "Quiet output")
	flag.BoolVar(&opts.verbose, "v", false, "Verbose (debug) logging")
	flag.Parse()

	if opts.initConfig != "" {
		if err := config.DefaultConfig().Save(opts.initConfig); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write config: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Default configuration written to %s\n", opts.initConfig)
		return
	}

	cfg := loadConfig(opts.configPath)
	if opts.perspective != "" {
		cfg.Vision.Perspective = opts.perspective
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create directories: %v\n", err)
		os.Exit(1)
	}

	level := cfg.Interface.LogLevel
	if opts.verbose {
		level = "debug"
	}
	// quiet output keeps log lines out of the terminal
	logger, err := iface.NewLogger(cfg.Interface.LogPath, level, !opts.quiet)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	cli := iface.NewCLI(cfg, opts.quiet)

	switch {
	case opts.snapshot != "":
		err = runSnapshot(cfg, opts, cli)
	case opts.listGames:
		err = runListGames(cfg, cli)
	case opts.exportGame != "":
		err = runExport(cfg, opts.exportGame)
	case opts.imagePath != "":
		cli.PrintModeHeader("scan")
		err = runScan(cfg, opts, cli, logger)
	case opts.beforePath != "" || opts.afterPath != "":
		cli.PrintModeHeader("detect")
		err = runDetect(cfg, opts, cli, logger)
	case opts.images != "" || opts.videoPath != "" || opts.live:
		cli.PrintBanner()
		cli.PrintModeHeader("watch")
		err = runWatch(cfg, opts, cli, logger)
	default:
		fmt.Println("boardwatch: read chess moves off the screen")
		fmt.Println("\nUsage:")
		flag.PrintDefaults()
		os.Exit(2)
	}

	if err != nil {
		logger.Error("Command failed", zap.Error(err))
		cli.PrintError(err)
		os.Exit(1)
	}
}

func loadConfig(path string) *config.Config {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config.DefaultConfig()
	}

	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config, using defaults: %v\n", err)
		return config.DefaultConfig()
	}
	return cfg
}

func newTracker(opts options) (*game.Tracker, error) {
	switch {
	case opts.pgnPath == "-":
		return game.FromPGN(os.Stdin)
	case opts.pgnPath != "":
		return game.ResumeFile(opts.pgnPath)
	case opts.fen != "":
		return game.FromFEN(opts.fen)
	default:
		return game.NewTracker(), nil
	}
}

func loadImage(path string) (gocv.Mat, error) {
	img := gocv.IMRead(path, gocv.IMReadColor)
	if img.Empty() {
		img.Close()
		return gocv.Mat{}, fmt.Errorf("failed to load image: %s", path)
	}
	return img, nil
}

// locate finds the board and settles the perspective for a single frame
func locate(cfg *config.Config, frame gocv.Mat, logger *zap.Logger) (*vision.Board, vision.Perspective, error) {
	board := vision.NewBoard(cfg.Vision.Thresholds, logger)
	if _, ok, err := board.Locate(frame); err != nil {
		return nil, vision.WhiteBottom, err
	} else if !ok {
		return nil, vision.WhiteBottom, vision.ErrBoardNotLocated
	}

	p, auto, err := vision.ParsePerspective(cfg.Vision.Perspective)
	if err != nil {
		return nil, p, err
	}
	if auto {
		if p, err = board.DetectPerspective(frame); err != nil {
			return nil, p, err
		}
	}
	return board, p, nil
}

func runScan(cfg *config.Config, opts options, cli *iface.CLI, logger *zap.Logger) error {
	frame, err := loadImage(opts.imagePath)
	if err != nil {
		return err
	}
	defer frame.Close()

	start := time.Now()
	board, p, err := locate(cfg, frame, logger)
	if err != nil {
		return err
	}
	scan, err := board.Scan(frame, p)
	if err != nil {
		return err
	}
	g, _ := board.Geometry()

	cli.PrintInfo(fmt.Sprintf("Board at %v, square size %.1fpx, %s at the bottom (%v)",
		g.Bounds(), g.SquareSize, p, time.Since(start).Round(time.Millisecond)))
	cli.PrintBoard(scan, p)

	if err := vision.ValidateOccupancy(scan); err != nil {
		cli.PrintWarning(err.Error())
	}

	if opts.fen != "" || opts.pgnPath != "" {
		tracker, err := newTracker(opts)
		if err != nil {
			return err
		}
		if diff := tracker.Mismatches(scan); len(diff) > 0 {
			names := make([]string, len(diff))
			for i, index := range diff {
				names[i] = vision.SquareName(index)
			}
			cli.PrintWarning("Scan disagrees with the position on " + strings.Join(names, ", "))
		} else {
			cli.PrintSuccess("Scan matches the position")
		}
	}

	if opts.markPath != "" {
		return writeMarked(frame, board, scan, p, opts.markPath)
	}
	return nil
}

// writeMarked draws the located board outline and a dot per occupied square
func writeMarked(frame gocv.Mat, board *vision.Board, scan [64]vision.SquareStatus, p vision.Perspective, path string) error {
	out := frame.Clone()
	defer out.Close()

	g, err := board.Geometry()
	if err != nil {
		return err
	}
	gocv.Rectangle(&out, g.Bounds(), color.RGBA{0, 200, 0, 255}, 2)

	for index, status := range scan {
		if status == vision.Empty {
			continue
		}
		center, err := board.SquareCenter(index, p)
		if err != nil {
			return err
		}
		c := color.RGBA{220, 40, 40, 255}
		if status == vision.Black {
			c = color.RGBA{40, 40, 220, 255}
		}
		gocv.Circle(&out, center, int(g.SquareSize/8), c, -1)
	}

	if !gocv.IMWrite(path, out) {
		return fmt.Errorf("failed to write %s", path)
	}
	return nil
}

func runDetect(cfg *config.Config, opts options, cli *iface.CLI, logger *zap.Logger) error {
	if opts.beforePath == "" || opts.afterPath == "" {
		return fmt.Errorf("-before and -after are both required")
	}

	before, err := loadImage(opts.beforePath)
	if err != nil {
		return err
	}
	defer before.Close()
	after, err := loadImage(opts.afterPath)
	if err != nil {
		return err
	}
	defer after.Close()

	tracker, err := newTracker(opts)
	if err != nil {
		return err
	}

	board, p, err := locate(cfg, before, logger)
	if err != nil {
		return err
	}

	det, ok, err := board.DetectMoveWithScores(before, after, tracker.LegalMoves(), p)
	if err != nil {
		return err
	}
	if !ok {
		cli.PrintWarning(fmt.Sprintf("No legal move explains the change (changed: %s)",
			strings.Join(det.Report.ChangedNames(), ", ")))
		return nil
	}

	if err := tracker.Apply(det.Move); err != nil {
		return err
	}
	cli.PrintMove(vision.MoveEvent{
		Move:        det.Move,
		Ply:         tracker.Ply(),
		FEN:         tracker.FEN(),
		Score:       det.Score,
		Perspective: p,
		Timestamp:   time.Now(),
	})
	cli.PrintInfo("Position: " + tracker.FEN())
	return nil
}

// replay reports how far a finite source has been read.
// Its funcs are safe to call while the pipeline reads frames.
type replay struct {
	label    string
	total    int
	current  func() int
	progress func() float64
}

func frameSource(cfg *config.Config, opts options, cli *iface.CLI) (vision.FrameSource, *replay, error) {
	switch {
	case opts.images != "":
		var paths []string
		for _, p := range strings.Split(opts.images, ",") {
			if p = strings.TrimSpace(p); p != "" {
				paths = append(paths, p)
			}
		}
		src := vision.NewImageSource(paths...)
		current := func() int { return src.Len() - src.Remaining() }
		return src, &replay{
			label:   "Images",
			total:   src.Len(),
			current: current,
			progress: func() float64 {
				if src.Len() == 0 {
					return 0
				}
				return float64(current()) / float64(src.Len())
			},
		}, nil

	case opts.videoPath != "":
		info, err := vision.GetVideoInfo(opts.videoPath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read video info: %w", err)
		}
		cli.PrintBox("Recording", strings.Split(strings.TrimSpace(info.String()), "\n")[1:])

		src, err := vision.NewVideoSource(opts.videoPath)
		if err != nil {
			return nil, nil, err
		}
		if opts.startFrame > 0 {
			if err := src.Seek(opts.startFrame); err != nil {
				src.Close()
				return nil, nil, err
			}
		}
		if opts.realtime && src.GetFPS() > 0 {
			cfg.Vision.FPS = int(math.Max(1, math.Min(60, math.Round(src.GetFPS()))))
		}
		return src, &replay{
			label:    "Replay",
			total:    src.GetFrameCount(),
			current:  src.GetCurrentFrame,
			progress: src.GetProgress,
		}, nil

	default:
		capturer, err := vision.NewCapturer(cfg.Vision.CaptureRegion.ToRectangle(), cfg.Vision.Display)
		if err != nil {
			return nil, nil, err
		}
		return vision.NewLiveSource(capturer), nil, nil
	}
}

func runWatch(cfg *config.Config, opts options, cli *iface.CLI, logger *zap.Logger) error {
	tracker, err := newTracker(opts)
	if err != nil {
		return err
	}

	source, progress, err := frameSource(cfg, opts, cli)
	if err != nil {
		return err
	}

	var journal *storage.Journal
	var gameID string
	if cfg.Journal.Enabled {
		journal, err = storage.OpenJournal(cfg.Journal.Path)
		if err != nil {
			source.Close()
			return err
		}
		defer journal.Close()

		gameID, err = journal.StartGame(tracker.FEN(), cfg.Vision.Perspective)
		if err != nil {
			source.Close()
			return err
		}
		logger.Info("Journal game started", zap.String("game", gameID), zap.String("path", journal.Path()))
	}

	events := make(chan vision.MoveEvent, 16)
	pipeline, err := vision.NewPipeline(&cfg.Vision, source, tracker, events, logger)
	if err != nil {
		source.Close()
		return err
	}
	defer pipeline.Close()

	// the tracker belongs to the pipeline until it stops; events carry what is shown
	baseline := tracker.Ply()
	if err := pipeline.Start(); err != nil {
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	handle := func(ev vision.MoveEvent) {
		ev.Ply += baseline
		cli.PrintMove(ev)
		if cfg.Interface.ShowBoard {
			showBoard(cli, ev, logger)
		}
		if ev.GameOver {
			cli.PrintSuccess(fmt.Sprintf("Game over: %s (%s)", ev.Result, ev.Method))
		}
		if journal == nil {
			return
		}
		rec := storage.Record{
			Game:      gameID,
			Ply:       ev.Ply,
			UCI:       ev.Move.String(),
			From:      ev.Move.From,
			To:        ev.Move.To,
			FEN:       ev.FEN,
			Score:     ev.Score,
			Timestamp: ev.Timestamp,
		}
		if err := journal.Append(rec); err != nil {
			logger.Warn("Failed to journal move", zap.Error(err))
		}
	}

	var tick <-chan time.Time
	if progress != nil {
		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case ev := <-events:
			handle(ev)

		case <-tick:
			cli.PrintProgressBar(progress.current(), progress.total, progress.label)

		case <-pipeline.Done():
			// moves emitted just before the loop exited
			for len(events) > 0 {
				handle(<-events)
			}
			finish(cli, pipeline, tracker, progress)
			return nil

		case <-sigChan:
			fmt.Println("\nStopping...")
			pipeline.Stop()
			finish(cli, pipeline, tracker, progress)
			return nil
		}
	}
}

// showBoard prints what the screen showed after a move and where it disagrees
// with the position the move produced
func showBoard(cli *iface.CLI, ev vision.MoveEvent, logger *zap.Logger) {
	expected, err := game.FromFEN(ev.FEN)
	if err != nil {
		logger.Warn("Cannot rebuild position", zap.String("fen", ev.FEN), zap.Error(err))
		cli.PrintBoard(ev.Observed, ev.Perspective)
		return
	}
	cli.PrintBoardCheck(ev.Observed, ev.Perspective, expected.Mismatches(ev.Observed))
}

// finish runs after the pipeline has stopped, so the tracker may be read again
func finish(cli *iface.CLI, pipeline *vision.Pipeline, tracker *game.Tracker, progress *replay) {
	if progress != nil {
		cli.PrintProgressBar(progress.current(), progress.total, progress.label)
		cli.PrintInfo(fmt.Sprintf("Read %.0f%% of the input", progress.progress()*100))
	}
	cli.PrintSeparator()
	cli.PrintPipelineStats(pipeline.GetStats())
	if tracker.Over() {
		result, method := tracker.Outcome()
		cli.PrintBox("Game", []string{tracker.PGN(), fmt.Sprintf("%s by %s", result, strings.ToLower(method))})
		return
	}
	cli.PrintBox("Game", []string{tracker.PGN()})
}

// runSnapshot saves one capture so the capture region can be checked
func runSnapshot(cfg *config.Config, opts options, cli *iface.CLI) error {
	capturer, err := vision.NewCapturer(cfg.Vision.CaptureRegion.ToRectangle(), cfg.Vision.Display)
	if err != nil {
		return err
	}
	if err := capturer.SaveScreenshot(opts.snapshot); err != nil {
		return err
	}
	r := capturer.Region()
	cli.PrintSuccess(fmt.Sprintf("Saved %dx%d capture at %v to %s", r.Dx(), r.Dy(), r.Min, opts.snapshot))
	return nil
}

func runListGames(cfg *config.Config, cli *iface.CLI) error {
	journal, err := storage.OpenJournal(cfg.Journal.Path)
	if err != nil {
		return err
	}
	defer journal.Close()

	games, err := journal.Games()
	if err != nil {
		return err
	}

	rows := make([][]string, 0, len(games))
	for _, g := range games {
		rows = append(rows, []string{g.ID, g.Started.Local().Format("2006-01-02 15:04"), g.Perspective, fmt.Sprint(g.Moves)})
	}
	cli.PrintTable([]string{"Game", "Started", "Perspective", "Moves"}, rows)
	return nil
}

func runExport(cfg *config.Config, gameID string) error {
	journal, err := storage.OpenJournal(cfg.Journal.Path)
	if err != nil {
		return err
	}
	defer journal.Close()

	return journal.ExportJSON(gameID, os.Stdout)
}
