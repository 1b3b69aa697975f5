package vision

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

// MoveSource supplies the legal moves of the tracked game and accepts detected moves.
// Once handed to a pipeline it is only touched from the pipeline goroutine.
type MoveSource interface {
	LegalMoves() []Move
	Apply(Move) error
	FEN() string
	Over() bool
	Outcome() (result string, method string)
}

// MoveEvent is emitted for every move read off the screen. It carries everything a
// consumer needs so that the move source never has to be read concurrently.
type MoveEvent struct {
	Move        Move
	Ply         int
	FEN         string
	Score       float64
	Perspective Perspective
	Observed    [64]SquareStatus
	GameOver    bool
	Result      string
	Method      string
	Timestamp   time.Time
}

// PipelineStats tracks pipeline performance
type PipelineStats struct {
	FramesProcessed  int64
	FramesSkipped    int64
	MovesDetected    int64
	MissedFrames     int64
	Relocations      int64
	Errors           int64
	LastProcessTime  time.Duration
	AverageFrameTime time.Duration
}

// Pipeline watches a frame source and turns board changes into moves
type Pipeline struct {
	config   *Config
	source   FrameSource
	moves    MoveSource
	board    *Board
	events   chan<- MoveEvent
	logger   *zap.Logger
	stopChan chan struct{}
	doneChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu          sync.Mutex
	running     bool
	started     bool
	reference   gocv.Mat
	perspective Perspective
	sideKnown   bool
	ply         int
	missed      int
	stats       PipelineStats
}

// NewPipeline creates a new vision pipeline
func NewPipeline(config *Config, source FrameSource, moves MoveSource, events chan<- MoveEvent, logger *zap.Logger) (*Pipeline, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if source == nil {
		return nil, errors.New("frame source is required")
	}
	if moves == nil {
		return nil, errors.New("move source is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	perspective, auto, _ := ParsePerspective(config.Perspective)

	return &Pipeline{
		config:      config,
		source:      source,
		moves:       moves,
		board:       NewBoard(config.Thresholds, logger),
		events:      events,
		logger:      logger,
		stopChan:    make(chan struct{}),
		doneChan:    make(chan struct{}),
		reference:   gocv.NewMat(),
		perspective: perspective,
		sideKnown:   !auto,
	}, nil
}

// Board returns the board used by the pipeline
func (p *Pipeline) Board() *Board {
	return p.board
}

// Perspective returns the current perspective
func (p *Pipeline) Perspective() Perspective {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.perspective
}

// Start begins the vision processing pipeline
func (p *Pipeline) Start() error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("pipeline already running")
	}
	if p.started {
		p.mu.Unlock()
		return fmt.Errorf("pipeline already stopped; create a new one")
	}
	p.running = true
	p.started = true
	p.mu.Unlock()

	p.wg.Add(1)
	go p.processLoop()

	return nil
}

// Stop stops the pipeline and waits for the loop to exit
func (p *Pipeline) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopChan)
	})
	p.wg.Wait()
}

// Done is closed when the processing loop exits, including at the end of a finite source
func (p *Pipeline) Done() <-chan struct{} {
	return p.doneChan
}

// IsRunning returns whether the pipeline is running
func (p *Pipeline) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// GetStats returns current pipeline statistics
func (p *Pipeline) GetStats() PipelineStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// processLoop is the main processing loop
func (p *Pipeline) processLoop() {
	defer p.wg.Done()
	defer close(p.doneChan)
	defer func() {
		p.mu.Lock()
		p.running = false
		p.mu.Unlock()
	}()

	ticker := time.NewTicker(time.Second / time.Duration(p.config.FPS))
	defer ticker.Stop()

	for {
		select {
		case <-p.stopChan:
			return
		case <-ticker.C:
			frame, err := p.source.ReadFrame()
			if errors.Is(err, io.EOF) {
				p.logger.Info("Frame source exhausted")
				return
			}
			if err != nil {
				p.countError()
				p.logger.Warn("Failed to read frame", zap.Error(err))
				continue
			}

			event, err := p.ProcessFrame(frame)
			frame.Close()
			if err != nil {
				p.countError()
				p.logger.Warn("Frame processing error", zap.Error(err))
				continue
			}
			if event == nil {
				continue
			}

			if p.events != nil {
				select {
				case p.events <- *event:
				case <-p.stopChan:
					return
				}
			}

			if event.GameOver {
				p.logger.Info("Game over",
					zap.String("result", event.Result),
					zap.String("method", event.Method),
				)
				return
			}
		}
	}
}

// ProcessFrame runs one frame through the pipeline. It returns a non-nil event
// when the frame completed a legal move. The frame is not retained.
func (p *Pipeline) ProcessFrame(frame gocv.Mat) (*MoveEvent, error) {
	start := time.Now()
	defer p.recordTiming(start)

	if frame.Empty() {
		return nil, errEmptyFrame
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.board.Located() {
		_, ok, err := p.board.Locate(frame)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, nil
		}
		if !p.sideKnown {
			side, err := p.board.DetectPerspective(frame)
			if err != nil {
				p.board.Reset()
				return nil, err
			}
			p.perspective = side
			p.sideKnown = true
		}
		frame.CopyTo(&p.reference)
		p.missed = 0
		return nil, nil
	}

	diff, err := MeanDifference(p.reference, frame)
	if err != nil {
		p.relocate("frame size changed")
		return nil, err
	}
	if diff <= p.config.DiffThreshold {
		p.stats.FramesSkipped++
		return nil, nil
	}

	det, ok, err := p.board.DetectMoveWithScores(p.reference, frame, p.moves.LegalMoves(), p.perspective)
	if err != nil {
		if errors.Is(err, ErrSquareOutOfFrame) {
			p.relocate("square outside frame")
		}
		return nil, err
	}

	if !ok {
		if len(det.Report.Changed) > 0 {
			p.missed++
			p.stats.MissedFrames++
			if p.missed >= p.config.MaxMissedFrames {
				p.relocate("too many frames without a move")
			}
		}
		return nil, nil
	}

	observed, err := p.board.Scan(frame, p.perspective)
	if err != nil {
		if errors.Is(err, ErrSquareOutOfFrame) {
			p.relocate("square outside frame")
		}
		return nil, err
	}

	if err := p.moves.Apply(det.Move); err != nil {
		return nil, fmt.Errorf("apply %s: %w", det.Move, err)
	}

	p.ply++
	p.missed = 0
	p.stats.MovesDetected++
	frame.CopyTo(&p.reference)

	event := &MoveEvent{
		Move:        det.Move,
		Ply:         p.ply,
		FEN:         p.moves.FEN(),
		Score:       det.Score,
		Perspective: p.perspective,
		Observed:    observed,
		GameOver:    p.moves.Over(),
		Timestamp:   time.Now(),
	}
	if event.GameOver {
		event.Result, event.Method = p.moves.Outcome()
	}
	p.logger.Info("Move detected",
		zap.Stringer("move", det.Move),
		zap.Int("ply", event.Ply),
		zap.Float64("score", det.Score),
		zap.Int("candidates", det.Candidates),
	)
	return event, nil
}

// relocate drops the geometry so the next frame locates the board again.
// The side at the bottom cannot change mid-game and is kept.
// The caller must hold p.mu.
func (p *Pipeline) relocate(reason string) {
	p.logger.Info("Relocating board", zap.String("reason", reason))
	p.board.Reset()
	p.missed = 0
	p.stats.Relocations++
}

func (p *Pipeline) countError() {
	p.mu.Lock()
	p.stats.Errors++
	p.mu.Unlock()
}

func (p *Pipeline) recordTiming(start time.Time) {
	elapsed := time.Since(start)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.stats.FramesProcessed++
	p.stats.LastProcessTime = elapsed
	if p.stats.AverageFrameTime == 0 {
		p.stats.AverageFrameTime = elapsed
	} else {
		p.stats.AverageFrameTime = (p.stats.AverageFrameTime + elapsed) / 2
	}
}

// Close stops the pipeline and releases all resources
func (p *Pipeline) Close() error {
	p.Stop()

	p.mu.Lock()
	p.reference.Close()
	p.mu.Unlock()

	if p.source != nil {
		return p.source.Close()
	}
	return nil
}

// String returns pipeline status
func (p *Pipeline) String() string {
	stats := p.GetStats()
	return fmt.Sprintf(
		"Vision Pipeline:\n"+
			"  Running: %v\n"+
			"  Perspective: %s\n"+
			"  Frames Processed: %d\n"+
			"  Moves Detected: %d\n"+
			"  Missed Frames: %d\n"+
			"  Relocations: %d\n"+
			"  Last Process Time: %v\n"+
			"  Avg Frame Time: %v\n"+
			"  Errors: %d\n"+
			"  FPS Target: %d\n",
		p.IsRunning(),
		p.Perspective(),
		stats.FramesProcessed,
		stats.MovesDetected,
		stats.MissedFrames,
		stats.Relocations,
		stats.LastProcessTime,
		stats.AverageFrameTime,
		stats.Errors,
		p.config.FPS,
	)
}
