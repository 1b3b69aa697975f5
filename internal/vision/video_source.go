package vision

import (
	"fmt"
	"io"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// FrameSource supplies frames to the pipeline (screen capture, video file, images).
// ReadFrame returns io.EOF once a finite source is exhausted.
type FrameSource interface {
	ReadFrame() (gocv.Mat, error)
	Close() error
}

// LiveSource wraps Capturer to implement FrameSource
type LiveSource struct {
	capturer *Capturer
}

// NewLiveSource creates a frame source from screen capture
func NewLiveSource(capturer *Capturer) *LiveSource {
	return &LiveSource{capturer: capturer}
}

// ReadFrame captures a frame from the screen
func (ls *LiveSource) ReadFrame() (gocv.Mat, error) {
	return ls.capturer.CaptureFrame()
}

// Close releases resources
func (ls *LiveSource) Close() error {
	return nil
}

// VideoSource provides frames from a recorded game for replay/testing.
// Progress may be read from another goroutine while frames are being read.
type VideoSource struct {
	video        *gocv.VideoCapture
	fps          float64
	frameCount   int
	mu           sync.Mutex
	currentFrame int
}

// NewVideoSource opens a video file for playback
func NewVideoSource(videoPath string) (*VideoSource, error) {
	video, err := gocv.VideoCaptureFile(videoPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open video file: %w", err)
	}

	if !video.IsOpened() {
		video.Close()
		return nil, fmt.Errorf("video file not opened: %s", videoPath)
	}

	return &VideoSource{
		video:      video,
		fps:        video.Get(gocv.VideoCaptureFPS),
		frameCount: int(video.Get(gocv.VideoCaptureFrameCount)),
	}, nil
}

// ReadFrame reads the next frame from the video
func (vs *VideoSource) ReadFrame() (gocv.Mat, error) {
	if vs.video == nil {
		return gocv.Mat{}, fmt.Errorf("video source not initialized")
	}

	mat := gocv.NewMat()
	if !vs.video.Read(&mat) || mat.Empty() {
		mat.Close()
		return gocv.Mat{}, io.EOF
	}

	vs.mu.Lock()
	vs.currentFrame++
	vs.mu.Unlock()
	return mat, nil
}

// GetFPS returns the video's frames per second
func (vs *VideoSource) GetFPS() float64 {
	return vs.fps
}

// GetFrameCount returns total number of frames
func (vs *VideoSource) GetFrameCount() int {
	return vs.frameCount
}

// GetCurrentFrame returns the current frame number
func (vs *VideoSource) GetCurrentFrame() int {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	return vs.currentFrame
}

// GetProgress returns playback progress (0-1)
func (vs *VideoSource) GetProgress() float64 {
	if vs.frameCount == 0 {
		return 0
	}
	return float64(vs.GetCurrentFrame()) / float64(vs.frameCount)
}

// Seek jumps to a specific frame number. It must not race with ReadFrame.
func (vs *VideoSource) Seek(frameNum int) error {
	if vs.video == nil {
		return fmt.Errorf("video source not initialized")
	}
	if frameNum < 0 || (vs.frameCount > 0 && frameNum >= vs.frameCount) {
		return fmt.Errorf("frame %d out of range (video has %d frames)", frameNum, vs.frameCount)
	}

	vs.video.Set(gocv.VideoCapturePosFrames, float64(frameNum))
	vs.mu.Lock()
	vs.currentFrame = frameNum
	vs.mu.Unlock()
	return nil
}

// Close releases video resources
func (vs *VideoSource) Close() error {
	if vs.video != nil {
		err := vs.video.Close()
		vs.video = nil
		return err
	}
	return nil
}

// ImageSource replays a fixed list of still images, one per ReadFrame
type ImageSource struct {
	paths []string
	mu    sync.Mutex
	next  int
}

// NewImageSource creates a source over image files, read in order
func NewImageSource(paths ...string) *ImageSource {
	return &ImageSource{paths: paths}
}

// ReadFrame loads the next image
func (is *ImageSource) ReadFrame() (gocv.Mat, error) {
	is.mu.Lock()
	if is.next >= len(is.paths) {
		is.mu.Unlock()
		return gocv.Mat{}, io.EOF
	}
	path := is.paths[is.next]
	is.next++
	is.mu.Unlock()

	img := gocv.IMRead(path, gocv.IMReadColor)
	if img.Empty() {
		img.Close()
		return gocv.Mat{}, fmt.Errorf("failed to load image: %s", path)
	}
	return img, nil
}

// Remaining returns how many images have not been read yet
func (is *ImageSource) Remaining() int {
	is.mu.Lock()
	defer is.mu.Unlock()
	return len(is.paths) - is.next
}

// Len returns the number of images in the sequence
func (is *ImageSource) Len() int {
	return len(is.paths)
}

// Close is a no-op; images are loaded on demand
func (is *ImageSource) Close() error {
	return nil
}

// VideoInfo holds metadata about a video
type VideoInfo struct {
	FPS        float64
	FrameCount int
	Width      int
	Height     int
	Duration   time.Duration
}

// GetVideoInfo extracts metadata from a video file
func GetVideoInfo(videoPath string) (*VideoInfo, error) {
	video, err := gocv.VideoCaptureFile(videoPath)
	if err != nil {
		return nil, err
	}
	defer video.Close()

	if !video.IsOpened() {
		return nil, fmt.Errorf("failed to open video")
	}

	fps := video.Get(gocv.VideoCaptureFPS)
	frameCount := int(video.Get(gocv.VideoCaptureFrameCount))
	width := int(video.Get(gocv.VideoCaptureFrameWidth))
	height := int(video.Get(gocv.VideoCaptureFrameHeight))

	var duration time.Duration
	if fps > 0 {
		duration = time.Duration(float64(frameCount) / fps * float64(time.Second))
	}

	return &VideoInfo{
		FPS:        fps,
		FrameCount: frameCount,
		Width:      width,
		Height:     height,
		Duration:   duration,
	}, nil
}

// String returns a formatted string of video info
func (vi *VideoInfo) String() string {
	return fmt.Sprintf(
		"Video Info:\n"+
			"  Resolution: %dx%d\n"+
			"  FPS: %.2f\n"+
			"  Frames: %d\n"+
			"  Duration: %v\n",
		vi.Width, vi.Height,
		vi.FPS,
		vi.FrameCount,
		vi.Duration,
	)
}
