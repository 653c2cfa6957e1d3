// Package encoder records rendered frames to a video file by piping raw
// RGBA frames into an ffmpeg process.
package encoder

import (
	"errors"
	"fmt"
	"image"
	"io"
	"path/filepath"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// Config describes the output stream.
type Config struct {
	Output     string
	FFmpegPath string
	Codec      string // "h264" or "hevc"
	Width      int
	Height     int
	FPS        int
	BitRate    string  // e.g. "25M"; empty lets the encoder choose
	Quality    float64 // constant rate factor; 0 keeps the encoder default
}

// Recorder feeds frames to a running ffmpeg.
type Recorder struct {
	cfg    Config
	w      io.WriteCloser
	errc   <-chan error
	logger *log.Logger

	mu     sync.Mutex
	frames int64
	closed bool
}

// Start launches ffmpeg. Close must be called to finish the file.
func Start(cfg Config, logger *log.Logger) (*Recorder, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("invalid frame size %dx%d", cfg.Width, cfg.Height)
	}
	if cfg.FPS <= 0 {
		return nil, fmt.Errorf("invalid frame rate %d", cfg.FPS)
	}
	if cfg.Output == "" {
		return nil, errors.New("no output file")
	}
	if logger == nil {
		logger = log.Default()
	}

	pipeReader, pipeWriter := io.Pipe()
	inputArgs, outputArgs := getArgs(cfg)
	ffmpegCmd := ffmpeg.Input("pipe:", inputArgs).
		Output(cfg.Output, outputArgs).
		OverWriteOutput().WithInput(pipeReader).ErrorToStdOut()
	if cfg.FFmpegPath != "" {
		ffmpegCmd = ffmpegCmd.SetFfmpegPath(cfg.FFmpegPath)
	}

	errc := make(chan error, 1)
	go func() {
		err := ffmpegCmd.Run()
		// Unblock a writer stuck on a dead process.
		pipeReader.CloseWithError(io.ErrClosedPipe)
		errc <- err
	}()

	logger.Info("recording", "output", cfg.Output, "codec", outputArgs["c:v"],
		"size", fmt.Sprintf("%dx%d", cfg.Width, cfg.Height), "fps", cfg.FPS)
	return newRecorder(cfg, pipeWriter, errc, logger), nil
}

func newRecorder(cfg Config, w io.WriteCloser, errc <-chan error, logger *log.Logger) *Recorder {
	return &Recorder{cfg: cfg, w: w, errc: errc, logger: logger}
}

// getArgs builds the ffmpeg input and output arguments.
func getArgs(cfg Config) (inputArgs ffmpeg.KwArgs, outputArgs ffmpeg.KwArgs) {
	inputArgs = ffmpeg.KwArgs{
		"f":         "rawvideo",
		"pix_fmt":   "rgba",
		"s":         fmt.Sprintf("%dx%d", cfg.Width, cfg.Height),
		"framerate": cfg.FPS,
	}

	outputArgs = ffmpeg.KwArgs{
		"pix_fmt":    "yuv420p",
		"colorspace": "bt709",
	}
	if cfg.Codec == "hevc" {
		outputArgs["c:v"] = "libx265"
		if strings.EqualFold(filepath.Ext(cfg.Output), ".mp4") {
			outputArgs["tag:v"] = "hvc1"
		}
	} else {
		outputArgs["c:v"] = "libx264"
	}
	if cfg.BitRate != "" {
		outputArgs["b:v"] = cfg.BitRate
	}
	if cfg.Quality > 0 {
		outputArgs["crf"] = cfg.Quality
	}
	return
}

// WriteFrame appends one frame. img must match the configured size.
func (r *Recorder) WriteFrame(img *image.RGBA) error {
	size := img.Bounds().Size()
	if size.X != r.cfg.Width || size.Y != r.cfg.Height {
		return fmt.Errorf("frame is %dx%d, recording %dx%d", size.X, size.Y, r.cfg.Width, r.cfg.Height)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return errors.New("recorder is closed")
	}

	rowLen := size.X * 4
	if img.Stride == rowLen {
		if _, err := r.w.Write(img.Pix[:rowLen*size.Y]); err != nil {
			return fmt.Errorf("failed to write frame %d: %w", r.frames, err)
		}
	} else {
		for y := 0; y < size.Y; y++ {
			off := y * img.Stride
			if _, err := r.w.Write(img.Pix[off : off+rowLen]); err != nil {
				return fmt.Errorf("failed to write frame %d: %w", r.frames, err)
			}
		}
	}
	r.frames++
	return nil
}

// Frames returns the number of frames written so far.
func (r *Recorder) Frames() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}

// Close ends the stream and waits for ffmpeg to finish the file.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	frames := r.frames
	r.mu.Unlock()

	if err := r.w.Close(); err != nil {
		return err
	}
	if err := <-r.errc; err != nil {
		return fmt.Errorf("ffmpeg failed: %w", err)
	}
	r.logger.Info("recording finished", "output", r.cfg.Output, "frames", frames)
	return nil
}
