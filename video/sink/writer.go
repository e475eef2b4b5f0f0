package sink

import (
	"image"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"cvvideo/fourcc"
	"cvvideo/video/source"
)

// ErrClosed is returned when a Writer is closed twice.
var ErrClosed = errors.New("writer already closed")

// WriterHandle is the native writer surface. *gocv.VideoWriter implements it.
type WriterHandle interface {
	Write(img gocv.Mat) error
	IsOpened() bool
	Close() error
}

var _ WriterHandle = (*gocv.VideoWriter)(nil)

// WriterOptions are fixed when the writer is created.
type WriterOptions struct {
	// Codec is a four-character code such as "MJPG".
	Codec   string
	FPS     float64
	Width   int
	Height  int
	IsColor bool
}

func DefaultWriterOptions() WriterOptions {
	return WriterOptions{
		Codec:   fourcc.MJPG.String(),
		FPS:     5,
		Width:   640,
		Height:  480,
		IsColor: true,
	}
}

// Size returns the frame size as a point (X is width).
func (o WriterOptions) Size() image.Point {
	return image.Point{X: o.Width, Y: o.Height}
}

// Writer encodes frames to a video file through OpenCV's VideoWriter. Frames
// are handed to the backend as-is: a frame whose size or color depth does
// not match the options is the backend's problem. A Writer is not safe for
// concurrent use.
type Writer struct {
	path   string
	opts   WriterOptions
	h      WriterHandle
	closed bool
}

var _ Sink = (*Writer)(nil)

// NewWriter opens a writer for path. Only a malformed codec or a zero
// dimension fails here; a backend that cannot produce the requested format
// yields a Writer whose IsOpen reports false.
func NewWriter(path string, o WriterOptions) (*Writer, error) {
	code, err := fourcc.Parse(o.Codec)
	if err != nil {
		return nil, err
	}
	if o.Width <= 0 || o.Height <= 0 {
		return nil, errors.Errorf("invalid writer size %dx%d", o.Width, o.Height)
	}
	h, err := gocv.VideoWriterFile(path, code.String(), o.FPS, o.Width, o.Height, o.IsColor)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create video writer %q", path)
	}
	w := NewWriterWithHandle(h, path, o)
	if !w.IsOpen() {
		log.WithField("path", path).Warnf("Video writer did not open; codec %s may be unsupported for this container", o.Codec)
	}
	return w, nil
}

// NewWriterWithHandle wraps an already created handle.
func NewWriterWithHandle(h WriterHandle, path string, o WriterOptions) *Writer {
	return &Writer{
		path: path,
		opts: o,
		h:    h,
	}
}

// WithWriter creates a writer, runs fn and closes the writer exactly once,
// even when fn panics.
func WithWriter(path string, o WriterOptions, fn func(w *Writer) error) (err error) {
	w, err := NewWriter(path, o)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := w.Close(); err == nil {
			err = cerr
		}
	}()
	return fn(w)
}

func (w *Writer) Path() string {
	return w.path
}

func (w *Writer) Options() WriterOptions {
	return w.opts
}

// IsOpen reports whether the backend initialized the writer. It is the only
// signal that the codec or container was rejected.
func (w *Writer) IsOpen() bool {
	return w.h.IsOpened()
}

// Write forwards one frame to the backend.
func (w *Writer) Write(frame gocv.Mat) error {
	return w.h.Write(frame)
}

func (w *Writer) Put(input source.Image) error {
	return w.Write(input.Mat)
}

// Close finalizes the file. A second Close returns ErrClosed.
func (w *Writer) Close() error {
	if w.closed {
		return ErrClosed
	}
	w.closed = true
	return w.h.Close()
}
