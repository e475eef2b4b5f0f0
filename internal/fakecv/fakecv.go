// Package fakecv provides in-memory stand-ins for gocv capture and writer
// handles. Frames are solid colors whose value encodes the frame index, so
// tests can tell frames apart with FrameValue.
package fakecv

import (
	"gocv.io/x/gocv"
)

// NewFrame returns a solid BGR frame with every sample set to v.
func NewFrame(v uint8, width, height int) gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(float64(v), float64(v), float64(v), 0), height, width, gocv.MatTypeCV8UC3)
}

// FrameValue returns the sample at the top left corner of m.
func FrameValue(m gocv.Mat) int {
	return int(m.GetUCharAt(0, 0))
}

// Capture mimics a file-backed gocv.VideoCapture.
type Capture struct {
	Frames []gocv.Mat

	// Props holds every property other than the cursor and the frame count.
	Props map[gocv.VideoCaptureProperties]float64

	// Ignore lists properties whose Set calls are dropped, like a backend
	// that does not support them.
	Ignore map[gocv.VideoCaptureProperties]bool

	// FrameCount overrides the reported frame count when non-nil.
	FrameCount *float64

	Closes int
	pos    int
}

// NewCapture builds a capture of n frames, frame i having value i%256.
func NewCapture(n, width, height int, fps float64) *Capture {
	c := &Capture{
		Props: map[gocv.VideoCaptureProperties]float64{
			gocv.VideoCaptureFrameWidth:  float64(width),
			gocv.VideoCaptureFrameHeight: float64(height),
			gocv.VideoCaptureFPS:         fps,
		},
		Ignore: map[gocv.VideoCaptureProperties]bool{},
	}
	for i := 0; i < n; i++ {
		c.Frames = append(c.Frames, NewFrame(uint8(i%256), width, height))
	}
	return c
}

func (c *Capture) Read(m *gocv.Mat) bool {
	if c.pos < 0 || c.pos >= len(c.Frames) {
		return false
	}
	c.Frames[c.pos].CopyTo(m)
	c.pos++
	return true
}

func (c *Capture) Get(prop gocv.VideoCaptureProperties) float64 {
	switch prop {
	case gocv.VideoCapturePosFrames:
		return float64(c.pos)
	case gocv.VideoCaptureFrameCount:
		if c.FrameCount != nil {
			return *c.FrameCount
		}
		return float64(len(c.Frames))
	}
	return c.Props[prop]
}

func (c *Capture) Set(prop gocv.VideoCaptureProperties, param float64) {
	if c.Ignore[prop] {
		return
	}
	switch prop {
	case gocv.VideoCapturePosFrames:
		c.pos = int(param)
	case gocv.VideoCaptureFrameCount:
	default:
		c.Props[prop] = param
	}
}

func (c *Capture) IsOpened() bool {
	return c.Closes == 0
}

func (c *Capture) Close() error {
	c.Closes++
	return nil
}

// Free closes the frames backing the capture.
func (c *Capture) Free() {
	for _, f := range c.Frames {
		f.Close()
	}
	c.Frames = nil
}

// Writer mimics a gocv.VideoWriter, keeping a copy of every written frame.
type Writer struct {
	Frames []gocv.Mat
	Opened bool
	Err    error
	Closes int
}

func NewWriter() *Writer {
	return &Writer{Opened: true}
}

func (w *Writer) Write(img gocv.Mat) error {
	if w.Err != nil {
		return w.Err
	}
	w.Frames = append(w.Frames, img.Clone())
	return nil
}

func (w *Writer) IsOpened() bool {
	return w.Opened && w.Closes == 0
}

func (w *Writer) Close() error {
	w.Closes++
	return nil
}

// Free closes the recorded frames.
func (w *Writer) Free() {
	for _, f := range w.Frames {
		f.Close()
	}
	w.Frames = nil
}
