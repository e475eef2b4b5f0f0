package sink

import (
	"time"

	"gocv.io/x/gocv"

	"cvvideo/video/source"
)

// FPSNormalize wraps another Sink so that an incoming stream of variably
// timed images is converted to a fixed frame rate. Frames are dropped or
// repeated to hit the target rate. This is what turns a webcam feed, or a
// file recorded at a different rate, into a fixed-rate video file.
type FPSNormalize struct {
	// sink receives the normalized stream.
	sink Sink

	frameDur time.Duration
	last     gocv.Mat
	curFrame time.Time
	n        int
}

var _ Sink = (*FPSNormalize)(nil)

// NewFPSNormalize wraps sink, exporting at the given frame rate.
func NewFPSNormalize(sink Sink, fps float64) *FPSNormalize {
	return &FPSNormalize{
		sink:     sink,
		frameDur: time.Duration(float64(time.Second) / fps),
		last:     gocv.NewMat(),
	}
}

// Written returns how many frames were handed to the wrapped sink.
func (f *FPSNormalize) Written() int {
	return f.n
}

func (f *FPSNormalize) Close() error {
	f.last.Close()
	return f.sink.Close()
}

func (f *FPSNormalize) put(m gocv.Mat, t time.Time) error {
	f.n++
	return f.sink.Put(source.Image{Mat: m, Time: t, Index: f.n - 1})
}

func (f *FPSNormalize) Put(input source.Image) error {
	if f.curFrame.IsZero() {
		f.curFrame = input.Time
		input.Mat.CopyTo(&f.last)
		return f.put(input.Mat, f.curFrame)
	}

	nextFrame := f.curFrame.Add(f.frameDur)
	if input.Time.Before(nextFrame) {
		// Too early for a new frame.
		return nil
	}

	for {
		f.curFrame = nextFrame
		nextFrame = f.curFrame.Add(f.frameDur)
		if input.Time.Before(nextFrame) {
			input.Mat.CopyTo(&f.last)
			return f.put(input.Mat, f.curFrame)
		}
		// Missed a frame. Repeat the last one.
		if err := f.put(f.last, f.curFrame); err != nil {
			return err
		}
	}
}
