package sink

import (
	"gocv.io/x/gocv"

	"cvvideo/video/source"
)

// Window shows images in a HighGUI window, pacing playback by delay
// milliseconds per frame.
type Window struct {
	window  *gocv.Window
	delay   int
	sizeSet bool

	// Quit is set once the user presses q or Esc.
	Quit bool
}

var _ Sink = (*Window)(nil)

func NewWindow(name string, delay int) *Window {
	if delay < 1 {
		delay = 1
	}
	return &Window{
		window: gocv.NewWindow(name),
		delay:  delay,
	}
}

func (w *Window) Put(input source.Image) error {
	if !w.sizeSet {
		w.window.ResizeWindow(input.Mat.Cols(), input.Mat.Rows())
		w.sizeSet = true
	}
	w.window.IMShow(input.Mat)
	switch w.window.WaitKey(w.delay) {
	case 'q', 27:
		w.Quit = true
	}
	return nil
}

func (w *Window) Close() error {
	return w.window.Close()
}
