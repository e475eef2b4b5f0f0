package process

import (
	"image"

	"gocv.io/x/gocv"
)

// Conformer adapts frames to the size and color layout a writer was opened
// with. OpenCV writers do not check frames, so a mismatched frame would
// otherwise corrupt the output.
type Conformer struct {
	Size image.Point
	Gray bool

	resized, grayed gocv.Mat
}

func NewConformer(size image.Point, gray bool) *Conformer {
	return &Conformer{
		Size:    size,
		Gray:    gray,
		resized: gocv.NewMat(),
		grayed:  gocv.NewMat(),
	}
}

// Apply returns m itself when it already conforms, otherwise a converted
// Mat owned by the Conformer and valid until the next Apply.
func (c *Conformer) Apply(m gocv.Mat) gocv.Mat {
	if c.Size.X > 0 && c.Size.Y > 0 && (m.Cols() != c.Size.X || m.Rows() != c.Size.Y) {
		gocv.Resize(m, &c.resized, c.Size, 0, 0, gocv.InterpolationArea)
		m = c.resized
	}
	if c.Gray && m.Channels() != 1 {
		gocv.CvtColor(m, &c.grayed, gocv.ColorBGRToGray)
		m = c.grayed
	}
	return m
}

func (c *Conformer) Close() {
	c.resized.Close()
	c.grayed.Close()
}
