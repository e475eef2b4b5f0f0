package source

import (
	"image"
	"time"

	"gocv.io/x/gocv"
)

// Image is a frame tagged with its presentation time and its index in the
// source.
type Image struct {
	Mat   gocv.Mat
	Time  time.Time
	Index int

	pool   *MatPool
	closed bool
}

// Release hands the Mat back to the pool it came from, or closes it.
func (i *Image) Release() {
	if i.closed {
		panic("image already released")
	}
	i.closed = true
	if i.pool != nil {
		i.pool.ReleaseMat(i.Mat)
		return
	}
	i.Mat.Close()
}

// Clone returns a deep copy that is not tied to any pool.
func (i *Image) Clone() Image {
	return Image{
		Mat:   i.Mat.Clone(),
		Time:  i.Time,
		Index: i.Index,
	}
}

// NewImage wraps m, taking ownership of it.
func NewImage(m gocv.Mat, t time.Time, index int) Image {
	return Image{
		Mat:   m,
		Time:  t,
		Index: index,
	}
}

// Source defines a stream of images, such as a camera or a file played back
// in order.
type Source interface {
	// Get returns the channel images are delivered on. The receiver owns each
	// Image and must Release it. The channel is closed when the source ends.
	Get() <-chan Image

	// Size returns the size of the capture source.
	Size() image.Point

	// Connected returns whether the source is still producing frames.
	Connected() bool

	// Close stops the source and frees up all resources.
	Close()
}
