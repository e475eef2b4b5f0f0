package process

import (
	"image"
	"os"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// DefaultJPEGQuality is used when no quality is configured.
const DefaultJPEGQuality = 90

// EncodeJPEG compresses m. quality is clamped to [1, 100].
func EncodeJPEG(m gocv.Mat, quality int) ([]byte, error) {
	if quality < 1 {
		quality = 1
	} else if quality > 100 {
		quality = 100
	}
	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, m, []int{int(gocv.IMWriteJpegQuality), quality})
	if err != nil {
		return nil, errors.Wrap(err, "jpeg encode")
	}
	defer buf.Close()
	// GetBytes points into native memory that Close frees.
	b := buf.GetBytes()
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

// WriteJPEG writes m to path as a JPEG. A non-zero size resizes the frame
// first; a size with one zero axis keeps the aspect ratio.
func WriteJPEG(path string, m gocv.Mat, size image.Point, quality int) error {
	src := m
	if size != (image.Point{}) {
		size = fitSize(image.Point{X: m.Cols(), Y: m.Rows()}, size)
		tmat := gocv.NewMat()
		defer tmat.Close()
		gocv.Resize(m, &tmat, size, 0, 0, gocv.InterpolationCubic)
		src = tmat
	}

	jpeg, err := EncodeJPEG(src, quality)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, jpeg, 0644); err != nil {
		return errors.Wrapf(err, "write %v", path)
	}
	return nil
}

func fitSize(in, want image.Point) image.Point {
	switch {
	case in.X == 0 || in.Y == 0:
		return want
	case want.X == 0:
		want.X = in.X * want.Y / in.Y
	case want.Y == 0:
		want.Y = in.Y * want.X / in.X
	}
	return want
}
