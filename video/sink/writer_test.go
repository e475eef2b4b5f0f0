package sink

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cvvideo/fourcc"
	"cvvideo/internal/fakecv"
	"cvvideo/video/source"
)

func TestDefaultWriterOptions(t *testing.T) {
	o := DefaultWriterOptions()
	assert.Equal(t, "MJPG", o.Codec)
	assert.Equal(t, 5.0, o.FPS)
	assert.Equal(t, 640, o.Size().X)
	assert.Equal(t, 480, o.Size().Y)
	assert.True(t, o.IsColor)
}

func TestWriterForwardsFrames(t *testing.T) {
	h := fakecv.NewWriter()
	defer h.Free()
	w := NewWriterWithHandle(h, "out.avi", DefaultWriterOptions())
	assert.True(t, w.IsOpen())
	assert.Equal(t, "out.avi", w.Path())

	for i := 0; i < 3; i++ {
		m := fakecv.NewFrame(uint8(i), 4, 4)
		require.NoError(t, w.Write(m))
		m.Close()
	}
	img := source.NewImage(fakecv.NewFrame(7, 4, 4), time.Now(), 3)
	require.NoError(t, w.Put(img))
	img.Release()

	require.Len(t, h.Frames, 4)
	for i, want := range []int{0, 1, 2, 7} {
		assert.Equal(t, want, fakecv.FrameValue(h.Frames[i]))
	}

	require.NoError(t, w.Close())
	assert.True(t, errors.Is(w.Close(), ErrClosed))
	assert.Equal(t, 1, h.Closes)
	assert.False(t, w.IsOpen())
}

func TestWriterPropagatesBackendErrors(t *testing.T) {
	h := fakecv.NewWriter()
	h.Err = errors.New("disk full")
	w := NewWriterWithHandle(h, "out.avi", DefaultWriterOptions())
	m := fakecv.NewFrame(1, 4, 4)
	defer m.Close()
	assert.Equal(t, h.Err, w.Write(m))
}

func TestWriterReportsFailedOpen(t *testing.T) {
	h := fakecv.NewWriter()
	h.Opened = false
	w := NewWriterWithHandle(h, "out.xyz", DefaultWriterOptions())
	assert.False(t, w.IsOpen())
}

func TestNewWriterRejectsBadCodec(t *testing.T) {
	o := DefaultWriterOptions()
	o.Codec = "MPEG4"
	_, err := NewWriter(filepath.Join(t.TempDir(), "out.avi"), o)
	assert.True(t, errors.Is(err, fourcc.ErrInvalidCode))

	called := false
	err = WithWriter(filepath.Join(t.TempDir(), "out.avi"), o, func(w *Writer) error {
		called = true
		return nil
	})
	assert.Error(t, err)
	assert.False(t, called)
}

func TestNewWriterRejectsZeroSize(t *testing.T) {
	o := DefaultWriterOptions()
	o.Width = 0
	_, err := NewWriter(filepath.Join(t.TempDir(), "out.avi"), o)
	assert.Error(t, err)
}

// TestRoundTrip writes frames with OpenCV and reads them back. It needs an
// OpenCV build with an MJPG capable AVI backend.
func TestRoundTrip(t *testing.T) {
	const n = 10
	path := filepath.Join(t.TempDir(), "roundtrip.avi")
	o := WriterOptions{Codec: "MJPG", FPS: 10, Width: 64, Height: 48, IsColor: true}

	err := WithWriter(path, o, func(w *Writer) error {
		if !w.IsOpen() {
			t.Skip("OpenCV cannot write MJPG/AVI on this system")
		}
		for i := 0; i < n; i++ {
			m := fakecv.NewFrame(uint8(i*20), o.Width, o.Height)
			err := w.Write(m)
			m.Close()
			if err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	err = source.WithCapture(path, func(c *source.Capture) error {
		assert.InDelta(t, n, c.Len(), 1)
		assert.Equal(t, o.Width, c.Width())
		assert.Equal(t, o.Height, c.Height())
		assert.InDelta(t, o.FPS, c.FPS(), 0.01)
		assert.Equal(t, "MJPG", c.Codec())

		count := 0
		for i, m := range c.All() {
			assert.InDelta(t, i*20, fakecv.FrameValue(m), 4, "frame %d", i)
			count++
		}
		assert.Equal(t, n, count)

		m, err := c.FrameAt(3)
		require.NoError(t, err)
		defer m.Close()
		assert.InDelta(t, 60, fakecv.FrameValue(m), 4)
		assert.Equal(t, 4, c.Position())
		return nil
	})
	require.NoError(t, err)
}
