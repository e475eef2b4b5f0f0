package process

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"

	"cvvideo/internal/fakecv"
)

func TestConformerPassesThrough(t *testing.T) {
	c := NewConformer(image.Point{X: 8, Y: 4}, false)
	defer c.Close()
	m := fakecv.NewFrame(10, 8, 4)
	defer m.Close()

	out := c.Apply(m)
	assert.Equal(t, 8, out.Cols())
	assert.Equal(t, 3, out.Channels())
	assert.Equal(t, 10, fakecv.FrameValue(out))
	assert.True(t, c.resized.Empty())
}

func TestConformerResizesAndGrays(t *testing.T) {
	c := NewConformer(image.Point{X: 4, Y: 2}, true)
	defer c.Close()
	m := fakecv.NewFrame(100, 16, 8)
	defer m.Close()

	out := c.Apply(m)
	assert.Equal(t, 4, out.Cols())
	assert.Equal(t, 2, out.Rows())
	assert.Equal(t, 1, out.Channels())
	assert.InDelta(t, 100, int(out.GetUCharAt(0, 0)), 1)
}
