package source

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cvvideo/internal/fakecv"
)

func TestStreamDeliversFramesOnFileTimeline(t *testing.T) {
	c, h := newFakeCapture(t, 5)
	s := NewStream(c, StreamOptions{})

	assert.Equal(t, 8, s.Size().X)
	assert.Equal(t, 6, s.Size().Y)

	var got []Image
	for img := range s.Get() {
		assert.Equal(t, img.Index, fakecv.FrameValue(img.Mat))
		got = append(got, img)
	}
	require.Len(t, got, 5)
	for i := 1; i < len(got); i++ {
		assert.Equal(t, 40*time.Millisecond, got[i].Time.Sub(got[i-1].Time))
	}
	for i := range got {
		got[i].Release()
	}
	assert.False(t, s.Connected())

	s.Close()
	assert.Equal(t, 1, h.Closes)
}

func TestStreamLoops(t *testing.T) {
	c, _ := newFakeCapture(t, 3)
	restarts := 0
	s := NewStream(c, StreamOptions{Loop: true, OnRestart: func() { restarts++ }})

	var indices []int
	var last time.Time
	for img := range s.Get() {
		indices = append(indices, img.Index)
		if !last.IsZero() {
			assert.True(t, img.Time.After(last), "timeline keeps moving across restarts")
		}
		last = img.Time
		img.Release()
		if len(indices) == 7 {
			break
		}
	}
	s.Close()

	assert.Equal(t, []int{0, 1, 2, 0, 1, 2, 0}, indices)
	assert.Equal(t, 2, restarts)
}

func TestStreamCloseWithoutGet(t *testing.T) {
	c, h := newFakeCapture(t, 3)
	s := NewStream(c, StreamOptions{})
	s.Close()
	assert.Equal(t, 1, h.Closes)
}

func TestStreamStopsWhenPoolExhausted(t *testing.T) {
	c, _ := newFakeCapture(t, 10)
	s := NewStream(c, StreamOptions{PoolSize: 2})
	defer s.Close()

	var held []Image
	for img := range s.Get() {
		// Never released, so the pool runs dry after two frames.
		held = append(held, img)
	}
	assert.Len(t, held, 2)
	for i := range held {
		held[i].Release()
	}
}

func TestMatPoolRecycles(t *testing.T) {
	p := NewMatPool(2)
	a, err := p.NewMat()
	require.NoError(t, err)
	b, err := p.NewMat()
	require.NoError(t, err)
	_, err = p.NewMat()
	assert.Equal(t, ErrPoolExhausted, err)

	p.ReleaseMat(a)
	_, err = p.NewMat()
	require.NoError(t, err)
	assert.Equal(t, 2, p.Allocated())

	p.ReleaseMat(b)
	p.Close()
	assert.Equal(t, 1, p.Allocated())
}

func TestImageReleaseTwicePanics(t *testing.T) {
	img := NewImage(fakecv.NewFrame(1, 2, 2), time.Now(), 0)
	clone := img.Clone()
	img.Release()
	assert.Panics(t, img.Release)
	assert.Equal(t, 1, fakecv.FrameValue(clone.Mat))
	clone.Release()
}
