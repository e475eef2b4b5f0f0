package sink

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cvvideo/internal/fakecv"
	"cvvideo/video/source"
)

type recorder struct {
	values []int
	times  []time.Time
	closed bool
}

func (r *recorder) Put(input source.Image) error {
	r.values = append(r.values, fakecv.FrameValue(input.Mat))
	r.times = append(r.times, input.Time)
	return nil
}

func (r *recorder) Close() error {
	r.closed = true
	return nil
}

func putFrames(t *testing.T, s Sink, start time.Time, every time.Duration, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		img := source.NewImage(fakecv.NewFrame(uint8(i), 2, 2), start.Add(time.Duration(i)*every), i)
		require.NoError(t, s.Put(img))
		img.Release()
	}
}

func TestFPSNormalizeDropsFrames(t *testing.T) {
	r := &recorder{}
	f := NewFPSNormalize(r, 10)
	// 40fps input into a 10fps output keeps every fourth frame.
	putFrames(t, f, time.Unix(100, 0), 25*time.Millisecond, 12)

	assert.Equal(t, []int{0, 4, 8}, r.values)
	assert.Equal(t, 3, f.Written())
	for i := 1; i < len(r.times); i++ {
		assert.Equal(t, 100*time.Millisecond, r.times[i].Sub(r.times[i-1]))
	}

	require.NoError(t, f.Close())
	assert.True(t, r.closed)
}

func TestFPSNormalizeRepeatsFrames(t *testing.T) {
	r := &recorder{}
	f := NewFPSNormalize(r, 10)
	// 5fps input into a 10fps output repeats every frame once.
	putFrames(t, f, time.Unix(100, 0), time.Second/5, 3)

	assert.Equal(t, []int{0, 0, 1, 1, 2}, r.values)
	require.NoError(t, f.Close())
}
