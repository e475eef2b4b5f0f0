package source

import (
	"image"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"cvvideo/util"
)

const (
	// DefaultPoolSize bounds the Mats a Stream keeps in flight.
	DefaultPoolSize = 64

	// fallbackFPS is used for the file timeline when the backend reports no
	// frame rate.
	fallbackFPS = 30
)

type StreamOptions struct {
	// Live stamps frames with the wall clock. Otherwise frames are placed on
	// a timeline derived from their index and the source frame rate.
	Live bool

	// Loop seeks back to frame 0 at the end instead of ending the stream.
	Loop bool

	// MaxFPS paces delivery. Zero delivers as fast as the receiver takes
	// frames.
	MaxFPS float64

	// PoolSize bounds how many frames may be held by receivers at once.
	PoolSize int

	// OnRestart is called from the stream goroutine each time a looping
	// stream wraps around.
	OnRestart func()
}

// Stream delivers the frames of a Capture on a channel, reading on its own
// goroutine. The Stream owns the Capture from the first Get until Close.
type Stream struct {
	c    *Capture
	opts StreamOptions
	pool *MatPool
	size image.Point

	out  chan Image
	stop *util.Event
	done *util.Event

	start     sync.Once
	started   bool
	connected atomic.Bool
}

var _ Source = (*Stream)(nil)

func NewStream(c *Capture, o StreamOptions) *Stream {
	if o.PoolSize <= 0 {
		o.PoolSize = DefaultPoolSize
	}
	return &Stream{
		c:    c,
		opts: o,
		pool: NewMatPool(o.PoolSize),
		size: c.Size(),
		out:  make(chan Image),
		stop: util.NewEvent(),
		done: util.NewEvent(),
	}
}

// Get starts reading on first use and returns the image channel.
func (s *Stream) Get() <-chan Image {
	s.start.Do(func() {
		s.started = true
		go s.run()
	})
	return s.out
}

func (s *Stream) Size() image.Point {
	return s.size
}

func (s *Stream) Connected() bool {
	return s.connected.Load()
}

// Close stops the reader, waits for it to exit and closes the Capture. A
// read blocked inside the backend delays Close until it returns.
func (s *Stream) Close() {
	s.stop.Notify()
	s.start.Do(func() {})
	if s.started {
		s.done.Wait()
	}
	s.pool.Close()
	if err := s.c.Close(); err != nil {
		log.WithField("src", s.c.Source()).Warnf("Failed to close capture: %v", err)
	}
}

func (s *Stream) run() {
	clog := log.WithField("src", s.c.Source())
	defer s.done.Notify()
	defer close(s.out)

	fps := s.c.FPS()
	if fps <= 0 {
		fps = fallbackFPS
	}
	frameDur := time.Duration(float64(time.Second) / fps)

	var tick <-chan time.Time
	if s.opts.MaxFPS > 0 {
		t := time.NewTicker(time.Duration(float64(time.Second) / s.opts.MaxFPS))
		defer t.Stop()
		tick = t.C
	}

	epoch := time.Now()
	var offset time.Duration
	last, n := -1, 0

	s.connected.Store(true)
	defer s.connected.Store(false)

	for {
		if tick != nil {
			select {
			case <-tick:
			case <-s.stop.Done():
				return
			}
		}

		m, err := s.pool.NewMat()
		if err != nil {
			clog.Errorf("Stopping stream: %v", err)
			return
		}

		idx := n
		if !s.opts.Live {
			idx = s.c.Position()
		}
		if err := s.c.ReadInto(&m); err != nil {
			s.pool.ReleaseMat(m)
			if s.opts.Loop && last >= 0 {
				clog.Debugf("End of stream after frame %d, restarting", last)
				offset += time.Duration(last+1) * frameDur
				last = -1
				s.c.Seek(0)
				if s.opts.OnRestart != nil {
					s.opts.OnRestart()
				}
				continue
			}
			clog.Infof("Stream ended after %d frames", n)
			return
		}
		last = idx
		n++

		t := time.Now()
		if !s.opts.Live {
			t = epoch.Add(offset + time.Duration(idx)*frameDur)
		}
		img := Image{Mat: m, Time: t, Index: idx, pool: s.pool}

		select {
		case s.out <- img:
		case <-s.stop.Done():
			img.Release()
			return
		}
	}
}
