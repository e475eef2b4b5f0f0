package source

import (
	"sync"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// ErrPoolExhausted is returned when every Mat of a pool is checked out.
var ErrPoolExhausted = errors.New("mat pool exhausted; an Image is probably not being released")

// MatPool recycles Mats so a stream does not allocate per frame. It hands
// out at most max Mats at a time.
type MatPool struct {
	max       int
	allocated int
	available []gocv.Mat
	closed    bool

	l sync.Mutex
}

func NewMatPool(max int) *MatPool {
	return &MatPool{
		max: max,
	}
}

// NewMat returns a free Mat, allocating one if the pool has capacity left.
func (p *MatPool) NewMat() (gocv.Mat, error) {
	p.l.Lock()
	defer p.l.Unlock()
	if n := len(p.available); n > 0 {
		m := p.available[n-1]
		p.available = p.available[:n-1]
		return m, nil
	}
	if p.max > 0 && p.allocated >= p.max {
		return gocv.Mat{}, ErrPoolExhausted
	}
	p.allocated++
	return gocv.NewMat(), nil
}

// ReleaseMat returns m to the pool. Mats released after Close are freed.
func (p *MatPool) ReleaseMat(m gocv.Mat) {
	p.l.Lock()
	defer p.l.Unlock()
	if p.closed {
		m.Close()
		p.allocated--
		return
	}
	p.available = append(p.available, m)
}

// Allocated returns how many Mats the pool currently owns, free or not.
func (p *MatPool) Allocated() int {
	p.l.Lock()
	defer p.l.Unlock()
	return p.allocated
}

// Close frees every idle Mat. Mats still checked out are freed as they come
// back.
func (p *MatPool) Close() {
	p.l.Lock()
	defer p.l.Unlock()
	p.closed = true
	for _, m := range p.available {
		m.Close()
		p.allocated--
	}
	p.available = nil
}
