package source

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ErrZeroStep is returned when a Slice has a step of zero.
var ErrZeroStep = errors.New("slice step cannot be zero")

// Slice selects frames by half-open start:stop:step bounds. Negative bounds
// count from the end and omitted bounds default to the whole range in the
// direction of the step.
type Slice struct {
	start, stop       int
	hasStart, hasStop bool
	step              int
}

// Span selects frames [start, stop).
func Span(start, stop int) Slice {
	return Slice{start: start, stop: stop, hasStart: true, hasStop: true, step: 1}
}

// From selects frames from start to the end.
func From(start int) Slice {
	return Slice{start: start, hasStart: true, step: 1}
}

// Until selects frames from the beginning up to stop.
func Until(stop int) Slice {
	return Slice{stop: stop, hasStop: true, step: 1}
}

// Everything selects every frame.
func Everything() Slice {
	return Slice{step: 1}
}

// Every returns a copy of s with the given step.
func (s Slice) Every(step int) Slice {
	s.step = step
	return s
}

// ParseSlice parses "start:stop:step" where every part may be omitted, as in
// "2:", ":10", "::2" or "-5:". A bare index "7" selects that single frame.
func ParseSlice(v string) (Slice, error) {
	parts := strings.Split(v, ":")
	if len(parts) > 3 {
		return Slice{}, errors.Errorf("invalid slice %q", v)
	}
	num := func(p string) (int, bool, error) {
		p = strings.TrimSpace(p)
		if p == "" {
			return 0, false, nil
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return 0, false, errors.Wrapf(err, "invalid slice %q", v)
		}
		return n, true, nil
	}

	s := Slice{step: 1}
	var err error
	if s.start, s.hasStart, err = num(parts[0]); err != nil {
		return Slice{}, err
	}
	if len(parts) == 1 {
		if !s.hasStart {
			return Slice{}, errors.Errorf("invalid slice %q", v)
		}
		s.stop, s.hasStop = s.start+1, true
		if s.start == -1 {
			s.hasStop = false
		}
		return s, nil
	}
	if s.stop, s.hasStop, err = num(parts[1]); err != nil {
		return Slice{}, err
	}
	if len(parts) == 3 {
		step, ok, err := num(parts[2])
		if err != nil {
			return Slice{}, err
		}
		if ok {
			s.step = step
		}
	}
	return s, nil
}

func (s Slice) String() string {
	b := func(n int, ok bool) string {
		if !ok {
			return ""
		}
		return strconv.Itoa(n)
	}
	return fmt.Sprintf("%s:%s:%d", b(s.start, s.hasStart), b(s.stop, s.hasStop), s.step)
}

// Bounds resolves s against a sequence of the given length, returning
// concrete start, stop and step values.
func (s Slice) Bounds(length int) (start, stop, step int, err error) {
	step = s.step
	if step == 0 {
		return 0, 0, 0, ErrZeroStep
	}
	if length < 0 {
		length = 0
	}

	lower, upper := 0, length
	if step < 0 {
		lower, upper = -1, length-1
	}

	clamp := func(n int) int {
		if n < 0 {
			n += length
			if n < lower {
				n = lower
			}
		} else if n > upper {
			n = upper
		}
		return n
	}

	if s.hasStart {
		start = clamp(s.start)
	} else if step < 0 {
		start = upper
	} else {
		start = lower
	}
	if s.hasStop {
		stop = clamp(s.stop)
	} else if step < 0 {
		stop = lower
	} else {
		stop = upper
	}
	return start, stop, step, nil
}

// Indices lists the frame indices s selects in a sequence of the given
// length.
func (s Slice) Indices(length int) ([]int, error) {
	start, stop, step, err := s.Bounds(length)
	if err != nil {
		return nil, err
	}
	var out []int
	if step > 0 {
		for i := start; i < stop; i += step {
			out = append(out, i)
		}
	} else {
		for i := start; i > stop; i += step {
			out = append(out, i)
		}
	}
	return out, nil
}
