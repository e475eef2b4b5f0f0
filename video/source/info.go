package source

// Info summarizes a capture's properties as reported by the backend.
type Info struct {
	Source     string  `json:"source"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	FPS        float64 `json:"fps"`
	Codec      string  `json:"codec"`
	FrameCount int     `json:"frame_count"`

	// DurationSec is FrameCount / FPS, or zero when either is unknown.
	DurationSec float64 `json:"duration_sec"`
}

func (c *Capture) Info() Info {
	i := Info{
		Source:     c.Source(),
		Width:      c.Width(),
		Height:     c.Height(),
		FPS:        c.FPS(),
		Codec:      c.Codec(),
		FrameCount: c.Len(),
	}
	if i.FPS > 0 && i.FrameCount > 0 {
		i.DurationSec = float64(i.FrameCount) / i.FPS
	}
	return i
}
