package sink

import (
	"cvvideo/video/source"
)

// Sink defines a destination for a stream of images, such as a video file or
// a monitor.
type Sink interface {
	// Put hands an image to the sink. The sink must not modify the image or
	// keep references to its Mat once Put returns.
	Put(input source.Image) error

	// Close finalizes the sink.
	Close() error
}
