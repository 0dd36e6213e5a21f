package types

import (
	"time"
)

// PixelFormat is the layout of the bytes a capture device delivers per frame.
type PixelFormat string

const (
	PixelFormatMJPEG PixelFormat = "MJPG"
	PixelFormatRGB24 PixelFormat = "RGB24"
)

// Frame is a single buffer read from a capture device.
type Frame struct {
	Data   []byte
	Format PixelFormat
	Width  int
	Height int
}

func (f Frame) Empty() bool {
	return len(f.Data) == 0 || f.Width <= 0 || f.Height <= 0
}

// Controls maps v4l2 control ids to the values applied when a device is opened.
type Controls map[uint32]int32

type File struct {
	Name    string    `json:"name"`
	Kind    string    `json:"kind"`
	Size    string    `json:"size"`
	ModTime time.Time `json:"modTime"`
}
