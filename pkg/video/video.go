package video

import (
	"github.com/icza/mjpeg"

	"icapture/pkg/types"
	"icapture/pkg/utils/image"
)

// Writer is an open output stream bound to one container file.
type Writer interface {
	Add(frame types.Frame) error
	Close() error
	GetCnt() int
}

// Builder writes Motion-JPEG AVI files.
type Builder struct {
	width  int
	height int
	fps    int

	cnt int
	aw  mjpeg.AviWriter
}

func NewBuilder(path string, width, height, fps int) (*Builder, error) {
	aw, err := mjpeg.New(path, int32(width), int32(height), int32(fps))
	if err != nil {
		return nil, err
	}

	return &Builder{
		width:  width,
		height: height,
		fps:    fps,
		aw:     aw,
	}, nil
}

func (b *Builder) Add(frame types.Frame) error {
	data, err := image.ToJPEG(frame)
	if err != nil {
		return err
	}
	if err = b.aw.AddFrame(data); err != nil {
		return err
	}
	b.cnt++

	return nil
}

func (b *Builder) Close() error {
	return b.aw.Close()
}

func (b *Builder) GetCnt() int {
	return b.cnt
}
