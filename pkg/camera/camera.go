// Package camera opens V4L2 capture devices through go4vl.
package camera

import (
	"errors"
	"fmt"
	"time"

	v4l2dev "github.com/vladimirvivien/go4vl/device"
	"github.com/vladimirvivien/go4vl/v4l2"

	"icapture/pkg/capture"
	"icapture/pkg/device"
	"icapture/pkg/types"
)

const (
	DefaultDevice      = "/dev/video0"
	DefaultReadTimeout = 2 * time.Second
)

var ErrReadTimeout = errors.New("timed out waiting for a frame")

// Backend enumerates /dev/video* nodes that can capture video.
type Backend struct {
	ReadTimeout time.Duration
}

func NewBackend() *Backend {
	return &Backend{ReadTimeout: DefaultReadTimeout}
}

// List returns capture-capable nodes in path order. Nodes that only carry
// metadata (every UVC camera exposes one) are skipped and do not take an index.
func (b *Backend) List() ([]device.Info, error) {
	paths, err := v4l2dev.GetAllDevicePaths()
	if err != nil {
		return nil, err
	}

	var infos []device.Info
	for _, path := range paths {
		dev, err := v4l2dev.Open(path)
		if err != nil {
			logger.Debugf("skip %s: %s", path, err)
			continue
		}
		name := dev.Capability().Card
		_ = dev.Close()
		infos = append(infos, device.Info{Index: len(infos), Path: path, Name: name})
	}

	return infos, nil
}

func (b *Backend) Open(info device.Info, format capture.Format) (capture.Device, error) {
	c := New(info.Path, format)
	if b.ReadTimeout > 0 {
		c.readTimeout = b.ReadTimeout
	}
	if err := c.Start(); err != nil {
		return nil, err
	}

	return c, nil
}

func pixelFormat(f types.PixelFormat) (v4l2.FourCCType, error) {
	switch f {
	case "", types.PixelFormatMJPEG:
		return v4l2.PixelFmtMJPEG, nil
	case types.PixelFormatRGB24:
		return v4l2.PixelFmtRGB24, nil
	default:
		return 0, fmt.Errorf("unsupported pixel format %q", f)
	}
}
