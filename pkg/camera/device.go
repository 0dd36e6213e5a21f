package camera

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	v4l2dev "github.com/vladimirvivien/go4vl/device"
	"github.com/vladimirvivien/go4vl/v4l2"

	"icapture/pkg/capture"
	"icapture/pkg/ov"
	"icapture/pkg/types"
)

var (
	StartedErr    = errors.New("already started")
	NotStartedErr = errors.New("camera not started")
)

// Camera is a streaming V4L2 device. Changing the frame size or rate restarts
// the stream, since most drivers refuse format changes while buffers are mapped.
type Camera struct {
	devName     string
	readTimeout time.Duration

	lock   sync.Mutex
	cancel context.CancelFunc
	camera *v4l2dev.Device
	frames <-chan []byte
	width  int
	height int

	format capture.Format
}

func New(devName string, format capture.Format) *Camera {
	return &Camera{devName: devName, format: format, readTimeout: DefaultReadTimeout}
}

func (c *Camera) open() error {
	if c.camera != nil {
		return StartedErr
	}
	fourcc, err := pixelFormat(c.format.PixelFormat)
	if err != nil {
		return err
	}
	camera, err := v4l2dev.Open(
		c.devName,
		v4l2dev.WithBufferSize(1),
		v4l2dev.WithPixFormat(v4l2.PixFormat{
			PixelFormat: fourcc,
			Width:       c.format.Width,
			Height:      c.format.Height,
			Field:       v4l2.FieldNone,
		}),
		v4l2dev.WithFPS(c.format.FPS),
	)
	if err != nil {
		return err
	}
	c.camera = camera

	return nil
}

// Start opens and starts streaming with the current format.
func (c *Camera) Start() error {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.start()
}

func (c *Camera) start() error {
	logger.Infof("start camera %s in %dx%d@%d", c.devName, c.format.Width, c.format.Height, c.format.FPS)
	if err := c.open(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	if err := c.camera.Start(ctx); err != nil {
		cancel()
		_ = c.camera.Close()
		c.camera = nil
		return err
	}
	pix, err := c.camera.GetPixFormat()
	if err != nil {
		logger.Warnf("get pix format: %s", err)
		pix.Width, pix.Height = c.format.Width, c.format.Height
	}
	c.width, c.height = int(pix.Width), int(pix.Height)
	c.frames = c.camera.GetOutput()
	applyControls(c.camera, c.format.Controls)

	return nil
}

func (c *Camera) stop() error {
	if c.cancel != nil {
		// let the streaming goroutine reach ctx.Done and stop before Close
		c.cancel()
		time.Sleep(100 * time.Millisecond)
		c.cancel = nil
	}
	c.frames = nil
	if c.camera != nil {
		err := c.camera.Close()
		c.camera = nil
		return err
	}

	return nil
}

// restart retries on EBUSY while the driver releases its buffers.
func (c *Camera) restart() error {
	if err := c.stop(); err != nil {
		logger.Warnf("stop camera: %s", err)
	}
	time.Sleep(50 * time.Millisecond)
	var err error
	for i := 0; i < 5; i++ {
		if err = c.start(); err == nil {
			return nil
		}
		if !isBusyErr(err) {
			break
		}
		logger.Warnf("failed to restart camera will retry %d/5: %v", i+1, err)
		time.Sleep(150 * time.Millisecond)
	}

	return err
}

func isBusyErr(err error) bool {
	if err == nil {
		return false
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "busy") || strings.Contains(s, "ebusy")
}

func (c *Camera) Read() (types.Frame, error) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.camera == nil {
		return types.Frame{}, NotStartedErr
	}

	select {
	case frame, ok := <-c.frames:
		if !ok {
			return types.Frame{}, errors.New("capture stream closed")
		}
		data := make([]byte, len(frame))
		copy(data, frame)
		return types.Frame{
			Data:   data,
			Format: c.pixelFormat(),
			Width:  c.width,
			Height: c.height,
		}, nil
	case <-time.After(c.readTimeout):
		return types.Frame{}, ErrReadTimeout
	}
}

func (c *Camera) pixelFormat() types.PixelFormat {
	if c.format.PixelFormat == "" {
		return types.PixelFormatMJPEG
	}

	return c.format.PixelFormat
}

func (c *Camera) FPS() (uint32, error) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.camera == nil {
		return 0, NotStartedErr
	}

	return c.camera.GetFrameRate()
}

func (c *Camera) SetFPS(fps uint32) error {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.camera == nil {
		return NotStartedErr
	}
	c.format.FPS = fps

	return c.restart()
}

func (c *Camera) FrameSize() (width, height uint32, err error) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.camera == nil {
		return 0, 0, NotStartedErr
	}
	pix, err := c.camera.GetPixFormat()
	if err != nil {
		return 0, 0, err
	}

	return pix.Width, pix.Height, nil
}

func (c *Camera) SetFrameSize(width, height uint32) error {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.camera == nil {
		return NotStartedErr
	}
	c.format.Width, c.format.Height = width, height

	return c.restart()
}

func (c *Camera) IsOpened() bool {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.camera != nil
}

func (c *Camera) Close() error {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.stop()
}

// SetControlValue applies one control now and on every restart.
func (c *Camera) SetControlValue(id uint32, value int32) error {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.format.Controls == nil {
		c.format.Controls = make(types.Controls)
	}
	c.format.Controls[id] = value
	if c.camera == nil {
		return nil
	}

	return c.camera.SetControlValue(v4l2.CtrlID(id), v4l2.CtrlValue(value))
}

// Controls lists the controls the driver exposes with their current values.
func (c *Camera) Controls() ([]ov.Control, error) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.camera == nil {
		return nil, NotStartedErr
	}

	return queryControls(c.camera)
}

func (c *Camera) GetMaxSize() (width, height int, err error) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.camera == nil {
		return 0, 0, NotStartedErr
	}
	fourcc, err := pixelFormat(c.format.PixelFormat)
	if err != nil {
		return 0, 0, err
	}

	sizes, err := v4l2.GetAllFormatFrameSizes(c.camera.Fd())
	if err != nil {
		return
	}
	for _, size := range sizes {
		if size.PixelFormat == fourcc {
			width = int(size.Size.MaxWidth)
			height = int(size.Size.MaxHeight)

			return
		}
	}
	err = fmt.Errorf("unable to determine the maximum pixels of the camera")

	return
}
