// Package capturetest provides an in-memory capture backend for tests.
package capturetest

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"sync"
	"time"

	"icapture/pkg/capture"
	"icapture/pkg/device"
	"icapture/pkg/types"
	"icapture/pkg/video"
)

var errDeviceClosed = errors.New("fake device closed")

// Backend enumerates Devices and opens them as synthetic cameras.
type Backend struct {
	Devices []device.Info
	ListErr error
	OpenErr error
	// NotOpened makes Open return a device that reports IsOpened false.
	NotOpened bool
	// MaxFPS, MaxWidth and MaxHeight clamp requested properties when non-zero.
	MaxFPS    uint32
	MaxWidth  uint32
	MaxHeight uint32
	// ReadDelay is slept on every Read.
	ReadDelay time.Duration
	// OpenDelay is slept on every Open.
	OpenDelay time.Duration

	mu        sync.Mutex
	listCalls int
	openCalls int
	last      *Device
	opened    []*Device
}

// NewBackend lists one device per name, at /dev/video0, /dev/video1...
func NewBackend(names ...string) *Backend {
	b := &Backend{}
	for i, name := range names {
		b.Devices = append(b.Devices, device.Info{Index: i, Path: fmt.Sprintf("/dev/video%d", i), Name: name})
	}

	return b
}

func (b *Backend) List() ([]device.Info, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listCalls++
	if b.ListErr != nil {
		return nil, b.ListErr
	}

	return append([]device.Info(nil), b.Devices...), nil
}

func (b *Backend) Open(info device.Info, format capture.Format) (capture.Device, error) {
	b.mu.Lock()
	delay := b.OpenDelay
	b.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.openCalls++
	if b.OpenErr != nil {
		return nil, b.OpenErr
	}
	d := &Device{
		Info:        info,
		pixelFormat: format.PixelFormat,
		maxFPS:      b.MaxFPS,
		maxWidth:    b.MaxWidth,
		maxHeight:   b.MaxHeight,
		delay:       b.ReadDelay,
		opened:      !b.NotOpened,
	}
	if d.pixelFormat == "" {
		d.pixelFormat = types.PixelFormatMJPEG
	}
	d.fps = d.clampFPS(format.FPS)
	d.width, d.height = d.clampSize(format.Width, format.Height)
	b.last = d
	b.opened = append(b.opened, d)

	return d, nil
}

func (b *Backend) ListCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.listCalls
}

func (b *Backend) OpenCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.openCalls
}

// Opened returns every device opened so far, in order.
func (b *Backend) Opened() []*Device {
	b.mu.Lock()
	defer b.mu.Unlock()

	return append([]*Device(nil), b.opened...)
}

// Last returns the most recently opened device.
func (b *Backend) Last() *Device {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.last
}

// Device produces solid gray frames of its current size.
type Device struct {
	Info device.Info

	mu          sync.Mutex
	pixelFormat types.PixelFormat
	fps         uint32
	width       uint32
	height      uint32
	maxFPS      uint32
	maxWidth    uint32
	maxHeight   uint32
	delay       time.Duration
	opened      bool
	closed      bool
	readErr     error
	reads       int
	cache       types.Frame
}

func (d *Device) clampFPS(fps uint32) uint32 {
	if d.maxFPS > 0 && fps > d.maxFPS {
		return d.maxFPS
	}

	return fps
}

func (d *Device) clampSize(w, h uint32) (uint32, uint32) {
	if d.maxWidth > 0 && w > d.maxWidth {
		w = d.maxWidth
	}
	if d.maxHeight > 0 && h > d.maxHeight {
		h = d.maxHeight
	}

	return w, h
}

func (d *Device) Read() (types.Frame, error) {
	d.mu.Lock()
	delay := d.delay
	d.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return types.Frame{}, errDeviceClosed
	}
	d.reads++
	if d.readErr != nil {
		return types.Frame{}, d.readErr
	}
	w, h := int(d.width), int(d.height)
	if d.cache.Width == w && d.cache.Height == h && !d.cache.Empty() {
		return d.cache, nil
	}

	frame := types.Frame{Format: d.pixelFormat, Width: w, Height: h}
	switch d.pixelFormat {
	case types.PixelFormatRGB24:
		frame.Data = bytes.Repeat([]byte{0x80}, w*h*3)
	default:
		img := image.NewGray(image.Rect(0, 0, w, h))
		for i := range img.Pix {
			img.Pix[i] = 0x80
		}
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 75}); err != nil {
			return types.Frame{}, err
		}
		frame.Data = buf.Bytes()
	}
	d.cache = frame

	return frame, nil
}

func (d *Device) FPS() (uint32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return 0, errDeviceClosed
	}

	return d.fps, nil
}

func (d *Device) SetFPS(fps uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return errDeviceClosed
	}
	d.fps = d.clampFPS(fps)

	return nil
}

func (d *Device) FrameSize() (uint32, uint32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return 0, 0, errDeviceClosed
	}

	return d.width, d.height, nil
}

func (d *Device) SetFrameSize(width, height uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return errDeviceClosed
	}
	d.width, d.height = d.clampSize(width, height)

	return nil
}

func (d *Device) IsOpened() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.opened && !d.closed
}

func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true

	return nil
}

// SetReadErr makes every following Read fail with err until reset with nil.
func (d *Device) SetReadErr(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.readErr = err
}

func (d *Device) Reads() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.reads
}

func (d *Device) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.closed
}

// Writer counts frames instead of encoding them.
type Writer struct {
	// AddErr fails every Add.
	AddErr error
	// CloseDelay is slept in Close.
	CloseDelay time.Duration

	mu     sync.Mutex
	Path   string
	cnt    int
	closed bool
}

func (w *Writer) Add(types.Frame) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.AddErr != nil {
		return w.AddErr
	}
	w.cnt++

	return nil
}

func (w *Writer) Close() error {
	if w.CloseDelay > 0 {
		time.Sleep(w.CloseDelay)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true

	return nil
}

func (w *Writer) GetCnt() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.cnt
}

func (w *Writer) Closed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.closed
}

// Writers returns a lookup for capture.WithWriters that hands out w for every codec.
func (w *Writer) Writers() func(video.Codec) (video.Factory, error) {
	return func(video.Codec) (video.Factory, error) {
		return func(path string, _, _, _ int) (video.Writer, error) {
			w.mu.Lock()
			w.Path = path
			w.mu.Unlock()
			return w, nil
		}, nil
	}
}

var _ capture.Device = (*Device)(nil)
var _ capture.Backend = (*Backend)(nil)
