// Package capture exposes a single capture device as a resource that can be
// previewed, grabbed from or recorded, one operation at a time.
package capture

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/looplab/fsm"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"icapture/pkg/config"
	"icapture/pkg/device"
	"icapture/pkg/storage/consts"
	"icapture/pkg/storage/util"
	"icapture/pkg/types"
	"icapture/pkg/utils"
	"icapture/pkg/video"
)

const DefaultStopTimeout = 5 * time.Second

var logger *zap.SugaredLogger

func init() {
	logger = utils.GetLogger()
}

// Device is an opened capture device.
type Device interface {
	Read() (types.Frame, error)
	FPS() (uint32, error)
	SetFPS(fps uint32) error
	FrameSize() (width, height uint32, err error)
	SetFrameSize(width, height uint32) error
	IsOpened() bool
	Close() error
}

// Format is what a device is asked for when it is opened.
type Format struct {
	Width       uint32
	Height      uint32
	FPS         uint32
	PixelFormat types.PixelFormat
	Controls    types.Controls
}

// Backend enumerates and opens devices of one platform.
type Backend interface {
	device.Lister
	Open(info device.Info, format Format) (Device, error)
}

type Option func(*Capture)

// WithGuard makes the handle share g with other handles instead of owning a
// private one.
func WithGuard(g *Guard) Option {
	return func(c *Capture) {
		c.guard = g
	}
}

func WithClock(clock utils.Clock) Option {
	return func(c *Capture) {
		c.clock = clock
	}
}

func WithStopTimeout(d time.Duration) Option {
	return func(c *Capture) {
		c.stopTimeout = d
	}
}

// WithWriters replaces the codec to writer mapping.
func WithWriters(lookup func(video.Codec) (video.Factory, error)) Option {
	return func(c *Capture) {
		c.writers = lookup
	}
}

// Capture is an opened capture device plus, while recording, the writer bound
// to the output file.
type Capture struct {
	lock    sync.Mutex
	config  config.Config
	session *Session

	info        device.Info
	guard       *Guard
	clock       utils.Clock
	writers     func(video.Codec) (video.Factory, error)
	stopTimeout time.Duration
	state       *fsm.FSM

	// devLock guards dev and writer. It is held for one read, write or property
	// call at a time, never for a whole operation.
	devLock sync.Mutex
	dev     Device
	writer  video.Writer
}

// Open resolves, opens and configures the device described by cfg.
func Open(cfg config.Config, backend Backend, opts ...Option) (*Capture, error) {
	logger.Debugf("create capture instance for %s", cfg.Device())
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if cfg.PixelFormat == "" {
		cfg.PixelFormat = types.PixelFormatMJPEG
	}

	c := &Capture{
		config:      cfg,
		guard:       NewGuard(),
		writers:     video.Lookup,
		stopTimeout: DefaultStopTimeout,
		state:       newStateMachine(),
	}
	for _, opt := range opts {
		opt(c)
	}

	info, err := device.Resolve(backend, cfg.DeviceID, cfg.DeviceName)
	if err != nil {
		err = &Error{Kind: ErrDeviceNotFound, Subject: cfg.Device(), Err: err}
		logger.Error(err)
		return nil, err
	}
	c.info = info

	if err = util.MkdirAll(afero.NewOsFs(), cfg.DataDir); err != nil {
		err = &Error{Kind: ErrCreateFileDirectory, Subject: cfg.DataDir, Err: err}
		logger.Error(err)
		return nil, err
	}
	if _, err = c.writers(cfg.Codec); err != nil {
		logger.Error(err)
		return nil, err
	}
	if c.clock == nil {
		c.clock = newClock(cfg.NTPServer)
	}

	dev, err := backend.Open(info, Format{
		Width:       cfg.FrameWidth,
		Height:      cfg.FrameHeight,
		FPS:         cfg.FPS,
		PixelFormat: cfg.PixelFormat,
		Controls:    cfg.Controls,
	})
	if err != nil {
		err = &Error{Kind: ErrDeviceOpen, Subject: info.String(), Err: err}
		logger.Error(err)
		return nil, err
	}
	if !dev.IsOpened() {
		_ = dev.Close()
		err = &Error{Kind: ErrDeviceOpen, Subject: info.String()}
		logger.Error(err)
		return nil, err
	}
	c.dev = dev

	if err = c.negotiate(); err != nil {
		_ = dev.Close()
		logger.Error(err)
		return nil, err
	}
	logger.Infof("capture device %s opened", info)

	return c, nil
}

func (c *Capture) negotiate() error {
	cfg := c.config
	ok, err := negotiateFPS(c.dev, cfg.FPS)
	if err != nil {
		return err
	}
	if !ok && cfg.Strict {
		actual, _ := c.dev.FPS()
		return mismatch("fps", cfg.FPS, actual)
	}
	ok, err = negotiateFrameSize(c.dev, cfg.FrameWidth, cfg.FrameHeight)
	if err != nil {
		return err
	}
	if !ok && cfg.Strict {
		w, h, _ := c.dev.FrameSize()
		return mismatch("frame size", fmt.Sprintf("%dx%d", cfg.FrameWidth, cfg.FrameHeight), fmt.Sprintf("%dx%d", w, h))
	}

	return nil
}

func newClock(server string) utils.Clock {
	if server == "" {
		return utils.LocalClock()
	}
	clock, err := utils.NTPClock(server)
	if err != nil {
		logger.Warnf("fall back to local clock: %s", err)
		return utils.LocalClock()
	}

	return clock
}

// Close stops an active recording, waiting for it to finish, and releases the
// device. Closing an already closed handle is a no-op.
func (c *Capture) Close() error {
	logger.Debug("dispose capture instance")
	var errs []error
	if _, err := c.StopRecording(); err != nil && !errors.Is(err, ErrNotRecording) {
		logger.Warnf("recording ended with error while closing: %s", err)
		errs = append(errs, err)
	}

	c.devLock.Lock()
	defer c.devLock.Unlock()
	if c.dev == nil {
		return errors.Join(errs...)
	}
	if err := c.dev.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close device: %w", err))
	}
	c.dev = nil

	return errors.Join(errs...)
}

// Config returns the configuration as last requested through Open or the setters.
func (c *Capture) Config() config.Config {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.config
}

func (c *Capture) Device() device.Info {
	return c.info
}

// Busy reports whether preview, grab or recording currently holds the guard.
func (c *Capture) Busy() bool {
	return c.guard.Held()
}

func (c *Capture) FPS() (uint32, error) {
	c.devLock.Lock()
	defer c.devLock.Unlock()
	if c.dev == nil {
		return 0, ErrClosed
	}

	return c.dev.FPS()
}

func (c *Capture) FrameSize() (width, height uint32, err error) {
	c.devLock.Lock()
	defer c.devLock.Unlock()
	if c.dev == nil {
		return 0, 0, ErrClosed
	}

	return c.dev.FrameSize()
}

// SetFPS asks the device for fps and reports whether it now runs at exactly
// that rate. A mismatch is not an error unless the config is strict.
func (c *Capture) SetFPS(fps uint32) (bool, error) {
	if fps == 0 {
		return false, fmt.Errorf("fps must be positive")
	}
	if fps > config.MaxFPS {
		return false, fmt.Errorf("fps must not exceed %d, got %d", config.MaxFPS, fps)
	}
	c.devLock.Lock()
	defer c.devLock.Unlock()
	if c.dev == nil {
		return false, ErrClosed
	}
	ok, err := negotiateFPS(c.dev, fps)
	if err != nil {
		return false, err
	}

	c.lock.Lock()
	c.config.FPS = fps
	strict := c.config.Strict
	c.lock.Unlock()
	if !ok && strict {
		actual, _ := c.dev.FPS()
		return false, mismatch("fps", fps, actual)
	}

	return ok, nil
}

// SetFrameSize is SetFPS for the frame dimensions.
func (c *Capture) SetFrameSize(width, height uint32) (bool, error) {
	if width == 0 || height == 0 {
		return false, fmt.Errorf("frame size must be positive, got %dx%d", width, height)
	}
	c.devLock.Lock()
	defer c.devLock.Unlock()
	if c.dev == nil {
		return false, ErrClosed
	}
	ok, err := negotiateFrameSize(c.dev, width, height)
	if err != nil {
		return false, err
	}

	c.lock.Lock()
	c.config.FrameWidth = width
	c.config.FrameHeight = height
	strict := c.config.Strict
	c.lock.Unlock()
	if !ok && strict {
		w, h, _ := c.dev.FrameSize()
		return false, mismatch("frame size", fmt.Sprintf("%dx%d", width, height), fmt.Sprintf("%dx%d", w, h))
	}

	return ok, nil
}

func (c *Capture) read() (types.Frame, error) {
	c.devLock.Lock()
	defer c.devLock.Unlock()
	if c.dev == nil {
		return types.Frame{}, ErrClosed
	}

	return c.dev.Read()
}

// newFilePath names a capture after the current time, e.g.
// <data dir>/2024-05-01_13-45-12.345.png.
func (c *Capture) newFilePath(ext string) string {
	c.lock.Lock()
	dir := c.config.DataDir
	c.lock.Unlock()

	return filepath.Join(dir, c.clock().Format(consts.TimestampLayout)+ext)
}
