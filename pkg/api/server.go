// Package api serves the capture resource over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/spf13/afero"
	"github.com/vincent-vinf/go-jsend"
	"go.uber.org/zap"

	"icapture/pkg/capture"
	"icapture/pkg/config"
	"icapture/pkg/device"
	"icapture/pkg/schedule"
	"icapture/pkg/storage"
	"icapture/pkg/utils"
	"icapture/pkg/webdav"
)

var (
	errNotInitialized = errors.New("capture not initialized")

	logger *zap.SugaredLogger
)

func init() {
	logger = utils.GetLogger()
}

type Options struct {
	// ConfigPath is used by init requests that do not name a config file.
	ConfigPath string
	WebdavPort int
	// Capture options applied on every init, e.g. a shared guard.
	CaptureOptions []capture.Option
}

// Server owns at most one capture handle at a time. Handlers take lock only to
// fetch the handle; the handle serialises device access itself.
type Server struct {
	ctx     context.Context
	backend capture.Backend
	opts    Options

	// initLock serialises Init and Deinit so a handle is always closed before
	// the next one is opened.
	initLock sync.Mutex

	lock      sync.Mutex
	capture   *capture.Capture
	stg       *storage.Storage
	webdav    *webdav.Webdav
	stopWatch context.CancelFunc

	scheduler *schedule.Scheduler
}

func New(ctx context.Context, backend capture.Backend, opts Options) *Server {
	if opts.ConfigPath == "" {
		opts.ConfigPath = config.DefaultFile
	}

	s := &Server{
		ctx:     ctx,
		backend: backend,
		opts:    opts,
	}
	s.scheduler = schedule.New(ctx, s)

	return s
}

// Record adds a file written by the current handle to the catalog.
func (s *Server) Record(file string) error {
	_, stg, err := s.get()
	if err != nil {
		return err
	}

	return stg.Record(file)
}

func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(utils.Cors())
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, jsend.SimpleErr("page not found"))
	})

	apiRouter := r.Group("/api")

	captureRouter := apiRouter.Group("/capture")
	captureRouter.POST("/init", s.initCapture)
	captureRouter.POST("/deinit", s.deinitCapture)
	captureRouter.POST("/frame", s.grabFrame)
	captureRouter.POST("/start", s.startRecording)
	captureRouter.POST("/stop", s.stopRecording)
	captureRouter.GET("/fps", s.getFPS)
	captureRouter.PUT("/fps", s.setFPS)
	captureRouter.GET("/size", s.getSize)
	captureRouter.PUT("/size", s.setSize)
	captureRouter.GET("/status", s.status)
	captureRouter.GET("/preview", s.previewMJPEG)
	captureRouter.GET("/preview/ws", s.previewWebSocket)
	captureRouter.PUT("/schedule", s.startSchedule)
	captureRouter.DELETE("/schedule", s.stopSchedule)

	apiRouter.GET("/devices", s.listDevices)

	fileRouter := apiRouter.Group("/files")
	fileRouter.GET("", s.listFiles)
	fileRouter.GET("/:name", s.getFile)
	fileRouter.DELETE("/:name", s.deleteFile)

	deviceRouter := apiRouter.Group("/device")
	deviceRouter.PUT("/webdav", s.ctlWebdav)

	apiRouter.GET("/system", s.system)

	return r
}

func (s *Server) get() (*capture.Capture, *storage.Storage, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.capture == nil {
		return nil, nil, errNotInitialized
	}

	return s.capture, s.stg, nil
}

// Init opens the device described by the config file at path, replacing any
// handle opened before.
func (s *Server) Init(path string) (*capture.Capture, error) {
	if path == "" {
		path = s.opts.ConfigPath
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	s.initLock.Lock()
	defer s.initLock.Unlock()
	if err = s.deinit(); err != nil && !errors.Is(err, errNotInitialized) {
		logger.Warnf("close previous capture err: %s", err)
	}

	cp, err := capture.Open(cfg, s.backend, s.opts.CaptureOptions...)
	if err != nil {
		return nil, err
	}
	stg, err := storage.New(afero.NewOsFs(), cfg.DataDir)
	if err != nil {
		_ = cp.Close()
		return nil, fmt.Errorf("init storage: %w", err)
	}

	watchCtx, stopWatch := context.WithCancel(s.ctx)
	go func() {
		if err := config.Watch(watchCtx, path, func(next config.Config) {
			s.reconfigure(cp, next)
		}); err != nil {
			logger.Warnf("config file %s is not watched: %s", path, err)
		}
	}()

	s.lock.Lock()
	s.capture = cp
	s.stg = stg
	s.webdav = webdav.New(s.ctx, s.opts.WebdavPort, cfg.DataDir)
	s.stopWatch = stopWatch
	s.lock.Unlock()

	return cp, nil
}

// reconfigure applies the properties that can change on an open handle.
func (s *Server) reconfigure(cp *capture.Capture, next config.Config) {
	cur := cp.Config()
	if next.FPS != cur.FPS {
		if _, err := cp.SetFPS(next.FPS); err != nil {
			logger.Warnf("apply fps from config err: %s", err)
		}
	}
	if next.FrameWidth != cur.FrameWidth || next.FrameHeight != cur.FrameHeight {
		if _, err := cp.SetFrameSize(next.FrameWidth, next.FrameHeight); err != nil {
			logger.Warnf("apply frame size from config err: %s", err)
		}
	}
}

// Deinit stops an active recording and closes the device.
func (s *Server) Deinit() error {
	s.initLock.Lock()
	defer s.initLock.Unlock()

	return s.deinit()
}

func (s *Server) deinit() error {
	s.lock.Lock()
	cp := s.capture
	s.capture = nil
	s.stg = nil
	if s.stopWatch != nil {
		s.stopWatch()
		s.stopWatch = nil
	}
	if s.webdav != nil {
		s.webdav.Stop()
		s.webdav = nil
	}
	s.lock.Unlock()
	if cp == nil {
		return errNotInitialized
	}
	s.scheduler.Stop()

	return cp.Close()
}

func (s *Server) Close() error {
	err := s.Deinit()
	if errors.Is(err, errNotInitialized) {
		return nil
	}

	return err
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, capture.ErrResourceBusy):
		return http.StatusConflict
	case errors.Is(err, errNotInitialized),
		errors.Is(err, capture.ErrNotRecording),
		errors.Is(err, capture.ErrClosed),
		errors.Is(err, capture.ErrPropertyMismatch),
		errors.Is(err, capture.ErrUnsupportedCodec),
		errors.Is(err, storage.ErrInvalidName):
		return http.StatusBadRequest
	case errors.Is(err, capture.ErrDeviceNotFound),
		errors.Is(err, device.ErrNotFound),
		errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func abort(c *gin.Context, err error) {
	code := statusOf(err)
	if code == http.StatusInternalServerError {
		logger.Error(err)
	}
	c.JSON(code, jsend.SimpleErr(err.Error()))
}
