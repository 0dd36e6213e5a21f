package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/vincent-vinf/go-jsend"

	"icapture/pkg/capture"
	"icapture/pkg/ov"
	"icapture/pkg/preview"
	"icapture/pkg/utils/ps"
)

const (
	webDavStart    = "start"
	webDavShutdown = "shutdown"

	minInterval = time.Second
)

func (s *Server) initCapture(c *gin.Context) {
	var req ov.InitRequest
	// an empty body selects the default config file
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, jsend.SimpleErr(err.Error()))
			return
		}
	}
	cp, err := s.Init(req.Path)
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, jsend.Success(cp.Config()))
}

func (s *Server) deinitCapture(c *gin.Context) {
	if err := s.Deinit(); err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, jsend.Success(nil))
}

func (s *Server) grabFrame(c *gin.Context) {
	cp, stg, err := s.get()
	if err != nil {
		abort(c, err)
		return
	}
	path, err := cp.GrabFrame()
	if err != nil {
		abort(c, err)
		return
	}
	if err = stg.Record(path); err != nil {
		logger.Warnf("record image %s err: %s", path, err)
	}

	c.JSON(http.StatusOK, jsend.Success(path))
}

func (s *Server) startRecording(c *gin.Context) {
	cp, _, err := s.get()
	if err != nil {
		abort(c, err)
		return
	}
	session, err := cp.StartRecording()
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, jsend.Success(session))
}

func (s *Server) stopRecording(c *gin.Context) {
	cp, stg, err := s.get()
	if err != nil {
		abort(c, err)
		return
	}
	res, err := cp.StopRecording()
	if errors.Is(err, capture.ErrNotRecording) || errors.Is(err, capture.ErrStopTimeout) {
		abort(c, err)
		return
	}
	if rerr := stg.Record(res.Path); rerr != nil {
		logger.Warnf("record video %s err: %s", res.Path, rerr)
	}
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, jsend.Success(res))
}

func (s *Server) getFPS(c *gin.Context) {
	cp, _, err := s.get()
	if err != nil {
		abort(c, err)
		return
	}
	fps, err := cp.FPS()
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, jsend.Success(ov.PropertyResponse{Match: fps == cp.Config().FPS, FPS: fps}))
}

func (s *Server) setFPS(c *gin.Context) {
	var req ov.FPSRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, jsend.SimpleErr(err.Error()))
		return
	}
	cp, _, err := s.get()
	if err != nil {
		abort(c, err)
		return
	}
	ok, err := cp.SetFPS(req.FPS)
	if err != nil {
		abort(c, err)
		return
	}
	fps, _ := cp.FPS()

	c.JSON(http.StatusOK, jsend.Success(ov.PropertyResponse{Match: ok, FPS: fps}))
}

func (s *Server) getSize(c *gin.Context) {
	cp, _, err := s.get()
	if err != nil {
		abort(c, err)
		return
	}
	w, h, err := cp.FrameSize()
	if err != nil {
		abort(c, err)
		return
	}
	cfg := cp.Config()

	c.JSON(http.StatusOK, jsend.Success(ov.PropertyResponse{
		Match:  w == cfg.FrameWidth && h == cfg.FrameHeight,
		Width:  w,
		Height: h,
	}))
}

func (s *Server) setSize(c *gin.Context) {
	var req ov.SizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, jsend.SimpleErr(err.Error()))
		return
	}
	cp, _, err := s.get()
	if err != nil {
		abort(c, err)
		return
	}
	ok, err := cp.SetFrameSize(req.Width, req.Height)
	if err != nil {
		abort(c, err)
		return
	}
	w, h, _ := cp.FrameSize()

	c.JSON(http.StatusOK, jsend.Success(ov.PropertyResponse{Match: ok, Width: w, Height: h}))
}

func (s *Server) status(c *gin.Context) {
	st := ov.Status{State: capture.StateIdle}
	if interval := s.scheduler.Interval(); interval > 0 {
		st.Schedule = interval.String()
	}
	cp, _, err := s.get()
	if err == nil {
		info := cp.Device()
		st.Initialized = true
		st.Device = &info
		st.Busy = cp.Busy()
		st.State = cp.State()
		if session := cp.Session(); session != nil {
			st.Session = session
			st.Frames = session.Frames()
		}
	}

	c.JSON(http.StatusOK, jsend.Success(st))
}

func (s *Server) previewMJPEG(c *gin.Context) {
	cp, _, err := s.get()
	if err != nil {
		abort(c, err)
		return
	}
	if cp.Busy() {
		abort(c, capture.ErrResourceBusy)
		return
	}
	stream := preview.NewMJPEGStream(c.Writer)
	if err = cp.Preview(c.Request.Context(), stream); err != nil {
		logger.Warnf("mjpeg preview ended: %s", err)
	}
}

func (s *Server) previewWebSocket(c *gin.Context) {
	cp, _, err := s.get()
	if err != nil {
		abort(c, err)
		return
	}
	if cp.Busy() {
		abort(c, capture.ErrResourceBusy)
		return
	}
	ws, err := preview.Upgrade(c.Writer, c.Request)
	if err != nil {
		logger.Warnf("upgrade preview websocket err: %s", err)
		return
	}
	defer ws.Close()
	if err = cp.Preview(c.Request.Context(), ws); err != nil {
		logger.Warnf("websocket preview ended: %s", err)
	}
}

func (s *Server) startSchedule(c *gin.Context) {
	var req ov.IntervalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, jsend.SimpleErr(err.Error()))
		return
	}
	interval, err := time.ParseDuration(req.Interval)
	if err != nil {
		c.JSON(http.StatusBadRequest, jsend.SimpleErr(err.Error()))
		return
	}
	if interval < minInterval {
		c.JSON(http.StatusBadRequest, jsend.SimpleErr("interval "+interval.String()+" less than "+minInterval.String()))
		return
	}
	cp, _, err := s.get()
	if err != nil {
		abort(c, err)
		return
	}
	s.scheduler.Begin(cp, interval)

	c.JSON(http.StatusOK, jsend.Success(interval.String()))
}

func (s *Server) stopSchedule(c *gin.Context) {
	s.scheduler.Stop()
	c.JSON(http.StatusOK, jsend.Success(nil))
}

func (s *Server) listDevices(c *gin.Context) {
	infos, err := s.backend.List()
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, jsend.Success(infos))
}

func (s *Server) listFiles(c *gin.Context) {
	_, stg, err := s.get()
	if err != nil {
		abort(c, err)
		return
	}
	files, err := stg.List()
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, jsend.Success(files))
}

func (s *Server) getFile(c *gin.Context) {
	_, stg, err := s.get()
	if err != nil {
		abort(c, err)
		return
	}
	path, err := stg.Path(c.Param("name"))
	if err != nil {
		abort(c, err)
		return
	}

	c.File(path)
}

func (s *Server) deleteFile(c *gin.Context) {
	_, stg, err := s.get()
	if err != nil {
		abort(c, err)
		return
	}
	name := c.Param("name")
	if err = stg.Delete(name); err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, jsend.Success("delete "+name+" success"))
}

func (s *Server) ctlWebdav(c *gin.Context) {
	s.lock.Lock()
	w := s.webdav
	s.lock.Unlock()
	if w == nil {
		abort(c, errNotInitialized)
		return
	}

	switch c.Query("op") {
	case webDavStart:
		if w.Running() {
			c.JSON(http.StatusOK, jsend.Success("the webdav service is already enabled"))
			return
		}
		w.Start()
		c.JSON(http.StatusOK, jsend.Success(c.Request.Host))
	case webDavShutdown:
		if !w.Running() {
			c.JSON(http.StatusOK, jsend.SimpleErr("the webdav service has been shut down"))
			return
		}
		w.Stop()
		c.JSON(http.StatusOK, jsend.Success(nil))
	default:
		c.JSON(http.StatusBadRequest, jsend.SimpleErr("unknown operation"))
	}
}

func (s *Server) system(c *gin.Context) {
	dir := "."
	if _, stg, err := s.get(); err == nil {
		dir = stg.Dir()
	}
	st, err := ps.Status(dir)
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, jsend.Success(st))
}
