package capture

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/looplab/fsm"
	"github.com/rs/xid"

	"icapture/pkg/video"
)

const (
	StateIdle     = "idle"
	StateArmed    = "armed"
	StateRunning  = "running"
	StateDraining = "draining"

	eventArm    = "arm"
	eventRun    = "run"
	eventDrain  = "drain"
	eventFinish = "finish"
)

func newStateMachine() *fsm.FSM {
	return fsm.NewFSM(
		StateIdle,
		fsm.Events{
			{Name: eventArm, Src: []string{StateIdle}, Dst: StateArmed},
			{Name: eventRun, Src: []string{StateArmed}, Dst: StateRunning},
			{Name: eventDrain, Src: []string{StateRunning}, Dst: StateDraining},
			{Name: eventFinish, Src: []string{StateArmed, StateRunning, StateDraining}, Dst: StateIdle},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				logger.Debugf("recorder: %s -> %s", e.Src, e.Dst)
			},
		},
	)
}

// Session is one running recording.
type Session struct {
	ID        string      `json:"id"`
	Path      string      `json:"path"`
	Codec     video.Codec `json:"codec"`
	FPS       uint32      `json:"fps"`
	Width     uint32      `json:"width"`
	Height    uint32      `json:"height"`
	StartedAt time.Time   `json:"startedAt"`

	start   time.Time
	frames  atomic.Int64
	dropped atomic.Int64
	cancel  context.CancelFunc
	done    chan struct{}
	result  RecordingResult
}

// Frames is the number of frame slots the loop has advanced through so far.
func (s *Session) Frames() int64 {
	return s.frames.Load()
}

// Done is closed once the loop has exited and released the device.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) snapshot() RecordingResult {
	return RecordingResult{
		ID:       s.ID,
		Path:     s.Path,
		Frames:   s.frames.Load(),
		Dropped:  s.dropped.Load(),
		Duration: time.Since(s.start),
	}
}

// RecordingResult is published by the loop when it exits. Err holds the first
// terminal error, if any.
type RecordingResult struct {
	ID       string        `json:"id"`
	Path     string        `json:"path"`
	Frames   int64         `json:"frames"`
	Written  int           `json:"written"`
	Dropped  int64         `json:"dropped"`
	Duration time.Duration `json:"duration"`
	Err      error         `json:"-"`
}

// StartRecording records to <data dir>/<timestamp>.<codec extension>.
func (c *Capture) StartRecording() (*Session, error) {
	c.lock.Lock()
	codec := c.config.Codec
	c.lock.Unlock()

	return c.StartRecordingTo(c.newFilePath("." + codec.Extension()))
}

// StartRecordingTo opens a writer at path using the fps and frame size the
// hardware reports, then records in the background until StopRecording or Close.
func (c *Capture) StartRecordingTo(path string) (*Session, error) {
	logger.Debugf("start recording to '%s'", path)
	release, ok := c.guard.TryAcquire()
	if !ok {
		logger.Error(ErrResourceBusy)
		return nil, ErrResourceBusy
	}

	ctx := context.Background()
	if err := c.state.Event(ctx, eventArm); err != nil {
		release()
		return nil, fmt.Errorf("arm recorder: %w", err)
	}
	s, err := c.spawn(ctx, path, release)
	if err != nil {
		if ferr := c.state.Event(ctx, eventFinish); ferr != nil {
			logger.Warn(ferr)
		}
		release()
		logger.Error(err)
		return nil, err
	}

	return s, nil
}

func (c *Capture) spawn(ctx context.Context, path string, release func()) (*Session, error) {
	fps, err := c.FPS()
	if err != nil {
		return nil, err
	}
	if fps == 0 {
		return nil, fmt.Errorf("device reports fps 0")
	}
	width, height, err := c.FrameSize()
	if err != nil {
		return nil, err
	}

	c.lock.Lock()
	codec := c.config.Codec
	c.lock.Unlock()
	factory, err := c.writers(codec)
	if err != nil {
		return nil, err
	}
	w, err := factory(path, int(width), int(height), int(fps))
	if err != nil {
		return nil, &Error{Kind: ErrCreateFileDirectory, Subject: path, Err: err}
	}

	c.devLock.Lock()
	if c.dev == nil {
		c.devLock.Unlock()
		_ = w.Close()
		return nil, ErrClosed
	}
	c.writer = w
	c.devLock.Unlock()

	loopCtx, cancel := context.WithCancel(context.Background())
	s := &Session{
		ID:        xid.New().String(),
		Path:      path,
		Codec:     codec,
		FPS:       fps,
		Width:     width,
		Height:    height,
		StartedAt: c.clock(),
		start:     time.Now(),
		cancel:    cancel,
		done:      make(chan struct{}),
	}

	c.lock.Lock()
	if c.session != nil {
		logger.Warnf("discard unobserved result of recording %s", c.session.ID)
	}
	c.session = s
	c.lock.Unlock()

	if err = c.state.Event(ctx, eventRun); err != nil {
		logger.Warn(err)
	}
	logger.Infof("recording %s started: %s %dx%d@%d to '%s'", s.ID, codec, width, height, fps, path)
	go c.record(loopCtx, s, release)

	return s, nil
}

func (c *Capture) record(ctx context.Context, s *Session, release func()) {
	defer close(s.done)
	defer release()

	interval := time.Second / (2 * time.Duration(s.FPS))
	var err error
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		default:
		}

		target := int64(time.Since(s.start).Seconds() * float64(s.FPS))
		if s.frames.Load() < target {
			if err = c.recordFrame(s); err != nil {
				logger.Errorf("recording %s: %s", s.ID, err)
				break loop
			}
			s.frames.Add(1)
			continue
		}

		select {
		case <-ctx.Done():
			break loop
		case <-time.After(interval):
		}
	}

	// only this loop moves its own session out of running
	if err == nil && ctx.Err() != nil {
		if derr := c.state.Event(context.Background(), eventDrain); derr != nil {
			logger.Warn(derr)
		}
	}
	c.finish(s, err)
}

// recordFrame holds devLock for exactly one read and one write. A failed read
// drops the slot; a failed write ends the recording.
func (c *Capture) recordFrame(s *Session) error {
	c.devLock.Lock()
	defer c.devLock.Unlock()
	if c.dev == nil {
		return ErrClosed
	}

	frame, err := c.dev.Read()
	if err != nil || frame.Empty() {
		s.dropped.Add(1)
		logger.Debugf("recording %s: drop frame %d: %v", s.ID, s.frames.Load(), err)
		return nil
	}
	if err = c.writer.Add(frame); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}

	return nil
}

func (c *Capture) finish(s *Session, err error) {
	c.devLock.Lock()
	w := c.writer
	c.writer = nil
	c.devLock.Unlock()

	errs := []error{err}
	written := 0
	if w != nil {
		if cerr := w.Close(); cerr != nil {
			errs = append(errs, fmt.Errorf("close writer: %w", cerr))
		}
		written = w.GetCnt()
	}

	s.result = s.snapshot()
	s.result.Written = written
	s.result.Err = errors.Join(errs...)

	if ferr := c.state.Event(context.Background(), eventFinish); ferr != nil {
		logger.Warn(ferr)
	}

	size := "unknown size"
	if fi, serr := os.Stat(s.Path); serr == nil {
		size = humanize.Bytes(uint64(fi.Size()))
	}
	logger.Infof("recording %s finished: %s frames written, %s dropped in %s (%s)",
		s.ID, humanize.Comma(int64(written)), humanize.Comma(s.result.Dropped), s.result.Duration.Round(time.Millisecond), size)
}

// StopRecording cancels the loop and waits for its result. If the loop does
// not exit within the stop timeout ErrStopTimeout is returned with a partial
// result; the loop keeps draining and releases the device on its own.
func (c *Capture) StopRecording() (RecordingResult, error) {
	c.lock.Lock()
	s := c.session
	c.lock.Unlock()
	if s == nil {
		return RecordingResult{}, ErrNotRecording
	}

	logger.Debugf("stop recording %s", s.ID)
	s.cancel()

	select {
	case <-s.done:
	case <-time.After(c.stopTimeout):
		logger.Warnf("recording %s did not stop within %s", s.ID, c.stopTimeout)
		return s.snapshot(), ErrStopTimeout
	}

	c.lock.Lock()
	if c.session == s {
		c.session = nil
	}
	c.lock.Unlock()

	return s.result, s.result.Err
}

// Recording reports whether a recording loop is writing frames.
func (c *Capture) Recording() bool {
	return c.state.Is(StateRunning)
}

// State is the recorder lifecycle state.
func (c *Capture) State() string {
	return c.state.Current()
}

// Session returns the current or last unobserved recording, or nil.
func (c *Capture) Session() *Session {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.session
}
