// Package schedule grabs a still frame at a fixed interval.
package schedule

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"icapture/pkg/capture"
	"icapture/pkg/utils"
)

type Grabber interface {
	GrabFrame() (string, error)
}

// Catalog is told about every file the scheduler writes.
type Catalog interface {
	Record(file string) error
}

type Scheduler struct {
	t        *time.Ticker
	lock     sync.Mutex
	grabber  Grabber
	catalog  Catalog
	interval time.Duration
	logger   *zap.SugaredLogger
}

func New(ctx context.Context, catalog Catalog) *Scheduler {
	t := time.NewTicker(time.Second)
	t.Stop()

	s := &Scheduler{
		t:       t,
		catalog: catalog,
		logger:  utils.GetLogger(),
	}
	s.startDeal(ctx)

	return s
}

// Begin grabs from g every interval until Stop. A grab that collides with a
// preview or a recording is skipped.
func (s *Scheduler) Begin(g Grabber, interval time.Duration) {
	if g == nil || interval <= 0 {
		s.Stop()
		return
	}
	s.lock.Lock()
	s.grabber = g
	s.interval = interval
	s.lock.Unlock()
	s.t.Reset(interval)
	s.logger.Infof("scheduler: grab every %s", interval)
}

func (s *Scheduler) Stop() {
	s.t.Stop()
	s.lock.Lock()
	running := s.grabber != nil
	s.grabber = nil
	s.interval = 0
	s.lock.Unlock()
	if running {
		s.logger.Info("scheduler: stopped")
	}
}

// Interval is zero while stopped.
func (s *Scheduler) Interval() time.Duration {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.interval
}

func (s *Scheduler) startDeal(ctx context.Context) {
	go func(s *Scheduler) {
		for {
			select {
			case start := <-s.t.C:
				s.deal(start)
			case <-ctx.Done():
				s.Stop()
				return
			}
		}
	}(s)
}

func (s *Scheduler) deal(start time.Time) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.logger.Debugf("scheduler: starting deal: %v", start)
	if s.grabber == nil {
		return
	}

	path, err := s.grabber.GrabFrame()
	if errors.Is(err, capture.ErrResourceBusy) {
		s.logger.Debug("scheduler: device busy, skip")
		return
	}
	if err != nil {
		s.logger.Errorf("scheduler: grab frame err: %s", err)
		return
	}
	if s.catalog != nil {
		if err = s.catalog.Record(path); err != nil {
			s.logger.Errorf("scheduler: record image err: %s", err)
		}
	}
	s.logger.Infof("scheduler: took %s to get the image", time.Since(start))
}
