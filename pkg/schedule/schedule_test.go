package schedule

import (
	"context"
	"sync"
	"testing"
	"time"

	"icapture/pkg/capture"
)

type grabber struct {
	lock  sync.Mutex
	calls int
	busy  bool
}

func (g *grabber) GrabFrame() (string, error) {
	g.lock.Lock()
	defer g.lock.Unlock()
	g.calls++
	if g.busy {
		return "", capture.ErrResourceBusy
	}

	return "/tmp/2024-05-01_13-45-12.345.png", nil
}

func (g *grabber) Calls() int {
	g.lock.Lock()
	defer g.lock.Unlock()

	return g.calls
}

type catalog struct {
	lock  sync.Mutex
	files []string
}

func (c *catalog) Record(file string) error {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.files = append(c.files, file)

	return nil
}

func (c *catalog) Len() int {
	c.lock.Lock()
	defer c.lock.Unlock()

	return len(c.files)
}

func TestScheduler(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cat := &catalog{}
	s := New(ctx, cat)

	g := &grabber{}
	s.Begin(g, 20*time.Millisecond)
	if s.Interval() != 20*time.Millisecond {
		t.Fatalf("unexpected interval %s", s.Interval())
	}
	time.Sleep(150 * time.Millisecond)
	s.Stop()
	if s.Interval() != 0 {
		t.Fatal("interval should reset on stop")
	}

	calls := g.Calls()
	if calls < 3 {
		t.Fatalf("expected several grabs, got %d", calls)
	}
	if cat.Len() != calls {
		t.Fatalf("recorded %d of %d grabs", cat.Len(), calls)
	}
	time.Sleep(60 * time.Millisecond)
	if g.Calls() != calls {
		t.Fatal("grabbing continued after stop")
	}
}

func TestSchedulerSkipsBusy(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cat := &catalog{}
	s := New(ctx, cat)

	g := &grabber{busy: true}
	s.Begin(g, 20*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	s.Stop()

	if g.Calls() == 0 {
		t.Fatal("grabber never called")
	}
	if cat.Len() != 0 {
		t.Fatalf("busy grabs should not be recorded, got %d", cat.Len())
	}
}
