package capture

import (
	"sync"
	"sync/atomic"
)

// Guard admits at most one of preview, grab and recording at a time. It never
// blocks: a caller that loses the race is rejected with ErrResourceBusy.
type Guard struct {
	held atomic.Bool
}

// DefaultGuard can be shared by every handle in a process (see WithGuard) when
// exclusivity has to span devices or re-opened handles.
var DefaultGuard = NewGuard()

func NewGuard() *Guard {
	return &Guard{}
}

// TryAcquire takes the token. The returned release func is safe to call more
// than once; only the first call clears the token.
func (g *Guard) TryAcquire() (release func(), ok bool) {
	if !g.held.CompareAndSwap(false, true) {
		return nil, false
	}
	var once sync.Once

	return func() {
		once.Do(func() {
			g.held.Store(false)
		})
	}, true
}

func (g *Guard) Held() bool {
	return g.held.Load()
}
