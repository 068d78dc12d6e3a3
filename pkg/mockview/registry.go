package mockview

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Interview is one registered interview. It stays registered until its
// connection is gone and its report, if any, has been delivered.
type Interview struct {
	ID       string
	ClientID string
	Role     string
	Created  time.Time

	cancel context.CancelFunc
}

// Registry tracks live interviews across connections.
type Registry struct {
	interviews sync.Map
	count      atomic.Int64
	draining   atomic.Bool
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Add registers an interview. cancel is called when the registry is closed.
func (r *Registry) Add(iv *Interview, cancel context.CancelFunc) bool {
	if iv == nil || iv.ID == "" {
		return false
	}
	iv.cancel = cancel
	if _, loaded := r.interviews.LoadOrStore(iv.ID, iv); loaded {
		return false
	}
	r.count.Add(1)
	return true
}

func (r *Registry) Get(id string) (*Interview, bool) {
	if v, ok := r.interviews.Load(id); ok {
		return v.(*Interview), true
	}
	return nil, false
}

func (r *Registry) Remove(id string) {
	if _, ok := r.interviews.LoadAndDelete(id); ok {
		r.count.Add(-1)
	}
}

// CloseAll cancels every registered interview. Entries are removed by their
// owners once they have wound down.
func (r *Registry) CloseAll() {
	r.interviews.Range(func(_, value any) bool {
		if iv, ok := value.(*Interview); ok && iv.cancel != nil {
			iv.cancel()
		}
		return true
	})
}

func (r *Registry) Count() int64 {
	return r.count.Load()
}

func (r *Registry) SetDraining(v bool) {
	r.draining.Store(v)
}

func (r *Registry) Draining() bool {
	return r.draining.Load()
}

func (r *Registry) WaitForEmpty(ctx context.Context, interval time.Duration) bool {
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if r.Count() == 0 {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
}
