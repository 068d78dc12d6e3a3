package speech

import (
	"context"
	"sync"
)

// RemoteRecognizer drives a recognizer running in the client. Start and Stop
// are forwarded through control; the transport pushes the client's results
// back with Push.
type RemoteRecognizer struct {
	control func(active bool) error

	mu   sync.Mutex
	sink EventSink
}

func NewRemoteRecognizer(control func(active bool) error) *RemoteRecognizer {
	return &RemoteRecognizer{control: control}
}

func (r *RemoteRecognizer) Name() string { return "browser" }

func (r *RemoteRecognizer) Start(_ context.Context, sink EventSink) error {
	r.mu.Lock()
	r.sink = sink
	r.mu.Unlock()
	if r.control == nil {
		return nil
	}
	if err := r.control(true); err != nil {
		r.mu.Lock()
		r.sink = nil
		r.mu.Unlock()
		return err
	}
	return nil
}

func (r *RemoteRecognizer) Stop() error {
	r.mu.Lock()
	r.sink = nil
	r.mu.Unlock()
	if r.control == nil {
		return nil
	}
	return r.control(false)
}

// Push delivers a client event to the open session. Events arriving with no
// open session are dropped.
func (r *RemoteRecognizer) Push(ev Event) {
	r.mu.Lock()
	sink := r.sink
	r.mu.Unlock()
	if sink != nil {
		sink(ev)
	}
}
