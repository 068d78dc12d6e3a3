package mockview

import (
	"context"
	"encoding/base64"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/harunnryd/mockview/pkg/speech"
	"github.com/harunnryd/mockview/pkg/transports/web"
)

var ErrPlaybackTimeout = errors.New("mockview: playback not acknowledged")

// clientPlayer ships clips to the browser and waits for its playback_ended
// or playback_error acknowledgement.
type clientPlayer struct {
	client  Client
	timeout time.Duration

	mu      sync.Mutex
	pending map[string]chan error
}

func newClientPlayer(client Client, timeout time.Duration) *clientPlayer {
	return &clientPlayer{
		client:  client,
		timeout: timeout,
		pending: make(map[string]chan error),
	}
}

// Play sends clip and blocks until the client acknowledges it. Clip ids are
// version 7 UUIDs, so a later clip always sorts after an earlier one.
func (p *clientPlayer) Play(ctx context.Context, clip speech.Clip) error {
	id, err := uuid.NewV7()
	if err != nil {
		return err
	}
	return p.play(ctx, id.String(), clip)
}

func (p *clientPlayer) play(ctx context.Context, id string, clip speech.Clip) error {
	ack := make(chan error, 1)
	p.mu.Lock()
	p.pending[id] = ack
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		delete(p.pending, id)
		p.mu.Unlock()
	}()

	err := p.client.Send(web.NewOutbound(web.MsgAudio, map[string]any{
		"clip_id": id,
		"mime":    clip.MIME,
		"data":    base64.StdEncoding.EncodeToString(clip.Audio),
	}))
	if err != nil {
		return err
	}

	timer := time.NewTimer(p.timeout)
	defer timer.Stop()
	select {
	case err := <-ack:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrPlaybackTimeout
	}
}

// Ack resolves a pending clip. Unknown ids are ignored.
func (p *clientPlayer) Ack(clipID string, err error) bool {
	p.mu.Lock()
	ack, ok := p.pending[clipID]
	p.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case ack <- err:
	default:
	}
	return true
}
