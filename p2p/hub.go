package p2p

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
)

const hubInboxSize = 64

var ErrClosed = errors.New("transport closed")

// Hub connects transports within one process. Every message published on one of its transports is
// delivered to all the others.
type Hub struct {
	mu    sync.Mutex
	peers map[*HubTransport]struct{}
}

func NewHub() *Hub {
	return &Hub{peers: make(map[*HubTransport]struct{})}
}

func (h *Hub) Join() *HubTransport {
	t := &HubTransport{
		hub:   h,
		inbox: make(chan []byte, hubInboxSize),
		done:  make(chan struct{}),
	}
	h.mu.Lock()
	h.peers[t] = struct{}{}
	h.mu.Unlock()
	return t
}

func (h *Hub) others(self *HubTransport) []*HubTransport {
	h.mu.Lock()
	defer h.mu.Unlock()
	others := make([]*HubTransport, 0, len(h.peers))
	for p := range h.peers {
		if p != self {
			others = append(others, p)
		}
	}
	return others
}

func (h *Hub) leave(t *HubTransport) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.peers, t)
}

type HubTransport struct {
	hub   *Hub
	inbox chan []byte
	done  chan struct{}
	once  sync.Once
}

func (t *HubTransport) Publish(ctx context.Context, data []byte) error {
	for _, p := range t.hub.others(t) {
		msg := append([]byte(nil), data...)
		select {
		case p.inbox <- msg:
		case <-p.done:
		case <-ctx.Done():
			return errors.WithStack(ctx.Err())
		}
	}
	return nil
}

func (t *HubTransport) Next(ctx context.Context) ([]byte, error) {
	select {
	case data := <-t.inbox:
		return data, nil
	case <-t.done:
		return nil, errors.WithStack(ErrClosed)
	case <-ctx.Done():
		return nil, errors.WithStack(ctx.Err())
	}
}

func (t *HubTransport) PeerCount() int {
	return len(t.hub.others(t))
}

func (t *HubTransport) Close() error {
	t.once.Do(func() {
		t.hub.leave(t)
		close(t.done)
	})
	return nil
}
