package httpapi

import (
	"net/http"
	"strconv"
	"sync"

	"nhooyr.io/websocket"
)

// watchHub fans the data version out to websocket subscribers. This is an
// operational tap for dashboards and debugging; clients synchronize through
// the mutation responses and the conditional GET, never through this stream.
type watchHub struct {
	mu   sync.Mutex
	next int64
	subs map[int64]chan int64
}

func newWatchHub() *watchHub {
	return &watchHub{subs: make(map[int64]chan int64)}
}

func (h *watchHub) subscribe() (int64, <-chan int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.next
	h.next++
	ch := make(chan int64, 8)
	h.subs[id] = ch
	return id, ch
}

func (h *watchHub) cancel(id int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs, id)
}

// broadcast never blocks a mutation handler; a subscriber that cannot keep
// up just misses intermediate versions.
func (h *watchHub) broadcast(version int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- version:
		default:
		}
	}
}

// GET /api/watch
func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.Error("websocket accept failed", "error", err)
		return
	}
	defer conn.Close(websocket.StatusInternalError, "closed")

	id, versions := s.watch.subscribe()
	defer s.watch.cancel(id)

	// We never expect inbound messages; CloseRead gives us a context that
	// is canceled when the peer goes away.
	ctx := conn.CloseRead(r.Context())

	version, err := s.store.Version(ctx)
	if err != nil {
		s.logger.Error("unexpected error", "error", err)
		return
	}
	if err := conn.Write(ctx, websocket.MessageText, []byte(strconv.FormatInt(version, 10))); err != nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case version := <-versions:
			if err := conn.Write(ctx, websocket.MessageText, []byte(strconv.FormatInt(version, 10))); err != nil {
				return
			}
		}
	}
}
