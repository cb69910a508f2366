package hub

import (
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// outboundCap bounds each subscriber's pending-frame queue. A subscriber
// slower than this is dropped from the next broadcast rather than
// allowed to stall ingress for everyone else, per Design Notes.
const outboundCap = 64

// frame is one server-emitted websocket event.
type frame struct {
	ID      string `json:"id"`
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

// subscriber is one connected websocket client's outbound queue and the
// goroutine draining it onto the wire.
type subscriber struct {
	id      string
	out     chan frame
	closed  atomic.Bool
	dropped atomic.Int64
}

// fanout is the hub's bounded-queue-per-subscriber broadcast primitive.
// Grounded on easyweb3tools-easy-paas's SignalHub fanout (per-subscriber
// channel, non-blocking send, drop-and-count on a full queue).
type fanout struct {
	mu   sync.RWMutex
	subs map[string]*subscriber
}

func newFanout() *fanout {
	return &fanout{subs: make(map[string]*subscriber)}
}

// Subscribe registers a new subscriber and returns it; the caller is
// responsible for draining sub.out and calling Unsubscribe on
// disconnect.
func (f *fanout) Subscribe() *subscriber {
	sub := &subscriber{id: uuid.NewString(), out: make(chan frame, outboundCap)}
	f.mu.Lock()
	f.subs[sub.id] = sub
	f.mu.Unlock()
	return sub
}

// Unsubscribe removes and closes a subscriber's queue.
func (f *fanout) Unsubscribe(sub *subscriber) {
	f.mu.Lock()
	delete(f.subs, sub.id)
	f.mu.Unlock()
	if sub.closed.CompareAndSwap(false, true) {
		close(sub.out)
	}
}

// broadcast fans payload out to every connected subscriber under the
// given event name. A subscriber whose queue is full is skipped, not
// blocked on — ingress must never stall because one client is slow.
func (f *fanout) broadcast(event string, payload any) {
	fr := frame{ID: uuid.NewString(), Event: event, Payload: payload}

	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, sub := range f.subs {
		select {
		case sub.out <- fr:
		default:
			sub.dropped.Add(1)
			log.Warn().Str("subscriber", sub.id).Str("event", event).Msg("hub: dropped frame, subscriber queue full")
		}
	}
}

// sendTo delivers payload to exactly one subscriber (used for the
// connect-time state snapshot and error replies).
func (f *fanout) sendTo(sub *subscriber, event string, payload any) {
	fr := frame{ID: uuid.NewString(), Event: event, Payload: payload}
	select {
	case sub.out <- fr:
	default:
		sub.dropped.Add(1)
	}
}

// Connections returns the current subscriber count, for GET /health.
func (f *fanout) Connections() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subs)
}

func marshalFrame(fr frame) ([]byte, error) {
	return json.Marshal(fr)
}
