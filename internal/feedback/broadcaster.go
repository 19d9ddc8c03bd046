package feedback

import (
	"sync"

	"github.com/hungson175/teamvoice/internal/observability"
)

// Broadcaster fans finished feedback out to every subscribed observer.
// Each observer has its own bounded buffer; a slow observer loses its
// oldest buffered message, never the whole stream, and never affects
// other observers.
type Broadcaster struct {
	mu         sync.Mutex
	nextID     int
	observers  map[int]chan Message
	bufferSize int
	metrics    *observability.Metrics
}

func NewBroadcaster(bufferSize int, metrics *observability.Metrics) *Broadcaster {
	if bufferSize <= 0 {
		bufferSize = 16
	}
	return &Broadcaster{
		observers:  make(map[int]chan Message),
		bufferSize: bufferSize,
		metrics:    metrics,
	}
}

// Subscribe registers a new observer and returns its delivery channel
// plus a cancel func. After cancel returns, the channel is closed and
// nothing further is delivered.
func (b *Broadcaster) Subscribe() (<-chan Message, func()) {
	ch := make(chan Message, b.bufferSize)

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.observers[id] = ch
	b.mu.Unlock()
	b.metrics.ObserversConnected.Inc()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.observers, id)
			close(ch)
			b.mu.Unlock()
			b.metrics.ObserversConnected.Dec()
		})
	}
	return ch, cancel
}

// Publish delivers msg to the set of observers subscribed at call time.
// Observers joining mid-publish receive only subsequent messages.
func (b *Broadcaster) Publish(msg Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.observers {
		select {
		case ch <- msg:
			continue
		default:
		}
		// Buffer full: drop this observer's oldest message to make room.
		select {
		case <-ch:
			b.metrics.BroadcastDrops.Inc()
		default:
		}
		select {
		case ch <- msg:
		default:
		}
	}
}

func (b *Broadcaster) ObserverCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.observers)
}
