package jobs

import "sync"

// broadcaster fans one producer's Progress events out to many
// subscribers. A subscriber whose buffer fills is dropped rather than
// allowed to block publish — the producer must never stall waiting on
// a slow reader.
type broadcaster struct {
	mu     sync.Mutex
	subs   map[int]chan Progress
	nextID int
	closed bool
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: map[int]chan Progress{}}
}

// subscribe registers a new subscriber with the given buffer size,
// returning its channel and an idempotent unsubscribe function.
func (b *broadcaster) subscribe(bufSize int) (<-chan Progress, func()) {
	if bufSize <= 0 {
		bufSize = 16
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Progress, bufSize)
	if b.closed {
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if c, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(c)
			}
		})
	}
	return ch, unsubscribe
}

// publish delivers p to every live subscriber. A full subscriber buffer
// is treated as a disconnect: that subscriber's channel is closed and
// removed instead of blocking this call.
func (b *broadcaster) publish(p Progress) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for id, ch := range b.subs {
		select {
		case ch <- p:
		default:
			delete(b.subs, id)
			close(ch)
		}
	}
}

// closeAll closes every subscriber channel and marks the broadcaster
// closed; further publish/subscribe calls are no-ops (new subscribers
// get an already-closed channel).
func (b *broadcaster) closeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
