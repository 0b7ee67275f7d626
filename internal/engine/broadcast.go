package engine

import (
	"context"
	"sync"

	"github.com/zsiec/moqc/internal/reactive"
)

// TrackRequest is emitted on a consumer Broadcast's Requests channel
// every time the application asks for a track it hasn't asked for
// before, driving Subscriber.runSubscribe.
type TrackRequest struct {
	Track    *Track
	Priority uint8
}

// Broadcast is a named producer/consumer rendezvous owning a set of
// Tracks indexed by name. The same type backs both roles: a
// published Broadcast the application populates for peers to subscribe
// to, and a consumed Broadcast whose track requests the engine turns
// into outgoing Subscribes.
type Broadcast struct {
	consumer bool
	requests chan *TrackRequest

	mu     sync.Mutex
	tracks map[string]*Track

	closed *reactive.Signal[bool]
	done   chan struct{}
}

// NewBroadcast creates a broadcast for local publication: the
// application populates it with tracks via Subscribe before or after
// calling Session.Publish.
func NewBroadcast() *Broadcast { return newBroadcast(false) }

// newConsumerBroadcast creates a broadcast returned by Session.Consume:
// every first-time Subscribe call also enqueues a TrackRequest.
func newConsumerBroadcast() *Broadcast { return newBroadcast(true) }

func newBroadcast(consumer bool) *Broadcast {
	b := &Broadcast{
		consumer: consumer,
		requests: make(chan *TrackRequest, 16),
		tracks:   make(map[string]*Track),
		closed:   reactive.NewSignal(false),
		done:     make(chan struct{}),
	}

	var teardown *reactive.Effect
	teardown = reactive.NewEffect(context.Background(), func(e *reactive.Effect) error {
		if !reactive.Get(e, b.closed) {
			return nil
		}
		b.mu.Lock()
		tracks := make([]*Track, 0, len(b.tracks))
		for _, t := range b.tracks {
			tracks = append(tracks, t)
		}
		b.mu.Unlock()
		for _, t := range tracks {
			t.Close(ErrBroadcastClosed)
		}
		close(b.done)
		go teardown.Stop()
		return nil
	})
	return b
}

// Subscribe returns the named track, creating it on first use. On a
// consumer broadcast, the first call for a given name also enqueues a
// TrackRequest for the engine to subscribe over the wire; on a
// published broadcast it simply materializes the track a peer's
// incoming Subscribe will be matched against.
func (b *Broadcast) Subscribe(name string, priority uint8) *Track {
	b.mu.Lock()
	if t, ok := b.tracks[name]; ok {
		b.mu.Unlock()
		return t
	}
	t := newTrack(name, priority)
	b.tracks[name] = t
	b.mu.Unlock()

	if b.consumer {
		select {
		case b.requests <- &TrackRequest{Track: t, Priority: priority}:
		case <-b.done:
		}
	}
	return t
}

// Requests exposes the consumer-side track-request stream.
func (b *Broadcast) Requests() <-chan *TrackRequest { return b.requests }

// Close ends the broadcast, cascading to every track it owns.
func (b *Broadcast) Close() { b.closed.Set(true) }

// Closed resolves once Close has fully cascaded.
func (b *Broadcast) Closed() <-chan struct{} { return b.done }
