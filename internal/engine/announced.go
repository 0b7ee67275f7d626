package engine

import "sync"

// Announcement reports a change in a broadcast path's availability
// under a subscribed namespace prefix. Active is true when the path
// became available and false when its publisher withdrew it.
type Announcement struct {
	Path   string
	Active bool
}

// Announced is the event stream returned by Subscriber.Announced. It
// replays every currently-active path known at subscription time
// before delivering live updates, so a late subscriber sees a
// consistent view instead of only future churn.
type Announced struct {
	events  chan Announcement
	cleanup func()

	closeOnce sync.Once
	closed    chan struct{}
}

func newAnnounced(buffer int, cleanup func()) *Announced {
	return &Announced{
		events:  make(chan Announcement, buffer),
		cleanup: cleanup,
		closed:  make(chan struct{}),
	}
}

// emit delivers ann, dropping it if the consumer has stopped reading
// and the stream has since been closed.
func (a *Announced) emit(ann Announcement) {
	select {
	case a.events <- ann:
	case <-a.closed:
	}
}

// Next blocks for the next announcement. ok is false once Close has
// been called and no buffered announcement remains.
func (a *Announced) Next() (ann Announcement, ok bool) {
	select {
	case e := <-a.events:
		return e, true
	default:
	}
	select {
	case e := <-a.events:
		return e, true
	case <-a.closed:
		return Announcement{}, false
	}
}

// Close unregisters the subscription, releasing the subscriber's
// bookkeeping for it and unblocking any pending Next call.
func (a *Announced) Close() {
	a.closeOnce.Do(func() {
		close(a.closed)
		if a.cleanup != nil {
			a.cleanup()
		}
	})
}
