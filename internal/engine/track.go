package engine

import "sync"

// Track is an ordered sequence of Groups sharing a name and a priority
// byte. Like Group, it serves both directions: OpenGroup enqueues a
// new group for the far end to dequeue with NextGroup.
type Track struct {
	Name     string
	Priority uint8

	groups chan *Group

	mu     sync.Mutex
	closed chan struct{}
	err    error
	once   sync.Once
}

func newTrack(name string, priority uint8) *Track {
	return &Track{
		Name:     name,
		Priority: priority,
		groups:   make(chan *Group, 8),
		closed:   make(chan struct{}),
	}
}

// OpenGroup creates a new group at sequence and enqueues it for the
// other side to receive via NextGroup.
func (t *Track) OpenGroup(sequence uint64) (*Group, error) {
	select {
	case <-t.closed:
		if err := t.Err(); err != nil {
			return nil, err
		}
		return nil, ErrTrackClosed
	default:
	}
	g := newGroup(sequence)
	select {
	case t.groups <- g:
		return g, nil
	case <-t.closed:
		if err := t.Err(); err != nil {
			return nil, err
		}
		return nil, ErrTrackClosed
	}
}

// NextGroup blocks for the next enqueued group. ok is false once the
// track has closed and no buffered group remains.
func (t *Track) NextGroup() (group *Group, ok bool) {
	select {
	case g := <-t.groups:
		return g, true
	default:
	}
	select {
	case g := <-t.groups:
		return g, true
	case <-t.closed:
		return nil, false
	}
}

// Close ends the track, cascading to every group still queued but not
// yet claimed.
func (t *Track) Close(err error) {
	t.once.Do(func() {
		t.mu.Lock()
		t.err = err
		t.mu.Unlock()
		close(t.closed)
		for {
			select {
			case g := <-t.groups:
				g.CloseWithError(err)
			default:
				return
			}
		}
	})
}

// Closed reports the track's teardown signal.
func (t *Track) Closed() <-chan struct{} { return t.closed }

// Err returns the error Close recorded, or nil for a normal end.
func (t *Track) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}
