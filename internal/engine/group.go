package engine

import "sync"

// Group is an indexed, ordered sequence of frame payloads, carried on
// exactly one unidirectional stream. The same type serves both
// directions: a publisher's application writes frames the session
// reads out to the wire, and a subscriber's session writes frames the
// application reads out.
type Group struct {
	Sequence uint64

	frames chan []byte

	mu     sync.Mutex
	closed chan struct{}
	err    error
	once   sync.Once
}

func newGroup(sequence uint64) *Group {
	return &Group{
		Sequence: sequence,
		frames:   make(chan []byte, 8),
		closed:   make(chan struct{}),
	}
}

// WriteFrame enqueues payload for the reading side. It fails once the
// group has been closed.
func (g *Group) WriteFrame(payload []byte) error {
	select {
	case <-g.closed:
		if err := g.Err(); err != nil {
			return err
		}
		return ErrGroupClosed
	default:
	}
	select {
	case g.frames <- payload:
		return nil
	case <-g.closed:
		if err := g.Err(); err != nil {
			return err
		}
		return ErrGroupClosed
	}
}

// ReadFrame blocks for the next frame. ok is false once the group has
// been closed and no buffered frame remains; the reader should then
// consult Err to distinguish a normal end from a failure.
func (g *Group) ReadFrame() (payload []byte, ok bool) {
	select {
	case p := <-g.frames:
		return p, true
	default:
	}
	select {
	case p := <-g.frames:
		return p, true
	case <-g.closed:
		return nil, false
	}
}

// Close ends the group normally.
func (g *Group) Close() { g.CloseWithError(nil) }

// CloseWithError ends the group, recording err for ReadFrame/WriteFrame
// callers still waiting. Idempotent; only the first call's error sticks.
func (g *Group) CloseWithError(err error) {
	g.once.Do(func() {
		g.mu.Lock()
		g.err = err
		g.mu.Unlock()
		close(g.closed)
	})
}

// Closed reports the group's teardown signal.
func (g *Group) Closed() <-chan struct{} { return g.closed }

// Err returns the error CloseWithError recorded, or nil for a normal end.
func (g *Group) Err() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.err
}
