package moq

import (
	"errors"
	"fmt"

	"github.com/zsiec/moqc/internal/engine"
)

// Broadcast is a named producer/consumer rendezvous: a set of Tracks
// indexed by name. Obtain one from Session.Publish's argument or from
// Session.Consume's return value.
type Broadcast struct {
	inner *engine.Broadcast
}

// NewBroadcast creates a broadcast for local publication. Populate it
// with Subscribe before or after passing it to Session.Publish.
func NewBroadcast() *Broadcast {
	return &Broadcast{inner: engine.NewBroadcast()}
}

// Subscribe returns the named track, creating it on first use.
func (b *Broadcast) Subscribe(name string, priority uint8) *Track {
	return &Track{inner: b.inner.Subscribe(name, priority)}
}

// Close ends the broadcast, cascading to every track it owns.
func (b *Broadcast) Close() { b.inner.Close() }

// Closed resolves once Close has fully cascaded.
func (b *Broadcast) Closed() <-chan struct{} { return b.inner.Closed() }

// Track is an ordered sequence of Groups sharing a name and a
// priority byte. OpenGroup and NextGroup are two views of the same
// pipe: a publishing application calls OpenGroup to send a new group,
// a consuming application calls NextGroup to receive one.
type Track struct {
	inner *engine.Track
}

// Name returns the track's name.
func (t *Track) Name() string { return t.inner.Name }

// Priority returns the track's scheduling hint.
func (t *Track) Priority() uint8 { return t.inner.Priority }

// OpenGroup starts a new group at sequence for the peer to receive.
func (t *Track) OpenGroup(sequence uint64) (*Group, error) {
	g, err := t.inner.OpenGroup(sequence)
	if err != nil {
		return nil, err
	}
	return &Group{inner: g}, nil
}

// NextGroup blocks for the next group. ok is false once the track has
// closed with no group left to deliver.
func (t *Track) NextGroup() (group *Group, ok bool) {
	g, ok := t.inner.NextGroup()
	if !ok {
		return nil, false
	}
	return &Group{inner: g}, true
}

// Close ends the track, cascading to every group still queued but not
// yet returned by NextGroup. A group already returned by NextGroup is
// left open.
func (t *Track) Close(err error) { t.inner.Close(err) }

// Closed reports the track's teardown signal.
func (t *Track) Closed() <-chan struct{} { return t.inner.Closed() }

// Err returns the error Close recorded, or nil for a normal end. An
// unknown-namespace failure is reported as ErrUnknownNamespace so
// callers can match it with errors.Is without importing internal/engine.
func (t *Track) Err() error {
	err := t.inner.Err()
	if errors.Is(err, engine.ErrUnknownNamespace) {
		return fmt.Errorf("%w: %w", ErrUnknownNamespace, err)
	}
	return err
}

// Group is an indexed, ordered sequence of frame payloads, carried on
// exactly one unidirectional stream.
type Group struct {
	inner *engine.Group
}

// Sequence returns the group's index within its track.
func (g *Group) Sequence() uint64 { return g.inner.Sequence }

// WriteFrame enqueues payload for the reading side.
func (g *Group) WriteFrame(payload []byte) error { return g.inner.WriteFrame(payload) }

// ReadFrame blocks for the next frame. ok is false once the group has
// ended.
func (g *Group) ReadFrame() (payload []byte, ok bool) { return g.inner.ReadFrame() }

// Close ends the group normally.
func (g *Group) Close() { g.inner.Close() }

// CloseWithError ends the group, failing any pending read or write.
func (g *Group) CloseWithError(err error) { g.inner.CloseWithError(err) }

// Closed reports the group's teardown signal.
func (g *Group) Closed() <-chan struct{} { return g.inner.Closed() }

// Err returns the error CloseWithError recorded, or nil for a normal
// end.
func (g *Group) Err() error { return g.inner.Err() }
