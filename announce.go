package moq

import "github.com/zsiec/moqc/internal/engine"

// Announcement reports a change in a broadcast path's availability
// under a subscribed prefix.
type Announcement struct {
	Path   Path
	Active bool
}

// Announced is the event stream returned by Session.Announced. It
// replays every currently-active path known at subscription time
// before delivering live updates.
type Announced struct {
	inner *engine.Announced
}

// Next blocks for the next announcement. ok is false once Close has
// been called and no buffered announcement remains.
func (a *Announced) Next() (ann Announcement, ok bool) {
	e, ok := a.inner.Next()
	if !ok {
		return Announcement{}, false
	}
	return Announcement{Path: Path{raw: e.Path}, Active: e.Active}, true
}

// Close unregisters the subscription and unblocks any pending Next.
func (a *Announced) Close() { a.inner.Close() }
