package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/zsiec/moqc/internal/control"
	"github.com/zsiec/moqc/internal/objectstream"
	"github.com/zsiec/moqc/internal/transport"
	"github.com/zsiec/moqc/internal/wire"
)

// publishEntry is a locally-published broadcast's bookkeeping: the
// request id its PublishNamespace was sent under and the broadcast
// being served out of it.
type publishEntry struct {
	requestID uint64
	broadcast *Broadcast
}

// publisher is the outbound-broadcast half of a Session.
type publisher struct {
	log *slog.Logger
	mux *control.Mux
	trs transport.Session

	mu      sync.Mutex
	entries map[string]*publishEntry // path -> entry
	byReqID map[uint64]string        // publish-namespace request id -> path
	cancels map[uint64]context.CancelFunc // subscribe request id -> runTrack cancel
}

func newPublisher(log *slog.Logger, mux *control.Mux, trs transport.Session) *publisher {
	return &publisher{
		log:     log,
		mux:     mux,
		trs:     trs,
		entries: make(map[string]*publishEntry),
		byReqID: make(map[uint64]string),
		cancels: make(map[uint64]context.CancelFunc),
	}
}

// publish advertises broadcast under path and, in the background,
// waits for it to close before announcing withdrawal.
func (p *publisher) publish(ctx context.Context, path string, broadcast *Broadcast) error {
	requestID := p.mux.NextRequestID()

	p.mu.Lock()
	p.entries[path] = &publishEntry{requestID: requestID, broadcast: broadcast}
	p.byReqID[requestID] = path
	p.mu.Unlock()

	if err := p.mux.Send(control.PublishNamespace{RequestID: requestID, Namespace: path}); err != nil {
		p.mu.Lock()
		delete(p.entries, path)
		delete(p.byReqID, requestID)
		p.mu.Unlock()
		return err
	}

	go func() {
		select {
		case <-broadcast.Closed():
		case <-ctx.Done():
			return
		}
		p.mu.Lock()
		delete(p.entries, path)
		delete(p.byReqID, requestID)
		p.mu.Unlock()
		if err := p.mux.Send(control.PublishNamespaceDone{Namespace: path}); err != nil {
			p.log.Warn("publish namespace done send failed", "path", path, "error", err)
		}
	}()
	return nil
}

// entryForPath serves handleSubscribe's namespace lookup.
func (p *publisher) entryForPath(path string) (*publishEntry, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.entries[path]
	return e, ok
}

// errorCodeUnknownNamespace is sent back on a Subscribe naming a
// broadcast this publisher never published.
const errorCodeUnknownNamespace = 404

// handleSubscribe answers an incoming Subscribe.
func (p *publisher) handleSubscribe(ctx context.Context, msg control.Subscribe) {
	entry, ok := p.entryForPath(msg.Namespace)
	if !ok {
		p.send(control.SubscribeError{RequestID: msg.RequestID, ErrorCode: errorCodeUnknownNamespace, Reason: "Broadcast not found"})
		return
	}

	track := entry.broadcast.Subscribe(msg.TrackName, msg.SubscriberPriority)

	if err := p.mux.Send(control.SubscribeOk{RequestID: msg.RequestID}); err != nil {
		p.log.Warn("subscribe ok send failed", "request_id", msg.RequestID, "error", err)
		return
	}

	trackCtx, cancel := context.WithCancel(ctx)
	p.mu.Lock()
	p.cancels[msg.RequestID] = cancel
	p.mu.Unlock()

	go p.runTrack(trackCtx, msg.RequestID, track)
}

// handleUnsubscribe tears down a track this publisher is serving in
// response to the peer's Unsubscribe.
func (p *publisher) handleUnsubscribe(msg control.Unsubscribe) {
	p.mu.Lock()
	cancel, ok := p.cancels[msg.RequestID]
	delete(p.cancels, msg.RequestID)
	p.mu.Unlock()
	if ok {
		cancel()
	}
}

// runTrack drains track's groups onto the wire until exhaustion or
// error, then reports PublishDone.
func (p *publisher) runTrack(ctx context.Context, requestID uint64, track *Track) {
	defer func() {
		p.mu.Lock()
		delete(p.cancels, requestID)
		p.mu.Unlock()
	}()

	var closeErr error
	defer func() { track.Close(closeErr) }()

	var wg sync.WaitGroup
	for {
		select {
		case <-ctx.Done():
			closeErr = ErrSessionClosed
			p.send(control.PublishDone{RequestID: requestID, StatusCode: 200, Reason: "OK"})
			wg.Wait()
			return
		default:
		}

		group, ok := track.NextGroup()
		if !ok {
			if err := track.Err(); err != nil {
				p.send(control.PublishDone{RequestID: requestID, StatusCode: 500, Reason: err.Error()})
			} else {
				p.send(control.PublishDone{RequestID: requestID, StatusCode: 200, Reason: "OK"})
			}
			wg.Wait()
			return
		}

		wg.Add(1)
		go func(g *Group) {
			defer wg.Done()
			p.runGroup(ctx, requestID, track.Priority, g)
		}(group)
	}
}

// streamPriority packs a track's subscriber priority and a group's
// sequence number into a single 32-bit transport priority: the high
// byte orders streams by track priority (lower value first), and the
// low 24 bits order groups within the same track by recency (higher
// sequence first), so a fresh group preempts a stale one still
// draining on a congested path.
func streamPriority(trackPriority uint8, groupSequence uint64) int32 {
	age := uint32(groupSequence) & 0x00ffffff
	return int32(uint32(trackPriority)<<24 | (0x00ffffff - age))
}

// runGroup opens a unidirectional stream for group and forwards its
// frames until it ends.
func (p *publisher) runGroup(ctx context.Context, requestID uint64, trackPriority uint8, group *Group) {
	defer group.Close()

	stream, err := p.trs.OpenUniStream(ctx)
	if err != nil {
		p.log.Warn("open uni stream failed", "request_id", requestID, "error", err)
		return
	}

	if ps, ok := stream.(transport.PriorityStream); ok {
		ps.SetPriority(streamPriority(trackPriority, group.Sequence))
	}

	header := objectstream.Header{
		RequestID: requestID,
		GroupID:   group.Sequence,
		HasEnd:    true,
	}
	buf := wire.NewBuffer()
	if err := header.Encode(buf); err != nil {
		stream.CancelWrite(transport.StreamErrorCode(1))
		return
	}
	if _, err := stream.Write(buf.Bytes()); err != nil {
		return
	}

	for {
		select {
		case payload := <-group.frames:
			if !p.writeFrame(stream, header, payload) {
				return
			}
			continue
		default:
		}
		select {
		case payload := <-group.frames:
			if !p.writeFrame(stream, header, payload) {
				return
			}
		case <-group.closed:
			if err := group.Err(); err != nil {
				stream.CancelWrite(transport.StreamErrorCode(1))
				return
			}
			stream.Close()
			return
		case <-ctx.Done():
			stream.CancelWrite(transport.StreamErrorCode(1))
			return
		}
	}
}

// writeFrame encodes and writes a single frame payload, reporting
// whether the stream is still usable for the next frame.
func (p *publisher) writeFrame(stream transport.SendStream, header objectstream.Header, payload []byte) bool {
	fbuf := wire.NewBuffer()
	if err := objectstream.EncodeFrame(fbuf, header, objectstream.Frame{Payload: payload}); err != nil {
		stream.CancelWrite(transport.StreamErrorCode(1))
		return false
	}
	if _, err := stream.Write(fbuf.Bytes()); err != nil {
		return false
	}
	return true
}

// handlePublishNamespaceOk/Error/Cancel report on an outstanding
// publish. publish itself resolves synchronously on send rather than
// waiting for acknowledgement, so these handlers surface the peer's
// response as logging and, for Error/Cancel, close the broadcast
// instead of leaving it silently rejected.
func (p *publisher) handlePublishNamespaceOk(msg control.PublishNamespaceOk) {
	path := p.pathForReqID(msg.RequestID)
	p.log.Debug("publish namespace acknowledged", "path", path, "request_id", msg.RequestID)
}

func (p *publisher) handlePublishNamespaceError(msg control.PublishNamespaceError) {
	path := p.pathForReqID(msg.RequestID)
	p.log.Warn("publish namespace rejected", "path", path, "request_id", msg.RequestID, "error_code", msg.ErrorCode, "reason", msg.Reason)
	p.mu.Lock()
	entry, ok := p.entries[path]
	if ok {
		delete(p.entries, path)
		delete(p.byReqID, msg.RequestID)
	}
	p.mu.Unlock()
	if ok {
		entry.broadcast.Close()
	}
}

func (p *publisher) handlePublishNamespaceCancel(msg control.PublishNamespaceCancel) {
	p.log.Warn("publish namespace cancelled", "path", msg.Namespace, "error_code", msg.ErrorCode, "reason", msg.Reason)
	p.mu.Lock()
	entry, ok := p.entries[msg.Namespace]
	if ok {
		delete(p.entries, msg.Namespace)
		delete(p.byReqID, entry.requestID)
	}
	p.mu.Unlock()
	if ok {
		entry.broadcast.Close()
	}
}

func (p *publisher) pathForReqID(requestID uint64) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.byReqID[requestID]
}

func (p *publisher) send(msg interface{ Encode(*wire.Buffer) error }) {
	if err := p.mux.Send(msg); err != nil {
		p.log.Warn("control send failed", "error", fmt.Errorf("publisher: %w", err))
	}
}
