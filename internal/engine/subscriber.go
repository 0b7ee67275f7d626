package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/zsiec/moqc/internal/control"
	"github.com/zsiec/moqc/internal/objectstream"
	"github.com/zsiec/moqc/internal/transport"
	"github.com/zsiec/moqc/internal/wire"
)

// subscribeResult is delivered to runSubscribe's waiter on SubscribeOk
// or SubscribeError.
type subscribeResult struct {
	err error
}

// namespaceSub is a live SubscribeNamespace registration: the request
// id it was sent under and the Announced endpoint it feeds.
type namespaceSub struct {
	requestID uint64
	prefix    string
	endpoint  *Announced
}

// subscriber is the inbound-broadcast half of a Session.
type subscriber struct {
	log *slog.Logger
	mux *control.Mux
	trs transport.Session

	mu         sync.Mutex
	subscribes map[uint64]*Track              // request id -> track
	callbacks  map[uint64]chan subscribeResult // request id -> pending Subscribe response
	announced  map[string]bool                 // path -> currently active
	consumers  []*namespaceSub
}

func newSubscriber(log *slog.Logger, mux *control.Mux, trs transport.Session) *subscriber {
	return &subscriber{
		log:        log,
		mux:        mux,
		trs:        trs,
		subscribes: make(map[uint64]*Track),
		callbacks:  make(map[uint64]chan subscribeResult),
		announced:  make(map[string]bool),
	}
}

// consume returns a fresh consumer Broadcast whose track requests
// trigger runSubscribe as they arrive.
func (s *subscriber) consume(ctx context.Context, path string) *Broadcast {
	broadcast := newConsumerBroadcast()
	go func() {
		for {
			select {
			case req, ok := <-broadcast.Requests():
				if !ok {
					return
				}
				go s.runSubscribe(ctx, path, req)
			case <-broadcast.Closed():
				return
			case <-ctx.Done():
				return
			}
		}
	}()
	return broadcast
}

// runSubscribe drives one track's Subscribe/SubscribeOk/Unsubscribe
// lifecycle.
func (s *subscriber) runSubscribe(ctx context.Context, path string, req *TrackRequest) {
	requestID := s.mux.NextRequestID()
	track := req.Track

	result := make(chan subscribeResult, 1)
	s.mu.Lock()
	s.subscribes[requestID] = track
	s.callbacks[requestID] = result
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.subscribes, requestID)
		delete(s.callbacks, requestID)
		s.mu.Unlock()
	}()

	if err := s.mux.Send(control.Subscribe{
		RequestID:          requestID,
		Namespace:          path,
		TrackName:          track.Name,
		SubscriberPriority: req.Priority,
	}); err != nil {
		track.Close(err)
		return
	}

	select {
	case res := <-result:
		if res.err != nil {
			track.Close(res.err)
			return
		}
	case <-ctx.Done():
		track.Close(ErrSessionClosed)
		return
	}

	select {
	case <-track.Closed():
	case <-ctx.Done():
	}

	if err := s.mux.Send(control.Unsubscribe{RequestID: requestID}); err != nil {
		s.log.Warn("unsubscribe send failed", "request_id", requestID, "error", err)
	}
}

// handleSubscribeOk/handleSubscribeError/handlePublishDone resolve or
// fail the pending Subscribe registered by runSubscribe.
func (s *subscriber) handleSubscribeOk(msg control.SubscribeOk) {
	s.deliver(msg.RequestID, subscribeResult{})
}

func (s *subscriber) handleSubscribeError(msg control.SubscribeError) {
	s.deliver(msg.RequestID, subscribeResult{err: newSubscribeError(msg.ErrorCode, msg.Reason)})
}

func (s *subscriber) handlePublishDone(msg control.PublishDone) {
	s.mu.Lock()
	track, ok := s.subscribes[msg.RequestID]
	s.mu.Unlock()
	if !ok {
		return
	}
	if msg.StatusCode >= 400 {
		track.Close(newSubscribeError(msg.StatusCode, msg.Reason))
	} else {
		track.Close(nil)
	}
}

func (s *subscriber) deliver(requestID uint64, res subscribeResult) {
	s.mu.Lock()
	ch, ok := s.callbacks[requestID]
	s.mu.Unlock()
	if !ok {
		return
	}
	select {
	case ch <- res:
	default:
	}
}

// handleGroup routes an accepted unidirectional stream's group to its
// track. r must be the same reader DecodeHeader consumed the group
// header from: reconstructing a fresh wire.Reader over stream here
// would lose any frame bytes already pulled into r's internal buffer.
func (s *subscriber) handleGroup(ctx context.Context, header objectstream.Header, r *wire.Reader, stream transport.RecvStream) {
	s.mu.Lock()
	track, ok := s.subscribes[header.RequestID]
	s.mu.Unlock()
	if !ok {
		stream.CancelRead(transport.StreamErrorCode(1))
		return
	}

	group, err := track.OpenGroup(header.GroupID)
	if err != nil {
		stream.CancelRead(transport.StreamErrorCode(1))
		return
	}
	defer group.Close()

	stopped := make(chan struct{})
	defer close(stopped)
	go func() {
		select {
		case <-group.Closed():
			stream.CancelRead(transport.StreamErrorCode(0))
		case <-track.Closed():
			stream.CancelRead(transport.StreamErrorCode(0))
		case <-ctx.Done():
			stream.CancelRead(transport.StreamErrorCode(0))
		case <-stopped:
		}
	}()

	for {
		if r.Done() {
			return
		}
		frame, err := objectstream.DecodeFrame(r, header)
		if err != nil {
			group.CloseWithError(err)
			return
		}
		if frame.End {
			return
		}
		if err := group.WriteFrame(frame.Payload); err != nil {
			return
		}
	}
}

// handlePublishNamespace / handlePublishNamespaceDone maintain the
// announced set and fan out to matching consumers.
func (s *subscriber) handlePublishNamespace(msg control.PublishNamespace) {
	s.mu.Lock()
	if s.announced[msg.Namespace] {
		s.mu.Unlock()
		s.log.Debug("duplicate publish namespace ignored", "path", msg.Namespace)
		return
	}
	s.announced[msg.Namespace] = true
	consumers := s.matchingConsumers(msg.Namespace)
	s.mu.Unlock()

	for _, c := range consumers {
		c.endpoint.emit(Announcement{Path: msg.Namespace, Active: true})
	}
}

func (s *subscriber) handlePublishNamespaceDone(msg control.PublishNamespaceDone) {
	s.mu.Lock()
	if !s.announced[msg.Namespace] {
		s.mu.Unlock()
		s.log.Debug("publish namespace done for unknown path ignored", "path", msg.Namespace)
		return
	}
	delete(s.announced, msg.Namespace)
	consumers := s.matchingConsumers(msg.Namespace)
	s.mu.Unlock()

	for _, c := range consumers {
		c.endpoint.emit(Announcement{Path: msg.Namespace, Active: false})
	}
}

// matchingConsumers must be called with s.mu held.
func (s *subscriber) matchingConsumers(path string) []*namespaceSub {
	var out []*namespaceSub
	for _, c := range s.consumers {
		if hasPathPrefix(path, c.prefix) {
			out = append(out, c)
		}
	}
	return out
}

// announcedFor creates a namespace-activity subscription: it replays
// every currently-active path under prefix, then delivers live
// updates, so a late subscriber sees a consistent view instead of
// only future churn.
func (s *subscriber) announcedFor(prefix string) *Announced {
	requestID := s.mux.NextRequestID()

	var sub *namespaceSub
	endpoint := newAnnounced(32, func() {
		s.mu.Lock()
		for i, c := range s.consumers {
			if c == sub {
				s.consumers = append(s.consumers[:i], s.consumers[i+1:]...)
				break
			}
		}
		s.mu.Unlock()
		if err := s.mux.Send(control.UnsubscribeNamespace{RequestID: requestID}); err != nil {
			s.log.Warn("unsubscribe namespace send failed", "request_id", requestID, "error", err)
		}
	})
	sub = &namespaceSub{requestID: requestID, prefix: prefix, endpoint: endpoint}

	s.mu.Lock()
	var active []string
	for path, isActive := range s.announced {
		if isActive && hasPathPrefix(path, prefix) {
			active = append(active, path)
		}
	}
	s.consumers = append(s.consumers, sub)
	s.mu.Unlock()

	for _, path := range active {
		endpoint.emit(Announcement{Path: path, Active: true})
	}

	if err := s.mux.Send(control.SubscribeNamespace{Namespace: prefix, RequestID: requestID}); err != nil {
		s.log.Warn("subscribe namespace send failed", "request_id", requestID, "error", err)
	}
	return endpoint
}

// hasPathPrefix reports whether path lies under prefix on a
// component boundary: prefix "a/b" matches "a/b/c" but not "a/bc".
func hasPathPrefix(path, prefix string) bool {
	if prefix == "" {
		return true
	}
	if !strings.HasPrefix(path, prefix) {
		return false
	}
	return len(path) == len(prefix) || path[len(prefix)] == '/'
}

type subscribeError struct {
	code   uint64
	reason string
}

func newSubscribeError(code uint64, reason string) error {
	if code == errorCodeUnknownNamespace {
		return fmt.Errorf("%w: %s", ErrUnknownNamespace, reason)
	}
	return &subscribeError{code: code, reason: reason}
}

func (e *subscribeError) Error() string { return e.reason }
