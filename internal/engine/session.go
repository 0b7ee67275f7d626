package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/zsiec/moqc/internal/control"
	"github.com/zsiec/moqc/internal/objectstream"
	"github.com/zsiec/moqc/internal/transport"
	"github.com/zsiec/moqc/internal/wire"
)

// maxRequestID is the flow-control window advertised at connect time.
// Peer advertisements of the same are logged and discarded; this
// client never blocks on request-id budget.
const maxRequestID = (1 << 31) - 1

// Session multiplexes one transport.Session's control stream and
// unidirectional object streams into the Publisher/Subscriber halves
// of the publish/subscribe surface.
type Session struct {
	ID  string
	log *slog.Logger

	trs transport.Session
	mux *control.Mux

	pub *publisher
	sub *subscriber

	group  *errgroup.Group
	ctx    context.Context
	cancel context.CancelFunc
	closed chan struct{}
}

// NewSession wraps an established transport session. Run must be
// called before the control loop starts processing traffic.
func NewSession(trs transport.Session, log *slog.Logger) *Session {
	if log == nil {
		log = slog.Default()
	}
	id := uuid.NewString()
	log = log.With("session_id", id)
	return &Session{
		ID:     id,
		log:    log,
		trs:    trs,
		closed: make(chan struct{}),
	}
}

// Setup opens the control stream and performs the version-negotiation
// handshake. It must be called, and must succeed, before Run.
func (s *Session) Setup(ctx context.Context) error {
	controlStream, err := s.trs.OpenStream(ctx)
	if err != nil {
		return fmt.Errorf("engine: open control stream: %w", err)
	}
	s.mux = control.NewMux(controlStream)
	s.pub = newPublisher(s.log, s.mux, s.trs)
	s.sub = newSubscriber(s.log, s.mux, s.trs)
	return s.handshake()
}

// Run races the control loop against the object-stream acceptor until
// either fails or ctx is cancelled. Setup must have already
// succeeded.
func (s *Session) Run(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)
	defer s.cancel()
	defer close(s.closed)

	group, groupCtx := errgroup.WithContext(s.ctx)
	s.group = group

	group.Go(func() error { return s.runControlLoop(groupCtx) })
	group.Go(func() error { return s.runObjectStreams(groupCtx) })

	err := group.Wait()
	s.trs.CloseWithError(0, "session closed")
	if s.ctx.Err() != nil {
		// Shut down via Close or ctx: the loops' errors are the
		// expected result of tearing the transport down.
		return nil
	}
	return err
}

func (s *Session) handshake() error {
	if err := s.mux.Send(control.ClientSetup{Versions: []uint64{control.VersionDraft14}}); err != nil {
		return fmt.Errorf("engine: send client setup: %w", err)
	}
	_, msg, err := s.mux.Recv()
	if err != nil {
		return fmt.Errorf("engine: recv server setup: %w", err)
	}
	setup, ok := msg.(control.ServerSetup)
	if !ok {
		return fmt.Errorf("engine: expected server setup, got %T", msg)
	}
	if setup.Version != control.VersionDraft14 {
		return fmt.Errorf("engine: %w: negotiated %#x", ErrVersionMismatch, setup.Version)
	}
	if err := s.mux.Send(control.MaxRequestId{MaximumRequestID: maxRequestID}); err != nil {
		return fmt.Errorf("engine: send max request id: %w", err)
	}
	return nil
}

// runControlLoop dispatches every decoded control message to the
// Publisher or Subscriber half by message type.
func (s *Session) runControlLoop(ctx context.Context) error {
	for {
		_, msg, err := s.mux.Recv()
		if err != nil {
			return fmt.Errorf("engine: control loop: %w", err)
		}
		switch m := msg.(type) {
		case control.Subscribe:
			go s.pub.handleSubscribe(ctx, m)
		case control.Unsubscribe:
			s.pub.handleUnsubscribe(m)
		case control.SubscribeOk:
			s.sub.handleSubscribeOk(m)
		case control.SubscribeError:
			s.sub.handleSubscribeError(m)
		case control.PublishDone:
			s.sub.handlePublishDone(m)
		case control.PublishNamespace:
			s.sub.handlePublishNamespace(m)
		case control.PublishNamespaceDone:
			s.sub.handlePublishNamespaceDone(m)
		case control.PublishNamespaceOk:
			s.pub.handlePublishNamespaceOk(m)
		case control.PublishNamespaceError:
			s.pub.handlePublishNamespaceError(m)
		case control.PublishNamespaceCancel:
			s.pub.handlePublishNamespaceCancel(m)
		case control.TrackStatusRequest, control.TrackStatus:
			s.log.Debug("track status message ignored", "type", fmt.Sprintf("%T", m))
		case control.MaxRequestId:
			s.log.Debug("ignoring peer max request id advertisement", "value", m.MaximumRequestID)
		case control.RequestsBlocked:
			s.log.Debug("ignoring peer requests blocked", "value", m.MaximumRequestID)
		case control.GoAway:
			return fmt.Errorf("engine: %w: new_session_uri=%q", ErrGoAway, m.NewSessionURI)
		default:
			return fmt.Errorf("engine: unexpected control message %T", msg)
		}
	}
}

// runObjectStreams accepts unidirectional streams from the peer,
// decodes each Group header, and hands the remainder to the
// subscriber.
func (s *Session) runObjectStreams(ctx context.Context) error {
	for {
		stream, err := s.trs.AcceptUniStream(ctx)
		if err != nil {
			return fmt.Errorf("engine: accept uni stream: %w", err)
		}
		go s.handleObjectStream(ctx, stream)
	}
}

func (s *Session) handleObjectStream(ctx context.Context, stream transport.RecvStream) {
	r := wire.NewReader(stream)
	header, err := objectstream.DecodeHeader(r)
	if err != nil {
		s.log.Warn("group header decode failed", "error", err)
		stream.CancelRead(transport.StreamErrorCode(1))
		return
	}
	s.sub.handleGroup(ctx, header, r, stream)
}

// Publish advertises broadcast under path.
func (s *Session) Publish(path string, broadcast *Broadcast) error {
	return s.pub.publish(s.ctx, path, broadcast)
}

// Consume returns a broadcast whose track subscriptions are
// materialized lazily.
func (s *Session) Consume(path string) *Broadcast {
	return s.sub.consume(s.ctx, path)
}

// Announced subscribes to namespace activity under prefix.
func (s *Session) Announced(prefix string) *Announced {
	return s.sub.announcedFor(prefix)
}

// Close shuts down the session; all streams fail.
func (s *Session) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	return s.trs.CloseWithError(0, "closed by application")
}

// Closed resolves once Run has returned.
func (s *Session) Closed() <-chan struct{} { return s.closed }
