package moq

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"

	"github.com/zsiec/moqc/internal/engine"
	"github.com/zsiec/moqc/internal/transport/quicwt"
)

// Session is one MoQ connection: a publish/subscribe surface layered
// over a WebTransport session.
type Session struct {
	engine *engine.Session
	runErr chan error
}

// Dial connects to url (an https:// URL naming a WebTransport-capable
// server), performs the setup handshake, and runs the session engine
// in the background. Cancelling ctx tears the session down. Dial
// returns once the handshake completes or fails; Err reports the
// eventual result of the background run.
func Dial(ctx context.Context, url string, tlsConfig *tls.Config, log *slog.Logger) (*Session, error) {
	trs, err := quicwt.Dial(ctx, url, tlsConfig)
	if err != nil {
		return nil, fmt.Errorf("moq: dial: %w", err)
	}
	sess := &Session{engine: engine.NewSession(trs, log), runErr: make(chan error, 1)}

	if err := sess.engine.Setup(ctx); err != nil {
		if errors.Is(err, engine.ErrVersionMismatch) {
			return nil, fmt.Errorf("moq: session setup: %w: %w", ErrVersionMismatch, err)
		}
		return nil, fmt.Errorf("moq: session setup: %w", err)
	}
	go func() { sess.runErr <- sess.engine.Run(ctx) }()
	return sess, nil
}

// Err blocks until the session's background run has returned, then
// reports why (nil for a clean shutdown via Close).
func (s *Session) Err() error { return <-s.runErr }

// Publish advertises broadcast under path to the peer.
func (s *Session) Publish(path Path, broadcast *Broadcast) error {
	return s.engine.Publish(path.String(), broadcast.inner)
}

// Consume returns a broadcast whose track subscriptions are
// materialized lazily as the application requests tracks.
func (s *Session) Consume(path Path) *Broadcast {
	return &Broadcast{inner: s.engine.Consume(path.String())}
}

// Announced subscribes to namespace activity under prefix.
func (s *Session) Announced(prefix Path) *Announced {
	return &Announced{inner: s.engine.Announced(prefix.String())}
}

// Close shuts down the session; all streams fail.
func (s *Session) Close() error { return s.engine.Close() }

// Closed resolves once the session has fully torn down.
func (s *Session) Closed() <-chan struct{} { return s.engine.Closed() }
