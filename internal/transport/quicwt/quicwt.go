// Package quicwt is the concrete transport.Session backed by an HTTP/3
// CONNECT-based WebTransport upgrade, following the same
// session/control-stream accept sequence and session-close codes as a
// server-side upgrade handler, re-expressed for the client side: this
// package dials rather than upgrades an inbound request.
package quicwt

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/quic-go/quic-go"
	"github.com/quic-go/webtransport-go"

	"github.com/zsiec/moqc/internal/transport"
)

// Session close codes for the client's own CloseWithError calls.
const (
	ErrControlStream transport.SessionErrorCode = 2
	ErrInternal      transport.SessionErrorCode = 3
	ErrSetupFailed   transport.SessionErrorCode = 5
)

// Dial performs the HTTP/3 WebTransport upgrade against urlStr and returns
// an established transport.Session. tlsConfig may be nil, in which case the
// system root CA pool is used.
func Dial(ctx context.Context, urlStr string, tlsConfig *tls.Config) (transport.Session, error) {
	d := &webtransport.Dialer{
		TLSClientConfig: tlsConfig,
		QUICConfig: &quic.Config{
			MaxIdleTimeout: 30 * time.Second,
		},
	}

	resp, sess, err := d.Dial(ctx, urlStr, http.Header{})
	if err != nil {
		return nil, fmt.Errorf("quicwt: dial %s: %w", urlStr, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("quicwt: dial %s: unexpected status %d", urlStr, resp.StatusCode)
	}

	return &session{Session: sess}, nil
}

// session adapts *webtransport.Session to transport.Session.
type session struct {
	*webtransport.Session
}

func (s *session) OpenStream(ctx context.Context) (transport.Stream, error) {
	str, err := s.Session.OpenStreamSync(ctx)
	if err != nil {
		return nil, err
	}
	return stream{str}, nil
}

func (s *session) AcceptStream(ctx context.Context) (transport.Stream, error) {
	str, err := s.Session.AcceptStream(ctx)
	if err != nil {
		return nil, err
	}
	return stream{str}, nil
}

func (s *session) OpenUniStream(ctx context.Context) (transport.SendStream, error) {
	str, err := s.Session.OpenUniStreamSync(ctx)
	if err != nil {
		return nil, err
	}
	return sendStream{str}, nil
}

func (s *session) AcceptUniStream(ctx context.Context) (transport.RecvStream, error) {
	str, err := s.Session.AcceptUniStream(ctx)
	if err != nil {
		return nil, err
	}
	return recvStream{str}, nil
}

func (s *session) CloseWithError(code transport.SessionErrorCode, reason string) error {
	return s.Session.CloseWithError(webtransport.SessionErrorCode(code), reason)
}

// LocalAddr and RemoteAddr are unavailable through webtransport.Session's
// public surface; the underlying quic.Connection isn't exposed.
func (s *session) LocalAddr() net.Addr  { return nil }
func (s *session) RemoteAddr() net.Addr { return nil }

// stream adapts webtransport.Stream (bidirectional) to transport.Stream.
type stream struct {
	webtransport.Stream
}

func (s stream) CancelWrite(code transport.StreamErrorCode) {
	s.Stream.CancelWrite(webtransport.StreamErrorCode(code))
}

func (s stream) CancelRead(code transport.StreamErrorCode) {
	s.Stream.CancelRead(webtransport.StreamErrorCode(code))
}

// SetPriority forwards to the underlying quic-go SendStream's priority
// hint when available, implementing transport.PriorityStream.
func (s stream) SetPriority(p int32) {
	if ps, ok := s.Stream.(interface{ SetPriority(int) }); ok {
		ps.SetPriority(int(p))
	}
}

// sendStream adapts webtransport.SendStream to transport.SendStream.
type sendStream struct {
	webtransport.SendStream
}

func (s sendStream) CancelWrite(code transport.StreamErrorCode) {
	s.SendStream.CancelWrite(webtransport.StreamErrorCode(code))
}

func (s sendStream) SetPriority(p int32) {
	if ps, ok := s.SendStream.(interface{ SetPriority(int) }); ok {
		ps.SetPriority(int(p))
	}
}

// recvStream adapts webtransport.ReceiveStream to transport.RecvStream.
type recvStream struct {
	webtransport.ReceiveStream
}

func (s recvStream) CancelRead(code transport.StreamErrorCode) {
	s.ReceiveStream.CancelRead(webtransport.StreamErrorCode(code))
}
