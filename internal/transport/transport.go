// Package transport defines the session/stream shape the engine consumes,
// independent of any concrete QUIC or WebTransport implementation.
// It is grounded on OkutaniDaichi0106-gomoqt's Connection/Stream interfaces,
// built for the same reason: so the control-and-object-stream layers above
// can be tested against a fake without dragging in quic-go.
package transport

import (
	"context"
	"io"
	"net"
	"time"
)

// SessionErrorCode is carried in a QUIC/WebTransport CONNECTION_CLOSE.
type SessionErrorCode uint32

// StreamErrorCode is carried in a STOP_SENDING/RESET_STREAM frame.
type StreamErrorCode uint32

// SendStream is a single unidirectional or half of a bidirectional stream
// this side writes to.
type SendStream interface {
	io.Writer
	io.Closer

	CancelWrite(StreamErrorCode)
	SetWriteDeadline(time.Time) error
}

// RecvStream is a single unidirectional or half of a bidirectional stream
// this side reads from.
type RecvStream interface {
	io.Reader

	CancelRead(StreamErrorCode)
	SetReadDeadline(time.Time) error
}

// Stream is a bidirectional stream, used for the control channel.
type Stream interface {
	SendStream
	RecvStream
}

// PriorityStream is optionally implemented by a SendStream whose underlying
// transport can honor a scheduling hint. Object streams call SetPriority
// when the concrete stream supports it and silently skip it otherwise: a
// transport is free to ignore the hint entirely.
type PriorityStream interface {
	SetPriority(int32)
}

// Session is an established MoQ-carrying connection: one control stream
// plus the ability to open or accept unidirectional data streams.
type Session interface {
	// OpenStream opens the bidirectional control stream. Called once, by
	// the side that initiates the session.
	OpenStream(ctx context.Context) (Stream, error)
	// AcceptStream accepts the bidirectional control stream. Called once,
	// by the side that did not initiate the session.
	AcceptStream(ctx context.Context) (Stream, error)

	// OpenUniStream opens a new unidirectional stream, used by a publisher
	// to send one group's objects.
	OpenUniStream(ctx context.Context) (SendStream, error)
	// AcceptUniStream blocks for the next unidirectional stream the peer
	// opens, used by a subscriber to receive one group's objects.
	AcceptUniStream(ctx context.Context) (RecvStream, error)

	CloseWithError(code SessionErrorCode, reason string) error

	Context() context.Context
	LocalAddr() net.Addr
	RemoteAddr() net.Addr
}
