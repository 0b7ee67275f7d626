package control

import (
	"fmt"
	"io"
	"sync"

	"github.com/zsiec/moqc/internal/wire"
)

// decodeFunc decodes a message body already bounded to its framed
// length, returning the decoded message as a dynamically-typed value
// for the caller to type-switch on.
type decodeFunc func(*wire.Reader) (any, error)

func wrap[M any](f func(*wire.Reader) (M, error)) decodeFunc {
	return func(r *wire.Reader) (any, error) { return f(r) }
}

func wrapErr(f func(*wire.Reader) error) decodeFunc {
	return func(r *wire.Reader) (any, error) { return nil, f(r) }
}

// ietfDecoders is the message-id dispatch table: an unknown id is a
// fatal decode error.
var ietfDecoders = map[uint64]decodeFunc{
	idClientSetup:             wrap(DecodeClientSetup),
	idServerSetup:             wrap(DecodeServerSetup),
	idPublishNamespace:        wrap(DecodePublishNamespace),
	idPublishNamespaceOk:      wrap(DecodePublishNamespaceOk),
	idPublishNamespaceError:   wrap(DecodePublishNamespaceError),
	idPublishNamespaceDone:    wrap(DecodePublishNamespaceDone),
	idPublishNamespaceCancel:  wrap(DecodePublishNamespaceCancel),
	idSubscribeNamespace:      wrap(DecodeSubscribeNamespace),
	idSubscribeNamespaceOk:    wrap(DecodeSubscribeNamespaceOk),
	idSubscribeNamespaceError: wrap(DecodeSubscribeNamespaceError),
	idUnsubscribeNamespace:    wrap(DecodeUnsubscribeNamespace),
	idSubscribe:               wrap(DecodeSubscribe),
	idSubscribeOk:             wrap(DecodeSubscribeOk),
	idSubscribeError:          wrap(DecodeSubscribeError),
	idUnsubscribe:             wrap(DecodeUnsubscribe),
	idPublishDone:             wrap(DecodePublishDone),
	idTrackStatusRequest:      wrap(DecodeTrackStatusRequest),
	idTrackStatus:             wrap(DecodeTrackStatus),
	idGoAway:                  wrap(DecodeGoAway),
	idMaxRequestId:            wrap(DecodeMaxRequestId),
	idRequestsBlocked:         wrap(DecodeRequestsBlocked),
	idFetch:                   wrapErr(DecodeFetch),
	idFetchCancel:             wrapErr(DecodeFetchCancel),
	idFetchOk:                 wrapErr(DecodeFetchOk),
	idFetchError:              wrapErr(DecodeFetchError),
	idPublish:                 wrapErr(DecodePublish),
	idPublishOk:               wrapErr(DecodePublishOk),
	idPublishError:            wrapErr(DecodePublishError),
}

// typeID returns the static ietf type id for a message value, used by
// Send. Every message struct messages.go defines is listed here.
func typeID(msg any) (uint64, error) {
	switch msg.(type) {
	case ClientSetup:
		return idClientSetup, nil
	case ServerSetup:
		return idServerSetup, nil
	case PublishNamespace:
		return idPublishNamespace, nil
	case PublishNamespaceOk:
		return idPublishNamespaceOk, nil
	case PublishNamespaceError:
		return idPublishNamespaceError, nil
	case PublishNamespaceDone:
		return idPublishNamespaceDone, nil
	case PublishNamespaceCancel:
		return idPublishNamespaceCancel, nil
	case SubscribeNamespace:
		return idSubscribeNamespace, nil
	case SubscribeNamespaceOk:
		return idSubscribeNamespaceOk, nil
	case SubscribeNamespaceError:
		return idSubscribeNamespaceError, nil
	case UnsubscribeNamespace:
		return idUnsubscribeNamespace, nil
	case Subscribe:
		return idSubscribe, nil
	case SubscribeOk:
		return idSubscribeOk, nil
	case SubscribeError:
		return idSubscribeError, nil
	case Unsubscribe:
		return idUnsubscribe, nil
	case PublishDone:
		return idPublishDone, nil
	case TrackStatusRequest:
		return idTrackStatusRequest, nil
	case TrackStatus:
		return idTrackStatus, nil
	case GoAway:
		return idGoAway, nil
	case MaxRequestId:
		return idMaxRequestId, nil
	case RequestsBlocked:
		return idRequestsBlocked, nil
	default:
		return 0, fmt.Errorf("control: %T has no registered type id", msg)
	}
}

// encoder is implemented by every message struct in this package.
type encoder interface {
	Encode(*wire.Buffer) error
}

// Mux serializes ietf control-message traffic over a single
// bidirectional stream: independent read and write locks, since a
// concurrent Send must never interleave its bytes with another Send's,
// and a request-id allocator incrementing by 2 from 0. The lite
// variant, a much smaller message catalog, has its own mux type in
// lite.go.
type Mux struct {
	writeMu sync.Mutex
	w       io.Writer

	readMu sync.Mutex
	r      *wire.Reader

	idMu   sync.Mutex
	nextID uint64
}

// NewMux wraps an established bidirectional stream. The stream is
// assumed already open; NewMux does not perform the setup handshake.
func NewMux(stream io.ReadWriter) *Mux {
	return &Mux{
		w: stream,
		r: wire.NewReader(stream),
	}
}

// NextRequestID allocates a client-initiated request id: +2 starting
// at 0. IDs are never released.
func (m *Mux) NextRequestID() uint64 {
	m.idMu.Lock()
	defer m.idMu.Unlock()
	id := m.nextID
	m.nextID += 2
	return id
}

// Send encodes and writes msg, framed per the mux's variant.
func (m *Mux) Send(msg encoder) error {
	id, err := typeID(msg)
	if err != nil {
		return err
	}

	fields := wire.NewBuffer()
	if err := msg.Encode(fields); err != nil {
		return err
	}

	framed, err := wire.EncodeIETF(id, fields)
	if err != nil {
		return err
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	_, err = m.w.Write(framed.Bytes())
	return err
}

// Recv blocks for the next framed message, decodes it via the
// dispatch table, and returns its type id alongside the decoded
// value. An unknown type id or any decode failure is fatal to the
// session: the caller should break its control loop.
func (m *Mux) Recv() (uint64, any, error) {
	m.readMu.Lock()
	defer m.readMu.Unlock()

	id, body, err := wire.DecodeIETF(m.r)
	if err != nil {
		return 0, nil, err
	}

	decode, ok := ietfDecoders[id]
	if !ok {
		return id, nil, errField(id, "type", ErrUnknownMessageType)
	}
	msg, err := decode(body)
	if err != nil {
		return id, nil, err
	}
	if err := body.RequireEmpty(); err != nil {
		return id, nil, err
	}
	return id, msg, nil
}
