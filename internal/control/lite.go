package control

import (
	"io"
	"sync"

	"github.com/zsiec/moqc/internal/wire"
)

// Lite control-stream types, grounded on original_source's
// rs/moq/src/lite/stream.rs ControlType enum. The lite variant groups
// messages into three broad categories rather than the ietf variant's
// one-id-per-message-kind space; request/ok/error within a category
// are distinguished by a leading kind byte this implementation adds,
// since the source enum itself carries no finer granularity.
const (
	liteControlSession   = 0
	liteControlAnnounce  = 1
	liteControlSubscribe = 2
)

const (
	liteKindRequest = 0
	liteKindOk      = 1
	liteKindError   = 2
	liteKindDone    = 3
)

// LiteSessionClient is the lite handshake's client-to-server message:
// the supported version list, most-preferred first.
type LiteSessionClient struct {
	Versions []uint64
}

func (m LiteSessionClient) Encode(buf *wire.Buffer) error {
	if err := buf.WriteVarint53(uint64(len(m.Versions))); err != nil {
		return err
	}
	for _, v := range m.Versions {
		if err := buf.WriteVarint62(v); err != nil {
			return err
		}
	}
	return nil
}

func DecodeLiteSessionClient(r *wire.Reader) (LiteSessionClient, error) {
	count, err := r.ReadVarint53()
	if err != nil {
		return LiteSessionClient{}, err
	}
	versions := make([]uint64, count)
	for i := range versions {
		if versions[i], err = r.ReadVarint62(); err != nil {
			return LiteSessionClient{}, err
		}
	}
	return LiteSessionClient{Versions: versions}, nil
}

// LiteSessionServer is the server's chosen version.
type LiteSessionServer struct {
	Version uint64
}

func (m LiteSessionServer) Encode(buf *wire.Buffer) error {
	return buf.WriteVarint62(m.Version)
}

func DecodeLiteSessionServer(r *wire.Reader) (LiteSessionServer, error) {
	v, err := r.ReadVarint62()
	return LiteSessionServer{Version: v}, err
}

// LiteAnnounce mirrors PublishNamespace for the lite variant.
type LiteAnnounce struct {
	RequestID uint64
	Namespace string
}

func (m LiteAnnounce) Encode(buf *wire.Buffer) error {
	if err := buf.WriteVarint62(m.RequestID); err != nil {
		return err
	}
	return buf.WriteString(m.Namespace)
}

func DecodeLiteAnnounce(r *wire.Reader) (LiteAnnounce, error) {
	id, err := r.ReadVarint62()
	if err != nil {
		return LiteAnnounce{}, err
	}
	ns, err := r.ReadString()
	if err != nil {
		return LiteAnnounce{}, err
	}
	return LiteAnnounce{RequestID: id, Namespace: ns}, nil
}

// LiteAnnounceOk / LiteAnnounceError / LiteUnannounce mirror their
// ietf namespace-pub counterparts.
type LiteAnnounceOk struct{ RequestID uint64 }

func (m LiteAnnounceOk) Encode(buf *wire.Buffer) error { return buf.WriteVarint62(m.RequestID) }

func DecodeLiteAnnounceOk(r *wire.Reader) (LiteAnnounceOk, error) {
	id, err := r.ReadVarint62()
	return LiteAnnounceOk{RequestID: id}, err
}

type LiteAnnounceError struct {
	RequestID uint64
	ErrorCode uint64
	Reason    string
}

func (m LiteAnnounceError) Encode(buf *wire.Buffer) error {
	if err := buf.WriteVarint62(m.RequestID); err != nil {
		return err
	}
	if err := buf.WriteVarint53(m.ErrorCode); err != nil {
		return err
	}
	return buf.WriteString(m.Reason)
}

func DecodeLiteAnnounceError(r *wire.Reader) (LiteAnnounceError, error) {
	id, err := r.ReadVarint62()
	if err != nil {
		return LiteAnnounceError{}, err
	}
	code, err := r.ReadVarint53()
	if err != nil {
		return LiteAnnounceError{}, err
	}
	reason, err := r.ReadString()
	if err != nil {
		return LiteAnnounceError{}, err
	}
	return LiteAnnounceError{RequestID: id, ErrorCode: code, Reason: reason}, nil
}

type LiteUnannounce struct{ Namespace string }

func (m LiteUnannounce) Encode(buf *wire.Buffer) error { return buf.WriteString(m.Namespace) }

func DecodeLiteUnannounce(r *wire.Reader) (LiteUnannounce, error) {
	ns, err := r.ReadString()
	return LiteUnannounce{Namespace: ns}, err
}

// LiteSubscribe mirrors Subscribe, dropping the ietf constant-field
// padding (group order, forward, filter type) the lite variant has no
// use for.
type LiteSubscribe struct {
	RequestID uint64
	Namespace string
	TrackName string
	Priority  uint8
}

func (m LiteSubscribe) Encode(buf *wire.Buffer) error {
	if err := buf.WriteVarint62(m.RequestID); err != nil {
		return err
	}
	if err := buf.WriteString(m.Namespace); err != nil {
		return err
	}
	if err := buf.WriteString(m.TrackName); err != nil {
		return err
	}
	buf.WriteU8(m.Priority)
	return nil
}

func DecodeLiteSubscribe(r *wire.Reader) (LiteSubscribe, error) {
	id, err := r.ReadVarint62()
	if err != nil {
		return LiteSubscribe{}, err
	}
	ns, err := r.ReadString()
	if err != nil {
		return LiteSubscribe{}, err
	}
	name, err := r.ReadString()
	if err != nil {
		return LiteSubscribe{}, err
	}
	priority, err := r.ReadU8()
	if err != nil {
		return LiteSubscribe{}, err
	}
	return LiteSubscribe{RequestID: id, Namespace: ns, TrackName: name, Priority: priority}, nil
}

type LiteSubscribeOk struct{ RequestID uint64 }

func (m LiteSubscribeOk) Encode(buf *wire.Buffer) error { return buf.WriteVarint62(m.RequestID) }

func DecodeLiteSubscribeOk(r *wire.Reader) (LiteSubscribeOk, error) {
	id, err := r.ReadVarint62()
	return LiteSubscribeOk{RequestID: id}, err
}

type LiteSubscribeError struct {
	RequestID uint64
	ErrorCode uint64
	Reason    string
}

func (m LiteSubscribeError) Encode(buf *wire.Buffer) error {
	if err := buf.WriteVarint62(m.RequestID); err != nil {
		return err
	}
	if err := buf.WriteVarint53(m.ErrorCode); err != nil {
		return err
	}
	return buf.WriteString(m.Reason)
}

func DecodeLiteSubscribeError(r *wire.Reader) (LiteSubscribeError, error) {
	id, err := r.ReadVarint62()
	if err != nil {
		return LiteSubscribeError{}, err
	}
	code, err := r.ReadVarint53()
	if err != nil {
		return LiteSubscribeError{}, err
	}
	reason, err := r.ReadString()
	if err != nil {
		return LiteSubscribeError{}, err
	}
	return LiteSubscribeError{RequestID: id, ErrorCode: code, Reason: reason}, nil
}

type LiteUnsubscribe struct{ RequestID uint64 }

func (m LiteUnsubscribe) Encode(buf *wire.Buffer) error { return buf.WriteVarint62(m.RequestID) }

func DecodeLiteUnsubscribe(r *wire.Reader) (LiteUnsubscribe, error) {
	id, err := r.ReadVarint62()
	return LiteUnsubscribe{RequestID: id}, err
}

// LiteMessage is the envelope every lite frame carries: an outer
// control type plus a kind byte, and the type-specific value already
// decoded.
type LiteMessage struct {
	ControlType uint64
	Kind        uint8
	Value       any
}

type liteEncoder interface {
	Encode(*wire.Buffer) error
}

// LiteMux is the lite variant's control-stream multiplexer: same
// single-writer/single-reader discipline as Mux, but framed with
// wire.EncodeLite/DecodeLite and keyed on the coarser
// (controlType, kind) pair instead of one id per message.
type LiteMux struct {
	writeMu sync.Mutex
	w       io.Writer

	readMu sync.Mutex
	r      *wire.Reader

	idMu   sync.Mutex
	nextID uint64
}

func NewLiteMux(stream io.ReadWriter) *LiteMux {
	return &LiteMux{w: stream, r: wire.NewReader(stream)}
}

// NextRequestID allocates from the full u62 lite request-id space,
// same +2-from-0 client-even convention as the ietf allocator.
func (m *LiteMux) NextRequestID() uint64 {
	m.idMu.Lock()
	defer m.idMu.Unlock()
	id := m.nextID
	m.nextID += 2
	return id
}

// Send writes controlType/kind followed by msg's encoded fields as a
// single lite frame.
func (m *LiteMux) Send(controlType uint64, kind uint8, msg liteEncoder) error {
	fields := wire.NewBuffer()
	fields.WriteU8(kind)
	if err := msg.Encode(fields); err != nil {
		return err
	}
	framed, err := wire.EncodeLite(controlType, fields)
	if err != nil {
		return err
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	_, err = m.w.Write(framed.Bytes())
	return err
}

// Recv reads the next lite frame and decodes it per (controlType, kind).
func (m *LiteMux) Recv() (LiteMessage, error) {
	m.readMu.Lock()
	defer m.readMu.Unlock()

	controlType, body, err := wire.DecodeLite(m.r)
	if err != nil {
		return LiteMessage{}, err
	}
	kind, err := body.ReadU8()
	if err != nil {
		return LiteMessage{}, err
	}

	value, err := decodeLiteValue(controlType, kind, body)
	if err != nil {
		return LiteMessage{}, err
	}
	if err := body.RequireEmpty(); err != nil {
		return LiteMessage{}, err
	}
	return LiteMessage{ControlType: controlType, Kind: kind, Value: value}, nil
}

func decodeLiteValue(controlType uint64, kind uint8, r *wire.Reader) (any, error) {
	switch controlType {
	case liteControlSession:
		if kind == liteKindRequest {
			return DecodeLiteSessionClient(r)
		}
		return DecodeLiteSessionServer(r)
	case liteControlAnnounce:
		switch kind {
		case liteKindRequest:
			return DecodeLiteAnnounce(r)
		case liteKindOk:
			return DecodeLiteAnnounceOk(r)
		case liteKindError:
			return DecodeLiteAnnounceError(r)
		case liteKindDone:
			return DecodeLiteUnannounce(r)
		}
	case liteControlSubscribe:
		switch kind {
		case liteKindRequest:
			return DecodeLiteSubscribe(r)
		case liteKindOk:
			return DecodeLiteSubscribeOk(r)
		case liteKindError:
			return DecodeLiteSubscribeError(r)
		case liteKindDone:
			return DecodeLiteUnsubscribe(r)
		}
	}
	return nil, errField(controlType, "kind", ErrUnknownMessageType)
}
