package control

import (
	"errors"
	"io"
	"net"
	"testing"

	"github.com/zsiec/moqc/internal/wire"
)

func roundTrip[M any](t *testing.T, id uint64, msg interface {
	Encode(*wire.Buffer) error
}, decode func(*wire.Reader) (M, error)) M {
	t.Helper()
	buf := wire.NewBuffer()
	if err := msg.Encode(buf); err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := decode(wire.NewReaderBytes(buf.Bytes()))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return got
}

func TestSubscribeRoundTrip(t *testing.T) {
	t.Parallel()
	msg := Subscribe{RequestID: 7, Namespace: "room/a", TrackName: "video", SubscriberPriority: 200}
	got := roundTrip(t, idSubscribe, msg, DecodeSubscribe)
	if got != msg {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, msg)
	}
}

func TestSubscribeOkRoundTrip(t *testing.T) {
	t.Parallel()
	msg := SubscribeOk{RequestID: 42}
	got := roundTrip(t, idSubscribeOk, msg, DecodeSubscribeOk)
	if got != msg {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, msg)
	}
}

func TestSubscribeErrorRoundTrip(t *testing.T) {
	t.Parallel()
	msg := SubscribeError{RequestID: 7, ErrorCode: 404, Reason: "Broadcast not found"}
	got := roundTrip(t, idSubscribeError, msg, DecodeSubscribeError)
	if got != msg {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, msg)
	}
}

func TestUnsubscribeRoundTrip(t *testing.T) {
	t.Parallel()
	msg := Unsubscribe{RequestID: 999}
	got := roundTrip(t, idUnsubscribe, msg, DecodeUnsubscribe)
	if got != msg {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, msg)
	}
}

func TestPublishDoneRoundTrip(t *testing.T) {
	t.Parallel()
	msg := PublishDone{RequestID: 7, StatusCode: 200, Reason: "OK"}
	got := roundTrip(t, idPublishDone, msg, DecodePublishDone)
	if got != msg {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, msg)
	}
}

// TestNamespaceWireFormatPinned asserts the literal bytes a namespace
// encodes to: a component-count varint followed by each "/"-separated
// component as its own length-prefixed string, per original_source's
// encode_namespace (rs/moq/src/ietf/subscribe.rs). A namespace of
// "test" must produce 0x01 (one component) then 0x04 "test" (a 4-byte
// string), not a bare 0x04 "test" length-prefixed string on its own:
// that would satisfy a self-round-trip without matching the wire the
// component-tuple format actually specifies.
func TestNamespaceWireFormatPinned(t *testing.T) {
	t.Parallel()
	buf := wire.NewBuffer()
	if err := writeNamespace(buf, "test"); err != nil {
		t.Fatalf("writeNamespace: %v", err)
	}
	want := []byte{0x01, 0x04, 't', 'e', 's', 't'}
	if got := buf.Bytes(); string(got) != string(want) {
		t.Fatalf("namespace bytes = % x, want % x", got, want)
	}

	got, err := readNamespace(wire.NewReaderBytes(buf.Bytes()))
	if err != nil {
		t.Fatalf("readNamespace: %v", err)
	}
	if got != "test" {
		t.Fatalf("readNamespace = %q, want %q", got, "test")
	}
}

// TestNamespaceWireFormatMultiComponent pins the multi-component case:
// "room/a" must split on the Path boundary into two tuple elements,
// not one component containing a literal slash.
func TestNamespaceWireFormatMultiComponent(t *testing.T) {
	t.Parallel()
	buf := wire.NewBuffer()
	if err := writeNamespace(buf, "room/a"); err != nil {
		t.Fatalf("writeNamespace: %v", err)
	}
	want := []byte{0x02, 0x04, 'r', 'o', 'o', 'm', 0x01, 'a'}
	if got := buf.Bytes(); string(got) != string(want) {
		t.Fatalf("namespace bytes = % x, want % x", got, want)
	}

	got, err := readNamespace(wire.NewReaderBytes(buf.Bytes()))
	if err != nil {
		t.Fatalf("readNamespace: %v", err)
	}
	if got != "room/a" {
		t.Fatalf("readNamespace = %q, want %q", got, "room/a")
	}
}

func TestPublishNamespaceRoundTrip(t *testing.T) {
	t.Parallel()
	msg := PublishNamespace{RequestID: 0, Namespace: "room/a"}
	got := roundTrip(t, idPublishNamespace, msg, DecodePublishNamespace)
	if got != msg {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, msg)
	}
}

func TestPublishNamespaceOkRoundTrip(t *testing.T) {
	t.Parallel()
	msg := PublishNamespaceOk{RequestID: 3}
	got := roundTrip(t, idPublishNamespaceOk, msg, DecodePublishNamespaceOk)
	if got != msg {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, msg)
	}
}

func TestPublishNamespaceErrorRoundTrip(t *testing.T) {
	t.Parallel()
	msg := PublishNamespaceError{RequestID: 3, ErrorCode: 403, Reason: "denied"}
	got := roundTrip(t, idPublishNamespaceError, msg, DecodePublishNamespaceError)
	if got != msg {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, msg)
	}
}

func TestPublishNamespaceDoneRoundTrip(t *testing.T) {
	t.Parallel()
	msg := PublishNamespaceDone{Namespace: "room/a"}
	got := roundTrip(t, idPublishNamespaceDone, msg, DecodePublishNamespaceDone)
	if got != msg {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, msg)
	}
}

func TestPublishNamespaceCancelRoundTrip(t *testing.T) {
	t.Parallel()
	msg := PublishNamespaceCancel{Namespace: "room/a", ErrorCode: 1, Reason: "shutdown"}
	got := roundTrip(t, idPublishNamespaceCancel, msg, DecodePublishNamespaceCancel)
	if got != msg {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, msg)
	}
}

func TestGoAwayRoundTrip(t *testing.T) {
	t.Parallel()
	msg := GoAway{NewSessionURI: "https://elsewhere"}
	got := roundTrip(t, idGoAway, msg, DecodeGoAway)
	if got != msg {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, msg)
	}
}

func TestTrackStatusRequestRoundTrip(t *testing.T) {
	t.Parallel()
	msg := TrackStatusRequest{RequestID: 5, Namespace: "room/a", TrackName: "video"}
	got := roundTrip(t, idTrackStatusRequest, msg, DecodeTrackStatusRequest)
	if got != msg {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, msg)
	}
}

func TestTrackStatusRoundTrip(t *testing.T) {
	t.Parallel()
	msg := TrackStatus{RequestID: 5, StatusCode: 0, LastGroupID: 12, LastObjectID: 3}
	got := roundTrip(t, idTrackStatus, msg, DecodeTrackStatus)
	if got != msg {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, msg)
	}
}

func TestSubscribeRejectsInvalidFilterType(t *testing.T) {
	t.Parallel()
	buf := wire.NewBuffer()
	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatal(err)
		}
	}
	must(buf.WriteVarint53(1))
	must(writeNamespace(buf, "test"))
	must(buf.WriteString("video"))
	buf.WriteU8(128)
	buf.WriteU8(groupOrderDescending)
	buf.WriteU8(1)    // forward
	buf.WriteU8(0x99) // invalid filter type
	must(buf.WriteVarint53(0))

	if _, err := DecodeSubscribe(wire.NewReaderBytes(buf.Bytes())); err == nil {
		t.Fatal("expected error for invalid filter_type")
	}
}

func TestSubscribeOkRejectsNonZeroExpires(t *testing.T) {
	t.Parallel()
	buf := wire.NewBuffer()
	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatal(err)
		}
	}
	must(buf.WriteVarint53(1))  // request id
	must(buf.WriteVarint53(1))  // track alias == request id
	must(buf.WriteVarint53(5))  // INVALID: expires != 0
	buf.WriteU8(groupOrderDescending)
	buf.WriteU8(0)
	must(buf.WriteVarint53(0))

	if _, err := DecodeSubscribeOk(wire.NewReaderBytes(buf.Bytes())); err == nil {
		t.Fatal("expected error for non-zero expires")
	}
}

func TestSubscribeOkRejectsMismatchedTrackAlias(t *testing.T) {
	t.Parallel()
	buf := wire.NewBuffer()
	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatal(err)
		}
	}
	must(buf.WriteVarint53(1)) // request id
	must(buf.WriteVarint53(2)) // INVALID: track alias != request id
	must(buf.WriteVarint53(0))
	buf.WriteU8(groupOrderDescending)
	buf.WriteU8(0)
	must(buf.WriteVarint53(0))

	if _, err := DecodeSubscribeOk(wire.NewReaderBytes(buf.Bytes())); err == nil {
		t.Fatal("expected error for mismatched track_alias")
	}
}

func TestParametersRejectDuplicateID(t *testing.T) {
	t.Parallel()
	buf := wire.NewBuffer()
	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatal(err)
		}
	}
	must(buf.WriteVarint53(2)) // count
	must(buf.WriteVarint62(9))
	must(buf.WriteVarint53(0))
	must(buf.WriteVarint62(9)) // duplicate id
	must(buf.WriteVarint53(0))

	if _, err := DecodeParameters(wire.NewReaderBytes(buf.Bytes())); !errors.Is(err, ErrDuplicateParameter) {
		t.Fatalf("expected ErrDuplicateParameter, got %v", err)
	}
}

func TestMuxSendRecvRoundTrip(t *testing.T) {
	t.Parallel()
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	clientMux := NewMux(client)
	serverMux := NewMux(server)

	done := make(chan error, 1)
	go func() {
		done <- clientMux.Send(Subscribe{RequestID: 7, Namespace: "room/a", TrackName: "video", SubscriberPriority: 128})
	}()

	id, msg, err := serverMux.Recv()
	if err != nil {
		t.Fatal(err)
	}
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if id != idSubscribe {
		t.Fatalf("type id = %#x", id)
	}
	sub, ok := msg.(Subscribe)
	if !ok {
		t.Fatalf("unexpected type %T", msg)
	}
	if sub.RequestID != 7 || sub.Namespace != "room/a" || sub.TrackName != "video" {
		t.Fatalf("unexpected message: %+v", sub)
	}
}

func TestMuxRequestIDAllocation(t *testing.T) {
	t.Parallel()
	m := NewMux(pipeReadWriter{})
	if got := m.NextRequestID(); got != 0 {
		t.Fatalf("first id = %d", got)
	}
	if got := m.NextRequestID(); got != 2 {
		t.Fatalf("second id = %d", got)
	}
	if got := m.NextRequestID(); got != 4 {
		t.Fatalf("third id = %d", got)
	}
}

func TestMuxRejectsUnknownMessageType(t *testing.T) {
	t.Parallel()
	r, w := net.Pipe()
	defer r.Close()
	defer w.Close()

	go func() {
		fields := wire.NewBuffer()
		framed, _ := wire.EncodeIETF(0xff, fields)
		_, _ = w.Write(framed.Bytes())
	}()

	m := NewMux(r)
	if _, _, err := m.Recv(); !errors.Is(err, ErrUnknownMessageType) {
		t.Fatalf("expected ErrUnknownMessageType, got %v", err)
	}
}

func TestLiteMuxSendRecvRoundTrip(t *testing.T) {
	t.Parallel()
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	clientMux := NewLiteMux(client)
	serverMux := NewLiteMux(server)

	done := make(chan error, 1)
	go func() {
		done <- clientMux.Send(liteControlSubscribe, liteKindRequest,
			LiteSubscribe{RequestID: 4, Namespace: "room/a", TrackName: "audio", Priority: 64})
	}()

	msg, err := serverMux.Recv()
	if err != nil {
		t.Fatal(err)
	}
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	sub, ok := msg.Value.(LiteSubscribe)
	if !ok {
		t.Fatalf("unexpected type %T", msg.Value)
	}
	if sub.RequestID != 4 || sub.Namespace != "room/a" {
		t.Fatalf("unexpected message: %+v", sub)
	}
}

// pipeReadWriter is a no-op io.ReadWriter used where a Mux needs a
// stream but the test never actually sends or receives.
type pipeReadWriter struct{}

func (pipeReadWriter) Read([]byte) (int, error)  { return 0, io.EOF }
func (pipeReadWriter) Write(p []byte) (int, error) { return len(p), nil }
