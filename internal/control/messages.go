package control

import (
	"strings"

	"github.com/zsiec/moqc/internal/wire"
)

// Message type ids, ietf variant (draft-ietf-moq-transport-14 §8).
const (
	idSubscribeUpdate         = 0x02
	idSubscribe               = 0x03
	idSubscribeOk             = 0x04
	idSubscribeError          = 0x05
	idPublishNamespace        = 0x06
	idPublishNamespaceOk      = 0x07
	idPublishNamespaceError   = 0x08
	idPublishNamespaceDone    = 0x09
	idUnsubscribe             = 0x0a
	idPublishDone             = 0x0b
	idPublishNamespaceCancel  = 0x0c
	idTrackStatusRequest      = 0x0d
	idTrackStatus             = 0x0e
	idGoAway                  = 0x10
	idSubscribeNamespace      = 0x11
	idSubscribeNamespaceOk    = 0x12
	idSubscribeNamespaceError = 0x13
	idUnsubscribeNamespace    = 0x14
	idMaxRequestId            = 0x15
	idFetch                   = 0x16
	idFetchCancel             = 0x17
	idFetchOk                 = 0x18
	idFetchError              = 0x19
	idRequestsBlocked         = 0x1a
	idPublish                 = 0x1d
	idPublishOk               = 0x1e
	idPublishError            = 0x1f
	idClientSetup             = 0x20
	idServerSetup             = 0x21
)

// Setup version constants (draft-ietf-moq-transport-14 §6.2).
const (
	VersionDraft07 = 0xff000007
	VersionDraft14 = 0xff00000e
)

// maxSetupVersions bounds the version list a ClientSetup may advertise.
const maxSetupVersions = 128

// groupOrderDescending and the Subscribe/SubscribeOk constant fields
// this implementation always emits and validates on decode.
const (
	groupOrderDescending = 0x02
	filterTypeLatest     = 0x01
	filterTypeLargest    = 0x02
)

func writeParams(buf *wire.Buffer, p Parameters) error {
	if p == nil {
		return buf.WriteVarint53(0)
	}
	return EncodeParameters(buf, p)
}

// writeNamespace encodes a track namespace as a tuple of path
// components: a component-count prefix followed by each component as
// its own length-prefixed string, matching original_source's
// encode_namespace (rs/moq/src/ietf/subscribe.rs). A bare length-
// prefixed string, as used for track_name and reason fields, is not
// wire-compatible with this shape.
func writeNamespace(buf *wire.Buffer, namespace string) error {
	components := splitNamespace(namespace)
	if err := buf.WriteVarint53(uint64(len(components))); err != nil {
		return err
	}
	for _, c := range components {
		if err := buf.WriteString(c); err != nil {
			return err
		}
	}
	return nil
}

// readNamespace decodes the tuple writeNamespace produces, rejoining
// components on "/" to reconstruct the namespace's Path form.
func readNamespace(r *wire.Reader) (string, error) {
	count, err := r.ReadVarint53()
	if err != nil {
		return "", err
	}
	components := make([]string, count)
	for i := range components {
		c, err := r.ReadString()
		if err != nil {
			return "", err
		}
		components[i] = c
	}
	return strings.Join(components, "/"), nil
}

func splitNamespace(namespace string) []string {
	if namespace == "" {
		return nil
	}
	return strings.Split(namespace, "/")
}

// ClientSetup (0x20): version negotiation + parameter map.
type ClientSetup struct {
	Versions   []uint64
	Parameters Parameters
}

func (m ClientSetup) Encode(buf *wire.Buffer) error {
	if err := buf.WriteVarint53(uint64(len(m.Versions))); err != nil {
		return err
	}
	for _, v := range m.Versions {
		if err := buf.WriteVarint62(v); err != nil {
			return err
		}
	}
	return writeParams(buf, m.Parameters)
}

func DecodeClientSetup(r *wire.Reader) (ClientSetup, error) {
	count, err := r.ReadVarint53()
	if err != nil {
		return ClientSetup{}, err
	}
	if count > maxSetupVersions {
		return ClientSetup{}, errField(idClientSetup, "versions", ErrUnsupportedField)
	}
	versions := make([]uint64, count)
	for i := range versions {
		v, err := r.ReadVarint62()
		if err != nil {
			return ClientSetup{}, err
		}
		versions[i] = v
	}
	params, err := DecodeParameters(r)
	if err != nil {
		return ClientSetup{}, err
	}
	return ClientSetup{Versions: versions, Parameters: params}, nil
}

// ServerSetup (0x21): the negotiated version + parameter map.
type ServerSetup struct {
	Version    uint64
	Parameters Parameters
}

func (m ServerSetup) Encode(buf *wire.Buffer) error {
	if err := buf.WriteVarint62(m.Version); err != nil {
		return err
	}
	return writeParams(buf, m.Parameters)
}

func DecodeServerSetup(r *wire.Reader) (ServerSetup, error) {
	version, err := r.ReadVarint62()
	if err != nil {
		return ServerSetup{}, err
	}
	params, err := DecodeParameters(r)
	if err != nil {
		return ServerSetup{}, err
	}
	return ServerSetup{Version: version, Parameters: params}, nil
}

// PublishNamespace (0x06): announces a namespace the sender can serve
// subscriptions under.
type PublishNamespace struct {
	RequestID uint64
	Namespace string
}

func (m PublishNamespace) Encode(buf *wire.Buffer) error {
	if err := buf.WriteVarint53(m.RequestID); err != nil {
		return err
	}
	if err := writeNamespace(buf, m.Namespace); err != nil {
		return err
	}
	return buf.WriteVarint53(0) // no parameters
}

func DecodePublishNamespace(r *wire.Reader) (PublishNamespace, error) {
	requestID, err := r.ReadVarint53()
	if err != nil {
		return PublishNamespace{}, err
	}
	namespace, err := readNamespace(r)
	if err != nil {
		return PublishNamespace{}, err
	}
	if _, err := DecodeParameters(r); err != nil {
		return PublishNamespace{}, err
	}
	return PublishNamespace{RequestID: requestID, Namespace: namespace}, nil
}

// PublishNamespaceOk (0x07).
type PublishNamespaceOk struct {
	RequestID uint64
}

func (m PublishNamespaceOk) Encode(buf *wire.Buffer) error {
	return buf.WriteVarint53(m.RequestID)
}

func DecodePublishNamespaceOk(r *wire.Reader) (PublishNamespaceOk, error) {
	requestID, err := r.ReadVarint53()
	return PublishNamespaceOk{RequestID: requestID}, err
}

// PublishNamespaceError (0x08).
type PublishNamespaceError struct {
	RequestID uint64
	ErrorCode uint64
	Reason    string
}

func (m PublishNamespaceError) Encode(buf *wire.Buffer) error {
	if err := buf.WriteVarint53(m.RequestID); err != nil {
		return err
	}
	if err := buf.WriteVarint53(m.ErrorCode); err != nil {
		return err
	}
	return buf.WriteString(m.Reason)
}

func DecodePublishNamespaceError(r *wire.Reader) (PublishNamespaceError, error) {
	requestID, err := r.ReadVarint53()
	if err != nil {
		return PublishNamespaceError{}, err
	}
	errorCode, err := r.ReadVarint53()
	if err != nil {
		return PublishNamespaceError{}, err
	}
	reason, err := r.ReadString()
	if err != nil {
		return PublishNamespaceError{}, err
	}
	return PublishNamespaceError{RequestID: requestID, ErrorCode: errorCode, Reason: reason}, nil
}

// PublishNamespaceDone (0x09).
type PublishNamespaceDone struct {
	Namespace string
}

func (m PublishNamespaceDone) Encode(buf *wire.Buffer) error {
	return writeNamespace(buf, m.Namespace)
}

func DecodePublishNamespaceDone(r *wire.Reader) (PublishNamespaceDone, error) {
	namespace, err := readNamespace(r)
	return PublishNamespaceDone{Namespace: namespace}, err
}

// PublishNamespaceCancel (0x0c).
type PublishNamespaceCancel struct {
	Namespace string
	ErrorCode uint64
	Reason    string
}

func (m PublishNamespaceCancel) Encode(buf *wire.Buffer) error {
	if err := writeNamespace(buf, m.Namespace); err != nil {
		return err
	}
	if err := buf.WriteVarint53(m.ErrorCode); err != nil {
		return err
	}
	return buf.WriteString(m.Reason)
}

func DecodePublishNamespaceCancel(r *wire.Reader) (PublishNamespaceCancel, error) {
	namespace, err := readNamespace(r)
	if err != nil {
		return PublishNamespaceCancel{}, err
	}
	errorCode, err := r.ReadVarint53()
	if err != nil {
		return PublishNamespaceCancel{}, err
	}
	reason, err := r.ReadString()
	if err != nil {
		return PublishNamespaceCancel{}, err
	}
	return PublishNamespaceCancel{Namespace: namespace, ErrorCode: errorCode, Reason: reason}, nil
}

// SubscribeNamespace (0x11): request notifications for a prefix.
type SubscribeNamespace struct {
	Namespace string
	RequestID uint64
}

func (m SubscribeNamespace) Encode(buf *wire.Buffer) error {
	if err := writeNamespace(buf, m.Namespace); err != nil {
		return err
	}
	if err := buf.WriteVarint53(m.RequestID); err != nil {
		return err
	}
	return buf.WriteVarint53(0) // no parameters
}

func DecodeSubscribeNamespace(r *wire.Reader) (SubscribeNamespace, error) {
	namespace, err := readNamespace(r)
	if err != nil {
		return SubscribeNamespace{}, err
	}
	requestID, err := r.ReadVarint53()
	if err != nil {
		return SubscribeNamespace{}, err
	}
	if _, err := DecodeParameters(r); err != nil {
		return SubscribeNamespace{}, err
	}
	return SubscribeNamespace{Namespace: namespace, RequestID: requestID}, nil
}

// SubscribeNamespaceOk (0x12).
type SubscribeNamespaceOk struct {
	RequestID uint64
}

func (m SubscribeNamespaceOk) Encode(buf *wire.Buffer) error {
	return buf.WriteVarint53(m.RequestID)
}

func DecodeSubscribeNamespaceOk(r *wire.Reader) (SubscribeNamespaceOk, error) {
	requestID, err := r.ReadVarint53()
	return SubscribeNamespaceOk{RequestID: requestID}, err
}

// SubscribeNamespaceError (0x13).
type SubscribeNamespaceError struct {
	RequestID uint64
	ErrorCode uint64
	Reason    string
}

func (m SubscribeNamespaceError) Encode(buf *wire.Buffer) error {
	if err := buf.WriteVarint53(m.RequestID); err != nil {
		return err
	}
	if err := buf.WriteVarint53(m.ErrorCode); err != nil {
		return err
	}
	return buf.WriteString(m.Reason)
}

func DecodeSubscribeNamespaceError(r *wire.Reader) (SubscribeNamespaceError, error) {
	requestID, err := r.ReadVarint53()
	if err != nil {
		return SubscribeNamespaceError{}, err
	}
	errorCode, err := r.ReadVarint53()
	if err != nil {
		return SubscribeNamespaceError{}, err
	}
	reason, err := r.ReadString()
	if err != nil {
		return SubscribeNamespaceError{}, err
	}
	return SubscribeNamespaceError{RequestID: requestID, ErrorCode: errorCode, Reason: reason}, nil
}

// UnsubscribeNamespace (0x14).
type UnsubscribeNamespace struct {
	RequestID uint64
}

func (m UnsubscribeNamespace) Encode(buf *wire.Buffer) error {
	return buf.WriteVarint53(m.RequestID)
}

func DecodeUnsubscribeNamespace(r *wire.Reader) (UnsubscribeNamespace, error) {
	requestID, err := r.ReadVarint53()
	return UnsubscribeNamespace{RequestID: requestID}, err
}

// Subscribe (0x03): request all future objects for a track.
type Subscribe struct {
	RequestID          uint64
	Namespace          string
	TrackName          string
	SubscriberPriority uint8
}

func (m Subscribe) Encode(buf *wire.Buffer) error {
	if err := buf.WriteVarint53(m.RequestID); err != nil {
		return err
	}
	if err := writeNamespace(buf, m.Namespace); err != nil {
		return err
	}
	if err := buf.WriteString(m.TrackName); err != nil {
		return err
	}
	buf.WriteU8(m.SubscriberPriority)
	buf.WriteU8(groupOrderDescending)
	buf.WriteU8(1) // forward
	buf.WriteU8(filterTypeLargest)
	return buf.WriteVarint53(0) // no parameters
}

func DecodeSubscribe(r *wire.Reader) (Subscribe, error) {
	requestID, err := r.ReadVarint53()
	if err != nil {
		return Subscribe{}, err
	}
	namespace, err := readNamespace(r)
	if err != nil {
		return Subscribe{}, err
	}
	trackName, err := r.ReadString()
	if err != nil {
		return Subscribe{}, err
	}
	priority, err := r.ReadU8()
	if err != nil {
		return Subscribe{}, err
	}
	groupOrder, err := r.ReadU8()
	if err != nil {
		return Subscribe{}, err
	}
	if groupOrder != 0 && groupOrder != groupOrderDescending {
		return Subscribe{}, errField(idSubscribe, "group_order", ErrUnsupportedField)
	}
	forward, err := r.ReadU8()
	if err != nil {
		return Subscribe{}, err
	}
	if forward != 1 {
		return Subscribe{}, errField(idSubscribe, "forward", ErrUnsupportedField)
	}
	filterType, err := r.ReadU8()
	if err != nil {
		return Subscribe{}, err
	}
	if filterType != filterTypeLatest && filterType != filterTypeLargest {
		return Subscribe{}, errField(idSubscribe, "filter_type", ErrUnsupportedField)
	}
	if _, err := DecodeParameters(r); err != nil {
		return Subscribe{}, err
	}
	return Subscribe{
		RequestID:          requestID,
		Namespace:          namespace,
		TrackName:          trackName,
		SubscriberPriority: priority,
	}, nil
}

// SubscribeOk (0x04).
type SubscribeOk struct {
	RequestID uint64
}

func (m SubscribeOk) Encode(buf *wire.Buffer) error {
	if err := buf.WriteVarint53(m.RequestID); err != nil {
		return err
	}
	if err := buf.WriteVarint53(m.RequestID); err != nil { // track_alias == request_id
		return err
	}
	if err := buf.WriteVarint53(0); err != nil { // expires
		return err
	}
	buf.WriteU8(groupOrderDescending)
	buf.WriteU8(0) // content_exists
	return buf.WriteVarint53(0)
}

func DecodeSubscribeOk(r *wire.Reader) (SubscribeOk, error) {
	requestID, err := r.ReadVarint53()
	if err != nil {
		return SubscribeOk{}, err
	}
	trackAlias, err := r.ReadVarint53()
	if err != nil {
		return SubscribeOk{}, err
	}
	if trackAlias != requestID {
		return SubscribeOk{}, errField(idSubscribeOk, "track_alias", ErrUnsupportedField)
	}
	expires, err := r.ReadVarint53()
	if err != nil {
		return SubscribeOk{}, err
	}
	if expires != 0 {
		return SubscribeOk{}, errField(idSubscribeOk, "expires", ErrUnsupportedField)
	}
	if _, err := r.ReadU8(); err != nil { // group_order, ignored
		return SubscribeOk{}, err
	}
	contentExists, err := r.ReadU8()
	if err != nil {
		return SubscribeOk{}, err
	}
	if contentExists != 0 {
		if _, err := r.ReadVarint53(); err != nil { // largest group
			return SubscribeOk{}, err
		}
		if _, err := r.ReadVarint53(); err != nil { // largest object
			return SubscribeOk{}, err
		}
	}
	if _, err := DecodeParameters(r); err != nil {
		return SubscribeOk{}, err
	}
	return SubscribeOk{RequestID: requestID}, nil
}

// SubscribeError (0x05).
type SubscribeError struct {
	RequestID uint64
	ErrorCode uint64
	Reason    string
}

func (m SubscribeError) Encode(buf *wire.Buffer) error {
	if err := buf.WriteVarint53(m.RequestID); err != nil {
		return err
	}
	if err := buf.WriteVarint53(m.ErrorCode); err != nil {
		return err
	}
	return buf.WriteString(m.Reason)
}

func DecodeSubscribeError(r *wire.Reader) (SubscribeError, error) {
	requestID, err := r.ReadVarint53()
	if err != nil {
		return SubscribeError{}, err
	}
	errorCode, err := r.ReadVarint53()
	if err != nil {
		return SubscribeError{}, err
	}
	reason, err := r.ReadString()
	if err != nil {
		return SubscribeError{}, err
	}
	return SubscribeError{RequestID: requestID, ErrorCode: errorCode, Reason: reason}, nil
}

// Unsubscribe (0x0a).
type Unsubscribe struct {
	RequestID uint64
}

func (m Unsubscribe) Encode(buf *wire.Buffer) error {
	return buf.WriteVarint53(m.RequestID)
}

func DecodeUnsubscribe(r *wire.Reader) (Unsubscribe, error) {
	requestID, err := r.ReadVarint53()
	return Unsubscribe{RequestID: requestID}, err
}

// PublishDone (0x0b): terminal track status, sent by the publisher.
type PublishDone struct {
	RequestID  uint64
	StatusCode uint64
	Reason     string
}

func (m PublishDone) Encode(buf *wire.Buffer) error {
	if err := buf.WriteVarint53(m.RequestID); err != nil {
		return err
	}
	if err := buf.WriteVarint53(m.StatusCode); err != nil {
		return err
	}
	if err := buf.WriteString(m.Reason); err != nil {
		return err
	}
	return buf.WriteVarint53(0) // stream count, unsupported
}

func DecodePublishDone(r *wire.Reader) (PublishDone, error) {
	requestID, err := r.ReadVarint53()
	if err != nil {
		return PublishDone{}, err
	}
	statusCode, err := r.ReadVarint53()
	if err != nil {
		return PublishDone{}, err
	}
	reason, err := r.ReadString()
	if err != nil {
		return PublishDone{}, err
	}
	if _, err := r.ReadVarint53(); err != nil { // stream count, ignored
		return PublishDone{}, err
	}
	return PublishDone{RequestID: requestID, StatusCode: statusCode, Reason: reason}, nil
}

// TrackStatusRequest (0x0d): one-shot query for a track's status.
type TrackStatusRequest struct {
	RequestID uint64
	Namespace string
	TrackName string
}

func (m TrackStatusRequest) Encode(buf *wire.Buffer) error {
	if err := buf.WriteVarint53(m.RequestID); err != nil {
		return err
	}
	if err := writeNamespace(buf, m.Namespace); err != nil {
		return err
	}
	return buf.WriteString(m.TrackName)
}

func DecodeTrackStatusRequest(r *wire.Reader) (TrackStatusRequest, error) {
	requestID, err := r.ReadVarint53()
	if err != nil {
		return TrackStatusRequest{}, err
	}
	namespace, err := readNamespace(r)
	if err != nil {
		return TrackStatusRequest{}, err
	}
	trackName, err := r.ReadString()
	if err != nil {
		return TrackStatusRequest{}, err
	}
	return TrackStatusRequest{RequestID: requestID, Namespace: namespace, TrackName: trackName}, nil
}

// TrackStatus (0x0e): response to TrackStatusRequest.
type TrackStatus struct {
	RequestID    uint64
	StatusCode   uint64
	LastGroupID  uint64
	LastObjectID uint64
}

func (m TrackStatus) Encode(buf *wire.Buffer) error {
	if err := buf.WriteVarint53(m.RequestID); err != nil {
		return err
	}
	if err := buf.WriteVarint53(m.StatusCode); err != nil {
		return err
	}
	if err := buf.WriteVarint53(m.LastGroupID); err != nil {
		return err
	}
	return buf.WriteVarint53(m.LastObjectID)
}

func DecodeTrackStatus(r *wire.Reader) (TrackStatus, error) {
	requestID, err := r.ReadVarint53()
	if err != nil {
		return TrackStatus{}, err
	}
	statusCode, err := r.ReadVarint53()
	if err != nil {
		return TrackStatus{}, err
	}
	lastGroup, err := r.ReadVarint53()
	if err != nil {
		return TrackStatus{}, err
	}
	lastObject, err := r.ReadVarint53()
	if err != nil {
		return TrackStatus{}, err
	}
	return TrackStatus{
		RequestID:    requestID,
		StatusCode:   statusCode,
		LastGroupID:  lastGroup,
		LastObjectID: lastObject,
	}, nil
}

// GoAway (0x10): server-initiated redirect. Unsupported; receipt is
// always fatal to the session.
type GoAway struct {
	NewSessionURI string
}

func (m GoAway) Encode(buf *wire.Buffer) error {
	return buf.WriteString(m.NewSessionURI)
}

func DecodeGoAway(r *wire.Reader) (GoAway, error) {
	uri, err := r.ReadString()
	return GoAway{NewSessionURI: uri}, err
}

// MaxRequestId (0x15): flow-control advertisement. Received values are
// logged and discarded; this client never blocks on request-id budget.
type MaxRequestId struct {
	MaximumRequestID uint64
}

func (m MaxRequestId) Encode(buf *wire.Buffer) error {
	return buf.WriteVarint53(m.MaximumRequestID)
}

func DecodeMaxRequestId(r *wire.Reader) (MaxRequestId, error) {
	v, err := r.ReadVarint53()
	return MaxRequestId{MaximumRequestID: v}, err
}

// RequestsBlocked (0x1a): peer signals it is withholding requests
// pending a higher MaxRequestId. Logged and discarded, same as
// MaxRequestId.
type RequestsBlocked struct {
	MaximumRequestID uint64
}

func (m RequestsBlocked) Encode(buf *wire.Buffer) error {
	return buf.WriteVarint53(m.MaximumRequestID)
}

func DecodeRequestsBlocked(r *wire.Reader) (RequestsBlocked, error) {
	v, err := r.ReadVarint53()
	return RequestsBlocked{MaximumRequestID: v}, err
}

// Unsupported message families: Fetch*, Publish*. This implementation
// never sends them and always treats receipt as a protocol error,
// matching original_source's publisher.rs::recv_publish (always
// replies with an error) and subscriber.rs's recv_fetch_ok/
// recv_fetch_error (always Error::Unsupported). The decode functions
// exist so a peer sending one produces a typed protocol error instead
// of an opaque parse failure.

func decodeUnsupported(typeID uint64) func(*wire.Reader) error {
	return func(r *wire.Reader) error {
		if _, err := r.ReadAll(); err != nil {
			return err
		}
		return errField(typeID, "type", ErrUnsupportedMessage)
	}
}

var (
	DecodeFetch        = decodeUnsupported(idFetch)
	DecodeFetchCancel  = decodeUnsupported(idFetchCancel)
	DecodeFetchOk      = decodeUnsupported(idFetchOk)
	DecodeFetchError   = decodeUnsupported(idFetchError)
	DecodePublish      = decodeUnsupported(idPublish)
	DecodePublishOk    = decodeUnsupported(idPublishOk)
	DecodePublishError = decodeUnsupported(idPublishError)
)
