// Package moq is a client implementation of Media-over-QUIC Transport
// (draft-ietf-moq-transport-14) over WebTransport. It publishes and
// subscribes to named broadcasts made of tracks, groups, and frames,
// and lets an application discover peer-announced namespaces.
//
// The wire codec, control-message multiplexer, and session engine
// live in internal packages; this package validates paths and adapts
// the engine's plain-string API to the typed Path/Broadcast/Track
// surface applications use.
package moq
