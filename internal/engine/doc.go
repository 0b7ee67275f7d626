// Package engine implements the session engine: the multiplexer that
// rides a transport.Session, runs the control-message loop and the
// unidirectional object-stream acceptor, and exposes the Publisher and
// Subscriber halves of the publish/subscribe surface. It works entirely
// in plain strings for namespaces and track names; the moq package at
// the module root wraps this with the validated Path type.
package engine
