// Package control implements the ietf and lite control-message
// catalogs carried on a session's single bidirectional control
// stream: message structs, their wire encode/decode, the parameter
// map, and the stream multiplexer that serializes concurrent readers
// and writers and allocates request ids.
package control
