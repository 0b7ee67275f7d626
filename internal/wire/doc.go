// Package wire implements the low-level codec shared by every MoQ
// message family: variable-length integers, length-delimited byte
// strings, and the two message-framing disciplines ("lite" and
// "draft-ietf-moq-transport-14"). It contains no knowledge of any
// particular control message or object-stream layout; those live in
// internal/control and internal/objectstream respectively.
package wire
