// Package objectstream implements the ietf object-stream wire format:
// the group header carried at the start of every unidirectional
// object stream, and the frame objects that follow it. It has no
// knowledge of sessions, tracks, or subscriptions; internal/engine
// couples decoded groups and frames to the subscription they belong
// to.
package objectstream
