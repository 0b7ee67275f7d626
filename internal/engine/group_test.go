package engine

import (
	"errors"
	"testing"
	"time"
)

func TestGroupWriteReadFrame(t *testing.T) {
	g := newGroup(3)
	if err := g.WriteFrame([]byte("hello")); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	payload, ok := g.ReadFrame()
	if !ok {
		t.Fatal("ReadFrame: unexpected close")
	}
	if string(payload) != "hello" {
		t.Fatalf("payload = %q, want %q", payload, "hello")
	}
}

func TestGroupReadFrameDrainsBufferedBeforeClose(t *testing.T) {
	g := newGroup(1)
	if err := g.WriteFrame([]byte("a")); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	if err := g.WriteFrame([]byte("b")); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	g.Close()

	for _, want := range []string{"a", "b"} {
		payload, ok := g.ReadFrame()
		if !ok {
			t.Fatalf("ReadFrame: closed before draining %q", want)
		}
		if string(payload) != want {
			t.Fatalf("payload = %q, want %q", payload, want)
		}
	}
	if _, ok := g.ReadFrame(); ok {
		t.Fatal("ReadFrame: expected close after drain")
	}
}

func TestGroupCloseWithErrorPreservesErr(t *testing.T) {
	wantErr := errors.New("boom")
	g := newGroup(0)
	g.CloseWithError(wantErr)

	if _, ok := g.ReadFrame(); ok {
		t.Fatal("ReadFrame: expected close")
	}
	if err := g.Err(); !errors.Is(err, wantErr) {
		t.Fatalf("Err() = %v, want %v", err, wantErr)
	}
	if err := g.WriteFrame([]byte("x")); !errors.Is(err, wantErr) {
		t.Fatalf("WriteFrame() = %v, want %v", err, wantErr)
	}
}

func TestGroupCloseIsIdempotent(t *testing.T) {
	first := errors.New("first")
	second := errors.New("second")
	g := newGroup(0)
	g.CloseWithError(first)
	g.CloseWithError(second)
	if err := g.Err(); !errors.Is(err, first) {
		t.Fatalf("Err() = %v, want first error to stick", err)
	}
}

func TestGroupWriteFrameBlocksUntilRead(t *testing.T) {
	g := &Group{Sequence: 0, frames: make(chan []byte), closed: make(chan struct{})}
	done := make(chan error, 1)
	go func() { done <- g.WriteFrame([]byte("x")) }()

	select {
	case <-done:
		t.Fatal("WriteFrame returned before a reader consumed the frame")
	case <-time.After(20 * time.Millisecond):
	}

	if _, ok := g.ReadFrame(); !ok {
		t.Fatal("ReadFrame: unexpected close")
	}
	if err := <-done; err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
}
