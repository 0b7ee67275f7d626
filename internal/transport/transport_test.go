package transport

import "testing"

// stubStream is a minimal transport.Stream used to check the
// PriorityStream optional-interface pattern other packages rely on.
type stubStream struct {
	Stream
	priority int32
	hasPrio  bool
}

func (s *stubStream) SetPriority(p int32) {
	s.priority = p
	s.hasPrio = true
}

func TestPriorityStreamIsOptional(t *testing.T) {
	t.Parallel()

	var s Stream = &stubStream{}
	if _, ok := s.(PriorityStream); !ok {
		t.Fatal("stubStream should implement PriorityStream")
	}

	var plain Stream = struct {
		Stream
	}{}
	if _, ok := plain.(PriorityStream); ok {
		t.Fatal("plain wrapper should not implement PriorityStream")
	}
}
