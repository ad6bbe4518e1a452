package observe

import "testing"

func TestSubject_NotifyInOrder(t *testing.T) {
	var s Subject
	var calls []int
	s.Subscribe(func() { calls = append(calls, 1) })
	s.Subscribe(func() { calls = append(calls, 2) })

	s.Notify()

	if len(calls) != 2 || calls[0] != 1 || calls[1] != 2 {
		t.Errorf("calls = %v, want [1 2]", calls)
	}
}

func TestSubject_Unsubscribe(t *testing.T) {
	var s Subject
	count := 0
	unsub := s.Subscribe(func() { count++ })
	s.Notify()
	unsub()
	unsub()
	s.Notify()

	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
	if s.Len() != 0 {
		t.Errorf("Len() = %d, want 0", s.Len())
	}
}

func TestSubject_ListenerMaySubscribe(t *testing.T) {
	var s Subject
	inner := 0
	s.Subscribe(func() {
		s.Subscribe(func() { inner++ })
	})
	s.Notify()
	if s.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", s.Len())
	}
	s.Notify()
	if inner != 1 {
		t.Errorf("inner = %d, want 1", inner)
	}
}
