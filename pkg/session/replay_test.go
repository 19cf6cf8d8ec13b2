package session

import "testing"

func TestStrictMonotonicGuardRejectsNonIncreasing(t *testing.T) {
	g := NewStrictMonotonicGuard()
	if err := g.Accept(5); err != nil {
		t.Fatalf("Accept(5): %v", err)
	}
	if err := g.Accept(5); err != ErrReplay {
		t.Fatalf("Accept(5) again: got %v, want ErrReplay", err)
	}
	if err := g.Accept(4); err != ErrReplay {
		t.Fatalf("Accept(4): got %v, want ErrReplay", err)
	}
	if err := g.Accept(6); err != nil {
		t.Fatalf("Accept(6): %v", err)
	}
}

func TestSlidingWindowGuardToleratesReordering(t *testing.T) {
	g := NewSlidingWindowGuard()
	if err := g.Accept(10); err != nil {
		t.Fatalf("Accept(10): %v", err)
	}
	if err := g.Accept(8); err != nil {
		t.Fatalf("Accept(8) reordered within window: %v", err)
	}
	if err := g.Accept(9); err != nil {
		t.Fatalf("Accept(9) reordered within window: %v", err)
	}
	if err := g.Accept(9); err != ErrReplay {
		t.Fatalf("Accept(9) again: got %v, want ErrReplay", err)
	}
}

func TestSlidingWindowGuardRejectsTooOld(t *testing.T) {
	g := NewSlidingWindowGuard()
	if err := g.Accept(1000); err != nil {
		t.Fatalf("Accept(1000): %v", err)
	}
	if err := g.Accept(1000 - windowSize); err != ErrReplay {
		t.Fatalf("expected ErrReplay for a sequence number outside the window, got %v", err)
	}
}

func TestSlidingWindowGuardAdvancesHighWaterMark(t *testing.T) {
	g := NewSlidingWindowGuard()
	if err := g.Accept(1); err != nil {
		t.Fatalf("Accept(1): %v", err)
	}
	if err := g.Accept(1000); err != nil {
		t.Fatalf("Accept(1000): %v", err)
	}
	// 1 is now far outside the window relative to the new high-water mark.
	if err := g.Accept(1); err != ErrReplay {
		t.Fatalf("expected ErrReplay, got %v", err)
	}
}
