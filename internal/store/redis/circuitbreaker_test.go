package redis

import (
	"errors"
	"testing"
	"time"
)

var errProbe = errors.New("probe failed")

func failN(cb *CircuitBreaker, n int) {
	for i := 0; i < n; i++ {
		cb.Execute(func() error { return errProbe })
	}
}

func TestCircuitBreaker_StartsClosed(t *testing.T) {
	cb := NewCircuitBreaker(3, 100*time.Millisecond)
	if got := cb.CurrentState(); got != StateClosed {
		t.Errorf("initial state: got %v want closed", got)
	}
}

func TestCircuitBreaker_TripsAtThreshold(t *testing.T) {
	cb := NewCircuitBreaker(3, 100*time.Millisecond)

	failN(cb, 2)
	if got := cb.CurrentState(); got != StateClosed {
		t.Fatalf("below threshold: got %v want closed", got)
	}

	failN(cb, 1)
	if got := cb.CurrentState(); got != StateOpen {
		t.Fatalf("at threshold: got %v want open", got)
	}

	// Open breaker fails fast without running the call.
	ran := false
	err := cb.Execute(func() error { ran = true; return nil })
	if err != ErrCircuitOpen {
		t.Errorf("open breaker: got %v want ErrCircuitOpen", err)
	}
	if ran {
		t.Error("open breaker ran the call")
	}
}

func TestCircuitBreaker_ProbeClosesOnSuccess(t *testing.T) {
	cb := NewCircuitBreaker(2, 50*time.Millisecond)
	failN(cb, 2)

	time.Sleep(60 * time.Millisecond)

	if err := cb.Execute(func() error { return nil }); err != nil {
		t.Fatalf("probe: %v", err)
	}
	if got := cb.CurrentState(); got != StateClosed {
		t.Errorf("after successful probe: got %v want closed", got)
	}
}

func TestCircuitBreaker_ProbeReopensOnFailure(t *testing.T) {
	cb := NewCircuitBreaker(2, 50*time.Millisecond)
	failN(cb, 2)

	time.Sleep(60 * time.Millisecond)

	cb.Execute(func() error { return errProbe })
	if got := cb.CurrentState(); got != StateOpen {
		t.Errorf("after failed probe: got %v want open", got)
	}
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker(3, 100*time.Millisecond)

	failN(cb, 2)
	cb.Execute(func() error { return nil })
	failN(cb, 2)

	if got := cb.CurrentState(); got != StateClosed {
		t.Errorf("interleaved success must reset the count: got %v", got)
	}
}

func TestCircuitBreaker_StateChangeCallback(t *testing.T) {
	var transitions []State
	cb := NewCircuitBreaker(1, 50*time.Millisecond)
	cb.OnStateChange = func(from, to State) {
		transitions = append(transitions, to)
	}

	failN(cb, 1)
	time.Sleep(60 * time.Millisecond)
	if err := cb.Execute(func() error { return nil }); err != nil {
		t.Fatalf("probe: %v", err)
	}

	want := []State{StateOpen, StateHalfOpen, StateClosed}
	if len(transitions) != len(want) {
		t.Fatalf("transitions: got %v want %v", transitions, want)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Fatalf("transition %d: got %v want %v", i, transitions[i], want[i])
		}
	}
}
