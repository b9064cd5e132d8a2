package itemapprove

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

type cancelRecorder struct {
	causes []error
}

func (c *cancelRecorder) cancel(cause error) {
	c.causes = append(c.causes, cause)
}

func TestTrackerSupersedes(t *testing.T) {
	rt := NewRequestTracker()
	first, second := &cancelRecorder{}, &cancelRecorder{}

	p1, prev, err := rt.begin("GET:/items::", first.cancel)
	if err != nil || prev != StateIdle {
		t.Fatalf("begin() = %v, %v", prev, err)
	}
	if !rt.transition(p1, StateInFlight) {
		t.Fatal("Expected transition of current request to succeed")
	}

	p2, prev, err := rt.begin("GET:/items::", second.cancel)
	if err != nil {
		t.Fatalf("begin() returned error: %v", err)
	}
	if prev != StateInFlight {
		t.Errorf("Expected previous state in_flight, got %s", prev)
	}
	if len(first.causes) != 1 || !errors.Is(first.causes[0], ErrSuperseded) {
		t.Errorf("Expected first request to be superseded, got %v", first.causes)
	}
	if rt.transition(p1, StateInFlight) {
		t.Error("Expected transition of stale request to fail")
	}

	rt.finish(p1)
	if rt.Len() != 1 {
		t.Errorf("Expected stale finish to keep the newer entry, got %d", rt.Len())
	}
	if rt.State("GET:/items::") != StateDebouncing {
		t.Errorf("Expected debouncing, got %s", rt.State("GET:/items::"))
	}

	rt.finish(p2)
	if rt.Len() != 0 || rt.State("GET:/items::") != StateIdle {
		t.Error("Expected key to be freed")
	}
}

func TestTrackerCancelAll(t *testing.T) {
	rt := NewRequestTracker()
	recorders := make([]*cancelRecorder, 3)
	for i := range recorders {
		recorders[i] = &cancelRecorder{}
		if _, _, err := rt.begin(fmt.Sprintf("k%d", i), recorders[i].cancel); err != nil {
			t.Fatal(err)
		}
	}

	if n := rt.CancelAll(ErrCancelled); n != 3 {
		t.Errorf("Expected 3 cancelled, got %d", n)
	}
	if n := rt.CancelAll(ErrCancelled); n != 0 {
		t.Errorf("Expected second CancelAll to be a no-op, got %d", n)
	}
	for i, r := range recorders {
		if len(r.causes) != 1 {
			t.Errorf("request %d: expected one cancel, got %d", i, len(r.causes))
		}
	}

	if _, _, err := rt.begin("k9", (&cancelRecorder{}).cancel); err != nil {
		t.Errorf("Expected tracker to stay usable, got %v", err)
	}
}

func TestTrackerClose(t *testing.T) {
	rt := NewRequestTracker()
	r := &cancelRecorder{}
	_, _, _ = rt.begin("k", r.cancel)

	if n := rt.close(ErrClosed); n != 1 {
		t.Errorf("Expected 1 cancelled, got %d", n)
	}
	if _, _, err := rt.begin("k", r.cancel); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
}

func TestTrackerEvictOldest(t *testing.T) {
	tests := []struct {
		name    string
		tracked int
		ceiling int
		want    int
	}{
		{"under ceiling", 10, 10, 0},
		{"just over", 12, 10, 6},
		{"far over", 30, 10, 20},
		{"default ceiling", 1001, 1000, 500},
		{"disabled", 5, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt := NewRequestTracker()
			recorders := make([]*cancelRecorder, tt.tracked)
			for i := range recorders {
				recorders[i] = &cancelRecorder{}
				_, _, _ = rt.begin(fmt.Sprintf("k%04d", i), recorders[i].cancel)
			}

			if got := rt.EvictOldest(tt.ceiling, ErrEvicted); got != tt.want {
				t.Fatalf("EvictOldest() = %d, want %d", got, tt.want)
			}
			if rt.Len() != tt.tracked-tt.want {
				t.Errorf("Expected %d remaining, got %d", tt.tracked-tt.want, rt.Len())
			}
			for i, r := range recorders {
				evicted := len(r.causes) == 1 && errors.Is(r.causes[0], ErrEvicted)
				if evicted != (i < tt.want) {
					t.Errorf("request %d: evicted=%v, want %v", i, evicted, i < tt.want)
				}
			}
		})
	}
}

func TestTrackerWithContextCancel(t *testing.T) {
	rt := NewRequestTracker()
	ctx, cancel := context.WithCancelCause(context.Background())
	defer cancel(nil)

	_, _, _ = rt.begin("k", cancel)
	_, _, _ = rt.begin("k", func(error) {})

	if !errors.Is(context.Cause(ctx), ErrSuperseded) {
		t.Errorf("Expected ErrSuperseded cause, got %v", context.Cause(ctx))
	}
}
