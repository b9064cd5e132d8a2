package itemapprove

import (
	"context"
	"net/http"
	"testing"
	"time"
)

func TestRequestStateString(t *testing.T) {
	tests := []struct {
		state RequestState
		want  string
	}{
		{StateIdle, "idle"},
		{StateDebouncing, "debouncing"},
		{StateInFlight, "in_flight"},
		{RequestState(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("RequestState(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestContextKey(t *testing.T) {
	if string(CallControlKey) != "itemapprove_call_control" {
		t.Errorf("Unexpected context key %q", CallControlKey)
	}
}

func TestCallControlDefaults(t *testing.T) {
	cc := callControlFrom(context.Background())

	if cc.Debounce != nil || cc.Immediate || cc.SkipErrorHandler {
		t.Errorf("Expected zero CallControl, got %+v", cc)
	}
}

func TestCallControlComposes(t *testing.T) {
	ctx := WithContextDebounce(context.Background(), 10*time.Millisecond)
	ctx = WithContextSkipErrorHandler(ctx)

	cc := callControlFrom(ctx)
	if cc.Debounce == nil || *cc.Debounce != 10*time.Millisecond {
		t.Errorf("Expected debounce override, got %+v", cc)
	}
	if !cc.SkipErrorHandler {
		t.Error("Expected SkipErrorHandler")
	}

	parent := callControlFrom(WithContextDebounce(context.Background(), time.Second))
	if *parent.Debounce != time.Second {
		t.Error("Expected derived context not to change its parent")
	}
}

func TestDebounceFor(t *testing.T) {
	o := New(WithDebounce(300*time.Millisecond), WithEvictInterval(0))

	if got := o.debounceFor(CallControl{}); got != 300*time.Millisecond {
		t.Errorf("Expected default debounce, got %v", got)
	}
	d := 20 * time.Millisecond
	if got := o.debounceFor(CallControl{Debounce: &d}); got != d {
		t.Errorf("Expected override, got %v", got)
	}
	if got := o.debounceFor(CallControl{Debounce: &d, Immediate: true}); got != 0 {
		t.Errorf("Expected immediate to win, got %v", got)
	}
}

func TestRoundTripperFunc(t *testing.T) {
	called := false
	rt := RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
		called = true
		return &http.Response{StatusCode: http.StatusOK}, nil
	})

	req, _ := http.NewRequest(http.MethodGet, "http://example.com", nil)
	resp, err := rt.RoundTrip(req)
	if err != nil {
		t.Fatalf("RoundTrip returned error: %v", err)
	}
	if !called || resp.StatusCode != http.StatusOK {
		t.Error("Expected RoundTripperFunc to delegate")
	}
}
