package itemapprove

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestSessionGuardSchedulesOnce(t *testing.T) {
	var fired int32
	g := &sessionGuard{
		handler:  SessionExpiredFunc(func(context.Context, string) { atomic.AddInt32(&fired, 1) }),
		loginURL: "/user/login",
		delay:    20 * time.Millisecond,
	}

	if !g.schedule() {
		t.Fatal("Expected first schedule to succeed")
	}
	if g.schedule() {
		t.Error("Expected second schedule to be deduplicated")
	}
	if !g.pending() {
		t.Error("Expected a pending redirect")
	}

	waitFor(t, func() bool { return atomic.LoadInt32(&fired) == 1 })
	waitFor(t, func() bool { return !g.pending() })

	if !g.schedule() {
		t.Error("Expected a new redirect after the previous one fired")
	}
	g.stop()
}

func TestSessionGuardStop(t *testing.T) {
	var fired int32
	g := &sessionGuard{
		handler: SessionExpiredFunc(func(context.Context, string) { atomic.AddInt32(&fired, 1) }),
		delay:   20 * time.Millisecond,
	}

	g.schedule()
	g.stop()
	time.Sleep(60 * time.Millisecond)

	if atomic.LoadInt32(&fired) != 0 {
		t.Error("Expected stopped guard not to redirect")
	}
	if g.schedule() {
		t.Error("Expected stopped guard to refuse scheduling")
	}
}

func TestExpireSessionClearsToken(t *testing.T) {
	tokens := NewMemoryTokenStore("abc")
	var redirects int32
	o := New(
		WithTokenStore(tokens),
		WithRedirectDelay(time.Millisecond),
		WithSessionExpiredHandler(SessionExpiredFunc(func(context.Context, string) {
			atomic.AddInt32(&redirects, 1)
		})),
		WithEvictInterval(0),
	)
	defer o.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	o.expireSession(ctx, "req-1")

	if token, _ := tokens.Token(context.Background()); token != "" {
		t.Errorf("Expected cleared token, got %q", token)
	}
	waitFor(t, func() bool { return atomic.LoadInt32(&redirects) == 1 })
}

func TestSessionGuardWait(t *testing.T) {
	var fired int32
	g := &sessionGuard{
		handler: SessionExpiredFunc(func(context.Context, string) { atomic.AddInt32(&fired, 1) }),
		delay:   20 * time.Millisecond,
	}

	if err := g.wait(context.Background()); err != nil {
		t.Fatalf("Expected wait without a pending redirect to return nil, got %v", err)
	}

	g.schedule()
	if err := g.wait(context.Background()); err != nil {
		t.Fatalf(unexpectedErrMsg, err)
	}
	if got := atomic.LoadInt32(&fired); got != 1 {
		t.Errorf("Expected the redirect to have run before wait returned, got %d", got)
	}

	g.schedule()
	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()
	if err := g.wait(ctx); err == nil {
		t.Error("Expected wait to honour the context deadline")
	}
	g.stop()
}

func TestSessionGuardStopReleasesWaiters(t *testing.T) {
	g := &sessionGuard{
		handler: SessionExpiredFunc(func(context.Context, string) {}),
		delay:   time.Hour,
	}
	g.schedule()

	released := make(chan error, 1)
	go func() { released <- g.wait(context.Background()) }()

	g.stop()
	select {
	case err := <-released:
		if err != nil {
			t.Errorf(unexpectedErrMsg, err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Expected stop to release waiters")
	}
}

func TestWaitRedirectBeforeClose(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	var redirects int32
	o, _ := newTestOrchestrator(t, server,
		WithDebounce(0),
		WithRedirectDelay(20*time.Millisecond),
		WithSessionExpiredHandler(SessionExpiredFunc(func(context.Context, string) {
			atomic.AddInt32(&redirects, 1)
		})),
	)

	if _, err := o.Get(context.Background(), "/items", nil); !IsUnauthorized(err) {
		t.Fatalf("Expected 401, got %v", err)
	}
	if err := o.WaitRedirect(context.Background()); err != nil {
		t.Fatalf(unexpectedErrMsg, err)
	}
	o.Close()

	if got := atomic.LoadInt32(&redirects); got != 1 {
		t.Errorf("Expected 1 redirect, got %d", got)
	}
}

// blockingClearStore holds ClearToken open until release is closed.
type blockingClearStore struct {
	*MemoryTokenStore
	clears  int32
	entered chan struct{}
	release chan struct{}
}

func (s *blockingClearStore) ClearToken(ctx context.Context) error {
	if atomic.AddInt32(&s.clears, 1) == 1 {
		close(s.entered)
	}
	<-s.release
	return s.MemoryTokenStore.ClearToken(ctx)
}

func TestConcurrentUnauthorizedClearsTokenOnce(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	store := &blockingClearStore{
		MemoryTokenStore: NewMemoryTokenStore("abc"),
		entered:          make(chan struct{}),
		release:          make(chan struct{}),
	}
	o, _ := newTestOrchestrator(t, server,
		WithDebounce(0),
		WithTokenStore(store),
		WithRedirectDelay(time.Hour),
	)

	first := make(chan error, 1)
	go func() {
		_, err := o.Get(context.Background(), "/a", nil)
		first <- err
	}()
	<-store.entered

	if _, err := o.Get(context.Background(), "/b", nil); !IsUnauthorized(err) {
		t.Fatalf("Expected 401, got %v", err)
	}
	if got := atomic.LoadInt32(&store.clears); got != 1 {
		t.Errorf("Expected the second 401 to skip the clear, got %d clears", got)
	}

	close(store.release)
	if err := <-first; !IsUnauthorized(err) {
		t.Fatalf("Expected 401, got %v", err)
	}
	if token, _ := store.Token(context.Background()); token != "" {
		t.Errorf("Expected cleared token, got %q", token)
	}
}
