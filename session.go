package itemapprove

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Yuexixi123/ItemApprove-sub001/internal/singleflight"
)

// SessionExpiredHandler sends the user to the login entry point.
type SessionExpiredHandler interface {
	Redirect(ctx context.Context, loginURL string)
}

// SessionExpiredFunc adapts a function to SessionExpiredHandler.
type SessionExpiredFunc func(ctx context.Context, loginURL string)

func (f SessionExpiredFunc) Redirect(ctx context.Context, loginURL string) {
	f(ctx, loginURL)
}

// sessionGuard schedules at most one login redirect at a time no matter how
// many concurrent requests observe a 401.
type sessionGuard struct {
	mu       sync.Mutex
	handler  SessionExpiredHandler
	loginURL string
	delay    time.Duration
	timer    *time.Timer
	// done is closed once the scheduled redirect has run or been stopped.
	done    chan struct{}
	stopped bool
}

// schedule reports whether this call scheduled the redirect.
func (g *sessionGuard) schedule() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.stopped || g.timer != nil || g.handler == nil {
		return false
	}
	g.done = make(chan struct{})
	g.timer = time.AfterFunc(g.delay, g.fire)
	return true
}

func (g *sessionGuard) fire() {
	g.mu.Lock()
	handler, loginURL := g.handler, g.loginURL
	g.timer = nil
	done := g.done
	stopped := g.stopped
	g.mu.Unlock()

	if !stopped {
		handler.Redirect(context.Background(), loginURL)
	}

	g.mu.Lock()
	if g.done == done {
		g.done = nil
	}
	g.mu.Unlock()
	if done != nil {
		close(done)
	}
}

func (g *sessionGuard) pending() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.timer != nil
}

// wait blocks until the scheduled redirect, if any, has run.
func (g *sessionGuard) wait(ctx context.Context) error {
	g.mu.Lock()
	done := g.done
	g.mu.Unlock()

	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *sessionGuard) stop() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.stopped = true
	if g.timer != nil {
		// A timer that already fired closes done itself.
		if g.timer.Stop() && g.done != nil {
			close(g.done)
			g.done = nil
		}
		g.timer = nil
	}
}

// WaitRedirect blocks until a scheduled login redirect has been handed to
// the SessionExpiredHandler, or ctx is done. It returns at once when no
// redirect is pending. Short-lived callers use it before Close, which
// cancels a pending redirect.
func (o *Orchestrator) WaitRedirect(ctx context.Context) error {
	return o.session.wait(ctx)
}

// expireSession clears stored credentials and schedules the login redirect.
// It runs for every 401 regardless of SkipErrorHandler.
func (o *Orchestrator) expireSession(ctx context.Context, requestID string) {
	ctx = context.WithoutCancel(ctx)
	if o.tokens != nil {
		// A batch of 401s needs one clear; the others skip while it runs.
		_, err, _ := o.tokenClears.TryDo(tokenLookupKey, func() (struct{}, error) {
			return struct{}{}, o.tokens.ClearToken(ctx)
		})
		switch {
		case errors.Is(err, singleflight.ErrInProgress):
			if d := o.debug; d != nil && d.Enabled && d.LogSession && o.logger != nil {
				o.logger.Debug("Token clear already in progress", "requestID", requestID)
			}
		case err != nil:
			o.log().Warn("Failed to clear stored token", "requestID", requestID, "error", err)
		}
	}
	o.tokenLookups.Forget(tokenLookupKey)

	scheduled := o.session.schedule()
	if scheduled && o.metrics != nil {
		o.metrics.RecordSessionExpired()
	}
	if d := o.debug; d != nil && d.Enabled && d.LogSession && o.logger != nil {
		o.logger.Info("Session expired", "requestID", requestID, "redirectScheduled", scheduled, "loginURL", o.session.loginURL, "delay", o.session.delay)
	}
}
