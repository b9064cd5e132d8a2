// Package itemapprove provides the request orchestration layer the ItemApprove
// admin console talks to its REST backend through:
//
//   - Last-write-wins de-duplication: at most one in-flight request per request key
//   - Debouncing of rapid repeated calls (keystroke searches) into one network call
//   - Cooperative cancellation (per key, CancelAll on teardown, background eviction)
//   - Header injection (bearer token from a TokenStore, caller identity, content type)
//   - One classification point for transport, HTTP status and business failures
//   - Exactly one user-visible notification per terminal failure
//   - Session expiry handling on HTTP 401 (credential clear + single login redirect)
//   - Prometheus metrics and opt-in structured debug logging
//
// A request key is METHOD:url:query:body, with the query serialized in bracket
// notation (tags[]=a&tags[]=b). A new Send with the key of a request that is
// still debouncing or in flight cancels the older one, which returns a
// Cancelled error callers should treat as a silent no-op.
//
// Typical usage:
//
//	o := itemapprove.New(
//	    itemapprove.WithBaseURL("https://cmdb.example.com/api/v1"),
//	    itemapprove.WithTokenStore(store),
//	    itemapprove.WithNotifier(toast),
//	    itemapprove.WithLoginURL("/user/login"),
//	)
//	defer o.Close()
//	resp, err := o.Get(ctx, "/monitor-items", itemapprove.Params{"status": []string{"pending"}})
//	if itemapprove.IsCancelled(err) {
//	    return // superseded by a newer search
//	}
//
// Per-call behavior is set on the context: WithContextImmediate bypasses the
// debounce delay, WithContextDebounce overrides it, and
// WithContextSkipErrorHandler suppresses the notification (session handling
// on 401 still runs).
package itemapprove
