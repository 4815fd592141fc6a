package ratelimit

import "net/http"

// transport implements http.RoundTripper and checks rate limits before
// forwarding requests to the underlying transport.
type transport struct {
	limiter *Limiter
	base    http.RoundTripper
	key     func(*http.Request) string
}

// Transport wraps an http.RoundTripper so that every outgoing request is
// counted against the identifier returned by key. A nil base uses
// http.DefaultTransport; a nil key identifies requests by URL host.
//
// Denied requests fail with a *LimitExceededError. Store failures are
// returned as-is and the request is not sent.
func (l *Limiter) Transport(base http.RoundTripper, key func(*http.Request) string) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	if key == nil {
		key = hostKey
	}
	return &transport{limiter: l, base: base, key: key}
}

func (t *transport) RoundTrip(req *http.Request) (*http.Response, error) {
	id := t.key(req)
	resp, err := t.limiter.Limit(req.Context(), id)
	if err != nil {
		return nil, err
	}
	if !resp.Allowed {
		return nil, &LimitExceededError{Identifier: id, Response: resp}
	}
	return t.base.RoundTrip(req)
}

func hostKey(req *http.Request) string {
	return req.URL.Host
}
