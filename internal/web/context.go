package web

import (
	"context"
	"net"
	"net/http"

	"github.com/JonMunkholm/ledger/internal/core"
)

// clientIP returns the request's client IP without the port. RemoteAddr has
// already been rewritten by TrustedRealIP when the peer is a trusted proxy.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// withRequestMetadata adds the client IP to ctx for import history.
func withRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	return core.ContextWithClientIP(ctx, clientIP(r))
}
