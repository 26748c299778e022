package web

import (
	"context"
	"net"
	"net/http"

	"github.com/JonMunkholm/cms/internal/core"
	"github.com/JonMunkholm/cms/internal/logging"
)

// clientIP returns the host part of RemoteAddr, which TrustedRealIP has
// already rewritten for trusted proxies.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// withRequestMetadata tags ctx with the import source and a logger carrying
// the client address.
func withRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	ip := clientIP(r)
	ctx = core.ContextWithSource(ctx, "http "+ip)
	return logging.NewContext(ctx, logging.WithFields(ctx, "client_ip", ip))
}
