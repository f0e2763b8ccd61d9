package mcpserver

import (
	"context"
	"net/http"
)

type headersKey struct{}

// WithHeaders attaches call metadata to ctx. The HTTP transport stores the
// inbound request headers; stdio callers attach static headers themselves.
func WithHeaders(ctx context.Context, h http.Header) context.Context {
	return context.WithValue(ctx, headersKey{}, h.Clone())
}

// HeadersFromContext returns the call metadata of the current request.
// It never returns nil.
func HeadersFromContext(ctx context.Context) http.Header {
	if h, ok := ctx.Value(headersKey{}).(http.Header); ok && h != nil {
		return h
	}
	return http.Header{}
}
