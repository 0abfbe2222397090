package web

import (
	"context"
	"net/http"

	"github.com/JonMunkholm/tplimport/internal/core"
)

// WithRequestMetadata copies the client address and User-Agent into ctx so
// import audit entries can record where a batch came from.
func WithRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	ctx = core.ContextWithIPAddress(ctx, r.RemoteAddr) // rewritten by TrustedRealIP
	return core.ContextWithUserAgent(ctx, r.UserAgent())
}
