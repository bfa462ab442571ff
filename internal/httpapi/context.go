package httpapi

import (
	"context"
	"errors"
	"net/http"
)

// errShuttingDown is the cancellation cause of in-flight requests when the
// server base context ends.
var errShuttingDown = errors.New("server shutting down")

// serverBaseCtx ends on process shutdown. Background unless set.
var serverBaseCtx = context.Background()

// SetBaseContext installs the process-level context; nil resets it.
func SetBaseContext(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	serverBaseCtx = ctx
}

// requestContext derives the handler context from r, additionally cancelled
// with errShuttingDown when the base context ends. cancel must be called.
func requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancelCause(r.Context())
	stop := context.AfterFunc(serverBaseCtx, func() { cancel(errShuttingDown) })
	return ctx, func() {
		stop()
		cancel(context.Canceled)
	}
}

// canceled reports whether the client went away or the server is stopping;
// no response is written in either case.
func canceled(r *http.Request) bool {
	return r.Context().Err() != nil || serverBaseCtx.Err() != nil
}
