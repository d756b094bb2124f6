package toolexecutor

import "context"

// Call is the per-invocation view shared by the middleware chain. Middleware
// may rewrite Args in place before calling next; the executor receives
// whatever Args hold when the chain reaches it.
type Call struct {
	ID       string
	ToolName string
	Args     map[string]interface{}
	Context  ExecutionContext
}

// Handler runs the remainder of a chain.
type Handler func(ctx context.Context, call *Call) (interface{}, error)

// Middleware intercepts a call. It either calls next (possibly with a
// different *Call) or short-circuits by returning without calling it.
type Middleware func(ctx context.Context, call *Call, next Handler) (interface{}, error)

// Chain wraps terminal with mws so that mws[0] is the outermost layer: it sees
// the call first and the result last.
func Chain(terminal Handler, mws ...Middleware) Handler {
	h := terminal
	for i := len(mws) - 1; i >= 0; i-- {
		h = wrap(mws[i], h)
	}
	return h
}

func wrap(mw Middleware, next Handler) Handler {
	return func(ctx context.Context, call *Call) (interface{}, error) {
		return mw(ctx, call, next)
	}
}

// executorHandler is the innermost stage of every chain.
func executorHandler(exec Executor) Handler {
	return func(ctx context.Context, call *Call) (interface{}, error) {
		return exec(ctx, call.Args, call.Context)
	}
}
