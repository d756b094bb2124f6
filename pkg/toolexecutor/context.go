package toolexecutor

import "context"

type callKey struct{}

// ContextWithCall attaches the in-flight call to a context.Context so executors
// and nested helpers can read the call ID and caller identity.
func ContextWithCall(ctx context.Context, call *Call) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if call == nil {
		return ctx
	}
	return context.WithValue(ctx, callKey{}, call)
}

// CallFromContext extracts the in-flight call from a context.Context.
func CallFromContext(ctx context.Context) *Call {
	if ctx == nil {
		return nil
	}
	if call, ok := ctx.Value(callKey{}).(*Call); ok {
		return call
	}
	return nil
}
