package trace

import "context"

// ctxKey is the key type for storing Tracer in context.
type ctxKey struct{}

// parentKey stores the ID of the enclosing span.
type parentKey struct{}

// FromContext extracts the Tracer from context.
// If not found, returns Nop tracer.
func FromContext(ctx context.Context) Tracer {
	if ctx == nil {
		return Nop
	}
	if t, ok := ctx.Value(ctxKey{}).(Tracer); ok {
		return t
	}
	return Nop
}

// WithTracer attaches a Tracer to context.
func WithTracer(ctx context.Context, t Tracer) context.Context {
	if t == nil {
		t = Nop
	}
	return context.WithValue(ctx, ctxKey{}, t)
}

// ParentFrom returns the span ID stored by WithParent, or 0.
func ParentFrom(ctx context.Context) uint64 {
	if ctx == nil {
		return 0
	}
	if id, ok := ctx.Value(parentKey{}).(uint64); ok {
		return id
	}
	return 0
}

// WithParent records span as the parent for spans started from the returned context.
func WithParent(ctx context.Context, span *Span) context.Context {
	if span == nil || span.ID() == 0 {
		return ctx
	}
	return context.WithValue(ctx, parentKey{}, span.ID())
}

// Start begins a span using the tracer and parent found in ctx, and returns a
// context carrying the new span as parent.
//
//	ctx, span := trace.Start(ctx, trace.ScopeSync, "sync")
//	defer span.End("")
func Start(ctx context.Context, scope Scope, name string) (context.Context, *Span) {
	span := Begin(FromContext(ctx), scope, name, ParentFrom(ctx))
	return WithParent(ctx, span), span
}
