package lumen

import (
	"context"

	"github.com/google/uuid"
)

// CorrelationKey is the context field joining log lines of one logical
// operation.
const CorrelationKey = "correlation_id"

type ctxKey struct{}

// scope is one pushed set of context fields. Scopes form an immutable chain
// carried by context.Context, so exiting an inner scope (dropping its ctx)
// restores the outer one, and concurrent goroutines holding different
// contexts never observe each other's fields.
type scope struct {
	parent *scope
	fields Fields
}

// WithFields pushes fields onto the context scope chain and returns the
// derived context. The outermost scope is assigned a generated
// correlation_id unless the chain (or fields) already carries one.
func WithFields(ctx context.Context, fields Fields) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	parent, _ := ctx.Value(ctxKey{}).(*scope)

	fs := fields.clone()
	if _, ok := fs[CorrelationKey]; !ok && lookupScope(parent, CorrelationKey) == nil {
		fs[CorrelationKey] = uuid.NewString()
	}
	return context.WithValue(ctx, ctxKey{}, &scope{parent: parent, fields: fs})
}

// ContextFields returns the merged fields of every scope on the chain,
// innermost winning on key collision. The returned map is a copy.
func ContextFields(ctx context.Context) Fields {
	if ctx == nil {
		return nil
	}
	sc, _ := ctx.Value(ctxKey{}).(*scope)
	if sc == nil {
		return nil
	}

	// Outer scopes first so inner assignments overwrite them.
	var chain []*scope
	for s := sc; s != nil; s = s.parent {
		chain = append(chain, s)
	}
	merged := make(Fields)
	for i := len(chain) - 1; i >= 0; i-- {
		for k, v := range chain[i].fields {
			merged[k] = v
		}
	}
	return merged
}

// CorrelationID returns the correlation id of the current scope chain, or
// "" when no scope is active.
func CorrelationID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	sc, _ := ctx.Value(ctxKey{}).(*scope)
	if v := lookupScope(sc, CorrelationKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// lookupScope finds the innermost value for key, or nil.
func lookupScope(sc *scope, key string) any {
	for s := sc; s != nil; s = s.parent {
		if v, ok := s.fields[key]; ok {
			return v
		}
	}
	return nil
}
