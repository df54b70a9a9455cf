// Package snsctx carries per-call options for bus transports through context.
package snsctx

import "context"

type ctxIndex int

const (
	ctxIndexVerbose ctxIndex = iota
	ctxIndexSource
)

// IsVerbose reports whether transports should log every transfer.
func IsVerbose(ctx context.Context) bool {
	val, _ := ctx.Value(ctxIndexVerbose).(bool)
	return val
}

func SetVerbose(ctx context.Context, value bool) context.Context {
	return context.WithValue(ctx, ctxIndexVerbose, value)
}

// Source returns the name of the transport a reading was taken through, if set.
func Source(ctx context.Context) string {
	val, _ := ctx.Value(ctxIndexSource).(string)
	return val
}

func SetSource(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, ctxIndexSource, name)
}
