package log

import (
	"context"
	"flag"
	"fmt"

	"github.com/golang/glog"
)

// unique type to prevent foreign package collisions on the context key.
type clogContextKeyType struct{}

var clogContextKey = clogContextKeyType{}

var defaultLogLevel glog.Level = 3

type metadata map[string]any

func init() {
	if vFlag := flag.Lookup("v"); vFlag != nil {
		_ = vFlag.Value.Set(fmt.Sprintf("%d", defaultLogLevel))
	}
}

func (m metadata) flat() []any {
	out := make([]any, 0, len(m)*2)
	for k, v := range m {
		out = append(out, k, v)
	}
	return out
}

// WithLogValues returns a context carrying additional structured logging
// metadata, accumulated immutably (a child never mutates its parent's map).
func WithLogValues(ctx context.Context, args ...string) context.Context {
	old, _ := ctx.Value(clogContextKey).(metadata)
	merged := metadata{}
	for k, v := range old {
		merged[k] = v
	}
	for i := 1; i < len(args); i += 2 {
		merged[args[i-1]] = args[i]
	}
	return context.WithValue(ctx, clogContextKey, merged)
}

// LogCtx emits a verbose (glog -v gated) line carrying whatever metadata has
// accumulated on ctx via WithLogValues, scoped by "id" if present.
func LogCtx(ctx context.Context, message string, args ...any) {
	if !glog.V(defaultLogLevel) {
		return
	}
	meta, _ := ctx.Value(clogContextKey).(metadata)
	var id string
	if meta != nil {
		id, _ = meta["id"].(string)
	}
	allArgs := append([]any{}, meta.flat()...)
	allArgs = append(allArgs, args...)
	if id == "" {
		LogNoID(message, allArgs...)
	} else {
		Log(id, message, allArgs...)
	}
}
