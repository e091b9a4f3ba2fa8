// Package hooks runs the lifecycle hooks a class declares around model
// operations.
package hooks

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/conduit-lang/docmodel/internal/odm/schema"
)

// ErrHookFailed wraps every error returned by a hook
var ErrHookFailed = errors.New("hook failed")

// Executor executes lifecycle hooks for documents
type Executor struct {
	logger *zap.Logger
}

// NewExecutor creates a new hook executor. A nil logger discards output.
func NewExecutor(logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{logger: logger}
}

// Run executes the hooks of hookType declared on the document's class, base
// class hooks first. The first failure stops the chain and is returned wrapped
// with the hook name.
func (e *Executor) Run(ctx context.Context, op Operation, hookType schema.HookType, doc schema.Accessor) error {
	desc := doc.Schema()
	hooks := desc.Hooks(hookType)
	if len(hooks) == 0 {
		return nil
	}

	hookCtx := NewContext(ctx, op, desc)
	for i, fn := range hooks {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.call(hookCtx, fn, doc); err != nil {
			e.logger.Warn("hook failed",
				zap.String("model", desc.Name()),
				zap.String("hook", hookType.String()),
				zap.Int("position", i),
				zap.String("operation", string(op)),
				zap.Error(err),
			)
			return fmt.Errorf("%w: %s on %s: %w", ErrHookFailed, hookType.String(), desc.Name(), err)
		}
	}

	e.logger.Debug("hooks executed",
		zap.String("model", desc.Name()),
		zap.String("hook", hookType.String()),
		zap.Int("count", len(hooks)),
	)
	return nil
}

// call runs a single hook, turning a panic into an error
func (e *Executor) call(ctx *Context, fn schema.HookFunc, doc schema.Accessor) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx, doc)
}
