package hooks

import (
	"context"

	"github.com/conduit-lang/docmodel/internal/odm/schema"
)

// Operation names the model operation a hook runs for
type Operation string

const (
	OpCreate   Operation = "create"
	OpSave     Operation = "save"
	OpUpdate   Operation = "update"
	OpDelete   Operation = "delete"
	OpFind     Operation = "find"
	OpValidate Operation = "validate"
)

type contextKey struct{}

// Context wraps the caller's context with the operation being performed
// for hook execution
type Context struct {
	context.Context
	operation Operation
	class     *schema.Description
}

// NewContext creates a new hook context
func NewContext(ctx context.Context, op Operation, class *schema.Description) *Context {
	return &Context{
		Context:   ctx,
		operation: op,
		class:     class,
	}
}

// Value returns the hook context itself for its own key so it can be
// recovered from derived contexts
func (c *Context) Value(key interface{}) interface{} {
	if _, ok := key.(contextKey); ok {
		return c
	}
	return c.Context.Value(key)
}

// Operation returns the running operation
func (c *Context) Operation() Operation {
	return c.operation
}

// Class returns the description of the document's class
func (c *Context) Class() *schema.Description {
	return c.class
}

// ModelName returns the class name, or "" when unknown
func (c *Context) ModelName() string {
	if c.class == nil {
		return ""
	}
	return c.class.Name()
}

// FromContext returns the hook context carried by ctx
func FromContext(ctx context.Context) (*Context, bool) {
	if ctx == nil {
		return nil, false
	}
	hc, ok := ctx.Value(contextKey{}).(*Context)
	return hc, ok
}

// OperationFrom returns the operation and model name carried by ctx
func OperationFrom(ctx context.Context) (Operation, string, bool) {
	hc, ok := FromContext(ctx)
	if !ok {
		return "", "", false
	}
	return hc.operation, hc.ModelName(), true
}
