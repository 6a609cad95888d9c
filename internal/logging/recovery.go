package logging

import (
	"fmt"
	"runtime/debug"

	"go.uber.org/zap"
)

// RecoveryHandler turns a panic inside one unit of work into an error
// so sibling units keep running.
type RecoveryHandler struct {
	Component string
	Logger    *zap.Logger
	OnPanic   func(err any, stack string)
}

// NewRecoveryHandler creates a recovery handler for a component.
func NewRecoveryHandler(component string, l *zap.Logger) *RecoveryHandler {
	return &RecoveryHandler{
		Component: component,
		Logger:    Component(l, component),
	}
}

// WrapError executes fn with panic recovery, returning error on panic.
func (r *RecoveryHandler) WrapError(fn func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = r.handlePanic(rec, string(debug.Stack()))
		}
	}()
	return fn()
}

func (r *RecoveryHandler) handlePanic(rec any, stack string) error {
	r.Logger.Error("panic recovered",
		zap.Any("panic", rec),
		zap.String("stack", stack),
	)
	if r.OnPanic != nil {
		r.OnPanic(rec, stack)
	}
	return fmt.Errorf("panic in %s: %v", r.Component, rec)
}
