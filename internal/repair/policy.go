package repair

import (
	"context"

	"github.com/pxng0lin/DeepCurrent/internal/domain"
	"github.com/pxng0lin/DeepCurrent/internal/validate"
)

// Policy decides whether an invalid or missing diagram is regenerated.
type Policy interface {
	Confirm(ctx context.Context, ref domain.ContractRef, kind domain.Kind, reason validate.Reason) bool
}

// PolicyFunc adapts a function to Policy.
type PolicyFunc func(ctx context.Context, ref domain.ContractRef, kind domain.Kind, reason validate.Reason) bool

// Confirm implements Policy.
func (f PolicyFunc) Confirm(ctx context.Context, ref domain.ContractRef, kind domain.Kind, reason validate.Reason) bool {
	return f(ctx, ref, kind, reason)
}

// Always regenerates without asking.
var Always Policy = PolicyFunc(func(context.Context, domain.ContractRef, domain.Kind, validate.Reason) bool { return true })

// Never reports problems and leaves artifacts alone.
var Never Policy = PolicyFunc(func(context.Context, domain.ContractRef, domain.Kind, validate.Reason) bool { return false })
