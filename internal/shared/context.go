package shared

import "context"

// Operator roles.
const (
	RoleOperator = "operator"
	RoleApprover = "approver"
)

// Operator is the authenticated identity attached to each request by the
// auth middleware. The core never decides authorization policy; it only
// checks ownership and the presence of a role.
type Operator struct {
	ID    string
	Name  string
	Roles []string
}

// HasRole reports whether the operator carries the role.
func (o Operator) HasRole(role string) bool {
	for _, r := range o.Roles {
		if r == role {
			return true
		}
	}
	return false
}

type operatorContextKey struct{}

// ContextWithOperator stores the operator in context.
func ContextWithOperator(ctx context.Context, op Operator) context.Context {
	return context.WithValue(ctx, operatorContextKey{}, op)
}

// OperatorFromContext extracts the operator from context. The second return
// is false for unauthenticated requests.
func OperatorFromContext(ctx context.Context) (Operator, bool) {
	op, ok := ctx.Value(operatorContextKey{}).(Operator)
	return op, ok
}
