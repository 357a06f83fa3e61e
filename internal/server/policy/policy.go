// Package policy declares per-route authorization rules and evaluates them
// against an authenticated principal.
package policy

import (
	"context"
	"strconv"
	"time"

	"github.com/pathwayfr/pathway/internal/common"
	"github.com/pathwayfr/pathway/internal/server/auth"
)

type Kind int

const (
	Public Kind = iota
	RequiresAuth
	RequiresRole
	RequiresOwnerOrRole
)

func (k Kind) String() string {
	switch k {
	case Public:
		return "public"
	case RequiresAuth:
		return "auth"
	case RequiresRole:
		return "role"
	case RequiresOwnerOrRole:
		return "owner_or_role"
	default:
		return "unknown"
	}
}

// Principal is the identity resolved from a verified bearer token.
type Principal struct {
	UserID    int64
	Email     string
	Role      string
	TokenID   string
	ExpiresAt time.Time
}

// OwnerFunc loads the owner user id of the resource named by target.
type OwnerFunc func(ctx context.Context, target string) (int64, error)

// Guard is an extra check run after the main rule passed.
type Guard func(ctx context.Context, p *Principal, target string) error

// Policy is the authorization rule of one route.
type Policy struct {
	Kind Kind
	Role string
	// Purpose is the token purpose accepted by the route; empty means access.
	Purpose auth.Purpose
	// Target names the path parameter identifying the resource acted upon.
	Target string
	Owner  OwnerFunc
	Guards []Guard
}

func AllowPublic() Policy { return Policy{Kind: Public} }

func Authenticated() Policy { return Policy{Kind: RequiresAuth} }

func Role(role string) Policy { return Policy{Kind: RequiresRole, Role: role} }

// OwnerOrRole lets the resource owner through, or anyone holding role.
func OwnerOrRole(role, target string, owner OwnerFunc) Policy {
	return Policy{Kind: RequiresOwnerOrRole, Role: role, Target: target, Owner: owner}
}

// WithPurpose returns a copy of p accepting tokens of purpose.
func (p Policy) WithPurpose(purpose auth.Purpose) Policy {
	p.Purpose = purpose
	return p
}

// WithGuards returns a copy of p guarded on the path parameter target.
func (p Policy) WithGuards(target string, guards ...Guard) Policy {
	p.Target = target
	p.Guards = append(append([]Guard(nil), p.Guards...), guards...)
	return p
}

// TokenPurpose returns the purpose a bearer token must have.
func (p Policy) TokenPurpose() auth.Purpose {
	if p.Purpose == "" {
		return auth.PurposeAccess
	}
	return p.Purpose
}

// NeedsPrincipal reports whether the route requires a bearer token.
func (p Policy) NeedsPrincipal() bool {
	return p.Kind != Public
}

// Decide evaluates p. principal is nil for anonymous requests; target is
// the value of the p.Target path parameter.
func (p Policy) Decide(ctx context.Context, principal *Principal, target string) error {
	if p.Kind == Public {
		return nil
	}
	if principal == nil {
		return common.ErrTokenMissing
	}

	switch p.Kind {
	case RequiresAuth:
	case RequiresRole:
		if principal.Role != p.Role {
			return common.ErrorForbidden
		}
	case RequiresOwnerOrRole:
		if principal.Role != p.Role {
			if p.Owner == nil {
				return common.ErrorForbidden
			}
			owner, err := p.Owner(ctx, target)
			if err != nil {
				return err
			}
			if owner != principal.UserID {
				return common.ErrorForbidden
			}
		}
	default:
		return common.ErrorForbidden
	}

	for _, g := range p.Guards {
		if err := g(ctx, principal, target); err != nil {
			return err
		}
	}
	return nil
}

// ParseID parses a numeric path parameter.
func ParseID(target string) (int64, error) {
	id, err := strconv.ParseInt(target, 10, 64)
	if err != nil || id <= 0 {
		return 0, common.Validation("invalid id %q", target)
	}
	return id, nil
}

// NotSelf rejects actions whose target user is the caller.
func NotSelf() Guard {
	return func(_ context.Context, p *Principal, target string) error {
		id, err := ParseID(target)
		if err != nil {
			return err
		}
		if id == p.UserID {
			return common.ErrCannotActOnSelf
		}
		return nil
	}
}

// RoleFunc loads the role of a user.
type RoleFunc func(ctx context.Context, userID int64) (string, error)

// NotTargetRole rejects actions on users holding role.
func NotTargetRole(role string, lookup RoleFunc) Guard {
	return func(ctx context.Context, _ *Principal, target string) error {
		id, err := ParseID(target)
		if err != nil {
			return err
		}
		got, err := lookup(ctx, id)
		if err != nil {
			return err
		}
		if got == role {
			return common.ErrCannotTouchAdmin
		}
		return nil
	}
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the principal stored by the gate, or nil.
func PrincipalFrom(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey{}).(*Principal)
	return p
}
