// Package session models the authenticated caller: who they are, which role
// they act in and, for sellers, which branch they work for.
package session

import (
	"context"

	"github.com/go-faster/errors"
)

// Role distinguishes customers from branch sellers.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleSeller   Role = "seller"
)

// SellerMode is the privilege level of a seller. Owners may change catalog
// and coupon data; staff may only view and advance orders.
type SellerMode string

const (
	ModeOwner SellerMode = "owner"
	ModeStaff SellerMode = "staff"
)

var (
	// ErrUnauthenticated is returned when no session is attached to the request.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden is returned when the session lacks the required role.
	ErrForbidden = errors.New("forbidden")
)

// Session is established at login and discarded at logout. It is read once
// per request and passed explicitly to the components that need it.
type Session struct {
	Token      string
	UserID     int64
	Role       Role
	SellerMode SellerMode
	BranchID   int64
}

// IsSeller reports whether the session acts for a branch.
func (s *Session) IsSeller() bool {
	return s != nil && s.Role == RoleSeller
}

// IsOwner reports whether the session is a seller-owner.
func (s *Session) IsOwner() bool {
	return s.IsSeller() && s.SellerMode == ModeOwner
}

// RequireCustomer returns an error unless the session belongs to a customer.
func (s *Session) RequireCustomer() error {
	if s == nil || s.UserID == 0 {
		return ErrUnauthenticated
	}
	if s.Role != RoleCustomer {
		return errors.Wrap(ErrForbidden, "customer only")
	}
	return nil
}

// RequireSeller returns an error unless the session is a seller of branchID.
// A zero branchID accepts a seller of any branch.
func (s *Session) RequireSeller(branchID int64) error {
	if s == nil || s.UserID == 0 {
		return ErrUnauthenticated
	}
	if !s.IsSeller() || s.BranchID == 0 {
		return errors.Wrap(ErrForbidden, "seller only")
	}
	if branchID != 0 && s.BranchID != branchID {
		return errors.Wrapf(ErrForbidden, "seller of branch %d", branchID)
	}
	return nil
}

// RequireOwner returns an error unless the session is a seller-owner of
// branchID (any branch when zero).
func (s *Session) RequireOwner(branchID int64) error {
	if err := s.RequireSeller(branchID); err != nil {
		return err
	}
	if s.SellerMode != ModeOwner {
		return errors.Wrap(ErrForbidden, "owner only")
	}
	return nil
}

type sessionKey struct{}

// NewContext returns a copy of ctx carrying s.
func NewContext(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// FromContext returns the session stored in ctx, if any.
func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(*Session)
	return s, ok && s != nil
}
