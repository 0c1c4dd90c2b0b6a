package registry

import (
	"github.com/google/uuid"
)

// Decision is the outcome of an access-policy evaluation.
type Decision int

const (
	// Deny blocks the operation
	Deny Decision = iota
	// Allow permits the operation
	Allow
)

// DenialReason distinguishes why a policy evaluation denied access.
type DenialReason int

const (
	// DenialNone means the decision was Allow
	DenialNone DenialReason = iota
	// DenialInsufficientRole means the caller's role is not in the
	// operation's required set
	DenialInsufficientRole
	// DenialNotOwner means the caller's farmer profile does not own
	// the target resource
	DenialNotOwner
)

// PolicyResult couples a decision with its denial reason.
type PolicyResult struct {
	Decision Decision
	Reason   DenialReason
}

// Allowed reports whether the evaluation permitted the operation.
func (r PolicyResult) Allowed() bool {
	return r.Decision == Allow
}

// Err maps a denial onto the error taxonomy; nil when allowed.
func (r PolicyResult) Err() error {
	switch r.Reason {
	case DenialInsufficientRole:
		return ErrInsufficientRole
	case DenialNotOwner:
		return ErrNotOwner
	default:
		return nil
	}
}

// CanAccess is the pure access decision for a single operation. It
// performs no I/O and trusts the claims as the sole identity source.
//
// Rules, evaluated in order:
//  1. a non-empty requiredRoles set the caller's role is not a member
//     of denies with InsufficientRole, before any ownership check
//  2. admins bypass ownership for every resource kind
//  3. a nil resourceOwnerFarmerID means the operation is not scoped to
//     a specific resource; the caller scopes its own query instead
//  4. otherwise the caller's farmer profile must own the resource
func CanAccess(claims AuthClaims, requiredRoles []Role, resourceOwnerFarmerID *uuid.UUID) PolicyResult {
	if claims == nil {
		return PolicyResult{Decision: Deny, Reason: DenialInsufficientRole}
	}

	if !RoleIn(claims.Role(), requiredRoles) {
		return PolicyResult{Decision: Deny, Reason: DenialInsufficientRole}
	}

	if claims.IsAdmin() {
		return PolicyResult{Decision: Allow}
	}

	if resourceOwnerFarmerID == nil {
		return PolicyResult{Decision: Allow}
	}

	callerFarmer := claims.FarmerID()
	if callerFarmer != nil && *callerFarmer == *resourceOwnerFarmerID {
		return PolicyResult{Decision: Allow}
	}

	return PolicyResult{Decision: Deny, Reason: DenialNotOwner}
}

func requireRoles(claims AuthClaims, roles ...Role) error {
	return CanAccess(claims, roles, nil).Err()
}

func authorizeOwner(claims AuthClaims, owner uuid.UUID) error {
	return CanAccess(claims, nil, &owner).Err()
}

// OwnerScope returns the ownership filter to apply as a query
// predicate on listing and aggregate operations. Admins get a nil
// scope (all records); everyone else is pinned to their own farmer
// profile. A farmer account without a profile scopes to uuid.Nil,
// which matches no records.
func OwnerScope(claims AuthClaims) *uuid.UUID {
	if claims == nil {
		nothing := uuid.Nil
		return &nothing
	}

	if claims.IsAdmin() {
		return nil
	}

	if fid := claims.FarmerID(); fid != nil {
		scoped := *fid
		return &scoped
	}

	nothing := uuid.Nil
	return &nothing
}

// ForceOwner pins a farmer-supplied owner id to the caller's own
// profile. Admins may create records for any farmer; a farmer caller
// can never create a record for another farmer, whatever owner the
// request carried.
func ForceOwner(claims AuthClaims, requested uuid.UUID) uuid.UUID {
	if claims == nil {
		return uuid.Nil
	}

	if claims.IsAdmin() {
		return requested
	}

	if fid := claims.FarmerID(); fid != nil {
		return *fid
	}

	return uuid.Nil
}
