package registry

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AuthClaims represents the verified identity facts carried by a
// session token for the duration of one request.
type AuthClaims interface {
	Subject() string
	AccountID() uuid.UUID
	Email() string
	Role() Role
	// FarmerID returns the caller's farmer profile id, or nil for
	// accounts without a profile (admins).
	FarmerID() *uuid.UUID
	HasRole(role Role) bool
	IsAdmin() bool
	Expires() time.Time
	IssuedAt() time.Time
}

// JWTClaims is the concrete implementation of AuthClaims
type JWTClaims struct {
	jwt.RegisteredClaims
	UID       string `json:"uid,omitempty"`
	UserEmail string `json:"email,omitempty"`
	UserRole  string `json:"role,omitempty"`
	FID       string `json:"fid,omitempty"`
}

// Verify interface compliance
var _ AuthClaims = (*JWTClaims)(nil)

// Subject returns the subject claim
func (c *JWTClaims) Subject() string {
	return c.RegisteredClaims.Subject
}

// AccountID returns the account id carried by the token. A token whose
// uid claim is absent falls back to the subject.
func (c *JWTClaims) AccountID() uuid.UUID {
	raw := c.UID
	if raw == "" {
		raw = c.Subject()
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil
	}
	return id
}

// Email returns the account email at issuance time
func (c *JWTClaims) Email() string {
	return c.UserEmail
}

// Role returns the account role at issuance time
func (c *JWTClaims) Role() Role {
	return Role(c.UserRole)
}

// FarmerID returns the owning farmer profile id, nil when the token
// was issued for an account without a profile.
func (c *JWTClaims) FarmerID() *uuid.UUID {
	if c.FID == "" {
		return nil
	}
	id, err := uuid.Parse(c.FID)
	if err != nil {
		return nil
	}
	return &id
}

// HasRole checks if the claims carry a specific role
func (c *JWTClaims) HasRole(role Role) bool {
	return Role(c.UserRole) == role
}

// IsAdmin reports whether the claims carry the admin role
func (c *JWTClaims) IsAdmin() bool {
	return c.HasRole(RoleAdmin)
}

// Expires returns the expiration time
func (c *JWTClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// IssuedAt returns the issued at time
func (c *JWTClaims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}

// ClaimsForUser builds the claim set for an account using its current
// role and profile linkage. Claims are never re-derived mid-request
// from anything other than the token itself.
func ClaimsForUser(u *User) *JWTClaims {
	claims := &JWTClaims{
		UID:       u.ID.String(),
		UserEmail: u.Email,
		UserRole:  string(u.Role),
	}

	if fid := u.FarmerID(); fid != uuid.Nil {
		claims.FID = fid.String()
	}

	return claims
}

func ensureTokenID(claims *jwt.RegisteredClaims) {
	if claims.ID == "" {
		claims.ID = uuid.NewString()
	}
}
