package registry

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Role is the account's role
type Role = string

const (
	// RoleAdmin can see and mutate every farmer and crop record
	RoleAdmin Role = "ADMIN"
	// RoleFarmer is scoped to its own farmer profile and crop records
	RoleFarmer Role = "FARMER"
)

// CropType is the enumerated crop category
type CropType = string

const (
	CropTypeCereals    CropType = "CEREALS"
	CropTypeVegetables CropType = "VEGETABLES"
	CropTypeFruits     CropType = "FRUITS"
	CropTypeLegumes    CropType = "LEGUMES"
	CropTypeTubers     CropType = "TUBERS"
	CropTypeOther      CropType = "OTHER"
)

// DefaultCropUnit is used when a crop record omits its unit
const DefaultCropUnit = "kg"

// User is the account model. The role is set at creation and never
// changes through any operation in this package.
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Email         string     `bun:"email,notnull,unique" json:"email,omitempty"`
	PasswordHash  string     `bun:"password_hash,notnull" json:"-"`
	Role          Role       `bun:"user_role,notnull" json:"role,omitempty"`
	Farmer        *Farmer    `bun:"rel:has-one,join:id=user_id" json:"farmer,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// Farmer is the per-farmer profile, owned by exactly one account.
// UserID is immutable once set.
type Farmer struct {
	bun.BaseModel `bun:"table:farmers,alias:frm"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	UserID        uuid.UUID  `bun:"user_id,notnull,unique,type:uuid" json:"user_id,omitempty"`
	User          *User      `bun:"rel:belongs-to,join:user_id=id" json:"user,omitempty"`
	FirstName     string     `bun:"first_name,notnull" json:"first_name,omitempty"`
	LastName      string     `bun:"last_name,notnull" json:"last_name,omitempty"`
	Phone         string     `bun:"phone" json:"phone,omitempty"`
	Address       string     `bun:"address" json:"address,omitempty"`
	DateOfBirth   *time.Time `bun:"date_of_birth,nullzero" json:"date_of_birth,omitempty"`
	NationalID    string     `bun:"national_id" json:"national_id,omitempty"`
	FarmSize      float64    `bun:"farm_size,nullzero" json:"farm_size,omitempty"`
	FarmLocation  string     `bun:"farm_location" json:"farm_location,omitempty"`
	Crops         []*Crop    `bun:"rel:has-many,join:id=farmer_id" json:"crops,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// FullName joins the profile's first and last name.
func (f *Farmer) FullName() string {
	if f == nil {
		return ""
	}
	if f.LastName == "" {
		return f.FirstName
	}
	return f.FirstName + " " + f.LastName
}

// Crop is a quantity of a crop type owned by exactly one farmer
// profile. FarmerID is required at creation and a farmer caller can
// never reassign it.
type Crop struct {
	bun.BaseModel `bun:"table:crops,alias:crp"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	FarmerID      uuid.UUID  `bun:"farmer_id,notnull,type:uuid" json:"farmer_id,omitempty"`
	Farmer        *Farmer    `bun:"rel:belongs-to,join:farmer_id=id" json:"farmer,omitempty"`
	Name          string     `bun:"name,notnull" json:"name,omitempty"`
	Type          CropType   `bun:"crop_type,notnull" json:"type,omitempty"`
	Quantity      float64    `bun:"quantity,notnull" json:"quantity"`
	Unit          string     `bun:"unit,notnull,default:'kg'" json:"unit,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// PublicIdentity is the redacted account view returned from login and
// registration. It never carries the password hash.
type PublicIdentity struct {
	ID     uuid.UUID `json:"id"`
	Email  string    `json:"email"`
	Role   Role      `json:"role"`
	Farmer *Farmer   `json:"farmer,omitempty"`
}

// PublicView strips the credential material from an account record.
func (u *User) PublicView() PublicIdentity {
	return PublicIdentity{
		ID:     u.ID,
		Email:  u.Email,
		Role:   u.Role,
		Farmer: u.Farmer,
	}
}

// FarmerID returns the id of the attached profile, or uuid.Nil when
// the account has none (admins, profile-less farmers).
func (u *User) FarmerID() uuid.UUID {
	if u.Farmer == nil {
		return uuid.Nil
	}
	return u.Farmer.ID
}
