package registry

// IsValid checks if the role is one of the predefined valid roles
func IsValidRole(r Role) bool {
	switch r {
	case RoleAdmin, RoleFarmer:
		return true
	default:
		return false
	}
}

// ParseRole safely parses a string into a Role type
func ParseRole(roleStr string) (Role, bool) {
	role := Role(roleStr)
	return role, IsValidRole(role)
}

// GetAllRoles returns all predefined roles
func GetAllRoles() []Role {
	return []Role{RoleAdmin, RoleFarmer}
}

// RoleIn reports whether role is a member of the given set. An empty
// set matches every role.
func RoleIn(role Role, roles []Role) bool {
	if len(roles) == 0 {
		return true
	}
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

// IsValidCropType checks if the crop type is one of the enumerated
// categories
func IsValidCropType(t CropType) bool {
	switch t {
	case CropTypeCereals, CropTypeVegetables, CropTypeFruits,
		CropTypeLegumes, CropTypeTubers, CropTypeOther:
		return true
	default:
		return false
	}
}
