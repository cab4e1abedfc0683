package domain

import "strings"

// Role represents user role in the system
type Role string

const (
	RoleUser      Role = "user"
	RoleGuide     Role = "guide"
	RoleLeadGuide Role = "lead-guide"
	RoleAdmin     Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleGuide, RoleLeadGuide, RoleAdmin:
		return true
	}
	return false
}

// RoleSet is an explicit set of roles allowed through an authorization gate.
type RoleSet map[Role]struct{}

// Roles builds a RoleSet from the given roles.
func Roles(roles ...Role) RoleSet {
	set := make(RoleSet, len(roles))
	for _, r := range roles {
		set[r] = struct{}{}
	}
	return set
}

// Allows reports whether r is a member of the set.
func (s RoleSet) Allows(r Role) bool {
	_, ok := s[r]
	return ok
}

func (s RoleSet) String() string {
	names := make([]string, 0, len(s))
	for _, r := range []Role{RoleAdmin, RoleLeadGuide, RoleGuide, RoleUser} {
		if s.Allows(r) {
			names = append(names, string(r))
		}
	}
	return strings.Join(names, ",")
}

// Tour difficulty levels
const (
	DifficultyEasy      = "easy"
	DifficultyMedium    = "medium"
	DifficultyDifficult = "difficult"
)

// DistanceUnit selects miles or kilometres for geo queries.
type DistanceUnit string

const (
	UnitMiles      DistanceUnit = "mi"
	UnitKilometres DistanceUnit = "km"
)

// ParseDistanceUnit accepts "mi" and "km"; anything else is rejected.
func ParseDistanceUnit(s string) (DistanceUnit, bool) {
	switch DistanceUnit(s) {
	case UnitMiles, UnitKilometres:
		return DistanceUnit(s), true
	}
	return "", false
}

// Default rating values for a tour without reviews
const (
	DefaultRatingsAverage  = 4.5
	DefaultRatingsQuantity = 0
)
