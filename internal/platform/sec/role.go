// Copyright (c) 2026 Sugarmill. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// # Roles & Departments

// Role represents the kind of principal an account belongs to.
type Role string

const (
	// Growers supplying cane to the mill
	RoleFarmer Role = "farmer"

	// Transport partners moving cane and product
	RoleLogistics Role = "logistics"

	// Unrestricted system access, approves new accounts
	RoleAdmin Role = "admin"

	// Mill employees, always scoped to a department
	RoleStaff Role = "staff"
)

// Department is the sub-classification of the staff role.
type Department string

const (
	DepartmentProduction Department = "production"
	DepartmentQuality    Department = "quality"
	DepartmentHR         Department = "hr"
	DepartmentSupport    Department = "support"
)

var (
	// ErrUnknownRole is returned when a role string is not one of the known roles.
	ErrUnknownRole = errors.New("sec: unknown role")

	// ErrUnknownDepartment is returned when a department string is not recognised.
	ErrUnknownDepartment = errors.New("sec: unknown department")

	// ErrDepartmentRequired is returned when a staff grant has no department.
	ErrDepartmentRequired = errors.New("sec: staff requires a department")

	// ErrDepartmentNotAllowed is returned when a non-staff grant carries a department.
	ErrDepartmentNotAllowed = errors.New("sec: department is only valid for staff")
)

// Roles lists every known role in a stable order.
func Roles() []Role {
	return []Role{RoleFarmer, RoleLogistics, RoleAdmin, RoleStaff}
}

// Departments lists every known department in a stable order.
func Departments() []Department {
	return []Department{DepartmentProduction, DepartmentQuality, DepartmentHR, DepartmentSupport}
}

// ParseRole converts a raw string into a known [Role].
func ParseRole(raw string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range Roles() {
		if role == known {
			return role, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRole, raw)
}

// ParseDepartment converts a raw string into a known [Department].
func ParseDepartment(raw string) (Department, error) {
	department := Department(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range Departments() {
		if department == known {
			return department, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownDepartment, raw)
}

// # Grant

// Grant is the role of a principal together with its department.
//
// The fields are unexported so a Grant can only be built through the
// constructors below: a department exists if and only if the role is staff.
// The zero value is not a valid grant.
type Grant struct {
	role       Role
	department Department
}

// FarmerGrant returns the grant of a farmer.
func FarmerGrant() Grant { return Grant{role: RoleFarmer} }

// LogisticsGrant returns the grant of a logistics partner.
func LogisticsGrant() Grant { return Grant{role: RoleLogistics} }

// AdminGrant returns the grant of an administrator.
func AdminGrant() Grant { return Grant{role: RoleAdmin} }

// StaffGrant returns the grant of a staff member working in department.
func StaffGrant(department Department) Grant {
	return Grant{role: RoleStaff, department: department}
}

// ParseGrant builds a [Grant] from raw role and department strings.
//
// An empty department is accepted for every role except staff.
func ParseGrant(rawRole, rawDepartment string) (Grant, error) {
	role, err := ParseRole(rawRole)
	if err != nil {
		return Grant{}, err
	}

	hasDepartment := strings.TrimSpace(rawDepartment) != ""

	if role != RoleStaff {
		if hasDepartment {
			return Grant{}, ErrDepartmentNotAllowed
		}
		return Grant{role: role}, nil
	}

	if !hasDepartment {
		return Grant{}, ErrDepartmentRequired
	}

	department, err := ParseDepartment(rawDepartment)
	if err != nil {
		return Grant{}, err
	}

	return StaffGrant(department), nil
}

// Role returns the role of the grant.
func (g Grant) Role() Role { return g.role }

// Department returns the department and true for staff grants.
func (g Grant) Department() (Department, bool) {
	return g.department, g.role == RoleStaff
}

// IsZero reports whether the grant was never initialised.
func (g Grant) IsZero() bool { return g.role == "" }

// Is reports whether the grant has one of the given roles.
func (g Grant) Is(roles ...Role) bool {
	for _, role := range roles {
		if g.role == role {
			return true
		}
	}
	return false
}

// String renders the grant as "role" or "staff/department".
func (g Grant) String() string {
	if department, ok := g.Department(); ok {
		return string(g.role) + "/" + string(department)
	}
	return string(g.role)
}

type grantJSON struct {
	Role       Role        `json:"role"`
	Department *Department `json:"department"`
}

// MarshalJSON renders the department as null for every role except staff.
func (g Grant) MarshalJSON() ([]byte, error) {
	payload := grantJSON{Role: g.role}
	if department, ok := g.Department(); ok {
		payload.Department = &department
	}
	return json.Marshal(payload)
}

// UnmarshalJSON enforces the same invariants as [ParseGrant].
func (g *Grant) UnmarshalJSON(data []byte) error {
	var payload grantJSON
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}

	department := ""
	if payload.Department != nil {
		department = string(*payload.Department)
	}

	parsed, err := ParseGrant(string(payload.Role), department)
	if err != nil {
		return err
	}

	*g = parsed
	return nil
}
