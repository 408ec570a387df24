// Copyright (c) 2026 Sugarmill. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec

// Identity is the authenticated principal attached to a request by the gate.
type Identity struct {
	PrincipalID   string
	Email         string
	Name          string
	Grant         Grant
	EmailVerified bool
}

// Role is a shortcut for Grant.Role.
func (identity *Identity) Role() Role { return identity.Grant.Role() }

// Department is a shortcut for Grant.Department.
func (identity *Identity) Department() (Department, bool) { return identity.Grant.Department() }
