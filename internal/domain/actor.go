package domain

// Actor is the community member behind an interaction.
type Actor struct {
	UserID   string
	Username string
	RoleIDs  []string
}

// HasAnyRole reports whether the actor holds at least one of roles.
func (a Actor) HasAnyRole(roles []string) bool {
	for _, held := range a.RoleIDs {
		for _, role := range roles {
			if held == role {
				return true
			}
		}
	}
	return false
}
