package models

// Group represents a set of users who share expenses.
//
// Invariants: the creator is always a member, and the member set is never
// empty once the group exists.
type Group struct {
	// ID is the unique identifier for the group (UUID format).
	ID string `json:"id"`

	// Name is the display name of the group (e.g., "Roommates", "Goa Trip").
	Name string `json:"name"`

	// CreatedBy is the user ID of the group's creator. Only the creator
	// may add/remove members or delete the group.
	CreatedBy string `json:"createdBy"`

	// Members is the list of member user IDs.
	Members []string `json:"members"`

	// CreatedAt is the Unix timestamp when the group was created.
	CreatedAt int64 `json:"createdAt"`
}

// HasMember reports whether userID belongs to the group.
func (g *Group) HasMember(userID string) bool {
	for _, m := range g.Members {
		if m == userID {
			return true
		}
	}
	return false
}
