package model

// AllUsersGroupID is the primary key of the built-in "all users" group.
// The group is seeded by the first migration, every user is enrolled into
// it at sign-up, and it can never be renamed or deleted.
const AllUsersGroupID int64 = 1

// Group is a named collection of users. Articles grant view and edit
// rights to groups, so membership is the unit of access control.
//
// Name is stored lower-cased; uniqueness is enforced by the database.
type Group struct {
	ID   int64  `json:"id"   db:"id"`
	Name string `json:"name" db:"name"`

	// MemberIDs is populated by repository reads that join the membership
	// table. It is nil on records that were loaded without members.
	MemberIDs []int64 `json:"memberIds,omitempty"`
}

// IsProtected reports whether this is the immutable "all users" group.
func (g *Group) IsProtected() bool {
	return g.ID == AllUsersGroupID
}
