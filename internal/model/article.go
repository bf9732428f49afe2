package model

import "time"

// Article is a titled content record with owner and group-based access
// grants.
//
// CreatedBy and ModifiedBy are nullable references: deleting a user nulls
// them rather than cascading into the article (weak reference). We model
// that with *int64 so a missing owner survives round trips through the
// database as NULL instead of a bogus zero ID.
//
// ViewGroupIDs and EditGroupIDs mirror the two join tables. The invariant
// that every edit group is also a view group is maintained on every save
// by the article service, inside the same transaction as the save itself.
type Article struct {
	ID           int64     `json:"id"           db:"id"`
	Title        string    `json:"title"        db:"title"`
	Slug         string    `json:"slug"         db:"slug"`
	Content      string    `json:"content"      db:"content"`
	CreatedBy    *int64    `json:"createdBy"    db:"created_by"`
	CreatedDate  time.Time `json:"createdDate"  db:"created_date"`
	ModifiedBy   *int64    `json:"modifiedBy"   db:"modified_by"`
	ModifiedDate time.Time `json:"modifiedDate" db:"modified_date"`

	ViewGroupIDs []int64 `json:"viewGroupIds"`
	EditGroupIDs []int64 `json:"editGroupIds"`
}
