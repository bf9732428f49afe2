package model

// Permission is the outcome of resolving a user against an article.
// Higher permissions include lower permissions.
type Permission int

const (
	PermissionNone Permission = iota
	PermissionView
	PermissionEdit
)

func (p Permission) String() string {
	switch p {
	case PermissionNone:
		return "none"
	case PermissionView:
		return "view"
	case PermissionEdit:
		return "edit"
	}
	return "unknown"
}

// CanView reports whether the permission grants at least read access.
func (p Permission) CanView() bool {
	return p >= PermissionView
}

// CanEdit reports whether the permission grants write access.
func (p Permission) CanEdit() bool {
	return p >= PermissionEdit
}
