// Package access computes a user's permission level against an article.
//
// Resolution is a pure function over explicit ID sets — no queries, no
// caching, no side effects. Callers resolve fresh on every request because
// group memberships and the admin flag can change between requests.
package access

import "github.com/sakif/knowledgebase/internal/model"

// Resolve returns the permission the user holds on the article.
//
// The rules are ordered and the first match wins:
//
//  1. anonymous            → none
//  2. creator              → edit
//  3. admin                → edit
//  4. member of edit group → edit
//  5. member of view group → view
//  6. otherwise            → none
//
// userGroupIDs is the caller's full group membership. The edit-group check
// runs before the view-group check, so a group granted edit rights yields
// at least view even if the write-time invariant (edit groups are mirrored
// into view groups) were ever violated.
func Resolve(user *model.User, userGroupIDs []int64, article *model.Article) model.Permission {
	if user == nil {
		return model.PermissionNone
	}
	if article.CreatedBy != nil && *article.CreatedBy == user.ID {
		return model.PermissionEdit
	}
	if user.IsAdmin {
		return model.PermissionEdit
	}

	members := make(map[int64]struct{}, len(userGroupIDs))
	for _, id := range userGroupIDs {
		members[id] = struct{}{}
	}

	if intersects(members, article.EditGroupIDs) {
		return model.PermissionEdit
	}
	if intersects(members, article.ViewGroupIDs) {
		return model.PermissionView
	}
	return model.PermissionNone
}

func intersects(set map[int64]struct{}, ids []int64) bool {
	for _, id := range ids {
		if _, ok := set[id]; ok {
			return true
		}
	}
	return false
}
