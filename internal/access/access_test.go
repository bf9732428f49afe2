package access

import (
	"testing"

	"github.com/sakif/knowledgebase/internal/model"
)

func ptr(id int64) *int64 { return &id }

func TestResolve(t *testing.T) {
	creator := &model.User{ID: 7}
	admin := &model.User{ID: 8, IsAdmin: true}
	member := &model.User{ID: 9}

	article := &model.Article{
		ID:           1,
		CreatedBy:    ptr(7),
		ViewGroupIDs: []int64{2, 3},
		EditGroupIDs: []int64{3},
	}

	tests := []struct {
		name     string
		user     *model.User
		groupIDs []int64
		article  *model.Article
		want     model.Permission
	}{
		{
			name:    "anonymous gets none",
			user:    nil,
			article: article,
			want:    model.PermissionNone,
		},
		{
			name:     "creator gets edit regardless of groups",
			user:     creator,
			groupIDs: nil,
			article:  article,
			want:     model.PermissionEdit,
		},
		{
			name:     "admin gets edit regardless of groups",
			user:     admin,
			groupIDs: nil,
			article:  article,
			want:     model.PermissionEdit,
		},
		{
			name:     "edit group member gets edit",
			user:     member,
			groupIDs: []int64{3},
			article:  article,
			want:     model.PermissionEdit,
		},
		{
			name:     "view group member gets view",
			user:     member,
			groupIDs: []int64{2},
			article:  article,
			want:     model.PermissionView,
		},
		{
			name:     "member of edit and view groups gets edit",
			user:     member,
			groupIDs: []int64{2, 3},
			article:  article,
			want:     model.PermissionEdit,
		},
		{
			name:     "no overlapping groups gets none",
			user:     member,
			groupIDs: []int64{4, 5},
			article:  article,
			want:     model.PermissionNone,
		},
		{
			name:     "no groups at all gets none",
			user:     member,
			groupIDs: nil,
			article:  article,
			want:     model.PermissionNone,
		},
		{
			name: "ownerless article falls back to group checks",
			user: member,
			groupIDs: []int64{2},
			article: &model.Article{
				ID:           2,
				CreatedBy:    nil,
				ViewGroupIDs: []int64{2},
			},
			want: model.PermissionView,
		},
		{
			name: "edit group grants edit even without matching view group",
			user: member,
			groupIDs: []int64{6},
			article: &model.Article{
				ID:           3,
				EditGroupIDs: []int64{6},
			},
			want: model.PermissionEdit,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resolve(tt.user, tt.groupIDs, tt.article)
			if got != tt.want {
				t.Errorf("Resolve() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPermissionOrdering(t *testing.T) {
	if model.PermissionNone.CanView() {
		t.Error("none should not grant view")
	}
	if model.PermissionView.CanEdit() {
		t.Error("view should not grant edit")
	}
	if !model.PermissionView.CanView() {
		t.Error("view should grant view")
	}
	if !model.PermissionEdit.CanView() || !model.PermissionEdit.CanEdit() {
		t.Error("edit should grant both view and edit")
	}
}
