package service

import (
	"context"
	"errors"
	"testing"

	"github.com/sakif/knowledgebase/internal/apperror"
	"github.com/sakif/knowledgebase/internal/model"
	"github.com/sakif/knowledgebase/internal/repository/sqlite"
)

func newArticleService(t *testing.T) (*ArticleService, *sqlite.DB) {
	t.Helper()
	db, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewArticleService(db, db, db, testLogger()), db
}

func addUser(t *testing.T, db *sqlite.DB, email string, admin bool) *model.User {
	t.Helper()
	user := &model.User{
		Email:        email,
		PasswordHash: "hash",
		FirstName:    "Test",
		LastName:     "User",
		IsAdmin:      admin,
		IsVerified:   true,
	}
	if err := db.CreateUser(context.Background(), user, model.AllUsersGroupID); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	return user
}

func addGroup(t *testing.T, db *sqlite.DB, name string, memberIDs ...int64) *model.Group {
	t.Helper()
	group := &model.Group{Name: name, MemberIDs: memberIDs}
	if err := db.CreateGroup(context.Background(), group); err != nil {
		t.Fatalf("failed to create group: %v", err)
	}
	return group
}

func TestCreateArticleValidation(t *testing.T) {
	svc, db := newArticleService(t)
	user := addUser(t, db, "author@example.com", false)

	if _, err := svc.Create(context.Background(), user, "Existing Article", "body", nil, nil); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	tests := []struct {
		name  string
		title string
	}{
		{"empty title", ""},
		{"whitespace title", "   "},
		{"illegal characters", "Hello, World!"},
		{"reserved slug new", "New"},
		{"reserved slug admin", "Admin"},
		{"case-insensitive duplicate", "EXISTING article"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), user, tt.title, "body", nil, nil)
			if !errors.Is(err, apperror.ErrValidation) {
				t.Errorf("Create(%q) error = %v, want ErrValidation", tt.title, err)
			}
		})
	}
}

func TestCreateArticleRejectsUnknownGroup(t *testing.T) {
	svc, db := newArticleService(t)
	user := addUser(t, db, "author@example.com", false)

	_, err := svc.Create(context.Background(), user, "Grant Check", "body", []int64{999}, nil)
	if !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("Create() error = %v, want ErrValidation", err)
	}
}

func TestCreateArticleEditImpliesView(t *testing.T) {
	svc, db := newArticleService(t)
	user := addUser(t, db, "author@example.com", false)
	editors := addGroup(t, db, "editors")

	// Grant edit only; the saved article must carry the group in its
	// view set too.
	article, err := svc.Create(context.Background(), user, "Invariant Check", "body", nil, []int64{editors.ID})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	stored, err := db.GetArticleBySlug(context.Background(), article.Slug)
	if err != nil {
		t.Fatalf("GetArticleBySlug() error = %v", err)
	}
	if len(stored.ViewGroupIDs) != 1 || stored.ViewGroupIDs[0] != editors.ID {
		t.Errorf("ViewGroupIDs = %v, want [%d]", stored.ViewGroupIDs, editors.ID)
	}
	if len(stored.EditGroupIDs) != 1 || stored.EditGroupIDs[0] != editors.ID {
		t.Errorf("EditGroupIDs = %v, want [%d]", stored.EditGroupIDs, editors.ID)
	}
}

func TestGetHidesInvisibleArticles(t *testing.T) {
	svc, db := newArticleService(t)
	author := addUser(t, db, "author@example.com", false)
	outsider := addUser(t, db, "outsider@example.com", false)

	article, err := svc.Create(context.Background(), author, "Private Notes", "secret", nil, nil)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// The outsider gets not-found, never forbidden: the article's
	// existence is hidden.
	_, _, err = svc.Get(context.Background(), outsider, article.Slug)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}

	got, perm, err := svc.Get(context.Background(), author, article.Slug)
	if err != nil {
		t.Fatalf("Get() as author error = %v", err)
	}
	if got.Title != "Private Notes" || perm != model.PermissionEdit {
		t.Errorf("Get() as author = %q, %v", got.Title, perm)
	}
}

func TestUpdatePermissionLadder(t *testing.T) {
	svc, db := newArticleService(t)
	author := addUser(t, db, "author@example.com", false)
	viewer := addUser(t, db, "viewer@example.com", false)
	outsider := addUser(t, db, "outsider@example.com", false)

	readers := addGroup(t, db, "readers", viewer.ID)
	article, err := svc.Create(context.Background(), author, "Ladder Check", "body", []int64{readers.ID}, nil)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// No visibility: the article does not exist as far as the caller knows.
	_, err = svc.Update(context.Background(), outsider, article.Slug, "Ladder Check", "x", nil, nil)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("outsider Update() error = %v, want ErrNotFound", err)
	}

	// View but not edit: explicit denial.
	_, err = svc.Update(context.Background(), viewer, article.Slug, "Ladder Check", "x", nil, nil)
	if !errors.Is(err, apperror.ErrForbidden) {
		t.Errorf("viewer Update() error = %v, want ErrForbidden", err)
	}

	// The creator edits freely.
	updated, err := svc.Update(context.Background(), author, article.Slug, "Ladder Check", "new body", []int64{readers.ID}, nil)
	if err != nil {
		t.Fatalf("author Update() error = %v", err)
	}
	if updated.Content != "new body" {
		t.Errorf("Content = %q", updated.Content)
	}
	if updated.ModifiedBy == nil || *updated.ModifiedBy != author.ID {
		t.Errorf("ModifiedBy = %v, want %d", updated.ModifiedBy, author.ID)
	}
}

func TestDeletePermissionLadder(t *testing.T) {
	svc, db := newArticleService(t)
	author := addUser(t, db, "author@example.com", false)
	viewer := addUser(t, db, "viewer@example.com", false)
	outsider := addUser(t, db, "outsider@example.com", false)

	readers := addGroup(t, db, "readers", viewer.ID)
	article, err := svc.Create(context.Background(), author, "Doomed", "body", []int64{readers.ID}, nil)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := svc.Delete(context.Background(), outsider, article.Slug); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("outsider Delete() error = %v, want ErrNotFound", err)
	}
	if err := svc.Delete(context.Background(), viewer, article.Slug); !errors.Is(err, apperror.ErrForbidden) {
		t.Errorf("viewer Delete() error = %v, want ErrForbidden", err)
	}
	if err := svc.Delete(context.Background(), author, article.Slug); err != nil {
		t.Fatalf("author Delete() error = %v", err)
	}
}

func TestAdminEditsEverything(t *testing.T) {
	svc, db := newArticleService(t)
	author := addUser(t, db, "author@example.com", false)
	admin := addUser(t, db, "admin@example.com", true)

	article, err := svc.Create(context.Background(), author, "Locked Down", "body", nil, nil)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	_, perm, err := svc.Get(context.Background(), admin, article.Slug)
	if err != nil {
		t.Fatalf("admin Get() error = %v", err)
	}
	if perm != model.PermissionEdit {
		t.Errorf("admin permission = %v, want edit", perm)
	}
}

func TestListVisibleFiltersAndAnnotates(t *testing.T) {
	svc, db := newArticleService(t)
	author := addUser(t, db, "author@example.com", false)
	viewer := addUser(t, db, "viewer@example.com", false)

	readers := addGroup(t, db, "readers", viewer.ID)

	// Visible to the readers group with view rights only.
	shared, err := svc.Create(context.Background(), author, "Shared Article", "body", []int64{readers.ID}, nil)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	// Visible to nobody but the author.
	if _, err := svc.Create(context.Background(), author, "Private Article", "body", nil, nil); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	visible, err := svc.ListVisible(context.Background(), viewer, "", "")
	if err != nil {
		t.Fatalf("ListVisible() error = %v", err)
	}
	if len(visible) != 1 {
		t.Fatalf("viewer sees %d articles, want 1", len(visible))
	}
	if visible[0].Slug != shared.Slug || visible[0].Permission != model.PermissionView {
		t.Errorf("ListVisible()[0] = %q with %v", visible[0].Slug, visible[0].Permission)
	}

	both, err := svc.ListVisible(context.Background(), author, "", "")
	if err != nil {
		t.Fatalf("ListVisible() error = %v", err)
	}
	if len(both) != 2 {
		t.Errorf("author sees %d articles, want 2", len(both))
	}
}

func TestListVisibleSearch(t *testing.T) {
	svc, db := newArticleService(t)
	author := addUser(t, db, "author@example.com", false)

	if _, err := svc.Create(context.Background(), author, "Cooking Guide", "how to braise", nil, nil); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := svc.Create(context.Background(), author, "Gardening Guide", "soil and compost", nil, nil); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	tests := []struct {
		name   string
		search string
		want   int
	}{
		{"matches title case-insensitively", "COOKING", 1},
		{"matches content", "compost", 1},
		{"matches both", "guide", 2},
		{"matches none", "quantum", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.ListVisible(context.Background(), author, tt.search, "")
			if err != nil {
				t.Fatalf("ListVisible() error = %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("search %q returned %d articles, want %d", tt.search, len(got), tt.want)
			}
		})
	}
}

func TestListVisibleSort(t *testing.T) {
	svc, db := newArticleService(t)
	author := addUser(t, db, "author@example.com", false)

	for _, title := range []string{"Banana", "Apple", "Cherry"} {
		if _, err := svc.Create(context.Background(), author, title, "body", nil, nil); err != nil {
			t.Fatalf("Create(%q) error = %v", title, err)
		}
	}

	byTitle, err := svc.ListVisible(context.Background(), author, "", "title")
	if err != nil {
		t.Fatalf("ListVisible() error = %v", err)
	}
	if byTitle[0].Title != "Apple" || byTitle[2].Title != "Cherry" {
		t.Errorf("title sort = %q, %q, %q", byTitle[0].Title, byTitle[1].Title, byTitle[2].Title)
	}

	newest, err := svc.ListVisible(context.Background(), author, "", "")
	if err != nil {
		t.Fatalf("ListVisible() error = %v", err)
	}
	if newest[0].Title != "Cherry" {
		t.Errorf("default sort starts with %q, want the newest article", newest[0].Title)
	}
}

func TestListVisibleRequiresUser(t *testing.T) {
	svc, _ := newArticleService(t)
	if _, err := svc.ListVisible(context.Background(), nil, "", ""); !errors.Is(err, apperror.ErrUnauthorized) {
		t.Errorf("ListVisible(nil) error = %v, want ErrUnauthorized", err)
	}
}
