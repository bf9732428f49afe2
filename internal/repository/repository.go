package repository

import (
	"context"

	"github.com/sakif/knowledgebase/internal/model"
)

type UserRepository interface {
	// CreateUser inserts the user and enrolls them into the given groups
	// within a single transaction. Sets ID and DateJoined on the way out.
	CreateUser(ctx context.Context, user *model.User, groupIDs ...int64) error
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)
	UpdateUser(ctx context.Context, user *model.User) error
	DeleteUser(ctx context.Context, id int64) error
	CountUsers(ctx context.Context) (int, error)
	// GroupIDsOf returns the IDs of every group the user belongs to.
	GroupIDsOf(ctx context.Context, userID int64) ([]int64, error)
}

type GroupRepository interface {
	CreateGroup(ctx context.Context, group *model.Group) error
	GetGroupByID(ctx context.Context, id int64) (*model.Group, error)
	ListGroups(ctx context.Context) ([]model.Group, error)
	// UpdateGroup renames the group and replaces its membership in a
	// single transaction.
	UpdateGroup(ctx context.Context, group *model.Group) error
	DeleteGroup(ctx context.Context, id int64) error
	CountGroups(ctx context.Context) (int, error)
	// GroupsExist reports whether every given ID names an existing group.
	GroupsExist(ctx context.Context, ids []int64) (bool, error)
}

type ArticleRepository interface {
	// CreateArticle and UpdateArticle persist the article row and both
	// group-grant join tables in a single transaction.
	CreateArticle(ctx context.Context, article *model.Article) error
	GetArticleBySlug(ctx context.Context, slug string) (*model.Article, error)
	ListArticles(ctx context.Context) ([]model.Article, error)
	UpdateArticle(ctx context.Context, article *model.Article) error
	DeleteArticle(ctx context.Context, id int64) error
	CountArticles(ctx context.Context) (int, error)
	// TitleExists reports a case-insensitive title collision, ignoring
	// the article with excludeID (0 to check all).
	TitleExists(ctx context.Context, title string, excludeID int64) (bool, error)
}
