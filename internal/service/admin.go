package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/knowledgebase/internal/apperror"
	"github.com/sakif/knowledgebase/internal/model"
	"github.com/sakif/knowledgebase/internal/repository"
)

// groupNameRx matches the article-title charset; group names are
// additionally lower-cased before storage.
var groupNameRx = titleRx

const MaxGroupNameLength = 150

// Stats is the admin dashboard summary.
type Stats struct {
	Articles int `json:"articles"`
	Users    int `json:"users"`
	Groups   int `json:"groups"`
}

// AdminService implements the admin console: user management and group
// management. Handlers gate it behind the admin middleware; the service
// still enforces the rules that protect data integrity (no
// self-deletion, the immutable "all users" group).
type AdminService struct {
	users    repository.UserRepository
	groups   repository.GroupRepository
	articles repository.ArticleRepository
	logger   *slog.Logger
}

func NewAdminService(
	users repository.UserRepository,
	groups repository.GroupRepository,
	articles repository.ArticleRepository,
	logger *slog.Logger,
) *AdminService {
	return &AdminService{
		users:    users,
		groups:   groups,
		articles: articles,
		logger:   logger,
	}
}

// DashboardStats returns the totals shown on the admin dashboard.
func (s *AdminService) DashboardStats(ctx context.Context) (Stats, error) {
	var stats Stats
	var err error

	if stats.Articles, err = s.articles.CountArticles(ctx); err != nil {
		return Stats{}, fmt.Errorf("counting articles: %w", err)
	}
	if stats.Users, err = s.users.CountUsers(ctx); err != nil {
		return Stats{}, fmt.Errorf("counting users: %w", err)
	}
	if stats.Groups, err = s.groups.CountGroups(ctx); err != nil {
		return Stats{}, fmt.Errorf("counting groups: %w", err)
	}
	return stats, nil
}

// ListUsers returns every account.
func (s *AdminService) ListUsers(ctx context.Context) ([]model.User, error) {
	return s.users.ListUsers(ctx)
}

// GetUser returns one account with its group memberships.
func (s *AdminService) GetUser(ctx context.Context, id int64) (*model.User, []int64, error) {
	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	groupIDs, err := s.users.GroupIDsOf(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("loading memberships: %w", err)
	}
	return user, groupIDs, nil
}

// DeleteUser removes an account. Admins cannot delete themselves.
func (s *AdminService) DeleteUser(ctx context.Context, actor *model.User, id int64) error {
	if actor.ID == id {
		return apperror.Forbidden("you cannot delete yourself")
	}
	if err := s.users.DeleteUser(ctx, id); err != nil {
		return err
	}
	s.logger.Info("user deleted", slog.Int64("id", id), slog.Int64("by", actor.ID))
	return nil
}

// ToggleAdmin flips the admin flag on another account. Toggling your own
// flag is refused, like self-deletion.
func (s *AdminService) ToggleAdmin(ctx context.Context, actor *model.User, id int64) (*model.User, error) {
	if actor.ID == id {
		return nil, apperror.Forbidden("you cannot toggle admin for yourself")
	}

	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}

	user.IsAdmin = !user.IsAdmin
	if err := s.users.UpdateUser(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("admin flag toggled",
		slog.Int64("id", user.ID),
		slog.Bool("isAdmin", user.IsAdmin),
		slog.Int64("by", actor.ID),
	)
	return user, nil
}

// ListGroups returns every group.
func (s *AdminService) ListGroups(ctx context.Context) ([]model.Group, error) {
	return s.groups.ListGroups(ctx)
}

// GetGroup returns one group with its member IDs.
func (s *AdminService) GetGroup(ctx context.Context, id int64) (*model.Group, error) {
	return s.groups.GetGroupByID(ctx, id)
}

func (s *AdminService) validateGroupName(name string) (string, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return "", apperror.ValidationFailed("name", "group name is required")
	}
	if len(name) > MaxGroupNameLength {
		return "", apperror.ValidationFailed("name",
			fmt.Sprintf("group name must be %d characters or less", MaxGroupNameLength))
	}
	if !groupNameRx.MatchString(name) {
		return "", apperror.ValidationFailed("name",
			"group name can only contain letters, numbers, spaces, hyphens, and underscores")
	}
	return name, nil
}

func (s *AdminService) validateMembers(ctx context.Context, memberIDs []int64) ([]int64, error) {
	members := dedupeSorted(memberIDs)
	for _, id := range members {
		if _, err := s.users.GetUserByID(ctx, id); err != nil {
			return nil, apperror.ValidationFailed("members", "select a valid user")
		}
	}
	return members, nil
}

// CreateGroup creates a group with an initial membership.
func (s *AdminService) CreateGroup(ctx context.Context, name string, memberIDs []int64) (*model.Group, error) {
	name, err := s.validateGroupName(name)
	if err != nil {
		return nil, err
	}
	members, err := s.validateMembers(ctx, memberIDs)
	if err != nil {
		return nil, err
	}

	group := &model.Group{Name: name, MemberIDs: members}
	if err := s.groups.CreateGroup(ctx, group); err != nil {
		return nil, err
	}

	s.logger.Info("group created", slog.Int64("id", group.ID), slog.String("name", group.Name))
	return group, nil
}

// UpdateGroup renames a group and replaces its membership. The "all
// users" group is immutable regardless of who asks.
func (s *AdminService) UpdateGroup(ctx context.Context, id int64, name string, memberIDs []int64) (*model.Group, error) {
	if id == model.AllUsersGroupID {
		return nil, apperror.Protected(`the "all users" group cannot be altered`)
	}

	group, err := s.groups.GetGroupByID(ctx, id)
	if err != nil {
		return nil, err
	}

	name, err = s.validateGroupName(name)
	if err != nil {
		return nil, err
	}
	members, err := s.validateMembers(ctx, memberIDs)
	if err != nil {
		return nil, err
	}

	group.Name = name
	group.MemberIDs = members
	if err := s.groups.UpdateGroup(ctx, group); err != nil {
		return nil, err
	}

	s.logger.Info("group updated", slog.Int64("id", group.ID), slog.String("name", group.Name))
	return group, nil
}

// DeleteGroup removes a group. The "all users" group can never be
// deleted, admin or not.
func (s *AdminService) DeleteGroup(ctx context.Context, id int64) error {
	if id == model.AllUsersGroupID {
		return apperror.Protected(`the "all users" group cannot be deleted`)
	}
	if err := s.groups.DeleteGroup(ctx, id); err != nil {
		return err
	}
	s.logger.Info("group deleted", slog.Int64("id", id))
	return nil
}
