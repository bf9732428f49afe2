package service

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/sakif/knowledgebase/internal/access"
	"github.com/sakif/knowledgebase/internal/apperror"
	"github.com/sakif/knowledgebase/internal/model"
	"github.com/sakif/knowledgebase/internal/repository"
)

const MaxTitleLength = 100

// titleRx restricts titles to letters, numbers, spaces, hyphens and
// underscores — the same charset as group names.
var titleRx = regexp.MustCompile(`^[\w\s-]+$`)

// reservedSlugs are slugs that collide with routes; a title that
// slugifies to one of these is rejected.
var reservedSlugs = map[string]bool{
	"new":     true,
	"edit":    true,
	"admin":   true,
	"account": true,
}

// VisibleArticle pairs an article with the caller's resolved permission,
// so list views can render an edit control without resolving twice.
type VisibleArticle struct {
	model.Article
	Permission model.Permission `json:"permission"`
}

// ArticleService handles article CRUD, search and sorting, with every
// operation filtered through permission resolution.
type ArticleService struct {
	articles repository.ArticleRepository
	users    repository.UserRepository
	groups   repository.GroupRepository
	logger   *slog.Logger
}

func NewArticleService(
	articles repository.ArticleRepository,
	users repository.UserRepository,
	groups repository.GroupRepository,
	logger *slog.Logger,
) *ArticleService {
	return &ArticleService{
		articles: articles,
		users:    users,
		groups:   groups,
		logger:   logger,
	}
}

// resolve computes the caller's permission with a fresh membership read.
// Never cached: the admin flag and memberships can change between
// requests.
func (s *ArticleService) resolve(ctx context.Context, user *model.User, article *model.Article) (model.Permission, error) {
	if user == nil {
		return model.PermissionNone, nil
	}
	groupIDs, err := s.users.GroupIDsOf(ctx, user.ID)
	if err != nil {
		return model.PermissionNone, fmt.Errorf("loading memberships: %w", err)
	}
	return access.Resolve(user, groupIDs, article), nil
}

// ListVisible returns the articles the user may at least view.
//
// The permission filter runs over the full collection first; the optional
// case-insensitive substring search over title+content applies only to
// what survived. Without a search, sortKey orders the result
// (default and "-modified_date": most recently modified first).
func (s *ArticleService) ListVisible(ctx context.Context, user *model.User, search, sortKey string) ([]VisibleArticle, error) {
	if user == nil {
		return nil, apperror.Unauthorized("sign in to view articles")
	}

	groupIDs, err := s.users.GroupIDsOf(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("loading memberships: %w", err)
	}

	all, err := s.articles.ListArticles(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing articles: %w", err)
	}

	visible := make([]VisibleArticle, 0, len(all))
	for i := range all {
		perm := access.Resolve(user, groupIDs, &all[i])
		if !perm.CanView() {
			continue
		}
		visible = append(visible, VisibleArticle{Article: all[i], Permission: perm})
	}

	if search = strings.TrimSpace(search); search != "" {
		needle := strings.ToLower(search)
		matched := visible[:0]
		for _, v := range visible {
			if strings.Contains(strings.ToLower(v.Title), needle) ||
				strings.Contains(strings.ToLower(v.Content), needle) {
				matched = append(matched, v)
			}
		}
		return matched, nil
	}

	sortArticles(visible, sortKey)
	return visible, nil
}

func sortArticles(articles []VisibleArticle, key string) {
	less := func(i, j int) bool {
		return articles[i].ModifiedDate.After(articles[j].ModifiedDate)
	}
	switch key {
	case "modified_date":
		less = func(i, j int) bool { return articles[i].ModifiedDate.Before(articles[j].ModifiedDate) }
	case "title":
		less = func(i, j int) bool {
			return strings.ToLower(articles[i].Title) < strings.ToLower(articles[j].Title)
		}
	case "-title":
		less = func(i, j int) bool {
			return strings.ToLower(articles[i].Title) > strings.ToLower(articles[j].Title)
		}
	case "created_date":
		less = func(i, j int) bool { return articles[i].CreatedDate.Before(articles[j].CreatedDate) }
	case "-created_date":
		less = func(i, j int) bool { return articles[i].CreatedDate.After(articles[j].CreatedDate) }
	}
	sort.SliceStable(articles, less)
}

// Groups lists every group, for rendering the grant pickers on the
// article forms.
func (s *ArticleService) Groups(ctx context.Context) ([]model.Group, error) {
	return s.groups.ListGroups(ctx)
}

// validateTitle enforces charset, length, the reserved-slug list, and
// case-insensitive uniqueness. excludeID skips the article being edited.
func (s *ArticleService) validateTitle(ctx context.Context, title string, excludeID int64) (string, string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", "", apperror.ValidationFailed("title", "article title is required")
	}
	if len(title) > MaxTitleLength {
		return "", "", apperror.ValidationFailed("title",
			fmt.Sprintf("title must be %d characters or less", MaxTitleLength))
	}
	if !titleRx.MatchString(title) {
		return "", "", apperror.ValidationFailed("title",
			"title can only contain letters, numbers, spaces, hyphens, and underscores")
	}

	slug := model.Slugify(title)
	if slug == "" {
		return "", "", apperror.ValidationFailed("title", "title must contain at least one letter or number")
	}
	if reservedSlugs[slug] {
		return "", "", apperror.ValidationFailed("title",
			fmt.Sprintf("the title %q is reserved; please choose a different title", title))
	}

	exists, err := s.articles.TitleExists(ctx, title, excludeID)
	if err != nil {
		return "", "", fmt.Errorf("checking title: %w", err)
	}
	if exists {
		return "", "", apperror.ValidationFailed("title",
			"an article with this title already exists; please choose a different title")
	}

	return title, slug, nil
}

// normalizeGrants validates that every selected group exists and applies
// the invariant that edit groups are always view groups too. The caller
// persists the result in the same transaction as the article row.
func (s *ArticleService) normalizeGrants(ctx context.Context, viewIDs, editIDs []int64) ([]int64, []int64, error) {
	union := map[int64]struct{}{}
	for _, id := range viewIDs {
		union[id] = struct{}{}
	}
	for _, id := range editIDs {
		union[id] = struct{}{}
	}

	all := make([]int64, 0, len(union))
	for id := range union {
		all = append(all, id)
	}

	ok, err := s.groups.GroupsExist(ctx, all)
	if err != nil {
		return nil, nil, fmt.Errorf("checking groups: %w", err)
	}
	if !ok {
		return nil, nil, apperror.ValidationFailed("groups", "select a valid group")
	}

	sort.Slice(all, func(i, j int) bool { return all[i] < all[j] })

	edit := dedupeSorted(editIDs)
	return all, edit, nil
}

func dedupeSorted(ids []int64) []int64 {
	set := map[int64]struct{}{}
	for _, id := range ids {
		set[id] = struct{}{}
	}
	out := make([]int64, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Create validates and saves a new article with the caller as creator.
func (s *ArticleService) Create(ctx context.Context, user *model.User, title, content string, viewIDs, editIDs []int64) (*model.Article, error) {
	if user == nil {
		return nil, apperror.Unauthorized("sign in to create articles")
	}

	title, slug, err := s.validateTitle(ctx, title, 0)
	if err != nil {
		return nil, err
	}

	view, edit, err := s.normalizeGrants(ctx, viewIDs, editIDs)
	if err != nil {
		return nil, err
	}

	article := &model.Article{
		Title:        title,
		Slug:         slug,
		Content:      content,
		CreatedBy:    &user.ID,
		ModifiedBy:   &user.ID,
		ViewGroupIDs: view,
		EditGroupIDs: edit,
	}

	if err := s.articles.CreateArticle(ctx, article); err != nil {
		s.logger.Error("failed to create article",
			slog.String("title", title),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	s.logger.Info("article created",
		slog.Int64("id", article.ID),
		slog.String("slug", article.Slug),
		slog.Int64("by", user.ID),
	)
	return article, nil
}

// Get returns an article and the caller's permission on it.
//
// A caller with no visibility gets ErrNotFound, not ErrForbidden — the
// existence of an article is itself information worth hiding.
func (s *ArticleService) Get(ctx context.Context, user *model.User, slug string) (*model.Article, model.Permission, error) {
	article, err := s.articles.GetArticleBySlug(ctx, slug)
	if err != nil {
		return nil, model.PermissionNone, err
	}

	perm, err := s.resolve(ctx, user, article)
	if err != nil {
		return nil, model.PermissionNone, err
	}
	if !perm.CanView() {
		return nil, model.PermissionNone, apperror.NotFound("article", slug)
	}

	return article, perm, nil
}

// Update saves changes to an existing article.
//
// Permission ladder: no visibility → ErrNotFound (existence hiding);
// view but not edit → ErrForbidden (explicit denial); edit → proceed.
func (s *ArticleService) Update(ctx context.Context, user *model.User, slug, title, content string, viewIDs, editIDs []int64) (*model.Article, error) {
	article, err := s.articles.GetArticleBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}

	perm, err := s.resolve(ctx, user, article)
	if err != nil {
		return nil, err
	}
	if !perm.CanView() {
		return nil, apperror.NotFound("article", slug)
	}
	if !perm.CanEdit() {
		return nil, apperror.Forbidden("you do not have permission to edit this article")
	}

	title, newSlug, err := s.validateTitle(ctx, title, article.ID)
	if err != nil {
		return nil, err
	}

	view, edit, err := s.normalizeGrants(ctx, viewIDs, editIDs)
	if err != nil {
		return nil, err
	}

	article.Title = title
	article.Slug = newSlug
	article.Content = content
	article.ModifiedBy = &user.ID
	article.ViewGroupIDs = view
	article.EditGroupIDs = edit

	if err := s.articles.UpdateArticle(ctx, article); err != nil {
		s.logger.Error("failed to update article",
			slog.String("slug", slug),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	s.logger.Info("article updated",
		slog.Int64("id", article.ID),
		slog.String("slug", article.Slug),
		slog.Int64("by", user.ID),
	)
	return article, nil
}

// Delete removes an article, with the same permission ladder as Update.
func (s *ArticleService) Delete(ctx context.Context, user *model.User, slug string) error {
	article, err := s.articles.GetArticleBySlug(ctx, slug)
	if err != nil {
		return err
	}

	perm, err := s.resolve(ctx, user, article)
	if err != nil {
		return err
	}
	if !perm.CanView() {
		return apperror.NotFound("article", slug)
	}
	if !perm.CanEdit() {
		return apperror.Forbidden("you do not have permission to delete this article")
	}

	if err := s.articles.DeleteArticle(ctx, article.ID); err != nil {
		return err
	}

	s.logger.Info("article deleted",
		slog.Int64("id", article.ID),
		slog.String("slug", slug),
		slog.Int64("by", user.ID),
	)
	return nil
}
