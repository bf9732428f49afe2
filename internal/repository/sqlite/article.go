package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/sakif/knowledgebase/internal/apperror"
	"github.com/sakif/knowledgebase/internal/model"
	"github.com/sakif/knowledgebase/internal/repository"
)

// compile-time check that *DB implements repository.ArticleRepository
var _ repository.ArticleRepository = (*DB)(nil)

const articleColumns = `id, title, slug, content, created_by, created_date,
	modified_by, modified_date`

func scanArticle(row interface{ Scan(...any) error }) (*model.Article, error) {
	var a model.Article
	var createdBy, modifiedBy sql.NullInt64

	err := row.Scan(
		&a.ID,
		&a.Title,
		&a.Slug,
		&a.Content,
		&createdBy,
		&a.CreatedDate,
		&modifiedBy,
		&a.ModifiedDate,
	)
	if err != nil {
		return nil, err
	}

	if createdBy.Valid {
		v := createdBy.Int64
		a.CreatedBy = &v
	}
	if modifiedBy.Valid {
		v := modifiedBy.Int64
		a.ModifiedBy = &v
	}
	return &a, nil
}

func nullableID(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *id, Valid: true}
}

// CreateArticle inserts the article row and both group-grant join tables
// in a single transaction, so the edit-implies-view invariant can never
// be half-committed.
func (db *DB) CreateArticle(ctx context.Context, article *model.Article) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	article.CreatedDate = now
	article.ModifiedDate = now

	res, err := tx.ExecContext(ctx,
		`INSERT INTO articles (title, slug, content, created_by, created_date, modified_by, modified_date)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		article.Title,
		article.Slug,
		article.Content,
		nullableID(article.CreatedBy),
		article.CreatedDate,
		nullableID(article.ModifiedBy),
		article.ModifiedDate,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("article", article.Title)
		}
		return fmt.Errorf("sqlite: inserting article %q: %w", article.Title, err)
	}

	article.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading new article id: %w", err)
	}

	if err := writeGrants(ctx, tx, article); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing article insert: %w", err)
	}
	return nil
}

func writeGrants(ctx context.Context, tx *sql.Tx, article *model.Article) error {
	for _, stmt := range []struct {
		table string
		ids   []int64
	}{
		{"article_view_groups", article.ViewGroupIDs},
		{"article_edit_groups", article.EditGroupIDs},
	} {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM `+stmt.table+` WHERE article_id = ?`, article.ID); err != nil {
			return fmt.Errorf("sqlite: clearing %s for article %d: %w", stmt.table, article.ID, err)
		}
		for _, groupID := range stmt.ids {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO `+stmt.table+` (article_id, group_id) VALUES (?, ?)`,
				article.ID, groupID,
			); err != nil {
				return fmt.Errorf("sqlite: granting group %d in %s: %w", groupID, stmt.table, err)
			}
		}
	}
	return nil
}

func (db *DB) loadGrants(ctx context.Context, article *model.Article) error {
	for _, q := range []struct {
		table string
		dst   *[]int64
	}{
		{"article_view_groups", &article.ViewGroupIDs},
		{"article_edit_groups", &article.EditGroupIDs},
	} {
		rows, err := db.conn.QueryContext(ctx,
			`SELECT group_id FROM `+q.table+` WHERE article_id = ? ORDER BY group_id`,
			article.ID)
		if err != nil {
			return fmt.Errorf("sqlite: loading %s for article %d: %w", q.table, article.ID, err)
		}
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return fmt.Errorf("sqlite: scanning grant: %w", err)
			}
			*q.dst = append(*q.dst, id)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return err
		}
		rows.Close()
	}
	return nil
}

// GetArticleBySlug retrieves an article with its group grants populated.
func (db *DB) GetArticleBySlug(ctx context.Context, slug string) (*model.Article, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+articleColumns+` FROM articles WHERE slug = ?`, slug)

	a, err := scanArticle(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("article", slug)
		}
		return nil, fmt.Errorf("sqlite: getting article %s: %w", slug, err)
	}

	if err := db.loadGrants(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// ListArticles returns every article with grants populated, most recently
// modified first. Permission filtering happens above this layer, per
// request, because memberships can change between calls.
func (db *DB) ListArticles(ctx context.Context) ([]model.Article, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+articleColumns+` FROM articles ORDER BY modified_date DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing articles: %w", err)
	}
	defer rows.Close()

	var articles []model.Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning article: %w", err)
		}
		articles = append(articles, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range articles {
		if err := db.loadGrants(ctx, &articles[i]); err != nil {
			return nil, err
		}
	}
	return articles, nil
}

// UpdateArticle rewrites the article row and both join tables in one
// transaction. Slug and modified date are refreshed on every save.
func (db *DB) UpdateArticle(ctx context.Context, article *model.Article) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning transaction: %w", err)
	}
	defer tx.Rollback()

	article.ModifiedDate = time.Now().UTC()

	res, err := tx.ExecContext(ctx,
		`UPDATE articles
		 SET title = ?, slug = ?, content = ?, modified_by = ?, modified_date = ?
		 WHERE id = ?`,
		article.Title,
		article.Slug,
		article.Content,
		nullableID(article.ModifiedBy),
		article.ModifiedDate,
		article.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("article", article.Title)
		}
		return fmt.Errorf("sqlite: updating article %d: %w", article.ID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking update of article %d: %w", article.ID, err)
	}
	if n == 0 {
		return apperror.NotFound("article", strconv.FormatInt(article.ID, 10))
	}

	if err := writeGrants(ctx, tx, article); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing article update: %w", err)
	}
	return nil
}

// DeleteArticle removes an article; group grants cascade.
func (db *DB) DeleteArticle(ctx context.Context, id int64) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM articles WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting article %d: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking delete of article %d: %w", id, err)
	}
	if n == 0 {
		return apperror.NotFound("article", strconv.FormatInt(id, 10))
	}
	return nil
}

// CountArticles returns the total number of articles.
func (db *DB) CountArticles(ctx context.Context) (int, error) {
	var count int
	err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM articles`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("sqlite: counting articles: %w", err)
	}
	return count, nil
}

// TitleExists reports a case-insensitive title collision, ignoring the
// article with excludeID (pass 0 when creating).
func (db *DB) TitleExists(ctx context.Context, title string, excludeID int64) (bool, error) {
	var count int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM articles WHERE title = ? COLLATE NOCASE AND id != ?`,
		title, excludeID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("sqlite: checking title %q: %w", title, err)
	}
	return count > 0, nil
}
