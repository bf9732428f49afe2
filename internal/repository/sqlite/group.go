package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/sakif/knowledgebase/internal/apperror"
	"github.com/sakif/knowledgebase/internal/model"
	"github.com/sakif/knowledgebase/internal/repository"
)

// compile-time check that *DB implements repository.GroupRepository
var _ repository.GroupRepository = (*DB)(nil)

// CreateGroup inserts a group and its initial membership in one
// transaction. The name arrives lower-cased and validated from the
// service layer.
func (db *DB) CreateGroup(ctx context.Context, group *model.Group) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO "groups" (name) VALUES (?)`, group.Name)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.ValidationFailed("name", "a group with that name already exists")
		}
		return fmt.Errorf("sqlite: inserting group %s: %w", group.Name, err)
	}

	group.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading new group id: %w", err)
	}

	if err := insertMembers(ctx, tx, group.ID, group.MemberIDs); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing group insert: %w", err)
	}
	return nil
}

func insertMembers(ctx context.Context, tx *sql.Tx, groupID int64, memberIDs []int64) error {
	for _, userID := range memberIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO group_members (group_id, user_id) VALUES (?, ?)`,
			groupID, userID,
		); err != nil {
			return fmt.Errorf("sqlite: adding user %d to group %d: %w", userID, groupID, err)
		}
	}
	return nil
}

// GetGroupByID retrieves a group with its member IDs populated.
func (db *DB) GetGroupByID(ctx context.Context, id int64) (*model.Group, error) {
	var g model.Group
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, name FROM "groups" WHERE id = ?`, id,
	).Scan(&g.ID, &g.Name)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("group", strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("sqlite: getting group %d: %w", id, err)
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT user_id FROM group_members WHERE group_id = ? ORDER BY user_id`, id)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing members of group %d: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var userID int64
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("sqlite: scanning member id: %w", err)
		}
		g.MemberIDs = append(g.MemberIDs, userID)
	}
	return &g, rows.Err()
}

// ListGroups returns all groups ordered by name. Member IDs are not
// loaded here; use GetGroupByID for a single group with membership.
func (db *DB) ListGroups(ctx context.Context) ([]model.Group, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, name FROM "groups" ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing groups: %w", err)
	}
	defer rows.Close()

	var groups []model.Group
	for rows.Next() {
		var g model.Group
		if err := rows.Scan(&g.ID, &g.Name); err != nil {
			return nil, fmt.Errorf("sqlite: scanning group: %w", err)
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// UpdateGroup renames the group and replaces its membership atomically.
// Protection of the "all users" group is the service's concern; the
// repository performs whatever write it is asked to.
func (db *DB) UpdateGroup(ctx context.Context, group *model.Group) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE "groups" SET name = ? WHERE id = ?`, group.Name, group.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.ValidationFailed("name", "a group with that name already exists")
		}
		return fmt.Errorf("sqlite: updating group %d: %w", group.ID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking update of group %d: %w", group.ID, err)
	}
	if n == 0 {
		return apperror.NotFound("group", strconv.FormatInt(group.ID, 10))
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM group_members WHERE group_id = ?`, group.ID); err != nil {
		return fmt.Errorf("sqlite: clearing members of group %d: %w", group.ID, err)
	}
	if err := insertMembers(ctx, tx, group.ID, group.MemberIDs); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing group update: %w", err)
	}
	return nil
}

// DeleteGroup removes a group; memberships and article grants cascade.
func (db *DB) DeleteGroup(ctx context.Context, id int64) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM "groups" WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting group %d: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking delete of group %d: %w", id, err)
	}
	if n == 0 {
		return apperror.NotFound("group", strconv.FormatInt(id, 10))
	}
	return nil
}

// CountGroups returns the total number of groups.
func (db *DB) CountGroups(ctx context.Context) (int, error) {
	var count int
	err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM "groups"`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("sqlite: counting groups: %w", err)
	}
	return count, nil
}

// GroupsExist reports whether every given ID names an existing group.
func (db *DB) GroupsExist(ctx context.Context, ids []int64) (bool, error) {
	if len(ids) == 0 {
		return true, nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	var count int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT id) FROM "groups" WHERE id IN (`+placeholders+`)`,
		args...,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("sqlite: checking groups exist: %w", err)
	}

	distinct := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		distinct[id] = struct{}{}
	}
	return count == len(distinct), nil
}
