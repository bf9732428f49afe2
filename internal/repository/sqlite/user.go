package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sakif/knowledgebase/internal/apperror"
	"github.com/sakif/knowledgebase/internal/model"
	"github.com/sakif/knowledgebase/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

// isUniqueViolation detects UNIQUE constraint failures. database/sql has
// no portable error code for this, and the modernc driver surfaces it in
// the message text.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

const userColumns = `id, email, password_hash, first_name, last_name,
	is_admin, is_verified, date_joined, last_verification_email_sent`

func scanUser(row interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	var lastSent sql.NullTime

	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.FirstName,
		&u.LastName,
		&u.IsAdmin,
		&u.IsVerified,
		&u.DateJoined,
		&lastSent,
	)
	if err != nil {
		return nil, err
	}

	if lastSent.Valid {
		t := lastSent.Time
		u.LastVerificationEmailSent = &t
	}
	return &u, nil
}

// CreateUser inserts the user and enrolls them into the given groups.
// The insert and the enrollments commit atomically — a sign-up can never
// produce a user outside the "all users" group.
func (db *DB) CreateUser(ctx context.Context, user *model.User, groupIDs ...int64) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning transaction: %w", err)
	}
	defer tx.Rollback()

	user.DateJoined = time.Now().UTC().Truncate(time.Second)

	res, err := tx.ExecContext(ctx,
		`INSERT INTO users (email, password_hash, first_name, last_name, is_admin, is_verified, date_joined)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		user.Email,
		user.PasswordHash,
		user.FirstName,
		user.LastName,
		user.IsAdmin,
		user.IsVerified,
		user.DateJoined,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.ValidationFailed("email", "a user with this email already exists")
		}
		return fmt.Errorf("sqlite: inserting user %s: %w", user.Email, err)
	}

	user.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading new user id: %w", err)
	}

	for _, groupID := range groupIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO group_members (group_id, user_id) VALUES (?, ?)`,
			groupID, user.ID,
		); err != nil {
			return fmt.Errorf("sqlite: enrolling user %d into group %d: %w", user.ID, groupID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing user insert: %w", err)
	}
	return nil
}

// GetUserByID retrieves a user by their internal ID.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (db *DB) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)

	u, err := scanUser(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("sqlite: getting user %d: %w", id, err)
	}
	return u, nil
}

// GetUserByEmail retrieves a user by email. Emails are stored lower-cased,
// so the lookup lower-cases its input too.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email)

	u, err := scanUser(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", email)
		}
		return nil, fmt.Errorf("sqlite: getting user by email %s: %w", email, err)
	}
	return u, nil
}

// ListUsers returns all users ordered by join date.
func (db *DB) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY date_joined, id`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// UpdateUser persists every mutable field of the user row.
func (db *DB) UpdateUser(ctx context.Context, user *model.User) error {
	var lastSent sql.NullTime
	if user.LastVerificationEmailSent != nil {
		lastSent = sql.NullTime{Time: *user.LastVerificationEmailSent, Valid: true}
	}

	res, err := db.conn.ExecContext(ctx,
		`UPDATE users
		 SET email = ?, password_hash = ?, first_name = ?, last_name = ?,
		     is_admin = ?, is_verified = ?, last_verification_email_sent = ?
		 WHERE id = ?`,
		user.Email,
		user.PasswordHash,
		user.FirstName,
		user.LastName,
		user.IsAdmin,
		user.IsVerified,
		lastSent,
		user.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.ValidationFailed("email", "a user with this email already exists")
		}
		return fmt.Errorf("sqlite: updating user %d: %w", user.ID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking update of user %d: %w", user.ID, err)
	}
	if n == 0 {
		return apperror.NotFound("user", strconv.FormatInt(user.ID, 10))
	}
	return nil
}

// DeleteUser removes a user. Memberships cascade; authored articles keep
// their rows with created_by/modified_by set to NULL by the foreign keys.
func (db *DB) DeleteUser(ctx context.Context, id int64) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting user %d: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking delete of user %d: %w", id, err)
	}
	if n == 0 {
		return apperror.NotFound("user", strconv.FormatInt(id, 10))
	}
	return nil
}

// CountUsers returns the total number of users.
func (db *DB) CountUsers(ctx context.Context) (int, error) {
	var count int
	err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("sqlite: counting users: %w", err)
	}
	return count, nil
}

// GroupIDsOf returns the IDs of every group the user belongs to.
func (db *DB) GroupIDsOf(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT group_id FROM group_members WHERE user_id = ? ORDER BY group_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing groups of user %d: %w", userID, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sqlite: scanning group id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
