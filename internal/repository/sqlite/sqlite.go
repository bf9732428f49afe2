// Package sqlite implements the repository interfaces using SQLite as the
// storage backend.
//
// modernc.org/sqlite is a pure Go translation of the SQLite C code — no
// CGo, no C compiler, works everywhere Go works. The blank import below
// registers it with database/sql as the "sqlite" driver.
package sqlite

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection pool and implements the repository
// interfaces. It is the only shared mutable resource in the process;
// everything above it is stateless per request.
type DB struct {
	conn *sql.DB
}

// New opens (or creates) the database at dbPath and runs migrations.
// Use ":memory:" for a throwaway in-memory database in tests.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL allows concurrent reads while a write is in progress — a web
	// server hits the database from many requests at once.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	// Foreign keys are off by default in SQLite. The schema relies on
	// ON DELETE SET NULL for article ownership and ON DELETE CASCADE for
	// the join tables, so they must be on.
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates the schema and seeds the protected "all users" group.
// CREATE TABLE IF NOT EXISTS keeps this safe to run on every start.
//
// "groups" is a SQLite keyword (window frames), so it is quoted wherever
// it appears.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id                           INTEGER PRIMARY KEY AUTOINCREMENT,
			email                        TEXT NOT NULL UNIQUE,
			password_hash                TEXT NOT NULL,
			first_name                   TEXT NOT NULL,
			last_name                    TEXT NOT NULL,
			is_admin                     INTEGER NOT NULL DEFAULT 0,
			is_verified                  INTEGER NOT NULL DEFAULT 0,
			date_joined                  DATETIME NOT NULL,
			last_verification_email_sent DATETIME
		);

		CREATE TABLE IF NOT EXISTS "groups" (
			id   INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE
		);

		CREATE TABLE IF NOT EXISTS group_members (
			group_id INTEGER NOT NULL REFERENCES "groups"(id) ON DELETE CASCADE,
			user_id  INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			PRIMARY KEY (group_id, user_id)
		);

		CREATE TABLE IF NOT EXISTS articles (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			title         TEXT NOT NULL,
			slug          TEXT NOT NULL UNIQUE,
			content       TEXT NOT NULL DEFAULT '',
			created_by    INTEGER REFERENCES users(id) ON DELETE SET NULL,
			created_date  DATETIME NOT NULL,
			modified_by   INTEGER REFERENCES users(id) ON DELETE SET NULL,
			modified_date DATETIME NOT NULL
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_articles_title_nocase
			ON articles(title COLLATE NOCASE);
		CREATE INDEX IF NOT EXISTS idx_articles_modified_date
			ON articles(modified_date);

		CREATE TABLE IF NOT EXISTS article_view_groups (
			article_id INTEGER NOT NULL REFERENCES articles(id) ON DELETE CASCADE,
			group_id   INTEGER NOT NULL REFERENCES "groups"(id) ON DELETE CASCADE,
			PRIMARY KEY (article_id, group_id)
		);

		CREATE TABLE IF NOT EXISTS article_edit_groups (
			article_id INTEGER NOT NULL REFERENCES articles(id) ON DELETE CASCADE,
			group_id   INTEGER NOT NULL REFERENCES "groups"(id) ON DELETE CASCADE,
			PRIMARY KEY (article_id, group_id)
		);
	`)
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}

	// Seed the protected "all users" group with the fixed ID 1.
	_, err = db.conn.Exec(`
		INSERT INTO "groups" (id, name)
		SELECT 1, 'all users'
		WHERE NOT EXISTS (SELECT 1 FROM "groups" WHERE id = 1)
	`)
	if err != nil {
		return fmt.Errorf("seeding all users group: %w", err)
	}

	return nil
}
