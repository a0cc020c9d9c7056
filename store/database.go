// Package store database for play history and exit attempts
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// fixed width so stored timestamps sort lexically
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type Database struct {
	db *sql.DB
}

func NewDatabase(dbPath string) (*Database, error) {
	// Create directory if it doesn't exist
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// dispatch and challenge hooks write from different goroutines
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	database := &Database{db: db}

	// Create tables if they don't exist
	if err := database.createTable(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	return database, nil
}

func (d *Database) createTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS plays (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT    NOT NULL,
		position   INTEGER NOT NULL,
		kind       TEXT    NOT NULL,
		name       TEXT    NOT NULL,
		path       TEXT    NOT NULL,
		started_at TEXT    NOT NULL,
		error      TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_plays_started_at ON plays(started_at);
	CREATE TABLE IF NOT EXISTS exit_attempts (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		at         TEXT NOT NULL,
		outcome    TEXT NOT NULL,
		error      TEXT
	);
	`
	_, err := d.db.Exec(query)
	return err
}

func (d *Database) RecordPlay(p Play) error {
	query := `INSERT INTO plays (session_id, position, kind, name, path, started_at, error) VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := d.db.Exec(query,
		p.SessionID,
		p.Position,
		p.Kind,
		p.Name,
		p.Path,
		p.StartedAt.UTC().Format(timeLayout),
		nullString(p.Error),
	)
	if err != nil {
		return fmt.Errorf("failed to insert play: %w", err)
	}
	return nil
}

// RecentPlays returns the latest plays, newest first.
func (d *Database) RecentPlays(limit int) ([]Play, error) {
	query := `
		SELECT id, session_id, position, kind, name, path, started_at, error
		FROM plays
		ORDER BY id DESC
		LIMIT ?
	`
	rows, err := d.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query plays: %w", err)
	}
	defer rows.Close()

	var plays []Play
	for rows.Next() {
		var p Play
		var startedAt string
		var errText sql.NullString
		if err := rows.Scan(&p.ID, &p.SessionID, &p.Position, &p.Kind, &p.Name, &p.Path, &startedAt, &errText); err != nil {
			return nil, fmt.Errorf("failed to scan play: %w", err)
		}
		if p.StartedAt, err = time.Parse(timeLayout, startedAt); err != nil {
			return nil, fmt.Errorf("failed to parse play time: %w", err)
		}
		p.Error = errText.String
		plays = append(plays, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return plays, nil
}

// PlayCounts aggregates plays per entry name, most played first.
func (d *Database) PlayCounts() ([]PlayCount, error) {
	query := `
		SELECT name,
		       kind,
		       COUNT(*),
		       SUM(CASE WHEN error IS NULL THEN 0 ELSE 1 END),
		       MAX(started_at)
		FROM plays
		GROUP BY name, kind
		ORDER BY COUNT(*) DESC, name ASC
	`
	rows, err := d.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query play counts: %w", err)
	}
	defer rows.Close()

	var counts []PlayCount
	for rows.Next() {
		var c PlayCount
		var last string
		if err := rows.Scan(&c.Name, &c.Kind, &c.Plays, &c.Failures, &last); err != nil {
			return nil, fmt.Errorf("failed to scan play count: %w", err)
		}
		if c.LastPlay, err = time.Parse(timeLayout, last); err != nil {
			return nil, fmt.Errorf("failed to parse play time: %w", err)
		}
		counts = append(counts, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return counts, nil
}

func (d *Database) RecordExitAttempt(a ExitAttempt) error {
	query := `INSERT INTO exit_attempts (session_id, at, outcome, error) VALUES (?, ?, ?, ?)`
	_, err := d.db.Exec(query, a.SessionID, a.At.UTC().Format(timeLayout), a.Outcome, nullString(a.Error))
	if err != nil {
		return fmt.Errorf("failed to insert exit attempt: %w", err)
	}
	return nil
}

// RecentExitAttempts returns the latest exit attempts, newest first.
func (d *Database) RecentExitAttempts(limit int) ([]ExitAttempt, error) {
	query := `
		SELECT id, session_id, at, outcome, error
		FROM exit_attempts
		ORDER BY id DESC
		LIMIT ?
	`
	rows, err := d.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query exit attempts: %w", err)
	}
	defer rows.Close()

	var attempts []ExitAttempt
	for rows.Next() {
		var a ExitAttempt
		var at string
		var errText sql.NullString
		if err := rows.Scan(&a.ID, &a.SessionID, &at, &a.Outcome, &errText); err != nil {
			return nil, fmt.Errorf("failed to scan exit attempt: %w", err)
		}
		if a.At, err = time.Parse(timeLayout, at); err != nil {
			return nil, fmt.Errorf("failed to parse exit attempt time: %w", err)
		}
		a.Error = errText.String
		attempts = append(attempts, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return attempts, nil
}

// Prune deletes history older than before and returns the number of rows removed.
func (d *Database) Prune(before time.Time) (int64, error) {
	cutoff := before.UTC().Format(timeLayout)

	var total int64
	for _, stmt := range []string{
		`DELETE FROM plays WHERE started_at < ?`,
		`DELETE FROM exit_attempts WHERE at < ?`,
	} {
		result, err := d.db.Exec(stmt, cutoff)
		if err != nil {
			return total, fmt.Errorf("failed to prune history: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return total, fmt.Errorf("failed to get rows affected: %w", err)
		}
		total += n
	}
	return total, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (d *Database) Close() error {
	return d.db.Close()
}
