package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/conorfennell/courseboard/internal/domain"
	_ "modernc.org/sqlite" // Registers the sqlite driver
)

// ErrClosed is returned once Close has been called on a DB.
var ErrClosed = errors.New("storage: database is closed")

// DB owns the connection to the course database.
//
// The underlying handle is opened lazily and checked before every use; a
// handle that is found closed or broken is reopened. All operations are
// serialised by a single mutex.
type DB struct {
	mu     sync.Mutex
	dsn    string
	conn   *sql.DB
	closed bool
	log    *slog.Logger
}

// Open creates a new database connection and ensures the schema is up to date.
// A nil logger falls back to slog.Default().
func Open(ctx context.Context, dsn string, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db := &DB{dsn: dsn, log: logger.With("component", "storage")}

	db.mu.Lock()
	defer db.mu.Unlock()
	if _, err := db.handle(ctx); err != nil {
		return nil, err
	}
	return db, nil
}

// Close closes the database connection. Calling it more than once is a no-op.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.closed {
		return nil
	}
	db.closed = true
	if db.conn == nil {
		return nil
	}
	err := db.conn.Close()
	db.conn = nil
	if err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// Ping reports whether the database can currently be reached.
func (db *DB) Ping(ctx context.Context) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	_, err := db.handle(ctx)
	return err
}

// handle returns a live connection, opening or reopening it as needed.
// Callers must hold db.mu.
func (db *DB) handle(ctx context.Context) (*sql.DB, error) {
	if db.closed {
		return nil, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if db.conn != nil {
		err := db.conn.PingContext(ctx)
		if err == nil {
			return db.conn, nil
		}
		// A cancelled or expired request says nothing about the handle.
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("failed to ping database: %w", err)
		}
		db.log.Warn("database handle is no longer usable, reopening", "error", err)
		db.conn.Close()
		db.conn = nil
	}

	conn, err := sql.Open("sqlite", db.dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps ":memory:" databases coherent and matches the
	// one-writer model of the store.
	conn.SetMaxOpenConns(1)

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := migrate(ctx, conn); err != nil {
		conn.Close()
		return nil, err
	}

	db.conn = conn
	db.log.Debug("database opened", "dsn", db.dsn)
	return conn, nil
}

// migrate creates the schema, dropping the table first when the stored
// schema version is older than the current one.
func migrate(ctx context.Context, conn *sql.DB) error {
	var version int
	if err := conn.QueryRowContext(ctx, `PRAGMA user_version`).Scan(&version); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if version > schemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d", version, schemaVersion)
	}
	if version < schemaVersion {
		if _, err := conn.ExecContext(ctx, dropSchema); err != nil {
			return fmt.Errorf("failed to drop outdated schema: %w", err)
		}
	}

	// Execute the schema to create tables if they don't exist.
	if _, err := conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	if version != schemaVersion {
		if _, err := conn.ExecContext(ctx, fmt.Sprintf(`PRAGMA user_version = %d`, schemaVersion)); err != nil {
			return fmt.Errorf("failed to record schema version: %w", err)
		}
	}
	return nil
}

// Add inserts a new course. The ID of the given course is ignored; the store
// assigns one. It reports whether the row was inserted.
func (db *DB) Add(ctx context.Context, course domain.Course) bool {
	db.mu.Lock()
	defer db.mu.Unlock()

	conn, err := db.handle(ctx)
	if err != nil {
		db.log.Error("failed to insert course", "name", course.Name, "error", err)
		return false
	}
	res, err := conn.ExecContext(ctx, `
		INSERT INTO courses (name, description)
		VALUES (?, ?)
	`, course.Name, course.Description)
	if err != nil {
		db.log.Error("failed to insert course", "name", course.Name, "error", err)
		return false
	}
	if id, err := res.LastInsertId(); err == nil {
		db.log.Debug("course inserted", "id", id, "name", course.Name)
	}
	return true
}

// ListAll retrieves every stored course in the table's natural scan order.
func (db *DB) ListAll(ctx context.Context) ([]domain.Course, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	conn, err := db.handle(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := conn.QueryContext(ctx, `
		SELECT id, name, description
		FROM courses
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list courses: %w", err)
	}
	defer rows.Close()

	courses := []domain.Course{}
	for rows.Next() {
		var (
			c           domain.Course
			name, descr sql.NullString
		)
		if err := rows.Scan(&c.ID, &name, &descr); err != nil {
			return nil, fmt.Errorf("failed to scan course row: %w", err)
		}
		c.Name = name.String
		c.Description = descr.String
		courses = append(courses, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate course rows: %w", err)
	}
	return courses, nil
}

// FindByID retrieves a single course. It returns nil, nil when no course has
// the given id.
func (db *DB) FindByID(ctx context.Context, id int64) (*domain.Course, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	conn, err := db.handle(ctx)
	if err != nil {
		return nil, err
	}
	var (
		c           domain.Course
		name, descr sql.NullString
	)
	err = conn.QueryRowContext(ctx, `
		SELECT id, name, description
		FROM courses WHERE id = ?
	`, id).Scan(&c.ID, &name, &descr)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Course not found
		}
		return nil, fmt.Errorf("failed to find course %d: %w", id, err)
	}
	c.Name = name.String
	c.Description = descr.String
	return &c, nil
}

// Update overwrites the name and description of the course with course.ID.
// It reports whether a row matched.
func (db *DB) Update(ctx context.Context, course domain.Course) bool {
	db.mu.Lock()
	defer db.mu.Unlock()

	conn, err := db.handle(ctx)
	if err != nil {
		db.log.Error("failed to update course", "id", course.ID, "error", err)
		return false
	}
	res, err := conn.ExecContext(ctx, `
		UPDATE courses
		SET name = ?, description = ?
		WHERE id = ?
	`, course.Name, course.Description, course.ID)
	if err != nil {
		db.log.Error("failed to update course", "id", course.ID, "error", err)
		return false
	}
	return affected(db.log, res, "update", course.ID)
}

// DeleteByID removes the course with the given id. It reports whether a row
// was removed.
func (db *DB) DeleteByID(ctx context.Context, id int64) bool {
	db.mu.Lock()
	defer db.mu.Unlock()

	conn, err := db.handle(ctx)
	if err != nil {
		db.log.Error("failed to delete course", "id", id, "error", err)
		return false
	}
	res, err := conn.ExecContext(ctx, `
		DELETE FROM courses
		WHERE id = ?
	`, id)
	if err != nil {
		db.log.Error("failed to delete course", "id", id, "error", err)
		return false
	}
	return affected(db.log, res, "delete", id)
}

func affected(log *slog.Logger, res sql.Result, op string, id int64) bool {
	n, err := res.RowsAffected()
	if err != nil {
		log.Error("failed to read affected rows", "op", op, "id", id, "error", err)
		return false
	}
	if n == 0 {
		log.Debug("no course matched", "op", op, "id", id)
	}
	return n > 0
}
