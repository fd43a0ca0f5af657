package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cobranzas/internal/core"

	_ "modernc.org/sqlite"
)

// SQLiteRepository owns the users, movements and sessions tables. Every
// movement read or write carries the owner predicate; cross-user access is
// indistinguishable from a missing row.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" && !strings.HasPrefix(dbPath, ":") {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// Single writer; also keeps in-memory databases on one connection.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// ---- users ----

// CreateUser inserts an account row. The username must already be
// normalized. A unique-constraint violation maps to core.ErrDuplicateUser.
func (r *SQLiteRepository) CreateUser(ctx context.Context, username, passwordHash string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO users (username, password_hash, created_at) VALUES (?, ?, ?)`,
		username, passwordHash, time.Now().UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, core.ErrDuplicateUser
		}
		return 0, fmt.Errorf("insert user: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("user insert id: %w", err)
	}

	slog.InfoContext(ctx, "User created", "user_id", id, "username", username)
	return id, nil
}

func (r *SQLiteRepository) GetUserByUsername(ctx context.Context, username string) (*core.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, created_at FROM users WHERE username = ?`,
		username,
	)

	var u core.User
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get user by username: %w", err)
	}
	return &u, nil
}

func (r *SQLiteRepository) GetUserByID(ctx context.Context, id int64) (*core.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, created_at FROM users WHERE id = ?`,
		id,
	)

	var u core.User
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt); err != nil {
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	return &u, nil
}

// ---- movements ----

const movementColumns = `id, user_id, type, description, payment_method, amount, created_at, version`

// InsertMovement persists a validated movement with a server-assigned
// timestamp and returns the new id.
func (r *SQLiteRepository) InsertMovement(ctx context.Context, m core.Movement) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO movements (user_id, type, description, payment_method, amount, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		m.UserID, string(m.Type), m.Description, m.PaymentMethod, m.Amount, time.Now().UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert movement: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("movement insert id: %w", err)
	}
	return id, nil
}

// ListMovements returns the user's movements, most recent first, ties
// broken by id descending.
func (r *SQLiteRepository) ListMovements(ctx context.Context, userID int64) ([]core.Movement, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+movementColumns+` FROM movements
		 WHERE user_id = ? ORDER BY created_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list movements: %w", err)
	}
	defer rows.Close()

	var movements []core.Movement
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, err
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

// GetMovement fetches a movement for edit, scoped by owner. A nonexistent
// id and a foreign id both return core.ErrMovementNotFound.
func (r *SQLiteRepository) GetMovement(ctx context.Context, userID, id int64) (*core.Movement, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+movementColumns+` FROM movements WHERE id = ? AND user_id = ?`,
		id, userID,
	)

	m, err := scanMovement(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrMovementNotFound
		}
		return nil, err
	}
	return &m, nil
}

// UpdateMovement applies an edit to the owner's row only and returns the
// bumped version. Cross-user updates match no row and report false
// without error. The sync state is reset so the export worker picks the
// row up again.
func (r *SQLiteRepository) UpdateMovement(ctx context.Context, userID, id int64, m core.Movement) (int64, bool, error) {
	var version int64
	err := r.db.QueryRowContext(ctx,
		`UPDATE movements
		 SET type = ?, description = ?, payment_method = ?, amount = ?,
		     version = version + 1, sync_status = 'pending'
		 WHERE id = ? AND user_id = ?
		 RETURNING version`,
		string(m.Type), m.Description, m.PaymentMethod, m.Amount, id, userID,
	).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("update movement: %w", err)
	}
	return version, true, nil
}

// DeleteMovement removes the owner's row only; reports whether a row went
// away.
func (r *SQLiteRepository) DeleteMovement(ctx context.Context, userID, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM movements WHERE id = ? AND user_id = ?`,
		id, userID,
	)
	if err != nil {
		return false, fmt.Errorf("delete movement: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete movement rows affected: %w", err)
	}
	return n > 0, nil
}

// Totals folds the user's movements into balance and per-type sums, all
// decimals, zero for an empty ledger. Summation happens here rather than
// in SQL so amounts never round-trip through floats.
func (r *SQLiteRepository) Totals(ctx context.Context, userID int64) (core.Totals, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT type, amount FROM movements WHERE user_id = ?`,
		userID,
	)
	if err != nil {
		return core.ZeroTotals(), fmt.Errorf("totals: %w", err)
	}
	defer rows.Close()

	totals := core.ZeroTotals()
	for rows.Next() {
		var m core.Movement
		var typ string
		if err := rows.Scan(&typ, &m.Amount); err != nil {
			return core.ZeroTotals(), fmt.Errorf("scan totals row: %w", err)
		}
		m.Type = core.MovementType(typ)
		totals = totals.Apply(m)
	}
	return totals, rows.Err()
}

// ---- export sync state ----

// PendingMovement is the minimal record the export worker needs to
// re-enqueue a missed row.
type PendingMovement struct {
	ID      int64
	Version int64
}

// GetMovementByID loads a movement regardless of owner; worker-only.
func (r *SQLiteRepository) GetMovementByID(ctx context.Context, id int64) (*core.Movement, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+movementColumns+` FROM movements WHERE id = ?`,
		id,
	)

	m, err := scanMovement(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrMovementNotFound
		}
		return nil, err
	}
	return &m, nil
}

func (r *SQLiteRepository) PendingSyncMovements(ctx context.Context, limit int) ([]PendingMovement, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, version FROM movements WHERE sync_status = 'pending'
		 ORDER BY id LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("pending sync movements: %w", err)
	}
	defer rows.Close()

	var pending []PendingMovement
	for rows.Next() {
		var p PendingMovement
		if err := rows.Scan(&p.ID, &p.Version); err != nil {
			return nil, fmt.Errorf("scan pending movement: %w", err)
		}
		pending = append(pending, p)
	}
	return pending, rows.Err()
}

func (r *SQLiteRepository) MarkSynced(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE movements SET sync_status = 'synced' WHERE id = ?`, id); err != nil {
		return fmt.Errorf("mark movement synced: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE movements SET sync_status = 'error' WHERE id = ?`, id); err != nil {
		return fmt.Errorf("mark movement sync error: %w", err)
	}
	slog.WarnContext(ctx, "Movement marked with sync error", "movement_id", id)
	return nil
}

// ---- sessions ----

func (r *SQLiteRepository) CreateSession(ctx context.Context, token string, userID int64, expiresAt time.Time) error {
	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (token, user_id, expires_at, last_activity) VALUES (?, ?, ?, ?)`,
		token, userID, expiresAt.UTC(), time.Now().UTC(),
	); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// SessionInfo carries the authenticated user together with session
// lifetime data used for rolling renewal.
type SessionInfo struct {
	User      *core.User
	ExpiresAt time.Time
}

// GetSession resolves a token to its user, rejecting expired sessions.
func (r *SQLiteRepository) GetSession(ctx context.Context, token string) (*SessionInfo, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT u.id, u.username, u.password_hash, u.created_at, s.expires_at
		FROM sessions s
		JOIN users u ON s.user_id = u.id
		WHERE s.token = ? AND s.expires_at > ?`,
		token, time.Now().UTC(),
	)

	var u core.User
	var expiresAt time.Time
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt, &expiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return &SessionInfo{User: &u, ExpiresAt: expiresAt}, nil
}

func (r *SQLiteRepository) RenewSession(ctx context.Context, token string, expiresAt time.Time) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET expires_at = ?, last_activity = ? WHERE token = ?`,
		expiresAt.UTC(), time.Now().UTC(), token,
	); err != nil {
		return fmt.Errorf("renew session: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteSession(ctx context.Context, token string) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE token = ?`, token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// CleanExpiredSessions removes sessions past their expiry and reports
// how many were deleted.
func (r *SQLiteRepository) CleanExpiredSessions(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE expires_at <= ?`, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("clean expired sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("clean expired sessions: %w", err)
	}
	return n, nil
}

// ---- helpers ----

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMovement(row rowScanner) (core.Movement, error) {
	var m core.Movement
	var typ string
	if err := row.Scan(&m.ID, &m.UserID, &typ, &m.Description, &m.PaymentMethod, &m.Amount, &m.CreatedAt, &m.Version); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Movement{}, err
		}
		return core.Movement{}, fmt.Errorf("scan movement: %w", err)
	}
	m.Type = core.MovementType(typ)
	return m, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
