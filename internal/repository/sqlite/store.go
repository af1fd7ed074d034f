// Package sqlite implements the credential store on an embedded SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/georgysavva/scany/v2/sqlscan"
	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	"github.com/tendant/simple-auth/internal/domain"
	"github.com/tendant/simple-auth/internal/repository/dbtx"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const userColumns = `id, username, email, password_hash, verified, created_at, updated_at`

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

type userRow struct {
	ID           string `db:"id"`
	Username     string `db:"username"`
	Email        string `db:"email"`
	PasswordHash string `db:"password_hash"`
	Verified     bool   `db:"verified"`
	CreatedAt    int64  `db:"created_at"`
	UpdatedAt    int64  `db:"updated_at"`
}

func (r *userRow) toDomain() (*domain.User, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return nil, fmt.Errorf("parse user id: %w", err)
	}
	return &domain.User{
		ID:           id,
		Username:     r.Username,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		Verified:     r.Verified,
		CreatedAt:    fromMillis(r.CreatedAt),
		UpdatedAt:    fromMillis(r.UpdatedAt),
	}, nil
}

// Store implements the credential store over SQLite. Timestamps are stored
// as unix milliseconds.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	dsn := filepath.Clean(path) + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One writer at a time.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) CreateUser(ctx context.Context, u domain.NewUser) (*domain.User, error) {
	query := `
		INSERT INTO users (id, username, email, password_hash, verified, created_at, updated_at)
		VALUES (?1, ?2, ?3, ?4, 0, ?5, ?5)
		RETURNING ` + userColumns

	var row userRow
	err := sqlscan.Get(ctx, s.db, &row, query, uuid.NewString(), u.Username, u.Email, u.PasswordHash, toMillis(s.now()))
	if err != nil {
		if isConstraint(err, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE, sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY) {
			return nil, domain.ErrDuplicateEmail
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return row.toDomain()
}

func (s *Store) GetUserByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return s.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?1`, id.String())
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?1`, email)
}

func (s *Store) getUser(ctx context.Context, query string, args ...any) (*domain.User, error) {
	var row userRow
	if err := sqlscan.Get(ctx, s.db, &row, query, args...); err != nil {
		if sqlscan.NotFound(err) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return row.toDomain()
}

func (s *Store) MarkUserVerified(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	query := `UPDATE users SET verified = 1, updated_at = ?2 WHERE id = ?1 RETURNING ` + userColumns

	var row userRow
	if err := sqlscan.Get(ctx, s.db, &row, query, id.String(), toMillis(s.now())); err != nil {
		if sqlscan.NotFound(err) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("mark user verified: %w", err)
	}
	return row.toDomain()
}

func (s *Store) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET password_hash = ?2, updated_at = ?3 WHERE id = ?1`,
		id.String(), passwordHash, toMillis(s.now()),
	)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if n == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (s *Store) CreateToken(ctx context.Context, t *domain.Token) error {
	return insertToken(ctx, s.db, t)
}

func (s *Store) ReplaceTokens(ctx context.Context, t *domain.Token) error {
	return dbtx.WithTx(ctx, s.db, func(ctx context.Context, tx dbtx.Querier) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM tokens WHERE user_id = ?1`, t.UserID.String()); err != nil {
			return fmt.Errorf("delete tokens: %w", err)
		}
		return insertToken(ctx, tx, t)
	})
}

func insertToken(ctx context.Context, q dbtx.Querier, t *domain.Token) error {
	query := `
		INSERT INTO tokens (id, user_id, token_hash, type, used, expires_at, created_at)
		VALUES (?1, ?2, ?3, ?4, ?5, ?6, ?7)
	`
	_, err := q.ExecContext(ctx, query,
		t.ID.String(), t.UserID.String(), t.TokenHash, string(t.Type), t.Used,
		toMillis(t.ExpiresAt), toMillis(t.CreatedAt),
	)
	if err != nil {
		if isConstraint(err, sqlite3lib.SQLITE_CONSTRAINT_FOREIGNKEY) {
			return domain.ErrUserNotFound
		}
		return fmt.Errorf("insert token: %w", err)
	}
	return nil
}

func (s *Store) ConsumeToken(ctx context.Context, tokenHash string, typ domain.TokenType, now time.Time) (uuid.UUID, error) {
	query := `
		UPDATE tokens SET used = 1
		WHERE token_hash = ?1 AND type = ?2 AND used = 0 AND expires_at > ?3
		RETURNING user_id
	`
	var userID string
	err := s.db.QueryRowContext(ctx, query, tokenHash, string(typ), toMillis(now)).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return uuid.Nil, domain.ErrInvalidOrExpiredToken
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("consume token: %w", err)
	}
	return uuid.Parse(userID)
}

func (s *Store) DeleteExpiredTokens(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tokens WHERE expires_at < ?1`, toMillis(before))
	if err != nil {
		return 0, fmt.Errorf("delete expired tokens: %w", err)
	}
	return res.RowsAffected()
}

// Migrate applies the embedded migrations.
func (s *Store) Migrate(ctx context.Context) error {
	if err := useMigrations(); err != nil {
		return err
	}
	return goose.UpContext(ctx, s.db, "migrations")
}

// MigrationStatus prints the state of every embedded migration.
func (s *Store) MigrationStatus(ctx context.Context) error {
	if err := useMigrations(); err != nil {
		return err
	}
	return goose.StatusContext(ctx, s.db, "migrations")
}

func useMigrations() error {
	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

func isConstraint(err error, codes ...int) bool {
	var sqliteErr *msqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	for _, code := range codes {
		if sqliteErr.Code() == code {
			return true
		}
	}
	return false
}
