// Package postgres implements the credential store on PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/sqlscan"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"github.com/tendant/simple-auth/internal/domain"
	"github.com/tendant/simple-auth/internal/repository/dbtx"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

const userColumns = `id, username, email, password_hash, verified, created_at, updated_at`

type userRow struct {
	ID           uuid.UUID `db:"id"`
	Username     string    `db:"username"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	Verified     bool      `db:"verified"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (r *userRow) toDomain() *domain.User {
	return &domain.User{
		ID:           r.ID,
		Username:     r.Username,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		Verified:     r.Verified,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

// Store handles user and token persistence.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open connects to PostgreSQL and verifies the connection.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return New(db), nil
}

// New wraps an existing connection pool.
func New(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// CreateUser inserts a new unverified user.
func (s *Store) CreateUser(ctx context.Context, u domain.NewUser) (*domain.User, error) {
	query := `
		INSERT INTO users (id, username, email, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + userColumns
	now := s.now().UTC()

	var row userRow
	err := sqlscan.Get(ctx, s.db, &row, query, uuid.New(), u.Username, u.Email, u.PasswordHash, now, now)
	if err != nil {
		if isViolation(err, uniqueViolation) {
			return nil, domain.ErrDuplicateEmail
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return row.toDomain(), nil
}

// GetUserByID retrieves a user by ID.
func (s *Store) GetUserByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return s.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// GetUserByEmail retrieves a user by normalized email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (s *Store) getUser(ctx context.Context, query string, args ...any) (*domain.User, error) {
	var row userRow
	if err := sqlscan.Get(ctx, s.db, &row, query, args...); err != nil {
		if sqlscan.NotFound(err) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return row.toDomain(), nil
}

// MarkUserVerified sets the verified flag and returns the updated user.
func (s *Store) MarkUserVerified(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	query := `
		UPDATE users SET verified = TRUE, updated_at = $2
		WHERE id = $1
		RETURNING ` + userColumns

	var row userRow
	if err := sqlscan.Get(ctx, s.db, &row, query, id, s.now().UTC()); err != nil {
		if sqlscan.NotFound(err) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("mark user verified: %w", err)
	}
	return row.toDomain(), nil
}

// UpdatePassword replaces the stored password hash.
func (s *Store) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1`,
		id, passwordHash, s.now().UTC(),
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

// CreateToken stores a token.
func (s *Store) CreateToken(ctx context.Context, t *domain.Token) error {
	return insertToken(ctx, s.db, t)
}

// ReplaceTokens deletes the user's tokens and stores t in one transaction.
func (s *Store) ReplaceTokens(ctx context.Context, t *domain.Token) error {
	return dbtx.WithTx(ctx, s.db, func(ctx context.Context, tx dbtx.Querier) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM tokens WHERE user_id = $1`, t.UserID); err != nil {
			return fmt.Errorf("delete tokens: %w", err)
		}
		return insertToken(ctx, tx, t)
	})
}

func insertToken(ctx context.Context, q dbtx.Querier, t *domain.Token) error {
	query := `
		INSERT INTO tokens (id, user_id, token_hash, type, used, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := q.ExecContext(ctx, query,
		t.ID, t.UserID, t.TokenHash, string(t.Type), t.Used, t.ExpiresAt.UTC(), t.CreatedAt.UTC(),
	)
	if err != nil {
		if isViolation(err, foreignKeyViolation) {
			return domain.ErrUserNotFound
		}
		return fmt.Errorf("insert token: %w", err)
	}
	return nil
}

// ConsumeToken marks a consumable token as used in a single statement, so
// concurrent consumers of the same token see exactly one success.
func (s *Store) ConsumeToken(ctx context.Context, tokenHash string, typ domain.TokenType, now time.Time) (uuid.UUID, error) {
	query := `
		UPDATE tokens SET used = TRUE
		WHERE token_hash = $1 AND type = $2 AND used = FALSE AND expires_at > $3
		RETURNING user_id
	`
	var userID uuid.UUID
	err := s.db.QueryRowContext(ctx, query, tokenHash, string(typ), now.UTC()).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return uuid.Nil, domain.ErrInvalidOrExpiredToken
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("consume token: %w", err)
	}
	return userID, nil
}

// DeleteExpiredTokens removes tokens that expired before the given time.
func (s *Store) DeleteExpiredTokens(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tokens WHERE expires_at < $1`, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired tokens: %w", err)
	}
	return res.RowsAffected()
}

// Migrate applies the embedded migrations.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.useMigrations(); err != nil {
		return err
	}
	return goose.UpContext(ctx, s.db, "migrations")
}

// MigrationStatus prints the state of every embedded migration.
func (s *Store) MigrationStatus(ctx context.Context) error {
	if err := s.useMigrations(); err != nil {
		return err
	}
	return goose.StatusContext(ctx, s.db, "migrations")
}

func (s *Store) useMigrations() error {
	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	return nil
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

func isViolation(err error, code pq.ErrorCode) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == code
}
