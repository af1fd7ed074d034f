// Package repository selects and opens the credential store.
package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/tendant/simple-auth/internal/auth"
	"github.com/tendant/simple-auth/internal/repository/memory"
	"github.com/tendant/simple-auth/internal/repository/postgres"
	"github.com/tendant/simple-auth/internal/repository/sqlite"
)

// Store is a credential store plus its lifecycle.
type Store interface {
	auth.Store
	Migrate(ctx context.Context) error
	MigrationStatus(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

var (
	_ Store = (*postgres.Store)(nil)
	_ Store = (*sqlite.Store)(nil)
	_ Store = (*memory.Store)(nil)
)

// Open picks a store from the DSN scheme: postgres:// or postgresql://,
// sqlite://<path>, or memory://.
func Open(ctx context.Context, dsn string) (Store, error) {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return postgres.Open(ctx, dsn)
	case strings.HasPrefix(dsn, "sqlite://"):
		return sqlite.Open(ctx, strings.TrimPrefix(dsn, "sqlite://"))
	case strings.HasPrefix(dsn, "memory://"):
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unsupported DATABASE_URL scheme in %q", redact(dsn))
	}
}

// redact drops everything after the scheme so credentials never reach logs.
func redact(dsn string) string {
	if i := strings.Index(dsn, "://"); i >= 0 {
		return dsn[:i+3] + "..."
	}
	if len(dsn) > 8 {
		return dsn[:8] + "..."
	}
	return dsn
}
