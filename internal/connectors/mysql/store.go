package mysql

import (
	"context"
	"database/sql"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"go-vboa-hmi-api/internal/config"
)

// Store wraps read-only MySQL access to the EBOA alert tables.
type Store struct {
	db                *sql.DB
	queryTimeout      time.Duration
	excludeSignatures []string
}

// NewStore creates a MySQL-backed store.
func NewStore(cfg config.Config) (*Store, error) {
	db, err := sql.Open("mysql", cfg.MySQLDSN())
	if err != nil {
		return nil, err
	}

	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DBConnTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	exclude := make([]string, 0, len(cfg.AlertExcludeSignatures))
	for _, s := range cfg.AlertExcludeSignatures {
		if s = strings.TrimSpace(s); s != "" {
			exclude = append(exclude, s)
		}
	}

	return &Store{
		db:                db,
		queryTimeout:      cfg.DBQueryTimeout,
		excludeSignatures: exclude,
	}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// ExcludedSignatures lists the DIM signatures whose source alerts are hidden.
func (s *Store) ExcludedSignatures() []string {
	out := make([]string, len(s.excludeSignatures))
	copy(out, s.excludeSignatures)
	return out
}

func (s *Store) timeout() time.Duration {
	if s.queryTimeout <= 0 {
		return 10 * time.Second
	}
	return s.queryTimeout
}
