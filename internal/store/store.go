package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"booking-service/internal/apperror"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type Store struct {
	db *sqlx.DB
}

// Tx is a unit of work handed to store operations by the caller
type Tx interface {
	Commit() error
	Rollback() error
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// NewWithDB wraps an existing connection
func NewWithDB(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// BeginTx opens a read-committed transaction. Bookings read through it are
// row-locked until Commit or Rollback.
func (s *Store) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, apperror.Wrap(apperror.KindPersistence, "failed to begin transaction", err)
	}
	return tx, nil
}

// execer resolves the sqlx handle behind a caller-supplied transaction
func execer(tx Tx) (sqlx.ExtContext, error) {
	if tx == nil {
		return nil, apperror.New(apperror.KindPersistence, "missing transaction")
	}
	ext, ok := tx.(sqlx.ExtContext)
	if !ok {
		return nil, apperror.New(apperror.KindPersistence, "transaction is not bound to this store")
	}
	return ext, nil
}
