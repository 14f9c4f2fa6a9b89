package database

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// Sentinel errors for non-retriable conditions
var (
	ErrBookingNotFound     = errors.New("booking not found")
	ErrBookingLogNotFound  = errors.New("booking log not found")
	ErrAlreadyVerified     = errors.New("booking log already verified")
	ErrRevalidateNotFound  = errors.New("revalidate response not found")
	ErrCredentialNotFound  = errors.New("supplier credential not found")
	ErrAmbiguousCredential = errors.New("supplier has more than one active credential")
)

//go:embed schema.sql
var schema string

type DB struct {
	*sql.DB
}

func NewDB(dsn string) (*DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{db}, nil
}

func (db *DB) Close() error {
	return db.DB.Close()
}

// Migrate creates missing tables
func (db *DB) Migrate(ctx context.Context) error {
	for _, stmt := range strings.Split(schema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
