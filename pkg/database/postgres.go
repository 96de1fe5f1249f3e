package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"clockreport.service/internal/config"
	_ "github.com/jackc/pgx/v5/stdlib" // Register pgx driver
)

// NewConnection creates and verifies a new database connection pool.
func NewConnection(cfg config.Config) (*sql.DB, error) {
	db, err := sql.Open("pgx", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	return verify(db)
}

// verify applies pool limits and pings the database. The report only reads,
// so a small pool is plenty.
func verify(db *sql.DB) (*sql.DB, error) {
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("error pinging database: %w", err)
	}
	return db, nil
}
