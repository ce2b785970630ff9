// shared/postgres/client.go
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// Options holds connection and pool settings.
type Options struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DSN renders the lib/pq key/value connection string.
func (o Options) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		o.Host, o.Port, o.User, o.Password, o.DBName, o.SSLMode)
}

// Open connects, applies pool settings and pings.
func Open(opts Options) (*sql.DB, error) {
	db, err := sql.Open("postgres", opts.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetMaxIdleConns(opts.MaxIdleConns)
	db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	db.SetConnMaxIdleTime(opts.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database %s:%d/%s: %w", opts.Host, opts.Port, opts.DBName, err)
	}

	log.Printf("INFO: Connected to PostgreSQL %s:%d/%s (MaxOpen=%d, MaxIdle=%d)",
		opts.Host, opts.Port, opts.DBName, opts.MaxOpenConns, opts.MaxIdleConns)
	return db, nil
}
