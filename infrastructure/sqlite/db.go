package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	_ "github.com/mattn/go-sqlite3"
)

// ChangeNotifier receives the tables touched by each committed write transaction.
type ChangeNotifier interface {
	Publish(tables ...string)
}

// DB pairs a single-connection writer with a pooled read-only handle.
// Writes go through WithWriteTx so committed table changes reach the notifier.
type DB struct {
	WriteSQL *sql.DB
	ReadSQL  *sql.DB
	W        *bun.DB
	R        *bun.DB

	notifier ChangeNotifier
}

const (
	busyTimeoutMillis = "5000"
	readPoolSize      = 8
)

func dsn(path string, extra map[string]string) string {
	q := url.Values{}
	q.Set("_foreign_keys", "on")
	q.Set("_busy_timeout", busyTimeoutMillis)
	for k, v := range extra {
		q.Set(k, v)
	}
	return "file:" + path + "?" + q.Encode()
}

// OpenDB opens path, creating the file if needed. Writers take an immediate
// lock on begin so concurrent receipts and batches queue instead of deadlocking.
func OpenDB(path string) (*DB, error) {
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}

	wsql, err := sql.Open("sqlite3", dsn(path, map[string]string{"_txlock": "immediate"}))
	if err != nil {
		return nil, fmt.Errorf("open write db: %w", err)
	}
	wsql.SetMaxOpenConns(1)
	wsql.SetConnMaxLifetime(15 * time.Minute)
	if err := wsql.Ping(); err != nil {
		wsql.Close()
		return nil, fmt.Errorf("ping write db: %w", err)
	}

	rsql, err := openReader(path)
	if err != nil {
		wsql.Close()
		return nil, err
	}

	db := &DB{
		WriteSQL: wsql,
		ReadSQL:  rsql,
		W:        bun.NewDB(wsql, sqlitedialect.New()),
		R:        bun.NewDB(rsql, sqlitedialect.New()),
	}
	db.W.AddQueryHook(changeHook{})
	return db, nil
}

// openReader prefers a read-only file handle and falls back to a query_only
// read-write one where the platform refuses mode=ro.
func openReader(path string) (*sql.DB, error) {
	rsql, err := sql.Open("sqlite3", dsn(path, map[string]string{"mode": "ro", "_query_only": "1"}))
	if err != nil {
		return nil, fmt.Errorf("open read db: %w", err)
	}
	if err := rsql.Ping(); err != nil && strings.Contains(err.Error(), "unable to open database file") {
		rsql.Close()
		if rsql, err = sql.Open("sqlite3", dsn(path, map[string]string{"_query_only": "1"})); err != nil {
			return nil, fmt.Errorf("open fallback read db: %w", err)
		}
	}
	rsql.SetMaxOpenConns(readPoolSize)
	rsql.SetConnMaxIdleTime(5 * time.Minute)
	rsql.SetConnMaxLifetime(15 * time.Minute)

	if _, err := rsql.Exec("PRAGMA query_only = ON"); err != nil {
		rsql.Close()
		return nil, fmt.Errorf("enable read query_only: %w", err)
	}
	return rsql, nil
}

// SetChangeNotifier routes committed table changes to n. Call before serving traffic.
func (db *DB) SetChangeNotifier(n ChangeNotifier) {
	db.notifier = n
}

func (db *DB) Close() error {
	if db == nil {
		return nil
	}
	var errs []error
	if db.W != nil {
		errs = append(errs, db.W.Close())
	}
	if db.R != nil {
		errs = append(errs, db.R.Close())
	}
	return errors.Join(errs...)
}
