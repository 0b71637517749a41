package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/uptrace/bun"
)

// WithWriteTx runs fn in an explicit write transaction. Tables written by fn are
// published to the change notifier only after a successful commit.
func (db *DB) WithWriteTx(ctx context.Context, fn func(ctx context.Context, tx bun.Tx) error) error {
	if db == nil || db.W == nil {
		return fmt.Errorf("write db is not initialized")
	}
	changes := &changeSet{tables: make(map[string]struct{})}
	ctx = context.WithValue(ctx, changeSetKey{}, changes)
	err := db.W.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, tx)
	})
	if err != nil {
		return err
	}
	if db.notifier != nil {
		if tables := changes.list(); len(tables) > 0 {
			db.notifier.Publish(tables...)
		}
	}
	return nil
}

// WithReadTx runs fn in an explicit read transaction.
func (db *DB) WithReadTx(ctx context.Context, fn func(ctx context.Context, tx bun.Tx) error) error {
	if db == nil || db.R == nil {
		return fmt.Errorf("read db is not initialized")
	}
	return db.R.RunInTx(ctx, &sql.TxOptions{ReadOnly: true}, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, tx)
	})
}

type changeSetKey struct{}

type changeSet struct {
	mu     sync.Mutex
	tables map[string]struct{}
}

func (c *changeSet) add(table string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tables[table] = struct{}{}
}

func (c *changeSet) list() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.tables))
	for t := range c.tables {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

var writeStmtRe = regexp.MustCompile(`(?is)^\s*(?:INSERT(?:\s+OR\s+\w+)?\s+INTO|UPDATE(?:\s+OR\s+\w+)?|DELETE\s+FROM)\s+["` + "`" + `]?(\w+)`)

// writtenTable returns the table targeted by a DML statement, or "".
func writtenTable(query string) string {
	m := writeStmtRe.FindStringSubmatch(query)
	if len(m) < 2 {
		return ""
	}
	return strings.ToLower(m[1])
}

// changeHook records tables touched inside WithWriteTx.
type changeHook struct{}

func (changeHook) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (changeHook) AfterQuery(ctx context.Context, event *bun.QueryEvent) {
	if event.Err != nil {
		return
	}
	changes, ok := ctx.Value(changeSetKey{}).(*changeSet)
	if !ok {
		return
	}
	if table := writtenTable(event.Query); table != "" {
		changes.add(table)
	}
}
