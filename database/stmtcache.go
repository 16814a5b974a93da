package database

import (
	"context"
	"database/sql"
	"sync"
)

// StmtCache keeps one prepared statement per query string.
type StmtCache struct {
	db *sql.DB

	mu    sync.Mutex
	stmts map[string]*sql.Stmt
}

func NewStmtCache(db *sql.DB) *StmtCache {
	return &StmtCache{db: db, stmts: make(map[string]*sql.Stmt)}
}

func (sc *StmtCache) Prepare(ctx context.Context, query string) (*sql.Stmt, error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if stmt, ok := sc.stmts[query]; ok {
		return stmt, nil
	}
	stmt, err := sc.db.PrepareContext(ctx, query)
	if err != nil {
		return nil, err
	}
	sc.stmts[query] = stmt
	return stmt, nil
}

func (sc *StmtCache) MustPrepare(query string) *sql.Stmt {
	stmt, err := sc.Prepare(context.Background(), query)
	if err != nil {
		panic(err)
	}
	return stmt
}

// Len returns the number of cached statements.
func (sc *StmtCache) Len() int {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return len(sc.stmts)
}

// Clear closes and forgets every cached statement.
func (sc *StmtCache) Clear() {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	for query, stmt := range sc.stmts {
		_ = stmt.Close()
		delete(sc.stmts, query)
	}
}
