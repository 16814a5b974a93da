package offchain

import (
	"context"
	"database/sql"

	"github.com/sunshine-protocol/bounty-bot/agreement"
	"github.com/sunshine-protocol/bounty-bot/database"
)

const blockTable = `
CREATE TABLE IF NOT EXISTS offchain_block (
	address CHAR(64) PRIMARY KEY,
	data BLOB NOT NULL,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
`

// SQLiteStore persists blocks in the bot's sqlite file.
type SQLiteStore struct {
	stmtCache *database.StmtCache
}

func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if _, err := db.Exec(blockTable); err != nil {
		return nil, err
	}
	return &SQLiteStore{stmtCache: database.NewStmtCache(db)}, nil
}

func (s *SQLiteStore) Close() {
	s.stmtCache.Clear()
}

func (s *SQLiteStore) Get(ctx context.Context, addr agreement.ContentAddress) ([]byte, error) {
	stmt, err := s.stmtCache.Prepare(ctx, `SELECT data FROM offchain_block WHERE address = ?`)
	if err != nil {
		return nil, err
	}

	var block []byte
	if err := stmt.QueryRowContext(ctx, addr.Hex()[2:]).Scan(&block); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrBlockNotFound
		}
		return nil, err
	}
	return block, nil
}

func (s *SQLiteStore) Put(ctx context.Context, addr agreement.ContentAddress, block []byte) error {
	stmt, err := s.stmtCache.Prepare(ctx, `INSERT OR IGNORE INTO offchain_block (address, data) VALUES (?, ?)`)
	if err != nil {
		return err
	}
	_, err = stmt.ExecContext(ctx, addr.Hex()[2:], block)
	return err
}
