// Package journal records the events the bot could not carry through, so
// an operator can find and replay them.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	logger "github.com/sirupsen/logrus"

	"github.com/sunshine-protocol/bounty-bot/agreement"
	"github.com/sunshine-protocol/bounty-bot/database"
)

const DefaultListLimit = 100

// Failure is one dropped item.
type Failure struct {
	ID             int64          `json:"id"`
	Kind           string         `json:"kind"`
	Stage          string         `json:"stage"`
	Reason         string         `json:"reason"`
	SubscriptionID string         `json:"subscription"`
	TxHash         ethcommon.Hash `json:"txHash"`
	LogIndex       uint           `json:"logIndex"`
	BlockNumber    uint64         `json:"blockNumber"`
	Error          string         `json:"error"`
	Intent         string         `json:"intent,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
}

type Journal struct {
	stmtCache *database.StmtCache
}

func NewJournal(db *sql.DB) (*Journal, error) {
	if _, err := db.Exec(failureTable); err != nil {
		return nil, err
	}
	return &Journal{stmtCache: database.NewStmtCache(db)}, nil
}

func (j *Journal) Close() {
	j.stmtCache.Clear()
}

// Record stores f. CreatedAt defaults to now.
func (j *Journal) Record(ctx context.Context, f *Failure) error {
	stmt, err := j.stmtCache.Prepare(ctx, `INSERT INTO failure (`+failureColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}

	createdAt := f.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	var intent sql.NullString
	if f.Intent != "" {
		intent = sql.NullString{String: f.Intent, Valid: true}
	}

	res, err := stmt.ExecContext(ctx,
		f.Kind, f.Stage, f.Reason, f.SubscriptionID,
		f.TxHash.Hex()[2:], f.LogIndex, f.BlockNumber,
		f.Error, intent, createdAt.UnixMilli(),
	)
	if err != nil {
		return err
	}
	if id, err := res.LastInsertId(); err == nil {
		f.ID = id
	}

	logger.WithFields(logger.Fields{
		"id":    f.ID,
		"kind":  f.Kind,
		"stage": f.Stage,
	}).Debug("failure journaled")
	return nil
}

// List returns the newest failures first. An empty kind lists every kind.
func (j *Journal) List(ctx context.Context, kind string, limit int) ([]*Failure, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	query := `SELECT id,` + failureColumns + `FROM failure WHERE (? = '' OR kind = ?) ORDER BY id DESC LIMIT ?`
	stmt, err := j.stmtCache.Prepare(ctx, query)
	if err != nil {
		return nil, err
	}

	rows, err := stmt.QueryContext(ctx, kind, kind, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var failures []*Failure
	for rows.Next() {
		var (
			f         Failure
			txHash    string
			intent    sql.NullString
			createdAt int64
		)
		err := rows.Scan(&f.ID, &f.Kind, &f.Stage, &f.Reason, &f.SubscriptionID,
			&txHash, &f.LogIndex, &f.BlockNumber, &f.Error, &intent, &createdAt)
		if err != nil {
			return nil, err
		}
		f.TxHash = ethcommon.HexToHash(txHash)
		f.Intent = intent.String
		f.CreatedAt = time.UnixMilli(createdAt)
		failures = append(failures, &f)
	}
	return failures, rows.Err()
}

// Count returns the number of failures, of one kind or of all when kind is
// empty.
func (j *Journal) Count(ctx context.Context, kind string) (int, error) {
	stmt, err := j.stmtCache.Prepare(ctx, `SELECT COUNT(*) FROM failure WHERE (? = '' OR kind = ?)`)
	if err != nil {
		return 0, err
	}

	var n int
	if err := stmt.QueryRowContext(ctx, kind, kind).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// EncodeIntent renders an intent for the journal.
func EncodeIntent(in agreement.MutationIntent) string {
	if in == nil {
		return ""
	}
	b, err := json.Marshal(struct {
		Name   string                   `json:"name"`
		Target agreement.CommentKey     `json:"target"`
		Intent agreement.MutationIntent `json:"intent"`
	}{in.Name(), in.Target(), in})
	if err != nil {
		return in.Name()
	}
	return string(b)
}
