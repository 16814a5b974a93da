package journal

var (
	// every item the pipeline dropped, kept for manual replay
	failureTable = `CREATE TABLE IF NOT EXISTS failure (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		kind VARCHAR(32) NOT NULL,
		stage VARCHAR(16) NOT NULL,
		reason VARCHAR(32) NOT NULL,
		subscription VARCHAR(36) NOT NULL,
		txHash CHAR(64) NOT NULL,
		logIndex INTEGER NOT NULL,
		blockNumber INTEGER NOT NULL,
		error TEXT NOT NULL,
		intent TEXT,
		createdAt INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_failure_kind ON failure(kind);`

	failureColumns = " kind, stage, reason, subscription, txHash, logIndex, blockNumber, error, intent, createdAt "
)
