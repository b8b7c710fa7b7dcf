package postgres

// SQL queries for the collector state table.

const (
	// queryTableExists checks that migrations created collector_state.
	queryTableExists = `
		SELECT EXISTS (
			SELECT FROM information_schema.tables
			WHERE table_name = 'collector_state'
		)
	`

	// queryGetState fetches the blob stored under a key.
	// No rows (sql.ErrNoRows) means the key was never written.
	queryGetState = `
		SELECT value
		FROM collector_state
		WHERE key = $1
	`

	// queryPutState upserts the blob for a key. Last writer wins.
	queryPutState = `
		INSERT INTO collector_state (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
	`
)
