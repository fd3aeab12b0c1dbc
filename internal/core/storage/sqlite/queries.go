package sqlite

// SQL statements used by the adapter. The aggregated_stats period key
// encodes the granularity as a prefix, so every aggregate query filters
// with a prefix LIKE; keys are zero-padded and therefore sort
// chronologically within one granularity.
const (
	queryInsertEvent = `
		INSERT INTO raw_events (event_type, timestamp, details)
		VALUES (?, ?, ?)
	`

	queryCountsSinceGrouped = `
		SELECT event_type, COUNT(*)
		FROM raw_events
		WHERE timestamp >= ?
		GROUP BY event_type
	`

	queryCountsSinceSummed = `
		SELECT
			COALESCE(SUM(CASE WHEN event_type = 'keyboard' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN event_type = 'mouse' THEN 1 ELSE 0 END), 0)
		FROM raw_events
		WHERE timestamp >= ?
	`

	queryTotalCounts = `
		SELECT
			COALESCE(SUM(CASE WHEN event_type = 'keyboard' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN event_type = 'mouse' THEN 1 ELSE 0 END), 0)
		FROM raw_events
	`

	queryEventsSince = `
		SELECT id, timestamp, event_type, COALESCE(details, '')
		FROM raw_events
		WHERE timestamp >= ?
		ORDER BY timestamp, id
	`

	queryPruneEvents = `DELETE FROM raw_events WHERE timestamp < ?`

	queryDeleteBucketsInHorizon = `
		DELETE FROM aggregated_stats
		WHERE time_period LIKE ? || '%' AND time_period >= ?
	`

	queryUpsertBucket = `
		INSERT INTO aggregated_stats (time_period, keyboard_count, mouse_count, score)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (time_period) DO UPDATE SET
			keyboard_count = excluded.keyboard_count,
			mouse_count    = excluded.mouse_count,
			score          = excluded.score
	`

	queryBucketsNewestFirst = `
		SELECT time_period, keyboard_count, mouse_count, score
		FROM aggregated_stats
		WHERE time_period LIKE ? || '%'
		ORDER BY time_period DESC
		LIMIT ?
	`

	queryBucketsOldestFirst = `
		SELECT time_period, keyboard_count, mouse_count, score
		FROM aggregated_stats
		WHERE time_period LIKE ? || '%'
		ORDER BY time_period ASC
		LIMIT ?
	`

	queryAddTimer    = `INSERT INTO timers (duration, created_at) VALUES (?, ?)`
	queryListTimers  = `SELECT id, duration, created_at FROM timers ORDER BY created_at DESC, id DESC`
	queryDeleteTimer = `DELETE FROM timers WHERE id = ?`
)
