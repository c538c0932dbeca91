package storage

import (
	_ "embed"
)

const (
	insertSessionSQL = `
INSERT INTO sessions (id,
                      mode,
                      device,
                      frequency,
                      duration_ms,
                      start_time,
                      config)
VALUES (?, ?, ?, ?, ?, ?, ?)`

	endSessionSQL = `
UPDATE sessions
SET end_time = ?,
    frames   = ?,
    quality  = ?
WHERE id = ?`

	selectSessionSQL = `
SELECT
    id,
    mode,
    device,
    frequency,
    duration_ms,
    start_time,
    end_time,
    frames,
    quality,
    config
FROM sessions
WHERE
    id = ?`

	selectSessionsSQL = `
SELECT
    id,
    mode,
    device,
    frequency,
    duration_ms,
    start_time,
    end_time,
    frames,
    quality,
    config
FROM sessions
ORDER BY start_time`

	insertScanResultSQL = `
INSERT INTO scan_results (session_id,
                          timestamp,
                          frequency,
                          quality)
VALUES (?, ?, ?, ?)`

	// the first sighting of a channel wins
	insertActiveChannelSQL = `
INSERT OR IGNORE INTO active_channels (session_id,
                                       frequency,
                                       quality,
                                       timestamp)
VALUES (?, ?, ?, ?)`

	selectActiveChannelsSQL = `
SELECT
    frequency,
    quality,
    timestamp
FROM active_channels
WHERE
    session_id = ?
ORDER BY quality DESC, frequency`

	initIndexesSQL = `
CREATE INDEX IF NOT EXISTS idx_scan_results_session ON scan_results (session_id, frequency);`
)

//go:embed schema.sql
var initSchemaSQL string
