package storage

const (
	initSchemaSQL = `
CREATE TABLE IF NOT EXISTS sessions (
    id               INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id           TEXT    NOT NULL UNIQUE,
    start_time       INTEGER NOT NULL,
    device_type      TEXT    NOT NULL,
    device_id        TEXT    NOT NULL,
    center_frequency REAL    NOT NULL,
    sample_rate      REAL    NOT NULL,
    channels         INTEGER NOT NULL,
    average          INTEGER NOT NULL,
    config           TEXT
);

CREATE TABLE IF NOT EXISTS spectra (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id INTEGER NOT NULL REFERENCES sessions (id),
    timestamp  INTEGER NOT NULL,
    channels   INTEGER NOT NULL,
    power      BLOB    NOT NULL
);`

	// Created on close so bulk inserts don't pay for index maintenance.
	initIndexesSQL = `
CREATE INDEX IF NOT EXISTS idx_spectra_session_timestamp ON spectra (session_id, timestamp);`

	insertSessionSQL = `
INSERT INTO sessions (run_id,
                      start_time,
                      device_type,
                      device_id,
                      center_frequency,
                      sample_rate,
                      channels,
                      average,
                      config)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	selectSessionSQL = `
SELECT 
    id, 
    run_id,
    start_time, 
    device_type, 
    device_id, 
    center_frequency,
    sample_rate,
    channels,
    average,
    config 
FROM sessions 
WHERE 
    id = ?`

	selectSessionsSQL = `
SELECT 
    id, 
    run_id,
    start_time, 
    device_type, 
    device_id, 
    center_frequency,
    sample_rate,
    channels,
    average,
    config 
FROM sessions
ORDER BY start_time, id`

	insertSpectrumSQL = `
INSERT INTO spectra (session_id,
                     timestamp,
                     channels,
                     power)
VALUES `

	selectSpectraSQL = `
SELECT 
    id,
    timestamp, 
    channels,
    power
FROM spectra
WHERE 
    session_id = ?
    AND timestamp BETWEEN ? AND ?
ORDER BY timestamp, id`
)
