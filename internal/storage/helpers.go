package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

func closeWithError(cl interface{ Close() error }, err *error) {
	if cErr := cl.Close(); cErr != nil && *err == nil {
		*err = cErr
	}
}

func rollbackWithError(rb interface{ Rollback() error }, err *error) {
	if cErr := rb.Rollback(); cErr != nil && !errors.Is(cErr, sql.ErrTxDone) && *err == nil {
		*err = cErr
	}
}

func toNullString(config any) (sql.NullString, error) {
	var data sql.NullString
	if config == nil {
		return data, nil
	}

	switch v := config.(type) {
	case string:
		data.String = v

	case []byte:
		data.String = string(v)

	default:
		p, err := json.Marshal(config)
		if err != nil {
			return data, fmt.Errorf("marshaling config: %w", err)
		}
		data.String = string(p)
	}

	data.Valid = true
	return data, nil
}

func toUnixNano(t time.Time) int64 {
	return t.UTC().UnixNano()
}

func fromUnixNano(ns int64) time.Time {
	return time.Unix(0, ns).UTC()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*Session, error) {
	var sess Session
	var startTime int64
	var config sql.NullString

	err := row.Scan(
		&sess.ID,
		&sess.RunID,
		&startTime,
		&sess.DeviceType,
		&sess.DeviceID,
		&sess.CenterFrequency,
		&sess.SampleRate,
		&sess.Channels,
		&sess.Average,
		&config,
	)
	if err != nil {
		return nil, err
	}

	sess.StartTime = fromUnixNano(startTime)
	if config.Valid {
		sess.Config = &config.String
	}
	return &sess, nil
}
