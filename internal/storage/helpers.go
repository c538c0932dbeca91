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

// toConfigData accepts a string, []byte or any JSON serializable value
func toConfigData(config any) (sql.NullString, error) {
	var configData sql.NullString

	switch c := config.(type) {
	case nil:
	case string:
		configData.Valid = true
		configData.String = c

	case []byte:
		configData.Valid = true
		configData.String = string(c)

	default:
		p, err := json.Marshal(c)
		if err != nil {
			return configData, fmt.Errorf("marshaling config: %w", err)
		}

		configData.Valid = true
		configData.String = string(p)
	}

	return configData, nil
}

func toSessionData(s *Session) *sessionData {
	data := sessionData{
		ID:         s.ID,
		Mode:       s.Mode,
		Device:     s.Device,
		Frequency:  s.Frequency,
		DurationMS: s.Duration.Milliseconds(),
		StartTime:  s.StartTime.UTC(),
		Frames:     s.Frames,
	}

	if data.StartTime.IsZero() {
		data.StartTime = time.Now().UTC()
	}

	return &data
}

func fromSessionData(data *sessionData) *Session {
	s := Session{
		ID:        data.ID,
		Mode:      data.Mode,
		Device:    data.Device,
		Frequency: data.Frequency,
		Duration:  time.Duration(data.DurationMS) * time.Millisecond,
		StartTime: data.StartTime,
		Frames:    data.Frames,
	}

	if data.EndTime.Valid {
		s.EndTime = &data.EndTime.Time
	}
	if data.Quality.Valid {
		s.Quality = &data.Quality.Float64
	}
	if data.Config.Valid {
		s.Config = &data.Config.String
	}

	return &s
}

func toReadingData(sessionID string, r ChannelReading) *readingData {
	ts := r.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	return &readingData{
		SessionID: sessionID,
		Timestamp: ts.UTC(),
		Frequency: r.Frequency,
		Quality:   r.Quality,
	}
}
