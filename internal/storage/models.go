package storage

import (
	"database/sql"
	"time"
)

// Session is a reception or scan run
type Session struct {
	ID        string        `json:"id"`
	Mode      string        `json:"mode"`
	Device    string        `json:"device"`
	Frequency float64       `json:"frequency"` // MHz, sweep start for scans
	Duration  time.Duration `json:"duration"`
	StartTime time.Time     `json:"startTime"`
	EndTime   *time.Time    `json:"endTime,omitempty"`
	Frames    int           `json:"frames"`
	Quality   *float64      `json:"quality,omitempty"`
	Config    *string       `json:"config,omitempty"`
}

// SessionSummary is recorded when a session ends
type SessionSummary struct {
	EndTime time.Time
	Frames  int
	Quality float64
}

// ChannelReading is the quality observed on one frequency
type ChannelReading struct {
	Frequency float64   `json:"frequency"`
	Quality   float64   `json:"quality"`
	Timestamp time.Time `json:"timestamp"`
}

type sessionData struct {
	ID         string
	Mode       string
	Device     string
	Frequency  float64
	DurationMS int64
	StartTime  time.Time
	EndTime    sql.NullTime
	Frames     int
	Quality    sql.NullFloat64
	Config     sql.NullString
}

type readingData struct {
	SessionID string
	Timestamp time.Time
	Frequency float64
	Quality   float64
}
