package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "file": dependency-free file backend (jsonl + snapshot rewrite)
//   - "sqlite": SQLite database file (optional build tag)
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// PostRecord is one relayed track.
// Keep it compact and schema-stable.
type PostRecord struct {
	At        time.Time `json:"at"`
	Seq       int       `json:"seq"`      // originating message id in the owner chat
	FileID    string    `json:"file_id"`  // Telegram file id of the audio
	MessageID int       `json:"msg_id"`   // assigned channel message id
	Predicted int       `json:"predicted"`
	Corrected bool      `json:"corrected"` // caption edit was issued
}

// PostStats summarizes history since a point in time.
type PostStats struct {
	Total     int
	Corrected int
}
