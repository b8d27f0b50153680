package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "file": JSON Lines file, no external dependencies
//   - "sqlite": SQLite database file
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string        `json:"driver"`
	Path        string        `json:"path"`
	BusyTimeout time.Duration `json:"busy_timeout"` // sqlite only; 0 means default
	KeepLast    int           `json:"keep_last"`    // sqlite only; 0 means 10000
}

// Firing records one invocation attempt of a scheduled task.
// Keep it compact and schema-stable.
type Firing struct {
	At        time.Time `json:"at"`
	Task      string    `json:"task"`
	Schedule  string    `json:"schedule"`
	Immediate bool      `json:"immediate,omitempty"`
	OK        bool      `json:"ok"`
	Error     string    `json:"error,omitempty"`
	TookMS    int64     `json:"took_ms"`
}
