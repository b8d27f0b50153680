package storage

import (
	"context"
	"errors"
	"strings"

	logx "offsched/pkg/logx"
)

// Store is the persistence API used by the scheduler.
type Store interface {
	AppendFiring(ctx context.Context, f Firing) error
	// Recent returns up to limit most recent firings, newest first.
	// An empty task matches every task.
	Recent(ctx context.Context, task string, limit int) ([]Firing, error)
	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if storage is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
