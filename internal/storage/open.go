package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	logx "trackrelay/pkg/logx"
)

// Store is the minimal history API used by the dispatcher and /stats.
type Store interface {
	AppendPost(ctx context.Context, r PostRecord) error
	RecentPosts(ctx context.Context, n int) ([]PostRecord, error)
	Stats(ctx context.Context, since time.Time) (PostStats, error)
	PruneBefore(ctx context.Context, cutoff time.Time) (removed int, err error)
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
