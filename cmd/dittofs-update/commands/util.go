package commands

import (
	"fmt"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/marmos91/dittofs/internal/logger"
	"github.com/marmos91/dittofs/pkg/config"
	updatebadger "github.com/marmos91/dittofs/pkg/updateengine/store/badger"
)

// InitLogger initializes the structured logger from configuration.
func InitLogger(cfg *config.Config) error {
	loggerCfg := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}
	if err := logger.Init(loggerCfg); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// realClock is the production updateengine.Clock. time.Now carries a
// monotonic reading internally, so MonotonicNow's Sub arithmetic is
// unaffected by wall-clock adjustments as long as callers never round-trip
// the value through formatting.
type realClock struct{}

func (realClock) WallNow() time.Time      { return time.Now() }
func (realClock) MonotonicNow() time.Time { return time.Now() }

// openStores opens the normal and powerwash-safe BadgerDB instances from
// the configured paths. The returned close function closes both.
func openStores(cfg *config.Config) (store, powerwash *updatebadger.Store, cleanup func(), err error) {
	opts := badgerdb.DefaultOptions(cfg.Store.Path).
		WithLogger(nil).
		WithValueLogFileSize(cfg.Store.ValueLogFileSize.Int64())
	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to open update-engine database: %w", err)
	}

	pwOpts := badgerdb.DefaultOptions(cfg.Store.PowerwashSafePath).
		WithLogger(nil).
		WithValueLogFileSize(cfg.Store.ValueLogFileSize.Int64())
	pwDB, err := badgerdb.Open(pwOpts)
	if err != nil {
		_ = db.Close()
		return nil, nil, nil, fmt.Errorf("failed to open powerwash-safe update-engine database: %w", err)
	}

	return updatebadger.New(db), updatebadger.New(pwDB), func() {
		_ = pwDB.Close()
		_ = db.Close()
	}, nil
}
