package reportstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"fileplacer/internal/config"
)

// Open builds the configured archive and wraps it in a CachedStore. The
// returned close func releases backend resources and is never nil.
func Open(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (Store, func() error, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	noop := func() error { return nil }

	var (
		origin  Store
		closeFn = noop
	)
	switch kind := strings.ToLower(strings.TrimSpace(cfg.Kind)); kind {
	case "", "file":
		fs, err := NewFileStore(cfg.Dir)
		if err != nil {
			return nil, noop, err
		}
		origin = fs
		logger.Info("report store: file", zap.String("dir", cfg.Dir))
	case "memory":
		origin = NewMemoryStore()
		logger.Info("report store: in-memory")
	case "s3":
		s3, err := NewS3Store(cfg.S3)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to initialize report s3 store: %w", err)
		}
		origin = s3
		logger.Info("report store: s3", zap.String("bucket", cfg.S3.Bucket), zap.String("endpoint", cfg.S3.Endpoint))
	case "postgres":
		dsn := strings.TrimSpace(cfg.PostgresDSN)
		if dsn == "" {
			return nil, noop, fmt.Errorf("postgres report store requires REPORT_PG_DSN")
		}
		db, err := sql.Open("pgx", dsn)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to open db: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, noop, fmt.Errorf("failed to reach db: %w", err)
		}
		origin = NewPostgresStore(db)
		closeFn = db.Close
		logger.Info("report store: postgres")
	default:
		return nil, noop, fmt.Errorf("unknown report store %q", cfg.Kind)
	}
	return NewCachedStore(origin, DefaultCacheEntries), closeFn, nil
}
