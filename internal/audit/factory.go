package audit

import (
	"context"
	"fmt"

	"github.com/spherical/doc-converter/internal/config"
	"github.com/spherical/doc-converter/internal/observability"
)

// Open builds the audit logger selected in cfg.
func Open(ctx context.Context, cfg config.AuditConfig, logger *observability.Logger) (*Logger, error) {
	var sink Sink
	switch cfg.Sink {
	case "", "none":
	case "sql":
		s, err := OpenSQL(ctx, cfg.Driver, cfg.DSN)
		if err != nil {
			return nil, err
		}
		sink = s
	case "redis":
		s, err := NewRedisSink(ctx, RedisConfig{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			Key:       cfg.Redis.Key,
			MaxEvents: cfg.MaxEvents,
		})
		if err != nil {
			return nil, err
		}
		sink = s
	default:
		return nil, fmt.Errorf("unknown audit sink: %s", cfg.Sink)
	}
	return NewLogger(logger, sink), nil
}
