package store

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/BaSui01/filmforge/internal/metrics"
)

// dbLabel is the database label on the pool and query metrics.
const dbLabel = "settings"

// PoolConfig tunes the settings database connection pool.
type PoolConfig struct {
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
}

// DefaultPoolConfig returns limits sized for a single service instance.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxIdleConns:    10,
		MaxOpenConns:    50,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 10 * time.Minute,
	}
}

// TunePool applies the pool limits to the underlying connection pool.
func (s *Store) TunePool(cfg PoolConfig) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("settings database handle: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	s.logger.Info("settings database pool tuned",
		zap.Int("max_idle_conns", cfg.MaxIdleConns),
		zap.Int("max_open_conns", cfg.MaxOpenConns),
		zap.Duration("conn_max_lifetime", cfg.ConnMaxLifetime))
	return nil
}

// ReportPoolStats publishes pool gauges on the given interval until ctx is
// cancelled. Run it in its own goroutine.
func (s *Store) ReportPoolStats(ctx context.Context, interval time.Duration, collector *metrics.Collector) {
	sqlDB, err := s.db.DB()
	if err != nil {
		s.logger.Warn("settings database handle unavailable, pool stats disabled", zap.Error(err))
		return
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := sqlDB.Stats()
			collector.RecordDBConnections(dbLabel, stats.OpenConnections, stats.Idle)
		}
	}
}

const queryStartKey = "filmforge:query_start"

// InstrumentQueries registers callbacks that time every statement against
// the settings store and feed the query duration histogram.
func (s *Store) InstrumentQueries(collector *metrics.Collector) error {
	before := func(tx *gorm.DB) {
		tx.InstanceSet(queryStartKey, time.Now())
	}
	after := func(operation string) func(*gorm.DB) {
		return func(tx *gorm.DB) {
			v, ok := tx.InstanceGet(queryStartKey)
			if !ok {
				return
			}
			start, ok := v.(time.Time)
			if !ok {
				return
			}
			collector.RecordDBQuery(dbLabel, operation, time.Since(start))
		}
	}

	// gorm's callback types are unexported; Register is all we need from them.
	type registerer interface {
		Register(name string, fn func(*gorm.DB)) error
	}

	cb := s.db.Callback()
	hooks := []struct {
		before, after registerer
		operation     string
	}{
		{cb.Query().Before("gorm:query"), cb.Query().After("gorm:query"), "query"},
		{cb.Create().Before("gorm:create"), cb.Create().After("gorm:create"), "create"},
		{cb.Update().Before("gorm:update"), cb.Update().After("gorm:update"), "update"},
		{cb.Delete().Before("gorm:delete"), cb.Delete().After("gorm:delete"), "delete"},
	}
	for _, h := range hooks {
		name := "filmforge:metrics_" + h.operation
		if err := h.before.Register(name+"_before", before); err != nil {
			return fmt.Errorf("register %s callback: %w", h.operation, err)
		}
		if err := h.after.Register(name+"_after", after(h.operation)); err != nil {
			return fmt.Errorf("register %s callback: %w", h.operation, err)
		}
	}
	return nil
}
