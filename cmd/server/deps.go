package main

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/warp/time-tracking/cache"
	"github.com/warp/time-tracking/clock"
	"github.com/warp/time-tracking/config"
	"github.com/warp/time-tracking/store/postgres"
	"github.com/warp/time-tracking/store/sqlite"
	"github.com/warp/time-tracking/tracking"
	"github.com/warp/time-tracking/tracking/store"
)

// openStore connects the configured database. The returned func releases it.
func openStore(ctx context.Context, cfg *config.Config, log *logrus.Entry) (tracking.TxStore, func(), error) {
	log = log.WithField("driver", cfg.Database.Driver)

	switch cfg.Database.Driver {
	case config.DriverSQLite:
		s, err := sqlite.New(cfg.Database.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite: %w", err)
		}
		log.WithField("path", cfg.Database.URL).Info("store ready")
		return s, func() {
			if err := s.Close(); err != nil {
				log.WithError(err).Warn("closing store")
			}
		}, nil

	case config.DriverPostgres:
		s, err := postgres.New(ctx, postgres.DefaultConfig(cfg.Database.URL))
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		log.Info("store ready")
		return s, s.Close, nil

	case config.DriverMemory:
		log.Warn("using in-memory store, data is lost on exit")
		return store.NewMemory(), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
}

// openCache connects Redis when configured and falls back to process memory.
func openCache(ctx context.Context, cfg *config.Config, clk clock.Clock, log *logrus.Entry) (cache.Cache, func(), error) {
	if !cfg.Redis.Enabled() {
		log.Info("using in-process statistics cache")
		return cache.NewMemory(clk), func() {}, nil
	}

	rc := cache.DefaultRedisConfig(cfg.Redis.Addr)
	rc.Password = cfg.Redis.Password
	rc.DB = cfg.Redis.DB
	r, err := cache.NewRedis(ctx, rc)
	if err != nil {
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}
	log.WithField("addr", cfg.Redis.Addr).Info("redis cache ready")
	return r, func() {
		if err := r.Close(); err != nil {
			log.WithError(err).Warn("closing redis")
		}
	}, nil
}
