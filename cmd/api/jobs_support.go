package main

import (
	"context"
	"log/slog"

	"github.com/yourusername/fishcare-api/internal/config"
	"github.com/yourusername/fishcare-api/internal/infra"
	"github.com/yourusername/fishcare-api/internal/jobs"
)

func setupJobs(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*jobs.Manager, error) {
	redisClient, err := infra.NewRedisClient(ctx, cfg.QueueRedisURL)
	if err != nil {
		return nil, err
	}

	ttl := cfg.ActivityTTL
	if ttl < 0 {
		ttl = 0
	}
	store := jobs.NewStore(redisClient, ttl)
	manager, err := jobs.NewManager(cfg, store, logger.With("component", "jobs"))
	if err != nil {
		_ = redisClient.Close()
		return nil, err
	}
	return manager, nil
}
