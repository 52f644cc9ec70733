package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/olivere/elastic/v7"
	"go.uber.org/zap"

	"github.com/iliyamo/churchfinder/internal/config"
	"github.com/iliyamo/churchfinder/internal/database"
	"github.com/iliyamo/churchfinder/internal/logger"
	"github.com/iliyamo/churchfinder/internal/search"
)

// bootstrap loads configuration and builds the logger every command needs.
func bootstrap() (config.Config, *zap.Logger, error) {
	if err := config.LoadDotEnv(envFile); err != nil {
		return config.Config{}, nil, fmt.Errorf("load %s: %w", envFile, err)
	}
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, err
	}
	log, err := logger.New(cfg.IsProd(), cfg.LogLevel)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, log, nil
}

func openDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	db, err := database.Open(ctx, database.Options{
		User: cfg.DBUser,
		Pass: cfg.DBPass,
		Host: cfg.DBHost,
		Port: cfg.DBPort,
		Name: cfg.DBName,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

// openIndex connects to Elasticsearch and makes sure the index exists.
// It returns nil when search is not configured or the cluster is down.
func openIndex(ctx context.Context, cfg config.Config, log *zap.Logger) *search.Index {
	if cfg.ElasticURL == "" {
		return nil
	}
	var (
		client *elastic.Client
		err    error
	)
	if client, err = search.NewClient(cfg.ElasticURL); err == nil {
		ix := search.New(client, cfg.ElasticIndex)
		if err = ix.EnsureIndex(ctx); err == nil {
			log.Info("search index ready", zap.String("index", cfg.ElasticIndex))
			return ix
		}
	}
	log.Warn("search index unavailable, using database search", zap.Error(err))
	return nil
}
