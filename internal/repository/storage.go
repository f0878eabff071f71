package repository

import (
	"context"
	"fmt"

	"github.com/AlekseyZapadovnikov/msg-stats/conf"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBPool описывает минимальный интерфейс пула подключений к PostgreSQL.
type DBPool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Ping(ctx context.Context) error
	Close()
}

// Storage инкапсулирует пул подключений и предоставляет его отчётам.
type Storage struct {
	pool DBPool
}

// NewStorage создаёт пул подключений к PostgreSQL и проверяет соединение.
func NewStorage(ctx context.Context, cfg *conf.DbConf) (*Storage, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.ConnString())
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}
	if cfg.TimeZone != "" {
		poolCfg.ConnConfig.RuntimeParams["timezone"] = cfg.TimeZone
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Storage{pool: pool}, nil
}

// NewStorageWithPool оборачивает готовый пул, например pgxmock в тестах.
func NewStorageWithPool(pool DBPool) *Storage {
	return &Storage{pool: pool}
}

// Ping проверяет доступность базы.
func (s *Storage) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	return nil
}

// Close закрывает пул подключений, когда он больше не нужен.
func (s *Storage) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}
