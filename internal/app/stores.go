package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ploop3/Natours/internal/config"
	"github.com/ploop3/Natours/internal/domain"
	"github.com/ploop3/Natours/internal/store"
	"github.com/ploop3/Natours/internal/store/memory"
	"github.com/ploop3/Natours/internal/store/postgres"
	"github.com/ploop3/Natours/migrations"
	"github.com/ploop3/Natours/pkg/database"
	"github.com/ploop3/Natours/pkg/health"
)

type stores struct {
	users    store.Collection[domain.User]
	tours    store.Collection[domain.Tour]
	reviews  store.Collection[domain.Review]
	bookings store.Collection[domain.Booking]
}

func (a *App) openStores(ctx context.Context, h *health.Handler) (*stores, error) {
	if a.cfg.StoreDriver == config.StoreMemory {
		a.logger.Warn("using in-memory store, data is lost on restart")
		return &stores{
			users:    memory.New[domain.User](memory.WithUnique("email")),
			tours:    memory.New[domain.Tour](memory.WithUnique("name")),
			reviews:  memory.New[domain.Review](memory.WithUnique("tour_id", "user_id")),
			bookings: memory.New[domain.Booking](memory.WithUnique("session_id")),
		}, nil
	}

	pgCfg := a.cfg.Postgres
	pool, err := database.NewPostgresPool(ctx, &pgCfg, a.logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	a.pool = pool
	a.logger.Info("connected to PostgreSQL",
		slog.String("host", pgCfg.Host),
		slog.Int("port", pgCfg.Port),
		slog.String("database", pgCfg.DBName),
	)
	database.RegisterPoolMetrics(pool, serviceName)

	if err := database.RunMigrations(ctx, pool, migrations.FS, a.logger); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	a.logger.Info("database migrations completed")

	if a.cfg.SlowQueryThreshold > 0 {
		database.SetSlowQueryLogging(a.cfg.SlowQueryThreshold, a.logger)
	}

	h.RegisterCritical("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})

	// Uniqueness is enforced by the indexes created in the migrations.
	return &stores{
		users:    postgres.New[domain.User](pool, "users"),
		tours:    postgres.New[domain.Tour](pool, "tours"),
		reviews:  postgres.New[domain.Review](pool, "reviews"),
		bookings: postgres.New[domain.Booking](pool, "bookings"),
	}, nil
}
