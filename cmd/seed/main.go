// Command seed loads tours from a JSON file into the database, or removes
// every tour.
//
//	seed -import -file tours.json
//	seed -delete
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/ploop3/Natours/internal/config"
	"github.com/ploop3/Natours/internal/domain"
	"github.com/ploop3/Natours/internal/store"
	"github.com/ploop3/Natours/internal/store/postgres"
	"github.com/ploop3/Natours/migrations"
	"github.com/ploop3/Natours/pkg/database"
	"github.com/ploop3/Natours/pkg/logger"
	"github.com/ploop3/Natours/pkg/slug"
)

func main() {
	var (
		doImport = flag.Bool("import", false, "insert the tours of -file")
		doDelete = flag.Bool("delete", false, "delete every tour")
		file     = flag.String("file", "tours.json", "JSON array of tours")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	log := logger.New("natours-seed", cfg.LogLevel)

	if err := run(log, cfg, *doImport, *doDelete, *file); err != nil {
		log.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(log *slog.Logger, cfg *config.Config, doImport, doDelete bool, file string) error {
	if doImport == doDelete {
		return errors.New("pass exactly one of -import or -delete")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, &cfg.Postgres, log)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer pool.Close()

	if err := database.RunMigrations(ctx, pool, migrations.FS, log); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	tours := postgres.New[domain.Tour](pool, "tours")

	if doDelete {
		n, err := deleteTours(ctx, tours)
		if err != nil {
			return err
		}
		log.Info("tours removed", slog.Int64("count", n))
		return nil
	}

	f, err := os.Open(file)
	if err != nil {
		return fmt.Errorf("open %s: %w", file, err)
	}
	defer f.Close()

	n, err := importTours(ctx, tours, f, time.Now().UTC())
	if err != nil {
		return err
	}
	log.Info("tours loaded", slog.Int("count", n), slog.String("file", file))
	return nil
}

// importTours inserts every tour of the JSON array read from r. Missing ids,
// slugs, creation times and rating figures are filled in.
func importTours(ctx context.Context, tours store.Collection[domain.Tour], r io.Reader, now time.Time) (int, error) {
	var docs []domain.Tour
	if err := json.NewDecoder(r).Decode(&docs); err != nil {
		return 0, fmt.Errorf("decode tours: %w", err)
	}

	for i := range docs {
		t := &docs[i]
		if t.ID == "" {
			t.ID = uuid.NewString()
		}
		if t.Slug == "" {
			t.Slug = slug.Generate(t.Name)
		}
		if t.CreatedAt.IsZero() {
			t.CreatedAt = now
		}
		if t.RatingsQuantity == 0 && t.RatingsAverage == 0 {
			t.RatingsAverage = domain.DefaultRatingsAverage
		}
		if err := tours.Insert(ctx, t); err != nil {
			return i, fmt.Errorf("insert tour %q: %w", t.Name, err)
		}
	}
	return len(docs), nil
}

func deleteTours(ctx context.Context, tours store.Collection[domain.Tour]) (int64, error) {
	n, err := tours.DeleteMany(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("delete tours: %w", err)
	}
	return n, nil
}
