package main

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ploop3/Natours/internal/domain"
	"github.com/ploop3/Natours/internal/query"
	"github.com/ploop3/Natours/internal/store"
	"github.com/ploop3/Natours/internal/store/memory"
	"github.com/ploop3/Natours/pkg/logger"
)

func TestImportTours(t *testing.T) {
	ctx := context.Background()
	tours := memory.New[domain.Tour](memory.WithUnique("name"))
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	in := `[
		{"name":"The Forest Hiker","duration":5,"max_group_size":25,"difficulty":"easy","price":397},
		{"id":"sea","name":"The Sea Explorer","duration":7,"difficulty":"medium","price":497,"ratings_average":4.8,"ratings_quantity":23}
	]`

	n, err := importTours(ctx, tours, strings.NewReader(in), now)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	hiker, err := tours.FindOne(ctx, query.Filter{query.Eq("name", "The Forest Hiker")})
	require.NoError(t, err)
	assert.NotEmpty(t, hiker.ID)
	assert.Equal(t, "the-forest-hiker", hiker.Slug)
	assert.Equal(t, now, hiker.CreatedAt)
	assert.Equal(t, domain.DefaultRatingsAverage, hiker.RatingsAverage)

	sea, err := tours.FindOne(ctx, query.Filter{query.Eq("id", "sea")})
	require.NoError(t, err)
	assert.Equal(t, 4.8, sea.RatingsAverage)
	assert.Equal(t, 23, sea.RatingsQuantity)
}

func TestImportTours_StopsOnConflict(t *testing.T) {
	tours := memory.New[domain.Tour](memory.WithUnique("name"))
	in := `[{"name":"Twin"},{"name":"Twin"}]`

	n, err := importTours(context.Background(), tours, strings.NewReader(in), time.Now())
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrConflict)
	assert.Equal(t, 1, n)
}

func TestImportTours_BadJSON(t *testing.T) {
	tours := memory.New[domain.Tour]()
	_, err := importTours(context.Background(), tours, strings.NewReader(`{"name":`), time.Now())
	assert.Error(t, err)
}

func TestDeleteTours(t *testing.T) {
	ctx := context.Background()
	tours := memory.New[domain.Tour]()
	_, err := importTours(ctx, tours, strings.NewReader(`[{"name":"a"},{"name":"b"}]`), time.Now())
	require.NoError(t, err)

	n, err := deleteTours(ctx, tours)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	count, err := tours.Count(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestRun_RequiresOneMode(t *testing.T) {
	assert.Error(t, run(logger.Discard(), nil, false, false, ""))
	assert.Error(t, run(logger.Discard(), nil, true, true, ""))
}
