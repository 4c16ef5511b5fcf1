package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ploop3/Natours/internal/domain"
	"github.com/ploop3/Natours/internal/search"
	apperrors "github.com/ploop3/Natours/pkg/errors"
)

type mockTourIndex struct {
	mock.Mock
}

func (m *mockTourIndex) Index(ctx context.Context, doc *search.Document) error {
	return m.Called(ctx, doc).Error(0)
}

func (m *mockTourIndex) BulkIndex(ctx context.Context, docs []search.Document) error {
	return m.Called(ctx, docs).Error(0)
}

func (m *mockTourIndex) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockTourIndex) Search(ctx context.Context, text string, limit int) ([]string, error) {
	args := m.Called(ctx, text, limit)
	ids, _ := args.Get(0).([]string)
	return ids, args.Error(1)
}

func searchNames(tours []domain.Tour) []string {
	names := make([]string, len(tours))
	for i, t := range tours {
		names[i] = t.Name
	}
	return names
}

func TestTourService_SearchFollowsWrites(t *testing.T) {
	e := newEnv(t)
	s := e.tourService()
	ctx := context.Background()

	forest, err := s.Create(ctx, &CreateTourInput{
		Name: "The Forest Hiker", Duration: 5, MaxGroupSize: 25, Difficulty: domain.DifficultyEasy,
		Price: 397, Summary: "Breathtaking hike through the forest", ImageCover: "tour-1-cover.jpg",
	})
	require.NoError(t, err)
	_, err = s.Create(ctx, &CreateTourInput{
		Name: "The Snow Adventurer", Duration: 4, MaxGroupSize: 10, Difficulty: domain.DifficultyDifficult,
		Price: 997, Summary: "Snow and a frozen forest", ImageCover: "tour-3-cover.jpg",
	})
	require.NoError(t, err)
	_, err = s.Create(ctx, &CreateTourInput{
		Name: "The Hidden Forest Trail", Duration: 3, MaxGroupSize: 5, Difficulty: domain.DifficultyEasy,
		Price: 120, Summary: "Invitation only", ImageCover: "x.jpg", SecretTour: true,
	})
	require.NoError(t, err)

	got, err := s.Search(ctx, "forest", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"The Forest Hiker", "The Snow Adventurer"}, searchNames(got))

	_, err = s.Update(ctx, forest.ID, &UpdateTourInput{Name: ptr("The Lake Wanderer"), Summary: ptr("Calm water")})
	require.NoError(t, err)
	got, err = s.Search(ctx, "lake", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"The Lake Wanderer"}, searchNames(got))

	require.NoError(t, s.Delete(ctx, forest.ID))
	got, err = s.Search(ctx, "lake", 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestTourService_SearchDropsToursMadeSecret(t *testing.T) {
	e := newEnv(t)
	s := e.tourService()
	ctx := context.Background()

	tour, err := s.Create(ctx, &CreateTourInput{
		Name: "The Sea Explorer", Duration: 7, MaxGroupSize: 15, Difficulty: domain.DifficultyMedium,
		Price: 497, Summary: "Exploring the coast", ImageCover: "x.jpg",
	})
	require.NoError(t, err)

	_, err = s.Update(ctx, tour.ID, &UpdateTourInput{SecretTour: ptr(true)})
	require.NoError(t, err)

	got, err := s.Search(ctx, "sea", 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestTourService_SearchRequiresText(t *testing.T) {
	e := newEnv(t)
	_, err := e.tourService().Search(context.Background(), "  ", 10)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestTourService_SearchSkipsStaleHits(t *testing.T) {
	e := newEnv(t)
	e.addTour(t, domain.Tour{ID: "t1", Name: "The Forest Hiker"})
	e.addTour(t, domain.Tour{ID: "t2", Name: "The Sea Explorer"})
	e.addTour(t, domain.Tour{ID: "t3", Name: "The Secret Cave", SecretTour: true})

	idx := new(mockTourIndex)
	idx.On("Search", mock.Anything, "explore", 5).Return([]string{"t2", "gone", "t3", "t1"}, nil)
	s := NewTourService(e.tours, e.reviews, e.users, nil, newTestLogger(), WithSearchIndex(idx))

	got, err := s.Search(context.Background(), "explore", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"The Sea Explorer", "The Forest Hiker"}, searchNames(got))
	idx.AssertExpectations(t)
}

func TestTourService_IndexFailureDoesNotFailWrite(t *testing.T) {
	e := newEnv(t)
	idx := new(mockTourIndex)
	idx.On("Index", mock.Anything, mock.Anything).Return(errors.New("cluster unavailable"))
	idx.On("Delete", mock.Anything, mock.Anything).Return(errors.New("cluster unavailable"))
	s := NewTourService(e.tours, e.reviews, e.users, nil, newTestLogger(), WithSearchIndex(idx))
	ctx := context.Background()

	tour, err := s.Create(ctx, &CreateTourInput{
		Name: "The Park Camper", Duration: 10, MaxGroupSize: 15, Difficulty: domain.DifficultyMedium,
		Price: 1497, Summary: "Nature", ImageCover: "x.jpg",
	})
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, tour.ID))
	idx.AssertExpectations(t)
}

func TestTourService_Reindex(t *testing.T) {
	e := newEnv(t)
	e.addTour(t, domain.Tour{ID: "t1", Name: "The Forest Hiker", Summary: "Hike"})
	e.addTour(t, domain.Tour{ID: "t2", Name: "The Sea Explorer", Summary: "Boat"})
	e.addTour(t, domain.Tour{ID: "t3", Name: "The Secret Cave", SecretTour: true})
	s := e.tourService()

	got, err := s.Search(context.Background(), "forest", 10)
	require.NoError(t, err)
	assert.Empty(t, got)

	n, err := s.Reindex(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err = s.Search(context.Background(), "forest", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"The Forest Hiker"}, searchNames(got))

	got, err = s.Search(context.Background(), "cave", 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}
