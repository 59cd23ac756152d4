package itinerary

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mjRam27/Explorix/app/observability/metrics"
	"github.com/mjRam27/Explorix/internal/types"
)

// MockItineraryRepository is a mock implementation of Repository
type MockItineraryRepository struct {
	mock.Mock
}

func (m *MockItineraryRepository) SaveItinerary(ctx context.Context, itinerary *types.Itinerary) (uuid.UUID, error) {
	args := m.Called(ctx, itinerary)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func (m *MockItineraryRepository) GetItinerary(ctx context.Context, id, userID uuid.UUID) (*types.Itinerary, error) {
	args := m.Called(ctx, id, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Itinerary), args.Error(1)
}

func (m *MockItineraryRepository) GetItineraries(ctx context.Context, userID uuid.UUID) ([]types.Itinerary, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.Itinerary), args.Error(1)
}

// MockPOIRepository is a mock implementation of poi.Repository
type MockPOIRepository struct {
	mock.Mock
}

func (m *MockPOIRepository) SearchByText(ctx context.Context, keywords string, limit int) ([]types.Place, error) {
	args := m.Called(ctx, keywords, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.Place), args.Error(1)
}

func (m *MockPOIRepository) SearchByCity(ctx context.Context, city string, limit int) ([]types.Place, error) {
	args := m.Called(ctx, city, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.Place), args.Error(1)
}

func (m *MockPOIRepository) SearchNear(ctx context.Context, lat, lng, radiusKm float64, limit int) ([]types.Place, error) {
	args := m.Called(ctx, lat, lng, radiusKm, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.Place), args.Error(1)
}

func (m *MockPOIRepository) SearchByCategoryAndRegion(ctx context.Context, keywords, region string, limit int) ([]types.Place, error) {
	args := m.Called(ctx, keywords, region, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.Place), args.Error(1)
}

func (m *MockPOIRepository) GetPlacesByIDs(ctx context.Context, ids []int64) (map[int64]types.Place, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[int64]types.Place), args.Error(1)
}

func setupItineraryServiceTest() (*ServiceImpl, *MockItineraryRepository, *MockPOIRepository) {
	metrics.InitAppMetrics()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := new(MockItineraryRepository)
	poiRepo := new(MockPOIRepository)
	service := NewService(repo, poiRepo, 30, logger)
	return service, repo, poiRepo
}

func TestItineraryService_SaveFromText(t *testing.T) {
	service, repo, poiRepo := setupItineraryServiceTest()
	ctx := context.Background()
	userID := uuid.New()

	t.Run("success", func(t *testing.T) {
		savedID := uuid.New()
		poiRepo.On("SearchByCity", mock.Anything, "Paris", 30).Return(parisCandidates(), nil).Once()
		repo.On("SaveItinerary", mock.Anything, mock.MatchedBy(func(it *types.Itinerary) bool {
			return it.UserID == userID &&
				it.Destination == "Paris" &&
				it.Title == "Paris Trip" &&
				it.AIGenerated &&
				it.DurationDays == 2 &&
				it.StartDate.Format("2006-01-02") == "2026-05-01" &&
				it.EndDate.Format("2006-01-02") == "2026-05-02"
		})).Return(savedID, nil).Once()

		id, err := service.SaveFromText(ctx, userID, types.SaveFromTextRequest{
			Destination: "Paris",
			StartDate:   "2026-05-01",
			TextPlan:    "Day 1: Eiffel Tower\nDay 2: Louvre Museum",
		})
		require.NoError(t, err)
		assert.Equal(t, savedID, id)
		repo.AssertExpectations(t)
		poiRepo.AssertExpectations(t)
	})

	t.Run("missing fields", func(t *testing.T) {
		_, err := service.SaveFromText(ctx, userID, types.SaveFromTextRequest{Destination: "Paris"})
		require.Error(t, err)
		assert.ErrorIs(t, err, types.ErrValidation)
	})

	t.Run("bad start date", func(t *testing.T) {
		_, err := service.SaveFromText(ctx, userID, types.SaveFromTextRequest{
			Destination: "Paris",
			StartDate:   "01.05.2026",
			TextPlan:    "Day 1: Eiffel Tower",
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, types.ErrValidation)
	})

	t.Run("unparseable text", func(t *testing.T) {
		service, repo, poiRepo := setupItineraryServiceTest()
		poiRepo.On("SearchByCity", mock.Anything, "Paris", 30).Return([]types.Place{}, nil).Once()

		_, err := service.SaveFromText(ctx, userID, types.SaveFromTextRequest{
			Destination: "Paris",
			StartDate:   "2026-05-01",
			TextPlan:    "Have a lovely trip!",
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, types.ErrParseFailure)
		repo.AssertNotCalled(t, "SaveItinerary", mock.Anything, mock.Anything)
	})

	t.Run("candidate lookup error", func(t *testing.T) {
		poiRepo.On("SearchByCity", mock.Anything, "Paris", 30).Return(nil, errors.New("db down")).Once()

		_, err := service.SaveFromText(ctx, userID, types.SaveFromTextRequest{
			Destination: "Paris",
			StartDate:   "2026-05-01",
			TextPlan:    "Day 1: Eiffel Tower",
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "db down")
	})
}

func TestItineraryService_SaveFromDraft(t *testing.T) {
	service, repo, _ := setupItineraryServiceTest()
	ctx := context.Background()
	userID := uuid.New()

	t.Run("success", func(t *testing.T) {
		savedID := uuid.New()
		repo.On("SaveItinerary", mock.Anything, mock.MatchedBy(func(it *types.Itinerary) bool {
			return it.Destination == "Berlin" && !it.AIGenerated && it.DurationDays == 1
		})).Return(savedID, nil).Once()

		id, err := service.SaveFromDraft(ctx, userID, types.ItineraryDraft{
			City: "Berlin",
			Days: []types.DayDraft{
				{Day: 1, Slots: map[string][]types.SlotPlace{
					types.SlotMorning: {{PlaceID: 1}},
				}},
			},
		})
		require.NoError(t, err)
		assert.Equal(t, savedID, id)
		repo.AssertExpectations(t)
	})

	t.Run("empty draft", func(t *testing.T) {
		_, err := service.SaveFromDraft(ctx, userID, types.ItineraryDraft{City: "Berlin"})
		require.Error(t, err)
		assert.ErrorIs(t, err, types.ErrValidation)
	})

	t.Run("missing destination", func(t *testing.T) {
		_, err := service.SaveFromDraft(ctx, userID, types.ItineraryDraft{
			Days: []types.DayDraft{{Day: 1}},
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, types.ErrValidation)
	})
}

func TestItineraryService_GetEnriched(t *testing.T) {
	service, repo, poiRepo := setupItineraryServiceTest()
	ctx := context.Background()
	itineraryID := uuid.New()
	userID := uuid.New()

	stored := &types.Itinerary{
		ID:           itineraryID,
		UserID:       userID,
		Title:        "Paris Trip",
		Destination:  "Paris",
		DurationDays: 1,
		Days: []types.NormalizedDay{
			{Day: 1, Date: "2026-05-01", Places: []types.NormalizedPlace{
				{PlaceID: 1, Order: 1},
				{PlaceID: 99, Order: 2}, // no longer in the catalog
				{PlaceID: 2, Order: 3},
			}},
		},
	}

	t.Run("drops unresolvable places", func(t *testing.T) {
		repo.On("GetItinerary", mock.Anything, itineraryID, userID).Return(stored, nil).Once()
		poiRepo.On("GetPlacesByIDs", mock.Anything, []int64{1, 99, 2}).Return(map[int64]types.Place{
			1: {ID: 1, Title: "Eiffel Tower", Category: "landmark"},
			2: {ID: 2, Title: "Louvre Museum", Category: "museum"},
		}, nil).Once()

		enriched, err := service.GetEnriched(ctx, userID, itineraryID)
		require.NoError(t, err)
		assert.Equal(t, "Paris Trip", enriched.Title)
		require.Len(t, enriched.Days, 1)
		require.Len(t, enriched.Days[0].Places, 2)
		assert.Equal(t, "Eiffel Tower", enriched.Days[0].Places[0].Name)
		assert.Equal(t, 1, enriched.Days[0].Places[0].Order)
		assert.Equal(t, "Louvre Museum", enriched.Days[0].Places[1].Name)
		assert.Equal(t, 3, enriched.Days[0].Places[1].Order)
		repo.AssertExpectations(t)
		poiRepo.AssertExpectations(t)
	})

	t.Run("not found", func(t *testing.T) {
		missing := uuid.New()
		repo.On("GetItinerary", mock.Anything, missing, userID).Return(nil, types.ErrNotFound).Once()

		_, err := service.GetEnriched(ctx, userID, missing)
		require.Error(t, err)
		assert.ErrorIs(t, err, types.ErrNotFound)
	})

	t.Run("scoped to caller", func(t *testing.T) {
		service, repo, poiRepo := setupItineraryServiceTest()
		otherUser := uuid.New()
		repo.On("GetItinerary", mock.Anything, itineraryID, otherUser).
			Return(nil, types.ErrNotFound).Once()

		// Another user's itinerary id reads as not found, never as data.
		_, err := service.GetEnriched(ctx, otherUser, itineraryID)
		require.Error(t, err)
		assert.ErrorIs(t, err, types.ErrNotFound)
		poiRepo.AssertNotCalled(t, "GetPlacesByIDs", mock.Anything, mock.Anything)
		repo.AssertExpectations(t)
	})
}

func TestItineraryService_List(t *testing.T) {
	service, repo, _ := setupItineraryServiceTest()
	ctx := context.Background()
	userID := uuid.New()

	expected := []types.Itinerary{{ID: uuid.New(), Title: "Paris Trip"}}
	repo.On("GetItineraries", mock.Anything, userID).Return(expected, nil).Once()

	itineraries, err := service.List(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, expected, itineraries)
	repo.AssertExpectations(t)
}
