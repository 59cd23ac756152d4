package chat

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mjRam27/Explorix/app/observability/metrics"
	"github.com/mjRam27/Explorix/internal/api/translate"
	"github.com/mjRam27/Explorix/internal/types"
)

// MockChatRepository is a mock implementation of Repository
type MockChatRepository struct {
	mock.Mock
}

func (m *MockChatRepository) CreateConversation(ctx context.Context, userID string) (string, error) {
	args := m.Called(ctx, userID)
	return args.String(0), args.Error(1)
}

func (m *MockChatRepository) GetConversation(ctx context.Context, conversationID string) (*types.Conversation, error) {
	args := m.Called(ctx, conversationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Conversation), args.Error(1)
}

func (m *MockChatRepository) AppendMessages(ctx context.Context, conversationID string, messages []types.ChatMessage) error {
	args := m.Called(ctx, conversationID, messages)
	return args.Error(0)
}

func (m *MockChatRepository) GetHistory(ctx context.Context, conversationID string, limit int) ([]types.ChatMessage, error) {
	args := m.Called(ctx, conversationID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.ChatMessage), args.Error(1)
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

// MockGateway is a mock implementation of generativeAI.Gateway
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) Complete(ctx context.Context, messages []types.ChatMessage) (string, error) {
	args := m.Called(ctx, messages)
	return args.String(0), args.Error(1)
}

func setupChatServiceTest() (*ServiceImpl, *MockChatRepository, *MockPOIRepository, *MockGateway) {
	metrics.InitAppMetrics()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := new(MockChatRepository)
	poiRepo := new(MockPOIRepository)
	gateway := new(MockGateway)
	service := NewService(repo, poiRepo, gateway, translate.Disabled{}, Options{
		MaxHistory:     6,
		GroundingLimit: 5,
		CandidateLimit: 30,
		GatewayTimeout: time.Second,
	}, logger)
	return service, repo, poiRepo, gateway
}

func berlinPlaces() []types.Place {
	return []types.Place{
		{ID: 1, Title: "Brandenburg Gate", Category: "landmark"},
		{ID: 2, Title: "Museum Island", Category: "museum"},
		{ID: 3, Title: "East Side Gallery", Category: "gallery"},
	}
}

func TestChatService_HandleTurn_GeneralChat(t *testing.T) {
	service, repo, _, gateway := setupChatServiceTest()
	ctx := context.Background()

	repo.On("CreateConversation", mock.Anything, "user-1").Return("conv-1", nil).Once()
	gateway.On("Complete", mock.Anything, mock.Anything).Return("Hello! Where are you headed?", nil).Once()
	repo.On("AppendMessages", mock.Anything, "conv-1", mock.MatchedBy(func(msgs []types.ChatMessage) bool {
		return len(msgs) == 2 && msgs[0].Role == types.RoleUser && msgs[1].Role == types.RoleAssistant
	})).Return(nil).Once()

	resp, err := service.HandleTurn(ctx, "user-1", types.ChatTurnRequest{Message: "Hi there!"})
	require.NoError(t, err)
	assert.Equal(t, "conv-1", resp.ConversationID)
	assert.Equal(t, types.IntentGeneralChat, resp.Intent)
	assert.Equal(t, "Hello! Where are you headed?", resp.Reply)
	assert.Nil(t, resp.ItineraryProposal)
	repo.AssertExpectations(t)
	gateway.AssertExpectations(t)
}

func TestChatService_HandleTurn_EmptyMessage(t *testing.T) {
	service, _, _, _ := setupChatServiceTest()

	_, err := service.HandleTurn(context.Background(), "user-1", types.ChatTurnRequest{Message: "   "})
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrValidation)
}

func TestChatService_HandleTurn_CityGroundingInPrompt(t *testing.T) {
	service, repo, poiRepo, gateway := setupChatServiceTest()
	ctx := context.Background()

	repo.On("CreateConversation", mock.Anything, "user-1").Return("conv-1", nil).Once()
	poiRepo.On("SearchByCity", mock.Anything, "Berlin", 5).Return(berlinPlaces(), nil).Once()
	gateway.On("Complete", mock.Anything, mock.MatchedBy(func(msgs []types.ChatMessage) bool {
		return len(msgs) >= 3 && msgs[1].Role == types.RoleSystem &&
			strings.HasPrefix(msgs[1].Content, "Known places in Berlin:")
	})).Return("Try Museum Island.", nil).Once()
	repo.On("AppendMessages", mock.Anything, "conv-1", mock.Anything).Return(nil).Once()

	resp, err := service.HandleTurn(ctx, "user-1", types.ChatTurnRequest{Message: "tell me about Berlin"})
	require.NoError(t, err)
	assert.Equal(t, types.IntentGeneralChat, resp.Intent)
	poiRepo.AssertExpectations(t)
}

func TestChatService_HandleTurn_NearbySearchUsesLocation(t *testing.T) {
	service, repo, poiRepo, gateway := setupChatServiceTest()
	ctx := context.Background()

	dist := 0.8
	nearby := []types.Place{{ID: 9, Title: "Corner Cafe", Category: "cafe", DistanceKm: &dist}}

	repo.On("CreateConversation", mock.Anything, "user-1").Return("conv-1", nil).Once()
	poiRepo.On("SearchNear", mock.Anything, 52.52, 13.405, 8.0, 5).Return(nearby, nil).Once()
	gateway.On("Complete", mock.Anything, mock.Anything).Return("Corner Cafe is close by.", nil).Once()
	repo.On("AppendMessages", mock.Anything, "conv-1", mock.Anything).Return(nil).Once()

	resp, err := service.HandleTurn(ctx, "user-1", types.ChatTurnRequest{
		Message:  "any cafe within 8 km?",
		Location: &types.UserLocation{Latitude: 52.52, Longitude: 13.405},
	})
	require.NoError(t, err)
	assert.Equal(t, types.IntentPOISearch, resp.Intent)
	poiRepo.AssertExpectations(t)
}

func TestChatService_HandleTurn_LocationWinsOverCityMention(t *testing.T) {
	service, repo, poiRepo, gateway := setupChatServiceTest()
	ctx := context.Background()

	nearby := []types.Place{
		{ID: 1, Title: "Brandenburg Gate", Category: "landmark", City: "Berlin"},
		{ID: 2, Title: "Museum Island", Category: "museum", City: "Berlin"},
	}

	repo.On("CreateConversation", mock.Anything, "user-1").Return("conv-1", nil).Once()
	// Itinerary turns load the full candidate window; default radius applies.
	poiRepo.On("SearchNear", mock.Anything, 52.52, 13.405, 2.0, 30).Return(nearby, nil).Once()
	gateway.On("Complete", mock.Anything, mock.MatchedBy(func(msgs []types.ChatMessage) bool {
		return len(msgs) >= 3 && msgs[1].Role == types.RoleSystem &&
			strings.HasPrefix(msgs[1].Content, "Known places near the user:")
	})).Return("Day 1: Brandenburg Gate\nDay 2: Museum Island", nil).Once()
	repo.On("AppendMessages", mock.Anything, "conv-1", mock.Anything).Return(nil).Once()

	resp, err := service.HandleTurn(ctx, "user-1", types.ChatTurnRequest{
		Message:  "plan a trip in Berlin",
		Location: &types.UserLocation{Latitude: 52.52, Longitude: 13.405},
	})
	require.NoError(t, err)
	assert.Equal(t, types.IntentItineraryRequest, resp.Intent)
	require.NotNil(t, resp.ItineraryProposal)
	assert.Equal(t, "Berlin", resp.ItineraryProposal.Destination)
	poiRepo.AssertNotCalled(t, "SearchByCity", mock.Anything, mock.Anything, mock.Anything)
	poiRepo.AssertExpectations(t)
}

func TestChatService_HandleTurn_LocationProposalDerivesDestination(t *testing.T) {
	service, repo, poiRepo, gateway := setupChatServiceTest()
	ctx := context.Background()

	nearby := []types.Place{
		{ID: 1, Title: "Brandenburg Gate", Category: "landmark", City: "Berlin"},
		{ID: 2, Title: "Museum Island", Category: "museum", City: "Berlin"},
	}

	repo.On("CreateConversation", mock.Anything, "user-1").Return("conv-1", nil).Once()
	poiRepo.On("SearchNear", mock.Anything, 52.52, 13.405, 2.0, 30).Return(nearby, nil).Once()
	gateway.On("Complete", mock.Anything, mock.Anything).
		Return("Day 1: Brandenburg Gate\nDay 2: Museum Island", nil).Once()
	repo.On("AppendMessages", mock.Anything, "conv-1", mock.Anything).Return(nil).Once()

	// No city in the message: the draft's destination comes from the
	// matched places so it stays saveable.
	resp, err := service.HandleTurn(ctx, "user-1", types.ChatTurnRequest{
		Message:  "plan a trip around here",
		Location: &types.UserLocation{Latitude: 52.52, Longitude: 13.405},
	})
	require.NoError(t, err)
	require.NotNil(t, resp.ItineraryProposal)
	assert.Equal(t, "Berlin", resp.ItineraryProposal.Destination)
	assert.Equal(t, "Berlin", resp.ItineraryProposal.City)
	poiRepo.AssertExpectations(t)
}

func TestChatService_HandleTurn_ItineraryProposal(t *testing.T) {
	service, repo, poiRepo, gateway := setupChatServiceTest()
	ctx := context.Background()

	reply := "Day 1: Brandenburg Gate and Museum Island.\nDay 2: East Side Gallery."

	repo.On("CreateConversation", mock.Anything, "user-1").Return("conv-1", nil).Once()
	poiRepo.On("SearchByCity", mock.Anything, "Berlin", 30).Return(berlinPlaces(), nil).Once()
	gateway.On("Complete", mock.Anything, mock.Anything).Return(reply, nil).Once()
	repo.On("AppendMessages", mock.Anything, "conv-1", mock.Anything).Return(nil).Once()

	resp, err := service.HandleTurn(ctx, "user-1", types.ChatTurnRequest{Message: "plan my trip to Berlin"})
	require.NoError(t, err)
	assert.Equal(t, types.IntentItineraryRequest, resp.Intent)

	require.NotNil(t, resp.ItineraryProposal)
	proposal := resp.ItineraryProposal
	assert.True(t, proposal.Editable)
	assert.Equal(t, "Berlin", proposal.City)
	require.Len(t, proposal.Days, 2)

	day1 := proposal.Days[0]
	require.Len(t, day1.Slots[types.SlotMorning], 1)
	assert.Equal(t, "Brandenburg Gate", day1.Slots[types.SlotMorning][0].Name)
	require.Len(t, day1.Slots[types.SlotAfternoon], 1)
	assert.Equal(t, int64(2), day1.Slots[types.SlotAfternoon][0].PlaceID)

	day2 := proposal.Days[1]
	require.Len(t, day2.Slots[types.SlotMorning], 1)
	assert.Equal(t, int64(3), day2.Slots[types.SlotMorning][0].PlaceID)
}

func TestChatService_HandleTurn_ExistingConversationLoadsHistory(t *testing.T) {
	service, repo, _, gateway := setupChatServiceTest()
	ctx := context.Background()

	history := []types.ChatMessage{
		{Role: types.RoleUser, Content: "first question"},
		{Role: types.RoleAssistant, Content: "first answer"},
	}

	repo.On("GetConversation", mock.Anything, "conv-7").Return(&types.Conversation{ID: "conv-7", UserID: "user-1"}, nil).Once()
	repo.On("GetHistory", mock.Anything, "conv-7", 6).Return(history, nil).Once()
	gateway.On("Complete", mock.Anything, mock.MatchedBy(func(msgs []types.ChatMessage) bool {
		// persona + 2 history turns + new user message
		return len(msgs) == 4 && msgs[1].Content == "first question"
	})).Return("Sure thing.", nil).Once()
	repo.On("AppendMessages", mock.Anything, "conv-7", mock.Anything).Return(nil).Once()

	resp, err := service.HandleTurn(ctx, "user-1", types.ChatTurnRequest{
		ConversationID: "conv-7",
		Message:        "and then?",
	})
	require.NoError(t, err)
	assert.Equal(t, "conv-7", resp.ConversationID)
	repo.AssertExpectations(t)
}

func TestChatService_HandleTurn_ForeignConversationRejected(t *testing.T) {
	service, repo, _, _ := setupChatServiceTest()

	repo.On("GetConversation", mock.Anything, "conv-7").Return(&types.Conversation{ID: "conv-7", UserID: "someone-else"}, nil).Once()

	_, err := service.HandleTurn(context.Background(), "user-1", types.ChatTurnRequest{
		ConversationID: "conv-7",
		Message:        "hello",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrNotFound)
	repo.AssertExpectations(t)
}

func TestChatService_HandleTurn_RetriesOnEmptyReply(t *testing.T) {
	service, repo, _, gateway := setupChatServiceTest()
	ctx := context.Background()

	repo.On("CreateConversation", mock.Anything, "user-1").Return("conv-1", nil).Once()
	gateway.On("Complete", mock.Anything, mock.Anything).Return("", nil).Once()
	gateway.On("Complete", mock.Anything, mock.MatchedBy(func(msgs []types.ChatMessage) bool {
		return len(msgs) > 0 && msgs[len(msgs)-1].Content == strictRetryInstruction
	})).Return("Here is an answer.", nil).Once()
	repo.On("AppendMessages", mock.Anything, "conv-1", mock.Anything).Return(nil).Once()

	resp, err := service.HandleTurn(ctx, "user-1", types.ChatTurnRequest{Message: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "Here is an answer.", resp.Reply)
	gateway.AssertExpectations(t)
}

func TestChatService_HandleTurn_EmptyTwiceFails(t *testing.T) {
	service, repo, _, gateway := setupChatServiceTest()

	repo.On("CreateConversation", mock.Anything, "user-1").Return("conv-1", nil).Once()
	gateway.On("Complete", mock.Anything, mock.Anything).Return("", nil).Twice()

	_, err := service.HandleTurn(context.Background(), "user-1", types.ChatTurnRequest{Message: "hello"})
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrGatewayEmpty)
	repo.AssertNotCalled(t, "AppendMessages", mock.Anything, mock.Anything, mock.Anything)
}

func TestChatService_HandleTurn_GatewayTimeout(t *testing.T) {
	service, repo, _, gateway := setupChatServiceTest()

	repo.On("CreateConversation", mock.Anything, "user-1").Return("conv-1", nil).Once()
	gateway.On("Complete", mock.Anything, mock.Anything).Return("", context.DeadlineExceeded).Once()

	_, err := service.HandleTurn(context.Background(), "user-1", types.ChatTurnRequest{Message: "hello"})
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrGatewayTimeout)
	repo.AssertNotCalled(t, "AppendMessages", mock.Anything, mock.Anything, mock.Anything)
}

func TestChatService_HandleTurn_AppendFailureSurfaces(t *testing.T) {
	service, repo, _, gateway := setupChatServiceTest()

	repo.On("CreateConversation", mock.Anything, "user-1").Return("conv-1", nil).Once()
	gateway.On("Complete", mock.Anything, mock.Anything).Return("reply", nil).Once()
	repo.On("AppendMessages", mock.Anything, "conv-1", mock.Anything).Return(errors.New("mongo down")).Once()

	_, err := service.HandleTurn(context.Background(), "user-1", types.ChatTurnRequest{Message: "hello"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mongo down")
}
