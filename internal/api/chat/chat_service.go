package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/mjRam27/Explorix/app/observability/metrics"
	generativeAI "github.com/mjRam27/Explorix/internal/api/generative_ai"
	"github.com/mjRam27/Explorix/internal/api/itinerary"
	"github.com/mjRam27/Explorix/internal/api/poi"
	"github.com/mjRam27/Explorix/internal/api/translate"
	"github.com/mjRam27/Explorix/internal/types"
)

// Service runs a full chat turn: classify, ground, prompt, complete,
// propose, persist.
type Service interface {
	HandleTurn(ctx context.Context, userID string, req types.ChatTurnRequest) (*types.ChatTurnResponse, error)
}

var _ Service = (*ServiceImpl)(nil)

// Options carries the tuning knobs the pipeline reads per turn.
type Options struct {
	MaxHistory     int
	GroundingLimit int
	CandidateLimit int
	GatewayTimeout time.Duration
}

type ServiceImpl struct {
	logger     *slog.Logger
	repo       Repository
	poiRepo    poi.Repository
	gateway    generativeAI.Gateway
	translator translate.Translator
	keywords   IntentKeywords
	gazetteer  []string
	opts       Options
}

func NewService(repo Repository, poiRepo poi.Repository, gateway generativeAI.Gateway, translator translate.Translator, opts Options, logger *slog.Logger) *ServiceImpl {
	if opts.MaxHistory <= 0 {
		opts.MaxHistory = 6
	}
	if opts.GroundingLimit <= 0 {
		opts.GroundingLimit = 5
	}
	if opts.CandidateLimit <= 0 {
		opts.CandidateLimit = 30
	}
	if opts.GatewayTimeout <= 0 {
		opts.GatewayTimeout = 30 * time.Second
	}
	return &ServiceImpl{
		logger:     logger,
		repo:       repo,
		poiRepo:    poiRepo,
		gateway:    gateway,
		translator: translator,
		keywords:   DefaultIntentKeywords(),
		gazetteer:  DefaultGazetteer,
		opts:       opts,
	}
}

// HandleTurn is the chat pipeline. Grounding and history are fetched in
// parallel, the completion runs under its own deadline with one retry on
// an empty reply, and the turn's messages are appended only after a reply
// exists, so a failed turn never pollutes the conversation.
func (s *ServiceImpl) HandleTurn(ctx context.Context, userID string, req types.ChatTurnRequest) (*types.ChatTurnResponse, error) {
	ctx, span := otel.Tracer("ChatService").Start(ctx, "HandleTurn")
	defer span.End()

	start := time.Now()
	l := s.logger.With(slog.String("method", "HandleTurn"), slog.String("userID", userID))

	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, fmt.Errorf("message must not be empty: %w", types.ErrValidation)
	}

	english, lang, err := s.translator.ToEnglish(ctx, message)
	if err != nil {
		l.WarnContext(ctx, "Translation to English failed, using original text", slog.Any("error", err))
		english, lang = message, "unknown"
	}

	intent := DetectIntent(english, s.keywords)
	city := ExtractCity(english, s.gazetteer)
	span.SetAttributes(
		attribute.String("chat.intent", string(intent)),
		attribute.String("chat.city", city),
	)

	conversationID := req.ConversationID
	created := false
	if conversationID == "" {
		conversationID, err = s.repo.CreateConversation(ctx, userID)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "Conversation create failed")
			return nil, err
		}
		created = true
	} else {
		conv, err := s.repo.GetConversation(ctx, conversationID)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "Conversation lookup failed")
			return nil, err
		}
		// Conversations are private; a foreign ID behaves like a missing one.
		if conv.UserID != userID {
			return nil, fmt.Errorf("conversation %s: %w", conversationID, types.ErrNotFound)
		}
	}
	span.SetAttributes(attribute.String("conversation.id", conversationID))

	var (
		candidates []types.Place
		grounding  string
		history    []types.ChatMessage
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		candidates, grounding, err = s.buildGrounding(gctx, intent, city, english, req.Location)
		return err
	})
	if !created {
		g.Go(func() error {
			var err error
			history, err = s.repo.GetHistory(gctx, conversationID, s.opts.MaxHistory)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Context assembly failed")
		return nil, err
	}
	if grounding == "" && intent != types.IntentGeneralChat {
		metrics.Get().GroundingEmptyTotal.Add(ctx, 1)
		l.DebugContext(ctx, "No grounding available for turn", slog.String("intent", string(intent)))
	}

	now := time.Now().UTC()
	prompt := assembleMessages(grounding, history, english, now)

	reply, err := s.complete(ctx, prompt, now)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Completion failed")
		return nil, err
	}

	var proposal *types.ItineraryDraft
	if intent == types.IntentItineraryRequest {
		proposal = s.buildProposal(reply, city, candidates, now)
	}

	localized, err := s.translator.FromEnglish(ctx, reply, lang)
	if err != nil {
		l.WarnContext(ctx, "Translation from English failed, returning English reply", slog.Any("error", err))
		localized = reply
	}

	if err := s.repo.AppendMessages(ctx, conversationID, []types.ChatMessage{
		{Role: types.RoleUser, Content: message, Timestamp: now},
		{Role: types.RoleAssistant, Content: localized, Timestamp: time.Now().UTC()},
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "History append failed")
		return nil, err
	}

	m := metrics.Get()
	m.ChatTurnsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("intent", string(intent))))
	m.ChatTurnDurationSeconds.Record(ctx, time.Since(start).Seconds())

	span.SetStatus(codes.Ok, "Turn handled")
	return &types.ChatTurnResponse{
		ConversationID:    conversationID,
		Reply:             localized,
		Intent:            intent,
		DetectedLanguage:  lang,
		ItineraryProposal: proposal,
	}, nil
}

// buildGrounding picks the retrieval strategy for the turn. A shared
// geolocation always wins over a city mention, whatever the intent: the
// user's position is the stronger signal. Itinerary turns load the full
// candidate window since the reply is parsed against it afterwards, but
// the prompt only carries the top slice to keep it small. A turn with no
// city and no location grounds on nothing, which is fine for general chat.
func (s *ServiceImpl) buildGrounding(ctx context.Context, intent types.Intent, city, message string, loc *types.UserLocation) ([]types.Place, string, error) {
	limit := s.opts.GroundingLimit
	if intent == types.IntentItineraryRequest {
		limit = s.opts.CandidateLimit
	}

	switch {
	case loc != nil:
		radius := ExtractRadiusKm(message)
		places, err := s.poiRepo.SearchNear(ctx, loc.Latitude, loc.Longitude, radius, limit)
		if err != nil {
			return nil, "", fmt.Errorf("nearby grounding failed: %w", err)
		}
		return places, BuildNearbyGrounding(s.topSlice(places)), nil

	case city != "":
		places, err := s.poiRepo.SearchByCity(ctx, city, limit)
		if err != nil {
			return nil, "", fmt.Errorf("city grounding failed: %w", err)
		}
		return places, BuildCityGrounding(city, s.topSlice(places)), nil
	}
	return nil, "", nil
}

func (s *ServiceImpl) topSlice(places []types.Place) []types.Place {
	if len(places) > s.opts.GroundingLimit {
		return places[:s.opts.GroundingLimit]
	}
	return places
}

// complete calls the gateway under the configured deadline, retrying once
// with a stricter instruction when the backend returns empty text.
func (s *ServiceImpl) complete(ctx context.Context, prompt []types.ChatMessage, now time.Time) (string, error) {
	ctx, span := otel.Tracer("ChatService").Start(ctx, "complete", trace.WithAttributes(
		attribute.Int("prompt.messages", len(prompt)),
	))
	defer span.End()

	callCtx, cancel := context.WithTimeout(ctx, s.opts.GatewayTimeout)
	defer cancel()

	reply, err := s.gateway.Complete(callCtx, prompt)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			metrics.Get().GatewayTimeoutsTotal.Add(ctx, 1)
			return "", fmt.Errorf("completion deadline exceeded: %w", types.ErrGatewayTimeout)
		}
		return "", fmt.Errorf("completion failed: %w", err)
	}

	if strings.TrimSpace(reply) != "" {
		return strings.TrimSpace(reply), nil
	}

	metrics.Get().GatewayRetriesTotal.Add(ctx, 1)
	span.AddEvent("retrying empty completion")

	retryPrompt := append(append([]types.ChatMessage{}, prompt...), types.ChatMessage{
		Role:      types.RoleUser,
		Content:   strictRetryInstruction,
		Timestamp: now,
	})
	retryCtx, retryCancel := context.WithTimeout(ctx, s.opts.GatewayTimeout)
	defer retryCancel()

	reply, err = s.gateway.Complete(retryCtx, retryPrompt)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			metrics.Get().GatewayTimeoutsTotal.Add(ctx, 1)
			return "", fmt.Errorf("completion deadline exceeded on retry: %w", types.ErrGatewayTimeout)
		}
		return "", fmt.Errorf("completion retry failed: %w", err)
	}
	if strings.TrimSpace(reply) == "" {
		return "", fmt.Errorf("backend returned empty text twice: %w", types.ErrGatewayEmpty)
	}
	return strings.TrimSpace(reply), nil
}

// buildProposal parses the reply into a day plan and shapes it as an
// editable slot-bucketed draft. A reply that parses to nothing yields no
// proposal rather than an error; the user still gets the text. When the
// turn named no city (location-grounded turns), the destination comes
// from the matched places themselves; a draft without a destination would
// fail validation on save, so none is emitted.
func (s *ServiceImpl) buildProposal(reply, city string, candidates []types.Place, now time.Time) *types.ItineraryDraft {
	days := itinerary.ParseItineraryText(reply, candidates, now)
	if len(days) == 0 {
		return nil
	}

	byID := make(map[int64]types.Place, len(candidates))
	for _, p := range candidates {
		byID[p.ID] = p
	}

	destination := city
	if destination == "" {
		for _, day := range days {
			for _, ref := range day.Places {
				if c := byID[ref.PlaceID].City; c != "" {
					destination = c
					break
				}
			}
			if destination != "" {
				break
			}
		}
	}
	if destination == "" {
		return nil
	}

	draft := &types.ItineraryDraft{
		Destination: destination,
		City:        destination,
		Days:        make([]types.DayDraft, 0, len(days)),
		Editable:    true,
	}
	for _, day := range days {
		d := types.DayDraft{
			Day:   day.Day,
			Slots: map[string][]types.SlotPlace{},
		}
		for i, ref := range day.Places {
			slotIdx := i
			if slotIdx >= len(types.SlotOrder) {
				slotIdx = len(types.SlotOrder) - 1
			}
			slot := types.SlotOrder[slotIdx]
			place := byID[ref.PlaceID]
			d.Slots[slot] = append(d.Slots[slot], types.SlotPlace{
				PlaceID:  ref.PlaceID,
				Name:     place.Title,
				Category: place.Category,
			})
		}
		draft.Days = append(draft.Days, d)
	}
	return draft
}
