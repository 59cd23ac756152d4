package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/mjRam27/Explorix/internal/types"
)

const conversationsCollection = "conversations"

// Repository is the conversation store. Conversations are append-only
// message logs keyed by a service-generated ID.
type Repository interface {
	CreateConversation(ctx context.Context, userID string) (string, error)
	GetConversation(ctx context.Context, conversationID string) (*types.Conversation, error)
	AppendMessages(ctx context.Context, conversationID string, messages []types.ChatMessage) error
	GetHistory(ctx context.Context, conversationID string, limit int) ([]types.ChatMessage, error)
}

var _ Repository = (*RepositoryImpl)(nil)

type RepositoryImpl struct {
	logger *slog.Logger
	coll   *mongo.Collection
}

func NewRepository(db *mongo.Database, logger *slog.Logger) *RepositoryImpl {
	return &RepositoryImpl{
		logger: logger,
		coll:   db.Collection(conversationsCollection),
	}
}

func (r *RepositoryImpl) CreateConversation(ctx context.Context, userID string) (string, error) {
	ctx, span := otel.Tracer("ChatRepo").Start(ctx, "CreateConversation", trace.WithAttributes(
		semconv.DBSystemMongoDB,
		attribute.String("db.collection.name", conversationsCollection),
	))
	defer span.End()

	now := time.Now().UTC()
	conv := types.Conversation{
		ID:        uuid.NewString(),
		UserID:    userID,
		Messages:  []types.ChatMessage{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := r.coll.InsertOne(ctx, conv); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Insert failed")
		return "", fmt.Errorf("failed to create conversation: %w", err)
	}

	r.logger.DebugContext(ctx, "Conversation created",
		slog.String("conversationID", conv.ID), slog.String("userID", userID))
	span.SetAttributes(attribute.String("conversation.id", conv.ID))
	span.SetStatus(codes.Ok, "Conversation created")
	return conv.ID, nil
}

func (r *RepositoryImpl) GetConversation(ctx context.Context, conversationID string) (*types.Conversation, error) {
	ctx, span := otel.Tracer("ChatRepo").Start(ctx, "GetConversation", trace.WithAttributes(
		semconv.DBSystemMongoDB,
		attribute.String("db.collection.name", conversationsCollection),
		attribute.String("conversation.id", conversationID),
	))
	defer span.End()

	var conv types.Conversation
	err := r.coll.FindOne(ctx, bson.M{"conversation_id": conversationID}).Decode(&conv)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			span.SetStatus(codes.Ok, "Conversation not found")
			return nil, fmt.Errorf("conversation %s: %w", conversationID, types.ErrNotFound)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "Find failed")
		return nil, fmt.Errorf("failed to fetch conversation: %w", err)
	}

	span.SetStatus(codes.Ok, "Conversation fetched")
	return &conv, nil
}

// AppendMessages pushes the turn's messages in one update so the user and
// assistant messages land together or not at all.
func (r *RepositoryImpl) AppendMessages(ctx context.Context, conversationID string, messages []types.ChatMessage) error {
	ctx, span := otel.Tracer("ChatRepo").Start(ctx, "AppendMessages", trace.WithAttributes(
		semconv.DBSystemMongoDB,
		attribute.String("db.collection.name", conversationsCollection),
		attribute.String("conversation.id", conversationID),
		attribute.Int("message.count", len(messages)),
	))
	defer span.End()

	if len(messages) == 0 {
		return nil
	}

	res, err := r.coll.UpdateOne(ctx,
		bson.M{"conversation_id": conversationID},
		bson.M{
			"$push": bson.M{"messages": bson.M{"$each": messages}},
			"$set":  bson.M{"updated_at": time.Now().UTC()},
		},
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Update failed")
		return fmt.Errorf("failed to append messages: %w", err)
	}
	if res.MatchedCount == 0 {
		span.SetStatus(codes.Error, "Conversation not found")
		return fmt.Errorf("conversation %s: %w", conversationID, types.ErrNotFound)
	}

	span.SetStatus(codes.Ok, "Messages appended")
	return nil
}

// GetHistory returns the most recent limit messages in chronological
// order, with system-role entries filtered out. The slice projection keeps
// long conversations from being shipped over the wire whole.
func (r *RepositoryImpl) GetHistory(ctx context.Context, conversationID string, limit int) ([]types.ChatMessage, error) {
	ctx, span := otel.Tracer("ChatRepo").Start(ctx, "GetHistory", trace.WithAttributes(
		semconv.DBSystemMongoDB,
		attribute.String("db.collection.name", conversationsCollection),
		attribute.String("conversation.id", conversationID),
		attribute.Int("history.limit", limit),
	))
	defer span.End()

	opts := options.FindOne().SetProjection(bson.M{
		"messages": bson.M{"$slice": -limit},
	})

	var conv types.Conversation
	err := r.coll.FindOne(ctx, bson.M{"conversation_id": conversationID}, opts).Decode(&conv)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			span.SetStatus(codes.Ok, "Conversation not found")
			return nil, fmt.Errorf("conversation %s: %w", conversationID, types.ErrNotFound)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "Find failed")
		return nil, fmt.Errorf("failed to fetch history: %w", err)
	}

	history := make([]types.ChatMessage, 0, len(conv.Messages))
	for _, m := range conv.Messages {
		if m.Role == types.RoleSystem {
			continue
		}
		history = append(history, m)
	}

	span.SetAttributes(attribute.Int("history.count", len(history)))
	span.SetStatus(codes.Ok, "History fetched")
	return history, nil
}
