package generativeAI

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/genai"

	"github.com/mjRam27/Explorix/internal/types"
)

const defaultModel = "gemini-2.0-flash"

// Gateway sends an ordered message list to the text-completion backend and
// returns raw text. It holds no retry or parsing logic; the chat service
// owns that policy.
type Gateway interface {
	Complete(ctx context.Context, messages []types.ChatMessage) (string, error)
}

var _ Gateway = (*AIClient)(nil)

type AIClient struct {
	client      *genai.Client
	model       string
	temperature float32
}

func NewAIClient(ctx context.Context, model string, temperature float64) (*AIClient, error) {
	ctx, span := otel.Tracer("GenerativeAI").Start(ctx, "NewAIClient")
	defer span.End()

	apiKey := os.Getenv("GOOGLE_GEMINI_API_KEY")
	if apiKey == "" {
		err := fmt.Errorf("GOOGLE_GEMINI_API_KEY environment variable is not set")
		span.RecordError(err)
		span.SetStatus(codes.Error, "API key not set")
		return nil, err
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to create Gemini client")
		return nil, err
	}

	if model == "" {
		model = defaultModel
	}

	span.SetStatus(codes.Ok, "AI client created successfully")
	return &AIClient{
		client:      client,
		model:       model,
		temperature: float32(temperature),
	}, nil
}

// Complete maps the message list onto the Gemini chat API: system messages
// become the system instruction, prior user/assistant turns become chat
// history, and the final user message is sent as the current turn.
func (ai *AIClient) Complete(ctx context.Context, messages []types.ChatMessage) (string, error) {
	ctx, span := otel.Tracer("GenerativeAI").Start(ctx, "Complete", trace.WithAttributes(
		attribute.Int("messages.count", len(messages)),
		attribute.String("model", ai.model),
	))
	defer span.End()

	if len(messages) == 0 {
		return "", fmt.Errorf("empty message list")
	}
	last := messages[len(messages)-1]
	if last.Role != types.RoleUser {
		return "", fmt.Errorf("final message must have the user role, got %q", last.Role)
	}

	var systemParts []string
	var history []*genai.Content
	for _, m := range messages[:len(messages)-1] {
		switch m.Role {
		case types.RoleSystem:
			systemParts = append(systemParts, m.Content)
		case types.RoleUser:
			history = append(history, genai.NewContentFromText(m.Content, genai.RoleUser))
		case types.RoleAssistant:
			history = append(history, genai.NewContentFromText(m.Content, genai.RoleModel))
		}
	}

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](ai.temperature),
	}
	if len(systemParts) > 0 {
		config.SystemInstruction = genai.NewContentFromText(strings.Join(systemParts, "\n\n"), genai.RoleUser)
	}

	chat, err := ai.client.Chats.Create(ctx, ai.model, config, history)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to create chat")
		return "", fmt.Errorf("failed to create chat: %w", err)
	}

	result, err := chat.SendMessage(ctx, genai.Part{Text: last.Content})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Completion failed")
		return "", fmt.Errorf("completion failed: %w", err)
	}

	text := result.Text()
	span.SetAttributes(attribute.Int("response.length", len(text)))
	span.SetStatus(codes.Ok, "Completion succeeded")
	return text, nil
}
