package chat

import (
	"errors"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	appMiddleware "github.com/mjRam27/Explorix/app/middleware"
	"github.com/mjRam27/Explorix/internal/api"
	"github.com/mjRam27/Explorix/internal/types"
)

type Handler struct {
	logger  *slog.Logger
	service Service
}

func NewHandler(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		logger:  logger,
		service: service,
	}
}

// ChatTurn handles POST /chat.
func (h *Handler) ChatTurn(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("ChatHandler").Start(r.Context(), "ChatTurn", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRoute("/chat"),
	))
	defer span.End()

	userID, ok := appMiddleware.GetUserIDFromContext(ctx)
	if !ok {
		span.SetStatus(codes.Error, "Unauthorized")
		api.ErrorResponse(w, r, http.StatusUnauthorized, "User ID not found in context")
		return
	}

	var req types.ChatTurnRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Invalid request body")
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.service.HandleTurn(ctx, userID, req)
	if err != nil {
		span.RecordError(err)
		switch {
		case errors.Is(err, types.ErrValidation):
			span.SetStatus(codes.Error, "Validation failed")
			api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		case errors.Is(err, types.ErrNotFound):
			span.SetStatus(codes.Error, "Conversation not found")
			api.ErrorResponse(w, r, http.StatusNotFound, "Conversation not found")
		case errors.Is(err, types.ErrGatewayTimeout):
			span.SetStatus(codes.Error, "Gateway timeout")
			api.ErrorResponse(w, r, http.StatusGatewayTimeout, "The assistant took too long to respond")
		case errors.Is(err, types.ErrGatewayEmpty):
			span.SetStatus(codes.Error, "Gateway empty reply")
			api.ErrorResponse(w, r, http.StatusBadGateway, "The assistant returned no answer")
		default:
			span.SetStatus(codes.Error, "Internal error")
			h.logger.ErrorContext(ctx, "Chat turn failed", slog.Any("error", err))
			api.ErrorResponse(w, r, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	span.SetAttributes(attribute.String("chat.intent", string(resp.Intent)))
	span.SetStatus(codes.Ok, "Turn handled")
	api.WriteJSONResponse(w, r, http.StatusOK, resp)
}
