package types

import (
	"time"
)

type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// ChatMessage is one turn in a conversation. Messages are append-only;
// system-role messages are write-only artifacts of the store and are never
// replayed into a new prompt.
type ChatMessage struct {
	Role      MessageRole `json:"role" bson:"role"`
	Content   string      `json:"content" bson:"content"`
	Timestamp time.Time   `json:"timestamp" bson:"ts"`
}

type Conversation struct {
	ID        string        `json:"conversation_id" bson:"conversation_id"`
	UserID    string        `json:"user_id" bson:"user_id"`
	Messages  []ChatMessage `json:"messages" bson:"messages"`
	CreatedAt time.Time     `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time     `json:"updated_at" bson:"updated_at"`
}

// Intent is the coarse category of a user's turn. Derived per-turn,
// never stored.
type Intent string

const (
	IntentGeneralChat      Intent = "GENERAL_CHAT"
	IntentPOISearch        Intent = "POI_SEARCH"
	IntentItineraryRequest Intent = "ITINERARY_REQUEST"
)

// UserLocation is the optional geolocation attached to a chat turn.
type UserLocation struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`
}

type ChatTurnRequest struct {
	ConversationID string        `json:"conversation_id,omitempty"`
	Message        string        `json:"message"`
	Location       *UserLocation `json:"location,omitempty"`
}

type ChatTurnResponse struct {
	ConversationID    string          `json:"conversation_id"`
	Reply             string          `json:"reply"`
	Intent            Intent          `json:"intent"`
	DetectedLanguage  string          `json:"detected_language,omitempty"`
	ItineraryProposal *ItineraryDraft `json:"itinerary_proposal,omitempty"`
}
