package chat

import (
	"fmt"
	"strings"
	"time"

	"github.com/mjRam27/Explorix/internal/types"
)

// personaInstruction anchors every prompt. The grounding contract matters
// more than the tone: the model may only recommend places it was handed.
const personaInstruction = `You are Explorix, a friendly and knowledgeable travel assistant.
You help travelers discover places, plan day-by-day itineraries and answer travel questions.
Only recommend places from the "Known places" list when one is provided; never invent place names.
When asked for an itinerary, structure your answer as "Day 1", "Day 2" and so on, listing places by their exact names.
Keep answers concise and practical.`

// strictRetryInstruction is appended when the first completion comes back
// empty.
const strictRetryInstruction = `Your previous answer was empty. Answer the user's last message now, in plain text.`

// BuildCityGrounding renders a grounding block from catalog places for a
// city. Returns "" when there is nothing to ground on, so the prompt
// carries no empty header.
func BuildCityGrounding(city string, places []types.Place) string {
	if len(places) == 0 {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Known places in %s:\n", city)
	for _, p := range places {
		category := p.Category
		if category == "" {
			category = "place"
		}
		fmt.Fprintf(&b, "- %s (%s)\n", p.Title, category)
	}
	return strings.TrimRight(b.String(), "\n")
}

// BuildNearbyGrounding renders a grounding block for a location-based
// search, carrying the distance so the model can reason about proximity.
func BuildNearbyGrounding(places []types.Place) string {
	if len(places) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Known places near the user:\n")
	for _, p := range places {
		category := p.Category
		if category == "" {
			category = "place"
		}
		if p.DistanceKm != nil {
			fmt.Fprintf(&b, "- %s (%s, %.1f km)\n", p.Title, category, *p.DistanceKm)
		} else {
			fmt.Fprintf(&b, "- %s (%s)\n", p.Title, category)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// assembleMessages builds the completion request: persona first, then the
// grounding block, then the recent non-system history, then the user's
// turn. History arrives already trimmed by the store; system roles are
// filtered here again so a stale stored prompt can never be replayed.
func assembleMessages(grounding string, history []types.ChatMessage, userMessage string, now time.Time) []types.ChatMessage {
	messages := make([]types.ChatMessage, 0, len(history)+3)
	messages = append(messages, types.ChatMessage{
		Role:      types.RoleSystem,
		Content:   personaInstruction,
		Timestamp: now,
	})
	if grounding != "" {
		messages = append(messages, types.ChatMessage{
			Role:      types.RoleSystem,
			Content:   grounding,
			Timestamp: now,
		})
	}
	for _, m := range history {
		if m.Role == types.RoleSystem {
			continue
		}
		messages = append(messages, m)
	}
	messages = append(messages, types.ChatMessage{
		Role:      types.RoleUser,
		Content:   userMessage,
		Timestamp: now,
	})
	return messages
}
