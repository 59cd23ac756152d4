package translate

import (
	"context"
)

// Translator normalizes user utterances to English for the model and
// translates replies back. The translation engine itself is an external
// collaborator; the pipeline only depends on this interface.
type Translator interface {
	// ToEnglish returns the English form of text plus the detected source
	// language code ("unknown" when detection is unavailable).
	ToEnglish(ctx context.Context, text string) (string, string, error)
	// FromEnglish translates an English reply back into lang. It is a
	// no-op for "en" and "unknown".
	FromEnglish(ctx context.Context, text, lang string) (string, error)
}

// Disabled passes text through untouched. Used when no translation backend
// is configured.
type Disabled struct{}

var _ Translator = (*Disabled)(nil)

func (Disabled) ToEnglish(_ context.Context, text string) (string, string, error) {
	return text, "unknown", nil
}

func (Disabled) FromEnglish(_ context.Context, text, _ string) (string, error) {
	return text, nil
}
