package insight

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformed marks a generated insight that is missing required fields.
var ErrMalformed = errors.New("malformed insight")

// #region insight
// Insight is the reflective payload shown next to a horizon's plan list.
// The refresh controller treats it as opaque.
type Insight struct {
	Vision     string `json:"vision"`     // short evocative statement about the horizon
	Suggestion string `json:"suggestion"` // imaginative, actionable shift in perspective
	Prompt     string `json:"prompt"`     // reflective writing prompt for the user
}
// #endregion insight

// #region validate
// Validate returns ErrMalformed if any field is blank.
func (i Insight) Validate() error {
	var missing []string
	if strings.TrimSpace(i.Vision) == "" {
		missing = append(missing, "vision")
	}
	if strings.TrimSpace(i.Suggestion) == "" {
		missing = append(missing, "suggestion")
	}
	if strings.TrimSpace(i.Prompt) == "" {
		missing = append(missing, "prompt")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrMalformed, strings.Join(missing, ", "))
	}
	return nil
}
// #endregion validate

// #region fallback
// Fallback is the fixed insight displayed when nothing has been generated yet.
// It is never written to a cache store.
func Fallback() Insight {
	return Insight{
		Vision:     "Every moment is a canvas waiting for your own colors.",
		Suggestion: "Take a deep breath and find sixty seconds of quiet.",
		Prompt:     "What could bring you genuine joy today?",
	}
}
// #endregion fallback
