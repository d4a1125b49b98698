package advisor

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var thinkTagRegex = regexp.MustCompile(`(?s)<think>.*?</think>`)

// stripThinkTags removes reasoning-model thinking tags from the response.
func stripThinkTags(text string) string {
	return strings.TrimSpace(thinkTagRegex.ReplaceAllString(text, ""))
}

type rawProposal struct {
	Action     string  `json:"action"`
	Quantity   int64   `json:"quantity"`
	Confidence float64 `json:"confidence"`
	Rationale  string  `json:"rationale"`
}

// ParseProposal parses a model reply into a proposal, tolerating markdown
// code fences and surrounding prose.
func ParseProposal(text string) (*Proposal, error) {
	cleaned := stripThinkTags(text)

	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var raw rawProposal
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		// Try to extract the first JSON object from the text.
		start := strings.Index(cleaned, "{")
		end := strings.LastIndex(cleaned, "}")
		if start < 0 || end <= start {
			return nil, fmt.Errorf("no JSON object in advisor reply: %.200s", cleaned)
		}
		if err := json.Unmarshal([]byte(cleaned[start:end+1]), &raw); err != nil {
			return nil, fmt.Errorf("parse advisor reply: %w", err)
		}
	}

	action := Action(strings.ToUpper(strings.TrimSpace(raw.Action)))
	if !action.Valid() {
		return nil, fmt.Errorf("unknown action %q in advisor reply", raw.Action)
	}

	confidence := raw.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	quantity := raw.Quantity
	if quantity < 0 {
		quantity = 0
	}
	if action == ActionHold {
		quantity = 0
	}

	return &Proposal{
		Action:     action,
		Quantity:   quantity,
		Confidence: confidence,
		Rationale:  strings.TrimSpace(raw.Rationale),
	}, nil
}
