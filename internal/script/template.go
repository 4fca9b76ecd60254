// Package script provides campaign script templates: the ordered prompt
// slots a call walks through, with a static built-in fallback and an
// optional LLM-backed generator.
package script

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dhruv465/Project-Call-sub007/internal/database/models"
)

// Slot names the purpose of one prompt in a campaign script.
type Slot string

const (
	SlotIntroduction      Slot = "introduction"
	SlotQuestions         Slot = "questions"
	SlotValueProposition  Slot = "value_proposition"
	SlotObjectionHandling Slot = "objection_handling"
	SlotClosing           Slot = "closing"
)

// DefaultOrder is the slot progression a call follows when no emotion
// signal reorders it. Closing is always last.
var DefaultOrder = []Slot{
	SlotIntroduction,
	SlotQuestions,
	SlotValueProposition,
	SlotObjectionHandling,
	SlotClosing,
}

// Template is a campaign-scoped script: prompt text per slot, per language.
// Templates are read-only to the dialog engine.
type Template struct {
	Language string          `json:"language"`
	Slots    map[Slot]string `json:"slots"`
}

// Prompt returns the text for a slot. Missing slots fall back to the static
// template so a partially generated script never silences the call.
func (t *Template) Prompt(slot Slot) string {
	if t != nil {
		if text, ok := t.Slots[slot]; ok && strings.TrimSpace(text) != "" {
			return text
		}
	}
	return staticSlots[slot]
}

// Marshal encodes the template for caching on the campaign row.
func (t *Template) Marshal() (string, error) {
	b, err := json.Marshal(t)
	if err != nil {
		return "", fmt.Errorf("marshaling script template: %w", err)
	}
	return string(b), nil
}

// Parse decodes a cached template. An empty input returns nil with no error.
func Parse(scriptJSON string) (*Template, error) {
	if strings.TrimSpace(scriptJSON) == "" {
		return nil, nil
	}
	var t Template
	if err := json.Unmarshal([]byte(scriptJSON), &t); err != nil {
		return nil, fmt.Errorf("unmarshaling script template: %w", err)
	}
	if t.Slots == nil {
		t.Slots = make(map[Slot]string)
	}
	return &t, nil
}

// Provider generates a script template for a campaign and lead. The dialog
// engine selects the provider at construction time; failures must degrade
// to the static template, never block a live call.
type Provider interface {
	Generate(ctx context.Context, campaign *models.Campaign, lead *models.Lead) (*Template, error)
}
