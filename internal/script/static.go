package script

import (
	"context"
	"strings"

	"github.com/dhruv465/Project-Call-sub007/internal/database/models"
)

// staticSlots is the built-in fallback script. It is deliberately generic:
// campaign name and goal are spliced in by the static provider, and it is
// the floor every call can speak even with the script service down.
var staticSlots = map[Slot]string{
	SlotIntroduction:      "Hello! This is an automated call from our team. We are reaching out about an offer we believe may interest you. Do you have a moment to talk?",
	SlotQuestions:         "To make sure this is relevant for you, may I ask what matters most to you in this area right now?",
	SlotValueProposition:  "Thanks for sharing that. Our customers typically save both time and money, and getting started takes only a few minutes with no commitment.",
	SlotObjectionHandling: "I completely understand the hesitation. There is no obligation at this stage, and you can opt out at any time. Would it help if I explained the main benefit in a sentence?",
	SlotClosing:           "Thank you so much for your time today. We will send you the details by text message. Have a wonderful day, goodbye!",
}

// StaticProvider returns the fixed fallback script, lightly customized with
// campaign fields. It is both the "mock" strategy for development and the
// fallback when the live generator is unavailable.
type StaticProvider struct{}

// NewStaticProvider creates a StaticProvider.
func NewStaticProvider() *StaticProvider {
	return &StaticProvider{}
}

// Generate builds a template from the static slots. If the campaign names
// itself or a goal, the introduction mentions them.
func (p *StaticProvider) Generate(_ context.Context, campaign *models.Campaign, lead *models.Lead) (*Template, error) {
	slots := make(map[Slot]string, len(staticSlots))
	for slot, text := range staticSlots {
		slots[slot] = text
	}

	if campaign != nil && campaign.Name != "" {
		intro := "Hello"
		if lead != nil && lead.Name != "" {
			intro += " " + lead.Name
		}
		intro += "! This is an automated call on behalf of " + campaign.Name + "."
		if campaign.Goal != "" {
			intro += " We are calling about " + strings.TrimRight(campaign.Goal, ".") + "."
		}
		intro += " Do you have a moment to talk?"
		slots[SlotIntroduction] = intro
	}

	lang := "en"
	if campaign != nil && campaign.Language != "" {
		lang = campaign.Language
	}

	return &Template{Language: lang, Slots: slots}, nil
}

var _ Provider = (*StaticProvider)(nil)
