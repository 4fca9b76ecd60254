package script

import (
	"context"
	"strings"
	"testing"

	"github.com/dhruv465/Project-Call-sub007/internal/database/models"
)

func TestParseEmptyReturnsNil(t *testing.T) {
	for _, raw := range []string{"", "   "} {
		tmpl, err := Parse(raw)
		if err != nil {
			t.Fatalf("Parse(%q): %v", raw, err)
		}
		if tmpl != nil {
			t.Errorf("Parse(%q) = %+v, want nil", raw, tmpl)
		}
	}
}

func TestParseRoundTrip(t *testing.T) {
	orig := &Template{
		Language: "en",
		Slots: map[Slot]string{
			SlotIntroduction: "Hi!",
			SlotClosing:      "Bye!",
		},
	}
	raw, err := orig.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	parsed, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if parsed.Language != "en" || parsed.Slots[SlotIntroduction] != "Hi!" {
		t.Errorf("parsed = %+v", parsed)
	}
}

func TestParseGarbage(t *testing.T) {
	if _, err := Parse("{not json"); err == nil {
		t.Error("Parse accepted malformed JSON")
	}
}

func TestPromptFallsBackToStaticSlots(t *testing.T) {
	tmpl := &Template{
		Language: "en",
		Slots:    map[Slot]string{SlotIntroduction: "Custom intro."},
	}

	if got := tmpl.Prompt(SlotIntroduction); got != "Custom intro." {
		t.Errorf("Prompt(introduction) = %q", got)
	}
	// Missing and blank slots fall back so the call is never silent.
	if got := tmpl.Prompt(SlotClosing); got != staticSlots[SlotClosing] {
		t.Errorf("Prompt(closing) = %q, want static fallback", got)
	}
	tmpl.Slots[SlotQuestions] = "   "
	if got := tmpl.Prompt(SlotQuestions); got != staticSlots[SlotQuestions] {
		t.Errorf("Prompt(blank questions) = %q, want static fallback", got)
	}

	var nilTmpl *Template
	if got := nilTmpl.Prompt(SlotClosing); got != staticSlots[SlotClosing] {
		t.Errorf("nil template Prompt = %q", got)
	}
}

func TestStaticProviderCustomizesIntroduction(t *testing.T) {
	p := NewStaticProvider()
	campaign := &models.Campaign{Name: "Acme Fiber", Goal: "our new internet plans", Language: "en"}
	lead := &models.Lead{Name: "Pat"}

	tmpl, err := p.Generate(context.Background(), campaign, lead)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	intro := tmpl.Prompt(SlotIntroduction)
	if !strings.Contains(intro, "Acme Fiber") {
		t.Errorf("introduction does not mention campaign: %q", intro)
	}
	if !strings.Contains(intro, "Pat") {
		t.Errorf("introduction does not greet lead: %q", intro)
	}
	for _, slot := range DefaultOrder {
		if tmpl.Prompt(slot) == "" {
			t.Errorf("slot %s is empty", slot)
		}
	}
}

func TestStaticProviderNilParties(t *testing.T) {
	p := NewStaticProvider()
	tmpl, err := p.Generate(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if tmpl.Language != "en" {
		t.Errorf("Language = %q", tmpl.Language)
	}
	if tmpl.Prompt(SlotIntroduction) != staticSlots[SlotIntroduction] {
		t.Errorf("nil campaign should use stock introduction")
	}
}
