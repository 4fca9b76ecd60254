package dialog

import (
	"reflect"
	"testing"

	"github.com/dhruv465/Project-Call-sub007/internal/emotion"
	"github.com/dhruv465/Project-Call-sub007/internal/script"
)

func TestContainsAnyIsCaseInsensitive(t *testing.T) {
	if !containsAny("Please STOP CALLING me right now", optOutPhrases) {
		t.Error("uppercase phrase not matched")
	}
	if containsAny("I am interested, tell me more", transferPhrases) {
		t.Error("false positive on transfer phrases")
	}
}

func TestSlotsRoundTrip(t *testing.T) {
	slots := []script.Slot{script.SlotQuestions, script.SlotClosing}
	raw, err := encodeSlots(slots)
	if err != nil {
		t.Fatalf("encodeSlots: %v", err)
	}
	got, err := decodeSlots(raw)
	if err != nil {
		t.Fatalf("decodeSlots: %v", err)
	}
	if !reflect.DeepEqual(got, slots) {
		t.Errorf("round trip = %v, want %v", got, slots)
	}
}

func TestDecodeSlotsEmpty(t *testing.T) {
	got, err := decodeSlots("")
	if err != nil || got != nil {
		t.Errorf("decodeSlots(\"\") = %v, %v", got, err)
	}
}

func TestDecodeSlotsCorrupt(t *testing.T) {
	if _, err := decodeSlots("{nope"); err == nil {
		t.Error("expected error for corrupt value")
	}
}

func TestReorderSlots(t *testing.T) {
	order := []script.Slot{
		script.SlotQuestions,
		script.SlotValueProposition,
		script.SlotObjectionHandling,
		script.SlotClosing,
	}

	tests := []struct {
		name string
		sig  emotion.Signal
		want []script.Slot
	}{
		{
			name: "neutral keeps order",
			sig:  emotion.Neutral(),
			want: order,
		},
		{
			name: "anger pulls objection handling",
			sig:  emotion.Signal{Label: "anger", Confidence: 0.8},
			want: []script.Slot{
				script.SlotObjectionHandling,
				script.SlotQuestions,
				script.SlotValueProposition,
				script.SlotClosing,
			},
		},
		{
			name: "happiness pulls value proposition",
			sig:  emotion.Signal{Label: "happiness", Confidence: 0.8},
			want: []script.Slot{
				script.SlotValueProposition,
				script.SlotQuestions,
				script.SlotObjectionHandling,
				script.SlotClosing,
			},
		},
		{
			name: "zero confidence is no signal",
			sig:  emotion.Signal{Label: "anger", Confidence: 0},
			want: order,
		},
		{
			name: "unmapped label keeps order",
			sig:  emotion.Signal{Label: "surprise", Confidence: 0.9},
			want: order,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			in := append([]script.Slot(nil), order...)
			got := reorderSlots(in, tc.sig)
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("reorderSlots = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestReorderSlotsDoesNotMoveFront(t *testing.T) {
	in := []script.Slot{script.SlotObjectionHandling, script.SlotClosing}
	got := reorderSlots(in, emotion.Signal{Label: "anger", Confidence: 0.9})
	if !reflect.DeepEqual(got, in) {
		t.Errorf("reorderSlots = %v, want unchanged", got)
	}
}

func TestReorderSlotsMissingTarget(t *testing.T) {
	in := []script.Slot{script.SlotQuestions, script.SlotClosing}
	got := reorderSlots(in, emotion.Signal{Label: "anger", Confidence: 0.9})
	if !reflect.DeepEqual(got, in) {
		t.Errorf("reorderSlots = %v, want unchanged when target absent", got)
	}
}

func TestPopSlot(t *testing.T) {
	slot, rest := popSlot([]script.Slot{script.SlotQuestions, script.SlotClosing})
	if slot != script.SlotQuestions || len(rest) != 1 {
		t.Errorf("popSlot = %q, %v", slot, rest)
	}

	slot, rest = popSlot(nil)
	if slot != script.SlotClosing || rest != nil {
		t.Errorf("popSlot(nil) = %q, %v, want closing", slot, rest)
	}
}
