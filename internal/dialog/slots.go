package dialog

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dhruv465/Project-Call-sub007/internal/emotion"
	"github.com/dhruv465/Project-Call-sub007/internal/script"
)

// optOutPhrases end the call with an opt_out outcome when they appear in
// the callee's speech.
var optOutPhrases = []string{
	"not interested",
	"remove me",
	"stop calling",
	"take me off",
}

// transferPhrases hand the call to a human agent when the campaign has a
// transfer number configured.
var transferPhrases = []string{
	"speak to a human",
	"talk to a person",
	"speak to an agent",
	"representative",
}

func containsAny(text string, phrases []string) bool {
	lowered := strings.ToLower(text)
	for _, p := range phrases {
		if strings.Contains(lowered, p) {
			return true
		}
	}
	return false
}

// encodeSlots serializes the remaining script slots for storage on the
// call session.
func encodeSlots(slots []script.Slot) (string, error) {
	raw, err := json.Marshal(slots)
	if err != nil {
		return "", fmt.Errorf("encoding pending slots: %w", err)
	}
	return string(raw), nil
}

// decodeSlots restores the remaining script slots from a session row. An
// empty value means the script is exhausted.
func decodeSlots(raw string) ([]script.Slot, error) {
	if raw == "" {
		return nil, nil
	}
	var slots []script.Slot
	if err := json.Unmarshal([]byte(raw), &slots); err != nil {
		return nil, fmt.Errorf("decoding pending slots: %w", err)
	}
	return slots, nil
}

// reorderSlots moves the slot best matching the detected emotion to the
// front of the queue. Negative signals surface objection handling,
// positive signals surface the value proposition. The closing slot never
// moves, it always plays last.
func reorderSlots(slots []script.Slot, sig emotion.Signal) []script.Slot {
	if !sig.HasSignal() {
		return slots
	}
	var want script.Slot
	switch {
	case sig.Negative():
		want = script.SlotObjectionHandling
	case sig.Positive():
		want = script.SlotValueProposition
	default:
		return slots
	}
	for i, s := range slots {
		if s != want || i == 0 {
			continue
		}
		reordered := make([]script.Slot, 0, len(slots))
		reordered = append(reordered, want)
		reordered = append(reordered, slots[:i]...)
		reordered = append(reordered, slots[i+1:]...)
		return reordered
	}
	return slots
}

// popSlot removes and returns the next slot to speak. When the queue is
// empty it returns the closing slot so the call always ends politely.
func popSlot(slots []script.Slot) (script.Slot, []script.Slot) {
	if len(slots) == 0 {
		return script.SlotClosing, nil
	}
	return slots[0], slots[1:]
}
