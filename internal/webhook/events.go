// Package webhook receives carrier callbacks, verifies their signatures
// and translates the form payloads into typed call events.
package webhook

import (
	"errors"
	"net/url"
	"strconv"
	"strings"
)

// ErrMalformedEvent reports a callback payload that cannot be mapped onto
// a typed event, usually a missing call reference.
var ErrMalformedEvent = errors.New("malformed webhook event")

// CallInitiated fires when the callee answers and the carrier requests the
// first markup document.
type CallInitiated struct {
	Ref  string
	From string
	To   string
}

// SpeechGathered carries a completed speech capture with the carrier's
// transcription confidence in [0,1].
type SpeechGathered struct {
	Ref        string
	Text       string
	Confidence float64
}

// DigitsGathered carries keypad input captured during a gather.
type DigitsGathered struct {
	Ref    string
	Digits string
}

// RecordingComplete carries the URL of a finished call recording.
type RecordingComplete struct {
	Ref string
	URL string
}

// StatusChanged carries a lifecycle status update from the carrier, such
// as completed, busy, failed, no-answer or canceled.
type StatusChanged struct {
	Ref    string
	Status string
}

// ParseInitiated maps an answer callback onto a CallInitiated event.
func ParseInitiated(form url.Values) (CallInitiated, error) {
	ref := form.Get("CallSid")
	if ref == "" {
		return CallInitiated{}, ErrMalformedEvent
	}
	return CallInitiated{
		Ref:  ref,
		From: form.Get("From"),
		To:   form.Get("To"),
	}, nil
}

// ParseGather maps a gather callback onto either a SpeechGathered or a
// DigitsGathered event depending on which input the carrier captured. A
// capture with neither speech nor digits is returned as SpeechGathered
// with empty text, which the dialog layer treats as a silent turn.
func ParseGather(form url.Values) (any, error) {
	ref := form.Get("CallSid")
	if ref == "" {
		return nil, ErrMalformedEvent
	}
	if digits := form.Get("Digits"); digits != "" {
		return DigitsGathered{Ref: ref, Digits: digits}, nil
	}
	text := strings.TrimSpace(form.Get("SpeechResult"))
	confidence := 0.0
	if raw := form.Get("Confidence"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed < 0 || parsed > 1 {
			return nil, ErrMalformedEvent
		}
		confidence = parsed
	}
	return SpeechGathered{Ref: ref, Text: text, Confidence: confidence}, nil
}

// ParseRecording maps a recording callback onto a RecordingComplete event.
func ParseRecording(form url.Values) (RecordingComplete, error) {
	ref := form.Get("CallSid")
	if ref == "" {
		return RecordingComplete{}, ErrMalformedEvent
	}
	return RecordingComplete{Ref: ref, URL: form.Get("RecordingUrl")}, nil
}

// ParseStatus maps a status callback onto a StatusChanged event.
func ParseStatus(form url.Values) (StatusChanged, error) {
	ref := form.Get("CallSid")
	if ref == "" {
		return StatusChanged{}, ErrMalformedEvent
	}
	status := form.Get("CallStatus")
	if status == "" {
		return StatusChanged{}, ErrMalformedEvent
	}
	return StatusChanged{Ref: ref, Status: status}, nil
}
