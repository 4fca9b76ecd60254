package dialog

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dhruv465/Project-Call-sub007/internal/database/models"
	"github.com/dhruv465/Project-Call-sub007/internal/emotion"
	"github.com/dhruv465/Project-Call-sub007/internal/script"
	"github.com/dhruv465/Project-Call-sub007/internal/session"
	"github.com/dhruv465/Project-Call-sub007/internal/synth"
	"github.com/dhruv465/Project-Call-sub007/internal/webhook"
)

// Spoken fallbacks for turns that do not come from the campaign script.
const (
	clarificationPrompt = "Sorry, I didn't catch that. Could you say that again?"
	goodbyePrompt       = "Thanks for your time. Goodbye."
	optOutPrompt        = "Understood, we will remove you from our list. Sorry to have bothered you, goodbye."
	transferPrompt      = "Of course, connecting you with one of our team members now."
)

// Carrier lifecycle statuses that close the session.
var terminalStatuses = map[string]bool{
	"completed": true,
	"busy":      true,
	"failed":    true,
	"no-answer": true,
	"canceled":  true,
}

// HandleInitiated processes an answered call. The first invocation moves
// the session to the greeting state, speaks the script introduction and
// opens a gather. A replayed callback re-renders the same greeting without
// touching the session.
func (e *Engine) HandleInitiated(ctx context.Context, ev webhook.CallInitiated) (Action, error) {
	sess, created, err := e.store.GetOrCreate(ctx, ev.Ref, models.CallSession{
		State:    models.StateInitiated,
		Language: "en",
	})
	if err != nil {
		return Action{}, err
	}

	if !created && sess.State != models.StateInitiated {
		return e.replayGreeting(ctx, sess)
	}

	lead, campaign := e.lookupParties(ctx, sess)
	tmpl, err := e.loadScript(ctx, campaign, lead)
	if err != nil {
		e.logger.Error("script load failed", slog.String("call_ref", ev.Ref), slog.Any("error", err))
		tmpl = &script.Template{Language: sess.Language}
	}

	language := sess.Language
	if campaign != nil && campaign.Language != "" {
		language = campaign.Language
	}
	pending, err := encodeSlots(script.DefaultOrder[1:])
	if err != nil {
		return e.failCall(ctx, ev.Ref, err)
	}

	greeting := tmpl.Prompt(script.SlotIntroduction)
	action := Action{Kind: KindSpeak, Prompt: greeting, GatherAfter: true, Language: language}

	_, err = e.store.Update(ctx, ev.Ref, func(sess *models.CallSession) (*models.ConversationTurn, error) {
		sess.State = models.StateGreeting
		sess.Language = language
		sess.PendingSlots = pending
		sess.TurnIndex = 1
		action.Assets, action.Direct = e.render(ctx, sess, greeting)
		return &models.ConversationTurn{
			CallRef:   sess.CallRef,
			TurnIndex: 0,
			Prompt:    greeting,
			Action:    "speak",
		}, nil
	})
	if err != nil {
		return Action{}, err
	}
	return action, nil
}

// HandleSpeech advances the conversation by one turn. It is accepted in
// the greeting and gathering states; anywhere else the event is stale and
// the call is ended.
func (e *Engine) HandleSpeech(ctx context.Context, ev webhook.SpeechGathered) (Action, error) {
	current, err := e.store.Get(ctx, ev.Ref)
	if err != nil {
		return Action{}, err
	}
	lead, campaign := e.lookupParties(ctx, current)
	tmpl, err := e.loadScript(ctx, campaign, lead)
	if err != nil {
		tmpl = &script.Template{Language: current.Language}
	}
	sig := emotion.Neutral()
	if ev.Text != "" && ev.Confidence >= e.opts.MinGatherConfidence {
		sig = e.emotions.Classify(ctx, ev.Text)
	}

	action := Action{Kind: KindHangup}
	_, err = e.store.Update(ctx, ev.Ref, func(sess *models.CallSession) (*models.ConversationTurn, error) {
		action.Language = sess.Language
		if models.TerminalState(sess.State) {
			return nil, nil
		}
		if sess.State != models.StateGreeting && sess.State != models.StateGathering {
			e.logger.Warn("speech event out of order",
				slog.String("call_ref", ev.Ref), slog.String("state", sess.State))
			return nil, nil
		}
		sess.State = models.StateProcessing

		if ev.Text == "" || ev.Confidence < e.opts.MinGatherConfidence {
			return e.applyRetry(ctx, sess, ev, &action), nil
		}
		sess.GatherRetries = 0

		if containsAny(ev.Text, optOutPhrases) {
			return e.applyOptOut(ctx, sess, ev, &action), nil
		}
		if campaign != nil && campaign.TransferNumber != "" && containsAny(ev.Text, transferPhrases) {
			return e.applyTransfer(ctx, sess, ev, campaign.TransferNumber, &action), nil
		}
		return e.applyTurn(ctx, sess, ev, tmpl, sig, &action)
	})
	if err != nil {
		return Action{}, err
	}
	return action, nil
}

// HandleDigits treats keypad input as a spoken turn with full confidence.
func (e *Engine) HandleDigits(ctx context.Context, ev webhook.DigitsGathered) (Action, error) {
	return e.HandleSpeech(ctx, webhook.SpeechGathered{Ref: ev.Ref, Text: ev.Digits, Confidence: 1})
}

// HandleRecording stores the recording URL on the session.
func (e *Engine) HandleRecording(ctx context.Context, ev webhook.RecordingComplete) error {
	_, err := e.store.Update(ctx, ev.Ref, func(sess *models.CallSession) (*models.ConversationTurn, error) {
		sess.Recording = true
		sess.RecordingURL = ev.URL
		return nil, nil
	})
	return err
}

// HandleStatus applies carrier lifecycle updates. Only terminal statuses
// change the session; they complete the call with the carrier status as
// the outcome. A call that already recorded an outcome keeps it.
func (e *Engine) HandleStatus(ctx context.Context, ev webhook.StatusChanged) error {
	if !terminalStatuses[ev.Status] {
		return nil
	}
	_, err := e.store.Update(ctx, ev.Ref, func(sess *models.CallSession) (*models.ConversationTurn, error) {
		if models.TerminalState(sess.State) {
			return nil, nil
		}
		sess.State = models.StateCompleted
		if sess.Outcome == "" {
			sess.Outcome = ev.Status
		}
		return nil, nil
	})
	if errors.Is(err, session.ErrSessionNotFound) {
		return nil
	}
	return err
}

func (e *Engine) applyRetry(ctx context.Context, sess *models.CallSession, ev webhook.SpeechGathered, action *Action) *models.ConversationTurn {
	sess.GatherRetries++
	turn := &models.ConversationTurn{
		CallRef:   sess.CallRef,
		TurnIndex: sess.TurnIndex,
		Speech:    ev.Text,
	}
	sess.TurnIndex++
	if sess.GatherRetries >= e.opts.MaxGatherRetries {
		sess.State = models.StateCompleted
		sess.Outcome = OutcomeNoResponse
		turn.Prompt = goodbyePrompt
		turn.Action = "hangup"
		action.Kind = KindSpeak
		action.Prompt = goodbyePrompt
		action.Assets, action.Direct = e.render(ctx, sess, goodbyePrompt)
		return turn
	}
	sess.State = models.StateGathering
	turn.Prompt = clarificationPrompt
	turn.Action = "reprompt"
	action.Kind = KindGather
	action.Prompt = clarificationPrompt
	return turn
}

func (e *Engine) applyOptOut(ctx context.Context, sess *models.CallSession, ev webhook.SpeechGathered, action *Action) *models.ConversationTurn {
	sess.State = models.StateCompleted
	sess.Outcome = OutcomeOptOut
	turn := &models.ConversationTurn{
		CallRef:   sess.CallRef,
		TurnIndex: sess.TurnIndex,
		Speech:    ev.Text,
		Prompt:    optOutPrompt,
		Action:    "opt_out",
	}
	sess.TurnIndex++
	action.Kind = KindSpeak
	action.Prompt = optOutPrompt
	action.Assets, action.Direct = e.render(ctx, sess, optOutPrompt)
	return turn
}

func (e *Engine) applyTransfer(ctx context.Context, sess *models.CallSession, ev webhook.SpeechGathered, number string, action *Action) *models.ConversationTurn {
	sess.State = models.StateTransferring
	sess.Outcome = OutcomeTransferred
	turn := &models.ConversationTurn{
		CallRef:   sess.CallRef,
		TurnIndex: sess.TurnIndex,
		Speech:    ev.Text,
		Prompt:    transferPrompt,
		Action:    "transfer",
	}
	sess.TurnIndex++
	action.Kind = KindTransfer
	action.Prompt = transferPrompt
	action.TransferTo = number
	action.Assets, action.Direct = e.render(ctx, sess, transferPrompt)
	return turn
}

func (e *Engine) applyTurn(ctx context.Context, sess *models.CallSession, ev webhook.SpeechGathered, tmpl *script.Template, sig emotion.Signal, action *Action) (*models.ConversationTurn, error) {
	slots, err := decodeSlots(sess.PendingSlots)
	if err != nil {
		sess.State = models.StateFailed
		sess.Outcome = OutcomeFailed
		action.Kind = KindHangup
		e.logger.Error("corrupt pending slots",
			slog.String("call_ref", sess.CallRef), slog.Any("error", err))
		return nil, nil
	}
	slots = reorderSlots(slots, sig)
	slot, rest := popSlot(slots)
	if sess.TurnIndex >= e.opts.MaxTurns {
		slot, rest = script.SlotClosing, nil
	}
	pending, err := encodeSlots(rest)
	if err != nil {
		return nil, err
	}

	prompt := tmpl.Prompt(slot)
	turn := &models.ConversationTurn{
		CallRef:           sess.CallRef,
		TurnIndex:         sess.TurnIndex,
		Speech:            ev.Text,
		Emotion:           sig.Label,
		EmotionConfidence: sig.Confidence,
		Prompt:            prompt,
		Action:            "speak",
	}
	sess.TurnIndex++
	sess.PendingSlots = pending

	action.Kind = KindSpeak
	action.Prompt = prompt
	if slot == script.SlotClosing {
		sess.State = models.StateCompleted
		sess.Outcome = OutcomeCompleted
		turn.Action = "close"
	} else {
		sess.State = models.StateGathering
		action.GatherAfter = true
	}
	action.Assets, action.Direct = e.render(ctx, sess, prompt)
	return turn, nil
}

// render synthesizes a prompt, falling back to carrier text-to-speech when
// every provider is down.
func (e *Engine) render(ctx context.Context, sess *models.CallSession, prompt string) ([]models.AudioAsset, bool) {
	assets, err := e.synth.Synthesize(ctx, prompt, sess.Language, e.opts.Voice)
	if err != nil {
		if !errors.Is(err, synth.ErrSynthesisUnavailable) {
			e.logger.Error("synthesis failed",
				slog.String("call_ref", sess.CallRef), slog.Any("error", err))
		}
		sess.SynthFailures++
		return nil, true
	}
	return assets, false
}

func (e *Engine) replayGreeting(ctx context.Context, sess *models.CallSession) (Action, error) {
	if models.TerminalState(sess.State) || sess.State == models.StateTransferring {
		return Action{Kind: KindHangup, Language: sess.Language}, nil
	}
	turns, err := e.store.Turns(ctx, sess.CallRef)
	if err != nil {
		return Action{}, err
	}
	greeting := ""
	for _, t := range turns {
		if t.TurnIndex == 0 {
			greeting = t.Prompt
			break
		}
	}
	if greeting == "" {
		return Action{Kind: KindHangup, Language: sess.Language}, nil
	}
	action := Action{Kind: KindSpeak, Prompt: greeting, GatherAfter: true, Language: sess.Language}
	if _, err := e.store.Update(ctx, sess.CallRef, func(s *models.CallSession) (*models.ConversationTurn, error) {
		action.Assets, action.Direct = e.render(ctx, s, greeting)
		return nil, nil
	}); err != nil {
		return Action{}, err
	}
	return action, nil
}

func (e *Engine) lookupParties(ctx context.Context, sess *models.CallSession) (*models.Lead, *models.Campaign) {
	var lead *models.Lead
	var campaign *models.Campaign
	if sess.LeadID != 0 {
		l, err := e.leads.GetByID(ctx, sess.LeadID)
		if err != nil {
			e.logger.Warn("lead lookup failed", slog.Int64("lead_id", sess.LeadID), slog.Any("error", err))
		} else {
			lead = l
		}
	}
	if sess.CampaignID != 0 {
		c, err := e.campaigns.GetByID(ctx, sess.CampaignID)
		if err != nil {
			e.logger.Warn("campaign lookup failed", slog.Int64("campaign_id", sess.CampaignID), slog.Any("error", err))
		} else {
			campaign = c
		}
	}
	return lead, campaign
}

// loadScript returns the campaign's cached script, generating and caching
// one on first use. Campaignless calls get the stock script.
func (e *Engine) loadScript(ctx context.Context, campaign *models.Campaign, lead *models.Lead) (*script.Template, error) {
	if campaign != nil {
		tmpl, err := script.Parse(campaign.ScriptJSON)
		if err != nil {
			return nil, err
		}
		if tmpl != nil {
			return tmpl, nil
		}
	}
	tmpl, err := e.scripts.Generate(ctx, campaign, lead)
	if err != nil {
		return nil, err
	}
	if campaign != nil {
		raw, err := tmpl.Marshal()
		if err == nil {
			if err := e.campaigns.SetScript(ctx, campaign.ID, raw); err != nil {
				e.logger.Warn("script cache write failed",
					slog.Int64("campaign_id", campaign.ID), slog.Any("error", err))
			}
		}
	}
	return tmpl, nil
}

func (e *Engine) failCall(ctx context.Context, ref string, cause error) (Action, error) {
	e.logger.Error("call failed", slog.String("call_ref", ref), slog.Any("error", cause))
	_, err := e.store.Update(ctx, ref, func(sess *models.CallSession) (*models.ConversationTurn, error) {
		sess.State = models.StateFailed
		sess.Outcome = OutcomeFailed
		return nil, nil
	})
	if err != nil {
		return Action{}, err
	}
	return Action{Kind: KindHangup}, nil
}
