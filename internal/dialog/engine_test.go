package dialog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/dhruv465/Project-Call-sub007/internal/database"
	"github.com/dhruv465/Project-Call-sub007/internal/database/models"
	"github.com/dhruv465/Project-Call-sub007/internal/emotion"
	"github.com/dhruv465/Project-Call-sub007/internal/script"
	"github.com/dhruv465/Project-Call-sub007/internal/session"
	"github.com/dhruv465/Project-Call-sub007/internal/synth"
	"github.com/dhruv465/Project-Call-sub007/internal/webhook"
)

// fakeSynth fabricates one asset per call, or fails like a full outage.
type fakeSynth struct {
	fail  bool
	calls int
}

func (f *fakeSynth) Synthesize(_ context.Context, text, language, voice string) ([]models.AudioAsset, error) {
	f.calls++
	if f.fail {
		return nil, fmt.Errorf("rendering prompt: %w", synth.ErrSynthesisUnavailable)
	}
	return []models.AudioAsset{{Hash: synth.ContentHash(text, voice, language), Provider: "fake"}}, nil
}

// stubClassifier returns a fixed signal.
type stubClassifier struct {
	signal emotion.Signal
}

func (s *stubClassifier) Classify(context.Context, string) emotion.Signal {
	return s.signal
}

type testEnv struct {
	engine     *Engine
	store      *session.Store
	leads      database.LeadRepository
	campaigns  database.CampaignRepository
	synth      *fakeSynth
	classifier *stubClassifier
	opts       Options
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()
	db, err := database.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := session.NewStore(
		database.NewCallSessionRepository(db),
		database.NewConversationTurnRepository(db),
		logger,
	)
	leads := database.NewLeadRepository(db)
	campaigns := database.NewCampaignRepository(db)

	if opts.MinGatherConfidence == 0 {
		opts.MinGatherConfidence = 0.5
	}
	if opts.MaxGatherRetries == 0 {
		opts.MaxGatherRetries = 3
	}
	if opts.MaxTurns == 0 {
		opts.MaxTurns = 20
	}
	if opts.Voice == "" {
		opts.Voice = "v1"
	}

	fs := &fakeSynth{}
	classifier := &stubClassifier{signal: emotion.Neutral()}
	engine := NewEngine(store, leads, campaigns, script.NewStaticProvider(), classifier, fs, opts, logger)

	return &testEnv{
		engine:     engine,
		store:      store,
		leads:      leads,
		campaigns:  campaigns,
		synth:      fs,
		classifier: classifier,
		opts:       opts,
	}
}

func (env *testEnv) answer(t *testing.T, ref string) Action {
	t.Helper()
	action, err := env.engine.HandleInitiated(context.Background(), webhook.CallInitiated{Ref: ref})
	if err != nil {
		t.Fatalf("HandleInitiated(%s): %v", ref, err)
	}
	return action
}

func (env *testEnv) speak(t *testing.T, ref, text string, confidence float64) Action {
	t.Helper()
	action, err := env.engine.HandleSpeech(context.Background(), webhook.SpeechGathered{
		Ref: ref, Text: text, Confidence: confidence,
	})
	if err != nil {
		t.Fatalf("HandleSpeech(%s, %q): %v", ref, text, err)
	}
	return action
}

func (env *testEnv) session(t *testing.T, ref string) *models.CallSession {
	t.Helper()
	sess, err := env.store.Get(context.Background(), ref)
	if err != nil {
		t.Fatalf("Get(%s): %v", ref, err)
	}
	return sess
}

func TestAnswerSpeaksGreetingAndGathers(t *testing.T) {
	env := newTestEnv(t, Options{})

	action := env.answer(t, "CA1")
	if action.Kind != KindSpeak {
		t.Fatalf("Kind = %q, want speak", action.Kind)
	}
	if !action.GatherAfter {
		t.Error("greeting must open a gather")
	}
	if action.Prompt == "" || len(action.Assets) == 0 {
		t.Errorf("action missing prompt or assets: %+v", action)
	}

	sess := env.session(t, "CA1")
	if sess.State != models.StateGreeting {
		t.Errorf("State = %q, want greeting", sess.State)
	}
	if sess.TurnIndex != 1 {
		t.Errorf("TurnIndex = %d, want 1", sess.TurnIndex)
	}

	turns, err := env.store.Turns(context.Background(), "CA1")
	if err != nil {
		t.Fatalf("Turns: %v", err)
	}
	if len(turns) != 1 || turns[0].TurnIndex != 0 || turns[0].Prompt != action.Prompt {
		t.Errorf("turn history = %+v", turns)
	}
}

func TestAnswerReplayIsIdempotent(t *testing.T) {
	env := newTestEnv(t, Options{})

	first := env.answer(t, "CA1")
	second := env.answer(t, "CA1")

	if second.Kind != KindSpeak || second.Prompt != first.Prompt {
		t.Errorf("replay action differs: %+v vs %+v", second, first)
	}

	sess := env.session(t, "CA1")
	if sess.TurnIndex != 1 {
		t.Errorf("replay advanced TurnIndex to %d", sess.TurnIndex)
	}
	turns, _ := env.store.Turns(context.Background(), "CA1")
	if len(turns) != 1 {
		t.Errorf("replay duplicated turns: %d", len(turns))
	}
}

func TestReplayOutagePersistsSynthFailures(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.answer(t, "CA1")

	env.synth.fail = true
	action := env.answer(t, "CA1")
	if !action.Direct {
		t.Error("replay should fall back to direct speech")
	}
	if !action.GatherAfter {
		t.Error("replay outage must not change the conversation shape")
	}
	if got := env.session(t, "CA1").SynthFailures; got != 1 {
		t.Errorf("SynthFailures = %d, want 1", got)
	}
}

func TestSpeechAdvancesThroughScript(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.answer(t, "CA1")

	action := env.speak(t, "CA1", "sure, I have a moment", 0.9)
	if action.Kind != KindSpeak || !action.GatherAfter {
		t.Fatalf("action = %+v, want speak with gather", action)
	}

	sess := env.session(t, "CA1")
	if sess.State != models.StateGathering {
		t.Errorf("State = %q, want gathering", sess.State)
	}
	if sess.TurnIndex != 2 {
		t.Errorf("TurnIndex = %d, want 2", sess.TurnIndex)
	}
	if sess.GatherRetries != 0 {
		t.Errorf("GatherRetries = %d", sess.GatherRetries)
	}
}

func TestScriptExhaustionClosesCall(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.answer(t, "CA1")

	// questions, value_proposition, objection_handling, then closing.
	var last Action
	for i := 0; i < 4; i++ {
		last = env.speak(t, "CA1", fmt.Sprintf("answer number %d", i), 0.9)
	}

	if last.Kind != KindSpeak || last.GatherAfter {
		t.Errorf("closing action = %+v, want speak without gather", last)
	}
	sess := env.session(t, "CA1")
	if sess.State != models.StateCompleted {
		t.Errorf("State = %q, want completed", sess.State)
	}
	if sess.Outcome != OutcomeCompleted {
		t.Errorf("Outcome = %q, want completed", sess.Outcome)
	}
	if !sess.Archived {
		t.Error("completed session not archived")
	}
}

func TestLowConfidenceReprompts(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.answer(t, "CA1")

	action := env.speak(t, "CA1", "mumble", 0.2)
	if action.Kind != KindGather {
		t.Fatalf("Kind = %q, want gather re-prompt", action.Kind)
	}
	if !strings.Contains(action.Prompt, "again") {
		t.Errorf("re-prompt = %q", action.Prompt)
	}
	if got := env.session(t, "CA1").GatherRetries; got != 1 {
		t.Errorf("GatherRetries = %d, want 1", got)
	}

	// Silence counts the same as unintelligible speech.
	env.speak(t, "CA1", "", 0)
	if got := env.session(t, "CA1").GatherRetries; got != 2 {
		t.Errorf("GatherRetries = %d, want 2", got)
	}

	// With the default ceiling of 3, the third consecutive failure ends
	// the call; it must never re-prompt a fourth time.
	final := env.speak(t, "CA1", "", 0)
	if final.Kind != KindSpeak || final.GatherAfter {
		t.Errorf("final action = %+v, want goodbye without gather", final)
	}
	sess := env.session(t, "CA1")
	if sess.State != models.StateCompleted || sess.Outcome != OutcomeNoResponse {
		t.Errorf("session = state %q outcome %q, want completed/no_response", sess.State, sess.Outcome)
	}
}

func TestIntelligibleSpeechResetsRetries(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.answer(t, "CA1")

	env.speak(t, "CA1", "", 0)
	if got := env.session(t, "CA1").GatherRetries; got != 1 {
		t.Fatalf("GatherRetries = %d, want 1", got)
	}

	env.speak(t, "CA1", "yes I can hear you", 0.9)
	if got := env.session(t, "CA1").GatherRetries; got != 0 {
		t.Errorf("GatherRetries = %d, want 0 after good speech", got)
	}
}

func TestOptOutEndsCallPolitely(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.answer(t, "CA1")

	action := env.speak(t, "CA1", "please stop calling me", 0.95)
	if action.Kind != KindSpeak || action.GatherAfter {
		t.Errorf("action = %+v, want farewell without gather", action)
	}

	sess := env.session(t, "CA1")
	if sess.State != models.StateCompleted || sess.Outcome != OutcomeOptOut {
		t.Errorf("session = state %q outcome %q, want completed/opt_out", sess.State, sess.Outcome)
	}
}

func TestNegativeEmotionSurfacesObjectionHandling(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.classifier.signal = emotion.Signal{Label: "anger", Confidence: 0.9}
	env.answer(t, "CA1")

	action := env.speak(t, "CA1", "this is really annoying", 0.9)

	// The objection handling slot jumps the queue.
	tmpl, _ := script.NewStaticProvider().Generate(context.Background(), nil, nil)
	if want := tmpl.Prompt(script.SlotObjectionHandling); action.Prompt != want {
		t.Errorf("Prompt = %q, want objection handling first", action.Prompt)
	}
}

func TestPositiveEmotionSurfacesValueProposition(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.classifier.signal = emotion.Signal{Label: "happiness", Confidence: 0.8}
	env.answer(t, "CA1")

	action := env.speak(t, "CA1", "oh that sounds great", 0.9)

	tmpl, _ := script.NewStaticProvider().Generate(context.Background(), nil, nil)
	if want := tmpl.Prompt(script.SlotValueProposition); action.Prompt != want {
		t.Errorf("Prompt = %q, want value proposition first", action.Prompt)
	}
}

func TestZeroConfidenceEmotionDoesNotBranch(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.classifier.signal = emotion.Signal{Label: "anger", Confidence: 0}
	env.answer(t, "CA1")

	action := env.speak(t, "CA1", "whatever you say", 0.9)

	// No signal: the default order holds and questions comes next.
	tmpl, _ := script.NewStaticProvider().Generate(context.Background(), nil, nil)
	if want := tmpl.Prompt(script.SlotQuestions); action.Prompt != want {
		t.Errorf("Prompt = %q, want questions slot", action.Prompt)
	}
}

func TestMaxTurnsForcesClosing(t *testing.T) {
	env := newTestEnv(t, Options{MaxTurns: 1})
	env.answer(t, "CA1")

	action := env.speak(t, "CA1", "tell me absolutely everything", 0.9)

	tmpl, _ := script.NewStaticProvider().Generate(context.Background(), nil, nil)
	if want := tmpl.Prompt(script.SlotClosing); action.Prompt != want {
		t.Errorf("Prompt = %q, want closing slot", action.Prompt)
	}
	sess := env.session(t, "CA1")
	if sess.State != models.StateCompleted {
		t.Errorf("State = %q, want completed", sess.State)
	}
}

func TestSynthesisOutageDegradesToDirectSpeech(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.synth.fail = true

	action := env.answer(t, "CA1")
	if !action.Direct {
		t.Error("action should fall back to direct speech")
	}
	if len(action.Assets) != 0 {
		t.Errorf("assets = %v, want none", action.Assets)
	}
	if action.Prompt == "" {
		t.Error("direct fallback lost the prompt text")
	}
	if !action.GatherAfter {
		t.Error("outage must not change the conversation shape")
	}
	if got := env.session(t, "CA1").SynthFailures; got != 1 {
		t.Errorf("SynthFailures = %d, want 1", got)
	}
}

func TestTransferRequest(t *testing.T) {
	env := newTestEnv(t, Options{})
	campaign := &models.Campaign{Name: "Promo", Language: "en", TransferNumber: "+15550107"}
	if err := env.campaigns.Create(context.Background(), campaign); err != nil {
		t.Fatalf("Create campaign: %v", err)
	}
	if _, _, err := env.store.GetOrCreate(context.Background(), "CA1", models.CallSession{
		CampaignID: campaign.ID,
	}); err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	env.answer(t, "CA1")

	action := env.speak(t, "CA1", "I would like to speak to an agent please", 0.9)
	if action.Kind != KindTransfer {
		t.Fatalf("Kind = %q, want transfer", action.Kind)
	}
	if action.TransferTo != "+15550107" {
		t.Errorf("TransferTo = %q", action.TransferTo)
	}

	sess := env.session(t, "CA1")
	if sess.State != models.StateTransferring || sess.Outcome != OutcomeTransferred {
		t.Errorf("session = state %q outcome %q", sess.State, sess.Outcome)
	}
}

func TestCallFlowEndToEnd(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.classifier.signal = emotion.Signal{Label: "interested", Confidence: 0.8}

	greeting := env.answer(t, "CA1")
	if greeting.Kind != KindSpeak || !greeting.GatherAfter {
		t.Fatalf("greeting = %+v", greeting)
	}

	reply := env.speak(t, "CA1", "yes I'm interested", 0.92)
	tmpl, _ := script.NewStaticProvider().Generate(context.Background(), nil, nil)
	if want := tmpl.Prompt(script.SlotValueProposition); reply.Prompt != want {
		t.Errorf("interested callee should hear the value proposition, got %q", reply.Prompt)
	}

	// The carrier hangs up mid-conversation.
	if err := env.engine.HandleStatus(context.Background(), webhook.StatusChanged{Ref: "CA1", Status: "completed"}); err != nil {
		t.Fatalf("HandleStatus: %v", err)
	}
	sess := env.session(t, "CA1")
	if sess.State != models.StateCompleted || sess.Outcome != "completed" || !sess.Archived {
		t.Errorf("session = state %q outcome %q archived %v", sess.State, sess.Outcome, sess.Archived)
	}
}

func TestStatusClosesSession(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.answer(t, "CA1")

	err := env.engine.HandleStatus(context.Background(), webhook.StatusChanged{Ref: "CA1", Status: "busy"})
	if err != nil {
		t.Fatalf("HandleStatus: %v", err)
	}

	sess := env.session(t, "CA1")
	if sess.State != models.StateCompleted || sess.Outcome != "busy" {
		t.Errorf("session = state %q outcome %q, want completed/busy", sess.State, sess.Outcome)
	}
	if !sess.Archived {
		t.Error("closed session not archived")
	}
}

func TestStatusKeepsRecordedOutcome(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.answer(t, "CA1")
	env.speak(t, "CA1", "take me off your list", 0.9)

	// The carrier's completed status arrives after the opt-out hangup.
	err := env.engine.HandleStatus(context.Background(), webhook.StatusChanged{Ref: "CA1", Status: "completed"})
	if err != nil {
		t.Fatalf("HandleStatus: %v", err)
	}
	if got := env.session(t, "CA1").Outcome; got != OutcomeOptOut {
		t.Errorf("Outcome = %q, want opt_out preserved", got)
	}
}

func TestStatusIgnoresNonTerminal(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.answer(t, "CA1")

	err := env.engine.HandleStatus(context.Background(), webhook.StatusChanged{Ref: "CA1", Status: "ringing"})
	if err != nil {
		t.Fatalf("HandleStatus: %v", err)
	}
	if got := env.session(t, "CA1").State; got != models.StateGreeting {
		t.Errorf("State = %q, non-terminal status must not touch the session", got)
	}
}

func TestStatusForUnknownCallIsIgnored(t *testing.T) {
	env := newTestEnv(t, Options{})
	err := env.engine.HandleStatus(context.Background(), webhook.StatusChanged{Ref: "CA-nope", Status: "completed"})
	if err != nil {
		t.Errorf("HandleStatus unknown call: %v", err)
	}
}

func TestRecordingStoredOnSession(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.answer(t, "CA1")

	err := env.engine.HandleRecording(context.Background(), webhook.RecordingComplete{
		Ref: "CA1", URL: "https://api.example.com/rec/RE1",
	})
	if err != nil {
		t.Fatalf("HandleRecording: %v", err)
	}

	sess := env.session(t, "CA1")
	if !sess.Recording || sess.RecordingURL != "https://api.example.com/rec/RE1" {
		t.Errorf("recording not stored: %+v", sess)
	}
}

func TestDigitsCountAsSpeech(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.answer(t, "CA1")

	action, err := env.engine.HandleDigits(context.Background(), webhook.DigitsGathered{Ref: "CA1", Digits: "1"})
	if err != nil {
		t.Fatalf("HandleDigits: %v", err)
	}
	if action.Kind != KindSpeak {
		t.Errorf("Kind = %q, want speak", action.Kind)
	}
	if got := env.session(t, "CA1").TurnIndex; got != 2 {
		t.Errorf("TurnIndex = %d, want 2", got)
	}
}

func TestCampaignScriptIsGeneratedOnceAndCached(t *testing.T) {
	env := newTestEnv(t, Options{})
	campaign := &models.Campaign{Name: "Acme Fiber", Goal: "new internet plans", Language: "en"}
	if err := env.campaigns.Create(context.Background(), campaign); err != nil {
		t.Fatalf("Create campaign: %v", err)
	}
	if _, _, err := env.store.GetOrCreate(context.Background(), "CA1", models.CallSession{
		CampaignID: campaign.ID,
	}); err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}

	action := env.answer(t, "CA1")
	if !strings.Contains(action.Prompt, "Acme Fiber") {
		t.Errorf("greeting not campaign-specific: %q", action.Prompt)
	}

	cached, err := env.campaigns.GetByID(context.Background(), campaign.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if cached.ScriptJSON == "" {
		t.Error("generated script not cached on campaign")
	}
}
