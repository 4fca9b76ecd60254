package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/dhruv465/Project-Call-sub007/internal/dialog"
	"github.com/dhruv465/Project-Call-sub007/internal/session"
	"github.com/dhruv465/Project-Call-sub007/internal/twiml"
	"github.com/dhruv465/Project-Call-sub007/internal/webhook"
)

// handleAnswer serves the first markup document when the callee picks up.
func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	form, ok := s.acceptCallback(w, r)
	if !ok {
		return
	}
	ev, err := webhook.ParseInitiated(form)
	if err != nil {
		s.rejectMalformed(w, r, err)
		return
	}

	ctx, cancel := s.handlerContext(r)
	defer cancel()
	action, err := s.deps.Engine.HandleInitiated(ctx, ev)
	s.writeAction(w, r, ev.Ref, action, err)
}

// handleGather advances the conversation with captured speech or digits.
func (s *Server) handleGather(w http.ResponseWriter, r *http.Request) {
	form, ok := s.acceptCallback(w, r)
	if !ok {
		return
	}
	parsed, err := webhook.ParseGather(form)
	if err != nil {
		s.rejectMalformed(w, r, err)
		return
	}

	ctx, cancel := s.handlerContext(r)
	defer cancel()

	var (
		ref    string
		action dialog.Action
	)
	switch ev := parsed.(type) {
	case webhook.SpeechGathered:
		ref = ev.Ref
		action, err = s.deps.Engine.HandleSpeech(ctx, ev)
	case webhook.DigitsGathered:
		ref = ev.Ref
		action, err = s.deps.Engine.HandleDigits(ctx, ev)
	default:
		s.rejectMalformed(w, r, webhook.ErrMalformedEvent)
		return
	}
	s.writeAction(w, r, ref, action, err)
}

// handleRecording stores the recording URL. The carrier ignores the body,
// so failures are logged and acknowledged.
func (s *Server) handleRecording(w http.ResponseWriter, r *http.Request) {
	form, ok := s.acceptCallback(w, r)
	if !ok {
		return
	}
	ev, err := webhook.ParseRecording(form)
	if err != nil {
		s.rejectMalformed(w, r, err)
		return
	}

	ctx, cancel := s.handlerContext(r)
	defer cancel()
	if err := s.deps.Engine.HandleRecording(ctx, ev); err != nil &&
		!errors.Is(err, session.ErrSessionNotFound) {
		s.logger.Error("recording callback failed",
			slog.String("call_ref", ev.Ref), slog.Any("error", err))
	}
	s.writeMarkup(w, twiml.NewResponse())
}

// handleStatus applies lifecycle status updates.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	form, ok := s.acceptCallback(w, r)
	if !ok {
		return
	}
	ev, err := webhook.ParseStatus(form)
	if err != nil {
		s.rejectMalformed(w, r, err)
		return
	}

	ctx, cancel := s.handlerContext(r)
	defer cancel()
	if err := s.deps.Engine.HandleStatus(ctx, ev); err != nil {
		s.logger.Error("status callback failed",
			slog.String("call_ref", ev.Ref), slog.Any("error", err))
	}
	s.writeMarkup(w, twiml.NewResponse())
}

// acceptCallback parses the callback form and verifies its signature.
// Signature checks are skipped for the mock carrier, which has no account
// token to sign with.
func (s *Server) acceptCallback(w http.ResponseWriter, r *http.Request) (url.Values, bool) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form payload")
		return nil, false
	}
	cfg := s.deps.Config
	if cfg.CarrierProvider == "mock" || cfg.TwilioAuthToken == "" {
		return r.PostForm, true
	}

	fullURL := strings.TrimRight(cfg.PublicURL, "/") + r.URL.RequestURI()
	signature := r.Header.Get("X-Twilio-Signature")
	if err := webhook.VerifySignature(cfg.TwilioAuthToken, fullURL, r.PostForm, signature); err != nil {
		s.logger.Warn("rejected webhook",
			slog.String("path", r.URL.Path),
			slog.String("remote_addr", r.RemoteAddr),
			slog.Any("error", err))
		writeError(w, http.StatusForbidden, "invalid signature")
		return nil, false
	}
	return r.PostForm, true
}

func (s *Server) handlerContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), s.deps.Config.HandlerBudget)
}

// rejectMalformed acknowledges an unusable callback with a hangup so the
// carrier does not retry it.
func (s *Server) rejectMalformed(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Warn("malformed webhook event",
		slog.String("path", r.URL.Path), slog.Any("error", err))
	s.writeMarkup(w, twiml.NewResponse().Add(twiml.Hangup{}))
}

// writeAction renders an engine action. Overlapping events get a short
// pause and a redirect back to the same endpoint; anything else that goes
// wrong ends the call politely.
func (s *Server) writeAction(w http.ResponseWriter, r *http.Request, ref string, action dialog.Action, err error) {
	if err != nil {
		switch {
		case errors.Is(err, session.ErrUpdateInFlight):
			retry := twiml.NewResponse().Add(
				twiml.Pause{Length: 1},
				twiml.Redirect{Method: "POST", URL: s.deps.Config.WebhookURL(r.URL.Path)},
			)
			s.writeMarkup(w, retry)
		case errors.Is(err, session.ErrSessionNotFound):
			s.logger.Warn("webhook for unknown call", slog.String("call_ref", ref))
			s.writeMarkup(w, twiml.NewResponse().Add(twiml.Hangup{}))
		default:
			s.logger.Error("webhook handling failed",
				slog.String("call_ref", ref), slog.Any("error", err))
			s.writeMarkup(w, twiml.NewResponse().Add(twiml.Hangup{}))
		}
		return
	}

	resp, err := s.deps.Renderer.Render(action)
	if err != nil {
		s.logger.Error("markup rendering failed",
			slog.String("call_ref", ref), slog.Any("error", err))
		resp = twiml.NewResponse().Add(twiml.Hangup{})
	}
	s.writeMarkup(w, resp)
}

func (s *Server) writeMarkup(w http.ResponseWriter, resp *twiml.Response) {
	body, err := resp.Render()
	if err != nil {
		s.logger.Error("markup encoding failed", slog.Any("error", err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(body) //nolint:errcheck
}
