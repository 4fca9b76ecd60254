package dialog

import (
	"fmt"

	"github.com/dhruv465/Project-Call-sub007/internal/twiml"
)

// URLSigner mints publicly fetchable URLs for rendered audio assets.
type URLSigner interface {
	AudioURL(hash string) (string, error)
}

// Renderer converts engine actions into carrier markup. Play verbs for
// chunked audio are emitted in chunk order and any Gather comes strictly
// after the last of them; a silent gather falls through to a Redirect so
// unanswered prompts come back as empty speech and count against the
// retry budget.
type Renderer struct {
	signer        URLSigner
	gatherURL     string
	carrierVoice  string
	speechTimeout string
}

// NewRenderer wires the delivery renderer. gatherURL is the absolute
// webhook URL speech captures post back to.
func NewRenderer(signer URLSigner, gatherURL string) *Renderer {
	return &Renderer{
		signer:        signer,
		gatherURL:     gatherURL,
		carrierVoice:  "alice",
		speechTimeout: "auto",
	}
}

// Render builds the markup response for an action.
func (r *Renderer) Render(action Action) (*twiml.Response, error) {
	resp := twiml.NewResponse()
	switch action.Kind {
	case KindSpeak:
		if err := r.speak(resp, action); err != nil {
			return nil, err
		}
		if action.GatherAfter {
			resp.Add(r.gather(action.Language, nil))
			resp.Add(twiml.Redirect{Method: "POST", URL: r.gatherURL})
		} else {
			resp.Add(twiml.Hangup{})
		}
	case KindGather:
		say := &twiml.Say{Voice: r.carrierVoice, Language: action.Language, Text: action.Prompt}
		resp.Add(r.gather(action.Language, say))
		resp.Add(twiml.Redirect{Method: "POST", URL: r.gatherURL})
	case KindTransfer:
		if err := r.speak(resp, action); err != nil {
			return nil, err
		}
		resp.Add(twiml.Dial{Number: action.TransferTo})
	case KindHangup:
		resp.Add(twiml.Hangup{})
	case KindNone:
	default:
		return nil, fmt.Errorf("unknown action kind %q", action.Kind)
	}
	return resp, nil
}

func (r *Renderer) speak(resp *twiml.Response, action Action) error {
	if action.Direct || len(action.Assets) == 0 {
		resp.Add(twiml.Say{Voice: r.carrierVoice, Language: action.Language, Text: action.Prompt})
		return nil
	}
	for _, asset := range action.Assets {
		u, err := r.signer.AudioURL(asset.Hash)
		if err != nil {
			return fmt.Errorf("signing audio url: %w", err)
		}
		resp.Add(twiml.Play{URL: u})
	}
	return nil
}

func (r *Renderer) gather(language string, say *twiml.Say) twiml.Gather {
	return twiml.Gather{
		Input:         "speech",
		Action:        r.gatherURL,
		Method:        "POST",
		SpeechTimeout: r.speechTimeout,
		Language:      language,
		Say:           say,
	}
}
