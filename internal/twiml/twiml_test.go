package twiml

import (
	"strings"
	"testing"
)

func TestRenderSayHangup(t *testing.T) {
	resp := NewResponse().Add(
		Say{Voice: "alice", Language: "en", Text: "Goodbye."},
		Hangup{},
	)

	got, err := resp.Render()
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	want := `<?xml version="1.0" encoding="UTF-8"?>` + "\n" +
		`<Response><Say voice="alice" language="en">Goodbye.</Say><Hangup></Hangup></Response>`
	if string(got) != want {
		t.Errorf("rendered markup mismatch:\n got: %s\nwant: %s", got, want)
	}
}

func TestRenderPlaysBeforeGather(t *testing.T) {
	resp := NewResponse().Add(
		Play{URL: "https://calls.example.com/audio/a1?token=t"},
		Play{URL: "https://calls.example.com/audio/a2?token=t"},
		Play{URL: "https://calls.example.com/audio/a3?token=t"},
		Gather{
			Input:         "speech",
			Action:        "https://calls.example.com/webhooks/voice/gather",
			Method:        "POST",
			SpeechTimeout: "auto",
			Language:      "en",
		},
	)

	got, err := resp.Render()
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	body := string(got)

	// All three chunk URLs appear, in order, before the Gather verb.
	gatherAt := strings.Index(body, "<Gather")
	if gatherAt < 0 {
		t.Fatalf("no Gather verb in %s", body)
	}
	last := -1
	for _, url := range []string{"/audio/a1", "/audio/a2", "/audio/a3"} {
		at := strings.Index(body, url)
		if at < 0 {
			t.Fatalf("missing %s in %s", url, body)
		}
		if at < last {
			t.Errorf("%s appears out of order", url)
		}
		if at > gatherAt {
			t.Errorf("%s appears after Gather", url)
		}
		last = at
	}
}

func TestRenderGatherWithNestedSay(t *testing.T) {
	resp := NewResponse().Add(Gather{
		Input:         "speech",
		Action:        "/webhooks/voice/gather",
		Method:        "POST",
		SpeechTimeout: "auto",
		Say:           &Say{Text: "Could you say that again?"},
	})

	got, err := resp.Render()
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	body := string(got)
	if !strings.Contains(body, "<Gather input=\"speech\"") {
		t.Errorf("missing gather attributes in %s", body)
	}
	if !strings.Contains(body, "<Say>Could you say that again?</Say></Gather>") {
		t.Errorf("nested Say not inside Gather in %s", body)
	}
}

func TestRenderEscapesText(t *testing.T) {
	resp := NewResponse().Add(Say{Text: "Fish & chips <today>"})

	got, err := resp.Render()
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(string(got), "Fish &amp; chips &lt;today&gt;") {
		t.Errorf("text not escaped: %s", got)
	}
}

func TestRenderDialAndRedirect(t *testing.T) {
	resp := NewResponse().Add(
		Say{Text: "Connecting you now."},
		Dial{Number: "+15550100"},
	)
	got, err := resp.Render()
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(string(got), "<Dial>+15550100</Dial>") {
		t.Errorf("missing dial verb: %s", got)
	}

	resp = NewResponse().Add(
		Pause{Length: 1},
		Redirect{Method: "POST", URL: "/webhooks/voice/gather"},
	)
	got, err = resp.Render()
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(string(got), `<Pause length="1"></Pause><Redirect method="POST">/webhooks/voice/gather</Redirect>`) {
		t.Errorf("missing pause/redirect verbs: %s", got)
	}
}

func TestEmptyResponse(t *testing.T) {
	got, err := NewResponse().Render()
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	want := `<?xml version="1.0" encoding="UTF-8"?>` + "\n" + `<Response></Response>`
	if string(got) != want {
		t.Errorf("empty response = %s, want %s", got, want)
	}
}
