package webhook

import (
	"errors"
	"net/url"
	"testing"
)

func TestVerifySignatureRoundTrip(t *testing.T) {
	form := url.Values{}
	form.Set("CallSid", "CA123")
	form.Set("SpeechResult", "yes")
	form.Set("Confidence", "0.9")

	const token = "secret-token"
	const fullURL = "https://calls.example.com/webhooks/voice/gather"

	sig := ComputeSignature(token, fullURL, form)
	if err := VerifySignature(token, fullURL, form, sig); err != nil {
		t.Errorf("VerifySignature: %v", err)
	}
}

func TestVerifySignatureSortsKeys(t *testing.T) {
	// The signature covers keys in sorted order regardless of how the form
	// was built, so two orderings sign identically.
	a := url.Values{}
	a.Set("Zebra", "1")
	a.Set("Apple", "2")

	b := url.Values{}
	b.Set("Apple", "2")
	b.Set("Zebra", "1")

	const fullURL = "https://calls.example.com/webhooks/voice/status"
	if ComputeSignature("tok", fullURL, a) != ComputeSignature("tok", fullURL, b) {
		t.Error("signature depends on form insertion order")
	}
}

func TestVerifySignatureRejectsTampering(t *testing.T) {
	form := url.Values{}
	form.Set("CallSid", "CA123")

	const token = "secret-token"
	const fullURL = "https://calls.example.com/webhooks/voice/answer"
	sig := ComputeSignature(token, fullURL, form)

	tampered := url.Values{}
	tampered.Set("CallSid", "CA999")
	if err := VerifySignature(token, fullURL, tampered, sig); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("tampered form: err = %v, want ErrInvalidSignature", err)
	}

	if err := VerifySignature(token, "https://evil.example.com/x", form, sig); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("wrong URL: err = %v, want ErrInvalidSignature", err)
	}

	if err := VerifySignature("other-token", fullURL, form, sig); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("wrong token: err = %v, want ErrInvalidSignature", err)
	}
}

func TestVerifySignatureMissing(t *testing.T) {
	err := VerifySignature("tok", "https://calls.example.com/", url.Values{}, "")
	if !errors.Is(err, ErrMissingSignature) {
		t.Errorf("err = %v, want ErrMissingSignature", err)
	}
}
