package api

import (
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"
)

func TestAudioURLRoundTrip(t *testing.T) {
	s := NewAudioSigner([]byte("0123456789abcdef0123456789abcdef"), time.Hour, "https://example.com")

	u, err := s.AudioURL("abc123")
	if err != nil {
		t.Fatalf("AudioURL: %v", err)
	}
	if !strings.HasPrefix(u, "https://example.com/audio/abc123?token=") {
		t.Fatalf("url = %q", u)
	}

	parsed, err := url.Parse(u)
	if err != nil {
		t.Fatalf("parsing url: %v", err)
	}
	token := parsed.Query().Get("token")
	if err := s.Verify("abc123", token); err != nil {
		t.Errorf("Verify: %v", err)
	}
}

func TestVerifyRejectsWrongHash(t *testing.T) {
	s := NewAudioSigner([]byte("secret-key-secret-key-secret-key"), time.Hour, "https://example.com")

	u, _ := s.AudioURL("asset-a")
	parsed, _ := url.Parse(u)
	token := parsed.Query().Get("token")

	if err := s.Verify("asset-b", token); !errors.Is(err, ErrInvalidAudioToken) {
		t.Errorf("Verify other hash = %v, want ErrInvalidAudioToken", err)
	}
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	a := NewAudioSigner([]byte("key-one-key-one-key-one-key-one-"), time.Hour, "https://example.com")
	b := NewAudioSigner([]byte("key-two-key-two-key-two-key-two-"), time.Hour, "https://example.com")

	u, _ := a.AudioURL("asset")
	parsed, _ := url.Parse(u)
	token := parsed.Query().Get("token")

	if err := b.Verify("asset", token); !errors.Is(err, ErrInvalidAudioToken) {
		t.Errorf("Verify foreign token = %v, want ErrInvalidAudioToken", err)
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	s := NewAudioSigner([]byte("secret-key-secret-key-secret-key"), time.Minute, "https://example.com")
	minted := time.Now()
	s.nowFunc = func() time.Time { return minted }

	u, _ := s.AudioURL("asset")
	parsed, _ := url.Parse(u)
	token := parsed.Query().Get("token")

	if err := s.Verify("asset", token); err != nil {
		t.Fatalf("fresh token rejected: %v", err)
	}

	s.nowFunc = func() time.Time { return minted.Add(2 * time.Minute) }
	if err := s.Verify("asset", token); !errors.Is(err, ErrInvalidAudioToken) {
		t.Errorf("Verify expired = %v, want ErrInvalidAudioToken", err)
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	s := NewAudioSigner([]byte("secret-key-secret-key-secret-key"), time.Hour, "https://example.com")
	if err := s.Verify("asset", "not-a-token"); !errors.Is(err, ErrInvalidAudioToken) {
		t.Errorf("Verify garbage = %v, want ErrInvalidAudioToken", err)
	}
}
