package api

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidAudioToken reports an audio URL token that is missing, expired
// or signed for a different asset.
var ErrInvalidAudioToken = errors.New("invalid audio token")

// audioClaims binds a token to a single audio asset hash.
type audioClaims struct {
	Hash string `json:"hash"`
	jwt.RegisteredClaims
}

// AudioSigner mints and verifies short-lived tokens for audio asset URLs.
// The carrier fetches Play URLs anonymously, so each URL carries an HMAC
// token scoped to one asset.
type AudioSigner struct {
	secret  []byte
	ttl     time.Duration
	baseURL string
	nowFunc func() time.Time
}

// NewAudioSigner builds a signer. baseURL is the server's public URL
// without a trailing slash.
func NewAudioSigner(secret []byte, ttl time.Duration, baseURL string) *AudioSigner {
	return &AudioSigner{
		secret:  secret,
		ttl:     ttl,
		baseURL: baseURL,
		nowFunc: time.Now,
	}
}

// AudioURL returns an absolute, token-signed URL for the asset.
func (s *AudioSigner) AudioURL(hash string) (string, error) {
	now := s.nowFunc()
	claims := audioClaims{
		Hash: hash,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("signing audio token: %w", err)
	}
	return fmt.Sprintf("%s/audio/%s?token=%s", s.baseURL, hash, token), nil
}

// Verify checks that token grants access to the asset with the given hash.
func (s *AudioSigner) Verify(hash, token string) error {
	claims := &audioClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.nowFunc))
	if err != nil || !parsed.Valid {
		return ErrInvalidAudioToken
	}
	if claims.Hash != hash {
		return ErrInvalidAudioToken
	}
	return nil
}
