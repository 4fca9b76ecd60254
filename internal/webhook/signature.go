package webhook

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"net/url"
	"sort"
)

var (
	// ErrMissingSignature reports a callback without a signature header.
	ErrMissingSignature = errors.New("missing webhook signature")
	// ErrInvalidSignature reports a signature that does not match the
	// request payload.
	ErrInvalidSignature = errors.New("invalid webhook signature")
)

// ComputeSignature builds the carrier's request signature: the full
// request URL concatenated with each form key and value in sorted key
// order, HMAC-SHA1 signed with the account auth token, base64 encoded.
func ComputeSignature(authToken, fullURL string, form url.Values) string {
	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(fullURL))
	for _, k := range keys {
		mac.Write([]byte(k))
		for _, v := range form[k] {
			mac.Write([]byte(v))
		}
	}
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a callback signature in constant time.
func VerifySignature(authToken, fullURL string, form url.Values, signature string) error {
	if signature == "" {
		return ErrMissingSignature
	}
	expected := ComputeSignature(authToken, fullURL, form)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrInvalidSignature
	}
	return nil
}
