package delivery

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// signaturePrefixes are scheme tags partners may put before the hex digest
var signaturePrefixes = []string{"sha256=", "sha1="}

// Sign returns the hex HMAC-SHA256 of body under secret
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a webhook signature header against the raw body in
// constant time. An empty secret or header never verifies; the caller owns
// the policy for partners without a secret.
func VerifySignature(body []byte, header, secret string) bool {
	if secret == "" {
		return false
	}
	sig := strings.TrimSpace(header)
	for _, prefix := range signaturePrefixes {
		if len(sig) >= len(prefix) && strings.EqualFold(sig[:len(prefix)], prefix) {
			sig = sig[len(prefix):]
			break
		}
	}
	if sig == "" {
		return false
	}
	got, err := hex.DecodeString(strings.ToLower(sig))
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}
