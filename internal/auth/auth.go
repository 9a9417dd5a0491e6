// Package auth verifies the bearer tokens issued by the account service.
// Tokens are HMAC-SHA256 signed and carry the user ID and an expiry.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gleehq/interviewd/internal/fault"
)

// Verifier authenticates a token and returns the user it belongs to.
type Verifier interface {
	Verify(token string) (userID string, err error)
}

// HMACVerifier validates tokens of the form
// base64url(userID:expiryUnix) + "." + base64url(hmac-sha256(payload)).
type HMACVerifier struct {
	secret []byte
	now    func() time.Time
}

func NewHMACVerifier(secret string) *HMACVerifier {
	return &HMACVerifier{secret: []byte(secret), now: time.Now}
}

// Sign mints a token for userID valid for ttl. The account service does this
// in production; here it backs tests and local tooling.
func (v *HMACVerifier) Sign(userID string, ttl time.Duration) string {
	payload := fmt.Sprintf("%s:%d", userID, v.now().Add(ttl).Unix())
	return base64.RawURLEncoding.EncodeToString([]byte(payload)) + "." + v.signature(payload)
}

func (v *HMACVerifier) Verify(token string) (string, error) {
	encoded, sig, ok := strings.Cut(token, ".")
	if !ok {
		return "", fault.New(fault.KindForbidden, "malformed token")
	}
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", fault.New(fault.KindForbidden, "malformed token payload")
	}
	payload := string(raw)
	if !hmac.Equal([]byte(sig), []byte(v.signature(payload))) {
		return "", fault.New(fault.KindForbidden, "invalid token signature")
	}

	userID, expiry, ok := strings.Cut(payload, ":")
	if !ok || userID == "" {
		return "", fault.New(fault.KindForbidden, "malformed token payload")
	}
	expiresAt, err := strconv.ParseInt(expiry, 10, 64)
	if err != nil {
		return "", fault.New(fault.KindForbidden, "malformed token expiry")
	}
	if v.now().Unix() >= expiresAt {
		return "", fault.New(fault.KindForbidden, "token expired")
	}
	return userID, nil
}

func (v *HMACVerifier) signature(payload string) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// Static accepts every token as the configured user. Test use only.
type Static struct {
	UserID string
	Err    error
}

func (s Static) Verify(string) (string, error) {
	if s.Err != nil {
		return "", s.Err
	}
	return s.UserID, nil
}
