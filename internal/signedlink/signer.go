package signedlink

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrInvalid is returned for malformed tokens and failed signature checks.
	ErrInvalid = errors.New("signed link invalid")
	// ErrExpired is returned when the embedded expiry has passed.
	ErrExpired = errors.New("signed link expired")
)

// Signer issues and validates expiring, tamper-evident download tokens.
//
// Token format (the wire contract): {documentID}.{expiryUnix}.{hexSignature}
// where the signature is HMAC-SHA256 over "{documentID}.{expiryUnix}" keyed
// with the server secret. The signature proves link integrity only; callers
// must still authorize the download itself.
type Signer struct {
	secret []byte
	now    func() time.Time
}

// NewSigner constructs a Signer with the given server secret.
func NewSigner(secret string) *Signer {
	return &Signer{
		secret: []byte(secret),
		now:    time.Now,
	}
}

// WithClock overrides the time source. Intended for tests.
func (s *Signer) WithClock(now func() time.Time) *Signer {
	s.now = now
	return s
}

// Issue produces a token for documentID that expires ttl from now.
// A zero or negative ttl yields a token that is already expired.
func (s *Signer) Issue(documentID string, ttl time.Duration) (string, error) {
	if documentID == "" {
		return "", fmt.Errorf("document id is required")
	}
	if strings.Contains(documentID, ".") {
		return "", fmt.Errorf("document id must not contain %q", ".")
	}
	exp := s.now().Add(ttl).Unix()
	payload := fmt.Sprintf("%s.%d", documentID, exp)
	return payload + "." + s.sign(payload), nil
}

// Validate checks the token signature and expiry and resolves the document
// identifier it was issued for. The caller must not expose which of the two
// checks failed beyond "link invalid or expired".
func (s *Signer) Validate(token string) (string, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 || parts[0] == "" {
		return "", ErrInvalid
	}
	payload := parts[0] + "." + parts[1]
	if !hmac.Equal([]byte(s.sign(payload)), []byte(parts[2])) {
		return "", ErrInvalid
	}
	exp, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return "", ErrInvalid
	}
	if s.now().Unix() >= exp {
		return "", ErrExpired
	}
	return parts[0], nil
}

func (s *Signer) sign(payload string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}
