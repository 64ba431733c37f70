// Package clientstate signs and verifies the opaque client-state token that
// binds a mailbox account to a webhook subscription. The provider round-trips
// the token verbatim in every notification, so a valid signature is the only
// proof that a notification originates from a subscription this service created.
package clientstate

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

// Separator splits the subject from its signature in the serialized token.
const Separator = "."

// signatureHexLen retains 96 bits of the HMAC-SHA256 digest. Never reduce.
const signatureHexLen = 24

// ErrEmptySubject is returned by Encode for an empty subject identity.
var ErrEmptySubject = errors.New("clientstate: empty subject identity")

// Codec produces and verifies client-state tokens with a shared secret.
// A Codec is immutable and safe for concurrent use.
type Codec struct {
	secret []byte
}

// NewCodec constructs a codec around the shared signing secret.
func NewCodec(secret string) *Codec {
	return &Codec{secret: []byte(secret)}
}

// Sign computes the truncated hex HMAC-SHA256 signature for subjectID.
// Deterministic: the same subject and secret always yield the same signature.
func (c *Codec) Sign(subjectID string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(subjectID))
	return hex.EncodeToString(mac.Sum(nil))[:signatureHexLen]
}

// Encode serializes subjectID into its signed token form "<subject>.<signature>".
func (c *Codec) Encode(subjectID string) (string, error) {
	if subjectID == "" {
		return "", ErrEmptySubject
	}
	return subjectID + Separator + c.Sign(subjectID), nil
}

// Decode verifies token and returns the embedded subject identity. It fails
// closed: any malformed token or signature mismatch yields ("", false). The
// signature comparison is constant-time so repeated probes cannot recover
// secret material through response timing.
func (c *Codec) Decode(token string) (string, bool) {
	idx := strings.LastIndex(token, Separator)
	if idx <= 0 {
		return "", false
	}
	subjectID, signature := token[:idx], token[idx+1:]
	if signature == "" {
		return "", false
	}
	if !hmac.Equal([]byte(c.Sign(subjectID)), []byte(signature)) {
		return "", false
	}
	return subjectID, true
}
