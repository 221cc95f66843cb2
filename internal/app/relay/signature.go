// Package relay implements the GitHub webhook relay: signature verification,
// raw-payload forwarding to the worker, and webhook mapping bookkeeping.
package relay

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/tmeadows/scanhub/pkg/common/logger"
)

// signaturePrefix is the scheme tag GitHub prepends to the hex digest.
const signaturePrefix = "sha256="

// SignatureVerifier validates GitHub webhook signatures: HMAC-SHA256 over the
// raw request body, keyed by the pre-shared secret, compared in constant time.
//
// With no secret configured the verifier accepts everything. That is a
// deliberate reduced-trust mode for local development; it is logged on every
// delivery so it cannot pass unnoticed in production.
type SignatureVerifier struct {
	secret []byte
	log    *logger.Logger
}

// NewSignatureVerifier creates a verifier for the given shared secret. An
// empty secret disables verification.
func NewSignatureVerifier(secret string, log *logger.Logger) *SignatureVerifier {
	return &SignatureVerifier{secret: []byte(secret), log: log}
}

// Configured reports whether a secret is set and signatures are enforced.
func (v *SignatureVerifier) Configured() bool { return len(v.secret) > 0 }

// Verify checks the X-Hub-Signature-256 header value against the raw body.
// The digest is compared with hmac.Equal so verification time does not depend
// on how much of the signature matches.
func (v *SignatureVerifier) Verify(ctx context.Context, body []byte, header string) bool {
	if !v.Configured() {
		v.log.Warn(ctx, "webhook signature verification disabled, no secret configured")
		return true
	}

	digestHex, ok := strings.CutPrefix(header, signaturePrefix)
	if !ok {
		return false
	}
	claimed, err := hex.DecodeString(digestHex)
	if err != nil || len(claimed) != sha256.Size {
		return false
	}

	mac := hmac.New(sha256.New, v.secret)
	mac.Write(body)
	return hmac.Equal(claimed, mac.Sum(nil))
}
