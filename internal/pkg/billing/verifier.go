package billing

import (
	"errors"
	"strings"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

// ErrInvalidSignature marks a webhook delivery that could not be
// authenticated. Surfaced as HTTP 400; never retried by us.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// Verifier authenticates inbound webhook deliveries against the shared
// signing secret. Verification runs over the raw, unparsed body; parsing
// first would let re-serialization change the signed bytes.
type Verifier struct {
	secret string
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: strings.TrimSpace(secret)}
}

// Verify checks the signature header against the raw payload and returns the
// parsed event on success. A missing header or missing configured secret is
// treated the same as a bad signature: fail closed.
func (v *Verifier) Verify(payload []byte, sigHeader string) (stripe.Event, error) {
	if v.secret == "" || strings.TrimSpace(sigHeader) == "" {
		return stripe.Event{}, ErrInvalidSignature
	}

	event, err := webhook.ConstructEventWithOptions(payload, sigHeader, v.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return stripe.Event{}, ErrInvalidSignature
	}
	return event, nil
}
