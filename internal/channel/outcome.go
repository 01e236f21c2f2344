package channel

import (
	"net/http"
	"net/url"
)

// Outcome classifies the result of one channel call. None of them is a
// fault: a caller decides what to do with a failed delivery.
type Outcome uint8

const (
	// OutcomeDelivered means the remote side confirmed the delivery.
	OutcomeDelivered Outcome = iota
	// OutcomeMisconfigured means the credential is missing or still a placeholder.
	OutcomeMisconfigured
	// OutcomeUnavailable means there is no connectivity.
	OutcomeUnavailable
	// OutcomeRateLimited means the cooldown gate denied the call.
	OutcomeRateLimited
	// OutcomeTransportFailure means a timeout, network error or non-success status.
	OutcomeTransportFailure
	// OutcomeApplicationRejected means the transport succeeded but the provider refused.
	OutcomeApplicationRejected
	// OutcomeSkipped means the channel was not invoked at all.
	OutcomeSkipped
)

//nolint:gochecknoglobals // Read-only lookup table.
var outcomeNames = [...]string{
	OutcomeDelivered:           "delivered",
	OutcomeMisconfigured:       "misconfigured",
	OutcomeUnavailable:         "unavailable",
	OutcomeRateLimited:         "rate_limited",
	OutcomeTransportFailure:    "transport_failure",
	OutcomeApplicationRejected: "application_rejected",
	OutcomeSkipped:             "skipped",
}

// String returns the snake_case outcome name used in logs and metrics.
func (o Outcome) String() string {
	if int(o) < len(outcomeNames) {
		return outcomeNames[o]
	}

	return "unknown"
}

// ParseOutcome converts an outcome name back into an Outcome.
func ParseOutcome(s string) (Outcome, bool) {
	for i, name := range outcomeNames {
		if name == s {
			return Outcome(i), true
		}
	}

	return OutcomeSkipped, false
}

// Delivered reports whether the outcome is a confirmed delivery.
func (o Outcome) Delivered() bool {
	return o == OutcomeDelivered
}

// Doer performs HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// RedactURL masks userinfo passwords and query parameter values so an
// endpoint can be logged without its credentials.
func RedactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<invalid-url>"
	}

	if u.RawQuery != "" {
		q := u.Query()
		for key := range q {
			q.Set(key, "REDACTED")
		}

		u.RawQuery = q.Encode()
	}

	return u.Redacted()
}
