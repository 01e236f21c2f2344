// Package push implements the priority notification channel.
//
// A Channel turns an Event and its Policy into a form-encoded request for a
// Pushsafer-compatible provider. Emergency events carry retry and expire
// parameters so the provider keeps re-alerting until the recipient
// acknowledges; this package only supplies them.
//
// Delivery is confirmed only when the transport succeeds and the provider
// answers with a positive message identifier. Only a confirmed delivery
// moves the channel's cooldown and counter.
package push
