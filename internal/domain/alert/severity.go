package alert

import (
	"errors"
	"fmt"
	"strings"
)

// Severity is the urgency tier of an event. Tiers are ordered:
// Silent < Low < Normal < High < Emergency.
type Severity uint8

const (
	// SeveritySilent delivers without any sound or banner.
	SeveritySilent Severity = iota
	// SeverityLow delivers without sound.
	SeverityLow
	// SeverityNormal delivers with the default sound.
	SeverityNormal
	// SeverityHigh delivers with a louder sound.
	SeverityHigh
	// SeverityEmergency is reserved for life-safety events; it bypasses throttling
	// and asks the recipient to acknowledge.
	SeverityEmergency
)

// Priority is the push provider priority scale (-2 .. 2).
type Priority int

const (
	// PrioritySilent maps to SeveritySilent.
	PrioritySilent Priority = -2
	// PriorityLow maps to SeverityLow.
	PriorityLow Priority = -1
	// PriorityNormal maps to SeverityNormal.
	PriorityNormal Priority = 0
	// PriorityHigh maps to SeverityHigh.
	PriorityHigh Priority = 1
	// PriorityEmergency maps to SeverityEmergency.
	PriorityEmergency Priority = 2
)

// severityNames holds the display names indexed by Severity.
//
//nolint:gochecknoglobals // Read-only lookup table.
var severityNames = [...]string{
	SeveritySilent:    "silent",
	SeverityLow:       "low",
	SeverityNormal:    "normal",
	SeverityHigh:      "high",
	SeverityEmergency: "emergency",
}

// String returns the lower-case severity name.
func (s Severity) String() string {
	if int(s) < len(severityNames) {
		return severityNames[s]
	}

	return fmt.Sprintf("severity(%d)", uint8(s))
}

// Priority converts the severity into the push provider priority.
func (s Severity) Priority() Priority {
	if s > SeverityEmergency {
		return PriorityEmergency
	}

	return Priority(int(s) - 2)
}

// IsEmergency reports whether the severity is the life-safety tier.
func (s Severity) IsEmergency() bool {
	return s >= SeverityEmergency
}

// Max returns the higher of two severities.
func (s Severity) Max(other Severity) Severity {
	if other > s {
		return other
	}

	return s
}

// Severity converts a push priority back to the severity tier.
func (p Priority) Severity() Severity {
	switch {
	case p <= PrioritySilent:
		return SeveritySilent
	case p >= PriorityEmergency:
		return SeverityEmergency
	default:
		return Severity(int(p) + 2)
	}
}

// ErrUnknownSeverity is returned when a textual severity is not recognized.
var ErrUnknownSeverity = errors.New("unknown severity")

// ParseSeverity converts a lower-case severity name back into a Severity.
func ParseSeverity(s string) (Severity, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range severityNames {
		if name == s {
			return Severity(i), nil
		}
	}

	return SeveritySilent, fmt.Errorf("%w: %q", ErrUnknownSeverity, s)
}
