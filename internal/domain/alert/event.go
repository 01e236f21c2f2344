package alert

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Kind is the closed enumeration of classified occurrences.
// The zero value is not a valid kind.
type Kind uint8

const (
	// KindDoorOpen reports that the garage door was opened.
	KindDoorOpen Kind = iota + 1
	// KindDoorClose reports that the garage door was closed.
	KindDoorClose
	// KindIntrusion reports presence inside a closed, armed garage.
	KindIntrusion
	// KindFireAlert reports fire conditions (heat and smoke).
	KindFireAlert
	// KindSmokeAlert reports a high smoke reading.
	KindSmokeAlert
	// KindVehicleDetected reports a vehicle waiting in front of the door.
	KindVehicleDetected
	// KindPersonDetected reports motion inside the garage.
	KindPersonDetected
	// KindHighTemperature reports an abnormal temperature reading.
	KindHighTemperature
	// KindAlarmOn reports that the alarm was armed or triggered.
	KindAlarmOn
	// KindAlarmOff reports that the alarm was disarmed.
	KindAlarmOff
	// KindSystemStart reports a controller boot.
	KindSystemStart
	// KindTest is an operator-requested test notification.
	KindTest

	// kindCount is one past the last valid kind.
	kindCount
)

// EventCode is the numeric event identifier written to telemetry field 8.
type EventCode int

// Event codes understood by the telemetry backend dashboards.
const (
	EventCodeNone            EventCode = 0
	EventCodeDoorOpen        EventCode = 1
	EventCodeDoorClose       EventCode = 2
	EventCodeIntrusion       EventCode = 3
	EventCodeFireAlert       EventCode = 4
	EventCodeSmokeAlert      EventCode = 5
	EventCodePersonDetected  EventCode = 6
	EventCodeVehicleDetected EventCode = 7
	EventCodeAlarmOn         EventCode = 8
	EventCodeAlarmOff        EventCode = 9
	EventCodeSystemStart     EventCode = 10
	EventCodeHighTemperature EventCode = 11
	EventCodeTest            EventCode = 12
)

// kindInfo is the static description of a kind.
type kindInfo struct {
	name     string
	code     EventCode
	severity Severity
}

//nolint:gochecknoglobals // Read-only lookup table indexed by Kind.
var kinds = [kindCount]kindInfo{
	KindDoorOpen:        {name: "DoorOpen", code: EventCodeDoorOpen, severity: SeverityNormal},
	KindDoorClose:       {name: "DoorClose", code: EventCodeDoorClose, severity: SeverityNormal},
	KindIntrusion:       {name: "Intrusion", code: EventCodeIntrusion, severity: SeverityEmergency},
	KindFireAlert:       {name: "FireAlert", code: EventCodeFireAlert, severity: SeverityEmergency},
	KindSmokeAlert:      {name: "SmokeAlert", code: EventCodeSmokeAlert, severity: SeverityHigh},
	KindVehicleDetected: {name: "VehicleDetected", code: EventCodeVehicleDetected, severity: SeverityHigh},
	KindPersonDetected:  {name: "PersonDetected", code: EventCodePersonDetected, severity: SeverityNormal},
	KindHighTemperature: {name: "HighTemperature", code: EventCodeHighTemperature, severity: SeverityHigh},
	KindAlarmOn:         {name: "AlarmOn", code: EventCodeAlarmOn, severity: SeverityHigh},
	KindAlarmOff:        {name: "AlarmOff", code: EventCodeAlarmOff, severity: SeverityNormal},
	KindSystemStart:     {name: "SystemStart", code: EventCodeSystemStart, severity: SeverityNormal},
	KindTest:            {name: "Test", code: EventCodeTest, severity: SeverityLow},
}

// ErrUnknownKind is returned when a textual kind does not name a known event.
var ErrUnknownKind = errors.New("unknown event kind")

// Kinds returns every valid kind in declaration order.
func Kinds() []Kind {
	result := make([]Kind, 0, kindCount-1)
	for k := KindDoorOpen; k < kindCount; k++ {
		result = append(result, k)
	}

	return result
}

// Valid reports whether k is one of the declared kinds.
func (k Kind) Valid() bool {
	return k >= KindDoorOpen && k < kindCount
}

// String returns the kind name, e.g. "FireAlert".
func (k Kind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("kind(%d)", uint8(k))
	}

	return kinds[k].name
}

// Code returns the telemetry event code of the kind.
func (k Kind) Code() EventCode {
	if !k.Valid() {
		return EventCodeNone
	}

	return kinds[k].code
}

// Severity returns the intrinsic severity of the kind.
func (k Kind) Severity() Severity {
	if !k.Valid() {
		return SeveritySilent
	}

	return kinds[k].severity
}

// IsLifeSafety reports whether the kind may never be dropped by throttling.
func (k Kind) IsLifeSafety() bool {
	return k == KindIntrusion || k == KindFireAlert
}

// ParseKind converts a textual kind ("FireAlert", "fire_alert", "fire-alert")
// into a Kind. It is the only way untrusted input becomes a Kind.
func ParseKind(s string) (Kind, error) {
	normalized := normalizeKindName(s)
	for k := KindDoorOpen; k < kindCount; k++ {
		if normalizeKindName(kinds[k].name) == normalized {
			return k, nil
		}
	}

	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// normalizeKindName lower-cases the name and strips separators.
func normalizeKindName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))

	return strings.NewReplacer("_", "", "-", "", " ", "").Replace(s)
}

// Readings holds the numeric context measured when the event was classified.
type Readings struct {
	// Temperature in degrees Celsius.
	Temperature float64
	// Humidity in percent.
	Humidity float64
	// SmokeLevel is the raw gas sensor level.
	SmokeLevel int
	// Distance is the outside ultrasonic distance in centimeters.
	Distance float64
	// PIR reports whether the inside motion sensor fired.
	PIR bool
	// Ultrasonic reports whether the inside ultrasonic sensor saw an object.
	Ultrasonic bool
}

// Thresholds control how measured values escalate severity.
type Thresholds struct {
	// TemperatureCritical is the temperature (°C) at which heat counts as fire.
	TemperatureCritical float64
	// SmokeCritical is the smoke level at which smoke counts as fire.
	SmokeCritical int
}

// DefaultThresholds returns the thresholds used by the garage controller.
func DefaultThresholds() Thresholds {
	return Thresholds{
		TemperatureCritical: 60,
		SmokeCritical:       800,
	}
}

// Classify returns the severity of kind given the measured readings.
// Intrusion and FireAlert are always Emergency. HighTemperature and
// SmokeAlert escalate to Emergency only when both heat and smoke are critical.
func (t Thresholds) Classify(kind Kind, r Readings) Severity {
	severity := kind.Severity()

	switch kind {
	case KindHighTemperature, KindSmokeAlert:
		if t.TemperatureCritical > 0 && t.SmokeCritical > 0 &&
			r.Temperature >= t.TemperatureCritical && r.SmokeLevel >= t.SmokeCritical {
			return SeverityEmergency
		}
	default:
	}

	return severity
}

// ClassifyWith classifies kind using the default thresholds.
func ClassifyWith(kind Kind, r Readings) Severity {
	return DefaultThresholds().Classify(kind, r)
}

// Event is an immutable classified occurrence. Build it with NewEvent.
type Event struct {
	// Kind is the classified occurrence.
	Kind Kind
	// Severity is the urgency tier, derived from Kind and Readings.
	Severity Severity
	// Reason is a free-form explanation supplied by the classifier.
	Reason string
	// Source names who or what produced the event (sensor, button, operator).
	Source string
	// Readings are the measured values relevant to the kind.
	Readings Readings
	// OccurredAt is when the condition was detected.
	OccurredAt time.Time
}

// Option customizes an Event under construction.
type Option func(*eventOptions)

// eventOptions collects the optional Event fields.
type eventOptions struct {
	reason     string
	source     string
	readings   Readings
	occurredAt time.Time
	thresholds Thresholds
}

// WithReason sets the free-form reason.
func WithReason(reason string) Option {
	return func(o *eventOptions) {
		o.reason = reason
	}
}

// WithSource sets the event source.
func WithSource(source string) Option {
	return func(o *eventOptions) {
		o.source = source
	}
}

// WithReadings attaches measured values.
func WithReadings(r Readings) Option {
	return func(o *eventOptions) {
		o.readings = r
	}
}

// WithTime overrides the detection time.
func WithTime(t time.Time) Option {
	return func(o *eventOptions) {
		o.occurredAt = t
	}
}

// WithThresholds overrides the escalation thresholds used for classification.
func WithThresholds(t Thresholds) Option {
	return func(o *eventOptions) {
		o.thresholds = t
	}
}

// NewEvent builds an Event of the given kind. An undefined kind is a
// programming error and panics.
func NewEvent(kind Kind, opts ...Option) Event {
	if !kind.Valid() {
		panic(fmt.Sprintf("alert: undefined event kind %d", uint8(kind)))
	}

	o := eventOptions{
		thresholds: DefaultThresholds(),
	}

	for _, opt := range opts {
		opt(&o)
	}

	if o.occurredAt.IsZero() {
		o.occurredAt = time.Now()
	}

	return Event{
		Kind:       kind,
		Severity:   o.thresholds.Classify(kind, o.readings),
		Reason:     o.reason,
		Source:     o.source,
		Readings:   o.readings,
		OccurredAt: o.occurredAt,
	}
}
