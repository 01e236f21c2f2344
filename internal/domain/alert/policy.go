package alert

import "time"

// Push provider sound indexes.
const (
	SoundSilent   = 0
	SoundAhem     = 1
	SoundPositive = 4
	SoundAlarm    = 8
	SoundSiren    = 24
)

// Push provider icon indexes.
const (
	IconInfo     = 1
	IconWarning  = 2
	IconError    = 3
	IconSuccess  = 4
	IconHome     = 33
	IconFire     = 62
	IconSecurity = 96
	IconCar      = 139
)

// Push provider vibration levels.
const (
	VibrationLow    = 1
	VibrationMedium = 2
	VibrationHigh   = 3
)

// Re-alert parameters used when a kind without its own values is escalated
// to Emergency by measured readings.
const (
	DefaultEmergencyRetry  = 60 * time.Second
	DefaultEmergencyExpire = 30 * time.Minute
)

// Policy describes how a kind is announced on the push channel.
type Policy struct {
	// Title is the notification title.
	Title string
	// Priority is the intrinsic push priority of the kind.
	Priority Priority
	// Sound is the provider sound index.
	Sound int
	// Icon is the provider icon index.
	Icon int
	// IconColor is the icon color as a hex string, e.g. "#FF0000".
	IconColor string
	// Vibration is the provider vibration level (1..3).
	Vibration int
	// TimeToLive is how long the notification stays on the device; zero means forever.
	TimeToLive time.Duration
	// Retry is the re-alert interval; only meaningful at Emergency.
	Retry time.Duration
	// Expire is when re-alerting stops; only meaningful at Emergency.
	Expire time.Duration
}

// ForSeverity returns the policy adjusted to the given event severity:
// the priority never drops below the intrinsic one, and an escalated
// Emergency gets default re-alert parameters when the kind has none.
func (p Policy) ForSeverity(s Severity) Policy {
	if s.Priority() > p.Priority {
		p.Priority = s.Priority()
	}

	if p.Priority != PriorityEmergency {
		p.Retry = 0
		p.Expire = 0

		return p
	}

	if p.Retry <= 0 {
		p.Retry = DefaultEmergencyRetry
	}

	if p.Expire <= 0 {
		p.Expire = DefaultEmergencyExpire
	}

	return p
}

// PolicyTable maps every kind to its push policy. It is read-only once built.
type PolicyTable struct {
	policies [kindCount]Policy
}

// Lookup returns the policy for kind. Undefined kinds get a zero policy.
func (t *PolicyTable) Lookup(kind Kind) Policy {
	if t == nil || !kind.Valid() {
		return Policy{}
	}

	return t.policies[kind]
}

// DefaultPolicyTable returns the garage controller presets.
func DefaultPolicyTable() *PolicyTable {
	t := new(PolicyTable)

	t.policies[KindIntrusion] = Policy{
		Title:      "🚨 INTRUSION!",
		Priority:   PriorityEmergency,
		Sound:      SoundSiren,
		Icon:       IconSecurity,
		IconColor:  "#FF0000",
		Vibration:  VibrationHigh,
		TimeToLive: 60 * time.Minute,
		Retry:      60 * time.Second,
		Expire:     time.Hour,
	}
	t.policies[KindFireAlert] = Policy{
		Title:      "🔥 FIRE!",
		Priority:   PriorityEmergency,
		Sound:      SoundAlarm,
		Icon:       IconFire,
		IconColor:  "#FF6600",
		Vibration:  VibrationHigh,
		TimeToLive: 30 * time.Minute,
		Retry:      60 * time.Second,
		Expire:     30 * time.Minute,
	}
	t.policies[KindVehicleDetected] = Policy{
		Title:      "🚗 Vehicle waiting",
		Priority:   PriorityHigh,
		Sound:      SoundAlarm,
		Icon:       IconCar,
		IconColor:  "#0066FF",
		Vibration:  VibrationMedium,
		TimeToLive: 5 * time.Minute,
	}
	t.policies[KindHighTemperature] = Policy{
		Title:     "🌡️ High temperature",
		Priority:  PriorityHigh,
		Sound:     SoundAlarm,
		Icon:      IconWarning,
		IconColor: "#FFA500",
		Vibration: VibrationMedium,
	}
	t.policies[KindSmokeAlert] = Policy{
		Title:     "💨 Smoke warning",
		Priority:  PriorityHigh,
		Sound:     SoundAlarm,
		Icon:      IconWarning,
		IconColor: "#808080",
		Vibration: VibrationMedium,
	}
	t.policies[KindAlarmOn] = Policy{
		Title:     "⚠️ Alarm activated",
		Priority:  PriorityHigh,
		Sound:     SoundAlarm,
		Icon:      IconError,
		IconColor: "#FF0000",
		Vibration: VibrationHigh,
	}
	t.policies[KindPersonDetected] = Policy{
		Title:     "👤 Person detected",
		Priority:  PriorityNormal,
		Sound:     SoundAhem,
		Icon:      IconSecurity,
		IconColor: "#FFA500",
		Vibration: VibrationMedium,
	}
	t.policies[KindDoorOpen] = Policy{
		Title:     "🚪 Door opened",
		Priority:  PriorityNormal,
		Sound:     SoundPositive,
		Icon:      IconHome,
		IconColor: "#00AA00",
		Vibration: VibrationLow,
	}
	t.policies[KindDoorClose] = Policy{
		Title:     "🚪 Door closed",
		Priority:  PriorityNormal,
		Sound:     SoundPositive,
		Icon:      IconHome,
		IconColor: "#00AA00",
		Vibration: VibrationLow,
	}
	t.policies[KindAlarmOff] = Policy{
		Title:     "✅ Alarm deactivated",
		Priority:  PriorityNormal,
		Sound:     SoundPositive,
		Icon:      IconSuccess,
		IconColor: "#00AA00",
		Vibration: VibrationLow,
	}
	t.policies[KindSystemStart] = Policy{
		Title:     "💡 System online",
		Priority:  PriorityNormal,
		Sound:     SoundSilent,
		Icon:      IconInfo,
		IconColor: "#0066FF",
		Vibration: VibrationLow,
	}
	t.policies[KindTest] = Policy{
		Title:     "Test notification",
		Priority:  PriorityLow,
		Sound:     SoundAlarm,
		Icon:      IconCar,
		IconColor: "#0066FF",
		Vibration: VibrationMedium,
	}

	return t
}
