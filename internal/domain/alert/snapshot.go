package alert

// Snapshot is the last-known aggregate state of the garage, published to
// telemetry as numbered fields.
type Snapshot struct {
	// Temperature in degrees Celsius (field 1).
	Temperature float64
	// Humidity in percent (field 2).
	Humidity float64
	// SmokeLevel is the raw gas sensor level (field 3).
	SmokeLevel int
	// DoorOpen is true while the door is open (field 4).
	DoorOpen bool
	// PIRInside is true while the inside motion sensor fires (field 5).
	PIRInside bool
	// AlarmOn is true while the alarm is armed (field 6).
	AlarmOn bool
	// DistanceOutside is the outside ultrasonic distance in centimeters (field 7).
	DistanceOutside float64
	// EventCode identifies the event that produced this snapshot (field 8).
	EventCode EventCode
	// StatusText is the optional free-text status.
	StatusText string
}

// Telemetry field numbers in backend order.
const (
	FieldTemperature     = 1
	FieldHumidity        = 2
	FieldSmokeLevel      = 3
	FieldDoorOpen        = 4
	FieldPIRInside       = 5
	FieldAlarmOn         = 6
	FieldDistanceOutside = 7
	FieldEventCode       = 8

	// FieldCount is the number of numbered fields.
	FieldCount = 8
)

// Fields returns the numbered field values in backend order (index 0 is field 1).
// Booleans are encoded as 0 or 1.
func (s Snapshot) Fields() [FieldCount]float64 {
	return [FieldCount]float64{
		s.Temperature,
		s.Humidity,
		float64(s.SmokeLevel),
		boolToFloat(s.DoorOpen),
		boolToFloat(s.PIRInside),
		boolToFloat(s.AlarmOn),
		s.DistanceOutside,
		float64(s.EventCode),
	}
}

// WithField returns a copy of the snapshot with the numbered field set to value.
// Unknown field numbers leave the snapshot unchanged.
func (s Snapshot) WithField(field int, value float64) Snapshot {
	switch field {
	case FieldTemperature:
		s.Temperature = value
	case FieldHumidity:
		s.Humidity = value
	case FieldSmokeLevel:
		s.SmokeLevel = int(value)
	case FieldDoorOpen:
		s.DoorOpen = value != 0
	case FieldPIRInside:
		s.PIRInside = value != 0
	case FieldAlarmOn:
		s.AlarmOn = value != 0
	case FieldDistanceOutside:
		s.DistanceOutside = value
	case FieldEventCode:
		s.EventCode = EventCode(value)
	default:
	}

	return s
}

// ValidField reports whether field is a known telemetry field number.
func ValidField(field int) bool {
	return field >= FieldTemperature && field <= FieldCount
}

// Fragment is a partial snapshot: only non-nil fields are applied.
type Fragment struct {
	Temperature     *float64
	Humidity        *float64
	SmokeLevel      *int
	DoorOpen        *bool
	PIRInside       *bool
	AlarmOn         *bool
	DistanceOutside *float64
}

// IsEmpty reports whether the fragment carries no values.
func (f Fragment) IsEmpty() bool {
	return f.Temperature == nil && f.Humidity == nil && f.SmokeLevel == nil &&
		f.DoorOpen == nil && f.PIRInside == nil && f.AlarmOn == nil && f.DistanceOutside == nil
}

// ApplyTo returns a copy of base with the fragment's values merged in.
// Event code and status text are never touched by a fragment.
func (f Fragment) ApplyTo(base Snapshot) Snapshot {
	if f.Temperature != nil {
		base.Temperature = *f.Temperature
	}

	if f.Humidity != nil {
		base.Humidity = *f.Humidity
	}

	if f.SmokeLevel != nil {
		base.SmokeLevel = *f.SmokeLevel
	}

	if f.DoorOpen != nil {
		base.DoorOpen = *f.DoorOpen
	}

	if f.PIRInside != nil {
		base.PIRInside = *f.PIRInside
	}

	if f.AlarmOn != nil {
		base.AlarmOn = *f.AlarmOn
	}

	if f.DistanceOutside != nil {
		base.DistanceOutside = *f.DistanceOutside
	}

	return base
}

// Merge returns a fragment where values set in other override values in f.
func (f Fragment) Merge(other Fragment) Fragment {
	if other.Temperature != nil {
		f.Temperature = other.Temperature
	}

	if other.Humidity != nil {
		f.Humidity = other.Humidity
	}

	if other.SmokeLevel != nil {
		f.SmokeLevel = other.SmokeLevel
	}

	if other.DoorOpen != nil {
		f.DoorOpen = other.DoorOpen
	}

	if other.PIRInside != nil {
		f.PIRInside = other.PIRInside
	}

	if other.AlarmOn != nil {
		f.AlarmOn = other.AlarmOn
	}

	if other.DistanceOutside != nil {
		f.DistanceOutside = other.DistanceOutside
	}

	return f
}

// Ptr returns a pointer to v. It keeps Fragment literals short.
func Ptr[T any](v T) *T {
	return &v
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}

	return 0
}
