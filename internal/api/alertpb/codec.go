// Package alertpb converts alert domain types to and from protobuf
// Struct messages. The same encoding is used on the gRPC wire and in the
// snapshot file, so both stay readable with protojson.
package alertpb

import (
	"errors"
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/garage-alert/internal/domain/alert"
)

// Struct keys shared by every message.
const (
	KeyTemperature     = "temperature"
	KeyHumidity        = "humidity"
	KeySmokeLevel      = "smoke_level"
	KeyDoorOpen        = "door_open"
	KeyPIRInside       = "pir_inside"
	KeyAlarmOn         = "alarm_on"
	KeyDistanceOutside = "distance_outside"
	KeyEventCode       = "event_code"
	KeyStatusText      = "status_text"

	KeyDistance   = "distance"
	KeyPIR        = "pir"
	KeyUltrasonic = "ultrasonic"

	KeyKind       = "kind"
	KeyReason     = "reason"
	KeySource     = "source"
	KeyReadings   = "readings"
	KeyOccurredAt = "occurred_at"
)

var (
	// ErrMissingKind is returned when an event message has no kind.
	ErrMissingKind = errors.New("event kind is required")
	// ErrInvalidTime is returned when occurred_at is not RFC 3339.
	ErrInvalidTime = errors.New("invalid occurred_at")
)

// SnapshotToStruct encodes a snapshot.
func SnapshotToStruct(s alert.Snapshot) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		KeyTemperature:     structpb.NewNumberValue(s.Temperature),
		KeyHumidity:        structpb.NewNumberValue(s.Humidity),
		KeySmokeLevel:      structpb.NewNumberValue(float64(s.SmokeLevel)),
		KeyDoorOpen:        structpb.NewBoolValue(s.DoorOpen),
		KeyPIRInside:       structpb.NewBoolValue(s.PIRInside),
		KeyAlarmOn:         structpb.NewBoolValue(s.AlarmOn),
		KeyDistanceOutside: structpb.NewNumberValue(s.DistanceOutside),
		KeyEventCode:       structpb.NewNumberValue(float64(s.EventCode)),
		KeyStatusText:      structpb.NewStringValue(s.StatusText),
	}}
}

// SnapshotFromStruct decodes a snapshot. Missing keys keep zero values.
func SnapshotFromStruct(st *structpb.Struct) alert.Snapshot {
	fields := st.GetFields()

	return alert.Snapshot{
		Temperature:     fields[KeyTemperature].GetNumberValue(),
		Humidity:        fields[KeyHumidity].GetNumberValue(),
		SmokeLevel:      int(fields[KeySmokeLevel].GetNumberValue()),
		DoorOpen:        fields[KeyDoorOpen].GetBoolValue(),
		PIRInside:       fields[KeyPIRInside].GetBoolValue(),
		AlarmOn:         fields[KeyAlarmOn].GetBoolValue(),
		DistanceOutside: fields[KeyDistanceOutside].GetNumberValue(),
		EventCode:       alert.EventCode(fields[KeyEventCode].GetNumberValue()),
		StatusText:      fields[KeyStatusText].GetStringValue(),
	}
}

// FragmentToStruct encodes only the values present in f.
func FragmentToStruct(f alert.Fragment) *structpb.Struct {
	fields := make(map[string]*structpb.Value)

	putNumber(fields, KeyTemperature, f.Temperature)
	putNumber(fields, KeyHumidity, f.Humidity)
	putNumber(fields, KeyDistanceOutside, f.DistanceOutside)
	putBool(fields, KeyDoorOpen, f.DoorOpen)
	putBool(fields, KeyPIRInside, f.PIRInside)
	putBool(fields, KeyAlarmOn, f.AlarmOn)

	if f.SmokeLevel != nil {
		fields[KeySmokeLevel] = structpb.NewNumberValue(float64(*f.SmokeLevel))
	}

	return &structpb.Struct{Fields: fields}
}

// FragmentFromStruct decodes the keys present in st.
func FragmentFromStruct(st *structpb.Struct) alert.Fragment {
	fields := st.GetFields()

	f := alert.Fragment{
		Temperature:     getNumber(fields, KeyTemperature),
		Humidity:        getNumber(fields, KeyHumidity),
		DistanceOutside: getNumber(fields, KeyDistanceOutside),
		DoorOpen:        getBool(fields, KeyDoorOpen),
		PIRInside:       getBool(fields, KeyPIRInside),
		AlarmOn:         getBool(fields, KeyAlarmOn),
	}

	if v := getNumber(fields, KeySmokeLevel); v != nil {
		f.SmokeLevel = alert.Ptr(int(*v))
	}

	return f
}

// ReadingsToStruct encodes event readings.
func ReadingsToStruct(r alert.Readings) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		KeyTemperature: structpb.NewNumberValue(r.Temperature),
		KeyHumidity:    structpb.NewNumberValue(r.Humidity),
		KeySmokeLevel:  structpb.NewNumberValue(float64(r.SmokeLevel)),
		KeyDistance:    structpb.NewNumberValue(r.Distance),
		KeyPIR:         structpb.NewBoolValue(r.PIR),
		KeyUltrasonic:  structpb.NewBoolValue(r.Ultrasonic),
	}}
}

// ReadingsFromStruct decodes event readings.
func ReadingsFromStruct(st *structpb.Struct) alert.Readings {
	fields := st.GetFields()

	return alert.Readings{
		Temperature: fields[KeyTemperature].GetNumberValue(),
		Humidity:    fields[KeyHumidity].GetNumberValue(),
		SmokeLevel:  int(fields[KeySmokeLevel].GetNumberValue()),
		Distance:    fields[KeyDistance].GetNumberValue(),
		PIR:         fields[KeyPIR].GetBoolValue(),
		Ultrasonic:  fields[KeyUltrasonic].GetBoolValue(),
	}
}

// EventToStruct encodes an event. Severity is not sent: the receiver
// classifies the event again with its own thresholds.
func EventToStruct(ev alert.Event) *structpb.Struct {
	fields := map[string]*structpb.Value{
		KeyKind:     structpb.NewStringValue(ev.Kind.String()),
		KeyReadings: structpb.NewStructValue(ReadingsToStruct(ev.Readings)),
	}

	if ev.Reason != "" {
		fields[KeyReason] = structpb.NewStringValue(ev.Reason)
	}

	if ev.Source != "" {
		fields[KeySource] = structpb.NewStringValue(ev.Source)
	}

	if !ev.OccurredAt.IsZero() {
		fields[KeyOccurredAt] = structpb.NewStringValue(ev.OccurredAt.UTC().Format(time.RFC3339Nano))
	}

	return &structpb.Struct{Fields: fields}
}

// EventFromStruct decodes and classifies an event. An unknown kind is an
// error here: this is where untrusted input meets the closed kind set.
func EventFromStruct(st *structpb.Struct, thresholds alert.Thresholds) (alert.Event, error) {
	fields := st.GetFields()

	name := fields[KeyKind].GetStringValue()
	if name == "" {
		return alert.Event{}, ErrMissingKind
	}

	kind, err := alert.ParseKind(name)
	if err != nil {
		return alert.Event{}, err
	}

	opts := []alert.Option{
		alert.WithThresholds(thresholds),
		alert.WithReason(fields[KeyReason].GetStringValue()),
		alert.WithSource(fields[KeySource].GetStringValue()),
		alert.WithReadings(ReadingsFromStruct(fields[KeyReadings].GetStructValue())),
	}

	if raw := fields[KeyOccurredAt].GetStringValue(); raw != "" {
		occurredAt, parseErr := time.Parse(time.RFC3339Nano, raw)
		if parseErr != nil {
			return alert.Event{}, fmt.Errorf("%w: %w", ErrInvalidTime, parseErr)
		}

		opts = append(opts, alert.WithTime(occurredAt))
	}

	return alert.NewEvent(kind, opts...), nil
}

func putNumber(fields map[string]*structpb.Value, key string, v *float64) {
	if v != nil {
		fields[key] = structpb.NewNumberValue(*v)
	}
}

func putBool(fields map[string]*structpb.Value, key string, v *bool) {
	if v != nil {
		fields[key] = structpb.NewBoolValue(*v)
	}
}

func getNumber(fields map[string]*structpb.Value, key string) *float64 {
	v, ok := fields[key]
	if !ok {
		return nil
	}

	if _, isNumber := v.GetKind().(*structpb.Value_NumberValue); !isNumber {
		return nil
	}

	return alert.Ptr(v.GetNumberValue())
}

func getBool(fields map[string]*structpb.Value, key string) *bool {
	v, ok := fields[key]
	if !ok {
		return nil
	}

	if _, isBool := v.GetKind().(*structpb.Value_BoolValue); !isBool {
		return nil
	}

	return alert.Ptr(v.GetBoolValue())
}
