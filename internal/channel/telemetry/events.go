package telemetry

import (
	"context"
	"strconv"
	"strings"

	"github.com/oshokin/garage-alert/internal/domain/alert"
)

// LogEvent publishes the snapshot derived from ev and base. Intrusion and
// FireAlert override the cooldown; SystemStart clears it first; every other
// kind is a routine write.
func (c *Channel) LogEvent(ctx context.Context, ev alert.Event, base alert.Snapshot) Result {
	s := Derive(ev, base)

	g := gateRoutine

	switch {
	case ev.Kind == alert.KindSystemStart:
		g = gateReset
	case ev.Kind.IsLifeSafety():
		g = gateForce
	}

	return c.write(ctx, s, g)
}

// LogDoorOpen records that the door was opened.
func (c *Channel) LogDoorOpen(ctx context.Context, reason string, base alert.Snapshot) Result {
	return c.LogEvent(ctx, c.event(alert.KindDoorOpen, base, alert.WithReason(reason)), base)
}

// LogDoorClose records that the door was closed.
func (c *Channel) LogDoorClose(ctx context.Context, reason string, base alert.Snapshot) Result {
	return c.LogEvent(ctx, c.event(alert.KindDoorClose, base, alert.WithReason(reason)), base)
}

// LogIntrusion records an intrusion. It is never dropped by the cooldown.
func (c *Channel) LogIntrusion(ctx context.Context, base alert.Snapshot) Result {
	return c.LogEvent(ctx, c.event(alert.KindIntrusion, base), base)
}

// LogFireAlert records a fire. It is never dropped by the cooldown.
func (c *Channel) LogFireAlert(ctx context.Context, base alert.Snapshot) Result {
	return c.LogEvent(ctx, c.event(alert.KindFireAlert, base), base)
}

// LogSmokeAlert records a high smoke level.
func (c *Channel) LogSmokeAlert(ctx context.Context, base alert.Snapshot) Result {
	return c.LogEvent(ctx, c.event(alert.KindSmokeAlert, base), base)
}

// LogHighTemperature records an abnormal temperature.
func (c *Channel) LogHighTemperature(ctx context.Context, base alert.Snapshot) Result {
	return c.LogEvent(ctx, c.event(alert.KindHighTemperature, base), base)
}

// LogPersonDetected records motion at location.
func (c *Channel) LogPersonDetected(ctx context.Context, location string, base alert.Snapshot) Result {
	return c.LogEvent(ctx, c.event(alert.KindPersonDetected, base, alert.WithReason(location)), base)
}

// LogVehicleDetected records a vehicle at distance centimeters.
func (c *Channel) LogVehicleDetected(ctx context.Context, distance float64, base alert.Snapshot) Result {
	readings := readingsOf(base)
	readings.Distance = distance

	ev := alert.NewEvent(alert.KindVehicleDetected, alert.WithReadings(readings), alert.WithTime(c.clock.Now()))

	return c.LogEvent(ctx, ev, base)
}

// LogAlarmOn records that the alarm was activated.
func (c *Channel) LogAlarmOn(ctx context.Context, reason string, base alert.Snapshot) Result {
	return c.LogEvent(ctx, c.event(alert.KindAlarmOn, base, alert.WithReason(reason)), base)
}

// LogAlarmOff records that source deactivated the alarm.
func (c *Channel) LogAlarmOff(ctx context.Context, source string, base alert.Snapshot) Result {
	return c.LogEvent(ctx, c.event(alert.KindAlarmOff, base, alert.WithSource(source)), base)
}

// LogSystemStart records a boot. The cooldown is cleared so the first
// boot record is always written.
func (c *Channel) LogSystemStart(ctx context.Context) Result {
	return c.LogEvent(ctx, alert.NewEvent(alert.KindSystemStart, alert.WithTime(c.clock.Now())), alert.Snapshot{})
}

// event builds an event of kind carrying the readings of base.
func (c *Channel) event(kind alert.Kind, base alert.Snapshot, opts ...alert.Option) alert.Event {
	opts = append(opts, alert.WithReadings(readingsOf(base)), alert.WithTime(c.clock.Now()))

	return alert.NewEvent(kind, opts...)
}

// Derive returns the snapshot published for ev: base with the event's
// non-zero readings merged in, the kind's state flags applied, the event
// code set and a status text describing the event.
func Derive(ev alert.Event, base alert.Snapshot) alert.Snapshot {
	if ev.Kind == alert.KindSystemStart {
		return alert.Snapshot{
			EventCode:  alert.EventCodeSystemStart,
			StatusText: "System started",
		}
	}

	s := mergeReadings(base, ev.Readings)
	s.EventCode = ev.Kind.Code()

	switch ev.Kind {
	case alert.KindDoorOpen:
		s.DoorOpen = true
		s.StatusText = withDetail("Door opened", ev.Reason)
	case alert.KindDoorClose:
		s.DoorOpen = false
		s.StatusText = withDetail("Door closed", ev.Reason)
	case alert.KindIntrusion:
		s.AlarmOn = true
		s.StatusText = "INTRUSION DETECTED!"
	case alert.KindFireAlert:
		s.AlarmOn = true
		s.StatusText = "FIRE! Temp:" + oneDecimal(s.Temperature) + "C Smoke:" + strconv.Itoa(s.SmokeLevel)
	case alert.KindSmokeAlert:
		s.StatusText = "High smoke detected: " + strconv.Itoa(s.SmokeLevel)
	case alert.KindHighTemperature:
		s.StatusText = "High temperature: " + oneDecimal(s.Temperature) + "C"
	case alert.KindPersonDetected:
		s.PIRInside = true
		s.StatusText = withDetail("Person at", ev.Reason)
	case alert.KindVehicleDetected:
		s.DistanceOutside = ev.Readings.Distance
		s.StatusText = "Vehicle at " + oneDecimal(s.DistanceOutside) + "cm"
	case alert.KindAlarmOn:
		s.AlarmOn = true
		s.StatusText = withDetail("Alarm activated", ev.Reason)
	case alert.KindAlarmOff:
		s.AlarmOn = false
		s.StatusText = withDetail("Alarm OFF by", ev.Source)
	case alert.KindTest:
		s.StatusText = "Test update"
	default:
		s.StatusText = ev.Kind.String()
	}

	return s
}

// readingsOf lifts the measured values of a snapshot into event readings.
func readingsOf(s alert.Snapshot) alert.Readings {
	return alert.Readings{
		Temperature: s.Temperature,
		Humidity:    s.Humidity,
		SmokeLevel:  s.SmokeLevel,
		Distance:    s.DistanceOutside,
		PIR:         s.PIRInside,
	}
}

// mergeReadings copies the non-zero measured values of r into s. Readings
// carry no presence flags, so a true zero (0 °C, 0 cm) is indistinguishable
// from "not measured" and never overwrites s; send such values through a
// Fragment, whose pointer fields mark presence.
func mergeReadings(s alert.Snapshot, r alert.Readings) alert.Snapshot {
	if r.Temperature != 0 {
		s.Temperature = r.Temperature
	}

	if r.Humidity != 0 {
		s.Humidity = r.Humidity
	}

	if r.SmokeLevel != 0 {
		s.SmokeLevel = r.SmokeLevel
	}

	if r.Distance != 0 {
		s.DistanceOutside = r.Distance
	}

	if r.PIR {
		s.PIRInside = true
	}

	return s
}

func withDetail(text, detail string) string {
	detail = strings.TrimSpace(detail)
	if detail == "" {
		return strings.TrimSuffix(text, " by")
	}

	if strings.HasSuffix(text, " by") {
		return text + " " + detail
	}

	return text + ": " + detail
}

func oneDecimal(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}
