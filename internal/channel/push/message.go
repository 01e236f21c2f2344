package push

import (
	"strconv"
	"strings"

	"github.com/oshokin/garage-alert/internal/domain/alert"
)

// renderMessage builds the human-readable body of the notification.
// Physical quantities are formatted with one decimal place.
func renderMessage(ev alert.Event) string {
	r := ev.Readings

	switch ev.Kind {
	case alert.KindIntrusion:
		return withReason("Someone is inside the closed garage! PIR: "+yesNo(r.PIR)+
			", Ultrasonic: "+yesNo(r.Ultrasonic), ev.Reason)
	case alert.KindFireAlert:
		return "Fire detected in the garage! Temperature: " + celsius(r.Temperature) +
			", Smoke: " + strconv.Itoa(r.SmokeLevel) +
			", Humidity: " + percent(r.Humidity) + ". Call the fire department now!"
	case alert.KindVehicleDetected:
		return "Vehicle waiting in front of the garage door (" + oneDecimal(r.Distance) + "cm)"
	case alert.KindHighTemperature:
		return "Abnormally high temperature: " + celsius(r.Temperature) + ". Check the garage now!"
	case alert.KindSmokeAlert:
		return "High smoke level: " + strconv.Itoa(r.SmokeLevel) + ". Check the garage now!"
	case alert.KindAlarmOn:
		return withReason("Garage alarm is ON", ev.Reason)
	case alert.KindAlarmOff:
		if ev.Source != "" {
			return "Garage alarm is OFF (by " + ev.Source + ")"
		}

		return "Garage alarm is OFF"
	case alert.KindDoorOpen:
		return withReason("Garage door opened", ev.Reason)
	case alert.KindDoorClose:
		return withReason("Garage door closed", ev.Reason)
	case alert.KindPersonDetected:
		return withReason("Motion detected inside the garage", ev.Reason)
	case alert.KindSystemStart:
		return "Garage controller is online"
	case alert.KindTest:
		return "Garage notification system is working"
	default:
		return withReason(ev.Kind.String(), ev.Reason)
	}
}

// withReason appends ": reason" when a reason is present.
func withReason(text, reason string) string {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return text
	}

	return text + ": " + reason
}

func oneDecimal(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}

func celsius(v float64) string {
	return oneDecimal(v) + "°C"
}

func percent(v float64) string {
	return oneDecimal(v) + "%"
}

func yesNo(b bool) string {
	if b {
		return "YES"
	}

	return "NO"
}
