package cmd

import (
	"github.com/spf13/pflag"

	"github.com/oshokin/garage-alert/internal/domain/alert"
)

// readingFlags collects sensor values given on the command line.
type readingFlags struct {
	temperature float64
	humidity    float64
	smoke       int
	distance    float64
	pir         bool
	ultrasonic  bool
	doorOpen    bool
	alarmOn     bool
}

// register adds the reading flags to fs.
func (r *readingFlags) register(fs *pflag.FlagSet) {
	fs.Float64Var(&r.temperature, "temperature", 0, "temperature in °C")
	fs.Float64Var(&r.humidity, "humidity", 0, "humidity in percent")
	fs.IntVar(&r.smoke, "smoke", 0, "raw smoke sensor level")
	fs.Float64Var(&r.distance, "distance", 0, "outside ultrasonic distance in cm")
	fs.BoolVar(&r.pir, "pir", false, "inside motion sensor fired")
	fs.BoolVar(&r.ultrasonic, "ultrasonic", false, "inside ultrasonic sensor saw an object")
	fs.BoolVar(&r.doorOpen, "door-open", false, "garage door is open")
	fs.BoolVar(&r.alarmOn, "alarm-on", false, "alarm is armed")
}

// readings returns the event readings.
func (r *readingFlags) readings() alert.Readings {
	return alert.Readings{
		Temperature: r.temperature,
		Humidity:    r.humidity,
		SmokeLevel:  r.smoke,
		Distance:    r.distance,
		PIR:         r.pir,
		Ultrasonic:  r.ultrasonic,
	}
}

// fragment returns only the values whose flags were set explicitly.
func (r *readingFlags) fragment(fs *pflag.FlagSet) alert.Fragment {
	var f alert.Fragment

	if fs.Changed("temperature") {
		f.Temperature = alert.Ptr(r.temperature)
	}

	if fs.Changed("humidity") {
		f.Humidity = alert.Ptr(r.humidity)
	}

	if fs.Changed("smoke") {
		f.SmokeLevel = alert.Ptr(r.smoke)
	}

	if fs.Changed("distance") {
		f.DistanceOutside = alert.Ptr(r.distance)
	}

	if fs.Changed("pir") {
		f.PIRInside = alert.Ptr(r.pir)
	}

	if fs.Changed("door-open") {
		f.DoorOpen = alert.Ptr(r.doorOpen)
	}

	if fs.Changed("alarm-on") {
		f.AlarmOn = alert.Ptr(r.alarmOn)
	}

	return f
}
