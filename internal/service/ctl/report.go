package ctl

import (
	"fmt"
	"io"
	"strconv"

	"github.com/oshokin/garage-alert/internal/domain/alert"
	"github.com/oshokin/garage-alert/internal/service/dispatcher"
)

// writeResult prints one dispatch result.
func writeResult(w io.Writer, kind alert.Kind, r dispatcher.Result) {
	_, _ = fmt.Fprintf(w, "event:      %s (%s)\n", kind, r.Severity)

	push := r.PushOutcome.String()
	if r.PushDelivered && r.PushRemoteID > 0 {
		push += " id=" + strconv.FormatInt(r.PushRemoteID, 10)
	}

	_, _ = fmt.Fprintf(w, "push:       %s\n", push)
	_, _ = fmt.Fprintf(w, "telemetry:  %s\n", r.TelemetryOutcome)
}

// writeDiagnostics prints channel state and both snapshots.
func writeDiagnostics(w io.Writer, d dispatcher.Diagnostics) {
	_, _ = fmt.Fprintf(w, "push:       %s\n", channelLine(d.Push))
	_, _ = fmt.Fprintf(w, "telemetry:  %s, next update in %ds\n", channelLine(d.Telemetry), d.SecondsUntilNextUpdate)
	_, _ = fmt.Fprintf(w, "dispatched: %d\n", d.Dispatched)

	writeSnapshot(w, "working", d.Working)
	writeSnapshot(w, "published", d.Published)

	if d.Remote == nil {
		return
	}

	_, _ = fmt.Fprint(w, "remote:    ")

	for i, v := range d.Remote.Fields {
		_, _ = fmt.Fprintf(w, " field%d=%s", i+1, strconv.FormatFloat(v, 'f', -1, 64))
	}

	_, _ = fmt.Fprintf(w, " status=%q\n", d.Remote.Status)
}

// writeSnapshot prints one snapshot on a single line.
func writeSnapshot(w io.Writer, label string, s alert.Snapshot) {
	_, _ = fmt.Fprintf(w,
		"%-11s temp=%.1f humidity=%.1f smoke=%d door_open=%t pir=%t alarm=%t distance=%.1f code=%d",
		label+":", s.Temperature, s.Humidity, s.SmokeLevel, s.DoorOpen, s.PIRInside, s.AlarmOn,
		s.DistanceOutside, int(s.EventCode))

	if s.StatusText != "" {
		_, _ = fmt.Fprintf(w, " status=%q", s.StatusText)
	}

	_, _ = fmt.Fprintln(w)
}

func channelLine(c dispatcher.ChannelDiagnostics) string {
	state := "disabled"

	switch {
	case c.Enabled && c.Ready:
		state = "ready"
	case c.Enabled:
		state = "offline"
	}

	return state + ", sent " + strconv.Itoa(c.SendCount)
}
