package dispatcher

import (
	"context"

	"github.com/oshokin/garage-alert/internal/domain/alert"
)

// ChannelDiagnostics describes one channel.
type ChannelDiagnostics struct {
	// Enabled is false when the channel is not wired.
	Enabled bool
	// Ready is true when the credential and connectivity are present.
	Ready bool
	// SendCount is the number of confirmed deliveries.
	SendCount int
}

// Diagnostics is the state exposed to operators.
type Diagnostics struct {
	Push      ChannelDiagnostics
	Telemetry ChannelDiagnostics

	// SecondsUntilNextUpdate is the remaining telemetry cooldown.
	SecondsUntilNextUpdate int
	// Dispatched counts Dispatch calls since start or the last reset.
	Dispatched int
	// Working is the caller's best-known state.
	Working alert.Snapshot
	// Published is the last snapshot telemetry acknowledged.
	Published alert.Snapshot

	// Remote is set only when a read-back was requested.
	Remote *RemoteReadback
}

// RemoteReadback is what the telemetry backend currently stores.
type RemoteReadback struct {
	Fields [alert.FieldCount]float64
	Status string
}

// Diagnostics collects channel state. With remote set it also reads the
// stored fields and status back from the telemetry backend.
func (d *Dispatcher) Diagnostics(ctx context.Context, remote bool) Diagnostics {
	d.mu.Lock()
	diag := Diagnostics{
		Dispatched: d.dispatched,
		Working:    d.working,
	}
	d.mu.Unlock()

	if d.push != nil {
		diag.Push = ChannelDiagnostics{
			Enabled:   true,
			Ready:     d.push.IsReady(ctx),
			SendCount: d.push.SendCount(),
		}
	}

	if d.telemetry == nil {
		return diag
	}

	diag.Telemetry = ChannelDiagnostics{
		Enabled:   true,
		Ready:     d.telemetry.IsReady(ctx),
		SendCount: d.telemetry.SendCount(),
	}
	diag.SecondsUntilNextUpdate = d.telemetry.SecondsUntilNextUpdate()
	diag.Published = d.telemetry.CurrentSnapshot()

	if !remote {
		return diag
	}

	readback := new(RemoteReadback)
	for i := range readback.Fields {
		readback.Fields[i] = d.telemetry.ReadField(ctx, i+1)
	}

	readback.Status = d.telemetry.ReadStatus(ctx)
	diag.Remote = readback

	return diag
}
