package alert

import (
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/garage-alert/internal/api/alertpb"
	"github.com/oshokin/garage-alert/internal/channel"
	domain "github.com/oshokin/garage-alert/internal/domain/alert"
	"github.com/oshokin/garage-alert/internal/service/dispatcher"
)

// Message keys.
const (
	keyEvent    = "event"
	keyFragment = "fragment"
	keyRemote   = "remote"

	keySeverity           = "severity"
	keyPushDelivered      = "push_delivered"
	keyPushOutcome        = "push_outcome"
	keyPushRemoteID       = "push_remote_id"
	keyTelemetryDelivered = "telemetry_delivered"
	keyTelemetryOutcome   = "telemetry_outcome"

	keyPush                   = "push"
	keyTelemetry              = "telemetry"
	keyEnabled                = "enabled"
	keyReady                  = "ready"
	keySendCount              = "send_count"
	keySecondsUntilNextUpdate = "seconds_until_next_update"
	keyDispatched             = "dispatched"
	keyWorking                = "working"
	keyPublished              = "published"
	keyRemoteFields           = "remote_fields"
	keyRemoteStatus           = "remote_status"
)

// NewDispatchRequest builds a Dispatch request.
func NewDispatchRequest(ev domain.Event, fragment domain.Fragment) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		keyEvent:    structpb.NewStructValue(alertpb.EventToStruct(ev)),
		keyFragment: structpb.NewStructValue(alertpb.FragmentToStruct(fragment)),
	}}
}

// NewDiagnosticsRequest builds a GetDiagnostics request.
func NewDiagnosticsRequest(remote bool) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		keyRemote: structpb.NewBoolValue(remote),
	}}
}

// ResultToStruct encodes a dispatch result.
func ResultToStruct(r dispatcher.Result) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		keySeverity:           structpb.NewStringValue(r.Severity.String()),
		keyPushDelivered:      structpb.NewBoolValue(r.PushDelivered),
		keyPushOutcome:        structpb.NewStringValue(r.PushOutcome.String()),
		keyPushRemoteID:       structpb.NewNumberValue(float64(r.PushRemoteID)),
		keyTelemetryDelivered: structpb.NewBoolValue(r.TelemetryDelivered),
		keyTelemetryOutcome:   structpb.NewStringValue(r.TelemetryOutcome.String()),
	}}
}

// ResultFromStruct decodes a dispatch result. Unknown names decode to the
// zero severity and the Skipped outcome.
func ResultFromStruct(st *structpb.Struct) dispatcher.Result {
	fields := st.GetFields()

	severity, _ := domain.ParseSeverity(fields[keySeverity].GetStringValue())
	pushOutcome, _ := channel.ParseOutcome(fields[keyPushOutcome].GetStringValue())
	telemetryOutcome, _ := channel.ParseOutcome(fields[keyTelemetryOutcome].GetStringValue())

	return dispatcher.Result{
		Severity:           severity,
		PushDelivered:      fields[keyPushDelivered].GetBoolValue(),
		PushOutcome:        pushOutcome,
		PushRemoteID:       int64(fields[keyPushRemoteID].GetNumberValue()),
		TelemetryDelivered: fields[keyTelemetryDelivered].GetBoolValue(),
		TelemetryOutcome:   telemetryOutcome,
	}
}

// DiagnosticsToStruct encodes diagnostics.
func DiagnosticsToStruct(d dispatcher.Diagnostics) *structpb.Struct {
	fields := map[string]*structpb.Value{
		keyPush:                   structpb.NewStructValue(channelToStruct(d.Push)),
		keyTelemetry:              structpb.NewStructValue(channelToStruct(d.Telemetry)),
		keySecondsUntilNextUpdate: structpb.NewNumberValue(float64(d.SecondsUntilNextUpdate)),
		keyDispatched:             structpb.NewNumberValue(float64(d.Dispatched)),
		keyWorking:                structpb.NewStructValue(alertpb.SnapshotToStruct(d.Working)),
		keyPublished:              structpb.NewStructValue(alertpb.SnapshotToStruct(d.Published)),
	}

	if d.Remote != nil {
		values := make([]*structpb.Value, 0, len(d.Remote.Fields))
		for _, v := range d.Remote.Fields {
			values = append(values, structpb.NewNumberValue(v))
		}

		fields[keyRemoteFields] = structpb.NewListValue(&structpb.ListValue{Values: values})
		fields[keyRemoteStatus] = structpb.NewStringValue(d.Remote.Status)
	}

	return &structpb.Struct{Fields: fields}
}

// DiagnosticsFromStruct decodes diagnostics.
func DiagnosticsFromStruct(st *structpb.Struct) dispatcher.Diagnostics {
	fields := st.GetFields()

	d := dispatcher.Diagnostics{
		Push:                   channelFromStruct(fields[keyPush].GetStructValue()),
		Telemetry:              channelFromStruct(fields[keyTelemetry].GetStructValue()),
		SecondsUntilNextUpdate: int(fields[keySecondsUntilNextUpdate].GetNumberValue()),
		Dispatched:             int(fields[keyDispatched].GetNumberValue()),
		Working:                alertpb.SnapshotFromStruct(fields[keyWorking].GetStructValue()),
		Published:              alertpb.SnapshotFromStruct(fields[keyPublished].GetStructValue()),
	}

	list, ok := fields[keyRemoteFields]
	if !ok {
		return d
	}

	remote := &dispatcher.RemoteReadback{
		Status: fields[keyRemoteStatus].GetStringValue(),
	}

	for i, v := range list.GetListValue().GetValues() {
		if i >= len(remote.Fields) {
			break
		}

		remote.Fields[i] = v.GetNumberValue()
	}

	d.Remote = remote

	return d
}

func channelToStruct(c dispatcher.ChannelDiagnostics) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		keyEnabled:   structpb.NewBoolValue(c.Enabled),
		keyReady:     structpb.NewBoolValue(c.Ready),
		keySendCount: structpb.NewNumberValue(float64(c.SendCount)),
	}}
}

func channelFromStruct(st *structpb.Struct) dispatcher.ChannelDiagnostics {
	fields := st.GetFields()

	return dispatcher.ChannelDiagnostics{
		Enabled:   fields[keyEnabled].GetBoolValue(),
		Ready:     fields[keyReady].GetBoolValue(),
		SendCount: int(fields[keySendCount].GetNumberValue()),
	}
}
