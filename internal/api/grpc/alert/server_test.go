package alert

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/garage-alert/internal/api/alertpb"
	"github.com/oshokin/garage-alert/internal/channel"
	domain "github.com/oshokin/garage-alert/internal/domain/alert"
	"github.com/oshokin/garage-alert/internal/service/dispatcher"
)

// fakeService implements the Service interface for unit testing the transport.
type fakeService struct {
	mu sync.Mutex

	// events records every dispatched event.
	events []domain.Event
	// fragments records every fragment passed to Dispatch or Observe.
	fragments []domain.Fragment
	// working is the snapshot returned by Observe.
	working domain.Snapshot
	// remote records the flag of the last Diagnostics call.
	remote bool
	// resets counts ResetCounters calls.
	resets int
}

func (f *fakeService) Dispatch(_ context.Context, ev domain.Event, fragment domain.Fragment) dispatcher.Result {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.events = append(f.events, ev)
	f.fragments = append(f.fragments, fragment)

	return dispatcher.Result{
		Severity:           ev.Severity,
		PushDelivered:      true,
		PushOutcome:        channel.OutcomeDelivered,
		PushRemoteID:       42,
		TelemetryDelivered: false,
		TelemetryOutcome:   channel.OutcomeRateLimited,
	}
}

func (f *fakeService) Observe(fragment domain.Fragment) domain.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.fragments = append(f.fragments, fragment)
	f.working = fragment.ApplyTo(f.working)

	return f.working
}

func (f *fakeService) Diagnostics(_ context.Context, remote bool) dispatcher.Diagnostics {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.remote = remote

	d := dispatcher.Diagnostics{
		Push:                   dispatcher.ChannelDiagnostics{Enabled: true, Ready: true, SendCount: 3},
		Telemetry:              dispatcher.ChannelDiagnostics{Enabled: true, Ready: false, SendCount: 7},
		SecondsUntilNextUpdate: 12,
		Dispatched:             10,
		Working:                f.working,
	}

	if remote {
		d.Remote = &dispatcher.RemoteReadback{
			Fields: [domain.FieldCount]float64{21.5, 40, 120, 1, 0, 1, 0, 4},
			Status: "FIRE!",
		}
	}

	return d
}

func (f *fakeService) ResetCounters() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.resets++
}

// calls returns copies of the recorded state.
func (f *fakeService) calls() ([]domain.Event, []domain.Fragment, bool, int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]domain.Event(nil), f.events...), append([]domain.Fragment(nil), f.fragments...), f.remote, f.resets
}

// TestServer_Validation ensures malformed requests return InvalidArgument errors.
func TestServer_Validation(t *testing.T) {
	t.Parallel()

	s := NewServer(new(fakeService), domain.DefaultThresholds())

	_, err := s.Dispatch(context.Background(), nil)
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = s.Dispatch(context.Background(), new(structpb.Struct))
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	unknown := &structpb.Struct{Fields: map[string]*structpb.Value{
		keyEvent: structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
			alertpb.KeyKind: structpb.NewStringValue("earthquake"),
		}}),
	}}

	_, err = s.Dispatch(context.Background(), unknown)
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = s.Observe(context.Background(), nil)
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = s.Observe(context.Background(), new(structpb.Struct))
	require.Equal(t, codes.InvalidArgument, status.Code(err))
}

// TestServer_DispatchReclassifies checks that the server classifies events
// with its own thresholds rather than trusting the caller.
func TestServer_DispatchReclassifies(t *testing.T) {
	t.Parallel()

	service := new(fakeService)
	s := NewServer(service, domain.Thresholds{TemperatureCritical: 50, SmokeCritical: 500})

	ev := domain.NewEvent(domain.KindSmokeAlert,
		domain.WithReadings(domain.Readings{Temperature: 55, SmokeLevel: 600}),
		domain.WithSource("mq2"),
	)
	require.Equal(t, domain.SeverityHigh, ev.Severity)

	response, err := s.Dispatch(context.Background(), NewDispatchRequest(ev, domain.Fragment{DoorOpen: domain.Ptr(true)}))
	require.NoError(t, err)

	result := ResultFromStruct(response)
	require.Equal(t, domain.SeverityEmergency, result.Severity)
	require.True(t, result.PushDelivered)
	require.Equal(t, int64(42), result.PushRemoteID)
	require.Equal(t, channel.OutcomeRateLimited, result.TelemetryOutcome)

	events, fragments, _, _ := service.calls()
	require.Len(t, events, 1)
	require.Equal(t, domain.KindSmokeAlert, events[0].Kind)
	require.Equal(t, "mq2", events[0].Source)
	require.NotNil(t, fragments[0].DoorOpen)
	require.True(t, *fragments[0].DoorOpen)
}

// TestMessages_DiagnosticsRoundtrip verifies the diagnostics encoding keeps
// every field, including the optional remote read-back.
func TestMessages_DiagnosticsRoundtrip(t *testing.T) {
	t.Parallel()

	d := dispatcher.Diagnostics{
		Push:                   dispatcher.ChannelDiagnostics{Enabled: true, Ready: false, SendCount: 2},
		Telemetry:              dispatcher.ChannelDiagnostics{Enabled: false, Ready: false, SendCount: 0},
		SecondsUntilNextUpdate: 5,
		Dispatched:             9,
		Working:                domain.Snapshot{Temperature: 21.5, DoorOpen: true, EventCode: domain.EventCodeDoorOpen, StatusText: "Door opened: remote"},
		Published:              domain.Snapshot{Temperature: 20},
	}

	decoded := DiagnosticsFromStruct(DiagnosticsToStruct(d))
	require.Equal(t, d, decoded)

	d.Remote = &dispatcher.RemoteReadback{Fields: [domain.FieldCount]float64{1, 2, 3, 4, 5, 6, 7, 8}, Status: "ok"}

	decoded = DiagnosticsFromStruct(DiagnosticsToStruct(d))
	require.Equal(t, d, decoded)
}

// TestServer_GRPCRoundtrip exercises the hand-written service descriptor over
// an in-memory gRPC connection.
func TestServer_GRPCRoundtrip(t *testing.T) {
	t.Parallel()

	service := new(fakeService)
	listener := bufconn.Listen(1 << 20)

	grpcServer := grpc.NewServer()
	RegisterAlertServiceServer(grpcServer, NewServer(service, domain.DefaultThresholds()))

	go func() {
		_ = grpcServer.Serve(listener)
	}()

	t.Cleanup(grpcServer.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return listener.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() { _ = conn.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client := NewAlertServiceClient(conn)

	observed, err := client.Observe(ctx, alertpb.FragmentToStruct(domain.Fragment{Temperature: domain.Ptr(23.5)}))
	require.NoError(t, err)
	require.InDelta(t, 23.5, alertpb.SnapshotFromStruct(observed).Temperature, 1e-9)

	ev := domain.NewEvent(domain.KindFireAlert, domain.WithReadings(domain.Readings{Temperature: 72.5, SmokeLevel: 850}))

	response, err := client.Dispatch(ctx, NewDispatchRequest(ev, domain.Fragment{}))
	require.NoError(t, err)
	require.Equal(t, domain.SeverityEmergency, ResultFromStruct(response).Severity)

	diagnostics, err := client.GetDiagnostics(ctx, NewDiagnosticsRequest(true))
	require.NoError(t, err)

	decoded := DiagnosticsFromStruct(diagnostics)
	require.Equal(t, 3, decoded.Push.SendCount)
	require.Equal(t, 12, decoded.SecondsUntilNextUpdate)
	require.NotNil(t, decoded.Remote)
	require.Equal(t, "FIRE!", decoded.Remote.Status)

	_, _, remote, _ := service.calls()
	require.True(t, remote)

	_, err = client.ResetCounters(ctx, new(emptypb.Empty))
	require.NoError(t, err)

	_, _, _, resets := service.calls()
	require.Equal(t, 1, resets)

	_, err = client.Observe(ctx, new(structpb.Struct))
	require.Equal(t, codes.InvalidArgument, status.Code(err))
}
