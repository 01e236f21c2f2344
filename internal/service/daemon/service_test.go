package daemon

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/garage-alert/internal/channel"
	"github.com/oshokin/garage-alert/internal/config"
	"github.com/oshokin/garage-alert/internal/connectivity"
	"github.com/oshokin/garage-alert/internal/domain/alert"
	"github.com/oshokin/garage-alert/internal/ratelimit"
	"github.com/oshokin/garage-alert/internal/repository/snapshot"
)

// providers fakes both remote APIs on one server.
type providers struct {
	server         *httptest.Server
	pushCalls      atomic.Int32
	telemetryCalls atomic.Int32
}

func newProviders(t *testing.T) *providers {
	t.Helper()

	p := new(providers)
	p.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)

		if strings.HasPrefix(r.URL.Path, "/push") {
			p.pushCalls.Add(1)

			_, _ = io.WriteString(w, `{"status":1,"message_ids":"7:1"}`)

			return
		}

		p.telemetryCalls.Add(1)

		_, _ = io.WriteString(w, "1")
	}))
	t.Cleanup(p.server.Close)

	return p
}

// testSettings returns validated settings pointing at the fake providers.
func testSettings(t *testing.T, p *providers) *config.Config {
	t.Helper()

	cfg := config.Default()
	cfg.Push.APIURL = p.server.URL + "/push"
	cfg.Push.PrivateKey = "push-key"
	cfg.Telemetry.BaseURL = p.server.URL
	cfg.Telemetry.ChannelID = "42"
	cfg.Telemetry.WriteKey = "write-key"
	cfg.Snapshot.Path = filepath.Join(t.TempDir(), "snapshot.json")

	require.NoError(t, config.Validate(cfg))

	return cfg
}

// newTestService builds a service on a manual clock.
func newTestService(t *testing.T, cfg *config.Config, doer channel.Doer) (*service, *ratelimit.ManualClock) {
	t.Helper()

	clock := ratelimit.NewManualClock(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))

	svc, err := newService(context.Background(), cfg,
		withDoer(doer),
		withProbe(connectivity.Static(true)),
		withClock(clock),
	)
	require.NoError(t, err)

	t.Cleanup(func() { _ = svc.Close() })

	return svc, clock
}

// TestNewService_RestoresSnapshot checks that the last saved snapshot seeds
// both the telemetry channel and the dispatcher's working snapshot.
func TestNewService_RestoresSnapshot(t *testing.T) {
	t.Parallel()

	p := newProviders(t)
	cfg := testSettings(t, p)

	saved := alert.Snapshot{Temperature: 19.5, Humidity: 61, DoorOpen: true, EventCode: alert.EventCodeDoorOpen}
	require.NoError(t, snapshot.NewFileRepository(cfg.Snapshot.Path).Save(context.Background(), saved))

	svc, _ := newTestService(t, cfg, p.server.Client())

	require.Equal(t, saved, svc.telemetry.CurrentSnapshot())
	require.Equal(t, saved, svc.dispatcher.WorkingSnapshot())
}

// TestNewService_Errors covers invalid persistence and connectivity settings.
func TestNewService_Errors(t *testing.T) {
	t.Parallel()

	p := newProviders(t)

	cfg := testSettings(t, p)
	cfg.Snapshot.Path = ""

	_, err := newService(context.Background(), cfg, withProbe(connectivity.Static(true)))
	require.ErrorIs(t, err, snapshot.ErrPathRequired)

	cfg = testSettings(t, p)
	cfg.Connectivity.Mode = "carrier-pigeon"

	_, err = newService(context.Background(), cfg)
	require.Error(t, err)
}

// TestService_AnnounceAndPublish boots the service, announces the start and
// runs a periodic sample once the telemetry cooldown has passed.
func TestService_AnnounceAndPublish(t *testing.T) {
	t.Parallel()

	p := newProviders(t)
	cfg := testSettings(t, p)
	cfg.Snapshot.Backend = string(snapshot.BackendSQLite)
	cfg.Snapshot.Path = filepath.Join(t.TempDir(), "snapshot.db")

	svc, clock := newTestService(t, cfg, p.server.Client())
	ctx := context.Background()

	result := svc.announce(ctx)
	require.True(t, result.PushDelivered)
	require.Equal(t, int64(7), result.PushRemoteID)
	require.True(t, result.TelemetryDelivered)
	require.Equal(t, alert.EventCodeSystemStart, svc.telemetry.CurrentSnapshot().EventCode)

	svc.dispatcher.Observe(alert.Fragment{Temperature: alert.Ptr(22.5)})

	// Still inside the cooldown: the sample is dropped.
	svc.publish(ctx)
	require.Equal(t, int32(1), p.telemetryCalls.Load())

	clock.Advance(cfg.Telemetry.MinInterval)
	svc.publish(ctx)
	require.Equal(t, int32(2), p.telemetryCalls.Load())

	stored, err := svc.repo.Load(ctx)
	require.NoError(t, err)
	require.InDelta(t, 22.5, stored.Temperature, 1e-9)
	require.Equal(t, alert.EventCodeNone, stored.EventCode)
	require.Empty(t, stored.StatusText)
}

// TestService_MisconfiguredChannels verifies placeholder credentials keep the
// daemon running with both channels reporting Misconfigured.
func TestService_MisconfiguredChannels(t *testing.T) {
	t.Parallel()

	p := newProviders(t)
	cfg := testSettings(t, p)
	cfg.Push.PrivateKey = ""
	cfg.Telemetry.WriteKey = ""

	svc, _ := newTestService(t, cfg, p.server.Client())

	result := svc.announce(context.Background())
	require.Equal(t, channel.OutcomeMisconfigured, result.PushOutcome)
	require.Equal(t, channel.OutcomeMisconfigured, result.TelemetryOutcome)
	require.Zero(t, p.pushCalls.Load())
	require.Zero(t, p.telemetryCalls.Load())
}

// TestLoadSettings_Overrides checks that command-line values win over the file.
func TestLoadSettings_Overrides(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, config.Save(path, config.Default()))

	settings, err := loadSettings(&Options{
		ConfigPath:     path,
		ListenAddress:  "127.0.0.1:6000",
		MetricsAddress: "127.0.0.1:6001",
		SnapshotPath:   "/tmp/other.json",
	})
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:6000", settings.ListenAddress)
	require.Equal(t, "127.0.0.1:6001", settings.MetricsAddress)
	require.Equal(t, "/tmp/other.json", settings.Snapshot.Path)

	_, err = loadSettings(&Options{ConfigPath: filepath.Join(t.TempDir(), "missing.yaml")})
	require.Error(t, err)
}
