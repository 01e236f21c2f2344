package telemetry

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/garage-alert/internal/channel"
	"github.com/oshokin/garage-alert/internal/connectivity"
	"github.com/oshokin/garage-alert/internal/domain/alert"
	"github.com/oshokin/garage-alert/internal/ratelimit"
)

// backendSpy is a fake telemetry backend.
type backendSpy struct {
	updates atomic.Int32
	reads   atomic.Int32

	mu    sync.Mutex
	forms []url.Values
	paths []string

	updateStatus atomic.Int32
	readStatus   int
	readBody     string
}

func newBackendSpy() *backendSpy {
	spy := &backendSpy{readStatus: http.StatusOK}
	spy.updateStatus.Store(http.StatusOK)

	return spy
}

func (s *backendSpy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost && r.URL.Path == "/update" {
		s.updates.Add(1)

		body, _ := io.ReadAll(r.Body)
		form, _ := url.ParseQuery(string(body))

		s.mu.Lock()
		s.forms = append(s.forms, form)
		s.mu.Unlock()

		w.WriteHeader(int(s.updateStatus.Load()))
		_, _ = io.WriteString(w, "1")

		return
	}

	s.reads.Add(1)

	s.mu.Lock()
	s.paths = append(s.paths, r.URL.String())
	s.mu.Unlock()

	w.WriteHeader(s.readStatus)
	_, _ = io.WriteString(w, s.readBody)
}

func (s *backendSpy) lastForm() url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.forms) == 0 {
		return nil
	}

	return s.forms[len(s.forms)-1]
}

func (s *backendSpy) lastPath() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.paths) == 0 {
		return ""
	}

	return s.paths[len(s.paths)-1]
}

// memoryStore records saved snapshots.
type memoryStore struct {
	mu    sync.Mutex
	saved []alert.Snapshot
	err   error
}

func (m *memoryStore) Save(_ context.Context, s alert.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.saved = append(m.saved, s)

	return m.err
}

func newTestChannel(t *testing.T, spy *backendSpy, cfg Config, opts ...Option) (*Channel, *ratelimit.ManualClock) {
	t.Helper()

	srv := httptest.NewServer(spy)
	t.Cleanup(srv.Close)

	clock := ratelimit.NewManualClock(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))

	cfg.BaseURL = srv.URL
	if cfg.WriteKey == "" {
		cfg.WriteKey = "write-key"
	}

	if cfg.ChannelID == "" {
		cfg.ChannelID = "123456"
	}

	opts = append([]Option{
		WithHTTPClient(srv.Client()),
		WithClock(clock),
		WithProbe(connectivity.Static(true)),
	}, opts...)

	return New(cfg, opts...), clock
}

func sampleSnapshot() alert.Snapshot {
	return alert.Snapshot{
		Temperature:     24.5,
		Humidity:        55,
		SmokeLevel:      120,
		DoorOpen:        true,
		AlarmOn:         false,
		DistanceOutside: 310.2,
		EventCode:       alert.EventCodeDoorOpen,
		StatusText:      "Door opened: button",
	}
}

// TestUpdate_Delivered checks the wire fields and the retained snapshot.
func TestUpdate_Delivered(t *testing.T) {
	t.Parallel()

	spy := newBackendSpy()
	store := new(memoryStore)
	ch, _ := newTestChannel(t, spy, Config{MinInterval: 30 * time.Second}, WithStore(store))

	s := sampleSnapshot()
	res := ch.Update(context.Background(), s)

	require.True(t, res.Delivered)
	require.Equal(t, channel.OutcomeDelivered, res.Outcome)
	require.Equal(t, s, ch.CurrentSnapshot())
	require.Equal(t, 1, ch.SendCount())

	form := spy.lastForm()
	require.Equal(t, "write-key", form.Get("api_key"))
	require.Equal(t, "24.5", form.Get("field1"))
	require.Equal(t, "55", form.Get("field2"))
	require.Equal(t, "120", form.Get("field3"))
	require.Equal(t, "1", form.Get("field4"))
	require.Equal(t, "0", form.Get("field5"))
	require.Equal(t, "0", form.Get("field6"))
	require.Equal(t, "310.2", form.Get("field7"))
	require.Equal(t, "1", form.Get("field8"))
	require.Equal(t, "Door opened: button", form.Get("status"))

	require.Equal(t, []alert.Snapshot{s}, store.saved)
	require.Equal(t, 30, ch.SecondsUntilNextUpdate())
}

// TestUpdate_NoStatus omits the status field when the text is empty.
func TestUpdate_NoStatus(t *testing.T) {
	t.Parallel()

	spy := newBackendSpy()
	ch, _ := newTestChannel(t, spy, Config{})

	s := sampleSnapshot()
	s.StatusText = ""

	require.True(t, ch.Update(context.Background(), s).Delivered)
	require.False(t, spy.lastForm().Has("status"))
}

// TestUpdate_Misconfigured never touches the transport without a write key.
func TestUpdate_Misconfigured(t *testing.T) {
	t.Parallel()

	spy := newBackendSpy()
	ch, _ := newTestChannel(t, spy, Config{WriteKey: PlaceholderWriteKey})

	res := ch.LogFireAlert(context.Background(), sampleSnapshot())

	require.False(t, res.Delivered)
	require.Equal(t, channel.OutcomeMisconfigured, res.Outcome)
	require.Zero(t, spy.updates.Load())
	require.Equal(t, alert.Snapshot{}, ch.CurrentSnapshot())
}

// TestUpdate_Failure leaves the retained snapshot and cooldown untouched.
func TestUpdate_Failure(t *testing.T) {
	t.Parallel()

	spy := newBackendSpy()
	store := new(memoryStore)
	initial := alert.Snapshot{Temperature: 20, EventCode: alert.EventCodeSystemStart}
	ch, _ := newTestChannel(t, spy, Config{MinInterval: 30 * time.Second},
		WithStore(store), WithInitialSnapshot(initial))

	spy.updateStatus.Store(http.StatusInternalServerError)

	res := ch.Update(context.Background(), sampleSnapshot())

	require.False(t, res.Delivered)
	require.Equal(t, channel.OutcomeTransportFailure, res.Outcome)
	require.Equal(t, initial, ch.CurrentSnapshot())
	require.Zero(t, ch.SendCount())
	require.Zero(t, ch.SecondsUntilNextUpdate())
	require.Empty(t, store.saved)
}

// TestUpdate_Unavailable reports missing connectivity without a remote call.
func TestUpdate_Unavailable(t *testing.T) {
	t.Parallel()

	spy := newBackendSpy()
	initial := alert.Snapshot{Temperature: 20}
	ch, _ := newTestChannel(t, spy, Config{}, WithProbe(connectivity.Static(false)), WithInitialSnapshot(initial))

	res := ch.Update(context.Background(), sampleSnapshot())

	require.False(t, res.Delivered)
	require.Equal(t, channel.OutcomeUnavailable, res.Outcome)
	require.Zero(t, spy.updates.Load())
	require.Equal(t, initial, ch.CurrentSnapshot())
	require.False(t, ch.IsReady(context.Background()))
}

// TestUpdate_Timeout abandons a backend that never answers and keeps the
// retained snapshot.
func TestUpdate_Timeout(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	t.Cleanup(srv.Close)

	store := new(memoryStore)
	initial := alert.Snapshot{Temperature: 20, EventCode: alert.EventCodeSystemStart}

	ch := New(Config{
		BaseURL:     srv.URL,
		WriteKey:    "write-key",
		MinInterval: 30 * time.Second,
		Timeout:     50 * time.Millisecond,
	}, WithHTTPClient(srv.Client()), WithStore(store), WithInitialSnapshot(initial))

	started := time.Now()
	res := ch.Update(context.Background(), sampleSnapshot())

	require.Less(t, time.Since(started), 5*time.Second)
	require.False(t, res.Delivered)
	require.Equal(t, channel.OutcomeTransportFailure, res.Outcome)
	require.Zero(t, ch.SendCount())
	require.Equal(t, initial, ch.CurrentSnapshot())
	require.Zero(t, ch.SecondsUntilNextUpdate())

	store.mu.Lock()
	defer store.mu.Unlock()

	require.Empty(t, store.saved)
}

// TestUpdate_StoreErrorIsNotFatal keeps the delivery when persisting fails.
func TestUpdate_StoreErrorIsNotFatal(t *testing.T) {
	t.Parallel()

	spy := newBackendSpy()
	store := &memoryStore{err: errors.New("disk full")}
	ch, _ := newTestChannel(t, spy, Config{}, WithStore(store))

	require.True(t, ch.Update(context.Background(), sampleSnapshot()).Delivered)
	require.Len(t, store.saved, 1)
}

// TestLogVehicleDetected_Cooldown drops the second routine write inside the window.
func TestLogVehicleDetected_Cooldown(t *testing.T) {
	t.Parallel()

	spy := newBackendSpy()
	ch, clock := newTestChannel(t, spy, Config{MinInterval: 15 * time.Second})

	first := ch.LogVehicleDetected(context.Background(), 42.3, alert.Snapshot{})
	require.True(t, first.Delivered)

	after := ch.CurrentSnapshot()
	require.Equal(t, alert.EventCodeVehicleDetected, after.EventCode)
	require.InDelta(t, 42.3, after.DistanceOutside, 1e-9)
	require.Equal(t, "Vehicle at 42.3cm", after.StatusText)

	clock.Advance(time.Second)

	second := ch.LogVehicleDetected(context.Background(), 12.0, alert.Snapshot{})
	require.False(t, second.Delivered)
	require.Equal(t, channel.OutcomeRateLimited, second.Outcome)
	require.Equal(t, after, ch.CurrentSnapshot())
	require.EqualValues(t, 1, spy.updates.Load())
	require.Equal(t, 14, ch.SecondsUntilNextUpdate())
}

// TestLogFireAlert_BypassesCooldown publishes a fire right after another write.
func TestLogFireAlert_BypassesCooldown(t *testing.T) {
	t.Parallel()

	spy := newBackendSpy()
	ch, clock := newTestChannel(t, spy, Config{MinInterval: 30 * time.Second})

	require.True(t, ch.Update(context.Background(), sampleSnapshot()).Delivered)

	clock.Advance(time.Second)

	fire := alert.NewEvent(alert.KindFireAlert, alert.WithReadings(alert.Readings{
		Temperature: 72.5,
		Humidity:    40,
		SmokeLevel:  850,
	}))

	res := ch.LogEvent(context.Background(), fire, ch.CurrentSnapshot())
	require.True(t, res.Delivered)
	require.EqualValues(t, 2, spy.updates.Load())

	got := ch.CurrentSnapshot()
	require.Equal(t, alert.EventCodeFireAlert, got.EventCode)
	require.True(t, got.AlarmOn)
	require.Contains(t, got.StatusText, "72.5")
	require.Contains(t, got.StatusText, "850")

	form := spy.lastForm()
	require.Equal(t, "4", form.Get("field8"))
	require.Equal(t, "FIRE! Temp:72.5C Smoke:850", form.Get("status"))

	// The bypass is single-use.
	require.Equal(t, channel.OutcomeRateLimited, ch.LogDoorClose(context.Background(), "button", got).Outcome)
}

// TestLogFireAlert_FailureKeepsCooldown checks that a failed emergency write
// does not leave the cooldown open for the next routine write.
func TestLogFireAlert_FailureKeepsCooldown(t *testing.T) {
	t.Parallel()

	spy := newBackendSpy()
	ch, clock := newTestChannel(t, spy, Config{MinInterval: 30 * time.Second})

	require.True(t, ch.Update(context.Background(), sampleSnapshot()).Delivered)

	retained := ch.CurrentSnapshot()

	clock.Advance(time.Second)
	spy.updateStatus.Store(http.StatusInternalServerError)

	fire := alert.NewEvent(alert.KindFireAlert, alert.WithReadings(alert.Readings{Temperature: 72.5, SmokeLevel: 850}))

	res := ch.LogEvent(context.Background(), fire, retained)
	require.Equal(t, channel.OutcomeTransportFailure, res.Outcome)
	require.EqualValues(t, 2, spy.updates.Load())

	spy.updateStatus.Store(http.StatusOK)

	next := ch.LogDoorClose(context.Background(), "button", retained)
	require.Equal(t, channel.OutcomeRateLimited, next.Outcome)
	require.EqualValues(t, 2, spy.updates.Load())
	require.Equal(t, retained, ch.CurrentSnapshot())
	require.Equal(t, 29, ch.SecondsUntilNextUpdate())
}

// TestLogIntrusion_BypassesCooldown publishes an intrusion inside the window.
func TestLogIntrusion_BypassesCooldown(t *testing.T) {
	t.Parallel()

	spy := newBackendSpy()
	ch, clock := newTestChannel(t, spy, Config{MinInterval: 30 * time.Second})

	require.True(t, ch.LogDoorClose(context.Background(), "button", alert.Snapshot{}).Delivered)

	clock.Advance(time.Second)

	require.True(t, ch.LogIntrusion(context.Background(), ch.CurrentSnapshot()).Delivered)
	require.Equal(t, "INTRUSION DETECTED!", ch.CurrentSnapshot().StatusText)
}

// TestLogSmokeAlert_NoBypass keeps an escalated smoke alert subject to the cooldown.
func TestLogSmokeAlert_NoBypass(t *testing.T) {
	t.Parallel()

	spy := newBackendSpy()
	ch, clock := newTestChannel(t, spy, Config{MinInterval: 30 * time.Second})

	require.True(t, ch.Update(context.Background(), sampleSnapshot()).Delivered)

	clock.Advance(time.Second)

	res := ch.LogSmokeAlert(context.Background(), alert.Snapshot{Temperature: 70, SmokeLevel: 900})
	require.Equal(t, channel.OutcomeRateLimited, res.Outcome)
	require.EqualValues(t, 1, spy.updates.Load())
}

// TestLogSystemStart clears the cooldown and writes a zeroed snapshot.
func TestLogSystemStart(t *testing.T) {
	t.Parallel()

	spy := newBackendSpy()
	ch, _ := newTestChannel(t, spy, Config{MinInterval: 30 * time.Second})

	require.True(t, ch.Update(context.Background(), sampleSnapshot()).Delivered)
	require.True(t, ch.LogSystemStart(context.Background()).Delivered)

	require.Equal(t, alert.Snapshot{
		EventCode:  alert.EventCodeSystemStart,
		StatusText: "System started",
	}, ch.CurrentSnapshot())
}

// TestUpdatePeriodic clears event data and never bypasses the cooldown.
func TestUpdatePeriodic(t *testing.T) {
	t.Parallel()

	spy := newBackendSpy()
	ch, clock := newTestChannel(t, spy, Config{MinInterval: 30 * time.Second})

	require.True(t, ch.UpdatePeriodic(context.Background(), sampleSnapshot()).Delivered)

	got := ch.CurrentSnapshot()
	require.Equal(t, alert.EventCodeNone, got.EventCode)
	require.Empty(t, got.StatusText)
	require.InDelta(t, 24.5, got.Temperature, 1e-9)

	clock.Advance(29 * time.Second)
	require.False(t, ch.UpdatePeriodic(context.Background(), sampleSnapshot()).Delivered)

	clock.Advance(time.Second)
	require.True(t, ch.UpdatePeriodic(context.Background(), sampleSnapshot()).Delivered)
}

// TestUpdateField writes one field and folds it into the retained snapshot.
func TestUpdateField(t *testing.T) {
	t.Parallel()

	spy := newBackendSpy()
	ch, _ := newTestChannel(t, spy, Config{}, WithInitialSnapshot(sampleSnapshot()))

	res := ch.UpdateField(context.Background(), alert.FieldTemperature, 31.5)
	require.True(t, res.Delivered)

	form := spy.lastForm()
	require.Equal(t, "31.5", form.Get("field1"))
	require.False(t, form.Has("field2"))

	got := ch.CurrentSnapshot()
	require.InDelta(t, 31.5, got.Temperature, 1e-9)
	require.InDelta(t, 55.0, got.Humidity, 1e-9)

	require.Equal(t, channel.OutcomeSkipped, ch.UpdateField(context.Background(), 9, 1).Outcome)
	require.EqualValues(t, 1, spy.updates.Load())
}

// TestReadField returns the stored value or zero on failure.
func TestReadField(t *testing.T) {
	t.Parallel()

	spy := newBackendSpy()
	spy.readBody = "23.75\n"
	ch, _ := newTestChannel(t, spy, Config{ReadKey: "read-key"})

	require.InDelta(t, 23.75, ch.ReadField(context.Background(), 1), 1e-9)
	require.Equal(t, "/channels/123456/fields/1/last.txt?api_key=read-key", spy.lastPath())

	require.Zero(t, ch.ReadField(context.Background(), 0))
	require.EqualValues(t, 1, spy.reads.Load())

	failing := newBackendSpy()
	failing.readStatus = http.StatusNotFound
	failing.readBody = "42"
	broken, _ := newTestChannel(t, failing, Config{})

	require.Zero(t, broken.ReadField(context.Background(), 2))
}

// TestReadStatus returns the stored status or an empty string on failure.
func TestReadStatus(t *testing.T) {
	t.Parallel()

	spy := newBackendSpy()
	spy.readBody = `{"created_at":"2024-05-01T12:00:00Z","entry_id":7,"status":"FIRE! Temp:72.5C Smoke:850"}`
	ch, _ := newTestChannel(t, spy, Config{})

	require.Equal(t, "FIRE! Temp:72.5C Smoke:850", ch.ReadStatus(context.Background()))
	require.Equal(t, "/channels/123456/status/last.json", spy.lastPath())

	malformed := newBackendSpy()
	malformed.readBody = "-1"
	broken, _ := newTestChannel(t, malformed, Config{})

	require.Empty(t, broken.ReadStatus(context.Background()))
}

// TestDerive checks the snapshot delta and status text of every kind.
func TestDerive(t *testing.T) {
	t.Parallel()

	base := alert.Snapshot{Temperature: 25, Humidity: 50, SmokeLevel: 100, DoorOpen: true, AlarmOn: true}

	tests := []struct {
		name   string
		event  alert.Event
		status string
		check  func(t *testing.T, s alert.Snapshot)
	}{
		{
			name:   "door close",
			event:  alert.NewEvent(alert.KindDoorClose, alert.WithReason("auto close")),
			status: "Door closed: auto close",
			check:  func(t *testing.T, s alert.Snapshot) { t.Helper(); require.False(t, s.DoorOpen) },
		},
		{
			name:   "alarm off",
			event:  alert.NewEvent(alert.KindAlarmOff, alert.WithSource("remote")),
			status: "Alarm OFF by remote",
			check:  func(t *testing.T, s alert.Snapshot) { t.Helper(); require.False(t, s.AlarmOn) },
		},
		{
			name:   "alarm off without source",
			event:  alert.NewEvent(alert.KindAlarmOff),
			status: "Alarm OFF",
			check:  func(t *testing.T, s alert.Snapshot) { t.Helper(); require.False(t, s.AlarmOn) },
		},
		{
			name:   "person",
			event:  alert.NewEvent(alert.KindPersonDetected, alert.WithReason("inside")),
			status: "Person at: inside",
			check:  func(t *testing.T, s alert.Snapshot) { t.Helper(); require.True(t, s.PIRInside) },
		},
		{
			name:   "smoke",
			event:  alert.NewEvent(alert.KindSmokeAlert, alert.WithReadings(alert.Readings{SmokeLevel: 650})),
			status: "High smoke detected: 650",
			check:  func(t *testing.T, s alert.Snapshot) { t.Helper(); require.Equal(t, 650, s.SmokeLevel) },
		},
		{
			name:   "high temperature keeps base readings",
			event:  alert.NewEvent(alert.KindHighTemperature),
			status: "High temperature: 25.0C",
			check:  func(t *testing.T, s alert.Snapshot) { t.Helper(); require.Equal(t, 100, s.SmokeLevel) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := Derive(tt.event, base)
			require.Equal(t, tt.event.Kind.Code(), got.EventCode)
			require.Equal(t, tt.status, got.StatusText)
			tt.check(t, got)
		})
	}
}
