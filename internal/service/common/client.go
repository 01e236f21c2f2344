//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/oshokin/garage-alert/internal/api/alertpb"
	api "github.com/oshokin/garage-alert/internal/api/grpc/alert"
	"github.com/oshokin/garage-alert/internal/config"
	"github.com/oshokin/garage-alert/internal/domain/alert"
	"github.com/oshokin/garage-alert/internal/service/dispatcher"
)

// Client wraps the gRPC AlertService client with convenience helpers.
type Client struct {
	// conn is the underlying gRPC connection to the alert daemon.
	conn *grpc.ClientConn
	// api is the AlertService client.
	api *api.AlertServiceClient

	// callTimeout is the default timeout for individual RPC calls.
	callTimeout time.Duration
}

// Option configures client behaviour.
type Option func(*Client)

// WithCallTimeout sets a default timeout for service calls.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.callTimeout = timeout
		}
	}
}

var (
	// errAddressRequired is returned when a required address value is missing.
	errAddressRequired = errors.New("address must be provided")
	// errNotConnected is returned when a call is made on a client without a connection.
	errNotConnected = errors.New("client is not connected")
	// errEmptyFragment is returned when Observe is called without readings.
	errEmptyFragment = errors.New("at least one reading must be provided")
)

// Dial establishes a gRPC connection to the alert daemon.
// Note: this uses insecure transport credentials; deploy on a trusted network
// or terminate TLS in a proxy.
func Dial(_ context.Context, address string, opts ...Option) (*Client, error) {
	if address == "" {
		return nil, errAddressRequired
	}

	conn, err := grpc.NewClient(address, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial alert daemon: %w", err)
	}

	client := newClient(conn, opts...)
	client.conn = conn

	return client, nil
}

func newClient(cc grpc.ClientConnInterface, opts ...Option) *Client {
	client := &Client{
		api:         api.NewAlertServiceClient(cc),
		callTimeout: config.DefaultTimeout,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// Close releases the underlying gRPC connection.
func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}

	return c.conn.Close()
}

// Dispatch sends an event together with the readings observed alongside it.
func (c *Client) Dispatch(ctx context.Context, ev alert.Event, fragment alert.Fragment) (dispatcher.Result, error) {
	if c.api == nil {
		return dispatcher.Result{}, errNotConnected
	}

	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	response, err := c.api.Dispatch(callCtx, api.NewDispatchRequest(ev, fragment))
	if err != nil {
		return dispatcher.Result{}, fmt.Errorf("dispatch %s: %w", ev.Kind, err)
	}

	return api.ResultFromStruct(response), nil
}

// Observe merges readings into the daemon's working snapshot.
func (c *Client) Observe(ctx context.Context, fragment alert.Fragment) (alert.Snapshot, error) {
	if fragment.IsEmpty() {
		return alert.Snapshot{}, errEmptyFragment
	}

	if c.api == nil {
		return alert.Snapshot{}, errNotConnected
	}

	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	response, err := c.api.Observe(callCtx, alertpb.FragmentToStruct(fragment))
	if err != nil {
		return alert.Snapshot{}, fmt.Errorf("observe: %w", err)
	}

	return alertpb.SnapshotFromStruct(response), nil
}

// Diagnostics reads channel state; remote adds a read-back from the telemetry backend.
func (c *Client) Diagnostics(ctx context.Context, remote bool) (dispatcher.Diagnostics, error) {
	if c.api == nil {
		return dispatcher.Diagnostics{}, errNotConnected
	}

	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	response, err := c.api.GetDiagnostics(callCtx, api.NewDiagnosticsRequest(remote))
	if err != nil {
		return dispatcher.Diagnostics{}, fmt.Errorf("get diagnostics: %w", err)
	}

	return api.DiagnosticsFromStruct(response), nil
}

// ResetCounters zeroes the daemon's send counters.
func (c *Client) ResetCounters(ctx context.Context) error {
	if c.api == nil {
		return errNotConnected
	}

	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	if _, err := c.api.ResetCounters(callCtx, new(emptypb.Empty)); err != nil {
		return fmt.Errorf("reset counters: %w", err)
	}

	return nil
}

// callContext returns a context with the client's call timeout if configured,
// otherwise a cancellable child context without a deadline.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.callTimeout)
}
