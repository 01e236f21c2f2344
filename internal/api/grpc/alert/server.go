package alert

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/garage-alert/internal/api/alertpb"
	domain "github.com/oshokin/garage-alert/internal/domain/alert"
	"github.com/oshokin/garage-alert/internal/logger"
	"github.com/oshokin/garage-alert/internal/service/dispatcher"
)

// Service abstracts the business operations the transport layer depends on.
type Service interface {
	Dispatch(ctx context.Context, ev domain.Event, fragment domain.Fragment) dispatcher.Result
	Observe(fragment domain.Fragment) domain.Snapshot
	Diagnostics(ctx context.Context, remote bool) dispatcher.Diagnostics
	ResetCounters()
}

// Server implements the AlertService gRPC API.
type Server struct {
	// service provides the business logic for alert operations.
	service Service
	// thresholds classify incoming events.
	thresholds domain.Thresholds
}

// NewServer wires the provided service implementation into a gRPC handler.
func NewServer(service Service, thresholds domain.Thresholds) *Server {
	return &Server{
		service:    service,
		thresholds: thresholds,
	}
}

// Dispatch classifies the event and sends it to both channels. Partial
// delivery is a normal response, not an error.
func (s *Server) Dispatch(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	fields := req.GetFields()

	eventMessage := fields[keyEvent].GetStructValue()
	if eventMessage == nil {
		return nil, status.Error(codes.InvalidArgument, "event is required")
	}

	ev, err := alertpb.EventFromStruct(eventMessage, s.thresholds)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownKind) {
			logger.WarnKV(ctx, "Rejected event of unknown kind", "error", err)
		}

		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	fragment := alertpb.FragmentFromStruct(fields[keyFragment].GetStructValue())

	return ResultToStruct(s.service.Dispatch(ctx, ev, fragment)), nil
}

// Observe merges sensor readings and returns the working snapshot.
func (s *Server) Observe(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	fragment := alertpb.FragmentFromStruct(req)
	if fragment.IsEmpty() {
		return nil, status.Error(codes.InvalidArgument, "at least one reading is required")
	}

	return alertpb.SnapshotToStruct(s.service.Observe(fragment)), nil
}

// GetDiagnostics returns channel state, optionally with a remote read-back.
func (s *Server) GetDiagnostics(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	remote := req.GetFields()[keyRemote].GetBoolValue()

	return DiagnosticsToStruct(s.service.Diagnostics(ctx, remote)), nil
}

// ResetCounters zeroes the send counters.
func (s *Server) ResetCounters(ctx context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	s.service.ResetCounters()

	logger.Info(ctx, "Send counters reset")

	return new(emptypb.Empty), nil
}
