// Package grpcapi exposes the resolver over gRPC.
package grpcapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/vietddude/avatar/internal/resolver"
)

const errorDomain = "avatar.v1"

// Server serves the AvatarResolver service and the standard health service.
type Server struct {
	resolver *resolver.Resolver
	grpc     *grpc.Server
	health   *grpchealth.Server
	port     int
	log      *slog.Logger
}

// NewServer creates a gRPC server with both services registered.
func NewServer(res *resolver.Resolver, port int, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		resolver: res,
		grpc:     grpc.NewServer(),
		health:   grpchealth.NewServer(),
		port:     port,
		log:      log.With("component", "grpc"),
	}

	s.grpc.RegisterService(&avatarServiceDesc, s)
	healthpb.RegisterHealthServer(s.grpc, s.health)
	s.health.SetServingStatus(serviceName, healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	return s
}

// Start listens on the configured port and serves until Stop.
func (s *Server) Start() error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		return fmt.Errorf("failed to listen on port %d: %w", s.port, err)
	}
	return s.Serve(lis)
}

// Serve serves on an existing listener.
func (s *Server) Serve(lis net.Listener) error {
	return s.grpc.Serve(lis)
}

// Stop marks the services as not serving and drains in-flight calls.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}

func (s *Server) resolve(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := make(map[string]string, len(req.GetFields()))
	for k, v := range req.GetFields() {
		str, ok := scalarString(v)
		if !ok {
			return nil, invalidArgument(fmt.Sprintf("field %q must be a scalar", k), k)
		}
		fields[k] = str
	}

	view, err := s.resolver.ResolveFields(ctx, fields)
	if err != nil {
		if errors.Is(err, resolver.ErrInvalidRequest) {
			return nil, invalidArgument(err.Error(), "")
		}
		if ctx.Err() != nil {
			return nil, status.FromContextError(ctx.Err()).Err()
		}
		s.log.Error("Resolve failed", "error", err)
		return nil, status.Errorf(codes.Internal, "resolve: %v", err)
	}
	return toStruct(view)
}

func (s *Server) listFailed(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	all, err := s.resolver.Registry().GetAll(ctx)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "list failed sources: %v", err)
	}
	return toStruct(map[string]any{"failed": all, "count": len(all)})
}

func scalarString(v *structpb.Value) (string, bool) {
	switch k := v.GetKind().(type) {
	case *structpb.Value_NullValue:
		return "", true
	case *structpb.Value_StringValue:
		return k.StringValue, true
	case *structpb.Value_NumberValue:
		return strconv.FormatFloat(k.NumberValue, 'f', -1, 64), true
	case *structpb.Value_BoolValue:
		return strconv.FormatBool(k.BoolValue), true
	default:
		return "", false
	}
}

// toStruct converts v through its JSON form so the wire shape matches the
// HTTP API.
func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "marshal response: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, status.Errorf(codes.Internal, "marshal response: %v", err)
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "marshal response: %v", err)
	}
	return out, nil
}

func invalidArgument(msg, field string) error {
	st := status.New(codes.InvalidArgument, msg)
	info := &errdetails.ErrorInfo{
		Reason: "INVALID_AVATAR_FIELD",
		Domain: errorDomain,
	}
	if field != "" {
		info.Metadata = map[string]string{"field": field}
	}
	if withDetails, err := st.WithDetails(info); err == nil {
		st = withDetails
	}
	return st.Err()
}
