package rpc

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/becomeliminal/nim-persona/core"
	"github.com/becomeliminal/nim-persona/engine"
	"github.com/becomeliminal/nim-persona/session"
)

// Service implements PersonaChatServer on top of a session registry.
type Service struct {
	registry *session.Registry
	timeout  time.Duration
}

// NewService creates the service. timeout bounds one Step (default: 120s).
func NewService(registry *session.Registry, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Service{registry: registry, timeout: timeout}
}

// NewServer returns a gRPC server with the service and the standard health
// service registered.
func NewServer(svc *Service) *grpc.Server {
	s := grpc.NewServer(grpc.ChainUnaryInterceptor(logUnary))
	RegisterPersonaChatServer(s, svc)

	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, hs)
	return s
}

// Greet opens (or resumes) a session.
func (s *Service) Greet(ctx context.Context, in *wrapperspb.StringValue) (*structpb.Struct, error) {
	id, state, err := s.registry.Open(ctx, in.GetValue())
	if err != nil {
		return nil, statusError(err)
	}
	return stateStruct(id, state, "")
}

// Step runs one turn.
func (s *Service) Step(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	fields := in.GetFields()
	id := fields["session"].GetStringValue()
	content := fields["content"].GetStringValue()
	if id == "" {
		return nil, status.Error(codes.InvalidArgument, "session is required")
	}
	if strings.TrimSpace(content) == "" {
		return nil, statusError(engine.ErrEmptyInput)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	state, err := s.registry.Step(ctx, id, content)
	if err != nil {
		return nil, statusError(err)
	}
	return stateStruct(id, state, state.Messages[len(state.Messages)-1].Content)
}

// Reset replaces the session's chatbot with a fresh one.
func (s *Service) Reset(ctx context.Context, in *wrapperspb.StringValue) (*structpb.Struct, error) {
	state, err := s.registry.Reset(ctx, in.GetValue())
	if err != nil {
		return nil, statusError(err)
	}
	return stateStruct(in.GetValue(), state, "")
}

func stateStruct(id string, state session.State, response string) (*structpb.Struct, error) {
	messages := make([]interface{}, 0, len(state.Messages))
	for _, m := range state.Messages {
		messages = append(messages, map[string]interface{}{
			"role":    string(m.Role),
			"content": m.Content,
		})
	}
	fields := map[string]interface{}{
		"session":  id,
		"messages": messages,
	}
	if response != "" {
		fields["response"] = response
	}
	out, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode state: %v", err)
	}
	return out, nil
}

func statusError(err error) error {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, engine.ErrEmptyInput):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

func logUnary(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	log.Printf("[RPC] %s code=%s duration=%s", info.FullMethod, status.Code(err), time.Since(start))
	return resp, err
}

// messagesFromStruct decodes the "messages" list of a state struct.
func messagesFromStruct(s *structpb.Struct) []core.Message {
	list := s.GetFields()["messages"].GetListValue().GetValues()
	out := make([]core.Message, 0, len(list))
	for _, v := range list {
		f := v.GetStructValue().GetFields()
		out = append(out, core.Message{
			Role:    core.Role(f["role"].GetStringValue()),
			Content: f["content"].GetStringValue(),
		})
	}
	return out
}
