package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/becomeliminal/nim-persona/core"
)

// Reply is a decoded state struct.
type Reply struct {
	Session  string
	Response string
	Messages []core.Message
}

// Client calls a PersonaChat server.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps an established connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Greet opens (or resumes) a session. An empty ID creates one.
func (c *Client) Greet(ctx context.Context, sessionID string, opts ...grpc.CallOption) (*Reply, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, GreetMethod, wrapperspb.String(sessionID), out, opts...); err != nil {
		return nil, err
	}
	return decodeReply(out), nil
}

// Step sends one human message.
func (c *Client) Step(ctx context.Context, sessionID, content string, opts ...grpc.CallOption) (*Reply, error) {
	in, err := structpb.NewStruct(map[string]interface{}{
		"session": sessionID,
		"content": content,
	})
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, StepMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return decodeReply(out), nil
}

// Reset starts the session over.
func (c *Client) Reset(ctx context.Context, sessionID string, opts ...grpc.CallOption) (*Reply, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, ResetMethod, wrapperspb.String(sessionID), out, opts...); err != nil {
		return nil, err
	}
	return decodeReply(out), nil
}

func decodeReply(s *structpb.Struct) *Reply {
	f := s.GetFields()
	return &Reply{
		Session:  f["session"].GetStringValue(),
		Response: f["response"].GetStringValue(),
		Messages: messagesFromStruct(s),
	}
}
