// Package native implements the on-device recognizer tier: a single-utterance
// streaming recognition session against a local gRPC recognizer daemon.
package native

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	serviceName              = "murmur.recognizer.v1.Recognizer"
	streamingRecognizeMethod = "/" + serviceName + "/StreamingRecognize"
)

// Server is implemented by recognizer backends served over gRPC.
type Server interface {
	StreamingRecognize(stream ServerStream) error
}

// ServerStream is the server side of one recognition stream.
type ServerStream interface {
	Context() context.Context
	Recv() (*structpb.Struct, error)
	Send(*structpb.Struct) error
}

type serverStream struct {
	grpc.ServerStream
}

func (s *serverStream) Recv() (*structpb.Struct, error) {
	msg := new(structpb.Struct)
	if err := s.RecvMsg(msg); err != nil {
		return nil, err
	}
	return msg, nil
}

func (s *serverStream) Send(msg *structpb.Struct) error {
	return s.SendMsg(msg)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*Server)(nil),
	Streams: []grpc.StreamDesc{{
		StreamName: "StreamingRecognize",
		Handler: func(srv any, stream grpc.ServerStream) error {
			return srv.(Server).StreamingRecognize(&serverStream{ServerStream: stream})
		},
		ServerStreams: true,
		ClientStreams: true,
	}},
	Metadata: "murmur/recognizer/v1/recognizer.proto",
}

// RegisterServer exposes srv as the recognizer service on registrar.
func RegisterServer(registrar grpc.ServiceRegistrar, srv Server) {
	registrar.RegisterService(&serviceDesc, srv)
}
