package pb

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/jhump/protoreflect/desc"
	"github.com/jhump/protoreflect/desc/protoparse"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"
)

const schemaFile = "inference.proto"

//go:embed inference.proto
var inferenceProto string

var ErrUnknownMessage = errors.New("pb: unknown message")

// Schema gives reflective access to the inference service, used to render
// wire messages as JSON and back.
type Schema struct {
	file    *desc.FileDescriptor
	service *desc.ServiceDescriptor
}

// LoadSchema parses the embedded service definition.
func LoadSchema() (*Schema, error) {
	fds, err := protoparse.Parser{
		Accessor: protoparse.FileContentsFromMap(map[string]string{
			schemaFile: inferenceProto,
		}),
	}.ParseFiles(schemaFile)
	if err != nil {
		return nil, fmt.Errorf("can't parse %s: %w", schemaFile, err)
	}

	file := fds[0]
	service := file.FindService(ServiceName)
	if service == nil {
		return nil, fmt.Errorf("service %s not found in %s", ServiceName, schemaFile)
	}
	return &Schema{file: file, service: service}, nil
}

var defaultSchema = sync.OnceValues(LoadSchema)

// DefaultSchema returns the lazily parsed embedded schema.
func DefaultSchema() (*Schema, error) {
	return defaultSchema()
}

// Message finds a message by its short ("ModelInferResponse") or fully
// qualified ("inference.ModelInferResponse") name.
func (s *Schema) Message(name string) (protoreflect.MessageDescriptor, error) {
	if !strings.Contains(name, ".") {
		name = s.file.GetPackage() + "." + name
	}
	md := s.file.FindMessage(name)
	if md == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMessage, name)
	}
	return md.UnwrapMessage(), nil
}

// Method returns request and response descriptors of a full method name
// ("/inference.GRPCInferenceService/ModelInfer").
func (s *Schema) Method(fullMethod string) (in, out protoreflect.MessageDescriptor, err error) {
	name := fullMethod[strings.LastIndexByte(fullMethod, '/')+1:]
	md := s.service.FindMethodByName(name)
	if md == nil {
		return nil, nil, fmt.Errorf("no such method: %s", fullMethod)
	}
	return md.GetInputType().UnwrapMessage(), md.GetOutputType().UnwrapMessage(), nil
}

// JSON decodes wire bytes of the named message and renders them with protojson.
func (s *Schema) JSON(name string, wire []byte) ([]byte, error) {
	md, err := s.Message(name)
	if err != nil {
		return nil, err
	}
	return WireToJSON(md, wire)
}

// Wire parses protojson of the named message into wire bytes.
func (s *Schema) Wire(name string, js []byte) ([]byte, error) {
	md, err := s.Message(name)
	if err != nil {
		return nil, err
	}
	return JSONToWire(md, js)
}

func WireToJSON(md protoreflect.MessageDescriptor, wire []byte) ([]byte, error) {
	msg := dynamicpb.NewMessage(md)
	if err := proto.Unmarshal(wire, msg); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", md.FullName(), err)
	}
	return protojson.MarshalOptions{Multiline: true}.Marshal(msg)
}

func JSONToWire(md protoreflect.MessageDescriptor, js []byte) ([]byte, error) {
	msg := dynamicpb.NewMessage(md)
	if err := protojson.Unmarshal(js, msg); err != nil {
		return nil, fmt.Errorf("unmarshalling json payload for %s: %w", md.FullName(), err)
	}
	b, err := proto.MarshalOptions{Deterministic: true}.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshaling %s into binary: %w", md.FullName(), err)
	}
	return b, nil
}
