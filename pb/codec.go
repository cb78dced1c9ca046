package pb

import (
	"fmt"

	"google.golang.org/grpc/encoding"
	_ "google.golang.org/grpc/encoding/proto" // registers the fallback codec
)

const codecName = "proto"

// Codec is a grpc codec for the hand-written messages of this package.
// Anything else (health checks, for instance) goes to the registered proto codec.
type Codec struct{}

func (Codec) Name() string { return codecName }

func (Codec) Marshal(v any) ([]byte, error) {
	if m, ok := v.(Message); ok {
		return m.MarshalAppend(nil)
	}
	return fallback().Marshal(v)
}

func (Codec) Unmarshal(data []byte, v any) error {
	if m, ok := v.(Message); ok {
		if err := m.Unmarshal(data); err != nil {
			return fmt.Errorf("unmarshal %T: %w", v, err)
		}
		return nil
	}
	return fallback().Unmarshal(data, v)
}

func fallback() encoding.Codec {
	return encoding.GetCodec(codecName)
}

var _ encoding.Codec = Codec{}
