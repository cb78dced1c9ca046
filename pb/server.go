package pb

import (
	"google.golang.org/protobuf/encoding/protowire"
)

// Empty stands for every request and response without fields.
type Empty struct{}

func (*Empty) Reset() {}

func (*Empty) MarshalAppend(b []byte) ([]byte, error) { return b, nil }

func (*Empty) Unmarshal(b []byte) error {
	return walk(b, func(protowire.Number, protowire.Type, []byte) (int, error) {
		return 0, nil
	})
}

// ModelRequest addresses a model (and optionally one of its versions).
// Used by the ready, metadata, config and statistics calls.
type ModelRequest struct {
	Name    string
	Version string
}

func (m *ModelRequest) Reset() { *m = ModelRequest{} }

func (m *ModelRequest) MarshalAppend(b []byte) ([]byte, error) {
	b = appendString(b, 1, m.Name)
	return appendString(b, 2, m.Version), nil
}

func (m *ModelRequest) Unmarshal(b []byte) error {
	m.Reset()
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return readString(typ, b, &m.Name)
		case 2:
			return readString(typ, b, &m.Version)
		}
		return 0, nil
	})
}

type ServerLiveResponse struct {
	Live bool
}

func (m *ServerLiveResponse) Reset() { *m = ServerLiveResponse{} }

func (m *ServerLiveResponse) MarshalAppend(b []byte) ([]byte, error) {
	return appendBool(b, 1, m.Live), nil
}

func (m *ServerLiveResponse) Unmarshal(b []byte) error {
	m.Reset()
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == 1 {
			return readBool(typ, b, &m.Live)
		}
		return 0, nil
	})
}

// ReadyResponse answers both server and model readiness calls.
type ReadyResponse struct {
	Ready bool
}

func (m *ReadyResponse) Reset() { *m = ReadyResponse{} }

func (m *ReadyResponse) MarshalAppend(b []byte) ([]byte, error) {
	return appendBool(b, 1, m.Ready), nil
}

func (m *ReadyResponse) Unmarshal(b []byte) error {
	m.Reset()
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == 1 {
			return readBool(typ, b, &m.Ready)
		}
		return 0, nil
	})
}

type ServerMetadataResponse struct {
	Name       string
	Version    string
	Extensions []string
}

func (m *ServerMetadataResponse) Reset() { *m = ServerMetadataResponse{} }

func (m *ServerMetadataResponse) MarshalAppend(b []byte) ([]byte, error) {
	b = appendString(b, 1, m.Name)
	b = appendString(b, 2, m.Version)
	for _, ext := range m.Extensions {
		b = protowire.AppendTag(b, 3, protowire.BytesType)
		b = protowire.AppendString(b, ext)
	}
	return b, nil
}

func (m *ServerMetadataResponse) Unmarshal(b []byte) error {
	m.Reset()
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (n int, err error) {
		switch num {
		case 1:
			return readString(typ, b, &m.Name)
		case 2:
			return readString(typ, b, &m.Version)
		case 3:
			var ext string
			n, err = readString(typ, b, &ext)
			m.Extensions = append(m.Extensions, ext)
			return n, err
		}
		return 0, nil
	})
}

type TensorMetadata struct {
	Name     string
	Datatype string
	Shape    []int64
}

func (m *TensorMetadata) Reset() { *m = TensorMetadata{} }

func (m *TensorMetadata) MarshalAppend(b []byte) ([]byte, error) {
	b = appendString(b, 1, m.Name)
	b = appendString(b, 2, m.Datatype)
	return appendInt64s(b, 3, m.Shape), nil
}

func (m *TensorMetadata) Unmarshal(b []byte) error {
	m.Reset()
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return readString(typ, b, &m.Name)
		case 2:
			return readString(typ, b, &m.Datatype)
		case 3:
			return readInt64s(typ, b, &m.Shape)
		}
		return 0, nil
	})
}

type ModelMetadataResponse struct {
	Name     string
	Versions []string
	Platform string
	Inputs   []*TensorMetadata
	Outputs  []*TensorMetadata
}

func (m *ModelMetadataResponse) Reset() { *m = ModelMetadataResponse{} }

func (m *ModelMetadataResponse) MarshalAppend(b []byte) (_ []byte, err error) {
	b = appendString(b, 1, m.Name)
	for _, v := range m.Versions {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendString(b, v)
	}
	b = appendString(b, 3, m.Platform)
	for _, in := range m.Inputs {
		if b, err = appendMessage(b, 4, in); err != nil {
			return b, err
		}
	}
	for _, out := range m.Outputs {
		if b, err = appendMessage(b, 5, out); err != nil {
			return b, err
		}
	}
	return b, nil
}

func (m *ModelMetadataResponse) Unmarshal(b []byte) error {
	m.Reset()
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (n int, err error) {
		switch num {
		case 1:
			return readString(typ, b, &m.Name)
		case 2:
			var v string
			n, err = readString(typ, b, &v)
			m.Versions = append(m.Versions, v)
			return n, err
		case 3:
			return readString(typ, b, &m.Platform)
		case 4:
			in := new(TensorMetadata)
			m.Inputs = append(m.Inputs, in)
			return readMessage(typ, b, in)
		case 5:
			out := new(TensorMetadata)
			m.Outputs = append(m.Outputs, out)
			return readMessage(typ, b, out)
		}
		return 0, nil
	})
}
