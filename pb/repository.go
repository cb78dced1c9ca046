package pb

import (
	"google.golang.org/protobuf/encoding/protowire"
)

type RepositoryIndexRequest struct {
	RepositoryName string
	// Ready restricts the index to models ready for inference.
	Ready bool
}

func (m *RepositoryIndexRequest) Reset() { *m = RepositoryIndexRequest{} }

func (m *RepositoryIndexRequest) MarshalAppend(b []byte) ([]byte, error) {
	b = appendString(b, 1, m.RepositoryName)
	return appendBool(b, 2, m.Ready), nil
}

func (m *RepositoryIndexRequest) Unmarshal(b []byte) error {
	m.Reset()
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return readString(typ, b, &m.RepositoryName)
		case 2:
			return readBool(typ, b, &m.Ready)
		}
		return 0, nil
	})
}

type ModelIndex struct {
	Name    string
	Version string
	State   string
	Reason  string
}

func (m *ModelIndex) Reset() { *m = ModelIndex{} }

func (m *ModelIndex) MarshalAppend(b []byte) ([]byte, error) {
	b = appendString(b, 1, m.Name)
	b = appendString(b, 2, m.Version)
	b = appendString(b, 3, m.State)
	return appendString(b, 4, m.Reason), nil
}

func (m *ModelIndex) Unmarshal(b []byte) error {
	m.Reset()
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return readString(typ, b, &m.Name)
		case 2:
			return readString(typ, b, &m.Version)
		case 3:
			return readString(typ, b, &m.State)
		case 4:
			return readString(typ, b, &m.Reason)
		}
		return 0, nil
	})
}

type RepositoryIndexResponse struct {
	Models []*ModelIndex
}

func (m *RepositoryIndexResponse) Reset() { *m = RepositoryIndexResponse{} }

func (m *RepositoryIndexResponse) MarshalAppend(b []byte) (_ []byte, err error) {
	for _, idx := range m.Models {
		if b, err = appendMessage(b, 1, idx); err != nil {
			return b, err
		}
	}
	return b, nil
}

func (m *RepositoryIndexResponse) Unmarshal(b []byte) error {
	m.Reset()
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == 1 {
			idx := new(ModelIndex)
			m.Models = append(m.Models, idx)
			return readMessage(typ, b, idx)
		}
		return 0, nil
	})
}

// RepositoryModelRequest is the body of both load and unload calls.
// Parameters accept Bool, Int64, String and Bytes values.
type RepositoryModelRequest struct {
	RepositoryName string
	ModelName      string
	Parameters     map[string]Parameter
}

func (m *RepositoryModelRequest) Reset() { *m = RepositoryModelRequest{} }

func (m *RepositoryModelRequest) MarshalAppend(b []byte) ([]byte, error) {
	b = appendString(b, 1, m.RepositoryName)
	b = appendString(b, 2, m.ModelName)
	return repositoryParams.appendParams(b, 3, m.Parameters)
}

func (m *RepositoryModelRequest) Unmarshal(b []byte) error {
	m.Reset()
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return readString(typ, b, &m.RepositoryName)
		case 2:
			return readString(typ, b, &m.ModelName)
		case 3:
			return repositoryParams.readParams(typ, b, &m.Parameters)
		}
		return 0, nil
	})
}
