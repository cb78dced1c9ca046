package pb

import (
	"google.golang.org/protobuf/encoding/protowire"
)

// SharedMemoryName selects a region for status and unregister calls,
// an empty name means all regions.
type SharedMemoryName struct {
	Name string
}

func (m *SharedMemoryName) Reset() { *m = SharedMemoryName{} }

func (m *SharedMemoryName) MarshalAppend(b []byte) ([]byte, error) {
	return appendString(b, 1, m.Name), nil
}

func (m *SharedMemoryName) Unmarshal(b []byte) error {
	m.Reset()
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == 1 {
			return readString(typ, b, &m.Name)
		}
		return 0, nil
	})
}

// SharedMemoryRegion is both the register request and a status entry.
type SharedMemoryRegion struct {
	Name     string
	Key      string
	Offset   uint64
	ByteSize uint64
}

func (m *SharedMemoryRegion) Reset() { *m = SharedMemoryRegion{} }

func (m *SharedMemoryRegion) MarshalAppend(b []byte) ([]byte, error) {
	b = appendString(b, 1, m.Name)
	b = appendString(b, 2, m.Key)
	b = appendUvarint(b, 3, m.Offset)
	return appendUvarint(b, 4, m.ByteSize), nil
}

func (m *SharedMemoryRegion) Unmarshal(b []byte) error {
	m.Reset()
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return readString(typ, b, &m.Name)
		case 2:
			return readString(typ, b, &m.Key)
		case 3:
			return readUint64(typ, b, &m.Offset)
		case 4:
			return readUint64(typ, b, &m.ByteSize)
		}
		return 0, nil
	})
}

type SharedMemoryStatusResponse struct {
	Regions map[string]*SharedMemoryRegion
}

func (m *SharedMemoryStatusResponse) Reset() { *m = SharedMemoryStatusResponse{} }

func (m *SharedMemoryStatusResponse) MarshalAppend(b []byte) ([]byte, error) {
	for _, k := range sortedKeys(m.Regions) {
		entry := appendString(nil, 1, k)
		entry, err := appendMessage(entry, 2, m.Regions[k])
		if err != nil {
			return b, err
		}
		b = appendBytes(b, 1, entry)
	}
	return b, nil
}

func (m *SharedMemoryStatusResponse) Unmarshal(b []byte) error {
	m.Reset()
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num != 1 {
			return 0, nil
		}
		if typ != protowire.BytesType {
			return 0, ErrWireType
		}
		entry, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return 0, parseError(n)
		}

		var key string
		region := new(SharedMemoryRegion)
		err := walk(entry, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
			switch num {
			case 1:
				return readString(typ, b, &key)
			case 2:
				return readMessage(typ, b, region)
			}
			return 0, nil
		})
		if err != nil {
			return 0, err
		}
		if m.Regions == nil {
			m.Regions = make(map[string]*SharedMemoryRegion)
		}
		m.Regions[key] = region
		return n, nil
	})
}
