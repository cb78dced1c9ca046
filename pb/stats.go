package pb

import (
	"google.golang.org/protobuf/encoding/protowire"
)

type StatisticDuration struct {
	Count uint64
	Ns    uint64
}

func (m *StatisticDuration) Reset() { *m = StatisticDuration{} }

func (m *StatisticDuration) MarshalAppend(b []byte) ([]byte, error) {
	b = appendUvarint(b, 1, m.Count)
	return appendUvarint(b, 2, m.Ns), nil
}

func (m *StatisticDuration) Unmarshal(b []byte) error {
	m.Reset()
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return readUint64(typ, b, &m.Count)
		case 2:
			return readUint64(typ, b, &m.Ns)
		}
		return 0, nil
	})
}

// durations lists message fields holding a StatisticDuration, by field number.
type durations map[protowire.Number]**StatisticDuration

func (d durations) append(b []byte, order ...protowire.Number) (_ []byte, err error) {
	for _, num := range order {
		if v := *d[num]; v != nil {
			if b, err = appendMessage(b, num, v); err != nil {
				return b, err
			}
		}
	}
	return b, nil
}

func (d durations) read(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
	dst, ok := d[num]
	if !ok {
		return 0, nil
	}
	*dst = new(StatisticDuration)
	return readMessage(typ, b, *dst)
}

type InferStatistics struct {
	Success       *StatisticDuration
	Fail          *StatisticDuration
	Queue         *StatisticDuration
	ComputeInput  *StatisticDuration
	ComputeInfer  *StatisticDuration
	ComputeOutput *StatisticDuration
	CacheHit      *StatisticDuration
	CacheMiss     *StatisticDuration
}

func (m *InferStatistics) fields() durations {
	return durations{
		1: &m.Success, 2: &m.Fail, 3: &m.Queue, 4: &m.ComputeInput,
		5: &m.ComputeInfer, 6: &m.ComputeOutput, 7: &m.CacheHit, 8: &m.CacheMiss,
	}
}

func (m *InferStatistics) Reset() { *m = InferStatistics{} }

func (m *InferStatistics) MarshalAppend(b []byte) ([]byte, error) {
	return m.fields().append(b, 1, 2, 3, 4, 5, 6, 7, 8)
}

func (m *InferStatistics) Unmarshal(b []byte) error {
	m.Reset()
	return walk(b, m.fields().read)
}

type InferBatchStatistics struct {
	BatchSize     uint64
	ComputeInput  *StatisticDuration
	ComputeInfer  *StatisticDuration
	ComputeOutput *StatisticDuration
}

func (m *InferBatchStatistics) fields() durations {
	return durations{2: &m.ComputeInput, 3: &m.ComputeInfer, 4: &m.ComputeOutput}
}

func (m *InferBatchStatistics) Reset() { *m = InferBatchStatistics{} }

func (m *InferBatchStatistics) MarshalAppend(b []byte) ([]byte, error) {
	b = appendUvarint(b, 1, m.BatchSize)
	return m.fields().append(b, 2, 3, 4)
}

func (m *InferBatchStatistics) Unmarshal(b []byte) error {
	m.Reset()
	fields := m.fields()
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == 1 {
			return readUint64(typ, b, &m.BatchSize)
		}
		return fields.read(num, typ, b)
	})
}

type ModelStatistics struct {
	Name           string
	Version        string
	LastInference  uint64
	InferenceCount uint64
	ExecutionCount uint64
	InferenceStats *InferStatistics
	BatchStats     []*InferBatchStatistics
}

func (m *ModelStatistics) Reset() { *m = ModelStatistics{} }

func (m *ModelStatistics) MarshalAppend(b []byte) (_ []byte, err error) {
	b = appendString(b, 1, m.Name)
	b = appendString(b, 2, m.Version)
	b = appendUvarint(b, 3, m.LastInference)
	b = appendUvarint(b, 4, m.InferenceCount)
	b = appendUvarint(b, 5, m.ExecutionCount)
	if m.InferenceStats != nil {
		if b, err = appendMessage(b, 6, m.InferenceStats); err != nil {
			return b, err
		}
	}
	for _, s := range m.BatchStats {
		if b, err = appendMessage(b, 7, s); err != nil {
			return b, err
		}
	}
	return b, nil
}

func (m *ModelStatistics) Unmarshal(b []byte) error {
	m.Reset()
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return readString(typ, b, &m.Name)
		case 2:
			return readString(typ, b, &m.Version)
		case 3:
			return readUint64(typ, b, &m.LastInference)
		case 4:
			return readUint64(typ, b, &m.InferenceCount)
		case 5:
			return readUint64(typ, b, &m.ExecutionCount)
		case 6:
			m.InferenceStats = new(InferStatistics)
			return readMessage(typ, b, m.InferenceStats)
		case 7:
			s := new(InferBatchStatistics)
			m.BatchStats = append(m.BatchStats, s)
			return readMessage(typ, b, s)
		}
		return 0, nil
	})
}

type ModelStatisticsResponse struct {
	ModelStats []*ModelStatistics
}

func (m *ModelStatisticsResponse) Reset() { *m = ModelStatisticsResponse{} }

func (m *ModelStatisticsResponse) MarshalAppend(b []byte) (_ []byte, err error) {
	for _, s := range m.ModelStats {
		if b, err = appendMessage(b, 1, s); err != nil {
			return b, err
		}
	}
	return b, nil
}

func (m *ModelStatisticsResponse) Unmarshal(b []byte) error {
	m.Reset()
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == 1 {
			s := new(ModelStatistics)
			m.ModelStats = append(m.ModelStats, s)
			return readMessage(typ, b, s)
		}
		return 0, nil
	})
}
