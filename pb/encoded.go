package pb

// Encoded is a message already in wire form. It is sent as is, so a request
// sent many times is encoded once.
type Encoded []byte

func (e Encoded) MarshalAppend(b []byte) ([]byte, error) {
	return append(b, e...), nil
}

func (e *Encoded) Unmarshal(b []byte) error {
	*e = append((*e)[:0], b...)
	return nil
}

func (e *Encoded) Reset() { *e = (*e)[:0] }

var _ Message = (*Encoded)(nil)
