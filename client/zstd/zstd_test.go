package zstd

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/encoding"
)

func TestRoundTrip(t *testing.T) {
	t.Parallel()
	r := require.New(t)

	c := encoding.GetCompressor(Name)
	r.NotNil(c)

	payload := bytes.Repeat([]byte("tensor data "), 1000)
	for i := 0; i < 3; i++ {
		var buf bytes.Buffer
		w, err := c.Compress(&buf)
		r.NoError(err)
		_, err = w.Write(payload)
		r.NoError(err)
		r.NoError(w.Close())
		r.Less(buf.Len(), len(payload))

		rd, err := c.Decompress(&buf)
		r.NoError(err)
		got, err := io.ReadAll(rd)
		r.NoError(err)
		r.Equal(payload, got)
	}
}
