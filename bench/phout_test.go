package bench

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc/codes"

	"github.com/ozontech/tritonclient/pb"
)

func TestPhout(t *testing.T) {
	t.Parallel()
	a := assert.New(t)

	b := new(bytes.Buffer)
	p := NewPhout(b, "echo")
	errChan := make(chan error)
	go func() {
		errChan <- p.Run()
	}()

	start := time.UnixMilli(1700000000123)
	var expected string
	for _, e := range []phoutEntry{
		{start: start, end: start.Add(1500 * time.Microsecond), reqSize: 111, respSize: 12, code: codes.OK},
		{start: start, end: start.Add(time.Second), reqSize: 111, code: codes.DeadlineExceeded},
		{start: start, end: start.Add(time.Millisecond), reqSize: 222, code: codes.Unavailable},
	} {
		p.record(e)
		errno := 0
		if e.code == codes.DeadlineExceeded {
			errno = 110
		}
		expected += fmt.Sprintf(
			"1700000000.123\techo\t%d\t0\t0\t0\t0\t0\t%d\t%d\t%d\tgrpc_%d\n",
			e.end.Sub(e.start).Microseconds(), e.reqSize, e.respSize, errno, e.code,
		)
	}

	a.NoError(p.Close())
	a.NoError(<-errChan)
	a.Equal(expected, b.String())
}

func TestRunnerPhout(t *testing.T) {
	t.Parallel()
	a := assert.New(t)

	b := new(bytes.Buffer)
	p := NewPhout(b, "echo")
	errChan := make(chan error)
	go func() {
		errChan <- p.Run()
	}()

	reporter := NewReporter(new(bytes.Buffer), time.Hour, WithPhout(p))
	runner := NewRunner(&fakeInferer{}, NewCountLimiter(Unlimited{}, 8), reporter, Config{Clients: 2}, zaptest.NewLogger(t))
	require.NoError(t, runner.Run(context.Background(), new(pb.ModelInferRequest)))
	a.NoError(p.Close())
	a.NoError(<-errChan)

	lines := strings.Split(strings.TrimSuffix(b.String(), "\n"), "\n")
	a.Len(lines, 8)
	a.Equal(6, strings.Count(b.String(), "grpc_0\n"))
	for _, l := range lines {
		a.Len(strings.Split(l, "\t"), 12)
	}
}
