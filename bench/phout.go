package bench

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"time"

	"google.golang.org/grpc/codes"
)

// Phout writes one tab separated line per request in the phout format read
// by load testing tools.
type Phout struct {
	w    *bufio.Writer
	tag  string
	ch   chan phoutEntry
	line []byte
}

type phoutEntry struct {
	start, end time.Time
	reqSize    int
	respSize   int
	code       codes.Code
}

func NewPhout(w io.Writer, tag string) *Phout {
	return &Phout{
		w:    bufio.NewWriter(w),
		tag:  tag,
		ch:   make(chan phoutEntry, 256),
		line: make([]byte, 0, 128),
	}
}

// Run writes lines until Close and flushes. After a write error the rest
// is drained so requests never block on the report.
func (p *Phout) Run() error {
	var err error
	for e := range p.ch {
		if err != nil {
			continue
		}
		if _, err = p.w.Write(p.format(e)); err != nil {
			err = fmt.Errorf("write: %w", err)
		}
	}
	if err != nil {
		return err
	}
	return p.w.Flush()
}

// Close must be called once no more requests end.
func (p *Phout) Close() error {
	close(p.ch)
	return nil
}

func (p *Phout) record(e phoutEntry) {
	p.ch <- e
}

const tabChar = '\t'

func (p *Phout) format(e phoutEntry) []byte {
	l := p.line[:0]
	l = strconv.AppendInt(l, e.start.Unix(), 10)
	l = append(l, '.')
	l = strconv.AppendInt(l, int64(e.start.Nanosecond()/1e6), 10)
	l = append(l, tabChar)
	l = append(l, p.tag...)
	l = append(l, tabChar)

	// rtt
	l = strconv.AppendInt(l, e.end.Sub(e.start).Microseconds(), 10)
	l = append(l, tabChar)
	// connect, send, latency, receive, interval event
	l = append(l, "0\t0\t0\t0\t0\t"...)
	l = strconv.AppendInt(l, int64(e.reqSize), 10)
	l = append(l, tabChar)
	l = strconv.AppendInt(l, int64(e.respSize), 10)
	l = append(l, tabChar)
	l = strconv.AppendInt(l, errno(e.code), 10)
	l = append(l, tabChar)
	l = append(l, "grpc_"...)
	l = strconv.AppendUint(l, uint64(e.code), 10)
	l = append(l, '\n')

	p.line = l
	return l
}

// ETIMEDOUT for deadline errors, tank treats them as net timeouts.
func errno(code codes.Code) int64 {
	if code == codes.DeadlineExceeded {
		return 110
	}
	return 0
}
