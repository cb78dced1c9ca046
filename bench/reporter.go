package bench

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/ozontech/tritonclient/pb"
	"github.com/ozontech/tritonclient/utils/pool"
)

// Reporter counts results and prints per-second and total lines to out.
type Reporter struct {
	out      io.Writer
	interval time.Duration
	pool     *pool.Free[*Sample]
	closeCh  chan struct{}
	closed   sync.Once
	phout    *Phout

	start   time.Time
	ok      atomic.Uint64
	failed  atomic.Uint64
	req     atomic.Uint64
	size    atomic.Uint64
	latency atomic.Int64

	mu    sync.Mutex
	codes map[codes.Code]uint64

	lastOk     uint64
	lastFailed uint64
	lastReq    uint64
	lastSize   uint64
	lastTime   time.Time
}

type ReporterOption func(*Reporter)

// WithPhout also records every request to p.
func WithPhout(p *Phout) ReporterOption {
	return func(r *Reporter) {
		r.phout = p
	}
}

func NewReporter(out io.Writer, interval time.Duration, opts ...ReporterOption) *Reporter {
	now := time.Now()
	r := &Reporter{
		out:      out,
		interval: interval,
		closeCh:  make(chan struct{}),
		codes:    make(map[codes.Code]uint64),
		start:    now,
		lastTime: now,
	}
	r.pool = pool.New(100, func() *Sample { return &Sample{reporter: r} })
	for _, o := range opts {
		o(r)
	}
	return r
}

// Run prints a line every interval until Close, then the totals.
func (r *Reporter) Run() error {
	t := time.NewTicker(r.interval)
	defer t.Stop()
	defer r.total()
	for {
		select {
		case now := <-t.C:
			r.report(now)
		case <-r.closeCh:
			return nil
		}
	}
}

func (r *Reporter) Close() error {
	r.closed.Do(func() { close(r.closeCh) })
	return nil
}

// Acquire starts timing one request of reqSize bytes.
func (r *Reporter) Acquire(reqSize int) *Sample {
	r.req.Add(1)
	s := r.pool.Get()
	s.reqSize = reqSize
	s.start = time.Now()
	return s
}

func (r *Reporter) accept(s *Sample, code codes.Code, size int) {
	end := time.Now()
	if code == codes.OK {
		r.ok.Add(1)
		r.latency.Add(int64(end.Sub(s.start)))
	} else {
		r.failed.Add(1)
	}
	r.size.Add(uint64(size))
	if r.phout != nil {
		r.phout.record(phoutEntry{start: s.start, end: end, reqSize: s.reqSize, respSize: size, code: code})
	}

	r.mu.Lock()
	r.codes[code]++
	r.mu.Unlock()

	r.pool.Put(s)
}

type Stats struct {
	OK       uint64
	Failed   uint64
	Requests uint64
	Bytes    uint64
	// MeanLatency is over successful requests.
	MeanLatency time.Duration
	Codes       map[codes.Code]uint64
}

func (r *Reporter) Stats() Stats {
	st := Stats{
		OK:       r.ok.Load(),
		Failed:   r.failed.Load(),
		Requests: r.req.Load(),
		Bytes:    r.size.Load(),
		Codes:    make(map[codes.Code]uint64),
	}
	if st.OK > 0 {
		st.MeanLatency = time.Duration(r.latency.Load() / int64(st.OK))
	}

	r.mu.Lock()
	for c, n := range r.codes {
		st.Codes[c] = n
	}
	r.mu.Unlock()
	return st
}

func (r *Reporter) write(ok, failed, req, size uint64, d time.Duration) {
	total := ok + failed
	ms := d.Milliseconds()
	if ms > 0 {
		fmt.Fprintf(r.out,
			"total=%d ok=%d failed=%d req=%d size=%s/s req/s=%.2f resp/s=%.2f\n",
			total, ok, failed, req,
			humanize.Bytes(size*1000/uint64(ms)),
			float64(req)*1000/float64(ms), float64(total)*1000/float64(ms),
		)
	} else {
		fmt.Fprintf(r.out, "total=%d ok=%d failed=%d req=%d\n", total, ok, failed, req)
	}
}

func (r *Reporter) total() {
	st := r.Stats()
	fmt.Fprintln(r.out, "total")
	r.write(st.OK, st.Failed, st.Requests, st.Bytes, time.Since(r.start))
	fmt.Fprintf(r.out, "received=%s mean=%s codes=%s\n",
		humanize.Bytes(st.Bytes), st.MeanLatency, formatCodes(st.Codes))
}

func (r *Reporter) report(now time.Time) {
	ok, failed, req, size := r.ok.Load(), r.failed.Load(), r.req.Load(), r.size.Load()
	r.write(ok-r.lastOk, failed-r.lastFailed, req-r.lastReq, size-r.lastSize, now.Sub(r.lastTime))
	r.lastOk, r.lastFailed, r.lastReq, r.lastSize, r.lastTime = ok, failed, req, size, now
}

func formatCodes(m map[codes.Code]uint64) string {
	parts := make([]string, 0, len(m))
	for c, n := range m {
		parts = append(parts, fmt.Sprintf("%s:%d", c, n))
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}

// Sample is one request in flight. It returns to the reporter on End.
type Sample struct {
	reporter *Reporter
	start    time.Time
	reqSize  int
}

// End records the outcome. Size counts raw output bytes of the response.
func (s *Sample) End(resp *pb.ModelInferResponse, err error) {
	size := 0
	if resp != nil {
		for _, raw := range resp.RawOutputContents {
			size += len(raw)
		}
	}
	s.reporter.accept(s, status.Code(err), size)
}
