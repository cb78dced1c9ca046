// Package bench generates inference load at a scheduled rate and reports
// throughput and status codes.
package bench

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ozontech/tritonclient/output"
	"github.com/ozontech/tritonclient/pb"
)

// Inferer submits one request in wire form.
type Inferer interface {
	InferEncoded(ctx context.Context, req pb.Encoded) (*pb.ModelInferResponse, error)
}

type Config struct {
	// Clients is the number of concurrent request loops.
	Clients int
	// Duration stops scheduling once reached, 0 means no limit.
	Duration time.Duration
	// Decode makes every response go through output decoding.
	Decode bool
}

type Runner struct {
	client   Inferer
	sched    Scheduler
	reporter *Reporter
	conf     Config
	log      *zap.Logger
}

func NewRunner(client Inferer, sched Scheduler, reporter *Reporter, conf Config, log *zap.Logger) *Runner {
	if conf.Clients < 1 {
		conf.Clients = 1
	}
	return &Runner{
		client:   client,
		sched:    sched,
		reporter: reporter,
		conf:     conf,
		log:      log.Named("bench"),
	}
}

// Run sends req until the scheduler stops, the duration is over or ctx is
// done. Failed requests are reported, not returned.
func (r *Runner) Run(ctx context.Context, req *pb.ModelInferRequest) error {
	limit := r.conf.Duration
	if limit == 0 {
		limit = math.MaxInt64
	}

	b, err := pb.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	wire := pb.Encoded(b)

	g, ctx := errgroup.WithContext(ctx)
	var n atomic.Int64
	begin := time.Now()
	for i := 0; i < r.conf.Clients; i++ {
		g.Go(func() error {
			for {
				at, ok := r.sched.Next(n.Add(1) - 1)
				if !ok || at > limit {
					return nil
				}
				if wait := at - time.Since(begin); wait > 0 {
					t := time.NewTimer(wait)
					select {
					case <-t.C:
					case <-ctx.Done():
						t.Stop()
						return nil
					}
				}
				if ctx.Err() != nil {
					return nil
				}
				r.do(ctx, wire)
			}
		})
	}

	err = g.Wait()
	r.log.Info("load finished",
		zap.Int64("scheduled", n.Load()),
		zap.Duration("took", time.Since(begin)),
	)
	return err
}

func (r *Runner) do(ctx context.Context, req pb.Encoded) {
	s := r.reporter.Acquire(len(req))
	resp, err := r.client.InferEncoded(ctx, req)
	if err == nil && r.conf.Decode {
		_, err = output.New(resp)
	}
	if err != nil {
		r.log.Debug("request failed", zap.Error(err))
	}
	s.End(resp, err)
}
