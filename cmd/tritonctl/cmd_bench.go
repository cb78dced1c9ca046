package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/alecthomas/kong"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/ozontech/tritonclient/bench"
	"github.com/ozontech/tritonclient/client"
)

type RPSConst struct {
	Freq     uint64        `arg:"" required:"" help:"Value req/s."`
	Duration time.Duration `help:"Limit duration (10s, 2h...)."`
}

func (r RPSConst) AfterApply(kongCtx *kong.Context) error {
	sched, err := bench.NewConstant(r.Freq)
	if err != nil {
		return err
	}
	kongCtx.BindTo(sched, (*bench.Scheduler)(nil))
	if r.Duration != 0 {
		kongCtx.Bind(DurationLimit{r.Duration})
	}
	return nil
}

type RPSLine struct {
	From     float64       `arg:"" required:"" help:"Starting req/s."`
	To       float64       `arg:"" required:"" help:"Ending req/s."`
	Duration time.Duration `arg:"" required:"" help:"Duration (10s, 2h...)."`
}

func (r RPSLine) AfterApply(kongCtx *kong.Context) error {
	sched, err := bench.NewLine(r.From, r.To, r.Duration)
	if err != nil {
		return err
	}
	kongCtx.BindTo(sched, (*bench.Scheduler)(nil))
	kongCtx.Bind(DurationLimit{r.Duration})
	return nil
}

type RPSUnlimited struct {
	Duration time.Duration `help:"Limit duration (10s, 2h...)."`
	Count    uint64        `help:"Limit requests count"`
}

func (r RPSUnlimited) AfterApply(kongCtx *kong.Context) error {
	var sched bench.Scheduler = bench.Unlimited{}
	if r.Count != 0 {
		sched = bench.NewCountLimiter(sched, int64(r.Count))
	}
	if r.Duration != 0 {
		kongCtx.Bind(DurationLimit{r.Duration})
	}
	kongCtx.BindTo(sched, (*bench.Scheduler)(nil))
	return nil
}

type RPS struct {
	Const     RPSConst     `cmd:"" group:"rps" help:"Const rps."`
	Line      RPSLine      `cmd:"" group:"rps" help:"Linear rps."`
	Unlimited RPSUnlimited `cmd:"" group:"rps" help:"Unlimited rps (default one)." default:"1"`
}

// DurationLimit stops scheduling new requests, zero means no limit.
type DurationLimit struct {
	Duration time.Duration
}

type BenchCommand struct {
	RequestFlags

	Clients int  `default:"1" help:"Concurrent request loops."`
	Decode  bool   `help:"Decode every response into tensors."`
	Phout   string `help:"Phout report file." type:"path"`

	RPS
}

func (c *BenchCommand) Run(
	ctx context.Context,
	g *Globals,
	w io.Writer,
	sched bench.Scheduler,
	d DurationLimit,
) (err error) {
	in, err := c.modelInput()
	if err != nil {
		return err
	}
	req, err := in.Build()
	if err != nil {
		return err
	}

	log := g.logger()
	cl, err := g.client(client.WithLogger(log))
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, cl.Close()) }()

	// connect before the clock starts
	if _, err := cl.ServerLive(ctx); err != nil {
		return fmt.Errorf("server is not reachable: %w", err)
	}

	var eg errgroup.Group
	var opts []bench.ReporterOption
	var phout *bench.Phout
	if c.Phout != "" {
		f, createErr := os.Create(c.Phout)
		if createErr != nil {
			return fmt.Errorf("creating phout file(%s): %w", c.Phout, createErr)
		}
		defer func() { err = multierr.Append(err, f.Close()) }()
		phout = bench.NewPhout(f, c.Model)
		opts = append(opts, bench.WithPhout(phout))
		eg.Go(phout.Run)
	}

	reporter := bench.NewReporter(w, time.Second, opts...)
	runner := bench.NewRunner(cl, sched, reporter, bench.Config{
		Clients:  c.Clients,
		Duration: d.Duration,
		Decode:   c.Decode,
	}, log)

	eg.Go(reporter.Run)
	err = runner.Run(ctx, req)
	err = multierr.Combine(err, reporter.Close())
	if phout != nil {
		err = multierr.Append(err, phout.Close())
	}
	return multierr.Append(err, eg.Wait())
}
