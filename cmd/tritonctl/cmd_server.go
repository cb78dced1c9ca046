package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/multierr"

	"github.com/ozontech/tritonclient/pb"
)

var errNotReady = errors.New("not ready")

type HealthCommand struct{}

func (c *HealthCommand) Run(ctx context.Context, g *Globals, w io.Writer) (err error) {
	cl, err := g.client()
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, cl.Close()) }()

	serving, err := cl.HealthCheck(ctx)
	if err != nil {
		return err
	}
	if !serving {
		fmt.Fprintln(w, "NOT_SERVING")
		return errNotReady
	}
	_, err = fmt.Fprintln(w, "SERVING")
	return err
}

type LiveCommand struct{}

func (c *LiveCommand) Run(ctx context.Context, g *Globals, w io.Writer) (err error) {
	cl, err := g.client()
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, cl.Close()) }()

	live, err := cl.ServerLive(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "live=%t\n", live)
	if !live {
		return errNotReady
	}
	return nil
}

type ReadyCommand struct {
	Model   string `arg:"" optional:"" help:"Model name, the server when empty."`
	Version string `help:"Model version."`
}

func (c *ReadyCommand) Run(ctx context.Context, g *Globals, w io.Writer) (err error) {
	cl, err := g.client()
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, cl.Close()) }()

	var ready bool
	if c.Model == "" {
		ready, err = cl.ServerReady(ctx)
	} else {
		ready, err = cl.ModelReady(ctx, c.Model, c.Version)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "ready=%t\n", ready)
	if !ready {
		return errNotReady
	}
	return nil
}

type MetadataCommand struct {
	Model   string `arg:"" optional:"" help:"Model name, the server when empty."`
	Version string `help:"Model version."`
}

func (c *MetadataCommand) Run(ctx context.Context, g *Globals, w io.Writer) (err error) {
	cl, err := g.client()
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, cl.Close()) }()

	if c.Model == "" {
		meta, err := cl.ServerMetadata(ctx)
		if err != nil {
			return err
		}
		return printMessage(w, "ServerMetadataResponse", meta)
	}
	meta, err := cl.ModelMetadata(ctx, c.Model, c.Version)
	if err != nil {
		return err
	}
	return printMessage(w, "ModelMetadataResponse", meta)
}

type ModelConfigCommand struct {
	Model   string `arg:"" help:"Model name."`
	Version string `help:"Model version."`
}

func (c *ModelConfigCommand) Run(ctx context.Context, g *Globals, w io.Writer) (err error) {
	cl, err := g.client()
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, cl.Close()) }()

	conf, err := cl.ModelConfig(ctx, c.Model, c.Version)
	if err != nil {
		return err
	}
	return printMessage(w, "ModelConfigResponse", &pb.ModelConfigResponse{Config: conf})
}

type StatsCommand struct {
	Model   string `arg:"" optional:"" help:"Model name, every model when empty."`
	Version string `help:"Model version."`
}

func (c *StatsCommand) Run(ctx context.Context, g *Globals, w io.Writer) (err error) {
	cl, err := g.client()
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, cl.Close()) }()

	stats, err := cl.ModelStatistics(ctx, c.Model, c.Version)
	if err != nil {
		return err
	}
	return printMessage(w, "ModelStatisticsResponse", &pb.ModelStatisticsResponse{ModelStats: stats})
}
