package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"go.uber.org/multierr"

	"github.com/ozontech/tritonclient/pb"
)

type RepoCommand struct {
	Index  RepoIndexCommand  `cmd:"" help:"List models of the repository."`
	Load   RepoLoadCommand   `cmd:"" help:"Load or reload a model."`
	Unload RepoUnloadCommand `cmd:"" help:"Unload a model."`
}

type RepoIndexCommand struct {
	Ready bool `help:"Only list models ready for inference."`
}

func (c *RepoIndexCommand) Run(ctx context.Context, g *Globals, w io.Writer) (err error) {
	cl, err := g.client()
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, cl.Close()) }()

	models, err := cl.RepositoryIndex(ctx, c.Ready)
	if err != nil {
		return err
	}
	return printMessage(w, "RepositoryIndexResponse", &pb.RepositoryIndexResponse{Models: models})
}

type RepoLoadCommand struct {
	Model  string   `arg:"" help:"Model name."`
	Params []string `name:"param" short:"p" placeholder:"key=value" help:"Load parameter, e.g. config={...}."`
}

func (c *RepoLoadCommand) Run(ctx context.Context, g *Globals, w io.Writer) (err error) {
	params, err := parseParams(c.Params)
	if err != nil {
		return err
	}
	cl, err := g.client()
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, cl.Close()) }()

	if err := cl.LoadModel(ctx, c.Model, params); err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "loaded %s\n", c.Model)
	return err
}

type RepoUnloadCommand struct {
	Model            string `arg:"" help:"Model name."`
	UnloadDependents bool   `help:"Unload models depending on this one."`
}

func (c *RepoUnloadCommand) Run(ctx context.Context, g *Globals, w io.Writer) (err error) {
	cl, err := g.client()
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, cl.Close()) }()

	var params map[string]pb.Parameter
	if c.UnloadDependents {
		params = map[string]pb.Parameter{"unload_dependents": pb.BoolParam(true)}
	}
	if err := cl.UnloadModel(ctx, c.Model, params); err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "unloaded %s\n", c.Model)
	return err
}

func parseParams(kvs []string) (map[string]pb.Parameter, error) {
	if len(kvs) == 0 {
		return nil, nil
	}
	params := make(map[string]pb.Parameter, len(kvs))
	for _, kv := range kvs {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("parameter %q: want key=value", kv)
		}
		params[k] = pb.StringParam(v)
	}
	return params, nil
}

type ShmCommand struct {
	Status     ShmStatusCommand     `cmd:"" help:"List registered regions."`
	Register   ShmRegisterCommand   `cmd:"" help:"Register a region."`
	Unregister ShmUnregisterCommand `cmd:"" help:"Unregister a region or all of them."`
}

type ShmStatusCommand struct {
	Name string `arg:"" optional:"" help:"Region name, every region when empty."`
}

func (c *ShmStatusCommand) Run(ctx context.Context, g *Globals, w io.Writer) (err error) {
	cl, err := g.client()
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, cl.Close()) }()

	regions, err := cl.SharedMemoryStatus(ctx, c.Name)
	if err != nil {
		return err
	}
	return printMessage(w, "SystemSharedMemoryStatusResponse", &pb.SharedMemoryStatusResponse{Regions: regions})
}

type ShmRegisterCommand struct {
	Name     string `arg:"" help:"Region name."`
	Key      string `arg:"" help:"Shared memory key, e.g. /input_shm."`
	ByteSize uint64 `arg:"" help:"Region size in bytes."`
	Offset   uint64 `help:"Offset of the region in the shared memory block."`
}

func (c *ShmRegisterCommand) Run(ctx context.Context, g *Globals, w io.Writer) (err error) {
	cl, err := g.client()
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, cl.Close()) }()

	region := &pb.SharedMemoryRegion{Name: c.Name, Key: c.Key, Offset: c.Offset, ByteSize: c.ByteSize}
	if err := cl.SharedMemoryRegister(ctx, region); err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "registered %s\n", c.Name)
	return err
}

type ShmUnregisterCommand struct {
	Name string `arg:"" optional:"" help:"Region name, every region when empty."`
}

func (c *ShmUnregisterCommand) Run(ctx context.Context, g *Globals, w io.Writer) (err error) {
	cl, err := g.client()
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, cl.Close()) }()

	if err := cl.SharedMemoryUnregister(ctx, c.Name); err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, "unregistered")
	return err
}
