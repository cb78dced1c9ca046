package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	mangokong "github.com/alecthomas/mango-kong"
)

var CLI struct {
	Globals

	Health      HealthCommand      `cmd:"" help:"Query the grpc health service."`
	Live        LiveCommand        `cmd:"" help:"Check server liveness."`
	Ready       ReadyCommand       `cmd:"" help:"Check server or model readiness."`
	Metadata    MetadataCommand    `cmd:"" help:"Print server or model metadata."`
	ModelConfig ModelConfigCommand `cmd:"" help:"Print model configuration."`
	Stats       StatsCommand       `cmd:"" help:"Print model statistics."`
	Repo        RepoCommand        `cmd:"" help:"Manage the model repository."`
	Shm         ShmCommand         `cmd:"" help:"Manage system shared memory regions."`
	Infer       InferCommand       `cmd:"" help:"Run one inference from a JSON request."`
	Bench       BenchCommand       `cmd:"" help:"Generate inference load."`
	Man         mangokong.ManFlag  `help:"Write man page." hidden:""`
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	kongCtx := kong.Parse(
		&CLI,
		kong.BindTo(ctx, (*context.Context)(nil)),
		kong.BindTo(os.Stdout, (*io.Writer)(nil)),
		kong.Bind(&CLI.Globals),
		kong.Bind(DurationLimit{}),
		kong.Groups(map[string]string{
			"connection": `Connection flags:`,
		}),
		kong.ConfigureHelp(kong.HelpOptions{
			Tree:    true,
			Compact: true,
		}),
		kong.Description(`command line client of KServe v2 inference servers

tritonctl talks grpc to Triton and other servers implementing the KServe v2 inference protocol.
		`),
	)
	err := kongCtx.Run()
	kongCtx.FatalIfErrorf(err)
}
