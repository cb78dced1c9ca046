// Command echo-server serves the inference protocol in memory, returning
// every request input as an output. It is a load target for tritonctl bench.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	_ "net/http/pprof" //nolint:gosec
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ozontech/tritonclient/testserver"
)

var CLI struct {
	Addr      string        `default:":8001" help:"grpc listen address."`
	DebugAddr string        `default:":8080" help:"pprof listen address, empty to disable."`
	Models    []string      `default:"echo" help:"Served model names."`
	Delay     time.Duration `help:"Hold every inference for this long."`
	Verbose   bool          `short:"v" help:"Verbose output."`
}

func main() {
	kong.Parse(&CLI, kong.Description("in-memory echo inference server"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	log := zap.Must(zap.NewProduction())
	if CLI.Verbose {
		log = zap.Must(zap.NewDevelopment())
	}
	defer log.Sync() //nolint:errcheck

	if CLI.DebugAddr != "" {
		go func() {
			//nolint:errcheck,gosec
			http.ListenAndServe(CLI.DebugAddr, nil)
		}()
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return run(ctx, log) })

	if err := g.Wait(); err != nil {
		fmt.Println("server exited: " + err.Error())
		os.Exit(1)
	}
}

func run(ctx context.Context, log *zap.Logger) error {
	//nolint:gosec
	l, err := net.Listen("tcp", CLI.Addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	models := make([]*testserver.Model, 0, len(CLI.Models))
	for _, name := range CLI.Models {
		models = append(models, &testserver.Model{
			Name:     name,
			Versions: []string{"1"},
			Platform: "echo",
			Ready:    true,
		})
	}
	srv := testserver.New(log, models...)
	srv.Delay(CLI.Delay)

	log.Info("serving", zap.String("addr", l.Addr().String()), zap.Stringer("server", srv))
	return srv.Serve(ctx, l)
}
