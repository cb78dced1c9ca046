package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/ozontech/tritonclient/client"
	"github.com/ozontech/tritonclient/formats/v2json"
	"github.com/ozontech/tritonclient/input"
	"github.com/ozontech/tritonclient/output"
	"github.com/ozontech/tritonclient/pb"
	"github.com/ozontech/tritonclient/tensor"
)

type halfMode string

const (
	halfCompat halfMode = "compat"
	halfIEEE   halfMode = "ieee"
)

// RequestFlags describe where a request body comes from.
type RequestFlags struct {
	Model   string   `short:"m" required:"" help:"Model name."`
	Request *os.File `short:"r" default:"-" help:"KServe v2 JSON request body (default is stdin)."`
	Version string   `help:"Model version."`
	Raw     bool     `help:"Send tensors as raw input contents."`
}

func (f *RequestFlags) modelInput() (*input.ModelInput, error) {
	defer f.Request.Close()
	body, err := io.ReadAll(f.Request)
	if err != nil {
		return nil, fmt.Errorf("reading request: %w", err)
	}
	in, err := v2json.UnmarshalRequest(f.Model, body)
	if err != nil {
		return nil, err
	}
	return in.Version(f.Version).Raw(f.Raw), nil
}

type InferCommand struct {
	RequestFlags

	Dump bool     `help:"Print the response message as protojson instead of decoded tensors."`
	Half halfMode `enum:"compat,ieee" default:"compat" help:"Decoding of FP16/BF16 outputs: ${enum}."`
}

func (c *InferCommand) Run(ctx context.Context, g *Globals, w io.Writer) (err error) {
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

	resp, err := cl.InferRaw(ctx, req)
	if err != nil {
		return err
	}
	log.Info("inference done",
		zap.String("model", resp.ModelName),
		zap.Int("outputs", len(resp.Outputs)),
		zap.String("raw", humanize.Bytes(uint64(rawSize(resp)))),
	)

	if c.Dump {
		return printMessage(w, "ModelInferResponse", resp)
	}

	mode := tensor.HalfCompat
	if c.Half == halfIEEE {
		mode = tensor.HalfIEEE
	}
	out, err := output.New(resp, tensor.WithHalfPrecision(mode))
	if err != nil {
		return err
	}
	js, err := v2json.MarshalResponse(out)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(js))
	return err
}

func rawSize(resp *pb.ModelInferResponse) int {
	n := 0
	for _, raw := range resp.RawOutputContents {
		n += len(raw)
	}
	return n
}
