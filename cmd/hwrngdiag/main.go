// Command hwrngdiag drives the qualification engine's host-stream
// diagnostic protocol against a sample source, the host-side counterpart to
// the teacher's cmd/gen_verilog (a tool that drives a device-facing
// interface entirely from the host side).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/pflag"

	"hwrngqual/internal/adcio"
	"hwrngqual/internal/config"
	"hwrngqual/internal/diag"
	"hwrngqual/internal/qualify"
)

func main() {
	var (
		mode      = pflag.StringP("mode", "m", "S", "diagnostic mode: R (raw), S, P, B, A, or E")
		input     = pflag.StringP("input", "i", "-", "file of 16-bit little-endian samples to read ('-' for stdin); unused in raw mode")
		rawCount  = pflag.IntP("raw-count", "n", 8, "number of 32-byte blocks to forward in raw mode")
		simMean   = pflag.Float64("sim-mean", 32768, "simulated ADC midrange bias (raw mode only)")
		simStdDev = pflag.Float64("sim-stddev", 4000, "simulated ADC noise standard deviation (raw mode only)")
	)
	pflag.Parse()

	if len(*mode) != 1 {
		fmt.Fprintln(os.Stderr, "hwrngdiag: --mode must be a single character")
		os.Exit(1)
	}
	m := diag.ParseMode((*mode)[0])

	cfg, loaded := config.Load()
	if !loaded {
		cfg = config.Default()
	}
	h := diag.NewHarness(cfg)

	if m == diag.ModeRaw {
		buf := adcio.NewSimulatedBuffer(cfg.ADCSampleBufferSize, *simMean, *simStdDev, 1)
		engine, err := qualify.New(cfg, buf, adcio.NopPowerController{})
		if err != nil {
			fmt.Fprintln(os.Stderr, "hwrngdiag:", err)
			os.Exit(1)
		}
		h.WithEngine(engine)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		n, err := h.RunRaw(ctx, os.Stdout, *rawCount)
		if err != nil {
			fmt.Fprintf(os.Stderr, "hwrngdiag: after %d blocks: %v\n", n, err)
			os.Exit(1)
		}
		return
	}

	in := os.Stdin
	if *input != "-" {
		f, err := os.Open(*input)
		if err != nil {
			fmt.Fprintln(os.Stderr, "hwrngdiag:", err)
			os.Exit(1)
		}
		defer f.Close()
		in = f
	}

	n, err := h.Run(m, in, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hwrngdiag: after %d samples: %v\n", n, err)
		os.Exit(1)
	}
}
