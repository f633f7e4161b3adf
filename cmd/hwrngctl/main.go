// Command hwrngctl drives the qualification engine's consumer operation in
// a loop, the host-side counterpart to the teacher's single-purpose
// cmd/pk2 and cmd/showreg tools.
package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/pflag"

	"hwrngqual/internal/adcio"
	"hwrngqual/internal/config"
	"hwrngqual/internal/qualify"
)

func main() {
	var (
		count         = pflag.IntP("count", "n", 4, "number of 32-byte draws to request")
		hardware      = pflag.Bool("hardware", false, "read from the physical ADC instead of a simulated one")
		hwBaseAddr    = pflag.Int64("hw-base-addr", 0x40600000, "mmap base address of the ADC register block (--hardware only)")
		simMean       = pflag.Float64("sim-mean", 32768, "simulated ADC midrange bias")
		simStdDev     = pflag.Float64("sim-stddev", 4000, "simulated ADC noise standard deviation")
		ignoreFailure = pflag.Bool("ignore-failure", false, "surface the pool even when qualification fails")
	)
	pflag.Parse()

	cfg, loaded := config.Load()
	if !loaded {
		cfg = config.Default()
	}
	cfg.IgnoreFailure = *ignoreFailure

	var adc adcio.Buffer
	var power adcio.PowerController
	if *hardware {
		hw, err := adcio.OpenHardwareBuffer(*hwBaseAddr, cfg.ADCSampleBufferSize)
		if err != nil {
			fmt.Fprintln(os.Stderr, "hwrngctl:", err)
			os.Exit(1)
		}
		defer hw.Close()
		adc, power = hw, hw
	} else {
		adc = adcio.NewSimulatedBuffer(cfg.ADCSampleBufferSize, *simMean, *simStdDev, 1)
		power = adcio.NopPowerController{}
	}

	engine, err := qualify.New(cfg, adc, power)
	if err != nil {
		fmt.Fprintln(os.Stderr, "hwrngctl:", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	for i := 0; i < *count; i++ {
		var buf [32]byte
		bits, err := engine.RandomBytes(ctx, &buf)
		if err != nil {
			fmt.Fprintln(os.Stderr, "hwrngctl:", err)
			os.Exit(1)
		}
		fmt.Printf("%s  (%d bits)\n", hex.EncodeToString(buf[:]), bits)
	}
}
