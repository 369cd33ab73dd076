package main

import (
	"fmt"
	stdlog "log"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/teclabat/performance-go/pkg/benchmark"
	"github.com/teclabat/performance-go/pkg/log"
)

// --- CLI Definition ---

var (
	// Define the 'bench' subcommand
	benchCommand = &cli.Command{
		Name:        "bench",
		Usage:       "measure transform latency and throughput",
		UsageText:   "bench [command options]",
		Description: `runs latency benchmarks against the registered transforms`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "transform",
				Usage: "Transform to benchmark (xor, aesgcm, chacha20, gzip, zstd, null)",
				Value: "xor",
			},
			&cli.StringFlag{
				Name:  "direction",
				Usage: "Direction to measure (apply, reverse, roundtrip)",
				Value: "roundtrip",
			},
			&cli.IntFlag{
				Name:  "iterations",
				Usage: "Number of iterations to run",
				Value: 1000,
			},
			&cli.IntFlag{
				Name:  "payloadsize",
				Usage: "Payload size in bytes",
				Value: 1024,
			},
			&cli.StringFlag{
				Name:  "key",
				Usage: "Key material for keyed transforms",
				Value: "benchmark key material",
			},
			&cli.StringFlag{
				Name:  "output",
				Usage: "Output file for results (CSV format)",
			},
			&cli.BoolFlag{
				Name:  "all",
				Usage: "Run benchmarks for all registered transforms",
			},
		},
		Action: benchCmd,
	}
)

func parseDirection(dirStr string) (benchmark.Direction, error) {
	switch strings.ToLower(dirStr) {
	case "apply":
		return benchmark.DirectionApply, nil
	case "reverse":
		return benchmark.DirectionReverse, nil
	case "roundtrip":
		return benchmark.DirectionRoundTrip, nil
	default:
		return 0, fmt.Errorf("unknown direction: %s", dirStr)
	}
}

func benchCmd(c *cli.Context) error {
	log.SetStd()
	fmt.Printf("performance Benchmark Tool %s (built %s)\n\n", Version, BuildTime)

	direction, err := parseDirection(c.String("direction"))
	if err != nil {
		return cli.Exit(fmt.Sprintf("Invalid direction: %v", err), 1)
	}

	opts := &benchmark.Options{
		Transform:   c.String("transform"),
		Key:         []byte(c.String("key")),
		Direction:   direction,
		Iterations:  c.Int("iterations"),
		PayloadSize: c.Int("payloadsize"),
	}

	var results []*benchmark.Results

	if c.Bool("all") {
		stdlog.Println("Running benchmarks for all transforms...")

		allResults, err := benchmark.RunAll(opts)
		if err != nil {
			stdlog.Printf("Some benchmarks failed: %v", err)
		}
		results = append(results, allResults...)

	} else {
		stdlog.Printf("Running benchmark for %s (%s)...", opts.Transform, opts.Direction)
		stdlog.Printf("Iterations: %d, Payload Size: %d bytes", opts.Iterations, opts.PayloadSize)

		startTime := time.Now()
		result, err := benchmark.Run(opts)
		if err != nil {
			return cli.Exit(fmt.Sprintf("Benchmark failed: %v", err), 1)
		}

		stdlog.Printf("Benchmark completed in %v", time.Since(startTime))

		benchmark.PrintResults(result)
		results = append(results, result)
	}

	if output := c.String("output"); output != "" && len(results) > 0 {
		stdlog.Printf("Saving results to %s", output)
		if err := benchmark.SaveResultsToFile(results, output); err != nil {
			return cli.Exit(fmt.Sprintf("Failed to save results: %v", err), 1)
		}
		stdlog.Printf("Results saved successfully")
	}

	return nil
}
