package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/teclabat/performance-go/pkg/daemon"
	"github.com/teclabat/performance-go/pkg/transform"
)

// --- CLI Definition ---

var (
	// Define the 'viz' subcommand
	vizCommand = &cli.Command{
		Name:        "viz",
		Usage:       "render the transform pipeline as a graph",
		UsageText:   "viz [command options]",
		Description: `renders the configured pipeline (or --stages) as graphviz dot or svg`,
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:  "stages",
				Usage: "pipeline stages to render instead of the configured ones",
			},
			&cli.StringFlag{
				Name:  "format",
				Usage: "output format: dot or svg",
				Value: "svg",
			},
			&cli.StringFlag{
				Name:    "out",
				Aliases: []string{"o"},
				Usage:   "output file `PATH` (defaults to stdout for dot, pipeline.svg for svg)",
			},
		},
		Action: vizCmd,
	}
)

func vizCmd(c *cli.Context) error {
	stages := c.StringSlice("stages")
	if len(stages) == 0 {
		cfg, err := daemon.LoadConfig()
		if err != nil {
			return cli.Exit(fmt.Sprintf("Error loading configuration: %v", err), 1)
		}
		stages = cfg.Pipeline
	}

	switch c.String("format") {
	case "dot":
		dot := transform.PipelineDOT(stages)
		out := c.String("out")
		if out == "" {
			fmt.Print(dot)
			return nil
		}
		if err := os.WriteFile(out, []byte(dot), 0644); err != nil {
			return cli.Exit(fmt.Sprintf("Error writing %s: %v", out, err), 1)
		}
		fmt.Printf("wrote %s\n", out)

	case "svg":
		svg, err := transform.RenderPipelineSVG(context.Background(), stages)
		if err != nil {
			return cli.Exit(fmt.Sprintf("Error rendering svg: %v", err), 1)
		}
		out := c.String("out")
		if out == "" {
			out = "pipeline.svg"
		}
		if err := os.WriteFile(out, svg, 0644); err != nil {
			return cli.Exit(fmt.Sprintf("Error writing %s: %v", out, err), 1)
		}
		fmt.Printf("wrote %s\n", out)

	default:
		return cli.Exit("Error: format must be dot or svg", 1)
	}

	return nil
}
