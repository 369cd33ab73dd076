package main

import (
	"encoding/base64"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/teclabat/performance-go/pkg/daemon"
	"github.com/teclabat/performance-go/pkg/log"
)

// --- CLI Definition ---

var (
	// Define the 'up' subcommand
	upCommand = &cli.Command{
		Name:        "up",
		Usage:       "starts the performance daemon",
		UsageText:   "up [command options]",
		Description: `starts the transform daemon with its management socket and HTTP API`,
		Flags: []cli.Flag{
			// --- Overrides on top of config file and environment ---
			&cli.StringFlag{
				Name:  "id",
				Usage: "daemon identifier (defaults to the hostname)",
			},
			&cli.StringFlag{
				Name:  "namespace",
				Usage: "extra command namespace prefix for management commands",
			},
			&cli.StringFlag{
				Name:  "listen",
				Usage: "HTTP API listen address",
			},
			&cli.StringSliceFlag{
				Name:  "pipeline",
				Usage: "transform pipeline stages, in apply order",
			},
			&cli.StringFlag{
				Name:  "salt",
				Usage: "base64 pipeline salt, or @name keystore reference",
			},
			&cli.StringFlag{
				Name:    "password",
				Usage:   "management socket password",
				EnvVars: []string{"PERF_MANAGEMENT_PASSWORD"},
			},
		},
		Action: upCmd,
	}
)

func upCmd(c *cli.Context) error {
	up(c)
	return nil
}

func up(c *cli.Context) {
	daemon.EnsureDaemonLogger()
	log.Printf("starting performance daemon...")

	b, _ := base64.StdEncoding.DecodeString(banner)
	fmt.Printf(string(b), Version, BuildTime)

	cfg, err := daemon.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	log.Printf("using config file %s", cfg.ConfigFile)

	// Command-line flags override file and environment.
	if c.IsSet("id") {
		cfg.DaemonID = c.String("id")
	}
	if c.IsSet("namespace") {
		cfg.CommandNamespace = c.String("namespace")
	}
	if c.IsSet("listen") {
		cfg.APIListenAddr = c.String("listen")
	}
	if c.IsSet("pipeline") {
		cfg.Pipeline = c.StringSlice("pipeline")
	}
	if c.IsSet("salt") {
		cfg.PipelineSalt = c.String("salt")
	}
	if c.IsSet("password") {
		cfg.ManagementPassword = c.String("password")
	}

	if daemon.NewDaemonManagementClient(cfg.ManagementPassword).IsManagementServerStarted() {
		log.Fatalf("another daemon is already serving the management socket")
	}

	d, err := daemon.NewDaemon(*cfg)
	if err != nil {
		log.Fatalf("Failed to create daemon: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Printf("Received signal %s, shutting down gracefully...", sig)
		d.Close()
		os.Exit(0)
	}()

	log.Printf("daemon %s serving pipeline %v, API on %s", d.ID, d.Stages(), cfg.APIListenAddr)
	log.Printf("daemon is running. Press Ctrl+C to stop.")

	if err := d.Run(); err != nil {
		d.Close()
		log.Fatalf("daemon failed: %v", err)
	}

	d.Close()
	log.Printf("daemon has been shut down.")
	os.Exit(0)
}
