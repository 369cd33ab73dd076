package main

import (
	"errors"
	"fmt"
	stdlog "log"
	"os"
	"strings"

	"github.com/urfave/cli/v2"
	"github.com/zalando/go-keyring"
	"golang.org/x/term"

	"github.com/teclabat/performance-go/pkg/daemon"
)

const (
	keyringService = "performance-go"
	keyringUser    = "management"
)

// --- CLI Definition ---

var (
	// Define the 'ctl' subcommand
	ctlCommand = &cli.Command{
		Name:        "ctl",
		Usage:       "controls the daemon via its management socket",
		UsageText:   "ctl [command options] <command> [args...]",
		Description: `sends a command line to the daemon's management socket and prints the response`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "password",
				Aliases: []string{"P"},
				Usage:   "management password",
				EnvVars: []string{"PERF_MANAGEMENT_PASSWORD"},
			},
			&cli.BoolFlag{
				Name:  "ask-password",
				Usage: "prompt for the management password instead of using the keyring",
			},
			&cli.BoolFlag{
				Name:  "save-password",
				Usage: "store the password in the OS keyring after a successful command",
			},
		},
		Action: ctlCmd,
	}
)

// managementPassword resolves the password to authenticate with: explicit
// flag or environment first, interactive prompt on request, OS keyring
// otherwise. An empty result means "try without authentication".
func managementPassword(c *cli.Context) (string, error) {
	if c.IsSet("password") {
		return c.String("password"), nil
	}
	if c.Bool("ask-password") {
		fmt.Fprint(os.Stderr, "management password: ")
		pw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return string(pw), nil
	}
	pw, err := keyring.Get(keyringService, keyringUser)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("reading keyring: %w", err)
	}
	return pw, nil
}

func ctl(c *cli.Context, command string) {
	password, err := managementPassword(c)
	if err != nil {
		stdlog.Fatalf("%v", err)
	}

	mgmt := daemon.NewDaemonManagementClient(password)
	res, err := mgmt.SendCommand(command)
	if err != nil {
		stdlog.Fatalf("%v", err)
	}
	fmt.Println(res)

	if c.Bool("save-password") && password != "" {
		if err := keyring.Set(keyringService, keyringUser, password); err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not store password in keyring: %v\n", err)
		}
	}
	os.Exit(0)
}

func ctlCmd(c *cli.Context) error {
	if c.NArg() == 0 {
		return cli.Exit("Error: no command given. Try 'ctl help'.", 1)
	}
	ctl(c, strings.Join(c.Args().Slice(), " "))
	return nil
}
