package main

import (
	"encoding/base64"
	"fmt"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/teclabat/performance-go/pkg/appdir"
	"github.com/teclabat/performance-go/pkg/daemon"
	"github.com/teclabat/performance-go/pkg/keystore"
)

// --- CLI Definition ---

var (
	// Define the 'keys' subcommand
	keysCommand = &cli.Command{
		Name:      "keys",
		Usage:     "manage the named-salt keystore directly",
		UsageText: "keys [command options] <put|get|del|list> [args...]",
		Description: `reads and writes the bbolt keystore backing @name salt references.
The daemon holds an exclusive lock on the keystore while it runs;
use 'ctl key ...' instead when the daemon is up.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "file",
				Aliases: []string{"f"},
				Usage:   "Keystore file `NAME` inside the app state directory, or an absolute path",
				Value:   daemon.DefaultConfig().KeystoreFile,
			},
		},
		Subcommands: []*cli.Command{
			{
				Name:      "put",
				Usage:     "store a named salt",
				UsageText: "keys put <name> <salt-b64>",
				Action:    keysPutCmd,
			},
			{
				Name:      "get",
				Usage:     "print a named salt as base64",
				UsageText: "keys get <name>",
				Action:    keysGetCmd,
			},
			{
				Name:      "del",
				Usage:     "delete a named salt",
				UsageText: "keys del <name>",
				Action:    keysDelCmd,
			},
			{
				Name:      "list",
				Usage:     "list stored salts",
				UsageText: "keys list",
				Action:    keysListCmd,
			},
		},
	}
)

func openKeystoreAt(file string) (*keystore.Store, error) {
	if !filepath.IsAbs(file) {
		file = filepath.Join(appdir.AppDir(), file)
	}
	store, err := keystore.Open(file)
	if err != nil {
		return nil, fmt.Errorf("opening keystore %s: %w (is the daemon running?)", file, err)
	}
	return store, nil
}

func openKeystore(c *cli.Context) (*keystore.Store, error) {
	return openKeystoreAt(c.String("file"))
}

func keysPutCmd(c *cli.Context) error {
	if c.NArg() != 2 {
		return cli.Exit("Invalid command count, use: keys put <name> <salt-b64>", 1)
	}
	salt, err := base64.StdEncoding.DecodeString(c.Args().Get(1))
	if err != nil {
		return cli.Exit(fmt.Sprintf("Error: invalid base64 salt: %v", err), 1)
	}

	store, err := openKeystore(c)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Error: %v", err), 1)
	}
	defer store.Close()

	if err := store.Put(c.Args().Get(0), salt); err != nil {
		return cli.Exit(fmt.Sprintf("Error: %v", err), 1)
	}
	fmt.Printf("stored salt '%s' (%d bytes)\n", c.Args().Get(0), len(salt))
	return nil
}

func keysGetCmd(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("Invalid command count, use: keys get <name>", 1)
	}

	store, err := openKeystore(c)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Error: %v", err), 1)
	}
	defer store.Close()

	salt, err := store.Get(c.Args().Get(0))
	if err != nil {
		return cli.Exit(fmt.Sprintf("Error: %v", err), 1)
	}
	fmt.Println(base64.StdEncoding.EncodeToString(salt))
	return nil
}

func keysDelCmd(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("Invalid command count, use: keys del <name>", 1)
	}

	store, err := openKeystore(c)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Error: %v", err), 1)
	}
	defer store.Close()

	if err := store.Delete(c.Args().Get(0)); err != nil {
		return cli.Exit(fmt.Sprintf("Error: %v", err), 1)
	}
	fmt.Printf("deleted salt '%s'\n", c.Args().Get(0))
	return nil
}

func keysListCmd(c *cli.Context) error {
	store, err := openKeystore(c)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Error: %v", err), 1)
	}
	defer store.Close()

	entries, err := store.List()
	if err != nil {
		return cli.Exit(fmt.Sprintf("Error: %v", err), 1)
	}
	if len(entries) == 0 {
		fmt.Println("keystore is empty")
		return nil
	}
	for _, e := range entries {
		fmt.Printf("%-20s %4d bytes  updated %s\n", e.Name, e.Length, e.Updated.Format(time.RFC3339))
	}
	return nil
}
