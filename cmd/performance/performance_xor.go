package main

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/teclabat/performance-go/pkg/daemon"
	"github.com/teclabat/performance-go/pkg/xor"
)

// --- CLI Definition ---

var (
	// Define the 'xor' subcommand
	xorCommand = &cli.Command{
		Name:      "xor",
		Usage:     "apply the repeating-key xor transform to a payload",
		UsageText: "xor [command options] <string> <salt>",
		Description: `applies out[i] = data[i] ^ salt[i % len(salt)] and prints the base64 result.
The data argument is a literal string; use --in to read payload bytes
from a file instead. The salt argument is literal too, unless prefixed:
'hex:' and 'b64:' decode it, '@name' resolves it from the keystore.
Applying the same salt twice restores the original payload.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "in",
				Aliases: []string{"i"},
				Usage:   "read the payload from `FILE` instead of the <string> argument",
			},
			&cli.StringFlag{
				Name:    "out",
				Aliases: []string{"o"},
				Usage:   "write the raw result to `FILE` instead of stdout",
			},
			&cli.BoolFlag{
				Name:  "hex",
				Usage: "print the result as hex instead of base64",
			},
			&cli.BoolFlag{
				Name:  "raw",
				Usage: "write raw bytes to stdout instead of base64",
			},
			&cli.StringFlag{
				Name:  "keystore",
				Usage: "keystore file `NAME` for @name salts, inside the app state directory",
				Value: daemon.DefaultConfig().KeystoreFile,
			},
		},
		Action: xorCmd,
	}
)

// resolveSaltArg decodes the salt argument forms the one-shot command
// accepts: "@name" keystore references, "hex:"/"b64:" encoded values and
// plain literals.
func resolveSaltArg(c *cli.Context, arg string) ([]byte, error) {
	switch {
	case strings.HasPrefix(arg, "@"):
		name := strings.TrimPrefix(arg, "@")
		if name == "" {
			return nil, fmt.Errorf("empty keystore reference")
		}
		store, err := openKeystoreAt(c.String("keystore"))
		if err != nil {
			return nil, err
		}
		defer store.Close()
		return store.Get(name)
	case strings.HasPrefix(arg, "hex:"):
		salt, err := hex.DecodeString(strings.TrimPrefix(arg, "hex:"))
		if err != nil {
			return nil, fmt.Errorf("invalid hex salt: %w", err)
		}
		return salt, nil
	case strings.HasPrefix(arg, "b64:"):
		salt, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(arg, "b64:"))
		if err != nil {
			return nil, fmt.Errorf("invalid base64 salt: %w", err)
		}
		return salt, nil
	default:
		return []byte(arg), nil
	}
}

func xorCmd(c *cli.Context) error {
	if c.Bool("hex") && c.Bool("raw") {
		return cli.Exit("Error: --hex and --raw are mutually exclusive", 1)
	}

	var data []byte
	var saltArg string
	if inFile := c.String("in"); inFile != "" {
		if c.NArg() != 1 {
			return cli.Exit("Invalid command count, use: xor --in <file> <salt>", 1)
		}
		var err error
		data, err = os.ReadFile(inFile)
		if err != nil {
			return cli.Exit(fmt.Sprintf("Error reading %s: %v", inFile, err), 1)
		}
		saltArg = c.Args().Get(0)
	} else {
		if c.NArg() != 2 {
			return cli.Exit("Invalid command count, use: xor <string> <salt>", 1)
		}
		data = []byte(c.Args().Get(0))
		saltArg = c.Args().Get(1)
	}

	salt, err := resolveSaltArg(c, saltArg)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Error: %v", err), 1)
	}

	out, err := xor.Apply(data, salt)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Error: %v", err), 1)
	}

	if outFile := c.String("out"); outFile != "" {
		if err := os.WriteFile(outFile, out, 0644); err != nil {
			return cli.Exit(fmt.Sprintf("Error writing %s: %v", outFile, err), 1)
		}
		fmt.Printf("wrote %d bytes to %s\n", len(out), outFile)
		return nil
	}

	switch {
	case c.Bool("raw"):
		os.Stdout.Write(out)
	case c.Bool("hex"):
		fmt.Println(hex.EncodeToString(out))
	default:
		fmt.Println(base64.StdEncoding.EncodeToString(out))
	}
	return nil
}
