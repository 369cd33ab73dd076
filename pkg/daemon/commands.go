package daemon

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/teclabat/performance-go/internal/fn"
	"github.com/teclabat/performance-go/pkg/management"
	"github.com/teclabat/performance-go/pkg/transform"
	"github.com/teclabat/performance-go/pkg/xor"
)

// Command arguments travel over a whitespace-delimited line protocol, so
// payloads and salts are base64-encoded. A salt argument may instead be a
// "@name" reference into the keystore.

var errXorUsage = errors.New("Invalid command count, use: xor <string> <salt>")

// registerCommands wires the daemon's command set into the management
// server, under both the bare names and, when a command namespace is
// configured, "<namespace>::<name>".
func (d *Daemon) registerCommands() {
	commands := []struct {
		name    string
		desc    string
		handler management.CommandHandler
	}{
		{"xor", "Apply the repeating-key xor transform. Usage: xor <data-b64> <salt-b64|@name>", d.handleXorCommand},
		{"apply", "Run a payload forward through the configured pipeline. Usage: apply <payload-b64>", d.handleApplyCommand},
		{"parse", "Run a payload backward through the configured pipeline. Usage: parse <payload-b64>", d.handleParseCommand},
		{"transforms", "List the registered transform names", d.handleTransformsCommand},
		{"pipeline", "Show the configured pipeline stages", d.handlePipelineCommand},
		{"stats", "Show daemon operation counters", d.handleStatsCommand},
		{"key", "Manage named salts. Usage: key <put|get|del|list> [args...]", d.handleKeyCommand},
		{"version", "Show the command package version", d.handleVersionCommand},
	}

	for _, c := range commands {
		d.Mgmt.RegisterHandler(c.name, c.desc, d.counted(c.handler))
		if ns := d.Cfg.CommandNamespace; ns != "" {
			d.Mgmt.RegisterHandler(ns+"::"+c.name, c.desc, d.counted(c.handler))
		}
	}
}

// counted wraps a handler so failed commands show up in the stats.
func (d *Daemon) counted(h management.CommandHandler) management.CommandHandler {
	return func(args []string) (string, error) {
		res, err := h(args)
		if err != nil {
			d.CommandErrors.Add(1)
		}
		return res, err
	}
}

// resolveSalt turns a salt argument into raw bytes: "@name" resolves through
// the keystore, anything else must be base64.
func (d *Daemon) resolveSalt(arg string) ([]byte, error) {
	if strings.HasPrefix(arg, "@") {
		name := strings.TrimPrefix(arg, "@")
		if name == "" {
			return nil, fmt.Errorf("empty keystore reference")
		}
		return d.keys.Get(name)
	}
	salt, err := base64.StdEncoding.DecodeString(arg)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 salt: %w", err)
	}
	return salt, nil
}

func decodePayload(arg string) ([]byte, error) {
	payload, err := base64.StdEncoding.DecodeString(arg)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 payload: %w", err)
	}
	return payload, nil
}

func (d *Daemon) handleXorCommand(args []string) (string, error) {
	if len(args) != 2 {
		return "", errXorUsage
	}

	data, err := decodePayload(args[0])
	if err != nil {
		return "", err
	}
	salt, err := d.resolveSalt(args[1])
	if err != nil {
		return "", err
	}

	result, err := xor.Apply(data, salt)
	if err != nil {
		return "", err
	}

	d.XorOps.Add(1)
	d.BytesIn.Add(uint64(len(data)))
	d.BytesOut.Add(uint64(len(result)))

	return base64.StdEncoding.EncodeToString(result), nil
}

func (d *Daemon) handleApplyCommand(args []string) (string, error) {
	if len(args) != 1 {
		return "", errors.New("Invalid command count, use: apply <payload>")
	}

	payload, err := decodePayload(args[0])
	if err != nil {
		return "", err
	}

	out, err := d.processor.PrepareOutput(payload)
	if err != nil {
		return "", err
	}

	d.PipelineOps.Add(1)
	d.BytesIn.Add(uint64(len(payload)))
	d.BytesOut.Add(uint64(len(out)))

	return base64.StdEncoding.EncodeToString(out), nil
}

func (d *Daemon) handleParseCommand(args []string) (string, error) {
	if len(args) != 1 {
		return "", errors.New("Invalid command count, use: parse <payload>")
	}

	payload, err := decodePayload(args[0])
	if err != nil {
		return "", err
	}

	out, err := d.processor.ParseInput(payload)
	if err != nil {
		return "", err
	}

	d.PipelineOps.Add(1)
	d.BytesIn.Add(uint64(len(payload)))
	d.BytesOut.Add(uint64(len(out)))

	return base64.StdEncoding.EncodeToString(out), nil
}

func (d *Daemon) handleTransformsCommand(args []string) (string, error) {
	var b strings.Builder
	b.WriteString("OK: Registered transforms:\n")
	for _, name := range transform.Names() {
		fmt.Fprintf(&b, "  %s\n", fn.T(transform.NeedsKey(name), name+" (requires key)", name))
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func (d *Daemon) handlePipelineCommand(args []string) (string, error) {
	return "OK: " + strings.Join(d.Stages(), " -> "), nil
}

func (d *Daemon) handleStatsCommand(args []string) (string, error) {
	stats := d.GetStats()
	var b strings.Builder
	b.WriteString("OK: Daemon statistics:\n")
	fmt.Fprintf(&b, "  Xor operations:      %d\n", stats.XorOps)
	fmt.Fprintf(&b, "  Pipeline operations: %d\n", stats.PipelineOps)
	fmt.Fprintf(&b, "  Bytes in:            %d\n", stats.BytesIn)
	fmt.Fprintf(&b, "  Bytes out:           %d\n", stats.BytesOut)
	fmt.Fprintf(&b, "  Command errors:      %d", stats.CommandErrors)
	return b.String(), nil
}

func (d *Daemon) handleKeyCommand(args []string) (string, error) {
	usage := errors.New("Invalid command count, use: key <put|get|del|list> [args...]")
	if len(args) == 0 {
		return "", usage
	}

	switch strings.ToLower(args[0]) {
	case "put":
		if len(args) != 3 {
			return "", errors.New("Invalid command count, use: key put <name> <salt-b64>")
		}
		salt, err := base64.StdEncoding.DecodeString(args[2])
		if err != nil {
			return "", fmt.Errorf("invalid base64 salt: %w", err)
		}
		if err := d.keys.Put(args[1], salt); err != nil {
			return "", err
		}
		return fmt.Sprintf("OK: stored salt '%s' (%d bytes)", args[1], len(salt)), nil

	case "get":
		if len(args) != 2 {
			return "", errors.New("Invalid command count, use: key get <name>")
		}
		salt, err := d.keys.Get(args[1])
		if err != nil {
			return "", err
		}
		return base64.StdEncoding.EncodeToString(salt), nil

	case "del":
		if len(args) != 2 {
			return "", errors.New("Invalid command count, use: key del <name>")
		}
		if err := d.keys.Delete(args[1]); err != nil {
			return "", err
		}
		return fmt.Sprintf("OK: deleted salt '%s'", args[1]), nil

	case "list":
		entries, err := d.keys.List()
		if err != nil {
			return "", err
		}
		if len(entries) == 0 {
			return "OK: keystore is empty", nil
		}
		var b strings.Builder
		b.WriteString("OK: Stored salts:\n")
		for _, e := range entries {
			fmt.Fprintf(&b, "  %s  %d bytes  updated %s\n", e.Name, e.Length, e.Updated.Format(time.RFC3339))
		}
		return strings.TrimRight(b.String(), "\n"), nil

	default:
		return "", usage
	}
}

func (d *Daemon) handleVersionCommand(args []string) (string, error) {
	return fmt.Sprintf("OK: performance %s (daemon %s, built %s)", PackageVersion, Version, BuildTime), nil
}
