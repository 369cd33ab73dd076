package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/teclabat/performance-go/pkg/daemon"
	"github.com/teclabat/performance-go/pkg/log"
)

// --- Time Parsing Helper ---

// timeFormats includes common layouts to try when parsing absolute time strings.
// Order matters; more specific formats should generally come earlier.
var timeFormats = []string{
	time.RFC3339Nano,      // "2006-01-02T15:04:05.999999999Z07:00"
	time.RFC3339,          // "2006-01-02T15:04:05Z07:00"
	"2006-01-02T15:04:05", // ISO 8601 without timezone
	"2006-01-02 15:04:05", // Common space-separated format
	"2006-01-02",          // Date only
}

// parseTimeSpec attempts to parse a string as either a relative duration
// from now (e.g., "1h", "30m") or an absolute timestamp using various layouts.
func parseTimeSpec(spec string) (time.Time, error) {
	// 1. Try parsing as relative duration (negative offset from now)
	duration, err := time.ParseDuration(spec)
	if err == nil {
		return time.Now().Add(-duration), nil
	}

	// 2. Try parsing as absolute timestamp using known formats
	for _, layout := range timeFormats {
		ts, err := time.Parse(layout, spec)
		if err == nil {
			return ts, nil
		}
	}

	return time.Time{}, fmt.Errorf("invalid time specification: '%s'. Use relative duration (e.g., '1h', '30m') or absolute format (e.g., '2023-10-27T15:04:05Z')", spec)
}

// --- Custom Help Template ---

const logsCommandHelpTemplate = `NAME:
   {{.HelpName}} - {{.Usage}}

USAGE:
   {{.HelpName}} {{if .UsageText}}{{.UsageText}}{{else}}[command options] argument...{{end}}
{{if .Description}}
DESCRIPTION:
   {{.Description | Indent 4}}
{{end}}
MODES (choose one; defaults to --last if no mode specified):
     --last                 Retrieve the most recent N log entries.
                            (This is the default mode if no other mode flag is provided).
     --since                Retrieve logs since a specific start time up to now.
     --between              Retrieve logs between a specific start and end time.

OPTIONS:
{{range .VisibleFlags}}   {{.}}
{{end}}
TIME SPECIFICATION (<time_spec>):
     You can specify time in two ways:
     1. Relative Duration: A duration string relative to the current time.
        Examples: "5m" (5 minutes ago), "1h30m" (1 hour 30 minutes ago).
        Units: s (seconds), m (minutes), h (hours).
     2. Absolute Timestamp: An RFC3339 or similar ISO 8601 format timestamp.
        The tool attempts to parse common formats. Timezone assumed
        local if not specified, or use 'Z' for UTC.
        Examples: "2023-10-27T15:04:05Z", "2023-10-27 10:00:00", "2023-10-27".

EXAMPLES:
     # Get the last 50 log entries (defaulting to --last mode)
     performance logs -n 50

     # Get the last 100 log entries from a specific database
     performance logs -f other-logs.db

     # Get logs since 1 hour ago, max 500 entries, in pretty format
     performance logs --since -s 1h -l 500 --pretty

     # Get logs between 2 days ago and 1 day ago
     performance logs --between -s 48h -e 24h

`

// --- CLI Definition ---

var (
	// Define the 'logs' subcommand
	logsCommand = &cli.Command{
		Name:               "logs",
		Usage:              "Retrieve JSON log entries from the daemon's log database",
		UsageText:          "logs [command options] [--last|--since|--between] [mode options]",
		Description:        `Retrieves logs stored in the SQLite database the daemon writes to.`,
		CustomHelpTemplate: logsCommandHelpTemplate,
		Flags: []cli.Flag{
			// --- Common Options ---
			&cli.StringFlag{
				Name:    "dbfile",
				Aliases: []string{"f"},
				Usage:   "Log database file `NAME` inside the app state directory",
				Value:   daemon.DefaultConfig().LogDBFile,
			},
			&cli.BoolFlag{
				Name:    "pretty",
				Aliases: []string{"p"},
				Usage:   "Output logs in a human-readable format instead of raw JSON",
				Value:   false,
			},

			// --- Mode Flags ---
			&cli.BoolFlag{
				Name:  "last",
				Usage: "Mode: Retrieve the most recent N log entries (default)",
			},
			&cli.BoolFlag{
				Name:  "since",
				Usage: "Mode: Retrieve logs since a specific start time",
			},
			&cli.BoolFlag{
				Name:  "between",
				Usage: "Mode: Retrieve logs between a specific start and end time",
			},

			// --- Options for --last ---
			&cli.IntFlag{
				Name:    "count",
				Aliases: []string{"n"},
				Usage:   "Number of entries for --last mode `NUMBER`",
				Value:   100,
			},

			// --- Options for --since / --between ---
			&cli.StringFlag{
				Name:    "start",
				Aliases: []string{"s"},
				Usage:   "Start time for --since/--between `TIME_SPEC` (e.g., '1h', '2023-10-27T10:00:00Z')",
			},
			&cli.StringFlag{
				Name:    "end",
				Aliases: []string{"e"},
				Usage:   "End time for --between `TIME_SPEC` (e.g., '30m', '2023-10-27T11:00:00')",
			},
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"l"},
				Usage:   "Max entries for --since/--between `NUMBER`",
				Value:   1000,
			},
		},
		Action: logsCmd,
	}
)

func logsCmd(c *cli.Context) error {
	// --- Flag & Mode Validation ---
	dbFile := c.String("dbfile")
	isPretty := c.Bool("pretty")

	isLast := c.Bool("last")
	isSince := c.Bool("since")
	isBetween := c.Bool("between")

	modeCount := 0
	if isLast {
		modeCount++
	}
	if isSince {
		modeCount++
	}
	if isBetween {
		modeCount++
	}

	if modeCount == 0 {
		isLast = true
	} else if modeCount > 1 {
		return cli.Exit("Error: Only one mode flag (--last, --since, --between) can be specified at a time.", 1)
	}

	// --- Initialize Logger ---
	// Init opens the db handle the retrieval functions read from.
	err := log.Init(dbFile)
	if err != nil {
		if os.IsNotExist(err) {
			return cli.Exit(fmt.Sprintf("Error: Database file not found at '%s'", dbFile), 1)
		}
		return cli.Exit(fmt.Sprintf("Error initializing logger (required for DB access): %v", err), 1)
	}
	defer log.Close()

	// --- Execute Action Based on Mode ---
	var results []log.LogEntry
	var retrievalErr error

	if isLast {
		if c.IsSet("start") || c.IsSet("end") {
			fmt.Fprintln(os.Stderr, "Warning: --start (-s) and --end (-e) flags are ignored in --last mode.")
		}
		count := c.Int("count")
		if count <= 0 {
			return cli.Exit("Error: --count (-n) must be a positive number.", 1)
		}
		results, retrievalErr = log.GetLastNLogs(count)

	} else if isSince {
		if !c.IsSet("start") {
			return cli.Exit("Error: --start (-s) flag is required for --since mode.", 1)
		}
		if c.IsSet("end") {
			fmt.Fprintln(os.Stderr, "Warning: --end (-e) flag is ignored in --since mode.")
		}
		startTime, err := parseTimeSpec(c.String("start"))
		if err != nil {
			return cli.Exit(fmt.Sprintf("Error parsing start time: %v", err), 1)
		}
		results, retrievalErr = log.GetLogsSince(startTime, c.Int("limit"))

	} else if isBetween {
		if !c.IsSet("start") {
			return cli.Exit("Error: --start (-s) flag is required for --between mode.", 1)
		}
		if !c.IsSet("end") {
			return cli.Exit("Error: --end (-e) flag is required for --between mode.", 1)
		}
		startTime, err := parseTimeSpec(c.String("start"))
		if err != nil {
			return cli.Exit(fmt.Sprintf("Error parsing start time: %v", err), 1)
		}
		endTime, err := parseTimeSpec(c.String("end"))
		if err != nil {
			return cli.Exit(fmt.Sprintf("Error parsing end time: %v", err), 1)
		}
		if startTime.After(endTime) {
			fmt.Fprintf(os.Stderr, "Warning: Start time (%s) is after end time (%s).\n", startTime.Format(time.RFC3339), endTime.Format(time.RFC3339))
		}
		results, retrievalErr = log.GetLogsBetween(startTime, endTime, c.Int("limit"))
	}

	// --- Handle Retrieval Errors ---
	if retrievalErr != nil {
		if errors.Is(retrievalErr, log.ErrNotInitialized) {
			return cli.Exit("Internal Error: Logger DB handle became unavailable.", 2)
		}
		return cli.Exit(fmt.Sprintf("Error retrieving logs: %v", retrievalErr), 1)
	}

	// --- Output Results ---
	if len(results) == 0 {
		fmt.Fprintln(os.Stderr, "No log entries found matching the criteria.")
		return nil
	}

	// Each LogData row is a newline-terminated JSON event as zerolog wrote it.
	if isPretty {
		cw := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339, NoColor: true}
		for _, entry := range results {
			if _, err := cw.Write([]byte(entry.LogData)); err != nil {
				// Entries that don't parse as zerolog events print raw
				fmt.Print(entry.LogData)
			}
		}
	} else {
		// Default: Output raw JSON lines
		for _, entry := range results {
			fmt.Print(entry.LogData)
		}
	}

	return nil
}
