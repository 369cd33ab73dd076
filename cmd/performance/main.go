package main

import (
	stdlog "log"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/teclabat/performance-go/pkg/daemon"
)

// Version information - will be set at build time
var (
	Version   = "dev"
	BuildTime = "unknown"
)

const banner = "ICAgICAgICAgICAgICAgICAgIF9fXwogICAgX19fXyAgX19fIF9fX18vIF8vX18gIF9fX19fXyBfICBfX18gX19fXyAgX19fX19fXwogICAvIF9fIFwvIC1fKSBfXy8gXy8gXyBcLyBfXy8gICcgXC8gXyBgLyBfIFwvIF9fLyAtXykKICAvIC5fX18vXF9fL18vIC9fLyBcX19fL18vIC9fL18vXy9cXyxfL18vL18vXF9fL1xfXy8KIC9fLyAgICAgICAgICAgIHZlcnNpb24gJXMgLSBidWlsdCAlcwoK"

func main() {
	daemon.Version = Version
	daemon.BuildTime = BuildTime

	app := &cli.App{
		Name:    "performance",
		Usage:   "repeating-key xor and payload transform toolkit",
		Version: Version,
		Commands: []*cli.Command{
			upCommand,
			ctlCommand,
			logsCommand,
			xorCommand,
			benchCommand,
			keysCommand,
			vizCommand,
		},
	}

	if err := app.Run(os.Args); err != nil {
		stdlog.Fatal(err)
	}
}
