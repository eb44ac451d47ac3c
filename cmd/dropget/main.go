// dropget downloads the files of a drop transfer.
package main

import (
	"os"
	"slices"

	"github.com/dropshare/dropget/internal/cli"
	"github.com/dropshare/dropget/internal/version"
)

// Version information, overridden with -ldflags at release time.
var (
	Version   = "v0.3.0-dev"
	BuildTime = "unknown"
)

func main() {
	version.Version = Version
	version.BuildTime = BuildTime

	// --timing is handled here so it works for every subcommand.
	if i := slices.Index(os.Args, "--timing"); i > 0 {
		os.Setenv("DROPGET_TIMING", "1")
		os.Args = slices.Delete(os.Args, i, i+1)
	}

	os.Exit(cli.Execute())
}
