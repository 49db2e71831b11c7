// wiretap CLI - inspect, export and serve a recorded HTTP request log
package main

import (
	"os"

	"github.com/getmockd/wiretap/pkg/cli"
)

// Build-time variables set via ldflags
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

func main() {
	cli.SetBuildInfo(Version, Commit, BuildDate)
	os.Exit(cli.Main())
}
