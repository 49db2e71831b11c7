package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Persistent flags available to all subcommands
	configFile string
	dataDir    string
	backend    string
	jsonOutput bool
	logLevel   string

	// Version is injected during build
	Version = "dev"
	// Commit is injected during build
	Commit = "none"
	// BuildDate is injected during build
	BuildDate = "unknown"
)

// SetBuildInfo records the build metadata shown by --version.
func SetBuildInfo(version, commit, date string) {
	Version, Commit, BuildDate = version, commit, date
	rootCmd.Version = version
	rootCmd.SetVersionTemplate(fmt.Sprintf("wiretap %s (commit %s, built %s)\n", version, commit, date))
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "wiretap",
	Short: "wiretap inspects the HTTP traffic recorded by an application",
	Long: `wiretap reads the request log written by an application that records its
outgoing HTTP traffic, and can serve it over an inspector API.

Configuration can be provided via flags, WIRETAP_* environment variables, or a
configuration file. By default, wiretap looks for config.yaml in the user
configuration directory (for example ~/.config/wiretap/config.yaml).`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true, // errors are printed by Main
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// Main runs the CLI and returns the process exit code.
func Main() int {
	if err := Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}

func init() {
	SetBuildInfo(Version, Commit, BuildDate)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "Path to the configuration file")
	flags.StringVar(&dataDir, "data-dir", "", "Directory holding the request log (overrides storage.dataDir)")
	flags.StringVar(&backend, "backend", "", "Storage backend: file, sqlite or memory (overrides storage.backend)")
	flags.BoolVar(&jsonOutput, "json", false, "Output command results in JSON format")
	flags.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides log.level)")
}
