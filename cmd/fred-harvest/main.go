// Package main provides the fred-harvest CLI entry point.
package main

import (
	"os"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// version is set via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveVersion prefers the ldflags version and falls back to the module
// version recorded by go install.
func resolveVersion(ldflags string, info *debug.BuildInfo) string {
	if ldflags != "dev" && ldflags != "" {
		return ldflags
	}
	if info != nil && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return "dev"
}

// rootOptions are the flags shared by every subcommand.
type rootOptions struct {
	configPath string
	envFile    string
	logLevel   string
	pretty     bool
}

// newRootCmd creates the root command for the fred-harvest CLI.
func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	info, _ := debug.ReadBuildInfo()
	rootCmd := &cobra.Command{
		Use:   "fred-harvest",
		Short: "Harvest FRED economic series metadata and observations",
		Long: "fred-harvest searches the FRED API, filters and sorts the matching series " +
			"client-side, optionally attaches their observations and streams the results to a sink.",
		Version:       resolveVersion(version, info),
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.SetVersionTemplate("fred-harvest version {{.Version}}\n")

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "YAML configuration file")
	flags.StringVar(&opts.envFile, "env-file", ".env", "Environment file loaded before reading the environment")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flags.BoolVar(&opts.pretty, "pretty", false, "Human-readable log output")

	rootCmd.AddCommand(newRunCmd(opts))
	rootCmd.AddCommand(newPlanCmd())

	return rootCmd
}
