package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const banner = `
  ╔═╗┬ ┬┌┐┌┌─┐┌─┐┌─┐┌─┐
  ╚═╗└┬┘│││├─┤├─┘└─┐├┤
  ╚═╝ ┴ ┘└┘┴ ┴┴  └─┘└─┘
`

func main() {
	rootCmd := &cobra.Command{
		Use:   "synapse",
		Short: "Fine-grained reactive state for Go",
		Long: `Synapse is a fine-grained reactive state library for Go.

Signals hold values, memos derive new values from them, and effects
react to changes, with dependencies tracked automatically on every
run. This CLI ships the supporting tooling:

  • Live inspector streaming the diagnostic record feed
  • Flight recorder with replayable timelines
  • Prometheus metrics and OpenTelemetry traces
  • A demo graph for poking at the engine`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Add commands
	rootCmd.AddCommand(
		serveCmd(),
		benchCmd(),
		replayCmd(),
		versionCmd(),
	)

	// Execute
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "\033[31mError:\033[0m %s\n", err)
		os.Exit(1)
	}
}

// printBanner prints the Synapse ASCII art banner.
func printBanner() {
	fmt.Print(banner)
}

// success prints a success message.
func success(format string, args ...any) {
	fmt.Printf("\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(format string, args ...any) {
	fmt.Printf("  %s\n", fmt.Sprintf(format, args...))
}

// warn prints a warning message.
func warn(format string, args ...any) {
	fmt.Printf("\033[33m⚠\033[0m %s\n", fmt.Sprintf(format, args...))
}

// errorMsg prints an error message.
func errorMsg(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "\033[31m✗\033[0m %s\n", fmt.Sprintf(format, args...))
}
