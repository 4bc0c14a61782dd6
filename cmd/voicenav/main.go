// Command voicenav serves and exercises the voice-navigation command
// resolver.
//
// Usage:
//
//	voicenav serve --config config.yaml
//	voicenav match "go to dashboard please" --candidate "go to dashboard"
//	voicenav resolve "basic months" --page dashboard
//	voicenav misses --config config.yaml --limit 20
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	if err := rootCmd().Execute(); err != nil {
		if !errors.Is(err, errNoMatch) {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "voicenav",
		Short:         "Voice command matching for accessible learning apps",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(
		serveCmd(),
		matchCmd(),
		resolveCmd(),
		missesCmd(),
	)
	return cmd
}
