package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/carelinkhq/telecall/internal/ui"
	"github.com/carelinkhq/telecall/internal/version"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "telecall",
	Short:   "Join CareLink video consultations from the terminal",
	Long:    `Telecall is the CareLink consultation client: it joins the consultation room booked for an appointment, negotiates the peer-to-peer call through the CareLink signaling relay, and drives the in-call chat and media controls.`,
	Version: version.Version,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		ui.PrintError(err.Error())
		os.Exit(1)
	}
}
