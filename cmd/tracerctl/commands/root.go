// Package commands implements the tracerctl CLI commands.
package commands

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	apiClient    *client
	outputFormat string
	serverAddr   string
)

var rootCmd = &cobra.Command{
	Use:   "tracerctl",
	Short: "CLI client for the tracerd state-space explorer daemon",
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		apiClient = newClient("http://"+serverAddr, &http.Client{Timeout: 30 * time.Second})
		return nil
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverAddr, "addr", "localhost:8080", "tracerd HTTP API address")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", "table", "output format: table or json")

	rootCmd.AddCommand(graphCmd())
	rootCmd.AddCommand(stateCmd())
	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(shellCmd())
}

// Execute runs the root command, exiting the process on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
