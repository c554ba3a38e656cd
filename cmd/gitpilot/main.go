// GitPilot
//
// Plan and apply LLM-driven changes to GitHub repositories.
// Every change lands on a dedicated branch for human review.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	serverURL string
)

var rootCmd = &cobra.Command{
	Use:   "gitpilot",
	Short: "GitPilot - plan and apply repository changes",
	Long: `GitPilot plans and applies LLM-driven changes to GitHub repositories.
Changes are committed to a dedicated branch for human review.

  gitpilot serve                                       Start the API server
  gitpilot plan "add CI" --repo owner/repo             Generate a change plan
  gitpilot execute --repo owner/repo --plan plan.json  Apply an approved plan
  gitpilot runs                                        List recorded runs`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", envOr("GITPILOT_SERVER", "http://localhost:7080"), "GitPilot server URL")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
