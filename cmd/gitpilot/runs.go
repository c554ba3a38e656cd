package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jxucoder/gitpilot/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded plan and execution runs",
	RunE:  runRuns,
}

func init() {
	rootCmd.AddCommand(runsCmd)
}

func runRuns(cmd *cobra.Command, args []string) error {
	resp, err := http.Get(serverURL + "/api/runs")
	if err != nil {
		return fmt.Errorf("connecting to server: %w\nIs the server running? Start it with: gitpilot serve", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server error (%d): %s", resp.StatusCode, string(body))
	}

	var runs []*store.Run
	if err := json.NewDecoder(resp.Body).Decode(&runs); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}

	if len(runs) == 0 {
		fmt.Println("No runs recorded.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tKIND\tREPO\tSTATUS\tBRANCH\tCREATED")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			run.ID, run.Kind, run.Repo, run.Status, run.Branch,
			run.CreatedAt.Format("2006-01-02 15:04"))
	}
	return w.Flush()
}
