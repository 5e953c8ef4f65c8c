package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/matchpulse/feedgate/internal/feed"
)

// newFetchCmd creates the 'fetch' subcommand, a one-shot fetch through the
// full resilience stack that prints the result record as JSON.
func newFetchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch <capability> <args...>",
		Short: "Fetches one record through the configured adapter",
		Long: `Performs a single fetch through the scraped adapter and prints the
resulting record, its provenance, and its capture time as JSON.

Capabilities and their arguments:
  odds <match-id>
  stats <team>
  historical <league> <season>
  live <league>`,
		Args: cobra.MinimumNArgs(2),
		RunE: runFetchCommand,
	}
	cmd.Flags().String("adapter", "scraped", "adapter registry key")
	return cmd
}

// fetchOutput is the printed shape of a fetch result.
type fetchOutput struct {
	Record     feed.Record     `json:"record"`
	Provenance feed.Provenance `json:"provenance"`
	FetchedAt  string          `json:"fetched_at"`
}

func runFetchCommand(cmd *cobra.Command, args []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}

	key, _ := cmd.Flags().GetString("adapter")
	adp, err := appInstance.Registry().Get(key)
	if err != nil {
		return fmt.Errorf("resolve adapter: %w", err)
	}

	var result feed.Result
	capability := args[0]
	switch capability {
	case "odds":
		result, err = adp.FetchOdds(cmd.Context(), args[1])
	case "stats":
		result, err = adp.FetchTeamStats(cmd.Context(), args[1])
	case "historical":
		if len(args) < 3 {
			return fmt.Errorf("historical requires <league> <season>")
		}
		result, err = adp.FetchHistorical(cmd.Context(), args[1], args[2])
	case "live":
		result, err = adp.FetchLive(cmd.Context(), args[1])
	default:
		return fmt.Errorf("unknown capability %q", capability)
	}
	if err != nil {
		// ErrNoData still carries the sentinel record; report it after
		// printing so operators see exactly what a caller would receive.
		defer func() { fmt.Fprintf(os.Stderr, "warning: %v\n", err) }()
	}

	out := fetchOutput{
		Record:     result.Record,
		Provenance: result.Provenance,
		FetchedAt:  result.FetchedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if encErr := enc.Encode(out); encErr != nil {
		return fmt.Errorf("encode result: %w", encErr)
	}
	return nil
}
