// Package cli provides the command-line interface for dilagent.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/mrz1836/dilagent/internal/clock"
	"github.com/mrz1836/dilagent/internal/coordination"
	"github.com/mrz1836/dilagent/internal/ctxutil"
	"github.com/mrz1836/dilagent/internal/paths"
	"github.com/mrz1836/dilagent/internal/state"
	"github.com/mrz1836/dilagent/internal/timeline"
)

// AddStatusCommand adds the status command to the root command.
func AddStatusCommand(root *cobra.Command) {
	var server string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the status of every hypothesis",
		Long: `Display the latest status of every hypothesis of the run.

With --server, the command queries a running manager over the coordination
endpoint and includes transient progress reports. Without it, the command
reads the durable state under the working root.

Examples:
  dilagent status                               # Read state.json
  dilagent status --server http://127.0.0.1:7342 # Query a live manager
  dilagent status -o json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd.Context(), cmd, os.Stdout, server)
		},
	}

	cmd.Flags().StringVar(&server, "server", "", "coordination endpoint of a running manager")

	root.AddCommand(cmd)
}

// runStatus executes the status command.
func runStatus(ctx context.Context, cmd *cobra.Command, w io.Writer, server string) error {
	if err := ctxutil.Canceled(ctx); err != nil {
		return err
	}

	output := cmd.Flag("output").Value.String()

	var (
		statuses []coordination.StatusView
		err      error
	)
	if server != "" {
		client := coordination.NewClient(server)
		statuses, err = client.QueryAllStatuses(ctx)
	} else {
		statuses, err = localStatuses(ctx, cmd)
	}
	if err != nil {
		return err
	}

	if len(statuses) == 0 {
		if output == OutputJSON {
			_, _ = fmt.Fprintln(w, "[]")
		} else {
			_, _ = fmt.Fprintln(w, "No hypotheses registered.")
		}
		return nil
	}

	if output == OutputJSON {
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		if err = encoder.Encode(statuses); err != nil {
			return fmt.Errorf("failed to encode statuses to JSON: %w", err)
		}
		return nil
	}

	return outputStatusTable(w, statuses)
}

// localStatuses reads hypothesis statuses from the durable run state.
func localStatuses(ctx context.Context, cmd *cobra.Command) ([]coordination.StatusView, error) {
	workingRoot, err := resolveWorkingRoot(cmd)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve working root: %w", err)
	}
	registry, err := paths.NewRegistry(workingRoot)
	if err != nil {
		return nil, err
	}

	store := state.NewStore(registry, state.Options{AutoPersist: false})
	tl := timeline.NewLog(registry, timeline.Options{AutoPersist: false})
	svc := coordination.NewService(store, tl, clock.RealClock{})
	return svc.QueryAllStatuses(ctx)
}

// outputStatusTable prints statuses as an aligned table.
func outputStatusTable(w io.Writer, statuses []coordination.StatusView) error {
	const (
		idWidth      = 8
		slugWidth    = 24
		statusWidth  = 10
		verdictWidth = 13
	)

	_, _ = fmt.Fprintf(w, "%-*s %-*s %-*s %-*s %s\n",
		idWidth, "ID",
		slugWidth, "SLUG",
		statusWidth, "STATUS",
		verdictWidth, "VERDICT",
		"MESSAGE",
	)

	for _, sv := range statuses {
		verdict := "-"
		if sv.Result != nil && sv.Result.Value != nil {
			verdict = string(sv.Result.Value.Verdict())
		}

		_, _ = fmt.Fprintf(w, "%-*s %-*s %-*s %-*s %s\n",
			idWidth, truncate(sv.HypothesisID, idWidth),
			slugWidth, truncate(sv.Slug, slugWidth),
			statusWidth, string(sv.Status),
			verdictWidth, verdict,
			sv.Message,
		)
	}

	return nil
}
