// Package cli provides the command-line interface for dilagent.
package cli

import (
	"context"
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

// AddResetCommand adds the reset command to the root command.
func AddResetCommand(root *cobra.Command) {
	var server string

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Reset every hypothesis to pending",
		Long: `Return every hypothesis of the run to pending, discarding results and
transient progress. Sandboxes are left in place. The operation is idempotent;
resetting an already-pending run is a no-op.

With --server, the reset goes through a running manager. Without it, the
durable state under the working root is rewritten directly — only do this
when no manager is running.

Examples:
  dilagent reset
  dilagent reset --server http://127.0.0.1:7342`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runReset(cmd.Context(), cmd, os.Stdout, server)
		},
	}

	cmd.Flags().StringVar(&server, "server", "", "coordination endpoint of a running manager")

	root.AddCommand(cmd)
}

// runReset executes the reset command.
func runReset(ctx context.Context, cmd *cobra.Command, w io.Writer, server string) error {
	if err := ctxutil.Canceled(ctx); err != nil {
		return err
	}

	logger := GetLogger()

	if server != "" {
		client := coordination.NewClient(server)
		if err := client.ResetAll(ctx); err != nil {
			return err
		}
		logger.Info().Str("server", server).Msg("run reset via manager")
		_, _ = fmt.Fprintln(w, "All hypotheses reset to pending.")
		return nil
	}

	workingRoot, err := resolveWorkingRoot(cmd)
	if err != nil {
		return fmt.Errorf("failed to resolve working root: %w", err)
	}
	registry, err := paths.NewRegistry(workingRoot)
	if err != nil {
		return err
	}

	store := state.NewStore(registry, state.Options{AutoPersist: true})
	tl := timeline.NewLog(registry, timeline.Options{AutoPersist: true})
	svc := coordination.NewService(store, tl, clock.RealClock{})

	if err = svc.ResetAll(ctx); err != nil {
		return err
	}

	logger.Info().Str("working_root", registry.WorkingRoot()).Msg("run reset")
	_, _ = fmt.Fprintln(w, "All hypotheses reset to pending.")
	return nil
}
