// Package cli provides the command-line interface for dilagent.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mrz1836/dilagent/internal/ctxutil"
	"github.com/mrz1836/dilagent/internal/paths"
	"github.com/mrz1836/dilagent/internal/sandbox"
)

// addSandboxRemoveCmd adds the remove subcommand to the sandbox command.
func addSandboxRemoveCmd(parent *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "remove <path>",
		Short: "Remove a hypothesis sandbox",
		Long: `Force-remove the worktree at the given path, discarding any
uncommitted changes it holds. The path may be absolute or relative to the
working root.

Removal fails loudly when the path is not a registered worktree, so a typo
never silently deletes an unrelated directory.

Examples:
  dilagent sandbox remove .dilagent/H001-null-deref
  dilagent sandbox rm /tmp/debug-run/.dilagent/H002-stale-cache`,
		Aliases: []string{"rm"},
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSandboxRemove(cmd.Context(), cmd, os.Stdout, args[0])
		},
	}
	parent.AddCommand(cmd)
}

// runSandboxRemove executes the sandbox remove command.
func runSandboxRemove(ctx context.Context, cmd *cobra.Command, w io.Writer, target string) error {
	if err := ctxutil.Canceled(ctx); err != nil {
		return err
	}

	logger := GetLogger()

	workingRoot, err := resolveWorkingRoot(cmd)
	if err != nil {
		return fmt.Errorf("failed to resolve working root: %w", err)
	}
	registry, err := paths.NewRegistry(workingRoot)
	if err != nil {
		return err
	}

	if !filepath.IsAbs(target) {
		target = filepath.Join(registry.WorkingRoot(), target)
	}

	mgr := sandbox.NewManager(registry)
	if err = mgr.RemoveSandbox(ctx, target); err != nil {
		logger.Debug().Err(err).Str("path", target).Msg("failed to remove sandbox")
		return err
	}

	logger.Info().Str("path", target).Msg("sandbox removed")
	_, _ = fmt.Fprintf(w, "Removed sandbox %s\n", target)
	return nil
}
