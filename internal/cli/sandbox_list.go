// Package cli provides the command-line interface for dilagent.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/mrz1836/dilagent/internal/ctxutil"
	"github.com/mrz1836/dilagent/internal/paths"
	"github.com/mrz1836/dilagent/internal/sandbox"
)

// addSandboxListCmd adds the list subcommand to the sandbox command.
func addSandboxListCmd(parent *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sandboxes of the working root",
		Long: `Display the worktree sandboxes registered against the root sandbox,
with their branch and HEAD commit.

Examples:
  dilagent sandbox list                # Display as table
  dilagent sandbox list --output json  # Display as JSON array
  dilagent sandbox ls                  # Alias for list`,
		Aliases: []string{"ls"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSandboxList(cmd.Context(), cmd, os.Stdout)
		},
	}
	parent.AddCommand(cmd)
}

// runSandboxList executes the sandbox list command.
func runSandboxList(ctx context.Context, cmd *cobra.Command, w io.Writer) error {
	if err := ctxutil.Canceled(ctx); err != nil {
		return err
	}

	logger := GetLogger()
	output := cmd.Flag("output").Value.String()

	workingRoot, err := resolveWorkingRoot(cmd)
	if err != nil {
		return fmt.Errorf("failed to resolve working root: %w", err)
	}
	registry, err := paths.NewRegistry(workingRoot)
	if err != nil {
		return err
	}

	mgr := sandbox.NewManager(registry)
	sandboxes, err := mgr.ListSandboxes(ctx)
	if err != nil {
		logger.Debug().Err(err).Msg("failed to list sandboxes")
		return err
	}

	if len(sandboxes) == 0 {
		if output == OutputJSON {
			_, _ = fmt.Fprintln(w, "[]")
		} else {
			_, _ = fmt.Fprintln(w, "No sandboxes. Run 'dilagent serve --context-dir <dir>' to establish one.")
		}
		return nil
	}

	if output == OutputJSON {
		return outputSandboxesJSON(w, sandboxes)
	}
	return outputSandboxesTable(w, sandboxes)
}

// outputSandboxesJSON outputs sandboxes as a JSON array.
func outputSandboxesJSON(w io.Writer, sandboxes []sandbox.Info) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(sandboxes); err != nil {
		return fmt.Errorf("failed to encode sandboxes to JSON: %w", err)
	}
	return nil
}

// outputSandboxesTable outputs sandboxes as an aligned table.
func outputSandboxesTable(w io.Writer, sandboxes []sandbox.Info) error {
	const (
		pathWidth   = 44
		branchWidth = 28
		commitWidth = 8
	)

	_, _ = fmt.Fprintf(w, "%-*s %-*s %s\n",
		pathWidth, "PATH",
		branchWidth, "BRANCH",
		"HEAD",
	)

	for _, sb := range sandboxes {
		branch := sb.Branch
		if branch == "" {
			branch = "(detached)"
		}

		commit := sb.HeadCommit
		if len(commit) > commitWidth {
			commit = commit[:commitWidth]
		}

		_, _ = fmt.Fprintf(w, "%-*s %-*s %s\n",
			pathWidth, truncate(sb.Path, pathWidth),
			branchWidth, truncate(branch, branchWidth),
			commit,
		)
	}

	return nil
}

// truncate shortens s to width runes, marking the cut with an ellipsis.
func truncate(s string, width int) string {
	if len(s) <= width {
		return s
	}
	return s[:width-1] + "…"
}
