// Package cli provides the command-line interface for dilagent.
package cli

import (
	"github.com/spf13/cobra"
)

// AddSandboxCommand adds the sandbox command and its subcommands to the root.
func AddSandboxCommand(root *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "sandbox",
		Short: "Manage hypothesis sandboxes",
		Long: `Administrative operations on the git-worktree sandboxes of a run.

Sandboxes are normally created and removed by the manager; these commands
exist for inspection and manual cleanup.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	addSandboxListCmd(cmd)
	addSandboxRemoveCmd(cmd)

	root.AddCommand(cmd)
}
