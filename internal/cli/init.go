// Package cli provides the command-line interface for dilagent.
package cli

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mrz1836/dilagent/internal/config"
	"github.com/mrz1836/dilagent/internal/constants"
	"github.com/mrz1836/dilagent/internal/ctxutil"
	"github.com/mrz1836/dilagent/internal/paths"
)

// AddInitCommand adds the init command to the root command.
func AddInitCommand(root *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a dilagent working root",
		Long: `Create the .dilagent directory structure and a project configuration
scaffold in the working root.

Examples:
  dilagent init                       # Initialize the current directory
  dilagent init -w /tmp/debug-run     # Initialize a specific working root`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInit(cmd.Context(), cmd, os.Stdout)
		},
	}
	root.AddCommand(cmd)
}

// runInit executes the init command.
func runInit(ctx context.Context, cmd *cobra.Command, w io.Writer) error {
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

	for _, dir := range []string{registry.DilagentDir(), registry.LogsDir(), registry.ArtifactsDir()} {
		if err = os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	configPath := filepath.Join(registry.WorkingRoot(), constants.ProjectConfigName)
	if err = config.WriteDefault(configPath); err != nil {
		if stderrors.Is(err, os.ErrExist) {
			logger.Debug().Str("path", configPath).Msg("project config already exists, leaving untouched")
		} else {
			return err
		}
	}

	logger.Info().Str("working_root", registry.WorkingRoot()).Msg("working root initialized")
	_, _ = fmt.Fprintf(w, "Initialized dilagent working root at %s\n", registry.WorkingRoot())
	return nil
}
