// Package cli provides the command-line interface for dilagent.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mrz1836/dilagent/internal/clock"
	"github.com/mrz1836/dilagent/internal/config"
	"github.com/mrz1836/dilagent/internal/coordination"
	"github.com/mrz1836/dilagent/internal/ctxutil"
	"github.com/mrz1836/dilagent/internal/domain"
	"github.com/mrz1836/dilagent/internal/paths"
	"github.com/mrz1836/dilagent/internal/sandbox"
	"github.com/mrz1836/dilagent/internal/state"
	"github.com/mrz1836/dilagent/internal/timeline"
)

// serveOptions holds serve-specific flag values.
type serveOptions struct {
	port       int
	runID      string
	prompt     string
	contextDir string
}

// AddServeCommand adds the serve command to the root command.
func AddServeCommand(root *cobra.Command) {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the coordination manager for a debugging run",
		Long: `Start the manager process: initialize run state and the timeline under
the working root, optionally establish the root sandbox from a context
directory, and serve the worker coordination endpoint on loopback until
interrupted.

Examples:
  dilagent serve --prompt "intermittent 502s under load"
  dilagent serve --context-dir ~/src/payments --port 7342
  dilagent serve -w /tmp/debug-run --run-id run-4f9a12`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), cmd, opts)
		},
	}

	cmd.Flags().IntVar(&opts.port, "port", -1, "coordination port (default: config, 0 picks a free port)")
	cmd.Flags().StringVar(&opts.runID, "run-id", "", "run identifier (default: generated)")
	cmd.Flags().StringVar(&opts.prompt, "prompt", "", "problem prompt describing the failure under investigation")
	cmd.Flags().StringVar(&opts.contextDir, "context-dir", "", "context directory to mirror into the root sandbox")

	root.AddCommand(cmd)
}

// runServe executes the serve command.
func runServe(ctx context.Context, cmd *cobra.Command, opts *serveOptions) error {
	if err := ctxutil.Canceled(ctx); err != nil {
		return err
	}

	workingRoot, err := resolveWorkingRoot(cmd)
	if err != nil {
		return fmt.Errorf("failed to resolve working root: %w", err)
	}

	cfg, err := config.Load(ctx, workingRoot)
	if err != nil {
		return err
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

	// Switch logging to the per-run manager log so the run's history travels
	// with its working root.
	verbose := cmd.Flag("verbose").Value.String() == "true"
	quiet := cmd.Flag("quiet").Value.String() == "true"
	logger, err := InitRunLogger(verbose, quiet, registry.ManagerLogFile())
	if err != nil {
		return fmt.Errorf("failed to open manager log: %w", err)
	}
	SetLogger(logger)
	defer CloseLogFile()

	runID := opts.runID
	if runID == "" {
		runID = generateRunID()
	}
	if err = paths.ValidateIdentifier(runID); err != nil {
		return err
	}

	clk := clock.RealClock{}
	store := state.NewStore(registry, state.Options{
		AutoPersist:   cfg.State.AutoPersist,
		RunID:         runID,
		ProblemPrompt: opts.prompt,
		Clock:         clk,
	})
	tl := timeline.NewLog(registry, timeline.Options{
		AutoPersist: cfg.State.AutoPersist,
		Clock:       clk,
	})

	// Loading an existing state.json resumes that run; its id wins over the
	// generated one.
	st, err := store.State(ctx)
	if err != nil {
		return err
	}
	if st.RunID != runID {
		logger.Info().Str("run_id", st.RunID).Msg("resuming existing run")
		runID = st.RunID
	}

	if opts.contextDir != "" {
		mgr := sandbox.NewManager(registry)
		var root *sandbox.RootSandbox
		if root, err = mgr.EstablishRootSandbox(ctx, opts.contextDir, runID); err != nil {
			return err
		}
		logger.Info().
			Str("sandbox", root.SandboxPath).
			Str("relative_path", root.RelativePath).
			Msg("root sandbox established")
	}

	svc := coordination.NewService(store, tl, clk)
	port := opts.port
	if port < 0 {
		port = cfg.Server.Port
	}
	srv := coordination.NewServer(svc, port)

	if err = tl.RecordEvent(ctx, domain.NewSystemEvent("manager_started", map[string]any{
		"run_id": runID,
		"port":   port,
	})); err != nil {
		return err
	}

	return serveUntilSignal(ctx, srv, tl, cfg.Server.ShutdownTimeout)
}

// serveUntilSignal runs the coordination server until the context is
// canceled or an interrupt arrives, then shuts down gracefully and records
// the stop on the timeline.
func serveUntilSignal(ctx context.Context, srv *coordination.Server, tl *timeline.Log, shutdownTimeout time.Duration) error {
	logger := GetLogger()

	signalCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(signalCtx)

	g.Go(srv.Start)

	// The listener address is only known once Start binds; poll briefly so
	// the effective port lands in the log even when port 0 was requested.
	g.Go(func() error {
		ticker := time.NewTicker(50 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if addr := srv.Addr(); addr != nil {
					logger.Info().Str("addr", addr.String()).Msg("coordination endpoint listening")
					return nil
				}
			}
		}
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err := g.Wait()

	// Record the stop with a fresh context; the signal context is done.
	recordCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if recordErr := tl.RecordEvent(recordCtx, domain.NewSystemEvent("manager_stopped", nil)); recordErr != nil {
		logger.Warn().Err(recordErr).Msg("failed to record manager stop")
	}

	if err != nil {
		return fmt.Errorf("coordination server failed: %w", err)
	}
	logger.Info().Msg("manager stopped")
	return nil
}

// generateRunID creates a fresh run identifier like "run-4f9a12cb".
func generateRunID() string {
	return "run-" + uuid.NewString()[:8]
}
