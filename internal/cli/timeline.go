// Package cli provides the command-line interface for dilagent.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mrz1836/dilagent/internal/constants"
	"github.com/mrz1836/dilagent/internal/ctxutil"
	"github.com/mrz1836/dilagent/internal/domain"
	"github.com/mrz1836/dilagent/internal/paths"
	"github.com/mrz1836/dilagent/internal/timeline"
)

// AddTimelineCommand adds the timeline command and its subcommands to the root.
func AddTimelineCommand(root *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "timeline",
		Short: "Inspect the run timeline",
		Long:  `Read the append-only event history of the run under the working root.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	addTimelineListCmd(cmd)
	addTimelineStatsCmd(cmd)

	root.AddCommand(cmd)
}

// addTimelineListCmd adds the list subcommand to the timeline command.
func addTimelineListCmd(parent *cobra.Command) {
	var (
		phase      string
		hypothesis string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List timeline events",
		Long: `Print timeline events in append order, optionally filtered by phase
or hypothesis.

Examples:
  dilagent timeline list
  dilagent timeline list --phase experimentation
  dilagent timeline list --hypothesis H001 --output json`,
		Aliases: []string{"ls"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTimelineList(cmd.Context(), cmd, os.Stdout, phase, hypothesis)
		},
	}

	cmd.Flags().StringVar(&phase, "phase", "", "only events of this phase")
	cmd.Flags().StringVar(&hypothesis, "hypothesis", "", "only events of this hypothesis")

	parent.AddCommand(cmd)
}

// runTimelineList executes the timeline list command.
func runTimelineList(ctx context.Context, cmd *cobra.Command, w io.Writer, phase, hypothesis string) error {
	if err := ctxutil.Canceled(ctx); err != nil {
		return err
	}

	output := cmd.Flag("output").Value.String()

	tl, err := openTimeline(cmd)
	if err != nil {
		return err
	}

	events, err := tl.Events(ctx, timeline.Filter{
		Phase:        constants.Phase(phase),
		HypothesisID: hypothesis,
	})
	if err != nil {
		return err
	}

	if len(events) == 0 {
		if output == OutputJSON {
			_, _ = fmt.Fprintln(w, "[]")
		} else {
			_, _ = fmt.Fprintln(w, "No events recorded.")
		}
		return nil
	}

	if output == OutputJSON {
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		if err = encoder.Encode(events); err != nil {
			return fmt.Errorf("failed to encode events to JSON: %w", err)
		}
		return nil
	}

	for _, ev := range events {
		_, _ = fmt.Fprintln(w, formatEvent(ev))
	}
	return nil
}

// addTimelineStatsCmd adds the stats subcommand to the timeline command.
func addTimelineStatsCmd(parent *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize the timeline",
		Long: `Print aggregate statistics of the event history: totals, per-phase and
per-hypothesis counts, and the first and last events.

Examples:
  dilagent timeline stats
  dilagent timeline stats --output json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTimelineStats(cmd.Context(), cmd, os.Stdout)
		},
	}
	parent.AddCommand(cmd)
}

// runTimelineStats executes the timeline stats command.
func runTimelineStats(ctx context.Context, cmd *cobra.Command, w io.Writer) error {
	if err := ctxutil.Canceled(ctx); err != nil {
		return err
	}

	output := cmd.Flag("output").Value.String()

	tl, err := openTimeline(cmd)
	if err != nil {
		return err
	}

	stats, err := tl.Statistics(ctx)
	if err != nil {
		return err
	}

	if output == OutputJSON {
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		if err = encoder.Encode(stats); err != nil {
			return fmt.Errorf("failed to encode statistics to JSON: %w", err)
		}
		return nil
	}

	_, _ = fmt.Fprintf(w, "Total events: %d\n", stats.TotalEvents)
	if len(stats.EventsByPhase) > 0 {
		_, _ = fmt.Fprintln(w, "By phase:")
		for _, phase := range constants.Phases() {
			if count, ok := stats.EventsByPhase[phase]; ok {
				_, _ = fmt.Fprintf(w, "  %-24s %d\n", string(phase), count)
			}
		}
	}
	if len(stats.EventsByHypothesis) > 0 {
		_, _ = fmt.Fprintf(w, "Hypotheses with events: %d\n", len(stats.EventsByHypothesis))
	}
	if stats.FirstEvent != nil {
		_, _ = fmt.Fprintf(w, "First: %s\n", formatEvent(*stats.FirstEvent))
	}
	if stats.LastEvent != nil {
		_, _ = fmt.Fprintf(w, "Last:  %s\n", formatEvent(*stats.LastEvent))
	}
	return nil
}

// openTimeline opens the timeline log of the working root read-only.
func openTimeline(cmd *cobra.Command) (*timeline.Log, error) {
	workingRoot, err := resolveWorkingRoot(cmd)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve working root: %w", err)
	}
	registry, err := paths.NewRegistry(workingRoot)
	if err != nil {
		return nil, err
	}
	return timeline.NewLog(registry, timeline.Options{AutoPersist: false}), nil
}

// formatEvent renders a single event as one text line.
func formatEvent(ev domain.TimelineEvent) string {
	subject := ""
	switch {
	case ev.HypothesisID != "":
		subject = " [" + ev.HypothesisID + "]"
	case ev.Phase != "":
		subject = " [" + string(ev.Phase) + "]"
	}
	return fmt.Sprintf("%s %s%s %s",
		ev.Timestamp.Format(time.RFC3339),
		ev.Kind,
		subject,
		ev.Name,
	)
}
