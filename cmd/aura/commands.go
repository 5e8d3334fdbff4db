package main

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/danielpatrickdp/aura-plan/internal/fingerprint"
	"github.com/danielpatrickdp/aura-plan/internal/horizon"
	"github.com/danielpatrickdp/aura-plan/internal/insight"
	"github.com/danielpatrickdp/aura-plan/internal/plan"
	"github.com/danielpatrickdp/aura-plan/internal/refresh"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func init() {
	addTargetFlags(ensureCmd)
	addTargetFlags(refreshCmd)
	showCmd.Flags().StringP("bucket", "b", "", "Only show this horizon")
	showCmd.Flags().StringP("plan", "p", "", "Show what the UI would render for this plan")
	historyCmd.Flags().IntP("limit", "n", 20, "Number of journal entries to show")
}

// #region commands

var bucketsCmd = &cobra.Command{
	Use:   "buckets",
	Short: "List the planning horizons",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "BUCKET\tLABEL\tFOCUS")
		for _, b := range horizon.All() {
			fmt.Fprintf(w, "%s\t%s\t%s\n", b, b.Label(), b.Focus())
		}
		return w.Flush()
	},
}

var ensureCmd = &cobra.Command{
	Use:   "ensure",
	Short: "Regenerate insights whose tasks changed since the last generation",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRefresh(cmd, false)
	},
}

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Regenerate insights even when tasks are unchanged",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRefresh(cmd, true)
	},
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print cached insights",
	Args:  cobra.NoArgs,
	RunE:  handleShow,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Print recent refresh decisions",
	Args:  cobra.NoArgs,
	RunE:  handleHistory,
}

// #endregion commands

// #region targets

type target struct {
	bucket horizon.Bucket
	tasks  []string
}

func addTargetFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("bucket", "b", "", "Horizon to refresh (day, week, month, year, five_years, lifetime)")
	cmd.Flags().StringArrayP("task", "t", nil, "Task text; repeat for each task")
	cmd.Flags().StringP("plan", "p", "", "YAML plan file to read tasks from")
	cmd.Flags().Bool("all", false, "With --plan, process every horizon concurrently")
}

// resolveTargets turns the ensure/refresh flags into (bucket, tasks) pairs.
func resolveTargets(cmd *cobra.Command) ([]target, error) {
	bucketFlag, _ := cmd.Flags().GetString("bucket")
	tasks, _ := cmd.Flags().GetStringArray("task")
	planPath, _ := cmd.Flags().GetString("plan")
	all, _ := cmd.Flags().GetBool("all")

	if all && planPath == "" {
		return nil, errors.New("--all requires --plan")
	}
	if all && bucketFlag != "" {
		return nil, errors.New("--all and --bucket are mutually exclusive")
	}
	if planPath != "" && len(tasks) > 0 {
		return nil, errors.New("--task and --plan are mutually exclusive")
	}

	if all {
		p, err := plan.Load(planPath)
		if err != nil {
			return nil, err
		}
		var out []target
		for _, b := range horizon.All() {
			out = append(out, target{bucket: b, tasks: p.Tasks(b)})
		}
		return out, nil
	}

	if bucketFlag == "" {
		return nil, errors.New("--bucket is required")
	}
	b, err := horizon.Parse(bucketFlag)
	if err != nil {
		return nil, err
	}
	if planPath != "" {
		p, err := plan.Load(planPath)
		if err != nil {
			return nil, err
		}
		tasks = p.Tasks(b)
	}
	return []target{{bucket: b, tasks: tasks}}, nil
}

// #endregion targets

// #region handlers

func runRefresh(cmd *cobra.Command, force bool) error {
	targets, err := resolveTargets(cmd)
	if err != nil {
		return err
	}
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	results := make([]refresh.Result, len(targets))
	var g errgroup.Group
	for i, t := range targets {
		g.Go(func() error {
			if force {
				results[i] = a.ctrl.Refresh(ctx, t.bucket, t.tasks)
			} else {
				results[i] = a.ctrl.EnsureFresh(ctx, t.bucket, t.tasks)
			}
			if results[i].Err != nil {
				return fmt.Errorf("%s: %w", t.bucket, results[i].Err)
			}
			return nil
		})
	}
	werr := g.Wait()

	out := cmd.OutOrStdout()
	for i, res := range results {
		printResult(out, res)
		if res.Action == refresh.ActionGenerated {
			printView(out, a.ctrl.View(ctx, targets[i].bucket, targets[i].tasks))
		}
	}
	return werr
}

func handleShow(cmd *cobra.Command, args []string) error {
	bucketFlag, _ := cmd.Flags().GetString("bucket")
	planPath, _ := cmd.Flags().GetString("plan")

	buckets := horizon.All()
	if bucketFlag != "" {
		b, err := horizon.Parse(bucketFlag)
		if err != nil {
			return err
		}
		buckets = []horizon.Bucket{b}
	}

	var p *plan.Plan
	if planPath != "" {
		var err error
		if p, err = plan.Load(planPath); err != nil {
			return err
		}
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	if p != nil {
		for _, b := range buckets {
			printView(out, a.ctrl.View(ctx, b, p.Tasks(b)))
		}
		return nil
	}

	entries, err := a.store.List(ctx)
	if err != nil {
		return fmt.Errorf("list cache: %w", err)
	}
	shown := 0
	for _, b := range buckets {
		e, ok := entries[b]
		if !ok {
			continue
		}
		shown++
		fmt.Fprintf(out, "%s (%s)  updated %s  tasks %s\n", b, b.Label(), e.UpdatedAt.Format(time.RFC3339), e.Fingerprint)
		printInsight(out, e.Insight)
	}
	if shown == 0 {
		fmt.Fprintln(out, "no cached insights")
	}
	return nil
}

func handleHistory(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	if limit <= 0 {
		return fmt.Errorf("--limit must be positive, got %d", limit)
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	entries, err := a.journal.Recent(cmd.Context(), limit)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tBUCKET\tTRIGGER\tDECISION\tATTEMPTS\tTASKS\tREASON")
	for _, e := range entries {
		fp := "-"
		if e.Fingerprint != "" {
			fp = fingerprint.Value(e.Fingerprint).Short()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			e.CreatedAt.Local().Format(time.DateTime), e.Bucket, e.Trigger, e.Decision, e.Attempts, fp, e.Reason)
	}
	return w.Flush()
}

// #endregion handlers

// #region output

func printResult(w io.Writer, res refresh.Result) {
	line := fmt.Sprintf("%-10s %-9s", res.Bucket, res.Action)
	if res.Fingerprint != fingerprint.Empty {
		line += " tasks=" + res.Fingerprint.Short()
	}
	if res.Attempts > 0 {
		line += fmt.Sprintf(" attempts=%d", res.Attempts)
	}
	if res.Err != nil {
		line += " error=" + res.Err.Error()
	}
	fmt.Fprintln(w, line)
}

func printView(w io.Writer, v refresh.View) {
	if v.Status == refresh.StatusHidden {
		fmt.Fprintf(w, "%s (%s)  no tasks\n", v.Bucket, v.Bucket.Label())
		return
	}
	fmt.Fprintf(w, "%s (%s)  %s\n", v.Bucket, v.Bucket.Label(), v.Status)
	printInsight(w, v.Insight)
}

func printInsight(w io.Writer, in insight.Insight) {
	fmt.Fprintf(w, "  vision:     %s\n", in.Vision)
	fmt.Fprintf(w, "  suggestion: %s\n", in.Suggestion)
	fmt.Fprintf(w, "  prompt:     %s\n", in.Prompt)
}

// #endregion output
