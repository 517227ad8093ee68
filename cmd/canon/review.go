package main

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/agenthands/canon/internal/core/review"
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Work with stored reviews",
}

var reviewShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "List the items of a review",
	Args:  cobra.ExactArgs(1),
	RunE:  runReviewShow,
}

var reviewDecideCmd = &cobra.Command{
	Use:   "decide <id> <decision>",
	Short: "Approve, reject or reset review items",
	Long: `Set the decision (approved, rejected or pending) of one item with --key,
or of every item with --all.`,
	Args: cobra.ExactArgs(2),
	RunE: runReviewDecide,
}

var reviewApplyCmd = &cobra.Command{
	Use:   "apply <id>",
	Short: "Apply the approved items of a review",
	Args:  cobra.ExactArgs(1),
	RunE:  runReviewApply,
}

var (
	decideKey string
	decideAll bool
)

func init() {
	reviewDecideCmd.Flags().StringVar(&decideKey, "key", "", "item key, e.g. 'merge:etl' or 'etl->Spark::used_for'")
	reviewDecideCmd.Flags().BoolVar(&decideAll, "all", false, "apply the decision to every item")

	reviewCmd.AddCommand(reviewShowCmd)
	reviewCmd.AddCommand(reviewDecideCmd)
	reviewCmd.AddCommand(reviewApplyCmd)
}

func runReviewShow(cmd *cobra.Command, args []string) error {
	app, lg, err := bootstrap(cmd.Context(), "")
	if err != nil {
		return err
	}
	defer lg.Sync()
	defer app.Close()

	r, err := app.Reviews.Get(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Review %s (run %s, %s)\n", r.ID, r.RunID, r.CreatedAt.Format("2006-01-02 15:04"))
	for _, it := range r.Items {
		switch it.Kind {
		case review.KindMerge:
			fmt.Fprintf(out, "  [%s] %s: %v\n", it.Decision, it.Key, it.Group.Members)
		default:
			fmt.Fprintf(out, "  [%s] %s: %s\n", it.Decision, it.Key, it.Relationship.Reason)
		}
	}
	return nil
}

func runReviewDecide(cmd *cobra.Command, args []string) error {
	d, ok := review.ParseDecision(args[1])
	if !ok {
		return errors.Newf("unknown decision %q", args[1])
	}
	if decideKey == "" && !decideAll {
		return errors.New("pass --key or --all")
	}

	app, lg, err := bootstrap(cmd.Context(), "")
	if err != nil {
		return err
	}
	defer lg.Sync()
	defer app.Close()

	if decideAll {
		err = app.Reviews.DecideAll(cmd.Context(), args[0], d)
	} else {
		err = app.Reviews.Decide(cmd.Context(), args[0], decideKey, d)
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "ok")
	return nil
}

func runReviewApply(cmd *cobra.Command, args []string) error {
	app, lg, err := bootstrap(cmd.Context(), "")
	if err != nil {
		return err
	}
	defer lg.Sync()
	defer app.Close()

	report, err := app.Reviews.Apply(cmd.Context(), args[0])
	fmt.Fprintf(cmd.OutOrStdout(), "merged %d, skipped %d, failed %d groups; %d relationships, %d failed\n",
		len(report.MergedGroups), len(report.SkippedGroups), len(report.FailedGroups),
		report.RelationshipsUpserted, len(report.FailedRelationships))
	return err
}
