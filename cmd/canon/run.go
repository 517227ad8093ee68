package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/agenthands/canon/internal/config"
	"github.com/agenthands/canon/internal/core"
	"github.com/agenthands/canon/internal/core/model"
	"github.com/agenthands/canon/internal/logger"
	"github.com/agenthands/canon/internal/server"
)

var (
	runMode        string
	runCatalogPath string
	runJSON        bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one normalization pass",
	Long: `Run the generate/validate loop until both tasks converge or the iteration
cap is hit, then apply the plan (mode direct) or store it for review (mode
review). Ctrl-C stops the loop at the next iteration boundary without
applying anything.`,
	RunE: runNormalize,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE:  runServe,
}

func init() {
	runCmd.Flags().StringVar(&runMode, "mode", "direct", "direct or review")
	runCmd.Flags().StringVar(&runCatalogPath, "catalog", "", "JSON file of {name, definition} concepts instead of the graph")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "print the run result as JSON")
}

// bootstrap loads config and builds the app the subcommands share.
func bootstrap(ctx context.Context, catalogPath string) (*server.App, *logger.Logger, error) {
	cfg, err := config.Resolve(configPath)
	if err != nil {
		return nil, nil, err
	}
	lg, err := logger.New(cfg.Log.Mode)
	if err != nil {
		return nil, nil, errors.Wrap(err, "init logger")
	}
	app, err := server.Build(ctx, cfg, lg, catalogPath)
	if err != nil {
		lg.Sync()
		return nil, nil, err
	}
	return app, lg, nil
}

func runNormalize(cmd *cobra.Command, args []string) error {
	mode, ok := core.ParseMode(runMode)
	if !ok {
		return errors.Newf("unknown mode %q", runMode)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, lg, err := bootstrap(ctx, runCatalogPath)
	if err != nil {
		return err
	}
	defer lg.Sync()
	defer app.Close()

	if err := app.Canon.BuildIndices(ctx); err != nil {
		lg.Warn("failed to build indices", "error", err)
	}

	info, err := app.Canon.RunSync(ctx, mode)
	if err != nil {
		return err
	}

	if runJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}
	printRun(cmd, info)
	if info.Status == model.StatusFailed {
		return errors.Newf("run failed: %s", info.Error)
	}
	return nil
}

func printRun(cmd *cobra.Command, info core.RunInfo) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run %s: %s\n", info.ID, info.Status)
	if info.Error != "" {
		fmt.Fprintf(out, "  reason: %s\n", info.Error)
	}
	if info.Result != nil {
		t := info.Result.Totals
		fmt.Fprintf(out, "  iterations:     %d\n", info.Result.Iterations)
		fmt.Fprintf(out, "  merge groups:   %d (%d aliases)\n", t.MergeGroups, t.MergedAliases)
		fmt.Fprintf(out, "  relationships:  %d\n", t.Relationships)
		fmt.Fprintf(out, "  rejected:       %d\n", t.Rejected)
		fmt.Fprintf(out, "  hallucinations: %d\n", t.FilteredHallucinations)
		for _, g := range info.Result.Plan.Groups {
			fmt.Fprintf(out, "  %s <- %v\n", g.Canonical, g.Variants())
		}
	}
	if info.Apply != nil {
		fmt.Fprintf(out, "  applied: %d merged, %d skipped, %d relationships\n",
			len(info.Apply.MergedGroups), len(info.Apply.SkippedGroups), info.Apply.RelationshipsUpserted)
	}
	if info.ReviewID != "" {
		fmt.Fprintf(out, "  review: %s\n", info.ReviewID)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, lg, err := bootstrap(ctx, "")
	if err != nil {
		return err
	}
	defer lg.Sync()
	defer app.Close()

	if err := app.Canon.BuildIndices(ctx); err != nil {
		lg.Warn("failed to build indices", "error", err)
	}
	return server.NewServer(app).Serve(ctx, app.Config.Server.Port)
}
