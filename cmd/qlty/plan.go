package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/qlty-sh/qlty-core/internal/app"
	"github.com/qlty-sh/qlty-core/internal/planner"
)

var (
	planAll         bool
	planUpstreamRef string
)

var planCmd = &cobra.Command{
	Use:   "plan [files or directories...]",
	Short: "Show what check would run without running it",
	Args:  cobra.ArbitraryArgs,
	RunE:  runPlanCmd,
}

func init() {
	planCmd.Flags().BoolVar(&planAll, "all", false, "Plan against every file in the workspace")
	planCmd.Flags().StringVar(&planUpstreamRef, "upstream", "", "Plan against files changed since this git ref")
}

func runPlanCmd(cmd *cobra.Command, args []string) error {
	root, err := os.Getwd()
	if err != nil {
		return err
	}

	ctx := context.Background()
	proj, err := app.Load(ctx, root)
	if err != nil {
		return err
	}

	enabled, err := proj.ResolveEnabled()
	if err != nil {
		return err
	}

	mode := planner.ModeAll
	switch {
	case planUpstreamRef != "":
		mode = planner.ModeUpstreamDiff
	case planAll:
		mode = planner.ModeAll
	case len(args) > 0:
		mode = planner.ModePaths
	}

	result, err := planner.Plan(planner.Input{
		WorkspaceRoot: root,
		QltyDir:       proj.QltyDir,
		Mode:          mode,
		Paths:         args,
		UpstreamRef:   planUpstreamRef,
		RawEnabled:    app.EnabledSlice(enabled),
		Definitions:   proj.Definitions,
		Ignores:       proj.Config.Ignores,
	})
	if err != nil {
		return err
	}

	if len(result.Plans) == 0 {
		cmd.Println("No invocations planned")
		return nil
	}

	cmd.Printf("%d invocation(s) planned:\n\n", len(result.Plans))
	for _, p := range result.Plans {
		cmd.Printf("  [%s] %s/%s on %d target(s)\n", p.Verb, p.PluginName, p.DriverName, len(p.Targets))
	}
	return nil
}
