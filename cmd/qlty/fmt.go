package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/qlty-sh/qlty-core/internal/planner"
	"github.com/qlty-sh/qlty-core/internal/staging"
	"github.com/qlty-sh/qlty-core/internal/ui"
)

var fmtAll bool

var fmtCmd = &cobra.Command{
	Use:   "fmt [files or directories...]",
	Short: "Run formatters against the workspace",
	Long: `Plan and run every enabled fmt-mode driver against the given paths
(or the whole workspace with --all). Formatters run directly against the
workspace (staging.ModeTargetDirectory), so formatted files are rewritten
in place.`,
	RunE: runFmt,
}

func init() {
	fmtCmd.Flags().BoolVar(&fmtAll, "all", false, "Format every file in the workspace, not just the given paths")
}

func runFmt(cmd *cobra.Command, args []string) error {
	root, err := os.Getwd()
	if err != nil {
		return err
	}

	summary, err := runPipeline(context.Background(), runOpts{
		root:        root,
		paths:       args,
		allFiles:    fmtAll,
		stagingMode: staging.ModeTargetDirectory,
	}, planner.VerbFmt)
	if err != nil {
		return err
	}

	style := ui.NewStyle()
	for _, f := range summary.FormattedFiles {
		cmd.Printf("%s %s\n", style.OKMark, style.Path.Sprint(f))
	}
	cmd.Printf("%d file(s) formatted\n", len(summary.FormattedFiles))
	return nil
}
