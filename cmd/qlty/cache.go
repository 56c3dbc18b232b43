package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the local issue cache",
}

var cacheCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove the workspace's cached issue results",
	Long: `Remove .qlty/cache, forcing every subsequent check to re-run each
driver rather than reuse a cached FileResult.`,
	RunE: runCacheClean,
}

func init() {
	cacheCmd.AddCommand(cacheCleanCmd)
}

func runCacheClean(cmd *cobra.Command, _ []string) error {
	root, err := os.Getwd()
	if err != nil {
		return err
	}
	dir := filepath.Join(root, ".qlty", "cache")
	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	cmd.Println("removed", dir)
	return nil
}
