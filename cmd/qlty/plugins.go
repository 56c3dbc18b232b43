package main

import (
	"context"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/qlty-sh/qlty-core/internal/app"
	"github.com/qlty-sh/qlty-core/internal/plugin"
	"github.com/qlty-sh/qlty-core/internal/printer"
	"github.com/qlty-sh/qlty-core/internal/tool"
)

var pluginsJSON bool

var pluginsCmd = &cobra.Command{
	Use:   "plugins",
	Short: "Inspect configured plugins",
}

var pluginsListCmd = &cobra.Command{
	Use:   "list [name]",
	Short: "List enabled plugins and their resolved versions",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runPluginsList,
}

func init() {
	pluginsListCmd.Flags().BoolVar(&pluginsJSON, "json", false, "Print as JSON instead of a table")
	pluginsCmd.AddCommand(pluginsListCmd)
}

func runPluginsList(cmd *cobra.Command, args []string) error {
	root, err := os.Getwd()
	if err != nil {
		return err
	}

	proj, err := app.Load(context.Background(), root)
	if err != nil {
		return err
	}

	enabled, err := proj.ResolveEnabled()
	if err != nil {
		return err
	}
	resolve := proj.ToolResolver(enabled)

	rows := make([]printer.PluginRow, 0, len(enabled))
	for _, e := range app.EnabledSlice(enabled) {
		rows = append(rows, pluginRow(e, proj.Definitions[e.Name], resolve))
	}

	name := ""
	if len(args) > 0 {
		name = args[0]
	}
	return printer.Run(cmd.OutOrStdout(), rows, name, pluginsJSON)
}

func pluginRow(e plugin.Enabled, def plugin.Definition, resolve func(string) (*tool.Tool, bool)) printer.PluginRow {
	drivers := e.Drivers
	if len(drivers) == 0 {
		for _, d := range def.Drivers {
			drivers = append(drivers, d.Name)
		}
	}

	status := "unresolved"
	if tl, ok := resolve(e.Name); ok {
		if v, ok := tl.Version(); ok {
			status = "resolved(" + v + ")"
		} else {
			status = "resolved"
		}
	}

	return printer.PluginRow{
		Name:    e.Name,
		Mode:    string(e.Mode),
		Version: e.Version,
		Prefix:  e.Prefix,
		Drivers: strings.Join(drivers, ","),
		Status:  status,
	}
}
