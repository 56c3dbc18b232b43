// Package printer renders the output of `qlty plugins list`: a tabwriter
// table by default, or indented JSON with --json.
package printer

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
)

// PluginRow is one enabled plugin's display row. It carries only plain
// fields so this package stays independent of internal/plugin and
// internal/tool; the caller (cmd/qlty) builds rows from those types.
type PluginRow struct {
	Name    string `json:"name"`
	Mode    string `json:"mode"`
	Version string `json:"version"`
	Prefix  string `json:"prefix,omitempty"`
	Drivers string `json:"drivers"`
	Status  string `json:"status"`
}

// Column header constants.
const (
	colName    = "NAME"
	colMode    = "MODE"
	colVersion = "VERSION"
	colPrefix  = "PREFIX"
	colDrivers = "DRIVERS"
	colStatus  = "STATUS"
)

// Run prints rows filtered to name (all rows if name is empty), as a table
// or as JSON.
func Run(w io.Writer, rows []PluginRow, name string, jsonOut bool) error {
	filtered := filterByName(rows, name)
	if jsonOut {
		return printJSON(w, filtered)
	}
	printTable(w, filtered)
	return nil
}

func printTable(w io.Writer, rows []PluginRow) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "No plugins enabled.")
		return
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].Name < rows[j].Name })

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join([]string{colName, colMode, colVersion, colPrefix, colDrivers, colStatus}, "\t"))
	for _, r := range rows {
		fmt.Fprintln(tw, strings.Join([]string{r.Name, r.Mode, r.Version, r.Prefix, r.Drivers, r.Status}, "\t"))
	}
	tw.Flush()
}

func filterByName(rows []PluginRow, name string) []PluginRow {
	if name == "" {
		return rows
	}
	for _, r := range rows {
		if r.Name == name {
			return []PluginRow{r}
		}
	}
	return nil
}

func printJSON(w io.Writer, rows []PluginRow) error {
	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	fmt.Fprintln(w, string(data))
	return nil
}
