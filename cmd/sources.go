package cmd

import (
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func sourcesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List the configured marketplace sources and their capabilities",
		RunE:  runSources,
	}
}

func runSources(_ *cobra.Command, _ []string) error {
	d, err := newDeps()
	if err != nil {
		return err
	}
	defer func() { _ = d.log.Sync() }()

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)

	t.AppendHeader(table.Row{"Source", "Search", "Categories", "Detail"})
	for _, caps := range d.registry.Capabilities() {
		t.AppendRow(table.Row{caps.Source, yesNo(caps.Search), yesNo(caps.Categories), yesNo(caps.Detail)})
	}
	t.Render()
	return nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
