package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/fatih/color"
	json "github.com/goccy/go-json"

	"testbed/discovery"
	"testbed/domain"
)

// EntryPointsCmd lists entry points from plugin manifests
type EntryPointsCmd struct {
	Group  string   `arg:"" optional:"" help:"Group to list (default: all groups)"`
	Dir    []string `help:"Manifest directory (repeatable, default: settings manifest_dirs)" type:"path"`
	Format string   `help:"Output format: table or json" enum:"table,json" default:"table"`
}

// Run executes the entrypoints command
func (e *EntryPointsCmd) Run(cli *CLI) error {
	dirs := e.Dir
	if len(dirs) == 0 {
		dirs = cli.loadedSettings().Manifests()
	}
	backend := discovery.NewManifestBackend(dirs...)

	groups := []string{e.Group}
	if e.Group == "" {
		var err error
		if groups, err = backend.Groups(); err != nil {
			return err
		}
	}

	byGroup := make(map[string][]domain.EntryPoint, len(groups))
	for _, g := range groups {
		eps, err := backend.EntryPoints(g)
		if err != nil {
			return err
		}
		byGroup[g] = eps
	}

	out := cli.output()
	if e.Format == "json" {
		result := make(map[string]map[string]string, len(byGroup))
		for g, eps := range byGroup {
			result[g] = make(map[string]string, len(eps))
			for _, ep := range eps {
				result[g][ep.Name] = ep.Value
			}
		}
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	if len(groups) == 0 {
		fmt.Fprintln(out, "No entry points registered.")
		return nil
	}

	header := color.New(color.Bold)
	name := color.New(color.FgCyan)
	for i, g := range groups {
		if i > 0 {
			fmt.Fprintln(out)
		}
		header.Fprintf(out, "[%s]\n", g)
		if len(byGroup[g]) == 0 {
			fmt.Fprintln(out, "  (none)")
			continue
		}
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		for _, ep := range byGroup[g] {
			fmt.Fprintf(w, "  %s\t%s\n", name.Sprint(ep.Name), ep.Value)
		}
		w.Flush()
	}
	return nil
}
