package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	json "github.com/goccy/go-json"

	"testbed/browser"
	"testbed/paths"
)

// SettingsCmd displays the effective settings
type SettingsCmd struct {
	Format string `help:"Output format: table or json" enum:"table,json" default:"table"`
}

// Run executes the settings command
func (s *SettingsCmd) Run(cli *CLI) error {
	settings := cli.loadedSettings()
	out := cli.output()

	effective := []struct {
		key   string
		value any
	}{
		{"database_uri", valueOr(settings.DatabaseURI, "(temporary sqlite file)")},
		{"broker_url", settings.Broker()},
		{"instance_path", valueOr(settings.InstancePath, "(temporary directory)")},
		{"e2e", settings.E2EEnabled()},
		{"browsers", settings.BrowserList()},
		{"headless", settings.IsHeadless()},
		{"browser_scope", valueOr(settings.BrowserScope, string(browser.ScopeTest))},
		{"e2e_output", valueOr(settings.E2EOutput, string(browser.OutputFile))},
		{"screenshot_dir", valueOr(settings.ScreenshotDir, browser.DefaultScreenshotDir)},
		{"manifest_dirs", settings.Manifests()},
		{"services", []string(settings.Services)},
	}

	if s.Format == "json" {
		result := map[string]any{"settings_file": paths.GetSettingsPath()}
		for _, kv := range effective {
			result[kv.key] = kv.value
		}
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	fmt.Fprintf(out, "Settings file: %s\n\n", paths.GetSettingsPath())
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, kv := range effective {
		var v string
		switch val := kv.value.(type) {
		case []string:
			v = strings.Join(val, ", ")
		default:
			v = fmt.Sprint(val)
		}
		fmt.Fprintf(w, "%s\t%s\n", kv.key, v)
	}
	return w.Flush()
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
