package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/leapstack-labs/vizmigrate/internal/cli/config"
	intconfig "github.com/leapstack-labs/vizmigrate/internal/config"
)

// generateConfigDocs generates the configuration reference.
func generateConfigDocs(outDir string) error {
	log.Printf("Generating configuration docs to %s", outDir)

	if err := os.MkdirAll(outDir, 0750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := generateConfigurationDoc(outDir); err != nil {
		return fmt.Errorf("failed to generate configuration.md: %w", err)
	}
	log.Printf("  Generated configuration.md")

	return nil
}

// ConfigField represents a configuration field definition.
type ConfigField struct {
	Name        string
	Type        string
	Default     string
	Description string
	Flag        string
}

// getConfigSchema returns the configuration keys.
// This is based on internal/cli/config/types.go Config.
func getConfigSchema() []ConfigField {
	return []ConfigField{
		{Name: "output_dir", Type: "string", Default: intconfig.DefaultOutputDir, Flag: "--output-dir", Description: "Directory migrated workbooks are written to"},
		{Name: "state_path", Type: "string", Default: intconfig.DefaultStateFile, Flag: "--state", Description: "SQLite database holding run history"},
		{Name: "no_history", Type: "bool", Default: "false", Flag: "--no-history", Description: "Do not record or read run history"},
		{Name: "workers", Type: "int", Default: "0", Flag: "--workers", Description: "Parallel workers, 0 uses every CPU"},
		{Name: "format", Type: "string", Default: intconfig.DefaultFormat, Flag: "--format", Description: "Schema and report encoding: json or yaml"},
		{Name: "output", Type: "string", Default: intconfig.DefaultOutput, Flag: "--output", Description: "Console output: auto, text, markdown or json"},
		{Name: "verbose", Type: "bool", Default: "false", Flag: "--verbose", Description: "Debug logging on stderr"},
		{Name: "save_intermediate", Type: "bool", Default: "false", Flag: "--save-intermediate", Description: "Also write each workbook's source model"},
		{Name: "max_entry_size", Type: "int", Default: fmt.Sprint(intconfig.DefaultMaxEntrySize), Flag: "--max-entry-size", Description: "Largest entry read from a packaged workbook, in bytes"},
		{Name: "flag_below", Type: "float", Default: fmt.Sprint(intconfig.DefaultFlagBelow), Flag: "--flag-below", Description: "Measures translated below this confidence are flagged for review"},
		{Name: "dialect", Type: "string", Default: intconfig.DefaultDialect, Flag: "--dialect", Description: "Translation target dialect"},
		{Name: "rules_file", Type: "string", Flag: "--rules-file", Description: "YAML file with extra translation rules"},
		{Name: "rules", Type: "list", Description: "Inline extra translation rules"},
		{Name: "watch.debounce", Type: "duration", Default: intconfig.DefaultWatchDebounce.String(), Flag: "--debounce", Description: "Quiet period before a watch run"},
	}
}

// envName returns the environment variable overriding a config key.
func envName(key string) string {
	return config.EnvPrefix + strings.ToUpper(strings.ReplaceAll(key, ".", "__"))
}

// generateConfigurationDoc generates the configuration reference page.
func generateConfigurationDoc(outDir string) error {
	w := NewMarkdownWriter()

	w.Frontmatter("Configuration", "vizmigrate configuration reference")
	w.GeneratedMarker()

	w.Header(1, "Configuration")
	w.Paragraph(fmt.Sprintf("vizmigrate reads %s from the working directory or the nearest parent that has one. "+
		"Relative paths in the file resolve against the file's directory; relative paths given as flags resolve "+
		"against the working directory.", InlineCode(intconfig.ConfigFileName)))

	w.Header(2, "Keys")
	headers := []string{"Key", "Type", "Default", "Flag", "Environment", "Description"}
	var rows [][]string
	for _, f := range getConfigSchema() {
		defVal := f.Default
		if defVal == "" {
			defVal = "-"
		} else {
			defVal = InlineCode(defVal)
		}
		flag := "-"
		if f.Flag != "" {
			flag = InlineCode(f.Flag)
		}
		rows = append(rows, []string{InlineCode(f.Name), f.Type, defVal, flag, InlineCode(envName(f.Name)), f.Description})
	}
	w.Table(headers, rows)

	w.Header(2, "Precedence")
	w.BulletList([]string{
		"Built-in defaults",
		InlineCode(intconfig.ConfigFileName),
		InlineCode(config.EnvPrefix+"*") + " environment variables (a double underscore separates nested keys)",
		"Command-line flags",
	})

	w.Header(2, "Extra Rules")
	w.Paragraph("Rules extend or override the dialect's function table. Each entry uses the same fields the " +
		InlineCode("functions") + " command prints.")
	w.CodeBlock("yaml", `rules:
  - name: MAKEPOINT
    kind: unsupported
    category: other
    reason: no_equivalent
  - name: ZN
    kind: approximate
    template: "COALESCE($1, 0)"
    confidence: 0.95
    caveat: zn_blank_vs_null`)

	w.Header(2, "Full Configuration Example")
	w.CodeBlock("yaml", `# vizmigrate.yaml
output_dir: migrated
format: yaml
workers: 4
flag_below: 0.7
save_intermediate: true
rules_file: rules/extra.yaml
watch:
  debounce: 1s`)

	filename := filepath.Join(outDir, "configuration.md")
	return os.WriteFile(filename, w.Bytes(), 0600)
}
