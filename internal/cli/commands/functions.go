package commands

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/vizmigrate/internal/cli/output"
	"github.com/leapstack-labs/vizmigrate/pkg/canonical"
	"github.com/leapstack-labs/vizmigrate/pkg/dialect"
)

// FunctionsOptions holds options for the functions command.
type FunctionsOptions struct {
	Kind     string // Filter by kind: direct, approximate, unsupported
	Category string // Filter by unsupported category
	Visuals  bool   // List the visual table instead
}

// NewFunctionsCommand creates the functions command.
func NewFunctionsCommand() *cobra.Command {
	opts := &FunctionsOptions{}
	cmd := &cobra.Command{
		Use:   "functions [name]",
		Short: "List how calculation functions translate",
		Long: `List every calculation function the configured dialect knows, with its
target equivalent, kind and confidence.

  direct       1:1 equivalent, confidence 1.0
  approximate  close idiom with a recorded caveat
  unsupported  no equivalent; formulas using it are reported, never translated

Extra rules from the config file or --rules-file are included. With --visuals
the command lists the visual type mapping instead.

Output adapts to environment:
  - Terminal: Styled output with colors
  - Piped/Scripted: Markdown format
  - JSON: Machine-readable format`,
		Example: `  # List all functions
  vizmigrate functions

  # Show one function
  vizmigrate functions DATEDIFF

  # Only approximate translations
  vizmigrate functions --kind approximate

  # Constructs reported as table calculations
  vizmigrate functions --category table_calculation

  # Visual type mapping as markdown
  vizmigrate functions --visuals -o markdown`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return showFunction(cmd, args[0])
			}
			return listFunctions(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Kind, "kind", "k", "", "Filter by kind: direct, approximate, unsupported")
	cmd.Flags().StringVar(&opts.Category, "category", "", "Filter by unsupported category")
	cmd.Flags().BoolVar(&opts.Visuals, "visuals", false, "List the visual type mapping")

	_ = cmd.RegisterFlagCompletionFunc("kind", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{string(dialect.KindDirect), string(dialect.KindApproximate), string(dialect.KindUnsupported)}, cobra.ShellCompDirectiveNoFileComp
	})
	_ = cmd.RegisterFlagCompletionFunc("category", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		cats := dialect.Categories()
		out := make([]string, len(cats))
		for i, c := range cats {
			out[i] = string(c)
		}
		return out, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func listFunctions(cmd *cobra.Command, opts *FunctionsOptions) error {
	cmdCtx := NewCommandContext(cmd)
	r := cmdCtx.Renderer

	if opts.Visuals {
		return renderVisualTable(r, canonical.VisualTable())
	}

	d, err := cmdCtx.Cfg.BuildDialect()
	if err != nil {
		return err
	}

	rules := d.Rules()
	if opts.Kind != "" {
		kind := dialect.Kind(strings.ToLower(opts.Kind))
		switch kind {
		case dialect.KindDirect, dialect.KindApproximate, dialect.KindUnsupported:
		default:
			return fmt.Errorf("unknown kind %q (want direct, approximate or unsupported)", opts.Kind)
		}
		rules = filterRules(rules, kind)
	}
	if opts.Category != "" {
		cat := dialect.Category(opts.Category)
		if !cat.Valid() {
			return fmt.Errorf("unknown category %q (want one of %v)", opts.Category, dialect.Categories())
		}
		rules = filterCategory(rules, cat)
	}

	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(rules)
	}
	if r.EffectiveMode() == output.ModeMarkdown {
		r.Header(1, fmt.Sprintf("%s functions", d.Name))
	} else {
		r.Header(1, fmt.Sprintf("%s functions (%s)", d.Name, kindCounts(rules)))
	}
	renderRules(r, rules)
	return nil
}

func showFunction(cmd *cobra.Command, name string) error {
	cmdCtx := NewCommandContext(cmd)
	d, err := cmdCtx.Cfg.BuildDialect()
	if err != nil {
		return err
	}
	rule, ok := d.Lookup(name)
	if !ok {
		return fmt.Errorf("function %q not found in dialect %s", name, d.Name)
	}
	if cmdCtx.Renderer.EffectiveMode() == output.ModeJSON {
		return cmdCtx.Renderer.JSON(rule)
	}
	renderRule(cmdCtx.Renderer, rule)
	return nil
}

func filterRules(rules []dialect.Rule, kind dialect.Kind) []dialect.Rule {
	var out []dialect.Rule
	for _, r := range rules {
		if r.Kind == kind {
			out = append(out, r)
		}
	}
	return out
}

func filterCategory(rules []dialect.Rule, cat dialect.Category) []dialect.Rule {
	var out []dialect.Rule
	for _, r := range rules {
		if r.Category == cat {
			out = append(out, r)
		}
	}
	return out
}

func kindCounts(rules []dialect.Rule) string {
	counts := map[dialect.Kind]int{}
	for _, r := range rules {
		counts[r.Kind]++
	}
	return fmt.Sprintf("%d direct, %d approximate, %d unsupported",
		counts[dialect.KindDirect], counts[dialect.KindApproximate], counts[dialect.KindUnsupported])
}

// ruleTarget is the one-line target column of a rule listing.
func ruleTarget(r dialect.Rule) string {
	switch {
	case r.Kind == dialect.KindUnsupported:
		return string(r.Category)
	case r.Template != "":
		return r.Template
	case len(r.Units) > 0:
		units := make([]string, 0, len(r.Units))
		for u := range r.Units {
			units = append(units, u)
		}
		sort.Strings(units)
		return "by unit: " + strings.Join(units, ", ")
	case r.Target != "":
		return r.Target
	}
	return r.Name
}

func ruleNote(r dialect.Rule) string {
	if r.Kind == dialect.KindUnsupported {
		return r.Reason
	}
	if r.Caveat != "" {
		return r.Caveat
	}
	return r.Description
}

func renderRules(r *output.Renderer, rules []dialect.Rule) {
	if len(rules) == 0 {
		r.Muted("No functions match.")
		return
	}
	rows := make([][]string, 0, len(rules))
	for _, rule := range rules {
		conf := formatConfidence(rule.Confidence)
		if rule.Kind == dialect.KindUnsupported {
			conf = "-"
		}
		rows = append(rows, []string{rule.Name, string(rule.Kind), ruleTarget(rule), conf, ruleNote(rule)})
	}
	r.Table([]string{"Function", "Kind", "Target", "Confidence", "Note"}, rows)
}

func renderRule(r *output.Renderer, rule dialect.Rule) {
	r.Header(2, rule.Name)
	r.KeyValue("Kind", string(rule.Kind))
	if rule.Kind == dialect.KindUnsupported {
		r.KeyValue("Category", string(rule.Category))
		r.KeyValue("Reason", rule.Reason)
	} else {
		r.KeyValue("Target", ruleTarget(rule))
		r.KeyValue("Confidence", formatConfidence(rule.Confidence))
	}
	if rule.Caveat != "" {
		r.KeyValue("Caveat", rule.Caveat)
	}
	if rule.Aggregate {
		r.KeyValue("Aggregate", "yes")
	}
	if rule.Iterator != "" {
		r.KeyValue("Iterator", rule.Iterator)
	}
	if len(rule.Units) > 0 {
		units := make([]string, 0, len(rule.Units))
		for u := range rule.Units {
			units = append(units, u)
		}
		sort.Strings(units)
		for _, u := range units {
			r.KeyValue("  "+u, rule.Units[u])
		}
	}
	if rule.Description != "" {
		r.Println("")
		r.Println(rule.Description)
	}
}

func renderVisualTable(r *output.Renderer, table []canonical.VisualMapping) error {
	if r.EffectiveMode() == output.ModeJSON {
		type visual struct {
			Native string `json:"native"`
			Target string `json:"target"`
			Caveat string `json:"caveat,omitempty"`
		}
		out := make([]visual, len(table))
		for i, v := range table {
			out[i] = visual(v)
		}
		return r.JSON(out)
	}

	r.Header(1, "visual types")
	rows := make([][]string, 0, len(table))
	for _, v := range table {
		rows = append(rows, []string{v.Native, v.Target, v.Caveat})
	}
	r.Table([]string{"Mark", "Visual", "Caveat"}, rows)
	return nil
}
