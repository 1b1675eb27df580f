package commands

import (
	"errors"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/vizmigrate/internal/cli/output"
	"github.com/leapstack-labs/vizmigrate/pkg/core"
	"github.com/leapstack-labs/vizmigrate/pkg/format"
	"github.com/leapstack-labs/vizmigrate/pkg/translate"
)

// TranslateOptions holds options for the translate command.
type TranslateOptions struct {
	Interactive bool
	Table       string
	Explain     bool
}

// NewTranslateCommand creates the translate command.
func NewTranslateCommand() *cobra.Command {
	opts := &TranslateOptions{}

	cmd := &cobra.Command{
		Use:   "translate [formula]",
		Short: "Translate a calculated-field formula",
		Long: `Translate one Tableau calculated-field formula to the target dialect and
show the expression, its confidence and any caveats. Formulas that use
constructs with no equivalent (level-of-detail blocks, table calculations,
script functions) report the unsupported category instead.

Field references print as bare [Name] unless --table qualifies them.`,
		Example: `  # Translate a single formula
  vizmigrate translate "SUM([Sales]) / SUM([Profit])"

  # Qualify field references with a table
  vizmigrate translate "COUNTD([Customer ID])" --table Orders

  # Show how each node was classified
  vizmigrate translate "DATEPART('year', [Order Date])" --explain

  # Start an interactive session
  vizmigrate translate -i`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Interactive {
				return runTranslateREPL(cmd, opts)
			}
			if len(args) == 0 {
				return errors.New("a formula is required (or use --interactive)")
			}
			return runTranslate(cmd, args[0], opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.Interactive, "interactive", "i", false, "Start an interactive translation session")
	cmd.Flags().StringVar(&opts.Table, "table", "", "Qualify field references with this table")
	cmd.Flags().BoolVar(&opts.Explain, "explain", false, "Show the classification of each node")

	return cmd
}

// translation is the JSON shape of one translated formula.
type translation struct {
	Formula     string     `json:"formula"`
	Expression  string     `json:"expression,omitempty"`
	Confidence  float64    `json:"confidence"`
	Caveats     []string   `json:"caveats,omitempty"`
	Aggregation string     `json:"aggregation,omitempty"`
	Category    string     `json:"category,omitempty"`
	Reason      string     `json:"reason,omitempty"`
	Error       string     `json:"error,omitempty"`
	Nodes       []nodeInfo `json:"nodes,omitempty"`
}

type nodeInfo struct {
	Node       string  `json:"node"`
	Position   string  `json:"position"`
	Kind       string  `json:"kind"`
	Confidence float64 `json:"confidence"`
	Caveat     string  `json:"caveat,omitempty"`
	Category   string  `json:"category,omitempty"`
	Reason     string  `json:"reason,omitempty"`
}

func newTranslation(res translate.Result, explain bool) translation {
	t := translation{
		Formula:     res.Formula,
		Expression:  res.Expression,
		Confidence:  res.Confidence,
		Caveats:     res.Caveats,
		Aggregation: res.Aggregation,
		Category:    string(res.Category),
		Reason:      res.Reason,
	}
	if res.Err != nil {
		t.Error = res.Err.Error()
	}
	if explain {
		for _, n := range res.Nodes {
			t.Nodes = append(t.Nodes, nodeInfo{
				Node:       n.Node,
				Position:   n.Pos.String(),
				Kind:       string(n.Kind),
				Confidence: n.Confidence,
				Caveat:     n.Caveat,
				Category:   string(n.Category),
				Reason:     n.Reason,
			})
		}
	}
	return t
}

func tableResolver(table string) format.Resolver {
	if table == "" {
		return nil
	}
	return format.ResolverFunc(func(ref *core.FieldRef) (format.Field, bool) {
		return format.Field{Table: table, Name: ref.Name}, true
	})
}

func runTranslate(cmd *cobra.Command, formula string, opts *TranslateOptions) error {
	cmdCtx := NewCommandContext(cmd)
	tr, err := cmdCtx.NewTranslator()
	if err != nil {
		return err
	}

	res := tr.Translate(formula, tableResolver(opts.Table))
	return renderTranslation(cmdCtx.Renderer, res, opts.Explain)
}

func renderTranslation(r *output.Renderer, res translate.Result, explain bool) error {
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(newTranslation(res, explain))
	case output.ModeMarkdown:
		translationMarkdown(r, res)
	default:
		translationText(r, res)
	}
	if explain && len(res.Nodes) > 0 {
		r.Println("")
		renderNodes(r, res.Nodes)
	}
	return nil
}

func translationText(r *output.Renderer, res translate.Result) {
	styles := r.Styles()
	if !res.Supported() {
		r.Println(styles.StatusFailed.String() + " " + styles.Error.Render("unsupported: "+string(res.Category)))
		r.Println(styles.Muted.Render("  reason: " + res.Reason))
		if res.Err != nil {
			r.Println(styles.Muted.Render("  " + res.Err.Error()))
		}
		return
	}

	r.Println(styles.Code.Render(res.Expression))
	conf := styles.Success
	if res.Confidence < 1 {
		conf = styles.Warning
	}
	r.Println(styles.Muted.Render("  confidence: ") + conf.Render(formatConfidence(res.Confidence)))
	if len(res.Caveats) > 0 {
		r.Println(styles.Muted.Render("  caveats: " + strings.Join(res.Caveats, ", ")))
	}
}

func translationMarkdown(r *output.Renderer, res translate.Result) {
	if !res.Supported() {
		r.Println(output.FormatKeyValue("Unsupported", string(res.Category)))
		r.Println(output.FormatKeyValue("Reason", res.Reason))
		if res.Err != nil {
			r.Println(output.FormatKeyValue("Error", res.Err.Error()))
		}
		return
	}
	r.Println(output.FormatCodeBlock("dax", res.Expression))
	r.Println(output.FormatKeyValue("Confidence", formatConfidence(res.Confidence)))
	if len(res.Caveats) > 0 {
		r.Println(output.FormatKeyValue("Caveats", strings.Join(res.Caveats, ", ")))
	}
}

func renderNodes(r *output.Renderer, nodes []translate.Classification) {
	rows := make([][]string, 0, len(nodes))
	for _, n := range nodes {
		note := n.Caveat
		if n.Reason != "" {
			note = string(n.Category) + ": " + n.Reason
		}
		rows = append(rows, []string{n.Node, n.Pos.String(), string(n.Kind), formatConfidence(n.Confidence), note})
	}
	r.Table([]string{"Node", "Position", "Kind", "Confidence", "Note"}, rows)
}

func formatConfidence(c float64) string {
	return strconv.FormatFloat(c, 'f', 2, 64)
}
