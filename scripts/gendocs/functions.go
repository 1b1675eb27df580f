package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/leapstack-labs/vizmigrate/pkg/canonical"
	"github.com/leapstack-labs/vizmigrate/pkg/dialect"
	_ "github.com/leapstack-labs/vizmigrate/pkg/dialects/dax" // register the dax dialect
)

// README markers around the generated function summary.
const (
	readmeStart = "<!-- functions:start -->"
	readmeEnd   = "<!-- functions:end -->"
)

// kindDescriptions explains each rule kind.
var kindDescriptions = map[dialect.Kind]string{
	dialect.KindDirect:      "One-to-one equivalents. Confidence is always 1.0.",
	dialect.KindApproximate: "Close idioms whose results can differ in edge cases. Each carries a caveat.",
	dialect.KindUnsupported: "No equivalent exists. Formulas using these are reported and never partially translated.",
}

// generateFunctionDocs writes one reference page per registered dialect.
func generateFunctionDocs(outDir string) error {
	log.Printf("Generating function docs to %s", outDir)

	if err := os.MkdirAll(outDir, 0750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	for _, name := range dialect.List() {
		d, _ := dialect.Get(name)
		filename := filepath.Join(outDir, "functions-"+name+".md")
		if err := os.WriteFile(filename, functionsPage(d), 0600); err != nil {
			return err
		}
		log.Printf("  Generated %s", filepath.Base(filename))
	}

	if err := os.WriteFile(filepath.Join(outDir, "visuals.md"), visualsPage(), 0600); err != nil {
		return err
	}
	log.Printf("  Generated visuals.md")
	return nil
}

func functionsPage(d *dialect.Dialect) []byte {
	w := NewMarkdownWriter()
	w.Frontmatter(strings.ToUpper(d.Name)+" Functions", "How calculation functions translate to "+d.Name)
	w.GeneratedMarker()

	w.Header(1, strings.ToUpper(d.Name)+" Functions")
	byKind := groupByKind(d.Rules())
	w.Paragraph(fmt.Sprintf("%d functions: %d direct, %d approximate, %d unsupported.",
		len(d.Rules()), len(byKind[dialect.KindDirect]), len(byKind[dialect.KindApproximate]), len(byKind[dialect.KindUnsupported])))

	for _, kind := range []dialect.Kind{dialect.KindDirect, dialect.KindApproximate, dialect.KindUnsupported} {
		rules := byKind[kind]
		if len(rules) == 0 {
			continue
		}
		w.Header(2, capitalizeFirst(string(kind)))
		w.Paragraph(kindDescriptions[kind])
		writeRuleTable(w, kind, rules)
	}

	if families := d.Prefixes(); len(families) > 0 {
		w.Header(2, "Families")
		w.Paragraph("Any function starting with one of these prefixes that is not listed above is unsupported.")
		writeRuleTable(w, dialect.KindUnsupported, families)
	}
	return w.Bytes()
}

func writeRuleTable(w *MarkdownWriter, kind dialect.Kind, rules []dialect.Rule) {
	switch kind {
	case dialect.KindUnsupported:
		var rows [][]string
		for _, r := range rules {
			rows = append(rows, []string{InlineCode(r.Name), InlineCode(string(r.Category)), r.Reason})
		}
		w.Table([]string{"Function", "Category", "Reason"}, rows)
	case dialect.KindApproximate:
		var rows [][]string
		for _, r := range rules {
			rows = append(rows, []string{InlineCode(r.Name), targetCell(r), fmt.Sprintf("%.2f", r.Confidence), r.Caveat})
		}
		w.Table([]string{"Function", "Target", "Confidence", "Caveat"}, rows)
	default:
		var rows [][]string
		for _, r := range rules {
			rows = append(rows, []string{InlineCode(r.Name), targetCell(r), cleanDescription(r.Description)})
		}
		w.Table([]string{"Function", "Target", "Notes"}, rows)
	}
}

func targetCell(r dialect.Rule) string {
	switch {
	case r.Template != "":
		return InlineCode(r.Template)
	case len(r.Units) > 0:
		units := make([]string, 0, len(r.Units))
		for u := range r.Units {
			units = append(units, u)
		}
		sort.Strings(units)
		return "by unit: " + strings.Join(units, ", ")
	case r.Target != "":
		return InlineCode(r.Target)
	}
	return InlineCode(r.Name)
}

func groupByKind(rules []dialect.Rule) map[dialect.Kind][]dialect.Rule {
	out := make(map[dialect.Kind][]dialect.Rule)
	for _, r := range rules {
		out[r.Kind] = append(out[r.Kind], r)
	}
	return out
}

func capitalizeFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func visualsPage() []byte {
	w := NewMarkdownWriter()
	w.Frontmatter("Visual Types", "How worksheet marks map to visual types")
	w.GeneratedMarker()

	w.Header(1, "Visual Types")
	w.Paragraph("Marks not listed here map to " + InlineCode("table") + " with a caveat.")
	var rows [][]string
	for _, v := range canonical.VisualTable() {
		rows = append(rows, []string{InlineCode(v.Native), InlineCode(v.Target), v.Caveat})
	}
	w.Table([]string{"Mark", "Visual", "Caveat"}, rows)
	return w.Bytes()
}

// readmeSummary is the short function summary embedded in the README.
func readmeSummary(d *dialect.Dialect) string {
	w := NewMarkdownWriter()
	byKind := groupByKind(d.Rules())
	for _, kind := range []dialect.Kind{dialect.KindDirect, dialect.KindApproximate, dialect.KindUnsupported} {
		names := make([]string, 0, len(byKind[kind]))
		for _, r := range byKind[kind] {
			names = append(names, InlineCode(r.Name))
		}
		w.Line(fmt.Sprintf("- %s (%d): %s", Bold(capitalizeFirst(string(kind))), len(names), strings.Join(names, ", ")))
	}
	return w.String()
}

// updateReadme replaces the text between the function markers.
func updateReadme(path string, d *dialect.Dialect) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	updated, err := replaceSection(string(data), readmeSummary(d))
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return os.WriteFile(path, []byte(updated), 0600)
}

var errNoMarkers = errors.New("function markers not found")

func replaceSection(content, section string) (string, error) {
	start := strings.Index(content, readmeStart)
	end := strings.Index(content, readmeEnd)
	if start == -1 || end == -1 || end < start {
		return "", errNoMarkers
	}
	return content[:start+len(readmeStart)] + "\n" + section + content[end:], nil
}
