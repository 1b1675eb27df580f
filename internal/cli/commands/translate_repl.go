package commands

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/vizmigrate/internal/cli/output"
	"github.com/leapstack-labs/vizmigrate/pkg/dialect"
	"github.com/leapstack-labs/vizmigrate/pkg/translate"
)

const replPrompt = "calc> "

// replSession is the mutable state of one interactive session.
type replSession struct {
	tr       *translate.Translator
	r        *output.Renderer
	table    string
	explain  bool
	finished bool
}

func runTranslateREPL(cmd *cobra.Command, opts *TranslateOptions) error {
	cmdCtx := NewCommandContext(cmd)
	tr, err := cmdCtx.NewTranslator()
	if err != nil {
		return err
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          replPrompt,
		HistoryFile:     replHistoryFile(cmdCtx.Cfg.StatePath),
		AutoComplete:    newFunctionCompleter(tr.Dialect()),
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
		Stdout:          cmd.OutOrStdout(),
		Stderr:          cmd.ErrOrStderr(),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize REPL: %w", err)
	}
	defer func() { _ = rl.Close() }()

	s := &replSession{
		tr:      tr,
		r:       cmdCtx.Renderer,
		table:   opts.Table,
		explain: opts.Explain,
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "vizmigrate translate (dialect: %s)\n", tr.Dialect().Name)
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Type .help for commands, .quit to exit")
	_, _ = fmt.Fprintln(cmd.OutOrStdout())

	for !s.finished {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		s.eval(cmd, line)
	}
	return nil
}

// replHistoryFile keeps the history next to the run history database. An
// in-memory state path gets no history file.
func replHistoryFile(statePath string) string {
	if statePath == "" || statePath == ":memory:" {
		return ""
	}
	return filepath.Join(filepath.Dir(statePath), "translate_history")
}

// eval handles one input line.
func (s *replSession) eval(cmd *cobra.Command, line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	if strings.HasPrefix(line, ".") {
		s.handleDotCommand(cmd, line)
		return
	}

	res := s.tr.Translate(line, tableResolver(s.table))
	if err := renderTranslation(s.r, res, s.explain); err != nil {
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
	}
	_, _ = fmt.Fprintln(cmd.OutOrStdout())
}

func (s *replSession) handleDotCommand(cmd *cobra.Command, line string) {
	parts := strings.Fields(line)
	command := strings.ToLower(parts[0])

	switch command {
	case ".quit", ".exit":
		s.finished = true

	case ".help":
		printTranslateHelp(cmd.OutOrStdout())

	case ".explain":
		s.explain = !s.explain
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "explain %s\n", onOff(s.explain))

	case ".table":
		if len(parts) < 2 {
			s.table = ""
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "field references are unqualified")
			return
		}
		s.table = strings.Join(parts[1:], " ")
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "field references qualified with %q\n", s.table)

	case ".functions":
		rules := s.tr.Dialect().Rules()
		if len(parts) > 1 {
			rules = filterRules(rules, dialect.Kind(strings.ToLower(parts[1])))
		}
		renderRules(s.r, rules)

	case ".describe":
		if len(parts) < 2 {
			_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "Usage: .describe <function>")
			return
		}
		rule, ok := s.tr.Dialect().Lookup(parts[1])
		if !ok {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Unknown function: %s\n", parts[1])
			return
		}
		renderRule(s.r, rule)

	default:
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Unknown command: %s (type .help for commands)\n", command)
	}
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func printTranslateHelp(w io.Writer) {
	help := `
Commands:
  .help                Show this help message
  .functions [kind]    List functions (direct, approximate, unsupported)
  .describe <name>     Show how one function translates
  .table [name]        Qualify field references with a table (no name resets)
  .explain             Toggle per-node classification output
  .quit / .exit        Exit the REPL

Tips:
  - Each line is translated as one formula
  - Use arrow keys to navigate history
  - Tab completion works for function names
`
	_, _ = fmt.Fprintln(w, help)
}

// newFunctionCompleter creates a readline completer for dot-commands and the
// dialect's function names.
func newFunctionCompleter(d *dialect.Dialect) *readline.PrefixCompleter {
	rules := d.Rules()
	names := make([]readline.PrefixCompleterInterface, 0, len(rules))
	for _, r := range rules {
		names = append(names, readline.PcItem(r.Name))
	}

	items := []readline.PrefixCompleterInterface{
		readline.PcItem(".help"),
		readline.PcItem(".functions",
			readline.PcItem(string(dialect.KindDirect)),
			readline.PcItem(string(dialect.KindApproximate)),
			readline.PcItem(string(dialect.KindUnsupported)),
		),
		readline.PcItem(".describe", names...),
		readline.PcItem(".table"),
		readline.PcItem(".explain"),
		readline.PcItem(".quit"),
		readline.PcItem(".exit"),
	}
	items = append(items, names...)
	return readline.NewPrefixCompleter(items...)
}
