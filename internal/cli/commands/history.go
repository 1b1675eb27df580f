package commands

import (
	"errors"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/vizmigrate/internal/cli/output"
	intconfig "github.com/leapstack-labs/vizmigrate/internal/config"
	"github.com/leapstack-labs/vizmigrate/internal/state"
)

// ErrHistoryDisabled is returned by history when no state database is used.
var ErrHistoryDisabled = errors.New("run history is disabled (see --state and --no-history)")

// HistoryOptions holds options for the history command.
type HistoryOptions struct {
	Limit int
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand() *cobra.Command {
	opts := &HistoryOptions{}
	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show past migration runs",
		Long: `Show migration runs recorded in the state database, newest first.

With a run ID, show every file processed in that run with its outcome.`,
		Example: `  # Recent runs
  vizmigrate history

  # Files of one run
  vizmigrate history 3f1c2a9e-...

  # Last five runs as JSON
  vizmigrate history --limit 5 -o json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return runHistoryShow(cmd, args[0])
			}
			return runHistoryList(cmd, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", intconfig.DefaultHistoryLimit, "Number of runs to show")

	return cmd
}

type runInfo struct {
	ID          string     `json:"id"`
	Status      string     `json:"status"`
	Inputs      int        `json:"inputs"`
	Successful  int        `json:"successful"`
	Failed      int        `json:"failed"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
}

type fileInfo struct {
	SourceFile         string `json:"source_file"`
	Fingerprint        string `json:"fingerprint,omitempty"`
	Success            bool   `json:"success"`
	Error              string `json:"error,omitempty"`
	MeasuresTranslated int    `json:"measures_translated"`
	MeasuresFlagged    int    `json:"measures_flagged"`
	VisualsMapped      int    `json:"visuals_mapped"`
	Unsupported        int    `json:"unsupported"`
	DurationMs         int64  `json:"duration_ms"`
}

func newRunInfo(r *state.Run) runInfo {
	return runInfo{
		ID:          r.ID,
		Status:      string(r.Status),
		Inputs:      r.InputCount,
		Successful:  r.Successful,
		Failed:      r.Failed,
		StartedAt:   r.StartedAt,
		CompletedAt: r.CompletedAt,
		Error:       r.Error,
	}
}

func openHistory(cmdCtx *CommandContext) (*state.SQLiteStore, error) {
	store, err := cmdCtx.OpenStore()
	if err != nil {
		return nil, err
	}
	if store == nil {
		return nil, ErrHistoryDisabled
	}
	return store, nil
}

func runHistoryList(cmd *cobra.Command, opts *HistoryOptions) error {
	cmdCtx := NewCommandContext(cmd)
	store, err := openHistory(cmdCtx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	runs, err := store.ListRuns(cmd.Context(), opts.Limit)
	if err != nil {
		return err
	}

	r := cmdCtx.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		out := make([]runInfo, len(runs))
		for i, run := range runs {
			out[i] = newRunInfo(run)
		}
		return r.JSON(out)
	}

	if len(runs) == 0 {
		r.Muted("No runs recorded yet.")
		return nil
	}

	r.Header(1, "migration runs")
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, []string{
			run.ID,
			run.StartedAt.Local().Format(time.DateTime),
			string(run.Status),
			strconv.Itoa(run.InputCount),
			strconv.Itoa(run.Successful),
			strconv.Itoa(run.Failed),
			runDuration(run),
		})
	}
	r.Table([]string{"Run", "Started", "Status", "Files", "OK", "Failed", "Duration"}, rows)
	return nil
}

func runHistoryShow(cmd *cobra.Command, id string) error {
	cmdCtx := NewCommandContext(cmd)
	store, err := openHistory(cmdCtx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	run, err := store.GetRun(cmd.Context(), id)
	if err != nil {
		return err
	}
	files, err := store.ListFiles(cmd.Context(), id)
	if err != nil {
		return err
	}

	r := cmdCtx.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		out := struct {
			runInfo
			Files []fileInfo `json:"files"`
		}{runInfo: newRunInfo(run), Files: make([]fileInfo, len(files))}
		for i, f := range files {
			out.Files[i] = fileInfo{
				SourceFile:         f.SourceFile,
				Fingerprint:        f.Fingerprint,
				Success:            f.Success,
				Error:              f.Error,
				MeasuresTranslated: f.MeasuresTranslated,
				MeasuresFlagged:    f.MeasuresFlagged,
				VisualsMapped:      f.VisualsMapped,
				Unsupported:        f.Unsupported,
				DurationMs:         f.Duration.Milliseconds(),
			}
		}
		return r.JSON(out)
	}

	r.Header(1, "run "+run.ID)
	r.KeyValue("Status", string(run.Status))
	r.KeyValue("Started", run.StartedAt.Local().Format(time.DateTime))
	r.KeyValue("Duration", runDuration(run))
	r.KeyValue("Files", strconv.Itoa(run.InputCount))
	if run.Error != "" {
		r.KeyValue("Error", run.Error)
	}
	r.Println("")

	for _, f := range files {
		if f.Success {
			r.StatusLine(f.SourceFile, "success", strconv.Itoa(f.VisualsMapped)+" visuals, "+
				strconv.Itoa(f.MeasuresTranslated)+" measures, "+strconv.Itoa(f.Unsupported)+" unsupported")
			continue
		}
		r.StatusLine(f.SourceFile, "failed", f.Error)
	}
	return nil
}

func runDuration(run *state.Run) string {
	if run.CompletedAt == nil {
		return "-"
	}
	return run.CompletedAt.Sub(run.StartedAt).Round(time.Millisecond).String()
}
