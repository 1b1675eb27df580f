package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/vizmigrate/internal/cli/testutil"
	"github.com/leapstack-labs/vizmigrate/internal/pipeline"
	"github.com/leapstack-labs/vizmigrate/pkg/dialect"
	"github.com/leapstack-labs/vizmigrate/pkg/dialects/dax"
	"github.com/leapstack-labs/vizmigrate/pkg/translate"
)

func TestRenderTranslation(t *testing.T) {
	tr := translate.New(dax.DAX)

	t.Run("markdown translated", func(t *testing.T) {
		r := testutil.NewTestRendererMarkdown()
		res := tr.Translate("SUM([Sales])", tableResolver("Orders"))
		require.NoError(t, renderTranslation(r.Renderer, res, false))

		out := r.Output()
		assert.Contains(t, out, "```dax\nSUM('Orders'[Sales])\n```")
		assert.Contains(t, out, "- **Confidence**: 1.00")
		testutil.AssertValidMarkdown(t, out)
		testutil.AssertNoANSI(t, out)
	})

	t.Run("markdown unsupported", func(t *testing.T) {
		r := testutil.NewTestRendererMarkdown()
		res := tr.Translate("{FIXED [Region] : SUM([Sales])}", nil)
		require.NoError(t, renderTranslation(r.Renderer, res, false))

		out := r.Output()
		assert.Contains(t, out, "- **Unsupported**: lod_expression")
		assert.NotContains(t, out, "```")
	})

	t.Run("json with nodes", func(t *testing.T) {
		r := testutil.NewTestRendererJSON()
		res := tr.Translate("ATTR([Region])", nil)
		require.NoError(t, renderTranslation(r.Renderer, res, true))

		var got translation
		require.NoError(t, json.Unmarshal(r.Out.Bytes(), &got))
		assert.Equal(t, "SELECTEDVALUE([Region])", got.Expression)
		assert.Equal(t, 0.8, got.Confidence)
		assert.Equal(t, []string{"attr_returns_blank_not_star"}, got.Caveats)
		require.NotEmpty(t, got.Nodes)
		assert.Equal(t, "ATTR", got.Nodes[0].Node)
		assert.Equal(t, "approximate", got.Nodes[0].Kind)
	})

	t.Run("json syntax error", func(t *testing.T) {
		r := testutil.NewTestRendererJSON()
		res := tr.Translate("SUM([Sales]", nil)
		require.NoError(t, renderTranslation(r.Renderer, res, false))

		var got translation
		require.NoError(t, json.Unmarshal(r.Out.Bytes(), &got))
		assert.Empty(t, got.Expression)
		assert.Equal(t, "other", got.Category)
		assert.Equal(t, dialect.ReasonSyntaxError, got.Reason)
		assert.NotEmpty(t, got.Error)
	})

	t.Run("text", func(t *testing.T) {
		r := testutil.NewTestRendererText()
		res := tr.Translate("SUM([Sales])", nil)
		require.NoError(t, renderTranslation(r.Renderer, res, true))

		out := r.Output()
		assert.Contains(t, out, "SUM([Sales])")
		assert.Contains(t, out, "confidence")
		assert.Contains(t, out, "┌")
	})
}

func TestFunctionListing(t *testing.T) {
	rules := dax.DAX.Rules()

	direct := filterRules(rules, dialect.KindDirect)
	require.NotEmpty(t, direct)
	for _, r := range direct {
		assert.Equal(t, dialect.KindDirect, r.Kind)
	}

	lod := filterCategory(rules, dialect.CategoryLod)
	require.NotEmpty(t, lod)
	for _, r := range lod {
		assert.Equal(t, dialect.KindUnsupported, r.Kind)
		assert.Equal(t, "lod_expression", ruleTarget(r))
	}

	datediff, ok := dax.DAX.Lookup("DATEDIFF")
	require.True(t, ok)
	assert.Contains(t, ruleTarget(datediff), "by unit: ")
	assert.Contains(t, ruleTarget(datediff), "month")

	r := testutil.NewTestRendererMarkdown()
	renderRules(r.Renderer, direct)
	assert.Contains(t, strings.ToLower(r.Output()), "| function | kind |")
	assert.Contains(t, r.Output(), "| SUM ")

	r.Reset()
	renderRules(r.Renderer, nil)
	assert.Equal(t, "No functions match.\n", r.Output())
}

func TestRenderMigration(t *testing.T) {
	ws := testutil.SetupWorkspace(t)
	p := pipeline.New(pipeline.Config{OutputDir: ws.OutputDir, Workers: 2})
	res, err := p.Run(context.Background(), []string{ws.Flat, ws.Broken})
	require.NoError(t, err)

	t.Run("markdown", func(t *testing.T) {
		r := testutil.NewTestRendererMarkdown()
		require.NoError(t, renderMigration(r.Renderer, res))

		out := r.Output()
		assert.Contains(t, out, "# Migration Summary")
		assert.Contains(t, out, "- **Successful**: 1")
		assert.Contains(t, out, "- **Failed**: 1")
		assert.Contains(t, out, "superstore.twb")
		assert.Contains(t, out, "failed: ")
		testutil.AssertValidMarkdown(t, out)
	})

	t.Run("json", func(t *testing.T) {
		r := testutil.NewTestRendererJSON()
		require.NoError(t, renderMigration(r.Renderer, res))

		var got map[string]any
		require.NoError(t, json.Unmarshal(r.Out.Bytes(), &got))
		assert.EqualValues(t, 2, got["total_files"])
		assert.EqualValues(t, 1, got["failed"])
	})

	t.Run("text", func(t *testing.T) {
		r := testutil.NewTestRendererText()
		require.NoError(t, renderMigration(r.Renderer, res))

		assert.Contains(t, r.Output(), "superstore.twb")
		assert.Contains(t, r.ErrorOutput(), "1 of 2 workbooks migrated")
	})
}

func TestTranslateSession(t *testing.T) {
	r := testutil.NewTestRendererMarkdown()
	var stdout, stderr bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)

	s := &replSession{tr: translate.New(dax.DAX), r: r.Renderer}

	s.eval(cmd, "   ")
	assert.Empty(t, r.Output())

	s.eval(cmd, ".table Orders")
	assert.Equal(t, "Orders", s.table)
	s.eval(cmd, "SUM([Sales])")
	assert.Contains(t, r.Output(), "SUM('Orders'[Sales])")

	s.eval(cmd, ".table")
	assert.Empty(t, s.table)

	s.eval(cmd, ".explain")
	assert.True(t, s.explain)

	r.Reset()
	s.eval(cmd, ".describe countd")
	assert.Contains(t, r.Output(), "DISTINCTCOUNT")

	s.eval(cmd, ".nope")
	assert.Contains(t, stderr.String(), "Unknown command: .nope")

	assert.False(t, s.finished)
	s.eval(cmd, ".quit")
	assert.True(t, s.finished)
}

func TestReplHistoryFile(t *testing.T) {
	assert.Empty(t, replHistoryFile(":memory:"))
	assert.Empty(t, replHistoryFile(""))
	assert.Equal(t, "/tmp/x/translate_history", replHistoryFile("/tmp/x/state.db"))
}
