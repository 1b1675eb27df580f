package workbook

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMarkup(t *testing.T) {
	src := `<?xml version='1.0' encoding='utf-8' ?>
<workbook version='18.1' xmlns:user='http://www.tableausoftware.com/xml/user'>
  <datasources>
    <datasource name='a' caption='A &amp; B'>
      <column name='[x]' user:auto-column='numrec'/>
    </datasource>
  </datasources>
  <rows>[a].[x]</rows>
</workbook>`

	root, err := ParseMarkup(strings.NewReader(src))
	require.NoError(t, err)

	assert.Equal(t, "workbook", root.Name)
	assert.Equal(t, "18.1", root.Attr("version"))
	_, hasXmlns := root.LookupAttr("user")
	assert.False(t, hasXmlns, "namespace declarations are dropped")

	ds := root.Path("datasources", "datasource")
	require.NotNil(t, ds)
	assert.Equal(t, "A & B", ds.Attr("caption"))
	assert.Equal(t, 4, ds.Line)

	col := ds.Child("column")
	require.NotNil(t, col)
	assert.Equal(t, "numrec", col.Attr("auto-column"))

	assert.Equal(t, "[a].[x]", root.Child("rows").Text)
	assert.Len(t, root.FindAll("column"), 1)
	assert.Same(t, col, root.Find("column"))
	assert.Nil(t, root.Path("datasources", "missing"))
}

func TestParseMarkupCharset(t *testing.T) {
	// "Café" in windows-1252
	src := "<?xml version='1.0' encoding='windows-1252'?><workbook><t>Caf\xe9</t></workbook>"

	root, err := ParseMarkup(strings.NewReader(src))
	require.NoError(t, err)
	assert.Equal(t, "Café", root.Child("t").Text)
}

func TestParseMarkupErrors(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		wantLine int
	}{
		{"unclosed", "<workbook>\n<datasources>\n</workbook>", 3},
		{"bad attribute", "<workbook>\n<a b=c/>\n</workbook>", 2},
		{"empty", "", 1},
		{"unknown charset", "<?xml version='1.0' encoding='klingon'?><workbook/>", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseMarkup(strings.NewReader(tt.src))
			require.Error(t, err)

			var markupErr *MarkupError
			require.True(t, errors.As(err, &markupErr))
			assert.Equal(t, tt.wantLine, markupErr.Line)
			assert.Contains(t, err.Error(), "markup error at line")
		})
	}
}
