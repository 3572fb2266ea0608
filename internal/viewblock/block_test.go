package viewblock

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveBlockWithoutView(t *testing.T) {
	markup, err := SaveBlock(DefaultAttributes())
	require.NoError(t, err)
	assert.Empty(t, markup)
}

func TestSaveLoadBlock(t *testing.T) {
	a := viewAttrs("42")
	a.OverrideLimit, a.Limit = true, 25
	a.Align = "wide"
	a.ExtraAttributes = []ExtraAttribute{{Attribute: "wpvauthor", FilterType: "post_author"}}
	a.QueryFilters = map[string]string{"post_author": "a--b"}

	markup, err := SaveBlock(a)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(markup, "<!-- wp:"+BlockName+" {"))
	assert.True(t, strings.HasSuffix(markup, blockClose))
	assert.Contains(t, markup, "\n"+`[wpv-view id="42" limit="25" wpvauthor="a--b"]`+"\n")
	header := markup[:strings.Index(markup, "-->")]
	assert.NotContains(t, header[len("<!--"):], "--", "attribute payload must not contain comment delimiters")

	block, err := LoadBlock("<p>before</p>\n" + markup + "\n<p>after</p>")
	require.NoError(t, err)
	if diff := cmp.Diff(a, block.Attributes); diff != "" {
		t.Fatalf("attributes mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, `[wpv-view id="42" limit="25" wpvauthor="a--b"]`, block.Directive)
}

func TestLoadBlockKeepsDirectiveVerbatim(t *testing.T) {
	markup := "<!-- wp:" + BlockName + ` {"view":"42","limit":-1,"formDisplay":"full"} -->` + "\n" +
		`[wpv-view id="42" limit="3"]` + "\n" + blockClose

	block, err := LoadBlock(markup)
	require.NoError(t, err)
	assert.Equal(t, `[wpv-view id="42" limit="3"]`, block.Directive)
	assert.Equal(t, "42", block.Attributes.View)
	assert.NotNil(t, block.Attributes.QueryFilters)
	assert.NotNil(t, block.Attributes.ExtraAttributes)
}

func TestLoadBlockErrors(t *testing.T) {
	_, err := LoadBlock("<p>no block</p>")
	assert.ErrorIs(t, err, ErrNoBlock)

	_, err = LoadBlock("<!-- wp:" + BlockName + ` {"view":"42"}`)
	assert.Error(t, err)

	_, err = LoadBlock("<!-- wp:" + BlockName + ` {"view":"42"} -->[wpv-view id="42"]`)
	assert.Error(t, err)

	_, err = LoadBlock("<!-- wp:" + BlockName + ` {"view":""} -->[wpv-view]` + blockClose)
	assert.ErrorIs(t, err, ErrViewNotSet)

	_, err = LoadBlock("<!-- wp:" + BlockName + ` {"view":"1","limit":-9} -->[wpv-view id="1"]` + blockClose)
	assert.Error(t, err)
}
