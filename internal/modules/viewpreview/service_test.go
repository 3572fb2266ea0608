package viewpreview

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/mx-space/viewblock/internal/models"
	"github.com/mx-space/viewblock/internal/viewblock"
	"github.com/mx-space/viewblock/internal/viewblock/preview"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRegistry map[string]*models.ViewModel

func (f fakeRegistry) Resolve(_ context.Context, ref string) (*models.ViewModel, error) {
	if v, ok := f[ref]; ok {
		return v, nil
	}
	return nil, fmt.Errorf("%w: %s", viewblock.ErrViewNotFound, ref)
}

type fakeRenderer struct {
	calls []string
	html  string
	err   error
}

func (f *fakeRenderer) Render(_ context.Context, directive string) (string, error) {
	f.calls = append(f.calls, directive)
	return f.html, f.err
}

type capabilities []string

func (c capabilities) HasCapability(name string) bool {
	for _, v := range c {
		if v == name {
			return true
		}
	}
	return false
}

func newBooks() *models.ViewModel {
	v := &models.ViewModel{Name: "books", Title: "Books & Co", Limit: -1, Status: models.ViewStatusPublish}
	v.ID = 42
	return v
}

func TestPreviewWithoutViewNeverRenders(t *testing.T) {
	r := &fakeRenderer{}
	svc := NewService(fakeRegistry{}, r, Options{}, nil)

	_, err := svc.Preview(context.Background(), viewblock.DefaultAttributes(), nil)
	var pe *PreviewError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "View ID not set.", pe.Message)
	assert.ErrorIs(t, err, viewblock.ErrViewNotSet)
	assert.Empty(t, r.calls)
}

func TestPreviewUnknownView(t *testing.T) {
	r := &fakeRenderer{}
	svc := NewService(fakeRegistry{}, r, Options{}, nil)

	_, err := svc.Preview(context.Background(), viewblock.ResetForView("999"), nil)
	var pe *PreviewError
	require.ErrorAs(t, err, &pe)
	assert.Contains(t, pe.Message, "999")
	assert.Equal(t, fmt.Sprintf(preview.DeletedMessageFormat, "999"), pe.Message)
	assert.Empty(t, r.calls)
}

func TestPreviewRendersClampedDirective(t *testing.T) {
	view := newBooks()
	view.FormControls = true
	view.ExtraAttributes = []viewblock.ExtraAttribute{{Attribute: "city", FilterType: "city"}}
	r := &fakeRenderer{html: "  <div>ok</div>\n"}
	svc := NewService(fakeRegistry{"books": view}, r, Options{}, nil)

	attrs := viewblock.ResetForView("books")
	attrs.QueryFilters["city"] = "Paris"
	data, err := svc.Preview(context.Background(), attrs, nil)
	require.NoError(t, err)

	require.Len(t, r.calls, 1)
	assert.Equal(t, `[wpv-view id="42" limit="10" city="Paris"]`, r.calls[0])
	assert.Equal(t, "books", data.ViewID)
	assert.Equal(t, "<div>ok</div>", data.ViewContent)
	assert.True(t, data.HasCustomSearch)
	assert.False(t, data.HasSubmit)
	assert.Equal(t, view.ExtraAttributes, data.ExtraAttributes)
}

func TestPreviewRespectsSmallViewLimitAndClamp(t *testing.T) {
	view := newBooks()
	view.Limit = 3
	r := &fakeRenderer{}
	svc := NewService(fakeRegistry{"42": view}, r, Options{LimitClamp: 25}, nil)

	_, err := svc.Preview(context.Background(), viewblock.ResetForView("42"), nil)
	require.NoError(t, err)

	attrs := viewblock.ResetForView("42")
	attrs.OverrideLimit = true
	attrs.Limit = 100
	_, err = svc.Preview(context.Background(), attrs, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{`[wpv-view id="42"]`, `[wpv-view id="42" limit="25"]`}, r.calls)
}

func TestPreviewFactsComeFromView(t *testing.T) {
	view := newBooks()
	r := &fakeRenderer{}
	svc := NewService(fakeRegistry{"42": view}, r, Options{}, nil)

	attrs := viewblock.ResetForView("42")
	attrs.HasCustomSearch = true
	attrs.FormDisplay = viewblock.FormDisplayForm
	data, err := svc.Preview(context.Background(), attrs, nil)
	require.NoError(t, err)

	assert.False(t, data.HasCustomSearch)
	assert.NotNil(t, data.ExtraAttributes)
	assert.Equal(t, `[wpv-view id="42" limit="10"]`, r.calls[0])
}

func TestPreviewAppendsExtraCSS(t *testing.T) {
	view := newBooks()
	view.ExtraCSS = ".a{color:red}"
	svc := NewService(fakeRegistry{"42": view}, &fakeRenderer{html: "<p>x</p>"}, Options{ExtraCSS: ".b{margin:0}"}, nil)

	data, err := svc.Preview(context.Background(), viewblock.ResetForView("42"), nil)
	require.NoError(t, err)
	assert.Equal(t, "<p>x</p><style>.a{color:red}\n.b{margin:0}</style>", data.ViewContent)

	view.ExtraCSS = ""
	svc = NewService(fakeRegistry{"42": view}, &fakeRenderer{html: "<p>x</p>"}, Options{}, nil)
	data, err = svc.Preview(context.Background(), viewblock.ResetForView("42"), nil)
	require.NoError(t, err)
	assert.Equal(t, "<p>x</p>", data.ViewContent)
}

func TestPreviewRenderFailure(t *testing.T) {
	svc := NewService(fakeRegistry{"42": newBooks()}, &fakeRenderer{err: errors.New("db gone")}, Options{}, nil)

	_, err := svc.Preview(context.Background(), viewblock.ResetForView("42"), nil)
	var pe *PreviewError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, RenderFailedMessage, pe.Message)
}

func TestOverlayEditLinkNeedsCapability(t *testing.T) {
	svc := NewService(fakeRegistry{"42": newBooks()}, &fakeRenderer{}, Options{AdminURL: "https://site.example/wp-admin/"}, nil)

	data, err := svc.Preview(context.Background(), viewblock.ResetForView("42"), capabilities{"edit_posts"})
	require.NoError(t, err)
	assert.Contains(t, data.Overlay, "Books &amp; Co")
	assert.Contains(t, data.Overlay, `<div class="toolset-block-overlay-type">View</div>`)
	assert.NotContains(t, data.Overlay, "admin.php")

	data, err = svc.Preview(context.Background(), viewblock.ResetForView("42"), capabilities{CapabilityManage})
	require.NoError(t, err)
	assert.Contains(t, data.Overlay, `href="https://site.example/wp-admin/admin.php?page=views-editor&amp;view_id=42"`)
	assert.Contains(t, data.Overlay, "Edit View")
}
