package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/url"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/mx-space/viewblock/internal/models"
	"github.com/mx-space/viewblock/internal/viewblock"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	htmlrenderer "github.com/yuin/goldmark/renderer/html"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

const defaultItemTemplate = "### {{.Title}}\n\n{{.Text}}"

// ErrInvalidDirective is returned for text that is not a view directive.
var ErrInvalidDirective = errors.New("invalid view directive")

// ViewLoader resolves a view reference.
type ViewLoader interface {
	Resolve(ctx context.Context, ref string) (*models.ViewModel, error)
}

var markdownEngine = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,
		extension.Typographer,
	),
	goldmark.WithRendererOptions(
		htmlrenderer.WithHardWraps(),
		htmlrenderer.WithXHTML(),
	),
)

// Renderer expands view directives into HTML.
type Renderer struct {
	db    *gorm.DB
	views ViewLoader
	cache *Cache
	group singleflight.Group
	log   *zap.Logger
}

func NewRenderer(db *gorm.DB, views ViewLoader, cache *Cache, log *zap.Logger) *Renderer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Renderer{db: db, views: views, cache: cache, log: log}
}

// Render expands directive. Concurrent renders of the same directive share one
// query, and results are cached per view when a cache is configured.
func (r *Renderer) Render(ctx context.Context, directive string) (string, error) {
	d, err := viewblock.ParseDirective(directive)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidDirective, err)
	}
	if d.Keyword != viewblock.KeywordView && d.Keyword != viewblock.KeywordFormView {
		return "", fmt.Errorf("%w: unknown keyword %q", ErrInvalidDirective, d.Keyword)
	}
	ref, ok := d.Get("id")
	if !ok {
		ref, _ = d.Get("name")
	}
	view, err := r.views.Resolve(ctx, ref)
	if err != nil {
		return "", err
	}

	key := cacheKey(view.ID, d.String())
	if html, ok := r.cache.Get(ctx, key); ok {
		return html, nil
	}
	v, err, _ := r.group.Do(key, func() (interface{}, error) {
		html, err := r.renderView(ctx, view, d)
		if err != nil {
			return "", err
		}
		if err := r.cache.Set(ctx, key, html); err != nil {
			r.log.Warn("view render cache write failed", zap.Uint("view_id", view.ID), zap.Error(err))
		}
		return html, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

type layout int

const (
	layoutFull layout = iota
	layoutForm
	layoutResults
)

func layoutOf(view *models.ViewModel, d viewblock.Directive) layout {
	if display, _ := d.Get("view_display"); display == "layout" {
		return layoutResults
	}
	if d.Keyword == viewblock.KeywordFormView {
		return layoutForm
	}
	if view.FormControls {
		return layoutFull
	}
	return layoutResults
}

type formInput struct {
	Name  string
	Value string
}

type outputData struct {
	ViewID   uint
	Name     string
	ShowForm bool
	ShowLoop bool
	Action   string
	Inputs   []formInput
	Submit   bool
	Items    []template.HTML
}

var outputTemplate = template.Must(template.New("view").Parse(
	`<div class="wpv-view-output" data-view-id="{{.ViewID}}" data-view-name="{{.Name}}">` +
		`{{if .ShowForm}}<form class="wpv-filter-form" method="get" action="{{.Action}}">` +
		`{{range .Inputs}}<label class="wpv-filter">{{.Name}} <input type="text" name="{{.Name}}" value="{{.Value}}"></label>{{end}}` +
		`{{if .Submit}}<button type="submit" class="wpv-submit-button">Submit</button>{{end}}` +
		`</form>{{end}}` +
		`{{if .ShowLoop}}<div class="wpv-loop">{{range .Items}}<div class="wpv-loop-item">{{.}}</div>{{else}}<p class="wpv-no-items">No items found</p>{{end}}</div>{{end}}` +
		`</div>`))

type itemData struct {
	Index  int
	Title  string
	Text   string
	Author string
	Type   string
	Date   time.Time
	Fields map[string]string
}

func (r *Renderer) renderView(ctx context.Context, view *models.ViewModel, d viewblock.Directive) (string, error) {
	lay := layoutOf(view, d)
	out := outputData{
		ViewID:   view.ID,
		Name:     view.Name,
		ShowForm: lay != layoutResults,
		ShowLoop: lay != layoutForm,
		Submit:   view.FormSubmit,
	}

	if out.ShowForm {
		target, _ := d.Get("target_id")
		out.Action = formAction(target)
		for _, extra := range view.ExtraAttributes {
			if extra.Attribute == "" {
				continue
			}
			v, _ := d.Get(extra.Attribute)
			out.Inputs = append(out.Inputs, formInput{Name: extra.Attribute, Value: v})
		}
	}

	if out.ShowLoop {
		items, err := r.queryItems(ctx, view, d)
		if err != nil {
			return "", err
		}
		tmpl, err := itemTemplate(view)
		if err != nil {
			return "", err
		}
		for i, item := range items {
			body, err := renderItem(tmpl, i, item)
			if err != nil {
				return "", fmt.Errorf("render item %d of view %d: %w", item.ID, view.ID, err)
			}
			out.Items = append(out.Items, body)
		}
	}

	var buf bytes.Buffer
	if err := outputTemplate.Execute(&buf, out); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (r *Renderer) queryItems(ctx context.Context, view *models.ViewModel, d viewblock.Directive) ([]models.ViewItemModel, error) {
	q := buildQuery(view, d)
	var items []models.ViewItemModel
	if err := q.apply(r.db.WithContext(ctx).Model(&models.ViewItemModel{})).Find(&items).Error; err != nil {
		return nil, fmt.Errorf("query items of view %d: %w", view.ID, err)
	}
	return items, nil
}

func itemTemplate(view *models.ViewModel) (*texttemplate.Template, error) {
	src := view.ItemTemplate
	if strings.TrimSpace(src) == "" {
		src = defaultItemTemplate
	}
	tmpl, err := texttemplate.New(view.Name).Option("missingkey=zero").Parse(src)
	if err != nil {
		return nil, fmt.Errorf("parse item template of view %d: %w", view.ID, err)
	}
	return tmpl, nil
}

// renderItem fills the item template and converts the resulting markdown. Raw HTML
// in item content is dropped by the converter.
func renderItem(tmpl *texttemplate.Template, index int, item models.ViewItemModel) (template.HTML, error) {
	var md bytes.Buffer
	err := tmpl.Execute(&md, itemData{
		Index:  index,
		Title:  item.Title,
		Text:   item.Text,
		Author: item.Author,
		Type:   item.Type,
		Date:   item.Date,
		Fields: item.Fields,
	})
	if err != nil {
		return "", err
	}
	var html bytes.Buffer
	if err := markdownEngine.Convert(md.Bytes(), &html); err != nil {
		return "", err
	}
	return template.HTML(strings.TrimSpace(html.String())), nil
}

// formAction maps a target_id clause to the form action URL.
func formAction(target string) string {
	switch target {
	case "", "self":
		return ""
	}
	if viewblock.IsNumericReference(target) {
		return "/?page_id=" + target
	}
	return "/" + url.PathEscape(strings.Trim(target, "/")) + "/"
}
