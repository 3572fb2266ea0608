package viewpreview

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mx-space/viewblock/internal/models"
	"github.com/mx-space/viewblock/internal/viewblock"
	"github.com/mx-space/viewblock/internal/viewblock/preview"
	"go.uber.org/zap"
)

// CapabilityManage grants the edit link in the preview overlay.
const CapabilityManage = "manage_options"

// RenderFailedMessage is returned when a resolved view fails to render.
const RenderFailedMessage = "Error while rendering the View preview."

// ViewRegistry resolves a view reference. Unknown references yield
// viewblock.ErrViewNotFound.
type ViewRegistry interface {
	Resolve(ctx context.Context, ref string) (*models.ViewModel, error)
}

// Renderer expands a directive into HTML.
type Renderer interface {
	Render(ctx context.Context, directive string) (string, error)
}

// Caller is the identity making the preview request.
type Caller interface {
	HasCapability(name string) bool
}

// Options tune preview rendering.
type Options struct {
	// LimitClamp caps the number of previewed items.
	LimitClamp int
	// ExtraCSS is appended to every preview after the view's own extra CSS.
	ExtraCSS string
	// AdminURL is the base of the view editor edit link.
	AdminURL string
	// Debounce is advertised to editors as their preview debounce window.
	Debounce time.Duration
}

// Service renders view block previews.
type Service struct {
	views    ViewRegistry
	renderer Renderer
	opts     Options
	log      *zap.Logger
}

func NewService(views ViewRegistry, renderer Renderer, opts Options, log *zap.Logger) *Service {
	if opts.LimitClamp <= 0 {
		opts.LimitClamp = viewblock.DefaultPreviewLimit
	}
	if opts.Debounce <= 0 {
		opts.Debounce = preview.DefaultDebounce
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{views: views, renderer: renderer, opts: opts, log: log}
}

// PreviewError carries the message shown to the editor for a failed preview.
type PreviewError struct {
	Message string
	Err     error
}

func (e *PreviewError) Error() string { return e.Message }
func (e *PreviewError) Unwrap() error { return e.Err }

// Preview renders attrs for the editor. Facts about the view are always read from
// the stored definition, never from attrs.
func (s *Service) Preview(ctx context.Context, attrs viewblock.AttributeSet, caller Caller) (viewblock.PreviewData, error) {
	ref := strings.TrimSpace(attrs.View)
	if ref == "" {
		return viewblock.PreviewData{}, &PreviewError{Message: preview.ViewNotSetMessage, Err: viewblock.ErrViewNotSet}
	}

	view, err := s.views.Resolve(ctx, ref)
	if err != nil {
		if errors.Is(err, viewblock.ErrViewNotFound) {
			return viewblock.PreviewData{}, &PreviewError{Message: fmt.Sprintf(preview.DeletedMessageFormat, ref), Err: err}
		}
		return viewblock.PreviewData{}, err
	}

	facts := viewblock.Facts{
		HasCustomSearch: view.FormControls,
		HasSubmit:       view.FormSubmit,
		ExtraAttributes: view.ExtraAttributes,
	}
	if facts.ExtraAttributes == nil {
		facts.ExtraAttributes = []viewblock.ExtraAttribute{}
	}

	build := attrs.Clone()
	build.View = strconv.FormatUint(uint64(view.ID), 10)
	build.HasCustomSearch = facts.HasCustomSearch
	build.HasSubmit = facts.HasSubmit
	build.ExtraAttributes = facts.ExtraAttributes
	directive := viewblock.Build(build, viewblock.Options{
		Mode:         viewblock.ModePreview,
		ViewLimit:    &view.Limit,
		PreviewLimit: s.opts.LimitClamp,
	})

	content, err := s.renderer.Render(ctx, directive)
	if err != nil {
		s.log.Warn("view block preview render failed",
			zap.Uint("view_id", view.ID), zap.String("directive", directive), zap.Error(err))
		return viewblock.PreviewData{}, &PreviewError{Message: RenderFailedMessage, Err: err}
	}
	if css := strings.TrimSpace(view.ExtraCSS + "\n" + s.opts.ExtraCSS); css != "" {
		content += "<style>" + css + "</style>"
	}

	overlay, err := s.overlay(view, caller)
	if err != nil {
		return viewblock.PreviewData{}, err
	}

	return viewblock.PreviewData{
		ViewID:          ref,
		HasCustomSearch: facts.HasCustomSearch,
		HasSubmit:       facts.HasSubmit,
		ExtraAttributes: facts.ExtraAttributes,
		ViewContent:     strings.TrimSpace(content),
		Overlay:         overlay,
	}, nil
}

var overlayTemplate = template.Must(template.New("overlay").Parse(
	`<div class="toolset-block-overlay">` +
		`<div class="toolset-block-overlay-title">{{.Title}}</div>` +
		`<div class="toolset-block-overlay-type">{{.Type}}</div>` +
		`{{if .EditLink}}<a class="toolset-block-overlay-edit" href="{{.EditLink}}" target="_blank">Edit {{.Type}}</a>{{end}}` +
		`</div>`))

type overlayData struct {
	Title    string
	Type     string
	EditLink string
}

func (s *Service) overlay(view *models.ViewModel, caller Caller) (string, error) {
	data := overlayData{Title: view.Title, Type: "View"}
	if caller != nil && caller.HasCapability(CapabilityManage) {
		data.EditLink = s.EditLink(view.ID)
	}
	var buf bytes.Buffer
	if err := overlayTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render overlay: %w", err)
	}
	return buf.String(), nil
}

// EditLink is the view editor URL of view id.
func (s *Service) EditLink(id uint) string {
	q := url.Values{}
	q.Set("page", "views-editor")
	q.Set("view_id", strconv.FormatUint(uint64(id), 10))
	return strings.TrimRight(s.opts.AdminURL, "/") + "/admin.php?" + q.Encode()
}
