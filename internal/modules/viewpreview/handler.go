package viewpreview

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mx-space/viewblock/internal/middleware"
	"github.com/mx-space/viewblock/internal/pkg/nonce"
	"github.com/mx-space/viewblock/internal/pkg/response"
	"github.com/mx-space/viewblock/internal/viewblock"
	"github.com/mx-space/viewblock/internal/viewblock/preview"
	"go.uber.org/zap"
)

// PreviewPath is the block preview endpoint under the API group.
const PreviewPath = "/views/block-preview"

// PublishedLister lists the published views offered by the editor.
type PublishedLister interface {
	Published(ctx context.Context) (preview.KnownViews, error)
}

type Handler struct {
	svc       *Service
	published PublishedLister
	nonces    *nonce.Issuer
	log       *zap.Logger
}

func NewHandler(svc *Service, published PublishedLister, nonces *nonce.Issuer, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{svc: svc, published: published, nonces: nonces, log: log}
}

// RegisterRoutes mounts the editor block endpoints. limitMW throttles the preview.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW, limitMW gin.HandlerFunc) {
	rg.POST(PreviewPath, limitMW, middleware.VerifyNonce(h.nonces, viewblock.PreviewAction, h.log), h.preview)
	rg.GET("/views/block-config", h.blockConfig)

	b := rg.Group("/views/blocks", authMW, middleware.RequireCapability(middleware.CapabilityEditViews))
	b.POST("/save", h.saveBlock)
	b.POST("/load", h.loadBlock)
}

// RegisterAjax mounts the action-dispatched form endpoint used by existing editors.
func (h *Handler) RegisterAjax(r gin.IRoutes, limitMW gin.HandlerFunc) {
	r.POST("/admin-ajax.php", limitMW, h.ajax)
}

// POST /admin-ajax.php
func (h *Handler) ajax(c *gin.Context) {
	switch action := c.PostForm(viewblock.FormAction); action {
	case viewblock.PreviewAction:
		middleware.VerifyNonce(h.nonces, action, h.log)(c)
		if c.IsAborted() {
			return
		}
		h.preview(c)
	default:
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"success": false, "data": gin.H{"message": "Unknown action."}})
	}
}

// POST /views/block-preview
func (h *Handler) preview(c *gin.Context) {
	if err := c.Request.ParseForm(); err != nil {
		response.Failure(c, preview.GenericErrorMessage)
		return
	}
	attrs, err := viewblock.DecodePreviewForm(c.Request.PostForm)
	if err != nil {
		if errors.Is(err, viewblock.ErrViewNotSet) {
			response.Failure(c, preview.ViewNotSetMessage)
			return
		}
		response.Failure(c, err.Error())
		return
	}

	data, err := h.svc.Preview(c.Request.Context(), attrs, middleware.CurrentCaller(c))
	if err != nil {
		var pe *PreviewError
		if errors.As(err, &pe) {
			response.Failure(c, pe.Message)
			return
		}
		h.log.Error("view block preview failed", zap.String("view", attrs.View), zap.Error(err))
		response.Failure(c, preview.GenericErrorMessage)
		return
	}
	response.Success(c, data)
}

type blockConfig struct {
	Action                 string                     `json:"action"`
	Nonce                  string                     `json:"wpnonce"`
	Endpoint               string                     `json:"endpoint"`
	DebounceMS             int64                      `json:"debounce_ms"`
	PublishedViews         preview.KnownViews         `json:"publishedViews"`
	FormOnlyDisplayOptions []viewblock.FormOnlyOption `json:"formOnlyDisplayOptions"`
	SubmitOnlyOptions      []viewblock.FormOnlyOption `json:"formOnlyDisplayOptionsWithSubmit"`
}

// GET /views/block-config
func (h *Handler) blockConfig(c *gin.Context) {
	token, err := h.nonces.Issue(viewblock.PreviewAction, middleware.CurrentUserID(c))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	known, err := h.published.Published(c.Request.Context())
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, blockConfig{
		Action:                 viewblock.PreviewAction,
		Nonce:                  token,
		Endpoint:               "/api/v2" + PreviewPath,
		DebounceMS:             h.svc.opts.Debounce.Milliseconds(),
		PublishedViews:         known,
		FormOnlyDisplayOptions: viewblock.FormOnlyDisplayOptions(false),
		SubmitOnlyOptions:      viewblock.FormOnlyDisplayOptions(true),
	})
}

// POST /views/blocks/save
func (h *Handler) saveBlock(c *gin.Context) {
	attrs := viewblock.DefaultAttributes()
	if err := c.ShouldBindJSON(&attrs); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if err := attrs.Validate(); err != nil && !errors.Is(err, viewblock.ErrViewNotSet) {
		response.UnprocessableEntity(c, err.Error())
		return
	}
	markup, err := viewblock.SaveBlock(attrs)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, gin.H{
		"markup":    markup,
		"directive": viewblock.BuildDirective(attrs, viewblock.ModePublish),
	})
}

type loadBlockDTO struct {
	Markup string `json:"markup" binding:"required"`
}

// POST /views/blocks/load
func (h *Handler) loadBlock(c *gin.Context) {
	var dto loadBlockDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	block, err := viewblock.LoadBlock(dto.Markup)
	if err != nil {
		if errors.Is(err, viewblock.ErrNoBlock) {
			response.NotFoundMsg(c, err.Error())
			return
		}
		response.UnprocessableEntity(c, err.Error())
		return
	}
	response.OK(c, gin.H{"attributes": block.Attributes, "directive": block.Directive})
}
