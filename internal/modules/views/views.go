package views

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mx-space/viewblock/internal/middleware"
	"github.com/mx-space/viewblock/internal/models"
	"github.com/mx-space/viewblock/internal/pkg/pagination"
	"github.com/mx-space/viewblock/internal/pkg/response"
	"github.com/mx-space/viewblock/internal/viewblock"
	"github.com/mx-space/viewblock/internal/viewblock/preview"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type CreateViewDTO struct {
	Name             string                     `json:"post_name"  binding:"required"`
	Title            string                     `json:"post_title" binding:"required"`
	Kind             string                     `json:"kind"`
	Status           string                     `json:"status"`
	Limit            *int                       `json:"limit"`
	Offset           int                        `json:"offset"`
	Orderby          string                     `json:"orderby"`
	Order            string                     `json:"order"`
	SecondaryOrderby string                     `json:"secondaryOrderby"`
	SecondaryOrder   string                     `json:"secondaryOrder"`
	FormControls     bool                       `json:"hasCustomSearch"`
	FormSubmit       bool                       `json:"hasSubmit"`
	ExtraAttributes  []viewblock.ExtraAttribute `json:"hasExtraAttributes"`
	ExtraCSS         string                     `json:"extra_css"`
	ItemTemplate     string                     `json:"item_template"`
}

type UpdateViewDTO struct {
	Name             *string                     `json:"post_name"`
	Title            *string                     `json:"post_title"`
	Kind             *string                     `json:"kind"`
	Status           *string                     `json:"status"`
	Limit            *int                        `json:"limit"`
	Offset           *int                        `json:"offset"`
	Orderby          *string                     `json:"orderby"`
	Order            *string                     `json:"order"`
	SecondaryOrderby *string                     `json:"secondaryOrderby"`
	SecondaryOrder   *string                     `json:"secondaryOrder"`
	FormControls     *bool                       `json:"hasCustomSearch"`
	FormSubmit       *bool                       `json:"hasSubmit"`
	ExtraAttributes  *[]viewblock.ExtraAttribute `json:"hasExtraAttributes"`
	ExtraCSS         *string                     `json:"extra_css"`
	ItemTemplate     *string                     `json:"item_template"`
}

type CreateItemDTO struct {
	Title  string            `json:"title" binding:"required"`
	Text   string            `json:"text"`
	Author string            `json:"author"`
	Type   string            `json:"type"`
	Date   *time.Time        `json:"date"`
	Order  int               `json:"order"`
	Fields map[string]string `json:"fields"`
}

var (
	errInvalidKind   = errors.New("kind must be posts, taxonomy or users")
	errInvalidStatus = errors.New("status must be publish, draft or trash")
	errInvalidLimit  = errors.New("limit must be -1 or greater")
	errInvalidOffset = errors.New("offset must be 0 or greater")
	errInvalidOrder  = errors.New("order must be asc or desc")
)

// Invalidator drops cached renders of a view.
type Invalidator interface {
	InvalidateView(ctx context.Context, id uint) error
}

type Service struct {
	db    *gorm.DB
	cache Invalidator
	log   *zap.Logger
}

func NewService(db *gorm.DB, cache Invalidator, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{db: db, cache: cache, log: log}
}

func (s *Service) List(ctx context.Context, q pagination.Query, kind, status string) ([]models.ViewModel, response.Pagination, error) {
	tx := s.db.WithContext(ctx).Model(&models.ViewModel{}).Order("id ASC")
	if kind != "" {
		tx = tx.Where("kind = ?", kind)
	}
	if status != "" {
		tx = tx.Where("status = ?", status)
	}
	var items []models.ViewModel
	pag, err := pagination.Paginate(tx, q, &items)
	return items, pag, err
}

// Resolve finds a non-trashed view by numeric id or by name. It returns
// viewblock.ErrViewNotFound when nothing matches.
func (s *Service) Resolve(ctx context.Context, ref string) (*models.ViewModel, error) {
	ref = viewblock.NormalizeReference(ref)
	if ref == "" {
		return nil, viewblock.ErrViewNotSet
	}
	tx := s.db.WithContext(ctx).Where("status <> ?", models.ViewStatusTrash)
	if viewblock.IsNumericReference(ref) {
		tx = tx.Where("id = ?", ref)
	} else {
		tx = tx.Where("name = ?", ref)
	}
	var v models.ViewModel
	if err := tx.First(&v).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", viewblock.ErrViewNotFound, ref)
		}
		return nil, err
	}
	return &v, nil
}

// Published returns the published views grouped the way the editor lists them.
func (s *Service) Published(ctx context.Context) (preview.KnownViews, error) {
	known := preview.KnownViews{
		Posts:    []preview.KnownView{},
		Taxonomy: []preview.KnownView{},
		Users:    []preview.KnownView{},
	}
	var rows []models.ViewModel
	err := s.db.WithContext(ctx).
		Select("id", "name", "title", "kind").
		Where("status = ?", models.ViewStatusPublish).
		Order("title ASC").
		Find(&rows).Error
	if err != nil {
		return known, err
	}
	for _, v := range rows {
		kv := preview.KnownView{ID: strconv.FormatUint(uint64(v.ID), 10), Name: v.Name, Title: v.Title}
		switch v.Kind {
		case models.ViewKindTaxonomy:
			known.Taxonomy = append(known.Taxonomy, kv)
		case models.ViewKindUsers:
			known.Users = append(known.Users, kv)
		default:
			known.Posts = append(known.Posts, kv)
		}
	}
	return known, nil
}

func (s *Service) Create(ctx context.Context, dto *CreateViewDTO) (*models.ViewModel, error) {
	v := models.ViewModel{
		Name:             strings.TrimSpace(dto.Name),
		Title:            strings.TrimSpace(dto.Title),
		Kind:             orDefault(dto.Kind, models.ViewKindPosts),
		Status:           orDefault(dto.Status, models.ViewStatusPublish),
		Limit:            -1,
		Offset:           dto.Offset,
		Orderby:          orDefault(dto.Orderby, "post_date"),
		Order:            orDefault(strings.ToLower(dto.Order), viewblock.OrderDesc),
		SecondaryOrderby: dto.SecondaryOrderby,
		SecondaryOrder:   strings.ToLower(dto.SecondaryOrder),
		FormControls:     dto.FormControls,
		FormSubmit:       dto.FormSubmit,
		ExtraAttributes:  dto.ExtraAttributes,
		ExtraCSS:         dto.ExtraCSS,
		ItemTemplate:     dto.ItemTemplate,
	}
	if dto.Limit != nil {
		v.Limit = *dto.Limit
	}
	if v.ExtraAttributes == nil {
		v.ExtraAttributes = []viewblock.ExtraAttribute{}
	}
	if err := validateView(&v); err != nil {
		return nil, err
	}
	return &v, s.db.WithContext(ctx).Create(&v).Error
}

func (s *Service) Update(ctx context.Context, id uint, dto *UpdateViewDTO) (*models.ViewModel, error) {
	var v models.ViewModel
	if err := s.db.WithContext(ctx).First(&v, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if dto.Name != nil {
		v.Name = strings.TrimSpace(*dto.Name)
	}
	if dto.Title != nil {
		v.Title = strings.TrimSpace(*dto.Title)
	}
	if dto.Kind != nil {
		v.Kind = *dto.Kind
	}
	if dto.Status != nil {
		v.Status = *dto.Status
	}
	if dto.Limit != nil {
		v.Limit = *dto.Limit
	}
	if dto.Offset != nil {
		v.Offset = *dto.Offset
	}
	if dto.Orderby != nil {
		v.Orderby = *dto.Orderby
	}
	if dto.Order != nil {
		v.Order = strings.ToLower(*dto.Order)
	}
	if dto.SecondaryOrderby != nil {
		v.SecondaryOrderby = *dto.SecondaryOrderby
	}
	if dto.SecondaryOrder != nil {
		v.SecondaryOrder = strings.ToLower(*dto.SecondaryOrder)
	}
	if dto.FormControls != nil {
		v.FormControls = *dto.FormControls
	}
	if dto.FormSubmit != nil {
		v.FormSubmit = *dto.FormSubmit
	}
	if dto.ExtraAttributes != nil {
		v.ExtraAttributes = *dto.ExtraAttributes
	}
	if dto.ExtraCSS != nil {
		v.ExtraCSS = *dto.ExtraCSS
	}
	if dto.ItemTemplate != nil {
		v.ItemTemplate = *dto.ItemTemplate
	}
	if err := validateView(&v); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Save(&v).Error; err != nil {
		return nil, err
	}
	s.invalidate(ctx, v.ID)
	return &v, nil
}

func (s *Service) Delete(ctx context.Context, id uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("view_id = ?", id).Delete(&models.ViewItemModel{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.ViewModel{}, id).Error
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx, id)
	return nil
}

func (s *Service) ListItems(ctx context.Context, viewID uint, q pagination.Query) ([]models.ViewItemModel, response.Pagination, error) {
	tx := s.db.WithContext(ctx).Model(&models.ViewItemModel{}).
		Where("view_id = ?", viewID).
		Order("menu_order ASC").Order("id ASC")
	var items []models.ViewItemModel
	pag, err := pagination.Paginate(tx, q, &items)
	return items, pag, err
}

func (s *Service) CreateItem(ctx context.Context, viewID uint, dto *CreateItemDTO) (*models.ViewItemModel, error) {
	item := models.ViewItemModel{
		ViewID: viewID,
		Title:  strings.TrimSpace(dto.Title),
		Text:   dto.Text,
		Author: dto.Author,
		Type:   orDefault(dto.Type, "post"),
		Date:   time.Now(),
		Order:  dto.Order,
		Fields: dto.Fields,
	}
	if dto.Date != nil {
		item.Date = *dto.Date
	}
	if err := s.db.WithContext(ctx).Create(&item).Error; err != nil {
		return nil, err
	}
	s.invalidate(ctx, viewID)
	return &item, nil
}

func (s *Service) invalidate(ctx context.Context, id uint) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateView(ctx, id); err != nil {
		s.log.Warn("view render cache invalidation failed", zap.Uint("view_id", id), zap.Error(err))
	}
}

func validateView(v *models.ViewModel) error {
	switch v.Kind {
	case models.ViewKindPosts, models.ViewKindTaxonomy, models.ViewKindUsers:
	default:
		return errInvalidKind
	}
	switch v.Status {
	case models.ViewStatusPublish, models.ViewStatusDraft, models.ViewStatusTrash:
	default:
		return errInvalidStatus
	}
	if v.Limit < -1 {
		return errInvalidLimit
	}
	if v.Offset < 0 {
		return errInvalidOffset
	}
	for _, o := range []string{v.Order, v.SecondaryOrder} {
		if o != "" && o != viewblock.OrderAsc && o != viewblock.OrderDesc {
			return errInvalidOrder
		}
	}
	return nil
}

func isValidationError(err error) bool {
	return errors.Is(err, errInvalidKind) || errors.Is(err, errInvalidStatus) ||
		errors.Is(err, errInvalidLimit) || errors.Is(err, errInvalidOffset) ||
		errors.Is(err, errInvalidOrder)
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v == "" {
		return def
	}
	return v
}

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc, writeMW ...gin.HandlerFunc) {
	g := rg.Group("/views")

	g.GET("", h.list)
	g.GET("/published", h.published)
	g.GET("/:id", h.get)
	g.GET("/:id/items", h.listItems)

	a := g.Group("", append([]gin.HandlerFunc{authMW, middleware.RequireCapability(middleware.CapabilityEditViews)}, writeMW...)...)
	a.POST("", h.create)
	a.PUT("/:id", h.update)
	a.DELETE("/:id", h.delete)
	a.POST("/:id/items", h.createItem)
}

// GET /views?kind=&status=
func (h *Handler) list(c *gin.Context) {
	items, pag, err := h.svc.List(c.Request.Context(), pagination.FromContext(c), c.Query("kind"), c.Query("status"))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Paged(c, items, pag)
}

// GET /views/published
func (h *Handler) published(c *gin.Context) {
	known, err := h.svc.Published(c.Request.Context())
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, known)
}

// GET /views/:id accepts an id or a name.
func (h *Handler) get(c *gin.Context) {
	v, err := h.svc.Resolve(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, viewblock.ErrViewNotFound) || errors.Is(err, viewblock.ErrViewNotSet) {
			response.NotFoundMsg(c, "view not found")
			return
		}
		response.InternalError(c, err)
		return
	}
	response.OK(c, v)
}

// GET /views/:id/items
func (h *Handler) listItems(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	items, pag, err := h.svc.ListItems(c.Request.Context(), id, pagination.FromContext(c))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Paged(c, items, pag)
}

func (h *Handler) create(c *gin.Context) {
	var dto CreateViewDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	v, err := h.svc.Create(c.Request.Context(), &dto)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Created(c, v)
}

func (h *Handler) update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var dto UpdateViewDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	v, err := h.svc.Update(c.Request.Context(), id, &dto)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if v == nil {
		response.NotFoundMsg(c, "view not found")
		return
	}
	response.OK(c, v)
}

func (h *Handler) delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		response.InternalError(c, err)
		return
	}
	response.NoContent(c)
}

func (h *Handler) createItem(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var dto CreateItemDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if _, err := h.svc.Resolve(c.Request.Context(), strconv.FormatUint(uint64(id), 10)); err != nil {
		h.writeError(c, err)
		return
	}
	item, err := h.svc.CreateItem(c.Request.Context(), id, &dto)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Created(c, item)
}

func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case isValidationError(err):
		response.UnprocessableEntity(c, err.Error())
	case errors.Is(err, viewblock.ErrViewNotFound):
		response.NotFoundMsg(c, "view not found")
	case errors.Is(err, gorm.ErrDuplicatedKey):
		response.Conflict(c, "a view with this name already exists")
	default:
		response.InternalError(c, err)
	}
}

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		response.BadRequest(c, "invalid view id")
		return 0, false
	}
	return uint(id), true
}
