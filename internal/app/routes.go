package app

import (
	"github.com/gin-gonic/gin"
	"github.com/mx-space/viewblock/internal/middleware"
	"github.com/mx-space/viewblock/internal/modules/render"
	"github.com/mx-space/viewblock/internal/modules/viewpreview"
	"github.com/mx-space/viewblock/internal/modules/views"
	"github.com/mx-space/viewblock/internal/pkg/nonce"
	"github.com/mx-space/viewblock/internal/pkg/response"
)

const apiPrefix = "/api/v2"

func (a *App) registerRoutes() {
	r := a.router
	authMW := middleware.Auth()

	r.NoRoute(func(c *gin.Context) {
		response.NotFound(c)
	})
	r.NoMethod(func(c *gin.Context) {
		response.MethodNotAllowed(c)
	})

	r.Use(middleware.OptionalAuth())

	preview := a.cfg.Preview
	limiter := middleware.NewLimiter(preview.RatePerMinute, preview.RateBurst)
	limitMW := middleware.RateLimit(limiter)
	nonces := nonce.NewIssuer(a.cfg.NonceSecret, preview.NonceLifetime())

	viewSvc := views.NewService(a.db, a.cache, a.logger)
	renderer := render.NewRenderer(a.db, viewSvc, a.cache, a.logger)
	previewSvc := viewpreview.NewService(viewSvc, renderer, viewpreview.Options{
		LimitClamp: preview.LimitClamp,
		ExtraCSS:   preview.ExtraCSS,
		AdminURL:   a.cfg.AdminURL,
		Debounce:   preview.Debounce(),
	}, a.logger)
	previewHandler := viewpreview.NewHandler(previewSvc, viewSvc, nonces, a.logger)

	r.GET("/ping", func(c *gin.Context) {
		response.OK(c, gin.H{"name": "mx-views", "status": "ok"})
	})
	previewHandler.RegisterAjax(r, limitMW)

	api := r.Group(apiPrefix)
	previewHandler.RegisterRoutes(api, authMW, limitMW)
	views.NewHandler(viewSvc).RegisterRoutes(api, authMW, middleware.Idempotence(a.rc, a.logger))
}
