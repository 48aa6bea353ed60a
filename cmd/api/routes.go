package main

import (
	"log/slog"
	"net/http"
	"slices"
	"time"

	"call-insights/internal/auth"
	"call-insights/internal/config"
	"call-insights/internal/httpapi"
	"call-insights/pkg/logger"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// newRouter builds the gin engine: global middleware first, then every route under the
// optional global prefix. Keep this file free of business logic.
func newRouter(cfg config.Config, log *slog.Logger, h httpapi.Handlers) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.OTel.Enabled {
		r.Use(otelgin.Middleware(cfg.OTel.ServiceName))
	}
	r.Use(logger.Middleware(log))
	r.Use(auth.RequestContext())
	if len(cfg.App.CORSOrigins) > 0 {
		r.Use(cors.New(corsConfig(cfg.App.CORSOrigins)))
	}

	var root gin.IRouter = r
	if cfg.App.GlobalPrefix != "" {
		root = r.Group("/" + cfg.App.GlobalPrefix)
	}
	httpapi.Register(root, h)
	return r
}

func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{"Authorization", "Content-Type", "Range", "X-Org-Id", "X-Master-Token", "X-Request-Id"},
		ExposeHeaders: []string{"Content-Range", "Accept-Ranges", "X-Request-Id"},
		MaxAge:        12 * time.Hour,
	}
	if slices.Contains(origins, "*") {
		c.AllowAllOrigins = true
		return c
	}
	c.AllowOrigins = origins
	c.AllowCredentials = true
	return c
}
