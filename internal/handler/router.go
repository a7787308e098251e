package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/qrengage/docpipe/internal/middleware"
)

type RouterDeps struct {
	Documents    *DocumentHandler
	Queries      *QueryHandler
	UploadWindow time.Duration
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	tenantGroup := api.Group("")
	tenantGroup.Use(middleware.TenantAuth())

	uploadGroup := tenantGroup.Group("")
	uploadGroup.Use(middleware.RateLimit(deps.UploadWindow))
	uploadGroup.POST("/documents", deps.Documents.Upload)
	uploadGroup.POST("/documents/:id/reingest", deps.Documents.Reingest)

	tenantGroup.GET("/documents", deps.Documents.List)
	tenantGroup.GET("/documents/:id", deps.Documents.Get)
	tenantGroup.GET("/documents/:id/status", deps.Documents.Status)
	tenantGroup.DELETE("/documents/:id", deps.Documents.Delete)

	tenantGroup.POST("/query", deps.Queries.Query)
}
