package server

import (
	"context"

	"github.com/compozy/bookstore/pkg/logger"
	"github.com/gin-gonic/gin"
)

func (s *Server) buildRouter(ctx context.Context) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if s.monitoring != nil && s.monitoring.IsInitialized() {
		r.Use(s.monitoring.GinMiddleware(ctx))
		r.GET(s.monitoring.Path(), gin.WrapH(s.monitoring.ExporterHandler()))
	}
	r.Use(LoggerMiddleware(logger.FromContext(ctx)))
	RegisterRoutes(r, s.port, s.defaultStrategy)
	return r
}
