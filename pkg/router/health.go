package router

import (
	"github.com/gin-gonic/gin"
)

// setupHealthRoutes registers the health endpoints backed by the periodic
// checker. Both paths are registered so probes and the API prefix agree.
func (r *Router) setupHealthRoutes() {
	handler := gin.WrapF(r.Container.HealthChecker.HTTPHandler())

	r.Engine.GET("/health", handler)
	r.Engine.GET("/api/health", handler)
}
