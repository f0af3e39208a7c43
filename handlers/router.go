package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Moustafa-Haydar/cargo-smart/config"
	"github.com/Moustafa-Haydar/cargo-smart/middleware"
	"github.com/Moustafa-Haydar/cargo-smart/services"
)

// NewRouter wires every endpoint of the reroute API.
func NewRouter(cfg config.CORSConfig, reroute *RerouteHandler, proposals *ProposalHandler, cache *services.CacheService) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLog(), middleware.SetupCORS(cfg))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "UP",
			"message": "Route decision engine is running",
		})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/ws/decisions", DecisionFeed(cache))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/shipments/:id/evaluate", reroute.Evaluate)
		v1.POST("/shipments/:id/apply", reroute.Apply)
		v1.GET("/shipments/:id/decisions", proposals.Decisions)
		v1.POST("/decisions/:id/approval", proposals.SetApproval)

		v1.GET("/proposals", proposals.List)
		v1.POST("/proposals", proposals.Import)
		v1.POST("/proposals/:id/approve", proposals.Approve)
		v1.POST("/proposals/:id/reject", proposals.Reject)
	}
	return router
}
