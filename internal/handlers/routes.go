package handlers

import "github.com/gin-gonic/gin"

// RegisterRoutes mounts all API endpoints on the engine.
func RegisterRoutes(r *gin.Engine, analyze *AnalyzeHandler, health *HealthHandler, admin *AdminHandler, decoy *DecoyHandler) {
	r.GET("/", health.Root)
	r.GET("/health", health.Health)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/", health.Root)
		v1.POST("/analyze/complete", analyze.Analyze)
		v1.GET("/analysis", admin.RecentAnalyses)
		v1.GET("/analysis/:id", admin.GetAnalysis)

		v1.GET("/admin/stats", admin.Stats)
		v1.GET("/admin/patterns", admin.ListPatterns)
		v1.POST("/admin/patterns", admin.AddPattern)

		v1.GET("/decoys", decoy.Active)
		v1.POST("/decoy/:id/track", decoy.Track)
		v1.GET("/decoy/:id/intel", decoy.Intel)
	}
}
