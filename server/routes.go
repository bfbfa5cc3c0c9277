package server

import "github.com/gin-gonic/gin"

func (s *Server) registerRoutes(r *gin.Engine) {
	api := r.Group("/api")

	api.GET("/health", s.handleHealth)
	api.GET("/companies", s.handleCompanies)

	api.POST("/collect-data", s.handleCollectData)
	api.GET("/task-status/:task_id", s.handleTaskStatus)

	api.POST("/expense-automation", s.handleExpenseAutomation)

	api.GET("/download/:filename", s.handleDownload)
	api.GET("/runs", s.handleRuns)
}
