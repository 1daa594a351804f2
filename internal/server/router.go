package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/veeky/veeky-backend/internal/handlers"
)

type RouterConfig struct {
	SearchHandler *handlers.SearchHandler
	VideoHandler  *handlers.VideoHandler
	TaskHandler   *handlers.TaskHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	// Cors
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{
			"http://localhost:80",
			"http://localhost:3000",
			"http://localhost:5174",
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	router.GET("/healthcheck", handlers.HealthCheck)

	api := router.Group("/api")
	{
		api.POST("/search", cfg.SearchHandler.Search)
		api.GET("/videos/:id", cfg.VideoHandler.Get)
		api.POST("/videos/:id/index", cfg.VideoHandler.Index)
		api.GET("/tasks", cfg.TaskHandler.List)
		api.DELETE("/tasks/:id", cfg.TaskHandler.Cancel)
	}

	return router
}
