package fakeapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) registerRoutes(api *gin.RouterGroup) {
	auth := api.Group("/auth")
	auth.POST("/register", s.register)
	auth.POST("/login", s.login)
	auth.POST("/refresh", s.refresh)

	tasks := api.Group("/tasks", s.requireUser())
	tasks.GET("", s.listTasks)
	tasks.POST("", s.createTask)
	tasks.GET("/:id", s.getTask)
	tasks.PUT("/:id", s.updateTask)
	tasks.DELETE("/:id", s.deleteTask)

	api.GET("/analytics/summary", s.requireUser(), s.analyticsSummary)
}

type fieldError struct {
	loc  []any
	msg  string
	kind string
}

func abortDetail(c *gin.Context, status int, detail string) {
	c.AbortWithStatusJSON(status, gin.H{"detail": detail})
}

func abortUnauthorized(c *gin.Context, detail string) {
	c.Header("WWW-Authenticate", "Bearer")
	abortDetail(c, http.StatusUnauthorized, detail)
}

func abortFields(c *gin.Context, problems ...fieldError) {
	detail := make([]gin.H, 0, len(problems))
	for _, problem := range problems {
		detail = append(detail, gin.H{"loc": problem.loc, "msg": problem.msg, "type": problem.kind})
	}
	c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"detail": detail})
}
