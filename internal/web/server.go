// Package web exposes the task mirror and sync triggers over HTTP.
package web

import (
	"database/sql"

	"github.com/gin-gonic/gin"

	"tracksync/internal/syncer"
)

// Server serves the mirror query API and sync endpoints.
type Server struct {
	db     *sql.DB
	sync   *syncer.Syncer
	router *gin.Engine
}

func NewServer(db *sql.DB, sync *syncer.Syncer) *Server {
	router := gin.Default()

	s := &Server{db: db, sync: sync, router: router}

	router.GET("/healthz", s.handleHealth)
	router.POST("/sync/tasks", s.handleFullSync)
	router.POST("/sync/incremental", s.handleIncrementalSync)
	router.POST("/sync/employees", s.handleEmployeeSync)
	router.GET("/employees", s.handleEmployees)

	tasks := router.Group("/tasks")
	{
		tasks.GET("", s.handleRecentTasks)
		tasks.GET("/by-assignee", s.handleTasksByAssignee)
		tasks.GET("/with-time", s.handleTasksWithTime)
		tasks.GET("/:id", s.handleTaskByID)
	}

	return s
}

// Run blocks serving on addr.
func (s *Server) Run(addr string) error {
	return s.router.Run(addr)
}
