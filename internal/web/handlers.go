package web

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"tracksync/internal/storage/sqlite"
	"tracksync/internal/syncer"
)

func (s *Server) handleHealth(c *gin.Context) {
	live, deleted, err := sqlite.CountTasks(s.db)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "tasks": live, "deleted": deleted})
}

func (s *Server) handleFullSync(c *gin.Context) {
	s.runSync(c, s.sync.FullSync)
}

func (s *Server) handleIncrementalSync(c *gin.Context) {
	s.runSync(c, s.sync.IncrementalSync)
}

func (s *Server) runSync(c *gin.Context, fn func() (syncer.SyncResult, error)) {
	result, err := fn()
	if errors.Is(err, syncer.ErrSyncInProgress) {
		c.JSON(http.StatusConflict, gin.H{"success": false, "error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"success": false, "error": err.Error(), "result": result})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"summary": syncer.FormatSummary(result),
		"result":  result,
	})
}

func (s *Server) handleEmployeeSync(c *gin.Context) {
	synced, err := s.sync.SyncEmployees()
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "employees_synced": synced})
}

func (s *Server) handleEmployees(c *gin.Context) {
	rows, err := sqlite.GetEmployees(s.db)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "count": len(rows), "employees": rows})
}

func (s *Server) handleRecentTasks(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	rows, err := sqlite.GetRecentTasks(s.db, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "count": len(rows), "tasks": rows})
}

func (s *Server) handleTasksByAssignee(c *gin.Context) {
	user := c.Query("user")
	if user == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "user parameter required"})
		return
	}
	rows, err := sqlite.GetTasksByAssignee(s.db, user)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "user": user, "count": len(rows), "tasks": rows})
}

func (s *Server) handleTasksWithTime(c *gin.Context) {
	rows, err := sqlite.GetTasksWithTime(s.db)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "count": len(rows), "tasks": rows})
}

func (s *Server) handleTaskByID(c *gin.Context) {
	row, err := sqlite.GetTaskByID(s.db, c.Param("id"))
	if errors.Is(err, sql.ErrNoRows) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "task not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "task": row})
}
