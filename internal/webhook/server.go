// Package webhook exposes the small HTTP surface that lets non-email
// sources feed the task store. The only producer today is an IFTTT
// applet forwarding missed phone calls.
package webhook

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/josephgoksu/paperboy/internal/logger"
	"github.com/josephgoksu/paperboy/models"
	"github.com/josephgoksu/paperboy/store"
)

// Server accepts missed-call notifications and turns them into
// high-priority task candidates. Everything downstream - dedup,
// printing, reconciliation - is the store's and pipeline's business.
type Server struct {
	tasks  store.TaskStore
	engine *gin.Engine
}

// NewServer builds the router. The returned server implements
// http.Handler and plugs straight into an http.Server.
func NewServer(tasks store.TaskStore) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{tasks: tasks, engine: engine}
	engine.GET("/health", s.handleHealth)
	engine.POST("/missed_call", s.handleMissedCall)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.engine.ServeHTTP(w, r)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// missedCallRequest is the IFTTT webhook payload. Only the number is
// mandatory; caller name and timestamp are best-effort.
type missedCallRequest struct {
	Caller     string `json:"caller"`
	Number     string `json:"number" binding:"required"`
	OccurredAt string `json:"occurred_at"`
	Source     string `json:"source"`
}

func (s *Server) handleMissedCall(c *gin.Context) {
	var req missedCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "number is required"})
		return
	}

	who := req.Caller
	if who == "" {
		who = req.Number
	}

	description := fmt.Sprintf("Missed call from %s", req.Number)
	if req.OccurredAt != "" {
		description += " at " + req.OccurredAt
	}
	if req.Source != "" {
		description += " (via " + req.Source + ")"
	}

	candidate := models.TaskCandidate{
		Title:           fmt.Sprintf("Return missed call from %s", who),
		Description:     description,
		Priority:        models.PriorityHigh,
		Contacts:        []string{req.Number},
		SourceMessageID: fmt.Sprintf("missed-call-%s-%s", req.Number, time.Now().UTC().Format("2006-01-02T15:04:05")),
	}

	rec, err := s.tasks.Upsert(c.Request.Context(), req.Number, candidate)
	if err != nil {
		logger.Error("missed-call upsert failed", "number", req.Number, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record task"})
		return
	}

	logger.Info("missed call recorded", "caller", who, "task", rec.ID)
	c.JSON(http.StatusCreated, gin.H{"task_id": rec.ID, "state": rec.State})
}
