package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"stockwatch/internal/scheduler"
)

// SchedulerControl is the scheduler surface the control API consumes.
type SchedulerControl interface {
	Jobs() []scheduler.JobStatus
	Running() bool
	Trigger(jobID int, chatID *int64) error
	TriggerHistoricalBackfill(chatID int64, startDate, endDate string, symbol *string) error
}

// SchedulerHandler exposes the job table to the separate API process. The
// response shapes here are a cross-process contract and stay flat rather
// than using the shared envelope.
type SchedulerHandler struct {
	Scheduler SchedulerControl
}

func (h *SchedulerHandler) Register(r *gin.Engine) {
	g := r.Group("/scheduler")
	g.GET("/status", h.status)
	g.POST("/trigger/:job_id", h.trigger)
	g.POST("/trigger_historical_prices_update", h.triggerHistorical)
}

func (h *SchedulerHandler) status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"is_running": h.Scheduler.Running(),
		"jobs":       h.Scheduler.Jobs(),
	})
}

type triggerRequest struct {
	ChatID *int64 `json:"chat_id"`
}

func (h *SchedulerHandler) trigger(c *gin.Context) {
	jobID, err := strconv.Atoi(c.Param("job_id"))
	if err != nil {
		Error(c, http.StatusBadRequest, "invalid job id", nil)
		return
	}
	var req triggerRequest
	_ = c.ShouldBindJSON(&req)

	if err := h.Scheduler.Trigger(jobID, req.ChatID); err != nil {
		if errors.Is(err, scheduler.ErrJobNotFound) {
			Error(c, http.StatusNotFound, "job not found", nil)
			return
		}
		Error(c, http.StatusServiceUnavailable, err.Error(), nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"job_id":       jobID,
		"message":      fmt.Sprintf("job %d triggered", jobID),
		"triggered_at": time.Now().Format(time.RFC3339),
	})
}

type historicalRequest struct {
	ChatID          int64   `json:"chat_id"`
	StartDate       string  `json:"start_date"`
	EndDate         string  `json:"end_date"`
	StockIdentifier *string `json:"stock_identifier"`
}

func (h *SchedulerHandler) triggerHistorical(c *gin.Context) {
	var req historicalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	start, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		Error(c, http.StatusBadRequest, "invalid start_date, want YYYY-MM-DD", nil)
		return
	}
	end, err := time.Parse("2006-01-02", req.EndDate)
	if err != nil {
		Error(c, http.StatusBadRequest, "invalid end_date, want YYYY-MM-DD", nil)
		return
	}
	if end.Before(start) {
		Error(c, http.StatusBadRequest, "end_date precedes start_date", nil)
		return
	}

	if err := h.Scheduler.TriggerHistoricalBackfill(req.ChatID, req.StartDate, req.EndDate, req.StockIdentifier); err != nil {
		Error(c, http.StatusServiceUnavailable, err.Error(), nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "triggered",
		"message": fmt.Sprintf("historical price update %s ~ %s", req.StartDate, req.EndDate),
	})
}
