package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"DailyPodcast/internal/usecase"
)

// Run states reported by the status endpoint.
const (
	StatusQueued  = "queued"
	StatusRunning = "running"
)

// Runner executes one pipeline run.
type Runner interface {
	Run(ctx context.Context, req usecase.RunRequest) (usecase.Outcome, error)
}

// Params are the trigger parameters after query and body merging.
type Params struct {
	Today string `json:"today,omitempty"`
	Force *bool  `json:"force,omitempty"`
}

func (p Params) empty() bool {
	return p.Today == "" && p.Force == nil
}

// RunStatus is the tracked state of one triggered run.
type RunStatus struct {
	ID         string     `json:"id"`
	Date       string     `json:"date"`
	Force      bool       `json:"force"`
	Status     string     `json:"status"`
	Stage      string     `json:"stage,omitempty"`
	Error      string     `json:"error,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
}

// Server exposes the on-demand trigger surface.
type Server struct {
	ctx      context.Context
	runner   Runner
	location *time.Location
	logger   *slog.Logger
	now      func() time.Time

	mu   sync.RWMutex
	runs map[string]RunStatus
	wg   sync.WaitGroup
}

// NewServer binds background runs to ctx, so they outlive the triggering request.
func NewServer(ctx context.Context, runner Runner, location *time.Location, logger *slog.Logger) *Server {
	if location == nil {
		location = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		ctx:      ctx,
		runner:   runner,
		location: location,
		logger:   logger,
		now:      time.Now,
		runs:     make(map[string]RunStatus),
	}
}

// Router builds the gin engine.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/healthz", s.Healthz)
	r.GET("/workflow", s.TriggerWorkflow)
	r.POST("/workflow", s.TriggerWorkflow)
	r.GET("/workflow/:id", s.GetWorkflow)
	return r
}

// Wait blocks until every background run has returned.
func (s *Server) Wait() {
	s.wg.Wait()
}

func (s *Server) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// TriggerWorkflow accepts today and force from the query string or a JSON
// body; body values win.
func (s *Server) TriggerWorkflow(c *gin.Context) {
	params := s.extractParams(c)

	date := params.Today
	if date == "" {
		date = s.now().In(s.location).Format(usecase.DateLayout)
	}
	day, err := usecase.ParseDate(date)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "today must be a YYYY-MM-DD date"})
		return
	}
	force := params.Force != nil && *params.Force

	status := RunStatus{
		ID:        uuid.NewString(),
		Date:      day.Format(usecase.DateLayout),
		Force:     force,
		Status:    StatusQueued,
		CreatedAt: s.now().UTC(),
	}
	s.track(status)
	s.logger.Info("workflow triggered", "id", status.ID, "date", status.Date, "force", force)

	s.wg.Add(1)
	go s.execute(status.ID, usecase.RunRequest{ID: status.ID, Date: day, Force: force})

	var echoed any
	if !params.empty() {
		echoed = params
	}
	c.JSON(http.StatusAccepted, gin.H{
		"id":      status.ID,
		"params":  echoed,
		"details": gin.H{"status": status.Status},
	})
}

func (s *Server) GetWorkflow(c *gin.Context) {
	s.mu.RLock()
	status, ok := s.runs[c.Param("id")]
	s.mu.RUnlock()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "workflow not found"})
		return
	}
	c.JSON(http.StatusOK, status)
}

func (s *Server) execute(id string, req usecase.RunRequest) {
	defer s.wg.Done()

	s.update(id, func(st *RunStatus) { st.Status = StatusRunning })
	outcome, err := s.runner.Run(s.ctx, req)

	s.update(id, func(st *RunStatus) {
		finished := s.now().UTC()
		st.FinishedAt = &finished
		st.Status = string(outcome.Status)
		st.Stage = outcome.Stage
		if err != nil {
			st.Status = string(usecase.StatusFailed)
			st.Error = err.Error()
		}
	})
	if err != nil {
		s.logger.Error("workflow failed", "id", id, "stage", outcome.Stage, "error", err)
		return
	}
	s.logger.Info("workflow finished", "id", id, "status", outcome.Status)
}

func (s *Server) track(status RunStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[status.ID] = status
}

func (s *Server) update(id string, fn func(*RunStatus)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.runs[id]
	if !ok {
		return
	}
	fn(&st)
	s.runs[id] = st
}

func (s *Server) extractParams(c *gin.Context) Params {
	var params Params
	if today := strings.TrimSpace(c.Query("today")); today != "" {
		params.Today = today
	}
	if raw, ok := c.GetQuery("force"); ok {
		if force, ok := parseBoolean(raw); ok {
			params.Force = &force
		}
	}

	if c.Request.Method == http.MethodGet || c.Request.Method == http.MethodHead {
		return params
	}
	if !strings.Contains(c.GetHeader("Content-Type"), "application/json") {
		return params
	}

	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		s.logger.Warn("read workflow request body", "error", err)
		return params
	}
	var body struct {
		Today any `json:"today"`
		Force any `json:"force"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		s.logger.Warn("failed to parse workflow request JSON body", "error", err)
		return params
	}
	switch v := body.Today.(type) {
	case string:
		if v = strings.TrimSpace(v); v != "" {
			params.Today = v
		}
	case nil:
	default:
		if b, err := json.Marshal(v); err == nil {
			params.Today = strings.TrimSpace(string(b))
		}
	}
	if force, ok := body.Force.(bool); ok {
		params.Force = &force
	}
	return params
}

// parseBoolean accepts 1/true/yes/on and 0/false/no/off.
func parseBoolean(value string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true, true
	case "0", "false", "no", "off":
		return false, true
	}
	return false, false
}
