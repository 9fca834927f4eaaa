package web

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kingrea/crosspost/internal/catalog"
	"github.com/kingrea/crosspost/internal/ledger"
	"github.com/kingrea/crosspost/internal/orchestrator"
)

const dateLayout = "2006-01-02"

type recordJSON struct {
	Sequence    int       `json:"sequence"`
	Platform    string    `json:"platform"`
	PublishedAt time.Time `json:"published_at"`
	Reference   string    `json:"reference,omitempty"`
}

type itemStatusJSON struct {
	Sequence     int          `json:"sequence"`
	Title        string       `json:"title"`
	ExpectedDate string       `json:"expected_date"`
	Status       string       `json:"status"`
	Platforms    []string     `json:"platforms"`
	Remaining    []string     `json:"remaining"`
	Records      []recordJSON `json:"records"`
}

type statusJSON struct {
	Today     string           `json:"today"`
	LastRunAt *time.Time       `json:"last_run_at,omitempty"`
	Counts    map[string]int   `json:"counts"`
	Items     []itemStatusJSON `json:"items"`
}

type scheduleJSON struct {
	Sequence     int      `json:"sequence"`
	Title        string   `json:"title"`
	ExpectedDate string   `json:"expected_date"`
	Platforms    []string `json:"platforms"`
}

type handoffJSON struct {
	Sequence int       `json:"sequence"`
	Platform string    `json:"platform"`
	Title    string    `json:"title"`
	Path     string    `json:"path"`
	StagedAt time.Time `json:"staged_at"`
}

type runJSON struct {
	RunID     string    `json:"run_id"`
	Mode      string    `json:"mode"`
	StartedAt time.Time `json:"started_at"`
	Attempts  int       `json:"attempts"`
	Published int       `json:"published"`
	Failures  int       `json:"failures"`
}

// ConfirmRequest is the POST /api/confirm body.
type ConfirmRequest struct {
	Sequence  int    `json:"sequence"`
	Platform  string `json:"platform"`
	Reference string `json:"reference"`
}

func platformNames(platforms []catalog.Platform) []string {
	out := make([]string, len(platforms))
	for i, p := range platforms {
		out[i] = string(p)
	}
	return out
}

func toRecordJSON(rec ledger.Record) recordJSON {
	return recordJSON{Sequence: rec.Sequence, Platform: string(rec.Platform), PublishedAt: rec.PublishedAt, Reference: rec.Reference}
}

func errorJSON(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"error": msg})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":         string(s.Status()),
		"uptime_seconds": s.uptimeSeconds(),
		"time":           s.clock().UTC(),
	})
}

func (s *Server) handleStatus(c *gin.Context) {
	report, err := s.backend.Status()
	if err != nil {
		s.logger.Error("web: status: %v", err)
		errorJSON(c, http.StatusInternalServerError, err.Error())
		return
	}
	resp := statusJSON{
		Today:  report.Today.Format(dateLayout),
		Counts: map[string]int{},
		Items:  make([]itemStatusJSON, 0, len(report.Items)),
	}
	if !report.LastRunAt.IsZero() {
		last := report.LastRunAt
		resp.LastRunAt = &last
	}
	for status, n := range report.Counts {
		resp.Counts[string(status)] = n
	}
	for _, row := range report.Items {
		item := itemStatusJSON{
			Sequence:     row.Sequence,
			Title:        row.Title,
			ExpectedDate: row.ExpectedDate.Format(dateLayout),
			Status:       string(row.Status),
			Platforms:    platformNames(row.Platforms),
			Remaining:    platformNames(row.Remaining),
			Records:      make([]recordJSON, 0, len(row.Records)),
		}
		for _, rec := range row.Records {
			item.Records = append(item.Records, toRecordJSON(rec))
		}
		resp.Items = append(resp.Items, item)
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleSchedule(c *gin.Context) {
	entries := s.backend.Schedule()
	resp := make([]scheduleJSON, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, scheduleJSON{
			Sequence:     e.Sequence,
			Title:        e.Title,
			ExpectedDate: e.ExpectedDate.Format(dateLayout),
			Platforms:    platformNames(e.Platforms),
		})
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleHandoffs(c *gin.Context) {
	pending, err := s.backend.Pending()
	if err != nil {
		s.logger.Error("web: handoffs: %v", err)
		errorJSON(c, http.StatusInternalServerError, err.Error())
		return
	}
	resp := make([]handoffJSON, 0, len(pending))
	for _, p := range pending {
		resp = append(resp, handoffJSON{
			Sequence: p.Sequence,
			Platform: string(p.Platform),
			Title:    p.Title,
			Path:     p.Path,
			StagedAt: p.StagedAt,
		})
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleConfirm(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxBody)
	var req ConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Sequence <= 0 {
		errorJSON(c, http.StatusBadRequest, "sequence must be positive")
		return
	}
	platform, err := catalog.ParsePlatform(req.Platform)
	if err != nil {
		errorJSON(c, http.StatusBadRequest, err.Error())
		return
	}
	rec, err := s.backend.Confirm(c.Request.Context(), req.Sequence, platform, req.Reference)
	var dup *ledger.DuplicateRecordError
	switch {
	case err == nil:
		s.logger.Info("web: confirmed %d/%s", req.Sequence, platform)
		c.JSON(http.StatusCreated, toRecordJSON(rec))
	case errors.As(err, &dup):
		errorJSON(c, http.StatusConflict, err.Error())
	case errors.Is(err, orchestrator.ErrUnknownSequence):
		errorJSON(c, http.StatusNotFound, err.Error())
	case errors.Is(err, orchestrator.ErrNotTargeted):
		errorJSON(c, http.StatusUnprocessableEntity, err.Error())
	default:
		s.logger.Error("web: confirm %d/%s: %v", req.Sequence, platform, err)
		errorJSON(c, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) handleRuns(c *gin.Context) {
	if s.runs == nil {
		errorJSON(c, http.StatusNotFound, "run history is not enabled")
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 {
		errorJSON(c, http.StatusBadRequest, "limit must be a positive integer")
		return
	}
	runs, err := s.runs.Runs(limit)
	if err != nil {
		s.logger.Error("web: runs: %v", err)
		errorJSON(c, http.StatusInternalServerError, err.Error())
		return
	}
	resp := make([]runJSON, 0, len(runs))
	for _, r := range runs {
		resp = append(resp, runJSON{RunID: r.RunID, Mode: r.Mode, StartedAt: r.StartedAt, Attempts: r.Attempts, Published: r.Published, Failures: r.Failures})
	}
	c.JSON(http.StatusOK, resp)
}
