package server

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jarqyn/jarqyn/internal/admin"
	"github.com/jarqyn/jarqyn/internal/filter"
	"github.com/jarqyn/jarqyn/internal/geo"
	"github.com/jarqyn/jarqyn/internal/model"
	"github.com/jarqyn/jarqyn/internal/reports"
	"github.com/jarqyn/jarqyn/internal/session"
)

type apiError struct {
	Status  int
	Code    string
	Message string
}

func (e *apiError) Error() string { return e.Message }

func writeAPIError(c *gin.Context, err error) {
	var apiErr *apiError
	if errors.As(err, &apiErr) {
		c.JSON(apiErr.Status, gin.H{"error": apiErr.Code, "message": apiErr.Message})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
}

var filterParams = []string{"status", "priority", "category", "search"}

// snapshot returns the session snapshot for this request. Without filter
// parameters the session's own filter applies; with any of them the request
// carries a complete filter of its own and the session is left unchanged.
func (s *Server) snapshot(c *gin.Context) (session.Snapshot, bool) {
	q := c.Request.URL.Query()
	custom := false
	for _, p := range filterParams {
		if _, ok := q[p]; ok {
			custom = true
			break
		}
	}
	if !custom {
		return s.sess.Snapshot(), true
	}
	st, err := filter.FromQuery(q)
	if err != nil {
		writeAPIError(c, &apiError{Status: http.StatusBadRequest, Code: "invalid_filter", Message: err.Error()})
		return session.Snapshot{}, false
	}
	return s.sess.SnapshotFor(st), true
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		writeAPIError(c, &apiError{Status: http.StatusBadRequest, Code: "invalid_id", Message: "report id must be a positive integer"})
		return 0, false
	}
	return id, true
}

// ─── Read endpoints ───────────────────────────────────────────────────────────

func (s *Server) healthHandler(c *gin.Context) {
	snap := s.sess.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"reports":    len(snap.Store),
		"generation": snap.Generation,
		"loading":    snap.Loading,
	})
}

type listResponse struct {
	Generation uint64             `json:"generation"`
	Filter     filter.State       `json:"filter"`
	Loading    bool               `json:"loading"`
	FetchedAt  time.Time          `json:"fetched_at"`
	Total      int                `json:"total"`
	Count      int                `json:"count"`
	Reports    []model.ReportView `json:"reports"`
	Warnings   []string           `json:"warnings,omitempty"`
}

func (s *Server) listHandler(c *gin.Context) {
	snap, ok := s.snapshot(c)
	if !ok {
		return
	}
	view := snap.View
	if view == nil {
		view = []model.ReportView{}
	}
	c.JSON(http.StatusOK, listResponse{
		Generation: snap.Generation,
		Filter:     snap.Filter,
		Loading:    snap.Loading,
		FetchedAt:  snap.FetchedAt,
		Total:      len(snap.Store),
		Count:      len(view),
		Reports:    view,
		Warnings:   snap.Warnings,
	})
}

func (s *Server) reportHandler(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	for _, v := range s.sess.Store() {
		if v.ID == id {
			c.JSON(http.StatusOK, v)
			return
		}
	}
	writeAPIError(c, &apiError{Status: http.StatusNotFound, Code: "not_found", Message: "report " + strconv.FormatInt(id, 10) + " not found"})
}

func (s *Server) markersHandler(c *gin.Context) {
	snap, ok := s.snapshot(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, geo.FeatureCollection(geo.Markers(snap.View, s.mapOpts.Location)))
}

func (s *Server) countsHandler(c *gin.Context) {
	snap, ok := s.snapshot(c)
	if !ok {
		return
	}
	counts := filter.Count(snap.Store)
	shown := snap.Located()
	c.JSON(http.StatusOK, gin.H{
		"counts":  counts,
		"shown":   shown,
		"summary": geo.MarkerSummary(shown, counts.Located),
	})
}

type notificationOut struct {
	ID      string       `json:"id"`
	Kind    session.Kind `json:"kind"`
	Message string       `json:"message"`
	Error   string       `json:"error,omitempty"`
	At      time.Time    `json:"at"`
}

func (s *Server) notificationsHandler(c *gin.Context) {
	out := []notificationOut{}
	if s.notes != nil {
		for _, n := range s.notes.All() {
			o := notificationOut{ID: n.ID.String(), Kind: n.Kind, Message: n.Message, At: n.At}
			if n.Err != nil {
				o.Error = n.Err.Error()
			}
			out = append(out, o)
		}
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) mapHandler(c *gin.Context) {
	snap, ok := s.snapshot(c)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := geo.RenderHTML(&buf, snap, s.mapOpts); err != nil {
		writeAPIError(c, err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}

func (s *Server) refreshHandler(c *gin.Context) {
	if err := s.sess.FetchAll(c.Request.Context()); err != nil {
		writeAPIError(c, &apiError{Status: http.StatusBadGateway, Code: "fetch_failed", Message: err.Error()})
		return
	}
	snap := s.sess.Snapshot()
	c.JSON(http.StatusOK, gin.H{"generation": snap.Generation, "reports": len(snap.Store)})
}

// ─── Mutations ────────────────────────────────────────────────────────────────

type patchRequest struct {
	Status      *string `json:"status"`
	Priority    *string `json:"priority"`
	Description *string `json:"description"`
}

func (r patchRequest) patch() reports.Patch {
	var p reports.Patch
	if r.Status != nil {
		st := model.Status(strings.ToLower(strings.TrimSpace(*r.Status)))
		p.Status = &st
	}
	if r.Priority != nil {
		pr := model.Priority(strings.ToLower(strings.TrimSpace(*r.Priority)))
		p.Priority = &pr
	}
	p.Description = r.Description
	return p
}

func (s *Server) updateHandler(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req patchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeAPIError(c, &apiError{Status: http.StatusBadRequest, Code: "invalid_body", Message: err.Error()})
		return
	}
	p := req.patch()
	if err := p.Validate(); err != nil {
		writeAPIError(c, &apiError{Status: http.StatusBadRequest, Code: "invalid_patch", Message: err.Error()})
		return
	}
	s.mutationResult(c, id, s.bridge.Update(c.Request.Context(), id, p))
}

func (s *Server) deleteHandler(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	s.mutationResult(c, id, s.bridge.Delete(c.Request.Context(), id))
}

// mutationResult maps a bridge outcome to a response. A mutation that was
// applied but could not be followed by a refresh still succeeds, with a
// warning.
func (s *Server) mutationResult(c *gin.Context, id int64, err error) {
	var refreshErr *admin.RefreshError
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"id": id, "generation": s.sess.Snapshot().Generation})
	case errors.As(err, &refreshErr):
		s.log.Warn("mutation applied but refresh failed", "id", id, "err", err)
		c.JSON(http.StatusOK, gin.H{"id": id, "generation": s.sess.Snapshot().Generation, "warning": err.Error()})
	default:
		writeAPIError(c, upstreamError(err))
	}
}

func upstreamError(err error) *apiError {
	var se *reports.StatusError
	if errors.As(err, &se) {
		switch {
		case se.Code == http.StatusNotFound:
			return &apiError{Status: http.StatusNotFound, Code: "not_found", Message: err.Error()}
		case se.Code >= 400 && se.Code < 500 && se.Code != http.StatusTooManyRequests:
			return &apiError{Status: http.StatusBadRequest, Code: "rejected", Message: err.Error()}
		}
	}
	return &apiError{Status: http.StatusBadGateway, Code: "upstream_error", Message: err.Error()}
}
