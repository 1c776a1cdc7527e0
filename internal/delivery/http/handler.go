package http

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/pricetrail/backend/internal/domain"
	"github.com/pricetrail/backend/internal/infrastructure/crawler"
	"github.com/pricetrail/backend/internal/infrastructure/export"
	"github.com/pricetrail/backend/internal/session"
	"github.com/pricetrail/backend/internal/usecase"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Handler holds dependencies for HTTP handlers
type Handler struct {
	prices   *usecase.PriceService
	sessions *session.Manager
}

// NewHandler creates a new HTTP handler. A nil session manager keeps
// sessions in memory only.
func NewHandler(prices *usecase.PriceService, sessions *session.Manager) *Handler {
	if sessions == nil {
		sessions = session.NewManager(nil)
	}
	return &Handler{
		prices:   prices,
		sessions: sessions,
	}
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "pricetrail-backend",
		"version": "1.0.0",
	})
}

// session returns the session of the current request, creating it if needed
func (h *Handler) session(c *gin.Context) *session.Session {
	return h.sessions.Get(c.Request.Context(), c.GetString(sessionIDKey))
}

// existingSession returns the session only when the client named one.
// Read-only requests without an id never create session state.
func (h *Handler) existingSession(c *gin.Context) (*session.Session, bool) {
	if !c.GetBool(sessionProvidedKey) {
		return nil, false
	}
	return h.session(c), true
}

// requirePrices answers 501 when no price service is wired
func (h *Handler) requirePrices(c *gin.Context) bool {
	if h.prices == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "price service not configured"})
		return false
	}
	return true
}

// Search handles POST /api/v1/searches
func (h *Handler) Search(c *gin.Context) {
	if !h.requirePrices(c) {
		return
	}

	var req domain.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	req.Site = strings.TrimSpace(req.Site)
	if err := h.prices.Validate(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	sess := h.session(c)
	sess.StartLoading(ctx, req.Site)

	outcome, err := h.prices.Search(ctx, &req)
	if outcome == nil {
		status, message := searchFailure(err)
		sess.Fail(ctx, message)
		c.JSON(status, gin.H{"error": message})
		return
	}
	if err != nil {
		// Store failures stay out of the response; the history shown may be stale.
		log.Printf("[Handler] search on %s stored with errors: %v", req.Site, err)
	}

	sess.Complete(ctx, outcome.Results, outcome.History)
	st := sess.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"results": nonNil(st.Results),
		"history": nonNil(st.History),
	})
}

// searchFailure maps a failed search to a status code and a user-facing message
func searchFailure(err error) (int, string) {
	var searchErr *crawler.SearchError
	switch {
	case errors.As(err, &searchErr):
		return http.StatusBadGateway, searchErr.Message
	case errors.Is(err, domain.ErrSearchFailed):
		return http.StatusBadGateway, crawler.NoResultsMessage
	case errors.Is(err, domain.ErrInvalidRequest), errors.Is(err, domain.ErrUnknownSite):
		return http.StatusBadRequest, err.Error()
	default:
		log.Printf("[Handler] unexpected search error: %v", err)
		return http.StatusInternalServerError, "internal error"
	}
}

// History handles GET /api/v1/prices/:site
func (h *Handler) History(c *gin.Context) {
	if !h.requirePrices(c) {
		return
	}

	history, ok := h.loadHistory(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, history)
}

// Chart handles GET /api/v1/prices/:site/chart
func (h *Handler) Chart(c *gin.Context) {
	if !h.requirePrices(c) {
		return
	}

	history, ok := h.loadHistory(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, usecase.DailyLowest(history))
}

// loadHistory reads the site history and mirrors it into the session.
// Store failures fall back to the history the session already shows.
func (h *Handler) loadHistory(c *gin.Context) ([]domain.PriceRecord, bool) {
	site := c.Param("site")
	ctx := c.Request.Context()
	sess, tracked := h.existingSession(c)

	history, err := h.prices.History(ctx, site)
	switch {
	case err == nil:
		if tracked {
			sess.SetHistory(ctx, site, history)
		}
		return history, true
	case errors.Is(err, domain.ErrUnknownSite):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return nil, false
	default:
		log.Printf("[Handler] loading history of %s failed: %v", site, err)
		if tracked {
			if st := sess.Snapshot(); st.Site == site {
				return nonNil(st.History), true
			}
		}
		return []domain.PriceRecord{}, true
	}
}

// Export handles GET /api/v1/prices/:site/export
func (h *Handler) Export(c *gin.Context) {
	if !h.requirePrices(c) {
		return
	}

	site := c.Param("site")
	history, err := h.prices.History(c.Request.Context(), site)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownSite) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		log.Printf("[Handler] export of %s failed: %v", site, err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "price history unavailable"})
		return
	}

	var buf bytes.Buffer
	if err := export.WriteHistoryXLSX(&buf, site, history, usecase.DailyLowest(history)); err != nil {
		log.Printf("[Handler] building workbook for %s failed: %v", site, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "export failed"})
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s-prices.xlsx"`, site))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// GetSession handles GET /api/v1/session
func (h *Handler) GetSession(c *gin.Context) {
	sess, tracked := h.existingSession(c)
	if !tracked {
		c.JSON(http.StatusOK, domain.SessionState{})
		return
	}
	c.JSON(http.StatusOK, sess.Snapshot())
}

// ResetSession handles DELETE /api/v1/session
func (h *Handler) ResetSession(c *gin.Context) {
	sess, tracked := h.existingSession(c)
	if !tracked {
		c.Status(http.StatusNoContent)
		return
	}
	if err := sess.Reset(c.Request.Context()); err != nil {
		log.Printf("[Handler] resetting session %s failed: %v", c.GetString(sessionIDKey), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to reset session"})
		return
	}
	c.Status(http.StatusNoContent)
}

func nonNil(records []domain.PriceRecord) []domain.PriceRecord {
	if records == nil {
		return []domain.PriceRecord{}
	}
	return records
}
