package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/atelierhq/backstage/internal/entity"
	apperrors "github.com/atelierhq/backstage/internal/errors"
	"github.com/atelierhq/backstage/internal/schema"
)

// ContentHandler serves the public, read-only site endpoints. Only
// published content leaves this handler; drafts and hidden columns
// stay behind the admin API.
type ContentHandler struct {
	store *entity.Store
	log   zerolog.Logger
}

func NewContentHandler(store *entity.Store, log zerolog.Logger) *ContentHandler {
	return &ContentHandler{
		store: store,
		log:   log.With().Str("component", "api.content").Logger(),
	}
}

// Health reports liveness.
// GET /api/health
func (h *ContentHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "backstage"})
}

// ListPosts returns published posts, newest first.
// GET /api/content/posts
func (h *ContentHandler) ListPosts(c *gin.Context) {
	rows, err := h.store.List(c.Request.Context(), schema.TablePosts, entity.ListOptions{
		Filters: map[string]any{"published": true},
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"posts": rows, "count": len(rows)})
}

// GetPost returns a single published post by slug.
// GET /api/content/posts/:slug
func (h *ContentHandler) GetPost(c *gin.Context) {
	rows, err := h.store.List(c.Request.Context(), schema.TablePosts, entity.ListOptions{
		Filters: map[string]any{"slug": c.Param("slug"), "published": true},
		Limit:   1,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	if len(rows) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "NOT_FOUND", "message": "post not found"})
		return
	}
	c.JSON(http.StatusOK, rows[0])
}

// ListTeam returns the team roster in display order.
// GET /api/content/team
func (h *ContentHandler) ListTeam(c *gin.Context) {
	rows, err := h.store.List(c.Request.Context(), schema.TableTeamMembers, entity.ListOptions{
		SortField: "display_order",
		Ascending: true,
		Filters:   map[string]any{"is_active": true},
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"team": rows, "count": len(rows)})
}

func (h *ContentHandler) fail(c *gin.Context, err error) {
	status, body := apperrors.ToHTTPError(err)
	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	}
	c.JSON(status, body)
}
