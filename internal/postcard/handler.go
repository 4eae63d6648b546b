package postcard

import (
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"postcardhub/internal/analytics"
	"postcardhub/internal/auth"
	"postcardhub/internal/ingest"
)

type Handler struct {
	Repo     *Repo
	Searches *analytics.Repo // nil disables search logging
}

func NewHandler(repo *Repo, searches *analytics.Repo) *Handler {
	return &Handler{Repo: repo, Searches: searches}
}

// RegisterRoutes expects the /cards group. Apply OptionalAuth on the group
// so the detail handler can resolve the viewer's category.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.list)
	rg.GET("/:number", h.getByNumber)
	rg.POST("/:number/zoom", h.zoom)
}

func (h *Handler) list(c *gin.Context) {
	q := ListQuery{
		Q:      c.Query("q"),
		Rarity: c.Query("rarity"),
		Theme:  c.Query("theme"),
		Limit:  parseInt(c.Query("limit"), 20),
		Offset: parseInt(c.Query("offset"), 0),
	}

	total, err := h.Repo.Count(c.Request.Context(), q)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "count failed"})
		return
	}

	items, err := h.Repo.List(c.Request.Context(), q)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}

	if kw := strings.TrimSpace(q.Q); kw != "" && h.Searches != nil {
		if err := h.Searches.RecordSearch(c.Request.Context(), kw, total); err != nil {
			log.Printf("[cards] search log error: %v", err)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"total":  total,
		"limit":  q.Limit,
		"offset": q.Offset,
		"items":  items,
	})
}

func (h *Handler) getByNumber(c *gin.Context) {
	number := strings.TrimSpace(c.Param("number"))
	p, err := h.Repo.GetByNumber(c.Request.Context(), number)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get failed"})
		return
	}
	if p == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	if err := h.Repo.IncrementViews(c.Request.Context(), p.Number); err != nil {
		log.Printf("[cards] view counter error: %v", err)
	}

	if !auth.CanViewRarity(auth.ViewerCategory(c), p.Rarity) {
		c.JSON(http.StatusOK, gin.H{
			"restricted": true,
			"number":     p.Number,
			"rarity":     p.Rarity,
			"title":      ingest.DefaultTitleLabel + " " + p.Number,
		})
		return
	}

	c.JSON(http.StatusOK, p)
}

func (h *Handler) zoom(c *gin.Context) {
	number := strings.TrimSpace(c.Param("number"))
	p, err := h.Repo.GetByNumber(c.Request.Context(), number)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get failed"})
		return
	}
	if p == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	if err := h.Repo.IncrementZoom(c.Request.Context(), p.Number); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "zoom failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok", "zoom_count": p.ZoomCount + 1})
}

func parseInt(s string, def int) int {
	if strings.TrimSpace(s) == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
