package themes

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"postcardhub/pkg/models"
)

type Handler struct {
	Repo *Repo
}

func NewHandler(repo *Repo) *Handler {
	return &Handler{Repo: repo}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.list)
	rg.GET("/:name/cards", h.cards)
}

// RegisterAdminRoutes expects the guarded /admin group.
func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	rg.PUT("/themes/:name/cards/:number", h.assign)
	rg.DELETE("/themes/:name/cards/:number", h.remove)
}

func (h *Handler) list(c *gin.Context) {
	items, err := h.Repo.ListThemes(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *Handler) cards(c *gin.Context) {
	name := strings.ToLower(strings.TrimSpace(c.Param("name")))

	th, err := h.Repo.GetTheme(c.Request.Context(), name)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get failed"})
		return
	}
	if th == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	limit := parseInt(c.Query("limit"), 50)
	offset := parseInt(c.Query("offset"), 0)

	items, total, err := h.Repo.ListCards(c.Request.Context(), name, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"theme":  th,
		"total":  total,
		"limit":  limit,
		"offset": offset,
		"items":  items,
	})
}

type assignReq struct {
	DisplayName string `json:"display_name"`
	SortOrder   int    `json:"sort_order"`
}

// frenchTitle renders display names for themes created on first assign.
var frenchTitle = cases.Title(language.French)

func (h *Handler) assign(c *gin.Context) {
	name := strings.ToLower(strings.TrimSpace(c.Param("name")))
	number := strings.TrimSpace(c.Param("number"))
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "theme name required"})
		return
	}

	var req assignReq
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
	}
	if strings.TrimSpace(req.DisplayName) == "" {
		req.DisplayName = frenchTitle.String(strings.ReplaceAll(name, "_", " "))
	}

	th := models.Theme{Name: name, DisplayName: req.DisplayName, SortOrder: req.SortOrder}
	if err := h.Repo.AssignCard(c.Request.Context(), th, number); err != nil {
		if errors.Is(err, ErrCardNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "card not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "assign failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "assigned", "theme": name, "card": number})
}

func (h *Handler) remove(c *gin.Context) {
	name := strings.ToLower(strings.TrimSpace(c.Param("name")))
	number := strings.TrimSpace(c.Param("number"))

	removed, err := h.Repo.RemoveCard(c.Request.Context(), name, number)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "remove failed"})
		return
	}
	if !removed {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "removed", "theme": name, "card": number})
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
