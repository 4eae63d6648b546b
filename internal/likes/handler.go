package likes

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"postcardhub/internal/auth"
	"postcardhub/internal/live"
)

const sessionHeader = "X-Session-Key"

type Handler struct {
	Repo *Repo
	Hub  *live.Hub
}

func NewHandler(repo *Repo, hub *live.Hub) *Handler {
	return &Handler{Repo: repo, Hub: hub}
}

// RegisterCardRoutes expects the /cards group (OptionalAuth applied there).
func (h *Handler) RegisterCardRoutes(rg *gin.RouterGroup) {
	rg.POST("/:number/like", h.toggle)
}

// RegisterUserRoutes expects the /users group (RequireAuth applied there).
func (h *Handler) RegisterUserRoutes(rg *gin.RouterGroup) {
	rg.GET("/likes", h.listMine)
}

func (h *Handler) toggle(c *gin.Context) {
	number := strings.TrimSpace(c.Param("number"))

	var userID, sessionKey string
	issuedKey := false

	if claims := auth.MustGetClaims(c); claims != nil {
		userID = claims.UserID
	} else {
		sessionKey = strings.TrimSpace(c.GetHeader(sessionHeader))
		if sessionKey == "" {
			sessionKey = uuid.NewString()
			issuedKey = true
		} else if uuid.Validate(sessionKey) != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session key"})
			return
		}
	}

	liked, count, err := h.Repo.Toggle(c.Request.Context(), number, userID, sessionKey)
	if err != nil {
		if errors.Is(err, ErrCardNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "like failed"})
		return
	}

	if h.Hub != nil {
		evType := live.EventCardLike
		if !liked {
			evType = live.EventCardUnlike
		}
		ev := live.CatalogEvent{
			Type:       evType,
			Card:       number,
			UserID:     userID,
			LikesCount: count,
			At:         time.Now().UTC(),
		}
		go h.Hub.BroadcastJSON(ev)
	}

	resp := gin.H{"liked": liked, "likes_count": count}
	if issuedKey {
		resp["session_key"] = sessionKey
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) listMine(c *gin.Context) {
	claims := auth.MustGetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	limit := parseInt(c.Query("limit"), 50)
	offset := parseInt(c.Query("offset"), 0)

	items, total, err := h.Repo.ListByUser(c.Request.Context(), claims.UserID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total":  total,
		"limit":  limit,
		"offset": offset,
		"items":  items,
	})
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
