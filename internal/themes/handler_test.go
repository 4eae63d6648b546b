package themes

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"postcardhub/internal/auth"
)

func testTokens() auth.TokenService {
	return auth.TokenService{
		Secret:   []byte("test-secret"),
		Issuer:   "postcardhub-test",
		Duration: time.Hour,
	}
}

func testRouter(t *testing.T, db *sql.DB) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	router := gin.New()
	tokens := testTokens()
	authRepo := auth.NewRepo(db)
	h := NewHandler(NewRepo(db))

	h.RegisterRoutes(router.Group("/themes"))

	admin := router.Group("/admin")
	admin.Use(auth.RequireAuth(tokens, authRepo), auth.RequireCategory(auth.CategoryAdmin))
	h.RegisterAdminRoutes(admin)
	return router
}

func bearerFor(t *testing.T, db *sql.DB, id, category string) string {
	t.Helper()
	_, err := db.Exec(`
		INSERT INTO users (id, username, email, password_hash, category)
		VALUES (?, ?, ?, 'x', ?)
	`, id, "user-"+id, id+"@example.com", category)
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	token, _, err := testTokens().Sign(&auth.User{ID: id, Username: "user-" + id, Category: category})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return "Bearer " + token
}

func TestAdminAssignRequiresAdminCategory(t *testing.T) {
	db := testDB(t)
	seedCard(t, db, "000001")
	router := testRouter(t, db)
	memberBearer := bearerFor(t, db, "m1", auth.CategoryMember)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/admin/themes/paris/cards/000001", nil)
	req.Header.Set("Authorization", memberBearer)
	router.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Errorf("member assign status = %d, want 403", w.Code)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPut, "/admin/themes/paris/cards/000001", nil)
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("anonymous assign status = %d, want 401", w.Code)
	}
}

func TestAdminAssignAndBrowseTheme(t *testing.T) {
	db := testDB(t)
	seedCard(t, db, "000001")
	router := testRouter(t, db)
	adminBearer := bearerFor(t, db, "a1", auth.CategoryAdmin)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/admin/themes/sud_ouest/cards/000001", nil)
	req.Header.Set("Authorization", adminBearer)
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("assign status = %d, body %s", w.Code, w.Body.String())
	}

	// the auto-created theme shows in the public listing
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/themes", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	var list struct {
		Items []struct {
			Name        string `json:"name"`
			DisplayName string `json:"display_name"`
			CardCount   int    `json:"card_count"`
		} `json:"items"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(list.Items) != 1 {
		t.Fatalf("themes = %d, want 1", len(list.Items))
	}
	if list.Items[0].DisplayName != "Sud Ouest" {
		t.Errorf("auto display name = %q, want %q", list.Items[0].DisplayName, "Sud Ouest")
	}
	if list.Items[0].CardCount != 1 {
		t.Errorf("card count = %d, want 1", list.Items[0].CardCount)
	}

	// and its card page lists the card
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/themes/sud_ouest/cards", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("cards status = %d", w.Code)
	}
	var cards struct {
		Total int `json:"total"`
		Items []struct {
			Number string `json:"number"`
		} `json:"items"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &cards); err != nil {
		t.Fatalf("unmarshal cards: %v", err)
	}
	if cards.Total != 1 || len(cards.Items) != 1 || cards.Items[0].Number != "000001" {
		t.Errorf("theme cards = %+v, want just 000001", cards)
	}
}

func TestThemeCardsNotFound(t *testing.T) {
	db := testDB(t)
	router := testRouter(t, db)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/themes/inconnu/cards", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestAdminRemoveMembership(t *testing.T) {
	db := testDB(t)
	seedCard(t, db, "000001")
	router := testRouter(t, db)
	adminBearer := bearerFor(t, db, "a1", auth.CategoryAdmin)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/admin/themes/paris/cards/000001", nil)
	req.Header.Set("Authorization", adminBearer)
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("assign status = %d", w.Code)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodDelete, "/admin/themes/paris/cards/000001", nil)
	req.Header.Set("Authorization", adminBearer)
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("remove status = %d", w.Code)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodDelete, "/admin/themes/paris/cards/000001", nil)
	req.Header.Set("Authorization", adminBearer)
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("second remove status = %d, want 404", w.Code)
	}
}
