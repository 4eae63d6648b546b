package auth

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/mattn/go-sqlite3"

	"postcardhub/pkg/database"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// one connection, or every pooled conn sees its own empty memory db
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`PRAGMA foreign_keys = ON;`); err != nil {
		t.Fatalf("pragma: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testTokens() TokenService {
	return TokenService{
		Secret:   []byte("test-secret"),
		Issuer:   "postcardhub-test",
		Duration: time.Hour,
	}
}

func seedUser(t *testing.T, db *sql.DB, id, category string) *User {
	t.Helper()
	_, err := db.Exec(`
		INSERT INTO users (id, username, email, password_hash, category)
		VALUES (?, ?, ?, 'x', ?)
	`, id, "user-"+id, id+"@example.com", category)
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return &User{ID: id, Username: "user-" + id, Email: id + "@example.com", Category: category}
}

func guardedRouter(db *sql.DB) *gin.Engine {
	gin.SetMode(gin.TestMode)
	tokens := testTokens()
	repo := NewRepo(db)

	router := gin.New()
	router.GET("/ping", RequireAuth(tokens, repo), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": MustGetClaims(c).UserID})
	})
	router.GET("/viewer", OptionalAuth(tokens, repo), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"category": ViewerCategory(c)})
	})
	router.GET("/admin-ping", RequireAuth(tokens, repo), RequireCategory(CategoryAdmin), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return router
}

func errBody(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body["error"]
}

func TestRequireAuthMissingHeader(t *testing.T) {
	router := guardedRouter(testDB(t))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	if got := errBody(t, w); got != "missing bearer token" {
		t.Errorf("error = %q, want %q", got, "missing bearer token")
	}
}

func TestRequireAuthMalformedToken(t *testing.T) {
	router := guardedRouter(testDB(t))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Authorization", "Bearer not.a.token")
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	if got := errBody(t, w); got != "invalid token" {
		t.Errorf("error = %q, want %q", got, "invalid token")
	}
}

func TestRequireAuthAcceptsCurrentToken(t *testing.T) {
	db := testDB(t)
	router := guardedRouter(db)
	u := seedUser(t, db, "u1", CategoryMember)

	token, _, err := testTokens().Sign(u)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%s)", w.Code, w.Body.String())
	}
}

func TestRequireAuthRejectsStaleTokenVersion(t *testing.T) {
	db := testDB(t)
	router := guardedRouter(db)
	u := seedUser(t, db, "u1", CategoryMember)

	token, _, err := testTokens().Sign(u)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if err := NewRepo(db).BumpTokenVersion(context.Background(), u.ID); err != nil {
		t.Fatalf("bump: %v", err)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401 after token version bump", w.Code)
	}
}

func TestOptionalAuthNeverRejects(t *testing.T) {
	db := testDB(t)
	router := guardedRouter(db)
	u := seedUser(t, db, "u1", CategoryPremium)

	viewer := func(authorization string) (int, string) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/viewer", nil)
		if authorization != "" {
			req.Header.Set("Authorization", authorization)
		}
		router.ServeHTTP(w, req)
		var body map[string]string
		json.Unmarshal(w.Body.Bytes(), &body)
		return w.Code, body["category"]
	}

	if code, cat := viewer(""); code != http.StatusOK || cat != "basic" {
		t.Errorf("anonymous = (%d, %q), want (200, basic)", code, cat)
	}
	if code, cat := viewer("Bearer garbage"); code != http.StatusOK || cat != "basic" {
		t.Errorf("garbage token = (%d, %q), want (200, basic)", code, cat)
	}

	token, _, err := testTokens().Sign(u)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if code, cat := viewer("Bearer " + token); code != http.StatusOK || cat != "premium" {
		t.Errorf("premium token = (%d, %q), want (200, premium)", code, cat)
	}
}

func TestRequireCategoryBlocksLowerCategories(t *testing.T) {
	db := testDB(t)
	router := guardedRouter(db)

	member := seedUser(t, db, "m1", CategoryMember)
	admin := seedUser(t, db, "a1", CategoryAdmin)

	hit := func(u *User) *httptest.ResponseRecorder {
		token, _, err := testTokens().Sign(u)
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/admin-ping", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		router.ServeHTTP(w, req)
		return w
	}

	if w := hit(member); w.Code != http.StatusForbidden {
		t.Errorf("member status = %d, want 403", w.Code)
	} else if got := errBody(t, w); got != "insufficient category" {
		t.Errorf("member error = %q, want %q", got, "insufficient category")
	}
	if w := hit(admin); w.Code != http.StatusOK {
		t.Errorf("admin status = %d, want 200", w.Code)
	}
}
