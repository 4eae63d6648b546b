package auth

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func authRouter(db *sql.DB) *gin.Engine {
	gin.SetMode(gin.TestMode)
	tokens := testTokens()
	repo := NewRepo(db)
	h := NewHandler(repo, tokens)

	router := gin.New()
	h.RegisterRoutes(router.Group("/auth"))

	admin := router.Group("/admin")
	admin.Use(RequireAuth(tokens, repo), RequireCategory(CategoryAdmin))
	h.RegisterAdminRoutes(admin)
	return router
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, payload any, bearer string) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			t.Fatalf("encode payload: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", bearer)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return body
}

func TestRegisterValidation(t *testing.T) {
	router := authRouter(testDB(t))

	cases := []struct {
		name    string
		payload gin.H
	}{
		{"short username", gin.H{"username": "ab", "email": "ab@example.com", "password": "password1"}},
		{"bad email", gin.H{"username": "alice", "email": "not-an-email", "password": "password1"}},
		{"short password", gin.H{"username": "alice", "email": "alice@example.com", "password": "short"}},
	}
	for _, tc := range cases {
		if w := doJSON(t, router, http.MethodPost, "/auth/register", tc.payload, ""); w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", tc.name, w.Code)
		}
	}
}

func TestRegisterAndLoginFlow(t *testing.T) {
	router := authRouter(testDB(t))

	w := doJSON(t, router, http.MethodPost, "/auth/register", gin.H{
		"username": "alice", "email": "Alice@Example.com", "password": "password1",
	}, "")
	if w.Code != http.StatusCreated {
		t.Fatalf("register status = %d (%s)", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	if body["token"] == "" || body["token"] == nil {
		t.Error("register returned no token")
	}
	user, _ := body["user"].(map[string]any)
	if user["category"] != "basic" {
		t.Errorf("new user category = %v, want basic", user["category"])
	}
	if user["email"] != "alice@example.com" {
		t.Errorf("email = %v, want lowercased", user["email"])
	}

	// same email again
	w = doJSON(t, router, http.MethodPost, "/auth/register", gin.H{
		"username": "alice2", "email": "alice@example.com", "password": "password1",
	}, "")
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate email status = %d, want 409", w.Code)
	}

	// same username, fresh email
	w = doJSON(t, router, http.MethodPost, "/auth/register", gin.H{
		"username": "alice", "email": "other@example.com", "password": "password1",
	}, "")
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate username status = %d, want 409", w.Code)
	}

	w = doJSON(t, router, http.MethodPost, "/auth/login", gin.H{
		"email": "alice@example.com", "password": "password1",
	}, "")
	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d (%s)", w.Code, w.Body.String())
	}

	w = doJSON(t, router, http.MethodPost, "/auth/login", gin.H{
		"email": "alice@example.com", "password": "wrong-password",
	}, "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("bad password status = %d, want 401", w.Code)
	}
	w = doJSON(t, router, http.MethodPost, "/auth/login", gin.H{
		"email": "nobody@example.com", "password": "password1",
	}, "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("unknown email status = %d, want 401", w.Code)
	}
}

func registerFor(t *testing.T, router *gin.Engine, username, email, password string) (id, bearer string) {
	t.Helper()
	w := doJSON(t, router, http.MethodPost, "/auth/register", gin.H{
		"username": username, "email": email, "password": password,
	}, "")
	if w.Code != http.StatusCreated {
		t.Fatalf("register status = %d (%s)", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	user, _ := body["user"].(map[string]any)
	token, _ := body["token"].(string)
	uid, _ := user["id"].(string)
	return uid, "Bearer " + token
}

func TestChangePasswordRotatesToken(t *testing.T) {
	router := authRouter(testDB(t))
	_, bearer := registerFor(t, router, "alice", "alice@example.com", "password1")

	w := doJSON(t, router, http.MethodPost, "/auth/change-password", gin.H{
		"old_password": "password1", "new_password": "password2",
	}, bearer)
	if w.Code != http.StatusOK {
		t.Fatalf("change-password status = %d (%s)", w.Code, w.Body.String())
	}

	// the old token carries the previous version
	w = doJSON(t, router, http.MethodPost, "/auth/change-password", gin.H{
		"old_password": "password2", "new_password": "password3",
	}, bearer)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("stale token status = %d, want 401", w.Code)
	}

	w = doJSON(t, router, http.MethodPost, "/auth/login", gin.H{
		"email": "alice@example.com", "password": "password2",
	}, "")
	if w.Code != http.StatusOK {
		t.Errorf("login with new password status = %d, want 200", w.Code)
	}
	w = doJSON(t, router, http.MethodPost, "/auth/login", gin.H{
		"email": "alice@example.com", "password": "password1",
	}, "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("login with old password status = %d, want 401", w.Code)
	}
}

func TestLogoutInvalidatesToken(t *testing.T) {
	router := authRouter(testDB(t))
	_, bearer := registerFor(t, router, "alice", "alice@example.com", "password1")

	if w := doJSON(t, router, http.MethodPost, "/auth/logout", nil, bearer); w.Code != http.StatusOK {
		t.Fatalf("logout status = %d (%s)", w.Code, w.Body.String())
	}
	if w := doJSON(t, router, http.MethodPost, "/auth/logout", nil, bearer); w.Code != http.StatusUnauthorized {
		t.Errorf("token after logout status = %d, want 401", w.Code)
	}
}

func TestAdminSetsCategory(t *testing.T) {
	db := testDB(t)
	router := authRouter(db)

	admin := seedUser(t, db, "adm", CategoryAdmin)
	adminToken, _, err := testTokens().Sign(admin)
	if err != nil {
		t.Fatalf("sign admin: %v", err)
	}
	adminBearer := "Bearer " + adminToken

	targetID, targetBearer := registerFor(t, router, "bob", "bob@example.com", "password1")

	w := doJSON(t, router, http.MethodPut, "/admin/users/"+targetID+"/category", gin.H{
		"category": "premium",
	}, adminBearer)
	if w.Code != http.StatusOK {
		t.Fatalf("set category status = %d (%s)", w.Code, w.Body.String())
	}

	// the category change forces a re-login
	w = doJSON(t, router, http.MethodPost, "/auth/logout", nil, targetBearer)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("old target token status = %d, want 401", w.Code)
	}

	w = doJSON(t, router, http.MethodPost, "/auth/login", gin.H{
		"email": "bob@example.com", "password": "password1",
	}, "")
	if w.Code != http.StatusOK {
		t.Fatalf("target re-login status = %d", w.Code)
	}
	body := decodeBody(t, w)
	user, _ := body["user"].(map[string]any)
	if user["category"] != "premium" {
		t.Errorf("category after change = %v, want premium", user["category"])
	}

	if w := doJSON(t, router, http.MethodPut, "/admin/users/"+targetID+"/category", gin.H{
		"category": "gold",
	}, adminBearer); w.Code != http.StatusBadRequest {
		t.Errorf("invalid category status = %d, want 400", w.Code)
	}
	if w := doJSON(t, router, http.MethodPut, "/admin/users/nope/category", gin.H{
		"category": "member",
	}, adminBearer); w.Code != http.StatusNotFound {
		t.Errorf("unknown user status = %d, want 404", w.Code)
	}
}
