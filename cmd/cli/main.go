package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"postcardhub/pkg/models"
)

const defaultBaseURL = "http://localhost:8080"

type tokenData struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at,omitempty"`
}

type authResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
	User      struct {
		Username string `json:"username"`
		Category string `json:"category"`
	} `json:"user"`
}

type cardListResponse struct {
	Total  int               `json:"total"`
	Limit  int               `json:"limit"`
	Offset int               `json:"offset"`
	Items  []models.Postcard `json:"items"`
}

type likeResponse struct {
	Liked      bool `json:"liked"`
	LikesCount int  `json:"likes_count"`
}

func main() {
	global := flag.NewFlagSet("postcardhub", flag.ExitOnError)
	baseURL := global.String("api", defaultBaseURL, "API base URL")
	tokenPath := global.String("token", defaultTokenPath(), "token file path")
	if err := global.Parse(os.Args[1:]); err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	args := global.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	ctx := context.Background()
	cmd := args[0]
	sub := ""
	if len(args) > 1 {
		sub = args[1]
	}

	client := &http.Client{Timeout: 15 * time.Second}

	switch cmd {
	case "auth":
		handleAuth(ctx, client, *baseURL, *tokenPath, sub, args[2:])
	case "cards":
		handleCards(ctx, client, *baseURL, sub, args[2:])
	case "likes":
		handleLikes(ctx, client, *baseURL, *tokenPath, sub, args[2:])
	case "live":
		handleLive(*baseURL, sub, args[2:])
	case "export":
		handleExport(ctx, client, *baseURL, sub, args[2:])
	default:
		printUsage()
		os.Exit(1)
	}
}

func handleAuth(ctx context.Context, client *http.Client, baseURL, tokenPath, sub string, args []string) {
	switch sub {
	case "login":
		fs := flag.NewFlagSet("auth login", flag.ExitOnError)
		email := fs.String("email", "", "email address")
		password := fs.String("password", "", "password")
		_ = fs.Parse(args)
		if *email == "" || *password == "" {
			log.Fatal("email and password are required")
		}

		resp := authenticate(ctx, client, "login", baseURL+"/auth/login", tokenPath,
			map[string]string{"email": *email, "password": *password})
		fmt.Printf("✅ logged in as %s (%s)\n", resp.User.Username, resp.User.Category)
	case "register":
		fs := flag.NewFlagSet("auth register", flag.ExitOnError)
		username := fs.String("username", "", "username")
		email := fs.String("email", "", "email address")
		password := fs.String("password", "", "password")
		_ = fs.Parse(args)
		if *username == "" || *email == "" || *password == "" {
			log.Fatal("username, email, and password are required")
		}

		resp := authenticate(ctx, client, "register", baseURL+"/auth/register", tokenPath,
			map[string]string{"username": *username, "email": *email, "password": *password})
		fmt.Printf("✅ registered and logged in as %s\n", resp.User.Username)
	case "logout":
		// bump the token version server side, then drop the file
		if td, err := readToken(tokenPath); err == nil && td.Token != "" {
			_ = doJSON(ctx, client, http.MethodPost, baseURL+"/auth/logout", td.Token, nil, nil)
		}
		if err := clearToken(tokenPath); err != nil {
			log.Fatalf("logout failed: %v", err)
		}
		fmt.Println("✅ logged out")
	default:
		log.Fatal("usage: postcardhub auth <login|register|logout>")
	}
}

func authenticate(ctx context.Context, client *http.Client, verb, endpoint, tokenPath string, payload map[string]string) authResponse {
	var resp authResponse
	if err := doJSON(ctx, client, http.MethodPost, endpoint, "", payload, &resp); err != nil {
		log.Fatalf("%s failed: %v", verb, err)
	}
	if err := saveToken(tokenPath, resp.Token, resp.ExpiresAt); err != nil {
		log.Fatalf("save token: %v", err)
	}
	return resp
}

func handleCards(ctx context.Context, client *http.Client, baseURL, sub string, args []string) {
	switch sub {
	case "search":
		fs := flag.NewFlagSet("cards search", flag.ExitOnError)
		query := fs.String("q", "", "search query")
		rarity := fs.String("rarity", "", "rarity filter (common, rare, very_rare)")
		theme := fs.String("theme", "", "theme filter")
		limit := fs.Int("limit", 20, "page size")
		offset := fs.Int("offset", 0, "offset")
		_ = fs.Parse(args)

		u, err := url.Parse(baseURL + "/cards")
		if err != nil {
			log.Fatalf("invalid base url: %v", err)
		}
		qv := u.Query()
		if *query != "" {
			qv.Set("q", *query)
		}
		if *rarity != "" {
			qv.Set("rarity", *rarity)
		}
		if *theme != "" {
			qv.Set("theme", *theme)
		}
		qv.Set("limit", strconv.Itoa(*limit))
		qv.Set("offset", strconv.Itoa(*offset))
		u.RawQuery = qv.Encode()

		var resp cardListResponse
		if err := doJSON(ctx, client, http.MethodGet, u.String(), "", nil, &resp); err != nil {
			log.Fatalf("search failed: %v", err)
		}
		printJSON(resp)
	case "show":
		fs := flag.NewFlagSet("cards show", flag.ExitOnError)
		number := fs.String("number", "", "card number")
		_ = fs.Parse(args)
		if *number == "" {
			log.Fatal("card number is required")
		}

		var resp map[string]any
		if err := doJSON(ctx, client, http.MethodGet, baseURL+"/cards/"+url.PathEscape(*number), "", nil, &resp); err != nil {
			log.Fatalf("show failed: %v", err)
		}
		printJSON(resp)
	default:
		log.Fatal("usage: postcardhub cards <search|show>")
	}
}

func handleLikes(ctx context.Context, client *http.Client, baseURL, tokenPath, sub string, args []string) {
	token := mustToken(tokenPath)
	switch sub {
	case "add", "remove":
		fs := flag.NewFlagSet("likes "+sub, flag.ExitOnError)
		number := fs.String("number", "", "card number")
		_ = fs.Parse(args)
		if *number == "" {
			log.Fatal("card number is required")
		}

		want := sub == "add"
		resp, err := toggleLike(ctx, client, baseURL, token, *number)
		if err != nil {
			log.Fatalf("%s failed: %v", sub, err)
		}
		if resp.Liked != want {
			// the endpoint toggles; flip once more to land on the wanted state
			resp, err = toggleLike(ctx, client, baseURL, token, *number)
			if err != nil {
				log.Fatalf("%s failed: %v", sub, err)
			}
		}
		if resp.Liked {
			fmt.Printf("✅ liked %s (%d likes)\n", *number, resp.LikesCount)
		} else {
			fmt.Printf("✅ like removed from %s (%d likes)\n", *number, resp.LikesCount)
		}
	case "list":
		fs := flag.NewFlagSet("likes list", flag.ExitOnError)
		limit := fs.Int("limit", 50, "page size")
		offset := fs.Int("offset", 0, "offset")
		_ = fs.Parse(args)

		u, err := url.Parse(baseURL + "/users/likes")
		if err != nil {
			log.Fatalf("invalid base url: %v", err)
		}
		qv := u.Query()
		qv.Set("limit", strconv.Itoa(*limit))
		qv.Set("offset", strconv.Itoa(*offset))
		u.RawQuery = qv.Encode()

		var resp map[string]any
		if err := doJSON(ctx, client, http.MethodGet, u.String(), token, nil, &resp); err != nil {
			log.Fatalf("list failed: %v", err)
		}
		printJSON(resp)
	default:
		log.Fatal("usage: postcardhub likes <add|remove|list>")
	}
}

func toggleLike(ctx context.Context, client *http.Client, baseURL, token, number string) (likeResponse, error) {
	var resp likeResponse
	err := doJSON(ctx, client, http.MethodPost, baseURL+"/cards/"+url.PathEscape(number)+"/like", token, nil, &resp)
	return resp, err
}

func handleLive(baseURL, sub string, args []string) {
	switch sub {
	case "listen":
		fs := flag.NewFlagSet("live listen", flag.ExitOnError)
		addr := fs.String("addr", "127.0.0.1:7070", "TCP live feed address")
		pretty := fs.Bool("pretty", true, "pretty print JSON events")
		_ = fs.Parse(args)
		for {
			if err := runLiveTCP(*addr, *pretty); err != nil {
				log.Printf("[live] disconnected: %v", err)
			}
			time.Sleep(1 * time.Second)
		}
	case "subscribe":
		fs := flag.NewFlagSet("live subscribe", flag.ExitOnError)
		wsURL := fs.String("ws", "", "WebSocket URL (defaults to /ws on API host)")
		pretty := fs.Bool("pretty", true, "pretty print JSON events")
		_ = fs.Parse(args)

		endpoint := *wsURL
		if endpoint == "" {
			var err error
			endpoint, err = websocketURL(baseURL, "/ws")
			if err != nil {
				log.Fatalf("ws url: %v", err)
			}
		}
		if err := runWebSocket(endpoint, *pretty); err != nil {
			log.Fatalf("subscribe failed: %v", err)
		}
	default:
		log.Fatal("usage: postcardhub live <listen|subscribe>")
	}
}

func handleExport(ctx context.Context, client *http.Client, baseURL, sub string, args []string) {
	switch sub {
	case "json":
		fs := flag.NewFlagSet("export json", flag.ExitOnError)
		out := fs.String("out", "data/cards.json", "output JSON path")
		limit := fs.Int("limit", 500, "max cards to export")
		_ = fs.Parse(args)

		items, err := fetchCards(ctx, client, baseURL, *limit)
		if err != nil {
			log.Fatalf("export json failed: %v", err)
		}
		if err := writeJSON(*out, items); err != nil {
			log.Fatalf("write json failed: %v", err)
		}
		log.Printf("✅ exported %d cards to %s", len(items), *out)
	case "csv":
		fs := flag.NewFlagSet("export csv", flag.ExitOnError)
		out := fs.String("out", "data/cards.csv", "output CSV path")
		limit := fs.Int("limit", 500, "max cards to export")
		_ = fs.Parse(args)

		items, err := fetchCards(ctx, client, baseURL, *limit)
		if err != nil {
			log.Fatalf("export csv failed: %v", err)
		}
		if err := writeCSV(*out, items); err != nil {
			log.Fatalf("write csv failed: %v", err)
		}
		log.Printf("✅ exported %d cards to %s", len(items), *out)
	default:
		log.Fatal("usage: postcardhub export <json|csv>")
	}
}

func runLiveTCP(addr string, pretty bool) error {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()

	log.Printf("[live] connected to %s", addr)
	sc := bufio.NewScanner(conn)
	for sc.Scan() {
		printEvent(sc.Bytes(), pretty)
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return os.ErrClosed
}

func runWebSocket(wsURL string, pretty bool) error {
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	log.Printf("[live] connected to %s", wsURL)
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		printEvent(bytes.TrimSpace(msg), pretty)
	}
}

// printEvent renders one feed line, raw when pretty is off or the line
// is not JSON.
func printEvent(line []byte, pretty bool) {
	if pretty {
		var obj map[string]any
		if err := json.Unmarshal(line, &obj); err == nil {
			if b, err := json.MarshalIndent(obj, "", "  "); err == nil {
				fmt.Println(string(b))
				return
			}
		}
	}
	fmt.Println(string(line))
}

func fetchCards(ctx context.Context, client *http.Client, baseURL string, limit int) ([]models.Postcard, error) {
	if limit <= 0 {
		return nil, errors.New("limit must be > 0")
	}

	var out []models.Postcard
	offset := 0
	for len(out) < limit {
		pageSize := 50
		if remaining := limit - len(out); remaining < pageSize {
			pageSize = remaining
		}
		u, err := url.Parse(baseURL + "/cards")
		if err != nil {
			return nil, err
		}
		qv := u.Query()
		qv.Set("limit", strconv.Itoa(pageSize))
		qv.Set("offset", strconv.Itoa(offset))
		u.RawQuery = qv.Encode()

		var resp cardListResponse
		if err := doJSON(ctx, client, http.MethodGet, u.String(), "", nil, &resp); err != nil {
			return nil, err
		}
		if len(resp.Items) == 0 {
			break
		}
		out = append(out, resp.Items...)
		offset += len(resp.Items)
		if offset >= resp.Total {
			break
		}
	}

	return out, nil
}

func writeJSON(path string, items []models.Postcard) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

func writeCSV(path string, items []models.Postcard) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{
		"number", "title", "description", "keywords", "rarity", "views_count", "likes_count",
	}); err != nil {
		return err
	}
	for _, item := range items {
		if err := writer.Write([]string{
			item.Number,
			item.Title,
			item.Description,
			item.Keywords,
			item.Rarity,
			strconv.Itoa(item.ViewsCount),
			strconv.Itoa(item.LikesCount),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func doJSON(ctx context.Context, client *http.Client, method, endpoint, token string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s: %s (status %d)", method, endpoint, apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("%s %s failed: %s", method, endpoint, strings.TrimSpace(string(data)))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return err
	}
	return nil
}

func printJSON(v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Fatalf("json: %v", err)
	}
	fmt.Println(string(b))
}

func defaultTokenPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./.postcardhub-token.json"
	}
	return filepath.Join(home, ".postcardhub", "token.json")
}

func saveToken(path, token, expiresAt string) error {
	if token == "" {
		return errors.New("empty token")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(tokenData{Token: token, ExpiresAt: expiresAt}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func readToken(path string) (tokenData, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return tokenData{}, err
	}
	var td tokenData
	if err := json.Unmarshal(data, &td); err != nil {
		return tokenData{}, err
	}
	td.Token = strings.TrimSpace(td.Token)
	return td, nil
}

func mustToken(path string) string {
	td, err := readToken(path)
	if err != nil {
		log.Fatalf("token not found, please login: %v", err)
	}
	if td.Token == "" {
		log.Fatal("token empty, please login")
	}
	if td.ExpiresAt != "" {
		if exp, err := time.Parse(time.RFC3339, td.ExpiresAt); err == nil && time.Now().After(exp) {
			log.Fatal("token expired, please login again")
		}
	}
	return td.Token
}

func clearToken(path string) error {
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	return nil
}

func websocketURL(baseURL, path string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}
	scheme := "ws"
	if u.Scheme == "https" {
		scheme = "wss"
	}
	return (&url.URL{
		Scheme: scheme,
		Host:   u.Host,
		Path:   path,
	}).String(), nil
}

func printUsage() {
	fmt.Println("postcardhub <command> [subcommand] [flags]")
	fmt.Println("commands:")
	fmt.Println("  auth login|register|logout")
	fmt.Println("  cards search|show")
	fmt.Println("  likes add|remove|list")
	fmt.Println("  live listen|subscribe")
	fmt.Println("  export json|csv")
}
