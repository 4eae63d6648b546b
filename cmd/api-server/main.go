package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"postcardhub/internal/analytics"
	"postcardhub/internal/auth"
	"postcardhub/internal/comments"
	"postcardhub/internal/contact"
	"postcardhub/internal/likes"
	"postcardhub/internal/live"
	"postcardhub/internal/postcard"
	"postcardhub/internal/themes"
	"postcardhub/pkg/database"
	"postcardhub/pkg/utils"
)

func main() {
	// optional .env for local development
	_ = godotenv.Load()

	cfg := database.DefaultConfig()
	db := database.MustOpen(cfg)
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("db migrate failed: %v", err)
	}

	srvCfg := utils.LoadServerConfig()

	router := gin.Default()

	// Optional: avoid “trusted all proxies” warning
	_ = router.SetTrustedProxies([]string{"127.0.0.1"})

	// Start the TCP live feed first (so you notice binding errors early)
	hub := live.NewHub()
	router.GET("/ws", live.WSHandler(hub))
	tcpSrv := live.NewServer(srvCfg.TCPAddr, hub)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "db": cfg.Path})
	})

	router.GET("/ready", func(c *gin.Context) {
		stats := hub.Stats()
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := db.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":      "not_ready",
				"db_error":    err.Error(),
				"tcp_clients": stats.TCPClients,
				"ws_clients":  stats.WSClients,
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":      "ready",
			"db":          "ok",
			"tcp_clients": stats.TCPClients,
			"ws_clients":  stats.WSClients,
		})
	})

	router.GET("/debug", func(c *gin.Context) {
		stats := hub.Stats()
		c.JSON(http.StatusOK, gin.H{
			"db":          cfg.Path,
			"tcp_clients": stats.TCPClients,
			"ws_clients":  stats.WSClients,
		})
	})

	// Auth
	authCfg := utils.LoadAuthConfig()
	tokenSvc := auth.TokenService{
		Secret:   []byte(authCfg.JWTSecret),
		Issuer:   authCfg.JWTIssuer,
		Duration: authCfg.JWTDuration,
	}
	authRepo := auth.NewRepo(db)
	authHandler := auth.NewHandler(authRepo, tokenSvc)
	authHandler.RegisterRoutes(router.Group("/auth"))

	// Cards (public, viewer category upgrades with a token)
	searchLog := analytics.NewRepo(db)
	cardRepo := postcard.NewRepo(db)
	cardHandler := postcard.NewHandler(cardRepo, searchLog)

	cards := router.Group("/cards")
	cards.Use(auth.OptionalAuth(tokenSvc, authRepo))
	cardHandler.RegisterRoutes(cards)

	likesHandler := likes.NewHandler(likes.NewRepo(db), hub)
	likesHandler.RegisterCardRoutes(cards)

	commentsHandler := comments.NewHandler(comments.NewRepo(db), hub)
	commentsHandler.RegisterCardRoutes(cards)

	// Themes (public)
	themesHandler := themes.NewHandler(themes.NewRepo(db))
	themesHandler.RegisterRoutes(router.Group("/themes"))

	// Contact (public form)
	contactHandler := contact.NewHandler(contact.NewRepo(db))
	contactHandler.RegisterRoutes(router.Group(""))

	// Protected routes
	protected := router.Group("/users")
	protected.Use(auth.RequireAuth(tokenSvc, authRepo))

	protected.GET("/me", func(c *gin.Context) {
		claims := auth.MustGetClaims(c)
		c.JSON(http.StatusOK, gin.H{
			"id":       claims.UserID,
			"username": claims.Username,
			"email":    claims.Email,
			"category": claims.Category,
		})
	})

	likesHandler.RegisterUserRoutes(protected)

	// Admin surface
	admin := router.Group("/admin")
	admin.Use(auth.RequireAuth(tokenSvc, authRepo), auth.RequireCategory(auth.CategoryAdmin))
	authHandler.RegisterAdminRoutes(admin)
	analytics.NewHandler(searchLog).RegisterAdminRoutes(admin)
	themesHandler.RegisterAdminRoutes(admin)
	contactHandler.RegisterAdminRoutes(admin)

	httpSrv := &http.Server{
		Addr:    srvCfg.HTTPAddr,
		Handler: router,
	}

	errCh := make(chan error, 2)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := tcpSrv.Run(); err != nil {
			errCh <- err
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Printf("HTTP API server listening on %s", srvCfg.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("shutdown signal received: %s", sig)
	case err := <-errCh:
		log.Printf("server error: %v", err)
	}

	log.Println("shutting down servers")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown error: %v", err)
	}
	if err := tcpSrv.Close(); err != nil {
		log.Printf("tcp shutdown error: %v", err)
	}

	wg.Wait()
	log.Println("servers stopped")
}
