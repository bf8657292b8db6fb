package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"gowalink/config"
	"gowalink/database"
	"gowalink/internal/credstore"
	"gowalink/internal/handler"
	"gowalink/internal/helper"
	customMiddleware "gowalink/internal/middleware"
	"gowalink/internal/model"
	"gowalink/internal/protocol"
	"gowalink/internal/service"
	"gowalink/internal/session"
	"gowalink/internal/ws"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

func main() {

	// Load .env (ignore error if absent, e.g. in production)
	_ = godotenv.Load()

	cfg := config.Load()

	if cfg.DBConnectionString == "" {
		log.Fatal("APP_DATABASE_URL is not set")
	}
	database.InitAppDB(cfg.DBConnectionString)

	// feature flags (WEBHOOK & WEBSOCKET)
	wsEnv := strings.ToLower(os.Getenv("ENABLE_WEBSOCKET_EVENTS"))
	webhookEnv := strings.ToLower(os.Getenv("ENABLE_WEBHOOK"))
	config.EnableWebsocketEvents = (wsEnv == "" || wsEnv == "true")
	config.EnableWebhook = (webhookEnv == "true")

	log.Printf("feature flags -> websocket_events: %v, webhook: %v",
		config.EnableWebsocketEvents, config.EnableWebhook)

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		log.Println("JWT_SECRET is not set")
	}
	service.InitAuthConfig(jwtSecret)

	// **************************
	// main wiring
	// **************************

	if len(os.Args) > 1 && os.Args[1] == "--createschema" {
		helper.InitCustomSchema()
	}

	creds := credstore.New(cfg.CredentialRoot)
	dialer := &protocol.WhatsmeowDialer{LogLevel: os.Getenv("PROTOCOL_LOG_LEVEL")}
	statusStore := model.NewSessionStatusStore()

	manager := session.NewManager(session.Config{
		ReconnectBaseDelay:  cfg.ReconnectBaseDelay,
		ReconnectMaxDelay:   cfg.ReconnectMaxDelay,
		ReconnectMaxRetries: cfg.ReconnectMaxRetries,
		ConnectRetryDelay:   cfg.ConnectRetryDelay,
		ConnectMaxRetries:   cfg.ConnectMaxRetries,
		TombstoneTTL:        cfg.TombstoneTTL,
	}, creds, dialer, statusStore)

	// WebSocket hub + event gateway
	hub := ws.NewHub()
	go hub.Run()

	var pub ws.RealtimePublisher
	if config.EnableWebsocketEvents {
		pub = hub
	}
	var hook *service.WebhookSender
	if config.EnableWebhook {
		hook = service.NewWebhookSender(cfg.WebhookURL, cfg.WebhookSecret)
	}
	ws.NewGateway(pub, hook).Attach(manager)

	// Resume sessions persisted by the previous run.
	log.Println("Restoring persisted sessions...")
	records, err := statusStore.ListLive()
	if err != nil {
		log.Printf("Warning: failed to list persisted sessions: %v", err)
	}
	for _, rec := range records {
		if _, err := manager.RestoreSession(rec.UserID, rec.SessionID); err != nil {
			log.Printf("Warning: restore session %s: %v", rec.SessionID, err)
		}
	}

	// Setup Echo
	e := echo.New()
	e.Use(middleware.Recover())

	originsEnv := os.Getenv("CORS_ALLOW_ORIGINS")
	if originsEnv == "" {
		log.Println("CORS_ALLOW_ORIGINS is not set")
	}
	allowOrigins := strings.Split(originsEnv, ",")
	for i, o := range allowOrigins {
		allowOrigins[i] = strings.TrimSpace(o)
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: allowOrigins,
		AllowMethods: []string{
			echo.GET,
			echo.POST,
			echo.PUT,
			echo.PATCH,
			echo.DELETE,
			echo.OPTIONS,
		},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAccept,
			echo.HeaderXRequestedWith,
			echo.HeaderAuthorization,
		},
		AllowCredentials: true,
	}))
	e.OPTIONS("/*", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	// Rate limiter configuration from env
	rateLimit := helper.GetEnvAsInt("RATE_LIMIT_PER_SECOND", 10)
	rateBurst := helper.GetEnvAsInt("RATE_LIMIT_BURST", 10)
	rateWindow := helper.GetEnvAsInt("RATE_LIMIT_WINDOW_MINUTES", 3)

	e.Use(middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(
			middleware.RateLimiterMemoryStoreConfig{
				Rate:      rate.Limit(rateLimit),
				Burst:     rateBurst,
				ExpiresIn: time.Duration(rateWindow) * time.Minute,
			},
		),
	}))

	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		message := "Internal Server Error"

		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			message = fmt.Sprintf("%v", he.Message)
		}
		response := map[string]interface{}{
			"success": false,
			"error":   message,
		}
		switch code {
		case http.StatusUnauthorized:
			response["message"] = "Authentication required. Please login first."
		case http.StatusMethodNotAllowed:
			response["message"] = "Method not allowed for this endpoint"
		case http.StatusNotFound:
			response["message"] = "Endpoint not found"
		}

		c.JSON(code, response)
	}

	// =====================================================
	// PUBLIC ROUTES (No authentication required)
	// =====================================================
	e.POST("/register", handler.Register)
	e.POST("/login", handler.LoginUser)
	e.POST("/refresh", handler.RefreshToken)

	e.GET("/ws", handler.WebSocketHandler(hub))
	e.GET("/", func(c echo.Context) error { // Health check
		return c.JSON(200, map[string]interface{}{
			"success": true,
			"message": "gowalink is running",
			"version": "1.0.0",
		})
	})

	// JWT-protected group
	api := e.Group("/api", customMiddleware.JWTAuthMiddleware())

	// =====================================================
	// USER PROFILE ROUTES
	// =====================================================
	api.GET("/me", handler.GetCurrentUser)
	api.POST("/logout", handler.LogoutUser)

	// =====================================================
	// SESSION ROUTES
	// =====================================================
	sh := handler.NewSessionHandler(manager)

	api.POST("/sessions", sh.CreateSession)
	api.GET("/sessions", sh.ListSessions, customMiddleware.RequireAdmin)
	api.GET("/sessions/me", sh.GetMySession)
	api.GET("/sessions/:sessionId", sh.GetSession)
	api.GET("/sessions/:sessionId/qr", sh.GetQR)
	api.POST("/sessions/:sessionId/pair", sh.RequestPairingCode)
	api.POST("/sessions/:sessionId/send", sh.SendMessage)
	api.POST("/sessions/:sessionId/logout", sh.LogoutSession)
	api.DELETE("/sessions/:sessionId", sh.DestroySession)

	log.Printf("Server starting on port %s", cfg.Port)
	log.Fatal(e.Start(":" + cfg.Port))
}
