package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"printrelay/internal/api/handlers"
	"printrelay/internal/api/middleware"
	"printrelay/internal/blob"
	"printrelay/internal/config"
	"printrelay/internal/notify"
)

// NewRouter assembles the ingress surface: the submission endpoint guarded
// by the shared api key, and the management api behind token auth.
func NewRouter(cfg *config.Config, payloads blob.Store, publisher notify.Publisher, logger *slog.Logger) (*gin.Engine, error) {
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(logger))

	auth, err := middleware.NewAuthMiddleware()
	if err != nil {
		return nil, err
	}

	jobs := handlers.NewJobHandler(payloads, publisher, logger)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.POST("/print", middleware.APIKeyAuth(cfg.Auth.APIKey, logger), jobs.SubmitJob)

	r.POST("/auth/setup", auth.SetupHandler)
	r.POST("/auth/login", auth.LoginHandler)
	r.POST("/auth/logout", auth.LogoutHandler)
	r.GET("/auth/status", auth.StatusHandler)

	apiGroup := r.Group("/api", auth.RequireAuth())
	jobs.RegisterRoutes(apiGroup)

	return r, nil
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		logger.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"client_ip", c.ClientIP())
	}
}
