package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"contextpilot/backend/internal/agent"
	"contextpilot/backend/internal/knowledge"
	"contextpilot/backend/internal/state"
	"contextpilot/backend/internal/vector"
	"contextpilot/backend/pkg/config"
	apperrors "contextpilot/backend/pkg/errors"
	"contextpilot/backend/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load configuration: %v", err))
	}

	// Initialize logger
	if err := logger.Init(cfg.Env, cfg.LogLevel); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	log := logger.Get()
	log.Info("Starting HTTP API server...")

	ctx := context.Background()
	orch, err := agent.NewFromConfig(ctx, cfg)
	if err != nil {
		log.Fatal("Failed to initialize assistant", zap.Error(err))
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := newRouter(orch, log, cfg.BaselineEnabled)

	// Start server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Graceful shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	log.Info("Server started", zap.String("port", cfg.Port))

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited")
}

type onboardRequest struct {
	UserID string `json:"user_id" binding:"required"`
	Name   string `json:"name"`
	Role   string `json:"role"`
	Goal   string `json:"goal"`
	Screen string `json:"screen"`
	Course string `json:"course"`
}

type chatRequest struct {
	Message  string `json:"message" binding:"required"`
	Baseline bool   `json:"baseline"`
}

type knowledgeRequest struct {
	Texts []string `json:"texts"`
	URL   string   `json:"url"`
}

// newRouter builds the API around one orchestrator
func newRouter(orch *agent.Orchestrator, log *zap.Logger, baselineEnabled bool) *gin.Engine {
	router := gin.New()
	router.Use(ginLogger(log))
	router.Use(gin.Recovery())

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, PUT, OPTIONS, GET")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":            "ok",
			"graph_nodes":       orch.Graph().NodeCount(),
			"knowledge_entries": orch.Index().Len(),
		})
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	loader := knowledge.NewLoader(orch.Index())

	// API routes
	api := router.Group("/api")
	{
		// Onboard a user
		api.POST("/users", func(c *gin.Context) {
			var req onboardRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}

			created, err := orch.EnsureUser(c.Request.Context(), req.UserID, state.Profile{
				Name:   req.Name,
				Role:   req.Role,
				Goal:   req.Goal,
				Screen: req.Screen,
				Course: req.Course,
			})
			if err != nil {
				respondError(c, log, err)
				return
			}

			status := http.StatusOK
			if created {
				status = http.StatusCreated
			}
			c.JSON(status, gin.H{"user_id": req.UserID, "created": created})
		})

		// Chat as a user
		api.POST("/users/:id/chat", func(c *gin.Context) {
			userID := c.Param("id")
			ctx := c.Request.Context()

			var req chatRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}

			result, err := orch.RunTurn(ctx, userID, req.Message)
			if err != nil {
				respondError(c, log, err)
				return
			}

			resp := gin.H{
				"content":        result.Content,
				"message_id":     result.MessageID,
				"response_id":    result.ResponseID,
				"context":        result.Context,
				"retrieved_docs": result.RetrievedDocs,
			}
			if req.Baseline && baselineEnabled {
				baseline, err := orch.Baseline(ctx, req.Message)
				if err != nil {
					log.Warn("Baseline completion failed", zap.Error(err))
				} else {
					resp["baseline"] = baseline
				}
			}
			c.JSON(http.StatusOK, resp)
		})

		// User neighborhood
		api.GET("/users/:id/context", func(c *gin.Context) {
			userID := c.Param("id")
			if !orch.Graph().NodeExists(userID) {
				respondError(c, log, apperrors.NewGraphUserNotFound(userID))
				return
			}

			radius, err := intQuery(c, "radius", agent.DefaultOptions().Radius)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, orch.Graph().Neighborhood(userID, radius))
		})

		// Add knowledge
		api.POST("/knowledge", func(c *gin.Context) {
			ctx := c.Request.Context()

			var req knowledgeRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			if len(req.Texts) == 0 && req.URL == "" {
				c.JSON(http.StatusBadRequest, gin.H{"error": "texts or url is required"})
				return
			}

			added, err := loader.LoadTexts(ctx, req.Texts)
			if err != nil {
				respondError(c, log, err)
				return
			}
			if req.URL != "" {
				n, err := loader.LoadURL(ctx, req.URL)
				added += n
				if err != nil {
					if apperrors.IsErrorType(err, apperrors.ErrorTypeEmbedding) {
						respondError(c, log, err)
						return
					}
					c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "added": added})
					return
				}
			}

			c.JSON(http.StatusOK, gin.H{"added": added, "total": orch.Index().Len()})
		})

		// Search knowledge
		api.GET("/knowledge/search", func(c *gin.Context) {
			query := c.Query("q")
			if query == "" {
				c.JSON(http.StatusBadRequest, gin.H{"error": "q is required"})
				return
			}
			k, err := intQuery(c, "k", vector.DefaultTopK)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}

			results, err := orch.Index().SearchWithScores(c.Request.Context(), query, k)
			if err != nil {
				respondError(c, log, err)
				return
			}
			c.JSON(http.StatusOK, gin.H{"results": results})
		})

		// Completion model
		api.GET("/model", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"model": orch.Model()})
		})

		api.PUT("/model", func(c *gin.Context) {
			var req struct {
				Model string `json:"model" binding:"required"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			if !orch.SetModel(req.Model) {
				c.JSON(http.StatusConflict, gin.H{"error": "completion model cannot be changed"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"model": orch.Model()})
		})

		// Whole graph
		api.GET("/graph", func(c *gin.Context) {
			c.JSON(http.StatusOK, orch.Graph().Snapshot())
		})
	}

	return router
}

// respondError maps the error taxonomy onto HTTP status codes
func respondError(c *gin.Context, log *zap.Logger, err error) {
	var (
		userNotFound   *apperrors.ErrGraphUserNotFound
		invalidProfile state.ErrInvalidProfile
		invalidTurn    state.ErrInvalidTurnState
	)

	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &userNotFound):
		status = http.StatusNotFound
	case errors.As(err, &invalidProfile), errors.As(err, &invalidTurn):
		status = http.StatusBadRequest
	case apperrors.IsErrorType(err, apperrors.ErrorTypeGraph):
		status = http.StatusConflict
	case apperrors.IsErrorType(err, apperrors.ErrorTypeCompletion),
		apperrors.IsErrorType(err, apperrors.ErrorTypeEmbedding):
		status = http.StatusBadGateway
	case apperrors.IsErrorType(err, apperrors.ErrorTypeContext):
		status = http.StatusRequestTimeout
	}

	if status >= http.StatusInternalServerError {
		log.Error("Request failed", zap.Int("status", status), zap.Error(err))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func intQuery(c *gin.Context, key string, defaultValue int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", key)
	}
	return v, nil
}

// ginLogger is a custom logger middleware for Gin
func ginLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		if raw != "" {
			path = path + "?" + raw
		}

		log.Info("HTTP Request",
			zap.Int("status", status),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Duration("latency", latency),
			zap.String("ip", c.ClientIP()),
		)
	}
}
