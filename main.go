package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/brettboylen/profile-analytics/api"
	"github.com/brettboylen/profile-analytics/cache"
	"github.com/brettboylen/profile-analytics/db"
	"github.com/brettboylen/profile-analytics/stats"
	"github.com/brettboylen/profile-analytics/utils"
)

const historySize = 10

func main() {
	envPath := flag.String("env", ".env", "Path to .env file")
	logLevel := flag.String("log-level", "info", "Logging level (debug, info, warn, error)")
	flag.Parse()

	log := setupLogger(*logLevel)
	log.Info("Starting Profile Analytics")

	config, err := utils.LoadConfig(*envPath, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}

	log.WithFields(logrus.Fields{
		"max_posts":   config.Analysis.MaxPosts,
		"cache_ttl":   config.Analysis.CacheTTL.String(),
		"database":    config.Database.Path,
		"server_port": config.Server.Port,
	}).Info("Configuration loaded")

	store, closeStore, err := openStore(config.Database.Path, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to open store")
	}
	defer closeStore()

	xClient := api.NewXClient(
		config.X.BearerToken,
		config.X.BaseURL,
		config.X.MaxRequestsPerMinute,
		config.X.RequestTimeout,
		log,
	)

	engine := stats.NewEngine(
		xClient,
		cache.New(store, config.Analysis.CacheTTL, log),
		cache.NewHistory(store, historySize),
		config.Analysis.MaxPosts,
		log,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go startEchoServer(ctx, config, engine, log)

	waitForShutdown(cancel, log)
}

// openStore opens the SQLite store, or an in-memory one for ":memory:"
func openStore(path string, log *logrus.Logger) (db.Store, func(), error) {
	if path == ":memory:" {
		log.Warn("Using in-memory store; cached analyses will not survive a restart")
		return db.NewMemoryStore(), func() {}, nil
	}

	database, err := db.NewDatabase(path, log)
	if err != nil {
		return nil, nil, err
	}
	return database, func() { database.Close() }, nil
}

// setupLogger sets up the logger with the specified log level
func setupLogger(level string) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	switch level {
	case "debug":
		log.SetLevel(logrus.DebugLevel)
	case "info":
		log.SetLevel(logrus.InfoLevel)
	case "warn":
		log.SetLevel(logrus.WarnLevel)
	case "error":
		log.SetLevel(logrus.ErrorLevel)
	default:
		log.SetLevel(logrus.InfoLevel)
	}

	return log
}

// newServer builds the Echo app with its middleware and routes
func newServer(engine *stats.Engine, analysisTimeout time.Duration, maxRequestsPerMinute int, log *logrus.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	if maxRequestsPerMinute > 0 {
		rateLimiterConfig := middleware.RateLimiterConfig{
			Skipper: middleware.DefaultSkipper,
			Store: middleware.NewRateLimiterMemoryStoreWithConfig(
				middleware.RateLimiterMemoryStoreConfig{
					Rate:      rate.Limit(float64(maxRequestsPerMinute) / 60.0),
					Burst:     5,
					ExpiresIn: 3 * time.Minute,
				},
			),
			IdentifierExtractor: func(ctx echo.Context) (string, error) {
				return ctx.RealIP(), nil
			},
			ErrorHandler: func(ctx echo.Context, err error) error {
				return ctx.JSON(http.StatusForbidden, map[string]string{
					"error": "Unable to identify client",
				})
			},
			DenyHandler: func(ctx echo.Context, identifier string, err error) error {
				return ctx.JSON(http.StatusTooManyRequests, map[string]string{
					"error": "Rate limit exceeded, please try again later",
				})
			},
		}
		e.Use(middleware.RateLimiterWithConfig(rateLimiterConfig))
	}

	analyze := func(c echo.Context, input string) error {
		if input == "" {
			return c.JSON(http.StatusBadRequest, map[string]string{
				"error": "a username, @handle or profile URL is required",
			})
		}

		forceRefresh, _ := strconv.ParseBool(c.QueryParam("refresh"))

		// the engine never fails; a timeout surfaces as fallback data
		ctx, cancel := context.WithTimeout(c.Request().Context(), analysisTimeout)
		defer cancel()

		result := engine.Analyze(ctx, input, stats.AnalyzeOptions{ForceRefresh: forceRefresh})
		return c.JSON(http.StatusOK, result)
	}

	e.GET("/api/analyze/:username", func(c echo.Context) error {
		return analyze(c, c.Param("username"))
	})

	e.GET("/api/analyze", func(c echo.Context) error {
		return analyze(c, c.QueryParam("input"))
	})

	e.DELETE("/api/cache/:username", func(c echo.Context) error {
		username := c.Param("username")
		if err := engine.ClearCache(c.Request().Context(), username); err != nil {
			log.WithError(err).WithField("username", username).Warn("Cache clear failed")
			return c.JSON(http.StatusBadRequest, map[string]string{
				"error": err.Error(),
			})
		}
		return c.NoContent(http.StatusNoContent)
	})

	e.DELETE("/api/cache", func(c echo.Context) error {
		removed, err := engine.ClearAllCache(c.Request().Context())
		if err != nil {
			log.WithError(err).Error("Cache clear failed")
			return c.JSON(http.StatusInternalServerError, map[string]string{
				"error": "failed to clear cache",
			})
		}
		return c.JSON(http.StatusOK, map[string]int{"removed": removed})
	})

	e.GET("/api/history", func(c echo.Context) error {
		history, err := engine.History(c.Request().Context())
		if err != nil {
			log.WithError(err).Error("Failed to load search history")
			return c.JSON(http.StatusInternalServerError, map[string]string{
				"error": "failed to load history",
			})
		}
		return c.JSON(http.StatusOK, map[string][]string{"usernames": history})
	})

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	})

	return e
}

// startEchoServer starts the Echo HTTP API server
func startEchoServer(ctx context.Context, config *utils.Config, engine *stats.Engine, log *logrus.Logger) {
	e := newServer(engine, config.Analysis.Timeout, config.Server.MaxRequestsPerMinute, log)

	go func() {
		serverAddr := fmt.Sprintf(":%d", config.Server.Port)
		log.WithField("port", config.Server.Port).Info("Starting API server")
		if err := e.Start(serverAddr); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("API server failed")
		}
	}()

	// wait for context cancellation to shut down server
	<-ctx.Done()
	log.Info("Shutting down API server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("API server shutdown failed")
	}
}

// waitForShutdown waits for a shutdown signal
func waitForShutdown(cancel context.CancelFunc, log *logrus.Logger) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.WithField("signal", sig.String()).Info("Shutdown signal received")

	cancel()

	time.Sleep(1 * time.Second)
	log.Info("Profile Analytics stopped")
}
