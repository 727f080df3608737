package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/insight-dashboard/insight/internal/analysis"
	"github.com/insight-dashboard/insight/internal/api"
	"github.com/insight-dashboard/insight/internal/config"
	"github.com/insight-dashboard/insight/internal/metrics"
	"github.com/insight-dashboard/insight/internal/result"
	"github.com/insight-dashboard/insight/internal/storage"
	"github.com/insight-dashboard/insight/internal/upload"
	"github.com/insight-dashboard/insight/internal/web"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/sync/errgroup"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "", "path to insight.yaml (default: next to the executable)")
	flag.Parse()

	// .env is optional
	_ = godotenv.Load()

	if *configPath == "" {
		exePath, err := os.Executable()
		if err != nil {
			fmt.Printf("Failed to get executable path: %v\n", err)
			os.Exit(1)
		}
		*configPath = filepath.Join(filepath.Dir(exePath), "insight.yaml")
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		fmt.Printf("Failed to create directories: %v\n", err)
		os.Exit(1)
	}

	logger := config.NewLogger(os.Stdout, cfg.Advanced.LogLevel)
	slog.SetDefault(logger)
	api.ExposeErrorDetails = cfg.Advanced.LogLevel == "debug"

	if err := run(cfg, *configPath, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.AppConfig, configPath string, logger *slog.Logger) error {
	fileStore, err := storage.NewLocalStore(cfg.GetUploadDir())
	if err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}

	results := result.NewStore()
	client := analysis.NewClient(cfg.Analysis.EndpointURL, analysis.WithTimeout(cfg.AnalysisTimeout()))

	var recorder api.Recorder
	var metricsHandler http.Handler
	managerOpts := []upload.Option{
		upload.WithLogger(logger),
		upload.WithTimeout(cfg.AnalysisTimeout()),
	}
	if cfg.Advanced.EnableMetrics {
		m := metrics.New()
		recorder = m
		metricsHandler = m.Handler()
		managerOpts = append(managerOpts, upload.WithRecorder(m))
	}

	jobs := upload.NewManager(fileStore, client, results, managerOpts...)
	defer jobs.Shutdown()

	renderer, err := web.NewRenderer()
	if err != nil {
		return err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Renderer = renderer
	api.SetupMiddleware(e)

	// Configure middleware
	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Skipper: func(c echo.Context) bool {
			// Skip logging if disabled in config
			if !cfg.Advanced.EnableRequestLogging {
				return true
			}
			path := c.Request().URL.Path
			return strings.HasSuffix(path, "/stream") ||
				strings.HasPrefix(path, "/api/ws/") ||
				strings.HasPrefix(path, "/static/") ||
				path == "/health" ||
				path == "/metrics"
		},
	}))

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 1024 * 4,
	}))

	e.Use(middleware.TimeoutWithConfig(middleware.TimeoutConfig{
		Timeout: time.Duration(cfg.Server.ReadTimeout) * time.Second,
		Skipper: func(c echo.Context) bool {
			path := c.Request().URL.Path
			return strings.Contains(path, "/stream") ||
				strings.Contains(path, "/upload") ||
				strings.HasPrefix(path, "/api/ws/") ||
				c.Request().Header.Get("Accept") == "text/event-stream"
		},
		ErrorMessage: "Request timeout",
	}))

	// Compression middleware
	if cfg.Processing.EnableCompression {
		e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
			Level: cfg.Processing.CompressionLevel,
			Skipper: func(c echo.Context) bool {
				return c.Request().Header.Get("Accept") == "text/event-stream" ||
					strings.HasPrefix(c.Request().URL.Path, "/api/ws/")
			},
		}))
	}

	// Body limit middleware
	e.Use(middleware.BodyLimit(cfg.Server.BodyLimit))

	// CORS configuration
	if cfg.Server.EnableCORS {
		origins := strings.Split(cfg.Server.AllowOrigins, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		if len(origins) == 0 || (len(origins) == 1 && origins[0] == "") {
			origins = []string{"*"}
		}
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: origins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
		}))
	}

	handlers := api.NewHandlers(&api.Dependencies{
		Store:             fileStore,
		Jobs:              jobs,
		Results:           results,
		Recorder:          recorder,
		Metrics:           metricsHandler,
		Logger:            logger,
		AllowedExtensions: cfg.AllowedExtensions(),
		RecentLimit:       cfg.Storage.RecentFilesLimit,
		AnalysisEndpoint:  cfg.Analysis.EndpointURL,
		Version:           Version,
	})
	api.RegisterRoutes(e, handlers)
	api.RegisterWebSocketRoutes(e, handlers)
	if err := web.RegisterStaticRoutes(e); err != nil {
		return fmt.Errorf("registering static routes: %w", err)
	}

	s := &http.Server{
		Addr:         cfg.GetServerAddr(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	printBanner(cfg, configPath)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := e.StartServer(s); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// Janitor for finished jobs and old uploads
	g.Go(func() error {
		ticker := time.NewTicker(time.Duration(cfg.Processing.CleanupIntervalMinutes) * time.Minute)
		defer ticker.Stop()
		retention := time.Duration(cfg.Processing.JobRetentionMinutes) * time.Minute
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if n := jobs.CleanupOldJobs(retention); n > 0 {
					logger.Debug("removed finished jobs", "count", n)
				}
				if keep := cfg.FileRetention(); keep > 0 {
					n, err := fileStore.Prune(keep)
					if err != nil {
						logger.Warn("pruning uploads failed", "error", err)
					}
					if n > 0 {
						logger.Info("pruned old uploads", "count", n)
					}
				}
			}
		}
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func printBanner(cfg *config.AppConfig, configPath string) {
	fmt.Printf("\n")
	fmt.Printf("╔═══════════════════════════════════════════════════════════╗\n")
	fmt.Printf("║           Insight CSV Dashboard                           ║\n")
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Version:    %-45s║\n", Version)
	fmt.Printf("║  Build Time: %-45s║\n", BuildTime)
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Config:    %-46s║\n", configPath)
	fmt.Printf("║  Listen:    http://%-39s║\n", cfg.GetServerAddr())
	fmt.Printf("║  Analysis:  %-46s║\n", cfg.Analysis.EndpointURL)
	fmt.Printf("║  Data Dir:  %-46s║\n", cfg.GetDataDir())
	fmt.Printf("╚═══════════════════════════════════════════════════════════╝\n")
	fmt.Printf("\n")
	fmt.Printf("Open http://localhost:%d in your browser\n\n", cfg.Server.Port)
}
