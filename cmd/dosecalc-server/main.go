package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dosecalc/dosecalc/internal/config"
	"github.com/dosecalc/dosecalc/internal/domain/audit"
	"github.com/dosecalc/dosecalc/internal/domain/calculator"
	"github.com/dosecalc/dosecalc/internal/domain/prefs"
	"github.com/dosecalc/dosecalc/internal/platform/auth"
	"github.com/dosecalc/dosecalc/internal/platform/bus"
	"github.com/dosecalc/dosecalc/internal/platform/capability"
	"github.com/dosecalc/dosecalc/internal/platform/export"
	"github.com/dosecalc/dosecalc/internal/platform/middleware"
	"github.com/dosecalc/dosecalc/internal/platform/storage"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "dosecalc-server",
		Short: "Clinical calculator orchestration server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(auditCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the calculator API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

// auditCmd exports a calculator's audit ledger from the configured storage
// backend to stdout without starting the server.
func auditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect the audit ledger",
	}

	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Export a calculator's ledger as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("calculator")
			if name == "" {
				return fmt.Errorf("--calculator is required")
			}

			logger := newLogger()
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx := context.Background()
			store, closeStore, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			ledger := audit.NewService(store, logger).Ledger(ctx, name)
			doc, err := ledger.ExportAll()
			if err != nil {
				return err
			}
			fmt.Println(string(doc))
			return nil
		},
	}
	exportCmd.Flags().String("calculator", "", "Calculator name (e.g. bsa-dose)")
	cmd.AddCommand(exportCmd)

	return cmd
}

func newLogger() zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" || os.Getenv("ENV") == "" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return logger
}

// openStore selects the persistence backend from config.
func openStore(ctx context.Context, cfg *config.Config) (storage.Store, func(), error) {
	switch cfg.StorageDriver {
	case "sqlite":
		s, err := storage.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil
	case "postgres":
		p, err := storage.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return p, p.Close, nil
	default:
		return storage.NewMemory(), func() {}, nil
	}
}

func runServer() error {
	logger := newLogger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx := context.Background()
	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open storage")
	}
	defer closeStore()
	logger.Info().Str("driver", cfg.StorageDriver).Msg("storage ready")

	// Optional collaborators. The PDF renderer and its QR coder are always
	// available in the server build; a headless deployment can unregister
	// them and the export endpoints degrade to 503.
	caps := capability.NewRegistry()
	caps.Register(capability.QREncoder, export.NewQR())
	qr, _ := export.QRFrom(caps)
	caps.Register(capability.PDFRenderer, export.NewPDF(qr))
	caps.Register(capability.TextSink, export.NewWriterSink(os.Stdout))

	// Event bus with an observability tap on compute completions.
	b := bus.New()
	b.Subscribe(bus.TopicComputeCompleted, func(payload interface{}) {
		if evt, ok := payload.(calculator.ComputeEvent); ok {
			logger.Info().
				Str("calculator", evt.Calculator).
				Str("record_id", evt.RecordID).
				Msg("calculation completed")
		}
	})

	registry, err := calculator.DefaultRegistry()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid calculator configuration")
	}

	// The audit service is told every calculator path so cross-calculator
	// views see persisted records from before this process started.
	auditSvc := audit.NewService(store, logger, registry.Names()...)
	prefsSvc := prefs.NewService(prefs.NewRepoKV(store))
	calcSvc := calculator.NewService(registry, store, auditSvc, b, cfg.HistoryCapacity, logger)

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	// Auth middleware
	if cfg.IsDev() {
		e.Use(auth.DevMiddleware())
	} else {
		e.Use(auth.Middleware(auth.Config{
			Issuer:     cfg.AuthIssuer,
			SigningKey: []byte(cfg.AuthSecret),
		}))
	}

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})

	// API routes. Every calculator operation requires at least the
	// clinician role; the dev identity carries admin and passes.
	apiV1 := e.Group("/api/v1")
	apiV1.Use(auth.RequireRole("clinician"))
	calculator.NewHandler(calcSvc, prefsSvc, caps).RegisterRoutes(apiV1)
	audit.NewHandler(auditSvc).RegisterRoutes(apiV1)
	prefs.NewHandler(prefsSvc).RegisterRoutes(apiV1)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
