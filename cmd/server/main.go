package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	appinvoice "github.com/erp/invoicedesk/internal/application/invoice"
	"github.com/erp/invoicedesk/internal/domain/identity"
	"github.com/erp/invoicedesk/internal/domain/shared"
	"github.com/erp/invoicedesk/internal/infrastructure/auth"
	"github.com/erp/invoicedesk/internal/infrastructure/cache"
	"github.com/erp/invoicedesk/internal/infrastructure/config"
	"github.com/erp/invoicedesk/internal/infrastructure/logger"
	"github.com/erp/invoicedesk/internal/infrastructure/persistence"
	"github.com/erp/invoicedesk/internal/infrastructure/telemetry"
	"github.com/erp/invoicedesk/internal/interfaces/http/handler"
	"github.com/erp/invoicedesk/internal/interfaces/http/middleware"
	"github.com/erp/invoicedesk/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "Path to config.toml (default: ./config.toml or /app/config.toml)")
	flag.Usage = usage
	flag.Parse()

	var (
		cfg *config.Config
		err error
	)
	if *configPath != "" {
		cfg, err = config.LoadFile(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	args := flag.Args()
	command := "serve"
	if len(args) > 0 {
		command, args = args[0], args[1:]
	}

	switch command {
	case "serve":
		serve(cfg, log)
	case "create-user":
		if len(args) < 1 {
			fmt.Fprintln(os.Stderr, "Usage: server create-user <username> [capability...]")
			os.Exit(1)
		}
		withDatabase(cfg, log, func(db *persistence.Database) error {
			return createUser(persistence.NewGormUserRepository(db.DB), args[0], args[1:])
		})
	case "issue-token":
		if len(args) != 1 {
			fmt.Fprintln(os.Stderr, "Usage: server issue-token <username>")
			os.Exit(1)
		}
		if err := requireSecret(cfg); err != nil {
			log.Fatal("Cannot issue tokens", zap.Error(err))
		}
		withDatabase(cfg, log, func(db *persistence.Database) error {
			return issueToken(persistence.NewGormUserRepository(db.DB), auth.NewJWTService(cfg.JWT), args[0])
		})
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: server [-config path] [command]

Commands:
  serve                              Run the HTTP API (default)
  create-user <username> [caps...]   Create a user or replace its capabilities
  issue-token <username>             Print an access token for an existing user

Capabilities:`)
	for _, c := range identity.AllCapabilities() {
		fmt.Fprintf(os.Stderr, "  %s\n", c)
	}
}

func serve(cfg *config.Config, log *zap.Logger) {
	log.Info("Starting invoice desk",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	if err := requireSecret(cfg); err != nil {
		log.Fatal("Invalid JWT configuration", zap.Error(err))
	}

	db := openDatabase(cfg, log)
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()

	// Repositories
	invoiceRepo := persistence.NewGormInvoiceRepository(db.DB)
	userRepo := persistence.NewGormUserRepository(db.DB)
	stockRepo := persistence.NewGormStockItemRepository(db.DB)

	// Services
	documentService := appinvoice.NewDocumentService(invoiceRepo, log)
	jwtService := auth.NewJWTService(cfg.JWT)

	registry, err := cache.NewRegistryFactory(cfg.Redis, cfg.Registry,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(!cfg.IsProduction()),
	).Create()
	if err != nil {
		log.Fatal("Failed to create loading registry", zap.Error(err))
	}

	meterProvider, err := telemetry.NewMeterProvider(context.Background(), cfg.Telemetry, log)
	if err != nil {
		log.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	defer func() {
		if err := meterProvider.Shutdown(context.Background()); err != nil {
			log.Error("Error shutting down telemetry", zap.Error(err))
		}
	}()

	metrics, err := telemetry.NewActionMetrics(meterProvider.Meter(cfg.Telemetry.ServiceName))
	if err != nil {
		log.Fatal("Failed to create action metrics", zap.Error(err))
	}

	// Handlers
	documentHandler := handler.NewDocumentHandler(documentService)
	deskHandler := handler.NewDeskHandler(documentService, registry, metrics, log)
	stockHandler := handler.NewStockHandler(stockRepo)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	middleware.SetupValidator()

	engine := gin.New()
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Secure())
	engine.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.HTTP.CORSAllowOrigins,
		AllowMethods: cfg.HTTP.CORSAllowMethods,
		AllowHeaders: cfg.HTTP.CORSAllowHeaders,
		MaxAge:       12 * time.Hour,
	}))

	jwtConfig := middleware.DefaultJWTConfig(jwtService)
	jwtConfig.Logger = log

	r := router.NewRouter(engine,
		router.WithAPIVersion("v1"),
		router.WithMiddleware(
			middleware.JWTAuthMiddlewareWithConfig(jwtConfig),
			middleware.CurrentUser(userRepo, log),
		),
		router.WithHealthCheck("database", db.Ping),
	)
	r.Register(documentHandler).
		Register(deskHandler).
		Register(stockHandler)
	r.Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// openDatabase connects and, for sqlite, creates the schema.
// Postgres schemas are managed by cmd/migrate.
func openDatabase(cfg *config.Config, log *zap.Logger) *persistence.Database {
	db, err := persistence.NewDatabaseWithLogLevel(&cfg.Database, log, logger.MapGormLogLevel(cfg.Log.Level))
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	if db.Driver() == persistence.DriverSQLite {
		if err := db.AutoMigrate(); err != nil {
			_ = db.Close()
			log.Fatal("Failed to migrate sqlite schema", zap.Error(err))
		}
	}
	log.Info("Database connected successfully", zap.String("driver", db.Driver()))
	return db
}

func withDatabase(cfg *config.Config, log *zap.Logger, fn func(db *persistence.Database) error) {
	db := openDatabase(cfg, log)
	err := fn(db)
	if closeErr := db.Close(); closeErr != nil {
		log.Error("Error closing database", zap.Error(closeErr))
	}
	if err != nil {
		log.Fatal("Command failed", zap.Error(err))
	}
}

func requireSecret(cfg *config.Config) error {
	if len(cfg.JWT.Secret) < 32 {
		return errors.New("jwt.secret must be at least 32 characters (set DESK_JWT_SECRET)")
	}
	return nil
}

func createUser(users identity.UserRepository, username string, caps []string) error {
	ctx := context.Background()

	granted := make([]identity.Capability, 0, len(caps))
	for _, c := range caps {
		granted = append(granted, identity.Capability(strings.TrimSpace(c)))
	}

	var id int64
	existing, err := users.FindByUsername(ctx, username)
	switch {
	case err == nil:
		id = existing.ID
	case errors.Is(err, shared.ErrNotFound):
	default:
		return err
	}

	user, err := identity.NewUser(id, username, granted...)
	if err != nil {
		return err
	}
	if existing != nil {
		user.DisplayName = existing.DisplayName
	}
	if err := users.Save(ctx, user); err != nil {
		return err
	}
	fmt.Printf("user %s (id %d): %s\n", user.Username, user.ID, strings.Join(user.CapabilityNames(), ", "))
	return nil
}

func issueToken(users identity.UserRepository, jwt *auth.JWTService, username string) error {
	user, err := users.FindByUsername(context.Background(), username)
	if err != nil {
		return fmt.Errorf("find user %s: %w", username, err)
	}
	token, err := jwt.GenerateToken(user.ID, user.Username)
	if err != nil {
		return err
	}
	fmt.Println(token.AccessToken)
	fmt.Fprintf(os.Stderr, "expires at %s\n", token.ExpiresAt.Format(time.RFC3339))
	return nil
}
