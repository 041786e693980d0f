package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/gdg-garage/community-events-api/internal/admission"
	"github.com/gdg-garage/community-events-api/internal/auth"
	"github.com/gdg-garage/community-events-api/internal/catalog"
	"github.com/gdg-garage/community-events-api/internal/config"
	"github.com/gdg-garage/community-events-api/internal/database"
	"github.com/gdg-garage/community-events-api/internal/handlers"
	"github.com/gdg-garage/community-events-api/internal/keylock"
	"github.com/gdg-garage/community-events-api/internal/logging"
	"github.com/gdg-garage/community-events-api/internal/metrics"
	"github.com/gdg-garage/community-events-api/internal/notifier"
	"github.com/gdg-garage/community-events-api/internal/ratelimit"
	"github.com/gdg-garage/community-events-api/internal/repository"
	"github.com/gdg-garage/community-events-api/internal/rowstore"
)

func main() {
	_ = godotenv.Load()

	// Load Configuration
	cfg := config.LoadConfig()

	logger, err := logging.New(cfg.LogLevel, cfg.LogDevelopment)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to Database (API keys, and rows for the sql backend)
	db := database.Connect(cfg)

	store, err := openStore(ctx, cfg, db)
	if err != nil {
		logger.Fatal("opening row store failed", zap.String("backend", cfg.StoreBackend), zap.Error(err))
	}
	repos := repository.New(store)
	if err := repos.EnsureTables(ctx); err != nil {
		logger.Fatal("preparing tables failed", zap.Error(err))
	}

	limiter, closeLimiter := newLimiter(cfg, logger)
	defer closeLimiter()

	dispatcher := newDispatcher(cfg, repos.Users, logger)

	metrics.Register()

	locks := keylock.New()
	engine := admission.New(admission.Deps{
		Events:        repos.Events,
		Registrations: repos.Registrations,
		Users:         repos.Users,
		Removals:      repos.Removals,
		Locks:         locks,
		Notifier:      dispatcher,
		Limiter:       limiter,
		Logger:        logger.Named("admission"),
	})

	authHandler := auth.NewAuthHandler(cfg, db, repos.Users).WithLogger(logger.Named("auth"))
	handlerLog := logger.Named("http")

	// Initialize Router
	r := chi.NewRouter()

	// Register Routes
	handlers.RegisterRoutes(r, handlers.Handlers{
		Auth:          authHandler,
		Events:        handlers.NewEventHandler(catalog.New(repos.Events, locks, logger.Named("catalog")), engine, authHandler, handlerLog),
		Registrations: handlers.NewRegistrationHandler(engine, repos, authHandler, handlerLog),
		Users:         handlers.NewUserHandler(repos.Users, locks, authHandler, handlerLog),
		APIKeys:       handlers.NewAPIKeyHandler(db, authHandler, handlerLog),
		Metrics:       metrics.Handler(),
	}, handlers.RouteOptions{EnableCORS: cfg.EnableCORS, FrontendURL: cfg.FrontendURL})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start Server
	go func() {
		logger.Info("starting server", zap.String("port", cfg.Port), zap.String("store", cfg.StoreBackend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
	dispatcher.Flush()
}

func openStore(ctx context.Context, cfg *config.Config, db *gorm.DB) (rowstore.Store, error) {
	switch cfg.StoreBackend {
	case "sheets":
		if cfg.SpreadsheetID == "" {
			return nil, errors.New("GOOGLE_SHEETS_SPREADSHEET_ID is required for the sheets backend")
		}
		return rowstore.NewSheetsFromServiceAccount(ctx, cfg.ServiceAccountJSON, cfg.SpreadsheetID)
	case "sql":
		return rowstore.NewSQL(db)
	case "memory":
		return rowstore.NewMemory(), nil
	}
	return nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
}

func newLimiter(cfg *config.Config, logger *zap.Logger) (ratelimit.Limiter, func()) {
	rl := ratelimit.Config{Requests: cfg.RateLimitRequests, Window: cfg.RateLimitWindow}
	if cfg.RedisURL == "" {
		return ratelimit.NewMemory(rl), func() {}
	}
	client, err := ratelimit.NewRedisClient(cfg.RedisURL)
	if err != nil {
		logger.Warn("redis unavailable, using in-process rate limiting", zap.Error(err))
		return ratelimit.NewMemory(rl), func() {}
	}
	return ratelimit.NewRedis(client, rl), func() { client.Close() }
}

func newDispatcher(cfg *config.Config, users notifier.UserLookup, logger *zap.Logger) *notifier.Dispatcher {
	log := logger.Named("notifier")
	var senders []notifier.Sender
	var staff notifier.StaffFeed

	if cfg.DiscordBotToken != "" {
		session, err := discordgo.New("Bot " + cfg.DiscordBotToken)
		if err != nil {
			log.Warn("discord notifier not initialized", zap.Error(err))
		} else {
			senders = append(senders, notifier.NewDiscordSender(session))
			if cfg.DiscordNotificationsChannelID != "" {
				staff = notifier.NewDiscordChannel(session, cfg.DiscordNotificationsChannelID)
			}
		}
	}
	if cfg.TelegramBotToken != "" {
		tg, err := notifier.NewTelegramSender(cfg.TelegramBotToken)
		if err != nil {
			log.Warn("telegram notifier not initialized", zap.Error(err))
		} else {
			senders = append(senders, tg)
		}
	}
	if len(senders) == 0 {
		senders = append(senders, notifier.NewLogSender(log))
	}
	if staff == nil {
		staff = notifier.NewLogSender(log)
	}

	return notifier.NewDispatcher(notifier.Config{
		Senders:         senders,
		Staff:           staff,
		Users:           users,
		DefaultTemplate: cfg.DefaultConfirmationTemplate,
		Timeout:         cfg.NotifyTimeout,
		Logger:          log,
	})
}
