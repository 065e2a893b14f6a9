package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"otplink/internal/auth"
	"otplink/internal/cache"
	"otplink/internal/config"
	"otplink/internal/database"
	"otplink/internal/db"
	"otplink/internal/email"
	"otplink/internal/handlers"
	"otplink/internal/health"
	h "otplink/internal/http"
	"otplink/internal/middleware"
	"otplink/internal/persistence"
	"otplink/internal/realtime"
	"otplink/internal/repositories"
	"otplink/internal/secret"
	"otplink/internal/services"
	"otplink/internal/sms"
	"otplink/internal/store"
	"otplink/internal/timeutil"
	"otplink/internal/webhook"
)

func main() {
	// Parse command-line flags
	port := flag.Int("port", 0, "Server port (overrides config)")
	tokenFor := flag.String("token", "", "Print an API token for the given subject and exit")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	if *tokenFor != "" {
		if cfg.JWT.Secret == "" {
			logger.Fatal("JWT_SECRET must be set to issue tokens")
		}
		token, err := auth.NewJWTManager(cfg).GenerateToken(*tokenFor)
		if err != nil {
			logger.Fatal("failed to issue token", zap.Error(err))
		}
		fmt.Println(token)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("server stopped with error", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.Log.Development {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// openStore returns the configured record store plus the path whose disk
// usage health reports.
func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (store.RecordStore, string, error) {
	switch cfg.Storage.Driver {
	case "postgres":
		pool, err := db.Connect(ctx, cfg)
		if err != nil {
			return nil, "", err
		}
		if err := database.NewMigrator(pool, logger).RunMigrations(ctx); err != nil {
			pool.Close()
			return nil, "", err
		}
		logger.Info("connected to postgres", zap.String("host", cfg.Database.Host), zap.String("database", cfg.Database.Name))
		return repositories.NewPostgresStore(pool), "/", nil
	default:
		s, err := persistence.OpenBolt(cfg.Storage.BoltPath)
		if err != nil {
			return nil, "", err
		}
		logger.Info("opened bolt store", zap.String("path", cfg.Storage.BoltPath))
		return s, filepath.Dir(cfg.Storage.BoltPath), nil
	}
}

func newSource(cfg *config.Config) (sms.Source, *sms.Inbox) {
	if cfg.SMS.Source == "gateway" {
		return sms.NewGatewaySource(cfg.SMS.GatewayURL, cfg.SMS.GatewayToken, cfg.Forwarding.Timeout), nil
	}
	inbox := sms.NewInbox(nil, cfg.SMS.InboxCapacity)
	return inbox, inbox
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	recordStore, diskPath, err := openStore(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer recordStore.Close()

	if cfg.Redis.Enabled {
		if err := cache.Init(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB); err != nil {
			logger.Warn("redis unavailable, configuration cache disabled", zap.Error(err))
		} else {
			logger.Info("redis connected", zap.String("addr", cfg.Redis.Addr))
			defer cache.Close()
		}
	}

	box, err := secret.Load(cfg.Secrets.Key, cfg.Secrets.KeyFile)
	if err != nil {
		return fmt.Errorf("load settings key: %w", err)
	}

	clock := timeutil.SystemClock{}
	configSvc := services.NewConfigService(recordStore, box, logger)
	processor := services.NewMessageProcessor(clock, logger)
	forwarder := services.NewForwardingService(
		recordStore,
		webhook.NewClient(cfg.Forwarding.Timeout),
		email.NewSMTPSender(cfg.Forwarding.Timeout),
		clock,
		logger,
	)
	hub := realtime.NewHub(logger)
	pipeline := services.NewPipeline(configSvc, processor, forwarder, recordStore, hub, logger)

	source, inbox := newSource(cfg)
	poller := sms.NewPoller(source, sms.StaticPermission(true), pipeline.Handle, sms.PollerConfig{
		PollInterval:      cfg.SMS.PollInterval,
		HeartbeatInterval: cfg.SMS.HeartbeatInterval,
		Clock:             clock,
	}, logger)

	var authMiddleware *middleware.AuthMiddleware
	if cfg.JWT.Enabled {
		authMiddleware = middleware.NewAuthMiddleware(auth.NewJWTManager(cfg))
	} else {
		logger.Warn("API authentication disabled (jwt.enabled=false)")
	}

	router := h.NewRouter(
		handlers.NewOTPHandler(pipeline, logger),
		handlers.NewConfigHandler(configSvc, forwarder, logger),
		handlers.NewSMSHandler(inbox, poller, configSvc, logger),
		handlers.NewHealthHandler(health.NewHealthChecker(recordStore, cfg.Storage.Driver, poller, diskPath)),
		hub,
		authMiddleware,
		logger,
	)

	// Wrap with panic recovery and CORS; metrics and request logs run inside the router
	handler := middleware.PanicRecovery(logger)(middleware.NewCORS(cfg)(router))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})

	processor.Cache().StartSweeper(gctx, cfg.Forwarding.SweepInterval)
	forwarder.Sessions().StartSweeper(gctx, cfg.Forwarding.SweepInterval)

	if cfg.SMS.AutoStart {
		startListener(ctx, configSvc, poller, logger)
	}

	g.Go(func() error {
		logger.Info("server listening", zap.String("addr", srv.Addr), zap.String("sms_source", cfg.SMS.Source))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		poller.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// startListener resumes polling when the saved configuration has the
// listener enabled.
func startListener(ctx context.Context, configSvc *services.ConfigService, poller *sms.Poller, logger *zap.Logger) {
	current, err := configSvc.Load(ctx)
	if err != nil {
		logger.Warn("could not read configuration, listener not started", zap.Error(err))
		return
	}
	if !current.SMSListenerEnabled {
		logger.Info("SMS listener disabled in configuration")
		return
	}
	if err := poller.Start(ctx); err != nil {
		logger.Warn("SMS listener failed to start", zap.Error(err))
	}
}
