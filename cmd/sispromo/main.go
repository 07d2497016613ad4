package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	apihttp "github.com/sispromo/sispromo/internal/adapter/http"
	natsq "github.com/sispromo/sispromo/internal/adapter/nats"
	"github.com/sispromo/sispromo/internal/adapter/natskv"
	"github.com/sispromo/sispromo/internal/adapter/otel"
	"github.com/sispromo/sispromo/internal/adapter/postgres"
	"github.com/sispromo/sispromo/internal/adapter/ristretto"
	"github.com/sispromo/sispromo/internal/adapter/tiered"
	"github.com/sispromo/sispromo/internal/adapter/ws"
	"github.com/sispromo/sispromo/internal/config"
	"github.com/sispromo/sispromo/internal/domain/user"
	"github.com/sispromo/sispromo/internal/logger"
	"github.com/sispromo/sispromo/internal/middleware"
	"github.com/sispromo/sispromo/internal/port/messagequeue"
	"github.com/sispromo/sispromo/internal/secrets"
	"github.com/sispromo/sispromo/internal/service"
)

const tokenCleanupInterval = time.Hour

func main() {
	if len(os.Args) > 1 && os.Args[1] == "admin" {
		if err := runAdmin(os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
		return
	}

	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, closeLog := logger.New(cfg.Logging)
	defer closeLog.Close()
	slog.SetDefault(log)

	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"auth_enabled", cfg.Auth.Enabled,
		"pg_max_conns", cfg.Postgres.MaxConns,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTEL, err := otel.Setup(ctx, cfg.OTEL)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTEL(sctx); err != nil {
			slog.Warn("otel shutdown", "error", err)
		}
	}()
	metrics, err := otel.NewMetrics()
	if err != nil {
		return fmt.Errorf("otel metrics: %w", err)
	}

	// --- Infrastructure ---

	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()
	slog.Info("postgres connected")

	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	slog.Info("migrations applied")

	queue, err := natsq.Connect(ctx, cfg.NATS.URL)
	if err != nil {
		return fmt.Errorf("nats: %w", err)
	}
	defer func() { _ = queue.Drain() }()

	l2Bucket, err := natskv.Bucket(ctx, queue.JetStream(), cfg.Cache.L2Bucket, cfg.Cache.L2TTL)
	if err != nil {
		return fmt.Errorf("cache bucket: %w", err)
	}
	idemBucket, err := natskv.Bucket(ctx, queue.JetStream(), cfg.Idempotency.Bucket, cfg.Idempotency.TTL)
	if err != nil {
		return fmt.Errorf("idempotency bucket: %w", err)
	}

	l1, err := ristretto.New(cfg.Cache.L1MaxSizeMB << 20)
	if err != nil {
		return fmt.Errorf("l1 cache: %w", err)
	}
	defer l1.Close()
	lookup := service.NewLookupCache(
		tiered.New(l1, natskv.New(l2Bucket), cfg.Cache.ShortTTL),
		queue, uuid.NewString(), cfg.Cache,
	)
	lookup.SetMetrics(metrics)

	// --- Services ---

	hub := ws.NewHub(cfg.Server.CORSOrigin, identifySubscriber)
	defer hub.Close()

	store := postgres.NewStore(pool)
	events := service.NewEventPublisher(queue, hub)

	authSvc := service.NewAuthService(store, &cfg.Auth)
	authSvc.SetMetrics(metrics)
	if cfg.Auth.JWTSecretFile != "" {
		vault, err := secrets.NewVault(secrets.Merge(
			secrets.Static(map[string]string{secrets.JWTSecret: cfg.Auth.JWTSecret}),
			secrets.FileLoader(secrets.JWTSecret, cfg.Auth.JWTSecretFile),
		))
		if err != nil {
			return fmt.Errorf("signing keys: %w", err)
		}
		authSvc.SetSigningKeys(vault)
		go reloadOnHangup(ctx, vault)
	}
	userSvc := service.NewUserService(store)
	visitSvc := service.NewVisitService(store, events, lookup)
	visitSvc.SetMetrics(metrics)
	dashSvc := service.NewDashboardService(store, lookup)
	dashSvc.SetMetrics(metrics)

	if err := authSvc.SeedDefaultAdmin(ctx); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	authSvc.StartTokenCleanup(ctx, tokenCleanupInterval)

	// Every instance drops its L1 copy on peer evictions and relays visit
	// events to its own dashboards.
	stopInvalidate, err := queue.Subscribe(ctx, messagequeue.SubjectCacheInvalidate, lookup.HandleInvalidation)
	if err != nil {
		return fmt.Errorf("invalidation subscriber: %w", err)
	}
	defer stopInvalidate()
	stopRelay, err := queue.Subscribe(ctx, "visits.>", service.RelayVisitEvents(hub))
	if err != nil {
		return fmt.Errorf("visit relay: %w", err)
	}
	defer stopRelay()

	// --- HTTP ---

	handlers := &apihttp.Handlers{
		Auth:           authSvc,
		Users:          userSvc,
		Promoters:      service.NewPromoterService(store, authSvc, userSvc),
		Stores:         service.NewStoreService(store, lookup),
		Brands:         service.NewBrandService(store, lookup),
		PromoterBrands: service.NewPromoterBrandService(store),
		VisitPrices:    service.NewVisitPriceService(store, lookup),
		Visits:         visitSvc,
		Dashboard:      dashSvc,
		States:         service.NewStateService(lookup),
		Hub:            hub,
		DB:             store,
		Queue:          queue,
		SecureCookies:  cfg.Server.SecureCookies,
		RefreshTTL:     cfg.Auth.RefreshTokenExpiry,
	}

	limiter := middleware.NewRateLimiterFromConfig(cfg.Rate)
	limiter.StartCleanup(ctx, cfg.Rate)

	r := chi.NewRouter()
	r.Use(apihttp.CORS(cfg.Server.CORSOrigin))
	r.Use(middleware.RequestID)
	r.Use(apihttp.Logger)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(apihttp.SecurityHeaders)
	r.Use(otel.HTTPMiddleware(cfg.OTEL.ServiceName))
	r.Use(limiter.Handler)
	r.Use(middleware.Auth(authSvc, cfg.Auth.Enabled))
	r.Use(middleware.Idempotency(natskv.New(idemBucket), cfg.Idempotency.TTL))

	apihttp.MountRoutes(r, handlers)

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// reloadOnHangup re-reads the signing keys on every SIGHUP until ctx ends.
func reloadOnHangup(ctx context.Context, v *secrets.Vault) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if err := v.Reload(); err != nil {
				slog.Error("signing key reload failed, keeping current keys", "error", err)
				continue
			}
			slog.Info("signing keys reloaded")
		}
	}
}

// identifySubscriber admits the caller the auth middleware put on the
// upgrade request. Promoters only receive events about their own visits.
func identifySubscriber(r *http.Request) (ws.Subscriber, bool) {
	u := middleware.UserFromContext(r.Context())
	if u == nil {
		return ws.Subscriber{}, false
	}
	return ws.Subscriber{UserID: u.ID, SeeAll: u.Role != user.RolePromoter}, true
}
