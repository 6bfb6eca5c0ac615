package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	cloudstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/lexserve/api/internal/delivery"
	"github.com/lexserve/api/internal/di"
	"github.com/lexserve/api/internal/handlers"
	"github.com/lexserve/api/internal/payments"
	"github.com/lexserve/api/internal/platform/auth"
	"github.com/lexserve/api/internal/platform/config"
	pfirestore "github.com/lexserve/api/internal/platform/firestore"
	"github.com/lexserve/api/internal/platform/idempotency"
	"github.com/lexserve/api/internal/platform/jobs"
	"github.com/lexserve/api/internal/platform/observability"
	"github.com/lexserve/api/internal/platform/secrets"
	platformstorage "github.com/lexserve/api/internal/platform/storage"
	firestoreRepo "github.com/lexserve/api/internal/repositories/firestore"
	"github.com/lexserve/api/internal/services"
)

func main() {
	ctx := context.Background()

	baseLogger, err := observability.NewLogger(os.Getenv("LOG_LEVEL"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")
	ctx = observability.WithLogger(ctx, logger)

	envValues, err := config.EnvironmentValues()
	if err != nil {
		logger.Fatal("failed to read environment values", zap.Error(err))
	}

	fetcher, err := newSecretFetcher(ctx, logger, envValues)
	if err != nil {
		logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx,
		config.WithSecretResolver(config.SecretResolverFunc(fetcher.Resolve)),
		config.WithRequiredSecrets(requiredSecretNames(envValues)...),
	)
	if err != nil {
		var missing *config.MissingSecretsError
		if errors.As(err, &missing) {
			logger.Fatal("missing required secrets", zap.Strings("secrets", missing.RedactedNames()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	firestoreProvider := pfirestore.NewProvider(cfg.Firestore)
	firestoreClient, err := firestoreProvider.Client(ctx)
	if err != nil {
		logger.Fatal("failed to initialise firestore client", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := firestoreProvider.Close(closeCtx); err != nil {
			logger.Warn("firestore close error", zap.Error(err))
		}
	}()

	orderRepo, err := firestoreRepo.NewOrderRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise order repository", zap.Error(err))
	}
	healthRepo, err := firestoreRepo.NewHealthRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise health repository", zap.Error(err))
	}

	storageClient, err := cloudstorage.NewClient(ctx)
	if err != nil {
		logger.Fatal("failed to initialise storage client", zap.Error(err))
	}
	defer func() {
		if err := storageClient.Close(); err != nil {
			logger.Warn("storage close error", zap.Error(err))
		}
	}()

	signerFile := strings.TrimSpace(envValues["API_STORAGE_SIGNER_FILE"])
	if signerFile == "" {
		logger.Fatal("storage signer key file is required (API_STORAGE_SIGNER_FILE)")
	}
	signer, err := platformstorage.NewServiceAccountSignerFromFile(signerFile)
	if err != nil {
		logger.Fatal("failed to load storage signer key", zap.Error(err))
	}
	signedURLClient, err := platformstorage.NewClient(signer)
	if err != nil {
		logger.Fatal("failed to initialise signed url client", zap.Error(err))
	}

	templates, err := delivery.NewTemplateLibrary(delivery.TemplateLibraryDeps{
		Signer:          signedURLClient,
		Bucket:          cfg.Storage.TemplatesBucket,
		ArtifactsBucket: cfg.Storage.ScansBucket,
		SignedURLTTL:    cfg.Storage.SignedURLTTL,
	})
	if err != nil {
		logger.Fatal("failed to initialise template library", zap.Error(err))
	}

	renderer, err := delivery.NewPDFRenderer(storageClient, cfg.Storage.ScansBucket)
	if err != nil {
		logger.Fatal("failed to initialise pdf renderer", zap.Error(err))
	}

	var dispatcher services.DeliveryDispatcher
	if cfg.Mail.Enabled {
		mailer, err := delivery.NewMailer(cfg.Mail)
		if err != nil {
			logger.Fatal("failed to initialise mailer", zap.Error(err))
		}
		dispatcher = mailer
	}

	var events services.OrderEventPublisher
	if cfg.Events.Enabled {
		pubsubClient, err := pubsub.NewClient(ctx, cfg.Events.ProjectID)
		if err != nil {
			logger.Fatal("failed to initialise pubsub client", zap.Error(err))
		}
		defer func() {
			if err := pubsubClient.Close(); err != nil {
				logger.Warn("pubsub close error", zap.Error(err))
			}
		}()
		publisher, err := jobs.NewPubSubOrderEventPublisher(pubsubClient.Topic(cfg.Events.Topic))
		if err != nil {
			logger.Fatal("failed to initialise order event publisher", zap.Error(err))
		}
		events = publisher
	}

	gatewayLogger := logger.Named("razorpay")
	gateway, err := payments.NewRazorpayGateway(payments.RazorpayConfig{
		KeyID:     cfg.Gateway.KeyID,
		KeySecret: cfg.Gateway.KeySecret,
		Logger: func(_ context.Context, event string, fields map[string]any) {
			zFields := make([]zap.Field, 0, len(fields))
			for k, v := range fields {
				zFields = append(zFields, zap.Any(k, v))
			}
			gatewayLogger.Debug(event, zFields...)
		},
	})
	if err != nil {
		logger.Fatal("failed to initialise razorpay gateway", zap.Error(err))
	}

	signatureVerifier, err := payments.NewSignatureVerifier(cfg.Gateway.KeySecret)
	if err != nil {
		logger.Fatal("failed to initialise signature verifier", zap.Error(err))
	}

	jwtVerifier, err := auth.NewJWTVerifier(cfg.Auth)
	if err != nil {
		logger.Fatal("failed to initialise jwt verifier", zap.Error(err))
	}
	authenticator := auth.NewAuthenticator(jwtVerifier)
	webhookVerifier := auth.NewWebhookVerifier(cfg.Gateway.WebhookSecret)

	container, err := di.NewContainer(di.ContainerDeps{
		Config:     cfg,
		Orders:     orderRepo,
		Health:     healthRepo,
		Gateway:    gateway,
		Verifier:   signatureVerifier,
		Templates:  templates,
		Renderer:   renderer,
		Dispatcher: dispatcher,
		Events:     events,
		Logger:     logger,
		Clock:      time.Now,
	})
	if err != nil {
		logger.Fatal("failed to assemble service container", zap.Error(err))
	}

	idempotencyStore := idempotency.NewFirestoreStore(firestoreClient)
	idempotencyMiddleware := idempotency.Middleware(
		idempotencyStore,
		idempotency.WithHeader(cfg.Idempotency.Header),
		idempotency.WithTTL(cfg.Idempotency.TTL),
		idempotency.WithLogger(observability.NewPrintfAdapter(logger.Named("idempotency"))),
	)

	backgroundCtx, backgroundCancel := context.WithCancel(context.Background())
	var backgroundWG sync.WaitGroup

	if cfg.Idempotency.CleanupInterval > 0 {
		backgroundWG.Add(1)
		go func() {
			defer backgroundWG.Done()
			cleanupLogger := logger.Named("idempotency")
			ticker := time.NewTicker(cfg.Idempotency.CleanupInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					runCtx, cancel := context.WithTimeout(backgroundCtx, time.Minute)
					removed, err := idempotencyStore.CleanupExpired(runCtx, time.Now().UTC(), cfg.Idempotency.CleanupBatchSize)
					cancel()
					if err != nil {
						cleanupLogger.Error("idempotency cleanup error", zap.Error(err))
						continue
					}
					if removed > 0 {
						cleanupLogger.Info("idempotency cleanup removed records", zap.Int("count", removed))
					}
				case <-backgroundCtx.Done():
					return
				}
			}
		}()
	}

	if cfg.Orders.SweepInterval > 0 {
		backgroundWG.Add(1)
		go func() {
			defer backgroundWG.Done()
			sweepLogger := logger.Named("sweep")
			ticker := time.NewTicker(cfg.Orders.SweepInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					runCtx, cancel := context.WithTimeout(backgroundCtx, time.Minute)
					removed, err := container.Services.Orders.PurgeExpired(runCtx)
					cancel()
					if err != nil {
						sweepLogger.Error("expired order sweep error", zap.Error(err))
						continue
					}
					if removed > 0 {
						sweepLogger.Info("expired orders removed", zap.Int("count", removed))
					}
				case <-backgroundCtx.Done():
					return
				}
			}
		}()
	}

	paymentLimiter := handlers.NewRateLimiter(cfg.RateLimits.AuthenticatedPerMinute, time.Minute, time.Now)

	paymentHandlers := handlers.NewPaymentHandlers(authenticator, container.Services.Checkout, paymentLimiter)
	orderHandlers := handlers.NewOrderHandlers(authenticator, container.Services.Orders)
	notaryHandlers := handlers.NewNotaryHandlers(authenticator, container.Services.Checkout, container.Services.Notary, templates)
	bookingHandlers := handlers.NewBookingHandlers(authenticator, container.Services.Checkout, container.Services.Orders)
	reviewHandlers := handlers.NewReviewHandlers(authenticator, container.Services.Checkout, container.Services.Orders)
	documentHandlers := handlers.NewDocumentHandlers(authenticator, container.Services.Checkout)
	adminHandlers := handlers.NewAdminHandlers(authenticator, container.Services.Orders)
	webhookHandlers := handlers.NewWebhookHandlers(container.Services.Checkout)
	healthHandlers := handlers.NewHealthHandlers(handlers.WithHealthReadiness(container.Health))

	projectID := cfg.Firestore.ProjectID
	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(logger.Named("http")),
		observability.TraceMiddleware(projectID),
		observability.RecoveryMiddleware(logger.Named("http")),
		observability.RequestLoggerMiddleware(projectID),
		idempotencyMiddleware,
	}

	router := handlers.NewRouter(
		handlers.WithMiddlewares(middlewares...),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithPaymentRoutes(paymentHandlers.Routes),
		handlers.WithOrderRoutes(orderHandlers.Routes),
		handlers.WithNotaryRoutes(notaryHandlers.Routes),
		handlers.WithBookingRoutes(bookingHandlers.Routes),
		handlers.WithReviewRoutes(reviewHandlers.Routes),
		handlers.WithDocumentRoutes(documentHandlers.Routes),
		handlers.WithTemplateRoutes(documentHandlers.TemplateRoutes),
		handlers.WithAdminMiddlewares(handlers.StaffOnly(authenticator)),
		handlers.WithAdminRoutes(
			adminHandlers.Routes,
			notaryHandlers.AdminRoutes,
			bookingHandlers.AdminRoutes,
			reviewHandlers.AdminRoutes,
		),
		handlers.WithWebhookMiddlewares(webhookVerifier.RequireWebhookSignature),
		handlers.WithWebhookRoutes(webhookHandlers.Routes),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("lexserve api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	backgroundCancel()
	backgroundWG.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func newSecretFetcher(ctx context.Context, logger *zap.Logger, env map[string]string) (*secrets.Fetcher, error) {
	lookup := func(key string) string {
		if env == nil {
			return ""
		}
		return strings.TrimSpace(env[key])
	}

	envLabel := strings.ToLower(lookup("API_ENVIRONMENT"))
	if envLabel == "" {
		envLabel = "local"
	}
	defaultProject := lookup("API_SECRET_DEFAULT_PROJECT_ID")
	if defaultProject == "" {
		defaultProject = lookup("API_FIRESTORE_PROJECT_ID")
	}
	fallbackPath := lookup("API_SECRET_FALLBACK_FILE")
	if fallbackPath == "" {
		fallbackPath = ".secrets.local"
	}
	credentialsFile := lookup("API_SECRET_CREDENTIALS_FILE")

	opts := []secrets.Option{
		secrets.WithEnvironment(envLabel),
		secrets.WithLogger(logger.Named("secrets")),
		secrets.WithFallbackFile(fallbackPath),
	}
	if defaultProject != "" {
		opts = append(opts, secrets.WithDefaultProject(defaultProject))
	}
	if credentialsFile != "" {
		opts = append(opts, secrets.WithClientOptions(option.WithCredentialsFile(credentialsFile)))
	}
	if pins := parseVersionPins(lookup("API_SECRET_VERSION_PINS")); len(pins) > 0 {
		opts = append(opts, secrets.WithVersionPins(pins))
	}

	return secrets.NewFetcher(ctx, opts...)
}

// parseVersionPins parses "secret://name=3,prod:secret://other=7" style
// overrides from the environment.
func parseVersionPins(raw string) map[string]string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	pins := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if key != "" && value != "" {
			pins[key] = value
		}
	}
	return pins
}

// requiredSecretNames lists the secrets configuration must resolve before the
// server may start. Mail credentials become mandatory only when the relay is
// switched on.
func requiredSecretNames(env map[string]string) []string {
	required := []string{
		"Gateway.KeySecret",
		"Gateway.WebhookSecret",
		"Auth.JWTSecret",
	}
	if env != nil && strings.EqualFold(strings.TrimSpace(env["API_MAIL_ENABLED"]), "true") {
		if strings.TrimSpace(env["API_MAIL_PASSWORD"]) != "" {
			required = append(required, "Mail.Password")
		}
	}
	return required
}
