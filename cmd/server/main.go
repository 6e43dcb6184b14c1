// Command server runs the diagnosis API: LLM-backed fortune generation, the
// paywall over detailed results, and payment webhook processing.
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

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"akashic/internal/audit"
	"akashic/internal/completion"
	diagnosishandler "akashic/internal/diagnosis/handler"
	diagnosismetrics "akashic/internal/diagnosis/metrics"
	diagnosisservice "akashic/internal/diagnosis/service"
	diagnosisstore "akashic/internal/diagnosis/store"
	"akashic/internal/document"
	"akashic/internal/payment"
	paymenthandler "akashic/internal/payment/handler"
	paymentmetrics "akashic/internal/payment/metrics"
	paymentstore "akashic/internal/payment/store"
	"akashic/internal/platform/config"
	"akashic/internal/platform/httpserver"
	"akashic/internal/platform/logger"
	platformmetrics "akashic/internal/platform/metrics"
	"akashic/internal/platform/middleware"
	platformredis "akashic/internal/platform/redis"
)

const auditBufferSize = 256

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "server failed:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.FromEnv()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log := logger.New(cfg.Environment)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Diagnosis storage.
	diagStore, closeStore, err := buildDiagnosisStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initialize diagnosis store: %w", err)
	}
	if closeStore != nil {
		defer closeStore()
	}

	// Redis backs webhook dedupe when configured; memory otherwise.
	redisClient, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("initialize redis: %w", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}
	var eventStore paymentstore.EventStore
	if redisClient != nil {
		eventStore = paymentstore.NewRedis(redisClient)
	} else {
		eventStore = paymentstore.NewInMemory()
	}

	// Completion provider.
	provider, err := buildCompletionProvider(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initialize completion provider: %w", err)
	}

	// Audit: always persisted locally via the worker; additionally mirrored
	// to Kafka when brokers are configured.
	auditStore := audit.NewInMemoryStore()
	auditPublisher := audit.NewPublisher(auditBufferSize, log)
	auditWorker := audit.NewWorker(auditStore, auditPublisher.Inbox(), log)

	var auditor audit.Emitter = auditPublisher
	if len(cfg.KafkaBrokers) > 0 {
		kafka, err := audit.NewKafkaPublisher(cfg.KafkaBrokers, cfg.AuditKafkaTopic, log)
		if err != nil {
			return fmt.Errorf("initialize kafka audit publisher: %w", err)
		}
		defer kafka.Close()
		auditor = teeEmitter{auditPublisher, kafka}
	}

	// Services.
	renderer := document.NewPDF()
	diagService, err := diagnosisservice.New(diagStore, provider, log,
		diagnosisservice.WithMetrics(diagnosismetrics.New()),
		diagnosisservice.WithAuditor(auditor),
		diagnosisservice.WithRenderer(renderer),
	)
	if err != nil {
		return fmt.Errorf("initialize diagnosis service: %w", err)
	}

	payProvider := buildPaymentProvider(cfg)
	payOpts := []payment.Option{
		payment.WithMetrics(paymentmetrics.New()),
		payment.WithAuditor(auditor),
	}
	if cfg.WebhookSkipVerification {
		log.Warn("webhook signature verification is disabled")
		payOpts = append(payOpts, payment.WithSkipVerify())
	}
	payService, err := payment.New(payProvider, diagService, eventStore, log, payOpts...)
	if err != nil {
		return fmt.Errorf("initialize payment service: %w", err)
	}

	// Router.
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RequestTime)
	router.Use(middleware.Recovery(log))
	router.Use(middleware.Logger(log))
	router.Use(middleware.ContentTypeJSON)
	router.Use(platformmetrics.NewHTTP().Middleware)

	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if redisClient != nil {
			if err := redisClient.Health(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	})
	router.Method(http.MethodGet, "/metrics", promhttp.Handler())

	diagnosishandler.New(diagService, log).Register(router)
	paymenthandler.New(payService, log).Register(router)

	server := httpserver.New(cfg.Addr, router)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return auditWorker.Run(groupCtx)
	})
	group.Go(func() error {
		log.Info("server listening",
			"addr", cfg.Addr,
			"environment", cfg.Environment,
			"store_backend", cfg.StoreBackend,
			"completion_provider", cfg.CompletionProvider,
			"payment_provider", cfg.PaymentProvider,
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func buildDiagnosisStore(ctx context.Context, cfg config.Config) (diagnosisstore.Store, func() error, error) {
	switch cfg.StoreBackend {
	case config.StorePostgres:
		st, err := diagnosisstore.NewPostgres(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, nil, err
		}
		return st, st.Close, nil
	case config.StoreFirestore:
		st, err := diagnosisstore.NewFirestore(ctx, cfg.FirestoreProject, cfg.FirestoreDatabase)
		if err != nil {
			return nil, nil, err
		}
		return st, st.Close, nil
	default:
		return diagnosisstore.NewInMemoryStore(), nil, nil
	}
}

func buildCompletionProvider(ctx context.Context, cfg config.Config) (completion.Provider, error) {
	switch cfg.CompletionProvider {
	case config.CompletionGemini:
		return completion.NewGemini(ctx, cfg.GeminiProject, cfg.GeminiLocation,
			completion.WithGeminiModel(cfg.GeminiModel))
	default:
		return completion.NewOpenAI(cfg.OpenAIAPIKey,
			completion.WithOpenAIModel(cfg.OpenAIModel),
			completion.WithOpenAIBaseURL(cfg.OpenAIBaseURL),
		), nil
	}
}

func buildPaymentProvider(cfg config.Config) payment.Provider {
	switch cfg.PaymentProvider {
	case config.PaymentSquare:
		return payment.NewSquare(
			cfg.SquareAccessToken,
			cfg.SquareLocationID,
			cfg.SquareWebhookSignature,
			cfg.FrontendURL,
			cfg.PriceAmount,
			cfg.PriceCurrency,
		)
	default:
		return payment.NewStripe(
			cfg.StripeSecretKey,
			cfg.StripeWebhookSecret,
			cfg.FrontendURL,
			cfg.PriceAmount,
			cfg.PriceCurrency,
		)
	}
}

// teeEmitter fans one audit event out to every sink.
type teeEmitter []audit.Emitter

func (t teeEmitter) Emit(ctx context.Context, event audit.Event) {
	for _, e := range t {
		e.Emit(ctx, event)
	}
}
