// Package main is the entry point for the Coinbase Commerce webhook receiver.
//
// It loads configuration, builds the notification sinks for verified events
// (Discord, SQS) and the CloudWatch metrics recorder, then serves
// POST /webhooks/coinbase and GET /health on the core chassis.
//
// In local mode it runs a standard HTTP server on the configured port. Inside
// AWS Lambda (AWS_LAMBDA_RUNTIME_API set) the same router is driven by API
// Gateway proxy events.
//
// Graceful shutdown is handled via OS signal interception (SIGINT, SIGTERM).
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

	"github.com/aws/aws-lambda-go/lambda"
	chiadapter "github.com/awslabs/aws-lambda-go-api-proxy/chi"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"commercepay/internal/api/handlers"
	"commercepay/internal/config"
	"commercepay/internal/core"
	"commercepay/internal/notify"
	"commercepay/internal/webhook"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so that main() can cleanly exit on error.
func run() error {
	appEnv := os.Getenv("APP_ENV")
	if appEnv == "" {
		appEnv = "local"
	}
	provider := config.NewSecretProvider(appEnv, os.Getenv("AWS_REGION"), os.Getenv("AWS_ENDPOINT_URL"))

	cfg, err := config.LoadConfig(provider)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if err := cfg.RequireWebhook(); err != nil {
		return err
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("webhook receiver starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.Server.Port,
	)

	srv, err := buildServer(context.Background(), cfg, logger)
	if err != nil {
		return err
	}

	if isLambdaEnvironment() {
		logger.Info("running in Lambda mode")
		lambda.Start(chiadapter.New(srv.Router()).ProxyWithContext)
		return nil
	}

	return runHTTPServer(srv, cfg, logger)
}

// buildServer wires sinks, metrics and the webhook route onto a core.Server.
func buildServer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*core.Server, error) {
	var (
		sinks   []handlers.EventSink
		probes  []core.HealthProbe
		metrics interface {
			handlers.WebhookMetrics
			core.MetricsCollector
		} = notify.NoopMetrics{}
	)

	if !cfg.Notify.DiscordWebhookURL.IsZero() {
		httpClient := &http.Client{Timeout: cfg.Commerce.Timeout}
		sinks = append(sinks, notify.NewDiscordSink(httpClient, cfg.Notify.DiscordWebhookURL, cfg.Notify.DiscordFooter, logger))
	}

	if cfg.Notify.EventQueueURL != "" || cfg.Observability.MetricNamespace != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
		if err != nil {
			return nil, fmt.Errorf("loading AWS config: %w", err)
		}

		if cfg.Notify.EventQueueURL != "" {
			sqsClient := sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
				if cfg.AWS.EndpointURL != "" {
					o.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
				}
			})
			publisher := notify.NewEventPublisher(sqsClient, cfg.Notify.EventQueueURL, logger)
			sinks = append(sinks, publisher)
			probes = append(probes, publisher)
		}

		if cfg.Observability.MetricNamespace != "" {
			cwClient := cloudwatch.NewFromConfig(awsCfg, func(o *cloudwatch.Options) {
				if cfg.AWS.EndpointURL != "" {
					o.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
				}
			})
			metrics = notify.NewCloudWatchMetrics(cwClient, cfg.Observability.MetricNamespace, logger)
		}
	}

	if len(sinks) == 0 {
		logger.Warn("no notification sinks configured; verified events will only be logged")
	}

	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("creating server: %w", err)
	}
	srv.Metrics = metrics
	srv.HealthProbes = probes

	webhookHandler := handlers.NewCoinbaseWebhookHandler(
		webhook.NewVerifier(cfg.Webhook.Secret),
		sinks,
		metrics,
		logger,
	)
	srv.Registrars = append(srv.Registrars, webhookHandler.RegisterRoutes)

	srv.MountRoutes()
	return srv, nil
}

// isLambdaEnvironment returns true if the process is running inside AWS Lambda.
func isLambdaEnvironment() bool {
	_, hasRuntimeAPI := os.LookupEnv("AWS_LAMBDA_RUNTIME_API")
	_, hasServerPort := os.LookupEnv("_LAMBDA_SERVER_PORT")
	return hasRuntimeAPI || hasServerPort
}

// runHTTPServer starts the server in standard HTTP mode with graceful shutdown.
func runHTTPServer(srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)

	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("initiating graceful shutdown")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}

// newLogger creates a structured slog.Logger configured for the given log level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     lvl,
		AddSource: false,
	})
	return slog.New(handler)
}
