// cmd/geoquery-worker/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"geoquery-worker/internal/common/aws"
	"geoquery-worker/internal/common/config"
	"geoquery-worker/internal/common/genai"
	commonhttp "geoquery-worker/internal/common/http"
	"geoquery-worker/internal/common/logger"
	"geoquery-worker/internal/common/observability"
	"geoquery-worker/internal/common/queue"

	elq "geoquery-worker/internal/workers/geocoding/extract-location-query"
	ue "geoquery-worker/internal/workers/messaging/unwrap-envelope"
)

func main() {
	bootLog := logger.New("info", "console", "stdout")

	cfg, err := config.Load()
	if err != nil {
		if config.IsConfigurationError(err) {
			bootLog.Error("configuration error", zap.Error(err))
		} else {
			bootLog.Error("config load failed", zap.Error(err))
		}
		_ = bootLog.Sync()
		os.Exit(1)
	}
	_ = bootLog.Sync()

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	redacted := cfg.Redacted()
	zapLog.Info("Starting geoquery worker",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
		zap.String("queueUrl", cfg.Queue.URL),
		zap.String("region", cfg.AWS.Region),
		zap.String("model", cfg.GenAI.Model),
		zap.String("envelopeMode", cfg.Envelope.Mode),
		zap.String("accessKeyId", redacted.AWS.AccessKeyID),
	)

	obs := observability.New(cfg.Observability.ServiceName, log)
	defer obs.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Completion client and pipeline, built once ---
	genaiTimeout := config.GetDuration(cfg.GenAI.Timeout)
	completer, err := genai.NewClient(&genai.Config{
		BaseURL:     cfg.GenAI.BaseURL,
		APIKey:      cfg.GenAI.APIKey,
		Model:       cfg.GenAI.Model,
		Temperature: cfg.GenAI.Temperature,
		MaxTokens:   cfg.GenAI.MaxTokens,
		Timeout:     genaiTimeout,
	}, commonhttp.NewClient(genaiTimeout, cfg.App.Name+"/"+cfg.App.Version), log)
	if err != nil {
		zapLog.Fatal("failed to create completion client", zap.Error(err))
	}

	mode := ue.Mode(cfg.Envelope.Mode)
	unwrapper := ue.NewUnwrapper(&ue.Config{Mode: mode}, completer, log)
	pipelineCfg := elq.LoadConfig()
	pipelineCfg.EnvelopeMode = mode
	pipeline := elq.NewHandler(pipelineCfg, completer, log)

	// --- Queue and optional result topic ---
	awsCfg, err := aws.LoadConfig(ctx, aws.Credentials{
		Region:          cfg.AWS.Region,
		AccessKeyID:     cfg.AWS.AccessKeyID,
		SecretAccessKey: cfg.AWS.SecretAccessKey,
	})
	if err != nil {
		zapLog.Fatal("failed to load aws config", zap.Error(err))
	}

	sqsClient := aws.NewSQSClient(awsCfg, cfg.AWS.Endpoint, aws.SQSOptions{
		QueueURL:            cfg.Queue.URL,
		WaitTimeSeconds:     cfg.Queue.WaitTimeSeconds,
		MaxNumberOfMessages: cfg.Queue.MaxNumberOfMessages,
	})

	opts := []queue.Option{queue.WithRecorder(obs)}
	if cfg.Notifications.SNS.Enabled {
		opts = append(opts, queue.WithPublisher(aws.NewSNSClient(awsCfg, cfg.AWS.Endpoint, cfg.Notifications.SNS.TopicARN)))
		zapLog.Info("Publishing results to SNS", zap.String("topicArn", cfg.Notifications.SNS.TopicARN))
	}

	consumer := queue.NewConsumer(&queue.Config{
		ErrorBackoff:    config.GetDuration(cfg.Queue.ErrorBackoff),
		NonTargetPolicy: cfg.Queue.NonTargetPolicy,
	}, sqsClient, unwrapper, pipeline, log, opts...)

	// --- Health & Metrics Server ---
	server := &http.Server{
		Addr:              cfg.Observability.MetricsAddress,
		Handler:           newHTTPMux(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("address", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	zapLog.Info("Listening for messages on SQS queue", zap.String("queueUrl", cfg.Queue.URL))
	if err := consumer.Run(ctx); err != nil {
		zapLog.Error("consumer stopped with error", zap.Error(err))
	}

	zapLog.Info("Shutdown signal received, stopping worker...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping health server", zap.Error(err))
	}

	zapLog.Info("Geoquery worker stopped gracefully")
}

func newHTTPMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}
