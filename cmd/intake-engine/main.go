// cmd/intake-engine/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"intake-engine/internal/common/aws"
	"intake-engine/internal/common/config"
	"intake-engine/internal/common/database"
	commonhttp "intake-engine/internal/common/http"
	"intake-engine/internal/common/logger"
	"intake-engine/internal/common/observability"
	"intake-engine/internal/directory"
	"intake-engine/internal/engine/assign"
	"intake-engine/internal/engine/eta"
	"intake-engine/internal/engine/extract"
	"intake-engine/internal/engine/practice"
	"intake-engine/internal/engine/processor"
	"intake-engine/internal/mail"
	"intake-engine/internal/notify"
	"intake-engine/internal/rulecfg"
	"intake-engine/internal/store"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	// Bootstrap logger; replaced with the configured one once config loads.
	zapLog := logger.New("info", "console")

	zapLog.Info("Starting intake engine...")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	zapLog = logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)

	obs := observability.New("intake-engine")
	defer obs.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
	var redis *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redis, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return redis.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redis.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init Elasticsearch with retry ---
	var esClient *database.ElasticsearchClient
	err = retryWithBackoff(func() error {
		var err error
		esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return err
		}
		return esClient.Ping()
	}, 15, 2*time.Second, zapLog, "Elasticsearch connection")

	if err != nil {
		zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
	}
	zapLog.Info("Elasticsearch connected successfully")

	// --- Init AWS clients ---
	var sesClient *aws.SESClient
	var snsClient *aws.SNSClient
	if cfg.Notifications.Email.Enabled {
		sesClient, err = aws.NewSESClient(ctx, cfg.Notifications.AWS.Region)
		if err != nil {
			zapLog.Fatal("ses client failed", zap.Error(err))
		}
	}
	if cfg.Notifications.SMS.Enabled {
		snsClient, err = aws.NewSNSClient(ctx, cfg.Notifications.AWS.Region)
		if err != nil {
			zapLog.Fatal("sns client failed", zap.Error(err))
		}
	}

	// --- Load processing rules ---
	rules, err := rulecfg.Load(cfg.Engine.RulesPath)
	if err != nil {
		zapLog.Fatal("rule configuration invalid", zap.Error(err))
	}
	zapLog.Info("Processing rules loaded", zap.Int("count", len(rules)))

	// --- Wire the engine ---
	httpClient := commonhttp.NewClient(config.GetDuration(cfg.Intake.CallTimeout))
	mailClient := mail.NewGatewayClient(cfg.Intake.MailGatewayURL, cfg.Intake.MailGatewayToken, httpClient, log)

	dir := directory.NewPostgresDirectory(pg.DB, redis.Client, log)
	assignmentStore := store.NewPostgresStore(pg.DB, redis.Client, log)

	var emailSender notify.EmailSender
	if sesClient != nil {
		emailSender = sesClient
	}
	var smsPublisher notify.SMSPublisher
	if snsClient != nil {
		smsPublisher = snsClient
	}
	dispatcher := notify.NewMultiDispatcher(cfg.Notifications, httpClient, emailSender, smsPublisher, log)

	etaSink := eta.NewElasticsearchSink(esClient, cfg.Database.Elasticsearch.ETAIndex)

	service := processor.NewService(cfg, processor.Deps{
		Mail:       mailClient,
		Store:      assignmentStore,
		Directory:  dir,
		Extractor:  extract.NewExtractor(dir, log, cfg.Engine.ScanLines),
		Matcher:    practice.NewMatcher(cfg.Engine.Practices, log),
		Assigner:   assign.NewEngine(dir, assignmentStore, log),
		Tracker:    eta.NewTracker(etaSink, log),
		Dispatcher: dispatcher,
		Rules:      rules,
	}, log)

	// --- Metrics endpoint ---
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		addr := fmt.Sprintf(":%d", cfg.App.MetricsPort)
		zapLog.Info("Metrics endpoint listening", zap.String("addr", addr))
		if err := http.ListenAndServe(addr, mux); err != nil {
			zapLog.Error("metrics server stopped", zap.Error(err))
		}
	}()

	zapLog.Info("Intake engine running",
		zap.Duration("pollInterval", config.GetDuration(cfg.Intake.PollInterval)),
		zap.Int("rules", len(rules)),
	)

	service.Run(ctx)

	zapLog.Info("Shutdown complete")
}
