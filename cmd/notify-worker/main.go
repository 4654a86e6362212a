// Package main is the entrypoint for the Notify Worker Lambda function.
//
// The Notify Worker consumes activity messages from the activity SQS queue
// and drives each one through the dispatch pipeline: classification, the
// distributed dedup lock, recipient resolution, and Slack delivery.
//
// Cold Start (main):
//  1. Initialize structured logger.
//  2. Load and validate service configuration (env / dotenv / SSM).
//  3. Open the PostgreSQL pool and build the repositories.
//  4. Initialize the Slack client, resolver cache, and dedup locker.
//  5. Initialize CloudWatch metrics (no-op in local).
//  6. Register handler and call lambda.Start.
//
// Handler flow per SQS batch:
//
//	For each SQS message:
//	  1. Unmarshal ActivityMessage from the message body (parse failure ACKs).
//	  2. Record queue lag from the SentTimestamp attribute.
//	  3. Dispatch; a non-nil error marks the record as a partial batch
//	     failure so SQS redelivers only that message.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/jackc/pgx/v5/pgxpool"

	"reviewnotify/internal/config"
	"reviewnotify/internal/db"
	"reviewnotify/internal/lock"
	"reviewnotify/internal/notify"
	"reviewnotify/internal/resolve"
	"reviewnotify/internal/slack"
	"reviewnotify/internal/types"
)

// slogAdapter wraps *slog.Logger to implement the types.Logger interface.
// slog.Logger satisfies Info, Error, and Warn directly, but With returns
// *slog.Logger rather than types.Logger, so an adapter is necessary.
type slogAdapter struct {
	logger *slog.Logger
}

func (a *slogAdapter) Info(msg string, args ...any)  { a.logger.Info(msg, args...) }
func (a *slogAdapter) Error(msg string, args ...any) { a.logger.Error(msg, args...) }
func (a *slogAdapter) Warn(msg string, args ...any)  { a.logger.Warn(msg, args...) }
func (a *slogAdapter) With(args ...any) types.Logger {
	return &slogAdapter{logger: a.logger.With(args...)}
}

// Handler holds the dependencies for the notify worker Lambda handler.
type Handler struct {
	dispatcher *notify.Dispatcher
	metrics    notify.Metrics
	logger     types.Logger

	// disabled is set when no Slack token is configured. Events are
	// acknowledged without dispatching so the queue drains cleanly.
	disabled bool
}

// Handle processes an SQS event containing one or more activity messages.
// Each message is dispatched independently; Lambda SQS integration uses
// partial batch responses, so messages whose dispatch fails are returned in
// batchItemFailures and redelivered without blocking the rest of the batch.
func (h *Handler) Handle(ctx context.Context, sqsEvent events.SQSEvent) (events.SQSEventResponse, error) {
	response := events.SQSEventResponse{}

	for _, record := range sqsEvent.Records {
		if err := h.processMessage(ctx, record); err != nil {
			h.logger.Error("failed to process SQS message",
				"message_id", record.MessageId,
				"error", err.Error(),
			)
			response.BatchItemFailures = append(response.BatchItemFailures,
				events.SQSBatchItemFailure{ItemIdentifier: record.MessageId},
			)
		}
	}

	return response, nil
}

// processMessage handles a single SQS record through the dispatch pipeline.
// A nil return ACKs the record.
func (h *Handler) processMessage(ctx context.Context, record events.SQSMessage) error {
	var msg types.ActivityMessage
	if err := json.Unmarshal([]byte(record.Body), &msg); err != nil {
		h.logger.Error("failed to unmarshal activity message",
			"message_id", record.MessageId,
			"error", err.Error(),
		)
		// Permanent parse failure - do not retry (return nil to ACK).
		return nil
	}

	ctx = types.WithRequestID(ctx, msg.TraceID)

	logger := h.logger.With(
		"review_id", msg.ReviewID,
		"activity_id", msg.ActivityID,
		"trace_id", msg.TraceID,
	)
	logger.Info("processing activity message", "raw_action", msg.ActivityAction)

	if sentTimestamp, ok := record.Attributes["SentTimestamp"]; ok {
		if sentAt, err := parseMillisTimestamp(sentTimestamp); err == nil {
			h.metrics.RecordQueueLag(ctx, time.Since(sentAt))
		}
	}

	if h.disabled {
		logger.Info("notifier disabled, acknowledging without dispatch")
		return nil
	}

	return h.dispatcher.Dispatch(ctx, &msg)
}

// parseMillisTimestamp parses a millisecond-epoch string into a time.Time.
// Used for the SQS SentTimestamp attribute to calculate queue lag.
func parseMillisTimestamp(ms string) (time.Time, error) {
	var millis int64
	if _, err := fmt.Sscanf(ms, "%d", &millis); err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(millis), nil
}

// parseLogLevel maps the configured level name onto a slog.Level, defaulting
// to info for unknown values.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// newPool opens a pgx pool with the configured tuning applied.
func newPool(ctx context.Context, dbCfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(dbCfg.URL.Unmask())
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	poolCfg.MaxConns = int32(dbCfg.MaxConns)
	poolCfg.MinConns = int32(dbCfg.MinConns)
	poolCfg.MaxConnLifetime = dbCfg.MaxConnLifetime
	poolCfg.HealthCheckPeriod = dbCfg.HealthCheckPeriod
	poolCfg.ConnConfig.ConnectTimeout = dbCfg.AcquireTimeout

	return pgxpool.NewWithConfig(ctx, poolCfg)
}

func main() {
	ctx := context.Background()

	cfg, err := config.LoadConfig(config.NewSSMProvider(os.Getenv("AWS_REGION")))
	if err != nil {
		// The logger is configured from cfg, which failed to load.
		slog.Error("failed to load configuration", "error", err.Error())
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))
	logger.Info("Notify Worker Lambda initializing (cold start)",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
	)

	typedLogger := &slogAdapter{logger: logger}

	pool, err := newPool(ctx, cfg.Database)
	if err != nil {
		logger.Error("failed to open database pool", "error", err.Error())
		os.Exit(1)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		logger.Error("failed to load AWS SDK config", "error", err.Error())
		os.Exit(1)
	}

	var metrics notify.Metrics = notify.NopMetrics{}
	if cfg.Environment != "local" {
		cwClient := cloudwatch.NewFromConfig(awsCfg, func(o *cloudwatch.Options) {
			if cfg.AWS.EndpointURL != "" {
				o.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
			}
		})
		metrics = notify.NewCloudWatchMetrics(cwClient, cfg.Observability.MetricNamespace, typedLogger)
	}

	slackClient := slack.NewClient(
		&http.Client{Timeout: cfg.Slack.HTTPTimeout},
		cfg.Slack.Token,
		cfg.Slack.APIBaseURL,
		typedLogger,
	)

	resolver := resolve.NewResolver(slackClient, cfg.Slack.UserCacheTTL, typedLogger)
	resolver.SetObserver(func(hit bool) {
		metrics.RecordCacheLookup(context.Background(), hit)
	})

	locker := lock.NewLeaseLocker(
		db.NewLockRepository(pool),
		lock.Options{
			LeaseTTL:       cfg.Lock.LeaseTTL,
			AcquireTimeout: cfg.Lock.AcquireTimeout,
			PollInterval:   cfg.Lock.PollInterval,
		},
		typedLogger,
	)

	builder := notify.NewBuilder(
		cfg.Slack.NotifyChannel,
		cfg.Review.Hostname,
		cfg.Review.ExternalURL,
		cfg.Review.ServerID,
	)

	dispatcher := notify.NewDispatcher(
		builder,
		locker,
		db.NewReviewRepository(pool),
		db.NewUserRepository(pool),
		resolver,
		slackClient,
		metrics,
		typedLogger,
	)

	handler := &Handler{
		dispatcher: dispatcher,
		metrics:    metrics,
		logger:     typedLogger,
		disabled:   !cfg.Slack.Enabled(),
	}

	if handler.disabled {
		logger.Warn("no Slack token configured, notifications are disabled")
	}

	logger.Info("Notify Worker Lambda initialized",
		"activity_queue", cfg.AWS.ActivityQueue,
		"notify_channel", cfg.Slack.NotifyChannel,
		"user_cache_ttl", cfg.Slack.UserCacheTTL.String(),
		"lock_lease_ttl", cfg.Lock.LeaseTTL.String(),
		"metric_namespace", cfg.Observability.MetricNamespace,
	)

	lambda.Start(handler.Handle)
}

// Compile-time assertion that slogAdapter implements types.Logger.
var _ types.Logger = (*slogAdapter)(nil)
