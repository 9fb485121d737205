package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"wellbeing-server/pkg/app"
	"wellbeing-server/pkg/behavior"
	"wellbeing-server/pkg/config"
	"wellbeing-server/pkg/database"
	http_server "wellbeing-server/pkg/http"
	"wellbeing-server/pkg/insights"
	"wellbeing-server/pkg/messaging"
	"wellbeing-server/pkg/metrics"
	"wellbeing-server/pkg/models"
	"wellbeing-server/pkg/realtime"
	"wellbeing-server/pkg/risk"
	"wellbeing-server/pkg/usage"
)

var (
	logger     = logrus.New()
	appConfig  *config.Config
	repo       database.Repository
	amqpClient *messaging.AMQPClient
	httpServer *http_server.Server

	rootCtx    context.Context
	rootCancel context.CancelFunc
)

func main() {
	// Basic logger setup; refined once config is loaded.
	logger.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339Nano,
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
		},
	})
	logger.SetOutput(os.Stdout)

	rootCtx, rootCancel = context.WithCancel(context.Background())
	defer rootCancel()

	if err := initialize(); err != nil {
		logger.WithError(err).Fatal("Failed to initialize application")
	}

	if appConfig.HTTP.Enabled {
		httpServer.Start()
		logger.Info("HTTP server started")
	} else {
		logger.Info("HTTP server is disabled by configuration")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	sig := <-sigChan
	logger.WithField("signal", sig.String()).Info("Received shutdown signal, cleaning up...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	rootCancel()

	if httpServer != nil {
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Error("Error shutting down HTTP server")
		} else {
			logger.Info("HTTP server shut down successfully")
		}
	}

	if amqpClient != nil && amqpClient.IsConnected() {
		amqpClient.Disconnect()
		logger.Info("AMQP client disconnected")
	}

	if repo != nil {
		if err := repo.Close(); err != nil {
			logger.WithError(err).Error("Error closing storage")
		} else {
			logger.Info("Storage closed")
		}
	}

	logger.Info("All components shut down successfully")
}

func initialize() error {
	var err error
	appConfig, err = config.Load(logger)
	if err != nil {
		return err
	}

	applyLoggingConfig()

	metrics.StartMetrics(logger, appConfig.HTTP.EnableMetrics)

	// Storage backend.
	switch appConfig.Database.Driver {
	case "sqlite":
		repo, err = database.NewSQLiteRepository(logger, appConfig.Database.Path)
		if err != nil {
			return err
		}
	default:
		repo = database.NewMemoryRepository(logger)
		logger.Info("Using in-memory storage")
	}

	// Optional AMQP publishing.
	amqpClient = messaging.NewAMQPClient(logger, messaging.AMQPConfig{
		URL:          appConfig.Messaging.AMQPUrl,
		Exchange:     appConfig.Messaging.Exchange,
		RoutingKey:   appConfig.Messaging.RoutingKey,
		ConsumeQueue: appConfig.Messaging.ConsumeQueue,
		MaxRetries:   appConfig.Messaging.MaxRetries,
		RetryBackoff: appConfig.Messaging.RetryBackoff,
	})
	if amqpClient.Enabled() {
		go func() {
			if err := amqpClient.ConnectWithRetry(rootCtx); err != nil {
				logger.WithError(err).Warn("AMQP connection could not be established, publishing disabled")
			}
		}()
	}

	// Analysis pipeline.
	aggregator := usage.NewAggregator(logger, &usage.Config{
		BingeThreshold: appConfig.Analytics.BingeThresholdMinutes,
		ContinuityGap:  appConfig.Analytics.ContinuityGap,
	})

	ruleScorer := risk.NewRuleScorer(logger, nil)
	scorer := risk.NewModelScorer(logger, ruleScorer)

	var geminiClient *insights.GeminiClient
	if appConfig.Insights.Enabled() {
		geminiClient = insights.NewGeminiClient(logger, insights.Config{
			APIKey:  appConfig.Insights.GeminiAPIKey,
			Model:   appConfig.Insights.GeminiModel,
			Timeout: appConfig.Insights.Timeout,
		})
	}

	service := app.NewAnalysisService(
		logger,
		&app.Config{
			WindowDays:  appConfig.Analytics.WindowDays,
			HistoryDays: appConfig.Analytics.HistoryDays,
		},
		repo,
		aggregator,
		scorer,
		risk.NewInsightGenerator(logger, nil),
		insights.NewGenerator(logger, geminiClient),
		behavior.NewAnalyzer(logger, aggregator),
		amqpClient,
	)

	// Optional event ingestion from the message broker.
	if amqpClient.Enabled() && appConfig.Messaging.ConsumeQueue != "" {
		go func() {
			err := amqpClient.ConsumeUsageEvents(rootCtx, func(ctx context.Context, event models.UsageEvent) error {
				return service.RecordEvent(ctx, event)
			})
			if err != nil && rootCtx.Err() == nil {
				logger.WithError(err).Warn("AMQP usage event consumer stopped")
			}
		}()
	}

	// Real-time tracking over WebSocket.
	tracker := realtime.NewTracker(logger, nil)
	wsHandler := http_server.NewLiveUsageHandler(logger, tracker)
	wsHandler.Start()

	httpServer = http_server.NewServer(logger, &http_server.Config{
		Port:          appConfig.HTTP.Port,
		ReadTimeout:   appConfig.HTTP.ReadTimeout,
		WriteTimeout:  appConfig.HTTP.WriteTimeout,
		EnableMetrics: appConfig.HTTP.EnableMetrics,
	}, service)
	httpServer.SetLiveUsageHandler(wsHandler)

	logger.Info("Application initialized")
	return nil
}

func applyLoggingConfig() {
	level, err := logrus.ParseLevel(appConfig.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if appConfig.Logging.Format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	if appConfig.Logging.OutputFile != "" {
		file, err := os.OpenFile(appConfig.Logging.OutputFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			logger.WithError(err).Warn("Failed to open log output file, using stdout")
		} else {
			logger.SetOutput(file)
		}
	}
}
