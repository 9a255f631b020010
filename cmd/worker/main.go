package main

import (
	"context"
	"log"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"github.com/etalk/webchain-order-sync/internal/aws"
	"github.com/etalk/webchain-order-sync/internal/broadcast"
	"github.com/etalk/webchain-order-sync/internal/config"
	"github.com/etalk/webchain-order-sync/internal/errlog"
	"github.com/etalk/webchain-order-sync/internal/logger"
	"github.com/etalk/webchain-order-sync/internal/metrics"
	"github.com/etalk/webchain-order-sync/internal/notify"
	"github.com/etalk/webchain-order-sync/internal/orders"
	"github.com/etalk/webchain-order-sync/internal/settings"
	"github.com/etalk/webchain-order-sync/internal/webchain"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zlog := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	defer func() { _ = zlog.Sync() }()

	clients, err := aws.NewAWSClients(context.Background())
	if err != nil {
		zlog.Fatal("failed to init aws clients", zap.Error(err))
	}

	apiClient := webchain.NewClient(cfg.WebChain.APIBaseURL, cfg.WebChain.Timeout)
	mailer := notify.NewSESMailer(clients.SES, cfg.Mail.SenderEmail)

	engine := broadcast.NewEngine(broadcast.Deps{
		Orders:   orders.NewStore(clients.DynamoDB, cfg.Tables.Orders),
		Records:  broadcast.NewRecordStore(clients.DynamoDB, cfg.Tables.BroadcastRecords),
		Settings: settings.NewStore(clients.DynamoDB, cfg.Tables.Settings),
		API:      apiClient,
		Errors:   errlog.NewStore(clients.DynamoDB, cfg.Tables.Settings),
		Notifier: notify.NewDispatcher(mailer, cfg.Mail.AdminEmail, cfg.App.SiteName, cfg.WebChain.ExplorerBaseURL, zlog),
		Metrics:  metrics.NewRecorder(clients.CloudWatch, zlog),
		Logger:   zlog,
	})

	processor := NewProcessor(engine, zlog)

	// If RUN_LOCAL=true, simulate a single SQS event for local testing.
	if os.Getenv("RUN_LOCAL") == "true" {
		if err := processor.Handle(context.Background(), localEvent(os.Getenv("LOCAL_SQS_BODY"))); err != nil {
			zlog.Fatal("local handler error", zap.Error(err))
		}
		return
	}

	lambda.Start(processor.Handle)
}
