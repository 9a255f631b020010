package main

import (
	"context"
	"log"
	"net/http"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/etalk/webchain-order-sync/internal/auth"
	"github.com/etalk/webchain-order-sync/internal/aws"
	"github.com/etalk/webchain-order-sync/internal/broadcast"
	"github.com/etalk/webchain-order-sync/internal/config"
	"github.com/etalk/webchain-order-sync/internal/errlog"
	syncevents "github.com/etalk/webchain-order-sync/internal/events"
	"github.com/etalk/webchain-order-sync/internal/handlers"
	"github.com/etalk/webchain-order-sync/internal/logger"
	"github.com/etalk/webchain-order-sync/internal/metrics"
	"github.com/etalk/webchain-order-sync/internal/notify"
	"github.com/etalk/webchain-order-sync/internal/orders"
	"github.com/etalk/webchain-order-sync/internal/settings"
	"github.com/etalk/webchain-order-sync/internal/webchain"
)

func setupRouter(cfg handlers.HandlerConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	handlers.RegisterSyncRoutes(r, cfg)

	return r
}

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
	ordersStore := orders.NewStore(clients.DynamoDB, cfg.Tables.Orders)
	recordStore := broadcast.NewRecordStore(clients.DynamoDB, cfg.Tables.BroadcastRecords)
	settingsStore := settings.NewStore(clients.DynamoDB, cfg.Tables.Settings)
	errorLog := errlog.NewStore(clients.DynamoDB, cfg.Tables.Settings)
	mailer := notify.NewSESMailer(clients.SES, cfg.Mail.SenderEmail)
	dispatcher := notify.NewDispatcher(mailer, cfg.Mail.AdminEmail, cfg.App.SiteName, cfg.WebChain.ExplorerBaseURL, zlog)
	recorder := metrics.NewRecorder(clients.CloudWatch, zlog)

	engine := broadcast.NewEngine(broadcast.Deps{
		Orders:   ordersStore,
		Records:  recordStore,
		Settings: settingsStore,
		API:      apiClient,
		Errors:   errorLog,
		Notifier: dispatcher,
		Metrics:  recorder,
		Logger:   zlog,
	})

	var nonces auth.NonceStore = auth.NewMemoryNonceStore()
	if cfg.Redis.Addr != "" {
		nonces = auth.NewRedisNonceStore(redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}))
	}

	r := setupRouter(handlers.HandlerConfig{
		Engine:    engine,
		Orders:    ordersStore,
		API:       apiClient,
		Settings:  settingsStore,
		Errors:    errorLog,
		Publisher: syncevents.NewPublisher(clients.SQS, cfg.Queue.CompletedOrdersURL),
		Auth:      auth.NewService(cfg.Auth.JWTSecret, cfg.Auth.Issuer),
		Nonces:    nonces,
		Logger:    zlog,
	})

	// if environment variable RUN_LOCAL is set to "true", run local HTTP server for development.
	if os.Getenv("RUN_LOCAL") == "true" {
		addr := ":" + cfg.App.Port
		zlog.Info("running local server", zap.String("addr", addr))
		if err := r.Run(addr); err != nil {
			zlog.Fatal("failed to run local server", zap.Error(err))
		}
		return
	}

	adapter := ginadapter.New(r)

	lambda.Start(func(ctx context.Context, req events.APIGatewayProxyRequest) (interface{}, error) {
		return adapter.ProxyWithContext(ctx, req)
	})
}
