package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"

	"github.com/rl1809/storefront/internal/adapter/handler"
	"github.com/rl1809/storefront/internal/adapter/messaging"
	"github.com/rl1809/storefront/internal/adapter/notify"
	"github.com/rl1809/storefront/internal/adapter/storage"
	"github.com/rl1809/storefront/internal/auth"
	"github.com/rl1809/storefront/internal/config"
	"github.com/rl1809/storefront/internal/core/service"
	"github.com/rl1809/storefront/internal/logger"
	"github.com/rl1809/storefront/internal/port"
)

func main() {
	cfg := config.Load()

	zl, err := logger.New(cfg.Env)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer zl.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize MySQL
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		zl.Fatal("failed to open mysql", zap.Error(err))
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		zl.Fatal("failed to ping mysql", zap.Error(err))
	}
	if err := storage.RunMigrations(db); err != nil {
		zl.Fatal("failed to run migrations", zap.Error(err))
	}
	zl.Info("connected to mysql")

	// Initialize Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		PoolSize: 100,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		zl.Fatal("failed to connect redis", zap.Error(err))
	}
	zl.Info("connected to redis")

	// Initialize adapters
	mysqlAdapter := storage.NewMySQLAdapter(db)
	redisAdapter := storage.NewRedisAdapter(rdb)
	sessionCarts := storage.NewRedisCartStore(rdb, cfg.SessionCartTTL)
	userCarts := storage.NewMySQLCartStore(db)

	// Initialize services
	cartService := service.NewCartService(sessionCarts, userCarts, mysqlAdapter, zl)
	mergePolicy := service.NewMergePolicy(sessionCarts, userCarts, zl)
	checkoutService := service.NewCheckoutService(cartService, mysqlAdapter, mysqlAdapter, mysqlAdapter, redisAdapter, cfg.CheckoutLockTTL, zl)
	orderService := service.NewOrderService(mysqlAdapter, zl)

	// Notifications
	dispatcher := service.NewNotificationDispatcher(newEmailSender(cfg, zl), cfg.OperatorEmail, cfg.NotifyQueueSize, zl)
	dispatcher.Start(cfg.NotifyWorkers)

	var publisher port.EventPublisher
	var consumer *messaging.Consumer
	var kafkaPublisher *messaging.KafkaPublisher
	if cfg.KafkaEnabled() {
		kafkaPublisher = messaging.NewKafkaPublisher(cfg.KafkaTopic, cfg.KafkaBrokers...)
		publisher = kafkaPublisher
		consumer = messaging.NewConsumer(dispatcher, cfg.KafkaTopic, cfg.KafkaGroupID, zl, cfg.KafkaBrokers...)
		zl.Info("publishing order events to kafka", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaTopic))
	} else {
		publisher = messaging.NewDirectPublisher(dispatcher, zl)
		zl.Info("kafka not configured, delivering order events in process")
	}

	bgCtx, bgCancel := context.WithCancel(ctx)
	var bg sync.WaitGroup
	poller := messaging.NewOutboxPoller(mysqlAdapter, publisher, cfg.OutboxInterval, cfg.OutboxBatch, zl)
	bg.Add(1)
	go func() {
		defer bg.Done()
		poller.Run(bgCtx)
	}()
	if consumer != nil {
		bg.Add(1)
		go func() {
			defer bg.Done()
			consumer.Run(bgCtx)
		}()
	}

	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL)

	// Initialize gRPC admin server
	var grpcServer *grpc.Server
	if cfg.AdminAPIKey != "" {
		grpcServer = grpc.NewServer(
			grpc.ForceServerCodec(handler.JSONCodec{}),
			grpc.UnaryInterceptor(handler.APIKeyInterceptor(cfg.AdminAPIKey)),
		)
		handler.RegisterOrderAdminServer(grpcServer, handler.NewGRPCHandler(orderService, zl))

		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			zl.Fatal("failed to listen", zap.String("addr", cfg.GRPCAddr), zap.Error(err))
		}
		go func() {
			zl.Info("gRPC server listening", zap.String("addr", cfg.GRPCAddr))
			if err := grpcServer.Serve(lis); err != nil {
				zl.Error("gRPC server error", zap.Error(err))
			}
		}()
	}

	// Initialize HTTP server
	httpHandler := handler.NewHTTPHandler(cartService, checkoutService, orderService, tokens, zl)
	router := httpHandler.Routes(handler.RouterConfig{
		Identity:       handler.NewIdentityMiddleware(tokens, mergePolicy, cfg.SessionCartTTL, cfg.Env == "production", zl),
		CheckoutLimit:  handler.NewRateLimiter(rate.Limit(cfg.CheckoutRate), cfg.CheckoutBurst),
		RequestTimeout: cfg.RequestTimeout,
		Checks: map[string]handler.HealthCheck{
			"mysql": db.PingContext,
			"redis": redisAdapter.Ping,
		},
	})

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		zl.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			zl.Error("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zl.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zl.Error("HTTP shutdown failed", zap.Error(err))
	}
	zl.Info("HTTP server stopped")

	if grpcServer != nil {
		grpcServer.GracefulStop()
		zl.Info("gRPC server stopped")
	}

	// stop the poller before the dispatcher so no event is handed to a closed queue
	bgCancel()
	bg.Wait()
	if consumer != nil {
		if err := consumer.Close(); err != nil {
			zl.Warn("kafka reader close failed", zap.Error(err))
		}
	}
	if kafkaPublisher != nil {
		if err := kafkaPublisher.Close(); err != nil {
			zl.Warn("kafka writer close failed", zap.Error(err))
		}
	}

	dispatcher.Close()
	zl.Info("notification workers stopped")

	rdb.Close()
	db.Close()
	zl.Info("connections closed")
}

// newEmailSender prefers SendGrid, then SMTP, and falls back to logging the mail.
func newEmailSender(cfg config.Config, zl *zap.Logger) port.EmailSender {
	var sender port.EmailSender
	switch {
	case cfg.SendGridAPIKey != "":
		sg, err := notify.NewSendGridSender(cfg.SendGridAPIKey, cfg.MailFrom, "Storefront")
		if err != nil {
			zl.Fatal("failed to configure sendgrid", zap.Error(err))
		}
		sender = sg
		zl.Info("sending mail through sendgrid")
	case cfg.SMTPHost != "":
		smtpSender, err := notify.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.MailFrom)
		if err != nil {
			zl.Fatal("failed to configure smtp", zap.Error(err))
		}
		sender = smtpSender
		zl.Info("sending mail through smtp", zap.String("host", cfg.SMTPHost))
	default:
		zl.Warn("no mail transport configured, notifications are only logged")
		return notify.NewLogSender(zl)
	}

	return notify.NewBreakerSender(sender, notify.BreakerSettings{Name: "email"}, zl)
}
