package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/rpk6432/library-service/internal/config"
	"github.com/rpk6432/library-service/internal/database"
	"github.com/rpk6432/library-service/internal/handler"
	"github.com/rpk6432/library-service/internal/middleware"
	"github.com/rpk6432/library-service/internal/notify"
	"github.com/rpk6432/library-service/internal/payment"
	"github.com/rpk6432/library-service/internal/queue"
	"github.com/rpk6432/library-service/internal/repository"
	"github.com/rpk6432/library-service/internal/router"
	"github.com/rpk6432/library-service/internal/service"
)

func main() {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}
	log := config.NewLogger(cfg.Env)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := database.EnsureSchema(ctx, db); err != nil {
		return err
	}

	rdb := config.NewRedisClient(config.RedisOptions())
	if rdb == nil {
		log.Warn("redis unavailable: response cache and rate limiting disabled")
	} else {
		defer rdb.Close()
	}

	telegram := notify.NewTelegram(cfg.TelegramBotToken, cfg.TelegramChatID, 10*time.Second, log)
	var notifier notify.Notifier = telegram
	if cfg.NotifyViaQueue {
		notifier = queue.NewPublisher(cfg.RabbitMQURL, cfg.NotificationQueue, log)
		consumer := queue.NewConsumer(cfg.RabbitMQURL, cfg.NotificationQueue, telegram, log)
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("notification consumer stopped", "err", err)
			}
		}()
	}

	store := repository.NewSQLStore(db)
	gateway := payment.NewStripeGateway(cfg.StripeSecretKey, cfg.GatewayTimeout)
	payments := service.NewPayments(store, gateway, notifier, service.PaymentConfig{
		SuccessURL: cfg.PaymentSuccessURL(),
		CancelURL:  cfg.PaymentCancelURL(),
		Timeout:    cfg.GatewayTimeout,
	}, service.WithLogger(log))
	borrowings := service.NewBorrowings(store, payments, notifier, cfg.FineMultiplier, service.WithLogger(log))

	cache := middleware.NewResponseCache(config.LoadCacheConfig(), rdb, log)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.Use(echomw.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.Slog(log))
	e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, cfg.JWTSecret, log))

	router.Register(e, db, router.Handlers{
		Users: handler.NewUserHandler(repository.NewUserRepo(db), handler.TokenSettings{
			Secret:     cfg.JWTSecret,
			TTLMin:     cfg.AccessTTLMin,
			BcryptCost: cfg.BcryptCost,
		}, log),
		Books:      handler.NewBookHandler(repository.NewBookRepo(db), cache, log),
		Borrowings: handler.NewBorrowingHandler(borrowings, cache, log),
		Payments:   handler.NewPaymentHandler(payments, log),
	}, cfg.JWTSecret, cache.Middleware())

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		log.Info("listening", "addr", addr, "env", cfg.Env)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
