// Command overdue reports overdue borrowings to staff.  It takes no
// arguments and is meant to be run once a day by an external scheduler.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/rpk6432/library-service/internal/config"
	"github.com/rpk6432/library-service/internal/database"
	"github.com/rpk6432/library-service/internal/notify"
	"github.com/rpk6432/library-service/internal/repository"
	"github.com/rpk6432/library-service/internal/scheduler"
	"github.com/rpk6432/library-service/internal/service"
)

const lockKey = "lock:overdue-sweep"

func main() {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}
	log := config.NewLogger(cfg.Env)

	if err := run(cfg, log); err != nil {
		log.Error("overdue sweep failed", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.OverdueLockTTL)
	defer cancel()

	if rdb := config.NewRedisClient(config.RedisOptions()); rdb != nil {
		defer rdb.Close()
		release, err := scheduler.NewRedisLock(rdb, lockKey, cfg.OverdueLockTTL).Acquire(ctx)
		if errors.Is(err, scheduler.ErrLocked) {
			log.Info("another overdue sweep is running, skipping")
			return nil
		}
		if err != nil {
			return err
		}
		defer func() {
			if err := release(context.Background()); err != nil {
				log.Warn("releasing overdue lock failed", "err", err)
			}
		}()
	} else {
		log.Warn("redis unavailable, running overdue sweep without lock")
	}

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return err
	}
	defer db.Close()

	telegram := notify.NewTelegram(cfg.TelegramBotToken, cfg.TelegramChatID, 10*time.Second, log)
	sweep := service.NewOverdueSweep(repository.NewBorrowingRepo(db), telegram, service.WithLogger(log))
	res, err := sweep.Run(ctx)
	if err != nil {
		return err
	}
	log.Info("overdue sweep done", "overdue", res.Overdue, "failed_notifications", res.Failed)
	return nil
}
