// Command repair adds missing chat index entries: every member of a chat
// gets an index entry that references it. Existing entries are never
// removed.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"relay-chat/config"
	"relay-chat/internal/bootstrap"
	"relay-chat/internal/repository"
	"relay-chat/internal/services"
	"relay-chat/pkg/logger"

	"go.uber.org/zap"
)

func main() {
	chatID := flag.String("chat", "", "reconcile a single chat instead of every chat")
	flag.Parse()

	cfg := config.LoadConfig()
	log := logger.New(logger.DevelopmentMode)
	logger.SetGlobalLogger(log)
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backends, err := bootstrap.Open(ctx, cfg, log)
	if err != nil {
		log.Logger.Fatal("open backends", zap.Error(err))
	}
	defer backends.Close()

	repairer := services.NewIndexRepairer(
		repository.NewChatRepository(backends.Store),
		repository.NewChatIndexRepository(backends.Store),
		log,
	)

	var report services.RepairReport
	if *chatID != "" {
		report, err = repairer.Reconcile(ctx, *chatID)
	} else {
		report, err = repairer.ReconcileAll(ctx)
	}
	for uid, chats := range report.Added {
		log.Logger.Info("index entries added", zap.String("uid", uid), zap.Strings("chats", chats))
	}
	log.Infof("checked %d chats, added %d index entries", report.ChatsChecked, report.EntriesAdded())
	if err != nil {
		log.Logger.Error("repair incomplete", zap.Error(err))
		backends.Close()
		os.Exit(1)
	}
}
