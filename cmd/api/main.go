package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"relay-chat/config"
	"relay-chat/internal/bootstrap"
	"relay-chat/internal/handler"
	"relay-chat/internal/mirror"
	"relay-chat/internal/notify"
	"relay-chat/internal/proxy"
	"relay-chat/internal/redis"
	"relay-chat/internal/repository"
	"relay-chat/internal/server"
	"relay-chat/internal/services"
	"relay-chat/internal/storage"
	"relay-chat/internal/websocket"
	"relay-chat/pkg/logger"

	"go.uber.org/zap"
)

func main() {
	cfg := config.LoadConfig()

	mode := logger.DevelopmentMode
	if cfg.AppMode == server.ReleaseMode {
		mode = logger.ProductionMode
	}
	log := logger.New(mode)
	logger.SetGlobalLogger(log)
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Logger.Error("relay-chat stopped", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	backends, err := bootstrap.Open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer backends.Close()
	log.Infof("store driver %s, auth provider %s", cfg.StoreDriver, cfg.AuthProvider)

	verifier, err := backends.Verifier(ctx, cfg)
	if err != nil {
		return err
	}
	sender, err := backends.PushSender(ctx, cfg)
	if err != nil {
		return err
	}

	st := backends.Store
	users := repository.NewUserRepository(st)
	chats := repository.NewChatRepository(st)
	index := repository.NewChatIndexRepository(st)

	dispatcher := notify.NewDispatcher(users, sender, notify.Config{Timeout: cfg.PushTimeout}, log)
	defer dispatcher.Wait()

	messageService := services.NewMessageService(services.MessageServiceDeps{
		Chats:    chats,
		Index:    index,
		Messages: repository.NewMessageRepository(st),
		Blocks:   repository.NewBlockRepository(st),
		Stars:    repository.NewStarRepository(st),
		Notifier: dispatcher,
		Logger:   log,
	})

	var userMirror services.Mirror
	if cfg.BackendURL != "" {
		userMirror = mirror.NewClient(cfg.BackendURL, cfg.BackendAPIKey, nil)
	}
	userService := services.NewUserService(users, userMirror, log)
	defer userService.Wait()

	var objects services.ObjectStore
	if cfg.S3Bucket != "" {
		s3Client, err := storage.NewClient(ctx, storage.S3Config{
			Region:     cfg.S3Region,
			Bucket:     cfg.S3Bucket,
			AccessKey:  cfg.S3AccessKey,
			SecretKey:  cfg.S3SecretKey,
			Endpoint:   cfg.S3Endpoint,
			PublicBase: cfg.S3PublicBase,
			ACL:        cfg.S3ACL,
		})
		if err != nil {
			return err
		}
		objects = s3Client
	} else {
		log.Warnf("S3_BUCKET is not set, image messages are disabled")
	}

	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	hub := websocket.NewHub()
	go hub.Run(hubCtx)

	var sessions handler.SessionCloser = hub
	deps := server.RouteDeps{Verifier: verifier, Health: backends.Health}
	if backends.Redis != nil {
		deps.Limiter = redis.NewRateLimiter(backends.Redis, redis.RateLimitConfig{
			MessageLimit:  cfg.MessageRateLimit,
			MessageWindow: cfg.MessageRateWindow,
		})
		bridge := websocket.NewRedisBridge(redis.NewSubscriber(backends.Redis), redis.NewPublisher(backends.Redis), hub, log)
		go func() {
			if err := bridge.Run(hubCtx); err != nil {
				log.Logger.Warn("session bridge stopped", zap.Error(err))
			}
		}()
		sessions = bridge
	}

	if cfg.RepairInterval > 0 {
		worker := services.NewRepairWorker(services.NewIndexRepairer(chats, index, log), cfg.RepairInterval, log)
		worker.Start()
		defer worker.Stop()
	}

	access := proxy.NewAccessControl(chats)
	srv := server.New(cfg, log)
	srv.SetupRoutes(&server.Handlers{
		Users:    handler.NewUserHandler(userService, sessions),
		Chats:    handler.NewChatHandler(messageService, userService, access),
		Messages: handler.NewMessageHandler(messageService, userService, services.NewImageService(objects), access),
		Blocks:   handler.NewBlockHandler(messageService),
		Stream:   websocket.NewHandler(verifier, hub, st, log),
	}, deps)

	return srv.Start(ctx)
}
