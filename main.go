package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"MGProject/data/database/mgo/mongoutil"
	"MGProject/global"
	"MGProject/logger"
	mid "MGProject/middleware"
	midsec "MGProject/middleware/security"
	"MGProject/module/social"
	socialsvc "MGProject/module/social/service"
	"MGProject/service/audit"
	"MGProject/service/coalescer"
	"MGProject/service/notify"
	"MGProject/service/storage"
	"MGProject/tools/ids"
	security "MGProject/tools/security"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "配置文件路径")
	flag.Parse()

	cfg, err := global.LoadConfig(*cfgPath)
	if err != nil {
		logger.Errorf("load config failed: %v", err)
		os.Exit(1)
	}
	ids.SetNodeID(cfg.NodeID)

	store, err := buildStore(cfg)
	if err != nil {
		logger.Error("init store failed", zap.Error(err))
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	notifier := buildNotifier(cfg)
	auditor := buildAuditor(cfg)

	// 进程级写合并器：profile 高频同步走它，退出前必须 Shutdown
	co := coalescer.New(store, cfg.Coalescer.FlushInterval)

	friends := socialsvc.NewFriendshipStore(store)
	registry := socialsvc.NewRequestRegistry(store, friends, notifier, auditor)
	invites := socialsvc.NewInvitationStore(store, notifier, auditor)
	profiles := socialsvc.NewProfileSynchronizer(store, co, cfg.Coalescer.WriteDelay)

	resolver := security.NewJWTResolver(security.DefaultOptions([]byte(cfg.Jwt.Secret)))
	router := mid.NewRouter(midsec.Middleware(resolver, midsec.DefaultOptions()))

	engine := gin.New()
	engine.Use(gin.Recovery(), mid.Origin())

	h := &social.Handler{
		Registry: registry,
		Friends:  friends,
		Invites:  invites,
		Profiles: profiles,
		Store:    store,
	}
	h.RegisterRoutes(engine, router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: engine,
	}

	go func() {
		logger.Infof("social server listening on :%d (store=%s)", cfg.Port, cfg.Store.Backend)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server failed", zap.Error(err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	co.Shutdown(ctx) // 未落盘的档案写在这里兜底刷出
	logger.Sync()
}

func buildStore(cfg *global.AppConfig) (storage.Store, error) {
	switch cfg.Store.Backend {
	case storage.BackendRedis:
		return storage.NewRedisStore(storage.RedisConfig{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			PoolSize:  cfg.Redis.PoolSize,
			OpTimeout: cfg.Store.OpTimeout,
		})
	case storage.BackendMemory:
		logger.Warn("using in-memory store backend, data will not survive restart")
		return storage.NewMemStore(), nil
	default:
		return nil, fmt.Errorf("unknown store backend: %s", cfg.Store.Backend)
	}
}

func buildNotifier(cfg *global.AppConfig) notify.Notifier {
	if len(cfg.Nats.Servers) == 0 {
		logger.Warn("nats not configured, notifications disabled")
		return notify.NewNoopNotifier()
	}
	n, err := notify.NewNatsNotifier(notify.NatsConfig{
		Servers: cfg.Nats.Servers,
		Subject: cfg.Nats.Subject,
	})
	if err != nil {
		// 通知是尽力而为的旁路，连不上不阻止服务启动
		logger.Error("nats connect failed, notifications disabled", zap.Error(err))
		return notify.NewNoopNotifier()
	}
	return n
}

func buildAuditor(cfg *global.AppConfig) audit.Recorder {
	if cfg.Mongo.Uri == "" {
		return audit.NewNoopRecorder()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	cli, err := mongoutil.NewMongoDB(ctx, &mongoutil.Config{
		Uri:      cfg.Mongo.Uri,
		Database: cfg.Mongo.Database,
	})
	if err != nil {
		logger.Error("mongo connect failed, audit trail disabled", zap.Error(err))
		return audit.NewNoopRecorder()
	}
	return audit.NewMongoRecorder(cli)
}
