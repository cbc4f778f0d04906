package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"

	"canvasroom/internal/activity"
	"canvasroom/internal/config"
	"canvasroom/internal/database/db_client"
	"canvasroom/internal/http/http_server"
	"canvasroom/internal/metrics"
	"canvasroom/internal/redis/redis_client"
	"canvasroom/internal/redis/redis_functions"
	"canvasroom/internal/roomdir"
	"canvasroom/internal/rooms"
	"canvasroom/internal/services/archive"
	"canvasroom/internal/syncactivity"
	"canvasroom/internal/ws"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var (
	Log = newLogger()
)

// newLogger picks the encoder from APP_ENV; .env is not loaded yet, so only
// the real environment counts here.
func newLogger() *zap.Logger {
	var (
		log *zap.Logger
		err error
	)
	if os.Getenv("APP_ENV") == "prod" {
		log, err = zap.NewProduction()
	} else {
		log, err = zap.NewDevelopment()
	}
	if err != nil {
		return zap.NewNop()
	}
	return log
}

func main() {
	defer Log.Sync()
	zap.ReplaceGlobals(Log)

	var err error
	var cfg *config.Config
	var redisClient *redis.Client
	var pgDb *sql.DB
	var archiveService archive.IArchiveService

	// 1. Load configuration
	cfg, err = config.LoadConfig()
	if err != nil {
		Log.Fatal("Failed to load configuration", zap.Error(err))
	}
	Log.Debug("Configuration loaded successfully", zap.Any("config", cfg))

	// 2. Context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGINT, syscall.SIGTERM,
	)
	defer stop()

	// 3. Metrics
	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(promReg)

	// 4. Redis (optional): cluster-wide room ids + activity stream
	var directory roomdir.Directory = roomdir.NewLocal()
	if cfg.RedisEnabled {
		redisClient, err = redis_client.NewRedisClient(cfg.RedisHost, cfg.RedisPort, cfg.RedisPassword, cfg.RedisDb)
		if err != nil {
			Log.Fatal("Failed to create Redis client", zap.Error(err))
		}
		defer redisClient.Close()
		if err := redis_functions.LoadAll(ctx, redisClient); err != nil {
			Log.Fatal("Failed to load Redis functions", zap.Error(err))
		}
		directory = roomdir.NewRedis(redisClient, instanceID(), cfg.RoomReservationTTL)
		Log.Debug("Redis room directory enabled")
	}

	// 5. Postgres db client (optional) + schema
	if cfg.PostgresEnabled {
		pgDb, err = db_client.Open(cfg.PostgresHost, cfg.PostgresPort, cfg.PostgresUser, cfg.PostgresPassword, cfg.PostgresDb)
		if err != nil {
			Log.Fatal("pg-open", zap.Error(err))
		}
		defer pgDb.Close()

		if err := db_client.Migrate(ctx, pgDb); err != nil {
			Log.Fatal("pg-migrate", zap.Error(err))
		}
		archiveService = archive.NewArchiveService(pgDb)
	}

	// 6. Background: lifecycle recorder ➜ stream ➜ Postgres
	var recorder activity.Recorder = activity.Nop{}
	if cfg.ActivityArchiveEnabled {
		sr := activity.NewStreamRecorder(redisClient, 1024)
		go sr.Run(ctx)
		syncactivity.Run(ctx, redisClient, pgDb)
		recorder = sr
	}

	// 7. Room registry
	registry := rooms.NewRegistry(rooms.Options{
		HistoryLimit: cfg.HistoryLimit,
		DefaultName:  cfg.DefaultDisplayName,
		NameMax:      cfg.DisplayNameMax,
		Directory:    directory,
		Recorder:     recorder,
		Metrics:      m,
	})
	if cfg.RedisEnabled {
		go registry.KeepAlive(ctx, cfg.RoomReservationTTL/3)
	}

	// 8. Initialize the WS server
	wsSrv := ws.NewWsServer(registry, m, ws.Options{
		AllowedOrigins:    cfg.AllowedOrigins,
		SendBuffer:        cfg.WsSendBuffer,
		MaxMessageBytes:   cfg.WsMaxMessageBytes,
		MessagesPerSecond: cfg.WsMessagesPerSec,
		MessageBurst:      cfg.WsMessageBurst,
	})

	// 9. HTTP + WS server
	httpServer := http_server.NewHttpServer(ctx, http_server.Options{
		ListenPort: cfg.HttpServerPort,
		AccessLog:  cfg.HttpAccessLog,
		PublicDir:  cfg.PublicDir,
	}, wsSrv, registry, archiveService, m)

	errCh := make(chan error, 1)
	go func() { errCh <- httpServer.Start() }()

	select {
	case err := <-errCh:
		if err != nil {
			Log.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	case <-ctx.Done():
		Log.Info("Shutting down", zap.Int("live_rooms", registry.Len()))
		_ = httpServer.Dispose()
	}
}

// instanceID tags this process's room reservations in Redis.
func instanceID() string {
	host, err := os.Hostname()
	if err != nil {
		host = "canvasroom"
	}
	return host + "/" + uuid.NewString()
}
