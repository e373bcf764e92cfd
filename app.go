package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"PPChat/global/config"
	"PPChat/logger"
	"PPChat/middleware"
	chatapi "PPChat/module/chat"
	"PPChat/module/chat/message"
	"PPChat/module/chat/room"
	"PPChat/module/friend"
	friendservice "PPChat/module/friend/service"
	friendstore "PPChat/module/friend/store"
	"PPChat/module/user"
	userservice "PPChat/module/user/service"
	userstore "PPChat/module/user/store"
	"PPChat/service/chat"
	"PPChat/service/events"
	"PPChat/service/metrics"
	"PPChat/service/mgo"
	"PPChat/service/storage"
	redisstore "PPChat/service/storage/redis"
	"PPChat/tools/errs"
	"PPChat/tools/ids"
	"PPChat/tools/security"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type stores struct {
	users    userstore.Store
	friends  friendstore.Store
	rooms    room.Store
	messages *message.Store // nil for the memory driver
	ping     func(context.Context) error
}

// app 持有进程内所有长生命周期组件
type app struct {
	cfg     *config.AppConfig
	http    *http.Server
	grpc    *grpc.Server
	health  *health.Server
	ws      *chat.Server
	closers []func() error
}

func newApp(ctx context.Context, cfg *config.AppConfig) (*app, error) {
	ids.SetNodeID(cfg.IDNode)
	a := &app{cfg: cfg}

	st, err := a.openStores(ctx)
	if err != nil {
		a.close()
		return nil, err
	}

	presence, msgLog, err := a.openRedis(ctx, st)
	if err != nil {
		a.close()
		return nil, err
	}

	publisher, err := events.New(cfg.Events)
	if err != nil {
		a.close()
		return nil, err
	}
	a.closers = append(a.closers, publisher.Close)

	verifier, err := security.NewJWTVerifier(security.Options{
		Secret: []byte(cfg.Auth.Secret),
		Alg:    cfg.Auth.Alg,
		TTL:    cfg.Auth.TTL,
		Issuer: cfg.Auth.Issuer,
	})
	if err != nil {
		a.close()
		return nil, err
	}

	// ---- 业务组件 ----
	users := userservice.NewService(st.users, userservice.Options{
		ClientBaseURL: cfg.HTTP.ClientBaseURL,
		Retry:         cfg.Retry.Policy(),
	})
	reg := chat.NewRegistry()
	hub := chat.NewHub()
	friends := friendservice.NewService(st.friends, users, friendservice.Options{
		Dispatcher: chat.NewDispatcher(reg),
		Publisher:  publisher,
	})
	rooms := room.NewResolver(st.rooms, friends, users, nil)
	relay := chat.NewRelay(hub, rooms, msgLog, nil)
	a.closers = append(a.closers, relay.Close)
	a.ws = chat.NewServer(verifier, reg, hub, relay, presence, users, chat.ServerOptions{
		Conn:           cfg.WS,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
	})

	// ---- HTTP ----
	engine := gin.New()
	engine.Use(gin.Recovery(), middleware.AccessLog())
	mids := middleware.NewManager()
	mids.Add("request-id", middleware.RequestID())
	mids.Add("cors", middleware.CORS(cfg.HTTP.AllowedOrigins))
	mids.Add("body-limit", middleware.BodyLimit(1<<20))
	engine.Use(mids.Use())

	engine.GET("/healthz", healthz(st.ping))
	engine.GET("/metrics", gin.WrapH(metrics.Handler()))
	engine.GET("/ws", a.ws.HandleWS)

	rt := middleware.NewRouter(engine, verifier)
	user.NewHandler(users).Register(rt)
	friend.NewHandler(friends).Register(rt)
	chatapi.NewHandler(rooms, msgLog).Register(rt)

	a.http = &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ---- gRPC health ----
	a.grpc = grpc.NewServer()
	a.health = health.NewServer()
	healthpb.RegisterHealthServer(a.grpc, a.health)
	return a, nil
}

func (a *app) openStores(ctx context.Context) (*stores, error) {
	cfg := a.cfg
	var st *stores
	switch cfg.Storage.Driver {
	case config.DriverMemory:
		logger.Warn("[Main] memory storage driver, data is lost on restart")
		st = &stores{
			users:   userstore.NewMemStore(),
			friends: friendstore.NewMemStore(),
			rooms:   room.NewMemStore(),
		}
	default:
		// 连接生命周期独立于信号 ctx，在 HTTP 排空之后才断开
		mctx, mcancel := context.WithCancel(context.Background())
		a.closers = append(a.closers, func() error { mcancel(); return nil })
		mgr := mgo.NewManager(&cfg.Storage.Mongo)
		mgr.StartAsync(mctx)
		wctx, cancel := context.WithTimeout(ctx, cfg.Storage.ReadyTimeout)
		err := mgr.WaitReady(wctx)
		cancel()
		if err != nil {
			return nil, errs.WrapMsg(err, "wait mongo ready")
		}
		logger.Info("[Main] mongo ready", zap.String("database", cfg.Storage.Mongo.Database))
		st = &stores{
			users:    userstore.NewMongoStore(mgr),
			friends:  friendstore.NewMongoStore(mgr),
			rooms:    room.NewMongoStore(mgr),
			messages: message.NewStore(mgr),
			ping:     mgr.Ping,
		}
	}

	ictx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	idx := map[string]func(context.Context) error{
		"users":   st.users.EnsureIndexes,
		"friends": st.friends.EnsureIndexes,
		"rooms":   st.rooms.EnsureIndexes,
	}
	if st.messages != nil {
		idx["messages"] = st.messages.EnsureIndexes
	}
	for name, fn := range idx {
		if err := fn(ictx); err != nil {
			return nil, errs.WrapMsg(err, "ensure indexes", "store", name)
		}
	}
	return st, nil
}

// openRedis picks presence and history backends: the Redis stream when
// enabled, otherwise Mongo, otherwise process memory.
func (a *app) openRedis(ctx context.Context, st *stores) (storage.Presence, storage.MessageLog, error) {
	rc := a.cfg.Redis
	if !rc.Enabled {
		if st.messages != nil {
			logger.Info("[Main] redis disabled, history kept in mongo")
			return storage.NoopPresence{}, st.messages, nil
		}
		logger.Info("[Main] redis disabled, history kept in memory")
		return storage.NoopPresence{}, storage.NewMemMessageLog(1000), nil
	}
	rdb, err := redisstore.NewClient(ctx, rc.Config)
	if err != nil {
		return nil, nil, err
	}
	a.closers = append(a.closers, rdb.Close)
	logger.Info("[Main] redis connected", zap.String("addr", rc.Addr))
	return storage.NewRedisPresence(rdb, a.cfg.NodeID, rc.PresenceTTL),
		storage.NewRedisMessageLog(rdb, rc.StreamMaxLen), nil
}

func healthz(ping func(context.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if ping != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := ping(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

// run blocks until ctx is cancelled or a listener fails, then shuts down.
func (a *app) run(ctx context.Context) error {
	errCh := make(chan error, 2)

	lis, err := net.Listen("tcp", a.cfg.HTTP.HealthAddr)
	if err != nil {
		a.close()
		return errs.WrapMsg(err, "listen health", "addr", a.cfg.HTTP.HealthAddr)
	}
	go func() {
		logger.Info("[gRPC] health listening", zap.String("addr", a.cfg.HTTP.HealthAddr))
		if err := a.grpc.Serve(lis); err != nil {
			errCh <- err
		}
	}()
	go func() {
		logger.Info("[HTTP] listening", zap.String("addr", a.cfg.HTTP.Addr))
		if err := a.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	a.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("[Main] shutting down")
	case runErr = <-errCh:
		logger.Error("[Main] listener failed", zap.Error(runErr))
	}

	a.health.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	sctx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownWait)
	defer cancel()
	a.ws.Shutdown()
	if err := a.http.Shutdown(sctx); err != nil {
		logger.Warn("[HTTP] shutdown", zap.Error(err))
	}
	a.grpc.GracefulStop()
	a.close()
	return runErr
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logger.Warn("[Main] close", zap.Error(err))
		}
	}
	a.closers = nil
}
