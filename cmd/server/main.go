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

	"github.com/zarkojrpajarino-hue/desconocidosselectoscom-sub004/config"
	"github.com/zarkojrpajarino-hue/desconocidosselectoscom-sub004/internal/api/handler"
	"github.com/zarkojrpajarino-hue/desconocidosselectoscom-sub004/internal/api/router"
	"github.com/zarkojrpajarino-hue/desconocidosselectoscom-sub004/internal/generator"
	"github.com/zarkojrpajarino-hue/desconocidosselectoscom-sub004/internal/repository"
	"github.com/zarkojrpajarino-hue/desconocidosselectoscom-sub004/internal/service"
	"github.com/zarkojrpajarino-hue/desconocidosselectoscom-sub004/pkg/database"
	"github.com/zarkojrpajarino-hue/desconocidosselectoscom-sub004/pkg/jwt"
	applogger "github.com/zarkojrpajarino-hue/desconocidosselectoscom-sub004/pkg/logger"
	"github.com/zarkojrpajarino-hue/desconocidosselectoscom-sub004/pkg/period"
	"github.com/zarkojrpajarino-hue/desconocidosselectoscom-sub004/pkg/redis"
)

func main() {
	configPath := flag.String("config", "", "配置文件路径")
	flag.Parse()

	// 1. 加载配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志
	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("应用启动中...",
		zap.Int("port", cfg.Server.Port),
		zap.String("log_level", cfg.Log.Level),
		zap.String("timezone", cfg.Agenda.Timezone),
		zap.String("generator_mode", cfg.Generator.Mode),
	)

	// 3. 连接数据库
	db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
	if err != nil {
		logger.Fatal("数据库连接失败", zap.Error(err))
	}
	logger.Info("数据库连接成功")

	// 3.1 执行数据库迁移
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("获取底层 sql.DB 失败", zap.Error(err))
	}
	if err := database.RunMigrations(sqlDB, logger); err != nil {
		logger.Fatal("数据库迁移失败", zap.Error(err))
	}

	// 4. 连接 Redis（可选：连接失败时降级运行，不中断启动）
	rdb, err := redis.NewClient(&cfg.Redis, logger)
	if err != nil {
		logger.Warn("Redis 连接失败，缓存、分布式锁与限流将降级", zap.Error(err))
		rdb = nil
	}

	// 5. 周期解析器
	loc, err := cfg.Agenda.Location()
	if err != nil {
		logger.Fatal("业务时区无效", zap.Error(err))
	}
	resolver := period.NewResolver(loc)

	// 6. 依赖注入: Repository → Generator → Service → Handler
	repo := repository.NewRepository(db)

	materializer, err := generator.New(&cfg.Generator, repo, resolver, period.SystemClock{})
	if err != nil {
		logger.Fatal("初始化排程生成器失败", zap.Error(err))
	}
	dispatcher := generator.NewDispatcher(materializer, repo.GenerationJob, generator.Options{
		Workers:   cfg.Generator.Workers,
		QueueSize: cfg.Generator.QueueSize,
		Timeout:   cfg.Generator.Timeout,
	}, logger)

	deps := service.Deps{
		Clock:    period.SystemClock{},
		Resolver: resolver,
		Trigger:  dispatcher,
	}
	// 避免 nil *redis.Client 形成非 nil 接口
	if rdb != nil {
		deps.Cache = rdb
		deps.Locker = rdb
	}
	svc := service.NewService(cfg, repo, deps, logger)
	dispatcher.OnSuccess(svc.Invalidator.OnGenerated)
	dispatcher.Start()

	h := handler.NewHandler(svc)
	jwtMgr := jwt.NewManager(&cfg.Auth)

	// 6.1 订阅缓存失效事件，便于多实例排查
	subCtx, stopSub := context.WithCancel(context.Background())
	defer stopSub()
	if rdb != nil {
		rdb.Subscribe(subCtx, service.InvalidationChannel, func(payload []byte) {
			logger.Debug("收到缓存失效事件", zap.ByteString("payload", payload))
		})
	}

	// 7. 初始化路由
	gin.SetMode(gin.ReleaseMode)
	engine := router.Setup(cfg, h, jwtMgr, rdb, db, logger)

	// 8. 启动 HTTP 服务器（优雅关闭）
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Generator.Timeout + 15*time.Second, // 重新生成为同步调用
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("HTTP 服务器已启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP 服务器异常", zap.Error(err))
		}
	}()

	// 9. 监听系统信号，优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("收到关闭信号，开始优雅关闭...", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("服务器关闭异常", zap.Error(err))
	}

	// 等待进行中的生成任务
	if err := dispatcher.Stop(ctx); err != nil {
		logger.Warn("排程生成任务未全部完成", zap.Error(err))
	}
	stopSub()

	// 关闭数据库连接
	closeDB, _ := db.DB()
	if closeDB != nil {
		closeDB.Close()
	}

	// 关闭 Redis 连接
	if rdb != nil {
		rdb.Close()
	}

	logger.Info("服务器已关闭")
}
