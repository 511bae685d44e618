package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/zarkojrpajarino-hue/desconocidosselectoscom-sub004/config"
	"github.com/zarkojrpajarino-hue/desconocidosselectoscom-sub004/internal/generator"
	"github.com/zarkojrpajarino-hue/desconocidosselectoscom-sub004/internal/repository"
	"github.com/zarkojrpajarino-hue/desconocidosselectoscom-sub004/internal/service"
	"github.com/zarkojrpajarino-hue/desconocidosselectoscom-sub004/pkg/database"
	applogger "github.com/zarkojrpajarino-hue/desconocidosselectoscom-sub004/pkg/logger"
	"github.com/zarkojrpajarino-hue/desconocidosselectoscom-sub004/pkg/period"
	"github.com/zarkojrpajarino-hue/desconocidosselectoscom-sub004/pkg/redis"
)

// app 命令运行上下文，各组件按需惰性初始化
type app struct {
	configPath string

	cfg    *config.Config
	logger *zap.Logger
	db     *gorm.DB
	rdb    *redis.Client
}

func newApp(configPath string) *app {
	return &app{configPath: configPath}
}

func (a *app) Config() (*config.Config, error) {
	if a.cfg != nil {
		return a.cfg, nil
	}
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return nil, err
	}
	a.cfg = cfg
	return cfg, nil
}

func (a *app) Logger() (*zap.Logger, error) {
	if a.logger != nil {
		return a.logger, nil
	}
	cfg, err := a.Config()
	if err != nil {
		return nil, err
	}
	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		return nil, err
	}
	a.logger = logger
	return logger, nil
}

func (a *app) Resolver() (*period.Resolver, error) {
	cfg, err := a.Config()
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Agenda.Location()
	if err != nil {
		return nil, fmt.Errorf("业务时区无效: %w", err)
	}
	return period.NewResolver(loc), nil
}

func (a *app) DB() (*gorm.DB, error) {
	if a.db != nil {
		return a.db, nil
	}
	cfg, err := a.Config()
	if err != nil {
		return nil, err
	}
	logger, err := a.Logger()
	if err != nil {
		return nil, err
	}
	db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
	if err != nil {
		return nil, fmt.Errorf("数据库连接失败: %w", err)
	}
	a.db = db
	return db, nil
}

func (a *app) SQLDB() (*sql.DB, error) {
	db, err := a.DB()
	if err != nil {
		return nil, err
	}
	return db.DB()
}

// Services 组装业务层；Redis 不可用时缓存与锁降级，与 HTTP 服务一致
func (a *app) Services() (*service.Service, *generator.Dispatcher, error) {
	cfg, err := a.Config()
	if err != nil {
		return nil, nil, err
	}
	logger, err := a.Logger()
	if err != nil {
		return nil, nil, err
	}
	db, err := a.DB()
	if err != nil {
		return nil, nil, err
	}
	resolver, err := a.Resolver()
	if err != nil {
		return nil, nil, err
	}

	repo := repository.NewRepository(db)
	materializer, err := generator.New(&cfg.Generator, repo, resolver, period.SystemClock{})
	if err != nil {
		return nil, nil, err
	}
	dispatcher := generator.NewDispatcher(materializer, repo.GenerationJob, generator.Options{
		Workers:   1,
		QueueSize: 1,
		Timeout:   cfg.Generator.Timeout,
	}, logger)

	deps := service.Deps{
		Clock:    period.SystemClock{},
		Resolver: resolver,
		Trigger:  dispatcher,
	}
	rdb, err := redis.NewClient(&cfg.Redis, logger)
	if err != nil {
		logger.Warn("Redis 连接失败，跳过缓存失效", zap.Error(err))
	} else {
		a.rdb = rdb
		deps.Cache = rdb
		deps.Locker = rdb
	}

	svc := service.NewService(cfg, repo, deps, logger)
	dispatcher.OnSuccess(svc.Invalidator.OnGenerated)
	return svc, dispatcher, nil
}

func (a *app) Close() {
	if a.rdb != nil {
		a.rdb.Close()
	}
	if a.db != nil {
		if sqlDB, err := a.db.DB(); err == nil {
			sqlDB.Close()
		}
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
