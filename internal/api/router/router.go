package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/zarkojrpajarino-hue/desconocidosselectoscom-sub004/config"
	"github.com/zarkojrpajarino-hue/desconocidosselectoscom-sub004/internal/api/handler"
	"github.com/zarkojrpajarino-hue/desconocidosselectoscom-sub004/internal/api/middleware"
	"github.com/zarkojrpajarino-hue/desconocidosselectoscom-sub004/internal/dto"
	"github.com/zarkojrpajarino-hue/desconocidosselectoscom-sub004/pkg/jwt"
	"github.com/zarkojrpajarino-hue/desconocidosselectoscom-sub004/pkg/redis"
)

// Setup 初始化并返回 Gin 路由引擎
// rdb、db 可为 nil：限流降级放行，健康检查跳过对应探测
func Setup(cfg *config.Config, h *handler.Handler, jwtMgr *jwt.Manager, rdb *redis.Client, db *gorm.DB, logger *zap.Logger) *gin.Engine {
	r := gin.New()

	// ── 全局中间件 ──
	r.Use(middleware.RequestID())
	r.Use(gin.Recovery())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	if cfg.Server.BodyLimit > 0 {
		r.Use(middleware.BodyLimit(cfg.Server.BodyLimit))
	}

	// ── 健康检查 ──
	r.GET("/health", healthCheck(db, rdb))

	var limiter middleware.RateLimiter
	if rdb != nil {
		limiter = rdb
	}
	toggleWindow, err := time.ParseDuration(cfg.Server.ToggleWindow)
	if err != nil {
		toggleWindow = 10 * time.Second
	}
	toggleLimit := middleware.RateLimit(limiter, cfg.Server.ToggleLimit, toggleWindow)
	leaders := middleware.RoleAuth(dto.RoleAdmin, dto.RoleLeader)

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	{
		agenda := v1.Group("/agenda")
		agenda.Use(middleware.JWTAuth(jwtMgr))
		{
			agenda.GET("/period", h.Period.Current)

			// 可用时间
			agenda.PUT("/availability", h.Availability.Submit)
			agenda.GET("/availability", h.Availability.Get)
			agenda.GET("/availability/team", leaders, h.Availability.ListTeam)

			// 周排程
			agenda.GET("/schedule", h.Schedule.GetWeek)
			agenda.POST("/schedule/regenerate", leaders, h.Schedule.Regenerate)
			agenda.GET("/schedule/jobs", h.Schedule.ListJobs)
			agenda.GET("/stats", h.Schedule.Stats)

			// 完成状态
			agenda.POST("/tasks/:id/complete", toggleLimit, h.Completion.MarkComplete)
			agenda.DELETE("/tasks/:id/complete", toggleLimit, h.Completion.MarkPending)

			// 协作任务确认
			agenda.GET("/validations", leaders, h.Completion.ListPendingValidations)
			agenda.POST("/validations/:id", leaders, h.Completion.Validate)

			// 导出
			agenda.GET("/export", h.Export.ExportWeek)
		}
	}

	return r
}

func healthCheck(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := gin.H{"status": "ok"}
		code := http.StatusOK

		if db != nil {
			sqlDB, err := db.DB()
			if err == nil {
				err = sqlDB.PingContext(c.Request.Context())
			}
			if err != nil {
				status["status"] = "degraded"
				status["db"] = err.Error()
				code = http.StatusServiceUnavailable
			}
		}
		if rdb != nil {
			if err := rdb.Ping(c.Request.Context()); err != nil {
				// Redis 不可用时服务仍可降级运行
				status["redis"] = err.Error()
			}
		}

		c.JSON(code, status)
	}
}
