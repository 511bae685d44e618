// Package generator 把可用时间转换为周排程。
//
// Materializer 有两种实现：调用外部生成函数的 GatewayMaterializer，
// 以及在进程内按可用时间放置任务的 LocalMaterializer。
// Dispatcher 负责异步执行生成任务并记录每次执行结果。
package generator

import (
	"context"
	"fmt"
	"time"

	"github.com/zarkojrpajarino-hue/desconocidosselectoscom-sub004/config"
	"github.com/zarkojrpajarino-hue/desconocidosselectoscom-sub004/internal/repository"
	"github.com/zarkojrpajarino-hue/desconocidosselectoscom-sub004/pkg/period"
)

// Materializer 排程生成器
type Materializer interface {
	// GeneratePreview 为单个用户生成某周预览排程
	GeneratePreview(ctx context.Context, organizationID, userID string, weekStart time.Time) error
	// GenerateWeeklySchedules 为组织内已提交可用时间的全部成员生成某周排程
	GenerateWeeklySchedules(ctx context.Context, organizationID string, weekStart time.Time) error
}

// New 根据配置选择生成器实现
func New(cfg *config.GeneratorConfig, repo *repository.Repository, resolver *period.Resolver, clock period.Clock) (Materializer, error) {
	switch cfg.Mode {
	case "gateway":
		return NewGatewayMaterializer(cfg.BaseURL, cfg.APIKey, cfg.Timeout), nil
	case "local", "":
		return NewLocalMaterializer(repo, resolver, clock), nil
	default:
		return nil, fmt.Errorf("未知的生成器模式: %s", cfg.Mode)
	}
}
