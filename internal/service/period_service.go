package service

import (
	"context"

	"github.com/zarkojrpajarino-hue/desconocidosselectoscom-sub004/internal/dto"
	"github.com/zarkojrpajarino-hue/desconocidosselectoscom-sub004/pkg/period"
)

// PeriodService 周期阶段查询
type PeriodService interface {
	Current(ctx context.Context) *dto.PeriodResponse
}

type periodService struct {
	deps Deps
}

// NewPeriodService 创建 PeriodService 实例
func NewPeriodService(deps Deps) PeriodService {
	return &periodService{deps: deps}
}

func (s *periodService) Current(_ context.Context) *dto.PeriodResponse {
	now := s.deps.now()
	res := s.deps.Resolver.Resolve(now)
	return &dto.PeriodResponse{
		Period:             string(res.Period),
		WeekStart:          period.FormatDate(res.WeekStart),
		WeekStartsAt:       formatTimestamp(res.WeekStartsAt),
		ReviewStartsAt:     formatTimestamp(res.ReviewStartsAt),
		ActiveWeekStart:    period.FormatDate(res.ActiveWeekStart),
		ActiveWeekStartsAt: formatTimestamp(res.ActiveWeekStartsAt),
		CanSubmit:          res.Period == period.Filling,
		CanRegenerate:      res.Period == period.Reviewing,
		Timezone:           s.deps.Resolver.Location().String(),
		Now:                formatTimestamp(now),
	}
}
