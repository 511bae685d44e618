package main

import (
	"context"
	"fmt"
	"time"

	"github.com/zarkojrpajarino-hue/desconocidosselectoscom-sub004/internal/dto"
	"github.com/zarkojrpajarino-hue/desconocidosselectoscom-sub004/internal/generator"
	"github.com/zarkojrpajarino-hue/desconocidosselectoscom-sub004/internal/model"
	"github.com/zarkojrpajarino-hue/desconocidosselectoscom-sub004/pkg/database"
	"github.com/zarkojrpajarino-hue/desconocidosselectoscom-sub004/pkg/jwt"
	"github.com/zarkojrpajarino-hue/desconocidosselectoscom-sub004/pkg/period"
)

// ────────────────────── period ──────────────────────

type PeriodCmd struct {
	At   time.Time `help:"解析时刻（RFC3339），默认当前时间。" format:"2006-01-02T15:04:05Z07:00"`
	Week string    `help:"额外计算指定周（YYYY-MM-DD，周三）在该时刻的阶段。"`
}

type periodOutput struct {
	Resolution period.Resolution `json:"resolution"`
	Week       string            `json:"week,omitempty"`
	WeekPeriod period.Period     `json:"week_period,omitempty"`
	Locked     *bool             `json:"locked,omitempty"`
}

func (c *PeriodCmd) Run(a *app) error {
	resolver, err := a.Resolver()
	if err != nil {
		return err
	}
	now := c.At
	if now.IsZero() {
		now = time.Now()
	}

	out := periodOutput{Resolution: resolver.Resolve(now)}
	if c.Week != "" {
		week, err := period.ParseWeekStart(c.Week)
		if err != nil {
			return fmt.Errorf("无效的周: %w", err)
		}
		locked := resolver.Locked(week, now)
		out.Week = c.Week
		out.WeekPeriod = resolver.PeriodOf(week, now)
		out.Locked = &locked
	}
	return printJSON(out)
}

// ────────────────────── migrate ──────────────────────

type MigrateCmd struct {
	Up   MigrateUpCmd   `cmd:"" default:"1" help:"执行全部未应用的迁移。"`
	Down MigrateDownCmd `cmd:"" help:"回滚迁移。"`
}

type MigrateUpCmd struct{}

func (c *MigrateUpCmd) Run(a *app) error {
	sqlDB, err := a.SQLDB()
	if err != nil {
		return err
	}
	logger, err := a.Logger()
	if err != nil {
		return err
	}
	return database.RunMigrations(sqlDB, logger)
}

type MigrateDownCmd struct {
	Steps int `help:"回滚步数。" default:"1"`
}

func (c *MigrateDownCmd) Run(a *app) error {
	if c.Steps <= 0 {
		return fmt.Errorf("steps 必须大于 0")
	}
	sqlDB, err := a.SQLDB()
	if err != nil {
		return err
	}
	logger, err := a.Logger()
	if err != nil {
		return err
	}
	return database.RollbackMigrations(sqlDB, c.Steps, logger)
}

// ────────────────────── regenerate ──────────────────────

type RegenerateCmd struct {
	Org   string `help:"组织 ID。" required:""`
	Week  string `help:"周起始日（YYYY-MM-DD），默认当前计划周。"`
	Force bool   `help:"跳过复核阶段校验，直接执行生成。"`
}

func (c *RegenerateCmd) Run(a *app) error {
	svc, dispatcher, err := a.Services()
	if err != nil {
		return err
	}
	cfg, _ := a.Config()
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Generator.Timeout+10*time.Second)
	defer cancel()

	if !c.Force {
		admin := dto.Caller{UserID: "agendactl", OrganizationID: c.Org, Role: dto.RoleAdmin}
		result, err := svc.Schedule.Regenerate(ctx, admin, c.Week)
		if err != nil {
			return err
		}
		return printJSON(result)
	}

	resolver, err := a.Resolver()
	if err != nil {
		return err
	}
	week := resolver.Resolve(time.Now()).WeekStart
	if c.Week != "" {
		if week, err = period.ParseWeekStart(c.Week); err != nil {
			return fmt.Errorf("无效的周: %w", err)
		}
	}
	jobID, err := dispatcher.Run(ctx, generator.Job{
		Kind:           model.JobKindWeekly,
		OrganizationID: c.Org,
		WeekStart:      week,
	})
	if err != nil {
		return fmt.Errorf("生成失败（job %s）: %w", jobID, err)
	}
	return printJSON(map[string]string{"job_id": jobID, "week_start": period.FormatDate(week)})
}

// ────────────────────── reconcile ──────────────────────

type ReconcileCmd struct {
	User string `help:"用户 ID。" required:""`
	Week string `help:"周起始日（YYYY-MM-DD），默认当前计划周。"`
}

func (c *ReconcileCmd) Run(a *app) error {
	svc, _, err := a.Services()
	if err != nil {
		return err
	}
	cfg, _ := a.Config()
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Agenda.OperationTimeout)
	defer cancel()

	fixed, err := svc.Completion.Reconcile(ctx, c.User, c.Week)
	if err != nil {
		return err
	}
	return printJSON(map[string]int{"fixed": fixed})
}

// ────────────────────── token ──────────────────────

type TokenCmd struct {
	User string `help:"用户 ID。" required:""`
	Org  string `help:"组织 ID。" required:""`
	Role string `help:"角色。" enum:"admin,leader,member" default:"member"`
}

func (c *TokenCmd) Run(a *app) error {
	cfg, err := a.Config()
	if err != nil {
		return err
	}
	token, err := jwt.NewManager(&cfg.Auth).GenerateAccessToken(c.User, c.Org, c.Role)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
