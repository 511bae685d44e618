package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/zarkojrpajarino-hue/desconocidosselectoscom-sub004/config"
	"github.com/zarkojrpajarino-hue/desconocidosselectoscom-sub004/internal/dto"
	"github.com/zarkojrpajarino-hue/desconocidosselectoscom-sub004/internal/generator"
	"github.com/zarkojrpajarino-hue/desconocidosselectoscom-sub004/internal/repository"
	"github.com/zarkojrpajarino-hue/desconocidosselectoscom-sub004/pkg/period"
)

// ── 导出模块业务错误 ──

var (
	ErrExportNoSchedule   = errors.New("该周暂无排程")
	ErrExportGenerateFail = errors.New("生成导出文件失败")
)

// 导出格式
const (
	ExportFormatXLSX = "xlsx"
	ExportFormatICS  = "ics"
)

const (
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	contentTypeICS  = "text/calendar; charset=utf-8"
)

// ExportFile 导出结果，由 Handler 层设置响应头后写出
type ExportFile struct {
	Buf         *bytes.Buffer
	Filename    string
	ContentType string
}

// ExportService 导出业务接口
type ExportService interface {
	// ExportWeek 导出用户某周排程，format 为 xlsx 或 ics（默认 xlsx）
	ExportWeek(ctx context.Context, caller dto.Caller, weekStart, format string) (*ExportFile, error)
}

type exportService struct {
	cfg    *config.AgendaConfig
	repo   *repository.Repository
	deps   Deps
	logger *zap.Logger
}

// NewExportService 创建 ExportService 实例
func NewExportService(cfg *config.AgendaConfig, repo *repository.Repository, deps Deps, logger *zap.Logger) ExportService {
	return &exportService{cfg: cfg, repo: repo, deps: deps, logger: logger}
}

func (s *exportService) ExportWeek(ctx context.Context, caller dto.Caller, weekStart, format string) (*ExportFile, error) {
	week, err := resolveWeek(s.deps, weekStart)
	if err != nil {
		return nil, err
	}

	ctx, cancel := withTimeout(ctx, s.cfg.OperationTimeout)
	defer cancel()

	rows, completions, err := loadWeek(ctx, s.repo, caller.UserID, week)
	if err != nil {
		s.logger.Error("查询导出排程失败", zap.String("user_id", caller.UserID), zap.Error(err))
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrExportNoSchedule
	}

	tasks := make([]dto.ScheduledTaskResponse, 0, len(rows))
	for i := range rows {
		tasks = append(tasks, toScheduledTaskResponse(&rows[i], completions[rows[i].TaskID]))
	}
	days := groupByDay(week, tasks)

	base := "agenda_" + period.FormatDate(week)
	switch format {
	case ExportFormatICS:
		buf, err := s.buildICS(week, days)
		if err != nil {
			s.logger.Error("生成日历文件失败", zap.Error(err))
			return nil, ErrExportGenerateFail
		}
		return &ExportFile{Buf: buf, Filename: base + ".ics", ContentType: contentTypeICS}, nil
	default:
		buf, err := buildXLSX(week, days)
		if err != nil {
			s.logger.Error("写入 Excel 失败", zap.Error(err))
			return nil, ErrExportGenerateFail
		}
		return &ExportFile{Buf: buf, Filename: base + ".xlsx", ContentType: contentTypeXLSX}, nil
	}
}

// ────────────────────── Excel ──────────────────────
//
// 表头：日期 | 星期 | 时间 | 任务 | 领域 | 预计时长 | 状态
// 每个任务一行，按日期与开始时间排序

func buildXLSX(week time.Time, days []dto.ScheduleDayResponse) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "周排程"
	idx, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	f.SetColWidth(sheetName, "A", "A", 12)
	f.SetColWidth(sheetName, "B", "B", 8)
	f.SetColWidth(sheetName, "C", "C", 14)
	f.SetColWidth(sheetName, "D", "D", 36)
	f.SetColWidth(sheetName, "E", "G", 14)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	f.SetCellValue(sheetName, "A1", fmt.Sprintf("周排程 %s", period.FormatDate(week)))
	f.MergeCell(sheetName, "A1", "G1")
	f.SetCellStyle(sheetName, "A1", "A1", headerStyle)

	headers := []string{"日期", "星期", "时间", "任务", "领域", "预计时长", "状态"}
	for i, h := range headers {
		f.SetCellValue(sheetName, cell(colName(i), 2), h)
	}
	f.SetCellStyle(sheetName, "A2", "G2", headerStyle)

	row := 3
	for _, d := range days {
		for _, t := range d.Tasks {
			f.SetCellValue(sheetName, cell("A", row), d.Date)
			f.SetCellValue(sheetName, cell("B", row), weekdayNames[d.Weekday])
			f.SetCellValue(sheetName, cell("C", row), fmt.Sprintf("%s-%s", t.ScheduledStart, t.ScheduledEnd))
			f.SetCellValue(sheetName, cell("D", row), t.Title)
			f.SetCellValue(sheetName, cell("E", row), t.Area)
			f.SetCellValue(sheetName, cell("F", row), t.EstimatedHours)
			f.SetCellValue(sheetName, cell("G", row), stateNames[t.State])
			row++
		}
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// ────────────────────── iCalendar ──────────────────────

func (s *exportService) buildICS(week time.Time, days []dto.ScheduleDayResponse) (*bytes.Buffer, error) {
	loc := s.deps.Resolver.Location()

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//agenda//weekly schedule//ZH")
	cal.SetXWRCalName("周排程 " + period.FormatDate(week))
	cal.SetXWRTimezone(loc.String())

	stamp := s.deps.now().UTC()
	for _, d := range days {
		date, err := time.Parse("2006-01-02", d.Date)
		if err != nil {
			return nil, err
		}
		for _, t := range d.Tasks {
			start, err := atClock(date, t.ScheduledStart, loc)
			if err != nil {
				return nil, err
			}
			end, err := atClock(date, t.ScheduledEnd, loc)
			if err != nil {
				return nil, err
			}

			ev := cal.AddEvent(t.ID + "@agenda")
			ev.SetDtStampTime(stamp)
			ev.SetStartAt(start)
			ev.SetEndAt(end)
			ev.SetSummary(t.Title)
			if t.Description != "" {
				ev.SetDescription(t.Description)
			}
			if t.State == dto.TaskStateCompleted {
				ev.SetStatus(ics.ObjectStatusConfirmed)
			} else {
				ev.SetStatus(ics.ObjectStatusTentative)
			}
		}
	}

	buf := new(bytes.Buffer)
	if err := cal.SerializeTo(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// atClock 日期 + HH:MM（业务时区）转换为时刻
func atClock(date time.Time, hhmm string, loc *time.Location) (time.Time, error) {
	m, err := generator.ParseMinutes(hhmm)
	if err != nil {
		return time.Time{}, err
	}
	y, mo, d := date.Date()
	return time.Date(y, mo, d, m/60, m%60, 0, 0, loc), nil
}

// ── 辅助函数 ──

var weekdayNames = map[string]string{
	time.Monday.String():    "周一",
	time.Tuesday.String():   "周二",
	time.Wednesday.String(): "周三",
	time.Thursday.String():  "周四",
	time.Friday.String():    "周五",
	time.Saturday.String():  "周六",
	time.Sunday.String():    "周日",
}

var stateNames = map[string]string{
	dto.TaskStatePending:            "待完成",
	dto.TaskStateAwaitingValidation: "待确认",
	dto.TaskStateCompleted:          "已完成",
}

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}
