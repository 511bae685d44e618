package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/xuri/excelize/v2"

	"github.com/zarkojrpajarino-hue/desconocidosselectoscom-sub004/pkg/period"
)

func TestExportWeek_XLSX(t *testing.T) {
	env := newTestEnv(t, fillingNow)
	seedWeek(env)

	file, err := env.svc.Export.ExportWeek(context.Background(), member, "", "")
	if err != nil {
		t.Fatalf("导出失败: %v", err)
	}
	if file.Filename != "agenda_2026-10-21.xlsx" || file.ContentType != contentTypeXLSX {
		t.Errorf("文件信息错误: %s %s", file.Filename, file.ContentType)
	}

	f, err := excelize.OpenReader(bytes.NewReader(file.Buf.Bytes()))
	if err != nil {
		t.Fatalf("无法解析导出的 Excel: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("周排程")
	if err != nil {
		t.Fatalf("读取 Sheet 失败: %v", err)
	}
	// 标题 + 表头 + 3 条任务
	if len(rows) != 5 {
		t.Fatalf("期望 5 行，实际 %d", len(rows))
	}
	if rows[2][0] != "2026-10-23" || rows[2][2] != "09:00-10:30" {
		t.Errorf("首条任务应为周五 09:00，实际 %v", rows[2])
	}
	if rows[2][1] != "周五" || rows[4][1] != "周一" {
		t.Errorf("星期列错误: %v / %v", rows[2], rows[4])
	}
}

func TestExportWeek_ICS(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Madrid")
	if err != nil {
		t.Skipf("缺少时区数据: %v", err)
	}
	env := newTestEnv(t, fillingNow)
	env.svc.Export.(*exportService).deps.Resolver = period.NewResolver(loc)
	seedWeek(env)

	file, err := env.svc.Export.ExportWeek(context.Background(), member, "2026-10-21", ExportFormatICS)
	if err != nil {
		t.Fatalf("导出失败: %v", err)
	}
	if !strings.HasSuffix(file.Filename, ".ics") || file.ContentType != contentTypeICS {
		t.Errorf("文件信息错误: %s %s", file.Filename, file.ContentType)
	}

	cal, err := ics.ParseCalendar(bytes.NewReader(file.Buf.Bytes()))
	if err != nil {
		t.Fatalf("无法解析导出的日历: %v", err)
	}
	events := cal.Events()
	if len(events) != 3 {
		t.Fatalf("期望 3 个事件，实际 %d", len(events))
	}

	var found bool
	for _, ev := range events {
		if ev.Id() != "st-b@agenda" {
			continue
		}
		found = true
		start, err := ev.GetStartAt()
		if err != nil {
			t.Fatalf("读取开始时间失败: %v", err)
		}
		// 10 月 23 日马德里为 UTC+2
		want := time.Date(2026, 10, 23, 7, 0, 0, 0, time.UTC)
		if !start.Equal(want) {
			t.Errorf("开始时间应为本地 09:00（%s），实际 %s", want, start.UTC())
		}
		if p := ev.GetProperty(ics.ComponentPropertySummary); p == nil || p.Value != "任务 TB" {
			t.Errorf("SUMMARY 错误: %+v", p)
		}
	}
	if !found {
		t.Error("未找到 st-b 对应的事件")
	}
}

func TestExportWeek_Empty(t *testing.T) {
	env := newTestEnv(t, fillingNow)
	if _, err := env.svc.Export.ExportWeek(context.Background(), member, "", ExportFormatXLSX); !errors.Is(err, ErrExportNoSchedule) {
		t.Errorf("期望 ErrExportNoSchedule，实际 %v", err)
	}
}
