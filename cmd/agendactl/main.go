package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"
)

var CLI struct {
	Config string `help:"配置文件路径，为空时按默认位置查找。" type:"path" default:""`

	Period     PeriodCmd     `cmd:"" help:"显示某一时刻的周计划阶段。"`
	Migrate    MigrateCmd    `cmd:"" help:"数据库迁移。"`
	Regenerate RegenerateCmd `cmd:"" help:"重新生成组织整周排程。"`
	Reconcile  ReconcileCmd  `cmd:"" help:"按完成记录修复排程状态。"`
	Token      TokenCmd      `cmd:"" help:"签发调试用 Access Token。"`
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("agendactl"),
		kong.Description("周计划服务运维工具"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
	)

	app := newApp(CLI.Config)
	defer app.Close()

	if err := ctx.Run(app); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
