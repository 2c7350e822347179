// docdemo 是基于 MongoDB 的文档数据库样例服务。
//
// 用法:
//
//	docdemo [全局选项] [命令]
//
// 全局选项:
//
//	-c, --config     配置文件路径，支持 yaml/json（环境变量 DOCDEMO_CONFIG）
//	    --mongo-uri  覆盖 mongo.uri
//	    --addr       覆盖 server.addr
//	    --log-level  覆盖 log.level
//
// 命令:
//
//	serve    启动 HTTP 服务（默认）
//	seed     写入样例数据后退出
//	config   打印生效的配置
//
// 退出码:
//
//	0: 成功
//	1: 运行失败
//	2: 参数错误
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/omeyang/docdemo/internal/app"
)

func main() {
	os.Exit(run(context.Background(), os.Args, os.Stderr))
}

func createApp() *cli.Command {
	return &cli.Command{
		Name:    "docdemo",
		Usage:   "文档数据库样例服务",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", app.Version, app.Commit, app.BuildDate),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "配置文件路径",
				Sources: cli.EnvVars("DOCDEMO_CONFIG"),
			},
			&cli.StringFlag{
				Name:  "mongo-uri",
				Usage: "MongoDB 连接串",
			},
			&cli.StringFlag{
				Name:  "addr",
				Usage: "HTTP 监听地址",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "日志级别 (debug/info/warn/error)",
			},
		},
		Commands:        createCommands(),
		DefaultCommand:  "serve",
		HideHelpCommand: true,
		// 退出码由 run 统一映射
		ExitErrHandler: func(context.Context, *cli.Command, error) {},
	}
}

func run(ctx context.Context, args []string, stderr io.Writer) int {
	err := createApp().Run(ctx, args)
	if err == nil {
		return 0
	}
	var ue *usageError
	if errors.As(err, &ue) {
		fmt.Fprintf(stderr, "参数错误: %v\n", ue)
		return 2
	}
	fmt.Fprintf(stderr, "错误: %v\n", err)
	return 1
}
