package main

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/omeyang/docdemo/internal/app"
	"github.com/omeyang/docdemo/internal/catalog"
	"github.com/omeyang/docdemo/pkg/config/xconf"
	"github.com/omeyang/docdemo/pkg/observability/xlog"
	"github.com/omeyang/docdemo/pkg/util/xjson"
)

const defaultSeedTimeout = 2 * time.Minute

// usageError 参数错误，退出码 2。
type usageError struct{ msg string }

func (e *usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

func createCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:   "serve",
			Usage:  "启动 HTTP 服务",
			Action: serveAction,
		},
		{
			Name:  "seed",
			Usage: "写入样例数据后退出",
			Flags: []cli.Flag{
				&cli.BoolFlag{
					Name:  "force",
					Usage: "集合非空时也写入",
				},
				&cli.DurationFlag{
					Name:  "timeout",
					Usage: "整体超时，包含等待集合就绪",
					Value: defaultSeedTimeout,
				},
			},
			Action: seedAction,
		},
		{
			Name:   "config",
			Usage:  "打印生效的配置（连接串中的密码会被隐藏）",
			Action: configAction,
		},
	}
}

// loadConfig 读取配置文件并应用命令行覆盖。
func loadConfig(cmd *cli.Command) (*app.Config, xconf.Config, error) {
	cfg, src, err := app.Load(cmd.String("config"))
	if err != nil {
		return nil, nil, usagef("load config: %v", err)
	}
	if v := cmd.String("mongo-uri"); v != "" {
		cfg.Mongo.URI = v
	}
	if v := cmd.String("addr"); v != "" {
		cfg.Server.Addr = v
	}
	if v := cmd.String("log-level"); v != "" {
		lvl, err := xlog.ParseLevel(v)
		if err != nil {
			return nil, nil, usagef("--log-level: %v", err)
		}
		cfg.Log.Level = lvl
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, usagef("%v", err)
	}
	return cfg, src, nil
}

func serveAction(ctx context.Context, cmd *cli.Command) (err error) {
	cfg, src, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	a, err := app.New(ctx, cfg, app.WithSource(src))
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(context.WithoutCancel(ctx)); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return a.Run(ctx)
}

func seedAction(ctx context.Context, cmd *cli.Command) (err error) {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	cfg.Seed.Enabled = false
	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(context.WithoutCancel(ctx)); cerr != nil && err == nil {
			err = cerr
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, cmd.Duration("timeout"))
	defer cancel()

	var res *catalog.SeedResult
	if cmd.Bool("force") {
		res, err = a.Seeder().SeedAll(ctx)
	} else {
		res, err = a.Seeder().SeedIfEmpty(ctx)
	}
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	_, err = fmt.Fprintln(cmd.Root().Writer, xjson.Pretty(res))
	return err
}

func configAction(_ context.Context, cmd *cli.Command) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	out := *cfg
	out.Mongo.URI = redactURI(cfg.Mongo.URI)
	_, err = fmt.Fprintln(cmd.Root().Writer, xjson.Pretty(out))
	return err
}

// redactURI 隐藏连接串中的密码，无法解析时整体隐藏。
func redactURI(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return "<redacted>"
	}
	return u.Redacted()
}
