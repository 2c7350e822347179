package xlog

import (
	"log/slog"
	"time"

	"github.com/omeyang/docdemo/pkg/context/xctx"
)

// 标准字段名。
const (
	KeyError      = "error"
	KeyStack      = "stack"
	KeyDuration   = "duration"
	KeyCount      = "count"
	KeyRequestID  = xctx.KeyRequestID
	KeyMethod     = "method"
	KeyPath       = "path"
	KeyStatusCode = "status_code"
	KeyComponent  = "component"
	KeyOperation  = "operation"
	KeyResource   = "resource"
	KeyAttempt    = "attempt"
)

// Err 返回 error 属性；err 为 nil 时返回空属性，slog 会忽略它。
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

func Duration(d time.Duration) slog.Attr { return slog.String(KeyDuration, d.String()) }

func Component(name string) slog.Attr { return slog.String(KeyComponent, name) }

func Operation(name string) slog.Attr { return slog.String(KeyOperation, name) }

func Count(n int64) slog.Attr { return slog.Int64(KeyCount, n) }

func StatusCode(code int) slog.Attr { return slog.Int(KeyStatusCode, code) }

func Method(m string) slog.Attr { return slog.String(KeyMethod, m) }

func Path(p string) slog.Attr { return slog.String(KeyPath, p) }

// Resource 标识被初始化或访问的资源，例如集合名。
func Resource(name string) slog.Attr { return slog.String(KeyResource, name) }

// Attempt 第几次尝试，从 1 开始。
func Attempt(n int) slog.Attr { return slog.Int(KeyAttempt, n) }
