package app

// 由 -ldflags "-X github.com/omeyang/docdemo/internal/app.Version=..." 注入。
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)
