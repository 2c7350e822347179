// Package xconf 基于 koanf 加载 YAML/JSON 配置。
//
// 加载顺序（后者覆盖前者）：WithDefaults 默认值 → 配置文件 → WithEnv 绑定的环境变量。
// Reload 与 Watch 触发的重载按同样顺序重建。
//
//	cfg, err := xconf.New("config.yaml",
//	    xconf.WithDefaults(map[string]any{"server.addr": ":8080"}),
//	    xconf.WithEnv("PORT", "server.port"),
//	)
//	var app AppConfig
//	err = cfg.Unmarshal("", &app)
package xconf

import (
	"errors"

	"github.com/knadh/koanf/v2"
)

// Format 配置格式。
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// Config 配置实例。基础读取直接用 Client() 返回的 koanf。
type Config interface {
	Client() *koanf.Koanf

	// Unmarshal 将 path 下的配置解码到 target，path 为空时解码全部。
	Unmarshal(path string, target any) error

	// Reload 重新读取配置文件，仅对 New 创建的实例有效。
	Reload() error

	// Path 配置文件路径，NewFromBytes 创建的实例返回空串。
	Path() string

	Format() Format
}

var (
	ErrEmptyPath         = errors.New("xconf: empty config path")
	ErrUnsupportedFormat = errors.New("xconf: unsupported config format")
	ErrLoadFailed        = errors.New("xconf: failed to load config")
	ErrParseFailed       = errors.New("xconf: failed to parse config")
	ErrUnmarshalFailed   = errors.New("xconf: failed to unmarshal config")
	ErrNotReloadable     = errors.New("xconf: config created from bytes cannot be reloaded")
)

// Options 加载选项。
type Options struct {
	Delim string
	Tag   string

	defaults map[string]any
	env      []envBinding
}

type envBinding struct {
	name string
	key  string
}

// Option 配置选项函数。
type Option func(*Options)

func defaultOptions() *Options {
	return &Options{Delim: ".", Tag: "koanf"}
}

// WithDelim 设置键分隔符，默认 "."。
func WithDelim(delim string) Option {
	return func(o *Options) {
		if delim != "" {
			o.Delim = delim
		}
	}
}

// WithTag 设置结构体标签名，默认 "koanf"。
func WithTag(tag string) Option {
	return func(o *Options) {
		if tag != "" {
			o.Tag = tag
		}
	}
}

// WithDefaults 设置默认值，键为完整路径，如 "init.max_retries"。
// 多次调用时合并，同名键后者生效。
func WithDefaults(defaults map[string]any) Option {
	return func(o *Options) {
		if o.defaults == nil {
			o.defaults = make(map[string]any, len(defaults))
		}
		for k, v := range defaults {
			o.defaults[k] = v
		}
	}
}

// WithEnv 将环境变量 name 绑定到 key。变量已设置且非空时覆盖文件中的值。
func WithEnv(name, key string) Option {
	return func(o *Options) {
		if name != "" && key != "" {
			o.env = append(o.env, envBinding{name: name, key: key})
		}
	}
}
