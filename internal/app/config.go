package app

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/omeyang/docdemo/pkg/config/xconf"
	"github.com/omeyang/docdemo/pkg/observability/xlog"
	"github.com/omeyang/docdemo/pkg/resource/xinit"
)

// 环境变量覆盖。
const (
	EnvMongoURI = "DOCDEMO_MONGO_URI"
	EnvDatabase = "COSMOS_DATABASE"
	EnvPort     = "PORT"
)

const (
	BackoffFixed       = "fixed"
	BackoffExponential = "exponential"
)

// Config 服务配置。
type Config struct {
	Server  ServerConfig  `koanf:"server"`
	Mongo   MongoConfig   `koanf:"mongo"`
	Init    InitConfig    `koanf:"init"`
	Log     LogConfig     `koanf:"log"`
	Seed    SeedConfig    `koanf:"seed"`
	Cache   CacheConfig   `koanf:"cache"`
	Cron    CronConfig    `koanf:"cron"`
	Breaker BreakerConfig `koanf:"breaker"`
}

type ServerConfig struct {
	// Addr 监听地址，非空时优先于 Port。
	Addr              string        `koanf:"addr"`
	Port              int           `koanf:"port" validate:"gte=0,lte=65535"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout" validate:"gte=0"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout" validate:"gte=0"`
}

// ListenAddr 实际监听地址。
func (s ServerConfig) ListenAddr() string {
	if s.Addr != "" {
		return s.Addr
	}
	return ":" + strconv.Itoa(s.Port)
}

type MongoConfig struct {
	URI                string        `koanf:"uri" validate:"required"`
	Database           string        `koanf:"database" validate:"required"`
	ConnectTimeout     time.Duration `koanf:"connect_timeout" validate:"gte=0"`
	HealthTimeout      time.Duration `koanf:"health_timeout" validate:"gte=0"`
	QueryTimeout       time.Duration `koanf:"query_timeout" validate:"gte=0"`
	WriteTimeout       time.Duration `koanf:"write_timeout" validate:"gte=0"`
	SlowQueryThreshold time.Duration `koanf:"slow_query_threshold" validate:"gte=0"`
}

// InitConfig 集合守卫的重试参数。
type InitConfig struct {
	MaxRetries      int           `koanf:"max_retries" validate:"gte=1"`
	RetryDelay      time.Duration `koanf:"retry_delay" validate:"gte=0"`
	Backoff         string        `koanf:"backoff" validate:"oneof=fixed exponential"`
	MaxDelay        time.Duration `koanf:"max_delay" validate:"gte=0"`
	LivenessTimeout time.Duration `koanf:"liveness_timeout" validate:"gte=0"`
}

type LogConfig struct {
	Level  xlog.Level `koanf:"level"`
	Format string     `koanf:"format" validate:"oneof=text json"`
	// File 非空时写入文件并按大小轮转。
	File     string        `koanf:"file"`
	Rotation xlog.Rotation `koanf:"rotation"`
	// AccessSampleRate 成功请求访问日志的采样率，错误响应总是记录。
	AccessSampleRate float64 `koanf:"access_sample_rate" validate:"gte=0,lte=1"`
}

type SeedConfig struct {
	Enabled bool          `koanf:"enabled"`
	Delay   time.Duration `koanf:"delay" validate:"gte=0"`
}

// CacheConfig 商品读缓存，Size 为 0 时关闭。
type CacheConfig struct {
	ProductSize int           `koanf:"product_size" validate:"gte=0"`
	ProductTTL  time.Duration `koanf:"product_ttl" validate:"gte=0"`
}

// CronConfig 定时任务，spec 为空时不注册。
type CronConfig struct {
	StatsReport string `koanf:"stats_report"`
	// ReportOnStart 注册后立即上报一次，不等第一个周期
	ReportOnStart bool `koanf:"report_on_start"`
}

type BreakerConfig struct {
	ConsecutiveFailures uint32        `koanf:"consecutive_failures" validate:"gte=1"`
	OpenTimeout         time.Duration `koanf:"open_timeout" validate:"gt=0"`
}

// Defaults 与原示例保持一致：数据库 SampleDB，端口 8080，10 次重试间隔 2 秒。
func Defaults() map[string]any {
	return map[string]any{
		"server.port":                  8080,
		"server.read_header_timeout":   "10s",
		"server.shutdown_timeout":      "15s",
		"mongo.uri":                    "mongodb://localhost:27017",
		"mongo.database":               "SampleDB",
		"mongo.connect_timeout":        "10s",
		"mongo.health_timeout":         "5s",
		"mongo.query_timeout":          "30s",
		"mongo.write_timeout":          "60s",
		"mongo.slow_query_threshold":   "500ms",
		"init.max_retries":             xinit.DefaultMaxRetries,
		"init.retry_delay":             xinit.DefaultRetryDelay.String(),
		"init.backoff":                 BackoffFixed,
		"init.max_delay":               "30s",
		"init.liveness_timeout":        "5s",
		"log.level":                    "info",
		"log.format":                   "text",
		"log.access_sample_rate":       1.0,
		"seed.enabled":                 true,
		"seed.delay":                   "3s",
		"cache.product_size":           1024,
		"cache.product_ttl":            "1m",
		"cron.stats_report":            "@every 1m",
		"cron.report_on_start":         true,
		"breaker.consecutive_failures": 5,
		"breaker.open_timeout":         "30s",
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate 校验字段取值。
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return fmt.Errorf("app: invalid config: %w", err)
	}
	msgs := make([]string, 0, len(ve))
	for _, fe := range ve {
		msgs = append(msgs, fmt.Sprintf("%s: failed '%s'", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("app: invalid config: %s", strings.Join(msgs, "; "))
}

func loadOptions() []xconf.Option {
	return []xconf.Option{
		xconf.WithDefaults(Defaults()),
		xconf.WithEnv(EnvMongoURI, "mongo.uri"),
		xconf.WithEnv(EnvDatabase, "mongo.database"),
		xconf.WithEnv(EnvPort, "server.port"),
	}
}

// Load 读取配置文件，path 为空时只使用默认值与环境变量。
// 返回的 xconf.Config 可交给 Watch 做热更新。
func Load(path string) (*Config, xconf.Config, error) {
	var (
		src xconf.Config
		err error
	)
	if path == "" {
		src, err = xconf.Defaults(loadOptions()...)
	} else {
		src, err = xconf.New(path, loadOptions()...)
	}
	if err != nil {
		return nil, nil, err
	}
	cfg, err := decode(src)
	if err != nil {
		return nil, nil, err
	}
	return cfg, src, nil
}

// LoadBytes 从内存数据读取配置。
func LoadBytes(data []byte, format xconf.Format) (*Config, error) {
	src, err := xconf.NewFromBytes(data, format, loadOptions()...)
	if err != nil {
		return nil, err
	}
	return decode(src)
}

func decode(src xconf.Config) (*Config, error) {
	var cfg Config
	if err := src.Unmarshal("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
