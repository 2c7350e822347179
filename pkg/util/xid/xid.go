// Package xid 基于 sonyflake 生成趋势递增的 int64 ID，以及形如 ORD-20260102-<id>、CUST-20260102-<id> 的业务单号。
//
// 机器号按以下顺序确定：XID_MACHINE_ID 环境变量 → POD_NAME → HOSTNAME → os.Hostname()，
// 后三者取 FNV-32a 哈希折叠到 16 位。
package xid

import (
	"errors"
	"fmt"
	"hash/fnv"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sony/sonyflake/v2"
)

var (
	ErrNilGenerator = errors.New("xid: nil generator")
	ErrInvalidID    = errors.New("xid: invalid id")
	ErrNoMachineID  = errors.New("xid: cannot determine machine id")
)

const (
	EnvMachineID = "XID_MACHINE_ID"
	EnvPodName   = "POD_NAME"
	EnvHostname  = "HOSTNAME"

	PrefixOrder    = "ORD"
	PrefixCustomer = "CUST"
)

// osHostname 测试替换点。
var osHostname = os.Hostname

// Generator ID 生成器，并发安全。
type Generator struct {
	sf *sonyflake.Sonyflake
}

// Option 生成器选项。
type Option func(*sonyflake.Settings)

// WithMachineID 固定机器号。
func WithMachineID(id uint16) Option {
	return func(s *sonyflake.Settings) {
		s.MachineID = func() (int, error) { return int(id), nil }
	}
}

// WithStartTime 设置纪元起点，默认 2025-01-01 UTC。
func WithStartTime(t time.Time) Option {
	return func(s *sonyflake.Settings) { s.StartTime = t }
}

// NewGenerator 创建生成器。
func NewGenerator(opts ...Option) (*Generator, error) {
	st := sonyflake.Settings{
		StartTime: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		MachineID: func() (int, error) {
			id, err := DefaultMachineID()
			return int(id), err
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&st)
		}
	}
	sf, err := sonyflake.New(st)
	if err != nil {
		return nil, fmt.Errorf("xid: new sonyflake: %w", err)
	}
	return &Generator{sf: sf}, nil
}

// NextID 生成下一个 ID。
func (g *Generator) NextID() (int64, error) {
	if g == nil || g.sf == nil {
		return 0, ErrNilGenerator
	}
	id, err := g.sf.NextID()
	if err != nil {
		return 0, fmt.Errorf("xid: next id: %w", err)
	}
	return id, nil
}

// Number 返回 <prefix>-yyyyMMdd-<id>，日期取 at 的 UTC 日期。prefix 不能包含 '-'。
func (g *Generator) Number(prefix string, at time.Time) (string, error) {
	if prefix == "" || strings.Contains(prefix, "-") {
		return "", fmt.Errorf("%w: prefix %q", ErrInvalidID, prefix)
	}
	id, err := g.NextID()
	if err != nil {
		return "", err
	}
	return prefix + "-" + at.UTC().Format("20060102") + "-" + strconv.FormatInt(id, 10), nil
}

// OrderNumber 订单号 ORD-yyyyMMdd-<id>。
func (g *Generator) OrderNumber(at time.Time) (string, error) {
	return g.Number(PrefixOrder, at)
}

// CustomerNumber 客户编号 CUST-yyyyMMdd-<id>。
func (g *Generator) CustomerNumber(at time.Time) (string, error) {
	return g.Number(PrefixCustomer, at)
}

// ParseNumber 解析业务单号，返回前缀、日期和 ID。
func ParseNumber(s string) (prefix string, day time.Time, id int64, err error) {
	parts := strings.Split(s, "-")
	if len(parts) != 3 || parts[0] == "" {
		return "", time.Time{}, 0, fmt.Errorf("%w: %q", ErrInvalidID, s)
	}
	day, err = time.Parse("20060102", parts[1])
	if err != nil {
		return "", time.Time{}, 0, fmt.Errorf("%w: %q: %w", ErrInvalidID, s, err)
	}
	id, err = strconv.ParseInt(parts[2], 10, 64)
	if err != nil || id < 0 {
		return "", time.Time{}, 0, fmt.Errorf("%w: %q", ErrInvalidID, s)
	}
	return parts[0], day, id, nil
}

// ParseOrderNumber 解析订单号，前缀必须是 ORD。
func ParseOrderNumber(s string) (time.Time, int64, error) {
	prefix, day, id, err := ParseNumber(s)
	if err != nil {
		return time.Time{}, 0, err
	}
	if prefix != PrefixOrder {
		return time.Time{}, 0, fmt.Errorf("%w: %q", ErrInvalidID, s)
	}
	return day, id, nil
}

// DefaultMachineID 按包文档描述的顺序推导机器号。
func DefaultMachineID() (uint16, error) {
	if s := os.Getenv(EnvMachineID); s != "" {
		id, err := strconv.ParseUint(s, 10, 16)
		if err != nil {
			return 0, fmt.Errorf("xid: invalid %s %q: %w", EnvMachineID, s, err)
		}
		return uint16(id), nil
	}
	for _, env := range []string{EnvPodName, EnvHostname} {
		if v := os.Getenv(env); v != "" {
			return hashToMachineID(v), nil
		}
	}
	host, err := osHostname()
	if err != nil || host == "" {
		return 0, errors.Join(ErrNoMachineID, err)
	}
	return hashToMachineID(host), nil
}

func hashToMachineID(s string) uint16 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	sum := h.Sum32()
	return uint16(sum>>16) ^ uint16(sum)
}
